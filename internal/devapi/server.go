// Package devapi is the reference backend the LOCAL environment and the
// integration tests run against. It implements the auth endpoints the session
// transport consumes, with JWT access and refresh cookies.
package devapi

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/paneld-dev/paneld/internal/auth"
	"github.com/paneld-dev/paneld/internal/models"
)

// Server represents the HTTP server
type Server struct {
	router  *gin.Engine
	db      *gorm.DB
	config  *Config
	logger  zerolog.Logger
	issuer  *auth.Issuer
	version string
}

// DefaultAllowedOrigin is the LOCAL front-end, trusted when no origins are configured
const DefaultAllowedOrigin = "http://localhost:5500"

// New creates a new server instance
func New(cfg *Config, zlog zerolog.Logger, version string) (*Server, error) {
	if len(cfg.AllowedOrigins) == 0 {
		withDefault := *cfg
		withDefault.AllowedOrigins = []string{DefaultAllowedOrigin}
		cfg = &withDefault
	}

	db, err := initDatabase(cfg, zlog)
	if err != nil {
		return nil, err
	}

	if err := models.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	if cfg.Tokens.Secret == "" {
		zlog.Warn().Msg("No JWT secret configured - generating one, sessions will not survive a restart")
	}
	issuer, err := auth.NewIssuer(cfg.Tokens.Secret, cfg.Tokens.AccessTTL, cfg.Tokens.RefreshTTL)
	if err != nil {
		return nil, err
	}

	server := &Server{
		db:      db,
		config:  cfg,
		logger:  zlog,
		issuer:  issuer,
		version: version,
	}

	if err := server.seedAdmin(); err != nil {
		return nil, err
	}

	server.setupRouter()

	return server, nil
}

// initDatabase initializes the database connection
func initDatabase(cfg *Config, zlog zerolog.Logger) (*gorm.DB, error) {
	const (
		maxOpenConns    = 8
		maxIdleConns    = 4
		connMaxLifetime = 5 * time.Minute
		busyTimeout     = 5000
	)

	db, err := gorm.Open(sqlite.Open(cfg.Database.URL), &gorm.Config{
		Logger: logger.New(
			log.New(os.Stdout, "\r\n", log.LstdFlags),
			logger.Config{
				LogLevel:                  logger.Error,
				IgnoreRecordNotFoundError: true,
				SlowThreshold:             200 * time.Millisecond,
			},
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// WAL must be set first
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		fmt.Sprintf("PRAGMA busy_timeout=%d", busyTimeout),
		"PRAGMA foreign_keys=1",
	}
	for _, pragma := range pragmas {
		if err := db.Exec(pragma).Error; err != nil {
			zlog.Warn().Str("pragma", pragma).Err(err).Msg("Failed to apply pragma")
		}
	}

	return db, nil
}

// seedAdmin creates the configured admin account if it does not exist yet
func (s *Server) seedAdmin() error {
	seed := s.config.Seed
	if seed.Email == "" || seed.Password == "" {
		return nil
	}

	var count int64
	if err := s.db.Model(&models.User{}).Where("email = ?", models.NormalizeEmail(seed.Email)).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to look up seed admin: %w", err)
	}
	if count > 0 {
		return nil
	}

	hash, err := auth.HashPassword(seed.Password)
	if err != nil {
		return err
	}

	admin := &models.User{
		Email:        seed.Email,
		PasswordHash: hash,
		FirstName:    "Admin",
		Role:         "admin",
		IsAdmin:      true,
	}
	if err := s.db.Create(admin).Error; err != nil {
		return fmt.Errorf("failed to create seed admin: %w", err)
	}

	s.logger.Info().Str("user_id", admin.ID).Str("email", admin.Email).Msg("Seed admin created")
	return nil
}

// setupRouter configures the Gin router with routes and middleware
func (s *Server) setupRouter() {
	gin.SetMode(gin.ReleaseMode)

	s.router = gin.New()

	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())

	s.router.Use(cors.New(cors.Config{
		AllowOrigins:     s.config.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Health check endpoint (no auth required)
	s.router.GET("/health", s.healthCheck)

	// Public auth endpoints; logout works without a valid access token
	s.router.POST("/auth/login", s.login)
	s.router.POST("/auth/register", s.register)
	s.router.POST("/auth/refresh-token", s.refreshToken)
	s.router.POST("/auth/logout", s.logout)

	authed := s.router.Group("/")
	authed.Use(CookieAuthMiddleware(s.issuer, s.db, s.logger))
	{
		authed.GET("/auth/verify", s.verify)
		authed.GET("/users", s.listUsers)
	}
}

// loggingMiddleware creates a custom logging middleware using zerolog
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := c.GetHeader("X-Request-ID")
		if requestID != "" {
			c.Header("X-Request-ID", requestID)
		}

		c.Next()

		s.logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Str("request_id", requestID).
			Msg("HTTP request")
	}
}

// @Router /health [get]
// @Success 200 {object} map[string]interface{}
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "online",
		"timestamp": time.Now().UTC(),
		"service":   "paneld-api",
		"version":   s.version,
	})
}

// Handler exposes the router, mostly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database connection
func (s *Server) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Address,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.config.Address).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info().Msg("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}
