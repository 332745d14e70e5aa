// Package dashboard serves the admin front-end locally. Every page goes
// through the route guard; forms drive the session store.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/paneld-dev/paneld/internal/guard"
	"github.com/paneld-dev/paneld/internal/session"
)

// Getter fetches business data through the session transport
type Getter interface {
	Get(ctx context.Context, path string, params url.Values, out any) error
}

type Options struct {
	Addr string
	// Gatherer backs /metrics; nil serves the default registry
	Gatherer   prometheus.Gatherer
	SettleWait time.Duration
	Version    string
	Logger     zerolog.Logger
}

// Server represents the dashboard HTTP server
type Server struct {
	router *gin.Engine
	store  *session.Store
	api    Getter
	opts   Options
	logger zerolog.Logger
}

// New creates a new dashboard server
func New(store *session.Store, api Getter, opts Options) *Server {
	if opts.Addr == "" {
		opts.Addr = "127.0.0.1:5500"
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		store:  store,
		api:    api,
		opts:   opts,
		logger: opts.Logger.With().Str("component", "dashboard").Logger(),
	}
	s.setupRouter()

	return s
}

// Handler exposes the router, mostly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRouter configures the Gin router with routes and middleware
func (s *Server) setupRouter() {
	gin.SetMode(gin.ReleaseMode)

	s.router = gin.New()
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())
	s.router.SetHTMLTemplate(pages)

	s.router.GET("/healthz", s.healthCheck)
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{})))

	// Form submissions are not guarded: they start the transitions the guards wait on
	s.router.POST("/login", s.submitLogin)
	s.router.POST("/register", s.submitRegister)
	s.router.POST("/logout", s.submitLogout)

	guardOpts := guard.Options{
		LoginPath:  "/login",
		HomePath:   "/",
		SettleWait: s.opts.SettleWait,
		Logger:     s.logger,
	}

	loginArea := s.router.Group("/")
	loginArea.Use(guard.Middleware(s.store, guard.LoginArea, guardOpts))
	{
		loginArea.GET("/login", s.loginPage)
		loginArea.GET("/register", s.registerPage)
	}

	protected := s.router.Group("/")
	protected.Use(guard.Middleware(s.store, guard.Protected, guardOpts))
	{
		protected.GET("/", s.homePage)
		protected.GET("/dashboard", s.homePage)
		protected.GET("/dashboard/users", s.usersPage)
	}
}

// loggingMiddleware creates a custom logging middleware using zerolog
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		s.logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("HTTP request")
	}
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "online",
		"session":   s.store.Snapshot().Status.String(),
		"timestamp": time.Now().UTC(),
		"service":   "paneld-dashboard",
		"version":   s.opts.Version,
	})
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.opts.Addr).Msg("Starting dashboard")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("dashboard server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info().Msg("Shutting down dashboard")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("dashboard shutdown failed: %w", err)
	}
	return nil
}
