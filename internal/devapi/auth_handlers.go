package devapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/paneld-dev/paneld/internal/auth"
	"github.com/paneld-dev/paneld/internal/models"
)

const (
	accessCookie  = "access_token"
	refreshCookie = "refresh_token"
)

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RegisterRequest represents an account creation request
type RegisterRequest struct {
	FirstName string `json:"firstName" binding:"required"`
	LastName  string `json:"lastName" binding:"required"`
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8"`
	Phone     string `json:"phone" binding:"omitempty,numeric,len=10"`
}

// UserResponse wraps a single user
type UserResponse struct {
	User *UserDetail `json:"user"`
}

// UserDetail represents user information returned in responses
type UserDetail struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Role      string    `json:"role"`
	IsAdmin   bool      `json:"isAdmin"`
	CreatedAt time.Time `json:"createdAt"`
}

func newUserDetail(u *models.User) *UserDetail {
	return &UserDetail{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Name:      u.Name(),
		Phone:     u.Phone,
		Role:      u.Role,
		IsAdmin:   u.IsAdmin,
		CreatedAt: u.CreatedAt,
	}
}

// @Summary Login
// @Description Authenticate with email and password; sets the session cookies
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login request"
// @Success 200 {object} UserResponse
// @Failure 400 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Router /auth/login [post]
func (s *Server) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user models.User
	if err := s.db.Where("email = ?", models.NormalizeEmail(req.Email)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
			return
		}
		s.logger.Error().Err(err).Msg("Failed to find user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}

	if err := s.startSession(c, &user); err != nil {
		s.logger.Error().Err(err).Str("user_id", user.ID).Msg("Failed to start session")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	s.logger.Info().Str("user_id", user.ID).Str("email", user.Email).Msg("User logged in")

	c.JSON(http.StatusOK, UserResponse{User: newUserDetail(&user)})
}

// @Summary Register
// @Description Create an account. No session is established.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Register request"
// @Success 201 {object} UserResponse
// @Failure 400 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Router /auth/register [post]
func (s *Server) register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var count int64
	if err := s.db.Model(&models.User{}).Where("email = ?", models.NormalizeEmail(req.Email)).Count(&count).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to check existing user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if count > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "Email already registered"})
		return
	}

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to hash password")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}

	user := &models.User{
		Email:        req.Email,
		PasswordHash: passwordHash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Phone:        req.Phone,
		Role:         "user",
	}
	if err := s.db.Create(user).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to create user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}

	s.logger.Info().Str("user_id", user.ID).Str("email", user.Email).Msg("User registered")

	c.JSON(http.StatusCreated, UserResponse{User: newUserDetail(user)})
}

// @Summary Logout
// @Description Revoke the refresh session and expire the cookies
// @Tags auth
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /auth/logout [post]
func (s *Server) logout(c *gin.Context) {
	if token, err := c.Cookie(refreshCookie); err == nil && token != "" {
		if claims, err := s.issuer.Validate(token, auth.RefreshToken); err == nil {
			now := time.Now()
			if err := s.db.Model(&models.RefreshSession{}).
				Where("id = ? AND revoked_at IS NULL", claims.ID).
				Update("revoked_at", &now).Error; err != nil {
				s.logger.Error().Err(err).Str("session_id", claims.ID).Msg("Failed to revoke refresh session")
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Logout failed"})
				return
			}
			s.logger.Info().Str("user_id", claims.UserID).Msg("User logged out")
		}
	}

	s.clearCookies(c)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// @Summary Verify session
// @Description Return the user the access token belongs to
// @Tags auth
// @Produce json
// @Success 200 {object} UserResponse
// @Failure 401 {object} map[string]interface{}
// @Router /auth/verify [get]
func (s *Server) verify(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	c.JSON(http.StatusOK, UserResponse{User: newUserDetail(user)})
}

// @Summary Refresh session
// @Description Rotate the refresh token and issue a new access token
// @Tags auth
// @Produce json
// @Success 200 {object} UserResponse
// @Failure 401 {object} map[string]interface{}
// @Router /auth/refresh-token [post]
func (s *Server) refreshToken(c *gin.Context) {
	token, err := c.Cookie(refreshCookie)
	if err != nil || token == "" {
		respondWithError(c, s.logger, http.StatusUnauthorized, ErrMissingToken, "Missing refresh token")
		return
	}

	claims, err := s.issuer.Validate(token, auth.RefreshToken)
	if err != nil {
		s.clearCookies(c)
		respondWithError(c, s.logger, http.StatusUnauthorized, err, "Invalid or expired refresh token")
		return
	}

	var refresh models.RefreshSession
	if err := models.FindByID(s.db, claims.ID, &refresh); err != nil {
		s.clearCookies(c)
		respondWithError(c, s.logger, http.StatusUnauthorized, err, "Unknown refresh session")
		return
	}

	now := time.Now()
	if refresh.RevokedAt != nil {
		// A rotated token came back: treat every session of the user as compromised
		s.revokeAll(refresh.UserID, now)
		s.clearCookies(c)
		respondWithError(c, s.logger, http.StatusUnauthorized, ErrInvalidToken, "Refresh token reused")
		return
	}
	if !refresh.Active(now) {
		s.clearCookies(c)
		respondWithError(c, s.logger, http.StatusUnauthorized, ErrInvalidToken, "Refresh session expired")
		return
	}

	var user models.User
	if err := models.FindByID(s.db, refresh.UserID, &user); err != nil {
		s.clearCookies(c)
		respondWithError(c, s.logger, http.StatusUnauthorized, ErrUserNotFound, "User not found")
		return
	}

	if err := s.db.Model(&refresh).Update("revoked_at", &now).Error; err != nil {
		s.logger.Error().Err(err).Str("session_id", refresh.ID).Msg("Failed to rotate refresh session")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if err := s.startSession(c, &user); err != nil {
		s.logger.Error().Err(err).Str("user_id", user.ID).Msg("Failed to start session")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	s.logger.Debug().Str("user_id", user.ID).Msg("Session refreshed")

	c.JSON(http.StatusOK, UserResponse{User: newUserDetail(&user)})
}

// startSession records a refresh session and sets both cookies
func (s *Server) startSession(c *gin.Context, user *models.User) error {
	refresh := &models.RefreshSession{
		UserID:    user.ID,
		ExpiresAt: time.Now().Add(s.issuer.RefreshTTL()),
		UserAgent: c.Request.UserAgent(),
	}
	if err := s.db.Create(refresh).Error; err != nil {
		return err
	}

	access, err := s.issuer.IssueAccess(user.ID, user.Email, user.IsAdmin)
	if err != nil {
		return err
	}
	refreshToken, _, err := s.issuer.IssueRefresh(user.ID, refresh.ID)
	if err != nil {
		return err
	}

	s.setCookie(c, accessCookie, access, s.issuer.AccessTTL())
	s.setCookie(c, refreshCookie, refreshToken, s.issuer.RefreshTTL())
	return nil
}

func (s *Server) revokeAll(userID string, now time.Time) {
	if err := s.db.Model(&models.RefreshSession{}).
		Where("user_id = ? AND revoked_at IS NULL", userID).
		Update("revoked_at", &now).Error; err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to revoke refresh sessions")
	}
}

func (s *Server) setCookie(c *gin.Context, name, value string, ttl time.Duration) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, value, int(ttl/time.Second), "/", "", s.config.Tokens.SecureCookies, true)
}

func (s *Server) clearCookies(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(accessCookie, "", -1, "/", "", s.config.Tokens.SecureCookies, true)
	c.SetCookie(refreshCookie, "", -1, "/", "", s.config.Tokens.SecureCookies, true)
}
