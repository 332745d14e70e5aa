package devapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/paneld-dev/paneld/internal/auth"
	"github.com/paneld-dev/paneld/internal/models"
)

const (
	bearerPrefix = "Bearer "
)

var (
	ErrMissingToken  = errors.New("missing access token")
	ErrInvalidFormat = errors.New("invalid authorization header format")
	ErrInvalidToken  = errors.New("invalid token")
	ErrUserNotFound  = errors.New("user not found")
)

func setSession(c *gin.Context, sessionData *auth.SessionData) {
	c.Set("session", sessionData)
}

func GetSessionData(c *gin.Context) (*auth.SessionData, bool) {
	session, exists := c.Get("session")
	if !exists {
		return nil, false
	}

	sessionData, ok := session.(*auth.SessionData)
	return sessionData, ok
}

// extractAccessToken reads the access cookie, falling back to a bearer header
func extractAccessToken(c *gin.Context) (string, error) {
	if token, err := c.Cookie(accessCookie); err == nil && token != "" {
		return token, nil
	}

	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", ErrMissingToken
	}
	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return "", ErrInvalidFormat
	}

	token := strings.TrimPrefix(authHeader, bearerPrefix)
	if token == "" {
		return "", ErrMissingToken
	}

	return token, nil
}

func respondWithError(c *gin.Context, log zerolog.Logger, statusCode int, err error, message string) {
	log.Warn().Err(err).Msg(message)
	c.JSON(statusCode, gin.H{"error": message})
	c.Abort()
}

// CookieAuthMiddleware validates the access token and loads the user.
// Any failure is the expired-session status the client refreshes on.
func CookieAuthMiddleware(issuer *auth.Issuer, db *gorm.DB, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := extractAccessToken(c)
		if err != nil {
			message := "Missing access token"
			if errors.Is(err, ErrInvalidFormat) {
				message = "Invalid authorization header format"
			}
			respondWithError(c, log, http.StatusUnauthorized, err, message)
			return
		}

		claims, err := issuer.Validate(token, auth.AccessToken)
		if err != nil {
			respondWithError(c, log, http.StatusUnauthorized, err, "Invalid or expired token")
			return
		}

		// Verify user exists in database
		var user models.User
		if err := models.FindByID(db, claims.UserID, &user); err != nil {
			log.Error().Err(err).Str("user_id", claims.UserID).Msg("User not found")
			respondWithError(c, log, http.StatusUnauthorized, ErrUserNotFound, "User not found")
			return
		}

		setSession(c, auth.NewSessionData(claims))
		c.Set("user", &user)

		c.Next()
	}
}

func currentUser(c *gin.Context) (*models.User, bool) {
	v, exists := c.Get("user")
	if !exists {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok
}
