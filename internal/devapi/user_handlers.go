package devapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/paneld-dev/paneld/internal/models"
)

// @Summary List users
// @Description List all users
// @Tags users
// @Produce json
// @Success 200 {array} UserDetail
// @Failure 401 {object} map[string]interface{}
// @Router /users [get]
func (s *Server) listUsers(c *gin.Context) {
	var users []models.User
	if err := s.db.Order("created_at DESC").Find(&users).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to list users")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if sessionData, ok := GetSessionData(c); ok {
		s.logger.Debug().Str("user_id", sessionData.UserID).Int("count", len(users)).Msg("Listed users")
	}

	details := make([]*UserDetail, 0, len(users))
	for i := range users {
		details = append(details, newUserDetail(&users[i]))
	}

	c.JSON(http.StatusOK, details)
}
