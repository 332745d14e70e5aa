package auth

// SessionData represents the authenticated session context for a request
type SessionData struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	IsAdmin   bool   `json:"is_admin"`
	ExpiresAt int64  `json:"expires_at"`
}

// NewSessionData builds the request session from validated access claims
func NewSessionData(claims *JWTClaims) *SessionData {
	data := &SessionData{
		UserID:  claims.UserID,
		Email:   claims.Email,
		IsAdmin: claims.IsAdmin,
	}
	if claims.ExpiresAt != nil {
		data.ExpiresAt = claims.ExpiresAt.Unix()
	}
	return data
}
