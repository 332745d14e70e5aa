package dashboard

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/paneld-dev/paneld/internal/guard"
	"github.com/paneld-dev/paneld/internal/session"
	"github.com/paneld-dev/paneld/internal/transport"
)

type loginForm struct {
	Email    string `form:"email"`
	Password string `form:"password"`
}

type registerForm struct {
	FirstName string `form:"firstName"`
	LastName  string `form:"lastName"`
	Email     string `form:"email"`
	Password  string `form:"password"`
	Phone     string `form:"phone"`
}

func (s *Server) loginPage(c *gin.Context) {
	c.HTML(http.StatusOK, "login.html", page{
		Title: "Sign in",
		Error: s.store.Snapshot().Error,
		Email: c.Query("email"),
	})
}

func (s *Server) registerPage(c *gin.Context) {
	c.HTML(http.StatusOK, "register.html", page{
		Title: "Create account",
		Error: s.store.Snapshot().Error,
	})
}

func (s *Server) submitLogin(c *gin.Context) {
	var form loginForm
	if err := c.ShouldBind(&form); err != nil {
		c.Redirect(http.StatusSeeOther, "/login")
		return
	}

	err := s.store.Login(c.Request.Context(), session.LoginRequest{
		Email:    form.Email,
		Password: form.Password,
	})
	if err != nil {
		s.logger.Info().Err(err).Str("email", form.Email).Msg("Login rejected")
		c.Redirect(http.StatusSeeOther, "/login")
		return
	}

	c.Redirect(http.StatusSeeOther, "/")
}

func (s *Server) submitRegister(c *gin.Context) {
	var form registerForm
	if err := c.ShouldBind(&form); err != nil {
		c.Redirect(http.StatusSeeOther, "/register")
		return
	}

	err := s.store.Register(c.Request.Context(), session.RegisterRequest{
		FirstName: form.FirstName,
		LastName:  form.LastName,
		Email:     form.Email,
		Password:  form.Password,
		Phone:     form.Phone,
	})
	switch {
	case err == nil:
		c.Redirect(http.StatusSeeOther, "/")
	case errors.Is(err, session.ErrSignInRequired):
		c.Redirect(http.StatusSeeOther, "/login")
	default:
		s.logger.Info().Err(err).Str("email", form.Email).Msg("Registration rejected")
		c.Redirect(http.StatusSeeOther, "/register")
	}
}

func (s *Server) submitLogout(c *gin.Context) {
	if err := s.store.Logout(c.Request.Context()); err != nil {
		s.logger.Warn().Err(err).Msg("Signed out locally; remote session may still be valid")
	}
	c.Redirect(http.StatusSeeOther, "/login")
}

func (s *Server) homePage(c *gin.Context) {
	snap, _ := guard.SnapshotFrom(c)
	c.HTML(http.StatusOK, "home.html", page{
		Title: "Dashboard",
		User:  snap.User,
	})
}

func (s *Server) usersPage(c *gin.Context) {
	snap, _ := guard.SnapshotFrom(c)

	var users []*session.User
	err := s.api.Get(c.Request.Context(), "/users", nil, &users)
	if err != nil {
		if errors.Is(err, transport.ErrUnauthenticated) {
			c.Redirect(http.StatusFound, "/login")
			return
		}

		s.logger.Error().Err(err).Msg("Failed to list users")
		msg := transport.UserMessage(err)
		if msg == "" {
			msg = "Failed to load users"
		}
		c.HTML(http.StatusBadGateway, "users.html", page{
			Title: "Users",
			User:  snap.User,
			Error: msg,
		})
		return
	}

	c.HTML(http.StatusOK, "users.html", page{
		Title: "Users",
		User:  snap.User,
		Users: users,
	})
}
