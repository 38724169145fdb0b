package httpserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/madhavanSPR/VDI-DASHBOARD/internal/domain"
	"github.com/madhavanSPR/VDI-DASHBOARD/internal/identity"
	apperrors "github.com/madhavanSPR/VDI-DASHBOARD/internal/platform/errors"
)

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) registerAuthRoutes() {
	s.echo.POST("/api/register", s.handleRegister, s.authRateLimit)
	s.echo.POST("/api/login", s.handleLogin, s.authRateLimit)
	s.echo.POST("/api/logout", s.handleLogout)
	s.echo.GET("/api/user", s.handleCurrentUser, s.requireAuth)
}

func (s *Server) handleRegister(c echo.Context) error {
	var body credentials
	if err := c.Bind(&body); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	user, err := s.app.Register(c.Request().Context(), body.Username, body.Password)
	switch {
	case errors.Is(err, identity.ErrInvalidUsername), errors.Is(err, identity.ErrInvalidPassword):
		return apperrors.ValidationError(err.Error())
	case errors.Is(err, domain.ErrUsernameTaken):
		return apperrors.ValidationError("username already exists")
	case err != nil:
		return apperrors.InternalError("failed to register user", err)
	}

	if err := s.startSession(c, user); err != nil {
		return err
	}
	return writeJSON(c, http.StatusCreated, user.Ref())
}

func (s *Server) handleLogin(c echo.Context) error {
	var body credentials
	if err := c.Bind(&body); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	user, err := s.app.Login(c.Request().Context(), body.Username, body.Password)
	if errors.Is(err, domain.ErrInvalidCredentials) {
		return apperrors.UnauthorizedError("invalid username or password")
	}
	if err != nil {
		return apperrors.InternalError("failed to log in", err)
	}

	if err := s.startSession(c, user); err != nil {
		return err
	}
	return writeJSON(c, http.StatusOK, user.Ref())
}

func (s *Server) handleLogout(c echo.Context) error {
	if err := s.resolver.Logout(c.Response(), c.Request()); err != nil {
		return apperrors.ExternalError("failed to end session", err)
	}
	return writeJSON(c, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCurrentUser(c echo.Context) error {
	return writeJSON(c, http.StatusOK, currentUser(c).Ref())
}

func (s *Server) startSession(c echo.Context, user *domain.User) error {
	if _, err := s.resolver.Login(c.Response(), c.Request(), user.ID); err != nil {
		return apperrors.ExternalError("failed to start session", err).WithContext("user_id", user.ID)
	}
	return nil
}
