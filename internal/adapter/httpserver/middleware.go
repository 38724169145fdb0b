package httpserver

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/madhavanSPR/VDI-DASHBOARD/internal/domain"
	"github.com/madhavanSPR/VDI-DASHBOARD/internal/platform/correlation"
	apperrors "github.com/madhavanSPR/VDI-DASHBOARD/internal/platform/errors"
	"github.com/madhavanSPR/VDI-DASHBOARD/internal/session"
)

const (
	contextKeyUser   = "user"
	contextKeyUserID = "userID"
)

// ErrorHandlingMiddleware renders returned errors as {error, type} JSON.
// *echo.HTTPError passes through to echo's own handler.
func ErrorHandlingMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			var httpErr *echo.HTTPError
			if errors.As(err, &httpErr) {
				return err
			}

			structuredErr := apperrors.AsStructuredError(err)
			logError(c, structuredErr)

			if err := c.JSON(structuredErr.HTTPStatus(), structuredErr.ToResponse()); err != nil {
				return fmt.Errorf("failed to write error response: %w", err)
			}
			return nil
		}
	}
}

func logError(c echo.Context, err *apperrors.Error) {
	attrs := []any{
		"error_type", err.Type,
		"message", err.Message,
		"path", c.Request().URL.Path,
		"method", c.Request().Method,
		"status", err.HTTPStatus(),
	}

	for k, v := range err.Context {
		attrs = append(attrs, k, v)
	}

	if userID := c.Get(contextKeyUserID); userID != nil {
		attrs = append(attrs, "user_id", userID)
	}

	ctx := c.Request().Context()
	switch err.Type {
	case apperrors.TypeValidation, apperrors.TypeRejected, apperrors.TypeUnauthorized:
		slog.InfoContext(ctx, "Client error", attrs...)
	case apperrors.TypeNotFound:
		slog.InfoContext(ctx, "Not found", attrs...)
	case apperrors.TypeConflict:
		slog.WarnContext(ctx, "Conflict", attrs...)
	case apperrors.TypeInternal:
		if err.Cause != nil {
			attrs = append(attrs, "cause", err.Cause)
		}
		slog.ErrorContext(ctx, "Internal error", attrs...)
	case apperrors.TypeExternal:
		if err.Cause != nil {
			attrs = append(attrs, "cause", err.Cause)
		}
		slog.ErrorContext(ctx, "External service error", attrs...)
	default:
		slog.ErrorContext(ctx, "Unknown error type", attrs...)
	}
}

// requireAuth resolves the session before the handler runs. No ledger code is
// reached without an authenticated user.
func (s *Server) requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		user, err := s.resolver.Resolve(c.Request())
		if errors.Is(err, session.ErrUnauthenticated) {
			return apperrors.UnauthorizedError("authentication required")
		}
		if err != nil {
			return apperrors.ExternalError("session lookup failed", err)
		}

		c.Set(contextKeyUser, user)
		c.Set(contextKeyUserID, user.ID)
		c.SetRequest(c.Request().WithContext(correlation.WithUserID(c.Request().Context(), user.ID)))
		return next(c)
	}
}

// currentUser returns the user set by requireAuth.
func currentUser(c echo.Context) *domain.User {
	user, _ := c.Get(contextKeyUser).(*domain.User)
	return user
}
