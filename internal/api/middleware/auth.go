package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/todo-sync/internal/api/handler"
	"github.com/99minutos/todo-sync/internal/core/domain"
)

// TokenResolver maps a bearer token to its user. An unknown token resolves
// to (nil, nil).
type TokenResolver interface {
	ResolveToken(ctx context.Context, token string) (*domain.User, error)
}

// Session resolves the bearer token, when one is sent, and injects the user
// into context. A request without an Authorization header passes through
// unauthenticated; the route decides whether that is allowed.
func Session(resolver TokenResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				return next(c)
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header")
			}

			user, err := resolver.ResolveToken(c.Request().Context(), strings.TrimSpace(parts[1]))
			if err != nil {
				return err
			}
			if user == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			handler.SetCurrentUser(c, user)
			return next(c)
		}
	}
}

// RequireUser rejects requests that Session did not authenticate.
func RequireUser() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if handler.CurrentUser(c) == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			return next(c)
		}
	}
}
