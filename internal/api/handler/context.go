package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/99minutos/todo-sync/internal/core/domain"
)

const userContextKey = "user"

// SetCurrentUser attaches the identity resolved by the session middleware.
func SetCurrentUser(c echo.Context, user *domain.User) {
	c.Set(userContextKey, user)
}

// CurrentUser returns the authenticated user, or nil when the request
// carried no bearer token.
func CurrentUser(c echo.Context) *domain.User {
	user, _ := c.Get(userContextKey).(*domain.User)
	return user
}

// requireUser is the fast-fail check handlers run before any service call.
// The RequireUser middleware normally rejects the request first.
func requireUser(c echo.Context) (*domain.User, error) {
	user := CurrentUser(c)
	if user == nil || user.ID == "" {
		return nil, domain.Unauthorized("authentication required")
	}
	return user, nil
}
