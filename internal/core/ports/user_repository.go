package ports

import (
	"context"

	"github.com/99minutos/todo-sync/internal/core/domain"
)

// UserRepository defines persistence for user credentials.
//
// Lookups that find nothing return (nil, nil); only store faults are errors.
type UserRepository interface {
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByToken(ctx context.Context, token string) (*domain.User, error)
	// Create inserts the user and returns it with its assigned ID. A
	// duplicate email yields a domain Conflict error.
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	// Update overwrites the token, last login and updated timestamps of an
	// existing user; a missing user is a NotFound error. Last write wins.
	Update(ctx context.Context, user *domain.User) (*domain.User, error)
}
