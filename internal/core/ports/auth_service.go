package ports

import (
	"context"

	"github.com/99minutos/todo-sync/internal/core/domain"
)

type AuthService interface {
	Register(ctx context.Context, email, password string) (*domain.User, error)
	// Authenticate returns (nil, nil) for an unknown email or a wrong password.
	Authenticate(ctx context.Context, email, password string) (*domain.User, error)
	ResolveToken(ctx context.Context, token string) (*domain.User, error)
	RegenerateToken(ctx context.Context, user *domain.User) (*domain.User, error)
}

// TokenCache is an optional read-through cache in front of token lookups.
// A miss is (nil, nil).
type TokenCache interface {
	Get(ctx context.Context, token string) (*domain.User, error)
	Set(ctx context.Context, token string, user *domain.User) error
	Delete(ctx context.Context, token string) error
}
