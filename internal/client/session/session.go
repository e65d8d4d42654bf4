// Package session keeps the client's sign-in state: the bearer token lives
// in the local store under the well-known token key and is handed to every
// API call explicitly.
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/99minutos/todo-sync/internal/client/api"
	"github.com/99minutos/todo-sync/internal/client/localstore"
)

// ErrSignedOut is returned by calls that need a token when none is stored.
var ErrSignedOut = errors.New("session: not signed in")

// Auth is the subset of the API client the session needs.
type Auth interface {
	Register(ctx context.Context, email, password string) (*api.User, error)
	Login(ctx context.Context, email, password string) (string, error)
	Logout(ctx context.Context, token string) error
	Me(ctx context.Context, token string) (*api.User, error)
}

// Store is the durable key/value cache.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Clear(ctx context.Context) error
}

type Manager struct {
	auth  Auth
	store Store
	log   zerolog.Logger
}

func NewManager(auth Auth, store Store, log zerolog.Logger) *Manager {
	return &Manager{auth: auth, store: store, log: log}
}

// Register creates an account and signs it in with the token the server
// returned.
func (m *Manager) Register(ctx context.Context, email, password string) (*api.User, error) {
	user, err := m.auth.Register(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if user.Token != "" {
		if err := m.store.Set(ctx, localstore.KeyToken, []byte(user.Token)); err != nil {
			return nil, fmt.Errorf("session: save token: %w", err)
		}
	}
	return user, nil
}

func (m *Manager) Login(ctx context.Context, email, password string) error {
	token, err := m.auth.Login(ctx, email, password)
	if err != nil {
		return err
	}
	if err := m.store.Set(ctx, localstore.KeyToken, []byte(token)); err != nil {
		return fmt.Errorf("session: save token: %w", err)
	}
	m.log.Debug().Str("email", email).Msg("signed in")
	return nil
}

// Logout revokes the token on the server when it can and always wipes the
// local cache: the token, the cached todos and anything else stored for the
// account.
func (m *Manager) Logout(ctx context.Context) error {
	token, err := m.Token(ctx)
	if err != nil {
		return err
	}
	if token != "" {
		if err := m.auth.Logout(ctx, token); err != nil {
			m.log.Warn().Err(err).Msg("server logout failed, clearing local session anyway")
		}
	}

	if err := m.store.Clear(ctx); err != nil {
		return fmt.Errorf("session: clear local cache: %w", err)
	}
	return nil
}

// Token returns the stored token, or "" when signed out.
func (m *Manager) Token(ctx context.Context) (string, error) {
	raw, err := m.store.Get(ctx, localstore.KeyToken)
	if err != nil {
		return "", fmt.Errorf("session: read token: %w", err)
	}
	return string(raw), nil
}

func (m *Manager) Me(ctx context.Context) (*api.User, error) {
	token, err := m.Token(ctx)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, ErrSignedOut
	}
	return m.auth.Me(ctx, token)
}
