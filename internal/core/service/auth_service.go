package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/99minutos/todo-sync/internal/core/domain"
	"github.com/99minutos/todo-sync/internal/core/ports"
)

// AuthConfig holds the knobs of AuthService.
type AuthConfig struct {
	TokenSecret string
	// BcryptCost defaults to bcrypt.DefaultCost when out of range.
	BcryptCost int
}

// AuthService implements registration, password authentication and bearer
// token handling.
type AuthService struct {
	repo   ports.UserRepository
	cache  ports.TokenCache
	cached bool
	tokens tokenIssuer
	cost   int
	log    zerolog.Logger
	now    func() time.Time
}

// NewAuthService wires the service. cache may be nil, in which case every
// token resolution goes to the repository.
func NewAuthService(repo ports.UserRepository, cache ports.TokenCache, cfg AuthConfig, log zerolog.Logger) *AuthService {
	cost := cfg.BcryptCost
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	cached := cache != nil
	if !cached {
		cache = noopTokenCache{}
	}
	return &AuthService{
		repo:   repo,
		cache:  cache,
		cached: cached,
		tokens: tokenIssuer{secret: []byte(cfg.TokenSecret)},
		cost:   cost,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *AuthService) Register(ctx context.Context, email, password string) (*domain.User, error) {
	if strings.TrimSpace(email) == "" {
		return nil, domain.Validation("Email is required")
	}
	if password == "" {
		return nil, domain.Validation("Password is required")
	}

	existing, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.Conflict("User with this email already exists")
	}

	digest, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, domain.Validation("Password is too long")
		}
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	token, err := s.tokens.issue(now)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	created, err := s.repo.Create(ctx, &domain.User{
		Email:          email,
		PasswordDigest: string(digest),
		Token:          token,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("user_id", created.ID).Msg("user registered")
	return created, nil
}

func (s *AuthService) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	if strings.TrimSpace(email) == "" {
		return nil, domain.Validation("Email is required")
	}
	if password == "" {
		return nil, domain.Validation("Password is required")
	}

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		s.log.Debug().Msg("authentication failed: unknown email")
		return nil, nil
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordDigest), []byte(password)) != nil {
		s.log.Debug().Str("user_id", user.ID).Msg("authentication failed: password mismatch")
		return nil, nil
	}

	now := s.now()
	user.LastLoginAt = now
	user.UpdatedAt = now
	if user.Token == "" {
		if user.Token, err = s.tokens.issue(now); err != nil {
			return nil, fmt.Errorf("issue token: %w", err)
		}
	}

	updated, err := s.repo.Update(ctx, user)
	if err != nil {
		return nil, err
	}
	s.evict(ctx, updated.Token)

	s.log.Info().Str("user_id", updated.ID).Msg("user authenticated")
	return updated, nil
}

// ResolveToken looks a bearer token up without touching the user record.
func (s *AuthService) ResolveToken(ctx context.Context, token string) (*domain.User, error) {
	if token == "" || !s.tokens.verify(token) {
		return nil, nil
	}

	cached, err := s.cache.Get(ctx, token)
	if err != nil {
		s.log.Warn().Err(err).Msg("token cache lookup failed, falling back to store")
	} else if cached != nil {
		return cached, nil
	}

	user, err := s.repo.FindByToken(ctx, token)
	if err != nil || user == nil {
		return nil, err
	}

	if !s.cached {
		return user, nil
	}
	if err := s.cache.Set(ctx, token, user); err != nil {
		s.log.Warn().Err(err).Str("user_id", user.ID).Msg("token cache fill failed")
		return user, nil
	}

	// A regeneration may have landed between the lookup and the fill and
	// already evicted this token; read again so the entry cannot outlive it.
	current, err := s.repo.FindByToken(ctx, token)
	if err != nil {
		s.evict(ctx, token)
		return user, nil
	}
	if current == nil || current.ID != user.ID {
		s.evict(ctx, token)
		s.log.Debug().Str("user_id", user.ID).Msg("token revoked during lookup")
		return nil, nil
	}
	return user, nil
}

// RegenerateToken replaces the user's token, invalidating the previous one.
// The change is persisted only for users that already exist in the store.
func (s *AuthService) RegenerateToken(ctx context.Context, user *domain.User) (*domain.User, error) {
	if user == nil {
		return nil, domain.Validation("User is required")
	}

	now := s.now()
	token, err := s.tokens.issue(now)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	previous := user.Token
	next := *user
	next.Token = token

	if next.Persisted() {
		next.UpdatedAt = now
		saved, err := s.repo.Update(ctx, &next)
		if err != nil {
			return nil, err
		}
		next = *saved
		s.log.Info().Str("user_id", next.ID).Msg("token regenerated")
	}

	s.evict(ctx, previous)
	return &next, nil
}

func (s *AuthService) evict(ctx context.Context, token string) {
	if token == "" {
		return
	}
	if err := s.cache.Delete(ctx, token); err != nil {
		s.log.Warn().Err(err).Msg("token cache eviction failed")
	}
}

type noopTokenCache struct{}

func (noopTokenCache) Get(context.Context, string) (*domain.User, error) { return nil, nil }

func (noopTokenCache) Set(context.Context, string, *domain.User) error { return nil }

func (noopTokenCache) Delete(context.Context, string) error { return nil }
