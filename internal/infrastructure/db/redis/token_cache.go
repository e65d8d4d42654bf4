package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/99minutos/todo-sync/internal/core/domain"
)

const defaultTokenTTL = 5 * time.Minute

// TokenCache caches token → user lookups in Redis.
// Key format: session:<token>
type TokenCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewTokenCache creates a TokenCache wrapping the given Redis client. A
// non-positive ttl falls back to defaultTokenTTL.
func NewTokenCache(client *redis.Client, ttl time.Duration) *TokenCache {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &TokenCache{client: client, ttl: ttl}
}

// cachedUser is the cached view of a user. The password digest is never
// written to the cache.
type cachedUser struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	LastLoginAt time.Time `json:"last_login_at"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Get returns the cached user for token, or (nil, nil) on a miss.
func (c *TokenCache) Get(ctx context.Context, token string) (*domain.User, error) {
	raw, err := c.client.Get(ctx, c.key(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			tokenCacheLookups.WithLabelValues("miss").Inc()
			return nil, nil
		}
		return nil, fmt.Errorf("token cache get: %w", err)
	}

	var cu cachedUser
	if err := json.Unmarshal(raw, &cu); err != nil {
		return nil, fmt.Errorf("token cache decode: %w", err)
	}
	tokenCacheLookups.WithLabelValues("hit").Inc()
	return &domain.User{
		ID:          cu.ID,
		Email:       cu.Email,
		Token:       token,
		LastLoginAt: cu.LastLoginAt,
		CreatedAt:   cu.CreatedAt,
		UpdatedAt:   cu.UpdatedAt,
	}, nil
}

// Set stores the user under token for the configured TTL.
func (c *TokenCache) Set(ctx context.Context, token string, user *domain.User) error {
	raw, err := json.Marshal(cachedUser{
		ID:          user.ID,
		Email:       user.Email,
		LastLoginAt: user.LastLoginAt,
		CreatedAt:   user.CreatedAt,
		UpdatedAt:   user.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("token cache encode: %w", err)
	}
	return c.client.Set(ctx, c.key(token), raw, c.ttl).Err()
}

// Delete evicts token. Evicting an absent key is not an error.
func (c *TokenCache) Delete(ctx context.Context, token string) error {
	return c.client.Del(ctx, c.key(token)).Err()
}

func (c *TokenCache) key(token string) string {
	return "session:" + token
}
