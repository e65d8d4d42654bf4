package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	defaultTimeout       = 10 * time.Second
	defaultRetryAttempts = 5
	defaultRetryBackoff  = 5 * time.Second
)

// Config captures the settings required to establish a MongoDB connection.
type Config struct {
	URI      string
	Database string
	Timeout  time.Duration
	// RetryAttempts bounds ConnectWithRetry; RetryBackoff is the pause between attempts.
	RetryAttempts int
	RetryBackoff  time.Duration
}

// Connect establishes a MongoDB client, verifies connectivity with a ping, and
// returns both the client and the selected database. A default timeout is
// applied when none is provided.
func Connect(ctx context.Context, cfg Config) (*mongo.Client, *mongo.Database, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, nil, fmt.Errorf("mongo connect: %w", err)
	}

	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("mongo ping: %w", err)
	}

	return client, client.Database(cfg.Database), nil
}

// ConnectWithRetry calls Connect until it succeeds, the attempts are used up,
// or ctx is cancelled.
func ConnectWithRetry(ctx context.Context, cfg Config, log zerolog.Logger) (*mongo.Client, *mongo.Database, error) {
	attempts := cfg.RetryAttempts
	if attempts <= 0 {
		attempts = defaultRetryAttempts
	}
	backoff := cfg.RetryBackoff
	if backoff <= 0 {
		backoff = defaultRetryBackoff
	}

	var lastErr error
	for i := 1; i <= attempts; i++ {
		client, db, err := Connect(ctx, cfg)
		if err == nil {
			log.Info().Str("database", cfg.Database).Int("attempt", i).Msg("mongodb connected")
			return client, db, nil
		}
		lastErr = err
		log.Warn().Err(err).Int("attempt", i).Dur("retry_in", backoff).Msg("mongodb connection unsuccessful")

		if i == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
	return nil, nil, fmt.Errorf("mongo: giving up after %d attempts: %w", attempts, lastErr)
}

// EnsureIndexes creates the indexes both repositories rely on.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	if err := NewUserRepository(db).EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("user indexes: %w", err)
	}
	if err := NewTodoRepository(db).EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("todo indexes: %w", err)
	}
	return nil
}
