// Package config loads process configuration from the environment with
// go-envconfig. The API server reads Config; the terminal client reads
// ClientConfig.
package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Store drivers accepted by STORE_DRIVER.
const (
	StoreMongo  = "mongo"
	StoreMemory = "memory"
)

type Config struct {
	Port     string `env:"PORT,      default=8080"`
	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`

	Auth  AuthConfig
	Store StoreConfig
	Mongo MongoConfig
	Redis RedisConfig
}

type AuthConfig struct {
	// TokenSecret signs bearer tokens. Changing it invalidates every issued token.
	TokenSecret    string `env:"TOKEN_SECRET, required"`
	BcryptCost     int    `env:"BCRYPT_COST,      default=10"`
	LoginRateLimit int    `env:"LOGIN_RATE_LIMIT, default=20"`
}

type StoreConfig struct {
	Driver string `env:"STORE_DRIVER, default=mongo"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=todo_sync"`
}

type RedisConfig struct {
	// Addr empty disables the token cache.
	Addr     string        `env:"REDIS_ADDR"`
	DB       int           `env:"REDIS_DB,        default=0"`
	CacheTTL time.Duration `env:"TOKEN_CACHE_TTL, default=5m"`
}

// IsDevelopment reports whether human-friendly logging should be used.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// ClientConfig configures the terminal client.
type ClientConfig struct {
	APIURL    string `env:"TODO_API_URL,    default=http://localhost:8080"`
	CachePath string `env:"TODO_CACHE_PATH"`
	LogLevel  string `env:"TODO_LOG_LEVEL,  default=warn"`
}

// Load reads the server configuration from environment variables.
func Load(ctx context.Context) (*Config, error) {
	return LoadWith(ctx, envconfig.OsLookuper())
}

// LoadWith reads the server configuration through l.
func LoadWith(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, fmt.Errorf("config: failed to load configuration: %w", err)
	}
	switch cfg.Store.Driver {
	case StoreMongo, StoreMemory:
	default:
		return nil, fmt.Errorf("config: unknown STORE_DRIVER %q", cfg.Store.Driver)
	}
	return &cfg, nil
}

// LoadClient reads the terminal client configuration through l.
func LoadClient(ctx context.Context, l envconfig.Lookuper) (*ClientConfig, error) {
	var cfg ClientConfig
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, fmt.Errorf("config: failed to load client configuration: %w", err)
	}
	return &cfg, nil
}
