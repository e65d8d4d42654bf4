package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/99minutos/todo-sync/internal/api"
	"github.com/99minutos/todo-sync/internal/core/ports"
	"github.com/99minutos/todo-sync/internal/core/service"
	"github.com/99minutos/todo-sync/internal/infrastructure/db/memory"
	mongodb "github.com/99minutos/todo-sync/internal/infrastructure/db/mongo"
	redisdb "github.com/99minutos/todo-sync/internal/infrastructure/db/redis"
	"github.com/99minutos/todo-sync/internal/infrastructure/http/handlers"
	"github.com/99minutos/todo-sync/internal/pkg/config"
	"github.com/99minutos/todo-sync/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		l := logger.Init(logger.Options{Pretty: true})
		l.Fatal().Err(err).Msg("invalid configuration")
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.IsDevelopment(),
		Service: "todo-api",
	})

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	checks := make(map[string]handlers.Check)

	// --- Storage ---
	var (
		users ports.UserRepository
		todos ports.TodoRepository
	)
	switch cfg.Store.Driver {
	case config.StoreMemory:
		log.Warn().Msg("using in-memory store, data is lost on exit")
		users = memory.NewUserRepository()
		todos = memory.NewTodoRepository()
	default:
		client, db, err := mongodb.ConnectWithRetry(ctx, mongodb.Config{
			URI:      cfg.Mongo.URI,
			Database: cfg.Mongo.Database,
		}, log)
		if err != nil {
			return err
		}
		defer func() {
			_ = client.Disconnect(context.Background())
		}()
		if err := mongodb.EnsureIndexes(ctx, db); err != nil {
			return err
		}
		users = mongodb.NewUserRepository(db)
		todos = mongodb.NewTodoRepository(db)
		checks["mongodb"] = handlers.MongoCheck(db)
	}

	// --- Token cache (optional) ---
	var cache ports.TokenCache
	redisCfg := redisdb.Config{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB}
	if redisCfg.Enabled() {
		rdb, err := redisdb.Connect(ctx, redisCfg)
		if err != nil {
			return err
		}
		defer func(c *goredis.Client) { _ = c.Close() }(rdb)
		cache = redisdb.NewTokenCache(rdb, cfg.Redis.CacheTTL)
		checks["redis"] = handlers.RedisCheck(rdb)
		log.Info().Str("addr", cfg.Redis.Addr).Dur("ttl", cfg.Redis.CacheTTL).Msg("token cache enabled")
	}

	// --- Services ---
	authService := service.NewAuthService(users, cache, service.AuthConfig{
		TokenSecret: cfg.Auth.TokenSecret,
		BcryptCost:  cfg.Auth.BcryptCost,
	}, logger.For("auth"))
	todoService := service.NewTodoService(todos, logger.For("todos"))

	e := api.NewRouter(api.Deps{
		AuthService:    authService,
		TodoService:    todoService,
		Checks:         checks,
		Logger:         logger.For("http"),
		LoginRateLimit: cfg.Auth.LoginRateLimit,
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("store", cfg.Store.Driver).Msg("listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
