package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"
	"golang.org/x/time/rate"

	_ "github.com/99minutos/todo-sync/docs"
	"github.com/99minutos/todo-sync/internal/api/handler"
	"github.com/99minutos/todo-sync/internal/api/middleware"
	"github.com/99minutos/todo-sync/internal/core/ports"
	"github.com/99minutos/todo-sync/internal/infrastructure/http/handlers"
)

// Deps carries everything the router needs. Storage is already hidden
// behind the services; Checks lists the readiness probes for the backends
// the process was started with.
type Deps struct {
	AuthService ports.AuthService
	TodoService ports.TodoService
	Checks      map[string]handlers.Check
	Logger      zerolog.Logger

	// LoginRateLimit is the number of login attempts allowed per client IP
	// per minute. Zero disables the limiter.
	LoginRateLimit int

	// MetricsRegisterer receives the HTTP request collectors. Nil means the
	// default Prometheus registry, which is also what /metrics exposes.
	MetricsRegisterer prometheus.Registerer
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Logger)
	e.Validator = handler.NewValidator()

	registerer := deps.MetricsRegisterer
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(deps.Logger))
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  "todo",
		Registerer: registerer,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics"
		},
	}))

	// --- Dependencies ---
	authHandler := handler.NewAuthHandler(deps.AuthService, deps.Logger)
	todoHandler := handler.NewTodoHandler(deps.TodoService)
	session := middleware.Session(deps.AuthService)
	requireUser := middleware.RequireUser()

	// --- Auth routes ---
	auth := e.Group("/auth", session)
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login, loginLimiter(deps.LoginRateLimit)...)
	auth.POST("/logout", authHandler.Logout, requireUser)
	auth.GET("/me", authHandler.Me, requireUser)

	// --- Todo routes (owner-scoped) ---
	todos := e.Group("/todos", session, requireUser)
	todos.POST("", todoHandler.Create)
	todos.GET("", todoHandler.List)
	todos.PUT("/:id", todoHandler.Update)
	todos.DELETE("/:id", todoHandler.Delete)

	// --- Health probes (no auth required) ---
	healthHandler := handlers.NewHealthHandler()
	healthDepsHandler := handlers.NewHealthDependenciesHandler(deps.Checks)

	e.GET("/health", healthHandler.Liveness)            // liveness  – is the process alive?
	e.GET("/health/ready", healthDepsHandler.Readiness) // readiness – are dependencies up?

	// --- Operations ---
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}

func loginLimiter(perMinute int) []echo.MiddlewareFunc {
	if perMinute <= 0 {
		return nil
	}
	store := echomiddleware.NewRateLimiterMemoryStoreWithConfig(echomiddleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(float64(perMinute) / 60),
		Burst:     perMinute,
		ExpiresIn: 3 * time.Minute,
	})
	return []echo.MiddlewareFunc{echomiddleware.RateLimiterWithConfig(echomiddleware.RateLimiterConfig{
		Store: store,
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return echo.NewHTTPError(http.StatusTooManyRequests, "Too many login attempts, try again later")
		},
	})}
}

// requestLogger writes one zerolog line per request in place of echo's
// default text logger.
func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			event := log.Info()
			if v.Error != nil || v.Status >= http.StatusInternalServerError {
				event = log.Warn().Err(v.Error)
			}
			event.
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}
