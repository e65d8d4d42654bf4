package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/99minutos/todo-sync/internal/api/metrics"
	"github.com/99minutos/todo-sync/internal/core/domain"
	"github.com/99minutos/todo-sync/internal/core/ports"
)

const (
	msgCredentialsRequired = "Email and password are required"
	msgBadCredentials      = "Email or password is incorrect"
)

type AuthHandler struct {
	authService ports.AuthService
	log         zerolog.Logger
}

func NewAuthHandler(authService ports.AuthService, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, log: log}
}

// Register creates a new user account and signs it in.
//
// @Summary      Register a new user
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      credentialsRequest  true  "Email and password"
// @Success      201   {object}  registerResponse
// @Failure      400   {object}  errorResponse
// @Failure      500   {object}  errorResponse
// @Router       /auth/register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid payload"})
	}

	user, err := h.authService.Register(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		metrics.AuthAttemptsTotal.WithLabelValues("register", outcome(err)).Inc()
		return err
	}
	metrics.AuthAttemptsTotal.WithLabelValues("register", "success").Inc()

	view := toUserResponse(user)
	view.Token = user.Token
	return c.JSON(http.StatusCreated, registerResponse{
		Message: "User registered successfully",
		User:    view,
	})
}

// Login exchanges credentials for the user's bearer token.
//
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      credentialsRequest  true  "Login credentials"
// @Success      200   {object}  loginResponse
// @Failure      400   {object}  errorResponse
// @Failure      429   {object}  errorResponse
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid payload"})
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		metrics.AuthAttemptsTotal.WithLabelValues("login", "rejected").Inc()
		return c.JSON(http.StatusBadRequest, errorResponse{Error: msgCredentialsRequired})
	}

	user, err := h.authService.Authenticate(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		metrics.AuthAttemptsTotal.WithLabelValues("login", outcome(err)).Inc()
		return err
	}
	if user == nil {
		metrics.AuthAttemptsTotal.WithLabelValues("login", "rejected").Inc()
		return c.JSON(http.StatusBadRequest, errorResponse{Error: msgBadCredentials})
	}

	metrics.AuthAttemptsTotal.WithLabelValues("login", "success").Inc()
	return c.JSON(http.StatusOK, loginResponse{Token: user.Token})
}

// Logout replaces the caller's token, revoking the one used for this request.
//
// @Summary      Logout
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  logoutResponse
// @Failure      401  {object}  errorResponse
// @Failure      500  {object}  logoutResponse
// @Router       /auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	user, err := requireUser(c)
	if err != nil {
		return err
	}

	if _, err := h.authService.RegenerateToken(c.Request().Context(), user); err != nil {
		metrics.AuthAttemptsTotal.WithLabelValues("logout", "error").Inc()
		h.log.Error().Err(err).Str("user_id", user.ID).Msg("logout failed")
		return c.JSON(http.StatusInternalServerError, logoutResponse{Success: false, Message: "Error logging out"})
	}

	metrics.AuthAttemptsTotal.WithLabelValues("logout", "success").Inc()
	return c.JSON(http.StatusOK, logoutResponse{Success: true, Message: "Logged out successfully"})
}

// Me returns the authenticated user.
//
// @Summary      Current user
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  userResponse
// @Failure      401  {object}  errorResponse
// @Router       /auth/me [get]
func (h *AuthHandler) Me(c echo.Context) error {
	user, err := requireUser(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toUserResponse(user))
}

func outcome(err error) string {
	switch domain.KindOf(err) {
	case domain.KindValidation, domain.KindConflict, domain.KindAuth:
		return "rejected"
	default:
		return "error"
	}
}
