package handler

import (
	"time"

	"github.com/99minutos/todo-sync/internal/core/domain"
)

// errorResponse is the standard error envelope returned on all 4xx/5xx responses.
type errorResponse struct {
	Error string `json:"error"`
}

// --- Auth ---

type credentialsRequest struct {
	Email    string `json:"email"    validate:"required"`
	Password string `json:"password" validate:"required"`
}

type userResponse struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	Token       string     `json:"token,omitempty"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

type registerResponse struct {
	Message string       `json:"message"`
	User    userResponse `json:"user"`
}

type loginResponse struct {
	Token string `json:"token"`
}

type logoutResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// --- Todos ---

type createTodoRequest struct {
	Title string `json:"title" validate:"required"`
}

// updateTodoRequest only admits the fields a client may change; absent
// fields are nil and left untouched.
type updateTodoRequest struct {
	Title     *string `json:"title"`
	Completed *bool   `json:"completed"`
}

type todoResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Completed bool      `json:"completed"`
	OwnerID   string    `json:"ownerId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// --- Mappers ---

// toUserResponse never includes the password digest; the token is added by
// callers that are allowed to hand it out.
func toUserResponse(u *domain.User) userResponse {
	resp := userResponse{
		ID:        u.ID,
		Email:     u.Email,
		CreatedAt: u.CreatedAt.UTC(),
	}
	if !u.LastLoginAt.IsZero() {
		last := u.LastLoginAt.UTC()
		resp.LastLoginAt = &last
	}
	return resp
}

func toTodoResponse(t *domain.Todo) todoResponse {
	return todoResponse{
		ID:        t.ID,
		Title:     t.Title,
		Completed: t.Completed,
		OwnerID:   t.OwnerID,
		CreatedAt: t.CreatedAt.UTC(),
		UpdatedAt: t.UpdatedAt.UTC(),
	}
}

func toTodoListResponse(todos []*domain.Todo) []todoResponse {
	out := make([]todoResponse, len(todos))
	for i, t := range todos {
		out[i] = toTodoResponse(t)
	}
	return out
}
