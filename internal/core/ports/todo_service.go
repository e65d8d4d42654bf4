package ports

import (
	"context"

	"github.com/99minutos/todo-sync/internal/core/domain"
)

// TodoService defines the use cases on todos. userID always comes from the
// authenticated session, never from the request body.
type TodoService interface {
	Create(ctx context.Context, userID, title string) (*domain.Todo, error)
	List(ctx context.Context, userID string) ([]*domain.Todo, error)
	// Update and Delete return (nil, nil) when no todo matches (id, userID).
	Update(ctx context.Context, todoID, userID string, patch TodoPatch) (*domain.Todo, error)
	Delete(ctx context.Context, todoID, userID string) (*domain.Todo, error)
}
