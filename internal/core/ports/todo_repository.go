package ports

import (
	"context"

	"github.com/99minutos/todo-sync/internal/core/domain"
)

// TodoPatch carries the only fields a client may change on a todo. Nil
// fields are left untouched.
type TodoPatch struct {
	Title     *string
	Completed *bool
}

// Empty reports whether the patch changes nothing.
func (p TodoPatch) Empty() bool {
	return p.Title == nil && p.Completed == nil
}

// TodoRepository defines persistence for todos. Every id-based operation is
// scoped by owner: a todo that exists but belongs to someone else is
// reported exactly like a missing one, as (nil, nil).
type TodoRepository interface {
	Create(ctx context.Context, todo *domain.Todo) (*domain.Todo, error)
	// ListByOwner returns the owner's todos ordered by creation time, newest first.
	ListByOwner(ctx context.Context, ownerID string) ([]*domain.Todo, error)
	FindByID(ctx context.Context, id, ownerID string) (*domain.Todo, error)
	Update(ctx context.Context, id, ownerID string, patch TodoPatch) (*domain.Todo, error)
	Delete(ctx context.Context, id, ownerID string) (*domain.Todo, error)
}
