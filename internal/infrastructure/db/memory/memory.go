// Package memory provides process-local implementations of the user and todo
// repositories. They back STORE_DRIVER=memory for local development and the
// end-to-end HTTP tests; data is lost when the process exits.
package memory

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/99minutos/todo-sync/internal/core/domain"
	"github.com/99minutos/todo-sync/internal/core/ports"
)

func newID() string {
	return primitive.NewObjectID().Hex()
}

func cloneUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

func cloneTodo(t *domain.Todo) *domain.Todo {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

// UserRepository is a mutex-guarded map of users keyed by ID.
type UserRepository struct {
	mu    sync.RWMutex
	users map[string]*domain.User
}

func NewUserRepository() *UserRepository {
	return &UserRepository{users: make(map[string]*domain.User)}
}

var _ ports.UserRepository = (*UserRepository)(nil)

func (r *UserRepository) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, nil
}

func (r *UserRepository) FindByToken(_ context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.Token == token {
			return cloneUser(u), nil
		}
	}
	return nil, nil
}

func (r *UserRepository) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == user.Email {
			return nil, domain.Conflict("User with this email already exists")
		}
		if user.Token != "" && u.Token == user.Token {
			return nil, domain.Conflict("token already in use")
		}
	}
	c := cloneUser(user)
	c.ID = newID()
	r.users[c.ID] = c
	return cloneUser(c), nil
}

func (r *UserRepository) Update(_ context.Context, user *domain.User) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.users[user.ID]
	if !ok {
		return nil, domain.NotFound("user not found")
	}
	current.Token = user.Token
	current.LastLoginAt = user.LastLoginAt
	current.UpdatedAt = user.UpdatedAt
	return cloneUser(current), nil
}

// TodoRepository is a mutex-guarded map of todos keyed by ID.
type TodoRepository struct {
	mu    sync.RWMutex
	todos map[string]*domain.Todo
	now   func() time.Time
}

func NewTodoRepository() *TodoRepository {
	return &TodoRepository{
		todos: make(map[string]*domain.Todo),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

var _ ports.TodoRepository = (*TodoRepository)(nil)

func (r *TodoRepository) Create(_ context.Context, todo *domain.Todo) (*domain.Todo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := cloneTodo(todo)
	c.ID = newID()
	r.todos[c.ID] = c
	return cloneTodo(c), nil
}

func (r *TodoRepository) ListByOwner(_ context.Context, ownerID string) ([]*domain.Todo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.Todo, 0)
	for _, t := range r.todos {
		if t.OwnerID == ownerID {
			out = append(out, cloneTodo(t))
		}
	}
	domain.SortNewestFirst(out)
	return out, nil
}

func (r *TodoRepository) FindByID(_ context.Context, id, ownerID string) (*domain.Todo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneTodo(r.owned(id, ownerID)), nil
}

func (r *TodoRepository) Update(_ context.Context, id, ownerID string, patch ports.TodoPatch) (*domain.Todo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := r.owned(id, ownerID)
	if t == nil {
		return nil, nil
	}
	if patch.Title != nil {
		t.Title = *patch.Title
	}
	if patch.Completed != nil {
		t.Completed = *patch.Completed
	}
	t.UpdatedAt = r.now()
	return cloneTodo(t), nil
}

func (r *TodoRepository) Delete(_ context.Context, id, ownerID string) (*domain.Todo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := r.owned(id, ownerID)
	if t == nil {
		return nil, nil
	}
	delete(r.todos, id)
	return t, nil
}

// owned must be called with r.mu held.
func (r *TodoRepository) owned(id, ownerID string) *domain.Todo {
	t, ok := r.todos[id]
	if !ok || t.OwnerID != ownerID {
		return nil
	}
	return t
}
