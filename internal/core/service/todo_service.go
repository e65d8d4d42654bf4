package service

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/todo-sync/internal/core/domain"
	"github.com/99minutos/todo-sync/internal/core/ports"
)

type TodoService struct {
	repo   ports.TodoRepository
	logger zerolog.Logger
	now    func() time.Time
}

func NewTodoService(repo ports.TodoRepository, logger zerolog.Logger) *TodoService {
	return &TodoService{
		repo:   repo,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *TodoService) Create(ctx context.Context, userID, title string) (*domain.Todo, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, domain.Validation("Title is required")
	}

	now := s.now()
	todo, err := s.repo.Create(ctx, &domain.Todo{
		Title:     title,
		Completed: false,
		OwnerID:   userID,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("failed to create todo")
		return nil, err
	}

	s.logger.Info().Str("todo_id", todo.ID).Str("user_id", userID).Msg("todo created")
	return todo, nil
}

// List returns the user's todos newest first; never nil.
func (s *TodoService) List(ctx context.Context, userID string) ([]*domain.Todo, error) {
	todos, err := s.repo.ListByOwner(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("failed to list todos")
		return nil, err
	}
	if todos == nil {
		todos = []*domain.Todo{}
	}
	domain.SortNewestFirst(todos)

	s.logger.Debug().Int("count", len(todos)).Str("user_id", userID).Msg("todos fetched")
	return todos, nil
}

func (s *TodoService) Update(ctx context.Context, todoID, userID string, patch ports.TodoPatch) (*domain.Todo, error) {
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return nil, domain.Validation("Title cannot be empty")
		}
		patch.Title = &title
	}

	var (
		todo *domain.Todo
		err  error
	)
	if patch.Empty() {
		todo, err = s.repo.FindByID(ctx, todoID, userID)
	} else {
		todo, err = s.repo.Update(ctx, todoID, userID, patch)
	}
	if err != nil {
		s.logger.Error().Err(err).Str("todo_id", todoID).Msg("failed to update todo")
		return nil, err
	}
	if todo == nil {
		s.logger.Debug().Str("todo_id", todoID).Str("user_id", userID).Msg("todo not found")
		return nil, nil
	}

	s.logger.Info().Str("todo_id", todo.ID).Msg("todo updated")
	return todo, nil
}

func (s *TodoService) Delete(ctx context.Context, todoID, userID string) (*domain.Todo, error) {
	todo, err := s.repo.Delete(ctx, todoID, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("todo_id", todoID).Msg("failed to delete todo")
		return nil, err
	}
	if todo == nil {
		s.logger.Debug().Str("todo_id", todoID).Str("user_id", userID).Msg("todo not found")
		return nil, nil
	}

	s.logger.Info().Str("todo_id", todo.ID).Msg("todo deleted")
	return todo, nil
}
