// Package todosync keeps a local copy of the signed-in user's todos in step
// with the server. The local list is mirrored into the durable cache after
// every change so a restarted client can show it before the next Load.
package todosync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/99minutos/todo-sync/internal/client/api"
	"github.com/99minutos/todo-sync/internal/client/localstore"
)

// LocalIDPrefix marks ids of placeholders created while the server was unreachable.
const LocalIDPrefix = "local-"

var (
	ErrUnknownTodo = errors.New("todosync: unknown todo")
	ErrEmptyTitle  = errors.New("todosync: title is required")
)

type State int

const (
	Idle State = iota
	Loading
	Synced
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Synced:
		return "synced"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Todo is the client-side record. Local is set on placeholders that exist
// only on this device; they are never pushed to the server automatically.
type Todo struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Completed bool      `json:"completed"`
	OwnerID   string    `json:"ownerId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Local     bool      `json:"local,omitempty"`
}

func fromAPI(t *api.Todo) Todo {
	return Todo{
		ID:        t.ID,
		Title:     t.Title,
		Completed: t.Completed,
		OwnerID:   t.OwnerID,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

// Remote is the part of the API client the syncer calls.
type Remote interface {
	ListTodos(ctx context.Context, token string) ([]json.RawMessage, error)
	CreateTodo(ctx context.Context, token, title string) (*api.Todo, error)
	UpdateTodo(ctx context.Context, token, id string, patch api.TodoPatch) (*api.Todo, error)
	DeleteTodo(ctx context.Context, token, id string) error
}

type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// TokenSource supplies the bearer token for each call.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

type snapshot struct {
	gen   uint64
	todos []Todo
}

// Syncer owns the local todo list. mu is never held across a network call,
// so overlapping actions proceed independently.
type Syncer struct {
	remote Remote
	store  Store
	tokens TokenSource
	log    zerolog.Logger
	now    func() time.Time

	mu    sync.Mutex
	state State
	todos []Todo
	gen   uint64

	saveMu   sync.Mutex
	savedGen uint64
}

func New(remote Remote, store Store, tokens TokenSource, log zerolog.Logger) *Syncer {
	return &Syncer{
		remote: remote,
		store:  store,
		tokens: tokens,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
		todos:  []Todo{},
	}
}

func (s *Syncer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Todos returns a copy of the local list.
func (s *Syncer) Todos() []Todo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.todos)
}

// Restore replaces the local list with the durable cache.
func (s *Syncer) Restore(ctx context.Context) error {
	cached, err := s.readCache(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.todos = cached
	s.mu.Unlock()
	return nil
}

// Load fetches the server list and merges it with the cache. When the
// fetch fails the local list becomes the cached one and the failure is
// returned for the caller to report; the state ends Synced either way.
func (s *Syncer) Load(ctx context.Context) error {
	s.mu.Lock()
	s.state = Loading
	s.mu.Unlock()

	token, err := s.tokens.Token(ctx)
	var items []json.RawMessage
	if err == nil {
		items, err = s.remote.ListTodos(ctx, token)
	}

	cached, cacheErr := s.readCache(ctx)
	if cacheErr != nil {
		s.log.Warn().Err(cacheErr).Msg("unreadable todo cache ignored")
		cached = []Todo{}
	}

	next := cached
	if err == nil {
		next, err = merge(items, cached)
	}
	if err != nil {
		s.log.Warn().Err(err).Int("cached", len(cached)).Msg("load failed, showing cached todos")
		next = cached
	}

	s.mu.Lock()
	s.todos = next
	s.state = Synced
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if err == nil {
		s.persist(ctx, snap)
	}
	return err
}

// Add creates a todo on the server and appends it. If the server cannot be
// reached a placeholder is appended instead and the error is returned.
func (s *Syncer) Add(ctx context.Context, title string) (Todo, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return Todo{}, ErrEmptyTitle
	}

	token, err := s.tokens.Token(ctx)
	var created *api.Todo
	if err == nil {
		created, err = s.remote.CreateTodo(ctx, token, title)
	}

	var item Todo
	if err != nil {
		now := s.now()
		item = Todo{
			ID:        LocalIDPrefix + uuid.NewString(),
			Title:     title,
			CreatedAt: now,
			UpdatedAt: now,
			Local:     true,
		}
		s.log.Warn().Err(err).Str("todo_id", item.ID).Msg("create failed, keeping local placeholder")
	} else {
		item = fromAPI(created)
	}

	s.mu.Lock()
	s.todos = append(s.todos, item)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.persist(ctx, snap)
	return item, err
}

// Toggle flips completion locally, then on the server. A server failure
// restores the previous record and is returned.
func (s *Syncer) Toggle(ctx context.Context, id string) (Todo, error) {
	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return Todo{}, ErrUnknownTodo
	}
	prev := s.todos[i]
	s.todos[i].Completed = !prev.Completed
	s.todos[i].UpdatedAt = s.now()
	optimistic := s.todos[i]
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.persist(ctx, snap)
	if prev.Local {
		return optimistic, nil
	}

	token, err := s.tokens.Token(ctx)
	var updated *api.Todo
	if err == nil {
		completed := optimistic.Completed
		updated, err = s.remote.UpdateTodo(ctx, token, id, api.TodoPatch{Completed: &completed})
	}

	result := prev
	if err == nil {
		result = fromAPI(updated)
	} else {
		s.log.Warn().Err(err).Str("todo_id", id).Msg("toggle failed, rolling back")
	}

	s.mu.Lock()
	if i := s.indexLocked(id); i >= 0 {
		s.todos[i] = result
	}
	snap = s.snapshotLocked()
	s.mu.Unlock()

	s.persist(ctx, snap)
	return result, err
}

// Delete removes a todo locally, then on the server. A todo the server no
// longer has counts as deleted; any other failure puts it back where it was.
func (s *Syncer) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return ErrUnknownTodo
	}
	removed := s.todos[i]
	s.todos = append(s.todos[:i:i], s.todos[i+1:]...)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.persist(ctx, snap)
	if removed.Local {
		return nil
	}

	token, err := s.tokens.Token(ctx)
	if err == nil {
		err = s.remote.DeleteTodo(ctx, token, id)
	}
	if err == nil || errors.Is(err, api.ErrNotFound) {
		return nil
	}

	s.log.Warn().Err(err).Str("todo_id", id).Msg("delete failed, restoring")
	s.mu.Lock()
	if s.indexLocked(id) < 0 {
		s.todos = slices.Insert(s.todos, min(i, len(s.todos)), removed)
	}
	snap = s.snapshotLocked()
	s.mu.Unlock()

	s.persist(ctx, snap)
	return err
}

func (s *Syncer) indexLocked(id string) int {
	return slices.IndexFunc(s.todos, func(t Todo) bool { return t.ID == id })
}

func (s *Syncer) snapshotLocked() snapshot {
	s.gen++
	todos := slices.Clone(s.todos)
	if todos == nil {
		todos = []Todo{}
	}
	return snapshot{gen: s.gen, todos: todos}
}

// persist writes snap unless a newer snapshot has already been saved.
func (s *Syncer) persist(ctx context.Context, snap snapshot) {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	if snap.gen <= s.savedGen {
		return
	}

	raw, err := json.Marshal(snap.todos)
	if err != nil {
		s.log.Error().Err(err).Msg("encode todo cache")
		return
	}
	if err := s.store.Set(ctx, localstore.KeyTodos, raw); err != nil {
		s.log.Warn().Err(err).Msg("todo cache write failed")
		return
	}
	s.savedGen = snap.gen
}

func (s *Syncer) readCache(ctx context.Context) ([]Todo, error) {
	raw, err := s.store.Get(ctx, localstore.KeyTodos)
	if err != nil {
		return nil, fmt.Errorf("todosync: read cache: %w", err)
	}
	todos := []Todo{}
	if len(raw) == 0 {
		return todos, nil
	}
	if err := json.Unmarshal(raw, &todos); err != nil {
		return nil, fmt.Errorf("todosync: decode cache: %w", err)
	}
	if todos == nil {
		todos = []Todo{}
	}
	return todos, nil
}
