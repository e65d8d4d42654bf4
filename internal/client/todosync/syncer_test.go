package todosync

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/99minutos/todo-sync/internal/client/api"
	"github.com/99minutos/todo-sync/internal/client/localstore"
)

var errOffline = errors.New("dial tcp: connection refused")

type fakeRemote struct {
	mu      sync.Mutex
	listFn  func() ([]json.RawMessage, error)
	create  func(title string) (*api.Todo, error)
	update  func(id string, patch api.TodoPatch) (*api.Todo, error)
	del     func(id string) error
	calls   []string
	tokens  []string
	patches []api.TodoPatch
}

func (f *fakeRemote) record(call, token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	f.tokens = append(f.tokens, token)
}

func (f *fakeRemote) ListTodos(_ context.Context, token string) ([]json.RawMessage, error) {
	f.record("list", token)
	return f.listFn()
}

func (f *fakeRemote) CreateTodo(_ context.Context, token, title string) (*api.Todo, error) {
	f.record("create", token)
	return f.create(title)
}

func (f *fakeRemote) UpdateTodo(_ context.Context, token, id string, patch api.TodoPatch) (*api.Todo, error) {
	f.record("update", token)
	f.mu.Lock()
	f.patches = append(f.patches, patch)
	f.mu.Unlock()
	return f.update(id, patch)
}

func (f *fakeRemote) DeleteTodo(_ context.Context, token, id string) error {
	f.record("delete", token)
	return f.del(id)
}

type staticToken string

func (t staticToken) Token(context.Context) (string, error) { return string(t), nil }

func rawList(t *testing.T, s string) func() ([]json.RawMessage, error) {
	t.Helper()
	var items []json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(s), &items))
	return func() ([]json.RawMessage, error) { return items, nil }
}

func newSyncer(t *testing.T, remote *fakeRemote) (*Syncer, *localstore.Store) {
	t.Helper()
	store, err := localstore.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return New(remote, store, staticToken("tok"), zerolog.Nop()), store
}

func seedCache(t *testing.T, store *localstore.Store, todos []Todo) {
	t.Helper()
	raw, err := json.Marshal(todos)
	require.NoError(t, err)
	require.NoError(t, store.Set(context.Background(), localstore.KeyTodos, raw))
}

func cached(t *testing.T, store *localstore.Store) []Todo {
	t.Helper()
	raw, err := store.Get(context.Background(), localstore.KeyTodos)
	require.NoError(t, err)
	var todos []Todo
	require.NoError(t, json.Unmarshal(raw, &todos))
	return todos
}

func ids(todos []Todo) []string {
	out := make([]string, 0, len(todos))
	for _, t := range todos {
		out = append(out, t.ID)
	}
	return out
}

func TestSyncer_StartsIdleAndEmpty(t *testing.T) {
	s, _ := newSyncer(t, &fakeRemote{})
	assert.Equal(t, Idle, s.State())
	assert.NotNil(t, s.Todos())
	assert.Empty(t, s.Todos())
}

func TestSyncer_LoadMergesServerOverCache(t *testing.T) {
	remote := &fakeRemote{}
	s, store := newSyncer(t, remote)
	seedCache(t, store, []Todo{
		{ID: "1", Title: "old", OwnerID: "u1"},
		{ID: "gone", Title: "deleted elsewhere"},
		{ID: "local-x", Title: "offline", Local: true},
	})
	remote.listFn = rawList(t, `[{"id":"1","title":"new"},{"id":"2","title":"b","completed":true}]`)

	require.NoError(t, s.Load(context.Background()))

	got := s.Todos()
	require.Equal(t, []string{"1", "2"}, ids(got))
	assert.Equal(t, "new", got[0].Title)
	assert.Equal(t, "u1", got[0].OwnerID, "fields the server omitted keep their cached value")
	assert.True(t, got[1].Completed)
	assert.Equal(t, Synced, s.State())
	assert.Equal(t, got, cached(t, store))
	assert.Equal(t, []string{"tok"}, remote.tokens)
}

func TestSyncer_FailedLoadKeepsCache(t *testing.T) {
	remote := &fakeRemote{listFn: func() ([]json.RawMessage, error) { return nil, errOffline }}
	s, store := newSyncer(t, remote)
	want := []Todo{{ID: "1", Title: "a"}, {ID: "local-y", Title: "b", Local: true}}
	seedCache(t, store, want)

	err := s.Load(context.Background())

	require.ErrorIs(t, err, errOffline)
	assert.Equal(t, Synced, s.State())
	assert.Equal(t, want, s.Todos())
	assert.Equal(t, want, cached(t, store))
}

func TestSyncer_FailedLoadWithoutCache(t *testing.T) {
	remote := &fakeRemote{listFn: func() ([]json.RawMessage, error) {
		return nil, &api.Error{StatusCode: 401, Message: "invalid token"}
	}}
	s, _ := newSyncer(t, remote)

	err := s.Load(context.Background())

	require.ErrorIs(t, err, api.ErrUnauthorized)
	assert.Equal(t, Synced, s.State())
	assert.NotNil(t, s.Todos())
	assert.Empty(t, s.Todos())
}

func TestSyncer_LoadingStateDuringFetch(t *testing.T) {
	remote := &fakeRemote{}
	s, _ := newSyncer(t, remote)
	var during State
	remote.listFn = func() ([]json.RawMessage, error) {
		during = s.State()
		return nil, nil
	}

	require.NoError(t, s.Load(context.Background()))
	assert.Equal(t, Loading, during)
	assert.Equal(t, Synced, s.State())
}

func TestSyncer_RestoreReadsCache(t *testing.T) {
	s, store := newSyncer(t, &fakeRemote{})
	want := []Todo{{ID: "1", Title: "a"}}
	seedCache(t, store, want)

	require.NoError(t, s.Restore(context.Background()))
	assert.Equal(t, want, s.Todos())
	assert.Equal(t, Idle, s.State())
}

func TestSyncer_AddAppendsServerRecord(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	remote := &fakeRemote{create: func(title string) (*api.Todo, error) {
		return &api.Todo{ID: "srv-1", Title: title, OwnerID: "u1", CreatedAt: now, UpdatedAt: now}, nil
	}}
	s, store := newSyncer(t, remote)

	todo, err := s.Add(context.Background(), "  buy milk  ")

	require.NoError(t, err)
	assert.Equal(t, "srv-1", todo.ID)
	assert.Equal(t, "buy milk", todo.Title)
	assert.False(t, todo.Local)
	assert.Equal(t, []Todo{todo}, s.Todos())
	assert.Equal(t, []Todo{todo}, cached(t, store))
}

func TestSyncer_AddOfflineKeepsPlaceholder(t *testing.T) {
	remote := &fakeRemote{create: func(string) (*api.Todo, error) { return nil, errOffline }}
	s, store := newSyncer(t, remote)

	todo, err := s.Add(context.Background(), "buy milk")

	require.ErrorIs(t, err, errOffline)
	assert.True(t, strings.HasPrefix(todo.ID, LocalIDPrefix))
	assert.True(t, todo.Local)
	assert.False(t, todo.Completed)
	assert.Equal(t, "buy milk", todo.Title)
	require.Len(t, s.Todos(), 1)
	assert.Equal(t, todo.ID, cached(t, store)[0].ID)
}

func TestSyncer_AddRejectsBlankTitle(t *testing.T) {
	remote := &fakeRemote{}
	s, _ := newSyncer(t, remote)

	_, err := s.Add(context.Background(), "   ")

	require.ErrorIs(t, err, ErrEmptyTitle)
	assert.Empty(t, remote.calls)
}

func TestSyncer_ToggleSendsNewValue(t *testing.T) {
	remote := &fakeRemote{update: func(id string, patch api.TodoPatch) (*api.Todo, error) {
		return &api.Todo{ID: id, Title: "a", Completed: *patch.Completed}, nil
	}}
	s, store := newSyncer(t, remote)
	seedCache(t, store, []Todo{{ID: "1", Title: "a", Completed: true}})
	require.NoError(t, s.Restore(context.Background()))

	todo, err := s.Toggle(context.Background(), "1")

	require.NoError(t, err)
	assert.False(t, todo.Completed)
	require.Len(t, remote.patches, 1)
	require.NotNil(t, remote.patches[0].Completed)
	assert.False(t, *remote.patches[0].Completed)
	assert.Nil(t, remote.patches[0].Title)
	assert.False(t, s.Todos()[0].Completed)
	assert.False(t, cached(t, store)[0].Completed)
}

func TestSyncer_ToggleRollsBackOnFailure(t *testing.T) {
	remote := &fakeRemote{update: func(string, api.TodoPatch) (*api.Todo, error) { return nil, errOffline }}
	s, store := newSyncer(t, remote)
	before := []Todo{{ID: "1", Title: "a"}, {ID: "2", Title: "b"}}
	seedCache(t, store, before)
	require.NoError(t, s.Restore(context.Background()))

	_, err := s.Toggle(context.Background(), "1")

	require.ErrorIs(t, err, errOffline)
	assert.Equal(t, before, s.Todos())
	assert.Equal(t, before, cached(t, store))
}

func TestSyncer_TogglePlaceholderStaysLocal(t *testing.T) {
	remote := &fakeRemote{}
	s, store := newSyncer(t, remote)
	seedCache(t, store, []Todo{{ID: "local-1", Title: "a", Local: true}})
	require.NoError(t, s.Restore(context.Background()))

	todo, err := s.Toggle(context.Background(), "local-1")

	require.NoError(t, err)
	assert.True(t, todo.Completed)
	assert.Empty(t, remote.calls)
	assert.True(t, cached(t, store)[0].Completed)
}

func TestSyncer_UnknownID(t *testing.T) {
	s, _ := newSyncer(t, &fakeRemote{})

	_, err := s.Toggle(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrUnknownTodo)
	assert.ErrorIs(t, s.Delete(context.Background(), "nope"), ErrUnknownTodo)
}

func TestSyncer_Delete(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr error
		wantIDs []string
	}{
		{name: "success", wantIDs: []string{"1", "3"}},
		{name: "already gone on server", err: &api.Error{StatusCode: 404, Message: "Todo not found"}, wantIDs: []string{"1", "3"}},
		{name: "failure restores position", err: errOffline, wantErr: errOffline, wantIDs: []string{"1", "2", "3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			remote := &fakeRemote{del: func(string) error { return tt.err }}
			s, store := newSyncer(t, remote)
			seedCache(t, store, []Todo{{ID: "1"}, {ID: "2"}, {ID: "3"}})
			require.NoError(t, s.Restore(context.Background()))

			err := s.Delete(context.Background(), "2")

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantIDs, ids(s.Todos()))
			assert.Equal(t, tt.wantIDs, ids(cached(t, store)))
			assert.Equal(t, []string{"delete"}, remote.calls)
		})
	}
}

func TestSyncer_DeletePlaceholderStaysLocal(t *testing.T) {
	remote := &fakeRemote{}
	s, store := newSyncer(t, remote)
	seedCache(t, store, []Todo{{ID: "local-1", Local: true}})
	require.NoError(t, s.Restore(context.Background()))

	require.NoError(t, s.Delete(context.Background(), "local-1"))
	assert.Empty(t, s.Todos())
	assert.Empty(t, remote.calls)
	assert.Empty(t, cached(t, store))
}

func TestSyncer_ConcurrentAdds(t *testing.T) {
	var n int
	var mu sync.Mutex
	remote := &fakeRemote{create: func(title string) (*api.Todo, error) {
		mu.Lock()
		defer mu.Unlock()
		n++
		return &api.Todo{ID: title, Title: title}, nil
	}}
	s, store := newSyncer(t, remote)

	var wg sync.WaitGroup
	for _, title := range []string{"a", "b", "c", "d"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Add(context.Background(), title)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.ElementsMatch(t, []string{"a", "b", "c", "d"}, ids(s.Todos()))
	assert.ElementsMatch(t, []string{"a", "b", "c", "d"}, ids(cached(t, store)))
	assert.Equal(t, 4, n)
}
