package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/99minutos/todo-sync/internal/core/domain"
	"github.com/99minutos/todo-sync/internal/core/ports"
)

type stubAuthRepo struct {
	users     map[string]*domain.User
	updates   int
	updateErr error
	findErr   error
}

func newStubAuthRepo() *stubAuthRepo {
	return &stubAuthRepo{users: make(map[string]*domain.User)}
}

func cloneUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	clone := *u
	return &clone
}

func (r *stubAuthRepo) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	if _, exists := r.users[user.Email]; exists {
		return nil, domain.Conflict("User with this email already exists")
	}
	copy := cloneUser(user)
	copy.ID = fmt.Sprintf("u%d", len(r.users)+1)
	r.users[copy.Email] = cloneUser(copy)
	return cloneUser(copy), nil
}

func (r *stubAuthRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	return cloneUser(r.users[email]), nil
}

func (r *stubAuthRepo) FindByToken(_ context.Context, token string) (*domain.User, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	for _, u := range r.users {
		if u.Token == token {
			return cloneUser(u), nil
		}
	}
	return nil, nil
}

func (r *stubAuthRepo) Update(_ context.Context, user *domain.User) (*domain.User, error) {
	if r.updateErr != nil {
		return nil, r.updateErr
	}
	r.updates++
	for email, u := range r.users {
		if u.ID == user.ID {
			stored := cloneUser(user)
			stored.PasswordDigest = u.PasswordDigest
			r.users[email] = stored
			return cloneUser(stored), nil
		}
	}
	return nil, domain.NotFound("user not found")
}

type stubTokenCache struct {
	entries map[string]*domain.User
	deleted []string
	getErr  error
}

func newStubTokenCache() *stubTokenCache {
	return &stubTokenCache{entries: make(map[string]*domain.User)}
}

func (c *stubTokenCache) Get(_ context.Context, token string) (*domain.User, error) {
	if c.getErr != nil {
		return nil, c.getErr
	}
	return cloneUser(c.entries[token]), nil
}

func (c *stubTokenCache) Set(_ context.Context, token string, user *domain.User) error {
	c.entries[token] = cloneUser(user)
	return nil
}

func (c *stubTokenCache) Delete(_ context.Context, token string) error {
	c.deleted = append(c.deleted, token)
	delete(c.entries, token)
	return nil
}

func newAuthSvc(repo *stubAuthRepo, cache *stubTokenCache) *AuthService {
	var c ports.TokenCache
	if cache != nil {
		c = cache
	}
	return NewAuthService(repo, c, AuthConfig{TokenSecret: "secret", BcryptCost: bcrypt.MinCost}, zerolog.Nop())
}

func TestAuthService_Register_Success(t *testing.T) {
	repo := newStubAuthRepo()
	svc := newAuthSvc(repo, nil)

	user, err := svc.Register(context.Background(), "a@x.com", "pw12345")
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if user == nil || user.ID == "" {
		t.Fatalf("expected persisted user, got %+v", user)
	}
	if user.Email != "a@x.com" {
		t.Fatalf("unexpected email: %s", user.Email)
	}
	if user.PasswordDigest == "pw12345" {
		t.Fatalf("password must be hashed")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordDigest), []byte("pw12345")); err != nil {
		t.Fatalf("digest does not match password: %v", err)
	}
	if user.Token == "" {
		t.Fatalf("expected a token on registration")
	}
	if user.CreatedAt.IsZero() {
		t.Fatalf("expected created_at to be set")
	}
}

func TestAuthService_Register_Validation(t *testing.T) {
	svc := newAuthSvc(newStubAuthRepo(), nil)

	cases := []struct{ email, password, msg string }{
		{"", "pw", "Email is required"},
		{"a@x.com", "", "Password is required"},
	}
	for _, tc := range cases {
		_, err := svc.Register(context.Background(), tc.email, tc.password)
		if !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("expected validation error for %+v, got %v", tc, err)
		}
		if domain.MessageOf(err) != tc.msg {
			t.Fatalf("expected %q, got %q", tc.msg, domain.MessageOf(err))
		}
	}
}

func TestAuthService_Register_Duplicate(t *testing.T) {
	svc := newAuthSvc(newStubAuthRepo(), nil)

	if _, err := svc.Register(context.Background(), "a@x.com", "pw"); err != nil {
		t.Fatalf("first register: %v", err)
	}
	_, err := svc.Register(context.Background(), "a@x.com", "other")
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestAuthService_Register_UniqueTokens(t *testing.T) {
	svc := newAuthSvc(newStubAuthRepo(), nil)

	a, err := svc.Register(context.Background(), "a@x.com", "pw")
	if err != nil {
		t.Fatalf("register a: %v", err)
	}
	b, err := svc.Register(context.Background(), "b@x.com", "pw")
	if err != nil {
		t.Fatalf("register b: %v", err)
	}
	if a.Token == b.Token {
		t.Fatalf("tokens must be unique")
	}
}

func TestAuthService_Authenticate_Success(t *testing.T) {
	repo := newStubAuthRepo()
	svc := newAuthSvc(repo, nil)

	registered, err := svc.Register(context.Background(), "a@x.com", "pw12345")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	user, err := svc.Authenticate(context.Background(), "a@x.com", "pw12345")
	if err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}
	if user == nil || user.Email != "a@x.com" {
		t.Fatalf("expected matching user, got %+v", user)
	}
	if user.LastLoginAt.IsZero() {
		t.Fatalf("expected last_login_at to be set")
	}
	if user.Token != registered.Token {
		t.Fatalf("an existing token must be kept on login")
	}
	if repo.updates != 1 {
		t.Fatalf("expected one store update, got %d", repo.updates)
	}
}

func TestAuthService_Authenticate_IssuesMissingToken(t *testing.T) {
	repo := newStubAuthRepo()
	digest, _ := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	repo.users["a@x.com"] = &domain.User{ID: "u1", Email: "a@x.com", PasswordDigest: string(digest)}
	svc := newAuthSvc(repo, nil)

	user, err := svc.Authenticate(context.Background(), "a@x.com", "pw")
	if err != nil || user == nil {
		t.Fatalf("expected user, got (%+v, %v)", user, err)
	}
	if user.Token == "" {
		t.Fatalf("expected a token to be issued")
	}
}

func TestAuthService_Authenticate_Rejects(t *testing.T) {
	svc := newAuthSvc(newStubAuthRepo(), nil)
	if _, err := svc.Register(context.Background(), "a@x.com", "pw"); err != nil {
		t.Fatalf("register: %v", err)
	}

	for _, tc := range []struct{ email, password string }{
		{"a@x.com", "wrong"},
		{"ghost@x.com", "pw"},
	} {
		user, err := svc.Authenticate(context.Background(), tc.email, tc.password)
		if err != nil {
			t.Fatalf("bad credentials must not be an error, got %v", err)
		}
		if user != nil {
			t.Fatalf("expected nil user for %+v", tc)
		}
	}
}

func TestAuthService_Authenticate_MissingFields(t *testing.T) {
	svc := newAuthSvc(newStubAuthRepo(), nil)

	if _, err := svc.Authenticate(context.Background(), "", "pw"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := svc.Authenticate(context.Background(), "a@x.com", ""); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAuthService_Authenticate_StoreFailure(t *testing.T) {
	repo := newStubAuthRepo()
	repo.findErr = domain.StoreFailure("find user", errors.New("connection reset"))
	svc := newAuthSvc(repo, nil)

	if _, err := svc.Authenticate(context.Background(), "a@x.com", "pw"); !errors.Is(err, domain.ErrStore) {
		t.Fatalf("expected store error, got %v", err)
	}
}

func TestAuthService_ResolveToken(t *testing.T) {
	repo := newStubAuthRepo()
	cache := newStubTokenCache()
	svc := newAuthSvc(repo, cache)

	registered, err := svc.Register(context.Background(), "a@x.com", "pw")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	user, err := svc.ResolveToken(context.Background(), registered.Token)
	if err != nil || user == nil || user.ID != registered.ID {
		t.Fatalf("expected resolved user, got (%+v, %v)", user, err)
	}
	if _, ok := cache.entries[registered.Token]; !ok {
		t.Fatalf("resolved user should be cached")
	}
	if repo.updates != 0 {
		t.Fatalf("resolving must never mutate the user record")
	}

	for _, token := range []string{"", "garbage"} {
		user, err := svc.ResolveToken(context.Background(), token)
		if err != nil || user != nil {
			t.Fatalf("expected (nil, nil) for %q, got (%+v, %v)", token, user, err)
		}
	}
}

func TestAuthService_ResolveToken_RejectsForeignSignature(t *testing.T) {
	repo := newStubAuthRepo()
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{ID: "x"}).SignedString([]byte("other-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	repo.users["a@x.com"] = &domain.User{ID: "u1", Email: "a@x.com", Token: forged}
	svc := newAuthSvc(repo, nil)

	user, err := svc.ResolveToken(context.Background(), forged)
	if err != nil || user != nil {
		t.Fatalf("token signed with another secret must not resolve, got (%+v, %v)", user, err)
	}
}

func TestAuthService_ResolveToken_CacheErrorFallsBack(t *testing.T) {
	repo := newStubAuthRepo()
	cache := newStubTokenCache()
	svc := newAuthSvc(repo, cache)

	registered, err := svc.Register(context.Background(), "a@x.com", "pw")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	cache.getErr = errors.New("redis down")

	user, err := svc.ResolveToken(context.Background(), registered.Token)
	if err != nil || user == nil {
		t.Fatalf("expected store fallback, got (%+v, %v)", user, err)
	}
}

func TestAuthService_RegenerateToken(t *testing.T) {
	repo := newStubAuthRepo()
	cache := newStubTokenCache()
	svc := newAuthSvc(repo, cache)

	registered, err := svc.Register(context.Background(), "a@x.com", "pw")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.ResolveToken(context.Background(), registered.Token); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	updated, err := svc.RegenerateToken(context.Background(), registered)
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if updated.Token == "" || updated.Token == registered.Token {
		t.Fatalf("expected a new token")
	}
	if repo.updates != 1 {
		t.Fatalf("expected the new token to be persisted")
	}

	old, err := svc.ResolveToken(context.Background(), registered.Token)
	if err != nil || old != nil {
		t.Fatalf("old token must stop resolving, got (%+v, %v)", old, err)
	}
	current, err := svc.ResolveToken(context.Background(), updated.Token)
	if err != nil || current == nil || current.ID != registered.ID {
		t.Fatalf("new token must resolve, got (%+v, %v)", current, err)
	}
}

func TestAuthService_RegenerateToken_Unpersisted(t *testing.T) {
	repo := newStubAuthRepo()
	svc := newAuthSvc(repo, nil)

	user, err := svc.RegenerateToken(context.Background(), &domain.User{Email: "a@x.com"})
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if user.Token == "" {
		t.Fatalf("expected a token")
	}
	if repo.updates != 0 {
		t.Fatalf("a user that was never saved must not be written")
	}
}

func TestAuthService_RegenerateToken_StoreFailure(t *testing.T) {
	repo := newStubAuthRepo()
	svc := newAuthSvc(repo, nil)
	registered, err := svc.Register(context.Background(), "a@x.com", "pw")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	repo.updateErr = domain.StoreFailure("update user", errors.New("boom"))

	if _, err := svc.RegenerateToken(context.Background(), registered); !errors.Is(err, domain.ErrStore) {
		t.Fatalf("expected store error, got %v", err)
	}
}

// interleavingRepo runs afterFind once, right after the first token lookup
// has read its record, to simulate a concurrent request.
type interleavingRepo struct {
	*stubAuthRepo
	afterFind func()
}

func (r *interleavingRepo) FindByToken(ctx context.Context, token string) (*domain.User, error) {
	user, err := r.stubAuthRepo.FindByToken(ctx, token)
	if hook := r.afterFind; hook != nil {
		r.afterFind = nil
		hook()
	}
	return user, err
}

func TestAuthService_ResolveToken_RegenerationDuringLookup(t *testing.T) {
	ctx := context.Background()
	repo := &interleavingRepo{stubAuthRepo: newStubAuthRepo()}
	cache := newStubTokenCache()
	svc := NewAuthService(repo, cache, AuthConfig{TokenSecret: "secret", BcryptCost: bcrypt.MinCost}, zerolog.Nop())

	registered, err := svc.Register(ctx, "a@x.com", "pw")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	repo.afterFind = func() {
		if _, err := svc.RegenerateToken(ctx, registered); err != nil {
			t.Fatalf("regenerate: %v", err)
		}
	}

	if _, err := svc.ResolveToken(ctx, registered.Token); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if _, ok := cache.entries[registered.Token]; ok {
		t.Fatalf("revoked token must not stay cached")
	}

	user, err := svc.ResolveToken(ctx, registered.Token)
	if err != nil || user != nil {
		t.Fatalf("revoked token must stop resolving, got (%+v, %v)", user, err)
	}
}

func TestAuthService_Authenticate_BlankEmail(t *testing.T) {
	svc := newAuthSvc(newStubAuthRepo(), nil)

	if _, err := svc.Authenticate(context.Background(), "   ", "pw"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
