// Package api is the HTTP client for the todo API. Every call that needs
// authentication takes the bearer token as an explicit argument; the client
// itself holds no credentials.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrUnauthorized and ErrNotFound match *Error values with the corresponding
// status code through errors.Is.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
)

// Error is a non-2xx response from the server.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("api: %d %s", e.StatusCode, e.Message)
}

func (e *Error) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	}
	return false
}

type User struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	Token       string     `json:"token,omitempty"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

type Todo struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Completed bool      `json:"completed"`
	OwnerID   string    `json:"ownerId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TodoPatch mirrors the update body; nil fields are omitted.
type TodoPatch struct {
	Title     *string `json:"title,omitempty"`
	Completed *bool   `json:"completed,omitempty"`
}

type Client struct {
	baseURL string
	http    *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces the default http.Client. The default has no
// timeout; callers bound requests through ctx.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates an account. The returned user carries its token.
func (c *Client) Register(ctx context.Context, email, password string) (*User, error) {
	var resp struct {
		Message string `json:"message"`
		User    User   `json:"user"`
	}
	if err := c.do(ctx, http.MethodPost, "/auth/register", "", credentials{email, password}, &resp); err != nil {
		return nil, err
	}
	return &resp.User, nil
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var resp struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "/auth/login", "", credentials{email, password}, &resp); err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", errors.New("api: login response carried no token")
	}
	return resp.Token, nil
}

func (c *Client) Logout(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", token, nil, nil)
}

func (c *Client) Me(ctx context.Context, token string) (*User, error) {
	var u User
	if err := c.do(ctx, http.MethodGet, "/auth/me", token, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// ListTodos returns each todo object exactly as the server sent it, so
// callers can tell a missing field from a zero value.
func (c *Client) ListTodos(ctx context.Context, token string) ([]json.RawMessage, error) {
	var items []json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/todos", token, nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (c *Client) CreateTodo(ctx context.Context, token, title string) (*Todo, error) {
	var t Todo
	body := struct {
		Title string `json:"title"`
	}{title}
	if err := c.do(ctx, http.MethodPost, "/todos", token, body, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (c *Client) UpdateTodo(ctx context.Context, token, id string, patch TodoPatch) (*Todo, error) {
	var t Todo
	if err := c.do(ctx, http.MethodPut, "/todos/"+url.PathEscape(id), token, patch, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (c *Client) DeleteTodo(ctx context.Context, token, id string) error {
	return c.do(ctx, http.MethodDelete, "/todos/"+url.PathEscape(id), token, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("api: encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("api: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("api: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("api: invalid response from %s %s: %w", method, path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var envelope struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	msg := strings.TrimSpace(string(raw))
	if json.Unmarshal(raw, &envelope) == nil {
		switch {
		case envelope.Error != "":
			msg = envelope.Error
		case envelope.Message != "":
			msg = envelope.Message
		}
	}
	return &Error{StatusCode: resp.StatusCode, Message: msg}
}
