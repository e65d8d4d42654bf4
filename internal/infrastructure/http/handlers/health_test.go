package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

func serveReadiness(t *testing.T, checks map[string]Check) (*httptest.ResponseRecorder, readinessResponse) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := NewHealthDependenciesHandler(checks).Readiness(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}

	var resp readinessResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	return rec, resp
}

func TestLiveness(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	if err := NewHealthHandler().Liveness(e.NewContext(req, rec)); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestReadiness_NoDependencies(t *testing.T) {
	rec, resp := serveReadiness(t, nil)
	if rec.Code != http.StatusOK || resp.Status != "ok" {
		t.Fatalf("expected ok, got %d %+v", rec.Code, resp)
	}
}

func TestReadiness_RedisUp(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	rec, resp := serveReadiness(t, map[string]Check{"redis": RedisCheck(rdb)})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if resp.Dependencies["redis"].Status != "ok" {
		t.Fatalf("unexpected redis status: %+v", resp.Dependencies)
	}
}

func TestReadiness_Degraded(t *testing.T) {
	checks := map[string]Check{
		"redis":   func(context.Context) error { return nil },
		"mongodb": func(context.Context) error { return errors.New("no reachable servers") },
	}

	rec, resp := serveReadiness(t, checks)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if resp.Status != "degraded" {
		t.Fatalf("expected degraded, got %s", resp.Status)
	}
	if got := resp.Dependencies["mongodb"]; got.Status != "unhealthy" || got.Error == "" {
		t.Fatalf("unexpected mongodb status: %+v", got)
	}
	if resp.Dependencies["redis"].Status != "ok" {
		t.Fatalf("healthy dependency should still report ok")
	}
}
