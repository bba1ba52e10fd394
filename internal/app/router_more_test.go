package app_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	httpserver "github.com/basalt-labs/resume-fit-coordinator/internal/adapter/httpserver"
	"github.com/basalt-labs/resume-fit-coordinator/internal/app"
	"github.com/basalt-labs/resume-fit-coordinator/internal/config"
	"github.com/basalt-labs/resume-fit-coordinator/internal/coordinator"
)

type nilCoordinator struct{}

func (nilCoordinator) Score(_ context.Context, _, _ string) (coordinator.Response, error) {
	return coordinator.Response{}, nil
}

func TestBuildRouter_Healthz_And_Readyz(t *testing.T) {
	cfg := config.Config{Port: 8080, RateLimitPerMin: 30}
	srv := httpserver.NewServer(cfg, nilCoordinator{},
		func(_ context.Context) error { return nil },
		func(_ context.Context) error { return nil },
	)
	h := app.BuildRouter(cfg, srv)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Result().StatusCode != http.StatusOK {
		t.Fatalf("/healthz: want 200, got %d", rec.Result().StatusCode)
	}

	rec2 := httptest.NewRecorder()
	h.ServeHTTP(rec2, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec2.Result().StatusCode != http.StatusOK {
		t.Fatalf("/readyz: want 200, got %d", rec2.Result().StatusCode)
	}
}

func TestBuildRouter_Readyz_Unhealthy(t *testing.T) {
	cfg := config.Config{Port: 8080, RateLimitPerMin: 30}
	srv := httpserver.NewServer(cfg, nilCoordinator{},
		func(_ context.Context) error { return http.ErrHandlerTimeout },
		func(_ context.Context) error { return nil },
	)
	h := app.BuildRouter(cfg, srv)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Result().StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("/readyz: want 503, got %d", rec.Result().StatusCode)
	}
}

func TestBuildRouter_Metrics(t *testing.T) {
	cfg := config.Config{Port: 8080, RateLimitPerMin: 30}
	srv := httpserver.NewServer(cfg, nilCoordinator{}, nil, nil)
	h := app.BuildRouter(cfg, srv)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Result().StatusCode != http.StatusOK {
		t.Fatalf("/metrics: want 200, got %d", rec.Result().StatusCode)
	}
}
