package httpserver_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	httpserver "github.com/basalt-labs/resume-fit-coordinator/internal/adapter/httpserver"
	"github.com/basalt-labs/resume-fit-coordinator/internal/config"
	"github.com/basalt-labs/resume-fit-coordinator/internal/coordinator"
	"github.com/basalt-labs/resume-fit-coordinator/internal/domain"
)

type fakeCoordinator struct {
	resp coordinator.Response
	err  error
}

func (f fakeCoordinator) Score(_ context.Context, _, _ string) (coordinator.Response, error) {
	return f.resp, f.err
}

func newScoreServer(t *testing.T, coord httpserver.ScoreCoordinator) *httpserver.Server {
	t.Helper()
	return httpserver.NewServer(config.Config{Port: 8080}, coord,
		func(_ context.Context) error { return nil },
		func(_ context.Context) error { return nil },
	)
}

func doScore(t *testing.T, srv *httpserver.Server, body map[string]any) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	r := httptest.NewRequest(http.MethodPost, "/v1/score", bytes.NewReader(b))
	r.Header.Set("Content-Type", "application/json")
	r.Header.Set("Accept", "application/json")
	w := httptest.NewRecorder()
	srv.ScoreHandler()(w, r)
	return w.Result()
}

func TestScoreHandler_200_OK(t *testing.T) {
	want := coordinator.Response{ResumeID: "resume-1", JobID: "job-1", AgentsCompleted: 5, Persisted: true}
	srv := newScoreServer(t, fakeCoordinator{resp: want})

	resp := doScore(t, srv, map[string]any{"resume_id": "resume-1", "job_id": "job-1"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("want 200, got %d", resp.StatusCode)
	}
	var got coordinator.Response
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.ResumeID != want.ResumeID || got.JobID != want.JobID {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestScoreHandler_400_MissingFields(t *testing.T) {
	srv := newScoreServer(t, fakeCoordinator{})

	resp := doScore(t, srv, map[string]any{"resume_id": "", "job_id": ""})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("want 400, got %d", resp.StatusCode)
	}
}

func TestScoreHandler_400_InvalidJSON(t *testing.T) {
	srv := newScoreServer(t, fakeCoordinator{})

	r := httptest.NewRequest(http.MethodPost, "/v1/score", bytes.NewReader([]byte("{not json")))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.ScoreHandler()(w, r)
	resp := w.Result()
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("want 400, got %d", resp.StatusCode)
	}
}

func TestScoreHandler_404_NotFound(t *testing.T) {
	srv := newScoreServer(t, fakeCoordinator{err: fmt.Errorf("op=coordinator.Score: %w: resume missing", domain.ErrNotFound)})

	resp := doScore(t, srv, map[string]any{"resume_id": "resume-1", "job_id": "job-1"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("want 404, got %d", resp.StatusCode)
	}
}

func TestScoreHandler_503_Unavailable(t *testing.T) {
	srv := newScoreServer(t, fakeCoordinator{err: fmt.Errorf("op=coordinator.Score: %w: no fork capacity", domain.ErrUnavailable)})

	resp := doScore(t, srv, map[string]any{"resume_id": "resume-1", "job_id": "job-1"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("want 503, got %d", resp.StatusCode)
	}
}

func TestScoreHandler_500_Internal(t *testing.T) {
	srv := newScoreServer(t, fakeCoordinator{err: fmt.Errorf("op=coordinator.Score: unexpected failure")})

	resp := doScore(t, srv, map[string]any{"resume_id": "resume-1", "job_id": "job-1"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("want 500, got %d", resp.StatusCode)
	}
}

func TestScoreHandler_SanitizesID(t *testing.T) {
	var gotResumeID, gotJobID string
	srv := httpserver.NewServer(config.Config{Port: 8080}, fakeCoordinatorFunc(func(_ context.Context, resumeID, jobID string) (coordinator.Response, error) {
		gotResumeID, gotJobID = resumeID, jobID
		return coordinator.Response{ResumeID: resumeID, JobID: jobID}, nil
	}),
		func(_ context.Context) error { return nil },
		func(_ context.Context) error { return nil },
	)

	resp := doScore(t, srv, map[string]any{"resume_id": "resume-1!!", "job_id": "job-1;;"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("want 200, got %d", resp.StatusCode)
	}
	if gotResumeID != "resume-1" || gotJobID != "job-1" {
		t.Fatalf("sanitized ids not passed through: resume_id=%q job_id=%q", gotResumeID, gotJobID)
	}
}

type fakeCoordinatorFunc func(ctx context.Context, resumeID, jobID string) (coordinator.Response, error)

func (f fakeCoordinatorFunc) Score(ctx context.Context, resumeID, jobID string) (coordinator.Response, error) {
	return f(ctx, resumeID, jobID)
}
