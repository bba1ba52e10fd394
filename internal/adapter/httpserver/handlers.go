// Package httpserver contains HTTP handlers and middleware.
//
// It provides the REST API for the fitness scoring coordinator: a single
// scoring endpoint plus health, readiness, and metrics probes.
package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/basalt-labs/resume-fit-coordinator/internal/config"
	"github.com/basalt-labs/resume-fit-coordinator/internal/coordinator"
	"github.com/basalt-labs/resume-fit-coordinator/internal/domain"
)

// ScoreCoordinator is the minimal interface the Score handler depends on,
// satisfied by *coordinator.Coordinator.
type ScoreCoordinator interface {
	Score(ctx context.Context, resumeID, jobID string) (coordinator.Response, error)
}

// RateLimiter is the distributed, cross-process limiter the score endpoint
// consults in addition to httprate's local per-IP window. A nil Limiter (or
// a nil *ratelimiter.RedisLuaLimiter passed in) fails open.
type RateLimiter interface {
	Allow(ctx context.Context, key string, cost int64) (allowed bool, retryAfter time.Duration, err error)
}

// scoreRateLimitKey is the single bucket shared by every replica: the
// RedisLuaLimiter keys buckets by exact string match, so cluster-wide
// throttling for this endpoint uses one well-known key rather than a
// per-request one a bucket config was never registered for.
const scoreRateLimitKey = "score"

// Server aggregates handler dependencies.
type Server struct {
	Cfg         config.Config
	Coordinator ScoreCoordinator
	DBCheck     func(ctx context.Context) error
	ForkCheck   func(ctx context.Context) error
	Limiter     RateLimiter
}

// NewServer constructs an HTTP server with all handlers and checks wired.
func NewServer(cfg config.Config, coord ScoreCoordinator, dbCheck, forkCheck func(context.Context) error) *Server {
	return &Server{Cfg: cfg, Coordinator: coord, DBCheck: dbCheck, ForkCheck: forkCheck}
}

var (
	vldOnce sync.Once
	vld     *validator.Validate
)

func getValidator() *validator.Validate {
	vldOnce.Do(func() { vld = validator.New() })
	return vld
}

type scoreRequest struct {
	ResumeID string `json:"resume_id" validate:"required"`
	JobID    string `json:"job_id" validate:"required"`
}

func notAcceptable(w http.ResponseWriter, r *http.Request) bool {
	if a := r.Header.Get("Accept"); a != "" && a != "*/*" && !strings.Contains(a, "application/json") {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusNotAcceptable)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": "not acceptable"})
		return true
	}
	return false
}

// ScoreHandler handles POST /v1/score: loads a résumé/job pair, runs the
// five scoring workers, and returns the fused response.
func (s *Server) ScoreHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if notAcceptable(w, r) {
			return
		}
		if s.Limiter != nil {
			allowed, retryAfter, err := s.Limiter.Allow(r.Context(), scoreRateLimitKey, 1)
			if err == nil && !allowed {
				w.Header().Set("Retry-After", fmt.Sprintf("%.0f", retryAfter.Seconds()))
				writeJSON(w, http.StatusTooManyRequests, errorEnvelope{Error: apiError{
					Code: "RATE_LIMITED", Message: "score endpoint rate limit exceeded",
				}})
				return
			}
		}
		r.Body = http.MaxBytesReader(w, r.Body, 1<<16)

		var req scoreRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, r, fmt.Errorf("%w: invalid json", domain.ErrInvalidArgument), nil)
			return
		}
		if err := getValidator().Struct(req); err != nil {
			verrs := map[string]string{}
			if ve, ok := err.(validator.ValidationErrors); ok {
				for _, fe := range ve {
					verrs[strings.ToLower(fe.Field())] = fe.Tag()
				}
			}
			writeError(w, r, fmt.Errorf("%w: validation failed", domain.ErrInvalidArgument), verrs)
			return
		}
		req.ResumeID = SanitizeID(req.ResumeID)
		req.JobID = SanitizeID(req.JobID)
		if vr := ValidateID("resume_id", req.ResumeID); !vr.Valid {
			writeError(w, r, fmt.Errorf("%w: invalid resume_id", domain.ErrInvalidArgument), vr.Errors)
			return
		}
		if vr := ValidateID("job_id", req.JobID); !vr.Valid {
			writeError(w, r, fmt.Errorf("%w: invalid job_id", domain.ErrInvalidArgument), vr.Errors)
			return
		}

		resp, err := s.Coordinator.Score(r.Context(), req.ResumeID, req.JobID)
		if err != nil {
			LoggerFrom(r).Error("scoring failed", "error", err, "resume_id", req.ResumeID, "job_id", req.JobID)
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// ReadyzHandler probes the database and fork manager capacity.
func (s *Server) ReadyzHandler() http.HandlerFunc {
	type check struct {
		Name    string `json:"name"`
		OK      bool   `json:"ok"`
		Details string `json:"details,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		checks := make([]check, 0, 2)
		if s.DBCheck != nil {
			if err := s.DBCheck(ctx); err != nil {
				checks = append(checks, check{Name: "db", OK: false, Details: err.Error()})
			} else {
				checks = append(checks, check{Name: "db", OK: true})
			}
		}
		if s.ForkCheck != nil {
			if err := s.ForkCheck(ctx); err != nil {
				checks = append(checks, check{Name: "fork_manager", OK: false, Details: err.Error()})
			} else {
				checks = append(checks, check{Name: "fork_manager", OK: true})
			}
		}
		ok := true
		for _, c := range checks {
			if !c.OK {
				ok = false
				break
			}
		}
		st := http.StatusOK
		if !ok {
			st = http.StatusServiceUnavailable
		}
		writeJSON(w, st, map[string]any{"checks": checks})
	}
}

// HealthzHandler is a liveness probe: if the process can answer, it's alive.
func (s *Server) HealthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	}
}

// MetricsHandler exposes Prometheus metrics.
func (s *Server) MetricsHandler() http.HandlerFunc {
	h := promhttp.Handler()
	return func(w http.ResponseWriter, r *http.Request) { h.ServeHTTP(w, r) }
}
