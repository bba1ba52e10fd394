package worker

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/basalt-labs/resume-fit-coordinator/internal/adapter/observability"
	"github.com/basalt-labs/resume-fit-coordinator/internal/domain"
)

// breakerMaxFailures/breakerCooldown tune the per-kind circuit breaker: a
// dimension that has failed this many times in a row short-circuits
// immediately instead of waiting out a full per-worker deadline.
const (
	breakerMaxFailures = 5
	breakerCooldown    = 30 * time.Second
)

// Pinger verifies liveness of a forked data context before a worker reads
// through it, matching spec.md §4.4's "pings it with a trivial round-trip"
// session-opening contract.
type Pinger interface {
	Ping(ctx context.Context, dataURL string) error
}

// Dispatch runs one worker under its circuit breaker and deadline, and
// normalizes its outcome into a domain.WorkerResult ready for persistence.
// It never returns an error for worker-local failures (spec.md §7
// WorkerFailed/WorkerInvalidResult propagation policy): those are folded
// into the returned WorkerResult with score 0 and a failed-status detail.
func Dispatch(ctx context.Context, scorer Scorer, pinger Pinger, deadline time.Duration, f domain.Fork, resume domain.Resume, job domain.Job, sc ScoringContext) domain.WorkerResult {
	kind := scorer.Kind()
	start := time.Now()

	wctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	breaker := observability.GetCircuitBreaker(string(kind), breakerMaxFailures, breakerCooldown)

	var result ScoreResult
	err := breaker.Call(func() error {
		if pinger != nil {
			if perr := pinger.Ping(wctx, f.DataURL); perr != nil {
				return fmt.Errorf("op=worker.Dispatch: ping: %w", perr)
			}
		}
		done := make(chan error, 1)
		go func() {
			r, serr := scorer.Score(resume, job, sc)
			result = r
			done <- serr
		}()
		select {
		case <-wctx.Done():
			return fmt.Errorf("op=worker.Dispatch: %w", wctx.Err())
		case serr := <-done:
			return serr
		}
	})

	elapsed := time.Since(start).Milliseconds()
	observability.RecordWorker(string(kind), time.Since(start), result.Score, causeOf(err))

	if err != nil || !validScore(result.Score) {
		detail := map[string]any{"status": "failed", "error": errString(err, result.Score)}
		return domain.WorkerResult{
			ForkID: f.ID, Kind: kind, ResumeID: resume.ID, JobID: job.ID,
			Score: 0, ProcessingTimeMS: elapsed, Detail: detail, CreatedAt: time.Now(),
		}
	}

	return domain.WorkerResult{
		ForkID: f.ID, Kind: kind, ResumeID: resume.ID, JobID: job.ID,
		Score: result.Score, ProcessingTimeMS: elapsed, Detail: result.Detail, CreatedAt: time.Now(),
	}
}

func validScore(s float64) bool {
	return !math.IsNaN(s) && !math.IsInf(s, 0) && s >= 0 && s <= 100
}

func causeOf(err error) string {
	if err == nil {
		return ""
	}
	return "error"
}

func errString(err error, score float64) string {
	if err != nil {
		return err.Error()
	}
	return fmt.Sprintf("invalid score: %v", score)
}
