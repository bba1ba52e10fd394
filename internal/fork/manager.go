// Package fork implements the Fork/Context Manager: it provisions an
// isolated DataContext for each scoring worker, tracks its lifecycle in
// the fork ledger, and bounds how many contexts may be active at once.
package fork

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/basalt-labs/resume-fit-coordinator/internal/adapter/observability"
	"github.com/basalt-labs/resume-fit-coordinator/internal/config"
	"github.com/basalt-labs/resume-fit-coordinator/internal/domain"
)

// PrimaryStore is the set of provisioning operations the primary data
// store must support. Workers never see this interface directly; they
// only ever receive the opaque data_url a strategy produces.
type PrimaryStore interface {
	// ZeroCopyFork exposes a storage-engine snapshot as a new logical
	// database without copying bytes. Preferred strategy.
	ZeroCopyFork(ctx context.Context) (dataURL string, err error)
	// PhysicalClone copies the primary store and returns a handle to the copy.
	PhysicalClone(ctx context.Context) (dataURL string, err error)
	// LogicalSession returns a handle to the primary store itself, relying
	// only on a fresh session/connection for isolation.
	LogicalSession(ctx context.Context) (dataURL string, err error)
}

// Ledger is the subset of the Result Store the fork manager needs:
// writing and transitioning ledger rows, and sweeping terminal ones.
// A full domain.ResultStore implementation satisfies this automatically.
type Ledger interface {
	WriteForkLedger(ctx context.Context, f domain.Fork) error
	UpdateForkLedger(ctx context.Context, f domain.Fork) error
	SweepTerminalForksOlderThan(ctx context.Context, age time.Duration) (int64, error)
}

type strategy struct {
	name string
	fn   func(ctx context.Context) (string, error)
}

type tracked struct {
	kind    domain.DimensionKind
	release func()
}

// Manager is the Fork/Context Manager. One Manager instance owns the
// process-wide active-fork cap.
type Manager struct {
	store      PrimaryStore
	ledger     Ledger
	retryCfg   config.RetryConfig
	sem        chan struct{}
	strategies []strategy

	mu       sync.Mutex
	inFlight map[string]*tracked

	backstop *RedisBackstop
}

// NewManager constructs a Fork/Context Manager bounded by activeCap
// simultaneously active forks. backstop may be nil when no Redis is
// configured, in which case only the in-process cap applies.
func NewManager(store PrimaryStore, ledger Ledger, activeCap int, retryCfg config.RetryConfig, backstop *RedisBackstop) *Manager {
	if activeCap <= 0 {
		activeCap = 10
	}
	m := &Manager{
		store:    store,
		ledger:   ledger,
		retryCfg: retryCfg,
		sem:      make(chan struct{}, activeCap),
		inFlight: make(map[string]*tracked),
		backstop: backstop,
	}
	m.strategies = []strategy{
		{name: "zero_copy_fork", fn: store.ZeroCopyFork},
		{name: "physical_clone", fn: store.PhysicalClone},
		{name: "logical_context", fn: store.LogicalSession},
	}
	return m
}

// Acquire provisions a fork for the given worker kind, trying each
// strategy in order until one succeeds. It blocks (FIFO, via the
// buffered channel's internal ordering) if the active-fork cap is
// saturated, honoring ctx cancellation.
func (m *Manager) Acquire(ctx context.Context, kind domain.DimensionKind, resumeID, jobID string) (domain.Fork, error) {
	waitStart := time.Now()
	select {
	case m.sem <- struct{}{}:
	case <-ctx.Done():
		return domain.Fork{}, fmt.Errorf("op=fork.Acquire: %w: %v", domain.ErrUnavailable, ctx.Err())
	}
	observability.ForkWaitDuration.Observe(time.Since(waitStart).Seconds())

	forkID := m.newForkID(kind)
	if !m.backstop.TryAcquire(ctx, forkID) {
		<-m.sem
		return domain.Fork{}, fmt.Errorf("op=fork.Acquire: %w: cross-process fork cap exhausted", domain.ErrUnavailable)
	}
	now := time.Now()
	f := domain.Fork{
		ID:        forkID,
		Kind:      kind,
		ResumeID:  resumeID,
		JobID:     jobID,
		State:     domain.ForkPending,
		CreatedAt: now,
	}
	if err := m.ledger.WriteForkLedger(ctx, f); err != nil {
		slog.Error("fork ledger write failed", slog.String("fork_id", forkID), slog.Any("error", err))
	}

	dataURL, stratName, err := m.provision(ctx)
	if err != nil {
		f.State = domain.ForkFailed
		f.ErrorMessage = err.Error()
		f.CompletedAt = time.Now()
		if uerr := m.ledger.UpdateForkLedger(ctx, f); uerr != nil {
			slog.Error("fork ledger update failed", slog.String("fork_id", forkID), slog.Any("error", uerr))
		}
		<-m.sem
		observability.ForksFailedTotal.WithLabelValues(string(kind)).Inc()
		return domain.Fork{}, fmt.Errorf("op=fork.Acquire: %w: all provisioning strategies exhausted: %v", domain.ErrUnavailable, err)
	}

	f.State = domain.ForkActive
	f.StartedAt = time.Now()
	f.Strategy = stratName
	f.DataURL = dataURL
	if err := m.ledger.UpdateForkLedger(ctx, f); err != nil {
		slog.Error("fork ledger update failed", slog.String("fork_id", forkID), slog.Any("error", err))
	}
	observability.RecordForkProvisioned(string(kind), stratName)

	m.mu.Lock()
	m.inFlight[forkID] = &tracked{kind: kind, release: sync.OnceFunc(func() { <-m.sem })}
	m.mu.Unlock()

	return f, nil
}

// provision tries each strategy in turn, retrying transient failures
// within a strategy per the configured backoff before falling through
// to the next strategy.
func (m *Manager) provision(ctx context.Context) (dataURL, strategyName string, err error) {
	var lastErr error
	for _, s := range m.strategies {
		url, attemptErr := m.withRetry(ctx, s.fn)
		if attemptErr == nil {
			return url, s.name, nil
		}
		lastErr = attemptErr
		slog.Warn("fork provisioning strategy failed, falling back",
			slog.String("strategy", s.name), slog.Any("error", attemptErr))
	}
	return "", "", lastErr
}

func (m *Manager) withRetry(ctx context.Context, fn func(ctx context.Context) (string, error)) (string, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = m.retryCfg.InitialDelay
	b.MaxInterval = m.retryCfg.MaxDelay
	b.Multiplier = m.retryCfg.Multiplier
	if b.Multiplier <= 1 {
		b.Multiplier = 2.0
	}
	if !m.retryCfg.Jitter {
		b.RandomizationFactor = 0
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(b, uint64(maxInt(m.retryCfg.MaxRetries, 0))), ctx)

	var url string
	op := func() error {
		u, err := fn(ctx)
		if err != nil {
			return err
		}
		url = u
		return nil
	}
	if err := backoff.Retry(op, bo); err != nil {
		return "", err
	}
	return url, nil
}

// Release transitions a fork to a terminal state. It is idempotent: a
// fork already released is a no-op beyond the ledger write.
func (m *Manager) Release(ctx context.Context, forkID string, state domain.ForkState, errMsg string) error {
	m.mu.Lock()
	t, ok := m.inFlight[forkID]
	if ok {
		delete(m.inFlight, forkID)
	}
	m.mu.Unlock()

	if ok {
		t.release()
		observability.RecordForkReleased(string(t.kind), state == domain.ForkFailed)
	}
	m.backstop.Release(ctx, forkID)

	f := domain.Fork{
		ID:           forkID,
		State:        state,
		ErrorMessage: errMsg,
		CompletedAt:  time.Now(),
	}
	return m.ledger.UpdateForkLedger(ctx, f)
}

// Sweep deletes terminal fork ledger entries older than age.
func (m *Manager) Sweep(ctx context.Context, age time.Duration) (int64, error) {
	n, err := m.ledger.SweepTerminalForksOlderThan(ctx, age)
	if err != nil {
		observability.RecordForkSwept("error", 0)
		return 0, err
	}
	observability.RecordForkSwept("ok", n)
	return n, nil
}

// RunPeriodic runs Sweep on a ticker until ctx is cancelled, following
// the same periodic-background-job shape used elsewhere in this codebase.
func (m *Manager) RunPeriodic(ctx context.Context, interval, retention time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if n, err := m.Sweep(ctx, retention); err != nil {
		slog.Error("initial fork sweep failed", slog.Any("error", err))
	} else {
		slog.Info("fork sweep completed", slog.Int64("removed", n))
	}

	for {
		select {
		case <-ctx.Done():
			slog.Info("fork sweeper stopping")
			return
		case <-ticker.C:
			n, err := m.Sweep(ctx, retention)
			if err != nil {
				slog.Error("periodic fork sweep failed", slog.Any("error", err))
				continue
			}
			slog.Info("fork sweep completed", slog.Int64("removed", n))
		}
	}
}

// Healthy reports whether the manager has spare capacity: it fails when
// ctx is done or the active-fork cap is saturated.
func (m *Manager) Healthy(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if len(m.sem) >= cap(m.sem) {
		return fmt.Errorf("op=fork.Healthy: %w: active-fork cap saturated", domain.ErrUnavailable)
	}
	return nil
}

func (m *Manager) newForkID(kind domain.DimensionKind) string {
	return fmt.Sprintf("fork_%s_%d_%s", kind, time.Now().UnixNano(), uuid.NewString())
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
