package fork_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basalt-labs/resume-fit-coordinator/internal/config"
	"github.com/basalt-labs/resume-fit-coordinator/internal/domain"
	"github.com/basalt-labs/resume-fit-coordinator/internal/fork"
)

// fakePrimaryStore implements fork.PrimaryStore with per-strategy failure
// knobs, so tests can force a fallthrough from zero-copy to physical clone
// to logical session without a real database.
type fakePrimaryStore struct {
	mu               sync.Mutex
	zeroCopyErr      error
	physicalCloneErr error
	logicalErr       error
	calls            []string
}

func (f *fakePrimaryStore) ZeroCopyFork(context.Context) (string, error) {
	f.record("zero_copy_fork")
	if f.zeroCopyErr != nil {
		return "", f.zeroCopyErr
	}
	return "zc://fork", nil
}

func (f *fakePrimaryStore) PhysicalClone(context.Context) (string, error) {
	f.record("physical_clone")
	if f.physicalCloneErr != nil {
		return "", f.physicalCloneErr
	}
	return "clone://fork", nil
}

func (f *fakePrimaryStore) LogicalSession(context.Context) (string, error) {
	f.record("logical_context")
	if f.logicalErr != nil {
		return "", f.logicalErr
	}
	return "logical://fork", nil
}

func (f *fakePrimaryStore) record(name string) {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.mu.Unlock()
}

// fakeLedger implements fork.Ledger, recording every write/transition.
type fakeLedger struct {
	mu      sync.Mutex
	rows    map[string]domain.Fork
	written []domain.Fork
	swept   int64
	sweepFn func(ctx context.Context, age time.Duration) (int64, error)
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{rows: make(map[string]domain.Fork)}
}

func (l *fakeLedger) WriteForkLedger(_ context.Context, f domain.Fork) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rows[f.ID] = f
	l.written = append(l.written, f)
	return nil
}

func (l *fakeLedger) UpdateForkLedger(_ context.Context, f domain.Fork) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	existing := l.rows[f.ID]
	if f.State != "" {
		existing.State = f.State
	}
	if f.Strategy != "" {
		existing.Strategy = f.Strategy
	}
	if f.DataURL != "" {
		existing.DataURL = f.DataURL
	}
	if f.ErrorMessage != "" {
		existing.ErrorMessage = f.ErrorMessage
	}
	existing.ID = f.ID
	l.rows[f.ID] = existing
	return nil
}

func (l *fakeLedger) SweepTerminalForksOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	if l.sweepFn != nil {
		return l.sweepFn(ctx, age)
	}
	return l.swept, nil
}

func (l *fakeLedger) stateOf(forkID string) domain.ForkState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rows[forkID].State
}

func fastRetryConfig() config.RetryConfig {
	return config.RetryConfig{MaxRetries: 1, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}
}

func TestManager_Acquire_PrefersZeroCopyFork(t *testing.T) {
	store := &fakePrimaryStore{}
	ledger := newFakeLedger()
	m := fork.NewManager(store, ledger, 5, fastRetryConfig(), nil)

	f, err := m.Acquire(context.Background(), domain.DimensionSkill, "r1", "j1")
	require.NoError(t, err)
	assert.Equal(t, "zero_copy_fork", f.Strategy)
	assert.Equal(t, domain.ForkActive, f.State)
	assert.Equal(t, domain.ForkActive, ledger.stateOf(f.ID))
}

func TestManager_Acquire_FallsBackToPhysicalCloneThenLogical(t *testing.T) {
	store := &fakePrimaryStore{zeroCopyErr: errors.New("snapshot unsupported")}
	ledger := newFakeLedger()
	m := fork.NewManager(store, ledger, 5, fastRetryConfig(), nil)

	f, err := m.Acquire(context.Background(), domain.DimensionExperience, "r1", "j1")
	require.NoError(t, err)
	assert.Equal(t, "physical_clone", f.Strategy)

	store2 := &fakePrimaryStore{zeroCopyErr: errors.New("no"), physicalCloneErr: errors.New("no disk")}
	m2 := fork.NewManager(store2, newFakeLedger(), 5, fastRetryConfig(), nil)
	f2, err := m2.Acquire(context.Background(), domain.DimensionEducation, "r1", "j1")
	require.NoError(t, err)
	assert.Equal(t, "logical_context", f2.Strategy)
}

func TestManager_Acquire_AllStrategiesFail(t *testing.T) {
	store := &fakePrimaryStore{
		zeroCopyErr:      errors.New("no"),
		physicalCloneErr: errors.New("no"),
		logicalErr:       errors.New("db down"),
	}
	ledger := newFakeLedger()
	m := fork.NewManager(store, ledger, 5, fastRetryConfig(), nil)

	_, err := m.Acquire(context.Background(), domain.DimensionCertification, "r1", "j1")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnavailable)
}

func TestManager_Acquire_BoundedBySemaphore(t *testing.T) {
	store := &fakePrimaryStore{}
	ledger := newFakeLedger()
	m := fork.NewManager(store, ledger, 1, fastRetryConfig(), nil)

	f1, err := m.Acquire(context.Background(), domain.DimensionSkill, "r1", "j1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = m.Acquire(ctx, domain.DimensionSemantic, "r1", "j1")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnavailable)

	require.NoError(t, m.Release(context.Background(), f1.ID, domain.ForkCompleted, ""))

	f3, err := m.Acquire(context.Background(), domain.DimensionSemantic, "r1", "j1")
	require.NoError(t, err)
	assert.NotEmpty(t, f3.ID)
}

func TestManager_Release_TransitionsLedgerAndFreesSlot(t *testing.T) {
	store := &fakePrimaryStore{}
	ledger := newFakeLedger()
	m := fork.NewManager(store, ledger, 1, fastRetryConfig(), nil)

	f, err := m.Acquire(context.Background(), domain.DimensionSkill, "r1", "j1")
	require.NoError(t, err)

	require.NoError(t, m.Release(context.Background(), f.ID, domain.ForkFailed, "worker timeout"))
	assert.Equal(t, domain.ForkFailed, ledger.stateOf(f.ID))

	// slot freed: a second acquire should succeed immediately
	f2, err := m.Acquire(context.Background(), domain.DimensionSemantic, "r1", "j1")
	require.NoError(t, err)
	assert.NotEmpty(t, f2.ID)
}

func TestManager_Release_IsIdempotent(t *testing.T) {
	store := &fakePrimaryStore{}
	ledger := newFakeLedger()
	m := fork.NewManager(store, ledger, 1, fastRetryConfig(), nil)

	f, err := m.Acquire(context.Background(), domain.DimensionSkill, "r1", "j1")
	require.NoError(t, err)

	require.NoError(t, m.Release(context.Background(), f.ID, domain.ForkCompleted, ""))
	require.NoError(t, m.Release(context.Background(), f.ID, domain.ForkCompleted, ""))
}

func TestManager_Sweep_DelegatesToLedger(t *testing.T) {
	store := &fakePrimaryStore{}
	ledger := newFakeLedger()
	ledger.swept = 4
	m := fork.NewManager(store, ledger, 5, fastRetryConfig(), nil)

	n, err := m.Sweep(context.Background(), 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

func TestManager_Sweep_PropagatesError(t *testing.T) {
	store := &fakePrimaryStore{}
	ledger := newFakeLedger()
	ledger.sweepFn = func(context.Context, time.Duration) (int64, error) {
		return 0, errors.New("delete failed")
	}
	m := fork.NewManager(store, ledger, 5, fastRetryConfig(), nil)

	_, err := m.Sweep(context.Background(), 24*time.Hour)
	require.Error(t, err)
}

func TestManager_Healthy(t *testing.T) {
	store := &fakePrimaryStore{}
	m := fork.NewManager(store, newFakeLedger(), 5, fastRetryConfig(), nil)
	require.NoError(t, m.Healthy(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, m.Healthy(ctx))
}

func TestManager_RunPeriodic_StopsOnContextCancel(t *testing.T) {
	store := &fakePrimaryStore{}
	ledger := newFakeLedger()
	m := fork.NewManager(store, ledger, 5, fastRetryConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.RunPeriodic(ctx, 10*time.Millisecond, time.Hour)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunPeriodic did not stop after context cancellation")
	}
}
