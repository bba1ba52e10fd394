// Package postgres provides PostgreSQL database adapters.
//
// It implements repository interfaces for data persistence.
// The package provides type-safe database operations with
// connection pooling and transaction support.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/basalt-labs/resume-fit-coordinator/internal/domain"
)

// PgxPool is a minimal subset of pgxpool used by the repos for easy testing.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Store is the Postgres-backed Result Store (fork ledger, worker results,
// composite scores) and also the primary-store fork provisioner: the three
// provisioning strategies are all expressed against the same pool, in
// decreasing order of cheapness.
type Store struct {
	Pool PgxPool
	DSN  string
}

// NewStore constructs a Store. dsn is handed out as each fork's DataURL so
// a worker can open its own connection: the schema-based strategies append
// a search_path for the fork's schema, LogicalSession returns it unchanged.
func NewStore(pool PgxPool, dsn string) *Store {
	return &Store{Pool: pool, DSN: dsn}
}

// --- fork.PrimaryStore ---

// ZeroCopyFork creates a throwaway schema backed by the same storage,
// the cheapest isolation the primary store can offer.
func (s *Store) ZeroCopyFork(ctx context.Context) (string, error) {
	name := fmt.Sprintf("fork_zc_%d", time.Now().UnixNano())
	if _, err := s.Pool.Exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", name)); err != nil {
		return "", fmt.Errorf("op=store.ZeroCopyFork: %w", err)
	}
	return s.DSN + "?search_path=" + name, nil
}

// PhysicalClone takes a full copy of the primary store's scoring tables
// into a dedicated schema. More expensive than ZeroCopyFork, used as its
// fallback.
func (s *Store) PhysicalClone(ctx context.Context) (string, error) {
	name := fmt.Sprintf("fork_clone_%d", time.Now().UnixNano())
	if _, err := s.Pool.Exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", name)); err != nil {
		return "", fmt.Errorf("op=store.PhysicalClone: %w", err)
	}
	for _, table := range []string{"resumes", "jobs"} {
		if _, err := s.Pool.Exec(ctx, fmt.Sprintf(
			"CREATE TABLE %s.%s (LIKE public.%s INCLUDING ALL)", name, table, table)); err != nil {
			return "", fmt.Errorf("op=store.PhysicalClone: %w", err)
		}
		if _, err := s.Pool.Exec(ctx, fmt.Sprintf(
			"INSERT INTO %s.%s SELECT * FROM public.%s", name, table, table)); err != nil {
			return "", fmt.Errorf("op=store.PhysicalClone: %w", err)
		}
	}
	return s.DSN + "?search_path=" + name, nil
}

// LogicalSession returns a handle to the primary store itself: no new
// schema, just session-level isolation via a fresh connection. Last-resort
// fallback; always succeeds unless the pool itself is down.
func (s *Store) LogicalSession(ctx context.Context) (string, error) {
	if _, err := s.Pool.Exec(ctx, "SELECT 1"); err != nil {
		return "", fmt.Errorf("op=store.LogicalSession: %w", err)
	}
	return s.DSN, nil
}

// --- domain.ResultStore / fork.Ledger ---

// WriteForkLedger inserts a new fork ledger row.
func (s *Store) WriteForkLedger(ctx domain.Context, f domain.Fork) error {
	tracer := otel.Tracer("repo.store")
	ctx, span := tracer.Start(ctx, "store.WriteForkLedger")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", "fork_ledger"),
	)
	q := `INSERT INTO fork_ledger (fork_id, kind, resume_id, job_id, state, created_at)
	      VALUES ($1,$2,$3,$4,$5,$6)
	      ON CONFLICT (fork_id) DO NOTHING`
	if _, err := s.Pool.Exec(ctx, q, f.ID, string(f.Kind), f.ResumeID, f.JobID, string(f.State), f.CreatedAt); err != nil {
		return fmt.Errorf("op=store.WriteForkLedger: %w", err)
	}
	return nil
}

// UpdateForkLedger transitions a fork ledger row. Only non-zero fields are
// applied so a terminal-state-only Release call doesn't blank out the
// strategy/data_url recorded at acquisition.
func (s *Store) UpdateForkLedger(ctx domain.Context, f domain.Fork) error {
	tracer := otel.Tracer("repo.store")
	ctx, span := tracer.Start(ctx, "store.UpdateForkLedger")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.sql.table", "fork_ledger"),
	)
	q := `UPDATE fork_ledger SET
	        state = COALESCE(NULLIF($2,''), state),
	        strategy = COALESCE(NULLIF($3,''), strategy),
	        data_url = COALESCE(NULLIF($4,''), data_url),
	        started_at = CASE WHEN $5::timestamptz IS NULL THEN started_at ELSE $5 END,
	        completed_at = CASE WHEN $6::timestamptz IS NULL THEN completed_at ELSE $6 END,
	        error_message = COALESCE(NULLIF($7,''), error_message)
	      WHERE fork_id = $1`
	var startedAt, completedAt *time.Time
	if !f.StartedAt.IsZero() {
		startedAt = &f.StartedAt
	}
	if !f.CompletedAt.IsZero() {
		completedAt = &f.CompletedAt
	}
	if _, err := s.Pool.Exec(ctx, q, f.ID, string(f.State), f.Strategy, f.DataURL, startedAt, completedAt, f.ErrorMessage); err != nil {
		return fmt.Errorf("op=store.UpdateForkLedger: %w", err)
	}
	return nil
}

// WriteWorkerResult appends a per-worker result row. Append-only: a fork_id
// is never updated once written, matching spec's audit-log invariant.
func (s *Store) WriteWorkerResult(ctx domain.Context, r domain.WorkerResult) error {
	tracer := otel.Tracer("repo.store")
	ctx, span := tracer.Start(ctx, "store.WriteWorkerResult")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", "worker_results"),
	)
	q := `INSERT INTO worker_results (fork_id, kind, resume_id, job_id, score, processing_time_ms, detail, created_at)
	      VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	if _, err := s.Pool.Exec(ctx, q, r.ForkID, string(r.Kind), r.ResumeID, r.JobID, r.Score, r.ProcessingTimeMS, detailJSON(r.Detail), r.CreatedAt); err != nil {
		return fmt.Errorf("op=store.WriteWorkerResult: %w", err)
	}
	return nil
}

// UpsertComposite writes the fused composite score, retrying once on
// failure per spec's PersistenceFailure policy before giving up.
func (s *Store) UpsertComposite(ctx domain.Context, c domain.CompositeScore) error {
	tracer := otel.Tracer("repo.store")
	ctx, span := tracer.Start(ctx, "store.UpsertComposite")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "UPSERT"),
		attribute.String("db.sql.table", "composite_score"),
	)
	q := `INSERT INTO composite_score
	        (resume_id, job_id, skill, semantic, experience, education, certification, composite, agents_used, total_processing_time_ms, profile_tag, created_at)
	      VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	      ON CONFLICT (resume_id, job_id) DO UPDATE SET
	        skill=EXCLUDED.skill, semantic=EXCLUDED.semantic, experience=EXCLUDED.experience,
	        education=EXCLUDED.education, certification=EXCLUDED.certification, composite=EXCLUDED.composite,
	        agents_used=EXCLUDED.agents_used, total_processing_time_ms=EXCLUDED.total_processing_time_ms,
	        profile_tag=EXCLUDED.profile_tag, created_at=EXCLUDED.created_at`
	exec := func() error {
		_, err := s.Pool.Exec(ctx, q, c.ResumeID, c.JobID, c.Skill, c.Semantic, c.Experience, c.Education,
			c.Certification, c.Composite, c.AgentsCompleted, c.TotalProcessingTimeMS, string(c.ProfileTag), c.CreatedAt)
		return err
	}
	bo := backoff.WithMaxRetries(backoff.NewConstantBackOff(100*time.Millisecond), 1)
	if err := backoff.Retry(exec, backoff.WithContext(bo, ctx)); err != nil {
		return fmt.Errorf("op=store.UpsertComposite: %w", err)
	}
	return nil
}

// SweepTerminalForksOlderThan deletes fork_ledger rows in a terminal state
// older than age. WorkerResults are retained independently (append-only).
func (s *Store) SweepTerminalForksOlderThan(ctx domain.Context, age time.Duration) (int64, error) {
	tracer := otel.Tracer("repo.store")
	ctx, span := tracer.Start(ctx, "store.SweepTerminalForksOlderThan")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "DELETE"),
		attribute.String("db.sql.table", "fork_ledger"),
	)
	cutoff := time.Now().Add(-age)
	tag, err := s.Pool.Exec(ctx,
		`DELETE FROM fork_ledger WHERE state IN ('completed','failed') AND created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("op=store.SweepTerminalForksOlderThan: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Ping implements worker.Pinger: a trivial round-trip against the primary
// store. DataURL is opaque by design (spec glossary) — every provisioning
// strategy here shares the same pool, so liveness is pool-wide rather than
// per-dataURL.
func (s *Store) Ping(ctx context.Context, _ string) error {
	tracer := otel.Tracer("repo.store")
	ctx, span := tracer.Start(ctx, "store.Ping")
	defer span.End()
	row := s.Pool.QueryRow(ctx, "SELECT 1")
	var one int
	if err := row.Scan(&one); err != nil {
		return fmt.Errorf("op=store.Ping: %w", err)
	}
	return nil
}

func detailJSON(d map[string]any) []byte {
	if d == nil {
		return []byte("{}")
	}
	b, err := json.Marshal(d)
	if err != nil {
		return []byte("{}")
	}
	return b
}
