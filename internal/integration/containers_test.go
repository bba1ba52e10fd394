//go:build ignore
// Integration tests are disabled in this project. Use unit tests with the
// hand-written fakes in each package instead.

package integration

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jackc/pgx/v5/pgxpool"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/basalt-labs/resume-fit-coordinator/internal/adapter/repo/postgres"
	"github.com/basalt-labs/resume-fit-coordinator/internal/config"
	"github.com/basalt-labs/resume-fit-coordinator/internal/coordinator"
	"github.com/basalt-labs/resume-fit-coordinator/internal/domain"
	"github.com/basalt-labs/resume-fit-coordinator/internal/fork"
	"github.com/basalt-labs/resume-fit-coordinator/internal/worker"
)

const schemaDDL = `
CREATE TABLE resumes (
	id TEXT PRIMARY KEY, body TEXT, skills JSONB, years_experience INT,
	education JSONB, certifications JSONB, embedding JSONB
);
CREATE TABLE jobs (
	id TEXT PRIMARY KEY, title TEXT, description TEXT, required_years INT, embedding JSONB
);
CREATE TABLE fork_ledger (
	fork_id TEXT PRIMARY KEY, kind TEXT, resume_id TEXT, job_id TEXT, state TEXT,
	strategy TEXT, data_url TEXT, created_at TIMESTAMPTZ, started_at TIMESTAMPTZ,
	completed_at TIMESTAMPTZ, error_message TEXT
);
CREATE TABLE worker_results (
	fork_id TEXT, kind TEXT, resume_id TEXT, job_id TEXT, score DOUBLE PRECISION,
	processing_time_ms BIGINT, detail JSONB, created_at TIMESTAMPTZ
);
CREATE TABLE composite_score (
	resume_id TEXT, job_id TEXT, skill DOUBLE PRECISION, semantic DOUBLE PRECISION,
	experience DOUBLE PRECISION, education DOUBLE PRECISION, certification DOUBLE PRECISION,
	composite DOUBLE PRECISION, agents_used INT, total_processing_time_ms BIGINT,
	profile_tag TEXT, created_at TIMESTAMPTZ,
	PRIMARY KEY (resume_id, job_id)
);
`

// TestCoordinator_EndToEnd_WithRealPostgresAndRedis boots real Postgres and
// Redis containers, seeds a résumé/job pair, and drives a full
// Coordinator.Score call through the Postgres-backed fork provisioner and
// result store — the one scenario the in-memory fakes in
// internal/coordinator/coordinator_test.go can't exercise: the actual SQL
// shapes in internal/adapter/repo/postgres against a live database.
func TestCoordinator_EndToEnd_WithRealPostgresAndRedis(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	pgReq := testcontainers.ContainerRequest{
		Image:        "postgres:16",
		Env:          map[string]string{"POSTGRES_PASSWORD": "postgres", "POSTGRES_USER": "postgres", "POSTGRES_DB": "app"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithStartupTimeout(90 * time.Second),
	}
	pgC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{ContainerRequest: pgReq, Started: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })
	pgh, err := pgC.Host(ctx)
	require.NoError(t, err)
	pgp, err := pgC.MappedPort(ctx, "5432")
	require.NoError(t, err)
	dsn := "postgres://postgres:postgres@" + pgh + ":" + pgp.Port() + "/app?sslmode=disable"

	db, err := sql.Open("pgx", dsn)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return db.Ping() == nil }, 30*time.Second, 1*time.Second)
	_, err = db.Exec(schemaDDL)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO resumes (id, body, skills, years_experience, education, certifications, embedding)
		VALUES ('r1','go backend engineer', '["go","postgresql","kubernetes"]', 6, '["BS Computer Science"]', '["AWS Certified Solutions Architect"]', '[0.1,0.2,0.3]')`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO jobs (id, title, description, required_years, embedding)
		VALUES ('j1','Senior Go Engineer','go, postgresql, kubernetes, 5+ years required', 5, '[0.1,0.2,0.3]')`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	rdReq := testcontainers.ContainerRequest{
		Image:        "redis:7",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
	}
	rdC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{ContainerRequest: rdReq, Started: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdC.Terminate(ctx) })
	rdh, err := rdC.Host(ctx)
	require.NoError(t, err)
	rdp, err := rdC.MappedPort(ctx, "6379")
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: rdh + ":" + rdp.Port()})
	require.Eventually(t, func() bool { return rdb.Ping(ctx).Err() == nil }, 30*time.Second, 1*time.Second)

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()

	store := postgres.NewStore(pool, dsn)
	resumeJobs := postgres.NewResumeJobReader(pool)
	backstop := fork.NewRedisBackstop(rdb, 10, time.Minute)
	forkMgr := fork.NewManager(store, store, 10, config.RetryConfig{MaxRetries: 1, InitialDelay: 10 * time.Millisecond, MaxDelay: 100 * time.Millisecond, Multiplier: 2}, backstop)

	registry := worker.NewRegistry(worker.DefaultCatalog())
	coord := coordinator.NewCoordinator(resumeJobs, forkMgr, store, registry, store, 10*time.Second)

	resp, err := coord.Score(ctx, "r1", "j1")
	require.NoError(t, err)
	require.Equal(t, domain.ProfileSeniorLeadership, resp.Weights.ProfileTag)
	require.Equal(t, 5, resp.AgentsCompleted)
	require.True(t, resp.Persisted)
	require.Greater(t, resp.Scores.Composite, 0.5)
}
