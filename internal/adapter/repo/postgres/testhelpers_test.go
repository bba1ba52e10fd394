package postgres_test

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// rowStub implements pgx.Row
type rowStub struct{ scan func(dest ...any) error }
func (r rowStub) Scan(dest ...any) error { return r.scan(dest...) }

// poolStub implements postgres.PgxPool for tests
// It stubs Exec and QueryRow behavior
// Define in a shared helper so multiple *_test.go files can reuse it without redefs

type poolStub struct {
	execErr error
	execTag string // e.g. "DELETE 3", parsed into CommandTag.RowsAffected()
	row     rowStub
	execs   []string // captured SQL of each Exec call, for assertions
}

func (p *poolStub) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	p.execs = append(p.execs, sql)
	if p.execTag != "" {
		return pgconn.NewCommandTag(p.execTag), p.execErr
	}
	return pgconn.CommandTag{}, p.execErr
}

func (p *poolStub) QueryRow(_ context.Context, _ string, _ ...any) pgx.Row {
	if p.row.scan == nil {
		return rowStub{scan: func(_ ...any) error { return errors.New("no row configured") }}
	}
	return p.row
}

func (p *poolStub) Query(_ context.Context, _ string, _ ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented in stub")
}
