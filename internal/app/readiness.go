// Package app wires application components and startup helpers.
//
// It provides dependency injection and application initialization.
// The package coordinates between different layers and provides
// a clean application bootstrap process.
package app

import (
	"context"
	"fmt"
)

// Pinger is the minimal interface for a database pool capable of Ping.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ForkManagerHealth reports whether the fork manager has spare capacity.
type ForkManagerHealth interface {
	Healthy(ctx context.Context) error
}

// BuildReadinessChecks returns the readiness checks for the scoring
// coordinator: the primary Postgres store and the fork manager.
func BuildReadinessChecks(pool Pinger, forkMgr ForkManagerHealth) (
	func(ctx context.Context) error,
	func(ctx context.Context) error,
) {
	dbCheck := func(ctx context.Context) error {
		if pool == nil {
			return fmt.Errorf("db not configured")
		}
		return pool.Ping(ctx)
	}
	forkCheck := func(ctx context.Context) error {
		if forkMgr == nil {
			return fmt.Errorf("fork manager not configured")
		}
		return forkMgr.Healthy(ctx)
	}
	return dbCheck, forkCheck
}
