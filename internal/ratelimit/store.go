// Package ratelimit provides windowed request counters behind a single Store
// contract, with an in-process backend for single-instance deployments and a
// Redis backend for horizontally-scaled ones.
package ratelimit

import (
	"context"
	"time"
)

// Result reports the outcome of a counter check.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Store is a keyed windowed counter. Check consumes one unit of quota when
// allowed; a denied check consumes nothing. Peek reports the same decision
// without consuming, so callers can evaluate several windows before
// committing to any of them.
//
// Counter state is owned exclusively by the store; callers only ever see
// Result snapshots.
type Store interface {
	Check(ctx context.Context, key string, limit int, window time.Duration) (Result, error)
	Peek(ctx context.Context, key string, limit int, window time.Duration) (Result, error)
}
