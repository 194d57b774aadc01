package ratelimit

import (
	"context"
	"time"
)

const (
	// Five failed logins inside the window lock the identifier out for
	// LockDuration.
	MaxFailures  = 5
	Window       = 15 * time.Minute
	LockDuration = 15 * time.Minute
)

// Status reports the lockout state of one client identifier.
type Status struct {
	Locked     bool
	RetryAfter time.Duration
}

// AttemptStore tracks failed login attempts per client identifier. A
// process-local map and a shared Redis backend implement the same
// contract; multi-instance deployments must use the shared one or the
// limit degrades to per-instance.
type AttemptStore interface {
	Check(ctx context.Context, key string) (Status, error)
	RecordFailure(ctx context.Context, key string) (Status, error)
	Reset(ctx context.Context, key string) error
}
