// Package ratelimit counts attempts per key over a sliding time window.
//
// The admin login uses it to cap password guesses per client IP. The Redis
// implementation shares counts across server instances; the in-memory one
// serves single-instance and local setups.
package ratelimit

import (
	"context"
	"time"
)

// Limiter records an attempt for key and reports whether it is within limit
// attempts over the trailing window. Denied attempts are not recorded, so a
// client hammering a closed limiter does not extend its own lockout.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)

	// Remaining returns how many attempts key has left in the window.
	Remaining(ctx context.Context, key string, limit int, window time.Duration) (int, error)

	// Reset forgets every attempt recorded for key.
	Reset(ctx context.Context, key string) error
}
