package ratelimit

import (
	"context"
	"sync"
	"time"
)

var _ Limiter = (*MemoryLimiter)(nil)

// MemoryLimiter is a process-local Limiter. Attempts older than the largest
// window seen are dropped on access, so idle keys are collected lazily by
// Sweep.
type MemoryLimiter struct {
	mu       sync.Mutex
	attempts map[string][]time.Time
	maxAge   time.Duration
	now      func() time.Time
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		attempts: make(map[string][]time.Time),
		now:      time.Now,
	}
}

func (l *MemoryLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if limit <= 0 {
		return true, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if window > l.maxAge {
		l.maxAge = window
	}
	now := l.now()
	recent := trim(l.attempts[key], now.Add(-window))
	if len(recent) >= limit {
		l.attempts[key] = recent
		return false, nil
	}
	l.attempts[key] = append(recent, now)
	return true, nil
}

func (l *MemoryLimiter) Remaining(ctx context.Context, key string, limit int, window time.Duration) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	left := limit - len(trim(l.attempts[key], l.now().Add(-window)))
	if left < 0 {
		left = 0
	}
	return left, nil
}

func (l *MemoryLimiter) Reset(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.attempts, key)
	return nil
}

// Sweep drops keys with no attempts inside the largest window used so far
// and returns how many were removed.
func (l *MemoryLimiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.maxAge)
	n := 0
	for key, ts := range l.attempts {
		if len(trim(ts, cutoff)) == 0 {
			delete(l.attempts, key)
			n++
		}
	}
	return n
}

// trim returns the attempts after cutoff. ts is in ascending order.
func trim(ts []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(ts) && !ts[i].After(cutoff) {
		i++
	}
	return ts[i:]
}
