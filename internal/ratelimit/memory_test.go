package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLimiter_SlidingWindow(t *testing.T) {
	clock := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	l := NewMemoryLimiter()
	l.now = func() time.Time { return clock }
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		allowed, err := l.Allow(ctx, "203.0.113.7", 5, 15*time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed, "attempt %d should be allowed", i+1)
		clock = clock.Add(time.Minute)
	}

	allowed, err := l.Allow(ctx, "203.0.113.7", 5, 15*time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed, "6th attempt should be denied")

	left, err := l.Remaining(ctx, "203.0.113.7", 5, 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 0, left)

	// the first attempt (12:00) leaves the window at 12:15
	clock = time.Date(2025, 3, 1, 12, 15, 1, 0, time.UTC)
	allowed, err = l.Allow(ctx, "203.0.113.7", 5, 15*time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = l.Allow(ctx, "198.51.100.1", 5, 15*time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed, "keys are independent")
}

func TestMemoryLimiter_Reset(t *testing.T) {
	l := NewMemoryLimiter()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _ = l.Allow(ctx, "k", 3, time.Minute)
	}
	allowed, _ := l.Allow(ctx, "k", 3, time.Minute)
	assert.False(t, allowed)

	require.NoError(t, l.Reset(ctx, "k"))
	allowed, _ = l.Allow(ctx, "k", 3, time.Minute)
	assert.True(t, allowed)
}

func TestMemoryLimiter_Sweep(t *testing.T) {
	clock := time.Now()
	l := NewMemoryLimiter()
	l.now = func() time.Time { return clock }
	ctx := context.Background()

	_, _ = l.Allow(ctx, "old", 5, time.Minute)
	clock = clock.Add(2 * time.Minute)
	_, _ = l.Allow(ctx, "new", 5, time.Minute)

	assert.Equal(t, 1, l.Sweep())
	left, _ := l.Remaining(ctx, "new", 5, time.Minute)
	assert.Equal(t, 4, left)
}

func TestMemoryLimiter_ZeroLimitAllows(t *testing.T) {
	l := NewMemoryLimiter()
	allowed, err := l.Allow(context.Background(), "k", 0, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
}
