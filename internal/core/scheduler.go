package core

// scheduler.go runs background maintenance for the Service.
//
// The session sweeper forgets the resolution state of UI sessions that have
// been idle longer than SweepConfig.IdleAfter, cancelling anything they still
// have in flight. It stops when its context is cancelled.

import (
	"context"
	"log/slog"
	"time"
)

// SweepConfig holds configuration for the session sweeper.
type SweepConfig struct {
	IdleAfter time.Duration // forget sessions idle this long (default: 30m)
	Interval  time.Duration // how often to sweep (default: 5m)
}

func (c SweepConfig) withDefaults() SweepConfig {
	if c.IdleAfter <= 0 {
		c.IdleAfter = 30 * time.Minute
	}
	if c.Interval <= 0 {
		c.Interval = 5 * time.Minute
	}
	return c
}

// StartSessionSweeper blocks, pruning idle sessions every Interval until ctx
// is cancelled. Run it in its own goroutine.
func (s *Service) StartSessionSweeper(ctx context.Context, cfg SweepConfig) {
	cfg = cfg.withDefaults()
	slog.Info("session sweeper started",
		"idle_after", cfg.IdleAfter,
		"interval", cfg.Interval,
	)

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("session sweeper stopped")
			return
		case <-ticker.C:
			s.sweepSessions(cfg.IdleAfter)
		}
	}
}

func (s *Service) sweepSessions(idleAfter time.Duration) int {
	start := time.Now()
	pruned := s.tracker.Prune(idleAfter)
	if pruned > 0 {
		slog.Debug("swept idle sessions",
			"sessions_pruned", pruned,
			"sessions_active", s.tracker.Len(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
	return pruned
}
