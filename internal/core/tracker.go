package core

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrStaleResolution is returned when a resolution finishes after a newer
// one was started for the same session. Its result is discarded.
var ErrStaleResolution = errors.New("resolution superseded by a newer request")

// ResolveTracker keeps, per UI session, the sequence number of the newest
// resolution and the cancel func of the one in flight. Starting a resolution
// cancels the previous one; only the newest may commit its result.
type ResolveTracker struct {
	mu       sync.Mutex
	sessions map[string]*trackedSession
}

type trackedSession struct {
	seq       uint64
	cancel    context.CancelFunc
	result    *Resolution
	resultSeq uint64
	touched   time.Time
}

// NewResolveTracker returns an empty tracker.
func NewResolveTracker() *ResolveTracker {
	return &ResolveTracker{sessions: make(map[string]*trackedSession)}
}

// Begin starts a resolution for session, cancelling any earlier one still
// running. The returned context is cancelled when a newer resolution begins.
func (t *ResolveTracker) Begin(parent context.Context, session string) (context.Context, uint64) {
	ctx, cancel := context.WithCancel(parent)

	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sessions[session]
	if !ok {
		s = &trackedSession{}
		t.sessions[session] = s
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.seq++
	s.cancel = cancel
	s.touched = time.Now()
	return ctx, s.seq
}

// Commit stores result as the session's current state if seq is still the
// newest resolution. Otherwise the result is dropped and ErrStaleResolution
// is returned.
func (t *ResolveTracker) Commit(session string, seq uint64, result *Resolution) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sessions[session]
	if !ok || s.seq != seq {
		return ErrStaleResolution
	}
	s.result = result
	s.resultSeq = seq
	s.touched = time.Now()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	return nil
}

// Finish releases the context of resolution seq without storing a result.
// It is a no-op when a newer resolution has started.
func (t *ResolveTracker) Finish(session string, seq uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if s, ok := t.sessions[session]; ok && s.seq == seq && s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// Current reports whether seq is still the newest resolution for session.
func (t *ResolveTracker) Current(session string, seq uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sessions[session]
	return ok && s.seq == seq
}

// Latest returns the last committed result for session.
func (t *ResolveTracker) Latest(session string) (*Resolution, uint64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sessions[session]
	if !ok || s.result == nil {
		return nil, 0, false
	}
	return s.result, s.resultSeq, true
}

// Prune forgets sessions idle for longer than maxAge and returns how many
// were removed. In-flight resolutions of pruned sessions are cancelled.
func (t *ResolveTracker) Prune(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for id, s := range t.sessions {
		if s.touched.Before(cutoff) {
			if s.cancel != nil {
				s.cancel()
			}
			delete(t.sessions, id)
			n++
		}
	}
	return n
}

// Len returns the number of tracked sessions.
func (t *ResolveTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}

// ResolveForSession resolves modelID on behalf of a UI session. A resolution
// overtaken by a newer one for the same session returns ErrStaleResolution
// and never replaces the newer state.
func (s *Service) ResolveForSession(ctx context.Context, session string, modelID int64) (*Resolution, error) {
	rctx, seq := s.tracker.Begin(ctx, session)

	res, err := s.Resolve(rctx, modelID)
	if err != nil {
		s.tracker.Finish(session, seq)
		if !s.tracker.Current(session, seq) {
			return nil, ErrStaleResolution
		}
		return nil, err
	}

	if err := s.tracker.Commit(session, seq, res); err != nil {
		return nil, err
	}
	return res, nil
}
