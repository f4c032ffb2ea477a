// Package history maintains a bounded in-memory time series of the cohort's
// net exposure so "change over the last N hours" can be computed without an
// external time-series store.
package history

import (
	"sync"
	"time"
)

// Snapshot is one (timestamp, net exposure) observation.
type Snapshot struct {
	At     time.Time
	NetUsd float64
}

// Tracker is an append-only ring of at most capacity snapshots, oldest
// evicted on overflow. Safe for concurrent use.
type Tracker struct {
	mu       sync.RWMutex
	snaps    []Snapshot
	capacity int
	now      func() time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock substitutes the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

// NewTracker creates a tracker holding at most capacity snapshots.
func NewTracker(capacity int, opts ...Option) *Tracker {
	t := &Tracker{
		snaps:    make([]Snapshot, 0, capacity),
		capacity: capacity,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Record appends the current net exposure observation.
func (t *Tracker) Record(netUsd float64) {
	t.RecordAt(t.now(), netUsd)
}

// RecordAt appends an observation with an explicit timestamp.
func (t *Tracker) RecordAt(at time.Time, netUsd float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.snaps = append(t.snaps, Snapshot{At: at, NetUsd: netUsd})
	if len(t.snaps) > t.capacity {
		t.snaps = t.snaps[len(t.snaps)-t.capacity:]
	}
}

// ValueAt returns the recorded net exposure closest to now-ago. The match
// must fall within tolerance of the target; otherwise ok is false, which is
// a legitimate outcome (cold start or a gap in observations), not an error.
func (t *Tracker) ValueAt(ago, tolerance time.Duration) (float64, bool) {
	target := t.now().Add(-ago)

	t.mu.RLock()
	defer t.mu.RUnlock()

	if len(t.snaps) == 0 {
		return 0, false
	}

	best := t.snaps[0]
	bestDist := absDuration(best.At.Sub(target))
	for _, s := range t.snaps[1:] {
		if d := absDuration(s.At.Sub(target)); d < bestDist {
			best, bestDist = s, d
		}
	}

	if bestDist > tolerance {
		return 0, false
	}
	return best.NetUsd, true
}

// Len returns the number of retained snapshots.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.snaps)
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
