// Package healthpeer implements the Lazy Pirate reliable request/reply
// pattern (spec.md §4.4): a health tracker with consecutive-failure based
// Dead/Connected state, a request loop with per-attempt timeout and bounded
// retry/backoff, and a background heartbeat keepalive. It is the single
// reliability substrate every outbound peer in the broker shares, grounded
// on the teacher's registry.HealthTracker (ping/pong staleness) and
// runtime/a2a/retry (exponential backoff with a hard cap).
package healthpeer

import (
	"sync"
	"time"
)

// ConnectionState is the coarse health of a peer as observed by this
// process (spec.md §4.4 "State").
type ConnectionState string

// ConnectionState values.
const (
	StateUnknown   ConnectionState = "unknown"
	StateConnected ConnectionState = "connected"
	StateDead      ConnectionState = "dead"
)

// Tracker records consecutive failures for one peer and derives
// ConnectionState from them. It never spontaneously transitions out of
// Dead; only an explicit RecordSuccess does that (spec.md §4.4 invariant).
type Tracker struct {
	mu                  sync.Mutex
	maxFailures         int
	consecutiveFailures int
	state               ConnectionState
	lastSuccessAt       time.Time
}

// NewTracker builds a Tracker that transitions to Dead after maxFailures
// consecutive failed requests or heartbeats.
func NewTracker(maxFailures int) *Tracker {
	if maxFailures <= 0 {
		maxFailures = 1
	}
	return &Tracker{maxFailures: maxFailures, state: StateUnknown}
}

// RecordSuccess resets the failure counter and marks the peer Connected.
func (t *Tracker) RecordSuccess() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.consecutiveFailures = 0
	t.state = StateConnected
	t.lastSuccessAt = time.Now()
}

// RecordFailure increments the failure counter, transitioning to Dead once
// it reaches maxFailures.
func (t *Tracker) RecordFailure() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.consecutiveFailures++
	if t.consecutiveFailures >= t.maxFailures {
		t.state = StateDead
	}
}

// Snapshot is a point-in-time read of a Tracker's state.
type Snapshot struct {
	State               ConnectionState
	ConsecutiveFailures int
	LastSuccessAt       time.Time
}

// Snapshot returns the current state without mutating it.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Snapshot{
		State:               t.state,
		ConsecutiveFailures: t.consecutiveFailures,
		LastSuccessAt:       t.lastSuccessAt,
	}
}

// State returns just the current ConnectionState.
func (t *Tracker) State() ConnectionState {
	return t.Snapshot().State
}
