// Package job implements the durable Job record every AsyncShort/Medium/Long
// and FireAndForget tool dispatch creates (spec.md §4.6): a small state
// machine from Pending through Running to a terminal Complete, Failed, or
// Cancelled state, with an abort handle for cooperative cancellation and a
// pluggable Store for in-memory or Redis-backed persistence.
package job

import (
	"context"
	"errors"
	"time"

	"github.com/tobert/hootenanny-go/pkg/proto"
)

// Status is the coarse lifecycle state of a Job (spec.md §4.6 "State
// machine").
type Status string

// Status values.
const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusComplete  Status = "complete"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// terminal reports whether s is a terminal state no further transition can
// leave.
func (s Status) terminal() bool {
	switch s {
	case StatusComplete, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// ErrNotFound indicates no Job exists for the given id.
var ErrNotFound = errors.New("job: not found")

// ErrIllegalTransition indicates a requested status change is not reachable
// from the Job's current status (spec.md §4.6 invariant: "illegal
// transitions are rejected, not silently coerced").
var ErrIllegalTransition = errors.New("job: illegal state transition")

// Job is the durable record of one dispatched tool invocation.
type Job struct {
	ID         string
	Tool       proto.ToolName
	Status     Status
	CreatedAt  time.Time
	StartedAt  time.Time
	FinishedAt time.Time
	Result     any
	Err        *proto.ToolError
}

// AbortFunc cancels the in-flight work backing a Job. Stores hold one per
// running job so Cancel can reach across goroutines without the caller
// needing a reference to the original context.
type AbortFunc func()

// Store persists Jobs and the cancellation handle for in-flight ones.
// Implementations must make every method safe for concurrent use and return
// defensive copies of Job so callers cannot mutate stored state (spec.md
// §4.6 "get/list return snapshots").
type Store interface {
	// Create inserts a new Pending Job for tool and returns it.
	Create(ctx context.Context, id string, tool proto.ToolName) (*Job, error)
	// StoreAbort attaches the cancellation handle for a Pending or Running
	// job. Safe to call at most once per job.
	StoreAbort(ctx context.Context, id string, abort AbortFunc) error
	// MarkRunning transitions Pending -> Running.
	MarkRunning(ctx context.Context, id string) error
	// MarkComplete transitions Running -> Complete, recording result.
	MarkComplete(ctx context.Context, id string, result any) error
	// MarkFailed transitions Running -> Failed, recording toolErr. It also
	// accepts a Pending source, covering validation failures that occur
	// before the job ever starts running.
	MarkFailed(ctx context.Context, id string, toolErr *proto.ToolError) error
	// Cancel invokes the stored abort handle (if any) and transitions
	// Pending or Running -> Cancelled. Cancelling a job already in a
	// terminal state is a no-op, not an error (spec.md §4.6 "cancel is
	// idempotent").
	Cancel(ctx context.Context, id string) error
	// Get returns the Job for id.
	Get(ctx context.Context, id string) (*Job, error)
	// List returns every Job, optionally filtered to a single status.
	List(ctx context.Context, status *Status) ([]*Job, error)
	// RecoverInterrupted marks every Pending or Running job Failed with an
	// "interrupted" ToolError. Called once at process startup before new
	// work is accepted, per spec.md §4.6 "Recovery": a Job can never
	// legitimately still be Running after a restart, since the abort
	// handle that proves it is alive does not survive the process.
	RecoverInterrupted(ctx context.Context) (int, error)
}

// AllowedTransition reports whether moving a Job from cur to next is a
// legal state transition (spec.md §4.6). Store implementations must
// consult this before mutating state so every backend rejects the same
// illegal transitions.
func AllowedTransition(cur, next Status) bool {
	if cur.terminal() {
		return false
	}
	switch next {
	case StatusRunning:
		return cur == StatusPending
	case StatusComplete:
		return cur == StatusRunning
	case StatusFailed:
		return cur == StatusPending || cur == StatusRunning
	case StatusCancelled:
		return cur == StatusPending || cur == StatusRunning
	default:
		return false
	}
}
