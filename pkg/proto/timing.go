// Package proto defines the typed request/response layer that rides on top
// of pkg/wire's envelope. It is the schema of every operation the control
// plane supports, plus the timing classification that drives dispatcher
// routing (spec.md §4.2).
package proto

// Timing classifies how long a tool's handler may run and therefore how
// the dispatcher must treat it. Sync is reserved and never produced in
// practice: per spec.md §4.2, misclassifying fast work as Sync is "a
// footgun" the original implementation avoided by routing everything,
// including sub-second calls, through a Job.
type Timing string

const (
	// TimingSync is reserved. No Request variant in this package declares
	// it; the dispatcher rejects it defensively if one ever does.
	TimingSync Timing = "sync"
	// TimingAsyncShort bounds handler latency to roughly 30s. Still
	// dispatched via a Job for uniform cancellation semantics.
	TimingAsyncShort Timing = "async_short"
	// TimingAsyncMedium bounds handler latency to roughly 120s — the
	// expected envelope for a single GPU inference call.
	TimingAsyncMedium Timing = "async_medium"
	// TimingAsyncLong is unbounded; callers manage their own polling
	// cadence against job_status.
	TimingAsyncLong Timing = "async_long"
	// TimingFireAndForget tools only report success/failure; the result
	// (if any) is not meaningful to the caller beyond the Job's status.
	TimingFireAndForget Timing = "fire_and_forget"
)

// ToolName is a stable, log/metrics/job-record friendly identifier for a
// Request variant, e.g. "cas.store" or "timeline.schedule_mix_in".
type ToolName string
