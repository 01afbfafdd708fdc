package proto

import "encoding/json"

// Request is implemented by every typed request variant. Name and Timing
// are the sole inputs the dispatcher uses for routing (spec.md §4.2): it
// never switches on the concrete Go type beyond a registry lookup keyed by
// Name.
type Request interface {
	Name() ToolName
	Timing() Timing
}

// Typed wraps a concrete parameter struct P into a Request variant. Each
// tool in this package is declared as a package-level constructor that
// returns Typed[P] with a fixed name/timing, mirroring how the teacher's
// tools.ToolSpec binds a stable Name to a payload schema.
type Typed[P any] struct {
	name   ToolName
	timing Timing
	Params P
}

// Name implements Request.
func (t Typed[P]) Name() ToolName { return t.name }

// Timing implements Request.
func (t Typed[P]) Timing() Timing { return t.timing }

// RawParams unwraps the concrete params struct Typed[P] carries, so
// Registry.Validate can hand a tool's Validator the bare struct it expects
// (e.g. CASStoreParams) instead of the generic Typed[P] envelope the
// dispatcher actually passes around as a proto.Request.
func (t Typed[P]) RawParams() any { return t.Params }

// MarshalJSON renders the Typed envelope as {"tool": ..., "params": ...}
// for the debugging Json content-type path (spec.md §4.1).
func (t Typed[P]) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Tool   ToolName `json:"tool"`
		Params P        `json:"params"`
	}{Tool: t.name, Params: t.Params})
}

// --- CAS tools -------------------------------------------------------

// CASStoreParams is the payload for the "cas.store" tool.
type CASStoreParams struct {
	Bytes []byte `bson:"bytes" json:"bytes"`
	Mime  string `bson:"mime" json:"mime"`
}

// NewCASStore builds the "cas.store" request (AsyncShort: hashing and an
// idempotent write are bounded but not instantaneous for large blobs).
func NewCASStore(p CASStoreParams) Typed[CASStoreParams] {
	return Typed[CASStoreParams]{name: "cas.store", timing: TimingAsyncShort, Params: p}
}

// CASRetrieveParams is the payload for the "cas.retrieve" tool.
type CASRetrieveParams struct {
	Hash string `bson:"hash" json:"hash"`
}

// NewCASRetrieve builds the "cas.retrieve" request.
func NewCASRetrieve(p CASRetrieveParams) Typed[CASRetrieveParams] {
	return Typed[CASRetrieveParams]{name: "cas.retrieve", timing: TimingAsyncShort, Params: p}
}

// --- Job tools ---------------------------------------------------------

// JobStatusParams is the payload for the "job.status" tool.
type JobStatusParams struct {
	JobID string `bson:"job_id" json:"job_id"`
}

// NewJobStatus builds the "job.status" request.
func NewJobStatus(p JobStatusParams) Typed[JobStatusParams] {
	return Typed[JobStatusParams]{name: "job.status", timing: TimingAsyncShort, Params: p}
}

// JobListParams is the payload for the "job.list" tool; Status is optional
// and empty means "all".
type JobListParams struct {
	Status string `bson:"status,omitempty" json:"status,omitempty"`
}

// NewJobList builds the "job.list" request.
func NewJobList(p JobListParams) Typed[JobListParams] {
	return Typed[JobListParams]{name: "job.list", timing: TimingAsyncShort, Params: p}
}

// JobCancelParams is the payload for the "job.cancel" tool.
type JobCancelParams struct {
	JobID string `bson:"job_id" json:"job_id"`
}

// NewJobCancel builds the "job.cancel" request (FireAndForget: the caller
// already has the job id and polls job.status for the outcome).
func NewJobCancel(p JobCancelParams) Typed[JobCancelParams] {
	return Typed[JobCancelParams]{name: "job.cancel", timing: TimingFireAndForget, Params: p}
}

// --- Latent / timeline tools --------------------------------------------

// CreateLatentRegionParams is the payload for "timeline.create_latent_region".
type CreateLatentRegionParams struct {
	PositionBeat string  `bson:"position_beat" json:"position_beat"` // rational, "num/den"
	DurationBeat string  `bson:"duration_beat" json:"duration_beat"`
	Tool         string  `bson:"tool" json:"tool"`
	Temperature  float64 `bson:"temperature" json:"temperature"`
	TopP         float64 `bson:"top_p" json:"top_p"`
}

// NewCreateLatentRegion builds the "timeline.create_latent_region" request.
// Dispatched AsyncMedium: it hops to a GPU inference worker (spec.md §2).
func NewCreateLatentRegion(p CreateLatentRegionParams) Typed[CreateLatentRegionParams] {
	return Typed[CreateLatentRegionParams]{name: "timeline.create_latent_region", timing: TimingAsyncMedium, Params: p}
}

// ApproveRegionParams is the payload for "timeline.approve_region".
type ApproveRegionParams struct {
	RegionID string `bson:"region_id" json:"region_id"`
	User     string `bson:"user" json:"user"`
}

// NewApproveRegion builds the "timeline.approve_region" request.
func NewApproveRegion(p ApproveRegionParams) Typed[ApproveRegionParams] {
	return Typed[ApproveRegionParams]{name: "timeline.approve_region", timing: TimingFireAndForget, Params: p}
}

// RejectRegionParams is the payload for "timeline.reject_region".
type RejectRegionParams struct {
	RegionID string `bson:"region_id" json:"region_id"`
	User     string `bson:"user" json:"user"`
	Reason   string `bson:"reason,omitempty" json:"reason,omitempty"`
}

// NewRejectRegion builds the "timeline.reject_region" request.
func NewRejectRegion(p RejectRegionParams) Typed[RejectRegionParams] {
	return Typed[RejectRegionParams]{name: "timeline.reject_region", timing: TimingFireAndForget, Params: p}
}

// ScheduleMixInParams is the payload for "timeline.schedule_mix_in".
type ScheduleMixInParams struct {
	RegionID     string `bson:"region_id" json:"region_id"`
	TargetBeat   string `bson:"target_beat" json:"target_beat"`
	Strategy     string `bson:"strategy" json:"strategy"` // "hard_cut" or "crossfade"
	CrossfadeLen string `bson:"crossfade_beats,omitempty" json:"crossfade_beats,omitempty"`
}

// NewScheduleMixIn builds the "timeline.schedule_mix_in" request.
func NewScheduleMixIn(p ScheduleMixInParams) Typed[ScheduleMixInParams] {
	return Typed[ScheduleMixInParams]{name: "timeline.schedule_mix_in", timing: TimingFireAndForget, Params: p}
}

// --- Stream tools --------------------------------------------------------

// StartStreamParams is the payload for "stream.start".
type StartStreamParams struct {
	URI            string `bson:"uri" json:"uri"`
	DeviceIdentity string `bson:"device_identity" json:"device_identity"`
	Format         string `bson:"format" json:"format"`
	ChunkSizeBytes int64  `bson:"chunk_size_bytes" json:"chunk_size_bytes"`
	ChunkPath      string `bson:"chunk_path" json:"chunk_path"`
}

// NewStartStream builds the "stream.start" request.
func NewStartStream(p StartStreamParams) Typed[StartStreamParams] {
	return Typed[StartStreamParams]{name: "stream.start", timing: TimingFireAndForget, Params: p}
}

// StopStreamParams is the payload for "stream.stop".
type StopStreamParams struct {
	URI string `bson:"uri" json:"uri"`
}

// NewStopStream builds the "stream.stop" request.
func NewStopStream(p StopStreamParams) Typed[StopStreamParams] {
	return Typed[StopStreamParams]{name: "stream.stop", timing: TimingFireAndForget, Params: p}
}

// SliceParams is the payload for "stream.slice".
type SliceParams struct {
	URI    string `bson:"uri" json:"uri"`
	From   string `bson:"from" json:"from"`
	To     string `bson:"to" json:"to"`
	Output string `bson:"output" json:"output"` // "materialize" or "virtual"
}

// NewSlice builds the "stream.slice" request. AsyncShort: WAV assembly is
// bounded but can touch several chunk files.
func NewSlice(p SliceParams) Typed[SliceParams] {
	return Typed[SliceParams]{name: "stream.slice", timing: TimingAsyncShort, Params: p}
}

// --- Playback/transport tools --------------------------------------------

// TransportParams is the payload for "playback.transport": play, pause,
// stop, or seek.
type TransportParams struct {
	Action   string `bson:"action" json:"action"` // play|pause|stop|seek
	SeekBeat string `bson:"seek_beat,omitempty" json:"seek_beat,omitempty"`
}

// NewTransport builds the "playback.transport" request. FireAndForget per
// spec.md §6: the control/shell channels only report success/failure.
func NewTransport(p TransportParams) Typed[TransportParams] {
	return Typed[TransportParams]{name: "playback.transport", timing: TimingFireAndForget, Params: p}
}
