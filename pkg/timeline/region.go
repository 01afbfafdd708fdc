// Package timeline implements the Latent Region Manager (spec.md §4.8):
// the lifecycle of generative "latent" regions, their human-in-the-loop
// approval workflow, and the mix-in queue that hands approved regions off
// to the playback engine. It owns every non-Playable region's state; the
// Playback Engine (pkg/playback) only ever reads the Approved set.
package timeline

import (
	"time"

	"github.com/tobert/hootenanny-go/pkg/tempo"
)

// LatentStatus is the state of a generative region's content
// (spec.md §3 "Region", §4.8 "State machine").
type LatentStatus string

// LatentStatus values.
const (
	LatentPending  LatentStatus = "pending"
	LatentRunning  LatentStatus = "running"
	LatentResolved LatentStatus = "resolved"
	LatentApproved LatentStatus = "approved"
	LatentRejected LatentStatus = "rejected"
	LatentFailed   LatentStatus = "failed"
)

// terminal reports whether s has no further legal transition.
func (s LatentStatus) terminal() bool {
	return s == LatentApproved || s == LatentRejected || s == LatentFailed
}

// MixStrategy dictates how a region's audio joins whatever currently sounds
// when the playhead crosses its scheduled beat (spec.md §3 "Mix-In
// Schedule").
type MixStrategy string

// MixStrategy values.
const (
	StrategyHardCut   MixStrategy = "hard_cut"
	StrategyCrossfade MixStrategy = "crossfade"
)

// ResolvedContent is the artifact a Latent region resolved to, once its
// generative job completes (spec.md §3 "Region" behavior "Latent").
type ResolvedContent struct {
	ArtifactID  string
	Hash        string
	ContentType string
}

// Behavior discriminates the two kinds of region content (spec.md §3
// "Region"): a fixed reference to already-stored content, or a generative
// placeholder tracked by this package.
type Behavior struct {
	// PlayContentArtifactID is set for PlayContent regions; empty for
	// Latent ones.
	PlayContentArtifactID string

	// The remaining fields apply only when PlayContentArtifactID == "".
	Tool     string
	Params   map[string]any
	Status   LatentStatus
	Resolved *ResolvedContent
	Progress float64

	JobID string
}

// IsPlayContent reports whether this Behavior is a fixed content
// reference rather than a generative placeholder.
func (b Behavior) IsPlayContent() bool { return b.PlayContentArtifactID != "" }

// Eligible reports whether this Behavior currently contributes audio to
// the master output (spec.md §3: "Only Approved Latent regions and
// PlayContent regions contribute to audio output").
func (b Behavior) Eligible() bool {
	return b.IsPlayContent() || b.Status == LatentApproved
}

// Region is a single timeline entry (spec.md §3 "Region").
type Region struct {
	ID       string
	Position tempo.Beat
	Duration tempo.Beat
	Behavior Behavior
}

// EndBeat returns Position + Duration.
func (r Region) EndBeat() tempo.Beat { return r.Position.Add(r.Duration) }

// Decision is one audit-log entry recorded whenever a Resolved region
// leaves the Resolved state via human action (spec.md §4.8 "Auto-
// approval": "recorded in a decision log").
type Decision struct {
	RegionID string
	User     string
	Decision LatentStatus // LatentApproved or LatentRejected
	At       time.Time
	Reason   string
}

// MixIn is one entry in the mix-in queue (spec.md §3 "Mix-In Schedule").
type MixIn struct {
	RegionID    string
	TargetBeat  tempo.Beat
	Strategy    MixStrategy
	Crossfade   tempo.Beat // meaningful only when Strategy == StrategyCrossfade
}

// EndBeat returns the beat at which a crossfading MixIn finishes taking
// over, or TargetBeat for a HardCut (spec.md §4.8 "Mix-in queue": "track
// end_beat = target_beat + beats").
func (m MixIn) EndBeat() tempo.Beat {
	if m.Strategy == StrategyCrossfade {
		return m.TargetBeat.Add(m.Crossfade)
	}
	return m.TargetBeat
}
