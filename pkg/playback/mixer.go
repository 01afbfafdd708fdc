package playback

import (
	"math"
	"sync/atomic"
)

// ChannelControls holds one mixer channel's scalar controls as lock-free
// atomic cells, read every buffer on the audio callback thread which must
// never block on a mutex (spec.md §9 "Shared mutable control state at the
// audio callback"; §5 "lock-free atomic loads/stores at the audio
// callback"). Relaxed ordering is acceptable: exact sample-accurate
// ordering of UI edits is not a requirement this domain has.
type ChannelControls struct {
	gainBits atomic.Uint64 // float64 bits
	panBits  atomic.Uint64 // float64 bits, -1..1
	mute     atomic.Bool
	solo     atomic.Bool
	enabled  atomic.Bool
}

// NewChannelControls returns controls at unity gain, centered pan, enabled.
func NewChannelControls() *ChannelControls {
	c := &ChannelControls{}
	c.SetGain(1.0)
	c.SetPan(0.0)
	c.enabled.Store(true)
	return c
}

// SetGain stores a new linear gain multiplier.
func (c *ChannelControls) SetGain(g float64) { c.gainBits.Store(math.Float64bits(g)) }

// Gain loads the current linear gain multiplier.
func (c *ChannelControls) Gain() float64 { return math.Float64frombits(c.gainBits.Load()) }

// SetPan stores a new pan position, -1 (left) to 1 (right).
func (c *ChannelControls) SetPan(p float64) { c.panBits.Store(math.Float64bits(p)) }

// Pan loads the current pan position.
func (c *ChannelControls) Pan() float64 { return math.Float64frombits(c.panBits.Load()) }

// SetMute stores the mute flag.
func (c *ChannelControls) SetMute(m bool) { c.mute.Store(m) }

// Muted loads the mute flag.
func (c *ChannelControls) Muted() bool { return c.mute.Load() }

// SetSolo stores the solo flag.
func (c *ChannelControls) SetSolo(s bool) { c.solo.Store(s) }

// Soloed loads the solo flag.
func (c *ChannelControls) Soloed() bool { return c.solo.Load() }

// SetEnabled stores the enabled flag.
func (c *ChannelControls) SetEnabled(e bool) { c.enabled.Store(e) }

// Enabled loads the enabled flag.
func (c *ChannelControls) Enabled() bool { return c.enabled.Load() }

// Audible reports whether this channel should currently contribute sound,
// given soloAny (whether any channel in the mix is soloed).
func (c *ChannelControls) Audible(soloAny bool) bool {
	if !c.Enabled() || c.Muted() {
		return false
	}
	if soloAny && !c.Soloed() {
		return false
	}
	return true
}
