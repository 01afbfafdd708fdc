package tempo

import (
	"math/big"
	"sort"
	"sync"
)

// Change is one tempo (and optionally time signature) change, keyed by the
// tick at which it takes effect (spec.md §3 "Tempo Map").
type Change struct {
	Tick Tick
	BPM  float64
	// Numerator/Denominator describe the time signature in effect from
	// Tick onward. Zero values mean "unchanged from the previous Change".
	Numerator   int
	Denominator int
}

// Map is an ordered sequence of tempo changes plus the derived
// sample-per-tick rate needed for tick<->sample conversions. It is the
// single source of truth the playback engine and timeline consult for all
// time-space conversions.
type Map struct {
	mu      sync.RWMutex
	changes []Change
}

// NewMap builds a Map with a single initial tempo at tick 0. A Map must
// always have at least one Change so every conversion has a defined tempo.
func NewMap(initialBPM float64, numerator, denominator int) *Map {
	return &Map{changes: []Change{{Tick: 0, BPM: initialBPM, Numerator: numerator, Denominator: denominator}}}
}

// InsertChange adds or replaces the tempo change at c.Tick, keeping
// changes ordered by Tick (spec.md §4.7 invariant: "inserting a new tempo
// change does not retroactively change the sample positions of earlier
// ticks" — since tick_to_sample integrates strictly up to the target tick,
// inserting a change at or after that tick cannot affect it).
func (m *Map) InsertChange(c Change) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := sort.Search(len(m.changes), func(i int) bool { return m.changes[i].Tick >= c.Tick })
	if i < len(m.changes) && m.changes[i].Tick == c.Tick {
		m.changes[i] = c
		return
	}
	m.changes = append(m.changes, Change{})
	copy(m.changes[i+1:], m.changes[i:])
	m.changes[i] = c
}

// changeAt returns the index of the Change in effect at tick (the last one
// whose Tick <= the argument). Callers must hold m.mu.
func (m *Map) changeAt(tick Tick) int {
	i := sort.Search(len(m.changes), func(i int) bool { return m.changes[i].Tick > tick })
	if i == 0 {
		return 0
	}
	return i - 1
}

// TempoAt returns the BPM in effect at tick (spec.md §4.7 "tempo_at").
func (m *Map) TempoAt(tick Tick) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.changes[m.changeAt(tick)].BPM
}

// TickToSample converts tick to an absolute sample position at sampleRate,
// integrating piecewise-constant tempo across every change boundary
// crossed (spec.md §4.7 "tick_to_sample is monotone non-decreasing in
// tick").
func (m *Map) TickToSample(tick Tick, sampleRate int) Sample {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if tick <= 0 {
		return 0
	}
	var totalSamples big.Rat
	for i, c := range m.changes {
		segStart := c.Tick
		if segStart >= tick {
			break
		}
		segEnd := tick
		if i+1 < len(m.changes) && m.changes[i+1].Tick < tick {
			segEnd = m.changes[i+1].Tick
		}
		ticks := segEnd - segStart
		if ticks <= 0 {
			continue
		}
		totalSamples.Add(&totalSamples, samplesForTicks(ticks, c.BPM, sampleRate))
	}
	f, _ := totalSamples.Float64()
	return Sample(int64(f + 0.5))
}

// samplesForTicks computes the exact sample count that ticks of musical
// time occupy at bpm and sampleRate: samples = ticks / PPQ * (60/bpm) *
// sampleRate.
func samplesForTicks(ticks Tick, bpm float64, sampleRate int) *big.Rat {
	if bpm <= 0 {
		bpm = 120
	}
	secondsPerBeat := big.NewRat(60, 1)
	bpmRat := new(big.Rat).SetFloat64(bpm)
	if bpmRat == nil {
		bpmRat = big.NewRat(120, 1)
	}
	secondsPerBeat.Quo(secondsPerBeat, bpmRat)

	beats := new(big.Rat).SetFrac64(int64(ticks), PPQ)
	seconds := new(big.Rat).Mul(beats, secondsPerBeat)
	return seconds.Mul(seconds, big.NewRat(int64(sampleRate), 1))
}

// SampleToTick converts an absolute sample position back to the nearest
// Tick, by walking the same piecewise-constant segments TickToSample uses
// and finding which segment samples falls in (spec.md §4.7
// "sample_to_tick").
func (m *Map) SampleToTick(sample Sample, sampleRate int) Tick {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if sample <= 0 {
		return 0
	}
	var consumed big.Rat
	for i, c := range m.changes {
		segStart := c.Tick
		var segEndTick Tick
		hasNext := i+1 < len(m.changes)
		if hasNext {
			segEndTick = m.changes[i+1].Tick
		}

		var segSamples *big.Rat
		if hasNext {
			segSamples = samplesForTicks(segEndTick-segStart, c.BPM, sampleRate)
		}

		remaining := new(big.Rat).SetInt64(int64(sample))
		remaining.Sub(remaining, &consumed)

		if !hasNext || remaining.Cmp(segSamples) <= 0 {
			// The target sample falls within (or past the end of, for the
			// final open-ended segment) this tempo segment.
			ticksInSeg := ticksForSamples(remaining, c.BPM, sampleRate)
			return segStart + ticksInSeg
		}
		consumed.Add(&consumed, segSamples)
	}
	return m.changes[len(m.changes)-1].Tick
}

// ticksForSamples is the inverse of samplesForTicks: ticks = samples /
// sampleRate * (bpm/60) * PPQ, rounded to the nearest whole tick.
func ticksForSamples(samples *big.Rat, bpm float64, sampleRate int) Tick {
	if bpm <= 0 {
		bpm = 120
	}
	bpmRat := new(big.Rat).SetFloat64(bpm)
	if bpmRat == nil {
		bpmRat = big.NewRat(120, 1)
	}
	seconds := new(big.Rat).Quo(samples, big.NewRat(int64(sampleRate), 1))
	beats := new(big.Rat).Mul(seconds, bpmRat)
	beats.Quo(beats, big.NewRat(60, 1))
	ticksRat := new(big.Rat).Mul(beats, big.NewRat(PPQ, 1))
	f, _ := ticksRat.Float64()
	return Tick(int64(f + 0.5))
}

// TickToBeat converts tick to its exact Beat position (spec.md §4.7
// "tick_to_beat"). This conversion does not depend on the Map: Beat is
// always PPQ-relative, independent of tempo.
func TickToBeat(tick Tick) Beat {
	return BeatFromTick(tick)
}

// BeatToTick converts a Beat back to the nearest Tick (spec.md §4.7
// "beat_to_tick").
func BeatToTick(b Beat) Tick {
	return b.Tick()
}
