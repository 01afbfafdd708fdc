package tempo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBeatRoundTripsThroughTick(t *testing.T) {
	b := NewBeat(5, 4)
	tick := BeatToTick(b)
	back := TickToBeat(tick)
	assert.Equal(t, 0, b.Cmp(back), "exact rational round trip must reproduce the same Beat")
}

func TestBeatArithmeticIsExact(t *testing.T) {
	a := NewBeat(1, 3)
	b := NewBeat(1, 3)
	c := NewBeat(1, 3)
	sum := a.Add(b).Add(c)
	assert.Equal(t, 0, sum.Cmp(NewBeat(1, 1)), "1/3 + 1/3 + 1/3 must be exactly 1, not a float approximation")
}

func TestParseBeatRoundTrips(t *testing.T) {
	b, ok := ParseBeat("7/8")
	require.True(t, ok)
	assert.Equal(t, "7/8", b.String())
}

func TestTickToSampleMonotoneNonDecreasing(t *testing.T) {
	m := NewMap(120, 4, 4)
	m.InsertChange(Change{Tick: 960 * 4, BPM: 90})
	m.InsertChange(Change{Tick: 960 * 8, BPM: 180})

	var prev Sample
	for tick := Tick(0); tick <= 960*16; tick += 240 {
		s := m.TickToSample(tick, 48000)
		assert.GreaterOrEqual(t, int64(s), int64(prev))
		prev = s
	}
}

func TestConversionsAreSelfInverseWithinOneTick(t *testing.T) {
	m := NewMap(140, 4, 4)
	sampleRate := 48000

	for _, tick := range []Tick{0, 100, 960, 1920, 5000} {
		s := m.TickToSample(tick, sampleRate)
		back := m.SampleToTick(s, sampleRate)
		diff := int64(back) - int64(tick)
		if diff < 0 {
			diff = -diff
		}
		assert.LessOrEqual(t, diff, int64(1), "tick %d round-tripped to %d", tick, back)
	}
}

func TestInsertingFutureTempoChangeDoesNotAlterEarlierSamplePositions(t *testing.T) {
	m := NewMap(120, 4, 4)
	earlyTick := Tick(960 * 2)
	before := m.TickToSample(earlyTick, 48000)

	m.InsertChange(Change{Tick: 960 * 10, BPM: 200})

	after := m.TickToSample(earlyTick, 48000)
	assert.Equal(t, before, after)
}

func TestTempoAtReturnsTheActiveSegment(t *testing.T) {
	m := NewMap(120, 4, 4)
	m.InsertChange(Change{Tick: 960 * 4, BPM: 90})

	assert.Equal(t, 120.0, m.TempoAt(0))
	assert.Equal(t, 120.0, m.TempoAt(960*3))
	assert.Equal(t, 90.0, m.TempoAt(960*4))
	assert.Equal(t, 90.0, m.TempoAt(960*100))
}
