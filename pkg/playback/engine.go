package playback

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/tobert/hootenanny-go/internal/telemetry"
	"github.com/tobert/hootenanny-go/pkg/tempo"
	"github.com/tobert/hootenanny-go/pkg/timeline"
)

// State is the transport's coarse playback state (spec.md §4.10 "Model":
// "transport state (Stopped | Playing)"). Paused is added because §4.10's
// own Render loop names a Pause operation ("holds position") distinct from
// Stop ("resets position to zero"), which a two-value enum cannot express.
type State int32

// State values.
const (
	Stopped State = iota
	Playing
	Paused
)

// MixInSource supplies due mix-in entries at each render boundary. A
// *timeline.Manager satisfies this directly (spec.md §4.8 "Mix-in queue").
type MixInSource interface {
	DueMixIns(currentBeat tempo.Beat) []timeline.MixIn
}

// ActiveSet tracks which regions currently contribute to the mix, updated
// only by draining the mix-in queue at render boundaries (spec.md §8
// scenario 6: "from that buffer onward, the engine's active-region set
// contains R").
type ActiveSet struct {
	mu         sync.RWMutex
	active     map[string]bool
	crossfades map[string]tempo.Beat // regionID -> end beat
}

func newActiveSet() *ActiveSet {
	return &ActiveSet{active: make(map[string]bool), crossfades: make(map[string]tempo.Beat)}
}

// Contains reports whether regionID is currently active.
func (a *ActiveSet) Contains(regionID string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.active[regionID]
}

// Snapshot returns every currently active region id.
func (a *ActiveSet) Snapshot() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]string, 0, len(a.active))
	for id := range a.active {
		out = append(out, id)
	}
	return out
}

func (a *ActiveSet) activate(mi timeline.MixIn) {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch mi.Strategy {
	case timeline.StrategyHardCut:
		a.active = map[string]bool{mi.RegionID: true}
		a.crossfades = map[string]tempo.Beat{}
	case timeline.StrategyCrossfade:
		a.active[mi.RegionID] = true
		a.crossfades[mi.RegionID] = mi.EndBeat()
	}
}

// pruneCompletedCrossfades drops any crossfade whose end beat has passed,
// per spec.md §4.8 "Mix-in queue": "crossfades ... are pruned when
// complete."
func (a *ActiveSet) pruneCompletedCrossfades(currentBeat tempo.Beat) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for id, end := range a.crossfades {
		if end.Cmp(currentBeat) <= 0 {
			delete(a.crossfades, id)
		}
	}
}

// Engine is the render-loop driver (spec.md §4.10). Render
// is expected to run on its own thread, timed by the host sound device;
// every control-plane interaction (Play/Pause/Stop/Seek) happens from
// other goroutines and is communicated via lock-free atomics only.
type Engine struct {
	graph      *Graph
	tempoMap   *tempo.Map
	sampleRate int
	bufferSize int

	transport       atomic.Int32
	positionSamples atomic.Int64

	mixins MixInSource
	active *ActiveSet

	logger telemetry.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger attaches a structured logger, used only to report node
// failures (the render loop's hot path never logs).
func WithLogger(l telemetry.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine builds an Engine over graph, driven by tempoMap, pulling due
// mix-ins from mixins at each render boundary.
func NewEngine(graph *Graph, tempoMap *tempo.Map, sampleRate, bufferSize int, mixins MixInSource, opts ...Option) *Engine {
	e := &Engine{
		graph:      graph,
		tempoMap:   tempoMap,
		sampleRate: sampleRate,
		bufferSize: bufferSize,
		mixins:     mixins,
		active:     newActiveSet(),
		logger:     telemetry.NewNoopLogger(),
	}
	for _, o := range opts {
		o(e)
	}
	graph.OnNodeFailed(func(idx int, reason any) {
		e.logger.Warn(context.Background(), "playback: node failed, skipping permanently", "node_index", idx, "reason", reason)
	})
	return e
}

// Play starts (or resumes) the transport.
func (e *Engine) Play() { e.transport.Store(int32(Playing)) }

// Pause holds the transport's current position (spec.md §4.10 "Render
// loop": "Pause holds position").
func (e *Engine) Pause() { e.transport.Store(int32(Paused)) }

// Stop halts the transport and resets position to zero (spec.md §4.10
// "Render loop": "Stop resets position to zero").
func (e *Engine) Stop() {
	e.transport.Store(int32(Stopped))
	e.positionSamples.Store(0)
}

// Seek sets the transport position to the sample equal to beat_to_sample
// (beat), independent of play state (spec.md §4.10 "Render loop": "Seek
// (beat) sets position to the sample equal to beat_to_sample(beat)").
func (e *Engine) Seek(beat tempo.Beat) {
	sample := e.tempoMap.TickToSample(tempo.BeatToTick(beat), e.sampleRate)
	e.positionSamples.Store(int64(sample))
}

// Transport returns the current transport state.
func (e *Engine) Transport() State { return State(e.transport.Load()) }

// PositionSamples returns the current playhead position.
func (e *Engine) PositionSamples() tempo.Sample { return tempo.Sample(e.positionSamples.Load()) }

// PositionBeats returns the current playhead position as a Beat.
func (e *Engine) PositionBeats() tempo.Beat {
	tick := e.tempoMap.SampleToTick(e.PositionSamples(), e.sampleRate)
	return tempo.TickToBeat(tick)
}

// ActiveRegions exposes the mix-in-driven active-region set (spec.md §8
// scenario 6).
func (e *Engine) ActiveRegions() *ActiveSet { return e.active }

// Render processes exactly one buffer (spec.md §4.10 "Render loop"). The
// master output slice returned is the graph's own pre-sized final buffer,
// reused every call, and node processing does not allocate. Render is not
// allocation-free as a whole: while playing, computing the playhead beat
// (PositionBeats, backed by big.Rat) allocates on every call, and
// activating a due mix-in can allocate.
func (e *Engine) Render(ctx context.Context) []float32 {
	if e.Transport() != Playing {
		master := e.graph.MasterOutput()
		for i := range master {
			master[i] = 0
		}
		return master
	}

	currentBeat := e.PositionBeats()
	for _, mi := range e.mixins.DueMixIns(currentBeat) {
		e.active.activate(mi)
	}
	e.active.pruneCompletedCrossfades(currentBeat)

	pc := ProcessContext{
		SampleRate:      e.sampleRate,
		BufferSize:      e.bufferSize,
		PositionSamples: e.PositionSamples(),
		PositionBeats:   currentBeat,
		TempoMap:        e.tempoMap,
		Transport:       e.Transport(),
	}
	e.graph.process(ctx, pc)

	e.positionSamples.Add(int64(e.bufferSize))
	return e.graph.MasterOutput()
}
