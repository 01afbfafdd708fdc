package timeline

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tobert/hootenanny-go/internal/telemetry"
	"github.com/tobert/hootenanny-go/pkg/tempo"
)

// ErrNotFound indicates no Region exists for the given id.
var ErrNotFound = errors.New("timeline: region not found")

// ErrIllegalTransition indicates a requested LatentStatus change is not
// reachable from the region's current status (spec.md §4.8 "State
// machine").
var ErrIllegalTransition = errors.New("timeline: illegal latent state transition")

// ErrBackpressure is returned by StartJob when accepting it would exceed
// MaxConcurrentJobs (spec.md §4.8 "Backpressure").
var ErrBackpressure = errors.New("timeline: max concurrent latent jobs reached")

// allowedLatent reports whether moving a Latent region from cur to next is
// legal (spec.md §4.8 state diagram).
func allowedLatent(cur, next LatentStatus) bool {
	if cur.terminal() {
		return false
	}
	switch next {
	case LatentRunning:
		return cur == LatentPending
	case LatentResolved:
		return cur == LatentRunning
	case LatentApproved, LatentRejected:
		return cur == LatentResolved
	case LatentFailed:
		return cur == LatentRunning
	default:
		return false
	}
}

// Config tunes the Manager.
type Config struct {
	// MaxConcurrentJobs bounds active_job_count (spec.md §4.8
	// "Backpressure").
	MaxConcurrentJobs int
	// AutoApproveTools is the configured set of trusted tools whose
	// Resolved regions transition straight to Approved without a human
	// decision (spec.md §4.8 "Auto-approval").
	AutoApproveTools map[string]bool
}

// Manager owns every Region on one timeline: the Latent state machine, the
// approval decision log, the mix-in queue, and active-job backpressure
// (spec.md §4.8). All methods are safe for concurrent use.
type Manager struct {
	mu      sync.RWMutex
	cfg     Config
	regions map[string]*Region
	mixIns  []*MixIn
	log     []Decision
	active  int

	logger telemetry.Logger
	tracer telemetry.Tracer
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger attaches a structured logger.
func WithLogger(l telemetry.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithTracer attaches a tracer.
func WithTracer(t telemetry.Tracer) Option {
	return func(m *Manager) { m.tracer = t }
}

// NewManager constructs an empty Manager.
func NewManager(cfg Config, opts ...Option) *Manager {
	m := &Manager{
		cfg:     cfg,
		regions: make(map[string]*Region),
		logger:  telemetry.NewNoopLogger(),
		tracer:  telemetry.NewNoopTracer(),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// AddPlayContent inserts a fixed-content region. PlayContent regions carry
// no state machine and are immediately eligible.
func (m *Manager) AddPlayContent(id string, position, duration tempo.Beat, artifactID string) *Region {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := &Region{ID: id, Position: position, Duration: duration, Behavior: Behavior{PlayContentArtifactID: artifactID}}
	m.regions[id] = r
	return r
}

// CreateLatent inserts a new Pending Latent region (spec.md §3 "Region"
// behavior "Latent").
func (m *Manager) CreateLatent(id string, position, duration tempo.Beat, tool string, params map[string]any) *Region {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := &Region{
		ID:       id,
		Position: position,
		Duration: duration,
		Behavior: Behavior{Tool: tool, Params: params, Status: LatentPending},
	}
	m.regions[id] = r
	return r
}

// CanSubmit reports whether a new generative job may be started without
// exceeding MaxConcurrentJobs (spec.md §4.8 "Backpressure": "Dispatch is
// external; the Manager merely tracks active counts as events arrive").
func (m *Manager) CanSubmit() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg.MaxConcurrentJobs <= 0 || m.active < m.cfg.MaxConcurrentJobs
}

// StartJob records that region's generative job has been dispatched,
// transitioning Pending -> Running (spec.md §4.8 "Inputs it consumes":
// job_started).
func (m *Manager) StartJob(region, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, err := m.get(region)
	if err != nil {
		return err
	}
	if r.Behavior.IsPlayContent() {
		return fmt.Errorf("timeline: region %s is not latent", region)
	}
	if m.cfg.MaxConcurrentJobs > 0 && m.active >= m.cfg.MaxConcurrentJobs {
		return ErrBackpressure
	}
	if !allowedLatent(r.Behavior.Status, LatentRunning) {
		return ErrIllegalTransition
	}
	r.Behavior.Status = LatentRunning
	r.Behavior.JobID = jobID
	m.active++
	return nil
}

// Progress records a 0..1 progress update for a Running region (spec.md
// §4.8 "Inputs it consumes": progress).
func (m *Manager) Progress(region string, fraction float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, err := m.get(region)
	if err != nil {
		return err
	}
	if r.Behavior.Status != LatentRunning {
		return ErrIllegalTransition
	}
	if fraction < 0 {
		fraction = 0
	} else if fraction > 1 {
		fraction = 1
	}
	r.Behavior.Progress = fraction
	return nil
}

// Resolve transitions Running -> Resolved and, for a trusted tool,
// immediately Resolved -> Approved (spec.md §4.8 "Auto-approval").
func (m *Manager) Resolve(region, artifactID, hash, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, err := m.get(region)
	if err != nil {
		return err
	}
	if !allowedLatent(r.Behavior.Status, LatentResolved) {
		return ErrIllegalTransition
	}
	r.Behavior.Status = LatentResolved
	r.Behavior.Resolved = &ResolvedContent{ArtifactID: artifactID, Hash: hash, ContentType: contentType}
	r.Behavior.Progress = 1
	m.decActive()

	if m.cfg.AutoApproveTools[r.Behavior.Tool] {
		r.Behavior.Status = LatentApproved
	}
	return nil
}

// Fail transitions Running -> Failed (spec.md §4.8 "Inputs it consumes":
// failed). Failed regions are retained for audit but contribute silence.
func (m *Manager) Fail(region, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, err := m.get(region)
	if err != nil {
		return err
	}
	if !allowedLatent(r.Behavior.Status, LatentFailed) {
		return ErrIllegalTransition
	}
	r.Behavior.Status = LatentFailed
	m.decActive()
	return nil
}

// Approve records a human (or operator-tool) decision moving Resolved ->
// Approved (spec.md §4.8 "Inputs it receives": approve).
func (m *Manager) Approve(region, user string) error {
	return m.decide(region, user, LatentApproved, "")
}

// Reject records a human decision moving Resolved -> Rejected (spec.md
// §4.8 "Inputs it receives": reject).
func (m *Manager) Reject(region, user, reason string) error {
	return m.decide(region, user, LatentRejected, reason)
}

func (m *Manager) decide(region, user string, next LatentStatus, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, err := m.get(region)
	if err != nil {
		return err
	}
	if !allowedLatent(r.Behavior.Status, next) {
		return ErrIllegalTransition
	}
	r.Behavior.Status = next
	m.log = append(m.log, Decision{RegionID: region, User: user, Decision: next, At: time.Now(), Reason: reason})
	return nil
}

// DecisionLog returns a defensive copy of every recorded human decision,
// in the order made, for audit replay (SPEC_FULL.md §4.8 addition).
func (m *Manager) DecisionLog() []Decision {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Decision, len(m.log))
	copy(out, m.log)
	return out
}

// Get returns a copy of the Region for id.
func (m *Manager) Get(id string) (Region, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, err := m.get(id)
	if err != nil {
		return Region{}, err
	}
	return *r, nil
}

func (m *Manager) get(id string) (*Region, error) {
	r, ok := m.regions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return r, nil
}

func (m *Manager) decActive() {
	if m.active > 0 {
		m.active--
	}
}

// ScheduleMixIn inserts a mix-in entry, keeping the queue sorted by
// TargetBeat ascending (spec.md §4.8 "Mix-in queue").
func (m *Manager) ScheduleMixIn(region string, targetBeat tempo.Beat, strategy MixStrategy, crossfade tempo.Beat) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.get(region); err != nil {
		return err
	}
	mi := &MixIn{RegionID: region, TargetBeat: targetBeat, Strategy: strategy, Crossfade: crossfade}
	m.mixIns = append(m.mixIns, mi)
	sort.SliceStable(m.mixIns, func(i, j int) bool {
		return m.mixIns[i].TargetBeat.Cmp(m.mixIns[j].TargetBeat) < 0
	})
	return nil
}

// DueMixIns pops and returns every queued mix-in entry whose TargetBeat
// has been reached (TargetBeat <= currentBeat), in ascending TargetBeat
// order (spec.md §4.8 "Mix-in queue": "at each render boundary the
// playback engine pops all entries with target_beat <= current_beat").
func (m *Manager) DueMixIns(currentBeat tempo.Beat) []MixIn {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := 0
	var due []MixIn
	for i < len(m.mixIns) && m.mixIns[i].TargetBeat.Cmp(currentBeat) <= 0 {
		due = append(due, *m.mixIns[i])
		i++
	}
	m.mixIns = m.mixIns[i:]
	return due
}

// ActiveRegions returns every Region currently eligible to contribute
// audio (spec.md §3: "Only Approved Latent regions and PlayContent
// regions contribute to audio output"), restricted to those whose
// [Position, EndBeat) interval contains currentBeat.
func (m *Manager) ActiveRegions(currentBeat tempo.Beat) []Region {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Region
	for _, r := range m.regions {
		if !r.Behavior.Eligible() {
			continue
		}
		if r.Position.Cmp(currentBeat) <= 0 && r.EndBeat().Cmp(currentBeat) > 0 {
			out = append(out, *r)
		}
	}
	return out
}

// ActiveJobCount returns the number of Latent regions currently Running.
func (m *Manager) ActiveJobCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active
}
