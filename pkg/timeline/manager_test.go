package timeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tobert/hootenanny-go/pkg/tempo"
)

func beat(n, d int64) tempo.Beat { return tempo.NewBeat(n, d) }

func TestLatentLifecycleApproval(t *testing.T) {
	m := NewManager(Config{MaxConcurrentJobs: 2})
	r := m.CreateLatent("r1", beat(0, 1), beat(4, 1), "melody.generate", nil)
	assert.Equal(t, LatentPending, r.Behavior.Status)

	require.NoError(t, m.StartJob("r1", "job-1"))
	assert.Equal(t, 1, m.ActiveJobCount())

	require.NoError(t, m.Progress("r1", 0.5))
	require.NoError(t, m.Resolve("r1", "artifact-1", "deadbeef", "audio/wav"))
	assert.Equal(t, 0, m.ActiveJobCount())

	got, err := m.Get("r1")
	require.NoError(t, err)
	require.Equal(t, LatentResolved, got.Behavior.Status)
	assert.False(t, got.Behavior.Eligible())

	require.NoError(t, m.Approve("r1", "alice"))
	got, err = m.Get("r1")
	require.NoError(t, err)
	assert.Equal(t, LatentApproved, got.Behavior.Status)
	assert.True(t, got.Behavior.Eligible())

	log := m.DecisionLog()
	require.Len(t, log, 1)
	assert.Equal(t, "alice", log[0].User)
}

func TestLatentAutoApprove(t *testing.T) {
	m := NewManager(Config{AutoApproveTools: map[string]bool{"drums.generate": true}})
	m.CreateLatent("r1", beat(0, 1), beat(4, 1), "drums.generate", nil)
	require.NoError(t, m.StartJob("r1", "job-1"))
	require.NoError(t, m.Resolve("r1", "artifact-1", "hash", "audio/wav"))

	got, err := m.Get("r1")
	require.NoError(t, err)
	assert.Equal(t, LatentApproved, got.Behavior.Status)
	assert.Empty(t, m.DecisionLog())
}

func TestLatentRejectIsSilent(t *testing.T) {
	m := NewManager(Config{})
	m.CreateLatent("r1", beat(0, 1), beat(4, 1), "bass.generate", nil)
	require.NoError(t, m.StartJob("r1", "job-1"))
	require.NoError(t, m.Resolve("r1", "artifact-1", "hash", "audio/wav"))
	require.NoError(t, m.Reject("r1", "bob", "wrong key"))

	got, err := m.Get("r1")
	require.NoError(t, err)
	assert.False(t, got.Behavior.Eligible())
}

func TestIllegalTransitionRejected(t *testing.T) {
	m := NewManager(Config{})
	m.CreateLatent("r1", beat(0, 1), beat(4, 1), "melody.generate", nil)
	err := m.Resolve("r1", "a", "h", "audio/wav")
	assert.ErrorIs(t, err, ErrIllegalTransition)
}

func TestBackpressure(t *testing.T) {
	m := NewManager(Config{MaxConcurrentJobs: 1})
	m.CreateLatent("r1", beat(0, 1), beat(4, 1), "t", nil)
	m.CreateLatent("r2", beat(4, 1), beat(4, 1), "t", nil)
	require.NoError(t, m.StartJob("r1", "job-1"))
	assert.False(t, m.CanSubmit())
	err := m.StartJob("r2", "job-2")
	assert.ErrorIs(t, err, ErrBackpressure)
}

func TestMixInQueueOrderingAndPop(t *testing.T) {
	m := NewManager(Config{})
	m.AddPlayContent("r1", beat(0, 1), beat(4, 1), "artifact-a")
	m.AddPlayContent("r2", beat(4, 1), beat(4, 1), "artifact-b")

	require.NoError(t, m.ScheduleMixIn("r2", beat(4, 1), StrategyHardCut, tempo.Beat{}))
	require.NoError(t, m.ScheduleMixIn("r1", beat(2, 1), StrategyCrossfade, beat(1, 1)))

	due := m.DueMixIns(beat(1, 1))
	assert.Empty(t, due)

	due = m.DueMixIns(beat(3, 1))
	require.Len(t, due, 1)
	assert.Equal(t, "r1", due[0].RegionID)

	due = m.DueMixIns(beat(10, 1))
	require.Len(t, due, 1)
	assert.Equal(t, "r2", due[0].RegionID)
}

func TestActiveRegionsOnlyEligible(t *testing.T) {
	m := NewManager(Config{})
	m.AddPlayContent("play", beat(0, 1), beat(8, 1), "artifact-a")
	m.CreateLatent("pending", beat(0, 1), beat(8, 1), "t", nil)

	active := m.ActiveRegions(beat(1, 1))
	require.Len(t, active, 1)
	assert.Equal(t, "play", active[0].ID)
}
