package broker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/tobert/hootenanny-go/pkg/job"
	"github.com/tobert/hootenanny-go/pkg/job/inmem"
	"github.com/tobert/hootenanny-go/pkg/proto"
)

func newTestDispatcher(opts ...Option) (*Dispatcher, *inmem.Store) {
	store := inmem.New()
	reg := proto.NewRegistry()
	reg.Register("cas.store", proto.TimingAsyncShort, nil)
	reg.Register("timeline.reject_region", proto.TimingFireAndForget, nil)
	reg.Register("noop.sync", proto.TimingSync, nil)
	return NewDispatcher(store, reg, opts...), store
}

func TestDispatchFireAndForgetRunsSynchronouslyThenCompletes(t *testing.T) {
	d, store := newTestDispatcher()
	ran := false
	d.RegisterHandler("timeline.reject_region", func(ctx context.Context, req proto.Request) (any, *proto.ToolError) {
		ran = true
		return "ok", nil
	})

	resp := d.Dispatch(context.Background(), proto.NewRejectRegion(proto.RejectRegionParams{RegionID: "r1"}), nil)
	require.Equal(t, proto.ResponseJobStarted, resp.Kind)
	assert.True(t, ran, "fire-and-forget handler must have already run by the time Dispatch returns")

	j, err := store.Get(context.Background(), resp.JobStarted.JobID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusComplete, j.Status)
}

func TestDispatchAsyncReturnsImmediatelyThenCompletesInBackground(t *testing.T) {
	d, store := newTestDispatcher()
	started := make(chan struct{})
	release := make(chan struct{})
	d.RegisterHandler("cas.store", func(ctx context.Context, req proto.Request) (any, *proto.ToolError) {
		close(started)
		<-release
		return "hash123", nil
	})

	resp := d.Dispatch(context.Background(), proto.NewCASStore(proto.CASStoreParams{Bytes: []byte("x"), Mime: "text/plain"}), nil)
	require.Equal(t, proto.ResponseJobStarted, resp.Kind)

	<-started
	j, err := store.Get(context.Background(), resp.JobStarted.JobID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusRunning, j.Status)

	close(release)
	require.Eventually(t, func() bool {
		j, _ := store.Get(context.Background(), resp.JobStarted.JobID)
		return j.Status == job.StatusComplete
	}, time.Second, 5*time.Millisecond)
}

func TestDispatchUnknownToolReturnsNotFound(t *testing.T) {
	d, _ := newTestDispatcher()
	resp := d.Dispatch(context.Background(), proto.NewCASStore(proto.CASStoreParams{}), nil)
	require.Equal(t, proto.ResponseError, resp.Kind)
	assert.Equal(t, proto.ErrNotFound, resp.Err.Kind)
}

// syncRequest is a hand-rolled proto.Request used only to exercise the
// defensive Sync-timing rejection path; no real tool constructor in
// pkg/proto ever produces TimingSync.
type syncRequest struct{}

func (syncRequest) Name() proto.ToolName { return "noop.sync" }
func (syncRequest) Timing() proto.Timing { return proto.TimingSync }

func TestDispatchRejectsSyncTiming(t *testing.T) {
	d, _ := newTestDispatcher()
	d.RegisterHandler("noop.sync", func(ctx context.Context, req proto.Request) (any, *proto.ToolError) {
		return nil, nil
	})
	resp := d.Dispatch(context.Background(), syncRequest{}, nil)
	require.Equal(t, proto.ResponseError, resp.Kind)
}

func TestDispatchValidationFailureSkipsHandler(t *testing.T) {
	store := inmem.New()
	reg := proto.NewRegistry()
	reg.Register("cas.store", proto.TimingAsyncShort, func(v any) error {
		return proto.NewToolError(proto.ErrValidation, "mime required")
	})
	d := NewDispatcher(store, reg)
	called := false
	d.RegisterHandler("cas.store", func(ctx context.Context, req proto.Request) (any, *proto.ToolError) {
		called = true
		return nil, nil
	})

	resp := d.Dispatch(context.Background(), proto.NewCASStore(proto.CASStoreParams{}), nil)
	require.Equal(t, proto.ResponseError, resp.Kind)
	assert.False(t, called)
}

func TestDispatchWithRateLimiterStartsJob(t *testing.T) {
	d, _ := newTestDispatcher(WithRateLimiter(NewRateLimiter(func() *rate.Limiter {
		return rate.NewLimiter(rate.Limit(1000), 1)
	})))
	d.RegisterHandler("timeline.reject_region", func(ctx context.Context, req proto.Request) (any, *proto.ToolError) {
		return nil, nil
	})

	resp := d.Dispatch(context.Background(), proto.NewRejectRegion(proto.RejectRegionParams{RegionID: "r1"}), nil)
	assert.Equal(t, proto.ResponseJobStarted, resp.Kind)
}
