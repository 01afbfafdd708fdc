package inmem

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tobert/hootenanny-go/pkg/job"
	"github.com/tobert/hootenanny-go/pkg/proto"
)

func TestLifecycleHappyPath(t *testing.T) {
	ctx := context.Background()
	s := New()

	j, err := s.Create(ctx, "j1", "cas.store")
	require.NoError(t, err)
	assert.Equal(t, job.StatusPending, j.Status)

	require.NoError(t, s.MarkRunning(ctx, "j1"))
	got, err := s.Get(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, job.StatusRunning, got.Status)
	assert.False(t, got.StartedAt.IsZero())

	require.NoError(t, s.MarkComplete(ctx, "j1", "ok"))
	got, err = s.Get(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, job.StatusComplete, got.Status)
	assert.Equal(t, "ok", got.Result)
}

func TestIllegalTransitionsRejected(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, err := s.Create(ctx, "j1", "cas.store")
	require.NoError(t, err)

	err = s.MarkComplete(ctx, "j1", "x")
	assert.ErrorIs(t, err, job.ErrIllegalTransition)

	require.NoError(t, s.MarkRunning(ctx, "j1"))
	require.NoError(t, s.MarkComplete(ctx, "j1", "done"))

	err = s.MarkRunning(ctx, "j1")
	assert.ErrorIs(t, err, job.ErrIllegalTransition)
	err = s.MarkFailed(ctx, "j1", proto.NewToolError(proto.ErrInternal, "x"))
	assert.ErrorIs(t, err, job.ErrIllegalTransition)
}

func TestCancelIsIdempotentAndInvokesAbort(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, err := s.Create(ctx, "j1", "cas.store")
	require.NoError(t, err)

	called := 0
	require.NoError(t, s.StoreAbort(ctx, "j1", func() { called++ }))
	require.NoError(t, s.Cancel(ctx, "j1"))
	assert.Equal(t, 1, called)

	got, err := s.Get(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, job.StatusCancelled, got.Status)

	// Cancelling an already-terminal job is a no-op, not an error, and does
	// not invoke abort again.
	require.NoError(t, s.Cancel(ctx, "j1"))
	assert.Equal(t, 1, called)
}

func TestGetReturnsDefensiveCopy(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, err := s.Create(ctx, "j1", "cas.store")
	require.NoError(t, err)

	got, err := s.Get(ctx, "j1")
	require.NoError(t, err)
	got.Status = job.StatusCancelled

	reread, err := s.Get(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, job.StatusPending, reread.Status, "mutating a returned Job must not affect the store")
}

func TestListFiltersByStatus(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, _ = s.Create(ctx, "j1", "cas.store")
	_, _ = s.Create(ctx, "j2", "cas.store")
	require.NoError(t, s.MarkRunning(ctx, "j2"))

	pending := job.StatusPending
	list, err := s.List(ctx, &pending)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "j1", list[0].ID)

	all, err := s.List(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestRecoverInterruptedFailsPendingAndRunning(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, _ = s.Create(ctx, "j1", "cas.store")
	_, _ = s.Create(ctx, "j2", "cas.store")
	require.NoError(t, s.MarkRunning(ctx, "j2"))
	_, _ = s.Create(ctx, "j3", "cas.store")
	require.NoError(t, s.MarkRunning(ctx, "j3"))
	require.NoError(t, s.MarkComplete(ctx, "j3", "done"))

	n, err := s.RecoverInterrupted(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	j1, _ := s.Get(ctx, "j1")
	j2, _ := s.Get(ctx, "j2")
	j3, _ := s.Get(ctx, "j3")
	assert.Equal(t, job.StatusFailed, j1.Status)
	assert.Equal(t, job.StatusFailed, j2.Status)
	assert.Equal(t, job.StatusComplete, j3.Status, "already-terminal jobs must not be touched by recovery")
}
