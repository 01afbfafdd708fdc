package cas

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweeperReclaimsOldStagingOnly(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	old, err := s.CreateStaging(ctx)
	require.NoError(t, err)
	require.NoError(t, old.Write([]byte("orphan")))
	require.NoError(t, old.Flush())
	oldPath := old.path
	require.NoError(t, old.file.Close())
	oldTime := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(oldPath, oldTime, oldTime))

	fresh, err := s.CreateStaging(ctx)
	require.NoError(t, err)
	require.NoError(t, fresh.Write([]byte("in progress")))
	require.NoError(t, fresh.Flush())

	sw := NewSweeper(s, 10*time.Minute, nil)
	n, err := sw.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = os.Stat(oldPath)
	assert.True(t, os.IsNotExist(err), "orphaned staging file should be removed")
	_, err = os.Stat(fresh.path)
	assert.NoError(t, err, "fresh staging file should survive the sweep")
}
