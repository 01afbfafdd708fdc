package cas

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestStoreDedup(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	h1, err := s.Store(ctx, []byte("Hello"), "text/plain")
	require.NoError(t, err)
	h2, err := s.Store(ctx, []byte("Hello"), "text/plain")
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	var count int
	err = filepath.WalkDir(filepath.Join(s.root, "objects"), func(path string, d os.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			count++
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	b, err := s.Retrieve(ctx, h1)
	require.NoError(t, err)
	assert.Equal(t, []byte("Hello"), b)
}

func TestStoreConcurrentDedup(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	var wg sync.WaitGroup
	hashes := make([]Hash, 10)
	for i := range hashes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, err := s.Store(ctx, []byte("concurrent-content"), "text/plain")
			require.NoError(t, err)
			hashes[i] = h
		}(i)
	}
	wg.Wait()
	for _, h := range hashes {
		assert.Equal(t, hashes[0], h)
	}
}

func TestStagingSeal(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	st, err := s.CreateStaging(ctx)
	require.NoError(t, err)
	require.NoError(t, st.Write([]byte("abc")))
	require.NoError(t, st.Write([]byte("def")))

	result, err := s.Seal(ctx, st, "text/plain")
	require.NoError(t, err)

	_, statErr := os.Stat(st.path)
	assert.True(t, os.IsNotExist(statErr))

	b, err := s.Retrieve(ctx, result.Hash)
	require.NoError(t, err)
	assert.Equal(t, []byte("abcdef"), b)
}

func TestSealDedupDiscardsStaging(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Store(ctx, []byte("dup-content"), "text/plain")
	require.NoError(t, err)

	st, err := s.CreateStaging(ctx)
	require.NoError(t, err)
	require.NoError(t, st.Write([]byte("dup-content")))

	result, err := s.Seal(ctx, st, "text/plain")
	require.NoError(t, err)
	_, statErr := os.Stat(st.path)
	assert.True(t, os.IsNotExist(statErr))
	assert.Equal(t, Sum([]byte("dup-content")), result.Hash)
}

func TestReadOnlyRejectsMutations(t *testing.T) {
	ctx := context.Background()
	s, err := New(t.TempDir(), ReadOnly(true))
	require.NoError(t, err)

	_, err = s.Store(ctx, []byte("x"), "text/plain")
	assert.ErrorIs(t, err, ErrReadOnly)

	_, err = s.CreateStaging(ctx)
	assert.ErrorIs(t, err, ErrReadOnly)
}

func TestInspectSynthesizesReferenceWithoutSidecar(t *testing.T) {
	ctx := context.Background()
	s, err := New(t.TempDir(), WithMetadata(false))
	require.NoError(t, err)

	h, err := s.Store(ctx, []byte("no-sidecar"), "text/plain")
	require.NoError(t, err)

	ref, err := s.Inspect(ctx, h)
	require.NoError(t, err)
	require.NotNil(t, ref)
	assert.Equal(t, "application/octet-stream", ref.MimeType)
	assert.Equal(t, int64(len("no-sidecar")), ref.SizeBytes)
}

func TestSweeperReclaimsOrphans(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	st, err := s.CreateStaging(ctx)
	require.NoError(t, err)
	require.NoError(t, st.Write([]byte("orphan")))
	require.NoError(t, st.file.Close())
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(st.path, old, old))

	sw := NewSweeper(s, time.Minute, nil)
	n, err := sw.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, statErr := os.Stat(st.path)
	assert.True(t, os.IsNotExist(statErr))
}
