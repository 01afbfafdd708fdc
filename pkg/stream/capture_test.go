package stream

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChunkHandleWriteAndFull(t *testing.T) {
	dir := t.TempDir()
	def := Definition{SampleRate: 48000, Channels: 1, ChunkSizeBytes: 16}
	h, err := StartChunk(def, filepath.Join(dir, "chunk0"))
	require.NoError(t, err)
	defer h.Stop()

	n, full, err := h.WriteSamples(make([]byte, 8), 2)
	require.NoError(t, err)
	require.EqualValues(t, 8, n)
	require.False(t, full)

	n, full, err = h.WriteSamples(make([]byte, 8), 2)
	require.NoError(t, err)
	require.EqualValues(t, 8, n)
	require.True(t, full)

	bytes, samples := h.ChunkCounts()
	require.EqualValues(t, 16, bytes)
	require.EqualValues(t, 4, samples)
}

func TestChunkHandleSwitchPreservesTotals(t *testing.T) {
	dir := t.TempDir()
	def := Definition{SampleRate: 48000, Channels: 1, ChunkSizeBytes: 16}
	h, err := StartChunk(def, filepath.Join(dir, "chunk0"))
	require.NoError(t, err)
	defer h.Stop()

	_, _, err = h.WriteSamples(make([]byte, 16), 4)
	require.NoError(t, err)
	require.EqualValues(t, 4, h.TotalSamples())

	require.NoError(t, h.SwitchChunk(filepath.Join(dir, "chunk1")))
	bytes, samples := h.ChunkCounts()
	require.Zero(t, bytes)
	require.Zero(t, samples)
	require.EqualValues(t, 4, h.TotalSamples())

	_, _, err = h.WriteSamples(make([]byte, 8), 2)
	require.NoError(t, err)
	require.EqualValues(t, 6, h.TotalSamples())
}

func TestRegistryLifecycle(t *testing.T) {
	dir := t.TempDir()
	r := NewRegistry()
	def := Definition{SampleRate: 48000, Channels: 1, ChunkSizeBytes: 64}

	_, err := r.Start("stream://dev/a", def, filepath.Join(dir, "c0"))
	require.NoError(t, err)

	h, err := r.Get("stream://dev/a")
	require.NoError(t, err)
	require.NotNil(t, h)

	require.NoError(t, r.Stop("stream://dev/a"))
	_, err = r.Get("stream://dev/a")
	require.ErrorIs(t, err, ErrUnknownStream)
}
