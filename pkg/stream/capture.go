package stream

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/edsrzf/mmap-go"
)

// ErrUnknownStream is returned by Registry operations on a URI with no
// active ChunkHandle.
var ErrUnknownStream = errors.New("stream: unknown stream uri")

// ChunkHandle is the capture-side state for one stream's current chunk
// file: an mmap'd region the hot write path copies into without
// allocating or blocking (spec.md §4.9 "Capture").
type ChunkHandle struct {
	def Definition

	mu             sync.Mutex
	file           *os.File
	mm             mmap.MMap
	path           string
	chunkOffset    int64 // bytes written into the current chunk
	chunkSamples   int64 // samples written into the current chunk
	totalSamples   int64 // cumulative across all chunks this stream has had
	totalBytes     int64
}

// StartChunk opens path, mmaps def.ChunkSizeBytes of it, and seeds an
// empty ChunkHandle (spec.md §4.9 "Capture" step 1).
func StartChunk(def Definition, path string) (*ChunkHandle, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("stream: open chunk file: %w", err)
	}
	if err := f.Truncate(def.ChunkSizeBytes); err != nil {
		f.Close()
		return nil, fmt.Errorf("stream: truncate chunk file: %w", err)
	}
	mm, err := mmap.MapRegion(f, int(def.ChunkSizeBytes), mmap.RDWR, 0, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stream: mmap chunk file: %w", err)
	}
	return &ChunkHandle{def: def, file: f, mm: mm, path: path}, nil
}

// WriteSamples copies samples into the mmap at the current offset,
// updating counters, and reports the number of bytes actually written
// along with whether the chunk is now full (spec.md §4.9 "Capture" step
// 2). It never blocks or allocates: the copy is a single bounded memcpy.
func (h *ChunkHandle) WriteSamples(samples []byte, sampleCount int64) (written int64, full bool, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	remaining := int64(len(h.mm)) - h.chunkOffset
	n := int64(len(samples))
	if n > remaining {
		n = remaining
	}
	copy(h.mm[h.chunkOffset:h.chunkOffset+n], samples[:n])
	h.chunkOffset += n
	h.totalBytes += n

	frac := float64(n) / float64(len(samples))
	writtenSamples := int64(float64(sampleCount) * frac)
	if len(samples) == 0 {
		writtenSamples = 0
	}
	h.chunkSamples += writtenSamples
	h.totalSamples += writtenSamples

	return n, h.chunkOffset >= int64(len(h.mm)), nil
}

// Path is the current chunk file's path.
func (h *ChunkHandle) Path() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.path
}

// ChunkCounts returns the current chunk's byte and sample counts.
func (h *ChunkHandle) ChunkCounts() (bytes, samples int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.chunkOffset, h.chunkSamples
}

// TotalSamples returns the cumulative sample count across every chunk this
// handle has ever held, including the one currently open.
func (h *ChunkHandle) TotalSamples() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.totalSamples
}

// Flush fsyncs the current mmap to disk without switching chunks.
func (h *ChunkHandle) Flush() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.mm.Flush()
}

// SwitchChunk flushes and unmaps the current chunk, opens and mmaps
// newPath, and resets the per-chunk counters while preserving cumulative
// totals (spec.md §4.9 "Capture" step 3).
func (h *ChunkHandle) SwitchChunk(newPath string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.mm.Flush(); err != nil {
		return fmt.Errorf("stream: flush old chunk: %w", err)
	}
	if err := h.mm.Unmap(); err != nil {
		return fmt.Errorf("stream: unmap old chunk: %w", err)
	}
	if err := h.file.Close(); err != nil {
		return fmt.Errorf("stream: close old chunk file: %w", err)
	}

	f, err := os.OpenFile(newPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("stream: open next chunk file: %w", err)
	}
	if err := f.Truncate(h.def.ChunkSizeBytes); err != nil {
		f.Close()
		return fmt.Errorf("stream: truncate next chunk file: %w", err)
	}
	mm, err := mmap.MapRegion(f, int(h.def.ChunkSizeBytes), mmap.RDWR, 0, 0)
	if err != nil {
		f.Close()
		return fmt.Errorf("stream: mmap next chunk file: %w", err)
	}

	h.file = f
	h.mm = mm
	h.path = newPath
	h.chunkOffset = 0
	h.chunkSamples = 0
	return nil
}

// Stop flushes and closes the current chunk (spec.md §4.9 "Capture" step
// 4).
func (h *ChunkHandle) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.mm.Flush(); err != nil {
		return err
	}
	if err := h.mm.Unmap(); err != nil {
		return err
	}
	return h.file.Close()
}

// Registry tracks one ChunkHandle per active stream URI, standing in for
// the broker's bookkeeping of which peer owns which mmap'd chunk.
type Registry struct {
	mu      sync.RWMutex
	streams map[string]*ChunkHandle
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{streams: make(map[string]*ChunkHandle)}
}

// Start registers a new ChunkHandle for uri.
func (r *Registry) Start(uri string, def Definition, chunkPath string) (*ChunkHandle, error) {
	h, err := StartChunk(def, chunkPath)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.streams[uri] = h
	r.mu.Unlock()
	return h, nil
}

// Get returns the ChunkHandle for uri.
func (r *Registry) Get(uri string) (*ChunkHandle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.streams[uri]
	if !ok {
		return nil, ErrUnknownStream
	}
	return h, nil
}

// Stop stops and unregisters uri's ChunkHandle.
func (r *Registry) Stop(uri string) error {
	r.mu.Lock()
	h, ok := r.streams[uri]
	delete(r.streams, uri)
	r.mu.Unlock()
	if !ok {
		return ErrUnknownStream
	}
	return h.Stop()
}
