// Package stream implements the capture and slicing subsystem (spec.md
// §4.9): a memory-mapped chunk writer for live audio capture, a manifest
// tracking sealed/staging chunks, and a slicer that resolves a sample
// range across the manifest into a materialised WAV artifact or a virtual
// slice manifest, both stored in pkg/cas.
package stream

import "time"

// Definition is a stream's fixed identity, stored once in CAS (spec.md
// §4.9 "Capture": "{uri, device_identity, format, chunk_size_bytes}").
type Definition struct {
	URI            string `json:"uri"`
	DeviceIdentity string `json:"device_identity"`
	Format         string `json:"format"` // e.g. "pcm_f32le"
	SampleRate     int    `json:"sample_rate"`
	Channels       int    `json:"channels"`
	ChunkSizeBytes int64  `json:"chunk_size_bytes"`
}

// BytesPerFrame returns the byte width of one sample frame (all channels).
func (d Definition) BytesPerFrame() int64 {
	bytesPerSample := int64(4) // f32
	return bytesPerSample * int64(d.Channels)
}

// ChunkState discriminates a manifest entry (spec.md §3 "Stream
// Manifest").
type ChunkState string

// ChunkState values.
const (
	ChunkSealed  ChunkState = "sealed"
	ChunkStaging ChunkState = "staging"
)

// ChunkRef is one entry in a Manifest's chunk list, either Sealed (content-
// addressed in CAS) or Staging (still being written, identified by path).
type ChunkRef struct {
	State       ChunkState `json:"state"`
	Hash        string     `json:"hash,omitempty"` // set iff State == ChunkSealed
	Path        string     `json:"path,omitempty"` // set iff State == ChunkStaging
	ByteCount   int64      `json:"byte_count"`
	SampleCount int64      `json:"sample_count"`
}

// Manifest is the structured listing of a stream's chunks (spec.md §3
// "Stream Manifest").
type Manifest struct {
	StreamURI      string     `json:"stream_uri"`
	DefinitionHash string     `json:"definition_hash"`
	Chunks         []ChunkRef `json:"chunks"`
	TotalSamples   int64      `json:"total_samples"`
	CreatedAt      time.Time  `json:"created_at"`
}

// NewManifest builds an empty Manifest for a freshly started stream.
func NewManifest(uri, definitionHash string) *Manifest {
	return &Manifest{StreamURI: uri, DefinitionHash: definitionHash, CreatedAt: time.Now()}
}

// AppendSealed records a chunk that has been promoted into CAS, rolling
// its sample count into TotalSamples (spec.md §8: "sum(sample_count) <=
// total_samples; equality holds once the stream has stopped").
func (m *Manifest) AppendSealed(hash string, byteCount, sampleCount int64) {
	m.Chunks = append(m.Chunks, ChunkRef{State: ChunkSealed, Hash: hash, ByteCount: byteCount, SampleCount: sampleCount})
	m.TotalSamples += sampleCount
}

// SetStaging replaces (or appends, if absent) the single in-progress
// staging entry for path. A manifest holds at most one Staging chunk at a
// time — the one currently being written.
func (m *Manifest) SetStaging(path string, byteCount, sampleCount int64) {
	for i := range m.Chunks {
		if m.Chunks[i].State == ChunkStaging {
			m.Chunks[i] = ChunkRef{State: ChunkStaging, Path: path, ByteCount: byteCount, SampleCount: sampleCount}
			return
		}
	}
	m.Chunks = append(m.Chunks, ChunkRef{State: ChunkStaging, Path: path, ByteCount: byteCount, SampleCount: sampleCount})
}

// DropStaging removes any in-progress staging entry, e.g. once it has
// been sealed and re-added via AppendSealed.
func (m *Manifest) DropStaging() {
	out := m.Chunks[:0]
	for _, c := range m.Chunks {
		if c.State != ChunkStaging {
			out = append(out, c)
		}
	}
	m.Chunks = out
}

// SealedSampleTotal sums SampleCount across Sealed chunks only (spec.md
// §4.9 Slicing step 2: "Staging chunks are skipped").
func (m *Manifest) SealedSampleTotal() int64 {
	var total int64
	for _, c := range m.Chunks {
		if c.State == ChunkSealed {
			total += c.SampleCount
		}
	}
	return total
}
