package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tobert/hootenanny-go/pkg/cas"
)

// TimeSpecKind discriminates a TimeSpec variant (spec.md §4.9 "Slicing").
type TimeSpecKind string

// TimeSpecKind values.
const (
	TimeAbsolute      TimeSpecKind = "absolute"
	TimeRelative      TimeSpecKind = "relative"
	TimeSamplePosition TimeSpecKind = "sample_position"
	TimeStreamStart   TimeSpecKind = "stream_start"
	TimeStreamHead    TimeSpecKind = "stream_head"
)

// TimeSpec identifies a point on a stream's timeline (spec.md §3 "Stream
// URI" / §4.9 "Slicing").
type TimeSpec struct {
	Kind         TimeSpecKind
	Absolute     time.Time
	SecondsAgo   float64
	SamplePos    int64
}

// AbsoluteTime builds a TimeAbsolute TimeSpec.
func AbsoluteTime(t time.Time) TimeSpec { return TimeSpec{Kind: TimeAbsolute, Absolute: t} }

// RelativeSecondsAgo builds a TimeRelative TimeSpec.
func RelativeSecondsAgo(s float64) TimeSpec { return TimeSpec{Kind: TimeRelative, SecondsAgo: s} }

// AtSample builds a TimeSamplePosition TimeSpec.
func AtSample(n int64) TimeSpec { return TimeSpec{Kind: TimeSamplePosition, SamplePos: n} }

// StreamStart is the TimeSpec for the first captured sample.
var StreamStart = TimeSpec{Kind: TimeStreamStart}

// StreamHead is the TimeSpec for the most recently captured sample.
var StreamHead = TimeSpec{Kind: TimeStreamHead}

// OutputKind selects how Slice materialises its result (spec.md §4.9
// "Slicing" step 3/4).
type OutputKind string

// OutputKind values.
const (
	OutputMaterialize OutputKind = "materialize"
	OutputVirtual     OutputKind = "virtual"
)

// SliceRequest describes one slice operation (spec.md §3 "SliceRequest").
type SliceRequest struct {
	From   TimeSpec
	To     TimeSpec
	Output OutputKind
}

// ErrEmptyRange is returned when From resolves to a position at or after
// To.
var ErrEmptyRange = errors.New("stream: slice range is empty")

// resolve maps a TimeSpec to an absolute sample position given the
// manifest's sealed-chunk totals and capture start time (spec.md §4.9
// Slicing step 1).
func resolve(spec TimeSpec, m *Manifest, sampleRate int) int64 {
	switch spec.Kind {
	case TimeStreamStart:
		return 0
	case TimeStreamHead:
		return m.SealedSampleTotal()
	case TimeSamplePosition:
		return spec.SamplePos
	case TimeRelative:
		n := m.SealedSampleTotal() - int64(spec.SecondsAgo*float64(sampleRate))
		if n < 0 {
			n = 0
		}
		return n
	case TimeAbsolute:
		elapsed := spec.Absolute.Sub(m.CreatedAt).Seconds()
		n := int64(elapsed * float64(sampleRate))
		if n < 0 {
			n = 0
		}
		return n
	default:
		return 0
	}
}

// chunkSlice is one sealed chunk's contribution to a resolved sample
// range (spec.md §4.9 Slicing step 2).
type chunkSlice struct {
	Hash         string
	ByteOffset   int64
	ByteLength   int64
	SampleOffset int64
	SampleLength int64
}

// planSlices walks m's sealed chunks in order, computing every chunkSlice
// that intersects [fromSample, toSample) (spec.md §4.9 Slicing step 2:
// "Staging chunks are skipped").
func planSlices(m *Manifest, bytesPerFrame int64, fromSample, toSample int64) []chunkSlice {
	var out []chunkSlice
	cursor := int64(0)
	for _, c := range m.Chunks {
		if c.State != ChunkSealed {
			continue
		}
		chunkStart := cursor
		chunkEnd := cursor + c.SampleCount
		cursor = chunkEnd

		start := maxI64(fromSample, chunkStart)
		end := minI64(toSample, chunkEnd)
		if start >= end {
			continue
		}
		sampleOffsetInChunk := start - chunkStart
		sampleLength := end - start
		out = append(out, chunkSlice{
			Hash:         c.Hash,
			ByteOffset:   sampleOffsetInChunk * bytesPerFrame,
			ByteLength:   sampleLength * bytesPerFrame,
			SampleOffset: sampleOffsetInChunk,
			SampleLength: sampleLength,
		})
	}
	return out
}

func maxI64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func minI64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

// virtualSliceManifest is the body stored in CAS for an OutputVirtual
// slice (spec.md §4.9 Slicing step 4).
type virtualSliceManifest struct {
	StreamURI    string       `json:"stream_uri"`
	FromSample   int64        `json:"from_sample"`
	ToSample     int64        `json:"to_sample"`
	Chunks       []chunkSlice `json:"chunks"`
}

// SliceResult is what Slice returns: the CAS hash of the materialised or
// virtual artifact and its mime type.
type SliceResult struct {
	Hash     string
	MimeType string
}

// Slice resolves req against m, then either materialises the concatenated
// PCM bytes as a WAV file or stores a virtual manifest of chunk ranges,
// per spec.md §4.9 "Slicing" steps 3-4. store is the CAS the source chunks
// and the result both live in.
func Slice(ctx context.Context, store *cas.Store, def Definition, m *Manifest, req SliceRequest) (*SliceResult, error) {
	from := resolve(req.From, m, def.SampleRate)
	to := resolve(req.To, m, def.SampleRate)
	if from >= to {
		return nil, ErrEmptyRange
	}

	slices := planSlices(m, def.BytesPerFrame(), from, to)

	switch req.Output {
	case OutputVirtual:
		return storeVirtual(ctx, store, m.StreamURI, from, to, slices)
	default:
		return materialize(ctx, store, def, slices, to-from)
	}
}

func materialize(ctx context.Context, store *cas.Store, def Definition, slices []chunkSlice, totalSamples int64) (*SliceResult, error) {
	var buf bytes.Buffer
	dataBytes := totalSamples * def.BytesPerFrame()
	WriteWAVHeader(&buf, def.SampleRate, def.Channels, 32, dataBytes)

	for _, sl := range slices {
		full, err := store.Retrieve(ctx, cas.Hash(sl.Hash))
		if err != nil {
			return nil, fmt.Errorf("stream: retrieve chunk %s: %w", sl.Hash, err)
		}
		if full == nil {
			return nil, fmt.Errorf("stream: chunk %s missing from cas", sl.Hash)
		}
		end := sl.ByteOffset + sl.ByteLength
		if end > int64(len(full)) {
			end = int64(len(full))
		}
		buf.Write(full[sl.ByteOffset:end])
	}

	h, err := store.Store(ctx, buf.Bytes(), "audio/wav")
	if err != nil {
		return nil, err
	}
	return &SliceResult{Hash: h.String(), MimeType: "audio/wav"}, nil
}

func storeVirtual(ctx context.Context, store *cas.Store, uri string, from, to int64, slices []chunkSlice) (*SliceResult, error) {
	vm := virtualSliceManifest{StreamURI: uri, FromSample: from, ToSample: to, Chunks: slices}
	b, err := json.Marshal(vm)
	if err != nil {
		return nil, err
	}
	h, err := store.Store(ctx, b, "application/x-virtual-slice")
	if err != nil {
		return nil, err
	}
	return &SliceResult{Hash: h.String(), MimeType: "application/x-virtual-slice"}, nil
}
