package proto

import (
	"fmt"

	"github.com/google/uuid"
)

// DefaultRegistry returns a Registry pre-populated with every tool declared
// in this package, including the semantic validators spec.md §4.5 calls
// out explicitly: "temperature ∈ [0, 2]", "top_p ∈ [0, 1]", parseable
// UUIDs.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.Register("cas.store", TimingAsyncShort, func(v any) error {
		p := v.(CASStoreParams)
		if len(p.Bytes) == 0 {
			return fmt.Errorf("bytes must be non-empty")
		}
		return nil
	})
	r.Register("cas.retrieve", TimingAsyncShort, validateHashField(func(v any) string { return v.(CASRetrieveParams).Hash }))

	r.Register("job.status", TimingAsyncShort, validateUUIDField(func(v any) string { return v.(JobStatusParams).JobID }))
	r.Register("job.list", TimingAsyncShort, nil)
	r.Register("job.cancel", TimingFireAndForget, validateUUIDField(func(v any) string { return v.(JobCancelParams).JobID }))

	r.Register("timeline.create_latent_region", TimingAsyncMedium, func(v any) error {
		p := v.(CreateLatentRegionParams)
		if p.Temperature < 0 || p.Temperature > 2 {
			return fmt.Errorf("temperature must be in [0, 2], got %v", p.Temperature)
		}
		if p.TopP < 0 || p.TopP > 1 {
			return fmt.Errorf("top_p must be in [0, 1], got %v", p.TopP)
		}
		if p.Tool == "" {
			return fmt.Errorf("tool is required")
		}
		return nil
	})
	r.Register("timeline.approve_region", TimingFireAndForget, validateUUIDField(func(v any) string { return v.(ApproveRegionParams).RegionID }))
	r.Register("timeline.reject_region", TimingFireAndForget, validateUUIDField(func(v any) string { return v.(RejectRegionParams).RegionID }))
	r.Register("timeline.schedule_mix_in", TimingFireAndForget, func(v any) error {
		p := v.(ScheduleMixInParams)
		if _, err := uuid.Parse(p.RegionID); err != nil {
			return fmt.Errorf("region_id must be a valid uuid: %w", err)
		}
		switch p.Strategy {
		case "hard_cut", "crossfade":
		default:
			return fmt.Errorf("strategy must be hard_cut or crossfade, got %q", p.Strategy)
		}
		return nil
	})

	r.Register("stream.start", TimingFireAndForget, func(v any) error {
		p := v.(StartStreamParams)
		if p.URI == "" {
			return fmt.Errorf("uri is required")
		}
		if p.ChunkSizeBytes <= 0 {
			return fmt.Errorf("chunk_size_bytes must be positive")
		}
		return nil
	})
	r.Register("stream.stop", TimingFireAndForget, nil)
	r.Register("stream.slice", TimingAsyncShort, func(v any) error {
		p := v.(SliceParams)
		switch p.Output {
		case "materialize", "virtual":
		default:
			return fmt.Errorf("output must be materialize or virtual, got %q", p.Output)
		}
		return nil
	})

	r.Register("playback.transport", TimingFireAndForget, func(v any) error {
		p := v.(TransportParams)
		switch p.Action {
		case "play", "pause", "stop", "seek":
		default:
			return fmt.Errorf("unknown transport action %q", p.Action)
		}
		if p.Action == "seek" && p.SeekBeat == "" {
			return fmt.Errorf("seek requires seek_beat")
		}
		return nil
	})

	return r
}

func validateUUIDField(get func(any) string) Validator {
	return func(v any) error {
		s := get(v)
		if _, err := uuid.Parse(s); err != nil {
			return fmt.Errorf("expected a valid uuid, got %q: %w", s, err)
		}
		return nil
	}
}

func validateHashField(get func(any) string) Validator {
	return func(v any) error {
		s := get(v)
		if len(s) != 32 {
			return fmt.Errorf("expected a 32-char hex content hash, got %q", s)
		}
		return nil
	}
}
