package proto

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimingClassification(t *testing.T) {
	req := NewCreateLatentRegion(CreateLatentRegionParams{
		PositionBeat: "0/1",
		DurationBeat: "4/1",
		Tool:         "orpheus",
		Temperature:  0.9,
		TopP:         0.95,
	})
	assert.Equal(t, ToolName("timeline.create_latent_region"), req.Name())
	assert.Equal(t, TimingAsyncMedium, req.Timing())
}

func TestDefaultRegistryValidatesTemperatureRange(t *testing.T) {
	r := DefaultRegistry()
	bad := CreateLatentRegionParams{Tool: "orpheus", Temperature: 3.0, TopP: 0.5}
	err := r.Validate("timeline.create_latent_region", bad, nil)
	require.Error(t, err)
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, ErrValidation, toolErr.Kind)
}

func TestDefaultRegistryValidatesTopPRange(t *testing.T) {
	r := DefaultRegistry()
	bad := CreateLatentRegionParams{Tool: "orpheus", Temperature: 0.5, TopP: 1.5}
	err := r.Validate("timeline.create_latent_region", bad, nil)
	require.Error(t, err)
}

// TestDefaultRegistryValidatesTypedRequest exercises Validate exactly as
// pkg/broker's dispatcher calls it: with the Typed[P] Request a tool
// constructor produces, not the bare params struct. A validator that
// blindly type-asserts its argument to the bare struct would panic here if
// RawParams unwrapping were missing or broken.
func TestDefaultRegistryValidatesTypedRequest(t *testing.T) {
	r := DefaultRegistry()

	good := NewCreateLatentRegion(CreateLatentRegionParams{Tool: "orpheus", Temperature: 0.5, TopP: 0.5})
	assert.NoError(t, r.Validate(good.Name(), good, nil))

	bad := NewCreateLatentRegion(CreateLatentRegionParams{Tool: "orpheus", Temperature: 3.0, TopP: 0.5})
	err := r.Validate(bad.Name(), bad, nil)
	require.Error(t, err)
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, ErrValidation, toolErr.Kind)

	goodJob := NewJobStatus(JobStatusParams{JobID: uuid.New().String()})
	assert.NoError(t, r.Validate(goodJob.Name(), goodJob, nil))

	badJob := NewJobStatus(JobStatusParams{JobID: "not-a-uuid"})
	assert.Error(t, r.Validate(badJob.Name(), badJob, nil))
}

func TestDefaultRegistryValidatesUUIDFields(t *testing.T) {
	r := DefaultRegistry()
	err := r.Validate("job.status", JobStatusParams{JobID: "not-a-uuid"}, nil)
	require.Error(t, err)

	err = r.Validate("job.status", JobStatusParams{JobID: uuid.New().String()}, nil)
	require.NoError(t, err)
}

func TestUnknownResponseNeverPanics(t *testing.T) {
	resp := UnknownResponseError("bogus_kind")
	assert.Equal(t, ResponseError, resp.Kind)
	assert.Equal(t, ErrInternal, resp.Err.Kind)
}

func TestResponseEnvelopeConstructors(t *testing.T) {
	s := Success(map[string]string{"ok": "true"})
	assert.Equal(t, ResponseSuccess, s.Kind)

	js := JobStartedResponse("job-1", "cas.store", TimingAsyncShort)
	assert.Equal(t, ResponseJobStarted, js.Kind)
	assert.Equal(t, "job-1", js.JobStarted.JobID)

	ack := Ack("queued")
	assert.Equal(t, ResponseAck, ack.Kind)

	errResp := ErrorResponse(NewToolError(ErrNotFound, "region missing"))
	assert.Equal(t, ResponseError, errResp.Kind)
}
