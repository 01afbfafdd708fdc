package workerpeer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tobert/hootenanny-go/pkg/healthpeer"
	"github.com/tobert/hootenanny-go/pkg/proto"
	"github.com/tobert/hootenanny-go/pkg/wire"
)

// fakeSocket echoes back a canned ResponseEnvelope for every request,
// regardless of the request body, matching the style of
// pkg/healthpeer's own test doubles.
type fakeSocket struct {
	sends [][][]byte
	resp  proto.ResponseEnvelope
}

func (f *fakeSocket) Send(_ context.Context, frames [][]byte) error {
	f.sends = append(f.sends, frames)
	return nil
}

func (f *fakeSocket) Recv(_ context.Context) ([][]byte, error) {
	_, env, err := wire.Decode(f.sends[len(f.sends)-1])
	if err != nil {
		return nil, err
	}
	body, err := wire.DefaultCodec.Encode(f.resp)
	if err != nil {
		return nil, err
	}
	reply := wire.Reply(env.Service, env.ID, body)
	return wire.Encode(reply), nil
}

func (f *fakeSocket) Close() error { return nil }

func TestSubmitRoundTrip(t *testing.T) {
	sock := &fakeSocket{resp: proto.JobStartedResponse("job-1", "timeline.create_latent_region", proto.TimingAsyncMedium)}
	cfg := healthpeer.DefaultConfig("worker-0")
	cfg.RequestTimeout = 200 * time.Millisecond
	peer := healthpeer.NewPeer(sock, cfg)
	c := New(peer, nil)

	req := proto.NewCreateLatentRegion(proto.CreateLatentRegionParams{Tool: "melody.generate"})
	resp, err := c.Submit(context.Background(), "job-1", req)
	require.NoError(t, err)
	require.Equal(t, proto.ResponseJobStarted, resp.Kind)
	require.Equal(t, "job-1", resp.JobStarted.JobID)
}
