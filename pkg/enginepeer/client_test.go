package enginepeer

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tobert/hootenanny-go/pkg/healthpeer"
	"github.com/tobert/hootenanny-go/pkg/proto"
	"github.com/tobert/hootenanny-go/pkg/wire"
)

type fakeReplySocket struct {
	sends [][][]byte
	ack   string
}

func (f *fakeReplySocket) Send(_ context.Context, frames [][]byte) error {
	f.sends = append(f.sends, frames)
	return nil
}

func (f *fakeReplySocket) Recv(_ context.Context) ([][]byte, error) {
	_, env, err := wire.Decode(f.sends[len(f.sends)-1])
	if err != nil {
		return nil, err
	}
	body, err := wire.DefaultCodec.Encode(proto.Ack(f.ack))
	if err != nil {
		return nil, err
	}
	reply := wire.Reply(env.Service, env.ID, body)
	return wire.Encode(reply), nil
}

func (f *fakeReplySocket) Close() error { return nil }

func newPeer(name, ack string) *healthpeer.Peer {
	cfg := healthpeer.DefaultConfig(name)
	cfg.RequestTimeout = 200 * time.Millisecond
	return healthpeer.NewPeer(&fakeReplySocket{ack: ack}, cfg)
}

// fakeSubscriber delivers a fixed queue of pre-encoded iopub envelopes,
// then blocks until ctx is done.
type fakeSubscriber struct {
	queue [][][]byte
}

func (f *fakeSubscriber) Recv(ctx context.Context) ([][]byte, error) {
	if len(f.queue) == 0 {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	next := f.queue[0]
	f.queue = f.queue[1:]
	return next, nil
}

func (f *fakeSubscriber) Close() error { return nil }

func encodeEvent(t *testing.T, ev Event) [][]byte {
	t.Helper()
	body, err := wire.DefaultCodec.Encode(ev)
	require.NoError(t, err)
	return wire.Encode(wire.Reply("engine", uuid.New(), body))
}

func TestClientControlShellQuery(t *testing.T) {
	c := New(Channels{
		Control: newPeer("engine-control", "paused"),
		Shell:   newPeer("engine-shell", "playing"),
		Query:   newPeer("engine-query", "ok"),
	}, nil)

	resp, err := c.Control(context.Background(), "job-1", proto.NewTransport(proto.TransportParams{Action: "pause"}))
	require.NoError(t, err)
	assert.Equal(t, "paused", resp.AckMessage)

	resp, err = c.Shell(context.Background(), "job-2", proto.NewTransport(proto.TransportParams{Action: "play"}))
	require.NoError(t, err)
	assert.Equal(t, "playing", resp.AckMessage)

	resp, err = c.Query(context.Background(), "job-3", proto.NewTransport(proto.TransportParams{Action: "play"}))
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.AckMessage)
}

func TestRunIOPubLoopDispatchesEvents(t *testing.T) {
	sub := &fakeSubscriber{queue: [][][]byte{encodeEvent(t, Event{Kind: EventResolved, RegionID: "r1", ArtifactID: "a1"})}}
	c := New(Channels{IOPub: sub}, nil)

	received := make(chan Event, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	go func() {
		_ = c.RunIOPubLoop(ctx, func(ev Event) {
			received <- ev
		})
	}()

	select {
	case ev := <-received:
		assert.Equal(t, EventResolved, ev.Kind)
		assert.Equal(t, "r1", ev.RegionID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for iopub event")
	}
}
