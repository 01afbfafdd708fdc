// Package workerpeer implements the broker's peer to a single GPU
// inference worker (spec.md §4.11, §6): one request/reply channel plus
// heartbeat, built entirely from pkg/healthpeer — workers need nothing
// beyond the Lazy Pirate substrate itself.
package workerpeer

import (
	"context"
	"fmt"

	"github.com/tobert/hootenanny-go/pkg/healthpeer"
	"github.com/tobert/hootenanny-go/pkg/proto"
	"github.com/tobert/hootenanny-go/pkg/wire"
)

// Client is the broker-side peer to one worker daemon.
type Client struct {
	peer  *healthpeer.Peer
	codec wire.Codec
}

// New wraps peer (already constructed with its Socket and Config) as a
// worker Client using codec to encode/decode typed request and response
// bodies.
func New(peer *healthpeer.Peer, codec wire.Codec) *Client {
	if codec == nil {
		codec = wire.DefaultCodec
	}
	return &Client{peer: peer, codec: codec}
}

// Submit encodes req, attaches jobID as dispatcher correlation metadata
// (spec.md §4.5 "Correlating async results back to Jobs": "the dispatcher
// attaches the Job id in the outgoing message's metadata field"), and
// round-trips it through the Lazy Pirate request loop.
func (c *Client) Submit(ctx context.Context, jobID string, req proto.Request) (proto.ResponseEnvelope, error) {
	envelope := struct {
		JobID string `bson:"job_id" json:"job_id"`
		Tool  string `bson:"tool" json:"tool"`
		Req   any    `bson:"req" json:"req"`
	}{JobID: jobID, Tool: string(req.Name()), Req: req}

	body, err := c.codec.Encode(envelope)
	if err != nil {
		return proto.ResponseEnvelope{}, fmt.Errorf("workerpeer: encode request: %w", err)
	}

	reply, err := c.peer.Request(ctx, body)
	if err != nil {
		return proto.ResponseEnvelope{}, fmt.Errorf("workerpeer: request: %w", err)
	}

	var resp proto.ResponseEnvelope
	replyBody, err := wire.ExtractBody(reply, wire.ContentStructured)
	if err != nil {
		return proto.ResponseEnvelope{}, fmt.Errorf("workerpeer: extract reply body: %w", err)
	}
	if err := c.codec.Decode(replyBody, &resp); err != nil {
		return proto.ResponseEnvelope{}, fmt.Errorf("workerpeer: decode reply: %w", err)
	}
	return resp, nil
}

// Tracker exposes the underlying Lazy Pirate health tracker.
func (c *Client) Tracker() *healthpeer.Tracker { return c.peer.Tracker() }

// RunHeartbeat runs the background keepalive loop; intended to run in its
// own goroutine for the lifetime of the Client.
func (c *Client) RunHeartbeat(ctx context.Context) { c.peer.RunHeartbeatLoop(ctx) }

// Close releases the underlying socket.
func (c *Client) Close() error { return c.peer.Close() }
