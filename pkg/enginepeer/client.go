// Package enginepeer implements the broker's peer to the real-time
// engine, which exposes five channels over the envelope protocol
// (spec.md §6): control (priority request/reply), shell (normal
// request/reply), iopub (publish/subscribe events), heartbeat
// (liveness), and query (structured state reads). Each request/reply
// channel is its own pkg/healthpeer.Peer; iopub is a one-way subscribe
// loop the dispatcher drains to correlate async results back to Jobs
// (spec.md §4.5).
package enginepeer

import (
	"context"
	"fmt"

	"github.com/tobert/hootenanny-go/pkg/healthpeer"
	"github.com/tobert/hootenanny-go/pkg/proto"
	"github.com/tobert/hootenanny-go/pkg/wire"
)

// Subscriber is the one-way transport the iopub channel reads from: no
// Send, since the engine only ever publishes.
type Subscriber interface {
	Recv(ctx context.Context) ([][]byte, error)
	Close() error
}

// EventKind discriminates an iopub event (spec.md §4.8 "Inputs it
// consumes (from workers)").
type EventKind string

// EventKind values.
const (
	EventJobStarted  EventKind = "job_started"
	EventProgress    EventKind = "progress"
	EventResolved    EventKind = "resolved"
	EventFailed      EventKind = "failed"
	EventTransport   EventKind = "transport"
)

// Event is one decoded iopub message. Fields beyond Kind/JobID/Region are
// populated according to Kind.
type Event struct {
	Kind        EventKind `bson:"kind" json:"kind"`
	JobID       string    `bson:"job_id,omitempty" json:"job_id,omitempty"`
	RegionID    string    `bson:"region_id,omitempty" json:"region_id,omitempty"`
	Progress    float64   `bson:"progress,omitempty" json:"progress,omitempty"`
	ArtifactID  string    `bson:"artifact_id,omitempty" json:"artifact_id,omitempty"`
	Hash        string    `bson:"hash,omitempty" json:"hash,omitempty"`
	ContentType string    `bson:"content_type,omitempty" json:"content_type,omitempty"`
	Error       string    `bson:"error,omitempty" json:"error,omitempty"`
}

// Client is the broker's five-channel peer to one real-time engine
// instance.
type Client struct {
	control *healthpeer.Peer
	shell   *healthpeer.Peer
	query   *healthpeer.Peer
	hb      *healthpeer.Peer
	iopub   Subscriber
	codec   wire.Codec
}

// Channels bundles the five concrete transports a Client is built from.
// Control/shell/query/heartbeat are request/reply peers already wrapping
// their own Socket and Config; iopub is subscribe-only.
type Channels struct {
	Control   *healthpeer.Peer
	Shell     *healthpeer.Peer
	Query     *healthpeer.Peer
	Heartbeat *healthpeer.Peer
	IOPub     Subscriber
}

// New builds a Client from ch, using codec (default BSON) for every
// request/reply body.
func New(ch Channels, codec wire.Codec) *Client {
	if codec == nil {
		codec = wire.DefaultCodec
	}
	return &Client{control: ch.Control, shell: ch.Shell, query: ch.Query, hb: ch.Heartbeat, iopub: ch.IOPub, codec: codec}
}

func (c *Client) roundTrip(ctx context.Context, peer *healthpeer.Peer, jobID string, req proto.Request) (proto.ResponseEnvelope, error) {
	envelope := struct {
		JobID string `bson:"job_id,omitempty" json:"job_id,omitempty"`
		Tool  string `bson:"tool" json:"tool"`
		Req   any    `bson:"req" json:"req"`
	}{JobID: jobID, Tool: string(req.Name()), Req: req}

	body, err := c.codec.Encode(envelope)
	if err != nil {
		return proto.ResponseEnvelope{}, fmt.Errorf("enginepeer: encode request: %w", err)
	}
	reply, err := peer.Request(ctx, body)
	if err != nil {
		return proto.ResponseEnvelope{}, fmt.Errorf("enginepeer: request: %w", err)
	}
	replyBody, err := wire.ExtractBody(reply, wire.ContentStructured)
	if err != nil {
		return proto.ResponseEnvelope{}, fmt.Errorf("enginepeer: extract reply body: %w", err)
	}
	var resp proto.ResponseEnvelope
	if err := c.codec.Decode(replyBody, &resp); err != nil {
		return proto.ResponseEnvelope{}, fmt.Errorf("enginepeer: decode reply: %w", err)
	}
	return resp, nil
}

// Control sends req on the priority channel — emergency commands like
// pause or dump (spec.md §6).
func (c *Client) Control(ctx context.Context, jobID string, req proto.Request) (proto.ResponseEnvelope, error) {
	return c.roundTrip(ctx, c.control, jobID, req)
}

// Shell sends req on the normal command channel — play, seek, create
// region (spec.md §6).
func (c *Client) Shell(ctx context.Context, jobID string, req proto.Request) (proto.ResponseEnvelope, error) {
	return c.roundTrip(ctx, c.shell, jobID, req)
}

// Query sends req on the structured-query channel (spec.md §6).
func (c *Client) Query(ctx context.Context, jobID string, req proto.Request) (proto.ResponseEnvelope, error) {
	return c.roundTrip(ctx, c.query, jobID, req)
}

// RunHeartbeat runs the dedicated heartbeat channel's keepalive loop.
func (c *Client) RunHeartbeat(ctx context.Context) { c.hb.RunHeartbeatLoop(ctx) }

// RunIOPubLoop blocks, decoding events off the iopub subscriber and
// invoking handler for each, until ctx is done or Recv fails. This is the
// dispatcher's route for correlating asynchronous engine-side completion
// back to a Job by id, without polling (spec.md §4.5 "Correlating async
// results back to Jobs").
func (c *Client) RunIOPubLoop(ctx context.Context, handler func(Event)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		frames, err := c.iopub.Recv(ctx)
		if err != nil {
			return fmt.Errorf("enginepeer: iopub recv: %w", err)
		}
		_, env, err := wire.Decode(frames)
		if err != nil {
			continue // malformed publish frame; drop and keep listening
		}
		body, err := wire.ExtractBody(env, wire.ContentStructured)
		if err != nil {
			continue
		}
		var ev Event
		if err := c.codec.Decode(body, &ev); err != nil {
			continue
		}
		handler(ev)
	}
}

// Trackers returns the Lazy Pirate health trackers for control/shell/query
// so a Registry snapshot can report all three (spec.md §4.4 "Registry").
func (c *Client) Trackers() map[string]*healthpeer.Tracker {
	return map[string]*healthpeer.Tracker{
		"control": c.control.Tracker(),
		"shell":   c.shell.Tracker(),
		"query":   c.query.Tracker(),
	}
}

// Close releases every request/reply channel and the iopub subscriber.
func (c *Client) Close() error {
	var firstErr error
	for _, closer := range []func() error{c.control.Close, c.shell.Close, c.query.Close, c.hb.Close, c.iopub.Close} {
		if err := closer(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
