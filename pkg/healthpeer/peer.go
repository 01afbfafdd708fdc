package healthpeer

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/tobert/hootenanny-go/internal/telemetry"
	"github.com/tobert/hootenanny-go/pkg/wire"
)

// Socket is the minimal transport a Peer needs: send a multi-frame message,
// receive one back. It is deliberately narrow so any ZeroMQ-style DEALER or
// an in-process pipe can satisfy it; pkg/healthpeer never assumes a
// particular socket library.
type Socket interface {
	Send(ctx context.Context, frames [][]byte) error
	Recv(ctx context.Context) ([][]byte, error)
	Close() error
}

// Config tunes the Lazy Pirate request loop (spec.md §4.4).
type Config struct {
	// Service is the name carried in outgoing envelopes.
	Service string
	// RequestTimeout bounds a single attempt's wait for a correlated reply.
	RequestTimeout time.Duration
	// MaxRetries is the number of retries after the first attempt; 0 means
	// a single attempt with no retry.
	MaxRetries int
	// InitialBackoff is the delay before the first retry.
	InitialBackoff time.Duration
	// MaxBackoff caps the exponential backoff (spec.md §4.4: "backoff =
	// min(base*2^(attempt-1), cap)").
	MaxBackoff time.Duration
	// MaxConsecutiveFailures is the Tracker's Dead threshold.
	MaxConsecutiveFailures int
	// HeartbeatInterval is the period of the background keepalive loop. Zero
	// disables the heartbeat goroutine.
	HeartbeatInterval time.Duration
}

// DefaultConfig returns conservative Lazy Pirate tuning.
func DefaultConfig(service string) Config {
	return Config{
		Service:                service,
		RequestTimeout:         2500 * time.Millisecond,
		MaxRetries:             3,
		InitialBackoff:         200 * time.Millisecond,
		MaxBackoff:             60 * time.Second,
		MaxConsecutiveFailures: 3,
		HeartbeatInterval:      5 * time.Second,
	}
}

// ErrExhausted is returned by Request when every attempt, including
// retries, failed to produce a correlated reply before ctx was done.
type ErrExhausted struct {
	Attempts  int
	LastError error
}

func (e *ErrExhausted) Error() string {
	return fmt.Sprintf("healthpeer: exhausted %d attempts: %v", e.Attempts, e.LastError)
}

func (e *ErrExhausted) Unwrap() error { return e.LastError }

// Peer wraps one Socket with a Tracker and the Lazy Pirate retry loop. It is
// the reliability substrate every enginepeer/workerpeer client is built on
// (spec.md §4.11).
type Peer struct {
	cfg     Config
	socket  Socket
	tracker *Tracker
	logger  telemetry.Logger
	tracer  telemetry.Tracer

	stopHeartbeat chan struct{}
}

// PeerOption configures a Peer.
type PeerOption func(*Peer)

// WithLogger attaches a structured logger.
func WithLogger(l telemetry.Logger) PeerOption {
	return func(p *Peer) { p.logger = l }
}

// WithTracer attaches a tracer.
func WithTracer(t telemetry.Tracer) PeerOption {
	return func(p *Peer) { p.tracer = t }
}

// NewPeer constructs a Peer around socket using cfg.
func NewPeer(socket Socket, cfg Config, opts ...PeerOption) *Peer {
	p := &Peer{
		cfg:           cfg,
		socket:        socket,
		tracker:       NewTracker(cfg.MaxConsecutiveFailures),
		logger:        telemetry.NewNoopLogger(),
		tracer:        telemetry.NewNoopTracer(),
		stopHeartbeat: make(chan struct{}),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Tracker exposes the underlying health tracker for Registry snapshots.
func (p *Peer) Tracker() *Tracker { return p.tracker }

// Request sends body as a structured request and waits for the correlated
// reply, retrying with capped exponential backoff on timeout or transport
// error (spec.md §4.4 "Request Loop"). Each attempt mints a fresh
// correlation id, matching the teacher's retry.Do per-attempt semantics.
// The tracker records one failure per exhausted request, not one per
// attempt.
func (p *Peer) Request(ctx context.Context, body []byte) (wire.Envelope, error) {
	ctx, span := p.tracer.Start(ctx, "healthpeer.request")
	defer span.End()

	attempts := p.cfg.MaxRetries + 1
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		env, err := p.attempt(ctx, body)
		if err == nil {
			p.tracker.RecordSuccess()
			return env, nil
		}
		lastErr = err
		p.logger.Warn(ctx, "healthpeer: request attempt failed", "service", p.cfg.Service, "attempt", attempt, "err", err)

		if attempt >= attempts {
			break
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return wire.Envelope{}, ctxErr
		}

		select {
		case <-ctx.Done():
			return wire.Envelope{}, ctx.Err()
		case <-time.After(p.backoff(attempt)):
		}
	}

	p.tracker.RecordFailure()
	span.RecordError(lastErr)
	return wire.Envelope{}, &ErrExhausted{Attempts: attempts, LastError: lastErr}
}

// backoff computes min(initial*2^(attempt-1), cap) with up to 10% jitter,
// mirroring the teacher's calculateBackoff.
func (p *Peer) backoff(attempt int) time.Duration {
	base := float64(p.cfg.InitialBackoff) * math.Pow(2, float64(attempt-1))
	maxBackoff := float64(p.cfg.MaxBackoff)
	if maxBackoff > 0 && base > maxBackoff {
		base = maxBackoff
	}
	jitter := base * 0.1 * (rand.Float64()*2 - 1) //nolint:gosec // jitter only, not security sensitive
	base += jitter
	if base < 0 {
		base = 0
	}
	return time.Duration(base)
}

func (p *Peer) attempt(ctx context.Context, body []byte) (wire.Envelope, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, p.cfg.RequestTimeout)
	defer cancel()

	id := uuid.New()
	req := wire.Request(p.cfg.Service, id, body)
	if err := p.socket.Send(attemptCtx, wire.Encode(req)); err != nil {
		return wire.Envelope{}, fmt.Errorf("healthpeer: send: %w", err)
	}

	for {
		frames, err := p.socket.Recv(attemptCtx)
		if err != nil {
			return wire.Envelope{}, fmt.Errorf("healthpeer: recv: %w", err)
		}
		_, env, err := wire.Decode(frames)
		if err != nil {
			return wire.Envelope{}, fmt.Errorf("healthpeer: decode reply: %w", err)
		}
		if env.ID != id {
			// Stale reply from a previous, already-abandoned attempt. Discard
			// and keep waiting within this attempt's deadline.
			p.logger.Debug(attemptCtx, "healthpeer: discarding mismatched reply", "want", id, "got", env.ID)
			continue
		}
		return env, nil
	}
}

// Heartbeat sends a single heartbeat envelope and updates the tracker based
// on whether a reply arrives before RequestTimeout.
func (p *Peer) Heartbeat(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.RequestTimeout)
	defer cancel()

	hb := wire.Heartbeat(p.cfg.Service)
	if err := p.socket.Send(ctx, wire.Encode(hb)); err != nil {
		p.tracker.RecordFailure()
		return fmt.Errorf("healthpeer: send heartbeat: %w", err)
	}
	frames, err := p.socket.Recv(ctx)
	if err != nil {
		p.tracker.RecordFailure()
		return fmt.Errorf("healthpeer: recv heartbeat reply: %w", err)
	}
	if _, _, err := wire.Decode(frames); err != nil {
		p.tracker.RecordFailure()
		return fmt.Errorf("healthpeer: decode heartbeat reply: %w", err)
	}
	p.tracker.RecordSuccess()
	return nil
}

// RunHeartbeatLoop blocks, sending a heartbeat every HeartbeatInterval until
// ctx is done. Intended to run in its own goroutine per peer.
func (p *Peer) RunHeartbeatLoop(ctx context.Context) {
	if p.cfg.HeartbeatInterval <= 0 {
		return
	}
	ticker := time.NewTicker(p.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopHeartbeat:
			return
		case <-ticker.C:
			if err := p.Heartbeat(ctx); err != nil {
				p.logger.Debug(ctx, "healthpeer: heartbeat failed", "service", p.cfg.Service, "err", err)
			}
		}
	}
}

// StopHeartbeat signals RunHeartbeatLoop to return.
func (p *Peer) StopHeartbeat() {
	close(p.stopHeartbeat)
}

// Close releases the underlying socket.
func (p *Peer) Close() error {
	return p.socket.Close()
}
