// Package broker implements the dispatcher that turns a decoded pkg/proto
// Request into a pkg/job.Job and a ResponseEnvelope, the single place
// spec.md §4.5's timing-class routing lives: FireAndForget tools run
// synchronously behind a Job record for uniform status/cancel semantics,
// while every Async* tool spawns its handler in a goroutine and returns
// JobStarted immediately.
package broker

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/tobert/hootenanny-go/internal/telemetry"
	"github.com/tobert/hootenanny-go/pkg/job"
	"github.com/tobert/hootenanny-go/pkg/proto"
)

// Handler executes one tool's business logic. It returns either a result
// value (wrapped into a Success response, or into the Job's Result for
// async tools) or a ToolError.
type Handler func(ctx context.Context, req proto.Request) (any, *proto.ToolError)

// Dispatcher routes validated requests to handlers and tracks their
// execution through pkg/job.
type Dispatcher struct {
	jobs     job.Store
	registry *proto.Registry
	limiter  *RateLimiter
	handlers map[proto.ToolName]Handler
	logger   telemetry.Logger
	tracer   telemetry.Tracer
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithRateLimiter attaches a RateLimiter; dispatch waits for a token before
// validating or running the tool.
func WithRateLimiter(rl *RateLimiter) Option {
	return func(d *Dispatcher) { d.limiter = rl }
}

// WithLogger attaches a structured logger.
func WithLogger(l telemetry.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// WithTracer attaches a tracer.
func WithTracer(t telemetry.Tracer) Option {
	return func(d *Dispatcher) { d.tracer = t }
}

// NewDispatcher builds a Dispatcher over jobs and registry.
func NewDispatcher(jobs job.Store, registry *proto.Registry, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		jobs:     jobs,
		registry: registry,
		handlers: make(map[proto.ToolName]Handler),
		logger:   telemetry.NewNoopLogger(),
		tracer:   telemetry.NewNoopTracer(),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// RegisterHandler binds a tool name to its Handler. Calling it twice for
// the same name overwrites the previous binding.
func (d *Dispatcher) RegisterHandler(name proto.ToolName, h Handler) {
	d.handlers[name] = h
}

// Dispatch validates req, creates its Job record, and routes execution
// according to req.Timing() (spec.md §4.5).
func (d *Dispatcher) Dispatch(ctx context.Context, req proto.Request, raw map[string]any) proto.ResponseEnvelope {
	ctx, span := d.tracer.Start(ctx, "broker.dispatch")
	defer span.End()

	name := req.Name()
	timing := req.Timing()

	if timing == proto.TimingSync {
		err := proto.NewToolError(proto.ErrInternal, "sync timing is reserved and never dispatched")
		span.RecordError(err)
		return proto.ErrorResponse(err)
	}

	if d.limiter != nil {
		if err := d.limiter.Wait(ctx, name); err != nil {
			toolErr := proto.NewToolError(proto.ErrTransport, "rate limit wait: "+err.Error())
			return proto.ErrorResponse(toolErr)
		}
	}

	if err := d.registry.Validate(name, req, raw); err != nil {
		if toolErr, ok := asToolError(err); ok {
			return proto.ErrorResponse(toolErr)
		}
		return proto.ErrorResponse(proto.NewToolError(proto.ErrValidation, err.Error()))
	}

	handler, ok := d.handlers[name]
	if !ok {
		return proto.ErrorResponse(proto.NewToolError(proto.ErrNotFound, fmt.Sprintf("no handler registered for tool %q", name)))
	}

	id := uuid.New().String()
	if _, err := d.jobs.Create(ctx, id, name); err != nil {
		return proto.ErrorResponse(proto.NewToolError(proto.ErrInternal, "create job: "+err.Error()))
	}

	if timing == proto.TimingFireAndForget {
		d.runFireAndForget(ctx, id, req, handler)
		return proto.JobStartedResponse(id, name, timing)
	}

	d.runAsync(ctx, id, req, handler)
	return proto.JobStartedResponse(id, name, timing)
}

// runFireAndForget executes handler inline, synchronously, then marks the
// job Complete or Failed before Dispatch returns JobStarted. The caller
// still gets a job id so job.status can be polled, matching spec.md §4.2's
// "every dispatched tool, including fire-and-forget ones, produces a job
// record."
func (d *Dispatcher) runFireAndForget(ctx context.Context, id string, req proto.Request, handler Handler) {
	if err := d.jobs.MarkRunning(ctx, id); err != nil {
		d.logger.Warn(ctx, "broker: mark running failed", "job_id", id, "err", err)
		return
	}
	result, toolErr := handler(ctx, req)
	if toolErr != nil {
		if err := d.jobs.MarkFailed(ctx, id, toolErr); err != nil {
			d.logger.Warn(ctx, "broker: mark failed failed", "job_id", id, "err", err)
		}
		return
	}
	if err := d.jobs.MarkComplete(ctx, id, result); err != nil {
		d.logger.Warn(ctx, "broker: mark complete failed", "job_id", id, "err", err)
	}
}

// runAsync spawns handler in its own goroutine under a cancellable context
// whose cancel func is stored as the job's abort handle, then returns
// without waiting (spec.md §4.5 "Async* tools return immediately").
func (d *Dispatcher) runAsync(parent context.Context, id string, req proto.Request, handler Handler) {
	// Detached from parent's cancellation: a caller's RPC context ending
	// must not kill in-flight work the caller already committed to via
	// JobStarted. The job's own Cancel is the only way to abort it.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(parent))
	if err := d.jobs.StoreAbort(parent, id, cancel); err != nil {
		d.logger.Warn(parent, "broker: store abort failed", "job_id", id, "err", err)
	}

	go func() {
		defer cancel()
		if err := d.jobs.MarkRunning(runCtx, id); err != nil {
			d.logger.Warn(runCtx, "broker: mark running failed", "job_id", id, "err", err)
			return
		}
		result, toolErr := handler(runCtx, req)
		if toolErr != nil {
			if err := d.jobs.MarkFailed(runCtx, id, toolErr); err != nil {
				d.logger.Warn(runCtx, "broker: mark failed failed", "job_id", id, "err", err)
			}
			return
		}
		if err := d.jobs.MarkComplete(runCtx, id, result); err != nil {
			d.logger.Warn(runCtx, "broker: mark complete failed", "job_id", id, "err", err)
		}
	}()
}

func asToolError(err error) (*proto.ToolError, bool) {
	te, ok := err.(*proto.ToolError)
	return te, ok
}
