// Command hootbroker is a minimal single-process wiring of the broker
// dispatcher, job store, and CAS (spec.md §2 "Broker Dispatcher"); it also
// constructs a timeline manager but registers no timeline.* handlers for
// it. It registers handlers for the CAS and job tools over an
// in-memory job store and a filesystem-backed CAS rooted at -data, and
// exists to demonstrate the wiring — a real deployment replaces the
// in-memory job store with pkg/job/redisstore and attaches real
// pkg/enginepeer / pkg/workerpeer sockets.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/tobert/hootenanny-go/internal/telemetry"
	"github.com/tobert/hootenanny-go/pkg/broker"
	"github.com/tobert/hootenanny-go/pkg/cas"
	"github.com/tobert/hootenanny-go/pkg/job"
	"github.com/tobert/hootenanny-go/pkg/job/inmem"
	"github.com/tobert/hootenanny-go/pkg/proto"
	"github.com/tobert/hootenanny-go/pkg/timeline"
)

func main() {
	dataDir := flag.String("data", "./hootenanny-data", "root directory for the CAS")
	flag.Parse()

	logger := telemetry.NewNoopLogger()

	store, err := cas.New(*dataDir)
	if err != nil {
		log.Fatalf("hootbroker: open cas at %s: %v", *dataDir, err)
	}

	jobs := inmem.New()
	// DefaultRegistry carries spec.md §4.5's explicit validation rules
	// (temperature/top_p ranges, parseable uuids) for every tool this
	// package declares, not just the handful this entrypoint wires handlers
	// for; unregistered handlers simply surface ErrNotFound at dispatch.
	registry := proto.DefaultRegistry()

	timelineMgr := timeline.NewManager(timeline.Config{
		MaxConcurrentJobs: 4,
		AutoApproveTools:  map[string]bool{},
	})
	_ = timelineMgr // constructed only; no timeline.* handlers are registered below

	d := broker.NewDispatcher(jobs, registry, broker.WithLogger(logger))

	d.RegisterHandler("cas.store", func(ctx context.Context, req proto.Request) (any, *proto.ToolError) {
		typed, ok := req.(proto.Typed[proto.CASStoreParams])
		if !ok {
			return nil, proto.NewToolError(proto.ErrInternal, "cas.store: unexpected request type")
		}
		h, err := store.Store(ctx, typed.Params.Bytes, typed.Params.Mime)
		if err != nil {
			return nil, proto.NewToolError(proto.ErrService, err.Error())
		}
		return map[string]string{"hash": h.String()}, nil
	})

	d.RegisterHandler("cas.retrieve", func(ctx context.Context, req proto.Request) (any, *proto.ToolError) {
		typed, ok := req.(proto.Typed[proto.CASRetrieveParams])
		if !ok {
			return nil, proto.NewToolError(proto.ErrInternal, "cas.retrieve: unexpected request type")
		}
		b, err := store.Retrieve(ctx, cas.Hash(typed.Params.Hash))
		if err != nil {
			return nil, proto.NewToolError(proto.ErrService, err.Error())
		}
		if b == nil {
			return nil, proto.NewToolError(proto.ErrNotFound, "no such object: "+typed.Params.Hash)
		}
		return json.RawMessage(b), nil
	})

	d.RegisterHandler("job.cancel", func(ctx context.Context, req proto.Request) (any, *proto.ToolError) {
		typed, ok := req.(proto.Typed[proto.JobCancelParams])
		if !ok {
			return nil, proto.NewToolError(proto.ErrInternal, "job.cancel: unexpected request type")
		}
		if err := jobs.Cancel(ctx, typed.Params.JobID); err != nil {
			return nil, proto.NewToolError(proto.ErrNotFound, err.Error())
		}
		return nil, nil
	})

	d.RegisterHandler("job.status", func(ctx context.Context, req proto.Request) (any, *proto.ToolError) {
		typed, ok := req.(proto.Typed[proto.JobStatusParams])
		if !ok {
			return nil, proto.NewToolError(proto.ErrInternal, "job.status: unexpected request type")
		}
		j, err := jobs.Get(ctx, typed.Params.JobID)
		if err != nil {
			return nil, proto.NewToolError(proto.ErrNotFound, err.Error())
		}
		return j, nil
	})

	d.RegisterHandler("job.list", func(ctx context.Context, req proto.Request) (any, *proto.ToolError) {
		typed, ok := req.(proto.Typed[proto.JobListParams])
		if !ok {
			return nil, proto.NewToolError(proto.ErrInternal, "job.list: unexpected request type")
		}
		var status *job.Status
		if typed.Params.Status != "" {
			s := job.Status(typed.Params.Status)
			status = &s
		}
		list, err := jobs.List(ctx, status)
		if err != nil {
			return nil, proto.NewToolError(proto.ErrInternal, err.Error())
		}
		return list, nil
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if n, err := jobs.RecoverInterrupted(ctx); err != nil {
		log.Printf("hootbroker: recover interrupted jobs: %v", err)
	} else if n > 0 {
		log.Printf("hootbroker: marked %d interrupted job(s) failed on restart", n)
	}

	log.Printf("hootbroker: dispatcher wired, data dir %s", *dataDir)
	<-ctx.Done()
	log.Printf("hootbroker: shutting down")
}
