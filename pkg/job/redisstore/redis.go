// Package redisstore is a Redis-backed job.Store: one hash per job plus a
// "hoot:jobs:active" set tracking every Pending/Running id, so restart
// recovery never needs a full key scan. Grounded on the teacher's
// ManuGH-xg2g sibling cache.RedisCache for client construction and
// connection-check-on-New, generalized from a TTL cache to a durable
// job record store.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tobert/hootenanny-go/pkg/job"
	"github.com/tobert/hootenanny-go/pkg/proto"
)

const activeSetKey = "hoot:jobs:active"

func jobKey(id string) string { return "hoot:jobs:job:" + id }

// Config holds Redis connection parameters.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// Store implements job.Store against Redis.
type Store struct {
	client *redis.Client
}

// record is the JSON shape persisted in each job hash's "data" field.
type record struct {
	ID         string           `json:"id"`
	Tool       proto.ToolName   `json:"tool"`
	Status     job.Status       `json:"status"`
	CreatedAt  time.Time        `json:"created_at"`
	StartedAt  time.Time        `json:"started_at,omitempty"`
	FinishedAt time.Time        `json:"finished_at,omitempty"`
	Result     any              `json:"result,omitempty"`
	Err        *proto.ToolError `json:"err,omitempty"`
}

func toJob(r record) *job.Job {
	return &job.Job{
		ID: r.ID, Tool: r.Tool, Status: r.Status,
		CreatedAt: r.CreatedAt, StartedAt: r.StartedAt, FinishedAt: r.FinishedAt,
		Result: r.Result, Err: r.Err,
	}
}

func fromJob(j job.Job) record {
	return record{
		ID: j.ID, Tool: j.Tool, Status: j.Status,
		CreatedAt: j.CreatedAt, StartedAt: j.StartedAt, FinishedAt: j.FinishedAt,
		Result: j.Result, Err: j.Err,
	}
}

// New dials Redis and verifies connectivity before returning, mirroring the
// teacher's "ping on construction, fail fast" pattern.
func New(ctx context.Context, cfg Config) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("redisstore: connect: %w", err)
	}
	return &Store{client: client}, nil
}

// Close releases the underlying Redis connection pool.
func (s *Store) Close() error { return s.client.Close() }

func (s *Store) load(ctx context.Context, id string) (record, error) {
	data, err := s.client.HGet(ctx, jobKey(id), "data").Result()
	if errors.Is(err, redis.Nil) {
		return record{}, job.ErrNotFound
	}
	if err != nil {
		return record{}, fmt.Errorf("redisstore: load %s: %w", id, err)
	}
	var r record
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		return record{}, fmt.Errorf("redisstore: decode %s: %w", id, err)
	}
	return r, nil
}

func (s *Store) save(ctx context.Context, r record) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("redisstore: encode %s: %w", r.ID, err)
	}
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, jobKey(r.ID), "data", data)
	if isTerminal(r.Status) {
		pipe.SRem(ctx, activeSetKey, r.ID)
	} else {
		pipe.SAdd(ctx, activeSetKey, r.ID)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// isTerminal is a package-local helper since job.Status.terminal is
// unexported; Status values are compared directly since Status is just a
// string type.
func isTerminal(s job.Status) bool {
	switch s {
	case job.StatusComplete, job.StatusFailed, job.StatusCancelled:
		return true
	default:
		return false
	}
}

// Create implements job.Store.
func (s *Store) Create(ctx context.Context, id string, tool proto.ToolName) (*job.Job, error) {
	r := record{ID: id, Tool: tool, Status: job.StatusPending, CreatedAt: time.Now()}
	if err := s.save(ctx, r); err != nil {
		return nil, err
	}
	return toJob(r), nil
}

// StoreAbort is a no-op for the Redis store: abort handles are in-process
// function values that cannot survive serialization, so cancellation of a
// Redis-tracked job is always advisory (Cancel flips status; the owning
// process observes it by polling its own Job before the next work step).
// This asymmetry is recorded in the grounding ledger rather than hidden.
func (s *Store) StoreAbort(context.Context, string, job.AbortFunc) error {
	return nil
}

func (s *Store) transition(ctx context.Context, id string, next job.Status, apply func(*record)) error {
	r, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !job.AllowedTransition(r.Status, next) {
		return job.ErrIllegalTransition
	}
	r.Status = next
	apply(&r)
	return s.save(ctx, r)
}

// MarkRunning implements job.Store.
func (s *Store) MarkRunning(ctx context.Context, id string) error {
	return s.transition(ctx, id, job.StatusRunning, func(r *record) { r.StartedAt = time.Now() })
}

// MarkComplete implements job.Store.
func (s *Store) MarkComplete(ctx context.Context, id string, result any) error {
	return s.transition(ctx, id, job.StatusComplete, func(r *record) {
		r.Result = result
		r.FinishedAt = time.Now()
	})
}

// MarkFailed implements job.Store.
func (s *Store) MarkFailed(ctx context.Context, id string, toolErr *proto.ToolError) error {
	return s.transition(ctx, id, job.StatusFailed, func(r *record) {
		r.Err = toolErr
		r.FinishedAt = time.Now()
	})
}

// Cancel implements job.Store. Idempotent on an already-terminal job.
func (s *Store) Cancel(ctx context.Context, id string) error {
	r, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if isTerminal(r.Status) {
		return nil
	}
	r.Status = job.StatusCancelled
	r.FinishedAt = time.Now()
	return s.save(ctx, r)
}

// Get implements job.Store.
func (s *Store) Get(ctx context.Context, id string) (*job.Job, error) {
	r, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return toJob(r), nil
}

// List implements job.Store by scanning every "hoot:jobs:job:*" hash. This
// is acceptable at the scale of a single control-plane instance's job
// table; a production-scale deployment would add a secondary index, which
// is out of scope here (no corpus precedent for job-table secondary
// indices beyond the active set already kept for recovery).
func (s *Store) List(ctx context.Context, status *job.Status) ([]*job.Job, error) {
	var out []*job.Job
	iter := s.client.Scan(ctx, 0, "hoot:jobs:job:*", 0).Iterator()
	for iter.Next(ctx) {
		data, err := s.client.HGet(ctx, iter.Val(), "data").Result()
		if err != nil {
			continue
		}
		var r record
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			continue
		}
		if status != nil && r.Status != *status {
			continue
		}
		out = append(out, toJob(r))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redisstore: list: %w", err)
	}
	return out, nil
}

// RecoverInterrupted implements job.Store by reading the active set — every
// job this process (or a predecessor) left Pending or Running — and
// failing each one. It then clears the set so a concurrent engine cannot
// observe a stale "still active" job from before the crash.
func (s *Store) RecoverInterrupted(ctx context.Context) (int, error) {
	ids, err := s.client.SMembers(ctx, activeSetKey).Result()
	if err != nil {
		return 0, fmt.Errorf("redisstore: recover: list active: %w", err)
	}
	n := 0
	for _, id := range ids {
		r, err := s.load(ctx, id)
		if err != nil {
			continue
		}
		if r.Status != job.StatusPending && r.Status != job.StatusRunning {
			continue
		}
		r.Status = job.StatusFailed
		r.Err = proto.NewToolError(proto.ErrInternal, "interrupted by process restart")
		r.FinishedAt = time.Now()
		if err := s.save(ctx, r); err != nil {
			continue
		}
		n++
	}
	return n, nil
}
