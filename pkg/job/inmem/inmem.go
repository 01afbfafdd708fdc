// Package inmem provides an in-memory job.Store for tests and single-process
// deployments. Grounded on the teacher's runtime/agent/run/inmem.Store: a
// mutex-guarded map with defensive copies on every read and write.
package inmem

import (
	"context"
	"sync"
	"time"

	"github.com/tobert/hootenanny-go/pkg/job"
	"github.com/tobert/hootenanny-go/pkg/proto"
)

type entry struct {
	j     job.Job
	abort job.AbortFunc
}

// Store implements job.Store in memory with no durability across restarts.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// New constructs an empty Store.
func New() *Store {
	return &Store{entries: make(map[string]*entry)}
}

func copyJob(j job.Job) *job.Job {
	c := j
	return &c
}

// Create implements job.Store.
func (s *Store) Create(_ context.Context, id string, tool proto.ToolName) (*job.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j := job.Job{ID: id, Tool: tool, Status: job.StatusPending, CreatedAt: time.Now()}
	s.entries[id] = &entry{j: j}
	return copyJob(j), nil
}

// StoreAbort implements job.Store.
func (s *Store) StoreAbort(_ context.Context, id string, abort job.AbortFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return job.ErrNotFound
	}
	e.abort = abort
	return nil
}

func (s *Store) transition(id string, next job.Status, apply func(*job.Job)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return job.ErrNotFound
	}
	if !job.AllowedTransition(e.j.Status, next) {
		return job.ErrIllegalTransition
	}
	e.j.Status = next
	apply(&e.j)
	return nil
}

// MarkRunning implements job.Store.
func (s *Store) MarkRunning(_ context.Context, id string) error {
	return s.transition(id, job.StatusRunning, func(j *job.Job) { j.StartedAt = time.Now() })
}

// MarkComplete implements job.Store.
func (s *Store) MarkComplete(_ context.Context, id string, result any) error {
	return s.transition(id, job.StatusComplete, func(j *job.Job) {
		j.Result = result
		j.FinishedAt = time.Now()
	})
}

// MarkFailed implements job.Store.
func (s *Store) MarkFailed(_ context.Context, id string, toolErr *proto.ToolError) error {
	return s.transition(id, job.StatusFailed, func(j *job.Job) {
		j.Err = toolErr
		j.FinishedAt = time.Now()
	})
}

// Cancel implements job.Store. Cancelling an already-terminal job is a
// no-op, not an error.
func (s *Store) Cancel(_ context.Context, id string) error {
	s.mu.Lock()
	e, ok := s.entries[id]
	if !ok {
		s.mu.Unlock()
		return job.ErrNotFound
	}
	if e.j.Status == job.StatusComplete || e.j.Status == job.StatusFailed || e.j.Status == job.StatusCancelled {
		s.mu.Unlock()
		return nil
	}
	e.j.Status = job.StatusCancelled
	e.j.FinishedAt = time.Now()
	abort := e.abort
	s.mu.Unlock()

	if abort != nil {
		abort()
	}
	return nil
}

// Get implements job.Store.
func (s *Store) Get(_ context.Context, id string) (*job.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, job.ErrNotFound
	}
	return copyJob(e.j), nil
}

// List implements job.Store.
func (s *Store) List(_ context.Context, status *job.Status) ([]*job.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*job.Job, 0, len(s.entries))
	for _, e := range s.entries {
		if status != nil && e.j.Status != *status {
			continue
		}
		out = append(out, copyJob(e.j))
	}
	return out, nil
}

// RecoverInterrupted implements job.Store.
func (s *Store) RecoverInterrupted(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.entries {
		if e.j.Status == job.StatusPending || e.j.Status == job.StatusRunning {
			e.j.Status = job.StatusFailed
			e.j.Err = proto.NewToolError(proto.ErrInternal, "interrupted by process restart")
			e.j.FinishedAt = time.Now()
			n++
		}
	}
	return n, nil
}
