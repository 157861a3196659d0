package jobs

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"papernotes/pkg/logger"
)

// Status values a job moves through. A job id that was never registered
// reports StatusNotFound.
const (
	StatusRunning  = "running"
	StatusDone     = "done"
	StatusError    = "error"
	StatusNotFound = "not_found"
)

// Record is the queryable state of one background job.
type Record struct {
	ID     string      `json:"job_id"`
	Key    string      `json:"key"`
	Status string      `json:"status"`
	Result interface{} `json:"result,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// Fn is the unit of background work. Its return values become the job's
// terminal state.
type Fn func(ctx context.Context) (interface{}, error)

// Registry runs background jobs with at-most-one in flight per key.
// Starting a job for a key that already has one running returns the running
// job's id instead of spawning a duplicate.
type Registry struct {
	log *logger.Logger

	mu     sync.Mutex
	active map[string]string  // key -> running job id
	jobs   map[string]*Record // job id -> record
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		log:    logger.New("jobs", ""),
		active: make(map[string]string),
		jobs:   make(map[string]*Record),
	}
}

// Start launches fn in the background under the given dedup key. The second
// return value reports whether a new job was actually started. The job runs
// detached from ctx's cancellation so it outlives the caller (typically an
// HTTP request that returns long before the work finishes); ctx's values
// still flow through.
func (r *Registry) Start(ctx context.Context, key string, fn Fn) (string, bool) {
	r.mu.Lock()
	if id, ok := r.active[key]; ok {
		r.mu.Unlock()
		return id, false
	}

	id := uuid.New().String()
	rec := &Record{ID: id, Key: key, Status: StatusRunning}
	r.active[key] = id
	r.jobs[id] = rec
	r.mu.Unlock()

	go r.run(context.WithoutCancel(ctx), rec, fn)
	return id, true
}

// run executes the job and records its terminal state. The active-key slot is
// always released, whatever fn does.
func (r *Registry) run(ctx context.Context, rec *Record, fn Fn) {
	defer func() {
		r.mu.Lock()
		if r.active[rec.Key] == rec.ID {
			delete(r.active, rec.Key)
		}
		r.mu.Unlock()
	}()

	result, err := fn(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		rec.Status = StatusError
		rec.Error = err.Error()
		r.log.WithField("job_id", rec.ID).WithField("error", err.Error()).Warn("job failed")
		return
	}
	rec.Status = StatusDone
	rec.Result = result
}

// Status returns a snapshot of the job's record. Unknown ids yield a record
// with StatusNotFound rather than an error.
func (r *Registry) Status(id string) Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.jobs[id]
	if !ok {
		return Record{ID: id, Status: StatusNotFound}
	}
	return *rec
}

// ActiveJob returns the running job id for a key, if any.
func (r *Registry) ActiveJob(key string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.active[key]
	return id, ok
}
