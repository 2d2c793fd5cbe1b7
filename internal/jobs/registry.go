package jobs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrJobNotFound = errors.New("job not found")
	ErrJobRunning  = errors.New("job is still running")
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Job is a snapshot of one background task. Registry methods hand out copies.
type Job struct {
	ID         string     `json:"id"`
	Kind       string     `json:"kind"`
	Status     Status     `json:"status"`
	Message    string     `json:"message,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Result     any        `json:"result,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// Active reports whether the job has not reached a terminal status.
func (j Job) Active() bool {
	return j.Status == StatusPending || j.Status == StatusRunning
}

// RunFunc is the body of a background job. progress replaces the job message.
type RunFunc func(ctx context.Context, progress func(message string)) (any, error)

type Options struct {
	Now   func() time.Time
	NewID func() string
}

// Registry tracks background jobs for one process. It is constructed
// explicitly and passed to whoever starts or inspects jobs.
type Registry struct {
	mu     sync.RWMutex
	jobs   map[string]*Job
	now    func() time.Time
	newID  func() string
	logger zerolog.Logger
	wg     sync.WaitGroup
}

func NewRegistry(logger zerolog.Logger, opts Options) *Registry {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	newID := opts.NewID
	if newID == nil {
		newID = func() string { return uuid.NewString() }
	}
	return &Registry{
		jobs:   make(map[string]*Job),
		now:    now,
		newID:  newID,
		logger: logger,
	}
}

// Create registers a pending job of kind.
func (r *Registry) Create(kind string) Job {
	job := &Job{
		ID:        r.newID(),
		Kind:      strings.TrimSpace(kind),
		Status:    StatusPending,
		CreatedAt: r.now().UTC(),
	}

	r.mu.Lock()
	r.jobs[job.ID] = job
	r.mu.Unlock()

	return *job
}

func (r *Registry) Get(id string) (Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[id]
	if !ok {
		return Job{}, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return *job, nil
}

// List returns every job, newest first.
func (r *Registry) List() []Job {
	r.mu.RLock()
	out := make([]Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		out = append(out, *job)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Update applies fn to the stored job under the registry lock.
func (r *Registry) Update(id string, fn func(job *Job)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	fn(job)
	return nil
}

// Delete forgets a finished job. Pending and running jobs are refused with ErrJobRunning.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if job.Active() {
		return fmt.Errorf("%w: %s", ErrJobRunning, id)
	}
	delete(r.jobs, id)
	return nil
}

// Start creates a job and runs fn in its own goroutine with ctx.
func (r *Registry) Start(ctx context.Context, kind string, fn RunFunc) Job {
	job := r.Create(kind)
	id := job.ID

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.run(ctx, id, fn)
	}()

	return job
}

// Wait blocks until every started job has finished.
func (r *Registry) Wait() {
	r.wg.Wait()
}

func (r *Registry) run(ctx context.Context, id string, fn RunFunc) {
	log := r.logger.With().Str("job_id", id).Logger()

	startedAt := r.now().UTC()
	_ = r.Update(id, func(job *Job) {
		job.Status = StatusRunning
		job.StartedAt = &startedAt
	})
	log.Info().Msg("job started")

	progress := func(message string) {
		_ = r.Update(id, func(job *Job) { job.Message = message })
	}

	result, err := safeRun(ctx, fn, progress)

	finishedAt := r.now().UTC()
	_ = r.Update(id, func(job *Job) {
		job.FinishedAt = &finishedAt
		job.Result = result
		if err != nil {
			job.Status = StatusFailed
			job.Error = err.Error()
			return
		}
		job.Status = StatusCompleted
	})

	if err != nil {
		log.Error().Err(err).Msg("job failed")
		return
	}
	log.Info().Dur("duration", finishedAt.Sub(startedAt)).Msg("job completed")
}

func safeRun(ctx context.Context, fn RunFunc, progress func(string)) (result any, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("job panicked: %v", recovered)
		}
	}()
	return fn(ctx, progress)
}
