package jobs

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/octobees/visa-directory/api/internal/entity"
)

// ErrJobNotFound indicates no job exists for the given id.
var ErrJobNotFound = errors.New("job not found")

// Registry is the ephemeral in-memory job tracker. It is rebuilt empty on
// process restart; durable data lives in the business store only.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*entity.ScrapeJob
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]*entity.ScrapeJob)}
}

// Create registers a new pending job from the given template and returns a
// snapshot with the assigned id.
func (r *Registry) Create(template entity.ScrapeJob) entity.ScrapeJob {
	job := template
	job.ID = uuid.NewString()
	job.Status = entity.JobStatusPending
	job.CreatedAt = time.Now()

	r.mu.Lock()
	r.jobs[job.ID] = &job
	r.mu.Unlock()

	return snapshot(&job)
}

// Update applies the mutation to the stored job under the registry lock.
func (r *Registry) Update(id string, mutate func(*entity.ScrapeJob)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	mutate(job)
	return nil
}

// Get returns a snapshot of the job if present.
func (r *Registry) Get(id string) (entity.ScrapeJob, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[id]
	if !ok {
		return entity.ScrapeJob{}, false
	}
	return snapshot(job), true
}

// List returns snapshots of all jobs, newest first.
func (r *Registry) List() []entity.ScrapeJob {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]entity.ScrapeJob, 0, len(r.jobs))
	for _, job := range r.jobs {
		out = append(out, snapshot(job))
	}
	sort.Slice(out, func(a, b int) bool {
		return out[a].CreatedAt.After(out[b].CreatedAt)
	})
	return out
}

// snapshot copies a job so callers never share slices with the registry.
func snapshot(job *entity.ScrapeJob) entity.ScrapeJob {
	out := *job
	out.Cities = append([]string(nil), job.Cities...)
	out.Categories = append([]string(nil), job.Categories...)
	out.Errors = append([]string(nil), job.Errors...)
	return out
}
