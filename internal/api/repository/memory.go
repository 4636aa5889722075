package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"ml-jobs-platform/internal/api/domain"
	"ml-jobs-platform/internal/api/pagination"
)

// MemoryJobRepo stores jobs in a process-local map. Data is lost on restart;
// useful for development and tests. Gin serves requests from concurrent
// goroutines, so every operation takes the mutex.
type MemoryJobRepo struct {
	mu   sync.RWMutex
	jobs map[string]domain.Job
}

// NewMemoryJobRepo creates an empty in-memory repository.
func NewMemoryJobRepo() *MemoryJobRepo {
	return &MemoryJobRepo{
		jobs: make(map[string]domain.Job),
	}
}

func (r *MemoryJobRepo) Type() string { return "memory" }

// Initialize is a no-op for memory storage.
func (r *MemoryJobRepo) Initialize(ctx context.Context) error { return nil }

// HealthCheck always succeeds for memory storage.
func (r *MemoryJobRepo) HealthCheck(ctx context.Context) bool { return true }

// Cleanup is a no-op for memory storage.
func (r *MemoryJobRepo) Cleanup(ctx context.Context) error { return nil }

func (r *MemoryJobRepo) CreateJob(ctx context.Context, payload domain.JobCreate) (*domain.Job, error) {
	now := time.Now().UTC()
	job := domain.Job{
		ID:        uuid.NewString(),
		JobName:   payload.JobName,
		Username:  copyStrPtr(payload.Username),
		ModelID:   payload.ModelID,
		Input:     payload.Input,
		Status:    domain.JobStatusQueued,
		Result:    nil,
		Error:     nil,
		CreatedAt: now,
		UpdatedAt: now,
	}

	r.mu.Lock()
	r.jobs[job.ID] = job
	r.mu.Unlock()

	return copyJob(job), nil
}

func (r *MemoryJobRepo) GetJob(ctx context.Context, id string) (*domain.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[id]
	if !ok {
		return nil, nil
	}
	return copyJob(job), nil
}

func (r *MemoryJobRepo) ListJobs(ctx context.Context, filters JobFilters) ([]domain.Job, int, error) {
	page, err := pagination.Resolve(filters.Pagination)
	if err != nil {
		return nil, 0, err
	}

	r.mu.RLock()
	matched := make([]domain.Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		if filters.Matches(&job) {
			matched = append(matched, *copyJob(job))
		}
	}
	r.mu.RUnlock()

	sortJobs(matched)
	total := len(matched)

	start, end := page.Slice(total)
	return matched[start:end], total, nil
}

func (r *MemoryJobRepo) UpdateJob(ctx context.Context, id string, update domain.JobUpdate) (*domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return nil, nil
	}

	if update.Empty() {
		job.UpdatedAt = time.Now().UTC()
		r.jobs[id] = job
		return copyJob(job), nil
	}

	if update.JobName != nil {
		job.JobName = *update.JobName
	}
	if update.Username != nil {
		job.Username = copyStrPtr(update.Username)
	}
	if update.Status != nil {
		job.Status = *update.Status
	}
	if update.Result != nil {
		job.Result = update.Result
	}
	if update.Error != nil {
		job.Error = copyStrPtr(update.Error)
	}
	job.UpdatedAt = time.Now().UTC()

	r.jobs[id] = job
	return copyJob(job), nil
}

func (r *MemoryJobRepo) DeleteJob(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[id]; !ok {
		return false, nil
	}
	delete(r.jobs, id)
	return true, nil
}

// copyJob returns an independent copy so callers never hold references into
// the backing map. Input and result payloads are treated as immutable.
func copyJob(job domain.Job) *domain.Job {
	out := job
	out.Username = copyStrPtr(job.Username)
	out.Error = copyStrPtr(job.Error)
	return &out
}

func copyStrPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
