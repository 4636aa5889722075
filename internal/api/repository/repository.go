// Package repository defines the storage-backend-agnostic job store and its
// in-memory, MongoDB and PostgreSQL implementations.
package repository

import (
	"context"
	"sort"
	"strings"

	"ml-jobs-platform/internal/api/domain"
	"ml-jobs-platform/internal/api/pagination"
)

// maxIDAttempts bounds id-generation retries when a backend with a native
// uniqueness constraint reports a collision.
const maxIDAttempts = 100

// JobRepository is the polymorphic contract over the storage backends. All
// variants must be behaviorally interchangeable from the caller's
// perspective: identical stored data and filters yield identical results.
type JobRepository interface {
	// Initialize establishes backend readiness (opens connections, builds
	// indexes). Called once at startup; a failure is fatal.
	Initialize(ctx context.Context) error

	// HealthCheck is a non-throwing liveness probe. Backend failures are
	// downgraded to false, never propagated.
	HealthCheck(ctx context.Context) bool

	// CreateJob generates an id, stamps both timestamps, sets the initial
	// queued status and persists the job, returning the stored value.
	CreateJob(ctx context.Context, payload domain.JobCreate) (*domain.Job, error)

	// GetJob returns (nil, nil) when no job has the given id.
	GetJob(ctx context.Context, id string) (*domain.Job, error)

	// ListJobs applies filters, sorts by createdAt descending and paginates.
	// The returned count is the number of matches before pagination.
	ListJobs(ctx context.Context, filters JobFilters) ([]domain.Job, int, error)

	// UpdateJob merges the given fields into the stored job and bumps
	// updatedAt, atomically per id. Returns (nil, nil) when the id is absent.
	UpdateJob(ctx context.Context, id string, update domain.JobUpdate) (*domain.Job, error)

	// DeleteJob removes a job and reports whether a row existed. Idempotent.
	DeleteJob(ctx context.Context, id string) (bool, error)

	// Cleanup releases backend resources.
	Cleanup(ctx context.Context) error

	// Type names the backend for the health endpoint.
	Type() string
}

// JobFilters bundles the optional query filters and pagination parameters
// for ListJobs.
type JobFilters struct {
	// Q is a free-text filter matched case-insensitively as a substring of
	// jobName or username. A null username never matches Q.
	Q        string
	Username string
	JobName  string
	Status   domain.JobStatus

	Pagination pagination.Options
}

// Matches applies the equality and free-text filters to a single job. The
// memory backend filters with it directly; the mongo and postgres backends
// translate the same semantics into queries.
func (f JobFilters) Matches(job *domain.Job) bool {
	if f.Username != "" && (job.Username == nil || *job.Username != f.Username) {
		return false
	}
	if f.JobName != "" && job.JobName != f.JobName {
		return false
	}
	if f.Status != "" && job.Status != f.Status {
		return false
	}
	if f.Q != "" {
		q := strings.ToLower(f.Q)
		if strings.Contains(strings.ToLower(job.JobName), q) {
			return true
		}
		if job.Username != nil && strings.Contains(strings.ToLower(*job.Username), q) {
			return true
		}
		return false
	}
	return true
}

// sortJobs orders by created_at DESC, id DESC so ties within one timestamp
// tick order identically across backends.
func sortJobs(jobs []domain.Job) {
	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].ID > jobs[j].ID
		}
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
}
