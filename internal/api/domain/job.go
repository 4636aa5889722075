package domain

import (
	"errors"
	"time"
)

// JobStatus is the lifecycle state of a submitted job.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// ValidStatus reports whether s is one of the known job statuses.
func ValidStatus(s JobStatus) bool {
	switch s {
	case JobStatusQueued, JobStatusRunning, JobStatusSucceeded, JobStatusFailed:
		return true
	}
	return false
}

const (
	// MaxJobNameLength is the maximum length of a job name.
	MaxJobNameLength = 100
	// MaxUsernameLength is the maximum length of a username.
	MaxUsernameLength = 50
)

var (
	// ErrInvalidArgument marks malformed or contradictory request input.
	// Wrapped errors carry the offending constraint in their message.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrBackendUnavailable is returned when a storage backend cannot be
	// reached at initialization time.
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrBackendOperation is returned when a run-time read or write against
	// the storage backend fails.
	ErrBackendOperation = errors.New("backend operation failed")
)

// Job represents one submitted unit of work.
type Job struct {
	ID        string    `json:"id"`
	JobName   string    `json:"jobName"`
	Username  *string   `json:"username"`
	ModelID   string    `json:"modelId"`
	Input     any       `json:"input"`
	Status    JobStatus `json:"status"`
	Result    any       `json:"result"`
	Error     *string   `json:"error"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// JobCreate is the payload accepted by the create operation. The repository
// generates the id, timestamps and the initial queued status.
type JobCreate struct {
	JobName  string
	Username *string
	ModelID  string
	Input    any
}

// JobUpdate is a partial-field update. Nil fields are left untouched; the
// repository always refreshes updatedAt regardless of which fields are set.
type JobUpdate struct {
	JobName  *string
	Username *string
	Status   *JobStatus
	Result   any
	Error    *string
}

// Empty reports whether the update carries no field changes. An empty update
// is still applied: it bumps updatedAt.
func (u JobUpdate) Empty() bool {
	return u.JobName == nil && u.Username == nil && u.Status == nil && u.Result == nil && u.Error == nil
}
