package domain

import "errors"

var (
	// ErrJobNotFound is returned when a queued job no longer exists
	ErrJobNotFound = errors.New("job not found")

	// ErrJobAlreadyClaimed is returned when a job is not in queued status anymore
	ErrJobAlreadyClaimed = errors.New("job already claimed or not in queued status")

	// ErrUnknownModel is returned when a job references a model the worker has no client for
	ErrUnknownModel = errors.New("unknown model")
)

// RetryableError wraps transient errors that should trigger a requeue
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return "retryable error: " + e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a new retryable error
func NewRetryableError(err error) error {
	return &RetryableError{Err: err}
}
