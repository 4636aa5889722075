package handler

import (
	"context"
	"log/slog"

	"ml-jobs-platform/internal/api/repository"
	"ml-jobs-platform/internal/models"
)

// JobPublisher notifies the worker pipeline that a job has been queued.
// Satisfied by the shared rabbitmq client; nil disables publishing.
type JobPublisher interface {
	PublishWithRetry(ctx context.Context, body []byte, contentType string) error
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger    *slog.Logger
	Repo      repository.JobRepository
	Registry  *models.Registry
	Publisher JobPublisher
}

// JobHandler handles job-related HTTP requests
type JobHandler struct {
	logger    *slog.Logger
	repo      repository.JobRepository
	registry  *models.Registry
	publisher JobPublisher
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger:    deps.Logger,
		repo:      deps.Repo,
		registry:  deps.Registry,
		publisher: deps.Publisher,
	}
}
