package worker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	apidomain "ml-jobs-platform/internal/api/domain"
	"ml-jobs-platform/internal/worker/domain"
)

// processJob runs a single job end to end: claim it, call the model
// service, and record the outcome. The returned error drives the ACK/NACK
// decision in the worker loop.
func (w *Worker) processJob(ctx context.Context, msg *domain.JobMessage) error {
	w.logger.Info("Processing job",
		slog.String("job_id", msg.JobID),
		slog.String("worker_id", w.workerID),
	)

	job, err := w.claimJob(ctx, msg.JobID)
	if err != nil {
		return err
	}

	client, ok := w.clients[job.ModelID]
	if !ok {
		errMsg := fmt.Sprintf("No model service configured for model '%s'", job.ModelID)
		w.markFailed(ctx, job.ID, errMsg)
		return fmt.Errorf("%w: %s", domain.ErrUnknownModel, job.ModelID)
	}

	jobCtx, cancel := context.WithTimeout(ctx, w.jobTimeout)
	defer cancel()

	result, err := client.Predict(jobCtx, job.Input)
	if err != nil {
		w.logger.Error("Job inference failed",
			slog.String("job_id", job.ID),
			slog.String("model_id", job.ModelID),
			slog.String("error", err.Error()),
		)
		w.markFailed(ctx, job.ID, err.Error())
		// The failure is recorded on the job; redelivery would only find
		// it out of queued status.
		return fmt.Errorf("inference failed: %w", err)
	}

	succeeded := apidomain.JobStatusSucceeded
	if _, err := w.repo.UpdateJob(ctx, job.ID, apidomain.JobUpdate{
		Status: &succeeded,
		Result: result,
	}); err != nil {
		w.logger.Error("Failed to record job result",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		// Inference succeeded; ACK anyway rather than rerun the model
	}

	return nil
}

// claimJob moves a queued job to running. A job in any other status has
// been picked up already (or was deleted) and must not be processed twice.
func (w *Worker) claimJob(ctx context.Context, jobID string) (*apidomain.Job, error) {
	job, err := w.repo.GetJob(ctx, jobID)
	if err != nil {
		return nil, domain.NewRetryableError(fmt.Errorf("failed to load job: %w", err))
	}
	if job == nil {
		w.logger.Warn("Job no longer exists, skipping",
			slog.String("job_id", jobID),
		)
		return nil, domain.ErrJobNotFound
	}
	if job.Status != apidomain.JobStatusQueued {
		w.logger.Warn("Job already claimed, skipping",
			slog.String("job_id", jobID),
			slog.String("status", string(job.Status)),
		)
		return nil, fmt.Errorf("%w: status %s", domain.ErrJobAlreadyClaimed, job.Status)
	}

	running := apidomain.JobStatusRunning
	claimed, err := w.repo.UpdateJob(ctx, jobID, apidomain.JobUpdate{Status: &running})
	if err != nil {
		return nil, domain.NewRetryableError(fmt.Errorf("failed to claim job: %w", err))
	}
	if claimed == nil {
		return nil, domain.ErrJobNotFound
	}

	return claimed, nil
}

func (w *Worker) markFailed(ctx context.Context, jobID, errMsg string) {
	failed := apidomain.JobStatusFailed
	errMsg = strings.TrimSpace(errMsg)
	if _, err := w.repo.UpdateJob(ctx, jobID, apidomain.JobUpdate{
		Status: &failed,
		Error:  &errMsg,
	}); err != nil {
		w.logger.Error("Failed to mark job as failed",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
	}
}
