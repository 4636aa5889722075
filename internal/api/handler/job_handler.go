package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"ml-jobs-platform/internal/api/domain"
	"ml-jobs-platform/internal/api/dto"
	"ml-jobs-platform/internal/api/pagination"
	"ml-jobs-platform/internal/api/repository"
)

// CreateJob handles POST /jobs
// Validates the payload against the model registry, persists the job and
// notifies the worker pipeline.
func (h *JobHandler) CreateJob(c *gin.Context) {
	var req dto.CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": "Invalid request body: " + err.Error(),
		})
		return
	}

	payload, err := h.validateCreate(&req)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": err.Error(),
		})
		return
	}

	job, err := h.repo.CreateJob(c.Request.Context(), *payload)
	if err != nil {
		h.logger.Error("Failed to create job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to create job",
		})
		return
	}

	h.publishQueued(c, job)

	c.JSON(http.StatusCreated, job)
}

// validateCreate enforces the input constraints before any backend call.
func (h *JobHandler) validateCreate(req *dto.CreateJobRequest) (*domain.JobCreate, error) {
	jobName := strings.TrimSpace(req.JobName)
	if jobName == "" {
		return nil, errors.New("jobName must be a non-empty string")
	}
	if len(jobName) > domain.MaxJobNameLength {
		return nil, fmt.Errorf("jobName must be at most %d characters", domain.MaxJobNameLength)
	}

	var username *string
	if req.Username != nil {
		trimmed := strings.TrimSpace(*req.Username)
		if len(trimmed) > domain.MaxUsernameLength {
			return nil, fmt.Errorf("username must be at most %d characters", domain.MaxUsernameLength)
		}
		if trimmed != "" {
			username = &trimmed
		}
	}

	if !h.registry.Contains(req.ModelID) {
		return nil, fmt.Errorf(
			"Invalid modelId '%s'. Available models: %s",
			req.ModelID,
			strings.Join(h.registry.IDs(), ", "),
		)
	}

	if emptyInput(req.Input) {
		return nil, errors.New("input must be non-empty")
	}

	return &domain.JobCreate{
		JobName:  jobName,
		Username: username,
		ModelID:  req.ModelID,
		Input:    req.Input,
	}, nil
}

// emptyInput reports whether a decoded JSON value carries no payload.
func emptyInput(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	case map[string]any:
		return len(val) == 0
	case []any:
		return len(val) == 0
	}
	return false
}

// publishQueued hands the created job to the queue. The job is already
// persisted as queued, so a publish failure is logged rather than surfaced;
// the job can be re-dispatched later.
func (h *JobHandler) publishQueued(c *gin.Context, job *domain.Job) {
	if h.publisher == nil {
		return
	}

	body, err := json.Marshal(gin.H{"job_id": job.ID})
	if err != nil {
		h.logger.Error("Failed to encode queue message",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	if err := h.publisher.PublishWithRetry(c.Request.Context(), body, "application/json"); err != nil {
		h.logger.Error("Failed to publish queued job",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
	}
}

// GetJob handles GET /jobs/:job_id
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID := c.Param("job_id")

	job, err := h.repo.GetJob(c.Request.Context(), jobID)
	if err != nil {
		h.logger.Error("Failed to get job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get job",
		})
		return
	}

	if job == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": fmt.Sprintf("Job with id '%s' not found", jobID),
		})
		return
	}

	c.JSON(http.StatusOK, job)
}

// ListJobs handles GET /jobs
// Filters, sorts and paginates through the repository; pagination styles are
// mutually exclusive.
func (h *JobHandler) ListJobs(c *gin.Context) {
	var req dto.ListJobsQuery
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Error("Invalid query parameters", slog.String("error", err.Error()))
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": "Invalid query parameters: " + err.Error(),
		})
		return
	}

	if err := validateListQuery(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": err.Error(),
		})
		return
	}

	paginationOpts := pagination.Options{
		Page:     req.Page,
		PageSize: req.PageSize,
		Limit:    req.Limit,
		Offset:   req.Offset,
	}

	// Resolve up front so mixed styles fail before any backend call and the
	// response can echo the canonical limit/offset.
	page, err := pagination.Resolve(paginationOpts)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": err.Error(),
		})
		return
	}

	filters := repository.JobFilters{
		Q:          req.Q,
		Username:   req.Username,
		JobName:    req.JobName,
		Status:     domain.JobStatus(req.Status),
		Pagination: paginationOpts,
	}

	jobs, total, err := h.repo.ListJobs(c.Request.Context(), filters)
	if err != nil {
		h.logger.Error("Failed to list jobs", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list jobs",
		})
		return
	}

	resp := dto.ListJobsResponse{
		Jobs:   jobs,
		Total:  total,
		Offset: page.Offset,
	}
	if page.Unlimited {
		// With no limit there is never more to fetch; the limit field
		// reports the actual count returned.
		resp.Limit = len(jobs)
		resp.HasMore = false
	} else {
		resp.Limit = page.Limit
		resp.HasMore = page.Offset+page.Limit < total
	}

	c.JSON(http.StatusOK, resp)
}

// validateListQuery rejects out-of-range values at the boundary, before the
// resolver runs.
func validateListQuery(req *dto.ListJobsQuery) error {
	if req.Status != "" && !domain.ValidStatus(domain.JobStatus(req.Status)) {
		return fmt.Errorf(
			"Invalid status '%s'. Must be one of: %s, %s, %s, %s",
			req.Status,
			domain.JobStatusQueued, domain.JobStatusRunning,
			domain.JobStatusSucceeded, domain.JobStatusFailed,
		)
	}
	if req.Page != nil && *req.Page < 1 {
		return errors.New("page must be >= 1")
	}
	if req.PageSize != nil && (*req.PageSize < 1 || *req.PageSize > pagination.MaxPageSize) {
		return fmt.Errorf("pageSize must be between 1 and %d", pagination.MaxPageSize)
	}
	if req.Limit != nil && (*req.Limit < pagination.UnlimitedSentinel || *req.Limit > pagination.MaxPageSize) {
		return fmt.Errorf("limit must be between %d and %d", pagination.UnlimitedSentinel, pagination.MaxPageSize)
	}
	if req.Offset != nil && *req.Offset < 0 {
		return errors.New("offset must be >= 0")
	}
	return nil
}

// DeleteJob handles DELETE /jobs/:job_id
// Test-only operation; removal is idempotent at the repository level.
func (h *JobHandler) DeleteJob(c *gin.Context) {
	jobID := c.Param("job_id")

	deleted, err := h.repo.DeleteJob(c.Request.Context(), jobID)
	if err != nil {
		h.logger.Error("Failed to delete job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to delete job",
		})
		return
	}

	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{
			"error": fmt.Sprintf("Job with id '%s' not found", jobID),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("Job with id '%s' deleted", jobID),
	})
}

// Health handles GET /health
// Reports degraded (503) when the repository backend fails its liveness
// probe; the probe itself never errors.
func (h *JobHandler) Health(c *gin.Context) {
	healthy := h.repo.HealthCheck(c.Request.Context())

	status := "ok"
	code := http.StatusOK
	if !healthy {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, dto.HealthResponse{
		Status: status,
		Repository: dto.RepositoryHealth{
			Type:    h.repo.Type(),
			Healthy: healthy,
		},
	})
}

// ListModels handles GET /models
func (h *JobHandler) ListModels(c *gin.Context) {
	c.JSON(http.StatusOK, h.registry.IDs())
}
