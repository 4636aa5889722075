package dto

import (
	"ml-jobs-platform/internal/api/domain"
)

type CreateJobRequest struct {
	JobName  string  `json:"jobName" binding:"required"`
	Username *string `json:"username"`
	ModelID  string  `json:"modelId" binding:"required"`
	Input    any     `json:"input"`
}

// ListJobsQuery carries the optional filters plus the two mutually exclusive
// pagination styles. Pointer fields distinguish "absent" from zero values;
// the resolver decides which style is in use from presence alone.
type ListJobsQuery struct {
	Q        string `form:"q"`
	Username string `form:"username"`
	JobName  string `form:"jobName"`
	Status   string `form:"status"`
	Page     *int   `form:"page"`
	PageSize *int   `form:"pageSize"`
	Limit    *int   `form:"limit"`
	Offset   *int   `form:"offset"`
}

type ListJobsResponse struct {
	Jobs    []domain.Job `json:"jobs"`
	Total   int          `json:"total"`
	Limit   int          `json:"limit"`
	Offset  int          `json:"offset"`
	HasMore bool         `json:"hasMore"`
}

type RepositoryHealth struct {
	Type    string `json:"type"`
	Healthy bool   `json:"healthy"`
}

type HealthResponse struct {
	Status     string           `json:"status"`
	Repository RepositoryHealth `json:"repository"`
}
