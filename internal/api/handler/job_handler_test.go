package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ml-jobs-platform/internal/api/domain"
	"ml-jobs-platform/internal/api/handler"
	"ml-jobs-platform/internal/api/repository"
	"ml-jobs-platform/internal/api/router"
	"ml-jobs-platform/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// recordingPublisher captures messages handed to the queue.
type recordingPublisher struct {
	mu       sync.Mutex
	messages [][]byte
}

func (p *recordingPublisher) PublishWithRetry(ctx context.Context, body []byte, contentType string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, body)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.messages)
}

func newTestServer(t *testing.T) (*gin.Engine, *repository.MemoryJobRepo, *recordingPublisher) {
	t.Helper()

	repo := repository.NewMemoryJobRepo()
	publisher := &recordingPublisher{}
	r := router.SetupRouter(&handler.Dependencies{
		Logger:    slog.New(slog.DiscardHandler),
		Repo:      repo,
		Registry:  models.Default(),
		Publisher: publisher,
	})
	return r, repo, publisher
}

func doJSON(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func createJobReq(jobName string) map[string]any {
	return map[string]any{
		"jobName": jobName,
		"modelId": models.SentimentModelID,
		"input":   map[string]any{"text": "great"},
	}
}

func TestCreateJob(t *testing.T) {
	r, _, publisher := newTestServer(t)

	rec := doJSON(r, http.MethodPost, "/jobs", map[string]any{
		"jobName":  "  sentiment-batch  ",
		"username": "alice",
		"modelId":  models.SentimentModelID,
		"input":    map[string]any{"text": "great"},
	})

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.NotEmpty(t, body["id"])
	assert.Equal(t, "sentiment-batch", body["jobName"])
	assert.Equal(t, "alice", body["username"])
	assert.Equal(t, string(domain.JobStatusQueued), body["status"])
	assert.Nil(t, body["result"])
	assert.Nil(t, body["error"])
	assert.NotEmpty(t, body["createdAt"])

	require.Equal(t, 1, publisher.count())
	var msg map[string]string
	require.NoError(t, json.Unmarshal(publisher.messages[0], &msg))
	assert.Equal(t, body["id"], msg["job_id"])
}

func TestCreateJob_ValidationErrors(t *testing.T) {
	r, _, _ := newTestServer(t)

	tests := []struct {
		name        string
		payload     map[string]any
		errContains string
	}{
		{
			name: "missing jobName",
			payload: map[string]any{
				"modelId": models.SentimentModelID,
				"input":   map[string]any{"text": "x"},
			},
			errContains: "Invalid request body",
		},
		{
			name: "blank jobName",
			payload: map[string]any{
				"jobName": "   ",
				"modelId": models.SentimentModelID,
				"input":   map[string]any{"text": "x"},
			},
			errContains: "jobName must be a non-empty string",
		},
		{
			name: "jobName too long",
			payload: func() map[string]any {
				p := createJobReq("")
				p["jobName"] = string(bytes.Repeat([]byte("a"), 101))
				return p
			}(),
			errContains: "jobName must be at most 100 characters",
		},
		{
			name: "username too long",
			payload: func() map[string]any {
				p := createJobReq("ok")
				p["username"] = string(bytes.Repeat([]byte("u"), 51))
				return p
			}(),
			errContains: "username must be at most 50 characters",
		},
		{
			name: "empty input",
			payload: map[string]any{
				"jobName": "ok",
				"modelId": models.SentimentModelID,
				"input":   map[string]any{},
			},
			errContains: "input must be non-empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(r, http.MethodPost, "/jobs", tt.payload)
			require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
			body := decodeBody(t, rec)
			assert.Contains(t, body["error"], tt.errContains)
		})
	}
}

func TestCreateJob_UnknownModel(t *testing.T) {
	r, _, publisher := newTestServer(t)

	payload := createJobReq("bad-model-job")
	payload["modelId"] = "no-such-model"

	rec := doJSON(r, http.MethodPost, "/jobs", payload)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	body := decodeBody(t, rec)
	errMsg, _ := body["error"].(string)
	assert.Contains(t, errMsg, "Invalid modelId 'no-such-model'")
	for _, id := range models.Default().IDs() {
		assert.Contains(t, errMsg, id)
	}
	assert.Zero(t, publisher.count())
}

func TestGetJob(t *testing.T) {
	r, repo, _ := newTestServer(t)

	created, err := repo.CreateJob(context.Background(), domain.JobCreate{
		JobName: "lookup-me",
		ModelID: models.SentimentModelID,
		Input:   map[string]any{"text": "x"},
	})
	require.NoError(t, err)

	rec := doJSON(r, http.MethodGet, "/jobs/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, created.ID, body["id"])
	assert.Equal(t, "lookup-me", body["jobName"])
}

func TestGetJob_NotFound(t *testing.T) {
	r, _, _ := newTestServer(t)

	rec := doJSON(r, http.MethodGet, "/jobs/missing-id", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Job with id 'missing-id' not found", body["error"])
}

func TestListJobs_Pagination(t *testing.T) {
	r, repo, _ := newTestServer(t)

	for i := 0; i < 5; i++ {
		_, err := repo.CreateJob(context.Background(), domain.JobCreate{
			JobName: fmt.Sprintf("job-%d", i),
			ModelID: models.SentimentModelID,
			Input:   map[string]any{"text": "x"},
		})
		require.NoError(t, err)
	}

	rec := doJSON(r, http.MethodGet, "/jobs?limit=2&offset=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(5), body["total"])
	assert.Equal(t, float64(2), body["limit"])
	assert.Equal(t, float64(1), body["offset"])
	assert.Equal(t, true, body["hasMore"])
	assert.Len(t, body["jobs"], 2)

	// Page mode
	rec = doJSON(r, http.MethodGet, "/jobs?page=2&pageSize=3", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeBody(t, rec)
	assert.Equal(t, float64(3), body["offset"])
	assert.Equal(t, false, body["hasMore"])
	assert.Len(t, body["jobs"], 2)

	// Unlimited
	rec = doJSON(r, http.MethodGet, "/jobs?limit=-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeBody(t, rec)
	assert.Equal(t, float64(5), body["limit"])
	assert.Equal(t, false, body["hasMore"])
	assert.Len(t, body["jobs"], 5)
}

func TestListJobs_MixedPaginationStyles(t *testing.T) {
	r, _, _ := newTestServer(t)

	for _, query := range []string{
		"page=1&limit=10",
		"pageSize=5&offset=2",
		"page=1&pageSize=5&limit=10&offset=0",
	} {
		rec := doJSON(r, http.MethodGet, "/jobs?"+query, nil)
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code, query)
		body := decodeBody(t, rec)
		assert.Contains(t, body["error"], "cannot mix pagination styles", query)
	}
}

func TestListJobs_InvalidParams(t *testing.T) {
	r, _, _ := newTestServer(t)

	tests := []struct {
		query       string
		errContains string
	}{
		{"status=bogus", "Invalid status 'bogus'"},
		{"page=0", "page must be >= 1"},
		{"pageSize=0", "pageSize must be between 1 and 100"},
		{"pageSize=101", "pageSize must be between 1 and 100"},
		{"limit=-2", "limit must be between -1 and 100"},
		{"limit=101", "limit must be between -1 and 100"},
		{"offset=-1", "offset must be >= 0"},
	}

	for _, tt := range tests {
		rec := doJSON(r, http.MethodGet, "/jobs?"+tt.query, nil)
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code, tt.query)
		body := decodeBody(t, rec)
		assert.Contains(t, body["error"], tt.errContains, tt.query)
	}
}

func TestListJobs_StatusFilter(t *testing.T) {
	r, repo, _ := newTestServer(t)

	created, err := repo.CreateJob(context.Background(), domain.JobCreate{
		JobName: "to-finish",
		ModelID: models.SentimentModelID,
		Input:   map[string]any{"text": "x"},
	})
	require.NoError(t, err)

	_, err = repo.CreateJob(context.Background(), domain.JobCreate{
		JobName: "still-queued",
		ModelID: models.SentimentModelID,
		Input:   map[string]any{"text": "x"},
	})
	require.NoError(t, err)

	succeeded := domain.JobStatusSucceeded
	_, err = repo.UpdateJob(context.Background(), created.ID, domain.JobUpdate{Status: &succeeded})
	require.NoError(t, err)

	rec := doJSON(r, http.MethodGet, "/jobs?status=succeeded", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(1), body["total"])
	jobs := body["jobs"].([]any)
	require.Len(t, jobs, 1)
	assert.Equal(t, "to-finish", jobs[0].(map[string]any)["jobName"])
}

func TestDeleteJob(t *testing.T) {
	r, repo, _ := newTestServer(t)

	created, err := repo.CreateJob(context.Background(), domain.JobCreate{
		JobName: "short-lived",
		ModelID: models.SentimentModelID,
		Input:   map[string]any{"text": "x"},
	})
	require.NoError(t, err)

	rec := doJSON(r, http.MethodDelete, "/jobs/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, fmt.Sprintf("Job with id '%s' deleted", created.ID), body["message"])

	// Second delete reports not found
	rec = doJSON(r, http.MethodDelete, "/jobs/"+created.ID, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	body = decodeBody(t, rec)
	assert.Equal(t, fmt.Sprintf("Job with id '%s' not found", created.ID), body["error"])
}

func TestHealth(t *testing.T) {
	r, _, _ := newTestServer(t)

	rec := doJSON(r, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "ok", body["status"])

	repoInfo := body["repository"].(map[string]any)
	assert.Equal(t, "memory", repoInfo["type"])
	assert.Equal(t, true, repoInfo["healthy"])
}

// unhealthyRepo wraps the memory repository with a failing liveness probe.
type unhealthyRepo struct {
	*repository.MemoryJobRepo
}

func (u *unhealthyRepo) HealthCheck(ctx context.Context) bool { return false }

func TestHealth_Degraded(t *testing.T) {
	r := router.SetupRouter(&handler.Dependencies{
		Logger:   slog.New(slog.DiscardHandler),
		Repo:     &unhealthyRepo{repository.NewMemoryJobRepo()},
		Registry: models.Default(),
	})

	rec := doJSON(r, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "degraded", body["status"])

	repoInfo := body["repository"].(map[string]any)
	assert.Equal(t, false, repoInfo["healthy"])
}

func TestListModels(t *testing.T) {
	r, _, _ := newTestServer(t)

	rec := doJSON(r, http.MethodGet, "/models", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var ids []string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ids))
	assert.Equal(t, models.Default().IDs(), ids)
}
