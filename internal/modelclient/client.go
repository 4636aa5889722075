// Package modelclient is the HTTP boundary to the model inference services.
// A service is an opaque predict(input) -> output capability with a timeout;
// nothing here knows about model loading or preprocessing.
package modelclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// Sentinel errors for model service failures.
var (
	// ErrModelUnreachable marks connection-level failures; retryable.
	ErrModelUnreachable = errors.New("model service unreachable")
	// ErrModelTimeout marks a predict call that exceeded its deadline;
	// retryable.
	ErrModelTimeout = errors.New("model request timeout")
	// ErrInvalidInput marks a payload the model service rejected; not
	// retryable.
	ErrInvalidInput = errors.New("model rejected input")
	// ErrPredictFailed marks a server-side inference failure.
	ErrPredictFailed = errors.New("model inference failed")
)

// Client calls one model service over HTTP.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// New creates a model service client. The timeout bounds every call.
func New(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// HealthStatus is the model service's liveness report.
type HealthStatus struct {
	Status     string `json:"status"`
	ModelReady bool   `json:"modelReady"`
}

// errorBody is the error envelope the model services return.
type errorBody struct {
	Detail string `json:"detail"`
}

// Predict posts the input payload to the service and returns the decoded
// prediction. The payload passes through opaquely; its shape is a contract
// between the job submitter and the target model.
func (c *Client) Predict(ctx context.Context, input any) (any, error) {
	body, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("%w: encode input: %v", ErrInvalidInput, err)
	}

	u := c.baseURL + "/predict"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var eb errorBody
		_ = json.NewDecoder(resp.Body).Decode(&eb)

		c.logger.Warn("Model predict returned non-OK status",
			slog.String("url", u),
			slog.Int("status", resp.StatusCode),
			slog.String("detail", eb.Detail),
		)

		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, fmt.Errorf("%w: status %d: %s", ErrInvalidInput, resp.StatusCode, eb.Detail)
		}
		return nil, fmt.Errorf("%w: status %d: %s", ErrPredictFailed, resp.StatusCode, eb.Detail)
	}

	var result any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrPredictFailed, err)
	}
	return result, nil
}

// Health probes the service's /health endpoint. Failures are returned, not
// downgraded; callers decide what degraded means.
func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return HealthStatus{}, fmt.Errorf("building request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return HealthStatus{}, classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return HealthStatus{}, fmt.Errorf("%w: status %d", ErrModelUnreachable, resp.StatusCode)
	}

	var hs HealthStatus
	if err := json.NewDecoder(resp.Body).Decode(&hs); err != nil {
		return HealthStatus{}, fmt.Errorf("decoding health response: %w", err)
	}
	return hs, nil
}

func classifyError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrModelTimeout, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrModelTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrModelUnreachable, err)
}
