// Package frontend serves the cowhide price page by proxying the Grand
// Exchange item-detail API, with a short-lived Redis cache in front of it.
package frontend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"ml-jobs-platform/shared/cache"
)

// ErrUpstream marks any failure to obtain a usable response from the price
// API. Handlers translate it into a 502.
var ErrUpstream = errors.New("price api request failed")

// Fetcher retrieves the raw item-detail document for one item, consulting
// the cache before going upstream.
type Fetcher struct {
	client   *http.Client
	baseURL  string
	itemID   int
	cache    cache.Cache
	cacheTTL time.Duration
	logger   *slog.Logger
}

// NewFetcher creates a fetcher for the configured item. cache may be nil, in
// which case every request goes upstream.
func NewFetcher(baseURL string, itemID int, timeout time.Duration, c cache.Cache, cacheTTL time.Duration, logger *slog.Logger) *Fetcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Fetcher{
		client:   &http.Client{Timeout: timeout},
		baseURL:  baseURL,
		itemID:   itemID,
		cache:    c,
		cacheTTL: cacheTTL,
		logger:   logger,
	}
}

// FetchItem returns the decoded item-detail document. Cache errors are
// logged and bypassed; only upstream failures surface as errors.
func (f *Fetcher) FetchItem(ctx context.Context) (map[string]any, error) {
	key := cache.ItemPriceKey(f.itemID)

	if f.cache != nil {
		if cached, ok, err := f.cache.Get(ctx, key); err != nil {
			f.logger.Warn("Price cache read failed",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		} else if ok {
			var data map[string]any
			if err := json.Unmarshal(cached, &data); err == nil {
				return data, nil
			}
			f.logger.Warn("Discarding corrupt cache entry",
				slog.String("key", key),
			)
		}
	}

	body, err := f.fetchUpstream(ctx)
	if err != nil {
		return nil, err
	}

	var data map[string]any
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrUpstream, err)
	}

	if f.cache != nil {
		if err := f.cache.Set(ctx, key, body, f.cacheTTL); err != nil {
			f.logger.Warn("Price cache write failed",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
	}

	return data, nil
}

func (f *Fetcher) fetchUpstream(ctx context.Context) ([]byte, error) {
	u := fmt.Sprintf("%s?item=%d", f.baseURL, f.itemID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Error("Error fetching cowhide data",
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		f.logger.Error("Price API returned non-OK status",
			slog.Int("status", resp.StatusCode),
		)
		return nil, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrUpstream, err)
	}
	return body, nil
}
