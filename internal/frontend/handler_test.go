package frontend

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ml-jobs-platform/shared/cache"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeCache is an in-memory cache.Cache for tests.
type fakeCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string][]byte)}
}

func (f *fakeCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[key] = value
	return nil
}

func (f *fakeCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.entries[key]
	return v, ok, nil
}

func (f *fakeCache) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, key)
	return nil
}

func (f *fakeCache) Ping(ctx context.Context) error { return nil }

func itemDetail() map[string]any {
	return map[string]any{
		"item": map[string]any{
			"id":          1739,
			"name":        "Cowhide",
			"description": "The not-so-tanned hide of a cow.",
			"current":     map[string]any{"trend": "neutral", "price": 100},
			"today":       map[string]any{"trend": "positive", "price": "+5"},
		},
	}
}

func newTestRouter(t *testing.T, upstreamURL string, c cache.Cache) *gin.Engine {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)

	fetcher := NewFetcher(upstreamURL, 1739, 2*time.Second, c, time.Minute, logger)
	return SetupRouter(NewHandler(fetcher, logger), logger)
}

func TestIndex(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1739", r.URL.Query().Get("item"))
		json.NewEncoder(w).Encode(itemDetail())
	}))
	defer upstream.Close()

	r := newTestRouter(t, upstream.URL, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Cowhide")
	assert.Contains(t, body, "100 gp")
	// html/template escapes '+' to &#43; in rendered output.
	assert.Contains(t, body, "(&#43;5.3%)")
}

func TestRaw(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(itemDetail())
	}))
	defer upstream.Close()

	r := newTestRouter(t, upstream.URL, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/raw", nil)
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var data map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &data))
	item := data["item"].(map[string]any)
	assert.Equal(t, "Cowhide", item["name"])
	// Raw passthrough carries no computed fields
	assert.NotContains(t, item, "today_percentage")
}

func TestIndex_UpstreamDown(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer upstream.Close()

	r := newTestRouter(t, upstream.URL, nil)

	for _, path := range []string{"/", "/raw"} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		r.ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadGateway, rec.Code, path)

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "failed_to_fetch_cowhide", body["error"])
		assert.NotEmpty(t, body["detail"])
	}
}

func TestFetchItem_CacheHit(t *testing.T) {
	var hits atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		json.NewEncoder(w).Encode(itemDetail())
	}))
	defer upstream.Close()

	logger := slog.New(slog.DiscardHandler)
	fetcher := NewFetcher(upstream.URL, 1739, 2*time.Second, newFakeCache(), time.Minute, logger)

	for i := 0; i < 3; i++ {
		data, err := fetcher.FetchItem(context.Background())
		require.NoError(t, err)
		assert.Contains(t, data, "item")
	}

	assert.Equal(t, int32(1), hits.Load())
}
