package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry([]Model{
		{ID: SentimentModelID, Endpoint: "http://sentiment:8000", Timeout: 5 * time.Second},
		{ID: VQAModelID, Endpoint: "http://vqa:8000"},
	})

	assert.True(t, r.Contains(SentimentModelID))
	assert.False(t, r.Contains(DetectionModelID))

	m, ok := r.Get(SentimentModelID)
	require.True(t, ok)
	assert.Equal(t, "http://sentiment:8000", m.Endpoint)

	_, ok = r.Get("nope")
	assert.False(t, ok)

	// IDs preserve configuration order
	assert.Equal(t, []string{SentimentModelID, VQAModelID}, r.IDs())
}

func TestDefaultRegistry(t *testing.T) {
	r := Default()
	assert.Equal(t, []string{SentimentModelID, VQAModelID, DetectionModelID}, r.IDs())
}
