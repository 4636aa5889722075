// Package models holds the static registry of available inference models.
package models

import (
	"time"
)

// Known model identifiers, one per inference service.
const (
	SentimentModelID = "distilbert-base-uncased-finetuned-sst-2-english"
	VQAModelID       = "dandelin/vilt-b32-finetuned-vqa"
	DetectionModelID = "yolo11n.pt"
)

// Model describes one registered inference model and how to reach its
// service.
type Model struct {
	ID       string
	Endpoint string
	Timeout  time.Duration
}

// Registry is the statically configured set of available models. Job
// submissions are validated against it; the worker resolves service
// endpoints through it.
type Registry struct {
	models []Model
	index  map[string]Model
}

// NewRegistry builds a registry from the configured models. Order is
// preserved for the IDs listing.
func NewRegistry(models []Model) *Registry {
	index := make(map[string]Model, len(models))
	for _, m := range models {
		index[m.ID] = m
	}
	return &Registry{models: models, index: index}
}

// Default returns a registry with the three known models and no endpoints.
// Useful for tests and local development without the model services.
func Default() *Registry {
	return NewRegistry([]Model{
		{ID: SentimentModelID},
		{ID: VQAModelID},
		{ID: DetectionModelID},
	})
}

// Contains reports whether id names a registered model.
func (r *Registry) Contains(id string) bool {
	_, ok := r.index[id]
	return ok
}

// Get returns the model for id, if registered.
func (r *Registry) Get(id string) (Model, bool) {
	m, ok := r.index[id]
	return m, ok
}

// IDs lists the registered model identifiers in configuration order.
func (r *Registry) IDs() []string {
	ids := make([]string, len(r.models))
	for i, m := range r.models {
		ids[i] = m.ID
	}
	return ids
}
