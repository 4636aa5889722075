package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJobUpdateEmpty(t *testing.T) {
	assert.True(t, JobUpdate{}.Empty())

	name := "renamed"
	assert.False(t, JobUpdate{JobName: &name}.Empty())

	status := JobStatusRunning
	assert.False(t, JobUpdate{Status: &status}.Empty())

	assert.False(t, JobUpdate{Result: map[string]any{"label": "POSITIVE"}}.Empty())
}
