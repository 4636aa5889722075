package frontend

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatTodayPercentage(t *testing.T) {
	tests := []struct {
		name         string
		currentPrice int
		todayDelta   string
		expected     string
	}{
		{
			name:         "positive delta",
			currentPrice: 100,
			todayDelta:   "+5",
			expected:     "(+5.3%)",
		},
		{
			name:         "negative delta",
			currentPrice: 95,
			todayDelta:   "-5",
			expected:     "(-5.0%)",
		},
		{
			name:         "no sign prefix",
			currentPrice: 110,
			todayDelta:   "10",
			expected:     "(+10.0%)",
		},
		{
			name:         "zero delta",
			currentPrice: 120,
			todayDelta:   "0",
			expected:     "(+0.0%)",
		},
		{
			name:         "empty delta treated as zero",
			currentPrice: 120,
			todayDelta:   "",
			expected:     "(+0.0%)",
		},
		{
			name:         "zero previous price",
			currentPrice: 5,
			todayDelta:   "+5",
			expected:     "",
		},
		{
			name:         "unparseable delta",
			currentPrice: 100,
			todayDelta:   "abc",
			expected:     "",
		},
		{
			name:         "bare sign",
			currentPrice: 100,
			todayDelta:   "+",
			expected:     "(+0.0%)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatTodayPercentage(tt.currentPrice, tt.todayDelta))
		})
	}
}
