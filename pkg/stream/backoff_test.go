package stream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffNext(t *testing.T) {
	b := Backoff{Min: time.Second, Max: 8 * time.Second, Factor: 2.0}

	testCases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 8 * time.Second},
		{50, 8 * time.Second},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.want, b.Next(tc.attempt), "attempt %d", tc.attempt)
	}
}

func TestBackoffJitterStaysInBounds(t *testing.T) {
	b := DefaultBackoff()
	for attempt := 1; attempt <= 8; attempt++ {
		base := Backoff{Min: b.Min, Max: b.Max, Factor: b.Factor}.Next(attempt)
		delta := time.Duration(float64(base) * b.Jitter)
		for i := 0; i < 20; i++ {
			got := b.Next(attempt)
			assert.GreaterOrEqual(t, got, base-delta)
			assert.LessOrEqual(t, got, base+delta)
		}
	}
}

func TestBackoffZeroValueDefaults(t *testing.T) {
	var b Backoff
	assert.Equal(t, 100*time.Millisecond, b.Next(1))
	assert.Equal(t, 5*time.Second, b.Next(10))
}
