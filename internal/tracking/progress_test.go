package tracking

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeProgress(t *testing.T) {
	tests := []struct {
		name      string
		set       WatchedSet
		duration  float64
		wantTotal float64
		wantPct   int
	}{
		{"zero duration", WatchedSet{iv(0, 10)}, 0, 10, 0},
		{"negative duration", WatchedSet{iv(0, 10)}, -5, 10, 0},
		{"nan duration", WatchedSet{iv(0, 10)}, math.NaN(), 10, 0},
		{"empty set", WatchedSet{}, 100, 0, 0},
		{"half", WatchedSet{iv(0, 50)}, 100, 50, 50},
		{"rounds half up", WatchedSet{iv(0, 1)}, 8, 1, 13},
		{"overshoot clamps", WatchedSet{iv(0, 100), iv(120, 170)}, 100, 150, 100},
		{"sub-second duration uses floor of one", WatchedSet{iv(0, 1)}, 0.5, 1, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeProgress(tt.set, tt.duration)
			assert.InDelta(t, tt.wantTotal, got.TotalUniqueSeconds, 1e-9)
			assert.Equal(t, tt.wantPct, got.CompletionPercentage)
		})
	}
}

func TestCompletionPercentage_Bounds(t *testing.T) {
	for _, total := range []float64{0, 1, 33.3, 99.5, 1000, math.Inf(1)} {
		pct := CompletionPercentage(total, 100)
		assert.GreaterOrEqual(t, pct, 0)
		assert.LessOrEqual(t, pct, 100)
	}
}
