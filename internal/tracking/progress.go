package tracking

import "math"

// Progress summarizes a watched set against the media duration.
type Progress struct {
	TotalUniqueSeconds   float64 `json:"totalUniqueSeconds"`
	CompletionPercentage int     `json:"completionPercentage"`
}

// ComputeProgress derives the unique watched time and the rounded completion
// percentage. An unknown or non-positive duration yields 0 percent; the
// percentage is clamped to [0, 100] since interval rounding can overshoot.
func ComputeProgress(set WatchedSet, duration float64) Progress {
	total := set.TotalSeconds()
	return Progress{
		TotalUniqueSeconds:   total,
		CompletionPercentage: CompletionPercentage(total, duration),
	}
}

// CompletionPercentage returns round(total / duration * 100) clamped to [0, 100].
func CompletionPercentage(total, duration float64) int {
	if math.IsNaN(duration) || duration <= 0 || math.IsNaN(total) {
		return 0
	}
	pct := math.Round(total / max(duration, 1) * 100)
	return int(min(max(pct, 0), 100))
}
