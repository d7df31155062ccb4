package service

import (
	"github.com/listenupapp/watchtrack/internal/tracking"
	"github.com/listenupapp/watchtrack/internal/validation"
)

// MergeIntervalsRequest is a raw interval list recorded by a client.
type MergeIntervalsRequest struct {
	Intervals []tracking.Interval `json:"intervals"`
	Duration  float64             `json:"duration" validate:"finite,gte=0"`
}

// MergeIntervalsResult is the normalized form of a MergeIntervalsRequest.
type MergeIntervalsResult struct {
	Intervals tracking.WatchedSet `json:"intervals"`
	Dropped   int                 `json:"dropped"`
	Gaps      []tracking.Interval `json:"gaps"`
	tracking.Progress
}

var mergeValidator = validation.New()

// MergeIntervals normalizes req.Intervals and reports progress against
// req.Duration. Malformed intervals are counted in Dropped.
func MergeIntervals(req MergeIntervalsRequest) (*MergeIntervalsResult, error) {
	if err := mergeValidator.Validate(req); err != nil {
		return nil, err
	}

	set := tracking.MergeAll(req.Intervals)
	dropped := 0
	for _, iv := range req.Intervals {
		if !iv.Valid() {
			dropped++
		}
	}

	gaps := set.Gaps(req.Duration)
	if gaps == nil {
		gaps = []tracking.Interval{}
	}

	return &MergeIntervalsResult{
		Intervals: set,
		Dropped:   dropped,
		Gaps:      gaps,
		Progress:  tracking.ComputeProgress(set, req.Duration),
	}, nil
}
