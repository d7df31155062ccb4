package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/watchtrack/internal/service"
	"github.com/listenupapp/watchtrack/internal/tracking"
)

func (s *Server) registerIntervalRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "mergeIntervals",
		Method:      http.MethodPost,
		Path:        "/api/v1/intervals/merge",
		Summary:     "Merge intervals",
		Description: "Normalizes a raw interval list and reports coverage against a duration. Nothing is stored.",
		Tags:        []string{"Intervals"},
	}, s.handleMergeIntervals)
}

// MergeIntervalsInput is a raw interval list.
type MergeIntervalsInput struct {
	Body struct {
		Intervals [][]float64 `json:"intervals,omitempty" doc:"[start, end] pairs in any order"`
		Duration  float64     `json:"duration,omitempty" doc:"Video duration in seconds"`
	}
}

// MergeIntervalsResponse is the normalized set with its coverage.
type MergeIntervalsResponse struct {
	Intervals            [][]float64 `json:"intervals" doc:"Sorted, disjoint intervals"`
	Gaps                 [][]float64 `json:"gaps" doc:"Unwatched spans between 0 and duration"`
	Dropped              int         `json:"dropped" doc:"Malformed intervals that were discarded"`
	TotalUniqueSeconds   float64     `json:"totalUniqueSeconds"`
	CompletionPercentage int         `json:"completionPercentage"`
}

// MergeIntervalsOutput wraps the merge result for Huma.
type MergeIntervalsOutput struct {
	Body MergeIntervalsResponse
}

func (s *Server) handleMergeIntervals(_ context.Context, input *MergeIntervalsInput) (*MergeIntervalsOutput, error) {
	intervals, malformed := tracking.FromPairs(input.Body.Intervals)

	res, err := service.MergeIntervals(service.MergeIntervalsRequest{
		Intervals: intervals,
		Duration:  input.Body.Duration,
	})
	if err != nil {
		return nil, err
	}

	return &MergeIntervalsOutput{Body: MergeIntervalsResponse{
		Intervals:            res.Intervals.Pairs(),
		Gaps:                 tracking.WatchedSet(res.Gaps).Pairs(),
		Dropped:              res.Dropped + malformed,
		TotalUniqueSeconds:   res.TotalUniqueSeconds,
		CompletionPercentage: res.CompletionPercentage,
	}}, nil
}
