package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/watchtrack/internal/dto"
	"github.com/listenupapp/watchtrack/internal/service"
	"github.com/listenupapp/watchtrack/internal/store"
	"github.com/listenupapp/watchtrack/internal/tracking"
)

func (s *Server) registerProgressRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listProgress",
		Method:      http.MethodGet,
		Path:        "/api/progress/{userId}",
		Summary:     "List progress",
		Description: "Returns the progress records of a user one page at a time, most recently updated first with ties ordered by video ID. The cursor marks a position in that order: a record saved while paging moves to the front and is not repeated on later pages.",
		Tags:        []string{"Progress"},
	}, s.handleListProgress)

	huma.Register(s.api, huma.Operation{
		OperationID: "getProgress",
		Method:      http.MethodGet,
		Path:        "/api/progress/{userId}/{videoId}",
		Summary:     "Get progress",
		Description: "Returns the watched intervals and completion of one video",
		Tags:        []string{"Progress"},
	}, s.handleGetProgress)

	huma.Register(s.api, huma.Operation{
		OperationID: "saveProgress",
		Method:      http.MethodPost,
		Path:        "/api/progress/{userId}/{videoId}",
		Summary:     "Save progress",
		Description: "Creates or replaces a progress record. Intervals are re-merged and the total is recomputed. A write older than the stored record is ignored and the stored record is returned.",
		Tags:        []string{"Progress"},
	}, s.handleSaveProgress)

	huma.Register(s.api, huma.Operation{
		OperationID: "patchProgress",
		Method:      http.MethodPatch,
		Path:        "/api/progress/{userId}/{videoId}",
		Summary:     "Update progress",
		Description: "Updates the given fields of an existing record",
		Tags:        []string{"Progress"},
	}, s.handlePatchProgress)

	huma.Register(s.api, huma.Operation{
		OperationID:   "deleteProgress",
		Method:        http.MethodDelete,
		Path:          "/api/progress/{userId}/{videoId}",
		Summary:       "Reset progress",
		Description:   "Deletes a progress record",
		Tags:          []string{"Progress"},
		DefaultStatus: http.StatusNoContent,
	}, s.handleDeleteProgress)
}

// ProgressPathInput identifies a record.
type ProgressPathInput struct {
	UserID  string `path:"userId" doc:"User ID"`
	VideoID string `path:"videoId" doc:"Video ID"`
}

// ProgressOutput wraps a record for Huma.
type ProgressOutput struct {
	Body dto.Progress
}

// ListProgressInput selects a user and a page.
type ListProgressInput struct {
	UserID string `path:"userId" doc:"User ID"`
	Limit  int    `query:"limit" minimum:"0" maximum:"1000" doc:"Page size, default 100"`
	Cursor string `query:"cursor" doc:"nextCursor from the previous page"`
}

// ListProgressOutput wraps a page of records for Huma.
type ListProgressOutput struct {
	Body struct {
		Progress   []dto.Progress `json:"progress"`
		NextCursor string         `json:"nextCursor,omitempty" doc:"Pass as cursor to fetch the next page"`
		HasMore    bool           `json:"hasMore"`
		Total      int            `json:"total" doc:"Records across all pages"`
	}
}

// SaveProgressInput replaces a record.
type SaveProgressInput struct {
	ProgressPathInput
	Body struct {
		Intervals          [][]float64 `json:"intervals,omitempty" doc:"Watched intervals as [start, end] pairs; malformed pairs are dropped"`
		TotalUniqueSeconds *float64    `json:"totalUniqueSeconds,omitempty" doc:"Ignored, recomputed from intervals"`
		LastPosition       float64     `json:"lastPosition,omitempty" doc:"Resume position in seconds"`
		Duration           float64     `json:"duration,omitempty" doc:"Video duration in seconds"`
		UpdatedAt          *FlexTime   `json:"updatedAt,omitempty" doc:"Client write time, defaults to now"`
	}
}

// PatchProgressInput updates part of a record.
type PatchProgressInput struct {
	ProgressPathInput
	Body struct {
		Intervals    [][]float64 `json:"intervals,omitempty" doc:"Replacement interval set"`
		LastPosition *float64    `json:"lastPosition,omitempty"`
		Duration     *float64    `json:"duration,omitempty"`
		UpdatedAt    *FlexTime   `json:"updatedAt,omitempty"`
	}
}

// intervalsFromBody converts request pairs, keeping nil distinct from empty.
func intervalsFromBody(pairs [][]float64) []tracking.Interval {
	if pairs == nil {
		return nil
	}
	intervals, _ := tracking.FromPairs(pairs)
	return intervals
}

func (s *Server) handleListProgress(ctx context.Context, input *ListProgressInput) (*ListProgressOutput, error) {
	annotate(ctx, input.UserID, "")
	page, err := s.services.Progress.ListPage(ctx, input.UserID, store.PaginationParams{
		Limit:  input.Limit,
		Cursor: input.Cursor,
	})
	if err != nil {
		return nil, err
	}
	out := &ListProgressOutput{}
	out.Body.Progress = dto.FromProgressList(page.Items)
	out.Body.NextCursor = page.NextCursor
	out.Body.HasMore = page.HasMore
	out.Body.Total = page.Total
	return out, nil
}

func (s *Server) handleGetProgress(ctx context.Context, input *ProgressPathInput) (*ProgressOutput, error) {
	annotate(ctx, input.UserID, input.VideoID)
	p, err := s.services.Progress.Get(ctx, input.UserID, input.VideoID)
	if err != nil {
		return nil, err
	}
	return &ProgressOutput{Body: dto.FromProgress(p)}, nil
}

func (s *Server) handleSaveProgress(ctx context.Context, input *SaveProgressInput) (*ProgressOutput, error) {
	annotate(ctx, input.UserID, input.VideoID)
	p, err := s.services.Progress.Save(ctx, input.UserID, input.VideoID, service.SaveProgressRequest{
		Intervals:    intervalsFromBody(input.Body.Intervals),
		LastPosition: input.Body.LastPosition,
		Duration:     input.Body.Duration,
		UpdatedAt:    input.Body.UpdatedAt.ptr(),
	})
	if err != nil {
		return nil, err
	}
	return &ProgressOutput{Body: dto.FromProgress(p)}, nil
}

func (s *Server) handlePatchProgress(ctx context.Context, input *PatchProgressInput) (*ProgressOutput, error) {
	annotate(ctx, input.UserID, input.VideoID)
	p, err := s.services.Progress.Patch(ctx, input.UserID, input.VideoID, service.PatchProgressRequest{
		Intervals:    intervalsFromBody(input.Body.Intervals),
		LastPosition: input.Body.LastPosition,
		Duration:     input.Body.Duration,
		UpdatedAt:    input.Body.UpdatedAt.ptr(),
	})
	if err != nil {
		return nil, err
	}
	return &ProgressOutput{Body: dto.FromProgress(p)}, nil
}

func (s *Server) handleDeleteProgress(ctx context.Context, input *ProgressPathInput) (*struct{}, error) {
	annotate(ctx, input.UserID, input.VideoID)
	if err := s.services.Progress.Delete(ctx, input.UserID, input.VideoID); err != nil {
		return nil, err
	}
	return nil, nil
}
