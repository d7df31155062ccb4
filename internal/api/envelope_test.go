package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/listenupapp/watchtrack/internal/errors"
	"github.com/listenupapp/watchtrack/internal/http/response"
	"github.com/listenupapp/watchtrack/internal/store"
)

func transform(t *testing.T, status string, v any) map[string]any {
	t.Helper()
	result, err := EnvelopeTransformer(nil, status, v)
	require.NoError(t, err)

	data, err := json.Marshal(result)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestEnvelopeTransformer_AlwaysIncludesVersion(t *testing.T) {
	inputs := map[string]any{
		"200": map[string]string{"k": "v"},
		"201": struct{ ID string }{"x"},
		"204": nil,
		"400": errors.New("bad"),
		"409": &APIError{Code: "CONFLICT", Message: "exists"},
	}
	for status, v := range inputs {
		out := transform(t, status, v)
		assert.Equal(t, float64(response.Version), out["v"], status)
	}
}

func TestEnvelopeTransformer_Success(t *testing.T) {
	out := transform(t, "200", map[string]int{"total": 3})

	assert.Equal(t, true, out["success"])
	assert.Equal(t, map[string]any{"total": float64(3)}, out["data"])
	assert.NotContains(t, out, "error")
}

func TestEnvelopeTransformer_APIError(t *testing.T) {
	out := transform(t, "400", &APIError{
		Code:    "VALIDATION",
		Message: "validation failed",
		Details: map[string]string{"duration": "must be at least 0"},
	})

	assert.Equal(t, false, out["success"])
	assert.Equal(t, "VALIDATION", out["code"])
	assert.Equal(t, "validation failed", out["error"])
	assert.Equal(t, map[string]any{"duration": "must be at least 0"}, out["details"])
	assert.NotContains(t, out, "data")
}

func TestEnvelopeTransformer_PlainError(t *testing.T) {
	out := transform(t, "500", errors.New("boom"))
	assert.Equal(t, false, out["success"])
	assert.Equal(t, "boom", out["error"])
}

func TestNewAPIError_Mapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", domainerrors.NotFound("progress not found"), http.StatusNotFound, "NOT_FOUND"},
		{"unavailable", domainerrors.Unavailable("store down", errors.New("dial tcp")), http.StatusServiceUnavailable, "UNAVAILABLE"},
		{"store not found", store.ErrProgressNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "INTERNAL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			se := newAPIError(http.StatusInternalServerError, "request failed", tt.err)
			assert.Equal(t, tt.status, se.GetStatus())

			var apiErr *APIError
			require.ErrorAs(t, se, &apiErr)
			assert.Equal(t, tt.code, apiErr.Code)
		})
	}
}

func TestNewAPIError_HidesInternalMessages(t *testing.T) {
	se := newAPIError(http.StatusInternalServerError, "pq: password authentication failed")
	assert.Equal(t, "internal server error", se.Error())
}

func TestNewAPIError_HumaValidationDetails(t *testing.T) {
	se := newAPIError(http.StatusUnprocessableEntity, "validation failed",
		&huma.ErrorDetail{Location: "body.events", Message: "expected required property events to be present"})

	var apiErr *APIError
	require.ErrorAs(t, se, &apiErr)
	assert.Equal(t, "VALIDATION", apiErr.Code)
	assert.Equal(t, map[string]string{"body.events": "expected required property events to be present"}, apiErr.Details)
}
