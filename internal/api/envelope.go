package api

import (
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/watchtrack/internal/http/response"
)

// EnvelopeTransformer wraps every huma response body in the versioned
// envelope. Errors land in "error"/"code"/"details", anything else in "data".
func EnvelopeTransformer(_ huma.Context, _ string, v any) (any, error) {
	switch body := v.(type) {
	case response.Envelope:
		return body, nil
	case *APIError:
		return response.Fail(body.Code, body.Message, body.Details), nil
	case huma.StatusError:
		code := response.CodeForStatus(body.GetStatus())
		return response.Fail(string(code), body.Error(), nil), nil
	case error:
		var apiErr *APIError
		if errors.As(body, &apiErr) {
			return response.Fail(apiErr.Code, apiErr.Message, apiErr.Details), nil
		}
		return response.Fail("", body.Error(), nil), nil
	default:
		return response.Ok(v), nil
	}
}
