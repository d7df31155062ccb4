package api

import (
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	domainerrors "github.com/listenupapp/watchtrack/internal/errors"
	"github.com/listenupapp/watchtrack/internal/http/response"
	"github.com/listenupapp/watchtrack/internal/store"
)

// APIError implements huma.StatusError for domain and store errors.
type APIError struct { //nolint:revive // API prefix is intentional for clarity
	status  int
	Code    string `json:"code" doc:"Machine-readable error code"`
	Message string `json:"message" doc:"Human-readable error message"`
	Details any    `json:"details,omitempty" doc:"Additional error details"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return e.Message
}

// GetStatus implements huma.StatusError.
func (e *APIError) GetStatus() int {
	return e.status
}

// ContentType returns the content type for the error response.
func (e *APIError) ContentType(_ string) string {
	return "application/json"
}

// RegisterErrorHandler makes huma render every error as an APIError.
// Call it before creating the huma.API.
func RegisterErrorHandler() {
	huma.NewError = newAPIError
}

func newAPIError(status int, message string, errs ...error) huma.StatusError {
	for _, err := range errs {
		var domainErr *domainerrors.Error
		if errors.As(err, &domainErr) {
			return &APIError{
				status:  domainErr.HTTPStatus(),
				Code:    string(domainErr.Code),
				Message: domainErr.Message,
				Details: domainErr.Details,
			}
		}

		var storeErr *store.Error
		if errors.As(err, &storeErr) {
			return &APIError{
				status:  storeErr.HTTPCode(),
				Code:    string(response.CodeForStatus(storeErr.HTTPCode())),
				Message: storeErr.Message,
			}
		}
	}

	// Request validation failures from huma carry per-field details.
	if status == http.StatusUnprocessableEntity || status == http.StatusBadRequest {
		details := make(map[string]string)
		for _, err := range errs {
			var detail *huma.ErrorDetail
			if errors.As(err, &detail) {
				details[detail.Location] = detail.Message
			}
		}
		if len(details) > 0 {
			return &APIError{
				status:  status,
				Code:    string(domainerrors.CodeValidation),
				Message: message,
				Details: details,
			}
		}
	}

	if status >= http.StatusInternalServerError {
		message = "internal server error"
	}
	return &APIError{
		status:  status,
		Code:    string(response.CodeForStatus(status)),
		Message: message,
	}
}
