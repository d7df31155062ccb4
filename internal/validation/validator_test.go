package validation_test

import (
	"math"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/listenupapp/watchtrack/internal/errors"
	"github.com/listenupapp/watchtrack/internal/validation"
)

type saveRequest struct {
	UserID       string  `json:"userId" validate:"required,max=128,printascii"`
	LastPosition float64 `json:"lastPosition" validate:"gte=0,finite"`
	Duration     float64 `json:"duration" validate:"gte=0,finite"`
	Kind         string  `json:"kind,omitempty" validate:"omitempty,oneof=play pause"`
}

func TestValidator_Valid(t *testing.T) {
	v := validation.New()
	err := v.Validate(saveRequest{UserID: "u1", LastPosition: 12.5, Duration: 300})
	assert.NoError(t, err)
}

func TestValidator_FieldErrors(t *testing.T) {
	v := validation.New()

	tests := []struct {
		name  string
		req   saveRequest
		field string
		msg   string
	}{
		{"missing user", saveRequest{}, "userId", "is required"},
		{"negative position", saveRequest{UserID: "u", LastPosition: -1}, "lastPosition", "must be greater than or equal to 0"},
		{"infinite duration", saveRequest{UserID: "u", Duration: math.Inf(1)}, "duration", "must be a finite number"},
		{"bad kind", saveRequest{UserID: "u", Kind: "rewind"}, "kind", "must be one of: play pause"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.req)
			require.Error(t, err)

			var derr *domainerrors.Error
			require.ErrorAs(t, err, &derr)
			assert.Equal(t, http.StatusBadRequest, derr.HTTPStatus())

			details, ok := derr.Details.(map[string]string)
			require.True(t, ok)
			assert.Equal(t, tt.msg, details[tt.field])
		})
	}
}
