package api

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2"
)

// FlexTime accepts an RFC3339 string or epoch milliseconds (as a number or
// a numeric string). Browser clients usually send Date.now().
// It always marshals to RFC3339.
type FlexTime struct {
	time.Time
}

// UnmarshalJSON handles flexible time parsing from JSON.
func (ft *FlexTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
			if t, err := time.Parse(layout, s); err == nil {
				ft.Time = t
				return nil
			}
		}
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			ft.Time = time.UnixMilli(ms)
			return nil
		}
		return fmt.Errorf("cannot parse time string: %s", s)
	}

	var ms float64
	if err := json.Unmarshal(data, &ms); err == nil {
		ft.Time = time.UnixMilli(int64(ms))
		return nil
	}

	return fmt.Errorf("cannot unmarshal %s into FlexTime", string(data))
}

// MarshalJSON outputs time in RFC3339 format.
func (ft FlexTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(ft.Format(time.RFC3339Nano))
}

// Schema describes FlexTime to huma as a string or a number.
func (FlexTime) Schema(huma.Registry) *huma.Schema {
	return &huma.Schema{
		OneOf: []*huma.Schema{
			{Type: huma.TypeString},
			{Type: huma.TypeNumber},
		},
		Description: "RFC3339 timestamp or epoch milliseconds",
	}
}

// ptr returns a pointer to the wrapped time, or nil for a nil or zero value.
func (ft *FlexTime) ptr() *time.Time {
	if ft == nil || ft.IsZero() {
		return nil
	}
	t := ft.UTC()
	return &t
}
