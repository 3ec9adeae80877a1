// Package query turns query targets into response streams backed by the
// render target and the metrics hub.
package query

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kamrankamilli/gsdoom/pkg/session"
)

// TypeScreen is the query type of screen targets. Any other query type names
// a metric.
const TypeScreen = "screen"

// Target is one query of a request.
type Target struct {
	RefID          string `json:"refId"`
	QueryType      string `json:"queryType"`
	HalfResolution bool   `json:"halfResolution,omitempty"`
}

// Request carries the targets of one query and their shared time range.
type Request struct {
	Range   Range    `json:"range"`
	Targets []Target `json:"targets"`
}

// Range is the requested time window.
type Range struct {
	From Time `json:"from"`
	To   Time `json:"to"`
}

// TimeRange converts r to a session time range.
func (r Range) TimeRange() session.TimeRange {
	return session.TimeRange{From: r.From.Time, To: r.To.Time}
}

// Time accepts epoch milliseconds or an RFC 3339 string.
type Time struct {
	time.Time
}

func (t *Time) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		parsed, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return fmt.Errorf("invalid time %q: %w", s, err)
		}
		t.Time = parsed
		return nil
	}
	var ms int64
	if err := json.Unmarshal(data, &ms); err != nil {
		return fmt.Errorf("invalid time %s: %w", data, err)
	}
	t.Time = time.UnixMilli(ms)
	return nil
}

func (t Time) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.UnixMilli())
}
