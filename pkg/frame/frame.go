// Package frame defines the columnar frames pushed to query subscribers.
package frame

import (
	"math"
	"time"
)

// Pad marks an unset row of a screen value column.
const Pad int16 = -1

// MaxDimension bounds the reference width and height. Row coordinates travel
// as int16.
const MaxDimension = math.MaxInt16

// ScreenName is the name of every screen frame.
const ScreenName = "screen"

// ColorLabel is the label key carrying the palette index of a value column.
const ColorLabel = "color"

// Screen is the columnar encoding of one raster frame. Time holds one entry
// per output row; Values holds one column per palette index, each as long as
// Time. A value is the y coordinate of a pixel whose color matched that
// palette index, or Pad. Omitted columns are nil.
type Screen struct {
	Name   string
	RefID  string
	Time   []time.Time
	Values [][]int16
}

// Len returns the number of rows.
func (s *Screen) Len() int { return len(s.Time) }

// Used returns the palette indices that have a value column.
func (s *Screen) Used() []int {
	out := make([]int, 0, len(s.Values))
	for i, v := range s.Values {
		if v != nil {
			out = append(out, i)
		}
	}
	return out
}

// Series is a trailing time series of derived metric values.
type Series struct {
	Name   string
	RefID  string
	Time   []time.Time
	Fields []Field
}

// Len returns the number of rows.
func (s *Series) Len() int { return len(s.Time) }

// Field is one value column of a series. Exactly one of Numbers and Strings
// is used.
type Field struct {
	Name    string
	Labels  map[string]string
	Numbers []float64
	Strings []string
}

// IsString reports whether the field holds strings.
func (f *Field) IsString() bool { return f.Strings != nil }

// State is the loading state attached to a response.
type State string

const (
	StateStreaming State = "streaming"
	StateDone      State = "done"
)

// Response is one message of a query stream, keyed by the query's refId.
// Exactly one of Screen and Series is set.
type Response struct {
	Key    string
	State  State
	Screen *Screen
	Series *Series
}
