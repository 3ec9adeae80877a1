package transcode

import (
	"time"

	"github.com/kamrankamilli/gsdoom/pkg/frame"
	"github.com/kamrankamilli/gsdoom/pkg/palette"
)

// BuildOptions shape the screen frame produced by Build.
type BuildOptions struct {
	Name  string
	RefID string
	// OmitEmpty leaves value columns that would only hold padding nil.
	OmitEmpty bool
}

// RowCount returns the number of output rows the columns expand to.
func RowCount(columns []Column) int {
	n := 0
	for i := range columns {
		n += columns[i].MaxRunLength
	}
	return n
}

// Build lays the columns out as a screen frame. Column i occupies
// MaxRunLength consecutive rows whose time is start + i*step (i*2*step in
// half resolution). Within those rows the value column of palette index p
// lists the y coordinates matched by p followed by padding.
func Build(columns []Column, start time.Time, step time.Duration, half bool, opts BuildOptions) *frame.Screen {
	if half {
		step *= 2
	}
	name := opts.Name
	if name == "" {
		name = frame.ScreenName
	}

	rows := RowCount(columns)
	s := &frame.Screen{
		Name:   name,
		RefID:  opts.RefID,
		Time:   make([]time.Time, rows),
		Values: make([][]int16, palette.Size),
	}

	var used [palette.Size]bool
	for i := range columns {
		for p, run := range columns[i].Runs {
			if len(run) > 0 {
				used[p] = true
			}
		}
	}

	for p := range s.Values {
		if opts.OmitEmpty && !used[p] {
			continue
		}
		vals := make([]int16, rows)
		for i := range vals {
			vals[i] = frame.Pad
		}
		s.Values[p] = vals
	}

	row := 0
	for i := range columns {
		col := &columns[i]
		ts := start.Add(time.Duration(i) * step)
		for j := 0; j < col.MaxRunLength; j++ {
			s.Time[row+j] = ts
		}
		for p, run := range col.Runs {
			if len(run) > 0 {
				copy(s.Values[p][row:], run)
			}
		}
		row += col.MaxRunLength
	}
	return s
}
