// Package transcode turns RGBA raster frames into palette-indexed,
// run-organized columns and shapes them into screen frames.
package transcode

import (
	"fmt"

	"github.com/kamrankamilli/gsdoom/pkg/frame"
	"github.com/kamrankamilli/gsdoom/pkg/palette"
	"github.com/kamrankamilli/gsdoom/pkg/quantize"
)

// BytesPerPixel of the RGBA source layout.
const BytesPerPixel = 4

// Dimensions are the full-resolution reference dimensions of a raster.
type Dimensions struct {
	Width, Height int
}

// Reference is the size of the rendered scene.
var Reference = Dimensions{Width: 320, Height: 200}

// Options control how a raster is sampled.
type Options struct {
	// VerticalFlip reads source rows bottom to top.
	VerticalFlip bool
	// Scale is the oversampling factor of the source buffer (≥1).
	Scale int
	// HalfResolution halves the effective width and height.
	HalfResolution bool
}

func (o Options) scale() int {
	if o.Scale < 1 {
		return 1
	}
	return o.Scale
}

// Stride is the source step between two effective pixels on either axis.
func (o Options) Stride() int {
	if o.HalfResolution {
		return 2 * o.scale()
	}
	return o.scale()
}

// Effective returns the sampled width and height.
func (d Dimensions) Effective(o Options) (w, h int) {
	if o.HalfResolution {
		return d.Width / 2, d.Height / 2
	}
	return d.Width, d.Height
}

// RequiredBufferSize is the size of the RGBA buffer backing d at o's scale.
func RequiredBufferSize(d Dimensions, o Options) int {
	s := o.scale()
	return d.Width * s * d.Height * s * BytesPerPixel
}

// Column is the run-organized content of one effective pixel column.
type Column struct {
	// MaxRunLength is the largest number of rows sharing a palette index in
	// this column. It is at least 1.
	MaxRunLength int
	// Runs maps a palette index to the ascending rows that matched it. Indices
	// without matches have an empty run.
	Runs [palette.Size][]int16
}

// Transcoder samples raster frames through a Quantizer. It reuses its column
// storage, so the result of Transcode is valid until the next call.
type Transcoder struct {
	q       *quantize.Quantizer
	dims    Dimensions
	columns []Column
}

// New returns a transcoder for rasters of the given reference dimensions.
// Dimensions above frame.MaxDimension panic.
func New(q *quantize.Quantizer, dims Dimensions) *Transcoder {
	if dims.Width > frame.MaxDimension || dims.Height > frame.MaxDimension {
		panic(fmt.Sprintf("transcode: dimensions %dx%d exceed %d", dims.Width, dims.Height, frame.MaxDimension))
	}
	return &Transcoder{q: q, dims: dims}
}

// Dimensions returns the reference dimensions.
func (t *Transcoder) Dimensions() Dimensions { return t.dims }

// Transcode quantizes every effective pixel of buf and groups rows by palette
// index, column by column. buf must hold at least RequiredBufferSize bytes;
// a shorter buffer is a programming error and panics.
func (t *Transcoder) Transcode(buf []byte, o Options) []Column {
	if need := RequiredBufferSize(t.dims, o); len(buf) < need {
		panic(fmt.Sprintf("transcode: raster buffer has %d bytes, need %d", len(buf), need))
	}

	width, height := t.dims.Effective(o)
	scale := o.scale()
	stride := o.Stride()
	rowBytes := t.dims.Width * scale * BytesPerPixel
	lastRow := t.dims.Height*scale - 1

	if cap(t.columns) < width {
		t.columns = make([]Column, width)
	}
	t.columns = t.columns[:width]

	for x := 0; x < width; x++ {
		col := &t.columns[x]
		for i := range col.Runs {
			col.Runs[i] = col.Runs[i][:0]
		}
		col.MaxRunLength = 1

		xOff := x * stride * BytesPerPixel
		for y := 0; y < height; y++ {
			row := y * stride
			if o.VerticalFlip {
				row = lastRow - row
			}
			off := row*rowBytes + xOff
			idx := t.q.Index(buf[off], buf[off+1], buf[off+2])

			run := append(col.Runs[idx], int16(y))
			col.Runs[idx] = run
			if len(run) > col.MaxRunLength {
				col.MaxRunLength = len(run)
			}
		}
	}
	return t.columns
}

// Release drops the reusable column storage.
func (t *Transcoder) Release() { t.columns = nil }
