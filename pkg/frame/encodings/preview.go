package encodings

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"sync"

	"github.com/kamrankamilli/gsdoom/pkg/frame"
	"github.com/kamrankamilli/gsdoom/pkg/palette"
)

// Preview formats.
const (
	PreviewPNG  = "png"
	PreviewJPEG = "jpeg"
)

// ErrNotScreen is returned when previewing a response without a screen.
var ErrNotScreen = errors.New("encodings: preview needs a screen frame")

// PreviewOptions configure a preview encoding.
type PreviewOptions struct {
	Palette *palette.Palette
	// Format is PreviewPNG or PreviewJPEG. Empty is PNG.
	Format string
	// JPEGQuality is 1..100, 75 when unset.
	JPEGQuality int
}

// PreviewEncoding paints a screen frame back into an image. Each distinct
// time value is one pixel column; y = 0 is the bottom row.
type PreviewEncoding struct {
	pal     *palette.Palette
	format  string
	quality int
}

// NewPreview constructs a preview encoder with options.
func NewPreview(opts PreviewOptions) *PreviewEncoding {
	pal := opts.Palette
	if pal == nil {
		pal = palette.Default()
	}
	format := opts.Format
	if format != PreviewJPEG {
		format = PreviewPNG
	}
	q := opts.JPEGQuality
	if q <= 0 {
		q = 75
	}
	if q > 100 {
		q = 100
	}
	return &PreviewEncoding{pal: pal, format: format, quality: q}
}

func (p *PreviewEncoding) Name() string { return p.format }
func (p *PreviewEncoding) Binary() bool { return true }

var previewPool = sync.Pool{New: func() any { return new(bytes.Buffer) }}

// Encode writes the screen of r as an image. It writes nothing on error.
func (p *PreviewEncoding) Encode(w io.Writer, r *frame.Response) error {
	if r.Screen == nil {
		return ErrNotScreen
	}
	img := Reconstruct(r.Screen, p.pal)

	buf := previewPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer previewPool.Put(buf)

	var err error
	if p.format == PreviewJPEG {
		err = jpeg.Encode(buf, img, &jpeg.Options{Quality: p.quality})
	} else {
		err = png.Encode(buf, img)
	}
	if err != nil {
		return err
	}
	_, err = w.Write(buf.Bytes())
	return err
}

// Reconstruct paints s with pal. The image is as wide as the number of
// distinct time values and as tall as the largest y coordinate plus one.
func Reconstruct(s *frame.Screen, pal *palette.Palette) *image.RGBA {
	cols := make([]int, len(s.Time))
	width := 0
	for i := range s.Time {
		if i > 0 && !s.Time[i].Equal(s.Time[i-1]) {
			width++
		}
		cols[i] = width
	}
	if len(s.Time) > 0 {
		width++
	}

	height := 0
	for _, vals := range s.Values {
		for _, v := range vals {
			if int(v)+1 > height {
				height = int(v) + 1
			}
		}
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for idx, vals := range s.Values {
		if vals == nil || idx >= pal.Len() {
			continue
		}
		c := pal.At(idx)
		rgba := color.RGBA{R: c.R, G: c.G, B: c.B, A: 255}
		for row, v := range vals {
			if v == frame.Pad {
				continue
			}
			img.SetRGBA(cols[row], height-1-int(v), rgba)
		}
	}
	return img
}
