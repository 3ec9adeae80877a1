// Package palette holds the immutable list of reference colors that raster
// pixels are matched against. A palette index is used downstream as a
// categorical label, so an index always resolves to the same color for the
// life of the process.
package palette

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// Size is the number of entries of a full palette.
const Size = 256

// SwatchStep is the distance in pixels between two swatch samples of a
// palette image.
const SwatchStep = 16

var (
	// ErrEmpty is returned when a palette would have no entries.
	ErrEmpty = errors.New("palette has no colors")
	// ErrSize is returned when palette data does not describe 1..256 colors.
	ErrSize = errors.New("palette data has an invalid size")
)

// default.pal is the reference palette of the rendered scene, 256 RGB
// triples (768 bytes).
//
//go:embed default.pal
var defaultRaw []byte

var (
	defaultOnce sync.Once
	defaultPal  *Palette
)

// Color is an opaque 24-bit color.
type Color struct {
	R, G, B uint8
}

// RGBA implements color.Color.
func (c Color) RGBA() (r, g, b, a uint32) {
	return color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xff}.RGBA()
}

func (c Color) String() string { return fmt.Sprintf("rgb(%d, %d, %d)", c.R, c.G, c.B) }

// Palette is an ordered, immutable list of at most 256 colors.
type Palette struct {
	colors []Color
}

// New copies colors into a new palette.
func New(colors []Color) (*Palette, error) {
	if len(colors) == 0 {
		return nil, ErrEmpty
	}
	if len(colors) > Size {
		return nil, fmt.Errorf("%w: %d colors", ErrSize, len(colors))
	}
	out := make([]Color, len(colors))
	copy(out, colors)
	return &Palette{colors: out}, nil
}

// FromPAL decodes raw RGB triples (the .pal layout: r0 g0 b0 r1 g1 b1 ...).
func FromPAL(raw []byte) (*Palette, error) {
	if len(raw) == 0 || len(raw)%3 != 0 || len(raw) > Size*3 {
		return nil, fmt.Errorf("%w: %d bytes", ErrSize, len(raw))
	}
	colors := make([]Color, len(raw)/3)
	for i := range colors {
		p := i * 3
		colors[i] = Color{R: raw[p], G: raw[p+1], B: raw[p+2]}
	}
	return &Palette{colors: colors}, nil
}

// FromJSON decodes a JSON array of [r, g, b] or [r, g, b, a] entries.
// Alpha is ignored.
func FromJSON(raw []byte) (*Palette, error) {
	var entries [][]int
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode palette json: %w", err)
	}
	colors := make([]Color, len(entries))
	for i, e := range entries {
		if len(e) < 3 || len(e) > 4 {
			return nil, fmt.Errorf("palette entry %d has %d components", i, len(e))
		}
		for _, v := range e[:3] {
			if v < 0 || v > 255 {
				return nil, fmt.Errorf("palette entry %d component %d out of range", i, v)
			}
		}
		colors[i] = Color{R: uint8(e[0]), G: uint8(e[1]), B: uint8(e[2])}
	}
	return New(colors)
}

// FromSwatchImage samples a 16×16 grid of color swatches, one sample every
// SwatchStep pixels. Samples are taken column by column, so index = x*16 + y.
func FromSwatchImage(img image.Image) (*Palette, error) {
	b := img.Bounds()
	if b.Dx() < 15*SwatchStep+1 || b.Dy() < 15*SwatchStep+1 {
		return nil, fmt.Errorf("%w: swatch image %dx%d is too small", ErrSize, b.Dx(), b.Dy())
	}
	colors := make([]Color, 0, Size)
	for x := 0; x < 16; x++ {
		for y := 0; y < 16; y++ {
			c := color.RGBAModel.Convert(img.At(b.Min.X+x*SwatchStep, b.Min.Y+y*SwatchStep)).(color.RGBA)
			colors = append(colors, Color{R: c.R, G: c.G, B: c.B})
		}
	}
	return &Palette{colors: colors}, nil
}

// Load reads a palette file. The format is chosen by extension: .pal for raw
// triples, .json for a JSON array, anything else is decoded as a swatch image.
func Load(path string) (*Palette, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pal":
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return FromPAL(raw)
	case ".json":
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return FromJSON(raw)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode palette image %s: %w", path, err)
	}
	return FromSwatchImage(img)
}

// Default returns the embedded reference palette.
func Default() *Palette {
	defaultOnce.Do(func() {
		p, err := FromPAL(defaultRaw)
		if err != nil {
			panic("embedded palette is corrupt: " + err.Error())
		}
		defaultPal = p
	})
	return defaultPal
}

// Len returns the number of entries.
func (p *Palette) Len() int {
	if p == nil {
		return 0
	}
	return len(p.colors)
}

// At returns the color at index i. It panics if i is out of range.
func (p *Palette) At(i int) Color { return p.colors[i] }

// Colors returns a copy of the entries.
func (p *Palette) Colors() []Color {
	out := make([]Color, len(p.colors))
	copy(out, p.colors)
	return out
}

// PAL encodes the palette as raw RGB triples.
func (p *Palette) PAL() []byte {
	out := make([]byte, 0, len(p.colors)*3)
	for _, c := range p.colors {
		out = append(out, c.R, c.G, c.B)
	}
	return out
}

// ColorPalette converts to the standard library palette type.
func (p *Palette) ColorPalette() color.Palette {
	out := make(color.Palette, len(p.colors))
	for i, c := range p.colors {
		out[i] = color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xff}
	}
	return out
}
