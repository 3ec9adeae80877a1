// Package quantize maps arbitrary 24-bit colors to the nearest entry of a
// palette.
package quantize

import (
	"github.com/kamrankamilli/gsdoom/pkg/palette"
)

// Quantizer is a nearest-color matcher with a memoizing cache. Cache entries
// are never invalidated since the palette is immutable; the cache grows with
// the number of distinct colors seen, bounded by 2^24.
//
// A Quantizer is not safe for concurrent use. Frames are transcoded on the
// single update loop of the render target that owns it.
type Quantizer struct {
	pal    *palette.Palette
	colors []palette.Color
	cache  map[uint32]uint8

	hits, misses uint64
}

// New returns a quantizer over p.
func New(p *palette.Palette) *Quantizer {
	q := &Quantizer{
		pal:   p,
		cache: make(map[uint32]uint8, 1024),
	}
	if p != nil {
		q.colors = p.Colors()
	}
	return q
}

// Key packs a color into its cache key.
func Key(r, g, b uint8) uint32 {
	return uint32(r)<<16 | uint32(g)<<8 | uint32(b)
}

// Palette returns the palette the quantizer matches against.
func (q *Quantizer) Palette() *palette.Palette { return q.pal }

// IndexOf returns the palette index nearest to c.
func (q *Quantizer) IndexOf(c palette.Color) uint8 {
	return q.Index(c.R, c.G, c.B)
}

// Index returns the palette index nearest to (r, g, b). An empty palette
// yields 0.
func (q *Quantizer) Index(r, g, b uint8) uint8 {
	key := Key(r, g, b)
	if idx, ok := q.cache[key]; ok {
		q.hits++
		return idx
	}
	q.misses++

	idx := q.nearest(r, g, b)
	q.cache[key] = idx
	return idx
}

func (q *Quantizer) nearest(r, g, b uint8) uint8 {
	best, bestDist := 0, -1
	for i, c := range q.colors {
		d := Distance(palette.Color{R: r, G: g, B: b}, c)
		if bestDist < 0 || d < bestDist {
			best, bestDist = i, d
		}
	}
	return uint8(best)
}

// Distance is the redmean weighted squared color distance. Red and blue are
// weighted by the mean red level of both colors, green by a fixed 4.
func Distance(a, b palette.Color) int {
	rmean := (int(a.R) + int(b.R)) / 2
	dr := int(a.R) - int(b.R)
	dg := int(a.G) - int(b.G)
	db := int(a.B) - int(b.B)
	return (((512 + rmean) * dr * dr) >> 8) + 4*dg*dg + (((767 - rmean) * db * db) >> 8)
}

// CacheStats reports cache size, hits and misses.
type CacheStats struct {
	Entries int
	Hits    uint64
	Misses  uint64
}

// Stats returns the current cache statistics.
func (q *Quantizer) Stats() CacheStats {
	return CacheStats{Entries: len(q.cache), Hits: q.hits, Misses: q.misses}
}
