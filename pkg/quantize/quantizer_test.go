package quantize

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kamrankamilli/gsdoom/pkg/palette"
)

func blackWhite(t *testing.T) *palette.Palette {
	t.Helper()
	p, err := palette.New([]palette.Color{{R: 0, G: 0, B: 0}, {R: 255, G: 255, B: 255}})
	require.NoError(t, err)
	return p
}

func TestIndex_ExactMatches(t *testing.T) {
	q := New(palette.Default())
	p := palette.Default()
	for i := 0; i < p.Len(); i++ {
		c := p.At(i)
		got := q.IndexOf(c)
		// duplicate colors resolve to their first occurrence
		assert.Equal(t, c, p.At(int(got)), "index %d", i)
		assert.LessOrEqual(t, int(got), i)
	}
}

func TestIndex_Nearest(t *testing.T) {
	q := New(blackWhite(t))

	assert.Equal(t, uint8(0), q.Index(10, 10, 10))
	assert.Equal(t, uint8(1), q.Index(250, 240, 200))
	assert.Equal(t, uint8(0), q.Index(0, 200, 0))
}

func TestIndex_TieKeepsLowestIndex(t *testing.T) {
	p, err := palette.New([]palette.Color{{R: 10, G: 10, B: 10}, {R: 10, G: 10, B: 10}, {R: 30, G: 30, B: 30}})
	require.NoError(t, err)
	q := New(p)
	assert.Equal(t, uint8(0), q.Index(10, 10, 10))
	assert.Equal(t, uint8(0), q.Index(12, 12, 12))
}

func TestIndex_Deterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	q := New(palette.Default())
	fresh := New(palette.Default())

	for i := 0; i < 2000; i++ {
		r, g, b := uint8(rng.Intn(256)), uint8(rng.Intn(256)), uint8(rng.Intn(256))
		first := q.Index(r, g, b)

		// unrelated cache population
		q.Index(uint8(rng.Intn(256)), uint8(rng.Intn(256)), uint8(rng.Intn(256)))

		assert.Equal(t, first, q.Index(r, g, b))
		assert.Equal(t, first, fresh.Index(r, g, b), "cached and uncached answers differ")
		assert.Less(t, int(first), palette.Size)
	}
}

func TestIndex_CacheIsAdditive(t *testing.T) {
	q := New(blackWhite(t))

	q.Index(1, 2, 3)
	q.Index(1, 2, 3)
	q.Index(200, 200, 200)

	s := q.Stats()
	assert.Equal(t, 2, s.Entries)
	assert.Equal(t, uint64(1), s.Hits)
	assert.Equal(t, uint64(2), s.Misses)
}

func TestIndex_EmptyPalette(t *testing.T) {
	q := New(nil)
	assert.Equal(t, uint8(0), q.Index(12, 34, 56))
}

func TestDistance(t *testing.T) {
	a := palette.Color{R: 100, G: 50, B: 200}
	b := palette.Color{R: 20, G: 70, B: 10}

	assert.Zero(t, Distance(a, a))
	assert.Equal(t, Distance(a, b), Distance(b, a), "metric must be symmetric")
	assert.Greater(t, Distance(a, b), 0)

	// negative deltas are squared as signed values
	dark := palette.Color{}
	light := palette.Color{R: 255, G: 255, B: 255}
	assert.Equal(t, Distance(dark, light), Distance(light, dark))

	// equal channel deltas: green weighs more than red at low red levels
	base := palette.Color{R: 0, G: 0, B: 0}
	assert.Greater(t,
		Distance(base, palette.Color{G: 10}),
		Distance(base, palette.Color{R: 10}))
}

func TestKey_Bijective(t *testing.T) {
	assert.NotEqual(t, Key(1, 0, 0), Key(0, 1, 0))
	assert.NotEqual(t, Key(0, 1, 0), Key(0, 0, 1))
	assert.Equal(t, uint32(0xffffff), Key(255, 255, 255))
}
