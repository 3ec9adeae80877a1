package session

import (
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kamrankamilli/gsdoom/pkg/frame"
	"github.com/kamrankamilli/gsdoom/pkg/internal/instrument"
	"github.com/kamrankamilli/gsdoom/pkg/palette"
	"github.com/kamrankamilli/gsdoom/pkg/quantize"
	"github.com/kamrankamilli/gsdoom/pkg/transcode"
)

type fakeTarget struct {
	layout    Layout
	pixels    []byte
	onUpdate  func()
	calls     []string
	attachErr error
	exitErr   error
}

func (f *fakeTarget) Layout() Layout { return f.layout }

func (f *fakeTarget) Attach(fn func()) error {
	f.calls = append(f.calls, "attach")
	if f.attachErr != nil {
		return f.attachErr
	}
	f.onUpdate = fn
	return nil
}

func (f *fakeTarget) ReadPixels(dst []byte) error {
	copy(dst, f.pixels)
	return nil
}

func (f *fakeTarget) Detach() {
	f.calls = append(f.calls, "detach")
	f.onUpdate = nil
}

func (f *fakeTarget) Exit() error {
	f.calls = append(f.calls, "exit")
	return f.exitErr
}

func (f *fakeTarget) tick() {
	if f.onUpdate != nil {
		f.onUpdate()
	}
}

// topWhite2x2 is a 2×2 raster whose first buffer row is white.
func topWhite2x2(bottomUp bool) *fakeTarget {
	px := []byte{
		255, 255, 255, 255, 255, 255, 255, 255,
		0, 0, 0, 255, 0, 0, 0, 255,
	}
	return &fakeTarget{
		layout: Layout{Dimensions: transcode.Dimensions{Width: 2, Height: 2}, Scale: 1, BottomUp: bottomUp},
		pixels: px,
	}
}

func blackWhite(t *testing.T) *quantize.Quantizer {
	t.Helper()
	p, err := palette.New([]palette.Color{{}, {R: 255, G: 255, B: 255}})
	require.NoError(t, err)
	return quantize.New(p)
}

type collector struct{ screens []*frame.Screen }

func (c *collector) sink(s *frame.Screen) { c.screens = append(c.screens, s) }

func TestSession_Timing(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(t0.Add(10 * time.Second))
	target := topWhite2x2(true)
	s := New(target, blackWhite(t), Options{RefID: "A", Clock: clock})

	var c collector
	require.NoError(t, s.Start(TimeRange{From: t0, To: t0.Add(2 * time.Second)}, c.sink))
	assert.Equal(t, StateActive, s.State())

	clock.Advance(time.Second)
	target.tick()

	require.Len(t, c.screens, 1)
	sc := c.screens[0]
	assert.Equal(t, "A", sc.RefID)
	// offset = 10s - 2s; start = 11s - 8s - 2s
	assert.Equal(t, []time.Time{t0.Add(time.Second), t0.Add(2 * time.Second)}, sc.Time)
	assert.Equal(t, []int16{1, 1}, sc.Values[0])
	assert.Equal(t, []int16{0, 0}, sc.Values[1])
	assert.Equal(t, uint64(1), s.Frames())
}

type cacheRecorder struct {
	instrument.NoopRecorder
	entries      int
	hits, misses uint64
}

func (r *cacheRecorder) SetColorCache(entries int, hits, misses uint64) {
	r.entries, r.hits, r.misses = entries, hits, misses
}

func TestSession_ReportsColorCache(t *testing.T) {
	clock := clockwork.NewFakeClock()
	target := topWhite2x2(true)
	rec := &cacheRecorder{}
	s := New(target, blackWhite(t), Options{Clock: clock, Recorder: rec})

	var c collector
	now := clock.Now()
	require.NoError(t, s.Start(TimeRange{From: now.Add(-time.Second), To: now}, c.sink))

	target.tick()
	assert.Equal(t, 2, rec.entries)
	assert.Equal(t, uint64(2), rec.hits)
	assert.Equal(t, uint64(2), rec.misses)

	target.tick()
	assert.Equal(t, 2, rec.entries)
	assert.Equal(t, uint64(6), rec.hits)
	assert.Equal(t, uint64(2), rec.misses)
}

func TestSession_TopDownTargetIsFlipped(t *testing.T) {
	clock := clockwork.NewFakeClock()
	target := topWhite2x2(false)
	s := New(target, blackWhite(t), Options{Clock: clock})

	var c collector
	now := clock.Now()
	require.NoError(t, s.Start(TimeRange{From: now.Add(-time.Second), To: now}, c.sink))
	target.tick()

	require.Len(t, c.screens, 1)
	assert.Equal(t, []int16{0, 0}, c.screens[0].Values[0])
	assert.Equal(t, []int16{1, 1}, c.screens[0].Values[1])
}

func TestSession_HalfResolutionAndOmitEmpty(t *testing.T) {
	clock := clockwork.NewFakeClock()
	target := topWhite2x2(true)
	s := New(target, blackWhite(t), Options{Clock: clock, HalfResolution: true, OmitEmpty: true})

	var c collector
	now := clock.Now()
	require.NoError(t, s.Start(TimeRange{From: now.Add(-2 * time.Second), To: now}, c.sink))
	target.tick()

	require.Len(t, c.screens, 1)
	sc := c.screens[0]
	assert.Equal(t, 1, sc.Len())
	assert.Equal(t, []int{1}, sc.Used())
}

func TestSession_CloseOrderAndIdempotence(t *testing.T) {
	clock := clockwork.NewFakeClock()
	target := topWhite2x2(true)
	target.exitErr = errors.New("boom")
	s := New(target, blackWhite(t), Options{Clock: clock})

	var c collector
	now := clock.Now()
	require.NoError(t, s.Start(TimeRange{From: now.Add(-time.Second), To: now}, c.sink))

	onUpdate := target.onUpdate
	s.Close()
	s.Close()

	assert.Equal(t, []string{"attach", "detach", "exit"}, target.calls)
	assert.Equal(t, StateClosed, s.State())
	assert.Nil(t, s.scratch)

	// a tick racing with close emits nothing
	onUpdate()
	assert.Empty(t, c.screens)

	assert.ErrorIs(t, s.Start(TimeRange{From: now.Add(-time.Second), To: now}, c.sink), ErrClosed)
}

func TestSession_CloseIdle(t *testing.T) {
	target := topWhite2x2(true)
	s := New(target, blackWhite(t), Options{})
	s.Close()
	assert.Equal(t, []string{"exit"}, target.calls)
}

func TestSession_StartErrors(t *testing.T) {
	clock := clockwork.NewFakeClock()
	now := clock.Now()
	rng := TimeRange{From: now.Add(-time.Second), To: now}

	s := New(topWhite2x2(true), blackWhite(t), Options{Clock: clock})
	assert.ErrorIs(t, s.Start(TimeRange{From: now, To: now}, func(*frame.Screen) {}), ErrEmptyRange)
	require.NoError(t, s.Start(rng, func(*frame.Screen) {}))
	assert.ErrorIs(t, s.Start(rng, func(*frame.Screen) {}), ErrStarted)

	target := topWhite2x2(true)
	target.attachErr = errors.New("busy")
	s = New(target, blackWhite(t), Options{Clock: clock})
	assert.Error(t, s.Start(rng, func(*frame.Screen) {}))
	assert.Equal(t, StateClosed, s.State())
	assert.Contains(t, target.calls, "exit")
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "active", StateActive.String())
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "State(9)", State(9).String())
}
