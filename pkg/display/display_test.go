package display

import (
	"image"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kamrankamilli/gsdoom/pkg/display/providers"
	"github.com/kamrankamilli/gsdoom/pkg/frame"
	"github.com/kamrankamilli/gsdoom/pkg/palette"
	"github.com/kamrankamilli/gsdoom/pkg/quantize"
	"github.com/kamrankamilli/gsdoom/pkg/session"
)

type fakeProvider struct {
	mu     sync.Mutex
	starts int
	closes int
	w, h   int
	frames chan *image.RGBA
	keys   []providers.KeyEvent
}

func (f *fakeProvider) Start(w, h int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	f.w, f.h = w, h
	f.frames = make(chan *image.RGBA, 8)
	return nil
}

func (f *fakeProvider) PullFrame() *image.RGBA {
	f.mu.Lock()
	ch := f.frames
	f.mu.Unlock()
	img, ok := <-ch
	if !ok {
		return nil
	}
	return img
}

func (f *fakeProvider) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	close(f.frames)
	return nil
}

func (f *fakeProvider) SendKey(key string, down bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, providers.KeyEvent{Key: key, Down: down})
	return nil
}

func (f *fakeProvider) push(img *image.RGBA) {
	f.mu.Lock()
	ch := f.frames
	f.mu.Unlock()
	ch <- img
}

func (f *fakeProvider) counts() (starts, closes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts, f.closes
}

func (f *fakeProvider) keyEvents() []providers.KeyEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]providers.KeyEvent(nil), f.keys...)
}

// whiteTop returns a 2×2 frame whose top row is white.
func whiteTop() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	copy(img.Pix, []byte{
		255, 255, 255, 255, 255, 255, 255, 255,
		0, 0, 0, 255, 0, 0, 0, 255,
	})
	return img
}

func newTestDisplay(p providers.Display) *Display {
	return NewDisplay(&Opts{Provider: p, Width: 2, Height: 2, Scale: 1})
}

func TestAcquireWithoutProvider(t *testing.T) {
	d := NewDisplay(&Opts{Width: 2, Height: 2})
	defer d.Close()

	assert.False(t, d.HasProvider())
	_, err := d.Acquire("a")
	assert.ErrorIs(t, err, ErrNoProvider)
	assert.ErrorIs(t, d.SendKey("up", true), ErrNoKeyInput)
}

func TestAcquireStartsProviderLazily(t *testing.T) {
	p := &fakeProvider{}
	d := NewDisplay(&Opts{Provider: p, Width: 2, Height: 2, Scale: 3})
	defer d.Close()

	starts, _ := p.counts()
	assert.Equal(t, 0, starts)

	l, err := d.Acquire("a")
	require.NoError(t, err)
	assert.Equal(t, "a", l.Owner())
	starts, _ = p.counts()
	assert.Equal(t, 1, starts)
	assert.Equal(t, 6, p.w)
	assert.Equal(t, 6, p.h)
	assert.False(t, d.Layout().BottomUp)
}

func TestReadPixelsAfterFrame(t *testing.T) {
	p := &fakeProvider{}
	d := newTestDisplay(p)
	defer d.Close()

	l, err := d.Acquire("a")
	require.NoError(t, err)

	buf := make([]byte, 16)
	assert.ErrorIs(t, l.ReadPixels(buf), ErrNoFrame)

	updates := make(chan struct{}, 1)
	require.NoError(t, l.Attach(func() { updates <- struct{}{} }))
	p.push(whiteTop())

	select {
	case <-updates:
	case <-time.After(time.Second):
		t.Fatal("update hook not called")
	}
	require.NoError(t, l.ReadPixels(buf))
	assert.Equal(t, whiteTop().Pix, buf)
	assert.Error(t, l.ReadPixels(make([]byte, 4)))
}

func TestRemoteFramesAreNotTorn(t *testing.T) {
	remote := &providers.Remote{}
	d := NewDisplay(&Opts{Provider: remote, Width: 16, Height: 16})
	defer d.Close()

	l, err := d.Acquire("a")
	require.NoError(t, err)

	var (
		mu    sync.Mutex
		seen  int
		torn  int
		pixel = make([]byte, 16*16*4)
	)
	require.NoError(t, l.Attach(func() {
		mu.Lock()
		defer mu.Unlock()
		if l.ReadPixels(pixel) != nil {
			return
		}
		seen++
		for _, b := range pixel {
			if b != pixel[0] {
				torn++
				return
			}
		}
	}))

	px := make([]byte, remote.FrameSize())
	for i := 0; i < 3000; i++ {
		for j := range px {
			px[j] = byte(i)
		}
		require.NoError(t, remote.Push(px))
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return seen > 0
	}, time.Second, 5*time.Millisecond)
	l.Detach()
	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, torn)
}

func TestNewestOwnerWins(t *testing.T) {
	p := &fakeProvider{}
	d := newTestDisplay(p)
	defer d.Close()

	first, err := d.Acquire("first")
	require.NoError(t, err)
	second, err := d.Acquire("second")
	require.NoError(t, err)

	select {
	case <-first.Revoked():
	default:
		t.Fatal("first lease should be revoked")
	}
	assert.ErrorIs(t, first.Attach(func() {}), ErrRevoked)
	assert.ErrorIs(t, first.ReadPixels(make([]byte, 16)), ErrRevoked)

	// Exiting a revoked lease leaves the provider to the new owner.
	require.NoError(t, first.Exit())
	starts, closes := p.counts()
	assert.Equal(t, 1, starts)
	assert.Equal(t, 0, closes)

	require.NoError(t, second.Exit())
	_, closes = p.counts()
	assert.Equal(t, 1, closes)

	// The next owner restarts the provider.
	third, err := d.Acquire("third")
	require.NoError(t, err)
	starts, _ = p.counts()
	assert.Equal(t, 2, starts)
	require.NoError(t, third.Exit())
}

func TestKeysReleasedOnExit(t *testing.T) {
	p := &fakeProvider{}
	d := newTestDisplay(p)
	defer d.Close()

	l, err := d.Acquire("a")
	require.NoError(t, err)
	require.NoError(t, l.SendKey("up", true))
	require.NoError(t, l.SendKey("up", true))
	require.NoError(t, l.SendKey("ctrl", true))
	require.NoError(t, l.SendKey("ctrl", false))
	require.NoError(t, l.Exit())

	assert.ErrorIs(t, l.SendKey("up", true), ErrRevoked)
	require.Eventually(t, func() bool { return len(p.keyEvents()) == 5 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []providers.KeyEvent{
		{Key: "up", Down: true},
		{Key: "up", Down: true},
		{Key: "ctrl", Down: true},
		{Key: "ctrl", Down: false},
		{Key: "up", Down: false},
	}, p.keyEvents())
}

func TestCloseRevokes(t *testing.T) {
	p := &fakeProvider{}
	d := newTestDisplay(p)

	l, err := d.Acquire("a")
	require.NoError(t, err)
	require.NoError(t, d.Close())
	require.NoError(t, d.Close())

	<-l.Revoked()
	_, closes := p.counts()
	assert.Equal(t, 1, closes)

	_, err = d.Acquire("b")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, d.SendKey("up", true), ErrClosed)
}

func TestRemoteLayoutIsBottomUp(t *testing.T) {
	d := NewDisplay(&Opts{DisplayProvider: providers.ProviderRemote, Width: 2, Height: 2})
	defer d.Close()
	assert.True(t, d.Layout().BottomUp)
}

func TestSessionOverLease(t *testing.T) {
	p := &fakeProvider{}
	d := newTestDisplay(p)
	defer d.Close()

	l, err := d.Acquire("query")
	require.NoError(t, err)

	pal, err := palette.New([]palette.Color{{}, {R: 255, G: 255, B: 255}})
	require.NoError(t, err)
	s := session.New(l, quantize.New(pal), session.Options{RefID: "A"})

	screens := make(chan *frame.Screen, 4)
	now := time.Now()
	require.NoError(t, s.Start(session.TimeRange{From: now.Add(-time.Second), To: now}, func(sc *frame.Screen) {
		screens <- sc
	}))
	p.push(whiteTop())

	var sc *frame.Screen
	select {
	case sc = <-screens:
	case <-time.After(time.Second):
		t.Fatal("no screen produced")
	}
	// The provider is top-down, so the white top row lands at y=1.
	assert.Equal(t, []int16{0, 0}, sc.Values[0])
	assert.Equal(t, []int16{1, 1}, sc.Values[1])
	assert.Equal(t, "A", sc.RefID)

	s.Close()
	_, closes := p.counts()
	assert.Equal(t, 1, closes)
}
