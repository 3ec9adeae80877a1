// Package display owns the raster provider and leases it to one screen
// session at a time.
package display

import (
	"errors"
	"fmt"
	"sync"

	"github.com/kamrankamilli/gsdoom/pkg/display/providers"
	"github.com/kamrankamilli/gsdoom/pkg/internal/instrument"
	"github.com/kamrankamilli/gsdoom/pkg/internal/log"
	"github.com/kamrankamilli/gsdoom/pkg/session"
	"github.com/kamrankamilli/gsdoom/pkg/transcode"
)

var (
	// ErrNoProvider is returned when no raster provider is configured.
	ErrNoProvider = errors.New("display: no raster provider")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("display: closed")
	// ErrNoKeyInput is returned by SendKey when the provider takes no keys.
	ErrNoKeyInput = errors.New("display: provider does not accept keys")
	// ErrRevoked is returned when a lease lost the render target.
	ErrRevoked = errors.New("display: lease revoked")
	// ErrNoFrame is returned by ReadPixels before the first frame arrived.
	ErrNoFrame = errors.New("display: no frame yet")
)

// Display manages the shared render target.
type Display struct {
	provider providers.Display
	layout   session.Layout
	rec      instrument.Recorder

	mu      sync.Mutex
	running bool
	closed  bool
	gen     uint64
	lease   *Lease
	pixels  []byte
	hasPix  bool

	// Incoming key events
	keyEvQueue chan *KeyEvent
	// Memory of keys that are currently down.
	downKeys []string
}

// Opts represents options for building a new display.
type Opts struct {
	// DisplayProvider selects a provider by name. Provider, when set, is used
	// instead.
	DisplayProvider providers.Provider
	Provider        providers.Display
	ProviderOpts    providers.Options
	Width, Height   int
	Scale           int
	Recorder        instrument.Recorder
}

// NewDisplay returns a display for the given provider. A display without a
// provider is valid; leasing it fails with ErrNoProvider.
func NewDisplay(opts *Opts) *Display {
	p := opts.Provider
	if p == nil && opts.DisplayProvider != "" {
		p = providers.GetDisplayProvider(opts.DisplayProvider, opts.ProviderOpts)
	}
	scale := opts.Scale
	if scale < 1 {
		scale = 1
	}
	bottomUp := false
	if o, ok := p.(providers.Oriented); ok {
		bottomUp = o.BottomUp()
	}
	d := &Display{
		provider: p,
		layout: session.Layout{
			Dimensions: transcode.Dimensions{Width: opts.Width, Height: opts.Height},
			Scale:      scale,
			BottomUp:   bottomUp,
		},
		rec:        instrument.OrNoop(opts.Recorder),
		keyEvQueue: make(chan *KeyEvent, 128),
		downKeys:   make([]string, 0),
	}
	go d.handleKeyEvents()
	return d
}

// Layout returns the raster geometry of the provider.
func (d *Display) Layout() session.Layout { return d.layout }

// Provider returns the underlying provider, or nil.
func (d *Display) Provider() providers.Display { return d.provider }

// HasProvider reports whether a raster source is configured.
func (d *Display) HasProvider() bool { return d.provider != nil }

// Acquire leases the render target to owner. A previous lease is revoked:
// the newest owner wins. The provider is started on first use.
func (d *Display) Acquire(owner string) (*Lease, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, ErrClosed
	}
	if d.provider == nil {
		return nil, ErrNoProvider
	}
	if prev := d.lease; prev != nil {
		log.Infof("Render target taken over from %s by %s", prev.owner, owner)
		prev.revoke()
		d.releaseKeys()
		d.rec.IncRenderTakeovers()
	}
	if !d.running {
		if err := d.start(); err != nil {
			return nil, err
		}
	}
	l := newLease(d, owner)
	d.lease = l
	return l, nil
}

// start runs the provider and the frame loop. Caller holds mu.
func (d *Display) start() error {
	w := d.layout.Dimensions.Width * d.layout.Scale
	h := d.layout.Dimensions.Height * d.layout.Scale
	if err := d.provider.Start(w, h); err != nil {
		return fmt.Errorf("start display provider: %w", err)
	}
	d.pixels = make([]byte, transcode.RequiredBufferSize(d.layout.Dimensions, transcode.Options{Scale: d.layout.Scale}))
	d.hasPix = false
	d.gen++
	d.running = true
	go d.watchFrames(d.gen)
	return nil
}

// stop closes the provider. Caller holds mu.
func (d *Display) stop() error {
	if !d.running {
		return nil
	}
	d.running = false
	d.pixels = nil
	d.hasPix = false
	return d.provider.Close()
}

// release ends l if it still holds the target.
func (d *Display) release(l *Lease) error {
	d.mu.Lock()
	if d.lease != l {
		d.mu.Unlock()
		l.revoke()
		return nil
	}
	d.lease = nil
	l.revoke()
	d.releaseKeys()
	err := d.stop()
	d.mu.Unlock()
	return err
}

// Close revokes any lease and stops the provider.
func (d *Display) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.releaseKeys()
	d.closed = true
	if d.lease != nil {
		d.lease.revoke()
		d.lease = nil
	}
	close(d.keyEvQueue)
	if d.provider == nil {
		return nil
	}
	return d.stop()
}
