package providers

import (
	"image"
	"sync"
)

// A Display is an interface that can be implemented by different types of frame sources.
type Display interface {
	// Start begins producing width×height RGBA frames.
	Start(width, height int) error
	// PullFrame blocks until a frame is available. It returns nil once the
	// provider is closed. The frame is only valid until the next call.
	PullFrame() *image.RGBA
	Close() error
}

// Oriented is implemented by providers whose first pixel row is the bottom
// of the scene. Providers without it are top-down.
type Oriented interface {
	BottomUp() bool
}

// KeyInput is implemented by providers that accept key presses.
type KeyInput interface {
	SendKey(key string, down bool) error
}

// Provider is an enum used for selecting a display provider.
type Provider string

const (
	ProviderGstreamer     Provider = "gstreamer"
	ProviderScreenCapture Provider = "screencap"
	ProviderImage         Provider = "image"
	ProviderRemote        Provider = "remote"
)

// Options tune the providers. Unused fields are ignored.
type Options struct {
	// FPS is the capture rate of polling providers.
	FPS int
	// Source is the gstreamer source element. Empty picks the screen capture
	// element of the current OS.
	Source string
	// ImagePath is the file shown by the image provider.
	ImagePath string
}

func (o Options) fps() int {
	if o.FPS <= 0 {
		return 5
	}
	return o.FPS
}

// GetDisplayProvider returns the provider with the given name, or nil.
func GetDisplayProvider(p Provider, opts Options) Display {
	switch p {
	case ProviderGstreamer:
		return &Gstreamer{source: opts.Source, fps: opts.fps()}
	case ProviderScreenCapture:
		return &ScreenCapture{fps: opts.fps()}
	case ProviderImage:
		return &Image{path: opts.ImagePath}
	case ProviderRemote:
		return &Remote{}
	default:
		return nil
	}
}

// frameQueue is a latest-only handoff between a producer and PullFrame. It
// owns the frame buffers: producers fill one from buffer, and a pulled frame
// stays with the consumer until its next pull.
type frameQueue struct {
	ch       chan *image.RGBA
	free     chan *image.RGBA
	rect     image.Rectangle
	held     *image.RGBA
	stop     chan struct{}
	stopOnce sync.Once
}

// frameBuffers is one frame being written, one queued and one being read.
const frameBuffers = 3

func newFrameQueue(width, height int) *frameQueue {
	q := &frameQueue{
		ch:   make(chan *image.RGBA, 1),
		free: make(chan *image.RGBA, frameBuffers),
		rect: image.Rect(0, 0, width, height),
		stop: make(chan struct{}),
	}
	for i := 0; i < frameBuffers; i++ {
		q.free <- image.NewRGBA(q.rect)
	}
	return q
}

// buffer returns a frame the caller may write until it pushes it.
func (q *frameQueue) buffer() *image.RGBA {
	select {
	case img := <-q.free:
		return img
	default:
		return image.NewRGBA(q.rect)
	}
}

func (q *frameQueue) recycle(img *image.RGBA) {
	if img == nil || img.Rect != q.rect {
		return
	}
	select {
	case q.free <- img:
	default:
	}
}

// push enqueues img, replacing a frame nobody pulled yet.
func (q *frameQueue) push(img *image.RGBA) {
	select {
	case <-q.stop:
		q.recycle(img)
		return
	default:
	}
	select {
	case q.ch <- img:
	default:
		select {
		case old := <-q.ch:
			q.recycle(old)
		default:
		}
		select {
		case q.ch <- img:
		default:
			// still full; drop
			q.recycle(img)
		}
	}
}

// pull hands the previously pulled frame back to the producers and waits for
// the next one. It must not be called concurrently.
func (q *frameQueue) pull() *image.RGBA {
	q.recycle(q.held)
	q.held = nil
	select {
	case img := <-q.ch:
		q.held = img
		return img
	case <-q.stop:
		return nil
	}
}

func (q *frameQueue) close() { q.stopOnce.Do(func() { close(q.stop) }) }
