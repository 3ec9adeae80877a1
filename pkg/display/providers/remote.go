package providers

import (
	"errors"
	"fmt"
	"image"
	"sync"
)

// ErrNotStarted is returned when pushing to a remote provider that is not
// running.
var ErrNotStarted = errors.New("remote provider not started")

// KeyEvent is a key press forwarded to a remote renderer.
type KeyEvent struct {
	Key  string `json:"key"`
	Down bool   `json:"down"`
}

// Remote implements a display provider fed by an external renderer that
// pushes raw RGBA frames, e.g. over a websocket. Rows arrive bottom-up, as
// read back from a GL framebuffer.
type Remote struct {
	mu    sync.Mutex
	queue *frameQueue
	w, h  int

	keysOnce sync.Once
	keys     chan KeyEvent
}

func (r *Remote) keyQueue() chan KeyEvent {
	r.keysOnce.Do(func() { r.keys = make(chan KeyEvent, 64) })
	return r.keys
}

func (r *Remote) Start(width, height int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queue = newFrameQueue(width, height)
	r.w, r.h = width, height
	return nil
}

func (r *Remote) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.queue != nil {
		r.queue.close()
		r.queue = nil
	}
	return nil
}

func (r *Remote) PullFrame() *image.RGBA {
	r.mu.Lock()
	q := r.queue
	r.mu.Unlock()
	if q == nil {
		return nil
	}
	return q.pull()
}

// BottomUp reports that the first row of a pushed frame is the bottom row.
func (r *Remote) BottomUp() bool { return true }

// FrameSize is the number of bytes of one pushed frame.
func (r *Remote) FrameSize() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.w * r.h * 4
}

// Push hands one RGBA frame to the display.
func (r *Remote) Push(data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.queue == nil {
		return ErrNotStarted
	}
	if need := r.w * r.h * 4; len(data) != need {
		return fmt.Errorf("remote frame has %d bytes, want %d", len(data), need)
	}
	dst := r.queue.buffer()
	copy(dst.Pix, data)
	r.queue.push(dst)
	return nil
}

// SendKey queues a key event for the renderer. Events are dropped when the
// renderer does not keep up.
func (r *Remote) SendKey(key string, down bool) error {
	select {
	case r.keyQueue() <- KeyEvent{Key: key, Down: down}:
	default:
	}
	return nil
}

// Keys returns the key events waiting for the renderer.
func (r *Remote) Keys() <-chan KeyEvent { return r.keyQueue() }
