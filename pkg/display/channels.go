package display

import (
	"image"

	"github.com/kamrankamilli/gsdoom/pkg/display/providers"
	"github.com/kamrankamilli/gsdoom/pkg/internal/log"
)

// KeyEvent is a key press or release queued for the provider.
type KeyEvent struct {
	Key  string
	Down bool

	// releaseAll lifts every key that is still down.
	releaseAll bool
}

func (e *KeyEvent) IsDown() bool { return e.Down }

// SendKey queues a key event for the provider.
func (d *Display) SendKey(key string, down bool) error {
	if _, ok := d.provider.(providers.KeyInput); !ok {
		return ErrNoKeyInput
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	d.keyEvQueue <- &KeyEvent{Key: key, Down: down}
	return nil
}

// releaseKeys queues a release of all held keys. Caller holds mu.
func (d *Display) releaseKeys() {
	if _, ok := d.provider.(providers.KeyInput); !ok || d.closed {
		return
	}
	d.keyEvQueue <- &KeyEvent{releaseAll: true}
}

func (d *Display) handleKeyEvents() {
	for ev := range d.keyEvQueue {
		log.Debug("Got key event: ", ev)
		switch {
		case ev.releaseAll:
			keys := d.downKeys
			d.downKeys = d.downKeys[:0:0]
			for _, k := range keys {
				d.dispatchKey(k, false)
			}
		case ev.IsDown():
			d.appendDownKeyIfMissing(ev.Key)
			d.dispatchKey(ev.Key, true)
		default:
			d.removeDownKey(ev.Key)
			d.dispatchKey(ev.Key, false)
		}
	}
}

func (d *Display) appendDownKeyIfMissing(key string) {
	for _, k := range d.downKeys {
		if k == key {
			return
		}
	}
	d.downKeys = append(d.downKeys, key)
}

func (d *Display) removeDownKey(key string) {
	for i, k := range d.downKeys {
		if k == key {
			d.downKeys = append(d.downKeys[:i], d.downKeys[i+1:]...)
			return
		}
	}
}

func (d *Display) dispatchKey(key string, down bool) {
	ki, ok := d.provider.(providers.KeyInput)
	if !ok {
		return
	}
	if err := ki.SendKey(key, down); err != nil {
		log.Warningf("Failed to send key %q (down=%t): %v", key, down, err)
	}
}

// watchFrames copies every provider frame into the pixel buffer and runs the
// hook of the current lease. It returns when the provider stops or a newer
// generation started.
func (d *Display) watchFrames(gen uint64) {
	p := d.provider
	for {
		img := p.PullFrame()
		if img == nil {
			log.Debug("Display provider closed, frame loop exiting")
			return
		}

		d.mu.Lock()
		if !d.running || d.gen != gen {
			d.mu.Unlock()
			return
		}
		if !copyFrame(d.pixels, img) {
			d.mu.Unlock()
			log.Debugf("Dropping frame of size %v", img.Rect.Size())
			continue
		}
		d.hasPix = true
		l := d.lease
		d.mu.Unlock()

		d.rec.IncSourceFrames()
		if l != nil {
			l.fire()
		}
	}
}

// copyFrame copies the rows of img into dst. It reports false when the frame
// size does not match dst.
func copyFrame(dst []byte, img *image.RGBA) bool {
	b := img.Rect
	row := b.Dx() * 4
	if row == 0 || b.Dy()*row != len(dst) {
		return false
	}
	if img.Stride == row && b.Min == (image.Point{}) {
		copy(dst, img.Pix[:len(dst)])
		return true
	}
	for y := 0; y < b.Dy(); y++ {
		off := img.PixOffset(b.Min.X, b.Min.Y+y)
		copy(dst[y*row:(y+1)*row], img.Pix[off:off+row])
	}
	return true
}
