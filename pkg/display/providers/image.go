package providers

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/nfnt/resize"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/kamrankamilli/gsdoom/pkg/internal/log"
)

// reloadDelay coalesces the bursts of events an editor save produces.
const reloadDelay = 100 * time.Millisecond

// Image implements a display provider showing a still image file. A frame is
// emitted on start and whenever the file changes on disk.
type Image struct {
	path string

	queue   *frameQueue
	watcher *fsnotify.Watcher
	w, h    int

	mu    sync.Mutex
	timer *time.Timer
}

// Close stops watching the file.
func (i *Image) Close() error {
	if i.queue != nil {
		i.queue.close()
	}
	i.mu.Lock()
	if i.timer != nil {
		i.timer.Stop()
	}
	i.mu.Unlock()
	if i.watcher == nil {
		return nil
	}
	err := i.watcher.Close()
	i.watcher = nil
	return err
}

func (i *Image) PullFrame() *image.RGBA { return i.queue.pull() }

func (i *Image) Start(width, height int) error {
	if i.path == "" {
		return errors.New("image provider needs a path")
	}
	i.queue = newFrameQueue(width, height)
	i.w, i.h = width, height

	if err := i.reload(); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify: %w", err)
	}
	// watch the directory, editors replace files instead of writing them
	if err := watcher.Add(filepath.Dir(i.path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch %s: %w", i.path, err)
	}
	i.watcher = watcher
	go i.watch(watcher)
	return nil
}

func (i *Image) watch(w *fsnotify.Watcher) {
	target := filepath.Clean(i.path)
	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			log.Debugf("Image %s changed (%s)", ev.Name, ev.Op)
			i.scheduleReload()
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			log.Warningf("Image watcher error: %v", err)
		}
	}
}

func (i *Image) scheduleReload() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.timer != nil {
		i.timer.Stop()
	}
	i.timer = time.AfterFunc(reloadDelay, func() {
		if err := i.reload(); err != nil {
			log.Warningf("Reloading image: %v", err)
		}
	})
}

func (i *Image) reload() error {
	img, err := decodeScaled(i.path, i.w, i.h)
	if err != nil {
		return err
	}
	dst := i.queue.buffer()
	draw.Draw(dst, dst.Bounds(), img, img.Bounds().Min, draw.Src)
	i.queue.push(dst)
	return nil
}

func decodeScaled(path string, width, height int) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if b := img.Bounds(); b.Dx() != width || b.Dy() != height {
		img = resize.Resize(uint(width), uint(height), img, resize.NearestNeighbor)
	}
	return img, nil
}

// LoadImage decodes the image file at path and scales it to width×height.
func LoadImage(path string, width, height int) (*image.RGBA, error) {
	img, err := decodeScaled(path, width, height)
	if err != nil {
		return nil, err
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), img, img.Bounds().Min, draw.Src)
	return dst, nil
}
