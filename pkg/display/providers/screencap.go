package providers

import (
	"image"
	"image/draw"
	"time"

	"github.com/go-vgo/robotgo"
	"github.com/nfnt/resize"

	"github.com/kamrankamilli/gsdoom/pkg/internal/log"
)

// ScreenCapture implements a display provider that periodically captures the
// desktop and forwards key presses to it.
type ScreenCapture struct {
	fps   int
	queue *frameQueue
}

func (s *ScreenCapture) Close() error {
	if s.queue != nil {
		s.queue.close()
	}
	return nil
}

func (s *ScreenCapture) PullFrame() *image.RGBA { return s.queue.pull() }

// SendKey presses or releases a key on the local desktop.
func (s *ScreenCapture) SendKey(key string, down bool) error {
	state := "up"
	if down {
		state = "down"
	}
	return robotgo.KeyToggle(key, state)
}

func (s *ScreenCapture) Start(width, height int) error {
	s.queue = newFrameQueue(width, height)
	q := s.queue

	go func() {
		ticker := time.NewTicker(time.Second / time.Duration(s.fps))
		defer ticker.Stop()

		for {
			select {
			case <-q.stop:
				log.Debug("Stopping screen capture")
				return
			case <-ticker.C:
				bitMap := robotgo.CaptureScreen()
				if bitMap == nil {
					log.Error("CaptureScreen returned nil bitmap")
					continue
				}

				// Convert to Go image and free native bitmap ASAP (no defer in loop)
				img := robotgo.ToImage(bitMap)
				robotgo.FreeBitmap(bitMap)

				if img == nil {
					log.Error("robotgo.ToImage returned nil image")
					continue
				}

				b := img.Bounds()
				if b.Dx() != width || b.Dy() != height {
					img = resize.Resize(uint(width), uint(height), img, resize.NearestNeighbor)
				}

				dst := q.buffer()
				draw.Draw(dst, dst.Bounds(), img, img.Bounds().Min, draw.Src)
				q.push(dst)
			}
		}
	}()
	return nil
}
