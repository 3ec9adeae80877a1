package providers

import (
	"fmt"
	"image"
	"io"
	"runtime"
	"sync"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
	"github.com/tinyzimmer/go-gst/gst/video"

	"github.com/kamrankamilli/gsdoom/pkg/config"
	"github.com/kamrankamilli/gsdoom/pkg/internal/log"
)

var gstInitOnce sync.Once

func gstInit() { gstInitOnce.Do(func() { gst.Init(nil) }) }

// Gstreamer implements a display provider using a gstreamer pipeline ending
// in an RGBA appsink.
type Gstreamer struct {
	source string
	fps    int

	pipeline *gst.Pipeline
	queue    *frameQueue
	w, h     int
}

// Close stops the gstreamer pipeline and releases resources.
func (g *Gstreamer) Close() error {
	if g.queue != nil {
		g.queue.close()
	}
	if g.pipeline == nil {
		return nil
	}
	err := g.pipeline.SetState(gst.StateNull)
	g.pipeline.Unref()
	g.pipeline = nil
	return err
}

// PullFrame returns a frame from the queue.
func (g *Gstreamer) PullFrame() *image.RGBA { return g.queue.pull() }

// Start will start the gstreamer pipeline and send images to the frame queue.
func (g *Gstreamer) Start(width, height int) error {
	gstInit()
	log.Debug("Building gstreamer pipeline")
	g.queue = newFrameQueue(width, height)
	g.w, g.h = width, height

	pipeline, err := gst.NewPipeline("")
	if err != nil {
		return err
	}

	src, err := g.sourceElement()
	if err != nil {
		return err
	}

	// Let decodebin decide best path
	decodebin, err := gst.NewElement("decodebin")
	if err != nil {
		return err
	}
	if err := pipeline.AddMany(src, decodebin); err != nil {
		return err
	}
	if err := src.Link(decodebin); err != nil {
		return fmt.Errorf("failed to link src->decodebin: %v", err)
	}

	// Build remaining pipeline once decodebin pads appear
	decodebin.Connect("pad-added", func(self *gst.Element, srcPad *gst.Pad) {
		log.Debug("Decodebin pad added, linking pipeline")
		// queue ! videorate ! videoscale ! videoconvert ! capsfilter (RGBA WxH) ! appsink
		elements, err := gst.NewElementMany("queue", "videorate", "videoscale", "videoconvert", "capsfilter", "appsink")
		if err != nil {
			logPipelineErr(err)
			return
		}
		queue, videorate, videoscale, videoconvert, capsfilter, appsink :=
			elements[0], elements[1], elements[2], elements[3], elements[4], elements[5]

		rateCaps := gst.NewCapsFromString(fmt.Sprintf("video/x-raw,framerate=%d/1", g.fps))
		scaleCaps := gst.NewCapsFromString(fmt.Sprintf("video/x-raw,width=%d,height=%d", g.w, g.h))
		rgbaCaps := gst.NewCapsFromString(fmt.Sprintf("video/x-raw,format=RGBA,width=%d,height=%d,framerate=%d/1", g.w, g.h, g.fps))

		videoInfo := video.NewInfo().
			WithFormat(video.FormatRGBA, uint(g.w), uint(g.h)).
			WithFPS(gst.Fraction(g.fps, 1))

		if err := runAllUntilError([]func() error{
			func() error { return videoscale.SetProperty("method", 0) }, // nearest neighbour
			func() error { return pipeline.AddMany(elements...) },
			func() error {
				if err := queue.Link(videorate); err != nil {
					return fmt.Errorf("link queue->videorate failed: %w", err)
				}
				return nil
			},
			func() error {
				if err := videorate.LinkFiltered(videoscale, rateCaps); err != nil {
					return fmt.Errorf("link videorate->videoscale failed: %w", err)
				}
				return nil
			},
			func() error {
				if err := videoscale.LinkFiltered(videoconvert, scaleCaps); err != nil {
					return fmt.Errorf("link videoscale->videoconvert failed: %w", err)
				}
				return nil
			},
			func() error { return capsfilter.SetProperty("caps", rgbaCaps) },
			func() error {
				if err := videoconvert.Link(capsfilter); err != nil {
					return fmt.Errorf("link videoconvert->capsfilter failed: %w", err)
				}
				return nil
			},
			func() error {
				if err := capsfilter.Link(appsink); err != nil {
					return fmt.Errorf("link capsfilter->appsink failed: %w", err)
				}
				return nil
			},
			func() error {
				sink := app.SinkFromElement(appsink)
				if sink == nil {
					return fmt.Errorf("appsink type assertion failed")
				}
				sink.SetCaps(videoInfo.ToCaps())
				sink.SetMaxBuffers(2)
				sink.SetDrop(true)
				sink.SetCallbacks(&app.SinkCallbacks{NewSampleFunc: g.onSample})
				return nil
			},
		}); err != nil {
			logPipelineErr(err)
			return
		}

		for _, e := range elements {
			if ok := e.SyncStateWithParent(); !ok {
				logPipelineErr(fmt.Errorf("could not sync element: %s", e.GetName()))
				return
			}
		}
		if ret := srcPad.Link(queue.GetStaticPad("sink")); ret != gst.PadLinkOK {
			log.Error("Could not link src pad to pipeline")
		}
	})

	if config.Debug {
		bus := pipeline.GetPipelineBus()
		go func() {
			for {
				msg := bus.TimedPop(time.Duration(-1))
				if msg == nil {
					return
				}
				log.Debug(msg)
				msg.Unref()
			}
		}()
	}

	g.pipeline = pipeline
	return pipeline.SetState(gst.StatePlaying)
}

// onSample copies one tightly packed RGBA sample into a work buffer.
func (g *Gstreamer) onSample(self *app.Sink) gst.FlowReturn {
	sample := self.PullSample()
	if sample == nil {
		return gst.FlowOK
	}
	defer sample.Unref()

	r := sample.GetBuffer().Reader()
	if r == nil {
		return gst.FlowOK
	}

	dst := g.queue.buffer()
	need := g.w * g.h * 4
	if _, err := io.ReadFull(r, dst.Pix[:need]); err != nil {
		logPipelineErr(fmt.Errorf("read RGBA bytes failed: %w", err))
		return gst.FlowError
	}
	g.queue.push(dst)
	return gst.FlowOK
}

func (g *Gstreamer) sourceElement() (*gst.Element, error) {
	if g.source == "" {
		return getScreenCaptureElement()
	}
	log.Debugf("Using gstreamer source %s", g.source)
	return gst.NewElement(g.source)
}

func getScreenCaptureElement() (elem *gst.Element, err error) {
	switch runtime.GOOS {
	case "windows":
		log.Debug("Detected Windows, using gdiscreencapsrc")
		elem, err = gst.NewElement("gdiscreencapsrc")
		if err != nil {
			return
		}
		err = elem.SetProperty("cursor", false)

	case "darwin":
		log.Debug("Detected macOS, using avfvideosrc")
		elem, err = gst.NewElement("avfvideosrc")
		if err != nil {
			return
		}
		err = elem.SetProperty("capture-screen", true)

	default:
		log.Debug("Detected Linux, using ximagesrc")
		elem, err = gst.NewElement("ximagesrc")
		if err != nil {
			return
		}
		if err = elem.SetProperty("show-pointer", false); err != nil {
			return
		}
		err = elem.SetProperty("use-damage", false)
	}
	return
}

func runAllUntilError(fs []func() error) error {
	for _, f := range fs {
		if err := f(); err != nil {
			return err
		}
	}
	return nil
}

func logPipelineErr(err error) {
	log.Error("[go-gst-error] ", err.Error())
}
