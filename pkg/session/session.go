// Package session bridges a render target's update loop into the transcoder
// for one screen subscription.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/kamrankamilli/gsdoom/pkg/frame"
	"github.com/kamrankamilli/gsdoom/pkg/internal/instrument"
	"github.com/kamrankamilli/gsdoom/pkg/internal/log"
	"github.com/kamrankamilli/gsdoom/pkg/quantize"
	"github.com/kamrankamilli/gsdoom/pkg/transcode"
)

var (
	// ErrClosed is returned when starting a session that was closed.
	ErrClosed = errors.New("session: closed")
	// ErrStarted is returned when starting a session twice.
	ErrStarted = errors.New("session: already started")
	// ErrEmptyRange is returned for a time range that does not advance.
	ErrEmptyRange = errors.New("session: empty time range")
)

// State of a session.
type State int

const (
	StateIdle State = iota
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Layout describes the raster a render target produces.
type Layout struct {
	Dimensions transcode.Dimensions
	Scale      int
	// BottomUp is set when the first buffer row is the bottom of the scene.
	BottomUp bool
}

// RenderTarget is the raster source a session reads from.
type RenderTarget interface {
	// Layout returns the raster geometry.
	Layout() Layout
	// Attach installs onUpdate, called once per rendered frame.
	Attach(onUpdate func()) error
	// ReadPixels copies the current frame into dst.
	ReadPixels(dst []byte) error
	// Detach removes the update hook. After it returns onUpdate is not called.
	Detach()
	// Exit asks the target to release the underlying raster.
	Exit() error
}

// TimeRange is the window a query asks for.
type TimeRange struct {
	From, To time.Time
}

// Duration of the range.
func (r TimeRange) Duration() time.Duration { return r.To.Sub(r.From) }

// Sink receives encoded screens.
type Sink func(*frame.Screen)

// Options configure a session.
type Options struct {
	RefID string
	// HalfResolution samples every other pixel on both axes.
	HalfResolution bool
	// OmitEmpty drops value columns without any match.
	OmitEmpty bool
	// Clock defaults to the real clock.
	Clock    clockwork.Clock
	Recorder instrument.Recorder
}

// Session is one screen subscription. Start moves it from idle to active,
// Close to closed. Close may be called any number of times.
type Session struct {
	id     string
	target RenderTarget
	quant  *quantize.Quantizer
	tr     *transcode.Transcoder
	opts   Options
	clock  clockwork.Clock
	layout Layout
	rec    instrument.Recorder

	mu      sync.Mutex
	state   State
	sink    Sink
	scratch []byte
	rng     TimeRange
	step    time.Duration
	offset  time.Duration
	frames  uint64
}

// New returns an idle session reading from target through q.
func New(target RenderTarget, q *quantize.Quantizer, opts Options) *Session {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	layout := target.Layout()
	return &Session{
		id:     uuid.NewString(),
		target: target,
		quant:  q,
		tr:     transcode.New(q, layout.Dimensions),
		opts:   opts,
		clock:  clock,
		layout: layout,
		rec:    instrument.OrNoop(opts.Recorder),
	}
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Frames returns the number of frames pushed so far.
func (s *Session) Frames() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

func (s *Session) transcodeOptions() transcode.Options {
	return transcode.Options{
		VerticalFlip:   !s.layout.BottomUp,
		Scale:          s.layout.Scale,
		HalfResolution: s.opts.HalfResolution,
	}
}

// Start activates the session for the given window and attaches to the
// render target. Frames are pushed to sink until Close.
func (s *Session) Start(rng TimeRange, sink Sink) error {
	if rng.Duration() <= 0 {
		return ErrEmptyRange
	}

	s.mu.Lock()
	switch s.state {
	case StateActive:
		s.mu.Unlock()
		return ErrStarted
	case StateClosed:
		s.mu.Unlock()
		return ErrClosed
	}
	s.rng = rng
	s.step = rng.Duration() / time.Duration(s.layout.Dimensions.Width)
	s.offset = s.clock.Now().Sub(rng.To)
	s.sink = sink
	s.scratch = make([]byte, transcode.RequiredBufferSize(s.layout.Dimensions, s.transcodeOptions()))
	s.state = StateActive
	s.mu.Unlock()

	if err := s.target.Attach(s.update); err != nil {
		s.Close()
		return fmt.Errorf("attach render target: %w", err)
	}
	log.Debugf("Session %s (%s) active, step %s, offset %s", s.id, s.opts.RefID, s.step, s.offset)
	return nil
}

// update runs on the render target's update loop.
func (s *Session) update() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateActive {
		return
	}

	if err := s.target.ReadPixels(s.scratch); err != nil {
		log.Debugf("Session %s: read pixels: %v", s.id, err)
		return
	}

	now := s.clock.Now()
	start := now.Add(-s.offset).Add(-s.rng.Duration())
	cols := s.tr.Transcode(s.scratch, s.transcodeOptions())
	screen := transcode.Build(cols, start, s.step, s.opts.HalfResolution, transcode.BuildOptions{
		RefID:     s.opts.RefID,
		OmitEmpty: s.opts.OmitEmpty,
	})
	s.rec.ObserveTranscodeDuration(s.clock.Since(now))
	if s.quant != nil {
		st := s.quant.Stats()
		s.rec.SetColorCache(st.Entries, st.Hits, st.Misses)
	}
	s.frames++
	s.sink(screen)
}

// Close detaches the update hook, releases scratch space and asks the render
// target to exit. Errors from the target are logged and dropped.
func (s *Session) Close() {
	s.mu.Lock()
	prev := s.state
	s.state = StateClosed
	s.mu.Unlock()

	if prev == StateClosed {
		return
	}
	if prev == StateActive {
		s.target.Detach()
	}

	s.mu.Lock()
	s.scratch = nil
	s.sink = nil
	s.tr.Release()
	s.mu.Unlock()

	if err := s.target.Exit(); err != nil {
		log.Debugf("Session %s: render target exit: %v", s.id, err)
	}
	log.Debugf("Session %s closed after %d frames", s.id, s.Frames())
}
