package query

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/jonboulle/clockwork"

	"github.com/kamrankamilli/gsdoom/pkg/display"
	"github.com/kamrankamilli/gsdoom/pkg/frame"
	"github.com/kamrankamilli/gsdoom/pkg/internal/instrument"
	"github.com/kamrankamilli/gsdoom/pkg/internal/log"
	"github.com/kamrankamilli/gsdoom/pkg/metrics"
	"github.com/kamrankamilli/gsdoom/pkg/quantize"
	"github.com/kamrankamilli/gsdoom/pkg/session"
)

// Emitter receives the responses of a stream.
type Emitter func(*frame.Response)

// Stream is a running query target.
type Stream interface {
	RefID() string
	// Done is closed once the stream has ended.
	Done() <-chan struct{}
	// Close ends the stream. It is safe to call more than once.
	Close()
}

// Options configure a datasource.
type Options struct {
	OmitEmpty      bool
	SeriesCapacity int
	Clock          clockwork.Clock
	Recorder       instrument.Recorder
}

// Datasource opens streams against the display and the metrics hub. Either
// may be nil, in which case its queries produce empty streams.
type Datasource struct {
	display *display.Display
	quant   *quantize.Quantizer
	hub     *metrics.Hub
	opts    Options
	rec     instrument.Recorder

	screens atomic.Int64
	series  atomic.Int64
}

// New returns a datasource.
func New(d *display.Display, q *quantize.Quantizer, hub *metrics.Hub, opts Options) *Datasource {
	return &Datasource{
		display: d,
		quant:   q,
		hub:     hub,
		opts:    opts,
		rec:     instrument.OrNoop(opts.Recorder),
	}
}

// Open starts target for owner. Targets without a source and unknown query
// types yield a stream that never emits.
func (ds *Datasource) Open(owner string, rng Range, t Target, emit Emitter) (Stream, error) {
	if t.QueryType == TypeScreen {
		return ds.openScreen(owner, rng, t, emit)
	}
	return ds.openMetric(t, emit)
}

// SendKey forwards a key to the render target.
func (ds *Datasource) SendKey(key string, down bool) error {
	if ds.display == nil {
		return display.ErrNoKeyInput
	}
	return ds.display.SendKey(key, down)
}

func (ds *Datasource) openScreen(owner string, rng Range, t Target, emit Emitter) (Stream, error) {
	tr := rng.TimeRange()
	if tr.Duration() <= 0 {
		return nil, session.ErrEmptyRange
	}
	if ds.display == nil || !ds.display.HasProvider() {
		log.Debugf("No render target for screen query %s, streaming nothing", t.RefID)
		return newEmptyStream(t.RefID), nil
	}

	lease, err := ds.display.Acquire(owner + "/" + t.RefID)
	if err != nil {
		return nil, fmt.Errorf("acquire render target: %w", err)
	}
	sess := session.New(lease, ds.quant, session.Options{
		RefID:          t.RefID,
		HalfResolution: t.HalfResolution,
		OmitEmpty:      ds.opts.OmitEmpty,
		Clock:          ds.opts.Clock,
		Recorder:       ds.rec,
	})
	s := &screenStream{
		refID: t.RefID,
		sess:  sess,
		done:  make(chan struct{}),
		onClose: func() {
			ds.rec.SetActiveQueries("screen", int(ds.screens.Add(-1)))
		},
	}
	ds.rec.SetActiveQueries("screen", int(ds.screens.Add(1)))

	err = sess.Start(tr, func(sc *frame.Screen) {
		emit(&frame.Response{Key: t.RefID, State: frame.StateStreaming, Screen: sc})
	})
	if err != nil {
		s.Close()
		return nil, err
	}
	go s.watch(lease.Revoked())
	return s, nil
}

func (ds *Datasource) openMetric(t Target, emit Emitter) (Stream, error) {
	m, err := metrics.ParseMetric(t.QueryType)
	if err != nil {
		log.Debugf("Unknown query type %q for %s, streaming nothing", t.QueryType, t.RefID)
		return newEmptyStream(t.RefID), nil
	}
	if ds.hub == nil {
		return newEmptyStream(t.RefID), nil
	}

	q, err := metrics.NewQuery(ds.hub, m, metrics.QueryOptions{
		RefID:    t.RefID,
		Capacity: ds.opts.SeriesCapacity,
		Clock:    ds.opts.Clock,
	}, func(s *frame.Series) {
		emit(&frame.Response{Key: t.RefID, State: frame.StateStreaming, Series: s})
	})
	if err != nil {
		return nil, err
	}
	ds.rec.SetActiveQueries("series", int(ds.series.Add(1)))
	q.Start()
	return &metricStream{
		refID: t.RefID,
		q:     q,
		done:  make(chan struct{}),
		onClose: func() {
			ds.rec.SetActiveQueries("series", int(ds.series.Add(-1)))
		},
	}, nil
}

type emptyStream struct {
	refID string
	done  chan struct{}
	once  sync.Once
}

func newEmptyStream(refID string) *emptyStream {
	return &emptyStream{refID: refID, done: make(chan struct{})}
}

func (s *emptyStream) RefID() string         { return s.refID }
func (s *emptyStream) Done() <-chan struct{} { return s.done }
func (s *emptyStream) Close()                { s.once.Do(func() { close(s.done) }) }

type screenStream struct {
	refID   string
	sess    *session.Session
	done    chan struct{}
	once    sync.Once
	onClose func()
}

func (s *screenStream) RefID() string         { return s.refID }
func (s *screenStream) Done() <-chan struct{} { return s.done }

func (s *screenStream) Close() {
	s.once.Do(func() {
		s.sess.Close()
		close(s.done)
		s.onClose()
	})
}

// watch ends the stream when another screen query takes the render target.
func (s *screenStream) watch(revoked <-chan struct{}) {
	select {
	case <-revoked:
		log.Infof("Screen query %s lost the render target", s.refID)
		s.Close()
	case <-s.done:
	}
}

type metricStream struct {
	refID   string
	q       *metrics.Query
	done    chan struct{}
	once    sync.Once
	onClose func()
}

func (s *metricStream) RefID() string         { return s.refID }
func (s *metricStream) Done() <-chan struct{} { return s.done }

func (s *metricStream) Close() {
	s.once.Do(func() {
		s.q.Close()
		close(s.done)
		s.onClose()
	})
}
