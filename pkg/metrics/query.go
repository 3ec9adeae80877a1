package metrics

import (
	"sort"
	"sync"
	"time"

	"github.com/emirpasic/gods/queues/circularbuffer"
	"github.com/jonboulle/clockwork"

	"github.com/kamrankamilli/gsdoom/pkg/frame"
)

// DefaultCapacity is the trailing series length of a metric query.
const DefaultCapacity = 1000

// MetricLabel is the label key carrying the metric name of table columns.
const MetricLabel = "metric"

type row struct {
	t   time.Time
	num float64
	str string
	tab map[string]float64
}

// QueryOptions configure a metric query.
type QueryOptions struct {
	RefID    string
	Capacity int
	Clock    clockwork.Clock
}

// Query derives one metric from every payload of a hub and pushes the
// trailing series to a sink after each event.
type Query struct {
	hub      *Hub
	metric   Metric
	refID    string
	clock    clockwork.Clock
	sink     func(*frame.Series)
	fps      *FPSEstimator
	listener Listener

	mu     sync.Mutex
	rows   *circularbuffer.Queue
	closed bool
}

// NewQuery returns an unstarted query for metric m.
func NewQuery(hub *Hub, m Metric, opts QueryOptions, sink func(*frame.Series)) (*Query, error) {
	if _, ok := kinds[m]; !ok {
		return nil, ErrUnknownMetric
	}
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	q := &Query{
		hub:    hub,
		metric: m,
		refID:  opts.RefID,
		clock:  opts.Clock,
		sink:   sink,
		rows:   circularbuffer.New(opts.Capacity),
	}
	if m == MetricFPS {
		q.fps = NewFPSEstimator(opts.Clock)
	}
	q.listener = ListenerFunc(q.handle)
	return q, nil
}

// Metric returns the derived metric.
func (q *Query) Metric() Metric { return q.metric }

// Start subscribes the query to its hub.
func (q *Query) Start() { q.hub.Subscribe(q.listener) }

// Close unsubscribes the query. It is safe to call more than once.
func (q *Query) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()
	q.hub.Unsubscribe(q.listener)
}

func (q *Query) handle(p *Payload) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	r := row{t: q.clock.Now()}
	switch q.metric.Kind() {
	case KindString:
		r.str = WeaponName(p)
	case KindTable:
		r.tab, _ = Table(q.metric, p)
	default:
		if q.fps != nil {
			fps, ok := q.fps.Observe()
			if !ok {
				q.mu.Unlock()
				return
			}
			r.num = fps
		} else {
			r.num, _ = Number(q.metric, p)
		}
	}
	q.rows.Enqueue(r)
	series := q.series()
	q.mu.Unlock()

	q.sink(series)
}

// series builds the frame for the buffered rows. Caller holds mu.
func (q *Query) series() *frame.Series {
	vals := q.rows.Values()
	s := &frame.Series{
		Name:  string(q.metric),
		RefID: q.refID,
		Time:  make([]time.Time, len(vals)),
	}
	for i, v := range vals {
		s.Time[i] = v.(row).t
	}

	switch q.metric.Kind() {
	case KindString:
		f := frame.Field{Name: string(q.metric), Strings: make([]string, len(vals))}
		for i, v := range vals {
			f.Strings[i] = v.(row).str
		}
		s.Fields = []frame.Field{f}
	case KindTable:
		keys := map[string]struct{}{}
		for _, v := range vals {
			for k := range v.(row).tab {
				keys[k] = struct{}{}
			}
		}
		names := make([]string, 0, len(keys))
		for k := range keys {
			names = append(names, k)
		}
		sort.Strings(names)
		for _, name := range names {
			f := frame.Field{
				Name:    name,
				Labels:  map[string]string{MetricLabel: string(q.metric)},
				Numbers: make([]float64, len(vals)),
			}
			for i, v := range vals {
				f.Numbers[i] = v.(row).tab[name]
			}
			s.Fields = append(s.Fields, f)
		}
	default:
		f := frame.Field{Name: string(q.metric), Numbers: make([]float64, len(vals))}
		for i, v := range vals {
			f.Numbers[i] = v.(row).num
		}
		s.Fields = []frame.Field{f}
	}
	return s
}
