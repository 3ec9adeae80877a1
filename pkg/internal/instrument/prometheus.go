package instrument

import (
	"net/http"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gsdoom"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	sourceFrames      prom.Counter
	transcodeDuration prom.Histogram
	framesSent        *prom.CounterVec
	framesDropped     *prom.CounterVec
	activeQueries     *prom.GaugeVec
	metricPayloads    prom.Counter
	takeovers         prom.Counter
	connections       prom.Gauge
	cacheEntries      prom.Gauge
	cacheLookups      *prom.CounterVec

	// last reported lookup totals
	cacheMu              sync.Mutex
	lastHits, lastMisses uint64
}

// NewPrometheusRecorder constructs and registers the metrics on reg. A nil
// reg gets a fresh registry.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		sourceFrames: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "source_frames_total",
			Help:      "Raster frames received from the display provider",
		}),
		transcodeDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "transcode_duration_seconds",
			Help:      "Time to transcode and build one screen frame",
			Buckets:   prom.ExponentialBuckets(0.0005, 2, 12),
		}),
		framesSent: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "frames_sent_total",
			Help:      "Responses written to clients by kind",
		}, []string{"kind"}),
		framesDropped: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "frames_dropped_total",
			Help:      "Responses replaced before they reached a slow client",
		}, []string{"kind"}),
		activeQueries: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "active_queries",
			Help:      "Running queries by kind",
		}, []string{"kind"}),
		metricPayloads: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "metric_payloads_total",
			Help:      "Metric payloads published to the hub",
		}),
		takeovers: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "render_takeovers_total",
			Help:      "Screen queries that preempted the render target",
		}),
		connections: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "stream_connections",
			Help:      "Open stream connections",
		}),
		cacheEntries: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "color_cache_entries",
			Help:      "Distinct colors held by the palette index cache",
		}),
		cacheLookups: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "color_cache_lookups_total",
			Help:      "Palette index lookups by result (hit|miss)",
		}, []string{"result"}),
	}
	reg.MustRegister(pr.sourceFrames, pr.transcodeDuration, pr.framesSent, pr.framesDropped,
		pr.activeQueries, pr.metricPayloads, pr.takeovers, pr.connections,
		pr.cacheEntries, pr.cacheLookups)
	return pr
}

func (p *PrometheusRecorder) IncSourceFrames() {
	if p == nil {
		return
	}
	p.sourceFrames.Inc()
}

func (p *PrometheusRecorder) ObserveTranscodeDuration(d time.Duration) {
	if p == nil {
		return
	}
	p.transcodeDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncFramesSent(kind string) {
	if p == nil {
		return
	}
	p.framesSent.WithLabelValues(kind).Inc()
}

func (p *PrometheusRecorder) IncFramesDropped(kind string) {
	if p == nil {
		return
	}
	p.framesDropped.WithLabelValues(kind).Inc()
}

func (p *PrometheusRecorder) SetActiveQueries(kind string, n int) {
	if p == nil {
		return
	}
	p.activeQueries.WithLabelValues(kind).Set(float64(n))
}

func (p *PrometheusRecorder) IncMetricPayloads() {
	if p == nil {
		return
	}
	p.metricPayloads.Inc()
}

func (p *PrometheusRecorder) IncRenderTakeovers() {
	if p == nil {
		return
	}
	p.takeovers.Inc()
}

func (p *PrometheusRecorder) SetConnections(n int) {
	if p == nil {
		return
	}
	p.connections.Set(float64(n))
}

func (p *PrometheusRecorder) SetColorCache(entries int, hits, misses uint64) {
	if p == nil {
		return
	}
	p.cacheEntries.Set(float64(entries))

	p.cacheMu.Lock()
	defer p.cacheMu.Unlock()
	if hits > p.lastHits {
		p.cacheLookups.WithLabelValues("hit").Add(float64(hits - p.lastHits))
	}
	if misses > p.lastMisses {
		p.cacheLookups.WithLabelValues("miss").Add(float64(misses - p.lastMisses))
	}
	p.lastHits, p.lastMisses = hits, misses
}

// HTTPHandler returns an http.Handler that serves the metrics of reg.
func HTTPHandler(reg *prom.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
