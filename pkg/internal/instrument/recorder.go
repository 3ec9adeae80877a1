// Package instrument exposes the server's operational metrics.
package instrument

import "time"

// Recorder defines observability hooks for the frame pipeline. Implementations
// may forward to Prometheus. NoopRecorder is the default when metrics are not
// configured.
type Recorder interface {
	// IncSourceFrames counts raster frames received from the provider.
	IncSourceFrames()
	ObserveTranscodeDuration(d time.Duration)
	// IncFramesSent and IncFramesDropped count responses by kind
	// (screen|series) delivered to or skipped for a client.
	IncFramesSent(kind string)
	IncFramesDropped(kind string)
	SetActiveQueries(kind string, n int)
	IncMetricPayloads()
	IncRenderTakeovers()
	SetConnections(n int)
	// SetColorCache reports the size and the running lookup totals of the
	// color cache.
	SetColorCache(entries int, hits, misses uint64)
}

// NoopRecorder is a Recorder that does nothing.
type NoopRecorder struct{}

func (NoopRecorder) IncSourceFrames()                       {}
func (NoopRecorder) ObserveTranscodeDuration(time.Duration) {}
func (NoopRecorder) IncFramesSent(string)                   {}
func (NoopRecorder) IncFramesDropped(string)                {}
func (NoopRecorder) SetActiveQueries(string, int)           {}
func (NoopRecorder) IncMetricPayloads()                     {}
func (NoopRecorder) IncRenderTakeovers()                    {}
func (NoopRecorder) SetConnections(int)                     {}
func (NoopRecorder) SetColorCache(int, uint64, uint64)      {}

// OrNoop returns r, or NoopRecorder when r is nil.
func OrNoop(r Recorder) Recorder {
	if r == nil {
		return NoopRecorder{}
	}
	return r
}
