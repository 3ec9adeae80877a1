// Package server exposes the stream endpoint and the HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"golang.org/x/net/websocket"

	"github.com/kamrankamilli/gsdoom/pkg/display/providers"
	"github.com/kamrankamilli/gsdoom/pkg/internal/instrument"
	"github.com/kamrankamilli/gsdoom/pkg/internal/log"
	"github.com/kamrankamilli/gsdoom/pkg/metrics"
	"github.com/kamrankamilli/gsdoom/pkg/palette"
	"github.com/kamrankamilli/gsdoom/pkg/stream"
)

// MaxPayloadSize bounds the body of a metric post.
const MaxPayloadSize = 1 << 20

// Options represents options for building a new server.
type Options struct {
	Addr   string
	Stream *stream.Server
	// Remote receives frames pushed to /api/frames. Nil disables the route.
	Remote  *providers.Remote
	Hub     *metrics.Hub
	Palette *palette.Palette
	// Registry is served at /metrics when set.
	Registry        *prom.Registry
	Recorder        instrument.Recorder
	ShutdownTimeout time.Duration
}

// Server serves the gsdoom HTTP API.
type Server struct {
	opts       Options
	rec        instrument.Recorder
	httpServer *http.Server
}

// New returns a server.
func New(opts Options) *Server {
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	if opts.Palette == nil {
		opts.Palette = palette.Default()
	}
	return &Server{opts: opts, rec: instrument.OrNoop(opts.Recorder)}
}

// Handler returns the routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	if s.opts.Stream != nil {
		mux.Handle("/api/stream", s.opts.Stream.Handler())
	}
	if s.opts.Remote != nil {
		mux.Handle("/api/frames", s.framesHandler())
	}
	mux.HandleFunc("/api/metrics", s.handleMetrics)
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/palette/overrides", s.handleOverrides)
	if s.opts.Registry != nil {
		mux.Handle("/metrics", instrument.HTTPHandler(s.opts.Registry))
	}
	return s.loggingMiddleware(mux)
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:    s.opts.Addr,
		Handler: s.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Listening for HTTP connections on %s", s.opts.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("Shutting down HTTP server")
	if s.opts.Stream != nil {
		// Hijacked websocket connections are not closed by Shutdown.
		s.opts.Stream.CloseAllConnections()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{Status: "success", Message: "Success"})
}

func (s *Server) handleOverrides(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.opts.Palette.Overrides())
}

// handleMetrics publishes one posted payload to the hub.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.opts.Hub == nil {
		http.Error(w, "no metrics hub", http.StatusServiceUnavailable)
		return
	}

	contentType := ""
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err != nil {
			http.Error(w, "bad content type", http.StatusBadRequest)
			return
		}
		contentType = mt
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, MaxPayloadSize+1))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	if len(body) > MaxPayloadSize {
		http.Error(w, "payload too large", http.StatusRequestEntityTooLarge)
		return
	}
	p, err := metrics.DecodePayload(body, contentType)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, statusResponse{Status: "error", Message: err.Error()})
		return
	}

	s.rec.IncMetricPayloads()
	s.opts.Hub.Publish(p)
	w.WriteHeader(http.StatusNoContent)
}

// framesHandler accepts raw RGBA frames from a remote renderer and writes
// key events back to it.
func (s *Server) framesHandler() http.Handler {
	remote := s.opts.Remote
	return websocket.Server{
		Handshake: func(*websocket.Config, *http.Request) error { return nil },
		Handler: func(ws *websocket.Conn) {
			defer ws.Close()
			log.Infof("Renderer connected from %s", ws.Request().RemoteAddr)

			done := make(chan struct{})
			defer close(done)
			go func() {
				for {
					select {
					case ev := <-remote.Keys():
						if err := websocket.JSON.Send(ws, ev); err != nil {
							log.Debugf("Renderer key send: %v", err)
							return
						}
					case <-done:
						return
					}
				}
			}()

			for {
				var data []byte
				if err := websocket.Message.Receive(ws, &data); err != nil {
					if !errors.Is(err, io.EOF) {
						log.Warningf("Renderer disconnect: %v", err)
					}
					return
				}
				if err := remote.Push(data); err != nil {
					if errors.Is(err, providers.ErrNotStarted) {
						continue
					}
					log.Warningf("Dropping renderer frame: %v", err)
				}
			}
		},
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debugf("Failed to write response: %v", err)
	}
}
