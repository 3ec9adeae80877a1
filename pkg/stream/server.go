// Package stream serves query streams to websocket clients.
package stream

import (
	"net/http"
	"sync"

	"golang.org/x/net/websocket"

	"github.com/kamrankamilli/gsdoom/pkg/frame/encodings"
	"github.com/kamrankamilli/gsdoom/pkg/internal/instrument"
	"github.com/kamrankamilli/gsdoom/pkg/palette"
	"github.com/kamrankamilli/gsdoom/pkg/query"
	"github.com/kamrankamilli/gsdoom/pkg/stream/events"
)

// Server tracks the stream connections of one datasource.
type Server struct {
	ds       *query.Datasource
	palette  *palette.Palette
	encoding encodings.Encoding
	rec      instrument.Recorder
	events   []events.Event

	connMu      sync.RWMutex
	connections map[*Conn]struct{}
}

// Options represents options for building a new stream server.
type Options struct {
	Datasource *query.Datasource
	// Palette paints preview encodings. Nil uses the default palette.
	Palette *palette.Palette
	// Encoding is the codec of new connections. Empty means json.
	Encoding string
	Recorder instrument.Recorder
	// Events overrides the message handlers.
	Events []events.Event
}

// NewServer returns a stream server.
func NewServer(opts *Options) (*Server, error) {
	name := opts.Encoding
	if name == "" {
		name = "json"
	}
	enc, err := encodings.Get(name, opts.Palette)
	if err != nil {
		return nil, err
	}
	evs := opts.Events
	if evs == nil {
		evs = events.GetDefaults()
	}
	return &Server{
		ds:          opts.Datasource,
		palette:     opts.Palette,
		encoding:    enc,
		rec:         instrument.OrNoop(opts.Recorder),
		events:      evs,
		connections: make(map[*Conn]struct{}),
	}, nil
}

// Handler returns the websocket handler of the stream endpoint. Origins are
// not checked.
func (s *Server) Handler() http.Handler {
	return websocket.Server{
		Handshake: func(*websocket.Config, *http.Request) error { return nil },
		Handler: func(ws *websocket.Conn) {
			s.newConn(ws).serve()
		},
	}
}

// GetEventHandlerMap returns the message handlers keyed by message type.
func (s *Server) GetEventHandlerMap() map[string]events.Event {
	out := make(map[string]events.Event, len(s.events))
	for _, ev := range s.events {
		out[ev.Type()] = ev
	}
	return out
}

func (s *Server) removeConn(conn *Conn) {
	s.connMu.Lock()
	delete(s.connections, conn)
	n := len(s.connections)
	s.connMu.Unlock()
	s.rec.SetConnections(n)
}

// NumConnections returns the number of open connections.
func (s *Server) NumConnections() int {
	s.connMu.RLock()
	defer s.connMu.RUnlock()
	return len(s.connections)
}

func (s *Server) CloseAllConnections() {
	s.connMu.RLock()
	connections := make([]*Conn, 0, len(s.connections))
	for conn := range s.connections {
		connections = append(connections, conn)
	}
	s.connMu.RUnlock()

	for _, conn := range connections {
		conn.ws.Close()
	}
}
