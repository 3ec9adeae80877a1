package stream

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/net/websocket"

	"github.com/kamrankamilli/gsdoom/pkg/buffer"
	"github.com/kamrankamilli/gsdoom/pkg/frame"
	"github.com/kamrankamilli/gsdoom/pkg/frame/encodings"
	"github.com/kamrankamilli/gsdoom/pkg/internal/log"
	"github.com/kamrankamilli/gsdoom/pkg/query"
	"github.com/kamrankamilli/gsdoom/pkg/stream/events"
)

// Control is a server message that is not a query response.
type Control struct {
	Type  string `json:"type"`
	RefID string `json:"refId,omitempty"`
	Error string `json:"error,omitempty"`
}

// Control message types.
const (
	ControlError = "error"
	ControlEnd   = "end"
)

// Conn represents a client connection.
type Conn struct {
	id    string
	ws    *websocket.Conn
	s     *Server
	queue *buffer.Queue

	mu      sync.Mutex
	enc     encodings.Encoding
	streams map[string]query.Stream
	// Streams ended by a query reusing their refId. They end without an
	// end message since the refId is still live.
	replaced map[query.Stream]struct{}
	closing  bool
}

var _ events.Client = (*Conn)(nil)

func (s *Server) newConn(ws *websocket.Conn) *Conn {
	conn := &Conn{
		id:       uuid.NewString(),
		ws:       ws,
		s:        s,
		enc:      s.encoding,
		streams:  make(map[string]query.Stream),
		replaced: make(map[query.Stream]struct{}),
	}
	conn.queue = buffer.NewQueue(conn.write)

	s.connMu.Lock()
	s.connections[conn] = struct{}{}
	n := len(s.connections)
	s.connMu.Unlock()
	s.rec.SetConnections(n)

	return conn
}

// ID returns the connection id.
func (c *Conn) ID() string { return c.id }

func (c *Conn) write(m buffer.Message) error {
	if m.Binary {
		return websocket.Message.Send(c.ws, m.Data)
	}
	return websocket.Message.Send(c.ws, string(m.Data))
}

func (c *Conn) serve() {
	defer func() {
		c.closeStreams()
		c.queue.Close()
		<-c.queue.Done()
		c.ws.Close()
		c.s.removeConn(c)
	}()

	// A failed write ends the read loop too.
	go func() {
		<-c.queue.Done()
		if err := c.queue.Err(); err != nil {
			log.Debugf("Client %s write failed: %v", c.id, err)
			c.ws.Close()
		}
	}()

	log.Infof("Client %s connected from %s", c.id, c.ws.Request().RemoteAddr)
	eventHandlers := c.s.GetEventHandlerMap()
	defer events.CloseEventHandlers(eventHandlers)

	for {
		var msg events.Message
		if err := websocket.JSON.Receive(c.ws, &msg); err != nil {
			if errors.Is(err, io.EOF) {
				log.Infof("Client %s disconnected", c.id)
			} else {
				log.Errorf("Client %s disconnect: %s", c.id, err.Error())
			}
			return
		}
		if hdlr, ok := eventHandlers[msg.Type]; ok {
			if err := hdlr.Handle(&msg, c); err != nil {
				log.Warningf("Error handling %s message from %s: %s", msg.Type, c.id, err.Error())
				c.sendControl(Control{Type: ControlError, RefID: msg.RefID, Error: err.Error()})
			}
		} else {
			log.Warningf("Unsupported message type %q from client %s", msg.Type, c.id)
			c.sendControl(Control{Type: ControlError, Error: "unsupported message type " + msg.Type})
		}
	}
}

// SetEncoding selects the codec of later responses.
func (c *Conn) SetEncoding(name string) error {
	enc, err := encodings.Get(name, c.s.palette)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.enc = enc
	c.mu.Unlock()
	return nil
}

// StartQuery opens every target of req. A target reusing a running refId
// replaces that stream. Targets that fail to open are reported to the client
// one by one.
func (c *Conn) StartQuery(req *query.Request) error {
	for _, t := range req.Targets {
		c.replace(t.RefID)

		st, err := c.s.ds.Open(c.id, req.Range, t, c.emit)
		if err != nil {
			log.Warningf("Client %s: query %s (%s): %v", c.id, t.RefID, t.QueryType, err)
			c.sendControl(Control{Type: ControlError, RefID: t.RefID, Error: err.Error()})
			continue
		}

		c.mu.Lock()
		if c.closing {
			c.mu.Unlock()
			st.Close()
			return nil
		}
		c.streams[t.RefID] = st
		c.mu.Unlock()
		go c.watchStream(st)
	}
	return nil
}

func (c *Conn) watchStream(st query.Stream) {
	<-st.Done()
	c.mu.Lock()
	if c.streams[st.RefID()] == st {
		delete(c.streams, st.RefID())
	}
	_, replaced := c.replaced[st]
	delete(c.replaced, st)
	closing := c.closing
	c.mu.Unlock()
	if !closing && !replaced {
		c.sendControl(Control{Type: ControlEnd, RefID: st.RefID()})
	}
}

// Cancel ends the stream of refID. It reports whether one was running.
func (c *Conn) Cancel(refID string) bool {
	c.mu.Lock()
	st, ok := c.streams[refID]
	delete(c.streams, refID)
	c.mu.Unlock()
	if ok {
		st.Close()
	}
	return ok
}

// replace ends the stream of refID without telling the client, since a new
// stream takes over the refId.
func (c *Conn) replace(refID string) {
	c.mu.Lock()
	st, ok := c.streams[refID]
	if ok {
		delete(c.streams, refID)
		c.replaced[st] = struct{}{}
	}
	c.mu.Unlock()
	if ok {
		st.Close()
	}
}

// SendKey forwards a key to the render target.
func (c *Conn) SendKey(key string, down bool) error {
	return c.s.ds.SendKey(key, down)
}

func (c *Conn) closeStreams() {
	c.mu.Lock()
	c.closing = true
	streams := c.streams
	c.streams = make(map[string]query.Stream)
	c.mu.Unlock()
	for _, st := range streams {
		st.Close()
	}
}

// emit encodes r and queues it. Screens replace a pending screen of the same
// query so a slow client only receives the latest one.
func (c *Conn) emit(r *frame.Response) {
	c.mu.Lock()
	enc := c.enc
	c.mu.Unlock()

	var b bytes.Buffer
	if err := enc.Encode(&b, r); err != nil {
		log.Warningf("Client %s: encode %s response for %s: %v", c.id, enc.Name(), r.Key, err)
		return
	}
	msg := buffer.Message{Data: b.Bytes(), Binary: enc.Binary()}

	kind := "series"
	if r.Screen != nil {
		kind = "screen"
		replaced, err := c.queue.DispatchLatest(r.Key, msg)
		if err != nil {
			return
		}
		if replaced {
			c.s.rec.IncFramesDropped(kind)
		}
	} else if err := c.queue.Dispatch(msg); err != nil {
		return
	}
	c.s.rec.IncFramesSent(kind)
}

func (c *Conn) sendControl(ctl Control) {
	data, err := json.Marshal(ctl)
	if err != nil {
		return
	}
	_ = c.queue.Dispatch(buffer.Message{Data: data})
}
