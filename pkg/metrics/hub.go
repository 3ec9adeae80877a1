package metrics

import (
	"sync"
	"sync/atomic"
)

// Listener receives every payload published while it is subscribed.
// Listeners are compared by identity, so implementations should be pointers.
type Listener interface {
	OnPayload(*Payload)
}

type funcListener struct {
	fn func(*Payload)
}

func (f *funcListener) OnPayload(p *Payload) { f.fn(p) }

// ListenerFunc wraps fn in a Listener with its own identity.
func ListenerFunc(fn func(*Payload)) Listener { return &funcListener{fn: fn} }

type subscriber struct {
	l       Listener
	removed atomic.Bool
}

// Hub multiplexes one metric source to any number of listeners.
type Hub struct {
	mu   sync.Mutex
	subs []*subscriber

	// serializes publishes so every listener sees events in publish order
	pubMu sync.Mutex
}

// NewHub returns an empty hub.
func NewHub() *Hub { return &Hub{} }

// Subscribe adds l. Subscribing a listener twice is a no-op.
func (h *Hub) Subscribe(l Listener) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range h.subs {
		if s.l == l {
			return
		}
	}
	// copy on write, snapshots held by Publish stay intact
	subs := make([]*subscriber, len(h.subs), len(h.subs)+1)
	copy(subs, h.subs)
	h.subs = append(subs, &subscriber{l: l})
}

// Unsubscribe removes l. Removing an unknown listener is a no-op. A listener
// removed during a publish is not invoked by the rest of that publish.
func (h *Hub) Unsubscribe(l Listener) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, s := range h.subs {
		if s.l != l {
			continue
		}
		s.removed.Store(true)
		subs := make([]*subscriber, 0, len(h.subs)-1)
		subs = append(subs, h.subs[:i]...)
		h.subs = append(subs, h.subs[i+1:]...)
		return
	}
}

// Len returns the number of subscribed listeners.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Publish synchronously hands p to every listener subscribed when the call
// starts, in subscription order. Listeners must not call Publish.
func (h *Hub) Publish(p *Payload) {
	h.pubMu.Lock()
	defer h.pubMu.Unlock()

	h.mu.Lock()
	snapshot := h.subs
	h.mu.Unlock()

	for _, s := range snapshot {
		if s.removed.Load() {
			continue
		}
		s.l.OnPayload(p)
	}
}
