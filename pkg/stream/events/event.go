// Package events holds the handlers of client stream messages.
package events

import "github.com/kamrankamilli/gsdoom/pkg/query"

// Message is one client message. Type selects the handler; the other fields
// are read by the handler that needs them.
type Message struct {
	Type     string         `json:"type"`
	Encoding string         `json:"encoding,omitempty"`
	Request  *query.Request `json:"request,omitempty"`
	RefID    string         `json:"refId,omitempty"`
	Key      string         `json:"key,omitempty"`
	Down     bool           `json:"down,omitempty"`
}

// Client is the connection state handlers act on.
type Client interface {
	SetEncoding(name string) error
	StartQuery(req *query.Request) error
	Cancel(refID string) bool
	SendKey(key string, down bool) error
}

// Event is an interface implemented by client message handlers.
type Event interface {
	Type() string
	Handle(msg *Message, c Client) error
}

var DefaultEvents = []Event{
	&SetEncoding{},
	&Query{},
	&Cancel{},
	&KeyEvent{},
}

func GetDefaults() []Event {
	out := make([]Event, len(DefaultEvents))
	copy(out, DefaultEvents)
	return out
}

func CloseEventHandlers(hdlrs map[string]Event) {
	for _, ev := range hdlrs {
		closer, ok := ev.(interface{ Close() })
		if ok {
			closer.Close()
		}
	}
}
