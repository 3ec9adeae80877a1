package events

import "errors"

// Query handles the client query event.
type Query struct{}

func (q *Query) Type() string { return "query" }

func (q *Query) Handle(msg *Message, c Client) error {
	if msg.Request == nil || len(msg.Request.Targets) == 0 {
		return errors.New("query message without targets")
	}
	return c.StartQuery(msg.Request)
}
