package events

import "errors"

// KeyEvent handles the client key event.
type KeyEvent struct{}

func (s *KeyEvent) Type() string { return "key" }

func (s *KeyEvent) Handle(msg *Message, c Client) error {
	if msg.Key == "" {
		return errors.New("key message without a key")
	}
	return c.SendKey(msg.Key, msg.Down)
}
