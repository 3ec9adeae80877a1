package events

import (
	"errors"

	"github.com/kamrankamilli/gsdoom/pkg/internal/log"
)

// SetEncoding handles the client set-encoding event.
type SetEncoding struct{}

func (s *SetEncoding) Type() string { return "encoding" }

func (s *SetEncoding) Handle(msg *Message, c Client) error {
	if msg.Encoding == "" {
		return errors.New("encoding message without an encoding")
	}
	log.Infof("Client encoding: %s", msg.Encoding)
	return c.SetEncoding(msg.Encoding)
}
