package events

import "github.com/kamrankamilli/gsdoom/pkg/internal/log"

// Cancel handles the client cancel event. Cancelling an unknown refId is
// not an error.
type Cancel struct{}

func (e *Cancel) Type() string { return "cancel" }

func (e *Cancel) Handle(msg *Message, c Client) error {
	if !c.Cancel(msg.RefID) {
		log.Debugf("Cancel for unknown query %q", msg.RefID)
	}
	return nil
}
