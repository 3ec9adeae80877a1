package metrics

import (
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/kamrankamilli/gsdoom/pkg/internal/log"
)

// Source is an external producer of metric payloads.
type Source interface {
	// OnMetrics registers fn to receive every payload.
	OnMetrics(fn func(*Payload)) error
	Close() error
}

var _ Source = (*NATSSource)(nil)

// NATSSource receives payloads published on a NATS subject. The message
// Content-Type header selects JSON or msgpack.
type NATSSource struct {
	conn    *nats.Conn
	subject string
	sub     *nats.Subscription
}

// DialNATS connects to url and returns a source for subject.
func DialNATS(url, subject string, opts ...nats.Option) (*NATSSource, error) {
	opts = append([]nats.Option{nats.Name("gsdoom")}, opts...)
	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	log.Infof("Receiving metrics from %s on %q", conn.ConnectedUrl(), subject)
	return &NATSSource{conn: conn, subject: subject}, nil
}

// OnMetrics subscribes to the subject. Only one registration is kept.
func (s *NATSSource) OnMetrics(fn func(*Payload)) error {
	if s.sub != nil {
		if err := s.sub.Unsubscribe(); err != nil {
			log.Debugf("NATS unsubscribe: %v", err)
		}
	}
	sub, err := s.conn.Subscribe(s.subject, natsHandler(fn))
	if err != nil {
		return fmt.Errorf("subscribe %q: %w", s.subject, err)
	}
	s.sub = sub
	return nil
}

// Close drains the subscription and closes the connection.
func (s *NATSSource) Close() error {
	if s.conn == nil {
		return nil
	}
	err := s.conn.Drain()
	s.conn = nil
	return err
}

func natsHandler(fn func(*Payload)) nats.MsgHandler {
	return func(m *nats.Msg) {
		contentType := ""
		if m.Header != nil {
			contentType = m.Header.Get("Content-Type")
		}
		p, err := DecodePayload(m.Data, contentType)
		if err != nil {
			log.Warningf("Dropping metric message on %s: %v", m.Subject, err)
			return
		}
		fn(p)
	}
}
