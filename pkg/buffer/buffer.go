// Package buffer queues outgoing messages of one stream connection.
package buffer

import (
	"errors"
	"sync"
)

// ErrClosed is returned when dispatching to a closed queue.
var ErrClosed = errors.New("buffer: queue closed")

// Message is one outgoing websocket message.
type Message struct {
	Data   []byte
	Binary bool
}

// WriteFunc writes a single message to the peer.
type WriteFunc func(Message) error

type entry struct {
	key string
	msg Message
}

// Queue writes dispatched messages in order from its own goroutine, so a slow
// peer never blocks the producer.
type Queue struct {
	write WriteFunc

	mu      sync.Mutex
	pending []entry
	closed  bool
	err     error

	wake chan struct{}
	done chan struct{}
}

// NewQueue starts a queue writing through write.
func NewQueue(write WriteFunc) *Queue {
	q := &Queue{
		write: write,
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *Queue) run() {
	defer close(q.done)
	for {
		q.mu.Lock()
		batch := q.pending
		q.pending = nil
		closed := q.closed
		q.mu.Unlock()

		for _, e := range batch {
			if err := q.write(e.msg); err != nil {
				q.fail(err)
				return
			}
		}
		if len(batch) > 0 {
			continue
		}
		if closed {
			return
		}
		<-q.wake
	}
}

func (q *Queue) fail(err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.err = err
	q.closed = true
	q.pending = nil
}

func (q *Queue) notify() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Dispatch appends msg to the queue.
func (q *Queue) Dispatch(msg Message) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.pending = append(q.pending, entry{msg: msg})
	q.mu.Unlock()
	q.notify()
	return nil
}

// DispatchLatest queues msg under key. A message with the same key that was
// not written yet is replaced in place, keeping its position. It reports
// whether a message was replaced. An empty key behaves like Dispatch.
func (q *Queue) DispatchLatest(key string, msg Message) (replaced bool, err error) {
	if key == "" {
		return false, q.Dispatch(msg)
	}
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false, ErrClosed
	}
	for i := range q.pending {
		if q.pending[i].key == key {
			q.pending[i].msg = msg
			replaced = true
			break
		}
	}
	if !replaced {
		q.pending = append(q.pending, entry{key: key, msg: msg})
	}
	q.mu.Unlock()
	q.notify()
	return replaced, nil
}

// Len returns the number of messages waiting to be written.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// IsClosed reports whether the queue stopped accepting messages.
func (q *Queue) IsClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Err returns the write error that stopped the queue, if any.
func (q *Queue) Err() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.err
}

// Close stops accepting messages. Pending messages are still written.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.notify()
}

// Done is closed when the writer goroutine has exited.
func (q *Queue) Done() <-chan struct{} { return q.done }
