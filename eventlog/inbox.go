package eventlog

import (
	"context"
	"sync"

	"github.com/eapache/queue"
)

// An Inbox hands payloads over from any number of publishers to the single
// goroutine that appends them to a Log. Put never blocks.
type Inbox struct {
	lock   sync.Mutex
	queue  *queue.Queue
	signal chan struct{}
	closed bool
}

// NewInbox creates an empty inbox.
func NewInbox() *Inbox {
	return &Inbox{
		queue:  queue.New(),
		signal: make(chan struct{}, 1),
	}
}

// Put queues a copy of the payload. It returns false if the inbox is closed.
func (in *Inbox) Put(payload []byte) bool {
	copied := make([]byte, len(payload))
	copy(copied, payload)

	in.lock.Lock()
	defer in.lock.Unlock()

	if in.closed {
		return false
	}

	in.queue.Add(copied)

	// Close closes the signal under the same lock.
	select {
	case in.signal <- struct{}{}:
	default:
	}

	return true
}

// Len returns the number of payloads waiting to be drained.
func (in *Inbox) Len() int {
	in.lock.Lock()
	defer in.lock.Unlock()

	return in.queue.Length()
}

// Close makes the inbox refuse new payloads and stops Drain.
func (in *Inbox) Close() {
	in.lock.Lock()
	defer in.lock.Unlock()

	if in.closed {
		return
	}

	in.closed = true
	close(in.signal)
}

// Drain moves queued payloads to the log, in the order they were put, until
// ctx is done or the inbox is closed. Payloads still queued at that point may
// be dropped. Drain must be called by a single goroutine.
func (in *Inbox) Drain(ctx context.Context, log *Log) {
	for {
		for _, payload := range in.take() {
			if ctx.Err() != nil {
				return
			}

			log.Append(payload)
		}

		select {
		case <-ctx.Done():
			return
		case _, open := <-in.signal:
			if !open {
				return
			}
		}
	}
}

func (in *Inbox) take() [][]byte {
	in.lock.Lock()
	defer in.lock.Unlock()

	payloads := make([][]byte, 0, in.queue.Length())
	for in.queue.Length() > 0 {
		payloads = append(payloads, in.queue.Remove().([]byte))
	}

	return payloads
}
