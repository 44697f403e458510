package jobs

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrQueueFull   = errors.New("queue is full")
	ErrQueueClosed = errors.New("queue is closed")
)

const defaultQueueSize = 256

// queue is a bounded FIFO of pending job IDs shared by the worker pool.
// IDs travel over a buffered channel so pop is a plain select and
// cancellation can never corrupt queue state.
type queue struct {
	mu     sync.Mutex
	ids    chan string
	closed bool
}

func newQueue(max int) *queue {
	if max <= 0 {
		max = defaultQueueSize
	}
	return &queue{ids: make(chan string, max)}
}

func (q *queue) push(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.ids <- id:
		return nil
	default:
		return ErrQueueFull
	}
}

// pop blocks until an ID is available, the queue closes, or ctx is done.
// A closed queue still drains IDs accepted before close.
func (q *queue) pop(ctx context.Context) (string, error) {
	select {
	case id, ok := <-q.ids:
		if !ok {
			return "", ErrQueueClosed
		}
		return id, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (q *queue) size() int {
	return len(q.ids)
}

func (q *queue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.ids)
}
