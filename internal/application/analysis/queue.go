package analysis

import (
	"sync"

	domain "github.com/rustgreen/backend/internal/domain/sessions"
)

// Queue is an unbounded FIFO of session ids with a single producer (the API
// layer) and a single consumer (the worker). Enqueue never blocks; Dequeue
// blocks until an item arrives or the queue is closed.
type Queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []domain.SessionID
	closed bool
}

func NewQueue() *Queue {
	q := &Queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Enqueue appends an id. After Close it is a no-op.
func (q *Queue) Enqueue(id domain.SessionID) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.items = append(q.items, id)
	q.cond.Signal()
}

// Dequeue pops the oldest id, blocking while the queue is empty. The second
// return is false once the queue has been closed; queued items left at close
// time are discarded so shutdown is prompt.
func (q *Queue) Dequeue() (domain.SessionID, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if q.closed {
		return "", false
	}
	id := q.items[0]
	q.items = q.items[1:]
	return id, true
}

// Close wakes all waiters and rejects further enqueues.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}

// Len reports the number of queued ids.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
