package zwave

import "sync"

// Queue is an unbounded FIFO of notifications between the driver goroutine
// and the consumer goroutine.
//
// Push never blocks on the consumer. Wakeups coalesce: however many pushes
// happen before the consumer looks, Wake delivers at most one signal, so the
// consumer must Pop until the queue is empty each time it wakes.
//
// Thread Safety: All methods are safe for concurrent use.
type Queue struct {
	mu    sync.Mutex
	items []Notification
	wake  chan struct{}
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{
		wake: make(chan struct{}, 1),
	}
}

// Push appends n and signals the consumer.
func (q *Queue) Push(n Notification) {
	q.mu.Lock()
	q.items = append(q.items, n)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
		// A wakeup is already pending.
	}
}

// Pop removes and returns the oldest notification.
func (q *Queue) Pop() (Notification, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return Notification{}, false
	}

	n := q.items[0]
	q.items[0] = Notification{}
	q.items = q.items[1:]
	if len(q.items) == 0 {
		// Drop the backing array so a burst does not pin memory.
		q.items = nil
	}
	return n, true
}

// Wake returns the channel signalled after pushes.
func (q *Queue) Wake() <-chan struct{} {
	return q.wake
}

// Len returns the number of queued notifications.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Drain discards all queued notifications and returns how many there were.
func (q *Queue) Drain() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.items)
	q.items = nil
	return n
}
