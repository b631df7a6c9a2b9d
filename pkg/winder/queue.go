package winder

import (
	"context"
	"sync"
	"time"
)

// OverrunPolicy defines what Emit does when a bounded subscriber queue is full.
// Unbounded queues (capacity 0) never overrun.
type OverrunPolicy int

const (
	// Block makes Emit wait, respecting its context, until the queue has room.
	Block OverrunPolicy = iota
	// DropOldest discards the oldest queued envelope to make room.
	// Every drop is logged and counted.
	DropOldest
	// ReturnError makes Emit fail with a *QueueFullError for that subscriber.
	ReturnError
)

// String returns the policy name as used in configuration.
func (p OverrunPolicy) String() string {
	switch p {
	case Block:
		return "block"
	case DropOldest:
		return "drop_oldest"
	case ReturnError:
		return "error"
	default:
		return "unknown"
	}
}

// envelope is one emitted occurrence in transit.
type envelope struct {
	emitTime time.Time
	payload  []any
}

// queue is a FIFO of envelopes with many producers and exactly one consumer.
type queue struct {
	capacity int // 0 = unbounded
	policy   OverrunPolicy

	mu     sync.Mutex
	buf    []envelope
	head   int
	closed bool

	notEmpty chan struct{}
	notFull  chan struct{}
	done     chan struct{}
}

func newQueue(capacity int, policy OverrunPolicy) *queue {
	if capacity < 0 {
		capacity = 0
	}
	return &queue{
		capacity: capacity,
		policy:   policy,
		notEmpty: make(chan struct{}, 1),
		notFull:  make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// pushResult reports what push did besides enqueueing.
type pushResult int

const (
	pushed pushResult = iota
	pushedDropped
	pushRejected
	pushClosed
)

// push appends env. It blocks only for a full bounded queue under Block.
func (q *queue) push(ctx context.Context, env envelope) (pushResult, error) {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return pushClosed, nil
		}

		if q.capacity == 0 || q.lenLocked() < q.capacity {
			q.buf = append(q.buf, env)
			room := q.capacity == 0 || q.lenLocked() < q.capacity
			q.mu.Unlock()
			signal(q.notEmpty)
			if room && q.capacity > 0 {
				// pass the wakeup on to another blocked producer
				signal(q.notFull)
			}
			return pushed, nil
		}

		switch q.policy {
		case DropOldest:
			q.buf[q.head] = envelope{}
			q.head++
			q.maybeCompactLocked()
			q.buf = append(q.buf, env)
			q.mu.Unlock()
			signal(q.notEmpty)
			return pushedDropped, nil
		case ReturnError:
			q.mu.Unlock()
			return pushRejected, nil
		}
		q.mu.Unlock()

		select {
		case <-q.notFull:
		case <-q.done:
		case <-ctx.Done():
			return pushRejected, ctx.Err()
		}
	}
}

// pop blocks until an envelope is available. It returns false once the queue
// is closed and fully drained.
func (q *queue) pop() (envelope, bool) {
	for {
		q.mu.Lock()
		if q.lenLocked() > 0 {
			env := q.buf[q.head]
			q.buf[q.head] = envelope{}
			q.head++
			q.maybeCompactLocked()
			q.mu.Unlock()
			if q.capacity > 0 {
				signal(q.notFull)
			}
			return env, true
		}
		if q.closed {
			q.mu.Unlock()
			return envelope{}, false
		}
		q.mu.Unlock()

		<-q.notEmpty
	}
}

// len returns the number of queued envelopes.
func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lenLocked()
}

// close stops accepting envelopes. Queued envelopes are still delivered.
func (q *queue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.done)
	signal(q.notEmpty)
}

// discard closes the queue and drops everything still queued.
// It returns the number of dropped envelopes.
func (q *queue) discard() int {
	q.mu.Lock()
	n := q.lenLocked()
	q.buf = nil
	q.head = 0
	q.mu.Unlock()
	q.close()
	return n
}

func (q *queue) lenLocked() int {
	return len(q.buf) - q.head
}

// maybeCompactLocked reclaims the consumed prefix of buf.
func (q *queue) maybeCompactLocked() {
	if q.head == len(q.buf) {
		q.buf = q.buf[:0]
		q.head = 0
		return
	}
	if q.head < 64 || q.head*2 < len(q.buf) {
		return
	}
	n := copy(q.buf, q.buf[q.head:])
	for i := n; i < len(q.buf); i++ {
		q.buf[i] = envelope{}
	}
	q.buf = q.buf[:n]
	q.head = 0
}

// signal performs a non-blocking send on a one-slot wakeup channel.
func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
