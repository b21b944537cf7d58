// Package chanq implements the same blocking queue contract as monitorq
// on top of a buffered channel. It exists as the baseline the monitor
// queue is compared against in the bench harness and the shared test
// matrix.
package chanq

import "sync"

// Queue is a bounded blocking FIFO queue backed by a buffered channel.
// Shutdown is modeled by closing a companion done channel, which unblocks
// any goroutine parked on the buffer.
//
// All methods are safe for concurrent use and safe on a nil *Queue.
type Queue[T any] struct {
	ch   chan T
	done chan struct{}
	once sync.Once
}

// New creates a queue that holds at most capacity items. capacity must
// be positive; anything else is a programming error and panics. A
// zero-capacity Go channel is an unbuffered rendezvous, not a bounded
// buffer, so it is rejected rather than clamped.
func New[T any](capacity int) *Queue[T] {
	if capacity <= 0 {
		panic("chanq: capacity must be positive")
	}
	return &Queue[T]{
		ch:   make(chan T, capacity),
		done: make(chan struct{}),
	}
}

// Enqueue adds v, blocking while the queue is full. If the queue is
// already shut down, or shuts down while Enqueue is waiting, v is
// dropped. A Shutdown racing with an Enqueue that is already committed
// to the buffer may still admit the item; only an Enqueue that observes
// the shutdown is guaranteed to drop.
func (q *Queue[T]) Enqueue(v T) {
	if q == nil {
		return
	}
	select {
	case <-q.done:
		return
	default:
	}
	select {
	case q.ch <- v:
	case <-q.done:
	}
}

// Dequeue removes and returns the oldest item, blocking while the queue
// is empty and not shut down. After shutdown it drains the remaining
// buffered items before returning the zero value and false.
func (q *Queue[T]) Dequeue() (T, bool) {
	var zero T
	if q == nil {
		return zero, false
	}
	select {
	case v := <-q.ch:
		return v, true
	case <-q.done:
		// Shut down: drain what is left, then report empty.
		select {
		case v := <-q.ch:
			return v, true
		default:
			return zero, false
		}
	}
}

// Shutdown marks the queue as shut down and unblocks all waiters.
// Idempotent and safe to call concurrently.
func (q *Queue[T]) Shutdown() {
	if q == nil {
		return
	}
	q.once.Do(func() { close(q.done) })
}

// Close shuts the queue down and discards any buffered items so their
// payloads are no longer reachable through the queue.
func (q *Queue[T]) Close() {
	if q == nil {
		return
	}
	q.Shutdown()
	for {
		select {
		case <-q.ch:
		default:
			return
		}
	}
}

// IsEmpty reports whether the queue currently holds no items. A nil
// queue is empty.
func (q *Queue[T]) IsEmpty() bool {
	if q == nil {
		return true
	}
	return len(q.ch) == 0
}

// IsShutdown reports whether Shutdown (or Close) has been called. A nil
// queue reports true.
func (q *Queue[T]) IsShutdown() bool {
	if q == nil {
		return true
	}
	select {
	case <-q.done:
		return true
	default:
		return false
	}
}

// UsedSlots returns how many items are currently queued.
func (q *Queue[T]) UsedSlots() uint64 {
	if q == nil {
		return 0
	}
	return uint64(len(q.ch))
}

// FreeSlots returns how many more items fit before the queue is full.
func (q *Queue[T]) FreeSlots() uint64 {
	if q == nil {
		return 0
	}
	return uint64(cap(q.ch) - len(q.ch))
}

// Cap returns the fixed capacity the queue was created with.
func (q *Queue[T]) Cap() int {
	if q == nil {
		return 0
	}
	return cap(q.ch)
}
