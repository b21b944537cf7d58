// Package monitorq provides a bounded, blocking FIFO queue built as a
// classic monitor: a fixed-capacity ring buffer guarded by one mutex and
// two condition variables. Enqueue blocks while the queue is full,
// Dequeue blocks while it is empty, and a cooperative shutdown wakes
// every blocked goroutine so producers and consumers can exit cleanly
// instead of hanging forever.
package monitorq

import "sync"

// Queue is a bounded blocking FIFO queue of items of type T. The queue
// never inspects, copies, or retains items beyond handing them from
// Enqueue to Dequeue; ownership of the payload stays with the caller.
//
// All methods are safe for concurrent use. Every method is also safe to
// call on a nil *Queue: mutating operations become no-ops and accessors
// report an empty, shut-down queue.
//
// The zero value is not usable; call New.
type Queue[T any] struct {
	mu       sync.Mutex
	notFull  *sync.Cond
	notEmpty *sync.Cond

	buffer   []T
	capacity int
	size     int
	front    int
	rear     int
	shutdown bool
}

// New creates a queue that holds at most capacity items. capacity must
// be positive; anything else is a programming error and panics.
func New[T any](capacity int) *Queue[T] {
	if capacity <= 0 {
		panic("monitorq: capacity must be positive")
	}
	q := &Queue[T]{
		buffer:   make([]T, capacity),
		capacity: capacity,
		rear:     capacity - 1, // first insertion advances to slot 0
	}
	q.notFull = sync.NewCond(&q.mu)
	q.notEmpty = sync.NewCond(&q.mu)
	return q
}

// Enqueue adds v at the rear of the queue, blocking while the queue is
// full. If the queue is already shut down, or shuts down while Enqueue
// is waiting for a slot, v is silently dropped. Callers that need
// delivery confirmation must layer their own acknowledgment on top;
// Enqueue deliberately does not report acceptance.
func (q *Queue[T]) Enqueue(v T) {
	if q == nil {
		return
	}
	q.mu.Lock()
	for q.size == q.capacity && !q.shutdown {
		q.notFull.Wait()
	}
	if q.shutdown {
		q.mu.Unlock()
		return
	}
	q.rear = (q.rear + 1) % q.capacity
	q.buffer[q.rear] = v
	q.size++
	q.notEmpty.Signal()
	q.mu.Unlock()
}

// Dequeue removes and returns the oldest item, blocking while the queue
// is empty and not shut down. After shutdown it keeps draining whatever
// was already enqueued, in FIFO order; once the queue is empty it
// returns the zero value and false without blocking.
func (q *Queue[T]) Dequeue() (T, bool) {
	var zero T
	if q == nil {
		return zero, false
	}
	q.mu.Lock()
	for q.size == 0 && !q.shutdown {
		q.notEmpty.Wait()
	}
	if q.size == 0 {
		q.mu.Unlock()
		return zero, false
	}
	v := q.buffer[q.front]
	q.buffer[q.front] = zero // don't pin the payload after handoff
	q.front = (q.front + 1) % q.capacity
	q.size--
	q.notFull.Signal()
	q.mu.Unlock()
	return v, true
}

// Shutdown marks the queue as shut down and wakes all goroutines blocked
// in Enqueue or Dequeue. Buffered items stay available to Dequeue until
// drained. Shutdown is idempotent and safe to call from any number of
// goroutines; the flag never resets.
func (q *Queue[T]) Shutdown() {
	if q == nil {
		return
	}
	q.mu.Lock()
	q.shutdown = true
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
	q.mu.Unlock()
}

// Close shuts the queue down and drops any items still buffered so their
// payloads are no longer reachable through the queue. Goroutines blocked
// in Enqueue or Dequeue are woken. After Close the queue behaves as a
// drained, shut-down queue: every Dequeue returns the zero value
// immediately and every Enqueue drops its item.
func (q *Queue[T]) Close() {
	if q == nil {
		return
	}
	q.Shutdown()
	q.mu.Lock()
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
	var zero T
	for i := range q.buffer {
		q.buffer[i] = zero
	}
	q.size = 0
	q.front = 0
	q.rear = q.capacity - 1
	q.mu.Unlock()
}

// IsEmpty reports whether the queue currently holds no items. The answer
// is a snapshot and may be stale by the time the caller acts on it. A
// nil queue is empty.
func (q *Queue[T]) IsEmpty() bool {
	if q == nil {
		return true
	}
	q.mu.Lock()
	empty := q.size == 0
	q.mu.Unlock()
	return empty
}

// IsShutdown reports whether Shutdown (or Close) has been called. A nil
// queue reports true.
func (q *Queue[T]) IsShutdown() bool {
	if q == nil {
		return true
	}
	q.mu.Lock()
	down := q.shutdown
	q.mu.Unlock()
	return down
}

// UsedSlots returns how many items are currently queued.
func (q *Queue[T]) UsedSlots() uint64 {
	if q == nil {
		return 0
	}
	q.mu.Lock()
	n := q.size
	q.mu.Unlock()
	return uint64(n)
}

// FreeSlots returns how many more items can be enqueued before the queue
// is full.
func (q *Queue[T]) FreeSlots() uint64 {
	if q == nil {
		return 0
	}
	q.mu.Lock()
	n := q.capacity - q.size
	q.mu.Unlock()
	return uint64(n)
}

// Cap returns the fixed capacity the queue was created with.
func (q *Queue[T]) Cap() int {
	if q == nil {
		return 0
	}
	return q.capacity
}
