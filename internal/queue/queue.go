package queue

// BlockingQueue is a *type constraint* that ensures any queue type Q in
// this module carries the full blocking-queue operation set. We never
// store Q in a runtime interface for the hot path—generic code uses
// BlockingQueue at compile time to enforce matching signatures.
type BlockingQueue[T any] interface {
	// Enqueue adds an element and blocks while the queue is full.
	// Elements offered to a shut-down queue are dropped.
	Enqueue(T)

	// Dequeue removes and returns the oldest element, blocking while the
	// queue is empty and not shut down. Once the queue is shut down and
	// drained it returns the zero value and false without blocking.
	Dequeue() (T, bool)

	// Shutdown marks the queue as shut down and wakes all blocked callers.
	// Must be idempotent.
	Shutdown()

	// IsEmpty reports whether the queue currently holds no elements.
	IsEmpty() bool

	// IsShutdown reports whether Shutdown has been called.
	IsShutdown() bool

	// FreeSlots returns how many more elements can be enqueued before the
	// queue is full.
	FreeSlots() uint64

	// UsedSlots returns how many elements are currently queued.
	UsedSlots() uint64
}
