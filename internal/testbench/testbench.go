package testbench

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/queuetools/monitorq/internal/queue"
)

// Config describes one concurrency setting: how many producers and how
// many consumers run against the queue.
type Config struct {
	NumProducers int `yaml:"producers" json:"num_producers"`
	NumConsumers int `yaml:"consumers" json:"num_consumers"`
}

// RunTimedTest spawns producers and consumers that run for the specified
// duration, measuring how many messages are actually enqueued/dequeued
// in that window. Once the duration expires, producers stop, the queue
// is shut down, and consumers drain whatever is still buffered before
// exiting — the same shutdown protocol real producer/consumer code uses.
// Returns the total messages enqueued, total consumed, and the actual
// elapsed time.
func RunTimedTest[T any, Q queue.BlockingQueue[T]](
	q Q,
	cfg Config,
	testDuration time.Duration,
	valueGenerator func(int) T,
) (producedCount int64, consumedCount int64, elapsed time.Duration) {

	ctx, cancel := context.WithTimeout(context.Background(), testDuration)
	defer cancel()

	var totalProduced int64
	var totalConsumed int64
	var msgIndex int64
	var productionDone atomic.Bool

	start := time.Now()

	var prodWg sync.WaitGroup
	prodWg.Add(cfg.NumProducers)
	for i := 0; i < cfg.NumProducers; i++ {
		go func() {
			defer prodWg.Done()
			for !productionDone.Load() {
				idx := atomic.AddInt64(&msgIndex, 1) - 1
				q.Enqueue(valueGenerator(int(idx)))
				atomic.AddInt64(&totalProduced, 1)
			}
		}()
	}

	var consWg sync.WaitGroup
	consWg.Add(cfg.NumConsumers)
	for i := 0; i < cfg.NumConsumers; i++ {
		go func() {
			defer consWg.Done()
			// Dequeue blocks until an item arrives and only reports
			// !ok once the queue is shut down and drained, so the
			// consumer loop needs no polling or sleeps.
			for {
				if _, ok := q.Dequeue(); !ok {
					return
				}
				atomic.AddInt64(&totalConsumed, 1)
			}
		}()
	}

	<-ctx.Done()
	productionDone.Store(true)

	// Producers may be parked in Enqueue on a full queue; the consumers
	// are still draining, so they unblock on their own.
	prodWg.Wait()

	// All producers are done, so everything counted as produced is in
	// the queue or already consumed. Shutdown releases the consumers
	// once the buffer is empty.
	q.Shutdown()
	consWg.Wait()

	elapsed = time.Since(start)
	producedCount = atomic.LoadInt64(&totalProduced)
	consumedCount = atomic.LoadInt64(&totalConsumed)
	return producedCount, consumedCount, elapsed
}
