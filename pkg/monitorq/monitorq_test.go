package monitorq

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// waitTimeout is how long tests wait for a goroutine that is expected to
// unblock. Generous so slow CI machines don't flake.
const waitTimeout = 5 * time.Second

// settleTime is how long tests wait before asserting that a goroutine is
// still blocked.
const settleTime = 50 * time.Millisecond

func TestNewPanicsOnNonPositiveCapacity(t *testing.T) {
	require.Panics(t, func() { New[int](0) })
	require.Panics(t, func() { New[int](-3) })
}

func TestNewInitialState(t *testing.T) {
	q := New[string](4)
	assert.True(t, q.IsEmpty())
	assert.False(t, q.IsShutdown())
	assert.Equal(t, uint64(0), q.UsedSlots())
	assert.Equal(t, uint64(4), q.FreeSlots())
	assert.Equal(t, 4, q.Cap())
}

func TestFIFOOrder(t *testing.T) {
	const n = 1000
	q := New[*int](n)

	pointers := make([]*int, n)
	for i := 0; i < n; i++ {
		p := new(int)
		*p = i
		pointers[i] = p
		q.Enqueue(p)
	}

	for i := 0; i < n; i++ {
		got, ok := q.Dequeue()
		require.True(t, ok, "dequeue %d", i)
		// Pointer identity, not just value equality.
		require.Same(t, pointers[i], got, "order violated at index %d", i)
	}
	assert.True(t, q.IsEmpty())
}

func TestFIFOOrderWithWrapAround(t *testing.T) {
	// Small capacity forces the ring indices through many wrap cycles.
	const capacity = 7
	const n = 10 * capacity
	q := New[int](capacity)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			q.Enqueue(i)
		}
	}()

	for i := 0; i < n; i++ {
		got, ok := q.Dequeue()
		require.True(t, ok)
		require.Equal(t, i, got)
	}
	wg.Wait()
	assert.True(t, q.IsEmpty())
}

// TestCapacityTwoScenario walks the exact scenario the queue was designed
// around: capacity=2, the third enqueue must block until a slot frees.
func TestCapacityTwoScenario(t *testing.T) {
	q := New[string](2)
	q.Enqueue("A")
	q.Enqueue("B")

	cDone := make(chan struct{})
	go func() {
		q.Enqueue("C") // must block, queue is full
		close(cDone)
	}()

	select {
	case <-cDone:
		t.Fatal("enqueue on a full queue did not block")
	case <-time.After(settleTime):
	}

	got, ok := q.Dequeue()
	require.True(t, ok)
	assert.Equal(t, "A", got)

	select {
	case <-cDone:
	case <-time.After(waitTimeout):
		t.Fatal("blocked enqueue did not resume after a slot freed")
	}

	got, ok = q.Dequeue()
	require.True(t, ok)
	assert.Equal(t, "B", got)

	got, ok = q.Dequeue()
	require.True(t, ok)
	assert.Equal(t, "C", got)

	assert.True(t, q.IsEmpty())
}

func TestCapacityNeverExceeded(t *testing.T) {
	const capacity = 8
	q := New[int](capacity)
	var stop atomic.Bool
	var workWg sync.WaitGroup

	violations := make(chan uint64, 1)
	monitorDone := make(chan struct{})
	go func() {
		defer close(monitorDone)
		for !stop.Load() {
			if used := q.UsedSlots(); used > capacity {
				select {
				case violations <- used:
				default:
				}
				return
			}
		}
	}()

	for p := 0; p < 4; p++ {
		workWg.Add(1)
		go func() {
			defer workWg.Done()
			for i := 0; i < 500; i++ {
				q.Enqueue(i)
			}
		}()
	}
	for c := 0; c < 4; c++ {
		workWg.Add(1)
		go func() {
			defer workWg.Done()
			for i := 0; i < 500; i++ {
				q.Dequeue()
			}
		}()
	}

	done := make(chan struct{})
	go func() { workWg.Wait(); close(done) }()

	// The producer/consumer counts are balanced, so this terminates.
	select {
	case used := <-violations:
		t.Fatalf("capacity invariant violated: used=%d > capacity=%d", used, capacity)
	case <-time.After(waitTimeout):
		t.Fatal("stress run did not finish in time")
	case <-done:
	}
	stop.Store(true)
	<-monitorDone
}

func TestShutdownDrain(t *testing.T) {
	const k = 5
	q := New[int](8)
	for i := 0; i < k; i++ {
		q.Enqueue(i)
	}
	q.Shutdown()

	// The k buffered items come out in order.
	for i := 0; i < k; i++ {
		got, ok := q.Dequeue()
		require.True(t, ok, "drain %d", i)
		require.Equal(t, i, got)
	}

	// The (k+1)th dequeue returns the empty sentinel without blocking.
	start := time.Now()
	got, ok := q.Dequeue()
	assert.False(t, ok)
	assert.Zero(t, got)
	assert.Less(t, time.Since(start), waitTimeout/2, "sentinel dequeue blocked")
}

func TestEnqueueAfterShutdownIsDropped(t *testing.T) {
	q := New[string](1)
	q.Shutdown()

	done := make(chan struct{})
	go func() {
		q.Enqueue("X")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(waitTimeout):
		t.Fatal("enqueue on a shut-down queue blocked")
	}

	assert.True(t, q.IsEmpty(), "item must not be stored after shutdown")
	got, ok := q.Dequeue()
	assert.False(t, ok)
	assert.Zero(t, got)
}

func TestShutdownWakesBlockedDequeuers(t *testing.T) {
	q := New[int](4)
	const waiters = 3

	var wg sync.WaitGroup
	wg.Add(waiters)
	for i := 0; i < waiters; i++ {
		go func() {
			defer wg.Done()
			_, ok := q.Dequeue() // blocks, queue is empty
			assert.False(t, ok)
		}()
	}

	time.Sleep(settleTime)
	q.Shutdown()

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(waitTimeout):
		t.Fatal("blocked dequeuers were not woken by shutdown")
	}
}

func TestShutdownWakesBlockedEnqueuers(t *testing.T) {
	q := New[int](1)
	q.Enqueue(0) // fill the queue
	const waiters = 3

	var wg sync.WaitGroup
	wg.Add(waiters)
	for i := 0; i < waiters; i++ {
		i := i
		go func() {
			defer wg.Done()
			q.Enqueue(i + 1) // blocks, queue is full; dropped on shutdown
		}()
	}

	time.Sleep(settleTime)
	q.Shutdown()

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(waitTimeout):
		t.Fatal("blocked enqueuers were not woken by shutdown")
	}

	// Only the pre-shutdown item survives.
	got, ok := q.Dequeue()
	require.True(t, ok)
	assert.Equal(t, 0, got)
	_, ok = q.Dequeue()
	assert.False(t, ok)
}

func TestShutdownIdempotent(t *testing.T) {
	q := New[int](2)
	q.Enqueue(42)

	for i := 0; i < 5; i++ {
		q.Shutdown()
	}
	assert.True(t, q.IsShutdown())

	got, ok := q.Dequeue()
	require.True(t, ok)
	assert.Equal(t, 42, got)
}

func TestConcurrentShutdown(t *testing.T) {
	q := New[int](2)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.Shutdown()
		}()
	}
	wg.Wait()
	assert.True(t, q.IsShutdown())
}

func TestNilQueueIsSafe(t *testing.T) {
	var q *Queue[*int]

	assert.NotPanics(t, func() { q.Enqueue(new(int)) })
	assert.NotPanics(t, func() { q.Shutdown() })
	assert.NotPanics(t, func() { q.Close() })

	got, ok := q.Dequeue()
	assert.False(t, ok)
	assert.Nil(t, got)

	assert.True(t, q.IsEmpty())
	assert.True(t, q.IsShutdown())
	assert.Equal(t, uint64(0), q.UsedSlots())
	assert.Equal(t, uint64(0), q.FreeSlots())
	assert.Equal(t, 0, q.Cap())
}

func TestCloseDropsBufferedItems(t *testing.T) {
	q := New[*int](4)
	q.Enqueue(new(int))
	q.Enqueue(new(int))

	q.Close()
	assert.True(t, q.IsShutdown())
	assert.True(t, q.IsEmpty())

	got, ok := q.Dequeue()
	assert.False(t, ok)
	assert.Nil(t, got)

	// Operations after Close stay safe no-ops.
	q.Enqueue(new(int))
	assert.True(t, q.IsEmpty())
	assert.NotPanics(t, func() { q.Close() })
}

func TestCloseWakesWaiters(t *testing.T) {
	q := New[int](1)
	q.Enqueue(1) // full

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		q.Enqueue(2) // blocks until Close
	}()
	go func() {
		defer wg.Done()
		for {
			if _, ok := q.Dequeue(); !ok {
				return
			}
		}
	}()

	time.Sleep(settleTime)
	q.Close()

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(waitTimeout):
		t.Fatal("Close did not release blocked goroutines")
	}
}

// TestConcurrentProducersConsumers checks that under contention every
// item enqueued before shutdown is consumed exactly once.
func TestConcurrentProducersConsumers(t *testing.T) {
	const producers = 8
	const consumers = 8
	const perProducer = 1000

	q := New[int](64)

	var sumProduced int64
	var sumConsumed int64
	var consumedCount int64

	var prodWg sync.WaitGroup
	prodWg.Add(producers)
	for p := 0; p < producers; p++ {
		p := p
		go func() {
			defer prodWg.Done()
			for i := 0; i < perProducer; i++ {
				v := p*perProducer + i
				q.Enqueue(v)
				atomic.AddInt64(&sumProduced, int64(v))
			}
		}()
	}

	var consWg sync.WaitGroup
	consWg.Add(consumers)
	for c := 0; c < consumers; c++ {
		go func() {
			defer consWg.Done()
			for {
				v, ok := q.Dequeue()
				if !ok {
					return
				}
				atomic.AddInt64(&sumConsumed, int64(v))
				atomic.AddInt64(&consumedCount, 1)
			}
		}()
	}

	prodWg.Wait()
	q.Shutdown()
	consWg.Wait()

	assert.Equal(t, int64(producers*perProducer), consumedCount)
	assert.Equal(t, sumProduced, sumConsumed)
	assert.True(t, q.IsEmpty())
}

// TestPerProducerOrderPreserved verifies that even with concurrent
// producers, the items of any single producer come out in the order that
// producer enqueued them.
func TestPerProducerOrderPreserved(t *testing.T) {
	const producers = 4
	const perProducer = 500

	type tagged struct {
		producer int
		seq      int
	}
	q := New[tagged](32)

	var prodWg sync.WaitGroup
	prodWg.Add(producers)
	for p := 0; p < producers; p++ {
		p := p
		go func() {
			defer prodWg.Done()
			for i := 0; i < perProducer; i++ {
				q.Enqueue(tagged{producer: p, seq: i})
			}
		}()
	}

	lastSeen := make([]int, producers)
	for i := range lastSeen {
		lastSeen[i] = -1
	}
	var mu sync.Mutex

	var consWg sync.WaitGroup
	consWg.Add(2)
	for c := 0; c < 2; c++ {
		go func() {
			defer consWg.Done()
			for {
				v, ok := q.Dequeue()
				if !ok {
					return
				}
				mu.Lock()
				if v.seq <= lastSeen[v.producer] {
					t.Errorf("producer %d: saw seq %d after %d", v.producer, v.seq, lastSeen[v.producer])
				}
				lastSeen[v.producer] = v.seq
				mu.Unlock()
			}
		}()
	}

	prodWg.Wait()
	q.Shutdown()
	consWg.Wait()
}

func BenchmarkEnqueueDequeue(b *testing.B) {
	q := New[*int](1024)
	v := new(int)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		q.Enqueue(v)
		q.Dequeue()
	}
}

func BenchmarkContended(b *testing.B) {
	q := New[*int](1024)
	v := new(int)
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			q.Enqueue(v)
			q.Dequeue()
		}
	})
}
