package testbench

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queuetools/monitorq/pkg/chanq"
	"github.com/queuetools/monitorq/pkg/monitorq"
)

func TestRunTimedTestDrainsEverything(t *testing.T) {
	q := monitorq.New[*int](64)
	cfg := Config{NumProducers: 4, NumConsumers: 4}

	produced, consumed, elapsed := RunTimedTest(q, cfg, 200*time.Millisecond, func(i int) *int {
		v := i
		return &v
	})

	require.Greater(t, produced, int64(0))
	// Producers stop before the shutdown, so every produced message is
	// either consumed mid-run or drained afterwards.
	assert.Equal(t, produced, consumed)
	assert.GreaterOrEqual(t, elapsed, 200*time.Millisecond)
	assert.True(t, q.IsShutdown())
	assert.True(t, q.IsEmpty())
}

func TestRunTimedTestChannelQueue(t *testing.T) {
	q := chanq.New[*int](64)
	cfg := Config{NumProducers: 2, NumConsumers: 2}

	produced, consumed, _ := RunTimedTest(q, cfg, 100*time.Millisecond, func(i int) *int {
		v := i
		return &v
	})

	require.Greater(t, produced, int64(0))
	assert.Equal(t, produced, consumed)
	assert.True(t, q.IsShutdown())
}

func TestRunTimedTestUnbalancedWorkers(t *testing.T) {
	// More producers than consumers forces sustained backpressure; the
	// run must still terminate and account for every message.
	q := monitorq.New[*int](8)
	cfg := Config{NumProducers: 8, NumConsumers: 1}

	produced, consumed, _ := RunTimedTest(q, cfg, 100*time.Millisecond, func(i int) *int {
		v := i
		return &v
	})

	require.Greater(t, produced, int64(0))
	assert.Equal(t, produced, consumed)
	assert.True(t, q.IsEmpty())
}
