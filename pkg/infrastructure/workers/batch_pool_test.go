package workers

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchPoolRunsEveryTask(t *testing.T) {
	pool := NewBatchPool(3, 0)

	var seen sync.Map
	errs := pool.Run(context.Background(), 10, func(ctx context.Context, index int) error {
		seen.Store(index, true)
		return nil
	})

	require.Len(t, errs, 10)
	for i := 0; i < 10; i++ {
		_, ok := seen.Load(i)
		assert.True(t, ok, "task %d did not run", i)
		assert.NoError(t, errs[i])
	}
}

func TestBatchPoolIsolatesFailures(t *testing.T) {
	pool := NewBatchPool(4, 0)
	boom := errors.New("lookup failed")

	errs := pool.Run(context.Background(), 8, func(ctx context.Context, index int) error {
		switch index {
		case 1:
			return boom
		case 5:
			panic("bad response")
		}
		return nil
	})

	assert.ErrorIs(t, errs[1], boom)
	assert.Error(t, errs[5])
	for _, i := range []int{0, 2, 3, 4, 6, 7} {
		assert.NoError(t, errs[i], "index %d", i)
	}

	idx, err := FirstError(errs)
	assert.Equal(t, 1, idx)
	assert.ErrorIs(t, err, boom)
}

func TestBatchPoolBoundsConcurrency(t *testing.T) {
	pool := NewBatchPool(2, 0)

	var inFlight, peak int32
	pool.Run(context.Background(), 6, func(ctx context.Context, index int) error {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return nil
	})

	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestBatchPoolDelaysBetweenBatches(t *testing.T) {
	pool := NewBatchPool(2, 20*time.Millisecond)

	start := time.Now()
	pool.Run(context.Background(), 5, func(ctx context.Context, index int) error { return nil })

	// three groups, two pauses
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestBatchPoolStopsOnCancel(t *testing.T) {
	pool := NewBatchPool(1, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())

	errs := pool.Run(ctx, 3, func(ctx context.Context, index int) error {
		cancel()
		return nil
	})

	assert.NoError(t, errs[0])
	assert.ErrorIs(t, errs[1], context.Canceled)
	assert.ErrorIs(t, errs[2], context.Canceled)
}
