package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solar_forecast/internal/metrics"
)

func TestLazy_LoadsOnce(t *testing.T) {
	var calls atomic.Int32
	c := New("models", func(_ context.Context, key string) (string, error) {
		calls.Add(1)
		return "model:" + key, nil
	}, nil)

	assert.Equal(t, Unloaded, c.State("a"))

	v, err := c.GetOrCreate(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "model:a", v)

	v, err = c.GetOrCreate(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "model:a", v)

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, Loaded, c.State("a"))
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, "models", c.Name())
}

func TestLazy_ReturnsSameHandle(t *testing.T) {
	type handle struct{ id int }
	c := New("handles", func(_ context.Context, key int) (*handle, error) {
		return &handle{id: key}, nil
	}, nil)

	first, err := c.GetOrCreate(context.Background(), 1)
	require.NoError(t, err)
	second, err := c.GetOrCreate(context.Background(), 1)
	require.NoError(t, err)

	assert.Same(t, first, second)
}

func TestLazy_FailureIsNotCached(t *testing.T) {
	var calls atomic.Int32
	c := New("scalers", func(_ context.Context, key int) (int, error) {
		if calls.Add(1) == 1 {
			return 0, errors.New("disk unavailable")
		}
		return key * 10, nil
	}, nil)

	_, err := c.GetOrCreate(context.Background(), 2)
	require.EqualError(t, err, "disk unavailable")
	assert.Equal(t, Failed, c.State(2))
	assert.Equal(t, 0, c.Len())

	_, ok := c.Peek(2)
	assert.False(t, ok)

	v, err := c.GetOrCreate(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 20, v)
	assert.Equal(t, Loaded, c.State(2))
	assert.Equal(t, int32(2), calls.Load())
}

func TestLazy_ConcurrentCallersShareOneLoad(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	c := New("models", func(_ context.Context, key string) (string, error) {
		calls.Add(1)
		<-release
		return key, nil
	}, nil)

	const callers = 32
	var wg sync.WaitGroup
	results := make([]string, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.GetOrCreate(context.Background(), "shared")
		}(i)
	}

	require.Eventually(t, func() bool { return c.State("shared") == Loading }, time.Second, time.Millisecond)
	close(release)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "shared", results[i])
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestLazy_DistinctKeysLoadIndependently(t *testing.T) {
	var calls atomic.Int32
	c := New("scalers", func(_ context.Context, key int) (int, error) {
		calls.Add(1)
		return key, nil
	}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(k int) {
			defer wg.Done()
			_, _ = c.GetOrCreate(context.Background(), k%2)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 2, c.Len())
	assert.LessOrEqual(t, calls.Load(), int32(10))
	assert.GreaterOrEqual(t, calls.Load(), int32(2))
}

func TestLazy_WaiterCanGiveUp(t *testing.T) {
	release := make(chan struct{})
	var loadErr atomic.Value
	c := New("models", func(ctx context.Context, key string) (string, error) {
		<-release
		if ctx.Err() != nil {
			loadErr.Store(ctx.Err())
		}
		return key, nil
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.GetOrCreate(ctx, "slow")
	assert.ErrorIs(t, err, context.Canceled)

	close(release)
	require.Eventually(t, func() bool { return c.State("slow") == Loaded }, time.Second, time.Millisecond)
	assert.Nil(t, loadErr.Load(), "load runs detached from the caller")

	v, err := c.GetOrCreate(context.Background(), "slow")
	require.NoError(t, err)
	assert.Equal(t, "slow", v)
}

func TestLazy_Invalidate(t *testing.T) {
	var calls atomic.Int32
	c := New("indexes", func(_ context.Context, key int) (int32, error) {
		return calls.Add(1), nil
	}, nil)

	v, _ := c.GetOrCreate(context.Background(), 1)
	assert.Equal(t, int32(1), v)

	c.Invalidate(1)
	assert.Equal(t, Unloaded, c.State(1))
	assert.Equal(t, 0, c.Len())

	v, _ = c.GetOrCreate(context.Background(), 1)
	assert.Equal(t, int32(2), v)
}

func TestLazy_InvalidateDuringLoadDiscardsResult(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	c := New("indexes", func(_ context.Context, key int) (int32, error) {
		n := calls.Add(1)
		if n == 1 {
			close(started)
			<-release
		}
		return n, nil
	}, nil)

	done := make(chan int32)
	go func() {
		v, _ := c.GetOrCreate(context.Background(), 1)
		done <- v
	}()

	<-started
	c.Invalidate(1)
	close(release)
	assert.Equal(t, int32(1), <-done, "waiters of the old load still get its value")

	_, ok := c.Peek(1)
	assert.False(t, ok)

	v, err := c.GetOrCreate(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int32(2), v)
}

func TestLazy_Reset(t *testing.T) {
	c := New("scalers", func(_ context.Context, key int) (int, error) {
		return key, nil
	}, nil)
	for i := 0; i < 3; i++ {
		_, _ = c.GetOrCreate(context.Background(), i)
	}
	require.Equal(t, 3, c.Len())

	c.Reset()

	assert.Equal(t, 0, c.Len())
	assert.Equal(t, Unloaded, c.State(0))
}

func TestLazy_ReportsToMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	fail := true
	c := New("models", func(_ context.Context, key string) (string, error) {
		if fail {
			fail = false
			return "", errors.New("missing")
		}
		return key, nil
	}, m)

	_, _ = c.GetOrCreate(context.Background(), "x")
	_, _ = c.GetOrCreate(context.Background(), "x")
	_, _ = c.GetOrCreate(context.Background(), "x")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHits.WithLabelValues("models")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheMisses.WithLabelValues("models")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLoadFailures.WithLabelValues("models")))
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "unloaded", Unloaded.String())
	assert.Equal(t, "loading", Loading.String())
	assert.Equal(t, "loaded", Loaded.String())
	assert.Equal(t, "failed", Failed.String())
	assert.Equal(t, "State(9)", State(9).String())
}
