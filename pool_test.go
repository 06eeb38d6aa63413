package fixturepool_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/schoolhub/fixturepool"
)

// widget is a minimal pooled fixture for exercising the generic pool.
type widget struct {
	id    int
	marks []string
}

func widgetPool(t *testing.T, size int, timeout time.Duration) *fixturepool.Pool[*widget] {
	t.Helper()

	pool, err := fixturepool.NewPool(fixturepool.PoolConfig[*widget]{
		Name:           "widgets",
		MaxSize:        size,
		AcquireTimeout: timeout,
		BatchPause:     -1,
		Factory: func(ctx context.Context, index int) (*widget, error) {
			return &widget{id: index}, nil
		},
		Cleanup: func(ctx context.Context, w *widget) error {
			w.marks = nil
			return nil
		},
	})
	require.NoError(t, err, "failed to create pool")
	require.NoError(t, pool.Initialize(context.Background()), "failed to initialize pool")
	return pool
}

func TestNewPool(t *testing.T) {
	factory := func(ctx context.Context, index int) (*widget, error) {
		return &widget{id: index}, nil
	}

	t.Run("returns error if name is missing", func(t *testing.T) {
		_, err := fixturepool.NewPool(fixturepool.PoolConfig[*widget]{MaxSize: 1, Factory: factory})
		require.Error(t, err)
	})

	t.Run("returns error if max size is not positive", func(t *testing.T) {
		_, err := fixturepool.NewPool(fixturepool.PoolConfig[*widget]{Name: "w", MaxSize: 0, Factory: factory})
		require.Error(t, err)
	})

	t.Run("returns error if factory is missing", func(t *testing.T) {
		_, err := fixturepool.NewPool(fixturepool.PoolConfig[*widget]{Name: "w", MaxSize: 1})
		require.Error(t, err)
	})
}

func TestPoolInitialize(t *testing.T) {
	ctx := context.Background()

	t.Run("builds exactly MaxSize fixtures with distinct indexes", func(t *testing.T) {
		var indexes sync.Map
		var calls atomic.Int32

		pool, err := fixturepool.NewPool(fixturepool.PoolConfig[*widget]{
			Name:       "init",
			MaxSize:    25,
			BatchSize:  10,
			BatchPause: -1,
			Factory: func(ctx context.Context, index int) (*widget, error) {
				if _, dup := indexes.LoadOrStore(index, struct{}{}); dup {
					return nil, fmt.Errorf("index %d built twice", index)
				}
				calls.Add(1)
				return &widget{id: index}, nil
			},
		})
		require.NoError(t, err)

		require.NoError(t, pool.Initialize(ctx))
		require.EqualValues(t, 25, calls.Load())

		stats := pool.Stats()
		require.Equal(t, 25, stats.Total)
		require.Equal(t, 25, stats.Idle)
		require.Equal(t, 0, stats.InUse)
	})

	t.Run("second call is a no-op", func(t *testing.T) {
		var calls atomic.Int32
		pool, err := fixturepool.NewPool(fixturepool.PoolConfig[*widget]{
			Name:       "init-twice",
			MaxSize:    3,
			BatchPause: -1,
			Factory: func(ctx context.Context, index int) (*widget, error) {
				calls.Add(1)
				return &widget{id: index}, nil
			},
		})
		require.NoError(t, err)

		require.NoError(t, pool.Initialize(ctx))
		require.NoError(t, pool.Initialize(ctx))
		require.EqualValues(t, 3, calls.Load())
		require.Equal(t, 3, pool.Stats().Total)
	})

	t.Run("factory failure surfaces as FactoryError", func(t *testing.T) {
		boom := errors.New("backing store down")
		pool, err := fixturepool.NewPool(fixturepool.PoolConfig[*widget]{
			Name:       "init-fail",
			MaxSize:    4,
			BatchSize:  2,
			BatchPause: -1,
			Factory: func(ctx context.Context, index int) (*widget, error) {
				if index == 2 {
					return nil, boom
				}
				return &widget{id: index}, nil
			},
		})
		require.NoError(t, err)

		err = pool.Initialize(ctx)
		require.Error(t, err)

		var factoryErr *fixturepool.FactoryError
		require.ErrorAs(t, err, &factoryErr)
		require.Equal(t, "init-fail", factoryErr.Pool)
		require.Equal(t, 2, factoryErr.Index)
		require.ErrorIs(t, err, boom)

		// A failed pool must not hand out fixtures.
		_, err = pool.Acquire(ctx, "t1")
		require.Error(t, err)
	})
}

func TestPoolAcquireRelease(t *testing.T) {
	ctx := context.Background()

	t.Run("acquire and release round trip", func(t *testing.T) {
		pool := widgetPool(t, 2, time.Second)

		w, err := pool.Acquire(ctx, "t1")
		require.NoError(t, err)
		require.Equal(t, 0, w.id)

		stats := pool.Stats()
		require.Equal(t, 1, stats.InUse)
		require.Equal(t, 1, stats.Idle)
		require.InDelta(t, 0.5, stats.Utilization, 1e-9)

		require.NoError(t, pool.Release(ctx, "t1"))
		stats = pool.Stats()
		require.Equal(t, 0, stats.InUse)
		require.Equal(t, 2, stats.Idle)
	})

	t.Run("rejects empty token", func(t *testing.T) {
		pool := widgetPool(t, 1, time.Second)
		_, err := pool.Acquire(ctx, "")
		require.Error(t, err)
	})

	t.Run("rejects a token that already holds a fixture", func(t *testing.T) {
		pool := widgetPool(t, 2, time.Second)

		_, err := pool.Acquire(ctx, "t1")
		require.NoError(t, err)
		_, err = pool.Acquire(ctx, "t1")
		require.Error(t, err)

		// The rejected acquire must not lose the idle fixture.
		require.Equal(t, 1, pool.Stats().Idle)
	})

	t.Run("releasing an unknown token is an error", func(t *testing.T) {
		pool := widgetPool(t, 1, time.Second)
		require.Error(t, pool.Release(ctx, "nobody"))
	})

	t.Run("cleanup failure still returns the fixture to idle", func(t *testing.T) {
		pool, err := fixturepool.NewPool(fixturepool.PoolConfig[*widget]{
			Name:       "poisoned",
			MaxSize:    1,
			BatchPause: -1,
			Factory: func(ctx context.Context, index int) (*widget, error) {
				return &widget{id: index}, nil
			},
			Cleanup: func(ctx context.Context, w *widget) error {
				return errors.New("cleanup always fails")
			},
		})
		require.NoError(t, err)
		require.NoError(t, pool.Initialize(ctx))

		_, err = pool.Acquire(ctx, "t1")
		require.NoError(t, err)
		require.NoError(t, pool.Release(ctx, "t1"))

		// Capacity must not shrink: the fixture is reacquirable.
		_, err = pool.Acquire(ctx, "t2")
		require.NoError(t, err)
	})

	t.Run("release restores default mutable state", func(t *testing.T) {
		pool := widgetPool(t, 1, time.Second)

		w, err := pool.Acquire(ctx, "t1")
		require.NoError(t, err)
		w.marks = append(w.marks, "dirty")

		require.NoError(t, pool.Release(ctx, "t1"))

		w2, err := pool.Acquire(ctx, "t2")
		require.NoError(t, err)
		require.Same(t, w, w2)
		require.Empty(t, w2.marks, "cleanup must have cleared scenario state")
	})
}

func TestPoolBlockingHandoff(t *testing.T) {
	ctx := context.Background()
	pool := widgetPool(t, 2, 5*time.Second)

	w1, err := pool.Acquire(ctx, "t1")
	require.NoError(t, err)
	require.Equal(t, 0, w1.id)

	w2, err := pool.Acquire(ctx, "t2")
	require.NoError(t, err)
	require.Equal(t, 1, w2.id)

	got := make(chan *widget, 1)
	go func() {
		w, err := pool.Acquire(ctx, "t3")
		if err != nil {
			t.Errorf("blocked acquire failed: %v", err)
		}
		got <- w
	}()

	// t3 must stay blocked while both fixtures are held.
	select {
	case w := <-got:
		t.Fatalf("acquire resolved with %v while pool was exhausted", w)
	case <-time.After(100 * time.Millisecond):
	}

	require.NoError(t, pool.Release(ctx, "t1"))

	select {
	case w := <-got:
		require.Same(t, w1, w, "t3 must receive the fixture t1 released")
		require.Empty(t, w.marks, "handoff must deliver a sanitized fixture")
	case <-time.After(time.Second):
		t.Fatal("acquire did not unblock after release")
	}
}

func TestPoolExhaustedTimeout(t *testing.T) {
	ctx := context.Background()
	timeout := 200 * time.Millisecond
	pool := widgetPool(t, 1, timeout)

	_, err := pool.Acquire(ctx, "holder")
	require.NoError(t, err)

	start := time.Now()
	_, err = pool.Acquire(ctx, "starved")
	elapsed := time.Since(start)

	var exhausted *fixturepool.PoolExhaustedError
	require.ErrorAs(t, err, &exhausted)
	require.Equal(t, "widgets", exhausted.Pool)
	require.Equal(t, "starved", exhausted.Token)
	require.GreaterOrEqual(t, elapsed, timeout, "failed before the timeout elapsed")
	require.Less(t, elapsed, 2*timeout, "failed far too late")
}

func TestPoolAcquireContextCancel(t *testing.T) {
	pool := widgetPool(t, 1, 10*time.Second)

	_, err := pool.Acquire(context.Background(), "holder")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = pool.Acquire(ctx, "canceled")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPoolConservationUnderLoad(t *testing.T) {
	ctx := context.Background()
	const size = 3
	const goroutines = 12
	const iterations = 25

	pool := widgetPool(t, size, 5*time.Second)

	var holders atomic.Int32
	var wg sync.WaitGroup

	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				token := fmt.Sprintf("g%d-i%d", g, i)
				if _, err := pool.Acquire(ctx, token); err != nil {
					t.Errorf("acquire failed: %v", err)
					return
				}

				if n := holders.Add(1); n > size {
					t.Errorf("%d concurrent holders exceeds pool size %d", n, size)
				}
				time.Sleep(time.Millisecond)
				holders.Add(-1)

				if err := pool.Release(ctx, token); err != nil {
					t.Errorf("release failed: %v", err)
					return
				}

				stats := pool.Stats()
				if stats.Idle+stats.InUse != stats.Total {
					t.Errorf("conservation violated: idle=%d inUse=%d total=%d",
						stats.Idle, stats.InUse, stats.Total)
				}
			}
		}(g)
	}

	wg.Wait()

	stats := pool.Stats()
	require.Equal(t, size, stats.Total)
	require.Equal(t, size, stats.Idle)
	require.Equal(t, 0, stats.InUse)
}

func TestPoolCleanup(t *testing.T) {
	ctx := context.Background()
	pool := widgetPool(t, 3, time.Second)

	_, err := pool.Acquire(ctx, "t1")
	require.NoError(t, err)
	_, err = pool.Acquire(ctx, "t2")
	require.NoError(t, err)

	pool.Cleanup(ctx)

	stats := pool.Stats()
	require.Equal(t, 0, stats.Total)
	require.Equal(t, 0, stats.InUse)

	// The pool is drained for good; acquiring must fail.
	_, err = pool.Acquire(ctx, "t3")
	require.Error(t, err)
}

func TestPoolStatsOldestHold(t *testing.T) {
	ctx := context.Background()
	pool := widgetPool(t, 2, time.Second)

	_, err := pool.Acquire(ctx, "t1")
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)

	stats := pool.Stats()
	require.GreaterOrEqual(t, stats.OldestHold, 20*time.Millisecond)
}
