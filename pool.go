package fixturepool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// FactoryFunc manufactures one fixture instance during pool population.
// It is called once per index in [0, maxSize) and must produce an instance
// whose identity is unique within the pool.
type FactoryFunc[T any] func(ctx context.Context, index int) (T, error)

// CleanupFunc restores a fixture's mutable state before it re-enters the
// idle set. It must not change the fixture's identity. Errors are logged by
// the pool and never propagated, so a misbehaving cleanup cannot shrink
// pool capacity.
type CleanupFunc[T any] func(ctx context.Context, resource T) error

// PoolConfig configures a single fixture pool.
type PoolConfig[T any] struct {
	// Name identifies the pool in errors, logs and statistics.
	Name string

	// MaxSize is the fixed number of fixtures the pool owns.
	MaxSize int

	// Factory builds the pool's fixtures during Initialize.
	Factory FactoryFunc[T]

	// Cleanup sanitizes a fixture on release. Optional.
	Cleanup CleanupFunc[T]

	// AcquireTimeout bounds how long Acquire waits for an idle fixture.
	// Zero means DefaultAcquireTimeout.
	AcquireTimeout time.Duration

	// BatchSize and BatchPause control how fast Initialize invokes the
	// factory. Zero values mean DefaultBatchSize and DefaultBatchPause;
	// a negative BatchPause disables the pause.
	BatchSize  int
	BatchPause time.Duration

	// Logger receives structured diagnostics. Defaults to a no-op logger.
	Logger *zap.Logger
}

func (c *PoolConfig[T]) validate() error {
	if c.Name == "" {
		return fmt.Errorf("Name is required")
	}
	if c.MaxSize < 1 {
		return fmt.Errorf("MaxSize must be positive, got %d", c.MaxSize)
	}
	if c.Factory == nil {
		return fmt.Errorf("Factory is required")
	}
	return nil
}

// entry carries the pool's bookkeeping for one fixture. A fixture is either
// in the idle channel or in the inUse map under its holder's token, never
// both.
type entry[T any] struct {
	value      T
	index      int
	inUse      bool
	acquiredAt time.Time
	acquiredBy string
}

// Pool is a fixed-capacity pool of homogeneous fixtures. Fixtures are built
// once by Initialize and handed out to at most one holder at a time, keyed
// by a caller-supplied correlation token. Release sanitizes the fixture and
// makes it available again.
//
// Waiting acquirers are woken by a freed fixture in no particular order;
// callers must not rely on acquisition ordering.
type Pool[T any] struct {
	name           string
	maxSize        int
	factory        FactoryFunc[T]
	cleanup        CleanupFunc[T]
	acquireTimeout time.Duration
	batchSize      int
	batchPause     time.Duration
	logger         *zap.Logger

	initOnce sync.Once
	initErr  error
	ready    atomic.Bool

	mu    sync.Mutex
	all   []*entry[T]
	idle  chan *entry[T]
	inUse map[string]*entry[T]
}

// NewPool creates an empty pool from the given configuration. Call
// Initialize to populate it before acquiring.
func NewPool[T any](config PoolConfig[T]) (*Pool[T], error) {
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid pool config: %w", err)
	}

	if config.AcquireTimeout <= 0 {
		config.AcquireTimeout = DefaultAcquireTimeout
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultBatchSize
	}
	if config.BatchPause == 0 {
		config.BatchPause = DefaultBatchPause
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	return &Pool[T]{
		name:           config.Name,
		maxSize:        config.MaxSize,
		factory:        config.Factory,
		cleanup:        config.Cleanup,
		acquireTimeout: config.AcquireTimeout,
		batchSize:      config.BatchSize,
		batchPause:     config.BatchPause,
		logger:         config.Logger,
		idle:           make(chan *entry[T], config.MaxSize),
		inUse:          make(map[string]*entry[T], config.MaxSize),
	}, nil
}

// Initialize builds exactly MaxSize fixtures by invoking the factory in
// batches, pausing between batches to avoid overwhelming the backing store.
// It is safe to call more than once; only the first call populates the pool
// and later calls return the first call's result.
func (p *Pool[T]) Initialize(ctx context.Context) error {
	p.initOnce.Do(func() {
		p.initErr = p.populate(ctx)
		if p.initErr == nil {
			p.ready.Store(true)
		}
	})
	return p.initErr
}

func (p *Pool[T]) populate(ctx context.Context) error {
	entries := make([]*entry[T], p.maxSize)

	for start := 0; start < p.maxSize; start += p.batchSize {
		end := min(start+p.batchSize, p.maxSize)

		g, gctx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			i := i
			g.Go(func() error {
				value, err := p.factory(gctx, i)
				if err != nil {
					return &FactoryError{Pool: p.name, Index: i, Err: err}
				}
				entries[i] = &entry[T]{value: value, index: i}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		if end < p.maxSize && p.batchPause > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("pool %q population interrupted: %w", p.name, ctx.Err())
			case <-time.After(p.batchPause):
			}
		}
	}

	p.mu.Lock()
	p.all = entries
	p.mu.Unlock()
	for _, e := range entries {
		p.idle <- e
	}

	p.logger.Info("fixture pool populated",
		zap.String("pool", p.name),
		zap.Int("size", p.maxSize))
	return nil
}

// Acquire removes an idle fixture from the pool, marks it held by token and
// returns it. When every fixture is in use it waits for a release, failing
// with a *PoolExhaustedError once the acquisition timeout elapses. The
// context can end the wait earlier.
//
// The token must be non-empty and unique per logical holder; the same token
// cannot hold two fixtures of one pool at once.
func (p *Pool[T]) Acquire(ctx context.Context, token string) (T, error) {
	var zero T
	if token == "" {
		return zero, fmt.Errorf("pool %q: correlation token is required", p.name)
	}
	if !p.ready.Load() {
		return zero, fmt.Errorf("pool %q is not initialized", p.name)
	}

	timer := time.NewTimer(p.acquireTimeout)
	defer timer.Stop()

	select {
	case e := <-p.idle:
		p.mu.Lock()
		if _, held := p.inUse[token]; held {
			p.mu.Unlock()
			p.idle <- e
			return zero, fmt.Errorf("pool %q: token %q already holds a fixture", p.name, token)
		}
		e.inUse = true
		e.acquiredAt = time.Now()
		e.acquiredBy = token
		p.inUse[token] = e
		p.mu.Unlock()
		return e.value, nil
	case <-ctx.Done():
		return zero, fmt.Errorf("pool %q: acquire canceled: %w", p.name, ctx.Err())
	case <-timer.C:
		return zero, &PoolExhaustedError{Pool: p.name, Token: token, Timeout: p.acquireTimeout}
	}
}

// Release gives the fixture held by token back to the pool. The cleanup
// function runs first to restore default mutable state; its errors are
// logged, never returned, and the fixture rejoins the idle set regardless.
// Releasing a token that holds nothing is an error.
func (p *Pool[T]) Release(ctx context.Context, token string) error {
	p.mu.Lock()
	e, ok := p.inUse[token]
	if ok {
		delete(p.inUse, token)
	}
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("pool %q: no fixture is held by token %q", p.name, token)
	}

	p.sanitize(ctx, e)

	p.mu.Lock()
	e.inUse = false
	e.acquiredAt = time.Time{}
	e.acquiredBy = ""
	// Capacity equals the number of entries ever created, so this send
	// cannot block while the mutex is held.
	p.idle <- e
	p.mu.Unlock()
	return nil
}

// sanitize runs the cleanup function, absorbing errors and panics so that a
// poisoned fixture still returns to the idle set.
func (p *Pool[T]) sanitize(ctx context.Context, e *entry[T]) {
	if p.cleanup == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("fixture cleanup panicked",
				zap.String("pool", p.name),
				zap.Int("index", e.index),
				zap.Any("panic", r))
		}
	}()
	if err := p.cleanup(ctx, e.value); err != nil {
		p.logger.Warn("fixture cleanup failed, returning fixture to pool anyway",
			zap.String("pool", p.name),
			zap.Int("index", e.index),
			zap.String("token", e.acquiredBy),
			zap.Error(err))
	}
}

// Stats returns a snapshot of the pool's bookkeeping without mutating state.
func (p *Pool[T]) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	total := len(p.all)
	inUse := len(p.inUse)
	stats := PoolStats{
		Name:  p.name,
		Total: total,
		InUse: inUse,
		Idle:  total - inUse,
	}
	if total > 0 {
		stats.Utilization = float64(inUse) / float64(total)
	}
	now := time.Now()
	for _, e := range p.inUse {
		if age := now.Sub(e.acquiredAt); age > stats.OldestHold {
			stats.OldestHold = age
		}
	}
	return stats
}

// Cleanup force-releases every outstanding fixture using its recorded token,
// then discards the pool's contents. Intended for worker shutdown only; the
// pool cannot be repopulated afterwards.
func (p *Pool[T]) Cleanup(ctx context.Context) {
	p.ready.Store(false)

	p.mu.Lock()
	tokens := make([]string, 0, len(p.inUse))
	for token := range p.inUse {
		tokens = append(tokens, token)
	}
	p.mu.Unlock()

	for _, token := range tokens {
		if err := p.Release(ctx, token); err != nil {
			p.logger.Warn("failed to reclaim leaked fixture during pool teardown",
				zap.String("pool", p.name),
				zap.String("token", token),
				zap.Error(err))
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for {
		select {
		case <-p.idle:
			continue
		default:
		}
		break
	}
	p.all = nil
	p.inUse = make(map[string]*entry[T])
}
