package fixturepool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// SharedConnConfig configures a SharedConn.
type SharedConnConfig struct {
	// ConnString is the PostgreSQL connection string.
	ConnString string

	// GracePeriod is how long the connection stays open after the reference
	// count drops to zero. A Get arriving inside the window cancels the
	// pending teardown. Zero means DefaultGracePeriod.
	GracePeriod time.Duration

	// ConnectTimeout bounds connection establishment. Zero means 10s.
	ConnectTimeout time.Duration

	// Logger receives connection lifecycle diagnostics.
	Logger *zap.Logger
}

// SharedConn is a process-wide, reference-counted, lazily established handle
// to one backing-store connection pool. Establishment is shared: concurrent
// callers arriving while a connection is being opened all wait on the same
// in-flight attempt instead of dialing duplicates. When the reference count
// reaches zero the handle is closed only after a grace period, so a rapid
// release-then-acquire between consecutive scenarios does not pay
// reconnection cost.
type SharedConn struct {
	connString     string
	grace          time.Duration
	connectTimeout time.Duration
	logger         *zap.Logger
	dial           func(ctx context.Context, connString string) (*pgxpool.Pool, error)

	mu           sync.Mutex
	pool         *pgxpool.Pool
	refs         int
	establishing chan struct{}
	teardown     *time.Timer
}

// NewSharedConn creates a SharedConn. No connection is opened until the
// first Get.
func NewSharedConn(config SharedConnConfig) *SharedConn {
	if config.GracePeriod <= 0 {
		config.GracePeriod = DefaultGracePeriod
	}
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = 10 * time.Second
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	s := &SharedConn{
		connString:     config.ConnString,
		grace:          config.GracePeriod,
		connectTimeout: config.ConnectTimeout,
		logger:         config.Logger,
	}
	s.dial = s.connect
	return s
}

// Get returns the shared connection pool, establishing it on first use, and
// increments the reference count. Every successful Get must be paired with
// exactly one Put.
func (s *SharedConn) Get(ctx context.Context) (*pgxpool.Pool, error) {
	for {
		s.mu.Lock()
		if s.pool != nil {
			// Ready, or pending teardown that this Get cancels.
			if s.teardown != nil {
				s.teardown.Stop()
				s.teardown = nil
			}
			s.refs++
			pool := s.pool
			s.mu.Unlock()
			return pool, nil
		}

		if s.establishing != nil {
			// Another caller is already dialing; wait for it and re-check.
			done := s.establishing
			s.mu.Unlock()
			select {
			case <-done:
				continue
			case <-ctx.Done():
				return nil, fmt.Errorf("waiting for shared connection: %w", ctx.Err())
			}
		}

		done := make(chan struct{})
		s.establishing = done
		s.mu.Unlock()

		pool, err := s.dial(ctx, s.connString)

		s.mu.Lock()
		s.establishing = nil
		if err != nil {
			s.mu.Unlock()
			close(done)
			return nil, &ConnectionError{Err: err}
		}
		s.pool = pool
		s.refs = 1
		s.mu.Unlock()
		close(done)

		s.logger.Info("shared connection established")
		return pool, nil
	}
}

// Put decrements the reference count, floored at zero. When the count
// reaches zero a delayed teardown is scheduled; the connection closes only
// if the count is still zero when the grace period fires.
func (s *SharedConn) Put() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.refs > 0 {
		s.refs--
	}
	if s.refs != 0 || s.pool == nil {
		return
	}

	if s.teardown != nil {
		s.teardown.Stop()
	}
	s.teardown = time.AfterFunc(s.grace, s.closeIfIdle)
}

func (s *SharedConn) closeIfIdle() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.refs != 0 || s.pool == nil {
		return
	}
	s.pool.Close()
	s.pool = nil
	s.teardown = nil
	s.logger.Info("shared connection closed after idle grace period")
}

// Healthy reports whether the current handle answers a liveness probe. It
// returns false, never an error, when the handle is absent or the probe
// fails, so callers can decide whether to force recreation.
func (s *SharedConn) Healthy(ctx context.Context) bool {
	s.mu.Lock()
	pool := s.pool
	s.mu.Unlock()

	if pool == nil {
		return false
	}
	if err := pool.Ping(ctx); err != nil {
		s.logger.Warn("shared connection health probe failed", zap.Error(err))
		return false
	}
	return true
}

// connect is the default dial function: parse, open and verify with a ping.
func (s *SharedConn) connect(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	dctx, cancel := context.WithTimeout(ctx, s.connectTimeout)
	defer cancel()

	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	config.ConnConfig.ConnectTimeout = s.connectTimeout

	pool, err := pgxpool.NewWithConfig(dctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to open connection pool: %w", err)
	}

	if err := pool.Ping(dctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping backing store: %w", err)
	}
	return pool, nil
}
