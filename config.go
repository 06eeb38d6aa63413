package fixturepool

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Defaults applied by Config.applyDefaults.
const (
	// DefaultAcquireTimeout bounds how long Acquire waits for an idle fixture.
	DefaultAcquireTimeout = 30 * time.Second

	// DefaultBatchSize is the number of factory calls run per population batch.
	DefaultBatchSize = 10

	// DefaultBatchPause is the pause between population batches, throttling
	// load on the backing store while pools fill up.
	DefaultBatchPause = 100 * time.Millisecond

	// DefaultGracePeriod is how long the shared connection stays open after
	// its reference count drops to zero.
	DefaultGracePeriod = 3 * time.Second
)

// Config holds the configuration for a per-worker fixture pool manager.
type Config struct {
	// WorkerID identifies the parallel test worker this manager belongs to.
	// It is embedded in every generated fixture identifier so that pools of
	// different workers never collide in the backing store.
	WorkerID string

	// ConnString is the PostgreSQL connection string for the backing store.
	// Required unless a custom Store is supplied.
	ConnString string

	// Store overrides the backing store used by the default fixture
	// factories. When nil, a Postgres store backed by the shared connection
	// is used.
	Store Store

	// Kinds declares the pools the manager owns. When nil, DefaultKinds is
	// used.
	Kinds []KindSpec

	// AcquireTimeout bounds how long Acquire waits for an idle fixture.
	// Individual kinds may override it via KindSpec.AcquireTimeout.
	AcquireTimeout time.Duration

	// BatchSize and BatchPause control the rate-limited pool population.
	// A negative BatchPause disables the inter-batch pause entirely.
	BatchSize  int
	BatchPause time.Duration

	// GracePeriod controls the delayed teardown of the shared connection.
	GracePeriod time.Duration

	// Logger receives structured diagnostics. Defaults to a no-op logger.
	Logger *zap.Logger
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.WorkerID == "" {
		return fmt.Errorf("WorkerID is required")
	}

	if c.ConnString == "" && c.Store == nil {
		return fmt.Errorf("ConnString is required when no Store is supplied")
	}

	for _, k := range c.Kinds {
		if k.Kind == "" {
			return fmt.Errorf("kind name is required")
		}
		if k.Size < 1 {
			return fmt.Errorf("kind %q: Size must be positive, got %d", k.Kind, k.Size)
		}
		if k.Factory == nil {
			return fmt.Errorf("kind %q: Factory is required", k.Kind)
		}
	}

	return nil
}

// applyDefaults fills in zero-valued fields. It returns a copy so that the
// caller's Config is never mutated.
func (c *Config) applyDefaults() *Config {
	out := *c
	if out.AcquireTimeout <= 0 {
		out.AcquireTimeout = DefaultAcquireTimeout
	}
	if out.BatchSize <= 0 {
		out.BatchSize = DefaultBatchSize
	}
	if out.BatchPause == 0 {
		out.BatchPause = DefaultBatchPause
	}
	if out.GracePeriod <= 0 {
		out.GracePeriod = DefaultGracePeriod
	}
	if out.Logger == nil {
		out.Logger = zap.NewNop()
	}
	return &out
}
