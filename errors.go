package fixturepool

import (
	"fmt"
	"time"
)

// PoolExhaustedError is returned by Acquire when no fixture became idle
// within the acquisition timeout. It is never retried internally; a caller
// hitting this has a real capacity problem and should fail the scenario.
type PoolExhaustedError struct {
	Pool    string
	Token   string
	Timeout time.Duration
}

func (e *PoolExhaustedError) Error() string {
	return fmt.Sprintf("pool %q: no fixture became idle within %s (token %q)", e.Pool, e.Timeout, e.Token)
}

// PoolNotFoundError is returned when a fixture kind was requested that the
// manager never declared. This is a programming error and must not be retried.
type PoolNotFoundError struct {
	Kind     string
	WorkerID string
}

func (e *PoolNotFoundError) Error() string {
	return fmt.Sprintf("worker %q has no pool for fixture kind %q", e.WorkerID, e.Kind)
}

// FactoryError wraps a fixture factory failure during pool population.
// Initialization is aborted and the pool must be treated as unusable.
type FactoryError struct {
	Pool  string
	Index int
	Err   error
}

func (e *FactoryError) Error() string {
	return fmt.Sprintf("pool %q: factory failed at index %d: %v", e.Pool, e.Index, e.Err)
}

func (e *FactoryError) Unwrap() error { return e.Err }

// ConnectionError wraps a failure to establish the shared backing-store
// connection. The establishing state is cleared on failure, so a subsequent
// call retries cleanly.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to establish shared connection: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }
