package fixturepool

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// SetDial replaces the shared connection's dial function for tests.
func (s *SharedConn) SetDial(dial func(ctx context.Context, connString string) (*pgxpool.Pool, error)) {
	s.dial = dial
}

// Refs returns the current reference count.
func (s *SharedConn) Refs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refs
}

// HasPool reports whether a connection handle currently exists.
func (s *SharedConn) HasPool() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pool != nil
}

// TeardownPending reports whether a delayed teardown is scheduled.
func (s *SharedConn) TeardownPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.teardown != nil
}

// WorkerRegistrySize returns the number of registered managers.
func WorkerRegistrySize() int {
	managersMu.Lock()
	defer managersMu.Unlock()
	return len(managers)
}
