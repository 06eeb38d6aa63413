// Package testhelper provides shared helpers for integration tests that
// need a live PostgreSQL server.
package testhelper

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ConnString returns the connection string for the test database server,
// skipping the test when none is configured.
func ConnString(t *testing.T) string {
	t.Helper()

	connString := os.Getenv("DATABASE_URL")
	if connString == "" {
		t.Skip("DATABASE_URL is not set; skipping integration test")
	}
	return connString
}

// GetTestDBPool returns a pgxpool.Pool for testing, configured from the
// environment. The pool is closed when the test finishes.
func GetTestDBPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, ConnString(t))
	if err != nil {
		t.Fatalf("failed to create connection pool: %v", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		t.Skipf("test database is not reachable: %v", err)
	}

	t.Cleanup(pool.Close)
	return pool
}
