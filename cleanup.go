package fixturepool

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// fixtureTables lists every table the Postgres store writes, in an order
// that is safe to sweep.
var fixtureTables = []string{
	"pool_events",
	"pool_articles",
	"pool_courses",
	"pool_accounts",
}

// CleanupWorker deletes every fixture row a worker left in the backing
// store. Useful from cleanup scripts or a TestMain after a crashed run;
// live managers of the same worker must be drained first.
func CleanupWorker(ctx context.Context, db *pgxpool.Pool, workerID string) error {
	if workerID == "" {
		return fmt.Errorf("workerID is required")
	}

	for _, table := range fixtureTables {
		_, err := db.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE worker_id = $1", table), workerID)
		if err != nil && !isUndefinedTable(err) {
			return fmt.Errorf("failed to sweep %s for worker %s: %w", table, workerID, err)
		}
	}
	return nil
}

// ListWorkers returns the distinct worker IDs that still have fixture rows
// in the backing store.
func ListWorkers(ctx context.Context, db *pgxpool.Pool) ([]string, error) {
	seen := make(map[string]struct{})
	for _, table := range fixtureTables {
		rows, err := db.Query(ctx, fmt.Sprintf("SELECT DISTINCT worker_id FROM %s", table))
		if err != nil {
			if isUndefinedTable(err) {
				continue
			}
			return nil, fmt.Errorf("failed to list workers in %s: %w", table, err)
		}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan worker id: %w", err)
			}
			seen[id] = struct{}{}
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to iterate workers in %s: %w", table, err)
		}
	}

	workers := make([]string, 0, len(seen))
	for id := range seen {
		workers = append(workers, id)
	}
	return workers, nil
}

// isUndefinedTable reports whether err is Postgres "relation does not
// exist", which during a sweep just means there is nothing to clean.
func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "42P01"
}
