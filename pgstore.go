package fixturepool

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

// pgStore implements Store against PostgreSQL. Every operation borrows the
// shared connection for its duration, so the connection's reference count
// tracks actual store activity and the idle grace period does its job
// between scenarios.
type pgStore struct {
	conn     *SharedConn
	workerID string

	schemaOnce sync.Once
	schemaErr  error
}

func newPGStore(conn *SharedConn, workerID string) *pgStore {
	return &pgStore{conn: conn, workerID: workerID}
}

// withPool runs fn with the shared connection pool, holding one reference
// for the duration of the call. The schema is bootstrapped on first use.
func (s *pgStore) withPool(ctx context.Context, fn func(pool *pgxpool.Pool) error) error {
	pool, err := s.conn.Get(ctx)
	if err != nil {
		return err
	}
	defer s.conn.Put()

	s.schemaOnce.Do(func() {
		s.schemaErr = ensureSchema(ctx, pool)
	})
	if s.schemaErr != nil {
		return fmt.Errorf("schema bootstrap failed: %w", s.schemaErr)
	}

	return fn(pool)
}

// ensureSchema creates the fixture tables if they don't exist.
func ensureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS pool_accounts (
			id TEXT PRIMARY KEY,
			worker_id TEXT NOT NULL,
			role TEXT NOT NULL,
			email TEXT UNIQUE NOT NULL,
			password TEXT NOT NULL,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS pool_courses (
			id TEXT PRIMARY KEY,
			worker_id TEXT NOT NULL,
			name TEXT NOT NULL,
			owner_id TEXT NOT NULL,
			published BOOLEAN NOT NULL DEFAULT TRUE,
			enrollments TEXT[] NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS pool_articles (
			id TEXT PRIMARY KEY,
			worker_id TEXT NOT NULL,
			title TEXT NOT NULL,
			body TEXT NOT NULL,
			published BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS pool_events (
			id TEXT PRIMARY KEY,
			worker_id TEXT NOT NULL,
			title TEXT NOT NULL,
			starts_at TIMESTAMPTZ NOT NULL,
			attendees TEXT[] NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`,
	}
	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create fixture table: %w", err)
		}
	}
	return nil
}

func (s *pgStore) CreateAccount(ctx context.Context, a *Account) error {
	return s.withPool(ctx, func(pool *pgxpool.Pool) error {
		_, err := pool.Exec(ctx, `
			INSERT INTO pool_accounts (id, worker_id, role, email, password)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE SET email = EXCLUDED.email, password = EXCLUDED.password
		`, a.ID, s.workerID, a.Role, a.Email, a.Password)
		if err != nil {
			return fmt.Errorf("failed to create account %s: %w", a.ID, err)
		}
		return nil
	})
}

func (s *pgStore) CreateCourse(ctx context.Context, c *Course) error {
	return s.withPool(ctx, func(pool *pgxpool.Pool) error {
		_, err := pool.Exec(ctx, `
			INSERT INTO pool_courses (id, worker_id, name, owner_id, published)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, published = EXCLUDED.published
		`, c.ID, s.workerID, c.Name, c.OwnerID, c.Published)
		if err != nil {
			return fmt.Errorf("failed to create course %s: %w", c.ID, err)
		}
		return nil
	})
}

func (s *pgStore) CreateArticle(ctx context.Context, a *Article) error {
	return s.withPool(ctx, func(pool *pgxpool.Pool) error {
		_, err := pool.Exec(ctx, `
			INSERT INTO pool_articles (id, worker_id, title, body, published)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title, body = EXCLUDED.body, published = EXCLUDED.published
		`, a.ID, s.workerID, a.Title, a.Body, a.Published)
		if err != nil {
			return fmt.Errorf("failed to create article %s: %w", a.ID, err)
		}
		return nil
	})
}

func (s *pgStore) CreateEvent(ctx context.Context, e *Event) error {
	return s.withPool(ctx, func(pool *pgxpool.Pool) error {
		_, err := pool.Exec(ctx, `
			INSERT INTO pool_events (id, worker_id, title, starts_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title, starts_at = EXCLUDED.starts_at
		`, e.ID, s.workerID, e.Title, e.StartsAt)
		if err != nil {
			return fmt.Errorf("failed to create event %s: %w", e.ID, err)
		}
		return nil
	})
}

func (s *pgStore) ResetAccount(ctx context.Context, a *Account) error {
	// Account rows carry no scenario state server-side; nothing to reset.
	return nil
}

func (s *pgStore) ResetCourse(ctx context.Context, c *Course) error {
	return s.withPool(ctx, func(pool *pgxpool.Pool) error {
		_, err := pool.Exec(ctx, `
			UPDATE pool_courses SET enrollments = '{}', published = TRUE WHERE id = $1
		`, c.ID)
		if err != nil {
			return fmt.Errorf("failed to reset course %s: %w", c.ID, err)
		}
		return nil
	})
}

func (s *pgStore) ResetArticle(ctx context.Context, a *Article) error {
	return s.withPool(ctx, func(pool *pgxpool.Pool) error {
		_, err := pool.Exec(ctx, `
			UPDATE pool_articles SET published = TRUE WHERE id = $1
		`, a.ID)
		if err != nil {
			return fmt.Errorf("failed to reset article %s: %w", a.ID, err)
		}
		return nil
	})
}

func (s *pgStore) ResetEvent(ctx context.Context, e *Event) error {
	return s.withPool(ctx, func(pool *pgxpool.Pool) error {
		_, err := pool.Exec(ctx, `
			UPDATE pool_events SET attendees = '{}' WHERE id = $1
		`, e.ID)
		if err != nil {
			return fmt.Errorf("failed to reset event %s: %w", e.ID, err)
		}
		return nil
	})
}
