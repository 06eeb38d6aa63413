package fixturepool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Default pool sizes installed by DefaultKinds.
const (
	defaultAdminAccounts   = 2
	defaultTeacherAccounts = 4
	defaultStudentAccounts = 8
	defaultEditorAccounts  = 2
	defaultCourses         = 4
	defaultArticles        = 4
	defaultEvents          = 4
)

// KindSpec declares one pool the manager owns: a named fixture kind, its
// target size and the factory/cleanup pair bound to it.
type KindSpec struct {
	Kind    string
	Size    int
	Factory FactoryFunc[Fixture]
	Cleanup CleanupFunc[Fixture]

	// AcquireTimeout overrides the manager-wide timeout for this kind.
	AcquireTimeout time.Duration
}

// Manager owns one fixture pool per declared kind for a single worker
// identity. Workers run concurrently in the same process group but never
// share pools; every generated fixture identifier embeds the worker ID so
// pools of different workers cannot collide in the backing store.
type Manager struct {
	workerID string
	config   *Config
	logger   *zap.Logger
	conn     *SharedConn
	store    Store

	initOnce sync.Once
	initErr  error

	connPinned bool

	mu    sync.RWMutex
	pools map[string]*Pool[Fixture]
}

var (
	managersMu sync.Mutex
	managers   = make(map[string]*Manager)
)

// ManagerFor returns the manager for the given worker ID, creating it on
// first call. Subsequent calls with the same worker ID return the same
// instance; the first caller's configuration wins.
func ManagerFor(workerID string, config *Config) (*Manager, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}

	managersMu.Lock()
	defer managersMu.Unlock()

	if m, ok := managers[workerID]; ok {
		return m, nil
	}

	cfg := *config
	cfg.WorkerID = workerID
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	applied := cfg.applyDefaults()

	m := &Manager{
		workerID: workerID,
		config:   applied,
		logger:   applied.Logger.With(zap.String("worker", workerID)),
		store:    applied.Store,
		pools:    make(map[string]*Pool[Fixture]),
	}
	if m.store == nil {
		m.conn = NewSharedConn(SharedConnConfig{
			ConnString:  applied.ConnString,
			GracePeriod: applied.GracePeriod,
			Logger:      m.logger,
		})
		m.store = newPGStore(m.conn, workerID)
	}

	managers[workerID] = m
	return m, nil
}

// ResetManagers discards the worker registry. Outstanding managers are not
// cleaned up; intended for isolating test runs from one another.
func ResetManagers() {
	managersMu.Lock()
	defer managersMu.Unlock()
	managers = make(map[string]*Manager)
}

// NewToken returns a fresh unguessable correlation token for one logical
// holder, typically one scenario.
func NewToken() string {
	return uuid.NewString()
}

// Initialize declares and populates every pool. It is idempotent: only the
// first call populates, later calls return the first call's result. A
// factory failure leaves the manager partially initialized and must be
// treated as a fatal start-up error.
func (m *Manager) Initialize(ctx context.Context) error {
	m.initOnce.Do(func() {
		m.initErr = m.buildPools(ctx)
	})
	return m.initErr
}

func (m *Manager) buildPools(ctx context.Context) error {
	// Pin the shared connection for the manager's lifetime so the grace
	// teardown never fires while pools are live. Released in Cleanup.
	if m.conn != nil {
		if _, err := m.conn.Get(ctx); err != nil {
			return err
		}
		m.mu.Lock()
		m.connPinned = true
		m.mu.Unlock()
	}

	kinds := m.config.Kinds
	if kinds == nil {
		kinds = DefaultKinds(m.workerID, m.store)
	}

	for _, spec := range kinds {
		timeout := spec.AcquireTimeout
		if timeout <= 0 {
			timeout = m.config.AcquireTimeout
		}

		pool, err := NewPool(PoolConfig[Fixture]{
			Name:           spec.Kind,
			MaxSize:        spec.Size,
			Factory:        spec.Factory,
			Cleanup:        spec.Cleanup,
			AcquireTimeout: timeout,
			BatchSize:      m.config.BatchSize,
			BatchPause:     m.config.BatchPause,
			Logger:         m.logger,
		})
		if err != nil {
			return fmt.Errorf("failed to declare pool %q: %w", spec.Kind, err)
		}
		if err := pool.Initialize(ctx); err != nil {
			return fmt.Errorf("failed to populate pool %q: %w", spec.Kind, err)
		}

		m.mu.Lock()
		m.pools[spec.Kind] = pool
		m.mu.Unlock()
	}

	m.logger.Info("fixture pools initialized", zap.Int("pools", len(kinds)))
	return nil
}

// Acquire obtains a fixture of the given kind for the holder identified by
// token. It fails with a *PoolNotFoundError for an undeclared kind and with
// a *PoolExhaustedError when the kind's pool stays empty past its timeout.
func (m *Manager) Acquire(ctx context.Context, kind, token string) (Fixture, error) {
	pool, err := m.pool(kind)
	if err != nil {
		return nil, err
	}
	return pool.Acquire(ctx, token)
}

// Release returns the fixture held by token to its kind's pool.
func (m *Manager) Release(ctx context.Context, f Fixture, token string) error {
	if f == nil {
		return fmt.Errorf("fixture is required")
	}
	pool, err := m.pool(f.FixtureKind())
	if err != nil {
		return err
	}
	return pool.Release(ctx, token)
}

func (m *Manager) pool(kind string) (*Pool[Fixture], error) {
	m.mu.RLock()
	pool, ok := m.pools[kind]
	m.mu.RUnlock()
	if !ok {
		return nil, &PoolNotFoundError{Kind: kind, WorkerID: m.workerID}
	}
	return pool, nil
}

// PoolStatistics returns a snapshot of every pool's bookkeeping keyed by
// kind name.
func (m *Manager) PoolStatistics() map[string]PoolStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := make(map[string]PoolStats, len(m.pools))
	for kind, pool := range m.pools {
		stats[kind] = pool.Stats()
	}
	return stats
}

// Cleanup force-reclaims every outstanding fixture, discards all pool
// contents and releases the manager's hold on the shared connection. The
// manager itself stays registered; only its pools are drained.
func (m *Manager) Cleanup(ctx context.Context) {
	m.mu.Lock()
	pools := make([]*Pool[Fixture], 0, len(m.pools))
	for _, pool := range m.pools {
		pools = append(pools, pool)
	}
	m.pools = make(map[string]*Pool[Fixture])
	pinned := m.connPinned
	m.connPinned = false
	m.mu.Unlock()

	for _, pool := range pools {
		pool.Cleanup(ctx)
	}

	if m.conn != nil && pinned {
		m.conn.Put()
	}

	m.logger.Info("fixture pools drained", zap.Int("pools", len(pools)))
}

// DefaultKinds declares the standard pool set for one worker: the four
// account-role pools plus content pools for courses, articles and events.
// Generated identifiers embed the worker ID and pool index, guaranteeing
// cross-worker uniqueness even though pools are process-local.
func DefaultKinds(workerID string, store Store) []KindSpec {
	return []KindSpec{
		accountKind(store, workerID, RoleAdmin, defaultAdminAccounts),
		accountKind(store, workerID, RoleTeacher, defaultTeacherAccounts),
		accountKind(store, workerID, RoleStudent, defaultStudentAccounts),
		accountKind(store, workerID, RoleEditor, defaultEditorAccounts),
		courseKind(store, workerID),
		articleKind(store, workerID),
		eventKind(store, workerID),
	}
}

func fixtureID(workerID, name string, index int) string {
	return fmt.Sprintf("w%s-%s-%d", workerID, name, index)
}

func accountKind(store Store, workerID, role string, size int) KindSpec {
	return KindSpec{
		Kind: role + "-account",
		Size: size,
		Factory: func(ctx context.Context, index int) (Fixture, error) {
			a := &Account{
				ID:       fixtureID(workerID, role, index),
				Role:     role,
				Email:    fmt.Sprintf("pool-w%s-%s-%d@schoolhub.test", workerID, role, index),
				Password: uuid.NewString(),
			}
			if err := store.CreateAccount(ctx, a); err != nil {
				return nil, err
			}
			return a, nil
		},
		Cleanup: func(ctx context.Context, f Fixture) error {
			a, ok := f.(*Account)
			if !ok {
				return fmt.Errorf("expected *Account, got %T", f)
			}
			return store.ResetAccount(ctx, a)
		},
	}
}

func courseKind(store Store, workerID string) KindSpec {
	return KindSpec{
		Kind: KindCourse,
		Size: defaultCourses,
		Factory: func(ctx context.Context, index int) (Fixture, error) {
			c := &Course{
				ID:        fixtureID(workerID, "course", index),
				Name:      fmt.Sprintf("Pooled Course w%s #%d", workerID, index),
				OwnerID:   fixtureID(workerID, RoleTeacher, index%defaultTeacherAccounts),
				Published: true,
			}
			if err := store.CreateCourse(ctx, c); err != nil {
				return nil, err
			}
			return c, nil
		},
		Cleanup: func(ctx context.Context, f Fixture) error {
			c, ok := f.(*Course)
			if !ok {
				return fmt.Errorf("expected *Course, got %T", f)
			}
			c.Enrollments = nil
			c.Published = true
			return store.ResetCourse(ctx, c)
		},
	}
}

func articleKind(store Store, workerID string) KindSpec {
	return KindSpec{
		Kind: KindArticle,
		Size: defaultArticles,
		Factory: func(ctx context.Context, index int) (Fixture, error) {
			a := &Article{
				ID:        fixtureID(workerID, "article", index),
				Title:     fmt.Sprintf("Pooled Article w%s #%d", workerID, index),
				Body:      "Placeholder body for end-to-end scenarios.",
				Published: true,
			}
			if err := store.CreateArticle(ctx, a); err != nil {
				return nil, err
			}
			return a, nil
		},
		Cleanup: func(ctx context.Context, f Fixture) error {
			a, ok := f.(*Article)
			if !ok {
				return fmt.Errorf("expected *Article, got %T", f)
			}
			a.Published = true
			return store.ResetArticle(ctx, a)
		},
	}
}

func eventKind(store Store, workerID string) KindSpec {
	return KindSpec{
		Kind: KindEvent,
		Size: defaultEvents,
		Factory: func(ctx context.Context, index int) (Fixture, error) {
			e := &Event{
				ID:       fixtureID(workerID, "event", index),
				Title:    fmt.Sprintf("Pooled Event w%s #%d", workerID, index),
				StartsAt: time.Now().Add(24 * time.Hour).Truncate(time.Hour),
			}
			if err := store.CreateEvent(ctx, e); err != nil {
				return nil, err
			}
			return e, nil
		},
		Cleanup: func(ctx context.Context, f Fixture) error {
			e, ok := f.(*Event)
			if !ok {
				return fmt.Errorf("expected *Event, got %T", f)
			}
			e.Attendees = nil
			return store.ResetEvent(ctx, e)
		},
	}
}
