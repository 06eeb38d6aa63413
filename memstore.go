package fixturepool

import (
	"context"
	"fmt"
	"sync"
)

// MemStore is an in-memory Store, useful when exercising pools without a
// live backing store. It records one row per fixture and applies the same
// reset semantics as the Postgres store.
type MemStore struct {
	mu       sync.Mutex
	accounts map[string]Account
	courses  map[string]Course
	articles map[string]Article
	events   map[string]Event
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		accounts: make(map[string]Account),
		courses:  make(map[string]Course),
		articles: make(map[string]Article),
		events:   make(map[string]Event),
	}
}

func (s *MemStore) CreateAccount(ctx context.Context, a *Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[a.ID] = *a
	return nil
}

func (s *MemStore) CreateCourse(ctx context.Context, c *Course) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.courses[c.ID] = *c
	return nil
}

func (s *MemStore) CreateArticle(ctx context.Context, a *Article) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.articles[a.ID] = *a
	return nil
}

func (s *MemStore) CreateEvent(ctx context.Context, e *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[e.ID] = *e
	return nil
}

func (s *MemStore) ResetAccount(ctx context.Context, a *Account) error {
	return nil
}

func (s *MemStore) ResetCourse(ctx context.Context, c *Course) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.courses[c.ID]
	if !ok {
		return fmt.Errorf("unknown course %s", c.ID)
	}
	row.Enrollments = nil
	row.Published = true
	s.courses[c.ID] = row
	return nil
}

func (s *MemStore) ResetArticle(ctx context.Context, a *Article) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.articles[a.ID]
	if !ok {
		return fmt.Errorf("unknown article %s", a.ID)
	}
	row.Published = true
	s.articles[a.ID] = row
	return nil
}

func (s *MemStore) ResetEvent(ctx context.Context, e *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.events[e.ID]
	if !ok {
		return fmt.Errorf("unknown event %s", e.ID)
	}
	row.Attendees = nil
	s.events[e.ID] = row
	return nil
}

// Count returns how many fixture rows the store holds across all tables.
func (s *MemStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.accounts) + len(s.courses) + len(s.articles) + len(s.events)
}
