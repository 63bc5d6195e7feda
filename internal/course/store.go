package course

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store persists courses.
type Store interface {
	Create(ctx context.Context, c Course) (Course, error)
	Get(ctx context.Context, id string) (Course, error)
	List(ctx context.Context) ([]Course, error)
	SetActive(ctx context.Context, id string, active bool) (Course, error)
}

// MemoryStore is an in-memory implementation of Store.
type MemoryStore struct {
	mu      sync.RWMutex
	courses map[string]Course
}

// NewMemoryStore creates a new in-memory course store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{courses: make(map[string]Course)}
}

func (s *MemoryStore) Create(ctx context.Context, c Course) (Course, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	s.courses[c.ID] = c
	return c, nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (Course, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.courses[id]
	if !ok {
		return Course{}, ErrNotFound
	}
	return c, nil
}

func (s *MemoryStore) List(ctx context.Context) ([]Course, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Course, 0, len(s.courses))
	for _, c := range s.courses {
		out = append(out, c)
	}
	return out, nil
}

func (s *MemoryStore) SetActive(ctx context.Context, id string, active bool) (Course, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.courses[id]
	if !ok {
		return Course{}, ErrNotFound
	}
	c.IsActive = active
	c.UpdatedAt = time.Now().UTC()
	s.courses[id] = c
	return c, nil
}
