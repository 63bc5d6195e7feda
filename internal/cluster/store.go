package cluster

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store persists clusters. Implementations enforce the lock invariant at the
// storage layer: ApplyAIMetadata never touches a locked cluster's label,
// summary, or keywords, regardless of what the caller passes.
type Store interface {
	Create(ctx context.Context, c Cluster) (Cluster, error)
	Get(ctx context.Context, id string) (Cluster, error)
	ListByCourse(ctx context.Context, courseID string) ([]Cluster, error)

	// FindByLabel matches the effective label case-insensitively (folded
	// form) within a course. Returns ErrNotFound when no cluster matches.
	FindByLabel(ctx context.Context, courseID, label string) (Cluster, error)

	// Rename sets the manual label and locks the cluster: manual edits
	// self-lock.
	Rename(ctx context.Context, id, label string) (Cluster, error)

	// SetLocked flips the lock without touching labels.
	SetLocked(ctx context.Context, id string, locked bool) (Cluster, error)

	// ApplyAIMetadata updates topic label, summary, and keywords from an AI
	// run. On a locked cluster it returns the cluster unchanged.
	ApplyAIMetadata(ctx context.Context, id, label, summary string, keywords []string) (Cluster, error)

	// SetAggregates writes recomputed question_count/avg_difficulty.
	SetAggregates(ctx context.Context, id string, count int, avg float64) error

	Delete(ctx context.Context, id string) error
}

// MemoryStore is an in-memory implementation of Store.
type MemoryStore struct {
	mu       sync.RWMutex
	clusters map[string]Cluster
}

// NewMemoryStore creates a new in-memory cluster store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{clusters: make(map[string]Cluster)}
}

func cloneCluster(c Cluster) Cluster {
	if c.Keywords != nil {
		c.Keywords = append([]string{}, c.Keywords...)
	}
	return c
}

func (s *MemoryStore) Create(ctx context.Context, c Cluster) (Cluster, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	s.clusters[c.ID] = cloneCluster(c)
	return c, nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (Cluster, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.clusters[id]
	if !ok {
		return Cluster{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return cloneCluster(c), nil
}

func (s *MemoryStore) ListByCourse(ctx context.Context, courseID string) ([]Cluster, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Cluster
	for _, c := range s.clusters {
		if c.CourseID == courseID {
			out = append(out, cloneCluster(c))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].QuestionCount != out[j].QuestionCount {
			return out[i].QuestionCount > out[j].QuestionCount
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) FindByLabel(ctx context.Context, courseID, label string) (Cluster, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	folded := FoldLabel(label)
	for _, c := range s.clusters {
		if c.CourseID == courseID && FoldLabel(c.Label()) == folded {
			return cloneCluster(c), nil
		}
	}
	return Cluster{}, fmt.Errorf("%w: label %q", ErrNotFound, label)
}

func (s *MemoryStore) Rename(ctx context.Context, id, label string) (Cluster, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.clusters[id]
	if !ok {
		return Cluster{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	c.ManualLabel = label
	c.IsLocked = true
	c.UpdatedAt = time.Now().UTC()
	s.clusters[id] = c
	return cloneCluster(c), nil
}

func (s *MemoryStore) SetLocked(ctx context.Context, id string, locked bool) (Cluster, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.clusters[id]
	if !ok {
		return Cluster{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	c.IsLocked = locked
	c.UpdatedAt = time.Now().UTC()
	s.clusters[id] = c
	return cloneCluster(c), nil
}

func (s *MemoryStore) ApplyAIMetadata(ctx context.Context, id, label, summary string, keywords []string) (Cluster, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.clusters[id]
	if !ok {
		return Cluster{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if c.IsLocked {
		return cloneCluster(c), nil
	}

	c.TopicLabel = label
	c.Summary = summary
	c.Keywords = append([]string{}, keywords...)
	c.UpdatedAt = time.Now().UTC()
	s.clusters[id] = cloneCluster(c)
	return cloneCluster(c), nil
}

func (s *MemoryStore) SetAggregates(ctx context.Context, id string, count int, avg float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.clusters[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	c.QuestionCount = count
	c.AvgDifficulty = avg
	c.UpdatedAt = time.Now().UTC()
	s.clusters[id] = c
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.clusters[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.clusters, id)
	return nil
}
