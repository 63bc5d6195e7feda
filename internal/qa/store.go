package qa

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ListFilter narrows a QA listing. Zero values mean "no constraint".
type ListFilter struct {
	CourseID      string
	ClassID       string
	Category      string
	PublishedOnly bool
	Limit         int
	Offset        int
}

// Store persists QAs.
type Store interface {
	Create(ctx context.Context, qa QA) (QA, error)
	Get(ctx context.Context, id string) (QA, error)
	List(ctx context.Context, f ListFilter) ([]QA, error)
	Update(ctx context.Context, qa QA) (QA, error)

	// SetPublished flips the publish flag; publishing stamps the publish
	// date, unpublishing clears it.
	SetPublished(ctx context.Context, id string, published bool) (QA, error)

	// Search matches published QAs whose question, answer, or tags contain
	// the query, case-insensitively.
	Search(ctx context.Context, courseID, query string, limit int) ([]QA, error)

	Delete(ctx context.Context, id string) error
}

// MemoryStore is an in-memory implementation of Store.
type MemoryStore struct {
	mu  sync.RWMutex
	qas map[string]QA
}

// NewMemoryStore creates a new in-memory QA store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{qas: make(map[string]QA)}
}

func cloneQA(q QA) QA {
	if q.Tags != nil {
		q.Tags = append([]string{}, q.Tags...)
	}
	if q.SourceQuestionIDs != nil {
		q.SourceQuestionIDs = append([]string{}, q.SourceQuestionIDs...)
	}
	if q.PublishDate != nil {
		d := *q.PublishDate
		q.PublishDate = &d
	}
	return q
}

func (s *MemoryStore) Create(ctx context.Context, qa QA) (QA, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if qa.ID == "" {
		qa.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	qa.CreatedAt = now
	qa.UpdatedAt = now
	s.qas[qa.ID] = cloneQA(qa)
	return qa, nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (QA, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	qa, ok := s.qas[id]
	if !ok {
		return QA{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return cloneQA(qa), nil
}

func (s *MemoryStore) List(ctx context.Context, f ListFilter) ([]QA, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []QA
	for _, qa := range s.qas {
		if f.CourseID != "" && qa.CourseID != f.CourseID {
			continue
		}
		if f.ClassID != "" && qa.ClassID != f.ClassID {
			continue
		}
		if f.Category != "" && qa.Category != f.Category {
			continue
		}
		if f.PublishedOnly && !qa.IsPublished {
			continue
		}
		out = append(out, cloneQA(qa))
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})

	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return nil, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *MemoryStore) Update(ctx context.Context, qa QA) (QA, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.qas[qa.ID]
	if !ok {
		return QA{}, fmt.Errorf("%w: %s", ErrNotFound, qa.ID)
	}

	qa.CreatedAt = existing.CreatedAt
	qa.UpdatedAt = time.Now().UTC()
	s.qas[qa.ID] = cloneQA(qa)
	return cloneQA(qa), nil
}

func (s *MemoryStore) SetPublished(ctx context.Context, id string, published bool) (QA, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	qa, ok := s.qas[id]
	if !ok {
		return QA{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	qa.IsPublished = published
	if published {
		now := time.Now().UTC()
		qa.PublishDate = &now
	} else {
		qa.PublishDate = nil
	}
	qa.UpdatedAt = time.Now().UTC()
	s.qas[id] = qa
	return cloneQA(qa), nil
}

func (s *MemoryStore) Search(ctx context.Context, courseID, query string, limit int) ([]QA, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(query))
	var out []QA
	for _, qa := range s.qas {
		if qa.CourseID != courseID || !qa.IsPublished {
			continue
		}
		if needle != "" && !qaMatches(qa, needle) {
			continue
		}
		out = append(out, cloneQA(qa))
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func qaMatches(qa QA, needle string) bool {
	if strings.Contains(strings.ToLower(qa.Question), needle) {
		return true
	}
	if strings.Contains(strings.ToLower(qa.Answer), needle) {
		return true
	}
	for _, tag := range qa.Tags {
		if strings.Contains(strings.ToLower(tag), needle) {
			return true
		}
	}
	return false
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.qas[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.qas, id)
	return nil
}
