package announcement

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ListFilter narrows an announcement listing. Zero values mean "no
// constraint". A ClassID filter also matches course-wide announcements,
// which carry no class.
type ListFilter struct {
	CourseID      string
	ClassID       string
	PublishedOnly bool
	Limit         int
	Offset        int
}

// Store persists announcements.
type Store interface {
	Create(ctx context.Context, a Announcement) (Announcement, error)
	Get(ctx context.Context, id string) (Announcement, error)
	List(ctx context.Context, f ListFilter) ([]Announcement, error)
	Update(ctx context.Context, a Announcement) (Announcement, error)

	// SetPublished flips the publish flag; publishing stamps the publish
	// date, unpublishing clears it.
	SetPublished(ctx context.Context, id string, published bool) (Announcement, error)

	Delete(ctx context.Context, id string) error
}

// MemoryStore is an in-memory implementation of Store.
type MemoryStore struct {
	mu            sync.RWMutex
	announcements map[string]Announcement
}

// NewMemoryStore creates a new in-memory announcement store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{announcements: make(map[string]Announcement)}
}

func cloneAnnouncement(a Announcement) Announcement {
	if a.RelatedQAIDs != nil {
		a.RelatedQAIDs = append([]string{}, a.RelatedQAIDs...)
	}
	if a.PublishDate != nil {
		d := *a.PublishDate
		a.PublishDate = &d
	}
	return a
}

func (s *MemoryStore) Create(ctx context.Context, a Announcement) (Announcement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if a.IsPublished && a.PublishDate == nil {
		a.PublishDate = &now
	}
	a.CreatedAt = now
	a.UpdatedAt = now
	s.announcements[a.ID] = cloneAnnouncement(a)
	return a, nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (Announcement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.announcements[id]
	if !ok {
		return Announcement{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return cloneAnnouncement(a), nil
}

func (s *MemoryStore) List(ctx context.Context, f ListFilter) ([]Announcement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Announcement
	for _, a := range s.announcements {
		if f.CourseID != "" && a.CourseID != f.CourseID {
			continue
		}
		if f.ClassID != "" && a.ClassID != "" && a.ClassID != f.ClassID {
			continue
		}
		if f.PublishedOnly && !a.IsPublished {
			continue
		}
		out = append(out, cloneAnnouncement(a))
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

func (s *MemoryStore) Update(ctx context.Context, a Announcement) (Announcement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.announcements[a.ID]
	if !ok {
		return Announcement{}, fmt.Errorf("%w: %s", ErrNotFound, a.ID)
	}

	a.IsPublished = existing.IsPublished
	a.PublishDate = existing.PublishDate
	a.CreatedBy = existing.CreatedBy
	a.CreatedAt = existing.CreatedAt
	a.UpdatedAt = time.Now().UTC()
	s.announcements[a.ID] = cloneAnnouncement(a)
	return cloneAnnouncement(a), nil
}

func (s *MemoryStore) SetPublished(ctx context.Context, id string, published bool) (Announcement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.announcements[id]
	if !ok {
		return Announcement{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	a.IsPublished = published
	if published {
		now := time.Now().UTC()
		a.PublishDate = &now
	} else {
		a.PublishDate = nil
	}
	a.UpdatedAt = time.Now().UTC()
	s.announcements[id] = a
	return cloneAnnouncement(a), nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.announcements[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.announcements, id)
	return nil
}
