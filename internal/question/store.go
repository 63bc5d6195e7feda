package question

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ListFilter narrows a question listing. Zero values mean "no constraint",
// except DELETED questions, which are excluded unless IncludeDeleted is set
// or Status explicitly asks for them.
type ListFilter struct {
	CourseID       string
	ClassID        string
	ClusterID      string
	Status         Status
	IncludeDeleted bool
	Limit          int
	Offset         int
}

// Store persists questions. Implementations serialize mutation per question
// so lifecycle and aggregate invariants hold under concurrent callers.
type Store interface {
	Create(ctx context.Context, q Question) (Question, error)
	Get(ctx context.Context, id string) (Question, error)
	List(ctx context.Context, f ListFilter) ([]Question, error)

	// Transition applies the lifecycle state machine atomically: on an
	// illegal move it returns InvalidTransitionError and changes nothing.
	Transition(ctx context.Context, id string, to Status, reason string) (Question, error)

	// ApplyAnalysis overwrites the AI-derived fields in one step; a question
	// is never left half-updated. Merged questions are rejected.
	ApplyAnalysis(ctx context.Context, id string, a Analysis) (Question, error)

	// ApplyDraft is last-write-wins on the draft (and summary when non-nil).
	ApplyDraft(ctx context.Context, id string, draft string, summary *string) (Question, error)

	// MarkMerged flips is_merged/merged_to_qa_id for all ids, or none: if
	// any id is missing or already merged the whole call fails untouched.
	MarkMerged(ctx context.Context, ids []string, qaID string) error

	// ReleaseCluster clears cluster_id on every member of a deleted cluster
	// and reports how many questions were released.
	ReleaseCluster(ctx context.Context, clusterID string) (int, error)

	// ClusterStats recomputes a cluster's live membership: count of active
	// members and mean difficulty over those with a score (0 when none).
	ClusterStats(ctx context.Context, clusterID string) (int, float64, error)

	// PendingForAnalysis returns unclustered PENDING questions for export to
	// the AI collaborator. A limit of zero or less falls back to
	// defaultAnalysisBatch.
	PendingForAnalysis(ctx context.Context, courseID string, limit int) ([]Question, error)
}

// defaultAnalysisBatch caps PendingForAnalysis when the caller passes no limit.
const defaultAnalysisBatch = 100

// MemoryStore is an in-memory implementation of Store.
type MemoryStore struct {
	mu        sync.RWMutex
	questions map[string]Question
}

// NewMemoryStore creates a new in-memory question store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{questions: make(map[string]Question)}
}

func cloneQuestion(q Question) Question {
	if q.Keywords != nil {
		q.Keywords = append([]string{}, q.Keywords...)
	}
	if q.DifficultyScore != nil {
		score := *q.DifficultyScore
		q.DifficultyScore = &score
	}
	return q
}

func (s *MemoryStore) Create(ctx context.Context, q Question) (Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	if q.Status == "" {
		q.Status = StatusPending
	}
	now := time.Now().UTC()
	q.CreatedAt = now
	q.UpdatedAt = now
	s.questions[q.ID] = cloneQuestion(q)
	return q, nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q, ok := s.questions[id]
	if !ok {
		return Question{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return cloneQuestion(q), nil
}

func (s *MemoryStore) List(ctx context.Context, f ListFilter) ([]Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Question
	for _, q := range s.questions {
		if f.CourseID != "" && q.CourseID != f.CourseID {
			continue
		}
		if f.ClassID != "" && q.ClassID != f.ClassID {
			continue
		}
		if f.ClusterID != "" && q.ClusterID != f.ClusterID {
			continue
		}
		if f.Status != "" {
			if q.Status != f.Status {
				continue
			}
		} else if q.Status == StatusDeleted && !f.IncludeDeleted {
			continue
		}
		out = append(out, cloneQuestion(q))
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

func (s *MemoryStore) Transition(ctx context.Context, id string, to Status, reason string) (Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.questions[id]
	if !ok {
		return Question{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if q.IsMerged {
		return Question{}, fmt.Errorf("%w: %s", ErrAlreadyMerged, id)
	}
	if err := checkTransition(q.Status, to); err != nil {
		return Question{}, err
	}

	q.Status = to
	if to == StatusRejected && reason != "" {
		q.RejectionReason = reason
	}
	q.UpdatedAt = time.Now().UTC()
	s.questions[id] = q
	return cloneQuestion(q), nil
}

func (s *MemoryStore) ApplyAnalysis(ctx context.Context, id string, a Analysis) (Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.questions[id]
	if !ok {
		return Question{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if q.IsMerged {
		return Question{}, fmt.Errorf("%w: %s", ErrAlreadyMerged, id)
	}

	score := a.DifficultyScore
	q.ClusterID = a.ClusterID
	q.Keywords = append([]string{}, a.Keywords...)
	q.DifficultyScore = &score
	q.DifficultyLevel = a.DifficultyLevel
	if a.Summary != nil {
		q.AISummary = *a.Summary
	}
	q.UpdatedAt = time.Now().UTC()
	s.questions[id] = cloneQuestion(q)
	return cloneQuestion(q), nil
}

func (s *MemoryStore) ApplyDraft(ctx context.Context, id string, draft string, summary *string) (Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.questions[id]
	if !ok {
		return Question{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if q.IsMerged {
		return Question{}, fmt.Errorf("%w: %s", ErrAlreadyMerged, id)
	}

	q.AIResponseDraft = draft
	if summary != nil {
		q.AISummary = *summary
	}
	q.UpdatedAt = time.Now().UTC()
	s.questions[id] = q
	return cloneQuestion(q), nil
}

func (s *MemoryStore) MarkMerged(ctx context.Context, ids []string, qaID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate the whole set before touching anything.
	for _, id := range ids {
		q, ok := s.questions[id]
		if !ok {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		if q.IsMerged {
			return fmt.Errorf("%w: %s", ErrAlreadyMerged, id)
		}
	}

	now := time.Now().UTC()
	for _, id := range ids {
		q := s.questions[id]
		q.IsMerged = true
		q.MergedToQAID = qaID
		q.UpdatedAt = now
		s.questions[id] = q
	}
	return nil
}

func (s *MemoryStore) ReleaseCluster(ctx context.Context, clusterID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	released := 0
	now := time.Now().UTC()
	for id, q := range s.questions {
		if q.ClusterID != clusterID {
			continue
		}
		q.ClusterID = ""
		q.UpdatedAt = now
		s.questions[id] = q
		released++
	}
	return released, nil
}

func (s *MemoryStore) ClusterStats(ctx context.Context, clusterID string) (int, float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	sum := 0.0
	scored := 0
	for _, q := range s.questions {
		if q.ClusterID != clusterID || !q.ActiveMember() {
			continue
		}
		count++
		if q.DifficultyScore != nil {
			sum += *q.DifficultyScore
			scored++
		}
	}

	avg := 0.0
	if scored > 0 {
		avg = sum / float64(scored)
	}
	return count, avg, nil
}

func (s *MemoryStore) PendingForAnalysis(ctx context.Context, courseID string, limit int) ([]Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Question
	for _, q := range s.questions {
		if q.CourseID != courseID || q.Status != StatusPending || q.ClusterID != "" || q.IsMerged {
			continue
		}
		out = append(out, cloneQuestion(q))
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})

	if limit <= 0 {
		limit = defaultAnalysisBatch
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
