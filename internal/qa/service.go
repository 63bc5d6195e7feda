package qa

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/qboard/qboard/internal/audit"
	"github.com/qboard/qboard/internal/question"
)

// Recounter recomputes cluster aggregates after merged questions stop
// counting as members. Implemented by cluster.Service.
type Recounter interface {
	Recount(ctx context.Context, clusterIDs ...string) error
}

// Service exposes QA curation: merging questions, publishing, and search.
type Service struct {
	store     Store
	questions question.Store
	recount   Recounter
	audit     audit.Logger
}

// NewService creates the QA service. The recounter may be nil when clustering
// is not wired.
func NewService(store Store, questions question.Store, recount Recounter, auditLog audit.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if questions == nil {
		return nil, fmt.Errorf("question store is required")
	}
	if auditLog == nil {
		auditLog = audit.NopLogger{}
	}
	return &Service{store: store, questions: questions, recount: recount, audit: auditLog}, nil
}

// MergeRequest folds one or more questions into a single curated QA.
type MergeRequest struct {
	CourseID    string
	ClassID     string
	QuestionIDs []string
	Question    string
	Answer      string
	Category    string
	Tags        []string
	CreatedBy   string
}

// Merge creates a QA from the given questions and marks them merged, all or
// nothing. Preconditions are checked up front: every question must exist,
// belong to the request's course, and not already be merged. Merged
// questions keep their status and cluster link but stop counting toward
// cluster aggregates, so the affected clusters are recounted afterwards.
func (s *Service) Merge(ctx context.Context, req MergeRequest) (QA, error) {
	if req.CourseID == "" {
		return QA{}, question.ValidationError{Field: "course_id", Msg: "required"}
	}
	if len(req.QuestionIDs) == 0 {
		return QA{}, question.ValidationError{Field: "question_ids", Msg: "at least one required"}
	}
	if req.Question == "" {
		return QA{}, question.ValidationError{Field: "question", Msg: "required"}
	}
	if req.Answer == "" {
		return QA{}, question.ValidationError{Field: "answer", Msg: "required"}
	}

	// Check every precondition before writing anything.
	clusters := map[string]struct{}{}
	seen := map[string]struct{}{}
	for _, id := range req.QuestionIDs {
		if _, dup := seen[id]; dup {
			return QA{}, InvalidMergeError{QuestionID: id, Reason: "listed twice"}
		}
		seen[id] = struct{}{}

		q, err := s.questions.Get(ctx, id)
		if err != nil {
			return QA{}, err
		}
		if q.CourseID != req.CourseID {
			return QA{}, InvalidMergeError{QuestionID: id, Reason: "belongs to another course"}
		}
		if q.IsMerged {
			return QA{}, InvalidMergeError{QuestionID: id, Reason: "already merged"}
		}
		if q.ClusterID != "" {
			clusters[q.ClusterID] = struct{}{}
		}
	}

	qa, err := s.store.Create(ctx, QA{
		CourseID:          req.CourseID,
		ClassID:           req.ClassID,
		Question:          req.Question,
		Answer:            req.Answer,
		Category:          req.Category,
		Tags:              req.Tags,
		SourceQuestionIDs: req.QuestionIDs,
		CreatedBy:         req.CreatedBy,
	})
	if err != nil {
		return QA{}, fmt.Errorf("creating qa: %w", err)
	}

	if err := s.questions.MarkMerged(ctx, req.QuestionIDs, qa.ID); err != nil {
		// A question was merged concurrently; take the orphaned QA back out.
		if delErr := s.store.Delete(ctx, qa.ID); delErr != nil {
			slog.Error("orphaned qa cleanup failed", "qa_id", qa.ID, "error", delErr)
		}
		return QA{}, fmt.Errorf("marking questions merged: %w", err)
	}

	if s.recount != nil && len(clusters) > 0 {
		ids := make([]string, 0, len(clusters))
		for id := range clusters {
			ids = append(ids, id)
		}
		if err := s.recount.Recount(ctx, ids...); err != nil {
			slog.Error("cluster recount after merge failed", "qa_id", qa.ID, "error", err)
		}
	}

	slog.Info("questions merged",
		"qa_id", qa.ID,
		"course_id", qa.CourseID,
		"source_questions", len(req.QuestionIDs),
	)
	s.logEvent(ctx, qa.ID, "merged", req.CreatedBy, map[string]any{
		"source_question_ids": req.QuestionIDs,
	})
	return qa, nil
}

// Get returns a QA by id.
func (s *Service) Get(ctx context.Context, id string) (QA, error) {
	return s.store.Get(ctx, id)
}

// List returns QAs matching the filter.
func (s *Service) List(ctx context.Context, f ListFilter) ([]QA, error) {
	return s.store.List(ctx, f)
}

// UpdateRequest carries the editable QA fields.
type UpdateRequest struct {
	Question string
	Answer   string
	Category string
	Tags     []string
	ClassID  string
}

// Update edits a QA's content. Provenance and publish state are not
// editable through this path.
func (s *Service) Update(ctx context.Context, id string, req UpdateRequest, actor string) (QA, error) {
	if req.Question == "" {
		return QA{}, question.ValidationError{Field: "question", Msg: "required"}
	}
	if req.Answer == "" {
		return QA{}, question.ValidationError{Field: "answer", Msg: "required"}
	}

	existing, err := s.store.Get(ctx, id)
	if err != nil {
		return QA{}, err
	}

	existing.Question = req.Question
	existing.Answer = req.Answer
	existing.Category = req.Category
	existing.Tags = req.Tags
	existing.ClassID = req.ClassID

	qa, err := s.store.Update(ctx, existing)
	if err != nil {
		return QA{}, err
	}
	s.logEvent(ctx, id, "updated", actor, nil)
	return qa, nil
}

// SetPublished publishes or unpublishes a QA.
func (s *Service) SetPublished(ctx context.Context, id string, published bool, actor string) (QA, error) {
	qa, err := s.store.SetPublished(ctx, id, published)
	if err != nil {
		return QA{}, err
	}

	action := "published"
	if !published {
		action = "unpublished"
	}
	s.logEvent(ctx, id, action, actor, nil)
	return qa, nil
}

// Search returns published QAs in a course matching the query.
func (s *Service) Search(ctx context.Context, courseID, query string, limit int) ([]QA, error) {
	if courseID == "" {
		return nil, question.ValidationError{Field: "course_id", Msg: "required"}
	}
	return s.store.Search(ctx, courseID, query, limit)
}

// Delete removes a QA. The source questions stay merged; deleting an answer
// does not resurrect the questions that produced it.
func (s *Service) Delete(ctx context.Context, id string, actor string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.logEvent(ctx, id, "deleted", actor, nil)
	return nil
}

func (s *Service) logEvent(ctx context.Context, id, action, actor string, data map[string]any) {
	err := s.audit.Log(ctx, audit.Event{
		EntityType: "qa",
		EntityID:   id,
		Action:     action,
		Actor:      actor,
		Data:       data,
	})
	if err != nil {
		slog.Warn("audit log failed", "action", action, "qa_id", id, "error", err)
	}
}
