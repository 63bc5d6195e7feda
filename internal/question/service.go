package question

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/qboard/qboard/internal/audit"
	"github.com/qboard/qboard/internal/course"
	"github.com/qboard/qboard/internal/identity"
	"github.com/qboard/qboard/internal/platform/cache"
)

// Recounter recomputes cluster aggregates after membership-affecting
// mutations. Implemented by cluster.Service.
type Recounter interface {
	Recount(ctx context.Context, clusterIDs ...string) error
}

// ServiceConfig holds dependencies for the question service.
type ServiceConfig struct {
	Store    Store
	Courses  course.Store
	Pseudo   *identity.Pseudonymizer
	Recount  Recounter    // may be nil when clustering is not wired
	Audit    audit.Logger // defaults to NopLogger
	Cache    *cache.Cache // optional statistics cache
	StatsTTL time.Duration
}

// Service exposes ingestion and moderation operations over the store.
type Service struct {
	store    Store
	courses  course.Store
	pseudo   *identity.Pseudonymizer
	recount  Recounter
	audit    audit.Logger
	cache    *cache.Cache
	statsTTL time.Duration
}

// NewService creates the question service. The pseudonymizer is mandatory:
// without it ingestion would have to fall back to raw handles, which is
// exactly what must never happen.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Courses == nil {
		return nil, fmt.Errorf("course store is required")
	}
	if cfg.Pseudo == nil {
		return nil, identity.ErrMissingSalt
	}

	auditLog := cfg.Audit
	if auditLog == nil {
		auditLog = audit.NopLogger{}
	}
	statsTTL := cfg.StatsTTL
	if statsTTL == 0 {
		statsTTL = time.Minute
	}

	return &Service{
		store:    cfg.Store,
		courses:  cfg.Courses,
		pseudo:   cfg.Pseudo,
		recount:  cfg.Recount,
		audit:    auditLog,
		cache:    cfg.Cache,
		statsTTL: statsTTL,
	}, nil
}

// SubmitRequest is a raw submission from the messaging channel. The
// RawExternalID is consumed by the de-identification transform and discarded.
type SubmitRequest struct {
	CourseID      string
	ClassID       string
	RawExternalID string
	QuestionText  string
}

// maxExternalIDLen bounds the raw submitter handle accepted at ingestion.
const maxExternalIDLen = 256

// Submit ingests a new question: validates the course, de-identifies the
// submitter, and creates the question in PENDING.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (Question, error) {
	if req.CourseID == "" {
		return Question{}, ValidationError{Field: "course_id", Msg: "required"}
	}
	if req.RawExternalID == "" {
		return Question{}, ValidationError{Field: "raw_external_id", Msg: "required"}
	}
	if len(req.RawExternalID) > maxExternalIDLen {
		// Echo only the masked handle back to the submitter.
		return Question{}, ValidationError{
			Field: "raw_external_id",
			Msg:   fmt.Sprintf("too long: %s", identity.MaskExternalID(req.RawExternalID)),
		}
	}
	if req.QuestionText == "" {
		return Question{}, ValidationError{Field: "question_text", Msg: "required"}
	}

	c, err := s.courses.Get(ctx, req.CourseID)
	if err != nil {
		return Question{}, err
	}
	if !c.IsActive {
		return Question{}, fmt.Errorf("%w: %s", course.ErrInactive, c.ID)
	}

	pseudonym, err := s.pseudo.Pseudonymize(req.RawExternalID)
	if err != nil {
		return Question{}, fmt.Errorf("de-identifying submitter: %w", err)
	}

	q, err := s.store.Create(ctx, Question{
		CourseID:  req.CourseID,
		ClassID:   req.ClassID,
		Pseudonym: pseudonym,
		Text:      req.QuestionText,
		Status:    StatusPending,
	})
	if err != nil {
		return Question{}, err
	}

	// Pseudonym only from here on; the raw handle is gone.
	slog.Info("question submitted",
		"question_id", q.ID,
		"course_id", q.CourseID,
		"pseudonym", identity.Short(q.Pseudonym),
	)
	s.logEvent(ctx, "question", q.ID, "submitted", "", map[string]any{
		"course_id": q.CourseID,
		"pseudonym": identity.Short(q.Pseudonym),
	})
	s.invalidateStats(ctx, q.CourseID)

	return q, nil
}

// Get returns a question by id.
func (s *Service) Get(ctx context.Context, id string) (Question, error) {
	return s.store.Get(ctx, id)
}

// List returns questions matching the filter.
func (s *Service) List(ctx context.Context, f ListFilter) ([]Question, error) {
	return s.store.List(ctx, f)
}

// SetStatus moves a question through the moderation state machine. Moves to
// DELETED or WITHDRAWN trigger a recount of the question's cluster since it
// no longer counts toward the aggregates.
func (s *Service) SetStatus(ctx context.Context, id string, to Status, reason string, actor string) (Question, error) {
	before, err := s.store.Get(ctx, id)
	if err != nil {
		return Question{}, err
	}

	q, err := s.store.Transition(ctx, id, to, reason)
	if err != nil {
		return Question{}, err
	}

	if (to == StatusDeleted || to == StatusWithdrawn) && q.ClusterID != "" && s.recount != nil {
		if err := s.recount.Recount(ctx, q.ClusterID); err != nil {
			slog.Error("cluster recount after status change failed",
				"question_id", q.ID, "cluster_id", q.ClusterID, "error", err)
		}
	}

	s.logEvent(ctx, "question", q.ID, "status_changed", actor, map[string]any{
		"from":   string(before.Status),
		"to":     string(to),
		"reason": reason,
	})
	s.invalidateStats(ctx, q.CourseID)

	return q, nil
}

// ApplyDraft writes an AI-generated response draft, last-write-wins. A nil
// summary leaves the existing summary untouched.
func (s *Service) ApplyDraft(ctx context.Context, id string, draft string, summary *string) (Question, error) {
	if draft == "" {
		return Question{}, ValidationError{Field: "draft_text", Msg: "required"}
	}

	q, err := s.store.ApplyDraft(ctx, id, draft, summary)
	if err != nil {
		return Question{}, err
	}

	s.logEvent(ctx, "question", q.ID, "draft_applied", "", map[string]any{
		"draft_len": len(draft),
	})
	return q, nil
}

// PendingQuestion is the de-identified view exported to the AI collaborator.
type PendingQuestion struct {
	ID        string    `json:"id"`
	Pseudonym string    `json:"pseudonym"`
	Text      string    `json:"question_text"`
	CreatedAt time.Time `json:"created_at"`
}

// PendingForAnalysis returns unclustered PENDING questions, stripped down to
// the fields the AI collaborator is allowed to see.
func (s *Service) PendingForAnalysis(ctx context.Context, courseID string, limit int) ([]PendingQuestion, error) {
	if courseID == "" {
		return nil, ValidationError{Field: "course_id", Msg: "required"}
	}

	questions, err := s.store.PendingForAnalysis(ctx, courseID, limit)
	if err != nil {
		return nil, err
	}

	out := make([]PendingQuestion, len(questions))
	for i, q := range questions {
		out[i] = PendingQuestion{
			ID:        q.ID,
			Pseudonym: q.Pseudonym,
			Text:      q.Text,
			CreatedAt: q.CreatedAt,
		}
	}
	return out, nil
}

// Statistics summarizes a course's questions for the dashboard read surface.
type Statistics struct {
	TotalQuestions         int            `json:"total_questions"`
	StatusDistribution     map[string]int `json:"status_distribution"`
	DifficultyDistribution map[string]int `json:"difficulty_distribution"`
	AvgDifficultyScore     float64        `json:"avg_difficulty_score"`
	ClusterCount           int            `json:"cluster_count"`
}

// Statistics computes per-course question statistics, recomputed from the
// authoritative question set and cached briefly.
func (s *Service) Statistics(ctx context.Context, courseID, classID string) (Statistics, error) {
	if courseID == "" {
		return Statistics{}, ValidationError{Field: "course_id", Msg: "required"}
	}

	key := statsKey(courseID, classID)
	if s.cache != nil {
		var cached Statistics
		err := s.cache.GetJSON(ctx, key, &cached)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			slog.Warn("statistics cache read failed", "key", key, "error", err)
		}
	}

	questions, err := s.store.List(ctx, ListFilter{
		CourseID:       courseID,
		ClassID:        classID,
		IncludeDeleted: true,
	})
	if err != nil {
		return Statistics{}, err
	}

	stats := Statistics{
		StatusDistribution:     map[string]int{},
		DifficultyDistribution: map[string]int{},
	}
	sum := 0.0
	scored := 0
	clusters := map[string]struct{}{}

	for _, q := range questions {
		stats.TotalQuestions++
		stats.StatusDistribution[string(q.Status)]++
		if q.DifficultyLevel != "" {
			stats.DifficultyDistribution[string(q.DifficultyLevel)]++
		}
		if q.DifficultyScore != nil {
			sum += *q.DifficultyScore
			scored++
		}
		if q.ClusterID != "" {
			clusters[q.ClusterID] = struct{}{}
		}
	}
	if scored > 0 {
		stats.AvgDifficultyScore = sum / float64(scored)
	}
	stats.ClusterCount = len(clusters)

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, key, stats, s.statsTTL); err != nil {
			slog.Warn("statistics cache write failed", "key", key, "error", err)
		}
	}
	return stats, nil
}

func statsKey(courseID, classID string) string {
	if classID == "" {
		return "qboard:stats:" + courseID
	}
	return "qboard:stats:" + courseID + ":" + classID
}

func (s *Service) invalidateStats(ctx context.Context, courseID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, statsKey(courseID, "")); err != nil {
		slog.Warn("statistics cache invalidation failed", "course_id", courseID, "error", err)
	}
}

func (s *Service) logEvent(ctx context.Context, entityType, entityID, action, actor string, data map[string]any) {
	err := s.audit.Log(ctx, audit.Event{
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		Actor:      actor,
		Data:       data,
	})
	if err != nil {
		slog.Warn("audit log failed", "action", action, "entity_id", entityID, "error", err)
	}
}
