package announcement

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/qboard/qboard/internal/audit"
	"github.com/qboard/qboard/internal/course"
	"github.com/qboard/qboard/internal/question"
)

// Service exposes announcement curation for teaching staff.
type Service struct {
	store   Store
	courses course.Store
	audit   audit.Logger
}

// NewService creates the announcement service.
func NewService(store Store, courses course.Store, auditLog audit.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if courses == nil {
		return nil, fmt.Errorf("course store is required")
	}
	if auditLog == nil {
		auditLog = audit.NopLogger{}
	}
	return &Service{store: store, courses: courses, audit: auditLog}, nil
}

// CreateRequest carries a new announcement. Publish immediately by setting
// IsPublished; the publish date is stamped on creation.
type CreateRequest struct {
	CourseID     string
	ClassID      string
	Title        string
	Content      string
	RelatedQAIDs []string
	IsPublished  bool
	CreatedBy    string
}

// Create posts a new announcement to a course.
func (s *Service) Create(ctx context.Context, req CreateRequest) (Announcement, error) {
	if req.CourseID == "" {
		return Announcement{}, question.ValidationError{Field: "course_id", Msg: "required"}
	}
	if req.Title == "" {
		return Announcement{}, question.ValidationError{Field: "title", Msg: "required"}
	}
	if req.Content == "" {
		return Announcement{}, question.ValidationError{Field: "content", Msg: "required"}
	}
	if _, err := s.courses.Get(ctx, req.CourseID); err != nil {
		return Announcement{}, err
	}

	a, err := s.store.Create(ctx, Announcement{
		CourseID:     req.CourseID,
		ClassID:      req.ClassID,
		Title:        req.Title,
		Content:      req.Content,
		RelatedQAIDs: req.RelatedQAIDs,
		IsPublished:  req.IsPublished,
		CreatedBy:    req.CreatedBy,
	})
	if err != nil {
		return Announcement{}, fmt.Errorf("creating announcement: %w", err)
	}

	slog.Info("announcement created",
		"announcement_id", a.ID,
		"course_id", a.CourseID,
		"published", a.IsPublished,
	)
	s.logEvent(ctx, a.ID, "created", req.CreatedBy, nil)
	return a, nil
}

// Get returns an announcement by id.
func (s *Service) Get(ctx context.Context, id string) (Announcement, error) {
	return s.store.Get(ctx, id)
}

// List returns announcements matching the filter.
func (s *Service) List(ctx context.Context, f ListFilter) ([]Announcement, error) {
	return s.store.List(ctx, f)
}

// UpdateRequest carries the editable announcement fields.
type UpdateRequest struct {
	Title        string
	Content      string
	RelatedQAIDs []string
	ClassID      string
}

// Update edits an announcement's content. Publish state is not editable
// through this path.
func (s *Service) Update(ctx context.Context, id string, req UpdateRequest, actor string) (Announcement, error) {
	if req.Title == "" {
		return Announcement{}, question.ValidationError{Field: "title", Msg: "required"}
	}
	if req.Content == "" {
		return Announcement{}, question.ValidationError{Field: "content", Msg: "required"}
	}

	existing, err := s.store.Get(ctx, id)
	if err != nil {
		return Announcement{}, err
	}

	existing.Title = req.Title
	existing.Content = req.Content
	existing.RelatedQAIDs = req.RelatedQAIDs
	existing.ClassID = req.ClassID

	a, err := s.store.Update(ctx, existing)
	if err != nil {
		return Announcement{}, err
	}
	s.logEvent(ctx, id, "updated", actor, nil)
	return a, nil
}

// SetPublished publishes or unpublishes an announcement.
func (s *Service) SetPublished(ctx context.Context, id string, published bool, actor string) (Announcement, error) {
	a, err := s.store.SetPublished(ctx, id, published)
	if err != nil {
		return Announcement{}, err
	}

	action := "published"
	if !published {
		action = "unpublished"
	}
	s.logEvent(ctx, id, action, actor, nil)
	return a, nil
}

// Delete removes an announcement.
func (s *Service) Delete(ctx context.Context, id string, actor string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.logEvent(ctx, id, "deleted", actor, nil)
	return nil
}

func (s *Service) logEvent(ctx context.Context, id, action, actor string, data map[string]any) {
	err := s.audit.Log(ctx, audit.Event{
		EntityType: "announcement",
		EntityID:   id,
		Action:     action,
		Actor:      actor,
		Data:       data,
	})
	if err != nil {
		slog.Warn("audit log failed", "action", action, "announcement_id", id, "error", err)
	}
}
