package cluster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/qboard/qboard/internal/audit"
	"github.com/qboard/qboard/internal/question"
)

// Service exposes manual cluster operations and the aggregate recount used
// by the reconciliation engine and the question lifecycle.
type Service struct {
	store     Store
	questions question.Store
	audit     audit.Logger
}

// NewService creates the cluster service.
func NewService(store Store, questions question.Store, auditLog audit.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if questions == nil {
		return nil, fmt.Errorf("question store is required")
	}
	if auditLog == nil {
		auditLog = audit.NopLogger{}
	}
	return &Service{store: store, questions: questions, audit: auditLog}, nil
}

// Get returns a cluster by id.
func (s *Service) Get(ctx context.Context, id string) (Cluster, error) {
	return s.store.Get(ctx, id)
}

// ListByCourse returns a course's clusters with their aggregates.
func (s *Service) ListByCourse(ctx context.Context, courseID string) ([]Cluster, error) {
	return s.store.ListByCourse(ctx, courseID)
}

// Create adds a manually-defined cluster: unlocked, empty, no AI metadata.
func (s *Service) Create(ctx context.Context, courseID, topicLabel, actor string) (Cluster, error) {
	if courseID == "" {
		return Cluster{}, question.ValidationError{Field: "course_id", Msg: "required"}
	}
	if topicLabel == "" {
		return Cluster{}, question.ValidationError{Field: "topic_label", Msg: "required"}
	}

	c, err := s.store.Create(ctx, Cluster{
		CourseID:   courseID,
		TopicLabel: topicLabel,
	})
	if err != nil {
		return Cluster{}, err
	}

	s.logEvent(ctx, c.ID, "created", actor, map[string]any{"topic_label": topicLabel})
	return c, nil
}

// UpdateRequest carries the mutable manual fields. Nil means "leave as is".
type UpdateRequest struct {
	TopicLabel *string
	IsLocked   *bool
}

// Update applies a manual edit. Setting a new label implicitly locks the
// cluster; an explicit IsLocked=false afterwards re-opens it to automated
// relabeling.
func (s *Service) Update(ctx context.Context, id string, req UpdateRequest, actor string) (Cluster, error) {
	if req.TopicLabel == nil && req.IsLocked == nil {
		return Cluster{}, question.ValidationError{Field: "update", Msg: "no fields to update"}
	}
	if req.TopicLabel != nil && *req.TopicLabel == "" {
		return Cluster{}, question.ValidationError{Field: "topic_label", Msg: "must not be empty"}
	}

	c, err := s.store.Get(ctx, id)
	if err != nil {
		return Cluster{}, err
	}

	if req.TopicLabel != nil {
		c, err = s.store.Rename(ctx, id, *req.TopicLabel)
		if err != nil {
			return Cluster{}, err
		}
	}
	if req.IsLocked != nil {
		c, err = s.store.SetLocked(ctx, id, *req.IsLocked)
		if err != nil {
			return Cluster{}, err
		}
	}

	s.logEvent(ctx, id, "updated", actor, map[string]any{
		"label":  c.Label(),
		"locked": c.IsLocked,
	})
	return c, nil
}

// Delete removes a cluster and releases its members back to unclustered.
// Members are released before the row is removed, so no question is ever
// left pointing at a nonexistent cluster.
func (s *Service) Delete(ctx context.Context, id string, actor string) error {
	if _, err := s.store.Get(ctx, id); err != nil {
		return err
	}

	released, err := s.questions.ReleaseCluster(ctx, id)
	if err != nil {
		return fmt.Errorf("releasing cluster members: %w", err)
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}

	slog.Info("cluster deleted", "cluster_id", id, "released_questions", released)
	s.logEvent(ctx, id, "deleted", actor, map[string]any{"released_questions": released})
	return nil
}

// Recount recomputes question_count/avg_difficulty for the given clusters
// from the authoritative question set. Recounting a cluster that has been
// deleted in the meantime is not an error.
func (s *Service) Recount(ctx context.Context, clusterIDs ...string) error {
	for _, id := range clusterIDs {
		count, avg, err := s.questions.ClusterStats(ctx, id)
		if err != nil {
			return fmt.Errorf("computing stats for cluster %s: %w", id, err)
		}
		if err := s.store.SetAggregates(ctx, id, count, avg); err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return err
		}
	}
	return nil
}

func (s *Service) logEvent(ctx context.Context, id, action, actor string, data map[string]any) {
	err := s.audit.Log(ctx, audit.Event{
		EntityType: "cluster",
		EntityID:   id,
		Action:     action,
		Actor:      actor,
		Data:       data,
	})
	if err != nil {
		slog.Warn("audit log failed", "action", action, "cluster_id", id, "error", err)
	}
}
