package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/qboard/qboard/internal/audit"
	"github.com/qboard/qboard/internal/cluster"
	"github.com/qboard/qboard/internal/question"
)

// clusterKeywordLimit caps how many of a group's most frequent keywords are
// promoted to the cluster record.
const clusterKeywordLimit = 5

// Recounter recomputes cluster aggregates. Implemented by cluster.Service.
type Recounter interface {
	Recount(ctx context.Context, clusterIDs ...string) error
}

// Engine applies AI clustering batches.
type Engine struct {
	questions question.Store
	clusters  cluster.Store
	recount   Recounter
	audit     audit.Logger
}

// NewEngine creates the reconciliation engine.
func NewEngine(questions question.Store, clusters cluster.Store, recount Recounter, auditLog audit.Logger) (*Engine, error) {
	if questions == nil || clusters == nil || recount == nil {
		return nil, fmt.Errorf("question store, cluster store, and recounter are required")
	}
	if auditLog == nil {
		auditLog = audit.NopLogger{}
	}
	return &Engine{questions: questions, clusters: clusters, recount: recount, audit: auditLog}, nil
}

// Skipped is one batch item that could not be applied.
type Skipped struct {
	QuestionID string `json:"question_id"`
	Reason     string `json:"reason"`
}

// Report is the per-batch partial-result report. A batch never aborts as a
// whole for a per-item problem.
type Report struct {
	Applied int       `json:"applied"`
	Skipped []Skipped `json:"skipped,omitempty"`
}

// ApplyRaw validates and normalizes a raw AI payload, then applies it.
func (e *Engine) ApplyRaw(ctx context.Context, courseID string, payload []byte) (Report, error) {
	if err := validatePayload(payload); err != nil {
		return Report{}, err
	}

	var items []map[string]any
	if err := json.Unmarshal(payload, &items); err != nil {
		return Report{}, question.ValidationError{Field: "payload", Msg: err.Error()}
	}

	results := make([]ClusteringResult, 0, len(items))
	var skipped []Skipped
	for _, item := range items {
		r, err := normalizeResult(item)
		if err != nil {
			skipped = append(skipped, Skipped{QuestionID: firstString(item, "question_id", "id"), Reason: err.Error()})
			continue
		}
		results = append(results, r)
	}

	report, err := e.ApplyBatch(ctx, courseID, results)
	if err != nil {
		return Report{}, err
	}
	report.Skipped = append(skipped, report.Skipped...)
	return report, nil
}

// ApplyBatch applies a batch of clustering results to one course.
//
// Clusters are matched by case-insensitive exact label; locked clusters keep
// their label, summary, and lock flag but may still gain or lose members.
// AI fields on each question are last-write-wins. Aggregates of every
// touched cluster (including ones that only lost members) are recomputed
// afterwards from the question store, which makes re-delivery of the same
// batch harmless.
func (e *Engine) ApplyBatch(ctx context.Context, courseID string, results []ClusteringResult) (Report, error) {
	if courseID == "" {
		return Report{}, question.ValidationError{Field: "course_id", Msg: "required"}
	}

	report := Report{}
	touched := map[string]struct{}{}

	// Validate every item before resolving any cluster, so a batch of
	// unknown questions creates no empty clusters.
	var accepted []valid
	for _, r := range results {
		q, err := e.questions.Get(ctx, r.QuestionID)
		if errors.Is(err, question.ErrNotFound) {
			report.Skipped = append(report.Skipped, Skipped{QuestionID: r.QuestionID, Reason: "question not found"})
			continue
		}
		if err != nil {
			return report, fmt.Errorf("loading question %s: %w", r.QuestionID, err)
		}
		if q.CourseID != courseID {
			report.Skipped = append(report.Skipped, Skipped{QuestionID: r.QuestionID, Reason: "question belongs to another course"})
			continue
		}
		if q.IsMerged {
			report.Skipped = append(report.Skipped, Skipped{QuestionID: r.QuestionID, Reason: "question already merged"})
			continue
		}
		if r.DifficultyScore < 0 || r.DifficultyScore > 1 {
			report.Skipped = append(report.Skipped, Skipped{QuestionID: r.QuestionID, Reason: "difficulty_score out of range"})
			continue
		}
		accepted = append(accepted, valid{result: r, prior: q})
	}

	// Resolve or create one cluster per distinct folded label.
	groups := map[string][]valid{}
	var order []string
	for _, v := range accepted {
		folded := cluster.FoldLabel(v.result.ClusterLabel)
		if _, seen := groups[folded]; !seen {
			order = append(order, folded)
		}
		groups[folded] = append(groups[folded], v)
	}

	clusterByLabel := map[string]cluster.Cluster{}
	for _, folded := range order {
		group := groups[folded]
		label := group[0].result.ClusterLabel
		keywords := groupKeywords(group)

		c, err := e.clusters.FindByLabel(ctx, courseID, label)
		switch {
		case err == nil:
			// Refresh AI metadata; the store leaves locked clusters alone.
			c, err = e.clusters.ApplyAIMetadata(ctx, c.ID, label, c.Summary, keywords)
			if err != nil {
				return report, fmt.Errorf("updating cluster %q: %w", label, err)
			}
		case errors.Is(err, cluster.ErrNotFound):
			c, err = e.clusters.Create(ctx, cluster.Cluster{
				CourseID:   courseID,
				TopicLabel: label,
				Keywords:   keywords,
			})
			if err != nil {
				return report, fmt.Errorf("creating cluster %q: %w", label, err)
			}
		default:
			return report, fmt.Errorf("resolving cluster %q: %w", label, err)
		}
		clusterByLabel[folded] = c
		touched[c.ID] = struct{}{}
	}

	// Apply per-question fields. Each ApplyAnalysis is atomic; a failure
	// skips that item and the batch continues.
	for _, folded := range order {
		c := clusterByLabel[folded]
		for _, v := range groups[folded] {
			r := v.result
			level := r.DifficultyLevel
			if level == "" {
				level = question.LevelForScore(r.DifficultyScore)
			}

			_, err := e.questions.ApplyAnalysis(ctx, r.QuestionID, question.Analysis{
				ClusterID:       c.ID,
				Keywords:        r.Keywords,
				DifficultyScore: r.DifficultyScore,
				DifficultyLevel: level,
				Summary:         r.Summary,
			})
			if err != nil {
				report.Skipped = append(report.Skipped, Skipped{QuestionID: r.QuestionID, Reason: err.Error()})
				continue
			}
			report.Applied++

			if v.prior.ClusterID != "" {
				touched[v.prior.ClusterID] = struct{}{}
			}
		}
	}

	// Recompute aggregates for every touched cluster, including ones that
	// only lost members. Empty unlocked clusters are retained, not deleted.
	ids := make([]string, 0, len(touched))
	for id := range touched {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	if err := e.recount.Recount(ctx, ids...); err != nil {
		return report, fmt.Errorf("recomputing cluster aggregates: %w", err)
	}

	slog.Info("clustering batch applied",
		"course_id", courseID,
		"applied", report.Applied,
		"skipped", len(report.Skipped),
		"clusters_touched", len(ids),
	)
	if err := e.audit.Log(ctx, audit.Event{
		EntityType: "course",
		EntityID:   courseID,
		Action:     "clustering_batch_applied",
		Data: map[string]any{
			"applied":          report.Applied,
			"skipped":          len(report.Skipped),
			"clusters_touched": len(ids),
		},
	}); err != nil {
		slog.Warn("audit log failed", "action", "clustering_batch_applied", "error", err)
	}

	return report, nil
}

// valid is a batch item that passed pre-application checks, paired with the
// question state before the batch so prior cluster memberships can be
// recounted.
type valid struct {
	result ClusteringResult
	prior  question.Question
}

// groupKeywords returns a group's most frequent question keywords, ties
// broken lexicographically.
func groupKeywords(group []valid) []string {
	freq := map[string]int{}
	for _, v := range group {
		for _, kw := range v.result.Keywords {
			freq[kw]++
		}
	}

	keywords := make([]string, 0, len(freq))
	for kw := range freq {
		keywords = append(keywords, kw)
	}
	sort.Slice(keywords, func(i, j int) bool {
		if freq[keywords[i]] != freq[keywords[j]] {
			return freq[keywords[i]] > freq[keywords[j]]
		}
		return keywords[i] < keywords[j]
	})

	if len(keywords) > clusterKeywordLimit {
		keywords = keywords[:clusterKeywordLimit]
	}
	return keywords
}
