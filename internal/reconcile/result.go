// Package reconcile applies batched AI clustering results to the question
// and cluster stores while preserving manual overrides. Batches arrive
// at-least-once and possibly out of order; applying the same batch twice
// yields identical state because aggregates are recomputed from the
// authoritative question set, never accumulated.
package reconcile

import (
	"fmt"

	"github.com/qboard/qboard/internal/question"
)

// ClusteringResult is the normalized per-question slice of an AI batch.
// The AI collaborator's payloads have shifted field names across versions;
// everything is mapped onto this one shape at the ingestion boundary.
type ClusteringResult struct {
	QuestionID      string                   `json:"question_id"`
	ClusterLabel    string                   `json:"cluster_label"`
	Keywords        []string                 `json:"keywords,omitempty"`
	DifficultyScore float64                  `json:"difficulty_score"`
	DifficultyLevel question.DifficultyLevel `json:"difficulty_level,omitempty"`
	Summary         *string                  `json:"summary,omitempty"`
}

// normalizeResult maps one raw payload item, accepting the legacy field
// names older AI service versions emit.
func normalizeResult(raw map[string]any) (ClusteringResult, error) {
	var r ClusteringResult

	r.QuestionID = firstString(raw, "question_id", "id")
	if r.QuestionID == "" {
		return r, fmt.Errorf("missing question_id")
	}

	r.ClusterLabel = firstString(raw, "cluster_label", "cluster", "topic", "topic_label")
	if r.ClusterLabel == "" {
		return r, fmt.Errorf("missing cluster_label")
	}

	score, ok := firstNumber(raw, "difficulty_score", "difficulty")
	if !ok {
		return r, fmt.Errorf("missing difficulty_score")
	}
	r.DifficultyScore = score

	if level := firstString(raw, "difficulty_level", "level"); level != "" {
		r.DifficultyLevel = question.DifficultyLevel(level)
	}

	if kws, ok := raw["keywords"].([]any); ok {
		for _, kw := range kws {
			if s, ok := kw.(string); ok && s != "" {
				r.Keywords = append(r.Keywords, s)
			}
		}
	}

	if summary := firstString(raw, "summary", "ai_summary"); summary != "" {
		r.Summary = &summary
	}

	return r, nil
}

func firstString(raw map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := raw[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func firstNumber(raw map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		if v, ok := raw[k].(float64); ok {
			return v, true
		}
	}
	return 0, false
}
