// Package cluster manages topic clusters: AI-proposed groupings of questions
// that a human may rename and lock. A locked cluster's label and summary are
// off limits to automated re-clustering; its membership is not.
package cluster

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a cluster id or label does not exist.
var ErrNotFound = errors.New("cluster not found")

// Cluster is a named topic grouping within one course. question_count and
// avg_difficulty are derived values, recomputed from the question store on
// every membership change rather than maintained incrementally.
type Cluster struct {
	ID            string    `json:"id"`
	CourseID      string    `json:"course_id"`
	TopicLabel    string    `json:"topic_label"`
	ManualLabel   string    `json:"manual_label,omitempty"`
	Summary       string    `json:"summary,omitempty"`
	Keywords      []string  `json:"keywords,omitempty"`
	QuestionCount int       `json:"question_count"`
	AvgDifficulty float64   `json:"avg_difficulty"`
	IsLocked      bool      `json:"is_locked"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Label returns the effective display label: the manual rename when a human
// has set one, the AI topic label otherwise.
func (c Cluster) Label() string {
	if c.ManualLabel != "" {
		return c.ManualLabel
	}
	return c.TopicLabel
}
