// Package question holds the Question entity, its moderation lifecycle, and
// the ingestion/moderation service built on top of the store.
package question

import (
	"errors"
	"fmt"
	"time"
)

// Status is a question's moderation lifecycle state.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusApproved  Status = "APPROVED"
	StatusRejected  Status = "REJECTED"
	StatusDeleted   Status = "DELETED"
	StatusWithdrawn Status = "WITHDRAWN"
)

// ParseStatus validates a status string.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusApproved, StatusRejected, StatusDeleted, StatusWithdrawn:
		return Status(s), nil
	}
	return "", ValidationError{Field: "status", Msg: fmt.Sprintf("unknown status %q", s)}
}

// DifficultyLevel is the coarse difficulty bucket derived from the score.
type DifficultyLevel string

const (
	DifficultyEasy   DifficultyLevel = "easy"
	DifficultyMedium DifficultyLevel = "medium"
	DifficultyHard   DifficultyLevel = "hard"
)

// LevelForScore buckets a difficulty score: <0.3 easy, <0.7 medium, else hard.
func LevelForScore(score float64) DifficultyLevel {
	switch {
	case score < 0.3:
		return DifficultyEasy
	case score < 0.7:
		return DifficultyMedium
	default:
		return DifficultyHard
	}
}

// Question is a student-submitted question. The submitter is known only by
// pseudonym; the raw external handle is discarded at ingestion.
type Question struct {
	ID              string          `json:"id"`
	CourseID        string          `json:"course_id"`
	ClassID         string          `json:"class_id,omitempty"`
	Pseudonym       string          `json:"pseudonym"`
	Text            string          `json:"question_text"`
	Status          Status          `json:"status"`
	RejectionReason string          `json:"rejection_reason,omitempty"`
	ClusterID       string          `json:"cluster_id,omitempty"`
	DifficultyScore *float64        `json:"difficulty_score,omitempty"`
	DifficultyLevel DifficultyLevel `json:"difficulty_level,omitempty"`
	Keywords        []string        `json:"keywords,omitempty"`
	AIResponseDraft string          `json:"ai_response_draft,omitempty"`
	AISummary       string          `json:"ai_summary,omitempty"`
	IsMerged        bool            `json:"is_merged"`
	MergedToQAID    string          `json:"merged_to_qa_id,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// ActiveMember reports whether the question counts toward its cluster's
// aggregates: not merged, not soft-deleted, not withdrawn.
func (q Question) ActiveMember() bool {
	return !q.IsMerged && q.Status != StatusDeleted && q.Status != StatusWithdrawn
}

// Analysis is the per-question slice of an AI clustering result, applied
// atomically by the store.
type Analysis struct {
	ClusterID       string
	Keywords        []string
	DifficultyScore float64
	DifficultyLevel DifficultyLevel
	Summary         *string // nil leaves the prior summary in place
}

// ErrNotFound is returned when a question id does not exist.
var ErrNotFound = errors.New("question not found")

// ErrAlreadyMerged is returned when a mutation targets a merged question.
var ErrAlreadyMerged = errors.New("question already merged")

// ValidationError reports malformed input, rejected before any mutation.
type ValidationError struct {
	Field string
	Msg   string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Msg)
}

// InvalidTransitionError reports an illegal lifecycle move. The state is
// unchanged when this is returned.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition from %s to %s", e.From, e.To)
}
