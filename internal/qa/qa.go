// Package qa manages curated question/answer entries and the merge operation
// that folds moderated questions into them.
package qa

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a QA id does not exist.
var ErrNotFound = errors.New("qa not found")

// QA is a curated answer, usually produced by merging several student
// questions about the same thing. SourceQuestionIDs records provenance.
type QA struct {
	ID                string     `json:"id"`
	CourseID          string     `json:"course_id"`
	ClassID           string     `json:"class_id,omitempty"`
	Question          string     `json:"question"`
	Answer            string     `json:"answer"`
	Category          string     `json:"category,omitempty"`
	Tags              []string   `json:"tags,omitempty"`
	IsPublished       bool       `json:"is_published"`
	PublishDate       *time.Time `json:"publish_date,omitempty"`
	SourceQuestionIDs []string   `json:"source_question_ids,omitempty"`
	CreatedBy         string     `json:"created_by,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// InvalidMergeError reports a merge precondition failure. Nothing has been
// written when this is returned.
type InvalidMergeError struct {
	QuestionID string
	Reason     string
}

func (e InvalidMergeError) Error() string {
	if e.QuestionID == "" {
		return fmt.Sprintf("invalid merge: %s", e.Reason)
	}
	return fmt.Sprintf("invalid merge: question %s: %s", e.QuestionID, e.Reason)
}
