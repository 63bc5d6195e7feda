// Package announcement manages course announcements written by teaching
// staff, optionally linking the curated QAs they summarize.
package announcement

import (
	"errors"
	"time"
)

// ErrNotFound is returned when an announcement id does not exist.
var ErrNotFound = errors.New("announcement not found")

// Announcement is a notice for a course. An empty ClassID means the notice
// addresses the whole course rather than one class.
type Announcement struct {
	ID           string     `json:"id"`
	CourseID     string     `json:"course_id"`
	ClassID      string     `json:"class_id,omitempty"`
	Title        string     `json:"title"`
	Content      string     `json:"content"`
	RelatedQAIDs []string   `json:"related_qa_ids,omitempty"`
	IsPublished  bool       `json:"is_published"`
	PublishDate  *time.Time `json:"publish_date,omitempty"`
	CreatedBy    string     `json:"created_by,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
