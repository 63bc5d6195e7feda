// Package course manages the course registry that questions are submitted
// against.
package course

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a course id does not exist.
var ErrNotFound = errors.New("course not found")

// ErrInactive is returned when an operation targets a deactivated course.
var ErrInactive = errors.New("course is inactive")

// Course is a teaching unit that owns questions, clusters, and QAs.
type Course struct {
	ID          string    `json:"id"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Semester    string    `json:"semester,omitempty"`
	Description string    `json:"description,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
