package question_test

import (
	"testing"

	"github.com/qboard/qboard/internal/question"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to question.Status
		want     bool
	}{
		{question.StatusPending, question.StatusApproved, true},
		{question.StatusPending, question.StatusRejected, true},
		{question.StatusPending, question.StatusDeleted, true},
		{question.StatusPending, question.StatusWithdrawn, true},
		{question.StatusApproved, question.StatusDeleted, true},
		{question.StatusApproved, question.StatusWithdrawn, true},
		{question.StatusApproved, question.StatusRejected, false},
		{question.StatusApproved, question.StatusPending, false},
		{question.StatusRejected, question.StatusDeleted, true},
		{question.StatusRejected, question.StatusApproved, false},
		{question.StatusRejected, question.StatusPending, false},
		{question.StatusDeleted, question.StatusPending, false},
		{question.StatusDeleted, question.StatusApproved, false},
		{question.StatusWithdrawn, question.StatusDeleted, false},
		{question.StatusWithdrawn, question.StatusPending, false},
		{question.StatusPending, question.StatusPending, false},
	}
	for _, tt := range tests {
		if got := question.CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestLevelForScore(t *testing.T) {
	tests := []struct {
		score float64
		want  question.DifficultyLevel
	}{
		{0.0, question.DifficultyEasy},
		{0.29, question.DifficultyEasy},
		{0.3, question.DifficultyMedium},
		{0.69, question.DifficultyMedium},
		{0.7, question.DifficultyHard},
		{1.0, question.DifficultyHard},
	}
	for _, tt := range tests {
		if got := question.LevelForScore(tt.score); got != tt.want {
			t.Errorf("LevelForScore(%v) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestParseStatus(t *testing.T) {
	if _, err := question.ParseStatus("APPROVED"); err != nil {
		t.Errorf("ParseStatus(APPROVED): %v", err)
	}
	if _, err := question.ParseStatus("approved"); err == nil {
		t.Error("ParseStatus(approved): want error for lowercase input")
	}
	if _, err := question.ParseStatus("ARCHIVED"); err == nil {
		t.Error("ParseStatus(ARCHIVED): want error for unknown status")
	}
}
