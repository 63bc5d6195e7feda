package audit_test

import (
	"testing"

	"github.com/qboard/qboard/internal/audit"
)

func TestMemoryLogger_RecordsEvents(t *testing.T) {
	logger := audit.NewMemoryLogger()
	ctx := t.Context()

	err := logger.Log(ctx, audit.Event{
		EntityType: "question",
		EntityID:   "q1",
		Action:     "status_changed",
		Actor:      "mod-1",
		Data:       map[string]any{"from": "PENDING", "to": "APPROVED"},
	})
	if err != nil {
		t.Fatalf("Log() error = %v", err)
	}

	events := logger.Events()
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	if events[0].Action != "status_changed" {
		t.Errorf("Action = %q, want status_changed", events[0].Action)
	}
	if events[0].CreatedAt.IsZero() {
		t.Error("CreatedAt should be filled in")
	}
}

func TestMemoryLogger_RequiresAction(t *testing.T) {
	logger := audit.NewMemoryLogger()

	if err := logger.Log(t.Context(), audit.Event{EntityType: "question", EntityID: "q1"}); err == nil {
		t.Error("Log() should reject event without action")
	}
}

func TestNopLogger(t *testing.T) {
	var logger audit.Logger = audit.NopLogger{}
	if err := logger.Log(t.Context(), audit.Event{}); err != nil {
		t.Errorf("NopLogger.Log() error = %v", err)
	}
}
