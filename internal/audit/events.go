// Package audit records moderation and reconciliation events for the audit
// trail. Events carry pseudonyms only, never raw external user handles.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Event is a single audit record.
type Event struct {
	EntityType string
	EntityID   string
	Action     string
	Actor      string
	Data       map[string]any
	CreatedAt  time.Time
}

// Logger defines event recording behavior.
type Logger interface {
	Log(ctx context.Context, event Event) error
}

// NopLogger ignores all events.
type NopLogger struct{}

func (NopLogger) Log(context.Context, Event) error {
	return nil
}

// MemoryLogger stores events in memory for tests.
type MemoryLogger struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryLogger() *MemoryLogger {
	return &MemoryLogger{events: []Event{}}
}

func (l *MemoryLogger) Log(_ context.Context, event Event) error {
	if event.Action == "" {
		return fmt.Errorf("action is required")
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	l.mu.Lock()
	l.events = append(l.events, event)
	l.mu.Unlock()

	return nil
}

func (l *MemoryLogger) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Event{}, l.events...)
}

// PostgresLogger inserts events into the events table.
type PostgresLogger struct {
	pool *pgxpool.Pool
}

func NewPostgresLogger(pool *pgxpool.Pool) *PostgresLogger {
	return &PostgresLogger{pool: pool}
}

func (l *PostgresLogger) Log(ctx context.Context, event Event) error {
	if l == nil || l.pool == nil {
		return fmt.Errorf("event logger pool is nil")
	}
	if event.Action == "" {
		return fmt.Errorf("action is required")
	}
	if event.EntityType == "" || event.EntityID == "" {
		return fmt.Errorf("entity_type and entity_id are required")
	}

	payload := event.Data
	if payload == nil {
		payload = map[string]any{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}

	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err = l.pool.Exec(ctx,
		`INSERT INTO events (entity_type, entity_id, action, actor, data, created_at)
		 VALUES ($1, $2, $3, $4, $5::jsonb, $6)`,
		event.EntityType,
		event.EntityID,
		event.Action,
		event.Actor,
		string(data),
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	slog.Debug("event logged",
		"action", event.Action,
		"entity_type", event.EntityType,
		"entity_id", event.EntityID,
	)
	return nil
}
