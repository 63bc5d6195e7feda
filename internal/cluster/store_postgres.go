package cluster

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const dbTimeout = 5 * time.Second

// PostgresStore is a PostgreSQL-backed Store implementation.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgreSQL-backed cluster store.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

const clusterColumns = `id, course_id, topic_label, manual_label, summary, keywords,
	question_count, avg_difficulty, is_locked, created_at, updated_at`

func scanCluster(row pgx.Row) (Cluster, error) {
	var c Cluster
	var manualLabel *string
	var keywordsJSON []byte

	err := row.Scan(
		&c.ID, &c.CourseID, &c.TopicLabel, &manualLabel, &c.Summary, &keywordsJSON,
		&c.QuestionCount, &c.AvgDifficulty, &c.IsLocked, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return Cluster{}, err
	}

	if manualLabel != nil {
		c.ManualLabel = *manualLabel
	}
	if len(keywordsJSON) > 0 {
		if err := json.Unmarshal(keywordsJSON, &c.Keywords); err != nil {
			return Cluster{}, fmt.Errorf("decode keywords: %w", err)
		}
	}
	return c, nil
}

func encodeKeywords(keywords []string) (string, error) {
	if keywords == nil {
		keywords = []string{}
	}
	data, err := json.Marshal(keywords)
	if err != nil {
		return "", fmt.Errorf("encode keywords: %w", err)
	}
	return string(data), nil
}

func (s *PostgresStore) Create(ctx context.Context, c Cluster) (Cluster, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	keywords, err := encodeKeywords(c.Keywords)
	if err != nil {
		return Cluster{}, err
	}

	var manualLabel *string
	if c.ManualLabel != "" {
		manualLabel = &c.ManualLabel
	}

	err = s.pool.QueryRow(ctx,
		`INSERT INTO clusters (id, course_id, topic_label, manual_label, summary, keywords, is_locked)
		 VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7)
		 RETURNING created_at, updated_at`,
		c.ID, c.CourseID, c.TopicLabel, manualLabel, c.Summary, keywords, c.IsLocked,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return Cluster{}, fmt.Errorf("create cluster: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (Cluster, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	c, err := scanCluster(s.pool.QueryRow(ctx,
		`SELECT `+clusterColumns+` FROM clusters WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Cluster{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Cluster{}, fmt.Errorf("get cluster: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) ListByCourse(ctx context.Context, courseID string) ([]Cluster, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT `+clusterColumns+` FROM clusters
		 WHERE course_id = $1
		 ORDER BY question_count DESC, id`,
		courseID,
	)
	if err != nil {
		return nil, fmt.Errorf("list clusters: %w", err)
	}
	defer rows.Close()

	var out []Cluster
	for rows.Next() {
		c, err := scanCluster(rows)
		if err != nil {
			return nil, fmt.Errorf("scan cluster: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) FindByLabel(ctx context.Context, courseID, label string) (Cluster, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	// The folded form is computed in Go, so matching scans the course's
	// clusters instead of pushing the fold into SQL. Course cluster counts
	// are small (tens, not thousands).
	clusters, err := s.ListByCourse(ctx, courseID)
	if err != nil {
		return Cluster{}, err
	}

	folded := FoldLabel(label)
	for _, c := range clusters {
		if FoldLabel(c.Label()) == folded {
			return c, nil
		}
	}
	return Cluster{}, fmt.Errorf("%w: label %q", ErrNotFound, label)
}

func (s *PostgresStore) Rename(ctx context.Context, id, label string) (Cluster, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	c, err := scanCluster(s.pool.QueryRow(ctx,
		`UPDATE clusters
		 SET manual_label = $2, is_locked = TRUE, updated_at = now()
		 WHERE id = $1
		 RETURNING `+clusterColumns,
		id, label,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return Cluster{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Cluster{}, fmt.Errorf("rename cluster: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) SetLocked(ctx context.Context, id string, locked bool) (Cluster, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	c, err := scanCluster(s.pool.QueryRow(ctx,
		`UPDATE clusters SET is_locked = $2, updated_at = now()
		 WHERE id = $1
		 RETURNING `+clusterColumns,
		id, locked,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return Cluster{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Cluster{}, fmt.Errorf("set cluster lock: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) ApplyAIMetadata(ctx context.Context, id, label, summary string, keywords []string) (Cluster, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	encoded, err := encodeKeywords(keywords)
	if err != nil {
		return Cluster{}, err
	}

	// The lock check is part of the UPDATE predicate so a concurrent manual
	// rename can never be overwritten by an in-flight AI run.
	c, err := scanCluster(s.pool.QueryRow(ctx,
		`UPDATE clusters
		 SET topic_label = $2, summary = $3, keywords = $4::jsonb, updated_at = now()
		 WHERE id = $1 AND is_locked = FALSE
		 RETURNING `+clusterColumns,
		id, label, summary, encoded,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		// Locked, or gone; return current state or NotFound.
		return s.Get(ctx, id)
	}
	if err != nil {
		return Cluster{}, fmt.Errorf("apply ai metadata: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) SetAggregates(ctx context.Context, id string, count int, avg float64) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	cmd, err := s.pool.Exec(ctx,
		`UPDATE clusters SET question_count = $2, avg_difficulty = $3, updated_at = now()
		 WHERE id = $1`,
		id, count, avg,
	)
	if err != nil {
		return fmt.Errorf("set cluster aggregates: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	cmd, err := s.pool.Exec(ctx, `DELETE FROM clusters WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete cluster: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}
