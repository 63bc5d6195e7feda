package qa

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

// NewPostgresStore creates a PostgreSQL-backed QA store.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

const qaColumns = `id, course_id, class_id, question, answer, category, tags,
	is_published, publish_date, source_question_ids, created_by, created_at, updated_at`

func scanQA(row pgx.Row) (QA, error) {
	var qa QA
	var classID, category *string
	var tagsJSON, sourcesJSON []byte

	err := row.Scan(
		&qa.ID, &qa.CourseID, &classID, &qa.Question, &qa.Answer, &category, &tagsJSON,
		&qa.IsPublished, &qa.PublishDate, &sourcesJSON, &qa.CreatedBy, &qa.CreatedAt, &qa.UpdatedAt,
	)
	if err != nil {
		return QA{}, err
	}

	if len(tagsJSON) > 0 {
		if err := json.Unmarshal(tagsJSON, &qa.Tags); err != nil {
			return QA{}, fmt.Errorf("decode tags: %w", err)
		}
	}
	if len(sourcesJSON) > 0 {
		if err := json.Unmarshal(sourcesJSON, &qa.SourceQuestionIDs); err != nil {
			return QA{}, fmt.Errorf("decode source question ids: %w", err)
		}
	}
	if classID != nil {
		qa.ClassID = *classID
	}
	if category != nil {
		qa.Category = *category
	}
	return qa, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func encodeStrings(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("encode string list: %w", err)
	}
	return string(data), nil
}

func (s *PostgresStore) Create(ctx context.Context, qa QA) (QA, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if qa.ID == "" {
		qa.ID = uuid.NewString()
	}
	tags, err := encodeStrings(qa.Tags)
	if err != nil {
		return QA{}, err
	}
	sources, err := encodeStrings(qa.SourceQuestionIDs)
	if err != nil {
		return QA{}, err
	}

	err = s.pool.QueryRow(ctx,
		`INSERT INTO qas (id, course_id, class_id, question, answer, category, tags,
		                  is_published, publish_date, source_question_ids, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8, $9, $10::jsonb, $11)
		 RETURNING created_at, updated_at`,
		qa.ID, qa.CourseID, nullIfEmpty(qa.ClassID), qa.Question, qa.Answer,
		nullIfEmpty(qa.Category), tags, qa.IsPublished, qa.PublishDate, sources, qa.CreatedBy,
	).Scan(&qa.CreatedAt, &qa.UpdatedAt)
	if err != nil {
		return QA{}, fmt.Errorf("create qa: %w", err)
	}
	return qa, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (QA, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	qa, err := scanQA(s.pool.QueryRow(ctx,
		`SELECT `+qaColumns+` FROM qas WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return QA{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return QA{}, fmt.Errorf("get qa: %w", err)
	}
	return qa, nil
}

func (s *PostgresStore) List(ctx context.Context, f ListFilter) ([]QA, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	query := `SELECT ` + qaColumns + ` FROM qas WHERE 1=1`
	args := []any{}
	n := 0
	arg := func(v any) string {
		n++
		args = append(args, v)
		return fmt.Sprintf("$%d", n)
	}

	if f.CourseID != "" {
		query += ` AND course_id = ` + arg(f.CourseID)
	}
	if f.ClassID != "" {
		query += ` AND class_id = ` + arg(f.ClassID)
	}
	if f.Category != "" {
		query += ` AND category = ` + arg(f.Category)
	}
	if f.PublishedOnly {
		query += ` AND is_published = TRUE`
	}

	query += ` ORDER BY created_at DESC, id`
	if f.Limit > 0 {
		query += ` LIMIT ` + arg(f.Limit)
	}
	if f.Offset > 0 {
		query += ` OFFSET ` + arg(f.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list qas: %w", err)
	}
	defer rows.Close()

	var out []QA
	for rows.Next() {
		qa, err := scanQA(rows)
		if err != nil {
			return nil, fmt.Errorf("scan qa: %w", err)
		}
		out = append(out, qa)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Update(ctx context.Context, qa QA) (QA, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tags, err := encodeStrings(qa.Tags)
	if err != nil {
		return QA{}, err
	}

	updated, err := scanQA(s.pool.QueryRow(ctx,
		`UPDATE qas
		 SET question = $2, answer = $3, category = $4, tags = $5::jsonb, class_id = $6, updated_at = now()
		 WHERE id = $1
		 RETURNING `+qaColumns,
		qa.ID, qa.Question, qa.Answer, nullIfEmpty(qa.Category), tags, nullIfEmpty(qa.ClassID),
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return QA{}, fmt.Errorf("%w: %s", ErrNotFound, qa.ID)
	}
	if err != nil {
		return QA{}, fmt.Errorf("update qa: %w", err)
	}
	return updated, nil
}

func (s *PostgresStore) SetPublished(ctx context.Context, id string, published bool) (QA, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	qa, err := scanQA(s.pool.QueryRow(ctx,
		`UPDATE qas
		 SET is_published = $2,
		     publish_date = CASE WHEN $2 THEN now() ELSE NULL END,
		     updated_at = now()
		 WHERE id = $1
		 RETURNING `+qaColumns,
		id, published,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return QA{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return QA{}, fmt.Errorf("set published: %w", err)
	}
	return qa, nil
}

func (s *PostgresStore) Search(ctx context.Context, courseID, query string, limit int) ([]QA, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 50
	}
	pattern := "%" + query + "%"

	rows, err := s.pool.Query(ctx,
		`SELECT `+qaColumns+`
		 FROM qas
		 WHERE course_id = $1 AND is_published = TRUE
		   AND (question ILIKE $2 OR answer ILIKE $2 OR tags::text ILIKE $2)
		 ORDER BY created_at DESC, id
		 LIMIT $3`,
		courseID, pattern, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("search qas: %w", err)
	}
	defer rows.Close()

	var out []QA
	for rows.Next() {
		qa, err := scanQA(rows)
		if err != nil {
			return nil, fmt.Errorf("scan qa: %w", err)
		}
		out = append(out, qa)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	cmd, err := s.pool.Exec(ctx, `DELETE FROM qas WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete qa: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}
