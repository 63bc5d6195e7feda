package announcement

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

// NewPostgresStore creates a PostgreSQL-backed announcement store.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

const announcementColumns = `id, course_id, class_id, title, content, related_qa_ids,
	is_published, publish_date, created_by, created_at, updated_at`

func scanAnnouncement(row pgx.Row) (Announcement, error) {
	var a Announcement
	var classID *string
	var relatedJSON []byte

	err := row.Scan(
		&a.ID, &a.CourseID, &classID, &a.Title, &a.Content, &relatedJSON,
		&a.IsPublished, &a.PublishDate, &a.CreatedBy, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return Announcement{}, err
	}

	if len(relatedJSON) > 0 {
		if err := json.Unmarshal(relatedJSON, &a.RelatedQAIDs); err != nil {
			return Announcement{}, fmt.Errorf("decode related qa ids: %w", err)
		}
	}
	if classID != nil {
		a.ClassID = *classID
	}
	return a, nil
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

func (s *PostgresStore) Create(ctx context.Context, a Announcement) (Announcement, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	related, err := encodeStrings(a.RelatedQAIDs)
	if err != nil {
		return Announcement{}, err
	}

	err = s.pool.QueryRow(ctx,
		`INSERT INTO announcements (id, course_id, class_id, title, content, related_qa_ids,
		                            is_published, publish_date, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7, CASE WHEN $7 THEN now() ELSE NULL END, $8)
		 RETURNING publish_date, created_at, updated_at`,
		a.ID, a.CourseID, nullIfEmpty(a.ClassID), a.Title, a.Content, related,
		a.IsPublished, a.CreatedBy,
	).Scan(&a.PublishDate, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return Announcement{}, fmt.Errorf("create announcement: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (Announcement, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	a, err := scanAnnouncement(s.pool.QueryRow(ctx,
		`SELECT `+announcementColumns+` FROM announcements WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Announcement{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Announcement{}, fmt.Errorf("get announcement: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) List(ctx context.Context, f ListFilter) ([]Announcement, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	query := `SELECT ` + announcementColumns + ` FROM announcements WHERE 1=1`
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
		// Course-wide announcements carry no class and match every class.
		query += ` AND (class_id = ` + arg(f.ClassID) + ` OR class_id IS NULL)`
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
		return nil, fmt.Errorf("list announcements: %w", err)
	}
	defer rows.Close()

	var out []Announcement
	for rows.Next() {
		a, err := scanAnnouncement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan announcement: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Update(ctx context.Context, a Announcement) (Announcement, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	related, err := encodeStrings(a.RelatedQAIDs)
	if err != nil {
		return Announcement{}, err
	}

	updated, err := scanAnnouncement(s.pool.QueryRow(ctx,
		`UPDATE announcements
		 SET title = $2, content = $3, related_qa_ids = $4::jsonb, class_id = $5, updated_at = now()
		 WHERE id = $1
		 RETURNING `+announcementColumns,
		a.ID, a.Title, a.Content, related, nullIfEmpty(a.ClassID),
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return Announcement{}, fmt.Errorf("%w: %s", ErrNotFound, a.ID)
	}
	if err != nil {
		return Announcement{}, fmt.Errorf("update announcement: %w", err)
	}
	return updated, nil
}

func (s *PostgresStore) SetPublished(ctx context.Context, id string, published bool) (Announcement, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	a, err := scanAnnouncement(s.pool.QueryRow(ctx,
		`UPDATE announcements
		 SET is_published = $2,
		     publish_date = CASE WHEN $2 THEN now() ELSE NULL END,
		     updated_at = now()
		 WHERE id = $1
		 RETURNING `+announcementColumns,
		id, published,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return Announcement{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Announcement{}, fmt.Errorf("set published: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	cmd, err := s.pool.Exec(ctx, `DELETE FROM announcements WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete announcement: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}
