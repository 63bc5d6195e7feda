package question

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/qboard/qboard/internal/platform/database"
)

const dbTimeout = 5 * time.Second

// PostgresStore is a PostgreSQL-backed Store implementation. Row-level
// update semantics give the per-question serialization the lifecycle and
// aggregate invariants rely on.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgreSQL-backed question store.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

const questionColumns = `id, course_id, class_id, pseudonym, question_text, status,
	rejection_reason, cluster_id, difficulty_score, difficulty_level, keywords,
	ai_response_draft, ai_summary, is_merged, merged_to_qa_id, created_at, updated_at`

func scanQuestion(row pgx.Row) (Question, error) {
	var q Question
	var classID, reason, clusterID, level, draft, summary, mergedTo *string
	var keywordsJSON []byte

	err := row.Scan(
		&q.ID, &q.CourseID, &classID, &q.Pseudonym, &q.Text, &q.Status,
		&reason, &clusterID, &q.DifficultyScore, &level, &keywordsJSON,
		&draft, &summary, &q.IsMerged, &mergedTo, &q.CreatedAt, &q.UpdatedAt,
	)
	if err != nil {
		return Question{}, err
	}

	if len(keywordsJSON) > 0 {
		if err := json.Unmarshal(keywordsJSON, &q.Keywords); err != nil {
			return Question{}, fmt.Errorf("decode keywords: %w", err)
		}
	}
	if classID != nil {
		q.ClassID = *classID
	}
	if reason != nil {
		q.RejectionReason = *reason
	}
	if clusterID != nil {
		q.ClusterID = *clusterID
	}
	if level != nil {
		q.DifficultyLevel = DifficultyLevel(*level)
	}
	if draft != nil {
		q.AIResponseDraft = *draft
	}
	if summary != nil {
		q.AISummary = *summary
	}
	if mergedTo != nil {
		q.MergedToQAID = *mergedTo
	}
	return q, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
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

func (s *PostgresStore) Create(ctx context.Context, q Question) (Question, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	if q.Status == "" {
		q.Status = StatusPending
	}
	keywords, err := encodeKeywords(q.Keywords)
	if err != nil {
		return Question{}, err
	}

	err = s.pool.QueryRow(ctx,
		`INSERT INTO questions (id, course_id, class_id, pseudonym, question_text, status, keywords)
		 VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb)
		 RETURNING created_at, updated_at`,
		q.ID, q.CourseID, nullIfEmpty(q.ClassID), q.Pseudonym, q.Text, q.Status, keywords,
	).Scan(&q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		return Question{}, fmt.Errorf("create question: %w", err)
	}
	return q, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (Question, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	q, err := scanQuestion(s.pool.QueryRow(ctx,
		`SELECT `+questionColumns+` FROM questions WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Question{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Question{}, fmt.Errorf("get question: %w", err)
	}
	return q, nil
}

func (s *PostgresStore) List(ctx context.Context, f ListFilter) ([]Question, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	query := `SELECT ` + questionColumns + ` FROM questions WHERE 1=1`
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
	if f.ClusterID != "" {
		query += ` AND cluster_id = ` + arg(f.ClusterID)
	}
	if f.Status != "" {
		query += ` AND status = ` + arg(string(f.Status))
	} else if !f.IncludeDeleted {
		query += ` AND status <> ` + arg(string(StatusDeleted))
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
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()

	var out []Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// transitionSources returns the statuses from which `to` is reachable.
func transitionSources(to Status) []string {
	var from []string
	for src, targets := range allowedTransitions {
		for _, t := range targets {
			if t == to {
				from = append(from, string(src))
			}
		}
	}
	return from
}

func (s *PostgresStore) Transition(ctx context.Context, id string, to Status, reason string) (Question, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	sources := transitionSources(to)
	if len(sources) == 0 {
		// No state may ever move to `to` (e.g. back to PENDING).
		current, err := s.Get(ctx, id)
		if err != nil {
			return Question{}, err
		}
		if current.IsMerged {
			return Question{}, fmt.Errorf("%w: %s", ErrAlreadyMerged, id)
		}
		return Question{}, InvalidTransitionError{From: current.Status, To: to}
	}

	var reasonArg *string
	if to == StatusRejected && reason != "" {
		reasonArg = &reason
	}

	q, err := scanQuestion(s.pool.QueryRow(ctx,
		`UPDATE questions
		 SET status = $2, rejection_reason = COALESCE($3, rejection_reason), updated_at = now()
		 WHERE id = $1 AND status = ANY($4) AND is_merged = FALSE
		 RETURNING `+questionColumns,
		id, string(to), reasonArg, sources,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		// The row is missing, merged, or the move is illegal; read to tell.
		current, getErr := s.Get(ctx, id)
		if getErr != nil {
			return Question{}, getErr
		}
		if current.IsMerged {
			return Question{}, fmt.Errorf("%w: %s", ErrAlreadyMerged, id)
		}
		return Question{}, InvalidTransitionError{From: current.Status, To: to}
	}
	if err != nil {
		return Question{}, fmt.Errorf("transition question: %w", err)
	}
	return q, nil
}

func (s *PostgresStore) ApplyAnalysis(ctx context.Context, id string, a Analysis) (Question, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	keywords, err := encodeKeywords(a.Keywords)
	if err != nil {
		return Question{}, err
	}

	q, err := scanQuestion(s.pool.QueryRow(ctx,
		`UPDATE questions
		 SET cluster_id = $2,
		     keywords = $3::jsonb,
		     difficulty_score = $4,
		     difficulty_level = $5,
		     ai_summary = COALESCE($6, ai_summary),
		     updated_at = now()
		 WHERE id = $1 AND is_merged = FALSE
		 RETURNING `+questionColumns,
		id, nullIfEmpty(a.ClusterID), keywords, a.DifficultyScore, nullIfEmpty(string(a.DifficultyLevel)), a.Summary,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		if _, getErr := s.Get(ctx, id); getErr != nil {
			return Question{}, getErr
		}
		return Question{}, fmt.Errorf("%w: %s", ErrAlreadyMerged, id)
	}
	if err != nil {
		return Question{}, fmt.Errorf("apply analysis: %w", err)
	}
	return q, nil
}

func (s *PostgresStore) ApplyDraft(ctx context.Context, id string, draft string, summary *string) (Question, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	q, err := scanQuestion(s.pool.QueryRow(ctx,
		`UPDATE questions
		 SET ai_response_draft = $2, ai_summary = COALESCE($3, ai_summary), updated_at = now()
		 WHERE id = $1 AND is_merged = FALSE
		 RETURNING `+questionColumns,
		id, draft, summary,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		if _, getErr := s.Get(ctx, id); getErr != nil {
			return Question{}, getErr
		}
		return Question{}, fmt.Errorf("%w: %s", ErrAlreadyMerged, id)
	}
	if err != nil {
		return Question{}, fmt.Errorf("apply draft: %w", err)
	}
	return q, nil
}

func (s *PostgresStore) MarkMerged(ctx context.Context, ids []string, qaID string) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	return database.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		cmd, err := tx.Exec(ctx,
			`UPDATE questions
			 SET is_merged = TRUE, merged_to_qa_id = $2, updated_at = now()
			 WHERE id = ANY($1) AND is_merged = FALSE`,
			ids, qaID,
		)
		if err != nil {
			return fmt.Errorf("mark merged: %w", err)
		}
		if int(cmd.RowsAffected()) != len(ids) {
			// Roll back and report which member blocked the merge.
			for _, id := range ids {
				var merged bool
				err := tx.QueryRow(ctx, `SELECT is_merged FROM questions WHERE id = $1`, id).Scan(&merged)
				if errors.Is(err, pgx.ErrNoRows) {
					return fmt.Errorf("%w: %s", ErrNotFound, id)
				}
				if err != nil {
					return fmt.Errorf("check merge member: %w", err)
				}
				if merged {
					return fmt.Errorf("%w: %s", ErrAlreadyMerged, id)
				}
			}
			return fmt.Errorf("mark merged: updated %d of %d", cmd.RowsAffected(), len(ids))
		}
		return nil
	})
}

func (s *PostgresStore) ReleaseCluster(ctx context.Context, clusterID string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	cmd, err := s.pool.Exec(ctx,
		`UPDATE questions SET cluster_id = NULL, updated_at = now() WHERE cluster_id = $1`,
		clusterID,
	)
	if err != nil {
		return 0, fmt.Errorf("release cluster: %w", err)
	}
	return int(cmd.RowsAffected()), nil
}

func (s *PostgresStore) ClusterStats(ctx context.Context, clusterID string) (int, float64, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var count int
	var avg float64
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(AVG(difficulty_score), 0)
		 FROM questions
		 WHERE cluster_id = $1 AND is_merged = FALSE AND status NOT IN ($2, $3)`,
		clusterID, string(StatusDeleted), string(StatusWithdrawn),
	).Scan(&count, &avg)
	if err != nil {
		return 0, 0, fmt.Errorf("cluster stats: %w", err)
	}
	return count, avg, nil
}

func (s *PostgresStore) PendingForAnalysis(ctx context.Context, courseID string, limit int) ([]Question, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+questionColumns+`
		 FROM questions
		 WHERE course_id = $1 AND status = $2 AND cluster_id IS NULL AND is_merged = FALSE
		 ORDER BY created_at, id
		 LIMIT $3`,
		courseID, string(StatusPending), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("pending for analysis: %w", err)
	}
	defer rows.Close()

	var out []Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}
