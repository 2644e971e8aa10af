package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/MrWong99/echocoach/pkg/store"
)

const sessionColumns = `id, user_id, session_type, difficulty_level, status, started_at,
       completed_at, total_questions, avg_clarity_score, avg_confidence_score, created_at`

// CreateSession implements [store.SessionStore].
func (s *Store) CreateSession(ctx context.Context, sess *store.Session) error {
	sess.ID = newID(sess.ID)
	now := time.Now().UTC()
	if sess.StartedAt.IsZero() {
		sess.StartedAt = now
	}
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = now
	}
	if sess.Status == "" {
		sess.Status = store.StatusActive
	}

	const q = `
		INSERT INTO interview_sessions
		    (id, user_id, session_type, difficulty_level, status, started_at,
		     total_questions, avg_clarity_score, avg_confidence_score, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := s.pool.Exec(ctx, q,
		sess.ID,
		sess.UserID,
		sess.SessionType,
		sess.Difficulty,
		string(sess.Status),
		sess.StartedAt,
		sess.TotalQuestions,
		sess.AvgClarity,
		sess.AvgConfidence,
		sess.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("session store: create: %w", err)
	}
	return nil
}

// GetSession implements [store.SessionStore].
func (s *Store) GetSession(ctx context.Context, id, userID string) (*store.Session, error) {
	q := "SELECT " + sessionColumns + "\nFROM interview_sessions\nWHERE id = $1"
	args := []any{id}
	if userID != "" {
		q += " AND user_id = $2"
		args = append(args, userID)
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("session store: get: %w", err)
	}
	sess, err := pgx.CollectExactlyOneRow(rows, scanSession)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session store: get: %w", err)
	}
	return &sess, nil
}

// UpdateSession implements [store.SessionStore].
func (s *Store) UpdateSession(ctx context.Context, id, userID string, u store.SessionUpdate) (*store.Session, error) {
	var args []any
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	var sets []string
	if u.Status != nil {
		sets = append(sets, "status = "+next(string(*u.Status)))
	}
	if u.CompletedAt != nil {
		sets = append(sets, "completed_at = "+next(*u.CompletedAt))
	}
	if u.TotalQuestions != nil {
		sets = append(sets, "total_questions = "+next(*u.TotalQuestions))
	}
	if u.AvgClarity != nil {
		sets = append(sets, "avg_clarity_score = "+next(*u.AvgClarity))
	}
	if u.AvgConfidence != nil {
		sets = append(sets, "avg_confidence_score = "+next(*u.AvgConfidence))
	}
	if len(sets) == 0 {
		return s.GetSession(ctx, id, userID)
	}

	q := "UPDATE interview_sessions\nSET    " + strings.Join(sets, ",\n       ") +
		"\nWHERE  id = " + next(id)
	if userID != "" {
		q += " AND user_id = " + next(userID)
	}
	q += "\nRETURNING " + sessionColumns

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("session store: update: %w", err)
	}
	sess, err := pgx.CollectExactlyOneRow(rows, scanSession)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session store: update: %w", err)
	}
	return &sess, nil
}

// ListSessions implements [store.SessionStore].
func (s *Store) ListSessions(ctx context.Context, userID string) ([]store.Session, error) {
	q := "SELECT " + sessionColumns + `
		FROM   interview_sessions
		WHERE  user_id = $1
		ORDER  BY created_at DESC`

	rows, err := s.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("session store: list: %w", err)
	}
	sessions, err := pgx.CollectRows(rows, scanSession)
	if err != nil {
		return nil, fmt.Errorf("session store: scan rows: %w", err)
	}
	if sessions == nil {
		sessions = []store.Session{}
	}
	return sessions, nil
}

func scanSession(row pgx.CollectableRow) (store.Session, error) {
	var (
		sess   store.Session
		status string
	)
	err := row.Scan(
		&sess.ID,
		&sess.UserID,
		&sess.SessionType,
		&sess.Difficulty,
		&status,
		&sess.StartedAt,
		&sess.CompletedAt,
		&sess.TotalQuestions,
		&sess.AvgClarity,
		&sess.AvgConfidence,
		&sess.CreatedAt,
	)
	sess.Status = store.SessionStatus(status)
	return sess, err
}
