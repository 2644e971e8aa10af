package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/MrWong99/echocoach/pkg/store"
)

const questionColumns = `id, question_text, category, difficulty, expected_keywords, follow_up_prompts, created_at`

// GetQuestion implements [store.QuestionStore].
func (s *Store) GetQuestion(ctx context.Context, id string) (*store.Question, error) {
	q := "SELECT " + questionColumns + " FROM interview_questions WHERE id = $1"

	rows, err := s.pool.Query(ctx, q, id)
	if err != nil {
		return nil, fmt.Errorf("question store: get: %w", err)
	}
	question, err := pgx.CollectExactlyOneRow(rows, scanQuestion)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("question store: get: %w", err)
	}
	return &question, nil
}

// FindQuestions implements [store.QuestionStore].
func (s *Store) FindQuestions(ctx context.Context, f store.QuestionFilter) ([]store.Question, error) {
	q := "SELECT " + questionColumns + `
		FROM   interview_questions
		WHERE  category = $1
		  AND  difficulty = $2
		  AND  NOT (question_text = ANY($3))
		ORDER  BY created_at`
	args := []any{f.Category, f.Difficulty, nonNil(f.ExcludeTexts)}
	if f.Limit > 0 {
		q += "\nLIMIT $4"
		args = append(args, f.Limit)
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("question store: find: %w", err)
	}
	return collectQuestions(rows)
}

// InsertQuestion implements [store.QuestionStore]. The embedding is stored
// only when its length matches the configured dimension.
func (s *Store) InsertQuestion(ctx context.Context, question *store.Question) error {
	question.ID = newID(question.ID)
	if question.CreatedAt.IsZero() {
		question.CreatedAt = time.Now().UTC()
	}

	var embedding any
	if len(question.Embedding) == s.dims {
		embedding = pgvector.NewVector(question.Embedding)
	}

	const q = `
		INSERT INTO interview_questions
		    (id, question_text, category, difficulty, expected_keywords, follow_up_prompts, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.pool.Exec(ctx, q,
		question.ID,
		question.Text,
		question.Category,
		question.Difficulty,
		nonNil(question.ExpectedKeywords),
		nonNil(question.FollowUpPrompts),
		embedding,
		question.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("question store: insert: %w", err)
	}
	return nil
}

// SimilarQuestions implements [store.QuestionStore] using the pgvector cosine
// distance operator.
func (s *Store) SimilarQuestions(ctx context.Context, embedding []float32, limit int) ([]store.ScoredQuestion, error) {
	if limit <= 0 {
		limit = 5
	}
	q := "SELECT " + questionColumns + `, embedding <=> $1 AS distance
		FROM   interview_questions
		WHERE  embedding IS NOT NULL
		ORDER  BY distance
		LIMIT  $2`

	rows, err := s.pool.Query(ctx, q, pgvector.NewVector(embedding), limit)
	if err != nil {
		return nil, fmt.Errorf("question store: similar: %w", err)
	}
	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.ScoredQuestion, error) {
		var sq store.ScoredQuestion
		err := row.Scan(
			&sq.Question.ID,
			&sq.Question.Text,
			&sq.Question.Category,
			&sq.Question.Difficulty,
			&sq.Question.ExpectedKeywords,
			&sq.Question.FollowUpPrompts,
			&sq.Question.CreatedAt,
			&sq.Distance,
		)
		return sq, err
	})
	if err != nil {
		return nil, fmt.Errorf("question store: scan rows: %w", err)
	}
	if results == nil {
		results = []store.ScoredQuestion{}
	}
	return results, nil
}

func scanQuestion(row pgx.CollectableRow) (store.Question, error) {
	var q store.Question
	err := row.Scan(
		&q.ID,
		&q.Text,
		&q.Category,
		&q.Difficulty,
		&q.ExpectedKeywords,
		&q.FollowUpPrompts,
		&q.CreatedAt,
	)
	return q, err
}

func collectQuestions(rows pgx.Rows) ([]store.Question, error) {
	questions, err := pgx.CollectRows(rows, scanQuestion)
	if err != nil {
		return nil, fmt.Errorf("question store: scan rows: %w", err)
	}
	if questions == nil {
		questions = []store.Question{}
	}
	return questions, nil
}
