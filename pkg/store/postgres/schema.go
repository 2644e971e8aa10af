// Package postgres provides a PostgreSQL-backed implementation of [store.Store].
//
// All record types share a single [pgxpool.Pool]. The pgvector extension must
// be available in the target database; [Migrate] installs it automatically via
// CREATE EXTENSION IF NOT EXISTS and uses it for question embeddings.
//
// Usage:
//
//	s, err := postgres.NewStore(ctx, dsn, postgres.WithEmbeddingDimensions(1536))
//	if err != nil { … }
//	defer s.Close()
//
//	_ = s.CreateSession(ctx, &store.Session{UserID: uid, SessionType: "behavioral"})
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sessions
// ─────────────────────────────────────────────────────────────────────────────

const ddlSessions = `
CREATE TABLE IF NOT EXISTS interview_sessions (
    id                    TEXT         PRIMARY KEY,
    user_id               TEXT         NOT NULL,
    session_type          TEXT         NOT NULL DEFAULT 'general',
    difficulty_level      TEXT         NOT NULL DEFAULT 'medium',
    status                TEXT         NOT NULL DEFAULT 'active',
    started_at            TIMESTAMPTZ  NOT NULL DEFAULT now(),
    completed_at          TIMESTAMPTZ,
    total_questions       INTEGER      NOT NULL DEFAULT 0,
    avg_clarity_score     DOUBLE PRECISION NOT NULL DEFAULT 0,
    avg_confidence_score  DOUBLE PRECISION NOT NULL DEFAULT 0,
    created_at            TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_interview_sessions_user
    ON interview_sessions (user_id, created_at DESC);
`

// ─────────────────────────────────────────────────────────────────────────────
// Question bank
// ─────────────────────────────────────────────────────────────────────────────

// ddlQuestions returns the question bank DDL with the embedding dimension
// substituted. The dimension is baked into the column type at creation time.
func ddlQuestions(embeddingDimensions int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS interview_questions (
    id                 TEXT         PRIMARY KEY,
    question_text      TEXT         NOT NULL,
    category           TEXT         NOT NULL,
    difficulty         TEXT         NOT NULL,
    expected_keywords  TEXT[]       NOT NULL DEFAULT '{}',
    follow_up_prompts  TEXT[]       NOT NULL DEFAULT '{}',
    embedding          vector(%d),
    created_at         TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_interview_questions_filter
    ON interview_questions (category, difficulty);

CREATE INDEX IF NOT EXISTS idx_interview_questions_embedding
    ON interview_questions USING hnsw (embedding vector_cosine_ops);
`, embeddingDimensions)
}

// ─────────────────────────────────────────────────────────────────────────────
// Responses and feedback
// ─────────────────────────────────────────────────────────────────────────────

const ddlResponses = `
CREATE TABLE IF NOT EXISTS user_responses (
    id                  TEXT         PRIMARY KEY,
    session_id          TEXT         NOT NULL REFERENCES interview_sessions (id) ON DELETE CASCADE,
    question_id         TEXT         NOT NULL REFERENCES interview_questions (id),
    question_number     INTEGER      NOT NULL,
    audio_transcript    TEXT         NOT NULL DEFAULT '',
    clarity_score       DOUBLE PRECISION NOT NULL DEFAULT 0,
    confidence_score    DOUBLE PRECISION NOT NULL DEFAULT 0,
    technical_accuracy  DOUBLE PRECISION NOT NULL DEFAULT 0,
    filler_word_count   INTEGER      NOT NULL DEFAULT 0,
    speech_pace         DOUBLE PRECISION NOT NULL DEFAULT 0,
    pause_count         INTEGER      NOT NULL DEFAULT 0,
    gpt_evaluation      JSONB        NOT NULL DEFAULT '{}',
    created_at          TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_user_responses_session
    ON user_responses (session_id, question_number);

CREATE TABLE IF NOT EXISTS feedback_history (
    id                       TEXT         PRIMARY KEY,
    response_id              TEXT         NOT NULL REFERENCES user_responses (id) ON DELETE CASCADE,
    session_id               TEXT         NOT NULL,
    feedback_text            TEXT         NOT NULL DEFAULT '',
    improvement_suggestions  TEXT[]       NOT NULL DEFAULT '{}',
    strengths                TEXT[]       NOT NULL DEFAULT '{}',
    areas_to_improve         TEXT[]       NOT NULL DEFAULT '{}',
    created_at               TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_feedback_history_response
    ON feedback_history (response_id);
`

// Migrate creates or ensures all required tables and extensions exist. It is
// idempotent and safe to call on every application start.
//
// embeddingDimensions must match the embeddings model configured for question
// deduplication. Changing it after the first migration requires a manual
// schema update.
func Migrate(ctx context.Context, pool *pgxpool.Pool, embeddingDimensions int) error {
	statements := []string{
		ddlSessions,
		ddlQuestions(embeddingDimensions),
		ddlResponses,
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
	}
	return nil
}
