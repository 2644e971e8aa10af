// Package store defines the persistence layer for interview sessions, the
// question bank, recorded responses and their feedback.
//
// The interfaces are split by record type so that consumers can depend on the
// narrowest slice they need; [Store] composes all of them. Backends live in
// sub-packages: postgres (pgx + pgvector) for production, memstore for tests
// and single-node development, and mock for call-recording test doubles.
//
// Every implementation must be safe for concurrent use.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a requested record does not exist or is not
// visible to the requesting user.
var ErrNotFound = errors.New("store: not found")

// SessionStore persists interview sessions.
type SessionStore interface {
	// CreateSession inserts s, assigning ID and timestamps when empty.
	CreateSession(ctx context.Context, s *Session) error

	// GetSession returns the session with id owned by userID. An empty userID
	// skips the ownership check.
	GetSession(ctx context.Context, id, userID string) (*Session, error)

	// UpdateSession applies u to the session with id owned by userID and
	// returns the updated record.
	UpdateSession(ctx context.Context, id, userID string, u SessionUpdate) (*Session, error)

	// ListSessions returns all sessions of userID, newest first.
	ListSessions(ctx context.Context, userID string) ([]Session, error)
}

// QuestionStore persists the question bank.
type QuestionStore interface {
	// GetQuestion returns the question with id.
	GetQuestion(ctx context.Context, id string) (*Question, error)

	// FindQuestions returns questions matching f.
	FindQuestions(ctx context.Context, f QuestionFilter) ([]Question, error)

	// InsertQuestion stores q, assigning ID and CreatedAt when empty.
	InsertQuestion(ctx context.Context, q *Question) error

	// SimilarQuestions returns up to limit questions ordered by cosine
	// distance to embedding. Questions stored without an embedding are
	// skipped.
	SimilarQuestions(ctx context.Context, embedding []float32, limit int) ([]ScoredQuestion, error)
}

// ResponseStore persists answers and feedback.
type ResponseStore interface {
	// InsertResponse stores r, assigning ID and CreatedAt when empty.
	InsertResponse(ctx context.Context, r *Response) error

	// InsertFeedback stores f, assigning ID and CreatedAt when empty.
	InsertFeedback(ctx context.Context, f *Feedback) error

	// ListResponses returns the responses of sessionID ordered by question
	// number, each with its question and feedback attached.
	ListResponses(ctx context.Context, sessionID string) ([]Response, error)

	// AskedQuestionTexts returns the text of every question answered in
	// sessionID.
	AskedQuestionTexts(ctx context.Context, sessionID string) ([]string, error)
}

// Store is the full persistence surface.
type Store interface {
	SessionStore
	QuestionStore
	ResponseStore
}
