package postgres_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/echocoach/pkg/store"
	"github.com/MrWong99/echocoach/pkg/store/postgres"
)

const testEmbeddingDim = 4

// testDSN returns the test database DSN from the environment, or skips the
// test if ECHOCOACH_TEST_POSTGRES_DSN is not set.
func testDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("ECHOCOACH_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("ECHOCOACH_TEST_POSTGRES_DSN not set, skipping PostgreSQL integration tests")
	}
	return dsn
}

// newTestStore creates a fresh [postgres.Store] on a clean schema.
func newTestStore(t *testing.T) *postgres.Store {
	t.Helper()
	dsn := testDSN(t)
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	t.Cleanup(pool.Close)
	for _, stmt := range []string{
		"DROP TABLE IF EXISTS feedback_history CASCADE",
		"DROP TABLE IF EXISTS user_responses CASCADE",
		"DROP TABLE IF EXISTS interview_questions CASCADE",
		"DROP TABLE IF EXISTS interview_sessions CASCADE",
	} {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			t.Fatalf("drop schema %q: %v", stmt, err)
		}
	}

	s, err := postgres.NewStore(ctx, dsn, postgres.WithEmbeddingDimensions(testEmbeddingDim), postgres.WithMaxConns(4))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

// ─────────────────────────────────────────────────────────────────────────────
// Sessions
// ─────────────────────────────────────────────────────────────────────────────

func TestSessions_CreateGetUpdate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sess := &store.Session{UserID: "user-1", SessionType: "behavioral", Difficulty: "medium"}
	if err := s.CreateSession(ctx, sess); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if sess.ID == "" {
		t.Fatal("CreateSession: ID not assigned")
	}

	got, err := s.GetSession(ctx, sess.ID, "user-1")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.Status != store.StatusActive {
		t.Errorf("status: got %q, want %q", got.Status, store.StatusActive)
	}

	if _, err := s.GetSession(ctx, sess.ID, "someone-else"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetSession other user: got %v, want ErrNotFound", err)
	}

	status := store.StatusCompleted
	clarity := 82.5
	updated, err := s.UpdateSession(ctx, sess.ID, "user-1", store.SessionUpdate{Status: &status, AvgClarity: &clarity})
	if err != nil {
		t.Fatalf("UpdateSession: %v", err)
	}
	if updated.Status != store.StatusCompleted || updated.AvgClarity != clarity {
		t.Errorf("UpdateSession: got status=%q clarity=%v", updated.Status, updated.AvgClarity)
	}

	list, err := s.ListSessions(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("ListSessions: got %d sessions, want 1", len(list))
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Questions and responses
// ─────────────────────────────────────────────────────────────────────────────

func TestQuestions_FindExcludesAsked(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i, text := range []string{"Tell me about a conflict.", "Describe a failure."} {
		q := &store.Question{
			Text:       text,
			Category:   "behavioral",
			Difficulty: "medium",
			Embedding:  []float32{float32(i), 1, 0, 0},
		}
		if err := s.InsertQuestion(ctx, q); err != nil {
			t.Fatalf("InsertQuestion: %v", err)
		}
	}

	got, err := s.FindQuestions(ctx, store.QuestionFilter{
		Category:     "behavioral",
		Difficulty:   "medium",
		ExcludeTexts: []string{"Tell me about a conflict."},
		Limit:        5,
	})
	if err != nil {
		t.Fatalf("FindQuestions: %v", err)
	}
	if len(got) != 1 || got[0].Text != "Describe a failure." {
		t.Errorf("FindQuestions: got %+v", got)
	}

	similar, err := s.SimilarQuestions(ctx, []float32{0, 1, 0, 0}, 1)
	if err != nil {
		t.Fatalf("SimilarQuestions: %v", err)
	}
	if len(similar) != 1 || similar[0].Question.Text != "Tell me about a conflict." {
		t.Errorf("SimilarQuestions: got %+v", similar)
	}
}

func TestResponses_ListWithFeedback(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sess := &store.Session{UserID: "user-1", SessionType: "general", Difficulty: "easy"}
	if err := s.CreateSession(ctx, sess); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	q := &store.Question{Text: "Why this role?", Category: "general", Difficulty: "easy"}
	if err := s.InsertQuestion(ctx, q); err != nil {
		t.Fatalf("InsertQuestion: %v", err)
	}

	eval := store.Evaluation{Clarity: 80, Confidence: 70, TechnicalAccuracy: 75, FeedbackText: "Nice."}
	r := &store.Response{SessionID: sess.ID, QuestionID: q.ID, QuestionNumber: 1, Transcript: "Because.", Evaluation: eval}
	if err := s.InsertResponse(ctx, r); err != nil {
		t.Fatalf("InsertResponse: %v", err)
	}
	fb := store.FeedbackFromEvaluation(r.ID, sess.ID, eval)
	if err := s.InsertFeedback(ctx, &fb); err != nil {
		t.Fatalf("InsertFeedback: %v", err)
	}

	responses, err := s.ListResponses(ctx, sess.ID)
	if err != nil {
		t.Fatalf("ListResponses: %v", err)
	}
	if len(responses) != 1 {
		t.Fatalf("ListResponses: got %d, want 1", len(responses))
	}
	if responses[0].Evaluation.Clarity != 80 {
		t.Errorf("clarity: got %v, want 80", responses[0].Evaluation.Clarity)
	}
	if responses[0].Question == nil || responses[0].Question.Text != "Why this role?" {
		t.Errorf("question: got %+v", responses[0].Question)
	}
	if len(responses[0].Feedback) != 1 {
		t.Errorf("feedback: got %d entries, want 1", len(responses[0].Feedback))
	}

	asked, err := s.AskedQuestionTexts(ctx, sess.ID)
	if err != nil {
		t.Fatalf("AskedQuestionTexts: %v", err)
	}
	if len(asked) != 1 || asked[0] != "Why this role?" {
		t.Errorf("AskedQuestionTexts: got %v", asked)
	}
}
