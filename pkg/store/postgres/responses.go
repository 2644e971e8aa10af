package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/MrWong99/echocoach/pkg/store"
)

// InsertResponse implements [store.ResponseStore]. The full evaluation is kept
// as JSONB next to the denormalised score columns.
func (s *Store) InsertResponse(ctx context.Context, r *store.Response) error {
	r.ID = newID(r.ID)
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	const q = `
		INSERT INTO user_responses
		    (id, session_id, question_id, question_number, audio_transcript,
		     clarity_score, confidence_score, technical_accuracy,
		     filler_word_count, speech_pace, pause_count, gpt_evaluation, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	e := r.Evaluation
	_, err := s.pool.Exec(ctx, q,
		r.ID,
		r.SessionID,
		r.QuestionID,
		r.QuestionNumber,
		r.Transcript,
		e.Clarity,
		e.Confidence,
		e.TechnicalAccuracy,
		e.FillerWordCount,
		e.SpeechPace,
		e.PauseCount,
		e,
		r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("response store: insert response: %w", err)
	}
	return nil
}

// InsertFeedback implements [store.ResponseStore].
func (s *Store) InsertFeedback(ctx context.Context, f *store.Feedback) error {
	f.ID = newID(f.ID)
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}

	const q = `
		INSERT INTO feedback_history
		    (id, response_id, session_id, feedback_text,
		     improvement_suggestions, strengths, areas_to_improve, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.pool.Exec(ctx, q,
		f.ID,
		f.ResponseID,
		f.SessionID,
		f.FeedbackText,
		nonNil(f.ImprovementSuggestions),
		nonNil(f.Strengths),
		nonNil(f.AreasToImprove),
		f.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("response store: insert feedback: %w", err)
	}
	return nil
}

// ListResponses implements [store.ResponseStore].
func (s *Store) ListResponses(ctx context.Context, sessionID string) ([]store.Response, error) {
	const q = `
		SELECT r.id, r.session_id, r.question_id, r.question_number, r.audio_transcript,
		       r.gpt_evaluation, r.created_at,
		       q.id, q.question_text, q.category, q.difficulty,
		       q.expected_keywords, q.follow_up_prompts, q.created_at
		FROM   user_responses r
		JOIN   interview_questions q ON q.id = r.question_id
		WHERE  r.session_id = $1
		ORDER  BY r.question_number`

	rows, err := s.pool.Query(ctx, q, sessionID)
	if err != nil {
		return nil, fmt.Errorf("response store: list: %w", err)
	}
	responses, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.Response, error) {
		var (
			r        store.Response
			question store.Question
		)
		err := row.Scan(
			&r.ID,
			&r.SessionID,
			&r.QuestionID,
			&r.QuestionNumber,
			&r.Transcript,
			&r.Evaluation,
			&r.CreatedAt,
			&question.ID,
			&question.Text,
			&question.Category,
			&question.Difficulty,
			&question.ExpectedKeywords,
			&question.FollowUpPrompts,
			&question.CreatedAt,
		)
		r.Question = &question
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("response store: scan rows: %w", err)
	}
	if len(responses) == 0 {
		return []store.Response{}, nil
	}

	feedback, err := s.feedbackBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	for i := range responses {
		responses[i].Feedback = feedback[responses[i].ID]
	}
	return responses, nil
}

// AskedQuestionTexts implements [store.ResponseStore].
func (s *Store) AskedQuestionTexts(ctx context.Context, sessionID string) ([]string, error) {
	const q = `
		SELECT DISTINCT q.question_text
		FROM   user_responses r
		JOIN   interview_questions q ON q.id = r.question_id
		WHERE  r.session_id = $1`

	rows, err := s.pool.Query(ctx, q, sessionID)
	if err != nil {
		return nil, fmt.Errorf("response store: asked questions: %w", err)
	}
	texts, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("response store: scan rows: %w", err)
	}
	return texts, nil
}

func (s *Store) feedbackBySession(ctx context.Context, sessionID string) (map[string][]store.Feedback, error) {
	const q = `
		SELECT id, response_id, session_id, feedback_text,
		       improvement_suggestions, strengths, areas_to_improve, created_at
		FROM   feedback_history
		WHERE  session_id = $1
		ORDER  BY created_at`

	rows, err := s.pool.Query(ctx, q, sessionID)
	if err != nil {
		return nil, fmt.Errorf("response store: list feedback: %w", err)
	}
	all, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.Feedback, error) {
		var f store.Feedback
		err := row.Scan(
			&f.ID,
			&f.ResponseID,
			&f.SessionID,
			&f.FeedbackText,
			&f.ImprovementSuggestions,
			&f.Strengths,
			&f.AreasToImprove,
			&f.CreatedAt,
		)
		return f, err
	})
	if err != nil {
		return nil, fmt.Errorf("response store: scan feedback: %w", err)
	}

	byResponse := make(map[string][]store.Feedback, len(all))
	for _, f := range all {
		byResponse[f.ResponseID] = append(byResponse[f.ResponseID], f)
	}
	return byResponse, nil
}
