package store

import "time"

// SessionStatus is the lifecycle state of an interview session.
type SessionStatus string

const (
	StatusActive    SessionStatus = "active"
	StatusPaused    SessionStatus = "paused"
	StatusCompleted SessionStatus = "completed"
	StatusAbandoned SessionStatus = "abandoned"
)

// IsValid reports whether s is a known session status.
func (s SessionStatus) IsValid() bool {
	switch s {
	case StatusActive, StatusPaused, StatusCompleted, StatusAbandoned:
		return true
	}
	return false
}

// Question categories. CategoryCustom marks questions generated from a job
// description.
const (
	CategoryTechnical       = "technical"
	CategoryBehavioral      = "behavioral"
	CategorySituational     = "situational"
	CategoryCompanySpecific = "company-specific"
	CategoryGeneral         = "general"
	CategoryCustom          = "custom"
)

// Difficulty levels.
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// ValidCategories lists the categories a client may request.
var ValidCategories = map[string]bool{
	CategoryTechnical:       true,
	CategoryBehavioral:      true,
	CategorySituational:     true,
	CategoryCompanySpecific: true,
	CategoryGeneral:         true,
	CategoryCustom:          true,
}

// ValidDifficulties lists the accepted difficulty levels.
var ValidDifficulties = map[string]bool{
	DifficultyEasy:   true,
	DifficultyMedium: true,
	DifficultyHard:   true,
}

// Session is one interview practice session owned by a user.
type Session struct {
	ID             string        `json:"id"`
	UserID         string        `json:"user_id,omitempty"`
	SessionType    string        `json:"session_type"`
	Difficulty     string        `json:"difficulty_level"`
	Status         SessionStatus `json:"status"`
	StartedAt      time.Time     `json:"started_at"`
	CompletedAt    *time.Time    `json:"completed_at,omitempty"`
	TotalQuestions int           `json:"total_questions"`
	AvgClarity     float64       `json:"avg_clarity_score"`
	AvgConfidence  float64       `json:"avg_confidence_score"`
	CreatedAt      time.Time     `json:"created_at"`
}

// SessionUpdate carries the mutable session fields. Nil fields are left
// unchanged.
type SessionUpdate struct {
	Status         *SessionStatus `json:"status,omitempty"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
	TotalQuestions *int           `json:"total_questions,omitempty"`
	AvgClarity     *float64       `json:"avg_clarity_score,omitempty"`
	AvgConfidence  *float64       `json:"avg_confidence_score,omitempty"`
}

// Question is a single interview question in the question bank.
type Question struct {
	ID               string    `json:"id"`
	Text             string    `json:"question_text"`
	Category         string    `json:"category"`
	Difficulty       string    `json:"difficulty"`
	ExpectedKeywords []string  `json:"expected_keywords"`
	FollowUpPrompts  []string  `json:"follow_up_prompts"`
	CreatedAt        time.Time `json:"created_at"`

	// Embedding is the optional vector representation of Text used for
	// near-duplicate detection. It is never serialised to clients.
	Embedding []float32 `json:"-"`
}

// ScoredQuestion pairs a question with its cosine distance to a query vector.
// Lower is closer.
type ScoredQuestion struct {
	Question Question
	Distance float64
}

// QuestionFilter selects candidate questions from the bank.
type QuestionFilter struct {
	Category   string
	Difficulty string

	// ExcludeTexts removes questions whose text matches any entry exactly.
	ExcludeTexts []string

	// Limit caps the result size. Zero means no limit.
	Limit int
}

// Evaluation is the scored assessment of one spoken answer.
type Evaluation struct {
	Clarity                float64  `json:"clarity_score"`
	Confidence             float64  `json:"confidence_score"`
	TechnicalAccuracy      float64  `json:"technical_accuracy"`
	FillerWordCount        int      `json:"filler_word_count"`
	SpeechPace             float64  `json:"speech_pace"`
	PauseCount             int      `json:"pause_count"`
	FeedbackText           string   `json:"feedback_text"`
	ImprovementSuggestions []string `json:"improvement_suggestions"`
	Strengths              []string `json:"strengths"`
	AreasToImprove         []string `json:"areas_to_improve"`
}

// Response is a recorded answer to one question within a session.
type Response struct {
	ID             string     `json:"id"`
	SessionID      string     `json:"session_id"`
	QuestionID     string     `json:"question_id"`
	QuestionNumber int        `json:"question_number"`
	Transcript     string     `json:"audio_transcript"`
	Evaluation     Evaluation `json:"evaluation"`
	CreatedAt      time.Time  `json:"created_at"`

	// Question and Feedback are populated by ListResponses only.
	Question *Question `json:"interview_questions,omitempty"`
	Feedback []Feedback `json:"feedback_history,omitempty"`
}

// Feedback is the coaching text attached to a response.
type Feedback struct {
	ID                     string    `json:"id"`
	ResponseID             string    `json:"response_id"`
	SessionID              string    `json:"session_id"`
	FeedbackText           string    `json:"feedback_text"`
	ImprovementSuggestions []string  `json:"improvement_suggestions"`
	Strengths              []string  `json:"strengths"`
	AreasToImprove         []string  `json:"areas_to_improve"`
	CreatedAt              time.Time `json:"created_at"`
}

// FeedbackFromEvaluation builds the feedback record for a stored response.
func FeedbackFromEvaluation(responseID, sessionID string, e Evaluation) Feedback {
	return Feedback{
		ResponseID:             responseID,
		SessionID:              sessionID,
		FeedbackText:           e.FeedbackText,
		ImprovementSuggestions: e.ImprovementSuggestions,
		Strengths:              e.Strengths,
		AreasToImprove:         e.AreasToImprove,
	}
}
