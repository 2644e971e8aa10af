package coach

import (
	"github.com/MrWong99/echocoach/internal/dialogue"
	"github.com/MrWong99/echocoach/pkg/store"
)

// Summary aggregates a finished session.
type Summary struct {
	QuestionsAnswered int     `json:"questions_answered"`
	AvgClarity        float64 `json:"avg_clarity"`
	AvgConfidence     float64 `json:"avg_confidence"`
	AvgAccuracy       float64 `json:"avg_accuracy"`
	TotalScore        float64 `json:"total_score"`
}

// Summarize averages each metric over evals. TotalScore is the mean of the
// three averages. All averages are zero when evals is empty.
func Summarize(questions int, evals []store.Evaluation) Summary {
	s := Summary{QuestionsAnswered: questions}
	if len(evals) == 0 {
		return s
	}
	for _, e := range evals {
		s.AvgClarity += e.Clarity
		s.AvgConfidence += e.Confidence
		s.AvgAccuracy += e.TechnicalAccuracy
	}
	n := float64(len(evals))
	s.AvgClarity /= n
	s.AvgConfidence /= n
	s.AvgAccuracy /= n
	s.TotalScore = (s.AvgClarity + s.AvgConfidence + s.AvgAccuracy) / 3
	return s
}

// FallbackEvaluation is shown when transcription or evaluation fails so the
// turn can still reach FEEDBACK. It is neither persisted nor counted in the
// session summary.
func FallbackEvaluation(mode dialogue.Mode) store.Evaluation {
	e := store.Evaluation{
		Clarity:           70,
		Confidence:        70,
		TechnicalAccuracy: 70,
		SpeechPace:        120,
		Strengths:         []string{"You attempted the question", "Keep practicing!"},
		AreasToImprove:    []string{"Clarity", "Confidence"},
	}
	if mode == dialogue.Train {
		e.FeedbackText = "Good effort practicing! Keep working on matching the model answer's structure and delivery."
		e.ImprovementSuggestions = []string{"Practice repeating the model answer", "Focus on clarity and confidence"}
	} else {
		e.FeedbackText = "Thank you for your response. Keep practicing to improve your interview skills."
		e.ImprovementSuggestions = []string{"Speak clearly and confidently", "Structure your answer well"}
	}
	return e
}
