// Package coach runs the live coaching loop for one interview session.
//
// An [Orchestrator] drives a [dialogue.Cycle] from client events (playback
// ended, recording complete, next question, end session) and from its own
// timers. It calls a [Backend] for questions, speech and evaluation and
// reports everything the client must render or play to a [Sink].
//
// All state is owned by a single goroutine started with [Orchestrator.Run].
// Timer callbacks and backend results are posted back onto that goroutine
// and carry the turn generation they were scheduled in; results from an
// earlier turn are dropped.
package coach

import (
	"context"
	"errors"

	"github.com/MrWong99/echocoach/internal/dialogue"
	"github.com/MrWong99/echocoach/pkg/audio"
	"github.com/MrWong99/echocoach/pkg/provider/tts"
	"github.com/MrWong99/echocoach/pkg/store"
)

// ErrUserInputMissing marks a request rejected because the user did not
// provide required input. No backend call is made and the phase is unchanged.
var ErrUserInputMissing = errors.New("coach: user input missing")

// ErrClosed is returned by event methods once the orchestrator has stopped.
var ErrClosed = errors.New("coach: orchestrator closed")

// Backend is everything the orchestrator needs from the outside world.
type Backend interface {
	CreateSession(ctx context.Context, userID, sessionType, difficulty string) (*store.Session, error)
	NextQuestion(ctx context.Context, sessionID, category, difficulty string) (*store.Question, error)

	// CustomQuestion generates a question and its model answer from a job
	// description.
	CustomQuestion(ctx context.Context, jobDescription, sessionID string) (*store.Question, string, error)
	ModelAnswer(ctx context.Context, questionText, category, difficulty string) (string, error)

	Synthesize(ctx context.Context, text string, voice tts.Voice) (*audio.Clip, error)
	Transcribe(ctx context.Context, clip audio.Clip) (string, error)
	Evaluate(ctx context.Context, questionText, transcript string) (*store.Evaluation, error)

	// PersistResponse stores the answer and its feedback and returns the
	// response id.
	PersistResponse(ctx context.Context, sessionID, questionID string, number int, transcript string, eval store.Evaluation) (string, error)
	CompleteSession(ctx context.Context, sessionID, userID string) (*store.Session, error)
}

// Notifier is told about completed sessions. Failures are logged only.
type Notifier interface {
	SessionCompleted(ctx context.Context, sess store.Session, summary Summary) error
}

// TrainMethod selects where train-mode questions come from.
type TrainMethod string

const (
	// TrainDefault draws questions from the bank like practice mode.
	TrainDefault TrainMethod = "default"
	// TrainCustom generates question and answer from a job description.
	TrainCustom TrainMethod = "custom"
)

// StartOptions configures a coaching session.
type StartOptions struct {
	UserID         string
	Mode           dialogue.Mode
	TrainMethod    TrainMethod
	Category       string
	Difficulty     string
	JobDescription string
	// SessionType is stored on the session record. Defaults to "behavioral".
	SessionType string
}

func (o StartOptions) custom() bool {
	return o.Mode == dialogue.Train && o.TrainMethod == TrainCustom
}

// Sink receives the orchestrator's output. Calls are made from the
// orchestrator goroutine, one at a time.
type Sink interface {
	Phase(from, to dialogue.Phase)
	Play(clip audio.Clip)
	Stop(clipID string)
	Question(q store.Question, number int)
	ModelAnswer(text string)
	Sentence(index, total int, text string)
	Transcript(text string)
	Feedback(eval store.Evaluation)
	Summary(s Summary)
	Error(msg string)
}
