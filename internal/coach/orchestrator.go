package coach

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/echocoach/internal/dialogue"
	"github.com/MrWong99/echocoach/pkg/audio"
	"github.com/MrWong99/echocoach/pkg/provider/tts"
	"github.com/MrWong99/echocoach/pkg/store"
)

const (
	defaultSessionType = "behavioral"
	queueSize          = 64
)

// User-facing error messages.
const (
	msgJobDescription   = "Please enter a job description"
	msgNoAudio          = "No audio was captured. Please record your answer again."
	msgInitSession      = "Failed to initialize session"
	msgNextQuestion     = "Failed to load next question"
	msgModelAnswer      = "Failed to generate model answer"
	msgCompleteSession  = "Failed to complete session"
	msgSaveResponse     = "Failed to save your response"
	msgAlreadyStarted   = "A session is already running"
	msgNoSession        = "No session has been started"
	msgSessionEnded     = "The session has ended. Load the next question to continue."
	msgEvaluationFormat = "Evaluation error: %s. Continuing with manual feedback."
)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(o *Orchestrator) { o.clock = c }
}

// WithLogger sets the base logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

// WithNotifier registers a session-completed notifier.
func WithNotifier(n Notifier) Option {
	return func(o *Orchestrator) { o.notifier = n }
}

// WithPhaseObserver registers fn to be called on every phase change, after
// the sink. Used for metrics.
func WithPhaseObserver(fn func(mode dialogue.Mode, from, to dialogue.Phase)) Option {
	return func(o *Orchestrator) { o.phaseObserver = fn }
}

// Orchestrator sequences one coaching session. Create it with New, start
// the event loop with Run and feed it client events. Event methods are safe
// for concurrent use; everything else happens on the Run goroutine.
type Orchestrator struct {
	cfg           Config
	backend       Backend
	sink          Sink
	clock         Clock
	notifier      Notifier
	phaseObserver func(mode dialogue.Mode, from, to dialogue.Phase)
	log           *slog.Logger

	queue     chan func()
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	// Owned by the Run goroutine.
	baseCtx      context.Context
	turnCtx      context.Context
	cancelTurn   context.CancelFunc
	gen          uint64
	timers       []Timer
	opts         StartOptions
	starting     bool
	session      *store.Session
	cycle        *dialogue.Cycle
	player       *Player
	questionClip *audio.Clip
	modelAnswer  string
	plan         *SentencePlan
	history      []store.Evaluation
	counter      int
	// ended is set by EndSession and cleared when the next turn begins.
	ended        bool
}

// New returns an idle orchestrator. cfg zero fields take their defaults.
func New(cfg Config, backend Backend, sink Sink, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:     cfg.WithDefaults(),
		backend: backend,
		sink:    sink,
		clock:   SystemClock{},
		log:     slog.Default(),
		queue:   make(chan func(), queueSize),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
		player:  NewPlayer(sink),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.log = o.log.With("component", "coach")
	return o
}

// Run processes events until ctx is cancelled or Close is called. It must be
// called exactly once.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.baseCtx = ctx
	o.turnCtx, o.cancelTurn = context.WithCancel(ctx)
	defer func() {
		close(o.done)
		o.invalidate()
		o.cancelTurn()
		o.wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-o.quit:
			return nil
		case fn := <-o.queue:
			fn()
		}
	}
}

// Close stops the event loop. Pending timers and in-flight backend calls
// are cancelled. Close does not wait for Run to return.
func (o *Orchestrator) Close() {
	o.closeOnce.Do(func() { close(o.quit) })
}

// Done is closed once Run has begun shutting down.
func (o *Orchestrator) Done() <-chan struct{} { return o.done }

// Start begins the session described by opts.
func (o *Orchestrator) Start(opts StartOptions) error {
	return o.post(func() { o.start(opts) })
}

// PlaybackEnded reports that the client finished playing clipID.
func (o *Orchestrator) PlaybackEnded(clipID string) error {
	return o.post(func() { o.playbackEnded(clipID) })
}

// RecordingComplete hands over the user's answer recorded during LISTEN.
func (o *Orchestrator) RecordingComplete(clip audio.Clip) error {
	return o.post(func() { o.recordingComplete(clip) })
}

// NextQuestion abandons the current turn and starts the next question.
func (o *Orchestrator) NextQuestion() error {
	return o.post(o.nextQuestion)
}

// EndSession abandons the current turn, completes the session and reports
// the summary.
func (o *Orchestrator) EndSession() error {
	return o.post(o.endSession)
}

// UpdateConfig replaces the pacing for subsequent timers.
func (o *Orchestrator) UpdateConfig(cfg Config) error {
	return o.post(func() { o.cfg = cfg.WithDefaults() })
}

func (o *Orchestrator) post(fn func()) error {
	select {
	case <-o.done:
		return ErrClosed
	default:
	}
	select {
	case o.queue <- fn:
		return nil
	case <-o.done:
		return ErrClosed
	}
}

// invalidate starts a new turn generation: pending timers are stopped, the
// turn context is cancelled and in-flight results will be dropped.
func (o *Orchestrator) invalidate() {
	o.gen++
	for _, t := range o.timers {
		t.Stop()
	}
	o.timers = nil
	if o.cancelTurn != nil {
		o.cancelTurn()
		o.turnCtx, o.cancelTurn = context.WithCancel(o.baseCtx)
	}
}

// after runs fn on the event loop after d unless the turn changed meanwhile.
func (o *Orchestrator) after(d time.Duration, fn func()) {
	gen := o.gen
	t := o.clock.AfterFunc(d, func() {
		_ = o.post(func() {
			if gen != o.gen {
				o.log.Debug("dropping stale timer", "gen", gen, "current_gen", o.gen)
				return
			}
			fn()
		})
	})
	o.timers = append(o.timers, t)
}

// spawn runs work off the event loop with the turn context. The returned
// closure is applied on the event loop unless the turn changed meanwhile.
func (o *Orchestrator) spawn(work func(ctx context.Context) func()) {
	gen, ctx := o.gen, o.turnCtx
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		apply := work(ctx)
		_ = o.post(func() {
			if gen != o.gen {
				o.log.Debug("dropping stale result", "gen", gen, "current_gen", o.gen)
				return
			}
			if apply != nil {
				apply()
			}
		})
	}()
}

func (o *Orchestrator) phase() dialogue.Phase {
	if o.cycle == nil {
		return dialogue.Idle
	}
	return o.cycle.Phase()
}

func (o *Orchestrator) onPhase(from, to dialogue.Phase) {
	o.log.Debug("phase change", "from", from, "to", to)
	o.sink.Phase(from, to)
	if o.phaseObserver != nil {
		o.phaseObserver(o.cycle.Mode(), from, to)
	}
}

// advance moves the cycle forward and reports whether it did.
func (o *Orchestrator) advance() bool {
	if _, err := o.cycle.Advance(); err != nil {
		o.log.Warn("advance rejected", "phase", o.cycle.Phase(), "err", err)
		return false
	}
	return true
}

func (o *Orchestrator) setPhase(p dialogue.Phase) bool {
	if err := o.cycle.SetPhase(p); err != nil {
		o.log.Warn("set phase rejected", "phase", p, "err", err)
		return false
	}
	return true
}

func (o *Orchestrator) inputMissing(msg string) {
	o.log.Info("user input missing", "phase", o.phase(), "err", fmt.Errorf("%w: %s", ErrUserInputMissing, msg))
	o.sink.Error(msg)
}

func (o *Orchestrator) fail(msg string, err error) {
	o.log.Error(msg, "phase", o.phase(), "err", err)
	o.sink.Error(msg)
}

// turn is one acquired question with its synthesized audio.
type turn struct {
	question    store.Question
	modelAnswer string
	clip        *audio.Clip
}

// acquire fetches and synthesizes the next question.
func (o *Orchestrator) acquire(ctx context.Context, sessionID string, opts StartOptions, voice tts.Voice) (turn, error) {
	var t turn
	if opts.custom() {
		q, answer, err := o.backend.CustomQuestion(ctx, opts.JobDescription, sessionID)
		if err != nil {
			return t, fmt.Errorf("custom question: %w", err)
		}
		t.question, t.modelAnswer = *q, answer
	} else {
		q, err := o.backend.NextQuestion(ctx, sessionID, opts.Category, opts.Difficulty)
		if err != nil {
			return t, fmt.Errorf("next question: %w", err)
		}
		t.question = *q
	}
	clip, err := o.backend.Synthesize(ctx, t.question.Text, voice)
	if err != nil {
		return t, fmt.Errorf("synthesize question: %w", err)
	}
	t.clip = clip
	return t, nil
}

func (o *Orchestrator) start(opts StartOptions) {
	if o.session != nil || o.starting {
		o.sink.Error(msgAlreadyStarted)
		return
	}
	if opts.custom() && strings.TrimSpace(opts.JobDescription) == "" {
		o.inputMissing(msgJobDescription)
		return
	}
	if opts.SessionType == "" {
		opts.SessionType = defaultSessionType
	}
	o.opts = opts
	o.starting = true
	o.cycle = dialogue.New(opts.Mode, dialogue.WithObserver(o.onPhase))
	o.log = o.log.With("mode", opts.Mode, "user_id", opts.UserID)
	voice := o.cfg.Voice

	o.spawn(func(ctx context.Context) func() {
		sess, err := o.backend.CreateSession(ctx, opts.UserID, opts.SessionType, opts.Difficulty)
		if err != nil {
			return func() {
				o.starting = false
				o.fail(msgInitSession, err)
			}
		}
		t, err := o.acquire(ctx, sess.ID, opts, voice)
		return func() {
			o.starting = false
			o.session = sess
			o.log = o.log.With("session_id", sess.ID)
			if err != nil {
				o.fail(msgInitSession, err)
				return
			}
			o.log.Info("coaching session started")
			o.beginTurn(t)
		}
	})
}

func (o *Orchestrator) nextQuestion() {
	if o.session == nil {
		o.sink.Error(msgNoSession)
		return
	}
	o.invalidate()
	o.player.Stop()
	o.plan = nil
	o.modelAnswer = ""
	sessionID, opts, voice := o.session.ID, o.opts, o.cfg.Voice

	o.spawn(func(ctx context.Context) func() {
		t, err := o.acquire(ctx, sessionID, opts, voice)
		return func() {
			if err != nil {
				o.fail(msgNextQuestion, err)
				return
			}
			o.beginTurn(t)
		}
	})
}

// beginTurn starts a new cycle for t.
func (o *Orchestrator) beginTurn(t turn) {
	o.invalidate()
	o.plan = nil
	o.questionClip = t.clip
	o.modelAnswer = t.modelAnswer
	o.ended = false
	o.counter++
	o.cycle.StartCycle(t.question)
	o.sink.Question(t.question, o.counter)
	o.player.Play(*t.clip)
}

func (o *Orchestrator) playbackEnded(clipID string) {
	if !o.player.Ended(clipID) {
		o.log.Debug("ignoring playback end for stale clip", "clip_id", clipID)
		return
	}
	switch o.phase() {
	case dialogue.Ask:
		if o.advance() {
			o.enterPause1()
		}
	case dialogue.Repeat:
		// PAUSE2 has no wait of its own.
		if o.advance() {
			o.advance()
		}
	case dialogue.ModelAnswer:
		if o.advance() {
			o.after(o.cfg.SettleDelay, o.startSentences)
		}
	case dialogue.RepeatAnswer:
		o.sentenceEnded()
	case dialogue.Feedback:
		o.advance()
	default:
		o.log.Debug("playback ended without follow-up", "phase", o.phase())
	}
}

func (o *Orchestrator) enterPause1() {
	if o.cycle.Mode() == dialogue.Practice {
		o.after(o.cfg.PracticeRepeatDelay, func() {
			if o.advance() && o.questionClip != nil {
				o.player.Play(*o.questionClip)
			}
		})
		return
	}
	o.after(o.cfg.SettleDelay, o.fetchModelAnswer)
}

// fetchModelAnswer obtains and synthesizes the model answer and only then
// advances to MODEL_ANSWER.
func (o *Orchestrator) fetchModelAnswer() {
	q, _ := o.cycle.Question()
	answer, voice := o.modelAnswer, o.cfg.Voice

	o.spawn(func(ctx context.Context) func() {
		if answer == "" {
			a, err := o.backend.ModelAnswer(ctx, q.Text, q.Category, q.Difficulty)
			if err != nil {
				return func() { o.fail(msgModelAnswer, err) }
			}
			answer = a
		}
		clip, err := o.backend.Synthesize(ctx, answer, voice)
		return func() {
			if err != nil {
				o.fail(msgModelAnswer, err)
				return
			}
			o.modelAnswer = answer
			if !o.advance() {
				return
			}
			o.sink.ModelAnswer(answer)
			o.player.Play(*clip)
		}
	})
}

func (o *Orchestrator) startSentences() {
	o.plan = &SentencePlan{Sentences: SplitSentences(o.modelAnswer)}
	if !o.advance() {
		return
	}
	if len(o.plan.Sentences) == 0 {
		o.finishSentences()
		return
	}
	o.playSentence()
}

func (o *Orchestrator) playSentence() {
	plan := o.plan
	text, index, voice := plan.Current(), plan.Index, o.cfg.Voice
	o.sink.Sentence(index, len(plan.Sentences), text)

	o.spawn(func(ctx context.Context) func() {
		clip, err := o.backend.Synthesize(ctx, text, voice)
		return func() {
			if o.plan != plan || plan.Index != index {
				return
			}
			if err != nil {
				o.log.Warn("sentence synthesis failed, skipping", "index", index, "err", err)
				o.after(o.cfg.SentenceRetryDelay, o.nextSentence)
				return
			}
			o.player.Play(*clip)
		}
	})
}

func (o *Orchestrator) sentenceEnded() {
	if o.plan == nil {
		return
	}
	if o.plan.Last() {
		o.finishSentences()
		return
	}
	o.after(o.cfg.ReadingTime(o.plan.Current()), o.nextSentence)
}

func (o *Orchestrator) nextSentence() {
	if o.plan == nil {
		return
	}
	o.plan.Index++
	if o.plan.Index >= len(o.plan.Sentences) {
		o.finishSentences()
		return
	}
	o.playSentence()
}

func (o *Orchestrator) finishSentences() {
	o.plan = nil
	if o.advance() {
		o.after(o.cfg.SettleDelay, func() { o.advance() })
	}
}

func (o *Orchestrator) recordingComplete(clip audio.Clip) {
	if o.ended {
		o.log.Debug("ignoring recording after session end")
		o.sink.Error(msgSessionEnded)
		return
	}
	if o.phase() != dialogue.Listen {
		o.log.Debug("ignoring recording outside LISTEN", "phase", o.phase())
		return
	}
	if clip.IsSilent() {
		o.inputMissing(msgNoAudio)
		return
	}
	q, _ := o.cycle.Question()
	if !o.setPhase(dialogue.Evaluate) {
		return
	}
	sessionID, number, mode := o.session.ID, o.counter, o.cycle.Mode()
	prefix, voice := o.cfg.FeedbackPrefix, o.cfg.Voice

	o.spawn(func(ctx context.Context) func() {
		transcript, eval, evalErr := o.evaluate(ctx, q, clip)
		var saveErr error
		spoken := ""
		if evalErr != nil {
			fb := FallbackEvaluation(mode)
			eval = &fb
			spoken = fb.FeedbackText
		} else {
			_, saveErr = o.backend.PersistResponse(ctx, sessionID, q.ID, number, transcript, *eval)
			spoken = eval.FeedbackText
			if mode == dialogue.Train {
				spoken = prefix + spoken
			}
		}
		clip, ttsErr := o.backend.Synthesize(ctx, spoken, voice)

		return func() {
			if evalErr != nil {
				o.log.Warn("evaluation failed, using fallback", "err", evalErr)
				o.sink.Error(fmt.Sprintf(msgEvaluationFormat, evalErr))
			}
			if saveErr != nil {
				o.fail(msgSaveResponse, saveErr)
			}
			if transcript != "" {
				o.sink.Transcript(transcript)
			}
			if evalErr == nil {
				o.history = append(o.history, *eval)
			}
			if !o.setPhase(dialogue.Feedback) {
				return
			}
			o.sink.Feedback(*eval)
			if ttsErr != nil {
				o.log.Warn("feedback synthesis failed", "err", ttsErr)
				return
			}
			o.player.Play(*clip)
		}
	})
}

var errEmptyTranscript = errors.New("no speech recognised")

func (o *Orchestrator) evaluate(ctx context.Context, q store.Question, clip audio.Clip) (string, *store.Evaluation, error) {
	transcript, err := o.backend.Transcribe(ctx, clip)
	if err != nil {
		return "", nil, err
	}
	if strings.TrimSpace(transcript) == "" {
		return "", nil, errEmptyTranscript
	}
	eval, err := o.backend.Evaluate(ctx, q.Text, transcript)
	if err != nil {
		return transcript, nil, err
	}
	return transcript, eval, nil
}

func (o *Orchestrator) endSession() {
	if o.session == nil {
		o.sink.Error(msgNoSession)
		return
	}
	o.invalidate()
	o.player.Stop()
	o.plan = nil
	o.ended = true
	summary := Summarize(o.counter, o.history)
	sessionID, userID, notifier := o.session.ID, o.opts.UserID, o.notifier

	o.spawn(func(ctx context.Context) func() {
		sess, err := o.backend.CompleteSession(ctx, sessionID, userID)
		if err != nil {
			return func() { o.fail(msgCompleteSession, err) }
		}
		if notifier != nil {
			if nerr := notifier.SessionCompleted(ctx, *sess, summary); nerr != nil {
				o.log.Warn("session notification failed", "err", nerr)
			}
		}
		return func() {
			o.session = sess
			o.log.Info("coaching session completed",
				"questions", summary.QuestionsAnswered,
				"total_score", summary.TotalScore,
			)
			o.sink.Summary(summary)
		}
	})
}
