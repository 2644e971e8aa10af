package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/echocoach/internal/coach"
	"github.com/MrWong99/echocoach/internal/dialogue"
	"github.com/MrWong99/echocoach/internal/observe"
	"github.com/MrWong99/echocoach/pkg/audio"
	"github.com/MrWong99/echocoach/pkg/store"
)

// Client to server message types on /v1/coach. Binary frames carry
// recording audio between recording_start and recording_stop.
const (
	msgStart          = "start"
	msgPlaybackEnded  = "playback_ended"
	msgRecordingStart = "recording_start"
	msgRecordingStop  = "recording_stop"
	msgRecording      = "recording"
	msgNext           = "next"
	msgEnd            = "end"
)

// Server to client event types.
const (
	evPhase       = "phase"
	evPlay        = "play"
	evStop        = "stop"
	evQuestion    = "question"
	evModelAnswer = "model_answer"
	evSentence    = "sentence"
	evTranscript  = "transcript"
	evFeedback    = "feedback"
	evSummary     = "summary"
	evError       = "error"
)

const (
	writeTimeout = 10 * time.Second
	outboxSize   = 64
)

var errSessionClosed = errors.New("api: coaching session closed")

// clientMessage is any text frame sent by the client. Fields are used
// according to Type.
type clientMessage struct {
	Type string `json:"type"`

	// start
	Mode           dialogue.Mode     `json:"mode"`
	TrainMethod    coach.TrainMethod `json:"train_method"`
	Category       string            `json:"category"`
	Difficulty     string            `json:"difficulty"`
	JobDescription string            `json:"job_description"`
	SessionType    string            `json:"session_type"`

	// playback_ended
	ClipID string `json:"clip_id"`

	// recording_start
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`

	// recording: a complete answer in one message, base64 encoded.
	Audio       []byte `json:"audio"`
	ContentType string `json:"content_type"`
}

type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

type phaseEvent struct {
	From dialogue.Phase `json:"from"`
	To   dialogue.Phase `json:"to"`
}

type playEvent struct {
	ClipID      string `json:"clip_id"`
	Audio       []byte `json:"audio"`
	ContentType string `json:"content_type"`
	SampleRate  int    `json:"sample_rate,omitempty"`
	Channels    int    `json:"channels,omitempty"`
}

type questionEvent struct {
	Question store.Question `json:"question"`
	Number   int            `json:"number"`
}

type sentenceEvent struct {
	Index int    `json:"index"`
	Total int    `json:"total"`
	Text  string `json:"text"`
}

type textEvent struct {
	Text string `json:"text"`
}

type stopEvent struct {
	ClipID string `json:"clip_id"`
}

type errorEvent struct {
	Message string `json:"message"`
}

// wsSink queues orchestrator output for the connection's write loop. A send
// blocks while the queue is full and gives up once the connection is gone.
type wsSink struct {
	ctx context.Context
	out chan envelope
}

var _ coach.Sink = (*wsSink)(nil)

func newWSSink(ctx context.Context) *wsSink {
	return &wsSink{ctx: ctx, out: make(chan envelope, outboxSize)}
}

func (s *wsSink) send(typ string, data any) {
	select {
	case s.out <- envelope{Type: typ, Data: data}:
	case <-s.ctx.Done():
	}
}

func (s *wsSink) Phase(from, to dialogue.Phase) { s.send(evPhase, phaseEvent{From: from, To: to}) }

func (s *wsSink) Play(clip audio.Clip) {
	s.send(evPlay, playEvent{
		ClipID:      clip.ID,
		Audio:       clip.Data,
		ContentType: clip.ContentType,
		SampleRate:  clip.SampleRate,
		Channels:    clip.Channels,
	})
}

func (s *wsSink) Stop(clipID string) { s.send(evStop, stopEvent{ClipID: clipID}) }

func (s *wsSink) Question(q store.Question, number int) {
	s.send(evQuestion, questionEvent{Question: q, Number: number})
}

func (s *wsSink) ModelAnswer(text string) { s.send(evModelAnswer, textEvent{Text: text}) }

func (s *wsSink) Sentence(index, total int, text string) {
	s.send(evSentence, sentenceEvent{Index: index, Total: total, Text: text})
}

func (s *wsSink) Transcript(text string) { s.send(evTranscript, textEvent{Text: text}) }
func (s *wsSink) Feedback(eval store.Evaluation) { s.send(evFeedback, eval) }
func (s *wsSink) Summary(sum coach.Summary) { s.send(evSummary, sum) }
func (s *wsSink) Error(msg string) { s.send(evError, errorEvent{Message: msg}) }

// coachSocket handles GET /v1/coach: it upgrades to a WebSocket and hosts
// one live coaching session for the lifetime of the connection.
func (s *Server) coachSocket(w http.ResponseWriter, r *http.Request) {
	u := user(r)
	log := observe.Logger(r.Context()).With("user_id", u.ID)

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.origins})
	if err != nil {
		log.Warn("coach websocket: accept failed", "err", err)
		return
	}
	// A whole base64 recording plus its JSON envelope must fit in one frame.
	conn.SetReadLimit(s.maxUpload*4/3 + maxJSONBody)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sink := newWSSink(ctx)
	live, err := s.sessions.Open(ctx, u.ID, sink)
	if err != nil {
		status := websocket.StatusInternalError
		if errors.Is(err, ErrTooManySessions) {
			status = websocket.StatusTryAgainLater
		}
		log.Warn("coach websocket: open session failed", "err", err)
		conn.Close(status, err.Error())
		return
	}
	defer live.Close()
	log.Info("coach websocket connected")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return writeLoop(gctx, conn, sink.out) })
	g.Go(func() error {
		defer cancel()
		return s.readLoop(gctx, conn, live, sink, u.ID)
	})
	g.Go(func() error {
		select {
		case <-live.Done():
			return errSessionClosed
		case <-gctx.Done():
			return nil
		}
	})

	err = g.Wait()
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		conn.Close(websocket.StatusNormalClosure, "")
	case errors.Is(err, errSessionClosed):
		conn.Close(websocket.StatusGoingAway, "session closed")
	case websocket.CloseStatus(err) != -1:
		// The client closed the connection.
	default:
		log.Warn("coach websocket: connection failed", "err", err)
		conn.Close(websocket.StatusInternalError, "internal error")
	}
	log.Info("coach websocket disconnected")
}

func writeLoop(ctx context.Context, conn *websocket.Conn, out <-chan envelope) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case env := <-out:
			data, err := json.Marshal(env)
			if err != nil {
				return fmt.Errorf("api: encode %s event: %w", env.Type, err)
			}
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err = conn.Write(wctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				return err
			}
		}
	}
}

// readLoop dispatches client messages until the connection closes. A client
// close ends the loop without error.
func (s *Server) readLoop(ctx context.Context, conn *websocket.Conn, live Coach, sink *wsSink, userID string) error {
	var rec *audio.Recorder
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return nil
			}
			return err
		}

		if typ == websocket.MessageBinary {
			if rec == nil {
				sink.Error("Send recording_start before audio frames.")
				continue
			}
			if err := rec.Write(data); err != nil {
				rec = nil
				sink.Error(recordingError(err))
			}
			continue
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			sink.Error("Malformed message: " + err.Error())
			continue
		}

		switch msg.Type {
		case msgStart:
			err = live.Start(coach.StartOptions{
				UserID:         userID,
				Mode:           msg.Mode,
				TrainMethod:    msg.TrainMethod,
				Category:       msg.Category,
				Difficulty:     msg.Difficulty,
				JobDescription: msg.JobDescription,
				SessionType:    msg.SessionType,
			})
		case msgPlaybackEnded:
			err = live.PlaybackEnded(msg.ClipID)
		case msgRecordingStart:
			rec, err = audio.NewRecorder(audio.RecorderFormat{
				Encoding:   msg.Encoding,
				SampleRate: msg.SampleRate,
				Channels:   msg.Channels,
			}, int(s.maxUpload))
			if err != nil {
				sink.Error("Unsupported recording format: " + err.Error())
				err = nil
			}
		case msgRecordingStop:
			if rec == nil {
				sink.Error("No recording in progress.")
				continue
			}
			clip := rec.Finish()
			rec = nil
			err = live.RecordingComplete(clip)
		case msgRecording:
			if int64(len(msg.Audio)) > s.maxUpload {
				sink.Error(recordingError(audio.ErrRecordingTooLarge))
				continue
			}
			err = live.RecordingComplete(uploadedClip(msg.Audio, msg.ContentType))
		case msgNext:
			err = live.NextQuestion()
		case msgEnd:
			err = live.EndSession()
		default:
			sink.Error(fmt.Sprintf("Unknown message type %q.", msg.Type))
			continue
		}
		if errors.Is(err, coach.ErrClosed) {
			return errSessionClosed
		}
		if err != nil {
			sink.Error(err.Error())
		}
	}
}

func recordingError(err error) string {
	if errors.Is(err, audio.ErrRecordingTooLarge) {
		return "Recording is too long. Please keep your answer shorter."
	}
	return "Could not process recording: " + err.Error()
}
