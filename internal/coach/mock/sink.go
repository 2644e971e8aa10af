package mock

import (
	"sync"
	"time"

	"github.com/MrWong99/echocoach/internal/coach"
	"github.com/MrWong99/echocoach/internal/dialogue"
	"github.com/MrWong99/echocoach/pkg/audio"
	"github.com/MrWong99/echocoach/pkg/store"
)

var _ coach.Sink = (*Sink)(nil)

// Event is one recorded Sink call. Only the fields relevant to Kind are set.
type Event struct {
	Kind     string
	From, To dialogue.Phase
	Clip     audio.Clip
	ClipID   string
	Question store.Question
	Number   int
	Text     string
	Index    int
	Total    int
	Eval     store.Evaluation
	Summary  coach.Summary
}

// Sink records every call and lets tests wait for a matching event.
type Sink struct {
	mu      sync.Mutex
	events  []Event
	changed chan struct{}
}

// NewSink returns an empty recorder.
func NewSink() *Sink { return &Sink{changed: make(chan struct{})} }

func (s *Sink) add(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	close(s.changed)
	s.changed = make(chan struct{})
}

func (s *Sink) Phase(from, to dialogue.Phase) {
	s.add(Event{Kind: "phase", From: from, To: to})
}

func (s *Sink) Play(clip audio.Clip) {
	s.add(Event{Kind: "play", Clip: clip, ClipID: clip.ID})
}

func (s *Sink) Stop(clipID string) {
	s.add(Event{Kind: "stop", ClipID: clipID})
}

func (s *Sink) Question(q store.Question, number int) {
	s.add(Event{Kind: "question", Question: q, Number: number})
}

func (s *Sink) ModelAnswer(text string) {
	s.add(Event{Kind: "model_answer", Text: text})
}

func (s *Sink) Sentence(index, total int, text string) {
	s.add(Event{Kind: "sentence", Index: index, Total: total, Text: text})
}

func (s *Sink) Transcript(text string) {
	s.add(Event{Kind: "transcript", Text: text})
}

func (s *Sink) Feedback(eval store.Evaluation) {
	s.add(Event{Kind: "feedback", Eval: eval})
}

func (s *Sink) Summary(sum coach.Summary) {
	s.add(Event{Kind: "summary", Summary: sum})
}

func (s *Sink) Error(msg string) {
	s.add(Event{Kind: "error", Text: msg})
}

// Events returns a copy of all recorded events.
func (s *Sink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// Kind returns the recorded events of kind.
func (s *Sink) Kind(kind string) []Event {
	var out []Event
	for _, e := range s.Events() {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// Phases returns the sequence of phases entered.
func (s *Sink) Phases() []dialogue.Phase {
	var out []dialogue.Phase
	for _, e := range s.Kind("phase") {
		out = append(out, e.To)
	}
	return out
}

// LastPlay returns the most recent play event.
func (s *Sink) LastPlay() (audio.Clip, bool) {
	plays := s.Kind("play")
	if len(plays) == 0 {
		return audio.Clip{}, false
	}
	return plays[len(plays)-1].Clip, true
}

// WaitFor blocks until an event satisfying match has been recorded, or
// timeout elapses. It returns the first matching event.
func (s *Sink) WaitFor(match func(Event) bool, timeout time.Duration) (Event, bool) {
	var found Event
	ok := s.waitUntil(func(events []Event) bool {
		for _, e := range events {
			if match(e) {
				found = e
				return true
			}
		}
		return false
	}, timeout)
	return found, ok
}

// WaitPhase waits until the orchestrator entered p.
func (s *Sink) WaitPhase(p dialogue.Phase, timeout time.Duration) bool {
	_, ok := s.WaitFor(func(e Event) bool { return e.Kind == "phase" && e.To == p }, timeout)
	return ok
}

// WaitCount waits until at least n events of kind were recorded.
func (s *Sink) WaitCount(kind string, n int, timeout time.Duration) bool {
	return s.waitUntil(func(events []Event) bool {
		count := 0
		for _, e := range events {
			if e.Kind == kind {
				count++
			}
		}
		return count >= n
	}, timeout)
}

func (s *Sink) waitUntil(cond func([]Event) bool, timeout time.Duration) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		s.mu.Lock()
		done := cond(s.events)
		ch := s.changed
		s.mu.Unlock()
		if done {
			return true
		}
		select {
		case <-ch:
		case <-deadline.C:
			return false
		}
	}
}

// Reset clears recorded events.
func (s *Sink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
}
