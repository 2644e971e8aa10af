// Package dialogue implements the turn-taking state machine that paces one
// coaching question: ask, pause, repeat or model answer, listen, evaluate,
// feedback, next.
//
// A [Cycle] is pure: it never performs I/O, never blocks and knows nothing
// about audio. The transition function is a total table keyed by
// (Mode, Phase); phases outside the active mode's table have no successor.
//
// A Cycle is not safe for concurrent use. It is owned by exactly one
// orchestrator goroutine.
package dialogue

import (
	"errors"
	"fmt"

	"github.com/MrWong99/echocoach/pkg/store"
)

var (
	// ErrNoSuccessor is returned by [Cycle.Advance] when the current phase has
	// no defined successor in the active mode (always the case for Idle).
	ErrNoSuccessor = errors.New("dialogue: phase has no successor")

	// ErrPhaseNotInMode is returned by [Cycle.SetPhase] for phases that are
	// not part of the active mode's table.
	ErrPhaseNotInMode = errors.New("dialogue: phase not valid in mode")
)

// sequences lists each mode's phases in order. The last entry is Idle, which
// is both the initial and the terminal phase of a turn.
var sequences = [...][]Phase{
	Practice: {Ask, Pause1, Repeat, Pause2, Listen, Evaluate, Feedback, Next, Idle},
	Train: {
		Ask, Pause1, ModelAnswer, PauseAfterModel, RepeatAnswer,
		PauseAfterRepeat, Listen, Evaluate, Feedback, Next, Idle,
	},
}

type edge struct {
	next Phase
	ok   bool
}

// successors[mode][phase] is the transition table derived from sequences.
var successors [len(sequences)][len(phaseNames)]edge

// members[mode][phase] reports whether phase belongs to mode.
var members [len(sequences)][len(phaseNames)]bool

func init() {
	for m, seq := range sequences {
		for i, p := range seq {
			members[m][p] = true
			if i+1 < len(seq) {
				successors[m][p] = edge{next: seq[i+1], ok: true}
			}
		}
	}
}

// Successor returns the phase that follows p in mode. ok is false when p has
// no successor (Idle, or a phase from the other mode).
func Successor(mode Mode, p Phase) (next Phase, ok bool) {
	if !validMode(mode) || p < 0 || int(p) >= len(phaseNames) {
		return Idle, false
	}
	e := successors[mode][p]
	return e.next, e.ok
}

// Sequence returns a copy of mode's phase order starting at Ask.
func Sequence(mode Mode) []Phase {
	if !validMode(mode) {
		return nil
	}
	out := make([]Phase, len(sequences[mode]))
	copy(out, sequences[mode])
	return out
}

func validMode(m Mode) bool { return m >= 0 && int(m) < len(sequences) }

// Cycle holds the active phase, the current question and the immutable mode.
type Cycle struct {
	mode     Mode
	phase    Phase
	question store.Question
	hasQ     bool
	observer func(from, to Phase)
}

// Option configures a Cycle.
type Option func(*Cycle)

// WithObserver registers fn to be called synchronously after every phase
// change, including changes caused by StartCycle, SetPhase and Reset.
func WithObserver(fn func(from, to Phase)) Option {
	return func(c *Cycle) { c.observer = fn }
}

// New returns a Cycle in Idle for the given mode. An unknown mode falls back
// to Practice.
func New(mode Mode, opts ...Option) *Cycle {
	if !validMode(mode) {
		mode = Practice
	}
	c := &Cycle{mode: mode, phase: Idle}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Mode returns the cycle's mode.
func (c *Cycle) Mode() Mode { return c.mode }

// Phase returns the active phase.
func (c *Cycle) Phase() Phase { return c.phase }

// Question returns the active question. ok is false between turns.
func (c *Cycle) Question() (q store.Question, ok bool) { return c.question, c.hasQ }

// StartCycle begins a new turn with q. Valid from any phase; it always lands
// in Ask and discards the previous turn's question.
func (c *Cycle) StartCycle(q store.Question) {
	c.question = q
	c.hasQ = true
	c.set(Ask)
}

// Advance moves to the successor of the current phase and returns it. From a
// phase with no successor it returns ErrNoSuccessor and leaves the phase
// unchanged.
func (c *Cycle) Advance() (Phase, error) {
	next, ok := Successor(c.mode, c.phase)
	if !ok {
		return c.phase, fmt.Errorf("%w: %s in %s mode", ErrNoSuccessor, c.phase, c.mode)
	}
	c.set(next)
	return next, nil
}

// SetPhase jumps directly to p. It is used when an external result rather
// than a playback event decides the next phase, e.g. EVALUATE once the
// recording is in and FEEDBACK once the evaluation returns.
func (c *Cycle) SetPhase(p Phase) error {
	if p < 0 || int(p) >= len(phaseNames) || !members[c.mode][p] {
		return fmt.Errorf("%w: %s in %s mode", ErrPhaseNotInMode, p, c.mode)
	}
	c.set(p)
	return nil
}

// Reset returns to Idle and clears the question.
func (c *Cycle) Reset() {
	c.question = store.Question{}
	c.hasQ = false
	c.set(Idle)
}

func (c *Cycle) set(p Phase) {
	from := c.phase
	c.phase = p
	if c.observer != nil {
		c.observer(from, p)
	}
}
