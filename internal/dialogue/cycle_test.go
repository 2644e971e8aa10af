package dialogue

import (
	"errors"
	"testing"

	"github.com/MrWong99/echocoach/pkg/store"
)

var testQuestion = store.Question{ID: "q1", Text: "Tell me about yourself.", Category: "general", Difficulty: "easy"}

func TestAdvance_PhaseOrder(t *testing.T) {
	t.Parallel()

	tests := []struct {
		mode Mode
		want []Phase
	}{
		{Practice, []Phase{Pause1, Repeat, Pause2, Listen, Evaluate, Feedback, Next, Idle}},
		{Train, []Phase{Pause1, ModelAnswer, PauseAfterModel, RepeatAnswer, PauseAfterRepeat, Listen, Evaluate, Feedback, Next, Idle}},
	}

	for _, tc := range tests {
		t.Run(tc.mode.String(), func(t *testing.T) {
			t.Parallel()
			// Every prefix length must match the table.
			for n := 0; n <= len(tc.want); n++ {
				c := New(tc.mode)
				c.StartCycle(testQuestion)
				for i := range n {
					got, err := c.Advance()
					if err != nil {
						t.Fatalf("advance %d: unexpected error: %v", i, err)
					}
					if got != tc.want[i] {
						t.Fatalf("advance %d: got %s, want %s", i, got, tc.want[i])
					}
				}
			}
		})
	}
}

func TestAdvance_FromIdle(t *testing.T) {
	t.Parallel()
	c := New(Train)

	got, err := c.Advance()
	if !errors.Is(err, ErrNoSuccessor) {
		t.Fatalf("got err %v, want ErrNoSuccessor", err)
	}
	if got != Idle || c.Phase() != Idle {
		t.Errorf("phase changed: got %s, want IDLE", c.Phase())
	}
}

func TestStartCycle_FromEveryPhase(t *testing.T) {
	t.Parallel()

	for _, mode := range []Mode{Practice, Train} {
		for _, p := range append([]Phase{Idle}, Sequence(mode)...) {
			c := New(mode)
			c.StartCycle(store.Question{ID: "old"})
			if p != Idle {
				if err := c.SetPhase(p); err != nil {
					t.Fatalf("%s: SetPhase(%s): %v", mode, p, err)
				}
			} else {
				c.Reset()
			}

			c.StartCycle(testQuestion)
			if c.Phase() != Ask {
				t.Errorf("%s from %s: got %s, want ASK", mode, p, c.Phase())
			}
			q, ok := c.Question()
			if !ok || q.ID != testQuestion.ID {
				t.Errorf("%s from %s: question got %+v, want %s", mode, p, q, testQuestion.ID)
			}
		}
	}
}

func TestSetPhase_RejectsOtherMode(t *testing.T) {
	t.Parallel()

	practice := New(Practice)
	if err := practice.SetPhase(ModelAnswer); !errors.Is(err, ErrPhaseNotInMode) {
		t.Errorf("practice SetPhase(MODEL_ANSWER): got %v, want ErrPhaseNotInMode", err)
	}
	train := New(Train)
	if err := train.SetPhase(Repeat); !errors.Is(err, ErrPhaseNotInMode) {
		t.Errorf("train SetPhase(REPEAT): got %v, want ErrPhaseNotInMode", err)
	}
	if err := train.SetPhase(Evaluate); err != nil {
		t.Errorf("train SetPhase(EVALUATE): %v", err)
	}
}

func TestReset_ClearsQuestion(t *testing.T) {
	t.Parallel()
	c := New(Practice)
	c.StartCycle(testQuestion)
	c.Reset()

	if c.Phase() != Idle {
		t.Errorf("phase: got %s, want IDLE", c.Phase())
	}
	if _, ok := c.Question(); ok {
		t.Error("question still set after Reset")
	}
}

func TestObserver(t *testing.T) {
	t.Parallel()

	var seen [][2]Phase
	c := New(Practice, WithObserver(func(from, to Phase) {
		seen = append(seen, [2]Phase{from, to})
	}))
	c.StartCycle(testQuestion)
	_, _ = c.Advance()
	_ = c.SetPhase(Evaluate)

	want := [][2]Phase{{Idle, Ask}, {Ask, Pause1}, {Pause1, Evaluate}}
	if len(seen) != len(want) {
		t.Fatalf("observer calls: got %d, want %d", len(seen), len(want))
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("call %d: got %v, want %v", i, seen[i], want[i])
		}
	}
}

func TestPhaseNames(t *testing.T) {
	t.Parallel()

	for p := Idle; p <= Next; p++ {
		got, err := ParsePhase(p.String())
		if err != nil || got != p {
			t.Errorf("ParsePhase(%q): got %v, %v", p.String(), got, err)
		}
	}
	if PauseAfterModel.String() != "PAUSE_AFTER_MODEL" {
		t.Errorf("got %q, want PAUSE_AFTER_MODEL", PauseAfterModel.String())
	}
	if _, err := ParseMode("sing"); err == nil {
		t.Error("ParseMode(sing): expected error")
	}
}
