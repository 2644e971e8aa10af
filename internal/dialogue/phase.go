package dialogue

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Phase is the single active step of a coaching turn.
type Phase int

const (
	Idle Phase = iota
	Ask
	Pause1
	Repeat
	Pause2
	ModelAnswer
	PauseAfterModel
	RepeatAnswer
	PauseAfterRepeat
	Listen
	Evaluate
	Feedback
	Next
)

var phaseNames = [...]string{
	Idle:             "IDLE",
	Ask:              "ASK",
	Pause1:           "PAUSE1",
	Repeat:           "REPEAT",
	Pause2:           "PAUSE2",
	ModelAnswer:      "MODEL_ANSWER",
	PauseAfterModel:  "PAUSE_AFTER_MODEL",
	RepeatAnswer:     "REPEAT_ANSWER",
	PauseAfterRepeat: "PAUSE_AFTER_REPEAT",
	Listen:           "LISTEN",
	Evaluate:         "EVALUATE",
	Feedback:         "FEEDBACK",
	Next:             "NEXT",
}

// String returns the wire name of the phase, e.g. "PAUSE_AFTER_MODEL".
func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return fmt.Sprintf("Phase(%d)", int(p))
	}
	return phaseNames[p]
}

// ParsePhase parses a wire name back into a Phase.
func ParsePhase(s string) (Phase, error) {
	for i, name := range phaseNames {
		if strings.EqualFold(name, s) {
			return Phase(i), nil
		}
	}
	return Idle, fmt.Errorf("dialogue: unknown phase %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Phase) UnmarshalText(b []byte) error {
	v, err := ParsePhase(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Mode selects the transition table of a Cycle.
type Mode int

const (
	// Practice: the user answers on their own after hearing the question.
	Practice Mode = iota
	// Train: the user hears a model answer and repeats it sentence by sentence
	// before answering.
	Train
)

// String returns "practice" or "train".
func (m Mode) String() string {
	switch m {
	case Practice:
		return "practice"
	case Train:
		return "train"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode parses "practice" or "train".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "practice", "":
		return Practice, nil
	case "train":
		return Train, nil
	default:
		return Practice, fmt.Errorf("dialogue: unknown mode %q", s)
	}
}

// MarshalJSON encodes the mode as its string name.
func (m Mode) MarshalJSON() ([]byte, error) { return json.Marshal(m.String()) }

// UnmarshalJSON decodes a mode from its string name.
func (m *Mode) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := ParseMode(s)
	if err != nil {
		return err
	}
	*m = v
	return nil
}
