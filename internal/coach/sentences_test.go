package coach_test

import (
	"slices"
	"testing"
	"time"

	"github.com/MrWong99/echocoach/internal/coach"
)

func TestSplitSentences(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"three sentences", "Hello there. How are you? I am fine!", []string{"Hello there.", "How are you?", "I am fine!"}},
		{"no terminal punctuation", "  just one thought  ", []string{"just one thought"}},
		{"blank", " \n\t ", nil},
		{"empty", "", nil},
		{"no space after period", "Version 2.5 is out.Really", []string{"Version 2.5 is out.Really"}},
		{"newline separator", "First.\nSecond.", []string{"First.", "Second."}},
		{"runs of whitespace", "A!   B?", []string{"A!", "B?"}},
		{"trailing space", "Done. ", []string{"Done."}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := coach.SplitSentences(tc.in); !slices.Equal(got, tc.want) {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestReadingTime(t *testing.T) {
	t.Parallel()

	tests := []struct {
		sentence string
		want     time.Duration
	}{
		{"one", 2000 * time.Millisecond},
		{"one two three four five", 3000 * time.Millisecond},
		{"a b c d e f g h i j", 5000 * time.Millisecond},
		{"", 2000 * time.Millisecond},
	}
	for _, tc := range tests {
		if got := coach.ReadingTime(tc.sentence); got != tc.want {
			t.Errorf("ReadingTime(%q): got %v, want %v", tc.sentence, got, tc.want)
		}
	}
}

func TestConfig_ReadingTimeCustomPace(t *testing.T) {
	t.Parallel()
	cfg := coach.Config{WordsPerSecond: 5, ReadingBuffer: 500 * time.Millisecond, MinReadingTime: time.Second}
	if got, want := cfg.ReadingTime("one two three four five"), 1500*time.Millisecond; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestSentencePlan(t *testing.T) {
	t.Parallel()
	p := &coach.SentencePlan{Sentences: []string{"a", "b"}}
	if p.Current() != "a" || p.Last() {
		t.Errorf("index 0: current %q last %v", p.Current(), p.Last())
	}
	p.Index++
	if p.Current() != "b" || !p.Last() {
		t.Errorf("index 1: current %q last %v", p.Current(), p.Last())
	}
	p.Index++
	if p.Current() != "" {
		t.Errorf("out of range: got %q", p.Current())
	}
}
