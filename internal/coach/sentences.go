package coach

import (
	"strings"
	"time"
	"unicode"
)

// SentencePlan tracks train-mode sentence repetition. It exists only while
// the cycle is in REPEAT_ANSWER.
type SentencePlan struct {
	Sentences []string
	Index     int
}

// Current returns the sentence being presented.
func (p *SentencePlan) Current() string {
	if p == nil || p.Index < 0 || p.Index >= len(p.Sentences) {
		return ""
	}
	return p.Sentences[p.Index]
}

// Last reports whether the current sentence is the final one.
func (p *SentencePlan) Last() bool { return p.Index+1 >= len(p.Sentences) }

// SplitSentences splits text after '.', '!' or '?' when followed by
// whitespace. Pieces are trimmed and empty ones dropped, so blank text
// yields no sentences and text without terminal punctuation yields one.
func SplitSentences(text string) []string {
	var out []string
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}

	start := 0
	var prev rune
	for i, r := range text {
		if unicode.IsSpace(r) && (prev == '.' || prev == '!' || prev == '?') {
			add(text[start:i])
			start = i
		}
		prev = r
	}
	add(text[start:])
	return out
}

// ReadingTime is the pause granted after a model-answer sentence using the
// default pacing.
func ReadingTime(sentence string) time.Duration {
	return DefaultConfig().ReadingTime(sentence)
}

// ReadingTime returns max(MinReadingTime, ReadingBuffer + words/WordsPerSecond).
func (c Config) ReadingTime(sentence string) time.Duration {
	c = c.WithDefaults()
	words := len(strings.Fields(sentence))
	d := c.ReadingBuffer + time.Duration(float64(words)/c.WordsPerSecond*float64(time.Second))
	return max(c.MinReadingTime, d)
}
