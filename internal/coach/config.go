package coach

import (
	"errors"
	"fmt"
	"time"

	"github.com/MrWong99/echocoach/pkg/provider/tts"
)

// Config holds the pacing of a coaching turn. The zero value of any field
// falls back to the matching DefaultConfig value.
type Config struct {
	// PracticeRepeatDelay is the pause between the question and its repeat
	// in practice mode.
	PracticeRepeatDelay time.Duration

	// SettleDelay is the pause before the model answer, before sentence
	// repetition and before recording in train mode.
	SettleDelay time.Duration

	// SentenceRetryDelay is how long the sentence driver waits before
	// skipping a sentence that failed to synthesize.
	SentenceRetryDelay time.Duration

	// MinReadingTime, ReadingBuffer and WordsPerSecond size the gap after
	// each model-answer sentence. See [Config.ReadingTime].
	MinReadingTime time.Duration
	ReadingBuffer  time.Duration
	WordsPerSecond float64

	// Voice is used for every synthesized clip.
	Voice tts.Voice

	// FeedbackPrefix is spoken before the evaluation feedback in train mode.
	FeedbackPrefix string
}

// DefaultConfig returns the standard pacing.
func DefaultConfig() Config {
	return Config{
		PracticeRepeatDelay: 3000 * time.Millisecond,
		SettleDelay:         2000 * time.Millisecond,
		SentenceRetryDelay:  1000 * time.Millisecond,
		MinReadingTime:      2000 * time.Millisecond,
		ReadingBuffer:       1000 * time.Millisecond,
		WordsPerSecond:      2.5,
		FeedbackPrefix:      "Great job practicing! ",
	}
}

// WithDefaults fills zero fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.PracticeRepeatDelay == 0 {
		c.PracticeRepeatDelay = d.PracticeRepeatDelay
	}
	if c.SettleDelay == 0 {
		c.SettleDelay = d.SettleDelay
	}
	if c.SentenceRetryDelay == 0 {
		c.SentenceRetryDelay = d.SentenceRetryDelay
	}
	if c.MinReadingTime == 0 {
		c.MinReadingTime = d.MinReadingTime
	}
	if c.ReadingBuffer == 0 {
		c.ReadingBuffer = d.ReadingBuffer
	}
	if c.WordsPerSecond == 0 {
		c.WordsPerSecond = d.WordsPerSecond
	}
	if c.FeedbackPrefix == "" {
		c.FeedbackPrefix = d.FeedbackPrefix
	}
	return c
}

// Validate rejects negative durations and a negative reading speed. Zero
// values are allowed; they select the defaults.
func (c Config) Validate() error {
	var errs []error
	for _, f := range []struct {
		name string
		d    time.Duration
	}{
		{"practice_repeat_delay", c.PracticeRepeatDelay},
		{"settle_delay", c.SettleDelay},
		{"sentence_retry_delay", c.SentenceRetryDelay},
		{"min_reading_time", c.MinReadingTime},
		{"reading_buffer", c.ReadingBuffer},
	} {
		if f.d < 0 {
			errs = append(errs, fmt.Errorf("coach: %s must not be negative, got %s", f.name, f.d))
		}
	}
	if c.WordsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("coach: words_per_second must not be negative, got %v", c.WordsPerSecond))
	}
	return errors.Join(errs...)
}
