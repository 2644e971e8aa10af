// Package stt defines the Provider interface for Speech-to-Text backends.
//
// A coaching turn produces one complete recording per answer, so providers
// work on whole clips rather than live streams: the caller hands over a
// finished [audio.Clip] and receives a single [Transcript].
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"
	"errors"
	"time"

	"github.com/MrWong99/echocoach/pkg/audio"
)

// ErrEmptyAudio is returned when the clip carries no samples.
var ErrEmptyAudio = errors.New("stt: empty audio")

// Options tunes a single transcription request.
type Options struct {
	// Language is the BCP-47 language tag (e.g., "en-US"). Empty lets the
	// provider auto-detect.
	Language string

	// Keywords are vocabulary hints for technical terms the candidate is
	// likely to say (e.g., "Kubernetes"). Providers without keyword support
	// ignore them.
	Keywords []string
}

// Transcript is the result of transcribing one clip.
type Transcript struct {
	// Text is the transcribed speech content.
	Text string

	// Confidence is the overall confidence score (0.0 to 1.0). Zero when the
	// provider does not report it.
	Confidence float64

	// Words contains per-word timing when the provider returns it. Used to
	// derive speaking pace and pause counts.
	Words []WordDetail

	// Duration is the length of the transcribed audio.
	Duration time.Duration
}

// WordDetail holds per-word metadata.
type WordDetail struct {
	Word       string
	Start      time.Duration
	End        time.Duration
	Confidence float64
}

// Provider is the abstraction over any STT backend.
type Provider interface {
	// Transcribe converts clip into text. Returns ErrEmptyAudio for clips
	// without payload.
	Transcribe(ctx context.Context, clip audio.Clip, opts Options) (*Transcript, error)
}

// WordsPerMinute estimates the speaking pace of t. It prefers word timings
// and falls back to the clip duration. Returns 0 when neither is available.
func (t *Transcript) WordsPerMinute() float64 {
	if t == nil {
		return 0
	}
	span := t.Duration
	words := len(t.Words)
	if words > 1 {
		span = t.Words[words-1].End - t.Words[0].Start
	} else {
		words = countWords(t.Text)
	}
	if span <= 0 || words == 0 {
		return 0
	}
	return float64(words) / span.Minutes()
}

// Pauses counts gaps between consecutive words longer than minGap. Returns 0
// when no word timings are available.
func (t *Transcript) Pauses(minGap time.Duration) int {
	if t == nil {
		return 0
	}
	n := 0
	for i := 1; i < len(t.Words); i++ {
		if t.Words[i].Start-t.Words[i-1].End > minGap {
			n++
		}
	}
	return n
}

func countWords(s string) int {
	n := 0
	inWord := false
	for _, r := range s {
		space := r == ' ' || r == '\t' || r == '\n' || r == '\r'
		if !space && !inWord {
			n++
		}
		inWord = !space
	}
	return n
}
