// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider wraps a speech synthesis service (e.g., ElevenLabs, OpenAI
// or a local Coqui server) and turns one piece of text into one complete,
// playable [audio.Clip]. The coach plays every clip to completion before it
// moves on, so there is no incremental streaming surface.
//
// Implementations must be safe for concurrent use.
package tts

import (
	"context"
	"errors"

	"github.com/MrWong99/echocoach/pkg/audio"
)

// ErrEmptyText is returned when Synthesize is called with blank text.
var ErrEmptyText = errors.New("tts: empty text")

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// Synthesize converts text into a single audio clip spoken with voice.
	// The returned clip has no ID; callers assign one when they play it.
	Synthesize(ctx context.Context, text string, voice Voice) (*audio.Clip, error)

	// ListVoices returns all voices available from this provider.
	ListVoices(ctx context.Context) ([]Voice, error)
}
