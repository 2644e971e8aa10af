// Package openai provides a TTS provider backed by the OpenAI speech API.
// Audio is returned as MP3.
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/MrWong99/echocoach/pkg/audio"
	"github.com/MrWong99/echocoach/pkg/provider/tts"
)

// Defaults used when the config leaves model or voice empty.
const (
	DefaultModel = "tts-1"
	DefaultVoice = "alloy"
)

// builtinVoices is the fixed voice set of the speech endpoint.
var builtinVoices = []string{"alloy", "ash", "coral", "echo", "fable", "nova", "onyx", "sage", "shimmer"}

var _ tts.Provider = (*Provider)(nil)

// Provider implements tts.Provider.
type Provider struct {
	client oai.Client
	model  string
}

// Option configures a Provider.
type Option func(*settings)

type settings struct {
	model   string
	reqOpts []option.RequestOption
}

// WithModel selects the speech model (tts-1, tts-1-hd, gpt-4o-mini-tts).
func WithModel(model string) Option {
	return func(s *settings) { s.model = model }
}

// WithBaseURL points the client at an OpenAI-compatible server.
func WithBaseURL(url string) Option {
	return func(s *settings) { s.reqOpts = append(s.reqOpts, option.WithBaseURL(url)) }
}

// New returns a speech provider.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("openai tts: apiKey must not be empty")
	}
	s := settings{model: DefaultModel}
	for _, o := range opts {
		o(&s)
	}
	reqOpts := append([]option.RequestOption{option.WithAPIKey(apiKey)}, s.reqOpts...)
	return &Provider{client: oai.NewClient(reqOpts...), model: s.model}, nil
}

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(ctx context.Context, text string, voice tts.Voice) (*audio.Clip, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, tts.ErrEmptyText
	}
	voiceID := voice.ID
	if voiceID == "" {
		voiceID = DefaultVoice
	}
	params := oai.AudioSpeechNewParams{
		Input:          text,
		Model:          oai.SpeechModel(p.model),
		Voice:          oai.AudioSpeechNewParamsVoice(voiceID),
		ResponseFormat: oai.AudioSpeechNewParamsResponseFormatMP3,
	}
	if voice.Speed > 0 {
		params.Speed = oai.Float(voice.Speed)
	}

	resp, err := p.client.Audio.Speech.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai tts: synthesize: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("openai tts: read audio: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("openai tts: empty audio response")
	}
	return &audio.Clip{Data: data, ContentType: audio.ContentTypeMP3}, nil
}

// ListVoices returns the built-in voices. The API has no listing endpoint.
func (p *Provider) ListVoices(_ context.Context) ([]tts.Voice, error) {
	voices := make([]tts.Voice, 0, len(builtinVoices))
	for _, id := range builtinVoices {
		voices = append(voices, tts.Voice{ID: id, Name: strings.ToUpper(id[:1]) + id[1:], Provider: "openai"})
	}
	return voices, nil
}
