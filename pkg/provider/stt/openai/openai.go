// Package openai provides an STT provider backed by the OpenAI
// transcription API (whisper-1 and the gpt-4o transcribe models).
package openai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/MrWong99/echocoach/pkg/audio"
	"github.com/MrWong99/echocoach/pkg/provider/stt"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "whisper-1"

var _ stt.Provider = (*Provider)(nil)

// Provider implements stt.Provider.
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

// WithModel selects the transcription model.
func WithModel(model string) Option {
	return func(s *settings) { s.model = model }
}

// WithBaseURL points the client at an OpenAI-compatible server.
func WithBaseURL(url string) Option {
	return func(s *settings) { s.reqOpts = append(s.reqOpts, option.WithBaseURL(url)) }
}

// New returns a transcription provider.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("openai stt: apiKey must not be empty")
	}
	s := settings{model: DefaultModel}
	for _, o := range opts {
		o(&s)
	}
	reqOpts := append([]option.RequestOption{option.WithAPIKey(apiKey)}, s.reqOpts...)
	return &Provider{client: oai.NewClient(reqOpts...), model: s.model}, nil
}

// Transcribe uploads clip and returns the recognised text. PCM clips are
// wrapped in a WAV container first since the API only accepts files.
func (p *Provider) Transcribe(ctx context.Context, clip audio.Clip, opts stt.Options) (*stt.Transcript, error) {
	if clip.Empty() {
		return nil, stt.ErrEmptyAudio
	}
	data, name, ctype := clip.Data, "audio"+extension(clip.ContentType), clip.ContentType
	if clip.ContentType == audio.ContentTypePCM {
		data, name, ctype = audio.EncodeWAV(clip.Data, clip.SampleRate, clip.Channels), "audio.wav", audio.ContentTypeWAV
	}

	params := oai.AudioTranscriptionNewParams{
		File:  oai.File(bytes.NewReader(data), name, ctype),
		Model: oai.AudioModel(p.model),
	}
	if opts.Language != "" {
		params.Language = oai.String(shortLang(opts.Language))
	}
	if len(opts.Keywords) > 0 {
		params.Prompt = oai.String(strings.Join(opts.Keywords, ", "))
	}

	res, err := p.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai stt: transcribe: %w", err)
	}
	return &stt.Transcript{Text: strings.TrimSpace(res.Text), Duration: clip.Duration()}, nil
}

func extension(contentType string) string {
	switch contentType {
	case audio.ContentTypeMP3:
		return ".mp3"
	case audio.ContentTypeOpus:
		return ".ogg"
	case audio.ContentTypeWebM:
		return ".webm"
	default:
		return ".wav"
	}
}

func shortLang(lang string) string {
	if i := strings.IndexByte(lang, '-'); i > 0 {
		return strings.ToLower(lang[:i])
	}
	return strings.ToLower(lang)
}
