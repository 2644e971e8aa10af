// Package coqui synthesises speech with a self-hosted Coqui server.
//
// Two server flavours are understood. The standard Coqui TTS server
// (ghcr.io/coqui-ai/tts-cpu) renders with GET /api/tts and describes its
// model at GET /details. The XTTS v2 API server renders with
// POST /tts_to_audio/ and lists studio speakers at GET /studio_speakers.
// Both reply with WAV.
//
//	p, _ := coqui.New("http://localhost:5002", coqui.WithLanguage("en"))
//	clip, err := p.Synthesize(ctx, "Tell me about yourself.", tts.Voice{})
package coqui

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/MrWong99/echocoach/pkg/audio"
	"github.com/MrWong99/echocoach/pkg/provider/tts"
)

// APIMode selects the Coqui server flavour.
type APIMode string

const (
	APIModeStandard APIMode = "standard"
	APIModeXTTS     APIMode = "xtts"
)

const (
	standardSynthPath  = "/api/tts"
	standardVoicesPath = "/details"
	xttsSynthPath      = "/tts_to_audio/"
	xttsVoicesPath     = "/studio_speakers"

	// maxWAVBytes caps a rendered answer; a few minutes of 24 kHz mono.
	maxWAVBytes = 32 << 20
)

// server is one Coqui API flavour.
type server interface {
	synthesis(ctx context.Context, base, text, voiceID, lang string) (*http.Request, error)
	voicesPath() string
	parseVoices(body []byte) ([]tts.Voice, error)
}

// Option configures a [Provider].
type Option func(*Provider)

// WithLanguage sets the language code passed to the server. Default "en".
func WithLanguage(lang string) Option {
	return func(p *Provider) { p.lang = lang }
}

// WithTimeout bounds each HTTP request. Default 30 s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) { p.client.Timeout = d }
}

// WithAPIMode picks the server flavour. Default [APIModeStandard].
func WithAPIMode(mode APIMode) Option {
	return func(p *Provider) { p.mode = mode }
}

// Provider implements [tts.Provider] against a Coqui server.
type Provider struct {
	base   string
	lang   string
	mode   APIMode
	client *http.Client
	server server
}

var _ tts.Provider = (*Provider)(nil)

// New returns a Provider for the server at baseURL, for example
// "http://localhost:5002".
func New(baseURL string, opts ...Option) (*Provider, error) {
	if baseURL == "" {
		return nil, errors.New("coqui: server URL is required")
	}
	p := &Provider{
		base:   strings.TrimRight(baseURL, "/"),
		lang:   "en",
		mode:   APIModeStandard,
		client: &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(p)
	}
	switch p.mode {
	case APIModeStandard:
		p.server = standardServer{}
	case APIModeXTTS:
		p.server = xttsServer{}
	default:
		return nil, fmt.Errorf("coqui: unknown api mode %q", p.mode)
	}
	return p, nil
}

// Synthesize renders text as a WAV clip. The XTTS server needs a speaker, so
// voice.ID is required in that mode; the standard server falls back to the
// model's only voice.
func (p *Provider) Synthesize(ctx context.Context, text string, voice tts.Voice) (*audio.Clip, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, tts.ErrEmptyText
	}
	if voice.ID == "" && p.mode == APIModeXTTS {
		return nil, errors.New("coqui: xtts needs a speaker in voice.ID")
	}

	req, err := p.server.synthesis(ctx, p.base, text, voice.ID, p.lang)
	if err != nil {
		return nil, fmt.Errorf("coqui: build request: %w", err)
	}
	req.Header.Set("Accept", "audio/wav")

	wav, err := p.do(req)
	if err != nil {
		return nil, err
	}
	info, err := audio.ParseWAV(wav)
	if err != nil {
		return nil, fmt.Errorf("coqui: %w", err)
	}
	return &audio.Clip{
		Data:        wav,
		ContentType: audio.ContentTypeWAV,
		SampleRate:  info.SampleRate,
		Channels:    info.Channels,
	}, nil
}

// ListVoices returns the server's speakers sorted by ID.
func (p *Provider) ListVoices(ctx context.Context) ([]tts.Voice, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.base+p.server.voicesPath(), nil)
	if err != nil {
		return nil, fmt.Errorf("coqui: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	body, err := p.do(req)
	if err != nil {
		return nil, err
	}
	voices, err := p.server.parseVoices(body)
	if err != nil {
		return nil, fmt.Errorf("coqui: decode %s: %w", p.server.voicesPath(), err)
	}
	return voices, nil
}

// do sends req and returns the body of a 200 reply.
func (p *Provider) do(req *http.Request) ([]byte, error) {
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coqui: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coqui: %s %s: status %d", req.Method, req.URL.Path, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxWAVBytes))
	if err != nil {
		return nil, fmt.Errorf("coqui: read %s reply: %w", req.URL.Path, err)
	}
	return body, nil
}

func coquiVoice(id string, meta map[string]string) tts.Voice {
	return tts.Voice{ID: id, Name: id, Provider: "coqui", Metadata: meta}
}

type standardServer struct{}

func (standardServer) synthesis(ctx context.Context, base, text, voiceID, lang string) (*http.Request, error) {
	q := url.Values{"text": {text}}
	if voiceID != "" {
		q.Set("speaker_id", voiceID)
	}
	if lang != "" {
		q.Set("language_id", lang)
	}
	return http.NewRequestWithContext(ctx, http.MethodGet, base+standardSynthPath+"?"+q.Encode(), nil)
}

func (standardServer) voicesPath() string { return standardVoicesPath }

// parseVoices turns /details into one voice per speaker. A single-speaker
// model is reported as one voice named after the model.
func (standardServer) parseVoices(body []byte) ([]tts.Voice, error) {
	var details struct {
		ModelName string   `json:"model_name"`
		Speakers  []string `json:"speakers"`
	}
	if err := json.Unmarshal(body, &details); err != nil {
		return nil, err
	}

	if len(details.Speakers) == 0 {
		model := cmp.Or(details.ModelName, "default")
		return []tts.Voice{coquiVoice(model, map[string]string{"type": "single-speaker", "model_name": model})}, nil
	}
	voices := make([]tts.Voice, 0, len(details.Speakers))
	for _, spk := range slices.Sorted(slices.Values(details.Speakers)) {
		voices = append(voices, coquiVoice(spk, map[string]string{"type": "speaker", "model_name": details.ModelName}))
	}
	return voices, nil
}

// xttsRequest is the POST /tts_to_audio/ body.
type xttsRequest struct {
	Text       string `json:"text"`
	SpeakerWav string `json:"speaker_wav"`
	Language   string `json:"language"`
}

type xttsServer struct{}

func (xttsServer) synthesis(ctx context.Context, base, text, voiceID, lang string) (*http.Request, error) {
	data, err := json.Marshal(xttsRequest{Text: text, SpeakerWav: voiceID, Language: lang})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+xttsSynthPath, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (xttsServer) voicesPath() string { return xttsVoicesPath }

// parseVoices lists the keys of /studio_speakers; the values hold speaker
// embeddings that are not needed here.
func (xttsServer) parseVoices(body []byte) ([]tts.Voice, error) {
	var speakers map[string]json.RawMessage
	if err := json.Unmarshal(body, &speakers); err != nil {
		return nil, err
	}
	voices := make([]tts.Voice, 0, len(speakers))
	for _, name := range slices.Sorted(maps.Keys(speakers)) {
		voices = append(voices, coquiVoice(name, map[string]string{"type": "studio"}))
	}
	return voices, nil
}
