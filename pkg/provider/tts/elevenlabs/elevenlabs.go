// Package elevenlabs renders speech with the ElevenLabs text-to-speech REST
// API. Each Synthesize call is one POST /v1/text-to-speech/{voice_id} that
// returns the complete clip.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/MrWong99/echocoach/pkg/audio"
	"github.com/MrWong99/echocoach/pkg/provider/tts"
)

const (
	defaultBaseURL = "https://api.elevenlabs.io"
	defaultModel   = "eleven_flash_v2_5"
	defaultFormat  = "mp3_44100_128"

	// DefaultVoiceID is "Rachel", a stock voice on every account.
	DefaultVoiceID = "21m00Tcm4TlvDq8ikWAM"

	maxClipBytes = 32 << 20
)

// Option configures a [Provider].
type Option func(*Provider)

// WithModel sets the model ID, for example "eleven_multilingual_v2".
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithOutputFormat sets the output_format query value. mp3_* formats give
// clips a browser plays as is; pcm_<rate> gives raw 16-bit mono PCM.
func WithOutputFormat(format string) Option {
	return func(p *Provider) { p.format = format }
}

// WithBaseURL points the provider at another API host.
func WithBaseURL(base string) Option {
	return func(p *Provider) { p.base = strings.TrimRight(base, "/") }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.client = c }
}

// Provider implements [tts.Provider] for ElevenLabs.
type Provider struct {
	apiKey string
	model  string
	format string
	base   string
	client *http.Client
}

var _ tts.Provider = (*Provider)(nil)

// New returns a Provider authenticated with apiKey.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs: api key is required")
	}
	p := &Provider{
		apiKey: apiKey,
		model:  defaultModel,
		format: defaultFormat,
		base:   defaultBaseURL,
		client: http.DefaultClient,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

type synthesisRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Speed           float64 `json:"speed,omitempty"`
}

// apiError is the body ElevenLabs sends with 4xx and 5xx replies.
type apiError struct {
	Detail struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"detail"`
}

// Synthesize renders text with voice. An empty voice ID uses
// [DefaultVoiceID].
func (p *Provider) Synthesize(ctx context.Context, text string, voice tts.Voice) (*audio.Clip, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, tts.ErrEmptyText
	}
	voiceID := voice.ID
	if voiceID == "" {
		voiceID = DefaultVoiceID
	}

	body, err := json.Marshal(synthesisRequest{
		Text:          text,
		ModelID:       p.model,
		VoiceSettings: voiceSettings{Stability: 0.5, SimilarityBoost: 0.75, Speed: voice.Speed},
	})
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: encode request: %w", err)
	}
	endpoint := fmt.Sprintf("%s/v1/text-to-speech/%s?%s", p.base, url.PathEscape(voiceID),
		url.Values{"output_format": {p.format}}.Encode())

	data, err := p.call(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.New("elevenlabs: empty audio reply")
	}
	return p.clip(data), nil
}

// clip labels raw reply bytes according to the output format.
func (p *Provider) clip(data []byte) *audio.Clip {
	if rate, ok := strings.CutPrefix(p.format, "pcm_"); ok {
		sr, _ := strconv.Atoi(rate)
		return &audio.Clip{Data: data, ContentType: audio.ContentTypePCM, SampleRate: sr, Channels: 1}
	}
	return &audio.Clip{Data: data, ContentType: audio.ContentTypeMP3}
}

// ListVoices returns the voices available to the API key.
func (p *Provider) ListVoices(ctx context.Context) ([]tts.Voice, error) {
	data, err := p.call(ctx, http.MethodGet, p.base+"/v1/voices", nil)
	if err != nil {
		return nil, err
	}
	var reply struct {
		Voices []struct {
			VoiceID  string            `json:"voice_id"`
			Name     string            `json:"name"`
			Category string            `json:"category"`
			Labels   map[string]string `json:"labels"`
		} `json:"voices"`
	}
	if err := json.Unmarshal(data, &reply); err != nil {
		return nil, fmt.Errorf("elevenlabs: decode voices: %w", err)
	}

	voices := make([]tts.Voice, 0, len(reply.Voices))
	for _, v := range reply.Voices {
		meta := maps.Clone(v.Labels)
		if v.Category != "" {
			if meta == nil {
				meta = make(map[string]string, 1)
			}
			meta["category"] = v.Category
		}
		voices = append(voices, tts.Voice{ID: v.VoiceID, Name: v.Name, Provider: "elevenlabs", Metadata: meta})
	}
	return voices, nil
}

// call performs one authenticated request and returns the reply body. Non
// 200 replies become errors carrying the API's message.
func (p *Provider) call(ctx context.Context, method, endpoint string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: build request: %w", err)
	}
	req.Header.Set("xi-api-key", p.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: %s %s: %w", method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxClipBytes))
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: read reply: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Detail.Message != "" {
			return nil, fmt.Errorf("elevenlabs: %s %s: status %d: %s: %s", method, req.URL.Path, resp.StatusCode, apiErr.Detail.Status, apiErr.Detail.Message)
		}
		return nil, fmt.Errorf("elevenlabs: %s %s: status %d", method, req.URL.Path, resp.StatusCode)
	}
	return data, nil
}
