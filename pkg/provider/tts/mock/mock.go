// Package mock provides a scripted tts.Provider for tests.
//
//	p := &mock.Provider{ListVoicesResult: []tts.Voice{{ID: "alloy", Name: "Alloy"}}}
//	clip, _ := p.Synthesize(ctx, "Hello", voice) // MP3-typed clip holding "Hello"
package mock

import (
	"context"
	"slices"
	"sync"

	"github.com/MrWong99/echocoach/pkg/audio"
	"github.com/MrWong99/echocoach/pkg/provider/tts"
)

var _ tts.Provider = (*Provider)(nil)

// SynthesizeCall records one Synthesize invocation.
type SynthesizeCall struct {
	Ctx   context.Context
	Text  string
	Voice tts.Voice
}

// Provider is a mock tts.Provider. Configure the exported fields before the
// first call.
type Provider struct {
	// SynthesizeFunc, when set, answers every Synthesize call.
	SynthesizeFunc func(text string) (*audio.Clip, error)
	SynthesizeErr  error

	// Clip is copied into every reply. When nil the reply is an MP3-typed
	// clip whose payload is the input text.
	Clip *audio.Clip

	ListVoicesResult []tts.Voice
	ListVoicesErr    error

	mu     sync.Mutex
	calls  []SynthesizeCall
	listed int
}

// Synthesize records the call and returns the scripted clip.
func (p *Provider) Synthesize(ctx context.Context, text string, voice tts.Voice) (*audio.Clip, error) {
	p.mu.Lock()
	p.calls = append(p.calls, SynthesizeCall{Ctx: ctx, Text: text, Voice: voice})
	p.mu.Unlock()

	switch {
	case p.SynthesizeFunc != nil:
		return p.SynthesizeFunc(text)
	case p.SynthesizeErr != nil:
		return nil, p.SynthesizeErr
	case p.Clip != nil:
		c := *p.Clip
		return &c, nil
	default:
		return &audio.Clip{Data: []byte(text), ContentType: audio.ContentTypeMP3}, nil
	}
}

// ListVoices returns ListVoicesResult and ListVoicesErr.
func (p *Provider) ListVoices(context.Context) ([]tts.Voice, error) {
	p.mu.Lock()
	p.listed++
	p.mu.Unlock()
	return p.ListVoicesResult, p.ListVoicesErr
}

// Calls returns a copy of the recorded Synthesize calls.
func (p *Provider) Calls() []SynthesizeCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.calls)
}

// Texts returns the text of every Synthesize call in order.
func (p *Provider) Texts() []string {
	var out []string
	for _, c := range p.Calls() {
		out = append(out, c.Text)
	}
	return out
}

// ListVoicesCount reports how often ListVoices was called.
func (p *Provider) ListVoicesCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.listed
}

// Reset forgets all recorded calls.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls, p.listed = nil, 0
}
