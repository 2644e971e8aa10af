// Package mock provides a scripted stt.Provider for tests.
//
//	p := &mock.Provider{Result: &stt.Transcript{Text: "I led the team."}}
package mock

import (
	"context"
	"slices"
	"sync"

	"github.com/MrWong99/echocoach/pkg/audio"
	"github.com/MrWong99/echocoach/pkg/provider/stt"
)

var _ stt.Provider = (*Provider)(nil)

// TranscribeCall records one Transcribe invocation.
type TranscribeCall struct {
	Ctx  context.Context
	Clip audio.Clip
	Opts stt.Options
}

// Provider is a mock stt.Provider. Err wins over Result; with neither set
// Transcribe returns an empty transcript.
type Provider struct {
	Result *stt.Transcript
	Err    error

	mu    sync.Mutex
	calls []TranscribeCall
}

// Transcribe records the call and returns a copy of Result.
func (p *Provider) Transcribe(ctx context.Context, clip audio.Clip, opts stt.Options) (*stt.Transcript, error) {
	p.mu.Lock()
	p.calls = append(p.calls, TranscribeCall{Ctx: ctx, Clip: clip, Opts: opts})
	p.mu.Unlock()

	if p.Err != nil {
		return nil, p.Err
	}
	var t stt.Transcript
	if p.Result != nil {
		t = *p.Result
	}
	return &t, nil
}

// Calls returns a copy of the recorded Transcribe calls.
func (p *Provider) Calls() []TranscribeCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.calls)
}

// CallCount is len(Calls()).
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

// Reset forgets all recorded calls.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = nil
}
