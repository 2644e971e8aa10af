// Package mock provides a scripted llm.Provider for tests.
//
//	p := &mock.Provider{Replies: []string{"Tell me about a conflict.", `{"clarity_score":80}`}}
package mock

import (
	"context"
	"slices"
	"sync"

	"github.com/MrWong99/echocoach/pkg/provider/llm"
)

var _ llm.Provider = (*Provider)(nil)

// CompleteCall records one Complete invocation.
type CompleteCall struct {
	Ctx context.Context
	Req llm.CompletionRequest
}

// Provider is a mock llm.Provider. Configure the exported fields before the
// first call. Complete answers from the first source that is set, in this
// order: CompleteFunc, CompleteErr, Replies, CompleteResponse. The zero value
// answers (nil, nil).
type Provider struct {
	CompleteFunc     func(req llm.CompletionRequest) (*llm.CompletionResponse, error)
	CompleteErr      error
	CompleteResponse *llm.CompletionResponse

	// Replies are handed out one per call. Once used up, Complete falls
	// back to CompleteResponse.
	Replies []string

	// ModelName is returned by Model. Defaults to "mock".
	ModelName string

	mu    sync.Mutex
	calls []CompleteCall
	next  int
}

// Complete records the call and returns the scripted result.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	p.calls = append(p.calls, CompleteCall{Ctx: ctx, Req: req})
	var reply *llm.CompletionResponse
	if p.next < len(p.Replies) {
		reply = &llm.CompletionResponse{Content: p.Replies[p.next]}
		p.next++
	}
	p.mu.Unlock()

	switch {
	case p.CompleteFunc != nil:
		return p.CompleteFunc(req)
	case p.CompleteErr != nil:
		return nil, p.CompleteErr
	case reply != nil:
		return reply, nil
	default:
		return p.CompleteResponse, nil
	}
}

// Model returns ModelName.
func (p *Provider) Model() string {
	if p.ModelName == "" {
		return "mock"
	}
	return p.ModelName
}

// Calls returns a copy of the recorded Complete calls.
func (p *Provider) Calls() []CompleteCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.calls)
}

// Reset forgets recorded calls and rewinds Replies.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls, p.next = nil, 0
}
