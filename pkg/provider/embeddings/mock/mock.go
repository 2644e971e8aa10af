// Package mock provides a test double for [embeddings.Provider].
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/echocoach/pkg/provider/embeddings"
)

var _ embeddings.Provider = (*Provider)(nil)

// Provider returns canned vectors and records the texts it was asked to
// embed. EmbedFunc, when set, takes precedence over EmbedResult.
type Provider struct {
	mu sync.Mutex

	EmbedFunc       func(text string) ([]float32, error)
	EmbedResult     []float32
	EmbedErr        error
	DimensionsValue int

	texts []string
}

// Embed records text and returns the configured result.
func (p *Provider) Embed(_ context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	p.texts = append(p.texts, text)
	fn, res, err := p.EmbedFunc, p.EmbedResult, p.EmbedErr
	p.mu.Unlock()

	if fn != nil {
		return fn(text)
	}
	return res, err
}

// Dimensions returns DimensionsValue.
func (p *Provider) Dimensions() int { return p.DimensionsValue }

// Texts returns every text passed to Embed, in call order.
func (p *Provider) Texts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.texts))
	copy(out, p.texts)
	return out
}
