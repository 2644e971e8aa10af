// Package ollama provides an embeddings provider backed by a local Ollama
// server, using Ollama's own Go client.
//
//	p, err := ollama.New("", "nomic-embed-text")
//	vec, err := p.Embed(ctx, "Tell me about a time you disagreed with a manager.")
package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/MrWong99/echocoach/pkg/provider/embeddings"
)

// DefaultBaseURL is the address of a locally running Ollama instance.
const DefaultBaseURL = "http://localhost:11434"

// modelDimensions lists the vector sizes of common Ollama embedding models,
// keyed by model family.
var modelDimensions = map[string]int{
	"nomic-embed-text":  768,
	"mxbai-embed-large": 1024,
	"all-minilm":        384,
	"bge-m3":            1024,
}

var _ embeddings.Provider = (*Provider)(nil)

// Provider implements embeddings.Provider using an Ollama server.
type Provider struct {
	client *api.Client
	http   *http.Client
	model  string
	dims   int
}

// Option configures a Provider.
type Option func(*Provider)

// WithTimeout bounds every request.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) { p.http.Timeout = d }
}

// WithDimensions sets the vector length for models missing from the
// built-in table.
func WithDimensions(dims int) Option {
	return func(p *Provider) { p.dims = dims }
}

// New returns a provider for model on the server at baseURL (DefaultBaseURL
// when empty).
func New(baseURL, model string, opts ...Option) (*Provider, error) {
	if model == "" {
		return nil, errors.New("ollama embeddings: model is required")
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("ollama embeddings: parse base url: %w", err)
	}

	family, _, _ := strings.Cut(strings.ToLower(model), ":")
	p := &Provider{http: &http.Client{}, model: model, dims: modelDimensions[family]}
	for _, o := range opts {
		o(p)
	}
	p.client = api.NewClient(base, p.http)
	return p, nil
}

// Dimensions implements embeddings.Provider. Unknown models report 0 unless
// WithDimensions was given.
func (p *Provider) Dimensions() int { return p.dims }

// Embed implements embeddings.Provider.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := p.client.Embed(ctx, &api.EmbedRequest{Model: p.model, Input: []string{text}})
	if err != nil {
		return nil, fmt.Errorf("ollama embeddings: %w", err)
	}
	if len(resp.Embeddings) == 0 {
		return nil, errors.New("ollama embeddings: response has no vectors")
	}
	return resp.Embeddings[0], nil
}
