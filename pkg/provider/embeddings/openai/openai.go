// Package openai provides an embeddings provider backed by the OpenAI API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	"github.com/MrWong99/echocoach/pkg/provider/embeddings"
)

// DefaultModel is used when New receives an empty model.
const DefaultModel = oai.EmbeddingModelTextEmbedding3Small

// nativeDims are the full vector lengths of the published models. Unknown
// models are assumed to be ada-sized.
var nativeDims = map[string]int{
	oai.EmbeddingModelTextEmbedding3Small: 1536,
	oai.EmbeddingModelTextEmbedding3Large: 3072,
	oai.EmbeddingModelTextEmbeddingAda002: 1536,
}

var _ embeddings.Provider = (*Provider)(nil)

// Provider implements embeddings.Provider using the OpenAI API.
type Provider struct {
	client oai.Client
	model  string
	dims   int

	// shorten is set when dims was requested below the native size.
	shorten bool
}

type settings struct {
	baseURL string
	timeout time.Duration
	dims    int
}

// Option configures a Provider.
type Option func(*settings)

// WithBaseURL points the client at an OpenAI-compatible server.
func WithBaseURL(url string) Option { return func(s *settings) { s.baseURL = url } }

// WithTimeout bounds every HTTP request.
func WithTimeout(d time.Duration) Option { return func(s *settings) { s.timeout = d } }

// WithDimensions asks a text-embedding-3 model for shorter vectors, so one
// model can fill an existing pgvector column of that size.
func WithDimensions(n int) Option { return func(s *settings) { s.dims = n } }

// New returns a provider for model (DefaultModel when empty).
func New(apiKey, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("openai embeddings: api key is required")
	}
	if model == "" {
		model = DefaultModel
	}
	var s settings
	for _, o := range opts {
		o(&s)
	}

	p := &Provider{model: model, dims: 1536}
	if n, ok := nativeDims[model]; ok {
		p.dims = n
	}
	if s.dims > 0 && s.dims != p.dims {
		if !strings.HasPrefix(model, "text-embedding-3") {
			return nil, fmt.Errorf("openai embeddings: %s cannot shorten vectors to %d dimensions", model, s.dims)
		}
		if s.dims > p.dims {
			return nil, fmt.Errorf("openai embeddings: %s produces at most %d dimensions, asked for %d", model, p.dims, s.dims)
		}
		p.dims, p.shorten = s.dims, true
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(1)}
	if s.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(s.baseURL))
	}
	if s.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{Timeout: s.timeout}))
	}
	p.client = oai.NewClient(reqOpts...)
	return p, nil
}

// Model returns the embedding model name.
func (p *Provider) Model() string { return p.model }

// Dimensions implements embeddings.Provider.
func (p *Provider) Dimensions() int { return p.dims }

// Embed implements embeddings.Provider.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("openai embeddings: empty input")
	}
	params := oai.EmbeddingNewParams{
		Model: p.model,
		Input: oai.EmbeddingNewParamsInputUnion{OfString: param.NewOpt(text)},
	}
	if p.shorten {
		params.Dimensions = param.NewOpt(int64(p.dims))
	}
	resp, err := p.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %s: %w", p.model, err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("openai embeddings: %s returned no vectors", p.model)
	}

	vec := make([]float32, 0, len(resp.Data[0].Embedding))
	for _, v := range resp.Data[0].Embedding {
		vec = append(vec, float32(v))
	}
	if len(vec) != p.dims {
		return nil, fmt.Errorf("openai embeddings: %s returned %d dimensions, want %d", p.model, len(vec), p.dims)
	}
	return vec, nil
}
