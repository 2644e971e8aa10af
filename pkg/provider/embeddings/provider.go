// Package embeddings defines the Provider interface for text embedding
// backends. Generated interview questions are embedded so near-duplicates of
// the question bank can be rejected, and the vector is stored with the
// question for later similarity searches.
//
// Implementations must be safe for concurrent use.
package embeddings

import "context"

// Provider maps text to a dense vector.
type Provider interface {
	// Embed returns the vector for text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions is the length of every vector Embed returns, or 0 when the
	// model is unknown. The postgres store's vector column must match it.
	Dimensions() int
}
