// Package llm defines the Provider interface for Large Language Model backends.
//
// The coach only ever needs one-shot completions: a question, a model
// answer, a tailored question/answer pair or a JSON evaluation. There is no
// streaming or tool-calling surface.
//
// Implementors must be safe for concurrent use.
package llm

import (
	"context"
	"errors"
)

// CompletionRequest carries one prompt. Messages must be non-empty.
type CompletionRequest struct {
	// SystemPrompt is sent ahead of Messages with the system role.
	SystemPrompt string

	Messages []Message

	// Temperature in [0, 2]. Zero keeps the backend default.
	Temperature float64

	// MaxTokens caps the reply. Zero keeps the backend default.
	MaxTokens int

	// JSONMode asks for a single JSON object. Backends without a native
	// switch append an instruction to the system prompt instead, so callers
	// must validate the reply either way.
	JSONMode bool
}

// CompletionResponse is the reply to a CompletionRequest.
type CompletionResponse struct {
	Content string
	Usage   Usage
}

// Provider is the abstraction over any LLM backend.
type Provider interface {
	// Complete sends req and waits for the whole reply.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Model names the model completions are requested from. Used in logs.
	Model() string
}

// FinishLength is the finish reason OpenAI-style APIs report when a reply
// ran into MaxTokens.
const FinishLength = "length"

// ErrTruncated is returned for a JSON-mode reply that was cut off at the
// token limit. Half an object cannot be parsed, so the call fails instead.
var ErrTruncated = errors.New("llm: JSON reply truncated at the token limit")

// CheckFinish maps a backend finish reason to ErrTruncated for JSON-mode
// requests. Truncated prose is still usable and passes.
func CheckFinish(req CompletionRequest, reason string) error {
	if req.JSONMode && reason == FinishLength {
		return ErrTruncated
	}
	return nil
}
