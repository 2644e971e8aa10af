package anyllm

import (
	"strings"
	"testing"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/echocoach/pkg/provider/llm"
)

func TestCompletionParams(t *testing.T) {
	t.Parallel()
	p := &Provider{model: "claude-3-5-haiku-latest"}
	params := p.completionParams(llm.CompletionRequest{
		SystemPrompt: "You are an interviewer.",
		Messages:     llm.UserPrompt("Ask a question."),
		Temperature:  0.8,
		MaxTokens:    150,
	})

	if params.Model != "claude-3-5-haiku-latest" {
		t.Errorf("model: got %q", params.Model)
	}
	if len(params.Messages) != 2 {
		t.Fatalf("messages: got %d, want 2", len(params.Messages))
	}
	if m := params.Messages[0]; m.Role != anyllmlib.RoleSystem || m.ContentString() != "You are an interviewer." {
		t.Errorf("system message: got %+v", m)
	}
	if m := params.Messages[1]; m.Role != llm.RoleUser || m.ContentString() != "Ask a question." {
		t.Errorf("user message: got %+v", m)
	}
	if params.Temperature == nil || *params.Temperature != 0.8 {
		t.Errorf("temperature: got %v, want 0.8", params.Temperature)
	}
	if params.MaxTokens == nil || *params.MaxTokens != 150 {
		t.Errorf("max tokens: got %v, want 150", params.MaxTokens)
	}
}

func TestCompletionParams_Defaults(t *testing.T) {
	t.Parallel()
	p := &Provider{model: "llama3"}
	params := p.completionParams(llm.CompletionRequest{Messages: llm.UserPrompt("hi")})
	if len(params.Messages) != 1 {
		t.Errorf("messages: got %d, want 1", len(params.Messages))
	}
	if params.Temperature != nil || params.MaxTokens != nil {
		t.Errorf("got temperature %v, max tokens %v; want both unset", params.Temperature, params.MaxTokens)
	}
}

func TestCompletionParams_JSONMode(t *testing.T) {
	t.Parallel()
	p := &Provider{model: "gemini-2.0-flash"}

	tests := []struct {
		name   string
		system string
		want   func(string) bool
	}{
		{
			name:   "appended to system prompt",
			system: "Evaluate the answer.",
			want: func(s string) bool {
				return strings.HasPrefix(s, "Evaluate the answer.") && strings.HasSuffix(s, jsonInstruction)
			},
		},
		{
			name: "no system prompt",
			want: func(s string) bool { return s == jsonInstruction },
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			params := p.completionParams(llm.CompletionRequest{
				SystemPrompt: tc.system,
				Messages:     llm.UserPrompt("..."),
				JSONMode:     true,
			})
			if got := params.Messages[0].ContentString(); !tc.want(got) {
				t.Errorf("system prompt: got %q", got)
			}
		})
	}
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()
	if _, err := New("openai", ""); err == nil {
		t.Error("expected error for empty model")
	}
	if _, err := New("fakecloud", "some-model", anyllmlib.WithAPIKey("dummy")); err == nil {
		t.Error("expected error for unsupported backend")
	}
}

func TestNew_Backends(t *testing.T) {
	tests := []struct {
		backend string
		opts    []anyllmlib.Option
	}{
		{"anthropic", []anyllmlib.Option{anyllmlib.WithAPIKey("sk-ant-test")}},
		{"OpenAI", []anyllmlib.Option{anyllmlib.WithAPIKey("sk-test")}},
		{"ollama", nil},
		{"llamacpp", nil},
	}
	for _, tc := range tests {
		t.Run(tc.backend, func(t *testing.T) {
			p, err := New(tc.backend, "model-x", tc.opts...)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if p.Model() != "model-x" {
				t.Errorf("Model: got %q, want model-x", p.Model())
			}
		})
	}
}

func TestNew_MissingAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := New("openai", "gpt-4o-mini"); err == nil {
		t.Fatal("expected error for missing API key")
	}
}
