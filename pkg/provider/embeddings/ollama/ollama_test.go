package ollama_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MrWong99/echocoach/pkg/provider/embeddings/ollama"
)

// embedServer fakes /api/embed. It answers with one vector per input, or
// with status when that is not 200.
func embedServer(t *testing.T, status int) (*httptest.Server, *[]string) {
	t.Helper()
	var inputs []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"bad request"}`, http.StatusBadRequest)
			return
		}
		inputs = append(inputs, req.Input...)
		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":"model not loaded"}`))
			return
		}
		vecs := make([][]float32, len(req.Input))
		for i := range vecs {
			vecs[i] = []float32{0.5, 1}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"model": req.Model, "embeddings": vecs})
	}))
	t.Cleanup(srv.Close)
	return srv, &inputs
}

func TestNew_Dimensions(t *testing.T) {
	t.Parallel()
	if _, err := ollama.New("", ""); err == nil {
		t.Error("expected error for empty model")
	}

	tests := []struct {
		model string
		opts  []ollama.Option
		want  int
	}{
		{"nomic-embed-text", nil, 768},
		{"mxbai-embed-large:latest", nil, 1024},
		{"all-minilm:l6-v2", nil, 384},
		{"custom", nil, 0},
		{"custom", []ollama.Option{ollama.WithDimensions(512)}, 512},
	}
	for _, tc := range tests {
		p, err := ollama.New("", tc.model, tc.opts...)
		if err != nil {
			t.Fatalf("New(%q): %v", tc.model, err)
		}
		if got := p.Dimensions(); got != tc.want {
			t.Errorf("%s: dimensions got %d, want %d", tc.model, got, tc.want)
		}
	}
}

func TestEmbed(t *testing.T) {
	t.Parallel()
	srv, inputs := embedServer(t, http.StatusOK)

	p, err := ollama.New(srv.URL+"/", "nomic-embed-text", ollama.WithTimeout(0))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	vec, err := p.Embed(context.Background(), "Why this company?")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 2 || vec[0] != 0.5 {
		t.Errorf("vector: got %v", vec)
	}
	if len(*inputs) != 1 || (*inputs)[0] != "Why this company?" {
		t.Errorf("inputs: got %v", *inputs)
	}
}

func TestEmbed_ServerError(t *testing.T) {
	t.Parallel()
	srv, _ := embedServer(t, http.StatusInternalServerError)

	p, err := ollama.New(srv.URL, "nomic-embed-text")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.Embed(context.Background(), "x"); err == nil {
		t.Fatal("expected error")
	}
}
