package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNew(t *testing.T) {
	t.Parallel()
	if _, err := New("", ""); err == nil {
		t.Error("expected error for empty api key")
	}

	tests := []struct {
		model     string
		wantModel string
		wantDims  int
	}{
		{"", DefaultModel, 1536},
		{"text-embedding-3-large", "text-embedding-3-large", 3072},
		{"text-embedding-ada-002", "text-embedding-ada-002", 1536},
	}
	for _, tc := range tests {
		p, err := New("sk-test", tc.model)
		if err != nil {
			t.Fatalf("New(%q): %v", tc.model, err)
		}
		if p.Model() != tc.wantModel || p.Dimensions() != tc.wantDims {
			t.Errorf("%q: got %s/%d, want %s/%d", tc.model, p.Model(), p.Dimensions(), tc.wantModel, tc.wantDims)
		}
	}
}

func TestEmbed(t *testing.T) {
	t.Parallel()

	var got struct {
		Model      string `json:"model"`
		Input      any    `json:"input"`
		Dimensions int    `json:"dimensions"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  "text-embedding-3-small",
			"data":   []map[string]any{{"object": "embedding", "index": 0, "embedding": []float64{0.25, 0.5}}},
			"usage":  map[string]int{"prompt_tokens": 1, "total_tokens": 1},
		})
	}))
	defer srv.Close()

	p, err := New("sk-test", "", WithBaseURL(srv.URL), WithDimensions(2))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	vec, err := p.Embed(context.Background(), "Describe a hard bug you fixed.")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 2 || vec[0] != 0.25 || vec[1] != 0.5 {
		t.Errorf("vector: got %v, want [0.25 0.5]", vec)
	}
	if got.Input != "Describe a hard bug you fixed." || got.Model != DefaultModel || got.Dimensions != 2 {
		t.Errorf("request: got %+v", got)
	}
}

func TestEmbed_Error(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"bad key"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	p, _ := New("sk-test", "", WithBaseURL(srv.URL))
	if _, err := p.Embed(context.Background(), "x"); err == nil {
		t.Fatal("expected error for 401 response")
	}
}

func TestNew_Dimensions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		model   string
		dims    int
		want    int
		wantErr bool
	}{
		{name: "native size", model: "text-embedding-3-large", dims: 3072, want: 3072},
		{name: "shortened", model: "text-embedding-3-large", dims: 768, want: 768},
		{name: "larger than native", model: "text-embedding-3-small", dims: 4096, wantErr: true},
		{name: "ada cannot shorten", model: "text-embedding-ada-002", dims: 512, wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			p, err := New("sk-test", tc.model, WithDimensions(tc.dims))
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if p.Dimensions() != tc.want {
				t.Errorf("dimensions: got %d, want %d", p.Dimensions(), tc.want)
			}
		})
	}
}

func TestEmbed_WrongLength(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","model":"text-embedding-3-small","data":[{"object":"embedding","index":0,"embedding":[0.1,0.2,0.3]}]}`))
	}))
	defer srv.Close()

	p, _ := New("sk-test", "", WithBaseURL(srv.URL))
	if _, err := p.Embed(context.Background(), "x"); err == nil {
		t.Fatal("expected error for a 3-dimensional vector from a 1536-dimensional model")
	}
	if _, err := p.Embed(context.Background(), "  "); err == nil {
		t.Fatal("expected error for empty input")
	}
}
