package api_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"

	"github.com/MrWong99/echocoach/internal/api"
	"github.com/MrWong99/echocoach/internal/auth"
	"github.com/MrWong99/echocoach/internal/interview"
	"github.com/MrWong99/echocoach/pkg/provider/llm"
	llmmock "github.com/MrWong99/echocoach/pkg/provider/llm/mock"
	"github.com/MrWong99/echocoach/pkg/provider/stt"
	sttmock "github.com/MrWong99/echocoach/pkg/provider/stt/mock"
	"github.com/MrWong99/echocoach/pkg/provider/tts"
	ttsmock "github.com/MrWong99/echocoach/pkg/provider/tts/mock"
	"github.com/MrWong99/echocoach/pkg/store"
	"github.com/MrWong99/echocoach/pkg/store/memstore"
)

const testSecret = "api-test-secret"

// ── helpers ──────────────────────────────────────────────────────────────────

type fixture struct {
	srv   *httptest.Server
	store *memstore.Store
	llm   *llmmock.Provider
	tts   *ttsmock.Provider
	stt   *sttmock.Provider
}

func newFixture(t *testing.T, opts ...api.Option) *fixture {
	t.Helper()
	f := &fixture{
		store: memstore.New(),
		llm:   &llmmock.Provider{},
		tts:   &ttsmock.Provider{},
		stt:   &sttmock.Provider{},
	}
	svc := interview.New(f.store, f.llm, f.tts, f.stt, interview.WithRand(func(int) int { return 0 }))
	server := api.New(svc, nil, auth.NewVerifier(auth.Config{Secret: testSecret}), opts...)
	f.srv = httptest.NewServer(server.Handler())
	t.Cleanup(f.srv.Close)
	return f
}

func token(t *testing.T, userID string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": userID}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

// call sends a JSON request as userID (no token when empty) and decodes the
// JSON reply into a map.
func (f *fixture) call(t *testing.T, method, path, userID string, body any) (int, map[string]any) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, rd)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+token(t, userID))
	}
	return do(t, req)
}

func do(t *testing.T, req *http.Request) (int, map[string]any) {
	t.Helper()
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("%s %s: decode: %v", req.Method, req.URL.Path, err)
	}
	return resp.StatusCode, out
}

func field(t *testing.T, m map[string]any, path ...string) any {
	t.Helper()
	var cur any = m
	for _, p := range path {
		obj, ok := cur.(map[string]any)
		if !ok {
			t.Fatalf("field %v: %q is not an object in %v", path, p, m)
		}
		cur = obj[p]
	}
	return cur
}

func createSession(t *testing.T, f *fixture, userID string) string {
	t.Helper()
	code, body := f.call(t, "POST", "/v1/sessions", userID, map[string]string{"session_type": "technical"})
	if code != http.StatusCreated {
		t.Fatalf("create session: got %d, want 201 (%v)", code, body)
	}
	return field(t, body, "session", "id").(string)
}

// ── auth ─────────────────────────────────────────────────────────────────────

func TestAPI_RequiresToken(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	code, body := f.call(t, "GET", "/v1/sessions/history", "", nil)
	if code != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want 401", code)
	}
	if body["error"] != "unauthorized" {
		t.Errorf("error: got %v, want unauthorized", body["error"])
	}

	req, _ := http.NewRequest("GET", f.srv.URL+"/v1/sessions/history", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	if code, _ := do(t, req); code != http.StatusUnauthorized {
		t.Errorf("bad token: got %d, want 401", code)
	}
}

// ── sessions ─────────────────────────────────────────────────────────────────

func TestAPI_SessionLifecycle(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	id := createSession(t, f, "alice")

	code, body := f.call(t, "GET", "/v1/sessions/"+id, "alice", nil)
	if code != http.StatusOK {
		t.Fatalf("get: got %d, want 200", code)
	}
	if got := field(t, body, "session", "session_type"); got != "technical" {
		t.Errorf("session_type: got %v, want technical", got)
	}
	if got := field(t, body, "session", "difficulty_level"); got != "medium" {
		t.Errorf("difficulty_level: got %v, want medium", got)
	}

	if code, body := f.call(t, "GET", "/v1/sessions/"+id, "mallory", nil); code != http.StatusNotFound {
		t.Errorf("foreign session: got %d, want 404 (%v)", code, body)
	}

	code, body = f.call(t, "PUT", "/v1/sessions/"+id, "alice", map[string]string{"status": "paused"})
	if code != http.StatusOK || field(t, body, "session", "status") != "paused" {
		t.Errorf("pause: got %d %v", code, body)
	}
	if code, _ := f.call(t, "PUT", "/v1/sessions/"+id, "alice", map[string]string{"status": "sleeping"}); code != http.StatusBadRequest {
		t.Errorf("invalid status: got %d, want 400", code)
	}

	code, body = f.call(t, "POST", "/v1/sessions/"+id+"/complete", "alice", nil)
	if code != http.StatusOK {
		t.Fatalf("complete: got %d (%v)", code, body)
	}
	if field(t, body, "session", "status") != "completed" {
		t.Errorf("status: got %v, want completed", field(t, body, "session", "status"))
	}
	if field(t, body, "session", "completed_at") == nil {
		t.Error("completed_at not set")
	}

	code, body = f.call(t, "GET", "/v1/sessions/history", "alice", nil)
	if code != http.StatusOK {
		t.Fatalf("history: got %d", code)
	}
	if n := len(body["sessions"].([]any)); n != 1 {
		t.Errorf("history: got %d sessions, want 1", n)
	}
	_, body = f.call(t, "GET", "/v1/sessions/history", "bob", nil)
	if n := len(body["sessions"].([]any)); n != 0 {
		t.Errorf("bob history: got %d sessions, want 0", n)
	}
}

func TestAPI_CreateSessionValidation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	code, body := f.call(t, "POST", "/v1/sessions", "alice", map[string]string{"difficulty_level": "impossible"})
	if code != http.StatusBadRequest || body["error"] != "invalid_request" {
		t.Errorf("got %d %v, want 400 invalid_request", code, body)
	}

	req, _ := http.NewRequest("POST", f.srv.URL+"/v1/sessions", strings.NewReader("{not json"))
	req.Header.Set("Authorization", "Bearer "+token(t, "alice"))
	if code, _ := do(t, req); code != http.StatusBadRequest {
		t.Errorf("malformed body: got %d, want 400", code)
	}
}

func TestAPI_SessionResponsesScopedToOwner(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	id := createSession(t, f, "alice")

	code, body := f.call(t, "GET", "/v1/sessions/"+id+"/responses", "alice", nil)
	if code != http.StatusOK {
		t.Fatalf("got %d, want 200", code)
	}
	if n := len(body["responses"].([]any)); n != 0 {
		t.Errorf("responses: got %d, want 0", n)
	}
	if code, _ := f.call(t, "GET", "/v1/sessions/"+id+"/responses", "bob", nil); code != http.StatusNotFound {
		t.Errorf("foreign responses: got %d, want 404", code)
	}
}

// ── questions ────────────────────────────────────────────────────────────────

func TestAPI_Questions(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	seeded := store.Question{Text: "Explain a hash map.", Category: store.CategoryTechnical, Difficulty: store.DifficultyEasy}
	if err := f.store.Seed(context.Background(), seeded); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	code, body := f.call(t, "POST", "/v1/questions/next", "alice", map[string]string{"category": "technical", "difficulty": "easy"})
	if code != http.StatusOK {
		t.Fatalf("next: got %d (%v)", code, body)
	}
	if got := field(t, body, "question", "question_text"); got != "Explain a hash map." {
		t.Errorf("question: got %v", got)
	}
	id := field(t, body, "question", "id").(string)

	if code, body := f.call(t, "GET", "/v1/questions/"+id, "alice", nil); code != http.StatusOK || field(t, body, "question", "id") != id {
		t.Errorf("get question: got %d %v", code, body)
	}
	if code, _ := f.call(t, "GET", "/v1/questions/missing", "alice", nil); code != http.StatusNotFound {
		t.Errorf("missing question: got %d, want 404", code)
	}
	if code, _ := f.call(t, "POST", "/v1/questions/next", "alice", map[string]string{"category": "astrology"}); code != http.StatusBadRequest {
		t.Errorf("bad category: got %d, want 400", code)
	}
	if code, _ := f.call(t, "POST", "/v1/questions/next", "alice", map[string]string{"session_id": "not-mine"}); code != http.StatusNotFound {
		t.Errorf("foreign session: got %d, want 404", code)
	}
}

func TestAPI_ModelAnswer(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.llm.CompleteResponse = &llm.CompletionResponse{Content: "I led a migration that cut costs by half."}

	code, body := f.call(t, "POST", "/v1/questions/model-answer", "alice", map[string]string{"question_text": "Tell me about a success."})
	if code != http.StatusOK {
		t.Fatalf("got %d (%v)", code, body)
	}
	if body["model_answer"] != "I led a migration that cut costs by half." {
		t.Errorf("model_answer: got %v", body["model_answer"])
	}

	code, body = f.call(t, "POST", "/v1/questions/model-answer", "alice", map[string]string{})
	if code != http.StatusBadRequest || !strings.Contains(body["message"].(string), "question_text") {
		t.Errorf("missing text: got %d %v", code, body)
	}
}

func TestAPI_CustomQA(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.llm.CompleteResponse = &llm.CompletionResponse{Content: `{"question": "How would you scale our API?", "answer": "I would add caching first."}`}

	code, body := f.call(t, "POST", "/v1/questions/custom-qa", "alice", map[string]string{"job_description": "Backend engineer, Go"})
	if code != http.StatusOK {
		t.Fatalf("got %d (%v)", code, body)
	}
	if got := field(t, body, "question", "category"); got != "custom" {
		t.Errorf("category: got %v, want custom", got)
	}
	if body["model_answer"] != "I would add caching first." {
		t.Errorf("model_answer: got %v", body["model_answer"])
	}

	if code, _ := f.call(t, "POST", "/v1/questions/custom-qa", "alice", map[string]string{"job_description": "  "}); code != http.StatusBadRequest {
		t.Errorf("blank job description: got %d, want 400", code)
	}
}

// ── speech ───────────────────────────────────────────────────────────────────

func TestAPI_Synthesize(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	code, body := f.call(t, "POST", "/v1/tts/synthesize", "alice", map[string]string{"text": "Hello there"})
	if code != http.StatusOK {
		t.Fatalf("got %d (%v)", code, body)
	}
	if body["format"] != "mp3" {
		t.Errorf("format: got %v, want mp3", body["format"])
	}
	raw, err := base64.StdEncoding.DecodeString(body["audio"].(string))
	if err != nil || string(raw) != "Hello there" {
		t.Errorf("audio: got %q, %v", raw, err)
	}

	if code, _ := f.call(t, "POST", "/v1/tts/synthesize", "alice", map[string]string{"text": " "}); code != http.StatusBadRequest {
		t.Errorf("blank text: got %d, want 400", code)
	}
}

func TestAPI_Voices(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.tts.ListVoicesResult = []tts.Voice{{ID: "v1", Name: "Rachel"}}

	code, body := f.call(t, "GET", "/v1/tts/voices", "alice", nil)
	if code != http.StatusOK {
		t.Fatalf("got %d", code)
	}
	voices := body["voices"].([]any)
	if len(voices) != 1 || voices[0].(map[string]any)["name"] != "Rachel" {
		t.Errorf("voices: got %v", voices)
	}
}

func upload(t *testing.T, f *fixture, field string, data []byte) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, "answer.webm")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	_, _ = fw.Write(data)
	_ = mw.Close()

	req, _ := http.NewRequest("POST", f.srv.URL+"/v1/stt/transcribe", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token(t, "alice"))
	return do(t, req)
}

func TestAPI_Transcribe(t *testing.T) {
	t.Parallel()
	f := newFixture(t, api.WithMaxUploadBytes(1024))
	f.stt.Result = &stt.Transcript{Text: "  I enjoy solving problems. "}

	code, body := upload(t, f, "audio", bytes.Repeat([]byte{1}, 200))
	if code != http.StatusOK {
		t.Fatalf("got %d (%v)", code, body)
	}
	if body["transcript"] != "I enjoy solving problems." || body["success"] != true {
		t.Errorf("body: got %v", body)
	}

	if code, _ := upload(t, f, "file", []byte{1, 2}); code != http.StatusBadRequest {
		t.Errorf("wrong field: got %d, want 400", code)
	}
	if code, body := upload(t, f, "audio", bytes.Repeat([]byte{1}, 4096)); code != http.StatusRequestEntityTooLarge {
		t.Errorf("oversized: got %d, want 413 (%v)", code, body)
	}
}

// ── evaluate ─────────────────────────────────────────────────────────────────

func TestAPI_Evaluate(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	id := createSession(t, f, "alice")
	f.llm.CompleteResponse = &llm.CompletionResponse{Content: `{"clarity_score": 82, "confidence_score": 75, "technical_accuracy": 90, "feedback_text": "Solid answer."}`}

	code, body := f.call(t, "POST", "/v1/evaluate", "alice", map[string]any{"session_id": id})
	if code != http.StatusBadRequest {
		t.Fatalf("missing fields: got %d, want 400", code)
	}
	if msg := body["message"].(string); !strings.Contains(msg, "question_id, transcript, question_text") {
		t.Errorf("message: got %q", msg)
	}

	code, body = f.call(t, "POST", "/v1/evaluate", "alice", map[string]any{
		"session_id":      id,
		"question_id":     "q-1",
		"question_number": 1,
		"transcript":      "I built a cache.",
		"question_text":   "Tell me about a project.",
	})
	if code != http.StatusOK {
		t.Fatalf("evaluate: got %d (%v)", code, body)
	}
	if got := field(t, body, "evaluation", "clarity_score"); got != 82.0 {
		t.Errorf("clarity: got %v, want 82", got)
	}
	if got := field(t, body, "response", "session_id"); got != id {
		t.Errorf("response session: got %v, want %s", got, id)
	}
	if got := field(t, body, "feedback", "feedback_text"); got != "Solid answer." {
		t.Errorf("feedback: got %v", got)
	}

	_, body = f.call(t, "GET", "/v1/sessions/"+id+"/responses", "alice", nil)
	if n := len(body["responses"].([]any)); n != 1 {
		t.Errorf("stored responses: got %d, want 1", n)
	}
}

func TestAPI_EvaluateForeignSession(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	id := createSession(t, f, "alice")

	code, _ := f.call(t, "POST", "/v1/evaluate", "bob", map[string]any{
		"session_id":    id,
		"question_id":   "q-1",
		"transcript":    "x",
		"question_text": "y",
	})
	if code != http.StatusNotFound {
		t.Errorf("got %d, want 404", code)
	}
}
