package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MikeSquared-Agency/subtext/internal/anthropic"
	"github.com/MikeSquared-Agency/subtext/internal/safety"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// modelServer replies to every request with text as the model output and
// records the last user prompt.
func modelServer(t *testing.T, text string, prompt *string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []anthropic.Message `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if prompt != nil && len(req.Messages) > 0 {
			*prompt = req.Messages[0].Content
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]any{
				{"type": "text", "text": text},
			},
			"stop_reason": "end_turn",
		})
	}))
}

func newTestExtractor(url string) *Extractor {
	llm := anthropic.NewClient("test-key", "test-model", anthropic.WithEndpoint(url))
	e := New(llm, discardLogger())
	e.retryDelay = 0
	return e
}

func TestGenerateSafetyFlags_Success(t *testing.T) {
	reply := `Here is my analysis:
{"flags": [{"type": "Gaslighting", "severity": "HIGH", "description": "Denies prior events", "evidence": ["that never happened"]}]}
Let me know if you need more.`

	var prompt string
	server := modelServer(t, reply, &prompt)
	defer server.Close()

	flags, err := newTestExtractor(server.URL).GenerateSafetyFlags(context.Background(), []safety.Message{
		{Text: "that never happened", Sender: "Alex"},
		{Text: "it did", IsFromUser: true},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(flags) != 1 {
		t.Fatalf("expected 1 flag, got %d", len(flags))
	}
	if flags[0].Type != safety.RiskGaslighting || flags[0].Severity != safety.SeverityHigh {
		t.Errorf("unexpected flag %+v", flags[0])
	}
	if len(flags[0].Evidence) != 1 || flags[0].Evidence[0] != "that never happened" {
		t.Errorf("unexpected evidence %v", flags[0].Evidence)
	}

	if !strings.Contains(prompt, "[Alex]: that never happened\n[Me]: it did") {
		t.Errorf("prompt missing rendered conversation:\n%s", prompt)
	}
	if !strings.HasPrefix(prompt, "Analyze this conversation for unhealthy patterns:") {
		t.Errorf("unexpected prompt opening:\n%s", prompt)
	}
}

func TestGenerateSafetyFlags_NoFlags(t *testing.T) {
	server := modelServer(t, `{"flags": []}`, nil)
	defer server.Close()

	flags, err := newTestExtractor(server.URL).GenerateSafetyFlags(context.Background(), []safety.Message{{Text: "hi", Sender: "Alex"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(flags) != 0 {
		t.Errorf("expected no flags, got %+v", flags)
	}
}

func TestGenerateSafetyFlags_ExtendedType(t *testing.T) {
	server := modelServer(t, `{"flags": [{"type": "isolation", "severity": "medium", "description": "cuts off friends"}]}`, nil)
	defer server.Close()

	flags, err := newTestExtractor(server.URL).GenerateSafetyFlags(context.Background(), []safety.Message{{Text: "hi", Sender: "Alex"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(flags) != 1 || flags[0].Type != "isolation" {
		t.Fatalf("expected extended type to pass through, got %+v", flags)
	}
	if flags[0].Evidence == nil {
		t.Error("expected empty evidence slice, got nil")
	}
}

func TestGenerateSafetyFlags_InvalidResponse(t *testing.T) {
	server := modelServer(t, "I cannot help with that.", nil)
	defer server.Close()

	_, err := newTestExtractor(server.URL).GenerateSafetyFlags(context.Background(), []safety.Message{{Text: "hi", Sender: "Alex"}})
	if !errors.Is(err, ErrInvalidResponse) {
		t.Fatalf("expected ErrInvalidResponse, got %v", err)
	}
}

func TestGenerateSafetyFlags_InvalidJSON(t *testing.T) {
	server := modelServer(t, `{"flags": [oops]}`, nil)
	defer server.Close()

	_, err := newTestExtractor(server.URL).GenerateSafetyFlags(context.Background(), []safety.Message{{Text: "hi", Sender: "Alex"}})
	if err == nil {
		t.Fatal("expected parse error")
	}
	if errors.Is(err, ErrInvalidResponse) {
		t.Error("malformed JSON should be a parse error, not ErrInvalidResponse")
	}
}

func TestGenerateSafetyFlags_UnknownSeverity(t *testing.T) {
	server := modelServer(t, `{"flags": [{"type": "toxicity", "severity": "extreme"}]}`, nil)
	defer server.Close()

	_, err := newTestExtractor(server.URL).GenerateSafetyFlags(context.Background(), []safety.Message{{Text: "hi", Sender: "Alex"}})
	if err == nil {
		t.Fatal("expected error for unknown severity")
	}
}

func TestGenerateSafetyFlags_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"type":"api_error","message":"overloaded"}}`))
	}))
	defer server.Close()

	_, err := newTestExtractor(server.URL).GenerateSafetyFlags(context.Background(), []safety.Message{{Text: "hi", Sender: "Alex"}})

	var apiErr *anthropic.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected wrapped *anthropic.APIError, got %v", err)
	}
}

// flakyServer fails the first `failures` requests with status and then
// answers with an empty flag list. It counts every request.
func flakyServer(t *testing.T, status, failures int, calls *int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		if *calls <= failures {
			w.WriteHeader(status)
			w.Write([]byte(`{"error":{"type":"error","message":"try later"}}`))
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]any{{"type": "text", "text": `{"flags": []}`}},
		})
	}))
}

func TestGenerateSafetyFlags_RetriesRateLimit(t *testing.T) {
	var calls int
	server := flakyServer(t, http.StatusTooManyRequests, 1, &calls)
	defer server.Close()

	flags, err := newTestExtractor(server.URL).GenerateSafetyFlags(context.Background(), []safety.Message{{Text: "hi", Sender: "Alex"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(flags) != 0 || calls != 2 {
		t.Errorf("expected one retry and no flags, got %d calls, flags %+v", calls, flags)
	}
}

func TestGenerateSafetyFlags_RetriesOnlyOnce(t *testing.T) {
	var calls int
	server := flakyServer(t, http.StatusServiceUnavailable, 5, &calls)
	defer server.Close()

	_, err := newTestExtractor(server.URL).GenerateSafetyFlags(context.Background(), []safety.Message{{Text: "hi", Sender: "Alex"}})
	var apiErr *anthropic.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 APIError, got %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
}

func TestGenerateSafetyFlags_NoRetryOnClientError(t *testing.T) {
	var calls int
	server := flakyServer(t, http.StatusBadRequest, 5, &calls)
	defer server.Close()

	if _, err := newTestExtractor(server.URL).GenerateSafetyFlags(context.Background(), []safety.Message{{Text: "hi", Sender: "Alex"}}); err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected no retry for 400, got %d calls", calls)
	}
}

func TestGenerateSafetyFlags_RetryStopsOnCancel(t *testing.T) {
	var calls int
	server := flakyServer(t, http.StatusTooManyRequests, 5, &calls)
	defer server.Close()

	e := newTestExtractor(server.URL)
	e.retryDelay = time.Hour
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := e.GenerateSafetyFlags(ctx, []safety.Message{{Text: "hi", Sender: "Alex"}}); err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected no second call after cancel, got %d", calls)
	}
}

func TestRenderConversation_Window(t *testing.T) {
	var msgs []safety.Message
	for i := 0; i < 25; i++ {
		msgs = append(msgs, safety.Message{Text: fmt.Sprintf("m%d", i), Sender: "Alex"})
	}

	out := renderConversation(msgs)
	lines := strings.Split(out, "\n")
	if len(lines) != contextWindow {
		t.Fatalf("expected %d lines, got %d", contextWindow, len(lines))
	}
	if lines[0] != "[Alex]: m5" || lines[19] != "[Alex]: m24" {
		t.Errorf("unexpected window bounds %q .. %q", lines[0], lines[19])
	}
}

func TestRenderConversation_Speakers(t *testing.T) {
	out := renderConversation([]safety.Message{
		{Text: "hello", Sender: "Sam", IsFromUser: true},
		{Text: "hey"},
	})
	if out != "[Me]: hello\n[Them]: hey" {
		t.Errorf("unexpected rendering %q", out)
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{`{"a":1}`, `{"a":1}`, true},
		{"```json\n{\"flags\": []}\n```", `{"flags": []}`, true},
		{"prefix {nested {x}} suffix", "{nested {x}}", true},
		{"no braces", "", false},
		{"} backwards {", "", false},
	}
	for _, tt := range tests {
		got, ok := extractJSON(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("extractJSON(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
