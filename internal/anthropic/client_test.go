package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func textReply(w http.ResponseWriter, blocks ...contentBlock) {
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response{Content: blocks, StopReason: "end_turn"})
}

func TestComplete_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("expected x-api-key test-key, got %q", r.Header.Get("x-api-key"))
		}
		if r.Header.Get("anthropic-version") != apiVersion {
			t.Errorf("expected anthropic-version %s, got %q", apiVersion, r.Header.Get("anthropic-version"))
		}

		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
			return
		}
		if req.Model != "test-model" || req.System != "screen this" || req.MaxTokens != 512 {
			t.Errorf("unexpected request %+v", req)
		}
		if len(req.Messages) != 1 || req.Messages[0].Content != "[Alex]: hi" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}

		textReply(w, contentBlock{Type: "text", Text: `{"flags": []}`})
	}))
	defer server.Close()

	c := NewClient("test-key", "test-model", WithEndpoint(server.URL))

	result, err := c.Complete(context.Background(), "screen this", []Message{{Role: "user", Content: "[Alex]: hi"}}, 512)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != `{"flags": []}` {
		t.Errorf("unexpected result %q", result)
	}
}

func TestComplete_JoinsTextBlocks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		textReply(w,
			contentBlock{Type: "text", Text: `{"flags":`},
			contentBlock{Type: "tool_use"},
			contentBlock{Type: "text", Text: ` []}`},
		)
	}))
	defer server.Close()

	c := NewClient("k", "m", WithEndpoint(server.URL))
	result, err := c.Complete(context.Background(), "", []Message{{Role: "user", Content: "hi"}}, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != `{"flags": []}` {
		t.Errorf("unexpected result %q", result)
	}
}

func TestComplete_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{
				"type":    "rate_limit_error",
				"message": "slow down",
			},
		})
	}))
	defer server.Close()

	c := NewClient("test-key", "test-model", WithEndpoint(server.URL))

	_, err := c.Complete(context.Background(), "", []Message{{Role: "user", Content: "hi"}}, 100)

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusTooManyRequests || apiErr.Type != "rate_limit_error" {
		t.Errorf("unexpected api error %+v", apiErr)
	}
	if !apiErr.Retryable() {
		t.Error("expected 429 to be retryable")
	}
}

func TestComplete_NonJSONError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("bad request"))
	}))
	defer server.Close()

	c := NewClient("k", "m", WithEndpoint(server.URL))
	_, err := c.Complete(context.Background(), "", []Message{{Role: "user", Content: "hi"}}, 100)

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Message != "bad request" || apiErr.Retryable() {
		t.Errorf("unexpected api error %+v", apiErr)
	}
}

func TestComplete_EmptyContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		textReply(w)
	}))
	defer server.Close()

	c := NewClient("test-key", "test-model", WithEndpoint(server.URL))

	_, err := c.Complete(context.Background(), "", []Message{{Role: "user", Content: "hi"}}, 100)
	if err == nil {
		t.Fatal("expected error for empty content response")
	}
}

func TestComplete_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		textReply(w, contentBlock{Type: "text", Text: "late"})
	}))
	defer server.Close()

	c := NewClient("k", "m", WithEndpoint(server.URL), WithTimeout(20*time.Millisecond))
	if _, err := c.Complete(context.Background(), "", []Message{{Role: "user", Content: "hi"}}, 10); err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestModel(t *testing.T) {
	if got := NewClient("k", "claude-test").Model(); got != "claude-test" {
		t.Errorf("Model() = %q", got)
	}
}
