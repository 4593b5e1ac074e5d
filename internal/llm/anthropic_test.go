package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAnthropicProvider_Complete_JSONSeed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("Expected path /v1/messages, got %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("Expected x-api-key header test-key, got %s", r.Header.Get("x-api-key"))
		}
		if r.Header.Get("anthropic-version") != anthropicVersion {
			t.Errorf("Expected anthropic-version %s, got %s", anthropicVersion, r.Header.Get("anthropic-version"))
		}

		var req anthropicRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.System != "sys" {
			t.Errorf("Expected system prompt, got %q", req.System)
		}
		last := req.Messages[len(req.Messages)-1]
		if last.Role != "assistant" || last.Content != "{" {
			t.Errorf("Expected assistant prefill, got %+v", last)
		}

		_ = json.NewEncoder(w).Encode(anthropicResponse{
			Type:    "message",
			Role:    "assistant",
			Content: []anthropicContent{{Type: "text", Text: `"new_floors_count": 2}`}},
			Model:   "claude-3-5-sonnet-20241022",
			Usage:   anthropicUsage{InputTokens: 40, OutputTokens: 10},
		})
	}))
	defer server.Close()

	provider, err := NewAnthropicProvider(Config{APIKey: "test-key", BaseURL: server.URL, Timeout: 5})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	resp, err := provider.Complete(context.Background(), CompletionRequest{System: "sys", Prompt: "p", JSON: true})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if resp.Text != `{"new_floors_count": 2}` {
		t.Errorf("Unexpected text: %q", resp.Text)
	}
	if resp.TokensUsed != 50 {
		t.Errorf("Expected 50 tokens, got %d", resp.TokensUsed)
	}
}

func TestAnthropicProvider_Complete_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"invalid_request_error","message":"bad model"}}`))
	}))
	defer server.Close()

	provider, _ := NewAnthropicProvider(Config{APIKey: "k", BaseURL: server.URL, Timeout: 5})
	_, err := provider.Complete(context.Background(), CompletionRequest{Prompt: "p"})
	if err == nil || !strings.Contains(err.Error(), "bad model") {
		t.Errorf("Expected API error message, got %v", err)
	}
}

func TestAnthropicProvider_EmptyContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(anthropicResponse{Type: "message"})
	}))
	defer server.Close()

	provider, _ := NewAnthropicProvider(Config{APIKey: "k", BaseURL: server.URL, Timeout: 5})
	if _, err := provider.Complete(context.Background(), CompletionRequest{Prompt: "p"}); err == nil {
		t.Error("Expected error for empty content")
	}
}
