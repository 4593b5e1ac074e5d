// Package llm wraps text-generation providers used for the optional
// enrichment of extracted records.
package llm

import (
	"context"
	"time"
)

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Complete sends one system+user exchange and returns the reply text
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// IsAvailable checks if the provider is configured and reachable
	IsAvailable(ctx context.Context) bool
}

// CompletionRequest is a single prompt
type CompletionRequest struct {
	System    string
	Prompt    string
	Model     string // Overrides the provider default when set
	MaxTokens int
	JSON      bool // Ask the provider for a JSON object reply where supported
}

// CompletionResponse is the provider's reply
type CompletionResponse struct {
	Text       string
	Model      string
	TokensUsed int
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "anthropic", "ollama", "gemini", ""
	Provider string

	Model   string
	APIKey  string
	BaseURL string // Custom endpoint (Ollama, OpenAI-compatible gateways, tests)

	Timeout   int // seconds
	MaxTokens int

	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns sensible defaults; the provider is disabled
func DefaultConfig() Config {
	return Config{
		Timeout:   30,
		MaxTokens: 800,
	}
}

func (c Config) timeout(fallback time.Duration) time.Duration {
	if c.Timeout > 0 {
		return time.Duration(c.Timeout) * time.Second
	}
	return fallback
}

func (c Config) maxTokens(req CompletionRequest) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	if c.MaxTokens > 0 {
		return c.MaxTokens
	}
	return 800
}

func (c Config) model(req CompletionRequest, fallback string) string {
	if req.Model != "" {
		return req.Model
	}
	if c.Model != "" {
		return c.Model
	}
	return fallback
}
