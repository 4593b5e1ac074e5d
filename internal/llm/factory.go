package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/ppiankov/nesach/internal/model"
)

// NewProvider creates the provider named in config. An empty name returns
// nil, nil: enrichment is disabled.
func NewProvider(ctx context.Context, config Config) (Provider, error) {
	switch strings.ToLower(config.Provider) {
	case "openai":
		return NewOpenAIProvider(config)
	case "anthropic", "claude":
		return NewAnthropicProvider(config)
	case "ollama":
		return NewOllamaProvider(config)
	case "gemini", "google":
		return NewGeminiProvider(ctx, config)
	case "", "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: openai, anthropic, ollama, gemini)", config.Provider)
	}
}

// ConfigFromModel converts the file/env configuration to provider config
func ConfigFromModel(llmCfg model.LLMConfig, httpCfg model.HTTPConfig) Config {
	return Config{
		Provider:   llmCfg.Provider,
		Model:      llmCfg.Model,
		APIKey:     llmCfg.APIKey,
		BaseURL:    llmCfg.BaseURL,
		Timeout:    llmCfg.Timeout,
		MaxTokens:  llmCfg.MaxTokens,
		HTTPProxy:  httpCfg.HTTPProxy,
		HTTPSProxy: httpCfg.HTTPSProxy,
		NoProxy:    httpCfg.NoProxy,
	}
}
