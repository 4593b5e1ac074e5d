package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/nesach/internal/cache"
	"github.com/ppiankov/nesach/internal/model"
)

// Enricher asks a provider for the enrichment object and caches replies
type Enricher struct {
	provider  Provider
	cache     cache.Cache
	cacheTTL  time.Duration
	maxChars  int
	maxTokens int
	logger    *zap.Logger
}

// EnricherOption configures an Enricher
type EnricherOption func(*Enricher)

// WithCache stores parsed replies under the document and context hash
func WithCache(c cache.Cache, ttl time.Duration) EnricherOption {
	return func(e *Enricher) {
		if c != nil {
			e.cache = c
			e.cacheTTL = ttl
		}
	}
}

// WithMaxContextChars caps the document text sent to the model
func WithMaxContextChars(n int) EnricherOption {
	return func(e *Enricher) { e.maxChars = n }
}

// WithMaxTokens caps the reply length
func WithMaxTokens(n int) EnricherOption {
	return func(e *Enricher) { e.maxTokens = n }
}

// WithEnricherLogger sets the logger
func WithEnricherLogger(l *zap.Logger) EnricherOption {
	return func(e *Enricher) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEnricher wraps provider
func NewEnricher(provider Provider, opts ...EnricherOption) *Enricher {
	e := &Enricher{
		provider: provider,
		cache:    cache.Noop{},
		maxChars: 12000,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Provider returns the wrapped provider name
func (e *Enricher) Provider() string {
	return e.provider.Name()
}

// Enrich returns the enrichment for docID. Numeric fields the model left at
// 0 are filled from fallback. Errors mean "no enrichment"; callers should
// log and continue.
func (e *Enricher) Enrich(ctx context.Context, docID, text string, fallback model.NumeralFallback) (*model.Enrichment, error) {
	text = Truncate(text, e.maxChars)
	key := cache.Key(docID, e.provider.Name(), text)

	if raw, ok := e.cache.Get(key); ok {
		var cached model.Enrichment
		if err := json.Unmarshal(raw, &cached); err == nil {
			cached.FromCache = true
			ApplyFallback(&cached, fallback)
			e.logger.Debug("enrichment cache hit", zap.String("doc_id", docID))
			return &cached, nil
		}
		_ = e.cache.Delete(key)
	}

	resp, err := e.provider.Complete(ctx, CompletionRequest{
		System:    SystemPrompt,
		Prompt:    BuildPrompt(text, 0),
		MaxTokens: e.maxTokens,
		JSON:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("%s completion: %w", e.provider.Name(), err)
	}

	enr, warnings, err := ParseEnrichment(resp.Text)
	if err != nil {
		return nil, fmt.Errorf("%s reply: %w", e.provider.Name(), err)
	}
	for _, w := range warnings {
		e.logger.Warn("enrichment reply coerced", zap.String("doc_id", docID), zap.String("reason", w))
	}
	enr.Provider = e.provider.Name()
	enr.Model = resp.Model

	if raw, err := json.Marshal(enr); err == nil {
		if err := e.cache.Set(key, raw, e.cacheTTL); err != nil {
			e.logger.Warn("enrichment cache write failed", zap.Error(err))
		}
	}

	ApplyFallback(&enr, fallback)
	return &enr, nil
}
