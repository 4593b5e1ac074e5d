package pipeline

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/ppiankov/nesach/internal/cache"
	"github.com/ppiankov/nesach/internal/extract"
	"github.com/ppiankov/nesach/internal/llm"
	"github.com/ppiankov/nesach/internal/model"
	"github.com/ppiankov/nesach/internal/sink"
	"github.com/ppiankov/nesach/internal/storage"
)

// Build wires a pipeline from configuration: local and S3 stores, the PDF
// engine, the enrichment provider with its cache, and the sink. Call Close
// on the result when done.
func Build(ctx context.Context, cfg *model.Config, logger *zap.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	store := &storage.Mux{Local: storage.NewLocalStore(".")}
	s3, err := storage.NewS3Store(ctx, cfg.Storage)
	if err != nil {
		logger.Warn("object storage unavailable, only local sources will load", zap.Error(err))
	} else {
		store.Remote = s3
	}

	opts := []Option{WithStore(store), WithLogger(logger)}
	if cfg.Source.Patterns != "" {
		patterns, err := extract.LoadPatterns(cfg.Source.Patterns)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithPatterns(patterns))
	}
	var closers []io.Closer

	provider, err := llm.NewProvider(ctx, llm.ConfigFromModel(cfg.LLM, cfg.HTTP))
	if err != nil {
		return nil, fmt.Errorf("llm provider: %w", err)
	}
	if provider != nil {
		enrOpts := []llm.EnricherOption{
			llm.WithMaxContextChars(cfg.LLM.MaxContextChars),
			llm.WithMaxTokens(cfg.LLM.MaxTokens),
			llm.WithEnricherLogger(logger),
		}
		if cfg.Cache.Enabled {
			enrOpts = append(enrOpts, llm.WithCache(
				cache.NewLayeredCache(cfg.Cache.MemoryTTL, cfg.Cache.Dir, cfg.Cache.DiskTTL),
				cfg.Cache.DiskTTL))
		}
		opts = append(opts, WithEnricher(llm.NewEnricher(provider, enrOpts...)))
		if c, ok := provider.(io.Closer); ok {
			closers = append(closers, c)
		}
	}

	sk, err := sink.New(ctx, cfg, store, logger)
	if err != nil {
		closeAll(closers)
		return nil, fmt.Errorf("sink: %w", err)
	}
	opts = append(opts, WithSink(sk))
	closers = append(closers, sk)

	p, err := NewPipeline(cfg, opts...)
	if err != nil {
		closeAll(closers)
		return nil, err
	}
	p.closers = closers
	return p, nil
}

// Close releases the sink and provider clients
func (p *Pipeline) Close() error {
	return closeAll(p.closers)
}

func closeAll(closers []io.Closer) error {
	var first error
	for _, c := range closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
