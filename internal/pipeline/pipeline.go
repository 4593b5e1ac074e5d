// Package pipeline runs one source document through loading, validation,
// field extraction, optional enrichment and persistence.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ppiankov/nesach/internal/extract"
	"github.com/ppiankov/nesach/internal/identity"
	"github.com/ppiankov/nesach/internal/llm"
	"github.com/ppiankov/nesach/internal/model"
	"github.com/ppiankov/nesach/internal/pdftext"
	"github.com/ppiankov/nesach/internal/sink"
	"github.com/ppiankov/nesach/internal/storage"
	"github.com/ppiankov/nesach/internal/textnorm"
	"github.com/ppiankov/nesach/internal/validate"
	"github.com/ppiankov/nesach/internal/worker"
)

var (
	ErrLoad    = errors.New("load failed")
	ErrParse   = errors.New("parse failed")
	ErrPersist = errors.New("persist failed")
)

// Pipeline processes source documents. It is safe for concurrent use; each
// call to Process owns its own state.
type Pipeline struct {
	config   *model.Config
	store    storage.ObjectStore
	source   pdftext.Source
	session  *extract.Session
	patterns []extract.FieldPattern
	enricher *llm.Enricher // nil when enrichment is off
	sink     sink.Sink
	clock    identity.Clock
	limiter  *worker.Limiter
	logger   *zap.Logger
	closers  []io.Closer
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithStore sets the object store sources are read from
func WithStore(s storage.ObjectStore) Option { return func(p *Pipeline) { p.store = s } }

// WithSource sets the PDF text engine
func WithSource(s pdftext.Source) Option { return func(p *Pipeline) { p.source = s } }

// WithEnricher turns on enrichment
func WithEnricher(e *llm.Enricher) Option { return func(p *Pipeline) { p.enricher = e } }

// WithSink sets where records are persisted
func WithSink(s sink.Sink) Option { return func(p *Pipeline) { p.sink = s } }

// WithClock sets the clock used for ingest dates
func WithClock(c identity.Clock) Option { return func(p *Pipeline) { p.clock = c } }

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithPatterns replaces the field table
func WithPatterns(patterns []extract.FieldPattern) Option {
	return func(p *Pipeline) { p.patterns = patterns }
}

// NewPipeline creates a pipeline. Without options it reads local files,
// uses the configured PDF engine and persists nothing.
func NewPipeline(cfg *model.Config, opts ...Option) (*Pipeline, error) {
	if cfg == nil {
		cfg = model.DefaultConfig()
	}
	p := &Pipeline{
		config: cfg,
		clock:  identity.SystemClock{},
		logger: zap.NewNop(),
		sink:   sink.Discard{},
		limiter: worker.NewLimiter(cfg.Concurrency.RequestsPerSecond,
			cfg.Concurrency.Burst),
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.store == nil {
		p.store = &storage.Mux{Local: storage.NewLocalStore(".")}
	}
	if p.source == nil {
		src, err := pdftext.NewSource(cfg.Source.PDFEngine)
		if err != nil {
			return nil, err
		}
		p.source = src
	}
	p.session = extract.NewSession(p.patterns,
		extract.WithLogger(p.logger),
		extract.WithWorkers(cfg.Concurrency.Workers))
	if p.enricher != nil {
		p.limiter.SetRate("llm:"+p.enricher.Provider(), cfg.LLM.RequestsPerSecond, cfg.LLM.Burst)
	}
	return p, nil
}

// Config returns the pipeline configuration
func (p *Pipeline) Config() *model.Config { return p.config }

// Sink returns the configured sink
func (p *Pipeline) Sink() sink.Sink { return p.sink }

// Process runs one source through the pipeline. Rejections come back as
// *validate.RejectionError; other failures wrap ErrLoad, ErrParse or
// ErrPersist. Empty extraction and enrichment failures are warnings on the
// record, not errors.
func (p *Pipeline) Process(ctx context.Context, raw string) (*model.Record, error) {
	start := time.Now()
	runID := uuid.NewString()
	log := p.logger.With(zap.String("run_id", runID), zap.String("source", raw))

	if err := p.limiter.Wait(ctx, worker.Scope(raw)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoad, err)
	}

	loaded, err := NewLoader(p.store, p.config.Source.MinBytes, log).Load(ctx, raw)
	if err != nil {
		return nil, err
	}

	doc, err := p.source.Extract(ctx, loaded.Data, p.readPages())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	sample := doc.Sample(p.config.Source.SamplePages)
	if err := validate.Content(sample); err != nil {
		return nil, err
	}

	docID := identity.Identity(loaded.Ref.Bucket, loaded.Ref.Key, loaded.Info.ETag)
	part := identity.NewPartition(p.clock, docID)
	log = log.With(zap.String("doc_id", docID))

	rec := &model.Record{
		RunID:      runID,
		DocID:      docID,
		IngestDate: part.IngestDate,
		CreatedAt:  p.clock.Now().UTC(),
		Source: model.SourceInfo{
			Bucket:      loaded.Ref.Bucket,
			Key:         loaded.Ref.Key,
			SizeBytes:   loaded.Info.Size,
			ETag:        loaded.Info.ETag,
			ContentType: loaded.Info.ContentType,
		},
		PageCount: doc.PageCount,
		Engine:    doc.Engine,
	}

	matches, err := p.fields(ctx, doc.Pages)
	if err != nil {
		return nil, err
	}
	rec.Matches = matches
	rec.Fields = extract.ToResult(matches)
	if len(rec.Fields) == 0 {
		rec.Warnings = append(rec.Warnings, "no labeled fields found")
		log.Warn("no labeled fields found", zap.Int("pages", len(doc.Pages)))
	}

	rec.Numerals = p.numerals(rec.Fields, sample)

	if p.enricher != nil {
		enr, err := p.enrich(ctx, docID, sample, rec.Numerals)
		if err != nil {
			rec.Warnings = append(rec.Warnings, "enrichment failed: "+err.Error())
			log.Warn("enrichment failed", zap.Error(err))
		} else {
			rec.Enriched = enr
		}
	}

	rec.Metadata = buildMetadata(doc, loaded, part)
	rec.Duration = time.Since(start)

	loc, err := p.sink.Write(ctx, rec)
	if err != nil {
		return rec, fmt.Errorf("%w: %s: %v", ErrPersist, p.sink.Name(), err)
	}
	if loc != "" {
		rec.Outputs = append(rec.Outputs, loc)
	}

	log.Info("document processed",
		zap.Int("pages", rec.PageCount),
		zap.Int("fields", len(rec.Fields)),
		zap.Duration("duration", rec.Duration))
	return rec, nil
}

// readPages is how many pages the engine must return: everything when
// max_pages is unset, otherwise enough for both the scan and the sample.
func (p *Pipeline) readPages() int {
	src := p.config.Source
	if src.MaxPages <= 0 {
		return 0
	}
	return max(src.SamplePages, src.MaxPages)
}

func (p *Pipeline) fields(ctx context.Context, pages []string) ([]model.ExtractedField, error) {
	if !p.config.Source.Parallel {
		return p.session.Fields(pages, p.config.Source.MaxPages), nil
	}
	matches, err := p.session.ExtractParallel(ctx, pages, p.config.Source.MaxPages)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return matches, nil
}

// numerals reads counts from the project additions field first and falls
// back to the whole sample when that field yields nothing
func (p *Pipeline) numerals(fields model.ExtractionResult, sample string) model.NumeralFallback {
	if additions := fields[model.FieldProjectAdditions]; additions != "" {
		if n := extract.ResolveNumerals(additions); n != (model.NumeralFallback{}) {
			return n
		}
	}
	return extract.ResolveNumerals(sample)
}

func (p *Pipeline) enrich(ctx context.Context, docID, text string, fallback model.NumeralFallback) (*model.Enrichment, error) {
	if err := p.limiter.Wait(ctx, "llm:"+p.enricher.Provider()); err != nil {
		return nil, err
	}
	return p.enricher.Enrich(ctx, docID, text, fallback)
}

func buildMetadata(doc *pdftext.Document, loaded *Loaded, part identity.Partition) map[string]any {
	meta := make(map[string]any, len(doc.Metadata)+8)
	for k, v := range doc.Metadata {
		meta[k] = v
	}
	meta["page_count"] = doc.PageCount
	meta["source_bucket"] = loaded.Ref.Bucket
	meta["source_key"] = loaded.Ref.Key
	meta["size_bytes"] = loaded.Info.Size
	meta["etag"] = loaded.Info.ETag
	meta["doc_id"] = part.DocID
	meta["ingest_date"] = part.IngestDate
	text := doc.Sample(0)
	meta["hebrew_detected"] = textnorm.HasHebrew(text)
	meta["hebrew_ratio"] = math.Round(textnorm.HebrewRatio(text)*1000) / 1000
	return meta
}
