package extract

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/nesach/internal/model"
	"github.com/ppiankov/nesach/internal/textnorm"
)

// Session scans a document's pages for the fields in its pattern table.
// A Session holds no per-document state, so one value can serve many
// documents concurrently.
type Session struct {
	matcher *Matcher
	logger  *zap.Logger
	workers int
}

// SessionOption configures a Session
type SessionOption func(*Session)

// WithLogger sets the logger used for debug tracing of matches
func WithLogger(l *zap.Logger) SessionOption {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithWorkers caps the number of pages scanned at once by ExtractParallel
func WithWorkers(n int) SessionOption {
	return func(s *Session) {
		if n > 0 {
			s.workers = n
		}
	}
}

// NewSession creates a session for the given field table. A nil table uses
// DefaultPatterns.
func NewSession(patterns []FieldPattern, opts ...SessionOption) *Session {
	if patterns == nil {
		patterns = DefaultPatterns()
	}
	s := &Session{
		matcher: NewMatcher(patterns),
		logger:  zap.NewNop(),
		workers: 4,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Matcher exposes the session's compiled matcher
func (s *Session) Matcher() *Matcher {
	return s.matcher
}

// Fields returns the first match for each field key in document order.
// maxPages <= 0 scans every page.
func (s *Session) Fields(pages []string, maxPages int) []model.ExtractedField {
	pages = capPages(pages, maxPages)

	resolved := make(map[string]bool)
	var fields []model.ExtractedField
	for i, page := range pages {
		for _, f := range s.scanPage(i, page, resolved) {
			resolved[f.Key] = true
			fields = append(fields, f)
		}
	}
	return fields
}

// Extract returns the key → value mapping for a document. An empty result
// is valid.
func (s *Session) Extract(pages []string, maxPages int) model.ExtractionResult {
	return ToResult(s.Fields(pages, maxPages))
}

// ExtractParallel scans pages concurrently and merges the per-page results
// in page order, so the outcome equals that of Fields.
func (s *Session) ExtractParallel(ctx context.Context, pages []string, maxPages int) ([]model.ExtractedField, error) {
	pages = capPages(pages, maxPages)
	perPage := make([][]model.ExtractedField, len(pages))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, page := range pages {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			perPage[i] = s.scanPage(i, page, nil)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("page scan: %w", err)
	}

	resolved := make(map[string]bool)
	var fields []model.ExtractedField
	for _, pf := range perPage {
		for _, f := range pf {
			if resolved[f.Key] {
				continue
			}
			resolved[f.Key] = true
			fields = append(fields, f)
		}
	}
	return fields, nil
}

// scanPage returns the first match on one page for every key not in skip.
// skip is only read.
func (s *Session) scanPage(index int, page string, skip map[string]bool) []model.ExtractedField {
	var found []model.ExtractedField
	seen := make(map[string]bool)

	for n, raw := range textnorm.SplitLines(page) {
		line := textnorm.Normalize(raw)
		if line == "" {
			continue
		}
		mirrored := textnorm.Mirror(line)

		for _, p := range s.matcher.patterns {
			if skip[p.Key] || seen[p.Key] {
				continue
			}
			f, ok := s.matcher.MatchField(p, line, mirrored)
			if !ok {
				continue
			}
			f.Page = index + 1
			f.Line = n + 1
			seen[p.Key] = true
			found = append(found, f)
			s.logger.Debug("field matched",
				zap.String("key", f.Key),
				zap.String("label", f.Label),
				zap.String("provenance", string(f.Provenance)),
				zap.Int("page", f.Page),
				zap.Int("line", f.Line))
		}
	}
	return found
}

func capPages(pages []string, maxPages int) []string {
	if maxPages > 0 && len(pages) > maxPages {
		return pages[:maxPages]
	}
	return pages
}

// ToResult folds matched fields into a result mapping, keeping the first
// value per key
func ToResult(fields []model.ExtractedField) model.ExtractionResult {
	result := make(model.ExtractionResult, len(fields))
	for _, f := range fields {
		if _, ok := result[f.Key]; !ok {
			result[f.Key] = f.Value
		}
	}
	return result
}
