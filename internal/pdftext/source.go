// Package pdftext turns PDF bytes into per-page text.
package pdftext

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrParse is returned when a document cannot be opened as a PDF
var ErrParse = errors.New("pdf parse failed")

// Document is the text content of one PDF
type Document struct {
	Pages     []string          // Extracted text per page, possibly empty strings
	PageCount int               // Total pages in the file, even when fewer were read
	Metadata  map[string]string // Info dictionary, keys normalized
	Engine    string
}

// Sample joins the first n pages with newlines. n <= 0 joins every page.
func (d *Document) Sample(n int) string {
	pages := d.Pages
	if n > 0 && len(pages) > n {
		pages = pages[:n]
	}
	return strings.Join(pages, "\n")
}

// Source extracts text from PDF bytes. Implementations must not panic on
// malformed input; unreadable pages come back as empty strings.
type Source interface {
	Name() string
	Extract(ctx context.Context, data []byte, maxPages int) (*Document, error)
}

// NewSource returns the text engine registered under name
func NewSource(name string) (Source, error) {
	switch strings.ToLower(name) {
	case "", "ledongthuc", "native":
		return NewLedongthucSource(), nil
	case "docconv", "pdftotext":
		return NewDocconvSource(), nil
	default:
		return nil, fmt.Errorf("unknown pdf engine: %s (supported: ledongthuc, docconv)", name)
	}
}

// NormalizeKey lowercases a metadata key and replaces spaces and dashes
// with underscores
func NormalizeKey(k string) string {
	k = strings.ToLower(strings.TrimSpace(k))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(k)
}

func normalizeMetadata(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		if v == "" {
			continue
		}
		out[NormalizeKey(k)] = v
	}
	return out
}
