package pdftext

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"code.sajari.com/docconv"
)

// DocconvSource shells out to poppler's pdftotext through docconv. It needs
// pdftotext and pdfinfo on PATH. pdftotext runs without page breaks, so the
// whole body is returned as a single page.
type DocconvSource struct{}

// NewDocconvSource creates the pdftotext-backed engine
func NewDocconvSource() *DocconvSource {
	return &DocconvSource{}
}

// Name returns the engine name
func (s *DocconvSource) Name() string { return "docconv" }

// Extract converts data; maxPages is ignored because pages are not split
func (s *DocconvSource) Extract(ctx context.Context, data []byte, maxPages int) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res, err := docconv.Convert(bytes.NewReader(data), "application/pdf", false)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if res.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrParse, res.Error)
	}

	meta := normalizeMetadata(res.Meta)
	count := 1
	if n, err := strconv.Atoi(strings.TrimSpace(meta["pages"])); err == nil && n > 0 {
		count = n
	}

	return &Document{
		Pages:     []string{res.Body},
		PageCount: count,
		Metadata:  meta,
		Engine:    s.Name(),
	}, nil
}
