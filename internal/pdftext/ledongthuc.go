package pdftext

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// LedongthucSource reads text with the pure-Go ledongthuc/pdf parser
type LedongthucSource struct{}

// NewLedongthucSource creates the pure-Go text engine
func NewLedongthucSource() *LedongthucSource {
	return &LedongthucSource{}
}

// Name returns the engine name
func (s *LedongthucSource) Name() string { return "ledongthuc" }

// Extract reads up to maxPages pages (0 = all)
func (s *LedongthucSource) Extract(ctx context.Context, data []byte, maxPages int) (doc *Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			doc, err = nil, fmt.Errorf("%w: %v", ErrParse, r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	total := r.NumPage()
	take := total
	if maxPages > 0 && maxPages < take {
		take = maxPages
	}

	pages := make([]string, 0, take)
	for i := 1; i <= take; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pages = append(pages, pageText(r.Page(i)))
	}

	return &Document{
		Pages:     pages,
		PageCount: total,
		Metadata:  infoDict(r),
		Engine:    s.Name(),
	}, nil
}

// pageText prefers row grouping so each physical line stays on its own
// line; it falls back to plain text and then to "".
func pageText(page pdf.Page) (text string) {
	defer func() {
		if recover() != nil {
			text = ""
		}
	}()
	if page.V.IsNull() {
		return ""
	}

	if rows, err := page.GetTextByRow(); err == nil && len(rows) > 0 {
		var b strings.Builder
		for _, row := range rows {
			for _, word := range row.Content {
				b.WriteString(word.S)
			}
			b.WriteByte('\n')
		}
		return b.String()
	}

	plain, err := page.GetPlainText(nil)
	if err != nil {
		return ""
	}
	return plain
}

func infoDict(r *pdf.Reader) map[string]string {
	info := r.Trailer().Key("Info")
	if info.IsNull() || info.Kind() != pdf.Dict {
		return map[string]string{}
	}
	raw := make(map[string]string)
	for _, k := range info.Keys() {
		v := info.Key(k)
		switch v.Kind() {
		case pdf.String:
			raw[k] = v.Text()
		case pdf.Name:
			raw[k] = v.Name()
		default:
			raw[k] = v.String()
		}
	}
	return normalizeMetadata(raw)
}
