package pdftext

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

// buildPDF writes a minimal single-font PDF with one text line per page
func buildPDF(title string, pages []string) []byte {
	var buf bytes.Buffer
	var offsets []int
	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n")
	n := len(pages)
	// 1 catalog, 2 pages, 3 font, 4 info, then page/content pairs
	kids := make([]string, n)
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 5+2*i)
	}
	obj("<< /Type /Catalog /Pages 2 0 R >>")
	obj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), n))
	obj("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>")
	obj(fmt.Sprintf("<< /Title (%s) /Producer (nesach-test) >>", title))
	for i, text := range pages {
		obj(fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", 6+2*i))
		stream := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
		obj(fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream))
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R /Info 4 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes()
}

func TestLedongthucSource_Extract(t *testing.T) {
	data := buildPDF("Zero Report", []string{"Block 6941", "Plot 25", "Third"})

	doc, err := NewLedongthucSource().Extract(context.Background(), data, 2)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if doc.PageCount != 3 {
		t.Errorf("PageCount = %d, want 3", doc.PageCount)
	}
	if len(doc.Pages) != 2 {
		t.Fatalf("expected 2 pages read, got %d", len(doc.Pages))
	}
	if !strings.Contains(doc.Pages[0], "6941") {
		t.Errorf("page 1 text %q missing block number", doc.Pages[0])
	}
	if doc.Metadata["title"] != "Zero Report" {
		t.Errorf("title = %q, want %q", doc.Metadata["title"], "Zero Report")
	}
	if doc.Engine != "ledongthuc" {
		t.Errorf("Engine = %q", doc.Engine)
	}
}

func TestLedongthucSource_Garbage(t *testing.T) {
	_, err := NewLedongthucSource().Extract(context.Background(), []byte("not a pdf at all"), 0)
	if !errors.Is(err, ErrParse) {
		t.Errorf("expected ErrParse, got %v", err)
	}
}

func TestDocument_Sample(t *testing.T) {
	doc := &Document{Pages: []string{"a", "b", "c"}}

	tests := []struct {
		n    int
		want string
	}{
		{0, "a\nb\nc"},
		{2, "a\nb"},
		{10, "a\nb\nc"},
	}
	for _, tt := range tests {
		if got := doc.Sample(tt.n); got != tt.want {
			t.Errorf("Sample(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestNewSource(t *testing.T) {
	for _, name := range []string{"", "ledongthuc", "docconv", "PDFTOTEXT"} {
		if _, err := NewSource(name); err != nil {
			t.Errorf("NewSource(%q) error = %v", name, err)
		}
	}
	if _, err := NewSource("ocr"); err == nil {
		t.Error("expected error for unknown engine")
	}
}

func TestNormalizeKey(t *testing.T) {
	tests := map[string]string{
		"Title":         "title",
		"Creation-Date": "creation_date",
		" Mod Date ":    "mod_date",
		"PDF version":   "pdf_version",
	}
	for in, want := range tests {
		if got := NormalizeKey(in); got != want {
			t.Errorf("NormalizeKey(%q) = %q, want %q", in, got, want)
		}
	}
}
