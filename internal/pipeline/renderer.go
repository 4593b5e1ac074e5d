package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/ppiankov/nesach/internal/model"
)

// Renderer writes records as JSON, Markdown and a one-line summary
type Renderer struct {
	indent bool
}

// NewRenderer creates a renderer
func NewRenderer(indent bool) *Renderer {
	return &Renderer{indent: indent}
}

// RenderJSON writes the full record to path
func (r *Renderer) RenderJSON(rec *model.Record, path string) error {
	data, err := r.marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	return writeFile(path, append(data, '\n'))
}

// RenderMarkdown writes a human-readable report to path
func (r *Renderer) RenderMarkdown(rec *model.Record, path string) error {
	return writeFile(path, []byte(Markdown(rec)))
}

// RenderSummary prints the run summary as one JSON line
func (r *Renderer) RenderSummary(w io.Writer, s model.Summary) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func (r *Renderer) marshal(v any) ([]byte, error) {
	if r.indent {
		return json.MarshalIndent(v, "", "  ")
	}
	return json.Marshal(v)
}

// Markdown renders rec as a report
func Markdown(rec *model.Record) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", rec.Source.Key)
	fmt.Fprintf(&b, "- Doc ID: `%s`\n", rec.DocID)
	fmt.Fprintf(&b, "- Ingest date: %s\n", rec.IngestDate)
	if rec.Source.Bucket != "" {
		fmt.Fprintf(&b, "- Bucket: %s\n", rec.Source.Bucket)
	}
	fmt.Fprintf(&b, "- Pages: %d (engine: %s)\n\n", rec.PageCount, rec.Engine)

	b.WriteString("## Fields\n\n")
	if len(rec.Matches) == 0 {
		b.WriteString("_No labeled fields found._\n\n")
	} else {
		b.WriteString("| Field | Value | Label | Page | Line | Read as |\n")
		b.WriteString("|-------|-------|-------|------|------|---------|\n")
		for _, m := range rec.Matches {
			fmt.Fprintf(&b, "| %s | %s | %s | %d | %d | %s |\n",
				m.Key, escapeCell(m.Value), m.Label, m.Page, m.Line, m.Provenance)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Additions\n\n")
	floors, units := rec.Numerals.Floors, rec.Numerals.Units
	if rec.Enriched != nil {
		floors, units = rec.Enriched.NewFloorsCount, rec.Enriched.NewResidentialUnits
	}
	fmt.Fprintf(&b, "- New floors: %d\n", floors)
	fmt.Fprintf(&b, "- New residential units: %d\n", units)
	if e := rec.Enriched; e != nil {
		for _, item := range e.AdditionsListHe {
			fmt.Fprintf(&b, "  - %s\n", item)
		}
		if e.SummaryHe != "" {
			fmt.Fprintf(&b, "\n%s\n", e.SummaryHe)
		}
		fmt.Fprintf(&b, "\n_Enriched by %s %s_\n", e.Provider, e.Model)
	}
	b.WriteString("\n")

	if len(rec.Metadata) > 0 {
		b.WriteString("## Metadata\n\n")
		keys := make([]string, 0, len(rec.Metadata))
		for k := range rec.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "- %s: %v\n", k, rec.Metadata[k])
		}
		b.WriteString("\n")
	}

	if len(rec.Warnings) > 0 {
		b.WriteString("## Warnings\n\n")
		for _, w := range rec.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
	}
	return b.String()
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func writeFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
