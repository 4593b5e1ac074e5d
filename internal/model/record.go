package model

import "time"

// Field keys produced by the label-anchored extractor
const (
	FieldBlock            = "block"
	FieldPlot             = "plot"
	FieldRegisteredArea   = "registered_area"
	FieldAddress          = "address"
	FieldProjectAdditions = "project_additions"
)

// Provenance records which form of a line produced a match
type Provenance string

const (
	ProvenanceNatural  Provenance = "natural"  // Matched the line as extracted
	ProvenanceMirrored Provenance = "mirrored" // Matched the character-reversed line
)

// ExtractedField is one labeled value recovered from a page
type ExtractedField struct {
	Key        string     `json:"key"`
	Value      string     `json:"value"`
	Provenance Provenance `json:"provenance"`
	Label      string     `json:"label,omitempty"` // Label that anchored the match
	Page       int        `json:"page"`            // 1-based page number
	Line       int        `json:"line"`            // 1-based line number within the page
}

// ExtractionResult maps field key to value; each key appears at most once
type ExtractionResult map[string]string

// NumeralFallback holds counts recovered from narrative text. Zero means
// either "zero" or "not mentioned".
type NumeralFallback struct {
	Floors int `json:"new_floors_count"`
	Units  int `json:"new_residential_units"`
}

// Enrichment is the typed result of the optional text-generation step
type Enrichment struct {
	NewFloorsCount      int      `json:"new_floors_count"`
	NewResidentialUnits int      `json:"new_residential_units"`
	AdditionsListHe     []string `json:"additions_list_he"`
	SummaryHe           string   `json:"summary_he"`

	Provider  string `json:"provider,omitempty"`
	Model     string `json:"model,omitempty"`
	FromCache bool   `json:"from_cache,omitempty"`
}

// SourceInfo describes the object a record was extracted from
type SourceInfo struct {
	Bucket      string `json:"bucket,omitempty"`
	Key         string `json:"key"`
	SizeBytes   int64  `json:"size_bytes"`
	ETag        string `json:"etag,omitempty"`
	ContentType string `json:"content_type,omitempty"`
}

// Record is the full output for one processed document
type Record struct {
	RunID      string    `json:"run_id"`
	DocID      string    `json:"doc_id"`
	IngestDate string    `json:"ingest_date"` // YYYY-MM-DD, UTC
	CreatedAt  time.Time `json:"created_at"`

	Source    SourceInfo `json:"source"`
	PageCount int        `json:"page_count"`
	Engine    string     `json:"engine,omitempty"` // PDF text engine used

	Fields   ExtractionResult `json:"fields"`
	Matches  []ExtractedField `json:"matches,omitempty"`
	Numerals NumeralFallback  `json:"numerals"`
	Enriched *Enrichment      `json:"enrichment,omitempty"`
	Metadata map[string]any   `json:"metadata,omitempty"`
	Warnings []string         `json:"warnings,omitempty"`
	Outputs  []string         `json:"outputs,omitempty"` // Locations written by the sink
	Duration time.Duration    `json:"duration_ns"`
}

// Summary is the one-line status printed after a run
type Summary struct {
	Status     string   `json:"status"`
	DocID      string   `json:"doc_id,omitempty"`
	IngestDate string   `json:"ingest_date,omitempty"`
	Bucket     string   `json:"bucket,omitempty"`
	Key        string   `json:"key"`
	SizeBytes  int64    `json:"size_bytes,omitempty"`
	Pages      int      `json:"pages,omitempty"`
	Fields     int      `json:"fields"`
	Outputs    []string `json:"outputs,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// Summarize builds the run summary for a processed record
func (r *Record) Summarize() Summary {
	return Summary{
		Status:     "OK",
		DocID:      r.DocID,
		IngestDate: r.IngestDate,
		Bucket:     r.Source.Bucket,
		Key:        r.Source.Key,
		SizeBytes:  r.Source.SizeBytes,
		Pages:      r.PageCount,
		Fields:     len(r.Fields),
		Outputs:    r.Outputs,
	}
}
