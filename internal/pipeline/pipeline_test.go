package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ppiankov/nesach/internal/identity"
	"github.com/ppiankov/nesach/internal/llm"
	"github.com/ppiankov/nesach/internal/model"
	"github.com/ppiankov/nesach/internal/pdftext"
	"github.com/ppiankov/nesach/internal/storage"
	"github.com/ppiankov/nesach/internal/validate"
)

// memStore is an in-memory object store
type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	getErrs int // Transient Get failures to return before succeeding
	puts    []string
}

func newMemStore() *memStore {
	return &memStore{objects: make(map[string][]byte)}
}

func (m *memStore) Head(_ context.Context, bucket, key string) (storage.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[bucket+"/"+key]
	if !ok {
		return storage.ObjectInfo{}, storage.ErrNotFound
	}
	return storage.ObjectInfo{Size: int64(len(data)), ETag: "etag-" + key, ContentType: "application/pdf"}, nil
}

func (m *memStore) Get(_ context.Context, bucket, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErrs > 0 {
		m.getErrs--
		return nil, errors.New("connection reset")
	}
	data, ok := m.objects[bucket+"/"+key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return data, nil
}

func (m *memStore) Put(_ context.Context, bucket, key string, data []byte, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[bucket+"/"+key] = data
	m.puts = append(m.puts, key)
	return "s3://" + bucket + "/" + key, nil
}

// fakeSource returns fixed pages regardless of input
type fakeSource struct {
	pages []string
	err   error
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) Extract(_ context.Context, _ []byte, maxPages int) (*pdftext.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	pages := f.pages
	if maxPages > 0 && len(pages) > maxPages {
		pages = pages[:maxPages]
	}
	return &pdftext.Document{
		Pages:     pages,
		PageCount: len(f.pages),
		Metadata:  map[string]string{"title": "דוח אפס"},
		Engine:    "fake",
	}, nil
}

type recordingSink struct {
	records []*model.Record
	err     error
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Write(_ context.Context, rec *model.Record) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.records = append(s.records, rec)
	return "mem://" + rec.DocID, nil
}

func (s *recordingSink) Close() error { return nil }

type stubProvider struct {
	reply string
	err   error
	calls int
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) Complete(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return &llm.CompletionResponse{Text: p.reply, Model: "stub-1"}, nil
}

func (p *stubProvider) IsAvailable(context.Context) bool { return true }

func pdfBytes() []byte {
	return append([]byte("%PDF-1.4\n"), bytes.Repeat([]byte{' '}, 2048)...)
}

var fixedClock = identity.FixedClock(time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC))

func newTestPipeline(t *testing.T, store *memStore, src *fakeSource, opts ...Option) *Pipeline {
	t.Helper()
	all := append([]Option{WithStore(store), WithSource(src), WithClock(fixedClock)}, opts...)
	p, err := NewPipeline(model.DefaultConfig(), all...)
	if err != nil {
		t.Fatalf("NewPipeline() error = %v", err)
	}
	return p
}

func TestProcess_EndToEnd(t *testing.T) {
	store := newMemStore()
	store.objects["in/reports/zero.pdf"] = pdfBytes()
	src := &fakeSource{pages: []string{
		"דוח אפס\nגוש: 100\nחלקה: 25\n",
		"עמוד שני ללא שדות",
	}}
	sk := &recordingSink{}

	p := newTestPipeline(t, store, src, WithSink(sk))
	rec, err := p.Process(context.Background(), "s3://in/reports/zero.pdf")
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if len(rec.Fields) != 2 || rec.Fields["block"] != "100" || rec.Fields["plot"] != "25" {
		t.Errorf("Fields = %v", rec.Fields)
	}
	wantID := identity.Identity("in", "reports/zero.pdf", "etag-reports/zero.pdf")
	if rec.DocID != wantID {
		t.Errorf("DocID = %s, want %s", rec.DocID, wantID)
	}
	if rec.IngestDate != "2026-03-01" {
		t.Errorf("IngestDate = %s", rec.IngestDate)
	}
	if rec.PageCount != 2 || rec.Engine != "fake" {
		t.Errorf("PageCount = %d, Engine = %s", rec.PageCount, rec.Engine)
	}
	if rec.Metadata["title"] != "דוח אפס" || rec.Metadata["doc_id"] != wantID || rec.Metadata["hebrew_detected"] != true {
		t.Errorf("Metadata = %v", rec.Metadata)
	}
	if len(sk.records) != 1 || len(rec.Outputs) != 1 || rec.Outputs[0] != "mem://"+wantID {
		t.Errorf("sink records = %d, outputs = %v", len(sk.records), rec.Outputs)
	}
	if rec.RunID == "" {
		t.Error("RunID should be set")
	}
	if rec.Enriched != nil {
		t.Error("no enricher configured, Enriched should be nil")
	}

	sum := rec.Summarize()
	if sum.Status != "OK" || sum.Fields != 2 || sum.Bucket != "in" {
		t.Errorf("Summarize() = %+v", sum)
	}
}

func TestProcess_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		data    []byte
		pages   []string
		wantErr error
		kind    validate.Kind
	}{
		{"not pdf extension", "a.txt", pdfBytes(), []string{"גוש: 1"}, validate.ErrNotPDF, validate.KindInput},
		{"too small", "a.pdf", []byte("%PDF-1.4"), []string{"גוש: 1"}, validate.ErrTooSmall, validate.KindInput},
		{"missing header", "a.pdf", bytes.Repeat([]byte{'x'}, 2048), []string{"גוש: 1"}, validate.ErrNotPDF, validate.KindInput},
		{"no text", "a.pdf", pdfBytes(), []string{"", "  "}, validate.ErrNoText, validate.KindContent},
		{"not hebrew", "a.pdf", pdfBytes(), []string{"Block 6941"}, validate.ErrNotHebrew, validate.KindContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			store.objects["in/"+tt.key] = tt.data
			sk := &recordingSink{}
			p := newTestPipeline(t, store, &fakeSource{pages: tt.pages}, WithSink(sk))

			_, err := p.Process(context.Background(), "s3://in/"+tt.key)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			rej, ok := validate.IsRejection(err)
			if !ok || rej.Kind != tt.kind {
				t.Errorf("expected %s rejection, got %v", tt.kind, err)
			}
			if len(sk.records) != 0 {
				t.Error("rejected documents must not be persisted")
			}
		})
	}
}

func TestProcess_LoadAndParseErrors(t *testing.T) {
	store := newMemStore()
	store.objects["in/a.pdf"] = pdfBytes()

	p := newTestPipeline(t, store, &fakeSource{pages: []string{"גוש: 1"}})
	if _, err := p.Process(context.Background(), "s3://in/missing.pdf"); !errors.Is(err, ErrLoad) {
		t.Errorf("missing object: error = %v, want ErrLoad", err)
	}
	if _, err := p.Process(context.Background(), "s3://in"); !errors.Is(err, ErrLoad) {
		t.Errorf("bad ref: error = %v, want ErrLoad", err)
	}

	broken := newTestPipeline(t, store, &fakeSource{err: pdftext.ErrParse})
	if _, err := broken.Process(context.Background(), "s3://in/a.pdf"); !errors.Is(err, ErrParse) {
		t.Errorf("parse failure: error = %v, want ErrParse", err)
	}
}

func TestProcess_PersistError(t *testing.T) {
	store := newMemStore()
	store.objects["in/a.pdf"] = pdfBytes()
	p := newTestPipeline(t, store, &fakeSource{pages: []string{"גוש: 1"}},
		WithSink(&recordingSink{err: errors.New("disk full")}))

	rec, err := p.Process(context.Background(), "s3://in/a.pdf")
	if !errors.Is(err, ErrPersist) {
		t.Fatalf("error = %v, want ErrPersist", err)
	}
	if rec == nil || rec.Fields["block"] != "1" {
		t.Error("record should still be returned on persist failure")
	}
}

func TestProcess_RetriesTransientGet(t *testing.T) {
	orig := loadSleep
	loadSleep = func(time.Duration) {}
	defer func() { loadSleep = orig }()

	store := newMemStore()
	store.objects["in/a.pdf"] = pdfBytes()
	store.getErrs = 2

	p := newTestPipeline(t, store, &fakeSource{pages: []string{"גוש: 1"}})
	if _, err := p.Process(context.Background(), "s3://in/a.pdf"); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
}

func TestProcess_MaxPages(t *testing.T) {
	pages := make([]string, 12)
	for i := range pages {
		pages[i] = "עמוד ללא שדות"
	}
	pages[11] = "גוש: 777"

	tests := []struct {
		name     string
		maxPages int
		want     string
	}{
		{"zero scans every page", 0, "777"},
		{"negative scans every page", -1, "777"},
		{"limit stops before last page", 11, ""},
		{"limit covers last page", 12, "777"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			store.objects["in/long.pdf"] = pdfBytes()

			cfg := model.DefaultConfig()
			cfg.Source.MaxPages = tt.maxPages
			p, err := NewPipeline(cfg, WithStore(store), WithSource(&fakeSource{pages: pages}), WithClock(fixedClock))
			if err != nil {
				t.Fatalf("NewPipeline() error = %v", err)
			}

			rec, err := p.Process(context.Background(), "s3://in/long.pdf")
			if err != nil {
				t.Fatalf("Process() error = %v", err)
			}
			if got := rec.Fields[model.FieldBlock]; got != tt.want {
				t.Errorf("block = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestProcess_EmptyExtractionWarns(t *testing.T) {
	store := newMemStore()
	store.objects["in/a.pdf"] = pdfBytes()
	p := newTestPipeline(t, store, &fakeSource{pages: []string{"מסמך ללא תוויות"}})

	rec, err := p.Process(context.Background(), "s3://in/a.pdf")
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(rec.Fields) != 0 || len(rec.Warnings) != 1 {
		t.Errorf("Fields = %v, Warnings = %v", rec.Fields, rec.Warnings)
	}
}

func TestProcess_NumeralsFromAdditions(t *testing.T) {
	store := newMemStore()
	store.objects["in/a.pdf"] = pdfBytes()
	src := &fakeSource{pages: []string{
		"בניין קיים בן 4 קומות\nתוספות בפרויקט: תוספת שלוש קומות ו-2 יח\"ד",
	}}
	p := newTestPipeline(t, store, src)

	rec, err := p.Process(context.Background(), "s3://in/a.pdf")
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	want := model.NumeralFallback{Floors: 3, Units: 2}
	if rec.Numerals != want {
		t.Errorf("Numerals = %+v, want %+v", rec.Numerals, want)
	}
}

func TestProcess_Enrichment(t *testing.T) {
	store := newMemStore()
	store.objects["in/a.pdf"] = pdfBytes()
	src := &fakeSource{pages: []string{"תוספות: תוספת שלוש קומות ו-2 יח\"ד"}}

	provider := &stubProvider{reply: `Here you go: {"new_floors_count": 0, "new_residential_units": 6, "additions_list_he": ["מרפסות"], "summary_he": "תוספת"}`}
	p := newTestPipeline(t, store, src, WithEnricher(llm.NewEnricher(provider)))

	rec, err := p.Process(context.Background(), "s3://in/a.pdf")
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if rec.Enriched == nil {
		t.Fatal("expected enrichment")
	}
	if rec.Enriched.NewFloorsCount != 3 {
		t.Errorf("floors = %d, want fallback 3", rec.Enriched.NewFloorsCount)
	}
	if rec.Enriched.NewResidentialUnits != 6 {
		t.Errorf("units = %d, want model value 6", rec.Enriched.NewResidentialUnits)
	}

	failing := &stubProvider{err: errors.New("quota exceeded")}
	p = newTestPipeline(t, store, src, WithEnricher(llm.NewEnricher(failing)))
	rec, err = p.Process(context.Background(), "s3://in/a.pdf")
	if err != nil {
		t.Fatalf("enrichment failure must not fail the document: %v", err)
	}
	if rec.Enriched != nil || len(rec.Warnings) == 0 {
		t.Errorf("expected warning and no enrichment, got %+v / %v", rec.Enriched, rec.Warnings)
	}
}

func TestProcess_ParallelMatchesSequential(t *testing.T) {
	store := newMemStore()
	store.objects["in/a.pdf"] = pdfBytes()
	src := &fakeSource{pages: []string{"כותרת", "חלקה: 7\nגוש: 300", "גוש: 999\nכתובת: הרצל 1"}}

	seq := newTestPipeline(t, store, src)
	cfg := model.DefaultConfig()
	cfg.Source.Parallel = true
	par, err := NewPipeline(cfg, WithStore(store), WithSource(src), WithClock(fixedClock))
	if err != nil {
		t.Fatal(err)
	}

	a, err := seq.Process(context.Background(), "s3://in/a.pdf")
	if err != nil {
		t.Fatal(err)
	}
	b, err := par.Process(context.Background(), "s3://in/a.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if len(a.Fields) != len(b.Fields) {
		t.Fatalf("sequential %v, parallel %v", a.Fields, b.Fields)
	}
	for k, v := range a.Fields {
		if b.Fields[k] != v {
			t.Errorf("field %s: sequential %q, parallel %q", k, v, b.Fields[k])
		}
	}
}

func TestRenderer(t *testing.T) {
	rec := &model.Record{
		DocID:      "abc",
		IngestDate: "2026-03-01",
		Source:     model.SourceInfo{Key: "zero.pdf"},
		PageCount:  2,
		Fields:     model.ExtractionResult{"block": "100"},
		Matches: []model.ExtractedField{
			{Key: "block", Value: "100", Label: "גוש", Page: 1, Line: 2, Provenance: model.ProvenanceNatural},
		},
		Numerals: model.NumeralFallback{Floors: 3},
		Warnings: []string{"enrichment failed: timeout"},
	}

	md := Markdown(rec)
	for _, want := range []string{"# zero.pdf", "| block | 100 | גוש | 1 | 2 | natural |", "New floors: 3", "enrichment failed"} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q\n%s", want, md)
		}
	}

	r := NewRenderer(true)
	dir := t.TempDir()
	if err := r.RenderJSON(rec, filepath.Join(dir, "r.json")); err != nil {
		t.Fatal(err)
	}
	if err := r.RenderMarkdown(rec, filepath.Join(dir, "r.md")); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "r.md")); err != nil {
		t.Error(err)
	}

	var buf bytes.Buffer
	if err := r.RenderSummary(&buf, rec.Summarize()); err != nil {
		t.Fatal(err)
	}
	if strings.Count(buf.String(), "\n") != 1 || !strings.Contains(buf.String(), `"status":"OK"`) {
		t.Errorf("summary = %q", buf.String())
	}
}
