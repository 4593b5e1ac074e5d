package export

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/ppiankov/nesach/internal/model"
)

func TestXLSX_Rows(t *testing.T) {
	rows := []Row{
		{
			Source: "s3://in/a.pdf",
			Record: &model.Record{
				DocID:      "abc",
				IngestDate: "2026-03-01",
				PageCount:  3,
				Fields:     model.ExtractionResult{"block": "6941", "address": "רחוב הרצל 5"},
				Numerals:   model.NumeralFallback{Floors: 3, Units: 2},
				Warnings:   []string{"enrichment skipped"},
			},
		},
		{Source: "b.pdf", Err: errors.New("not hebrew")},
	}

	data, err := XLSX(rows)
	if err != nil {
		t.Fatalf("XLSX() error = %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer func() { _ = f.Close() }()

	got, err := f.GetRows(SheetName)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(got))
	}
	if got[0][5] != "block" {
		t.Errorf("header[5] = %q", got[0][5])
	}

	ok := got[1]
	checks := map[int]string{0: "s3://in/a.pdf", 1: "OK", 2: "abc", 5: "6941", 8: "רחוב הרצל 5", 10: "3", 11: "2", 13: "enrichment skipped"}
	for col, want := range checks {
		if ok[col] != want {
			t.Errorf("row 1 col %d = %q, want %q", col, ok[col], want)
		}
	}

	bad := got[2]
	if bad[1] != "ERROR" || bad[len(bad)-1] != "not hebrew" {
		t.Errorf("error row = %v", bad)
	}
}

func TestXLSX_EnrichmentOverridesNumerals(t *testing.T) {
	rows := []Row{{
		Source: "a.pdf",
		Record: &model.Record{
			Numerals: model.NumeralFallback{Floors: 1},
			Enriched: &model.Enrichment{NewFloorsCount: 4, NewResidentialUnits: 8, SummaryHe: "תוספת קומות"},
		},
	}}
	data, err := XLSX(rows)
	if err != nil {
		t.Fatal(err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = f.Close() }()

	floors, _ := f.GetCellValue(SheetName, "K2")
	summary, _ := f.GetCellValue(SheetName, "M2")
	if floors != "4" || summary != "תוספת קומות" {
		t.Errorf("K2 = %q, M2 = %q", floors, summary)
	}
}

func TestWriteXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xlsx")
	if err := WriteXLSX(path, nil); err != nil {
		t.Fatalf("WriteXLSX() error = %v", err)
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_ = f.Close()
}
