// Package export writes batch results as spreadsheets.
package export

import (
	"bytes"
	"fmt"
	"os"

	"github.com/xuri/excelize/v2"

	"github.com/ppiankov/nesach/internal/model"
)

// SheetName is the worksheet holding one row per document
const SheetName = "Extractions"

// Row is one document's outcome in a batch
type Row struct {
	Source string
	Record *model.Record // nil when processing failed
	Err    error
}

var headers = []string{
	"Source",
	"Status",
	"Doc ID",
	"Ingest Date",
	"Pages",
	model.FieldBlock,
	model.FieldPlot,
	model.FieldRegisteredArea,
	model.FieldAddress,
	model.FieldProjectAdditions,
	"New Floors",
	"New Units",
	"Summary",
	"Warnings",
	"Error",
}

// XLSX renders rows into a workbook and returns its bytes
func XLSX(rows []Row) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if _, err := f.NewSheet(SheetName); err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	idx, _ := f.GetSheetIndex(SheetName)
	f.SetActiveSheet(idx)
	_ = f.DeleteSheet("Sheet1")

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(SheetName, cell, h); err != nil {
			return nil, fmt.Errorf("write header: %w", err)
		}
	}

	for r, row := range rows {
		values := rowValues(row)
		for c, v := range values {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellValue(SheetName, cell, v); err != nil {
				return nil, fmt.Errorf("write row %d: %w", r+1, err)
			}
		}
	}

	_ = f.SetColWidth(SheetName, "A", "A", 48)
	_ = f.SetColWidth(SheetName, "C", "D", 18)
	_ = f.SetColWidth(SheetName, "F", "H", 14)
	_ = f.SetColWidth(SheetName, "I", "J", 36)
	_ = f.SetColWidth(SheetName, "M", "O", 48)
	// Hebrew values read right-to-left
	_ = f.SetSheetView(SheetName, 0, &excelize.ViewOptions{RightToLeft: boolPtr(true)})
	_ = f.SetPanes(SheetName, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteXLSX renders rows to path
func WriteXLSX(path string, rows []Row) error {
	data, err := XLSX(rows)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func rowValues(row Row) []any {
	values := make([]any, len(headers))
	values[0] = row.Source
	if row.Err != nil || row.Record == nil {
		values[1] = "ERROR"
		if row.Err != nil {
			values[14] = row.Err.Error()
		}
		return values
	}

	rec := row.Record
	values[1] = "OK"
	values[2] = rec.DocID
	values[3] = rec.IngestDate
	values[4] = rec.PageCount
	for i, key := range headers[5:10] {
		values[5+i] = rec.Fields[key]
	}

	floors, units := rec.Numerals.Floors, rec.Numerals.Units
	if rec.Enriched != nil {
		floors, units = rec.Enriched.NewFloorsCount, rec.Enriched.NewResidentialUnits
		values[12] = rec.Enriched.SummaryHe
	}
	values[10] = floors
	values[11] = units
	values[13] = joinLines(rec.Warnings)
	return values
}

func joinLines(lines []string) string {
	var b bytes.Buffer
	for i, l := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(l)
	}
	return b.String()
}

func boolPtr(b bool) *bool { return &b }
