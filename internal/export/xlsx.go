package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/bartosicilia/TaxlexIA/internal/pipeline"
	"github.com/bartosicilia/TaxlexIA/internal/vendors"
)

const (
	ResultsSheet       = "Audit Results"
	VendorHistorySheet = "Vendor History"
	columnWidth        = 20
)

var vendorHeaders = []string{"Vendor", "Location", "Activity", "Has Charged Tax Before", "Last Seen"}

// DefaultFileName returns the results workbook name for a batch finished at now.
func DefaultFileName(now time.Time) string {
	return "Tax_Audit_OCR_" + now.Format("1504") + ".xlsx"
}

// ResultsXLSX renders the batch table as a single-sheet workbook.
func ResultsXLSX(t *pipeline.Table) ([]byte, error) {
	rows := make([][]any, len(t.Rows))
	copy(rows, t.Rows)
	return writeSheet(ResultsSheet, t.Columns, rows)
}

// VendorHistoryXLSX renders vendor history records.
func VendorHistoryXLSX(records []vendors.Record) ([]byte, error) {
	rows := make([][]any, 0, len(records))
	for _, r := range records {
		rows = append(rows, []any{r.Vendor, r.Location, r.Activity, r.HasChargedTaxBefore, r.LastSeen})
	}
	return writeSheet(VendorHistorySheet, vendorHeaders, rows)
}

// ReadVendorHistoryXLSX loads records written by VendorHistoryXLSX. Columns
// are matched by header so extra or reordered columns are tolerated.
func ReadVendorHistoryXLSX(r io.Reader) ([]vendors.Record, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(VendorHistorySheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", VendorHistorySheet, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	idx := map[string]int{}
	for i, h := range rows[0] {
		idx[h] = i
	}
	for _, h := range vendorHeaders[:2] {
		if _, ok := idx[h]; !ok {
			return nil, fmt.Errorf("sheet %q: missing column %q", VendorHistorySheet, h)
		}
	}
	cell := func(row []string, h string) string {
		i, ok := idx[h]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	out := make([]vendors.Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) == 0 {
			continue
		}
		out = append(out, vendors.Record{
			Vendor:              cell(row, "Vendor"),
			Location:            cell(row, "Location"),
			Activity:            cell(row, "Activity"),
			HasChargedTaxBefore: cell(row, "Has Charged Tax Before"),
			LastSeen:            cell(row, "Last Seen"),
		})
	}
	return out, nil
}

func writeSheet(sheet string, headers []string, rows [][]any) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, fmt.Errorf("write header %q: %w", h, err)
		}
	}
	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return nil, fmt.Errorf("write cell %s: %w", cell, err)
			}
		}
	}

	if len(headers) > 0 {
		last, _ := excelize.ColumnNumberToName(len(headers))
		if err := f.SetColWidth(sheet, "A", last, columnWidth); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}
