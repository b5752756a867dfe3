package pipeline

import (
	"github.com/bartosicilia/TaxlexIA/constants"
	"github.com/bartosicilia/TaxlexIA/internal/llm"
)

// Table is the rectangular batch result: one row per input file.
type Table struct {
	Columns []string
	Rows    [][]any
}

// Materialize lays records out under headers. With no headers the columns
// are the union of record keys in first-seen order. Missing values are "N/A".
func Materialize(records []*llm.Fields, headers []string) *Table {
	cols := headers
	if len(cols) == 0 {
		seen := map[string]struct{}{}
		for _, r := range records {
			for _, k := range r.Keys() {
				if _, ok := seen[k]; !ok {
					seen[k] = struct{}{}
					cols = append(cols, k)
				}
			}
		}
	}
	cols = append([]string(nil), cols...)

	rows := make([][]any, len(records))
	for i, r := range records {
		row := make([]any, len(cols))
		for j, c := range cols {
			if v, ok := r.Get(c); ok {
				row[j] = v
			} else {
				row[j] = constants.MissingValue
			}
		}
		rows[i] = row
	}
	return &Table{Columns: cols, Rows: rows}
}

// Value returns the cell at row for column name.
func (t *Table) Value(row int, column string) (any, bool) {
	if row < 0 || row >= len(t.Rows) {
		return nil, false
	}
	for j, c := range t.Columns {
		if c == column {
			return t.Rows[row][j], true
		}
	}
	return nil, false
}
