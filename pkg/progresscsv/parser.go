// Package progresscsv reads construction progress reports exported as CSV.
package progresscsv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"text/tabwriter"
)

// ErrEmpty is returned for input without a header row.
var ErrEmpty = errors.New("csv has no header row")

// Table is a parsed CSV file: one header row and rows of equal width.
type Table struct {
	Columns []string
	Rows    [][]string
}

// Parse reads a whole CSV document.
func Parse(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrEmpty
	}
	return &Table{Columns: records[0], Rows: records[1:]}, nil
}

// NormalizeColumns trims and lowercases headers and replaces spaces with underscores.
func (t *Table) NormalizeColumns() {
	for i, c := range t.Columns {
		t.Columns[i] = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(c)), " ", "_")
	}
}

// Rename renames column from to to, if present.
func (t *Table) Rename(from, to string) {
	for i, c := range t.Columns {
		if c == from {
			t.Columns[i] = to
		}
	}
}

// Index returns the position of column, or -1.
func (t *Table) Index(column string) int {
	for i, c := range t.Columns {
		if c == column {
			return i
		}
	}
	return -1
}

// Has reports whether column exists.
func (t *Table) Has(column string) bool { return t.Index(column) >= 0 }

// Duplicates returns the column names that appear more than once, in order of
// their second occurrence.
func (t *Table) Duplicates() []string {
	seen := make(map[string]int, len(t.Columns))
	var dups []string
	for _, c := range t.Columns {
		seen[c]++
		if seen[c] == 2 {
			dups = append(dups, c)
		}
	}
	return dups
}

// Missing returns the columns of want that are not in the table, in order.
func (t *Table) Missing(want ...string) []string {
	var missing []string
	for _, c := range want {
		if !t.Has(c) {
			missing = append(missing, c)
		}
	}
	return missing
}

// Float reads the cell of row in column as a number. Empty, non-numeric,
// NaN and infinite cells report false.
func (t *Table) Float(row int, column string) (float64, bool) {
	idx := t.Index(column)
	if idx < 0 || row < 0 || row >= len(t.Rows) {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(t.Rows[row][idx]), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// AddColumn appends a derived column. values must have one entry per row.
func (t *Table) AddColumn(name string, values []string) error {
	if len(values) != len(t.Rows) {
		return fmt.Errorf("column %s has %d values for %d rows", name, len(values), len(t.Rows))
	}
	t.Columns = append(t.Columns, name)
	for i := range t.Rows {
		t.Rows[i] = append(t.Rows[i], values[i])
	}
	return nil
}

// Records returns up to limit rows as maps keyed by column. Numeric cells are
// returned as numbers, empty cells as nil. A negative limit returns every row.
func (t *Table) Records(limit int) []map[string]any {
	n := len(t.Rows)
	if limit >= 0 && limit < n {
		n = limit
	}
	out := make([]map[string]any, 0, n)
	for _, row := range t.Rows[:n] {
		rec := make(map[string]any, len(t.Columns))
		for i, c := range t.Columns {
			rec[c] = cellValue(row[i])
		}
		out = append(out, rec)
	}
	return out
}

func cellValue(cell string) any {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return nil
	}
	if i, err := strconv.ParseInt(cell, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(cell, 64); err == nil {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil
		}
		return f
	}
	return cell
}

// String renders the table as aligned text with a leading row index.
func (t *Table) String() string {
	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(w, "\t%s\t\n", strings.Join(t.Columns, "\t"))
	for i, row := range t.Rows {
		cells := make([]string, len(row))
		for j, c := range row {
			if c == "" {
				c = "NaN"
			}
			cells[j] = c
		}
		fmt.Fprintf(w, "%d\t%s\t\n", i, strings.Join(cells, "\t"))
	}
	w.Flush()
	return sb.String()
}
