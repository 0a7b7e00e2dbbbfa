// Package table holds the tabular input/output model: loading CSV, TSV and
// XLSX files, sampling and truncation, row filtering, and the final left-join
// of checkpoint records back onto the original rows.
package table

import (
	"encoding/csv"
	"fmt"
	"math/rand"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/yourorg/textbatch/pkg/types"
)

// Table is an in-memory table. Cells are strings; a row's position is its
// identity for the whole run.
type Table struct {
	Columns []string
	Rows    [][]string
}

// Load reads a table from path, dispatching on the file extension.
func Load(path string) (*Table, error) {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".csv"):
		return loadCSV(path, ',')
	case strings.HasSuffix(lower, ".tsv"):
		return loadCSV(path, '\t')
	case strings.HasSuffix(lower, ".xlsx"):
		return loadXLSX(path)
	default:
		return nil, fmt.Errorf("unsupported input file type: %s", path)
	}
}

func loadCSV(path string, comma rune) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = comma
	r.LazyQuotes = true
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1
	all, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("empty input file: %s", path)
	}
	return fromRows(all), nil
}

func loadXLSX(path string) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets in %s", path)
	}
	all, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("empty input file: %s", path)
	}
	return fromRows(all), nil
}

// fromRows treats the first row as the header and pads short rows so every
// row has one cell per column.
func fromRows(all [][]string) *Table {
	header := all[0]
	rows := make([][]string, 0, len(all)-1)
	for _, row := range all[1:] {
		for len(row) < len(header) {
			row = append(row, "")
		}
		rows = append(rows, row[:len(header)])
	}
	return &Table{Columns: header, Rows: rows}
}

// ColumnIndex returns the position of a named column.
func (t *Table) ColumnIndex(name string) (int, bool) {
	for i, c := range t.Columns {
		if c == name {
			return i, true
		}
	}
	return 0, false
}

// Len reports the number of data rows.
func (t *Table) Len() int { return len(t.Rows) }

// Head returns a table restricted to the first n rows.
func (t *Table) Head(n int) *Table {
	if n <= 0 || n >= len(t.Rows) {
		return t
	}
	return &Table{Columns: t.Columns, Rows: t.Rows[:n]}
}

// Sample returns a uniform random sample of n rows, reindexed from zero. The
// same seed always yields the same sample, making test runs reproducible. A
// sample size of zero or one covering the whole table returns the table as is.
func (t *Table) Sample(n int, seed int64) *Table {
	if n <= 0 || n >= len(t.Rows) {
		return t
	}
	rng := rand.New(rand.NewSource(seed))
	perm := rng.Perm(len(t.Rows))
	rows := make([][]string, 0, n)
	for _, idx := range perm[:n] {
		rows = append(rows, t.Rows[idx])
	}
	return &Table{Columns: t.Columns, Rows: rows}
}

// SelectRows builds the work units for the given row positions. The text
// column is required; id and author columns are optional but must exist when
// named. A missing column is a structural error and aborts before dispatch.
func (t *Table) SelectRows(textCol, idCol, authorCol string, selected []int) ([]types.Row, error) {
	ti, ok := t.ColumnIndex(textCol)
	if !ok {
		return nil, fmt.Errorf("column %q not found in input", textCol)
	}
	ii := -1
	if idCol != "" {
		if ii, ok = t.ColumnIndex(idCol); !ok {
			return nil, fmt.Errorf("column %q not found in input", idCol)
		}
	}
	ai := -1
	if authorCol != "" {
		if ai, ok = t.ColumnIndex(authorCol); !ok {
			return nil, fmt.Errorf("column %q not found in input", authorCol)
		}
	}

	rows := make([]types.Row, 0, len(selected))
	for _, idx := range selected {
		row := types.Row{Index: idx, Payload: t.Rows[idx][ti]}
		if ii >= 0 {
			row.ID = t.Rows[idx][ii]
		}
		if ai >= 0 {
			row.Author = t.Rows[idx][ai]
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// WriteCSV writes the table to path.
func (t *Table) WriteCSV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(t.Columns); err != nil {
		return err
	}
	for _, row := range t.Rows {
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
