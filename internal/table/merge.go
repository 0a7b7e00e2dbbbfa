package table

import (
	"encoding/json"
	"sort"
	"strconv"

	"github.com/yourorg/textbatch/pkg/types"
)

// Diagnostic columns appended after the extracted fields in the final table.
var diagColumns = []string{"processing_success", "parsing_success", "from_cache", "raw_response", "processing_error"}

// Merge left-joins checkpoint records onto the full original table by row
// position. Every original row appears in the output: rows with no record
// keep empty result cells, and a row whose response fanned out into several
// records appears once per record. Records are sorted by row index first so
// the output is deterministic regardless of completion order.
func Merge(t *Table, records []types.Record, fields []string) *Table {
	sorted := make([]types.Record, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].RowIndex < sorted[j].RowIndex })

	byRow := make(map[int][]types.Record, len(sorted))
	for _, r := range sorted {
		byRow[r.RowIndex] = append(byRow[r.RowIndex], r)
	}

	columns := make([]string, 0, len(t.Columns)+1+len(fields)+len(diagColumns))
	columns = append(columns, "row_index")
	columns = append(columns, t.Columns...)
	columns = append(columns, fields...)
	columns = append(columns, diagColumns...)

	out := &Table{Columns: columns}
	for i, orig := range t.Rows {
		recs := byRow[i]
		if len(recs) == 0 {
			row := baseRow(i, orig, len(fields))
			row = append(row, "", "", "", "", "")
			out.Rows = append(out.Rows, row)
			continue
		}
		for _, r := range recs {
			row := baseRow(i, orig, 0)
			for _, f := range fields {
				row = append(row, formatValue(r.Fields[f]))
			}
			raw := ""
			if r.HasRaw {
				raw = r.RawResponse
			}
			row = append(row,
				strconv.FormatBool(r.Success),
				strconv.FormatBool(r.ParsingOK),
				strconv.FormatBool(r.FromCache),
				raw,
				r.Error,
			)
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}

func baseRow(idx int, orig []string, emptyFields int) []string {
	row := make([]string, 0, 1+len(orig)+emptyFields+len(diagColumns))
	row = append(row, strconv.Itoa(idx))
	row = append(row, orig...)
	for i := 0; i < emptyFields; i++ {
		row = append(row, "")
	}
	return row
}

// formatValue renders an extracted field into a CSV cell. Structured values
// keep their JSON form so lists and nested objects survive the round trip.
func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
