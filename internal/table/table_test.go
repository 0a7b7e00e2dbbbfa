package table

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/yourorg/textbatch/pkg/types"
)

func writeCSVFixture(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadCSV(t *testing.T) {
	path := writeCSVFixture(t, "id,text,status\n1,hello,pending\n2,world\n")
	tbl, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(tbl.Columns, []string{"id", "text", "status"}) {
		t.Fatalf("unexpected columns: %v", tbl.Columns)
	}
	if tbl.Len() != 2 {
		t.Fatalf("expected 2 rows, got %d", tbl.Len())
	}
	// Short row padded to the header width.
	if tbl.Rows[1][2] != "" {
		t.Fatalf("expected padded cell, got %q", tbl.Rows[1][2])
	}
}

func TestLoadTSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input.tsv")
	if err := os.WriteFile(path, []byte("id\ttext\n1\thello\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	tbl, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if tbl.Rows[0][1] != "hello" {
		t.Fatalf("tsv cell mismatch: %q", tbl.Rows[0][1])
	}
}

func TestLoadXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input.xlsx")
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	_ = f.SetSheetRow(sheet, "A1", &[]any{"id", "text"})
	_ = f.SetSheetRow(sheet, "A2", &[]any{"1", "hello"})
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}
	_ = f.Close()

	tbl, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if tbl.Len() != 1 || tbl.Rows[0][1] != "hello" {
		t.Fatalf("xlsx load mismatch: %+v", tbl.Rows)
	}
}

func TestLoadUnsupportedExtension(t *testing.T) {
	if _, err := Load("input.parquet"); err == nil {
		t.Fatalf("expected error for unsupported extension")
	}
}

func TestHead(t *testing.T) {
	tbl := &Table{Columns: []string{"a"}, Rows: [][]string{{"1"}, {"2"}, {"3"}}}
	if got := tbl.Head(2).Len(); got != 2 {
		t.Fatalf("head(2) = %d rows", got)
	}
	if got := tbl.Head(0).Len(); got != 3 {
		t.Fatalf("head(0) should keep all rows, got %d", got)
	}
	if got := tbl.Head(10).Len(); got != 3 {
		t.Fatalf("head(10) should keep all rows, got %d", got)
	}
}

func TestSampleReproducible(t *testing.T) {
	tbl := &Table{Columns: []string{"a"}}
	for i := 0; i < 100; i++ {
		tbl.Rows = append(tbl.Rows, []string{string(rune('a' + i%26))})
	}
	s1 := tbl.Sample(10, 42)
	s2 := tbl.Sample(10, 42)
	if !reflect.DeepEqual(s1.Rows, s2.Rows) {
		t.Fatalf("same seed produced different samples")
	}
	if s1.Len() != 10 {
		t.Fatalf("expected 10 rows, got %d", s1.Len())
	}
	if reflect.DeepEqual(s1.Rows, tbl.Sample(10, 7).Rows) {
		t.Fatalf("different seeds should usually differ")
	}
}

func TestSampleLargerThanTable(t *testing.T) {
	tbl := &Table{Columns: []string{"a"}, Rows: [][]string{{"1"}, {"2"}}}
	if got := tbl.Sample(5, 1).Len(); got != 2 {
		t.Fatalf("oversized sample should keep all rows, got %d", got)
	}
}

func TestFilterConditions(t *testing.T) {
	tbl := &Table{
		Columns: []string{"id", "status"},
		Rows:    [][]string{{"1", "pending"}, {"2", "done"}, {"3", "pending"}, {"4", "failed"}},
	}
	cases := []struct {
		name string
		spec *FilterSpec
		want []int
	}{
		{"nil spec selects all", nil, []int{0, 1, 2, 3}},
		{"in", &FilterSpec{Column: "status", Values: []string{"pending", "failed"}, Condition: CondIn}, []int{0, 2, 3}},
		{"not_in", &FilterSpec{Column: "status", Values: []string{"done"}, Condition: CondNotIn}, []int{0, 2, 3}},
		{"equals", &FilterSpec{Column: "status", Values: []string{"done"}, Condition: CondEquals}, []int{1}},
		{"not_equals", &FilterSpec{Column: "status", Values: []string{"pending"}, Condition: CondNotEquals}, []int{1, 3}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tbl.Filter(tc.spec)
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("got %v want %v", got, tc.want)
			}
		})
	}
}

func TestFilterStructuralErrors(t *testing.T) {
	tbl := &Table{Columns: []string{"id"}, Rows: [][]string{{"1"}}}
	if _, err := tbl.Filter(&FilterSpec{Column: "missing", Condition: CondIn}); err == nil {
		t.Fatalf("expected error for missing filter column")
	}
	if _, err := tbl.Filter(&FilterSpec{Column: "id", Condition: "between"}); err == nil {
		t.Fatalf("expected error for unknown condition")
	}
}

func TestSelectRows(t *testing.T) {
	tbl := &Table{
		Columns: []string{"uid", "author", "text"},
		Rows:    [][]string{{"u1", "alice", "first"}, {"u2", "bob", "second"}},
	}
	rows, err := tbl.SelectRows("text", "uid", "author", []int{1})
	if err != nil {
		t.Fatal(err)
	}
	want := types.Row{Index: 1, Payload: "second", ID: "u2", Author: "bob"}
	if rows[0] != want {
		t.Fatalf("got %+v want %+v", rows[0], want)
	}

	if _, err := tbl.SelectRows("missing", "", "", []int{0}); err == nil {
		t.Fatalf("expected error for missing text column")
	}
	if _, err := tbl.SelectRows("text", "nope", "", []int{0}); err == nil {
		t.Fatalf("expected error for missing id column")
	}
}

func TestMergeTotalOutput(t *testing.T) {
	tbl := &Table{Columns: []string{"text"}, Rows: [][]string{{"a"}, {"b"}, {"c"}}}
	records := []types.Record{
		{RowIndex: 2, Success: true, ParsingOK: true, Fields: map[string]any{"sentiment": "neg"}, RawResponse: "r2", HasRaw: true},
		{RowIndex: 0, Success: true, ParsingOK: true, Fields: map[string]any{"sentiment": "pos"}, RawResponse: "r0", HasRaw: true},
	}
	out := Merge(tbl, records, []string{"sentiment"})
	if out.Len() != 3 {
		t.Fatalf("merge must be total over input rows, got %d", out.Len())
	}
	si, _ := out.ColumnIndex("sentiment")
	if out.Rows[0][si] != "pos" || out.Rows[2][si] != "neg" {
		t.Fatalf("records not re-sorted by row index: %v", out.Rows)
	}
	// Row 1 has no record: empty result fields, empty diagnostics.
	pi, _ := out.ColumnIndex("processing_success")
	if out.Rows[1][si] != "" || out.Rows[1][pi] != "" {
		t.Fatalf("unprocessed row should carry empty cells: %v", out.Rows[1])
	}
}

func TestMergeFanOut(t *testing.T) {
	tbl := &Table{Columns: []string{"text"}, Rows: [][]string{{"a"}}}
	records := []types.Record{
		{RowIndex: 0, Success: true, ParsingOK: true, Fields: map[string]any{"topic": "t1"}},
		{RowIndex: 0, Success: true, ParsingOK: true, Fields: map[string]any{"topic": "t2"}},
	}
	out := Merge(tbl, records, []string{"topic"})
	if out.Len() != 2 {
		t.Fatalf("fan-out should duplicate the joined row, got %d", out.Len())
	}
	ri, _ := out.ColumnIndex("row_index")
	if out.Rows[0][ri] != "0" || out.Rows[1][ri] != "0" {
		t.Fatalf("fan-out rows must share the row index")
	}
}

func TestMergeValueFormatting(t *testing.T) {
	tbl := &Table{Columns: []string{"text"}, Rows: [][]string{{"a"}}}
	records := []types.Record{{
		RowIndex: 0, Success: true, ParsingOK: true,
		Fields: map[string]any{
			"confidence": 0.95,
			"keywords":   []any{"k1", "k2"},
			"flag":       true,
			"missing":    nil,
		},
	}}
	out := Merge(tbl, records, []string{"confidence", "keywords", "flag", "missing"})
	row := out.Rows[0]
	get := func(col string) string {
		i, ok := out.ColumnIndex(col)
		if !ok {
			t.Fatalf("column %s missing", col)
		}
		return row[i]
	}
	if get("confidence") != "0.95" {
		t.Fatalf("confidence = %q", get("confidence"))
	}
	if get("keywords") != `["k1","k2"]` {
		t.Fatalf("keywords = %q", get("keywords"))
	}
	if get("flag") != "true" {
		t.Fatalf("flag = %q", get("flag"))
	}
	if get("missing") != "" {
		t.Fatalf("missing = %q", get("missing"))
	}
}

func TestWriteCSVRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.csv")
	tbl := &Table{Columns: []string{"a", "b"}, Rows: [][]string{{"1", "x,y"}, {"2", "z"}}}
	if err := tbl.WriteCSV(path); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got.Rows, tbl.Rows) {
		t.Fatalf("round trip mismatch: %v", got.Rows)
	}
}
