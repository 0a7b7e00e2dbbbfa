package checkpoint

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/yourorg/textbatch/pkg/types"
)

func newTestLog(t *testing.T) *Log {
	t.Helper()
	return Open(filepath.Join(t.TempDir(), "progress.jsonl"), nil)
}

func TestAppendAndReadAll(t *testing.T) {
	l := newTestLog(t)
	recs := []types.Record{
		{RowIndex: 0, Success: true, ParsingOK: true, Fields: map[string]any{"sentiment": "positive"}, RawResponse: `{"sentiment":"positive"}`, HasRaw: true},
		{RowIndex: 1, Success: false, Error: "HTTP 500: boom"},
	}
	if err := l.Append(recs); err != nil {
		t.Fatal(err)
	}
	got, err := l.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if got[0].RowIndex != 0 || !got[0].Success || got[0].Fields["sentiment"] != "positive" {
		t.Fatalf("record 0 mismatch: %+v", got[0])
	}
	if got[1].RowIndex != 1 || got[1].Success || got[1].Error != "HTTP 500: boom" {
		t.Fatalf("record 1 mismatch: %+v", got[1])
	}
}

func TestReadAllMissingFile(t *testing.T) {
	l := newTestLog(t)
	got, err := l.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatalf("expected empty log, got %d records", len(got))
	}
}

func TestReadAllSkipsBlankAndMalformedLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "progress.jsonl")
	content := `{"row_index":0,"success":true,"parsing_success":true}

not json at all
{"row_index":2,"success":true,"parsing_success":true}
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	l := Open(path, nil)
	got, err := l.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if got[0].RowIndex != 0 || got[1].RowIndex != 2 {
		t.Fatalf("unexpected rows: %d %d", got[0].RowIndex, got[1].RowIndex)
	}
}

func TestRowIndicesCollapsesDuplicates(t *testing.T) {
	l := newTestLog(t)
	// Array fan-out writes several records for one row.
	if err := l.Append([]types.Record{
		{RowIndex: 3, Success: true},
		{RowIndex: 3, Success: true},
		{RowIndex: 7, Success: false, Error: "x"},
	}); err != nil {
		t.Fatal(err)
	}
	set, err := l.RowIndices()
	if err != nil {
		t.Fatal(err)
	}
	if len(set) != 2 {
		t.Fatalf("expected 2 indices, got %d", len(set))
	}
	if _, ok := set[3]; !ok {
		t.Fatalf("row 3 missing")
	}
	if _, ok := set[7]; !ok {
		t.Fatalf("row 7 missing")
	}
}

func TestAppendAcrossReopens(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "progress.jsonl")
	first := Open(path, nil)
	if err := first.Append([]types.Record{{RowIndex: 0, Success: true}}); err != nil {
		t.Fatal(err)
	}
	second := Open(path, nil)
	if err := second.Append([]types.Record{{RowIndex: 1, Success: true}}); err != nil {
		t.Fatal(err)
	}
	got, err := second.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("log not cumulative across opens: %d records", len(got))
	}
}
