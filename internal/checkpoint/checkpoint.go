// Package checkpoint is the durable, append-only log of completed row
// outcomes. It is the single crash-recovery mechanism: a record that reached
// the log survives, anything else is regenerated on the next run. One JSON
// object per line; the set of row_index values present defines exactly the
// rows a resumed run must skip.
package checkpoint

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/yourorg/textbatch/pkg/types"
)

// maxLineSize caps a single checkpoint line; raw model responses can be large.
const maxLineSize = 16 * 1024 * 1024

// Log serializes appends internally; a single file backs possibly many runs.
type Log struct {
	mu     sync.Mutex
	path   string
	logger *slog.Logger
}

// Open returns a log over path. The file is created lazily on first append.
func Open(path string, logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{path: path, logger: logger}
}

// Path returns the backing file path.
func (l *Log) Path() string { return l.path }

// Append durably appends records in order. The write is flushed and synced
// before returning, so a crash immediately after cannot lose them.
func (l *Log) Append(records []types.Record) error {
	if len(records) == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open checkpoint log: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encode checkpoint record: %w", err)
		}
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("append checkpoint records: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync checkpoint log: %w", err)
	}
	return nil
}

// ReadAll returns every record in the log. Blank lines are ignored; a
// malformed line is skipped with a warning, never fatal. A missing file is an
// empty log.
func (l *Log) ReadAll() ([]types.Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open checkpoint log: %w", err)
	}
	defer f.Close()

	var out []types.Record
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var r types.Record
		if err := json.Unmarshal(line, &r); err != nil {
			l.logger.Warn("skipping malformed checkpoint line", "line", lineNo, "error", err)
			continue
		}
		out = append(out, r)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read checkpoint log: %w", err)
	}
	return out, nil
}

// RowIndices returns the set of checkpointed rows. Duplicate appends for a
// row collapse; the set only answers "is this row done".
func (l *Log) RowIndices() (map[int]struct{}, error) {
	records, err := l.ReadAll()
	if err != nil {
		return nil, err
	}
	set := make(map[int]struct{}, len(records))
	for _, r := range records {
		set[r.RowIndex] = struct{}{}
	}
	return set, nil
}
