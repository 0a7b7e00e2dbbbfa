// Package store keeps a durable history of runs in SQLite so past batches
// can be listed and inspected after the fact.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/yourorg/textbatch/pkg/types"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	s := &SQLiteStore{db: db}
	if err := s.Init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) Init() error {
	if _, err := s.db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		return err
	}
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		input_path TEXT NOT NULL,
		output_path TEXT NOT NULL,
		model TEXT NOT NULL,
		total_rows INTEGER NOT NULL DEFAULT 0,
		processed INTEGER NOT NULL DEFAULT 0,
		succeeded INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		api_calls INTEGER NOT NULL DEFAULT 0,
		cache_hits INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		error_msg TEXT NOT NULL DEFAULT '',
		started_at DATETIME NOT NULL,
		finished_at DATETIME
	);`)
	return err
}

// CreateRun registers a new run in the "running" state and assigns its ID.
func (s *SQLiteStore) CreateRun(kind, inputPath, outputPath, model string) (*types.Run, error) {
	now := time.Now().UTC()
	id, err := s.nextRunID(now)
	if err != nil {
		return nil, err
	}
	run := &types.Run{
		ID: id, Kind: kind, InputPath: inputPath, OutputPath: outputPath,
		Model: model, Status: "running", StartedAt: now,
	}
	_, err = s.db.Exec(`INSERT INTO runs(id,kind,input_path,output_path,model,status,started_at) VALUES(?,?,?,?,?,?,?)`,
		run.ID, run.Kind, run.InputPath, run.OutputPath, run.Model, run.Status, run.StartedAt)
	return run, err
}

func (s *SQLiteStore) nextRunID(now time.Time) (string, error) {
	prefix := fmt.Sprintf("run_%s_", now.Format("20060102"))
	rows, err := s.db.Query(`SELECT id FROM runs WHERE id LIKE ?`, prefix+"%")
	if err != nil {
		return "", err
	}
	defer rows.Close()
	maxN := 0
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", err
		}
		var n int
		_, _ = fmt.Sscanf(id, prefix+"%03d", &n)
		if n > maxN {
			maxN = n
		}
	}
	return fmt.Sprintf("%s%03d", prefix, maxN+1), nil
}

// FinishRun records the final counters and status for a run.
func (s *SQLiteStore) FinishRun(run *types.Run) error {
	run.FinishedAt = time.Now().UTC()
	_, err := s.db.Exec(`UPDATE runs SET total_rows=?, processed=?, succeeded=?, failed=?, api_calls=?, cache_hits=?, status=?, error_msg=?, finished_at=? WHERE id=?`,
		run.TotalRows, run.Processed, run.Succeeded, run.Failed, run.APICalls, run.CacheHits, run.Status, run.ErrorMsg, run.FinishedAt, run.ID)
	return err
}

func (s *SQLiteStore) GetRun(id string) (*types.Run, error) {
	row := s.db.QueryRow(`SELECT id,kind,input_path,output_path,model,total_rows,processed,succeeded,failed,api_calls,cache_hits,status,error_msg,started_at,COALESCE(finished_at,started_at) FROM runs WHERE id=?`, id)
	var out types.Run
	if err := row.Scan(&out.ID, &out.Kind, &out.InputPath, &out.OutputPath, &out.Model, &out.TotalRows, &out.Processed, &out.Succeeded, &out.Failed, &out.APICalls, &out.CacheHits, &out.Status, &out.ErrorMsg, &out.StartedAt, &out.FinishedAt); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *SQLiteStore) ListRuns() ([]types.Run, error) {
	rows, err := s.db.Query(`SELECT id,kind,input_path,output_path,model,total_rows,processed,succeeded,failed,api_calls,cache_hits,status,error_msg,started_at,COALESCE(finished_at,started_at) FROM runs ORDER BY started_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []types.Run
	for rows.Next() {
		var r types.Run
		if err := rows.Scan(&r.ID, &r.Kind, &r.InputPath, &r.OutputPath, &r.Model, &r.TotalRows, &r.Processed, &r.Succeeded, &r.Failed, &r.APICalls, &r.CacheHits, &r.Status, &r.ErrorMsg, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return errors.New("store is nil")
	}
	return s.db.Close()
}
