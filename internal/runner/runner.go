// Package runner orchestrates a batch run: load and narrow the input table,
// subtract already-checkpointed rows, dispatch the remainder in fixed-size
// batches through a rate-limited invoker, and join the checkpoint log back
// onto the table.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yourorg/textbatch/internal/cache"
	"github.com/yourorg/textbatch/internal/checkpoint"
	"github.com/yourorg/textbatch/internal/table"
	"github.com/yourorg/textbatch/pkg/types"
)

// Config caps and paces the run.
type Config struct {
	Concurrency   int
	Timeout       time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
	BatchSize     int
	OutputFields  []string
}

// Job names the table columns and narrowing applied before dispatch.
type Job struct {
	TextColumn   string
	IDColumn     string
	AuthorColumn string
	Filter       *table.FilterSpec
	SampleSize   int
	SampleSeed   int64
	MaxRows      int
}

// Summary is the end-of-run accounting.
type Summary struct {
	Total     int
	Selected  int
	Resumed   int
	Processed int
	Succeeded int
	Failed    int
	APICalls  int64
	CacheHits int64
}

// Runner drives one client through one table.
type Runner struct {
	cfg    Config
	inv    *Invoker
	cache  *cache.Cache
	log    *checkpoint.Log
	logger *slog.Logger
}

// New wires a runner. Cache may be nil to disable caching.
func New(cfg Config, client Client, c *cache.Cache, log *checkpoint.Log, logger *slog.Logger) *Runner {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		cfg:    cfg,
		inv:    NewInvoker(client, c, cfg.OutputFields, cfg.Concurrency, cfg.RetryAttempts, cfg.Timeout, cfg.RetryDelay),
		cache:  c,
		log:    log,
		logger: logger,
	}
}

// Run processes the table and returns the merged output. Only structural
// problems return an error, and they do so before any row is dispatched;
// per-row failures land in the output as failure records.
func (r *Runner) Run(ctx context.Context, tbl *table.Table, job Job) (*table.Table, *Summary, error) {
	// Sampling reindexes from zero and takes precedence over truncation,
	// so the sampled table is the canonical one for the rest of the run.
	if job.SampleSize > 0 {
		tbl = tbl.Sample(job.SampleSize, job.SampleSeed)
	} else if job.MaxRows > 0 {
		tbl = tbl.Head(job.MaxRows)
	}

	selected, err := tbl.Filter(job.Filter)
	if err != nil {
		return nil, nil, err
	}
	rows, err := tbl.SelectRows(job.TextColumn, job.IDColumn, job.AuthorColumn, selected)
	if err != nil {
		return nil, nil, err
	}

	done, err := r.log.RowIndices()
	if err != nil {
		return nil, nil, fmt.Errorf("read checkpoint: %w", err)
	}
	pending := rows[:0:0]
	for _, row := range rows {
		if _, ok := done[row.Index]; !ok {
			pending = append(pending, row)
		}
	}

	sum := &Summary{Total: tbl.Len(), Selected: len(rows), Resumed: len(rows) - len(pending)}
	r.logger.Info("run starting",
		"total", sum.Total, "selected", sum.Selected,
		"already_done", sum.Resumed, "pending", len(pending),
		"batch_size", r.cfg.BatchSize, "concurrency", r.cfg.Concurrency)

	if err := r.dispatch(ctx, pending, sum); err != nil {
		return nil, nil, err
	}

	if r.cache != nil {
		if err := r.cache.Flush(); err != nil {
			r.logger.Warn("cache flush failed", "error", err)
		}
	}
	sum.APICalls, sum.CacheHits = r.inv.Counters()

	records, err := r.log.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read checkpoint: %w", err)
	}
	for _, rec := range records {
		if rec.Success {
			sum.Succeeded++
		} else {
			sum.Failed++
		}
	}
	return table.Merge(tbl, records, r.cfg.OutputFields), sum, nil
}

// dispatch processes pending rows in fixed-size batches, in original order.
// Each batch is fully checkpointed before the next starts, so an interrupted
// run loses at most one batch of work.
func (r *Runner) dispatch(ctx context.Context, pending []types.Row, sum *Summary) error {
	for start := 0; start < len(pending); start += r.cfg.BatchSize {
		end := start + r.cfg.BatchSize
		if end > len(pending) {
			end = len(pending)
		}
		batch := pending[start:end]

		var mu sync.Mutex
		results := make([]types.Record, 0, len(batch))
		g, gctx := errgroup.WithContext(ctx)
		for _, row := range batch {
			row := row
			g.Go(func() error {
				recs := r.inv.safeInvoke(gctx, row)
				mu.Lock()
				results = append(results, recs...)
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()

		// A cancelled batch is not checkpointed: its rows must stay
		// pending so the next run retries them instead of seeing
		// context errors as permanent failures.
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := r.log.Append(results); err != nil {
			return fmt.Errorf("append checkpoint: %w", err)
		}
		sum.Processed += len(batch)
		r.logger.Info("batch checkpointed",
			"done", start+len(batch), "pending", len(pending)-start-len(batch))
	}
	return nil
}
