package main

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/yourorg/textbatch/internal/cache"
	"github.com/yourorg/textbatch/internal/checkpoint"
	"github.com/yourorg/textbatch/internal/config"
	"github.com/yourorg/textbatch/internal/llm"
	"github.com/yourorg/textbatch/internal/preprocess"
	"github.com/yourorg/textbatch/internal/runner"
	"github.com/yourorg/textbatch/internal/store"
	"github.com/yourorg/textbatch/internal/table"
)

type runFlags struct {
	input      string
	output     string
	maxRows    int
	sample     int
	seed       int64
	checkpoint string
	useCache   bool
}

func (f *runFlags) register(cmd *cobra.Command, cacheDefault bool) {
	cmd.Flags().StringVar(&f.input, "input", "", "input table (.csv, .tsv, .xlsx)")
	cmd.Flags().StringVar(&f.output, "output", "", "output CSV path")
	cmd.Flags().IntVar(&f.maxRows, "max-rows", 0, "process only the first N rows")
	cmd.Flags().IntVar(&f.sample, "sample", 0, "process a random sample of N rows (takes precedence over --max-rows)")
	cmd.Flags().Int64Var(&f.seed, "seed", 42, "sample seed")
	cmd.Flags().StringVar(&f.checkpoint, "checkpoint", "", "checkpoint file (default <output stem>_progress.jsonl)")
	if cacheDefault {
		cmd.Flags().BoolVar(&f.useCache, "no-cache", false, "disable the response cache")
	} else {
		cmd.Flags().BoolVar(&f.useCache, "cache", false, "enable the response cache")
	}
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("output")
}

func (f *runFlags) cacheEnabled(cacheDefault bool) bool {
	if cacheDefault {
		return !f.useCache // flag is --no-cache
	}
	return f.useCache // flag is --cache
}

func newAnalyzeCmd(cfgPath *string) *cobra.Command {
	var flags runFlags
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run each row through a chat model and extract JSON fields",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			if err := cfg.ValidateAnalyze(); err != nil {
				return err
			}
			logger := newLogger(cfg.Log.Level)
			client := &llm.Client{
				BaseURL:        cfg.LLM.BaseURL,
				APIKey:         cfg.LLM.APIKey,
				Model:          cfg.LLM.Model,
				MaxTokens:      cfg.LLM.MaxTokens,
				Temperature:    cfg.LLM.Temperature,
				SystemPrompt:   cfg.LLM.SystemPrompt,
				PromptTemplate: cfg.LLM.PromptTemplate,
				Logger:         logger,
			}
			return executeRun(cmd, cfg, logger, "analyze", client, cfg.LLM.OutputFields, cfg.LLM.Model, &flags, flags.cacheEnabled(true))
		},
	}
	flags.register(cmd, true)
	return cmd
}

func newCleanCmd(cfgPath *string) *cobra.Command {
	var flags runFlags
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Run each row through the text cleaning service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			if err := cfg.ValidateClean(); err != nil {
				return err
			}
			logger := newLogger(cfg.Log.Level)
			client := &preprocess.Client{
				BaseURL: cfg.Cleaner.BaseURL,
				APIKey:  cfg.Cleaner.APIKey,
				Options: cfg.Cleaner.Options,
				Logger:  logger,
			}
			return executeRun(cmd, cfg, logger, "clean", client, cfg.Cleaner.OutputFields, "", &flags, flags.cacheEnabled(false))
		},
	}
	flags.register(cmd, false)
	return cmd
}

func executeRun(cmd *cobra.Command, cfg *config.Config, logger *slog.Logger, kind string, client runner.Client, fields []string, model string, flags *runFlags, useCache bool) error {
	tbl, err := table.Load(flags.input)
	if err != nil {
		return err
	}

	var c *cache.Cache
	if useCache {
		c, err = cache.Open(cfg.Cache.Path, time.Duration(cfg.Cache.TTLHours)*time.Hour, logger)
		if err != nil {
			return err
		}
	}

	ckptPath := flags.checkpoint
	if ckptPath == "" {
		ckptPath = defaultCheckpointPath(flags.output)
	}
	log := checkpoint.Open(ckptPath, logger)

	s, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer s.Close()
	run, err := s.CreateRun(kind, flags.input, flags.output, model)
	if err != nil {
		return err
	}

	r := runner.New(runner.Config{
		Concurrency:   cfg.Process.Concurrency,
		Timeout:       time.Duration(cfg.Process.TimeoutSeconds) * time.Second,
		RetryAttempts: cfg.Process.RetryAttempts,
		RetryDelay:    time.Duration(cfg.Process.RetryDelaySeconds * float64(time.Second)),
		BatchSize:     cfg.Process.BatchSize,
		OutputFields:  fields,
	}, client, c, log, logger)

	job := runner.Job{
		TextColumn:   cfg.Process.InputColumn,
		IDColumn:     cfg.Process.IDColumn,
		AuthorColumn: cfg.Process.AuthorColumn,
		Filter:       cfg.FilterSpec(),
		SampleSize:   flags.sample,
		SampleSeed:   flags.seed,
		MaxRows:      flags.maxRows,
	}

	started := time.Now()
	out, sum, runErr := r.Run(cmd.Context(), tbl, job)
	if runErr == nil {
		runErr = out.WriteCSV(flags.output)
	}

	run.Status = "completed"
	if runErr != nil {
		run.Status = "failed"
		run.ErrorMsg = runErr.Error()
	}
	if sum != nil {
		run.TotalRows = sum.Total
		run.Processed = sum.Processed
		run.Succeeded = sum.Succeeded
		run.Failed = sum.Failed
		run.APICalls = int(sum.APICalls)
		run.CacheHits = int(sum.CacheHits)
	}
	if err := s.FinishRun(run); err != nil {
		logger.Warn("run history update failed", "error", err)
	}
	if runErr != nil {
		return runErr
	}

	fmt.Fprintf(cmd.OutOrStdout(), "run %s finished in %s\n", run.ID, time.Since(started).Round(time.Millisecond))
	fmt.Fprintf(cmd.OutOrStdout(), "  rows: %d total, %d selected, %d already done\n", sum.Total, sum.Selected, sum.Resumed)
	fmt.Fprintf(cmd.OutOrStdout(), "  results: %d succeeded, %d failed\n", sum.Succeeded, sum.Failed)
	fmt.Fprintf(cmd.OutOrStdout(), "  calls: %d api, %d from cache\n", sum.APICalls, sum.CacheHits)
	fmt.Fprintf(cmd.OutOrStdout(), "  output: %s\n", flags.output)
	return nil
}

// defaultCheckpointPath derives the progress file from the output path, e.g.
// results/out.csv -> results/out_progress.jsonl.
func defaultCheckpointPath(output string) string {
	stem := strings.TrimSuffix(output, filepath.Ext(output))
	return stem + "_progress.jsonl"
}
