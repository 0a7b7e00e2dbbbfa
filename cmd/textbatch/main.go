package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/yourorg/textbatch/internal/config"
	"github.com/yourorg/textbatch/internal/store"
)

const defaultConfigContent = `llm:
  api_key: ""
  base_url: "https://api.openai.com/v1"
  model: "gpt-4o-mini"
  max_tokens: 1024
  temperature: 0.1
  system_prompt: ""
  # {input_text} is replaced with each row's text.
  prompt_template: ""
  output_fields: []

cleaner:
  base_url: "http://127.0.0.1:8000"
  api_key: ""
  options:
    remove_urls: true
    remove_social_mentions: true
    remove_reposts: true
    remove_hashtags: false
    remove_ads: true
    emoji_remove: true
    normalize_whitespace: true
    normalize_unicode: true
    convert_fullwidth: true

process:
  input_column: "text"
  id_column: ""
  author_column: ""
  concurrency: 10
  timeout_seconds: 30
  retry_attempts: 3
  retry_delay_seconds: 1
  batch_size: 50
  filter:
    column: ""
    values: []
    condition: "in"

cache:
  path: ""
  ttl_hours: 168

store:
  path: ""

log:
  level: "info"
`

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgPath string

	root := &cobra.Command{
		Use:   "textbatch",
		Short: "Resumable batch processor for tabular text data",
	}

	root.PersistentFlags().StringVar(&cfgPath, "config", "", "config file path")

	root.AddCommand(newInitCmd())
	root.AddCommand(newAnalyzeCmd(&cfgPath))
	root.AddCommand(newCleanCmd(&cfgPath))
	root.AddCommand(newCacheCmd(&cfgPath))
	root.AddCommand(newRunsCmd(&cfgPath))

	return root
}

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize ~/.textbatch directory and default config",
		RunE: func(cmd *cobra.Command, args []string) error {
			baseDir, err := config.DefaultDir()
			if err != nil {
				return err
			}
			if err := os.MkdirAll(baseDir, 0o755); err != nil {
				return err
			}

			cfgFile := filepath.Join(baseDir, "config.yaml")
			if _, err := os.Stat(cfgFile); errors.Is(err, os.ErrNotExist) {
				if err := os.WriteFile(cfgFile, []byte(defaultConfigContent), 0o644); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "created", cfgFile)
			} else if err == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "exists", cfgFile)
			} else {
				return err
			}

			dbPath := filepath.Join(baseDir, "textbatch.db")
			s, err := store.NewSQLiteStore(dbPath)
			if err != nil {
				return err
			}
			defer s.Close()
			fmt.Fprintln(cmd.OutOrStdout(), "database ready", dbPath)
			fmt.Fprintln(cmd.OutOrStdout(), "please update llm.api_key in", cfgFile)
			return nil
		},
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
