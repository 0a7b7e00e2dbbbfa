package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/yourorg/textbatch/internal/config"
	"github.com/yourorg/textbatch/internal/store"
)

func newRunsCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect past runs",
	}
	cmd.AddCommand(newRunsListCmd(cfgPath))
	cmd.AddCommand(newRunsShowCmd(cfgPath))
	return cmd
}

func openStore(cfgPath *string) (*store.SQLiteStore, error) {
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return nil, err
	}
	return store.NewSQLiteStore(cfg.Store.Path)
}

func newRunsListCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore(cfgPath)
			if err != nil {
				return err
			}
			defer s.Close()
			runs, err := s.ListRuns()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tKIND\tSTATUS\tROWS\tOK\tFAILED\tSTARTED")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
					r.ID, r.Kind, r.Status, r.TotalRows, r.Succeeded, r.Failed,
					r.StartedAt.Local().Format("2006-01-02 15:04"))
			}
			return w.Flush()
		},
	}
}

func newRunsShowCmd(cfgPath *string) *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show one run in detail",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore(cfgPath)
			if err != nil {
				return err
			}
			defer s.Close()
			r, err := s.GetRun(id)
			if err != nil {
				return fmt.Errorf("run %s: %w", id, err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "id:         %s\n", r.ID)
			fmt.Fprintf(out, "kind:       %s\n", r.Kind)
			fmt.Fprintf(out, "status:     %s\n", r.Status)
			fmt.Fprintf(out, "input:      %s\n", r.InputPath)
			fmt.Fprintf(out, "output:     %s\n", r.OutputPath)
			if r.Model != "" {
				fmt.Fprintf(out, "model:      %s\n", r.Model)
			}
			fmt.Fprintf(out, "rows:       %d total, %d processed\n", r.TotalRows, r.Processed)
			fmt.Fprintf(out, "results:    %d succeeded, %d failed\n", r.Succeeded, r.Failed)
			fmt.Fprintf(out, "calls:      %d api, %d from cache\n", r.APICalls, r.CacheHits)
			fmt.Fprintf(out, "started:    %s\n", r.StartedAt.Local().Format(time.RFC3339))
			fmt.Fprintf(out, "finished:   %s\n", r.FinishedAt.Local().Format(time.RFC3339))
			if r.ErrorMsg != "" {
				fmt.Fprintf(out, "error:      %s\n", r.ErrorMsg)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "run id")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}
