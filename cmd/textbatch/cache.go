package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/yourorg/textbatch/internal/cache"
	"github.com/yourorg/textbatch/internal/config"
)

func newCacheCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and prune the response cache",
	}
	cmd.AddCommand(newCacheStatsCmd(cfgPath))
	cmd.AddCommand(newCacheCleanCmd(cfgPath))
	cmd.AddCommand(newCacheShowCmd(cfgPath))
	return cmd
}

// openFullCache opens the cache with a zero TTL so expired entries stay
// visible to the management commands.
func openFullCache(cfgPath *string) (*cache.Cache, time.Duration, error) {
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return nil, 0, err
	}
	c, err := cache.Open(cfg.Cache.Path, 0, newLogger(cfg.Log.Level))
	if err != nil {
		return nil, 0, err
	}
	return c, time.Duration(cfg.Cache.TTLHours) * time.Hour, nil
}

func newCacheStatsCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cache entry counts and file size",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ttl, err := openFullCache(cfgPath)
			if err != nil {
				return err
			}
			info := c.Info(ttl)
			fmt.Fprintf(cmd.OutOrStdout(), "entries: %d (%d valid, %d expired)\n", info.Total, info.Valid, info.Expired)
			fmt.Fprintf(cmd.OutOrStdout(), "file size: %d bytes\n", info.FileSize)
			if !info.Oldest.IsZero() {
				fmt.Fprintf(cmd.OutOrStdout(), "oldest: %s\n", info.Oldest.Format(time.RFC3339))
				fmt.Fprintf(cmd.OutOrStdout(), "newest: %s\n", info.Newest.Format(time.RFC3339))
			}
			return nil
		},
	}
}

func newCacheCleanCmd(cfgPath *string) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove expired cache entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ttl, err := openFullCache(cfgPath)
			if err != nil {
				return err
			}
			var removed int
			if all {
				removed, err = c.Clear()
			} else {
				removed, err = c.RemoveExpired(ttl)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d entries\n", removed)
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "remove every entry, not just expired ones")
	return cmd
}

func newCacheShowCmd(cfgPath *string) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "show",
		Short: "List cache entries, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := openFullCache(cfgPath)
			if err != nil {
				return err
			}
			for _, d := range c.Details(limit) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %s\n", d.Fingerprint[:12], d.StoredAt.Format("2006-01-02 15:04:05"), d.Preview)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum entries to list")
	return cmd
}
