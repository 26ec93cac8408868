package main

import (
	"fmt"
	"io"

	"github.com/dgnsrekt/narrate/internal/cache"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var (
	cacheCmd = &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the clip cache",
		Args:  cobra.NoArgs,
	}

	cacheStatsCmd = &cobra.Command{
		Use:     "stats",
		Short:   "Show clip cache usage",
		Example: paragraph("narrate cache stats"),
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClipCache(cmd.OutOrStdout(), func(m *cache.Manager, cfg *cache.Config) error {
				fmt.Fprintln(cmd.OutOrStdout(), renderCacheStats(m.Stats(), cfg.DiskCapacity))
				return nil
			})
		},
	}

	cacheClearCmd = &cobra.Command{
		Use:     "clear",
		Short:   "Remove every cached clip",
		Example: paragraph("narrate cache clear"),
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClipCache(cmd.OutOrStdout(), func(m *cache.Manager, _ *cache.Config) error {
				return clearClipCache(cmd.OutOrStdout(), m)
			})
		},
	}
)

// withClipCache opens the configured clip cache, runs fn and closes it. A
// disabled cache is reported on w and is not an error.
func withClipCache(w io.Writer, fn func(*cache.Manager, *cache.Config) error) error {
	s, err := loadCommandSettings()
	if err != nil {
		return err
	}
	cfg, err := s.cacheConfig()
	if err != nil {
		return err
	}
	if cfg == nil {
		fmt.Fprintln(w, "Clip cache is disabled (set cache.enabled: true in narrate.yml)")
		return nil
	}

	m, err := cache.NewManager(cfg)
	if err != nil {
		return fmt.Errorf("unable to open clip cache: %w", err)
	}
	if err := fn(m, cfg); err != nil {
		_ = m.Close()
		return err
	}
	return m.Close()
}

func renderCacheStats(stats map[string]interface{}, capacity int64) string {
	size, _ := stats["disk_size"].(int64)
	items, _ := stats["disk_items"].(int64)
	path, _ := stats["disk_path"].(string)

	rows := [][]string{
		{"Location", path},
		{"Clips", humanize.Comma(items)},
		{"Size", fmt.Sprintf("%s / %s", humanize.Bytes(uint64(size)), humanize.Bytes(uint64(capacity)))}, //nolint:gosec
	}
	return renderTable([]string{"Clip cache", ""}, rows)
}

func clearClipCache(w io.Writer, m *cache.Manager) error {
	before := m.Stats()
	items, _ := before["disk_items"].(int64)
	size, _ := before["disk_size"].(int64)

	if err := m.Clear(); err != nil {
		return fmt.Errorf("unable to clear clip cache: %w", err)
	}
	if items == 0 {
		fmt.Fprintln(w, "Clip cache is already empty")
		return nil
	}
	fmt.Fprintf(w, "%s Removed %s clips (%s)\n", okMark, humanize.Comma(items), humanize.Bytes(uint64(size))) //nolint:gosec
	return nil
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd, cacheClearCmd)
}
