package commands

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/specforge/specforge/internal/printer"
	"github.com/specforge/specforge/internal/research"
)

var (
	cacheRedisAddr  string
	cacheClearLevel string
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the Redis-backed research cache",
	Long: `Manage the research cache.

Research results are cached in Redis at three levels with independent
retention: search results for a day, scraped content for a week, and
assembled research documents for two weeks.`,
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show entry counts per cache level",
	RunE:  runCacheStats,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear the research cache",
	Long: `Clear cached research entries.

Clears every level unless --level restricts it to one.

Examples:
  specforge cache clear
  specforge cache clear --level search`,
	RunE: runCacheClear,
}

func init() {
	cacheCmd.PersistentFlags().StringVar(&cacheRedisAddr, "redis", "localhost:6379", "Redis address")
	cacheClearCmd.Flags().StringVar(&cacheClearLevel, "level", "", "Only clear one level: search, content, or docs")
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}

func openCache(ctx context.Context) (*research.Cache, error) {
	cache := research.NewCache(&redis.Options{Addr: cacheRedisAddr})
	if err := cache.Ping(ctx); err != nil {
		cache.Close()
		return nil, printer.Error(
			"cannot reach Redis",
			err.Error(),
			[]string{"Start Redis or pass --redis with the right address"},
		)
	}
	return cache, nil
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cache, err := openCache(ctx)
	if err != nil {
		return err
	}
	defer cache.Close()

	stats, err := cache.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to read cache stats: %w", err)
	}

	total := 0
	for _, ls := range stats {
		printer.Printf("  %-8s %d entries, ttl %s\n", ls.Level, ls.Entries, ls.Level.TTL())
		total += ls.Entries
	}
	printer.Success("%d cached entries total\n", total)
	return nil
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cache, err := openCache(ctx)
	if err != nil {
		return err
	}
	defer cache.Close()

	if cacheClearLevel != "" {
		level := research.Level(cacheClearLevel)
		removed, err := cache.ClearLevel(ctx, level)
		if err != nil {
			return fmt.Errorf("failed to clear %s level: %w", level, err)
		}
		printer.Success("Cleared %d entries from the %s level\n", removed, level)
		return nil
	}

	removed, err := cache.ClearAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	printer.Success("Cleared %d entries across all levels\n", removed)
	return nil
}
