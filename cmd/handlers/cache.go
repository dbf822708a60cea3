package handlers

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"newscurator/internal/config"
	"newscurator/internal/logger"
	"newscurator/internal/store"
)

// NewCacheCmd creates the cache management command
func NewCacheCmd() *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the fetched-page and extraction cache",
		Long:  `Inspect and clear the SQLite cache of fetched pages and extracted articles.`,
	}

	cacheCmd.AddCommand(newCacheStatsCmd())
	cacheCmd.AddCommand(newCacheClearCmd())

	return cacheCmd
}

func newCacheStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics and storage information",
		Run: func(cmd *cobra.Command, args []string) {
			if err := runCacheStats(); err != nil {
				logger.Error("Failed to get cache stats", err)
				os.Exit(1)
			}
		},
	}
}

func newCacheClearCmd() *cobra.Command {
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear the cache (removes all cached pages and extractions)",
		Run: func(cmd *cobra.Command, args []string) {
			confirm, _ := cmd.Flags().GetBool("confirm")
			if err := runCacheClear(confirm); err != nil {
				logger.Error("Failed to clear cache", err)
				os.Exit(1)
			}
		},
	}

	clearCmd.Flags().Bool("confirm", false, "Skip confirmation prompt")
	return clearCmd
}

func openStore() (*store.Store, error) {
	cacheStore, err := store.NewStore(config.Get().App.CacheDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cache store: %w", err)
	}
	return cacheStore, nil
}

func runCacheStats() error {
	cacheStore, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = cacheStore.Close() }()

	stats, err := cacheStore.GetCacheStats()
	if err != nil {
		return fmt.Errorf("failed to get cache statistics: %w", err)
	}

	fmt.Println("Cache statistics")
	fmt.Printf("  pages cached:       %d\n", stats.PageCount)
	fmt.Printf("  extractions cached: %d\n", stats.ExtractionCount)
	fmt.Printf("  cache size:         %.2f MB\n", float64(stats.CacheSize)/1024/1024)
	if !stats.LastUpdated.IsZero() {
		fmt.Printf("  last updated:       %s\n", stats.LastUpdated.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func runCacheClear(confirm bool) error {
	if !confirm {
		fmt.Print("This will remove all cached pages and extractions. Continue? [y/N]: ")
		var response string
		fmt.Scanln(&response)
		if response != "y" && response != "Y" && response != "yes" {
			fmt.Println("Cache clear cancelled")
			return nil
		}
	}

	cacheStore, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = cacheStore.Close() }()

	if err := cacheStore.ClearCache(); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}

	fmt.Println("Cache cleared")
	return nil
}
