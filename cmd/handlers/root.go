package handlers

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"newscurator/internal/config"
	"newscurator/internal/core"
	"newscurator/internal/logger"
)

var cfgFile string

// NewRootCmd creates the root command with all subcommands attached
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "newscurator",
		Short: "newscurator curates a weekly set of trade-news articles",
		Long: `newscurator discovers, extracts, ranks and selects a weekly top list of
jewellery and luxury-retail trade news per topic category. Each week's
artifacts are written as JSON files under a week-scoped directory.`,
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./.newscurator.yaml or $HOME/.newscurator.yaml)")

	rootCmd.AddCommand(NewDiscoverCmd())
	rootCmd.AddCommand(NewMergeCmd())
	rootCmd.AddCommand(NewReportCmd())
	rootCmd.AddCommand(NewCacheCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	if cfg.App.Debug {
		logger.SetLevel("debug")
	} else {
		logger.SetLevel(cfg.Logging.Level)
	}
}

// resolveWeek validates an explicit week label or derives the current one
// from the configured publication timezone.
func resolveWeek(flagValue string) (core.Week, error) {
	if flagValue != "" {
		return core.ParseWeek(flagValue)
	}

	loc, err := time.LoadLocation(config.Get().App.Timezone)
	if err != nil {
		loc = time.UTC
	}
	return core.WeekOf(time.Now(), loc), nil
}
