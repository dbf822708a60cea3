package handlers

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"newscurator/internal/config"
	"newscurator/internal/logger"
	"newscurator/internal/merge"
	"newscurator/internal/pipeline"
)

// NewMergeCmd creates the standalone merge command
func NewMergeCmd() *cobra.Command {
	mergeCmd := &cobra.Command{
		Use:   "merge",
		Short: "Merge a week's stored selection into the discovery store",
		Long: `Reconcile an already-computed weekly selection into the durable
week-scoped discovery store, deduplicating against prior weeks. Merging is
idempotent: re-running with unchanged state appends nothing.`,
		Run: func(cmd *cobra.Command, args []string) {
			weekFlag, _ := cmd.Flags().GetString("week")
			if err := runMerge(weekFlag); err != nil {
				logger.Error("Merge failed", err)
				os.Exit(1)
			}
		},
	}

	mergeCmd.Flags().String("week", "", "week label (YYYY-W##, default: current week)")
	return mergeCmd
}

func runMerge(weekFlag string) error {
	cfg := config.Get()

	week, err := resolveWeek(weekFlag)
	if err != nil {
		return err
	}

	artifact, err := pipeline.ReadSelection(cfg.App.DataDir, week)
	if err != nil {
		return err
	}

	stats, err := merge.NewMerger(cfg.App.DataDir).Run(week, artifact.Selected)
	if err != nil {
		return err
	}

	fmt.Printf("Week %s: %d appended, %d already merged, %d global duplicates, %d snippets backfilled\n",
		week, stats.Appended, stats.SkippedWeek, stats.SkippedGlobal, stats.Backfilled)
	return nil
}
