package handlers

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"newscurator/internal/config"
	"newscurator/internal/core"
	"newscurator/internal/logger"
	"newscurator/internal/pipeline"
)

// NewReportCmd creates the report display command
func NewReportCmd() *cobra.Command {
	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Show a week's selection report",
		Long:  `Print the per-topic ranking and selection audit trail for a stored week.`,
		Run: func(cmd *cobra.Command, args []string) {
			weekFlag, _ := cmd.Flags().GetString("week")
			if err := runReport(weekFlag); err != nil {
				logger.Error("Report failed", err)
				os.Exit(1)
			}
		},
	}

	reportCmd.Flags().String("week", "", "week label (YYYY-W##, default: current week)")
	return reportCmd
}

func runReport(weekFlag string) error {
	week, err := resolveWeek(weekFlag)
	if err != nil {
		return err
	}

	report, err := pipeline.ReadReport(config.Get().App.DataDir, week)
	if err != nil {
		return err
	}

	fmt.Printf("Selection report for %s (run %s, generated %s)\n",
		report.Week, report.RunID, report.GeneratedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("Total selected: %d\n\n", report.TotalSelected())

	for _, topic := range core.Topics() {
		tr := report.Topics[topic]
		if tr == nil {
			continue
		}
		fmt.Printf("%s\n", topic)
		fmt.Printf("  candidates in:  %d\n", tr.CandidatesIn)
		fmt.Printf("  ranked:         %d\n", tr.RankedCount)
		fmt.Printf("  selected:       %d\n", tr.SelectedCount)
		fmt.Printf("  exclusions:     domainCap=%d duplicate=%d hardControversy=%d sponsored=%d\n",
			tr.Exclusions[core.ExclDomainCap], tr.Exclusions[core.ExclDuplicate],
			tr.Exclusions[core.ExclHardControversy], tr.Exclusions[core.ExclSponsored])
		if tr.FallbackUsed.DomainCapRelaxed {
			fmt.Println("  fallback:       domain cap relaxed")
		}
		if tr.FallbackUsed.FallbackRanking {
			fmt.Println("  fallback:       word-count ranking (model unavailable)")
		}
		if tr.Paywall.Evicted > 0 || tr.Paywall.Backfilled > 0 || tr.Paywall.Selected > 0 {
			fmt.Printf("  paywall:        selected=%d evicted=%d backfilled=%d\n",
				tr.Paywall.Selected, tr.Paywall.Evicted, tr.Paywall.Backfilled)
		}
		fmt.Println()
	}
	return nil
}
