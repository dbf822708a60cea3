package handlers

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"newscurator/internal/config"
	"newscurator/internal/core"
	"newscurator/internal/feeds"
	"newscurator/internal/fetch"
	"newscurator/internal/llm"
	"newscurator/internal/logger"
	"newscurator/internal/merge"
	"newscurator/internal/pipeline"
	"newscurator/internal/policy"
	"newscurator/internal/queries"
	"newscurator/internal/rank"
	"newscurator/internal/search"
	"newscurator/internal/selection"
	"newscurator/internal/store"
)

// NewDiscoverCmd creates the full-pipeline discovery command
func NewDiscoverCmd() *cobra.Command {
	discoverCmd := &cobra.Command{
		Use:   "discover",
		Short: "Run the full weekly discovery pipeline",
		Long: `Assemble queries, search the web, fetch and extract candidate articles,
rank them per topic and select the final week's list. Stage outputs are
cached under the week directory; a rerun resumes at the first missing stage.`,
		Run: func(cmd *cobra.Command, args []string) {
			weekFlag, _ := cmd.Flags().GetString("week")
			if err := runDiscover(cmd.Context(), weekFlag); err != nil {
				logger.Error("Discovery failed", err)
				os.Exit(1)
			}
		},
	}

	discoverCmd.Flags().String("week", "", "week label (YYYY-W##, default: current week)")
	return discoverCmd
}

func runDiscover(ctx context.Context, weekFlag string) error {
	cfg := config.Get()
	if err := config.ValidateForRun(cfg); err != nil {
		return err
	}

	week, err := resolveWeek(weekFlag)
	if err != nil {
		return err
	}

	pol, err := policy.Load(cfg.Queries.PolicyFile)
	if err != nil {
		return err
	}

	model, err := llm.NewClient(cfg.AI.Gemini.Model, config.Duration(cfg.AI.Gemini.Timeout, 60*time.Second))
	if err != nil {
		return err
	}
	defer model.Close()

	provider, err := search.NewProvider(search.ProviderType(cfg.Search.Provider), map[string]string{
		"api_key":   cfg.Search.Google.APIKey,
		"search_id": cfg.Search.Google.SearchID,
	})
	if err != nil {
		return err
	}

	artifacts, err := store.NewStore(cfg.App.CacheDir)
	if err != nil {
		return err
	}
	defer func() { _ = artifacts.Close() }()

	deps := pipeline.Deps{
		Director: queries.NewDirector(cfg.Queries.BaseFile, cfg.Queries.DeltaCount, model, pol),
		Searcher: search.NewSearcher(provider, cfg.Search.ResultsPerQry,
			config.Duration(cfg.Search.QueryDelay, time.Second)),
		Fetcher: fetch.NewFetcher(artifacts, fetch.Options{
			ConnectTimeout: config.Duration(cfg.Fetch.ConnectTimeout, 10*time.Second),
			TotalTimeout:   config.Duration(cfg.Fetch.TotalTimeout, 30*time.Second),
			ArticleBudget:  config.Duration(cfg.Fetch.ArticleBudget, 45*time.Second),
			RequestDelay:   config.Duration(cfg.Fetch.RequestDelay, 500*time.Millisecond),
			MinWordCount:   cfg.Fetch.MinWordCount,
			MinContentLen:  cfg.Fetch.MinContentLen,
			ASCIIRatio:     cfg.Fetch.ASCIIRatio,
			UserAgent:      cfg.Fetch.UserAgent,
		}),
		Ranker: rank.NewRanker(model, pol, cfg.Selection.RankBatchMax, cfg.Selection.RankBatchMax),
		Selector: selection.NewSelector(pol, selection.Options{
			SelectTop:        cfg.Selection.SelectTop,
			DomainCap:        cfg.Selection.DomainCap,
			DomainCapRelaxed: cfg.Selection.DomainCapRelaxed,
			PaywallMax:       cfg.Selection.PaywallMax,
		}),
		Merger:        merge.NewMerger(cfg.App.DataDir),
		DataDir:       cfg.App.DataDir,
		MaxCandidates: cfg.Search.MaxCandidates,
	}

	if cfg.Feeds.Enabled {
		feedsCfg, err := feeds.LoadFeedsConfig(cfg.Feeds.File)
		if err != nil {
			return err
		}
		deps.Feeds = feeds.NewFetcher(config.Duration(cfg.Feeds.Timeout, 20*time.Second),
			cfg.Feeds.MaxItemsPerFeed, cfg.Feeds.UserAgent)
		deps.FeedsCfg = feedsCfg
	}

	report, err := pipeline.New(deps).Run(ctx, week)
	if err != nil {
		return err
	}

	fmt.Printf("Week %s: %d articles selected\n", week, report.TotalSelected())
	for _, topic := range core.Topics() {
		tr := report.Topics[topic]
		fmt.Printf("  %-15s %2d selected (%d candidates, %d ranked)\n",
			topic, tr.SelectedCount, tr.CandidatesIn, tr.RankedCount)
	}
	fmt.Printf("Artifacts written to %s\n", pipeline.WeekDir(cfg.App.DataDir, week))
	return nil
}
