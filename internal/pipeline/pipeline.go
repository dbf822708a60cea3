// Package pipeline orchestrates the weekly discovery run: query assembly,
// search, fetch/extract, ranking, selection and merge. The run is single
// threaded by design; rate limiting, not concurrency, is what the metered
// backends need. Every stage persists its output under the week directory
// and a rerun short-circuits at the first valid stage cache.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"

	"newscurator/internal/cache"
	"newscurator/internal/core"
	"newscurator/internal/feeds"
	"newscurator/internal/fetch"
	"newscurator/internal/logger"
	"newscurator/internal/merge"
	"newscurator/internal/queries"
	"newscurator/internal/rank"
	"newscurator/internal/search"
	"newscurator/internal/selection"
)

// maxPriorHeadlines bounds the delta-query context taken from last week.
const maxPriorHeadlines = 10

// Deps carries the wired stage implementations.
type Deps struct {
	Director *queries.Director
	Searcher *search.Searcher
	Feeds    *feeds.Fetcher
	FeedsCfg *feeds.FeedsConfig
	Fetcher  *fetch.Fetcher
	Ranker   *rank.Ranker
	Selector *selection.Selector
	Merger   *merge.Merger

	DataDir       string
	MaxCandidates int
}

// Pipeline is one week's staged run.
type Pipeline struct {
	deps Deps
}

// New creates a pipeline.
func New(deps Deps) *Pipeline {
	return &Pipeline{deps: deps}
}

// SelectionArtifact is the cached output of the ranking/selection stage.
type SelectionArtifact struct {
	Selected []core.SelectedArticle `json:"selected"`
	Report   *core.SelectionReport  `json:"report"`
}

// WeekDir returns the directory holding a week's artifacts.
func WeekDir(dataDir string, week core.Week) string {
	return filepath.Join(dataDir, string(week))
}

// ReadSelection loads a week's stored selection artifact.
func ReadSelection(dataDir string, week core.Week) (*SelectionArtifact, error) {
	path := filepath.Join(WeekDir(dataDir, week), "selected-top20.json")
	artifact, err := cache.Read[SelectionArtifact](path)
	if err != nil {
		return nil, fmt.Errorf("failed to read selection for %s: %w", week, err)
	}
	return &artifact, nil
}

// ReadReport loads a week's stored selection report.
func ReadReport(dataDir string, week core.Week) (*core.SelectionReport, error) {
	path := filepath.Join(WeekDir(dataDir, week), "report.json")
	report, err := cache.ReadJSONFile[core.SelectionReport](path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report for %s: %w", week, err)
	}
	return &report, nil
}

// Run executes the full discovery pipeline for one week and returns the
// selection report.
func (p *Pipeline) Run(ctx context.Context, week core.Week) (*core.SelectionReport, error) {
	weekDir := WeekDir(p.deps.DataDir, week)
	if err := os.MkdirAll(weekDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create week directory: %w", err)
	}

	priorHeadlines := p.loadPriorHeadlines(week)

	querySet, err := p.deps.Director.BuildForWeek(ctx, week, weekDir, priorHeadlines)
	if err != nil {
		return nil, err
	}

	serp, err := p.deps.Searcher.Run(ctx, week, weekDir, querySet.Queries, p.deps.MaxCandidates)
	if err != nil {
		return nil, err
	}

	candidates := p.supplementWithFeeds(ctx, serp.Results)

	articles, err := p.fetchStage(ctx, week, weekDir, candidates)
	if err != nil {
		return nil, err
	}

	artifact, err := p.selectionStage(ctx, week, weekDir, articles)
	if err != nil {
		return nil, err
	}

	if err := cache.WriteJSONAtomic(filepath.Join(weekDir, "report.json"), artifact.Report); err != nil {
		return nil, err
	}

	if _, err := p.deps.Merger.Run(week, artifact.Selected); err != nil {
		return nil, err
	}

	logger.Info("Pipeline complete", "week", string(week),
		"selected", artifact.Report.TotalSelected())
	return artifact.Report, nil
}

// supplementWithFeeds merges RSS discoveries into the candidate pool,
// URL-deduplicated with search hits winning.
func (p *Pipeline) supplementWithFeeds(ctx context.Context, candidates []core.SearchResult) []core.SearchResult {
	if p.deps.Feeds == nil || p.deps.FeedsCfg == nil {
		return candidates
	}

	seen := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		seen[c.URL] = struct{}{}
	}

	added := 0
	for _, item := range p.deps.Feeds.FetchAll(ctx, p.deps.FeedsCfg) {
		if _, dup := seen[item.URL]; dup {
			continue
		}
		seen[item.URL] = struct{}{}
		candidates = append(candidates, item)
		added++
	}
	if added > 0 {
		logger.Info("Feed supplement added candidates", "added", added)
	}
	if p.deps.MaxCandidates > 0 && len(candidates) > p.deps.MaxCandidates {
		candidates = candidates[:p.deps.MaxCandidates]
	}
	return candidates
}

// fetchStage runs fetch/extract behind the candidates.json stage cache.
func (p *Pipeline) fetchStage(ctx context.Context, week core.Week, weekDir string, candidates []core.SearchResult) ([]core.ExtractedArticle, error) {
	keyParts := []string{string(week)}
	for _, c := range candidates {
		keyParts = append(keyParts, c.URL)
	}

	articles, hit, err := cache.GetOrCompute(
		filepath.Join(weekDir, "candidates.json"),
		cache.InputKey(keyParts...),
		func() ([]core.ExtractedArticle, error) {
			return p.deps.Fetcher.ProcessAll(ctx, weekDir, candidates)
		})
	if err != nil {
		return nil, err
	}
	if hit {
		logger.Info("Reusing cached extractions", "week", string(week), "articles", len(articles))
	}
	return articles, nil
}

// selectionStage runs ranking and selection per topic behind the
// selected-top20.json stage cache.
func (p *Pipeline) selectionStage(ctx context.Context, week core.Week, weekDir string, articles []core.ExtractedArticle) (*SelectionArtifact, error) {
	keyParts := []string{string(week)}
	for _, a := range articles {
		keyParts = append(keyParts, a.Hash)
	}

	artifact, hit, err := cache.GetOrCompute(
		filepath.Join(weekDir, "selected-top20.json"),
		cache.InputKey(keyParts...),
		func() (*SelectionArtifact, error) {
			return p.rankAndSelect(ctx, week, articles)
		})
	if err != nil {
		return nil, err
	}
	if hit {
		logger.Info("Reusing cached selection", "week", string(week), "selected", len(artifact.Selected))
	}
	return artifact, nil
}

func (p *Pipeline) rankAndSelect(ctx context.Context, week core.Week, articles []core.ExtractedArticle) (*SelectionArtifact, error) {
	byTopic := make(map[core.Topic][]core.ExtractedArticle)
	for _, article := range articles {
		byTopic[article.Topic] = append(byTopic[article.Topic], article)
	}

	report := core.NewSelectionReport(uuid.NewString(), week)
	artifact := &SelectionArtifact{Report: report}

	for _, topic := range core.Topics() {
		ranking, pool := p.deps.Ranker.RankTopic(ctx, topic, byTopic[topic])
		selected := p.deps.Selector.SelectTopic(topic, ranking, pool, report.Topics[topic])
		artifact.Selected = append(artifact.Selected, selected...)
		logger.Info("Topic selection complete", "topic", string(topic),
			"candidates", report.Topics[topic].CandidatesIn,
			"selected", report.Topics[topic].SelectedCount,
			"method", string(ranking.Method))
	}
	return artifact, nil
}

// loadPriorHeadlines pulls the most recent prior week's selected titles as
// delta-query context. Absence of prior data is normal.
func (p *Pipeline) loadPriorHeadlines(current core.Week) map[core.Topic][]string {
	entries, err := os.ReadDir(p.deps.DataDir)
	if err != nil {
		return nil
	}

	var prior []string
	for _, entry := range entries {
		if !entry.IsDir() || entry.Name() >= string(current) {
			continue
		}
		if _, err := core.ParseWeek(entry.Name()); err != nil {
			continue
		}
		prior = append(prior, entry.Name())
	}
	if len(prior) == 0 {
		return nil
	}
	// Week labels are fixed width, so lexicographic order is chronological.
	sort.Strings(prior)

	for i := len(prior) - 1; i >= 0; i-- {
		path := filepath.Join(p.deps.DataDir, prior[i], "selected-top20.json")
		artifact, err := cache.Read[SelectionArtifact](path)
		if err != nil {
			continue
		}

		headlines := make(map[core.Topic][]string)
		for _, article := range artifact.Selected {
			if len(headlines[article.Category]) >= maxPriorHeadlines {
				continue
			}
			headlines[article.Category] = append(headlines[article.Category], article.Title)
		}
		if len(headlines) > 0 {
			logger.Debug("Loaded prior-week headlines", "week", prior[i])
			return headlines
		}
	}
	return nil
}
