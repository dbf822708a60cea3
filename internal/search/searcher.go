package search

import (
	"context"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"newscurator/internal/cache"
	"newscurator/internal/core"
	"newscurator/internal/logger"
)

// TopicStats counts one topic's share of the search run.
type TopicStats struct {
	Queries    int `json:"queries"`
	Failed     int `json:"failed"`
	RawResults int `json:"rawResults"`
	Kept       int `json:"kept"`
}

// SerpArtifact is the persisted output of a search run: the globally
// deduplicated result set plus per-topic stats.
type SerpArtifact struct {
	Week    core.Week                 `json:"week"`
	Results []core.SearchResult       `json:"results"`
	Stats   map[core.Topic]TopicStats `json:"stats"`
}

// Searcher runs the assembled query plan against a provider: sequential
// execution with a fixed inter-query delay (the bottleneck is API quota, not
// wall-clock time), global URL dedupe with first occurrence winning, and a
// hard cap on total candidates.
type Searcher struct {
	provider      Provider
	resultsPerQry int
	queryDelay    time.Duration
}

// NewSearcher creates a searcher over the given provider.
func NewSearcher(provider Provider, resultsPerQry int, queryDelay time.Duration) *Searcher {
	if resultsPerQry <= 0 {
		resultsPerQry = 10
	}
	return &Searcher{
		provider:      provider,
		resultsPerQry: resultsPerQry,
		queryDelay:    queryDelay,
	}
}

// Run executes every topic's queries and persists the deduplicated result
// set under the week directory. A valid cached artifact for the same query
// plan is reused without any network calls.
func (s *Searcher) Run(ctx context.Context, week core.Week, weekDir string, queries map[core.Topic][]string, maxCandidates int) (*SerpArtifact, error) {
	cachePath := filepath.Join(weekDir, "serp-results.json")
	key := serpCacheKey(week, queries, maxCandidates)

	artifact, hit, err := cache.GetOrCompute(cachePath, key, func() (*SerpArtifact, error) {
		return s.run(ctx, week, queries, maxCandidates)
	})
	if err != nil {
		return nil, err
	}
	if hit {
		logger.Info("Reusing cached search results", "week", string(week), "results", len(artifact.Results))
	}
	return artifact, nil
}

func (s *Searcher) run(ctx context.Context, week core.Week, queries map[core.Topic][]string, maxCandidates int) (*SerpArtifact, error) {
	artifact := &SerpArtifact{
		Week:  week,
		Stats: make(map[core.Topic]TopicStats, len(core.Topics())),
	}
	seen := make(map[string]struct{})

	for _, topic := range core.Topics() {
		stats := TopicStats{Queries: len(queries[topic])}

		for i, query := range queries[topic] {
			if i > 0 && s.queryDelay > 0 {
				time.Sleep(s.queryDelay)
			}

			results, err := s.provider.Search(ctx, query, Config{MaxResults: s.resultsPerQry})
			if err != nil {
				// One failed query reduces yield, never aborts the run.
				stats.Failed++
				logger.Warn("Search query failed", "topic", string(topic), "query", query, "error", err.Error())
				continue
			}
			stats.RawResults += len(results)

			for _, r := range results {
				if _, dup := seen[r.URL]; dup {
					continue
				}
				seen[r.URL] = struct{}{}

				domain := r.Domain
				if domain == "" {
					domain = extractDomain(r.URL)
				}
				artifact.Results = append(artifact.Results, core.SearchResult{
					URL:           r.URL,
					Title:         r.Title,
					Snippet:       r.Snippet,
					Domain:        domain,
					PublishedDate: r.PublishedDate,
					Topic:         topic,
				})
				stats.Kept++
			}
		}

		artifact.Stats[topic] = stats
		logger.Info("Topic search complete", "topic", string(topic),
			"queries", stats.Queries, "failed", stats.Failed, "kept", stats.Kept)
	}

	if maxCandidates > 0 && len(artifact.Results) > maxCandidates {
		logger.Info("Capping candidate set", "have", len(artifact.Results), "cap", maxCandidates)
		artifact.Results = artifact.Results[:maxCandidates]
	}
	return artifact, nil
}

// serpCacheKey derives the stage key from the week and the exact query plan,
// so an edited plan invalidates the cached results.
func serpCacheKey(week core.Week, queries map[core.Topic][]string, maxCandidates int) string {
	parts := []string{string(week)}
	topics := make([]string, 0, len(queries))
	for t := range queries {
		topics = append(topics, string(t))
	}
	sort.Strings(topics)
	for _, t := range topics {
		parts = append(parts, t)
		parts = append(parts, queries[core.Topic(t)]...)
	}
	parts = append(parts, strconv.Itoa(maxCandidates))
	return cache.InputKey(parts...)
}
