package merge

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"newscurator/internal/cache"
	"newscurator/internal/core"
	"newscurator/internal/logger"
	"newscurator/internal/policy"
)

// discoveryFile is the week-scoped durable store written by merge.
const discoveryFile = "discoveryArticles.json"

// Stats summarizes one merge run.
type Stats struct {
	Appended      int `json:"appended"`
	SkippedGlobal int `json:"skippedGlobal"`
	SkippedWeek   int `json:"skippedWeek"`
	Backfilled    int `json:"backfilled"`
}

// Merger reconciles newly selected articles into the week-scoped store,
// deduplicating against the global corpus of every prior week.
type Merger struct {
	dataDir string
}

// NewMerger creates a merger over the week-directory root.
func NewMerger(dataDir string) *Merger {
	return &Merger{dataDir: dataDir}
}

// Run merges the selected articles into the week's discovery store. Existing
// records are never rewritten except to backfill a missing snippet; running
// twice with the same input appends nothing the second time.
func (m *Merger) Run(week core.Week, selected []core.SelectedArticle) (*Stats, error) {
	corpus, err := m.loadGlobalCorpus(week)
	if err != nil {
		return nil, err
	}

	weekPath := filepath.Join(m.dataDir, string(week), discoveryFile)
	existing, err := cache.ReadJSONFile[[]core.Article](weekPath)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read week store %s: %w", weekPath, err)
	}

	byURL := make(map[string]int, len(existing))
	for i, article := range existing {
		byURL[article.URL] = i
	}

	stats := &Stats{}
	changed := false

	for _, article := range selected {
		if idx, ok := byURL[article.URL]; ok {
			stats.SkippedWeek++
			if existing[idx].Snippet == "" && article.Snippet != "" {
				existing[idx].Snippet = article.Snippet
				stats.Backfilled++
				changed = true
			}
			continue
		}

		if corpus.contains(article.URL, article.Title) {
			stats.SkippedGlobal++
			continue
		}

		merged := core.Article{
			ID:                   core.URLHash(article.URL),
			Title:                article.Title,
			URL:                  article.URL,
			Source:               article.Domain,
			PublishedAt:          article.PublishedDate,
			IngestedAt:           time.Now().UTC(),
			Snippet:              article.Snippet,
			DiscoveredAt:         article.DiscoveredAt,
			PublishedDateInvalid: article.PublishedDateInvalid,
			SourceType:           "discovery",
		}
		existing = append(existing, merged)
		byURL[article.URL] = len(existing) - 1
		stats.Appended++
		changed = true
	}

	if changed {
		if err := cache.WriteJSONAtomic(weekPath, existing); err != nil {
			return nil, err
		}
	}

	logger.Info("Merge complete", "week", string(week),
		"appended", stats.Appended, "skipped_global", stats.SkippedGlobal,
		"skipped_week", stats.SkippedWeek, "backfilled", stats.Backfilled)
	return stats, nil
}

// globalCorpus indexes every prior week's merged articles for dedupe.
type globalCorpus struct {
	urls   map[string]struct{}
	titles []string
}

func (c *globalCorpus) contains(url, title string) bool {
	if _, ok := c.urls[url]; ok {
		return true
	}
	for _, existing := range c.titles {
		if policy.TitleOverlap(title, existing) > 0.8 {
			return true
		}
	}
	return false
}

// loadGlobalCorpus reads every other week's discovery store. Unreadable
// week files are skipped: dedupe degrades, the merge proceeds.
func (m *Merger) loadGlobalCorpus(current core.Week) (*globalCorpus, error) {
	corpus := &globalCorpus{urls: make(map[string]struct{})}

	entries, err := os.ReadDir(m.dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return corpus, nil
		}
		return nil, fmt.Errorf("failed to read data dir %s: %w", m.dataDir, err)
	}

	for _, entry := range entries {
		if !entry.IsDir() || entry.Name() == string(current) {
			continue
		}
		if _, err := core.ParseWeek(entry.Name()); err != nil {
			continue
		}

		path := filepath.Join(m.dataDir, entry.Name(), discoveryFile)
		articles, err := cache.ReadJSONFile[[]core.Article](path)
		if err != nil {
			if !os.IsNotExist(err) {
				logger.Warn("Skipping unreadable week store", "path", path, "error", err.Error())
			}
			continue
		}

		for _, article := range articles {
			corpus.urls[article.URL] = struct{}{}
			corpus.titles = append(corpus.titles, article.Title)
		}
	}
	return corpus, nil
}
