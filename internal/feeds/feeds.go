// Package feeds supplements web-search discovery with configured RSS/Atom
// feeds per topic. Feed items are normalized into the same candidate shape
// as search hits and merged URL-deduplicated into the pool.
package feeds

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"gopkg.in/yaml.v3"

	"newscurator/internal/core"
	"newscurator/internal/logger"
)

// FeedsConfig is the YAML feed list, keyed by topic display name:
//
//	feeds:
//	  Jewellery:
//	    - https://example.com/rss
type FeedsConfig struct {
	Feeds map[string][]string `yaml:"feeds"`
}

// LoadFeedsConfig reads the per-topic feed list. A missing file means no
// feeds are configured, which is not an error.
func LoadFeedsConfig(path string) (*FeedsConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &FeedsConfig{}, nil
		}
		return nil, fmt.Errorf("failed to read feeds file %s: %w", path, err)
	}

	var cfg FeedsConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse feeds file %s: %w", path, err)
	}
	return &cfg, nil
}

// Fetcher pulls configured feeds and normalizes their items.
type Fetcher struct {
	parser          *gofeed.Parser
	timeout         time.Duration
	maxItemsPerFeed int
}

// NewFetcher creates a feed fetcher.
func NewFetcher(timeout time.Duration, maxItemsPerFeed int, userAgent string) *Fetcher {
	parser := gofeed.NewParser()
	if userAgent != "" {
		parser.UserAgent = userAgent
	}
	if maxItemsPerFeed <= 0 {
		maxItemsPerFeed = 20
	}
	return &Fetcher{
		parser:          parser,
		timeout:         timeout,
		maxItemsPerFeed: maxItemsPerFeed,
	}
}

// FetchAll pulls every configured feed and returns normalized candidates.
// A failing feed is logged and skipped; feed discovery never aborts a run.
func (f *Fetcher) FetchAll(ctx context.Context, cfg *FeedsConfig) []core.SearchResult {
	var results []core.SearchResult

	for _, topic := range core.Topics() {
		urls := cfg.Feeds[string(topic)]
		for _, feedURL := range urls {
			items, err := f.fetchFeed(ctx, feedURL)
			if err != nil {
				logger.Warn("Feed fetch failed", "topic", string(topic), "feed", feedURL, "error", err.Error())
				continue
			}

			for _, item := range items {
				result, ok := normalizeItem(item, topic)
				if !ok {
					continue
				}
				results = append(results, result)
			}
			logger.Info("Feed processed", "topic", string(topic), "feed", feedURL, "items", len(items))
		}
	}
	return results
}

func (f *Fetcher) fetchFeed(ctx context.Context, feedURL string) ([]*gofeed.Item, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	feed, err := f.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, err
	}

	items := feed.Items
	if len(items) > f.maxItemsPerFeed {
		items = items[:f.maxItemsPerFeed]
	}
	return items, nil
}

// normalizeItem converts one feed item into the candidate shape shared with
// search hits. Items without a usable link are dropped.
func normalizeItem(item *gofeed.Item, topic core.Topic) (core.SearchResult, bool) {
	link := strings.TrimSpace(item.Link)
	if link == "" {
		return core.SearchResult{}, false
	}

	parsed, err := url.Parse(link)
	if err != nil || parsed.Hostname() == "" {
		return core.SearchResult{}, false
	}
	domain := strings.TrimPrefix(parsed.Hostname(), "www.")

	published := ""
	if item.PublishedParsed != nil {
		published = item.PublishedParsed.UTC().Format(time.RFC3339)
	}

	return core.SearchResult{
		URL:           link,
		Title:         strings.TrimSpace(item.Title),
		Snippet:       strings.TrimSpace(item.Description),
		Domain:        domain,
		PublishedDate: published,
		Topic:         topic,
	}, true
}
