package fetch

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"time"

	"newscurator/internal/core"
	"newscurator/internal/logger"
	"newscurator/internal/store"
)

// Options bounds the fetch stage. ConnectTimeout must be shorter than
// TotalTimeout; ArticleBudget caps the whole per-article operation including
// parsing, so a single slow page cannot stall the batch.
type Options struct {
	ConnectTimeout time.Duration
	TotalTimeout   time.Duration
	ArticleBudget  time.Duration
	RequestDelay   time.Duration
	MinWordCount   int
	MinContentLen  int
	ASCIIRatio     float64
	UserAgent      string
}

// DefaultOptions returns the stock fetch bounds.
func DefaultOptions() Options {
	return Options{
		ConnectTimeout: 10 * time.Second,
		TotalTimeout:   30 * time.Second,
		ArticleBudget:  45 * time.Second,
		RequestDelay:   500 * time.Millisecond,
		MinWordCount:   120,
		MinContentLen:  400,
		ASCIIRatio:     0.85,
		UserAgent:      "newscurator/1.0",
	}
}

// Fetcher retrieves candidate pages and extracts readable articles, with
// per-URL caching in the artifact store and a resumable progress ledger.
type Fetcher struct {
	client *http.Client
	store  *store.Store
	opts   Options
}

// NewFetcher creates a fetcher backed by the given artifact store.
func NewFetcher(artifacts *store.Store, opts Options) *Fetcher {
	if opts.MinWordCount <= 0 {
		opts.MinWordCount = DefaultOptions().MinWordCount
	}
	if opts.MinContentLen <= 0 {
		opts.MinContentLen = DefaultOptions().MinContentLen
	}
	if opts.ASCIIRatio <= 0 {
		opts.ASCIIRatio = DefaultOptions().ASCIIRatio
	}
	if opts.TotalTimeout <= 0 {
		opts.TotalTimeout = DefaultOptions().TotalTimeout
	}
	if opts.ConnectTimeout <= 0 || opts.ConnectTimeout > opts.TotalTimeout {
		opts.ConnectTimeout = opts.TotalTimeout / 3
	}
	if opts.ArticleBudget <= 0 {
		opts.ArticleBudget = DefaultOptions().ArticleBudget
	}

	client := &http.Client{
		Timeout: opts.TotalTimeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout: opts.ConnectTimeout,
			}).DialContext,
			TLSHandshakeTimeout: opts.ConnectTimeout,
		},
	}

	return &Fetcher{client: client, store: artifacts, opts: opts}
}

// ProcessAll runs fetch and extraction over the candidate set. Each
// candidate yields at most one extracted article; gate failures and fetch
// errors are logged and skipped. Progress is checkpointed in a ledger under
// the week directory so an interrupted batch resumes where it stopped; the
// ledger is deleted on successful completion.
func (f *Fetcher) ProcessAll(ctx context.Context, weekDir string, candidates []core.SearchResult) ([]core.ExtractedArticle, error) {
	ledger, err := OpenLedger(filepath.Join(weekDir, "fetch-ledger.json"))
	if err != nil {
		return nil, err
	}

	var articles []core.ExtractedArticle
	fetched := 0

	for _, candidate := range candidates {
		hash := core.URLHash(candidate.URL)

		if ledger.Done(hash) {
			// Already processed in an earlier interrupted run; the
			// artifact store has the result if it passed the gates.
			if article, err := f.store.GetCachedExtraction(hash); err == nil && article != nil {
				articles = append(articles, *article)
			}
			continue
		}

		if fetched > 0 && f.opts.RequestDelay > 0 {
			time.Sleep(f.opts.RequestDelay)
		}
		fetched++

		article := f.processOne(ctx, candidate, hash)
		if article != nil {
			articles = append(articles, *article)
		}

		if err := ledger.MarkDone(hash); err != nil {
			return nil, err
		}
	}

	if err := ledger.Remove(); err != nil {
		logger.Warn("Failed to remove completed fetch ledger", "error", err.Error())
	}

	logger.Info("Fetch stage complete", "candidates", len(candidates), "extracted", len(articles))
	return articles, nil
}

// processOne produces at most one extracted article for a candidate. Every
// failure mode is soft: log, skip, return nil.
func (f *Fetcher) processOne(ctx context.Context, candidate core.SearchResult, hash string) *core.ExtractedArticle {
	ctx, cancel := context.WithTimeout(ctx, f.opts.ArticleBudget)
	defer cancel()

	if cached, err := f.store.GetCachedExtraction(hash); err == nil && cached != nil {
		if cached.Snippet == "" && candidate.Snippet != "" {
			cached.Snippet = candidate.Snippet
			if err := f.store.CacheExtraction(*cached); err != nil {
				logger.Warn("Snippet backfill failed", "url", candidate.URL, "error", err.Error())
			}
		}
		return cached
	}

	html, err := f.fetchHTML(ctx, candidate.URL, hash)
	if err != nil {
		logger.Warn("Fetch failed", "url", candidate.URL, "error", err.Error())
		return nil
	}

	article := extractArticle(html, candidate, f.opts)
	if article == nil {
		logger.Debug("Candidate failed content gates", "url", candidate.URL)
		return nil
	}
	article.Hash = hash

	if err := f.store.CacheExtraction(*article); err != nil {
		logger.Warn("Failed to cache extraction", "url", candidate.URL, "error", err.Error())
	}
	return article
}

// fetchHTML returns the page HTML, from the store cache when present.
func (f *Fetcher) fetchHTML(ctx context.Context, pageURL, hash string) (string, error) {
	if cached, err := f.store.GetCachedPage(hash); err == nil && cached != "" {
		return cached, nil
	}

	req, err := http.NewRequestWithContext(ctx, "GET", pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", pageURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s returned status %d", pageURL, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read body of %s: %w", pageURL, err)
	}

	html := string(body)
	if err := f.store.CachePage(hash, pageURL, html); err != nil {
		logger.Warn("Failed to cache page", "url", pageURL, "error", err.Error())
	}
	return html, nil
}
