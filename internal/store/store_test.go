package store

import (
	"testing"

	"newscurator/internal/core"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore returned error: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPageCacheRoundTrip(t *testing.T) {
	s := newTestStore(t)
	hash := core.URLHash("https://example.com/a")

	if err := s.CachePage(hash, "https://example.com/a", "<html>body</html>"); err != nil {
		t.Fatalf("CachePage returned error: %v", err)
	}

	html, err := s.GetCachedPage(hash)
	if err != nil {
		t.Fatalf("GetCachedPage returned error: %v", err)
	}
	if html != "<html>body</html>" {
		t.Errorf("Expected cached HTML, got %q", html)
	}
}

func TestGetCachedPageMiss(t *testing.T) {
	s := newTestStore(t)

	html, err := s.GetCachedPage("missing")
	if err != nil {
		t.Fatalf("Expected miss to be error-free, got %v", err)
	}
	if html != "" {
		t.Errorf("Expected empty HTML on miss, got %q", html)
	}
}

func TestExtractionCacheRoundTrip(t *testing.T) {
	s := newTestStore(t)
	article := core.ExtractedArticle{
		URL:           "https://example.com/a",
		Title:         "A headline",
		Snippet:       "snippet",
		Domain:        "example.com",
		ExtractedText: "body text",
		WordCount:     2,
		Hash:          core.URLHash("https://example.com/a"),
		Topic:         core.TopicWatches,
	}

	if err := s.CacheExtraction(article); err != nil {
		t.Fatalf("CacheExtraction returned error: %v", err)
	}

	cached, err := s.GetCachedExtraction(article.Hash)
	if err != nil {
		t.Fatalf("GetCachedExtraction returned error: %v", err)
	}
	if cached == nil {
		t.Fatal("Expected cached extraction, got nil")
	}
	if cached.Title != article.Title || cached.Topic != core.TopicWatches {
		t.Errorf("Round trip mismatch: %+v", cached)
	}
}

func TestGetCachedExtractionMiss(t *testing.T) {
	s := newTestStore(t)

	cached, err := s.GetCachedExtraction("missing")
	if err != nil {
		t.Fatalf("Expected miss to be error-free, got %v", err)
	}
	if cached != nil {
		t.Errorf("Expected nil on miss, got %+v", cached)
	}
}

func TestExtractionUpsertOnlyBackfillsSnippet(t *testing.T) {
	s := newTestStore(t)
	article := core.ExtractedArticle{
		URL:       "https://example.com/a",
		Title:     "Original title",
		Hash:      core.URLHash("https://example.com/a"),
		WordCount: 100,
	}
	if err := s.CacheExtraction(article); err != nil {
		t.Fatalf("CacheExtraction returned error: %v", err)
	}

	// A later write may only change the snippet; everything else is frozen.
	article.Title = "Mutated title"
	article.Snippet = "late snippet"
	if err := s.CacheExtraction(article); err != nil {
		t.Fatalf("second CacheExtraction returned error: %v", err)
	}

	cached, err := s.GetCachedExtraction(article.Hash)
	if err != nil || cached == nil {
		t.Fatalf("GetCachedExtraction failed: %v", err)
	}
	if cached.Title != "Original title" {
		t.Errorf("Expected title to be immutable, got %q", cached.Title)
	}
	if cached.Snippet != "late snippet" {
		t.Errorf("Expected snippet backfill, got %q", cached.Snippet)
	}

	// A conflicting write with an empty snippet must not erase the stored one.
	article.Snippet = ""
	if err := s.CacheExtraction(article); err != nil {
		t.Fatalf("third CacheExtraction returned error: %v", err)
	}
	cached, err = s.GetCachedExtraction(article.Hash)
	if err != nil || cached == nil {
		t.Fatalf("GetCachedExtraction failed: %v", err)
	}
	if cached.Snippet != "late snippet" {
		t.Errorf("Expected snippet to be retained, got %q", cached.Snippet)
	}
}

func TestCacheStatsAndClear(t *testing.T) {
	s := newTestStore(t)

	if err := s.CachePage("h1", "https://example.com/a", "<html/>"); err != nil {
		t.Fatalf("CachePage returned error: %v", err)
	}
	if err := s.CacheExtraction(core.ExtractedArticle{Hash: "h1", URL: "https://example.com/a"}); err != nil {
		t.Fatalf("CacheExtraction returned error: %v", err)
	}

	stats, err := s.GetCacheStats()
	if err != nil {
		t.Fatalf("GetCacheStats returned error: %v", err)
	}
	if stats.PageCount != 1 || stats.ExtractionCount != 1 {
		t.Errorf("Expected 1 page and 1 extraction, got %+v", stats)
	}

	if err := s.ClearCache(); err != nil {
		t.Fatalf("ClearCache returned error: %v", err)
	}
	stats, err = s.GetCacheStats()
	if err != nil {
		t.Fatalf("GetCacheStats after clear returned error: %v", err)
	}
	if stats.PageCount != 0 || stats.ExtractionCount != 0 {
		t.Errorf("Expected empty cache after clear, got %+v", stats)
	}
}
