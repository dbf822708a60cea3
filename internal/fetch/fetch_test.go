package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"newscurator/internal/core"
	"newscurator/internal/store"
)

// articleHTML builds a page whose article body has the given word count.
func articleHTML(title string, wordCount int) string {
	words := make([]string, wordCount)
	for i := range words {
		words[i] = fmt.Sprintf("word%d", i)
	}
	return fmt.Sprintf(`<html><head><title>%s</title></head>
<body><nav>menu menu menu</nav>
<article><p>%s</p></article>
<footer>footer text</footer></body></html>`, title, strings.Join(words, " "))
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.RequestDelay = 0
	return opts
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestExtractArticle(t *testing.T) {
	opts := testOptions()
	candidate := core.SearchResult{
		URL:     "https://example.com/a",
		Title:   "Fallback title",
		Snippet: "serp snippet",
		Domain:  "example.com",
		Topic:   core.TopicWatches,
	}

	article := extractArticle(articleHTML("Watch exports rebound", 200), candidate, opts)
	if article == nil {
		t.Fatal("Expected extraction to succeed")
	}
	if article.Title != "Watch exports rebound" {
		t.Errorf("Expected document title, got %q", article.Title)
	}
	if article.WordCount < opts.MinWordCount {
		t.Errorf("Expected word count >= %d, got %d", opts.MinWordCount, article.WordCount)
	}
	if article.Topic != core.TopicWatches {
		t.Errorf("Expected topic to carry over, got %q", article.Topic)
	}
	if strings.Contains(article.ExtractedText, "menu menu") {
		t.Error("Expected nav content to be stripped")
	}
}

func TestExtractArticleGates(t *testing.T) {
	opts := testOptions()
	candidate := core.SearchResult{URL: "https://example.com/a", Domain: "example.com"}

	t.Run("too few words", func(t *testing.T) {
		if got := extractArticle(articleHTML("Short", 30), candidate, opts); got != nil {
			t.Error("Expected nil for article below minimum word count")
		}
	})

	t.Run("boilerplate page", func(t *testing.T) {
		html := articleHTML("Missing", 200)
		html = strings.Replace(html, "<p>", "<p>404 not found. The page you requested could not be found. ", 1)
		if got := extractArticle(html, candidate, opts); got != nil {
			t.Error("Expected nil for boilerplate page")
		}
	})

	t.Run("non-ascii page", func(t *testing.T) {
		words := make([]string, 200)
		for i := range words {
			words[i] = "слово"
		}
		html := fmt.Sprintf("<html><body><article><p>%s</p></article></body></html>", strings.Join(words, " "))
		if got := extractArticle(html, candidate, opts); got != nil {
			t.Error("Expected nil for page failing the language heuristic")
		}
	})
}

func TestExtractArticleBodyFallback(t *testing.T) {
	opts := testOptions()
	words := make([]string, 200)
	for i := range words {
		words[i] = fmt.Sprintf("w%d", i)
	}
	// No structural container at all; body fallback must still extract.
	html := fmt.Sprintf("<html><body><p>%s</p></body></html>", strings.Join(words, " "))

	article := extractArticle(html, core.SearchResult{URL: "https://example.com/a", Title: "t"}, opts)
	if article == nil {
		t.Fatal("Expected full-body fallback to extract content")
	}
}

func TestProcessAllCachesAndResumes(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		fmt.Fprint(w, articleHTML("Cached article", 200))
	}))
	defer server.Close()

	artifacts := newTestStore(t)
	fetcher := NewFetcher(artifacts, testOptions())
	weekDir := t.TempDir()

	candidates := []core.SearchResult{
		{URL: server.URL + "/a", Title: "A", Domain: "example.com", Topic: core.TopicJewellery},
	}

	articles, err := fetcher.ProcessAll(context.Background(), weekDir, candidates)
	if err != nil {
		t.Fatalf("ProcessAll returned error: %v", err)
	}
	if len(articles) != 1 {
		t.Fatalf("Expected 1 extracted article, got %d", len(articles))
	}
	if requests != 1 {
		t.Fatalf("Expected 1 HTTP request, got %d", requests)
	}

	// Second pass must be served from the artifact store.
	articles, err = fetcher.ProcessAll(context.Background(), weekDir, candidates)
	if err != nil {
		t.Fatalf("second ProcessAll returned error: %v", err)
	}
	if len(articles) != 1 {
		t.Fatalf("Expected 1 article on second pass, got %d", len(articles))
	}
	if requests != 1 {
		t.Errorf("Expected no further HTTP requests, got %d", requests)
	}
}

func TestProcessAllFetchFailureIsSoft(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/bad") {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, articleHTML("Good article", 200))
	}))
	defer server.Close()

	fetcher := NewFetcher(newTestStore(t), testOptions())

	articles, err := fetcher.ProcessAll(context.Background(), t.TempDir(), []core.SearchResult{
		{URL: server.URL + "/bad", Title: "Bad", Domain: "example.com"},
		{URL: server.URL + "/good", Title: "Good", Domain: "example.com"},
	})
	if err != nil {
		t.Fatalf("Expected per-item failure to be soft, got %v", err)
	}
	if len(articles) != 1 {
		t.Fatalf("Expected 1 surviving article, got %d", len(articles))
	}
	if articles[0].Title != "Good article" {
		t.Errorf("Expected the good article to survive, got %q", articles[0].Title)
	}
}

func TestProcessAllDeletesLedgerOnCompletion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, articleHTML("Article", 200))
	}))
	defer server.Close()

	fetcher := NewFetcher(newTestStore(t), testOptions())
	weekDir := t.TempDir()

	_, err := fetcher.ProcessAll(context.Background(), weekDir, []core.SearchResult{
		{URL: server.URL + "/a", Title: "A", Domain: "example.com"},
	})
	if err != nil {
		t.Fatalf("ProcessAll returned error: %v", err)
	}

	ledger, err := OpenLedger(weekDir + "/fetch-ledger.json")
	if err != nil {
		t.Fatalf("OpenLedger returned error: %v", err)
	}
	if ledger.Size() != 0 {
		t.Errorf("Expected ledger to be deleted after completion, found %d entries", ledger.Size())
	}
}

func TestProcessAllSnippetBackfill(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, articleHTML("Article", 200))
	}))
	defer server.Close()

	artifacts := newTestStore(t)
	fetcher := NewFetcher(artifacts, testOptions())
	url := server.URL + "/a"

	// First run discovers the article without a snippet.
	if _, err := fetcher.ProcessAll(context.Background(), t.TempDir(), []core.SearchResult{
		{URL: url, Title: "A", Domain: "example.com"},
	}); err != nil {
		t.Fatalf("first ProcessAll returned error: %v", err)
	}

	// A later run brings a snippet; it must be backfilled into the artifact.
	articles, err := fetcher.ProcessAll(context.Background(), t.TempDir(), []core.SearchResult{
		{URL: url, Title: "A", Domain: "example.com", Snippet: "late snippet"},
	})
	if err != nil {
		t.Fatalf("second ProcessAll returned error: %v", err)
	}
	if len(articles) != 1 || articles[0].Snippet != "late snippet" {
		t.Errorf("Expected snippet backfill, got %+v", articles)
	}

	cached, err := artifacts.GetCachedExtraction(core.URLHash(url))
	if err != nil || cached == nil {
		t.Fatalf("expected cached extraction, got %v, %v", cached, err)
	}
	if cached.Snippet != "late snippet" {
		t.Errorf("Expected persisted snippet backfill, got %q", cached.Snippet)
	}
}
