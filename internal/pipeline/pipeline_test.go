package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"newscurator/internal/cache"
	"newscurator/internal/core"
	"newscurator/internal/fetch"
	"newscurator/internal/llm"
	"newscurator/internal/merge"
	"newscurator/internal/policy"
	"newscurator/internal/queries"
	"newscurator/internal/rank"
	"newscurator/internal/search"
	"newscurator/internal/selection"
	"newscurator/internal/store"
)

type passthroughModel struct{}

func (passthroughModel) RankCandidates(_ context.Context, _ core.Topic, candidates []llm.RankCandidate, targetK int) ([]core.RankedItem, error) {
	n := len(candidates)
	if targetK < n {
		n = targetK
	}
	items := make([]core.RankedItem, n)
	for i := 0; i < n; i++ {
		items[i] = core.RankedItem{
			URL:             candidates[i].URL,
			Rank:            i + 1,
			Why:             "test ranking",
			ControversyRisk: core.RiskNone,
			Confidence:      0.9,
		}
	}
	return items, nil
}

func writeBaseQueries(t *testing.T, dir string) string {
	t.Helper()
	base := make(map[string][]string)
	for _, topic := range core.Topics() {
		qs := make([]string, queries.RequiredBaseQueries)
		for i := range qs {
			qs[i] = fmt.Sprintf("%s q%d", topic, i)
		}
		base[string(topic)] = qs
	}
	data, _ := json.Marshal(base)
	path := filepath.Join(dir, "base-queries.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("failed to write base queries: %v", err)
	}
	return path
}

func articlePage(n int) string {
	words := make([]string, 200)
	for i := range words {
		words[i] = fmt.Sprintf("word%d", i)
	}
	return fmt.Sprintf(`<html><head><title>Distinct jewellery story %d</title></head>
<body><article><p>%s</p></article></body></html>`, n, strings.Join(words, " "))
}

func newTestPipeline(t *testing.T, serverURL string) (*Pipeline, string) {
	t.Helper()
	dataDir := t.TempDir()

	pol := policy.Default()
	// No site queries keeps the mock search plan small.
	pol.ConsultancyDomains = nil
	pol.PlatformDomains = nil

	provider := search.NewMockProvider()
	provider.SetResults(nil)
	for _, topic := range core.Topics() {
		for i := 0; i < queries.RequiredBaseQueries; i++ {
			query := fmt.Sprintf("%s q%d", topic, i)
			if i < 3 {
				provider.SetResultsForQuery(query, []search.Result{{
					URL:    fmt.Sprintf("%s/%s/%d", serverURL, strings.ReplaceAll(string(topic), " ", "-"), i),
					Title:  fmt.Sprintf("%s headline %d", topic, i),
					Domain: fmt.Sprintf("source%d.com", i),
				}})
			}
		}
	}

	artifacts, err := store.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = artifacts.Close() })

	fetchOpts := fetch.DefaultOptions()
	fetchOpts.RequestDelay = 0

	deps := Deps{
		Director:      queries.NewDirector(writeBaseQueries(t, t.TempDir()), 0, nil, pol),
		Searcher:      search.NewSearcher(provider, 10, 0),
		Fetcher:       fetch.NewFetcher(artifacts, fetchOpts),
		Ranker:        rank.NewRanker(passthroughModel{}, pol, 40, 20),
		Selector:      selection.NewSelector(pol, selection.DefaultOptions()),
		Merger:        merge.NewMerger(dataDir),
		DataDir:       dataDir,
		MaxCandidates: 200,
	}
	return New(deps), dataDir
}

func TestPipelineRunEndToEnd(t *testing.T) {
	n := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n++
		fmt.Fprint(w, articlePage(n))
	}))
	defer server.Close()

	pipeline, dataDir := newTestPipeline(t, server.URL)

	report, err := pipeline.Run(context.Background(), "2026-W34")
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if report.TotalSelected() == 0 {
		t.Fatal("Expected a non-empty selection")
	}
	for topic, tr := range report.Topics {
		if tr.SelectedCount < 0 || tr.Exclusions == nil {
			t.Errorf("Malformed report for %s: %+v", topic, tr)
		}
	}

	weekDir := WeekDir(dataDir, "2026-W34")
	for _, name := range []string{
		"queries.json", "serp-results.json", "candidates.json",
		"selected-top20.json", "report.json", "discoveryArticles.json",
	} {
		if _, err := os.Stat(filepath.Join(weekDir, name)); err != nil {
			t.Errorf("Expected %s to exist: %v", name, err)
		}
	}

	stored, err := cache.ReadJSONFile[[]core.Article](filepath.Join(weekDir, "discoveryArticles.json"))
	if err != nil {
		t.Fatalf("failed to read discovery store: %v", err)
	}
	if len(stored) != report.TotalSelected() {
		t.Errorf("Expected %d merged articles, got %d", report.TotalSelected(), len(stored))
	}
}

func TestPipelineRerunShortCircuits(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		fmt.Fprint(w, articlePage(requests))
	}))
	defer server.Close()

	pipeline, _ := newTestPipeline(t, server.URL)

	first, err := pipeline.Run(context.Background(), "2026-W34")
	if err != nil {
		t.Fatalf("first Run returned error: %v", err)
	}
	fetchedFirst := requests

	second, err := pipeline.Run(context.Background(), "2026-W34")
	if err != nil {
		t.Fatalf("second Run returned error: %v", err)
	}

	if requests != fetchedFirst {
		t.Errorf("Expected rerun to make no HTTP fetches, went %d -> %d", fetchedFirst, requests)
	}
	if second.TotalSelected() != first.TotalSelected() {
		t.Errorf("Expected identical selection on rerun, got %d vs %d",
			second.TotalSelected(), first.TotalSelected())
	}
}
