package rank

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"newscurator/internal/core"
	"newscurator/internal/llm"
	"newscurator/internal/policy"
)

type stubModel struct {
	items     []core.RankedItem
	err       error
	lastBatch []llm.RankCandidate
}

func (s *stubModel) RankCandidates(_ context.Context, _ core.Topic, candidates []llm.RankCandidate, _ int) ([]core.RankedItem, error) {
	s.lastBatch = candidates
	if s.err != nil {
		return nil, s.err
	}
	return s.items, nil
}

func makeArticles(n int) []core.ExtractedArticle {
	articles := make([]core.ExtractedArticle, n)
	for i := range articles {
		articles[i] = core.ExtractedArticle{
			URL:       fmt.Sprintf("https://example.com/%d", i),
			Title:     fmt.Sprintf("Article %d", i),
			Domain:    "example.com",
			WordCount: 100 + i,
		}
	}
	return articles
}

func TestRankTopicSponsoredPreFilter(t *testing.T) {
	articles := makeArticles(3)
	articles[1].Title = "Press Release: Acme launches new line"

	model := &stubModel{items: []core.RankedItem{
		{URL: articles[0].URL, Rank: 1},
		{URL: articles[2].URL, Rank: 2},
	}}
	ranker := NewRanker(model, policy.Default(), 40, 20)

	result, pool := ranker.RankTopic(context.Background(), core.TopicWatches, articles)
	if result.SponsoredFiltered != 1 {
		t.Errorf("Expected 1 sponsored candidate filtered, got %d", result.SponsoredFiltered)
	}
	if len(pool) != 2 {
		t.Errorf("Expected pool of 2, got %d", len(pool))
	}
	if len(model.lastBatch) != 2 {
		t.Errorf("Expected model to see 2 candidates, got %d", len(model.lastBatch))
	}
	if result.Method != MethodLLM {
		t.Errorf("Expected MethodLLM, got %q", result.Method)
	}
}

func TestRankTopicDefensiveResort(t *testing.T) {
	articles := makeArticles(3)
	// Model returns its own output mis-ordered; ranks must drive the order.
	model := &stubModel{items: []core.RankedItem{
		{URL: articles[2].URL, Rank: 3},
		{URL: articles[0].URL, Rank: 1},
		{URL: articles[1].URL, Rank: 2},
	}}
	ranker := NewRanker(model, policy.Default(), 40, 20)

	result, _ := ranker.RankTopic(context.Background(), core.TopicWatches, articles)
	if result.Items[0].URL != articles[0].URL {
		t.Errorf("Expected rank 1 first after re-sort, got %s", result.Items[0].URL)
	}
	for i, item := range result.Items {
		if item.Rank != i+1 {
			t.Errorf("Expected dense rank %d, got %d", i+1, item.Rank)
		}
	}
}

func TestRankTopicUnknownURLsDropped(t *testing.T) {
	articles := makeArticles(2)
	model := &stubModel{items: []core.RankedItem{
		{URL: articles[0].URL, Rank: 1},
		{URL: "https://hallucinated.example/x", Rank: 2},
		{URL: articles[1].URL, Rank: 3},
	}}
	ranker := NewRanker(model, policy.Default(), 40, 20)

	result, _ := ranker.RankTopic(context.Background(), core.TopicWatches, articles)
	if len(result.Items) != 2 {
		t.Fatalf("Expected hallucinated URL to be dropped, got %d items", len(result.Items))
	}
	if result.Method != MethodLLM {
		t.Errorf("Expected MethodLLM despite dropped item, got %q", result.Method)
	}
}

func TestRankTopicShortResponseTolerated(t *testing.T) {
	articles := makeArticles(40)
	// 30 items when 40 were requested: proceed with the reduced pool.
	items := make([]core.RankedItem, 30)
	for i := range items {
		items[i] = core.RankedItem{URL: articles[i].URL, Rank: i + 1}
	}
	model := &stubModel{items: items}
	ranker := NewRanker(model, policy.Default(), 40, 40)

	result, _ := ranker.RankTopic(context.Background(), core.TopicWatches, articles)
	if len(result.Items) != 30 {
		t.Errorf("Expected 30 ranked items, got %d", len(result.Items))
	}
	if result.Method != MethodLLM {
		t.Errorf("Expected MethodLLM for short response, got %q", result.Method)
	}
}

func TestRankTopicFallbackOnModelFailure(t *testing.T) {
	articles := makeArticles(3)
	model := &stubModel{err: errors.New("malformed JSON")}
	ranker := NewRanker(model, policy.Default(), 40, 20)

	result, _ := ranker.RankTopic(context.Background(), core.TopicWatches, articles)
	if result.Method != MethodFallback {
		t.Fatalf("Expected MethodFallback, got %q", result.Method)
	}
	// Fallback orders by word count descending; article 2 has the most words.
	if result.Items[0].URL != articles[2].URL {
		t.Errorf("Expected longest article first, got %s", result.Items[0].URL)
	}
	for i, item := range result.Items {
		if item.Rank != i+1 {
			t.Errorf("Expected dense rank %d, got %d", i+1, item.Rank)
		}
	}
}

func TestRankTopicCompanyBoostJewelleryOnly(t *testing.T) {
	articles := makeArticles(1)
	articles[0].Title = "Pandora expands in Asia"
	model := &stubModel{items: []core.RankedItem{{URL: articles[0].URL, Rank: 1}}}
	ranker := NewRanker(model, policy.Default(), 40, 20)

	ranker.RankTopic(context.Background(), core.TopicJewellery, articles)
	if len(model.lastBatch) != 1 || model.lastBatch[0].CompanyBoostScore == 0 {
		t.Error("Expected company boost for Jewellery candidates")
	}

	ranker.RankTopic(context.Background(), core.TopicWatches, articles)
	if model.lastBatch[0].CompanyBoostScore != 0 {
		t.Error("Did not expect company boost outside Jewellery")
	}
}

func TestRankTopicBatchCap(t *testing.T) {
	articles := makeArticles(50)
	model := &stubModel{items: []core.RankedItem{{URL: articles[0].URL, Rank: 1}}}
	ranker := NewRanker(model, policy.Default(), 40, 20)

	ranker.RankTopic(context.Background(), core.TopicWatches, articles)
	if len(model.lastBatch) != 40 {
		t.Errorf("Expected batch capped at 40, got %d", len(model.lastBatch))
	}
}
