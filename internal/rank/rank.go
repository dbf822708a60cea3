package rank

import (
	"context"
	"sort"

	"newscurator/internal/core"
	"newscurator/internal/llm"
	"newscurator/internal/logger"
	"newscurator/internal/policy"
)

// Method tags how a topic's ranking was produced. A fallback ranking must
// never masquerade as a model ranking.
type Method string

const (
	MethodLLM      Method = "llm"
	MethodFallback Method = "fallback"
)

// Result is one topic's ranking outcome.
type Result struct {
	Topic             core.Topic        `json:"topic"`
	Method            Method            `json:"method"`
	Items             []core.RankedItem `json:"items"`
	SponsoredFiltered int               `json:"sponsoredFiltered"`
}

// Model is the ranking contract against the LLM client.
type Model interface {
	RankCandidates(ctx context.Context, topic core.Topic, candidates []llm.RankCandidate, targetK int) ([]core.RankedItem, error)
}

// Ranker runs Phase A: deterministic sponsored pre-filtering, company-boost
// context, the model call, structural validation, and the word-count
// fallback when the model cannot deliver.
type Ranker struct {
	model    Model
	policy   *policy.Policy
	batchMax int
	targetK  int
}

// NewRanker creates a ranker. batchMax bounds how many candidates are sent
// to the model per topic; targetK is the requested ranking depth.
func NewRanker(model Model, pol *policy.Policy, batchMax, targetK int) *Ranker {
	if batchMax <= 0 {
		batchMax = 40
	}
	if targetK <= 0 {
		targetK = batchMax
	}
	return &Ranker{model: model, policy: pol, batchMax: batchMax, targetK: targetK}
}

// RankTopic ranks one topic's extracted articles. The returned pool is the
// sponsored-filtered candidate set the ranking drew from; selection needs it
// to resolve ranked URLs back to articles.
func (r *Ranker) RankTopic(ctx context.Context, topic core.Topic, articles []core.ExtractedArticle) (*Result, []core.ExtractedArticle) {
	result := &Result{Topic: topic, Method: MethodLLM}

	// Sponsored detection is deterministic and happens before the model
	// ever sees a candidate.
	var pool []core.ExtractedArticle
	for _, article := range articles {
		if r.policy.IsSponsored(article.Title + " " + article.Snippet) {
			result.SponsoredFiltered++
			continue
		}
		pool = append(pool, article)
	}

	if len(pool) == 0 {
		return result, pool
	}

	batch := pool
	if len(batch) > r.batchMax {
		batch = batch[:r.batchMax]
	}

	candidates := make([]llm.RankCandidate, len(batch))
	for i, article := range batch {
		candidate := llm.RankCandidate{
			URL:       article.URL,
			Title:     article.Title,
			Snippet:   article.Snippet,
			Domain:    article.Domain,
			WordCount: article.WordCount,
		}
		// Company mentions are contextual signal for the model, Jewellery
		// only. They never bypass selection constraints.
		if topic == core.TopicJewellery {
			matched, score := r.policy.MatchCompanies(article.Title, article.ExtractedText)
			candidate.MatchedCompanies = matched
			candidate.CompanyBoostScore = score
		}
		candidates[i] = candidate
	}

	items, err := r.model.RankCandidates(ctx, topic, candidates, r.targetK)
	if err == nil {
		items = validate(items, batch)
	}
	if err != nil || len(items) == 0 {
		if err != nil {
			logger.Warn("Model ranking failed, using word-count fallback",
				"topic", string(topic), "error", err.Error())
		} else {
			logger.Warn("Model ranking returned no usable items, using word-count fallback",
				"topic", string(topic))
		}
		result.Method = MethodFallback
		result.Items = fallbackRank(batch, r.targetK)
		return result, pool
	}

	result.Items = items
	return result, pool
}

// validate enforces the structural contract: every item must reference a
// known candidate URL, the list is re-sorted by rank defensively, and ranks
// are re-densified to 1..n. A response shorter than requested is tolerated;
// selection simply draws from a reduced pool.
func validate(items []core.RankedItem, batch []core.ExtractedArticle) []core.RankedItem {
	known := make(map[string]struct{}, len(batch))
	for _, article := range batch {
		known[article.URL] = struct{}{}
	}

	var kept []core.RankedItem
	seen := make(map[string]struct{})
	for _, item := range items {
		if _, ok := known[item.URL]; !ok {
			logger.Debug("Dropping ranked item with unknown URL", "url", item.URL)
			continue
		}
		if _, dup := seen[item.URL]; dup {
			continue
		}
		seen[item.URL] = struct{}{}
		kept = append(kept, item)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Rank < kept[j].Rank
	})
	for i := range kept {
		kept[i].Rank = i + 1
	}
	return kept
}

// fallbackRank is the deterministic stand-in when the model fails: longest
// extracted text first.
func fallbackRank(batch []core.ExtractedArticle, targetK int) []core.RankedItem {
	sorted := make([]core.ExtractedArticle, len(batch))
	copy(sorted, batch)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].WordCount > sorted[j].WordCount
	})

	if len(sorted) > targetK {
		sorted = sorted[:targetK]
	}

	items := make([]core.RankedItem, len(sorted))
	for i, article := range sorted {
		items[i] = core.RankedItem{
			URL:             article.URL,
			Rank:            i + 1,
			Why:             "Ranked by extracted word count (model unavailable)",
			ControversyRisk: core.RiskNone,
		}
	}
	return items
}
