package selection

import (
	"sort"
	"strings"
	"time"

	"newscurator/internal/core"
	"newscurator/internal/logger"
	"newscurator/internal/policy"
	"newscurator/internal/rank"
)

// Options bounds Phase B selection.
type Options struct {
	SelectTop        int
	DomainCap        int
	DomainCapRelaxed int
	PaywallMax       int
}

// DefaultOptions returns the stock selection bounds.
func DefaultOptions() Options {
	return Options{
		SelectTop:        20,
		DomainCap:        2,
		DomainCapRelaxed: 3,
		PaywallMax:       5,
	}
}

// Selector applies the deterministic Phase B policy walk over a topic's
// ranked items.
type Selector struct {
	policy *policy.Policy
	opts   Options
}

// NewSelector creates a selector.
func NewSelector(pol *policy.Policy, opts Options) *Selector {
	if opts.SelectTop <= 0 {
		opts.SelectTop = DefaultOptions().SelectTop
	}
	if opts.DomainCap <= 0 {
		opts.DomainCap = DefaultOptions().DomainCap
	}
	if opts.DomainCapRelaxed < opts.DomainCap {
		opts.DomainCapRelaxed = opts.DomainCap + 1
	}
	if opts.PaywallMax <= 0 {
		opts.PaywallMax = DefaultOptions().PaywallMax
	}
	return &Selector{policy: pol, opts: opts}
}

// state tracks one topic's admission walk.
type state struct {
	selected     []core.SelectedArticle
	selectedURLs map[string]struct{}
	domainCounts map[string]int
	// cappedOnly holds URLs whose only failure was the domain cap; the
	// relaxed pass retries exactly these.
	cappedOnly map[string]struct{}
}

// SelectTopic walks the ranked items in order and admits survivors of the
// policy checks, relaxing the domain cap once if the target cannot be met,
// then enforces the paywall cap. The report is updated in place and its
// selected_count always equals the returned slice length.
func (s *Selector) SelectTopic(topic core.Topic, ranking *rank.Result, pool []core.ExtractedArticle, report *core.TopicReport) []core.SelectedArticle {
	byURL := make(map[string]*core.ExtractedArticle, len(pool))
	for i := range pool {
		byURL[pool[i].URL] = &pool[i]
	}

	report.CandidatesIn = len(pool) + ranking.SponsoredFiltered
	report.RankedCount = len(ranking.Items)
	report.Exclusions[core.ExclSponsored] += ranking.SponsoredFiltered
	report.FallbackUsed.FallbackRanking = ranking.Method == rank.MethodFallback

	st := &state{
		selectedURLs: make(map[string]struct{}),
		domainCounts: make(map[string]int),
		cappedOnly:   make(map[string]struct{}),
	}

	s.walk(topic, ranking.Items, byURL, st, s.opts.DomainCap, report, false)

	if len(st.selected) < s.opts.SelectTop && len(st.cappedOnly) > 0 {
		report.FallbackUsed.DomainCapRelaxed = true
		logger.Info("Relaxing domain cap", "topic", string(topic),
			"selected", len(st.selected), "target", s.opts.SelectTop)
		s.walk(topic, ranking.Items, byURL, st, s.opts.DomainCapRelaxed, report, true)
	}

	s.enforcePaywallCap(topic, ranking.Items, byURL, st, report)

	sort.SliceStable(st.selected, func(i, j int) bool {
		return st.selected[i].Rank < st.selected[j].Rank
	})

	report.SelectedCount = len(st.selected)
	report.Paywall.Selected = countPaywalled(st.selected)
	return st.selected
}

// walk is one admission pass. In the relaxed pass only items that previously
// failed the domain cap alone are retried, so content exclusions are never
// double counted.
func (s *Selector) walk(topic core.Topic, items []core.RankedItem, byURL map[string]*core.ExtractedArticle, st *state, domainCap int, report *core.TopicReport, relaxed bool) {
	for _, item := range items {
		if len(st.selected) >= s.opts.SelectTop {
			return
		}
		if _, done := st.selectedURLs[item.URL]; done {
			continue
		}
		if relaxed {
			if _, retry := st.cappedOnly[item.URL]; !retry {
				continue
			}
		}

		article, ok := byURL[item.URL]
		if !ok {
			continue
		}
		text := article.Title + " " + article.Snippet + " " + article.ExtractedText

		if !relaxed {
			if s.policy.IsHardControversial(text) {
				report.Exclusions[core.ExclHardControversy]++
				continue
			}
			// Defensive re-check; Phase A already filtered sponsored.
			if s.policy.IsSponsored(article.Title + " " + article.Snippet) {
				report.Exclusions[core.ExclSponsored]++
				continue
			}
		}

		if s.isDuplicateTitle(article.Title, st.selected) {
			if !relaxed {
				report.Exclusions[core.ExclDuplicate]++
			}
			continue
		}

		if st.domainCounts[article.Domain] >= domainCap {
			if !relaxed {
				report.Exclusions[core.ExclDomainCap]++
				st.cappedOnly[item.URL] = struct{}{}
			}
			continue
		}

		delete(st.cappedOnly, item.URL)
		s.admit(topic, item, article, st)
	}
}

// admit appends one survivor and updates the walk state.
func (s *Selector) admit(topic core.Topic, item core.RankedItem, article *core.ExtractedArticle, st *state) {
	selected := core.SelectedArticle{
		URL:           article.URL,
		Title:         article.Title,
		Snippet:       article.Snippet,
		Domain:        article.Domain,
		PublishedDate: article.PublishedDate,
		DiscoveredAt:  time.Now().UTC().Format(time.RFC3339),
		Rank:          item.Rank,
		Why:           item.Why,
		Confidence:    item.Confidence,
		Category:      topic,
	}

	if article.PublishedDate != "" && !validPublishedDate(article.PublishedDate) {
		selected.PublishedDateInvalid = true
	}
	if s.policy.IsPaywalledDomain(article.Domain) {
		selected.PaywallStatus = "paywalled"
	}
	if topic == core.TopicJewellery {
		matched, score := s.policy.MatchCompanies(article.Title, article.ExtractedText)
		selected.MatchedCompanies = matched
		selected.CompanyBoostScore = score
	}

	st.selected = append(st.selected, selected)
	st.selectedURLs[article.URL] = struct{}{}
	st.domainCounts[article.Domain]++
}

// isDuplicateTitle reports whether the title near-duplicates an already
// selected one.
func (s *Selector) isDuplicateTitle(title string, selected []core.SelectedArticle) bool {
	for _, existing := range selected {
		if policy.IsNearDuplicateTitle(title, existing.Title) {
			return true
		}
	}
	return false
}

// enforcePaywallCap evicts the lowest-ranked paywalled items above the cap
// and backfills from the ranked list with non-paywalled survivors. When no
// replacement qualifies the selection falls below target rather than carry
// excess paywalled items.
func (s *Selector) enforcePaywallCap(topic core.Topic, items []core.RankedItem, byURL map[string]*core.ExtractedArticle, st *state, report *core.TopicReport) {
	paywalled := countPaywalled(st.selected)
	if paywalled <= s.opts.PaywallMax {
		return
	}

	// The relaxed pass appends readmitted items at the tail, so the slice is
	// not yet in rank order. Sort first: eviction must take the lowest-ranked
	// paywalled items, not the most recently admitted.
	sort.SliceStable(st.selected, func(i, j int) bool {
		return st.selected[i].Rank < st.selected[j].Rank
	})

	// Evict from the bottom of the ranking upward.
	for i := len(st.selected) - 1; i >= 0 && paywalled > s.opts.PaywallMax; i-- {
		if st.selected[i].PaywallStatus != "paywalled" {
			continue
		}
		evicted := st.selected[i]
		st.selected = append(st.selected[:i], st.selected[i+1:]...)
		st.domainCounts[evicted.Domain]--
		paywalled--
		report.Paywall.Evicted++
		logger.Info("Evicted paywalled article", "topic", string(topic), "url", evicted.URL)
		// The URL stays in selectedURLs so backfill never readmits it.
	}

	domainCap := s.opts.DomainCap
	if report.FallbackUsed.DomainCapRelaxed {
		domainCap = s.opts.DomainCapRelaxed
	}

	for _, item := range items {
		if len(st.selected) >= s.opts.SelectTop {
			break
		}
		if _, done := st.selectedURLs[item.URL]; done {
			continue
		}
		article, ok := byURL[item.URL]
		if !ok {
			continue
		}
		if s.policy.IsPaywalledDomain(article.Domain) {
			continue
		}
		text := article.Title + " " + article.Snippet + " " + article.ExtractedText
		if s.policy.IsHardControversial(text) {
			continue
		}
		if s.policy.IsSponsored(article.Title + " " + article.Snippet) {
			continue
		}
		if s.isDuplicateTitle(article.Title, st.selected) {
			continue
		}
		if st.domainCounts[article.Domain] >= domainCap {
			continue
		}

		s.admit(topic, item, article, st)
		report.Paywall.Backfilled++
	}
}

func countPaywalled(selected []core.SelectedArticle) int {
	count := 0
	for _, article := range selected {
		if strings.EqualFold(article.PaywallStatus, "paywalled") {
			count++
		}
	}
	return count
}

// validPublishedDate accepts the date shapes the backends actually emit.
func validPublishedDate(value string) bool {
	for _, layout := range []string{time.RFC3339, "2006-01-02", time.RFC1123, time.RFC1123Z} {
		if _, err := time.Parse(layout, value); err == nil {
			return true
		}
	}
	return false
}
