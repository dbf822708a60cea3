package core

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// Topic is one of the four fixed curation categories. The set is closed:
// every per-topic map in the pipeline is keyed by exactly these values.
type Topic string

const (
	TopicJewellery      Topic = "Jewellery"
	TopicWatches        Topic = "Watches"
	TopicLuxuryRetail   Topic = "Luxury Retail"
	TopicSustainability Topic = "Sustainability"
)

// Topics returns all categories in their canonical order.
func Topics() []Topic {
	return []Topic{TopicJewellery, TopicWatches, TopicLuxuryRetail, TopicSustainability}
}

// ParseTopic validates a topic display name against the closed set.
func ParseTopic(s string) (Topic, error) {
	for _, t := range Topics() {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown topic %q", s)
}

// Week is an ISO week label in the form "YYYY-W##".
type Week string

var weekPattern = regexp.MustCompile(`^(\d{4})-W(\d{2})$`)

// ParseWeek validates a week label.
func ParseWeek(s string) (Week, error) {
	m := weekPattern.FindStringSubmatch(s)
	if m == nil {
		return "", fmt.Errorf("invalid week label %q: expected YYYY-W##", s)
	}
	week, _ := strconv.Atoi(m[2])
	if week < 1 || week > 53 {
		return "", fmt.Errorf("invalid week label %q: week number out of range", s)
	}
	return Week(s), nil
}

// WeekOf returns the week label for a point in time, evaluated in the given
// location (the publication calendar is Europe-based).
func WeekOf(t time.Time, loc *time.Location) Week {
	year, week := t.In(loc).ISOWeek()
	return Week(fmt.Sprintf("%d-W%02d", year, week))
}

// URLHash is the stable content address derived from a URL. It keys the raw
// HTML cache, the extraction artifact, and the merged article ID.
func URLHash(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}

// SearchResult is a single deduplicated hit from the search backend,
// tagged with the topic whose query produced it. Immutable once recorded.
type SearchResult struct {
	URL           string  `json:"url"`
	Title         string  `json:"title"`
	Snippet       string  `json:"snippet"`
	Domain        string  `json:"domain"`
	PublishedDate string  `json:"publishedDate,omitempty"`
	Score         float64 `json:"score,omitempty"`
	Topic         Topic   `json:"topic"`
}

// ExtractedArticle is the per-URL extraction artifact produced by Fetch &
// Extract. Created once per URL per week; only the snippet may be backfilled
// after creation.
type ExtractedArticle struct {
	URL           string `json:"url"`
	Title         string `json:"title"`
	Snippet       string `json:"snippet"`
	Domain        string `json:"domain"`
	PublishedDate string `json:"publishedDate,omitempty"`
	ExtractedText string `json:"extractedText"`
	WordCount     int    `json:"wordCount"`
	Author        string `json:"author,omitempty"`
	Hash          string `json:"hash"`
	Topic         Topic  `json:"topic"`
}

// ControversyRisk is the model-assigned risk label on a ranked item.
type ControversyRisk string

const (
	RiskNone ControversyRisk = "none"
	RiskLow  ControversyRisk = "low"
	RiskMed  ControversyRisk = "med"
	RiskHigh ControversyRisk = "high"
)

// RankedItem is one entry of the model's ranking response. It is transient:
// only the ranking request and response are logged, the items themselves feed
// straight into selection.
type RankedItem struct {
	URL             string          `json:"url"`
	Rank            int             `json:"rank"`
	Why             string          `json:"why"`
	PrimaryTag      string          `json:"primaryTag"`
	InsightType     string          `json:"insightType"`
	ControversyRisk ControversyRisk `json:"controversyRisk"`
	Confidence      float64         `json:"confidence"`
}

// SelectedArticle is the pipeline's terminal artifact per topic, ordered by
// (category, rank).
type SelectedArticle struct {
	URL                  string   `json:"url"`
	Title                string   `json:"title"`
	Snippet              string   `json:"snippet,omitempty"`
	Domain               string   `json:"domain"`
	PublishedDate        string   `json:"publishedDate,omitempty"`
	PublishedDateInvalid bool     `json:"publishedDateInvalid,omitempty"`
	DiscoveredAt         string   `json:"discoveredAt,omitempty"`
	Rank                 int      `json:"rank"`
	Why                  string   `json:"why"`
	Confidence           float64  `json:"confidence"`
	Category             Topic    `json:"category"`
	PaywallStatus        string   `json:"paywallStatus,omitempty"`
	MatchedCompanies     []string `json:"matchedCompanies,omitempty"`
	CompanyBoostScore    int      `json:"companyBoostScore,omitempty"`
}

// Exclusion reasons counted during Phase B selection.
const (
	ExclDomainCap       = "domainCap"
	ExclDuplicate       = "duplicate"
	ExclHardControversy = "hardControversy"
	ExclSponsored       = "sponsored"
)

// FallbackFlags records which relaxations a topic's selection needed.
type FallbackFlags struct {
	DomainCapRelaxed bool `json:"domainCapRelaxed"`
	FallbackRanking  bool `json:"fallbackRanking"`
}

// PaywallStats summarizes paywall-cap enforcement for one topic.
type PaywallStats struct {
	Selected   int `json:"selected"`
	Evicted    int `json:"evicted"`
	Backfilled int `json:"backfilled"`
}

// TopicReport is the per-topic audit trail of ranking and selection. It must
// be reproducible from the same inputs.
type TopicReport struct {
	CandidatesIn  int            `json:"candidates_in"`
	RankedCount   int            `json:"ranked_count"`
	SelectedCount int            `json:"selected_count"`
	Exclusions    map[string]int `json:"exclusions"`
	FallbackUsed  FallbackFlags  `json:"fallback_used"`
	Paywall       PaywallStats   `json:"paywall"`
}

// NewTopicReport returns a report with every exclusion counter present, so
// downstream consumers never see a missing key.
func NewTopicReport() *TopicReport {
	return &TopicReport{
		Exclusions: map[string]int{
			ExclDomainCap:       0,
			ExclDuplicate:       0,
			ExclHardControversy: 0,
			ExclSponsored:       0,
		},
	}
}

// SelectionReport aggregates the per-topic reports for one week's run. It is
// built once and threaded through every stage rather than re-declared per
// component.
type SelectionReport struct {
	RunID       string                 `json:"run_id"`
	Week        Week                   `json:"week"`
	GeneratedAt time.Time              `json:"generated_at"`
	Topics      map[Topic]*TopicReport `json:"topics"`
}

// NewSelectionReport builds a report covering all four topics.
func NewSelectionReport(runID string, week Week) *SelectionReport {
	topics := make(map[Topic]*TopicReport, len(Topics()))
	for _, t := range Topics() {
		topics[t] = NewTopicReport()
	}
	return &SelectionReport{
		RunID:       runID,
		Week:        week,
		GeneratedAt: time.Now().UTC(),
		Topics:      topics,
	}
}

// TotalSelected sums selected counts across topics.
func (r *SelectionReport) TotalSelected() int {
	total := 0
	for _, tr := range r.Topics {
		total += tr.SelectedCount
	}
	return total
}

// Article is the durable merged record appended to the week-scoped store.
// ID is the URL hash, which makes merges idempotent.
type Article struct {
	ID                   string    `json:"id"`
	Title                string    `json:"title"`
	URL                  string    `json:"url"`
	Source               string    `json:"source"`
	PublishedAt          string    `json:"published_at,omitempty"`
	IngestedAt           time.Time `json:"ingested_at"`
	Snippet              string    `json:"snippet,omitempty"`
	DiscoveredAt         string    `json:"discoveredAt,omitempty"`
	PublishedDateInvalid bool      `json:"publishedDateInvalid,omitempty"`
	SourceType           string    `json:"sourceType"`
}
