package queries

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"newscurator/internal/cache"
	"newscurator/internal/core"
	"newscurator/internal/logger"
	"newscurator/internal/policy"
)

// RequiredBaseQueries is the exact number of base queries each topic must
// carry. Any other count is a configuration error, not something to repair.
const RequiredBaseQueries = 12

// siteQueryTerms is the per-topic term appended to domain-targeted queries.
var siteQueryTerms = map[core.Topic]string{
	core.TopicJewellery:      "jewellery",
	core.TopicWatches:        "watches",
	core.TopicLuxuryRetail:   "luxury retail",
	core.TopicSustainability: "sustainability luxury",
}

// DeltaGenerator produces novelty queries that complement a topic's base set.
type DeltaGenerator interface {
	GenerateDeltaQueries(ctx context.Context, topic core.Topic, baseQueries []string, priorHeadlines []string, count int) ([]string, error)
}

// QuerySet is the assembled query plan for one week, persisted as
// queries.json. BaseHash ties the plan to the exact base-query file that
// produced it.
type QuerySet struct {
	Week     core.Week              `json:"week"`
	BaseHash string                 `json:"baseHash"`
	Queries  map[core.Topic][]string `json:"queries"`
}

// Director assembles the per-topic query sets: fixed base queries, LLM delta
// queries, and domain-targeted consultancy/platform queries.
type Director struct {
	baseFile   string
	deltaCount int
	generator  DeltaGenerator
	policy     *policy.Policy
}

// NewDirector creates a query director. generator may be nil, in which case
// delta queries are skipped entirely.
func NewDirector(baseFile string, deltaCount int, generator DeltaGenerator, pol *policy.Policy) *Director {
	return &Director{
		baseFile:   baseFile,
		deltaCount: deltaCount,
		generator:  generator,
		policy:     pol,
	}
}

// LoadBaseQueries reads and validates the base-query file: a JSON object
// keyed by topic display name, each value an array of exactly 12 strings
// covering all four topics.
func LoadBaseQueries(path string) (map[core.Topic][]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read base query file %s: %w", path, err)
	}

	var byName map[string][]string
	if err := json.Unmarshal(raw, &byName); err != nil {
		return nil, fmt.Errorf("malformed base query file %s: %w", path, err)
	}

	base := make(map[core.Topic][]string, len(core.Topics()))
	for _, topic := range core.Topics() {
		queries, ok := byName[string(topic)]
		if !ok {
			return nil, fmt.Errorf("base query file %s: missing topic %q", path, topic)
		}
		if len(queries) != RequiredBaseQueries {
			return nil, fmt.Errorf("base query file %s: topic %q has %d queries, want exactly %d",
				path, topic, len(queries), RequiredBaseQueries)
		}
		base[topic] = queries
	}
	return base, nil
}

// BuildForWeek assembles the full query set for a week, cached under the
// week directory and keyed by the base-query file contents: editing the base
// file invalidates the cache and forces regeneration.
//
// priorHeadlines carries the previous week's key headlines per topic as
// delta-query context; missing prior data degrades to an empty context.
func (d *Director) BuildForWeek(ctx context.Context, week core.Week, weekDir string, priorHeadlines map[core.Topic][]string) (*QuerySet, error) {
	base, err := LoadBaseQueries(d.baseFile)
	if err != nil {
		return nil, err
	}

	baseHash, err := cache.FileKey(d.baseFile)
	if err != nil {
		return nil, err
	}

	cachePath := filepath.Join(weekDir, "queries.json")
	key := cache.InputKey(string(week), baseHash, strconv.Itoa(d.deltaCount))

	set, hit, err := cache.GetOrCompute(cachePath, key, func() (*QuerySet, error) {
		return d.assemble(ctx, week, baseHash, base, priorHeadlines)
	})
	if err != nil {
		return nil, err
	}
	if hit {
		logger.Info("Reusing cached query set", "week", string(week))
	}
	return set, nil
}

func (d *Director) assemble(ctx context.Context, week core.Week, baseHash string, base map[core.Topic][]string, priorHeadlines map[core.Topic][]string) (*QuerySet, error) {
	set := &QuerySet{
		Week:     week,
		BaseHash: baseHash,
		Queries:  make(map[core.Topic][]string, len(core.Topics())),
	}

	for _, topic := range core.Topics() {
		queries := append([]string{}, base[topic]...)
		queries = append(queries, d.deltaQueries(ctx, topic, base[topic], priorHeadlines[topic])...)
		queries = append(queries, d.siteQueries(topic)...)
		set.Queries[topic] = queries
		logger.Info("Assembled queries", "topic", string(topic), "count", len(queries))
	}
	return set, nil
}

// deltaQueries asks the model for novelty queries. Generation failure is a
// soft failure: the topic proceeds on base and site queries alone.
func (d *Director) deltaQueries(ctx context.Context, topic core.Topic, base []string, headlines []string) []string {
	if d.generator == nil || d.deltaCount <= 0 {
		return nil
	}

	queries, err := d.generator.GenerateDeltaQueries(ctx, topic, base, headlines, d.deltaCount)
	if err != nil {
		logger.Warn("Delta query generation failed, continuing without",
			"topic", string(topic), "error", err.Error())
		return nil
	}
	return queries
}

// siteQueries builds the domain-targeted tier from the trusted consultancy
// and platform domains.
func (d *Director) siteQueries(topic core.Topic) []string {
	term := siteQueryTerms[topic]
	var queries []string
	for _, domain := range d.policy.ConsultancyDomains {
		queries = append(queries, fmt.Sprintf("site:%s %s", domain, term))
	}
	for _, domain := range d.policy.PlatformDomains {
		queries = append(queries, fmt.Sprintf("site:%s %s", domain, term))
	}
	return queries
}
