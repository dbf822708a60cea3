package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"google.golang.org/genai"

	"newscurator/internal/core"
	"newscurator/internal/logger"
)

const (
	// DefaultModel is the default Gemini model for ranking and query
	// generation.
	DefaultModel = "gemini-2.5-flash"

	deltaQueriesPromptTemplate = `You generate %d fresh web-search queries for a weekly trade-news curation on the topic "%s".

The following base queries already run every week. Your queries must NOT repeat or paraphrase any of them:
%s

%sRules:
- Each query must surface news angles the base queries would miss this week.
- Never reference wars, armed conflicts, identity or culture-war debates, or election horse-race coverage.
- Plain search queries only, no quotes, no site: operators.

Return a JSON array of exactly %d query strings.`

	rankPromptTemplate = `You are ranking candidate news articles for the weekly "%s" brief of a jewellery and luxury-retail trade publication.

Rank, do not filter: return exactly %d items, the most relevant first. Every returned item must be one of the candidates, identified by its exact URL.

For each item provide:
- url: the candidate URL, verbatim
- rank: dense 1..%d ordering
- why: one sentence on why it earns its position
- primaryTag: the dominant subject (e.g. "lab-grown diamonds", "retail expansion")
- insightType: one of "news", "analysis", "data", "opinion"
- controversyRisk: "none", "low", "med" or "high"
- confidence: 0.0-1.0

Candidates:
%s`
)

// Client is the narrow typed contract against the Gemini API: delta-query
// generation and candidate ranking. Prompt content is a tuning parameter,
// not part of the structural contract.
type Client struct {
	apiKey    string
	modelName string
	timeout   time.Duration
	gClient   *genai.Client
}

// NewClient creates a new LLM client. The API key is taken from the
// GEMINI_API_KEY environment variable (or alternatives) with the viper
// configuration as fallback.
func NewClient(modelName string, timeout time.Duration) (*Client, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		if apiKey = os.Getenv("GOOGLE_GEMINI_API_KEY"); apiKey == "" {
			apiKey = viper.GetString("ai.gemini.api_key")
		}
	}
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required. Set GEMINI_API_KEY environment variable or ai.gemini.api_key in config file")
	}

	if modelName == "" {
		modelName = viper.GetString("ai.gemini.model")
		if modelName == "" {
			modelName = DefaultModel
		}
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	ctx := context.Background()
	gClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Client{
		apiKey:    apiKey,
		modelName: modelName,
		timeout:   timeout,
		gClient:   gClient,
	}, nil
}

// Close cleans up resources used by the client
func (c *Client) Close() {
	// SDK client doesn't require explicit close
}

// generateJSON runs one structured-output generation call under the client's
// per-call timeout.
func (c *Client) generateJSON(ctx context.Context, prompt string, schema *genai.Schema) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: prompt}},
		Role:  "user",
	}}

	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(float32(0.2)),
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
	}

	resp, err := c.gClient.Models.GenerateContent(ctx, c.modelName, contents, config)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("empty response from model")
	}
	return text, nil
}

var deltaQueriesSchema = &genai.Schema{
	Type:  genai.TypeArray,
	Items: &genai.Schema{Type: genai.TypeString},
}

// GenerateDeltaQueries asks the model for novelty queries that complement
// the fixed base set. priorHeadlines carries last week's key headlines as
// context; an empty slice degrades to no context, never an error.
func (c *Client) GenerateDeltaQueries(ctx context.Context, topic core.Topic, baseQueries []string, priorHeadlines []string, count int) ([]string, error) {
	priorContext := ""
	if len(priorHeadlines) > 0 {
		priorContext = fmt.Sprintf("Last week's coverage included these headlines; find what they missed:\n- %s\n\n",
			strings.Join(priorHeadlines, "\n- "))
	}

	prompt := fmt.Sprintf(deltaQueriesPromptTemplate,
		count, topic, "- "+strings.Join(baseQueries, "\n- "), priorContext, count)

	text, err := c.generateJSON(ctx, prompt, deltaQueriesSchema)
	if err != nil {
		return nil, fmt.Errorf("delta query generation for %s failed: %w", topic, err)
	}

	var queries []string
	if err := json.Unmarshal([]byte(text), &queries); err != nil {
		return nil, fmt.Errorf("malformed delta query response for %s: %w", topic, err)
	}
	if len(queries) > count {
		queries = queries[:count]
	}
	return queries, nil
}

// RankCandidate is the compact candidate view sent to the model. Company
// boost fields are contextual signal only; they never bypass selection
// constraints.
type RankCandidate struct {
	URL               string   `json:"url"`
	Title             string   `json:"title"`
	Snippet           string   `json:"snippet,omitempty"`
	Domain            string   `json:"domain"`
	WordCount         int      `json:"wordCount"`
	MatchedCompanies  []string `json:"matchedCompanies,omitempty"`
	CompanyBoostScore int      `json:"companyBoostScore,omitempty"`
}

var rankSchema = &genai.Schema{
	Type: genai.TypeArray,
	Items: &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"url":             {Type: genai.TypeString},
			"rank":            {Type: genai.TypeInteger},
			"why":             {Type: genai.TypeString},
			"primaryTag":      {Type: genai.TypeString},
			"insightType":     {Type: genai.TypeString},
			"controversyRisk": {Type: genai.TypeString, Enum: []string{"none", "low", "med", "high"}},
			"confidence":      {Type: genai.TypeNumber},
		},
		Required: []string{"url", "rank", "why", "controversyRisk", "confidence"},
	},
}

// RankCandidates sends one topic's candidate batch to the model and parses
// the structured ranking response. The request and response are logged for
// auditability; structural validation beyond JSON shape is the caller's job.
func (c *Client) RankCandidates(ctx context.Context, topic core.Topic, candidates []RankCandidate, targetK int) ([]core.RankedItem, error) {
	encoded, err := json.Marshal(candidates)
	if err != nil {
		return nil, fmt.Errorf("failed to encode candidates for %s: %w", topic, err)
	}

	expected := targetK
	if len(candidates) < expected {
		expected = len(candidates)
	}

	prompt := fmt.Sprintf(rankPromptTemplate, topic, expected, expected, string(encoded))
	logger.Debug("Ranking request", "topic", string(topic), "candidates", len(candidates), "expected", expected)

	text, err := c.generateJSON(ctx, prompt, rankSchema)
	if err != nil {
		return nil, fmt.Errorf("ranking call for %s failed: %w", topic, err)
	}
	logger.Debug("Ranking response", "topic", string(topic), "response", text)

	var items []core.RankedItem
	if err := json.Unmarshal([]byte(text), &items); err != nil {
		return nil, fmt.Errorf("malformed ranking response for %s: %w", topic, err)
	}
	return items, nil
}
