package search

import (
	"context"
	"net/url"
	"strings"
)

// Provider defines the interface to a web-search backend.
type Provider interface {
	// Search executes one query and returns its raw hits.
	Search(ctx context.Context, query string, config Config) ([]Result, error)

	// GetName returns the name of the search provider
	GetName() string
}

// Config holds configuration for search requests
type Config struct {
	MaxResults int // Maximum number of results to return per query
}

// Result is a single raw hit from the search backend.
type Result struct {
	URL           string `json:"url"`
	Title         string `json:"title"`
	Snippet       string `json:"snippet"`
	Domain        string `json:"domain"`
	PublishedDate string `json:"publishedDate,omitempty"` // When the backend exposes one
	Source        string `json:"source"`                  // Provider-specific source identifier
	Rank          int    `json:"rank"`                    // Position in search results
}

// ProviderType represents the type of search provider
type ProviderType string

const (
	ProviderTypeGoogle ProviderType = "google"
	ProviderTypeMock   ProviderType = "mock"
)

// NewProvider creates a search provider of the specified type.
func NewProvider(providerType ProviderType, config map[string]string) (Provider, error) {
	switch providerType {
	case ProviderTypeGoogle:
		apiKey, exists := config["api_key"]
		if !exists || apiKey == "" {
			return nil, ErrMissingAPIKey
		}
		searchID, exists := config["search_id"]
		if !exists || searchID == "" {
			return nil, ErrMissingSearchID
		}
		return NewGoogleProvider(apiKey, searchID), nil
	case ProviderTypeMock:
		return NewMockProvider(), nil
	default:
		return nil, ErrUnsupportedProvider
	}
}

// extractDomain extracts the registrable domain name from a URL
func extractDomain(urlStr string) string {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return ""
	}

	domain := parsed.Hostname()
	// Remove www. prefix
	domain = strings.TrimPrefix(domain, "www.")

	return domain
}

// splitSiteOperator extracts an embedded site: operator from a query. The
// backend call must use its native domain restriction, never the literal
// operator text.
func splitSiteOperator(query string) (clean, site string) {
	var kept []string
	for _, token := range strings.Fields(query) {
		if rest, ok := strings.CutPrefix(token, "site:"); ok && rest != "" {
			site = rest
			continue
		}
		kept = append(kept, token)
	}
	return strings.Join(kept, " "), site
}
