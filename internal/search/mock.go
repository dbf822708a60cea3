package search

import "context"

// MockProvider implements Provider for testing and dry runs.
type MockProvider struct {
	name    string
	results []Result

	// resultsByQuery overrides results for specific queries when set.
	resultsByQuery map[string][]Result
	err            error
}

// NewMockProvider creates a new mock search provider
func NewMockProvider() *MockProvider {
	return &MockProvider{
		name: "Mock",
		results: []Result{
			{
				URL:     "https://example.com/article1",
				Title:   "Example Article 1",
				Snippet: "This is a mock search result for testing purposes.",
				Domain:  "example.com",
				Source:  "Mock",
				Rank:    1,
			},
			{
				URL:     "https://test.org/article2",
				Title:   "Test Article 2",
				Snippet: "Another mock search result with different content.",
				Domain:  "test.org",
				Source:  "Mock",
				Rank:    2,
			},
		},
	}
}

// GetName returns the name of this provider
func (m *MockProvider) GetName() string {
	return m.name
}

// Search returns mock search results
func (m *MockProvider) Search(ctx context.Context, query string, config Config) ([]Result, error) {
	if m.err != nil {
		return nil, m.err
	}

	source := m.results
	if m.resultsByQuery != nil {
		source = m.resultsByQuery[query]
	}

	maxResults := config.MaxResults
	if maxResults <= 0 || maxResults > len(source) {
		maxResults = len(source)
	}

	results := make([]Result, maxResults)
	copy(results, source[:maxResults])
	return results, nil
}

// SetResults allows customization of mock results for testing
func (m *MockProvider) SetResults(results []Result) {
	m.results = results
}

// SetResultsForQuery pins results to one exact query string.
func (m *MockProvider) SetResultsForQuery(query string, results []Result) {
	if m.resultsByQuery == nil {
		m.resultsByQuery = make(map[string][]Result)
	}
	m.resultsByQuery[query] = results
}

// SetError makes every search fail, for failure-path tests.
func (m *MockProvider) SetError(err error) {
	m.err = err
}
