// ABOUTME: Deterministic offline search results for local testing.
// ABOUTME: Enabled only for the sentinel credential against a local base URL.

package upstream

import (
	"fmt"
	"net/url"
)

const (
	// DefaultMockAPIKey is the credential that triggers mock mode.
	DefaultMockAPIKey = "test-key"

	// maxMockResults bounds the synthetic result set.
	maxMockResults = 10
)

// MockMode reports whether this client serves synthetic results.
func (c *Client) MockMode() bool {
	return c.mockAPIKey != "" && c.apiKey == c.mockAPIKey && IsLocalURL(c.baseURL)
}

// IsLocalURL reports whether rawURL points at the local machine.
func IsLocalURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}

// mockSearch returns up to maxMockResults items scored 0.95, 0.85, ... and
// drops any below the request's score threshold.
func mockSearch(req SearchRequest) *SearchResponse {
	n := req.Limit
	if n <= 0 || n > maxMockResults {
		n = maxMockResults
	}

	results := make([]SearchResult, 0, n)
	for i := 0; i < n; i++ {
		score := 0.95 - float64(i)*0.1
		if req.ScoreThreshold != nil && score < *req.ScoreThreshold {
			continue
		}
		results = append(results, SearchResult{
			ID:    fmt.Sprintf("mock-%d", i+1),
			Score: score,
			Payload: map[string]any{
				"entity_id":   fmt.Sprintf("mock-entity-%d", i+1),
				"source_name": "mock",
				"md_content":  fmt.Sprintf("Mock result %d for query: %s", i+1, req.Query),
			},
		})
	}

	resp := &SearchResponse{Results: results, Status: "success"}
	if req.ResponseType == ResponseTypeCompletion {
		completion := fmt.Sprintf("Mock completion for %q based on %d results.", req.Query, len(results))
		resp.Completion = &completion
	}
	return resp
}
