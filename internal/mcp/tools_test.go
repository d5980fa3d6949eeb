// ABOUTME: Tests for search argument parsing, result formatting and the server factory
// ABOUTME: Exercises tool handlers directly against a stub backend and in mock mode

package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/mcp-search-gateway/internal/auth"
	"github.com/2389/mcp-search-gateway/internal/upstream"
)

func toolRequest(name string, args map[string]any) mcpgo.CallToolRequest {
	var req mcpgo.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func TestParseSearchRequest_Defaults(t *testing.T) {
	got, err := parseSearchRequest(toolRequest(ToolSearch, map[string]any{"query": "q"}))
	require.NoError(t, err)

	assert.Equal(t, upstream.SearchRequest{
		Query:        "q",
		ResponseType: upstream.ResponseTypeRaw,
		Limit:        defaultSearchLimit,
	}, got)
}

func TestParseSearchRequest_AllArguments(t *testing.T) {
	got, err := parseSearchRequest(toolRequest(ToolSearch, map[string]any{
		"query":                       "q",
		"response_type":               "completion",
		"limit":                       float64(5),
		"offset":                      float64(10),
		"recency_bias":                0.3,
		"score_threshold":             0.5,
		"search_method":               "hybrid",
		"expansion_strategy":          "llm",
		"enable_reranking":            false,
		"enable_query_interpretation": true,
	}))
	require.NoError(t, err)

	assert.Equal(t, upstream.ResponseTypeCompletion, got.ResponseType)
	assert.Equal(t, 5, got.Limit)
	assert.Equal(t, 10, got.Offset)
	require.NotNil(t, got.RecencyBias)
	assert.InDelta(t, 0.3, *got.RecencyBias, 1e-9)
	require.NotNil(t, got.ScoreThreshold)
	assert.InDelta(t, 0.5, *got.ScoreThreshold, 1e-9)
	assert.Equal(t, "hybrid", got.SearchMethod)
	assert.Equal(t, "llm", got.ExpansionStrategy)
	require.NotNil(t, got.EnableReranking)
	assert.False(t, *got.EnableReranking)
	require.NotNil(t, got.EnableQueryInterpretation)
	assert.True(t, *got.EnableQueryInterpretation)
}

func TestParseSearchRequest_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{name: "missing query", args: map[string]any{}, want: "query is required"},
		{name: "blank query", args: map[string]any{"query": "  "}, want: "query is required"},
		{name: "bad response type", args: map[string]any{"query": "q", "response_type": "summary"}, want: "response_type"},
		{name: "zero limit", args: map[string]any{"query": "q", "limit": 0}, want: "limit"},
		{name: "huge limit", args: map[string]any{"query": "q", "limit": 5000}, want: "limit"},
		{name: "negative offset", args: map[string]any{"query": "q", "offset": -1}, want: "offset"},
		{name: "recency out of range", args: map[string]any{"query": "q", "recency_bias": 1.5}, want: "recency_bias"},
		{name: "threshold out of range", args: map[string]any{"query": "q", "score_threshold": -0.1}, want: "score_threshold"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseSearchRequest(toolRequest(ToolSearch, tt.args))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestFormatResults(t *testing.T) {
	assert.Equal(t, `No results found in collection "docs" for query "q".`, formatResults("docs", "q", nil))

	out := formatResults("docs", "q", []upstream.SearchResult{
		{ID: "r1", Score: 0.9, Payload: map[string]any{
			"name":        "Runbook",
			"source_name": "notion",
			"url":         "https://notion.so/runbook",
			"md_content":  "line one\n\nline   two",
		}},
		{ID: "r2", Score: 0.5},
	})

	assert.Contains(t, out, `Found 2 result(s) in collection "docs" for query "q":`)
	assert.Contains(t, out, "1. [score 0.900] Runbook")
	assert.Contains(t, out, "source: notion")
	assert.Contains(t, out, "url: https://notion.so/runbook")
	assert.Contains(t, out, "line one line two")
	assert.Contains(t, out, "2. [score 0.500] r2")
}

func TestSnippet_Truncates(t *testing.T) {
	got := snippet(map[string]any{"content": strings.Repeat("a", maxSnippetLength+50)})
	assert.Len(t, got, maxSnippetLength+3)
	assert.True(t, strings.HasSuffix(got, "..."))
}

func TestNewServer_BindsConfig(t *testing.T) {
	a := NewServer(RequestConfig{APIKey: "k1", Collection: "docs", BaseURL: "http://localhost:1"})
	b := NewServer(RequestConfig{APIKey: "k2", Collection: "wiki", BaseURL: "http://localhost:2", OrganizationID: "org-2"})
	defer a.Close()
	defer b.Close()

	assert.NotSame(t, a.MCPServer(), b.MCPServer())
	assert.Equal(t, "docs", a.Config().Collection)
	assert.Equal(t, "org-2", b.Config().OrganizationID)
}

func TestServer_CloseOnce(t *testing.T) {
	s := NewServer(RequestConfig{Collection: "docs"})
	calls := 0
	s.OnClose(func() { calls++ })

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Equal(t, 1, calls)
}

func TestHandleSearch_Upstream(t *testing.T) {
	var gotPath, gotOrg, gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotOrg = r.Header.Get(upstream.HeaderOrganizationID)
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[{"id":"r1","score":0.7,"payload":{"title":"Doc"}}],"status":"success"}`))
	}))
	defer srv.Close()

	s := NewServer(RequestConfig{
		APIKey:         "delegated.jwt.token",
		Collection:     "docs",
		BaseURL:        srv.URL,
		OrganizationID: "org-9",
		Source:         auth.SourceDelegated,
	})
	defer s.Close()

	res, err := s.handleSearch(context.Background(), toolRequest(ToolSearch, map[string]any{"query": "q", "limit": 2}))
	require.NoError(t, err)
	assert.False(t, res.IsError)

	assert.Equal(t, "/collections/docs/search", gotPath)
	assert.Equal(t, "org-9", gotOrg)
	assert.Equal(t, "Bearer delegated.jwt.token", gotAuth)
	assert.Equal(t, "q", gotBody["query"])
	assert.EqualValues(t, 2, gotBody["limit"])

	text, ok := mcpgo.AsTextContent(res.Content[0])
	require.True(t, ok)
	assert.Contains(t, text.Text, "1. [score 0.700] Doc")
}

func TestHandleSearch_UpstreamErrorIsToolError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail":"Collection not found"}`))
	}))
	defer srv.Close()

	s := NewServer(RequestConfig{APIKey: "k", Collection: "nope", BaseURL: srv.URL})
	defer s.Close()

	res, err := s.handleSearch(context.Background(), toolRequest(ToolSearch, map[string]any{"query": "q"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	text, ok := mcpgo.AsTextContent(res.Content[0])
	require.True(t, ok)
	assert.Contains(t, text.Text, "Search failed")
	assert.Contains(t, text.Text, "404")
	assert.Contains(t, text.Text, "Collection not found")
}

func TestHandleSearch_MockCompletion(t *testing.T) {
	s := NewServer(RequestConfig{APIKey: "test-key", Collection: "docs", BaseURL: "http://127.0.0.1:8001"})
	defer s.Close()

	res, err := s.handleSearch(context.Background(), toolRequest(ToolSearch, map[string]any{
		"query":         "what is x",
		"response_type": "completion",
	}))
	require.NoError(t, err)
	assert.False(t, res.IsError)

	text, ok := mcpgo.AsTextContent(res.Content[0])
	require.True(t, ok)
	assert.Contains(t, text.Text, "Mock completion")
}

func TestHandleSearch_InvalidArgumentsIsToolError(t *testing.T) {
	s := NewServer(RequestConfig{APIKey: "test-key", Collection: "docs", BaseURL: "http://localhost"})
	defer s.Close()

	res, err := s.handleSearch(context.Background(), toolRequest(ToolSearch, map[string]any{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}
