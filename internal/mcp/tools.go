// ABOUTME: MCP tool definitions and handlers: search over the bound collection and get-config.
// ABOUTME: Validates arguments, calls the upstream client and formats results as text plus structured content.

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	mcpgo "github.com/mark3labs/mcp-go/mcp"

	"github.com/2389/mcp-search-gateway/internal/upstream"
)

// Tool names.
const (
	ToolSearch    = "search"
	ToolGetConfig = "get-config"
)

const (
	defaultSearchLimit = 100
	maxSearchLimit     = 1000
	maxSnippetLength   = 500
)

func (s *Server) registerTools() {
	searchTool := mcpgo.NewTool(ToolSearch,
		mcpgo.WithDescription(fmt.Sprintf(
			"Search the %q collection. Returns scored results, or a generated answer when response_type is completion.",
			s.cfg.Collection)),
		mcpgo.WithString("query",
			mcpgo.Required(),
			mcpgo.Description("Natural language search query"),
		),
		mcpgo.WithString("response_type",
			mcpgo.Description("raw returns the matching results, completion returns a generated answer (default: raw)"),
			mcpgo.Enum(string(upstream.ResponseTypeRaw), string(upstream.ResponseTypeCompletion)),
		),
		mcpgo.WithNumber("limit",
			mcpgo.Description("Maximum number of results, 1-1000 (default: 100)"),
		),
		mcpgo.WithNumber("offset",
			mcpgo.Description("Number of results to skip (default: 0)"),
		),
		mcpgo.WithNumber("recency_bias",
			mcpgo.Description("Weight given to recent documents, 0.0-1.0"),
		),
		mcpgo.WithNumber("score_threshold",
			mcpgo.Description("Drop results scoring below this value, 0.0-1.0"),
		),
		mcpgo.WithString("search_method",
			mcpgo.Description("Retrieval method"),
			mcpgo.Enum("hybrid", "neural", "keyword"),
		),
		mcpgo.WithString("expansion_strategy",
			mcpgo.Description("Query expansion strategy"),
			mcpgo.Enum("auto", "llm", "no_expansion"),
		),
		mcpgo.WithBoolean("enable_reranking",
			mcpgo.Description("Rerank results with a cross-encoder"),
		),
		mcpgo.WithBoolean("enable_query_interpretation",
			mcpgo.Description("Extract filters from the natural language query"),
		),
	)
	s.mcp.AddTool(searchTool, s.handleSearch)

	configTool := mcpgo.NewTool(ToolGetConfig,
		mcpgo.WithDescription("Show the collection, backend and authentication mode this session is bound to"),
	)
	s.mcp.AddTool(configTool, s.handleGetConfig)
}

func (s *Server) handleSearch(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	sreq, err := parseSearchRequest(req)
	if err != nil {
		return mcpgo.NewToolResultError(err.Error()), nil
	}

	resp, err := s.upstream.Search(ctx, s.cfg.Collection, sreq)
	if err != nil {
		s.logger.Warn("search failed", "collection", s.cfg.Collection, "error", err)
		return mcpgo.NewToolResultError(fmt.Sprintf("Search failed: %v", err)), nil
	}

	if sreq.ResponseType == upstream.ResponseTypeCompletion {
		if resp.Completion == nil || *resp.Completion == "" {
			return mcpgo.NewToolResultText("No completion was generated for this query."), nil
		}
		return mcpgo.NewToolResultText(*resp.Completion), nil
	}

	return mcpgo.NewToolResultStructured(resp, formatResults(s.cfg.Collection, sreq.Query, resp.Results)), nil
}

// parseSearchRequest validates tool arguments. Optional tuning arguments
// stay nil when absent so the backend applies its own defaults.
func parseSearchRequest(req mcpgo.CallToolRequest) (upstream.SearchRequest, error) {
	query, err := req.RequireString("query")
	if err != nil || strings.TrimSpace(query) == "" {
		return upstream.SearchRequest{}, errors.New("query is required")
	}

	sreq := upstream.SearchRequest{
		Query:             query,
		ResponseType:      upstream.ResponseType(req.GetString("response_type", string(upstream.ResponseTypeRaw))),
		Limit:             req.GetInt("limit", defaultSearchLimit),
		Offset:            req.GetInt("offset", 0),
		SearchMethod:      req.GetString("search_method", ""),
		ExpansionStrategy: req.GetString("expansion_strategy", ""),
	}

	switch sreq.ResponseType {
	case upstream.ResponseTypeRaw, upstream.ResponseTypeCompletion:
	default:
		return sreq, fmt.Errorf("response_type must be %q or %q", upstream.ResponseTypeRaw, upstream.ResponseTypeCompletion)
	}
	if sreq.Limit < 1 || sreq.Limit > maxSearchLimit {
		return sreq, fmt.Errorf("limit must be between 1 and %d", maxSearchLimit)
	}
	if sreq.Offset < 0 {
		return sreq, errors.New("offset must not be negative")
	}

	args := req.GetArguments()
	if _, ok := args["recency_bias"]; ok {
		v := req.GetFloat("recency_bias", 0)
		if v < 0 || v > 1 {
			return sreq, errors.New("recency_bias must be between 0 and 1")
		}
		sreq.RecencyBias = &v
	}
	if _, ok := args["score_threshold"]; ok {
		v := req.GetFloat("score_threshold", 0)
		if v < 0 || v > 1 {
			return sreq, errors.New("score_threshold must be between 0 and 1")
		}
		sreq.ScoreThreshold = &v
	}
	if _, ok := args["enable_reranking"]; ok {
		v := req.GetBool("enable_reranking", false)
		sreq.EnableReranking = &v
	}
	if _, ok := args["enable_query_interpretation"]; ok {
		v := req.GetBool("enable_query_interpretation", false)
		sreq.EnableQueryInterpretation = &v
	}
	return sreq, nil
}

// formatResults renders results as a numbered listing for clients that only
// read text content.
func formatResults(collection, query string, results []upstream.SearchResult) string {
	if len(results) == 0 {
		return fmt.Sprintf("No results found in collection %q for query %q.", collection, query)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d result(s) in collection %q for query %q:\n", len(results), collection, query)
	for i, r := range results {
		fmt.Fprintf(&b, "\n%d. [score %.3f] %s\n", i+1, r.Score, resultTitle(r))
		if src := payloadString(r.Payload, "source_name"); src != "" {
			fmt.Fprintf(&b, "   source: %s\n", src)
		}
		if u := payloadString(r.Payload, "url"); u != "" {
			fmt.Fprintf(&b, "   url: %s\n", u)
		}
		if content := snippet(r.Payload); content != "" {
			fmt.Fprintf(&b, "   %s\n", content)
		}
	}
	return b.String()
}

func resultTitle(r upstream.SearchResult) string {
	for _, key := range []string{"name", "title", "entity_id"} {
		if v := payloadString(r.Payload, key); v != "" {
			return v
		}
	}
	return r.ID
}

func snippet(payload map[string]any) string {
	content := payloadString(payload, "md_content")
	if content == "" {
		content = payloadString(payload, "content")
	}
	content = strings.Join(strings.Fields(content), " ")
	if len(content) > maxSnippetLength {
		content = content[:maxSnippetLength] + "..."
	}
	return content
}

func payloadString(payload map[string]any, key string) string {
	if v, ok := payload[key].(string); ok {
		return v
	}
	return ""
}

// configView is what get-config reports. It never includes the credential.
type configView struct {
	Collection     string `json:"collection"`
	BaseURL        string `json:"base_url"`
	OrganizationID string `json:"organization_id,omitempty"`
	AuthSource     string `json:"auth_source"`
	MockMode       bool   `json:"mock_mode"`
}

func (s *Server) handleGetConfig(_ context.Context, _ mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	view := configView{
		Collection:     s.cfg.Collection,
		BaseURL:        s.upstream.BaseURL(),
		OrganizationID: s.cfg.OrganizationID,
		AuthSource:     s.cfg.Source.String(),
		MockMode:       s.upstream.MockMode(),
	}
	data, err := json.MarshalIndent(view, "", "  ")
	if err != nil {
		return mcpgo.NewToolResultError(fmt.Sprintf("encoding config: %v", err)), nil
	}
	return mcpgo.NewToolResultStructured(view, string(data)), nil
}
