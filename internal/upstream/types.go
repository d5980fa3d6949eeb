// ABOUTME: Wire types for the collection search backend API.
// ABOUTME: Organizations, collections, search requests and search responses.

package upstream

// Organization is an organization visible to a token.
type Organization struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Collection is a searchable collection inside an organization.
type Collection struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	ReadableID string `json:"readable_id"`
}

// ResponseType selects between raw results and a generated completion.
type ResponseType string

const (
	ResponseTypeRaw        ResponseType = "raw"
	ResponseTypeCompletion ResponseType = "completion"
)

// SearchRequest is the body of a collection search call.
// Optional tuning fields are omitted when nil so the backend applies its defaults.
type SearchRequest struct {
	Query                     string       `json:"query"`
	ResponseType              ResponseType `json:"response_type,omitempty"`
	Limit                     int          `json:"limit,omitempty"`
	Offset                    int          `json:"offset,omitempty"`
	RecencyBias               *float64     `json:"recency_bias,omitempty"`
	ScoreThreshold            *float64     `json:"score_threshold,omitempty"`
	SearchMethod              string       `json:"search_method,omitempty"`
	ExpansionStrategy         string       `json:"expansion_strategy,omitempty"`
	EnableReranking           *bool        `json:"enable_reranking,omitempty"`
	EnableQueryInterpretation *bool        `json:"enable_query_interpretation,omitempty"`
}

// SearchResult is one scored hit.
type SearchResult struct {
	ID      string         `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload,omitempty"`
}

// SearchResponse is what a search call returns.
type SearchResponse struct {
	Results    []SearchResult `json:"results"`
	Completion *string        `json:"completion,omitempty"`
	Status     string         `json:"status,omitempty"`
}
