// ABOUTME: HTTP client for the collection search backend.
// ABOUTME: Lists organizations, probes collections, and runs searches with client identification headers.

package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	// DefaultBaseURL is the public backend API.
	DefaultBaseURL = "https://api.airweave.ai"

	// DefaultClientName identifies this gateway to the backend.
	DefaultClientName = "mcp-search-gateway"

	// Header names understood by the backend.
	HeaderClientName     = "X-Client-Name"
	HeaderClientVersion  = "X-Client-Version"
	HeaderOrganizationID = "X-Organization-ID"

	defaultTimeout = 30 * time.Second

	// maxErrorBody caps how much of an error response is kept for diagnostics.
	maxErrorBody = 4 << 10
)

// Config is the per-request connection configuration.
type Config struct {
	APIKey         string
	BaseURL        string
	OrganizationID string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client. The caller keeps ownership of it.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
		c.ownsHTTPClient = false
	}
}

// WithClientInfo sets the client identification headers.
func WithClientInfo(name, version string) Option {
	return func(c *Client) {
		c.clientName = name
		c.clientVersion = version
	}
}

// WithMockAPIKey sets the sentinel credential that enables mock mode
// against a local base URL. An empty sentinel disables mock mode.
func WithMockAPIKey(sentinel string) Option {
	return func(c *Client) {
		c.mockAPIKey = sentinel
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// Client talks to the backend API on behalf of one credential.
type Client struct {
	apiKey         string
	baseURL        string
	orgID          string
	clientName     string
	clientVersion  string
	mockAPIKey     string
	httpClient     *http.Client
	ownsHTTPClient bool
	logger         *slog.Logger
}

// NewHTTPClient returns an HTTP client with tracing enabled on its transport.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

// New creates a client for the given configuration.
func New(cfg Config, opts ...Option) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	c := &Client{
		apiKey:         cfg.APIKey,
		baseURL:        strings.TrimSuffix(baseURL, "/"),
		orgID:          cfg.OrganizationID,
		clientName:     DefaultClientName,
		clientVersion:  "dev",
		mockAPIKey:     DefaultMockAPIKey,
		httpClient:     NewHTTPClient(defaultTimeout),
		ownsHTTPClient: true,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ListOrganizations returns every organization the credential can see,
// in the order the backend returns them.
func (c *Client) ListOrganizations(ctx context.Context) ([]Organization, error) {
	var orgs []Organization
	if err := c.doJSON(ctx, http.MethodGet, "/organizations/", "", nil, &orgs); err != nil {
		return nil, err
	}
	return orgs, nil
}

// ListCollections searches an organization's collections. A 404 from the
// backend is returned as an *APIError like any other failure.
func (c *Client) ListCollections(ctx context.Context, orgID, search string, limit int) ([]Collection, error) {
	q := url.Values{}
	q.Set("search", search)
	q.Set("limit", strconv.Itoa(limit))

	var cols []Collection
	if err := c.doJSON(ctx, http.MethodGet, "/collections/?"+q.Encode(), orgID, nil, &cols); err != nil {
		return nil, err
	}
	return cols, nil
}

// Search runs one search against a collection. In mock mode no network call
// is made.
func (c *Client) Search(ctx context.Context, collection string, req SearchRequest) (*SearchResponse, error) {
	if c.MockMode() {
		c.logger.Debug("serving mock search", "collection", collection, "query", req.Query)
		return mockSearch(req), nil
	}

	var resp SearchResponse
	path := "/collections/" + url.PathEscape(collection) + "/search"
	if err := c.doJSON(ctx, http.MethodPost, path, c.orgID, req, &resp); err != nil {
		return nil, fmt.Errorf("searching collection %s: %w", collection, err)
	}
	return &resp, nil
}

// Close releases idle connections when the client owns its HTTP client.
func (c *Client) Close() error {
	if c.ownsHTTPClient {
		c.httpClient.CloseIdleConnections()
	}
	return nil
}

// doJSON performs a request and decodes a JSON response into out.
func (c *Client) doJSON(ctx context.Context, method, path, orgID string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req, orgID, in != nil)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return newAPIError(resp.StatusCode, respBody)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request, orgID string, hasBody bool) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set(HeaderClientName, c.clientName)
	req.Header.Set(HeaderClientVersion, c.clientVersion)
	if hasBody {
		req.Header.Set("Content-Type", "application/json")
	}
	if orgID != "" {
		req.Header.Set(HeaderOrganizationID, orgID)
	}
}
