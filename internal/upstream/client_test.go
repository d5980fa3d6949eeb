// ABOUTME: Tests for the backend API client against httptest servers.
// ABOUTME: Covers headers, error wrapping, collection probes, and mock mode.

package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func float64Ptr(v float64) *float64 { return &v }

func TestClient_Search_SendsHeadersAndBody(t *testing.T) {
	var got SearchRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/collections/docs-abc/search", r.URL.Path)
		assert.Equal(t, "Bearer secret-key", r.Header.Get("Authorization"))
		assert.Equal(t, "gw", r.Header.Get(HeaderClientName))
		assert.Equal(t, "1.2.3", r.Header.Get(HeaderClientVersion))
		assert.Equal(t, "org-7", r.Header.Get(HeaderOrganizationID))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[{"id":"r1","score":0.9,"payload":{"md_content":"hello"}}],"completion":"done"}`))
	}))
	defer srv.Close()

	client := New(Config{APIKey: "secret-key", BaseURL: srv.URL + "/", OrganizationID: "org-7"},
		WithHTTPClient(srv.Client()),
		WithClientInfo("gw", "1.2.3"),
	)

	resp, err := client.Search(context.Background(), "docs-abc", SearchRequest{
		Query:          "what is up",
		ResponseType:   ResponseTypeCompletion,
		Limit:          5,
		ScoreThreshold: float64Ptr(0.5),
	})
	require.NoError(t, err)

	assert.Equal(t, "what is up", got.Query)
	assert.Equal(t, ResponseTypeCompletion, got.ResponseType)
	assert.Equal(t, 5, got.Limit)
	require.NotNil(t, got.ScoreThreshold)
	assert.InDelta(t, 0.5, *got.ScoreThreshold, 1e-9)
	assert.Nil(t, got.RecencyBias)

	require.Len(t, resp.Results, 1)
	assert.Equal(t, "r1", resp.Results[0].ID)
	require.NotNil(t, resp.Completion)
	assert.Equal(t, "done", *resp.Completion)
}

func TestClient_Search_WrapsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"detail":"query too long"}`))
	}))
	defer srv.Close()

	client := New(Config{APIKey: "k", BaseURL: srv.URL}, WithHTTPClient(srv.Client()))
	_, err := client.Search(context.Background(), "docs", SearchRequest{Query: "q"})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Equal(t, "query too long", apiErr.Message)
	assert.Contains(t, err.Error(), "status 422")
	assert.Contains(t, err.Error(), `{"detail":"query too long"}`)
	assert.Contains(t, err.Error(), "docs")
}

func TestClient_APIError_PlainBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer srv.Close()

	client := New(Config{APIKey: "k", BaseURL: srv.URL}, WithHTTPClient(srv.Client()))
	_, err := client.ListOrganizations(context.Background())
	require.Error(t, err)

	assert.Equal(t, http.StatusBadGateway, StatusCode(err))
	assert.Contains(t, err.Error(), "Bad Gateway")
	assert.Contains(t, err.Error(), "upstream exploded")
}

func TestClient_ListOrganizations(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/organizations/", r.URL.Path)
		assert.Empty(t, r.Header.Get(HeaderOrganizationID))
		_, _ = w.Write([]byte(`[{"id":"o1","name":"Acme"},{"id":"o2","name":"Globex"}]`))
	}))
	defer srv.Close()

	client := New(Config{APIKey: "k", BaseURL: srv.URL}, WithHTTPClient(srv.Client()))
	orgs, err := client.ListOrganizations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Organization{{ID: "o1", Name: "Acme"}, {ID: "o2", Name: "Globex"}}, orgs)
}

func TestClient_ListCollections(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/collections/", r.URL.Path)
		assert.Equal(t, "my docs", r.URL.Query().Get("search"))
		assert.Equal(t, "25", r.URL.Query().Get("limit"))
		assert.Equal(t, "o2", r.Header.Get(HeaderOrganizationID))
		_, _ = w.Write([]byte(`[{"id":"c1","name":"Docs","readable_id":"my-docs"}]`))
	}))
	defer srv.Close()

	client := New(Config{APIKey: "k", BaseURL: srv.URL}, WithHTTPClient(srv.Client()))
	cols, err := client.ListCollections(context.Background(), "o2", "my docs", 25)
	require.NoError(t, err)
	require.Len(t, cols, 1)
	assert.Equal(t, "my-docs", cols[0].ReadableID)
}

func TestClient_ListCollections_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	client := New(Config{APIKey: "k", BaseURL: srv.URL}, WithHTTPClient(srv.Client()))
	_, err := client.ListCollections(context.Background(), "o1", "x", 10)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestClient_MockMode(t *testing.T) {
	client := New(Config{APIKey: "test-key", BaseURL: "http://localhost:8001"})
	require.True(t, client.MockMode())

	resp, err := client.Search(context.Background(), "docs", SearchRequest{
		Query:          "anything",
		Limit:          3,
		ScoreThreshold: float64Ptr(0.8),
	})
	require.NoError(t, err)

	require.Len(t, resp.Results, 2)
	assert.InDelta(t, 0.95, resp.Results[0].Score, 1e-9)
	assert.InDelta(t, 0.85, resp.Results[1].Score, 1e-9)
	assert.Nil(t, resp.Completion)
}

func TestClient_MockMode_Bounded(t *testing.T) {
	client := New(Config{APIKey: "test-key", BaseURL: "http://127.0.0.1:9000"})

	resp, err := client.Search(context.Background(), "docs", SearchRequest{Query: "q", Limit: 100})
	require.NoError(t, err)
	assert.Len(t, resp.Results, maxMockResults)
}

func TestClient_MockMode_Completion(t *testing.T) {
	client := New(Config{APIKey: "test-key", BaseURL: "http://localhost"})

	resp, err := client.Search(context.Background(), "docs", SearchRequest{
		Query:        "q",
		ResponseType: ResponseTypeCompletion,
	})
	require.NoError(t, err)
	require.NotNil(t, resp.Completion)
	assert.Contains(t, *resp.Completion, "Mock completion")
}

func TestClient_MockMode_RequiresLocalURLAndSentinel(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	tests := []struct {
		name string
		cfg  Config
		opts []Option
		want bool
	}{
		{"sentinel on remote host", Config{APIKey: "test-key", BaseURL: "https://api.example.com"}, nil, false},
		{"real key on localhost", Config{APIKey: "real-key", BaseURL: "http://localhost:8001"}, nil, false},
		{"custom sentinel", Config{APIKey: "offline", BaseURL: "http://localhost:8001"}, []Option{WithMockAPIKey("offline")}, true},
		{"disabled sentinel", Config{APIKey: "", BaseURL: "http://localhost:8001"}, []Option{WithMockAPIKey("")}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, New(tt.cfg, tt.opts...).MockMode())
		})
	}

	// A 127.0.0.1 httptest server with a real key goes over the network
	client := New(Config{APIKey: "real-key", BaseURL: srv.URL}, WithHTTPClient(srv.Client()))
	_, err := client.Search(context.Background(), "docs", SearchRequest{Query: "q"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestIsLocalURL(t *testing.T) {
	assert.True(t, IsLocalURL("http://localhost:8001"))
	assert.True(t, IsLocalURL("http://127.0.0.1"))
	assert.True(t, IsLocalURL("http://[::1]:80"))
	assert.False(t, IsLocalURL("https://api.example.com"))
	assert.False(t, IsLocalURL("::not a url"))
}

func TestNew_Defaults(t *testing.T) {
	client := New(Config{APIKey: "k"})
	assert.Equal(t, DefaultBaseURL, client.BaseURL())
	assert.NoError(t, client.Close())
}
