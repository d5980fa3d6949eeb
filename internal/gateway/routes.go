// ABOUTME: HTTP routing for the gateway: MCP endpoint, health, service info and OAuth discovery
// ABOUTME: Built on chi with request id, logging, recovery and OpenTelemetry middleware

package gateway

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/2389/mcp-search-gateway/internal/auth"
	"github.com/2389/mcp-search-gateway/internal/mcp"
)

// Route paths.
const (
	PathMCP           = "/mcp"
	PathHealth        = "/health"
	PathOAuthCallback = "/oauth/callback"
)

// routes assembles the gateway's HTTP surface.
func (g *Gateway) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(g.logger.With("component", "http")))
	r.Use(middleware.Recoverer)

	r.Get(PathHealth, g.handleHealth)
	r.Get("/", g.handleInfo)

	var mcpHandler http.Handler = g.handler
	if g.verifier != nil {
		mcpHandler = auth.DelegatedAuthMiddleware(g.verifier, g.handler.RejectUnauthorized,
			g.logger.With("component", "auth"),
			auth.WithRequiredScopes(g.config.OAuth.RequiredScopes...),
		)(mcpHandler)
	}
	r.Handle(PathMCP, mcpHandler)
	// Session delete always succeeds, whatever credential it carries.
	r.Delete(PathMCP, g.handler.ServeHTTP)

	if g.config.OAuth.Enabled {
		r.Method(http.MethodGet, auth.ProtectedResourcePath, auth.ProtectedResourceHandler(auth.ProtectedResourceConfig{
			PublicURL:            g.publicURL,
			ResourcePath:         PathMCP,
			AuthorizationServers: g.config.OAuth.AuthorizationServers,
			Scopes:               g.config.OAuth.Scopes,
			ResourceName:         mcp.DefaultServerName,
		}))
		if g.config.OAuth.CallbackEnabled() {
			r.Method(http.MethodGet, PathOAuthCallback, auth.CallbackHandler(g.oauth2Config(), g.logger.With("component", "oauth")))
		}
	}

	return otelhttp.NewHandler(r, "mcp-search-gateway",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

type healthResponse struct {
	Status    string `json:"status"`
	Protocol  string `json:"protocol"`
	Mode      string `json:"mode"`
	Timestamp string `json:"timestamp"`
}

// handleHealth reports liveness. There is no readiness distinction: every
// request is served by a fresh server.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "healthy",
		Protocol:  mcpgo.LATEST_PROTOCOL_VERSION,
		Mode:      "stateless",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

type infoResponse struct {
	Name              string            `json:"name"`
	Version           string            `json:"version"`
	Transport         string            `json:"transport"`
	Mode              string            `json:"mode"`
	Endpoints         map[string]string `json:"endpoints"`
	Authentication    []string          `json:"authentication"`
	CollectionHeader  string            `json:"collection_header"`
	DefaultCollection string            `json:"default_collection,omitempty"`
	OAuth             *infoOAuth        `json:"oauth,omitempty"`
}

type infoOAuth struct {
	ProtectedResource string `json:"protected_resource"`
	Callback          string `json:"callback,omitempty"`
}

// handleInfo describes the service for humans and client setup tools.
func (g *Gateway) handleInfo(w http.ResponseWriter, r *http.Request) {
	info := infoResponse{
		Name:      mcp.DefaultServerName,
		Version:   g.version,
		Transport: "streamable-http",
		Mode:      "stateless",
		Endpoints: map[string]string{
			"mcp":    PathMCP,
			"health": PathHealth,
		},
		Authentication:    []string{auth.HeaderAPIKey, "Authorization: Bearer"},
		CollectionHeader:  mcp.HeaderCollection,
		DefaultCollection: g.config.Upstream.DefaultCollection,
	}

	if g.config.OAuth.Enabled {
		info.Authentication = append(info.Authentication, "OAuth 2.1")
		info.OAuth = &infoOAuth{ProtectedResource: auth.ProtectedResourcePath}
		if g.config.OAuth.CallbackEnabled() {
			info.OAuth.Callback = PathOAuthCallback
		}
	}

	writeJSON(w, http.StatusOK, info)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
