// ABOUTME: OAuth protected-resource metadata and authorization-code callback handlers
// ABOUTME: Lets MCP clients discover the authorization server and exchange codes via the gateway

package auth

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// ProtectedResourcePath is where the metadata document is served.
const ProtectedResourcePath = "/.well-known/oauth-protected-resource"

// ProtectedResourceMetadata is the RFC 9728 document advertised to clients.
type ProtectedResourceMetadata struct {
	Resource               string   `json:"resource"`
	AuthorizationServers   []string `json:"authorization_servers"`
	BearerMethodsSupported []string `json:"bearer_methods_supported"`
	ScopesSupported        []string `json:"scopes_supported,omitempty"`
	ResourceName           string   `json:"resource_name,omitempty"`
}

// ProtectedResourceConfig configures the metadata handler. An empty
// PublicURL means the resource URL is derived from each request.
type ProtectedResourceConfig struct {
	PublicURL            string
	ResourcePath         string
	AuthorizationServers []string
	Scopes               []string
	ResourceName         string
}

// ProtectedResourceHandler serves the protected-resource metadata document.
func ProtectedResourceHandler(cfg ProtectedResourceConfig) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		meta := ProtectedResourceMetadata{
			Resource:               BaseURL(r, cfg.PublicURL) + cfg.ResourcePath,
			AuthorizationServers:   cfg.AuthorizationServers,
			BearerMethodsSupported: []string{"header"},
			ScopesSupported:        cfg.Scopes,
			ResourceName:           cfg.ResourceName,
		}
		if meta.AuthorizationServers == nil {
			meta.AuthorizationServers = []string{}
		}
		writeJSON(w, http.StatusOK, meta)
	})
}

// ResourceMetadataURL returns the absolute URL of the metadata document as
// seen by the client that sent r.
func ResourceMetadataURL(r *http.Request, publicURL string) string {
	return BaseURL(r, publicURL) + ProtectedResourcePath
}

// BaseURL returns publicURL without a trailing slash, or scheme://host of r
// honoring X-Forwarded-Proto/X-Forwarded-Host when publicURL is empty.
func BaseURL(r *http.Request, publicURL string) string {
	if publicURL != "" {
		return strings.TrimRight(publicURL, "/")
	}
	proto := "http"
	if r.TLS != nil {
		proto = "https"
	}
	if fwd := r.Header.Get("X-Forwarded-Proto"); fwd != "" {
		proto = strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	host := r.Host
	if fwd := r.Header.Get("X-Forwarded-Host"); fwd != "" {
		host = strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	return proto + "://" + host
}

// tokenResponse is what the callback returns after a successful exchange.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
}

type oauthError struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

// CallbackHandler completes the authorization-code flow: it exchanges the
// code query parameter at the authorization server and returns the token as
// JSON. An optional code_verifier parameter is forwarded for PKCE.
func CallbackHandler(conf *oauth2.Config, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if e := q.Get("error"); e != "" {
			writeJSON(w, http.StatusBadRequest, oauthError{Error: e, Description: q.Get("error_description")})
			return
		}

		code := q.Get("code")
		if code == "" {
			writeJSON(w, http.StatusBadRequest, oauthError{Error: "invalid_request", Description: "missing code parameter"})
			return
		}

		var opts []oauth2.AuthCodeOption
		if verifier := q.Get("code_verifier"); verifier != "" {
			opts = append(opts, oauth2.VerifierOption(verifier))
		}

		tok, err := conf.Exchange(r.Context(), code, opts...)
		if err != nil {
			logger.Warn("oauth code exchange failed", "error", err)
			writeJSON(w, http.StatusBadGateway, oauthError{Error: "token_exchange_failed", Description: err.Error()})
			return
		}

		resp := tokenResponse{
			AccessToken:  tok.AccessToken,
			TokenType:    tok.Type(),
			RefreshToken: tok.RefreshToken,
		}
		if !tok.Expiry.IsZero() {
			resp.ExpiresIn = int64(time.Until(tok.Expiry).Seconds())
		}
		writeJSON(w, http.StatusOK, resp)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
