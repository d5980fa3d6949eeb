// ABOUTME: Extracts the caller's credential from inbound HTTP headers
// ABOUTME: X-API-Key first, then a case-insensitive Bearer header, then a verified delegated token

package auth

import (
	"net/http"
	"strings"
)

// HeaderAPIKey carries a raw API key.
const HeaderAPIKey = "X-API-Key"

// Source says how a credential reached the gateway. The delegated path
// obliges the handler to resolve an organization; the API-key path does not.
type Source int

const (
	SourceAPIKey Source = iota + 1
	SourceDelegated
)

func (s Source) String() string {
	switch s {
	case SourceAPIKey:
		return "api-key"
	case SourceDelegated:
		return "delegated-token"
	default:
		return "unknown"
	}
}

// Credential is the token the gateway forwards upstream and where it came from.
type Credential struct {
	Token  string
	Source Source
}

// Extract returns the first credential present on r, in precedence order:
//
//  1. X-API-Key header, verbatim
//  2. Authorization: Bearer <token> (scheme matched case-insensitively)
//  3. a delegated token attached by DelegatedAuthMiddleware
//
// The bearer value counts as delegated only when the middleware verified
// that same token. A false return means the request is unauthenticated.
func Extract(r *http.Request) (Credential, bool) {
	if key := r.Header.Get(HeaderAPIKey); key != "" {
		return Credential{Token: key, Source: SourceAPIKey}, true
	}

	delegated := FromContext(r.Context())

	if token, errMsg := extractBearerToken(r.Header.Get("Authorization")); errMsg == "" {
		if delegated != nil && delegated.Token == token {
			return Credential{Token: token, Source: SourceDelegated}, true
		}
		return Credential{Token: token, Source: SourceAPIKey}, true
	}

	if delegated != nil && delegated.Token != "" {
		return Credential{Token: delegated.Token, Source: SourceDelegated}, true
	}

	return Credential{}, false
}

// extractBearerToken extracts a bearer token from the Authorization header.
// The scheme is matched case-insensitively and the header must be at least
// 8 characters long. Returns the token and an error message (empty if successful).
func extractBearerToken(authHeader string) (string, string) {
	if authHeader == "" {
		return "", "missing authorization header"
	}
	if len(authHeader) < len("bearer x") || !strings.EqualFold(authHeader[:7], "bearer ") {
		return "", "invalid authorization header format"
	}
	token := strings.TrimSpace(authHeader[7:])
	if token == "" {
		return "", "empty token"
	}
	return token, ""
}
