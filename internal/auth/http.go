// ABOUTME: HTTP middleware that verifies delegated (OAuth) bearer tokens
// ABOUTME: Enforces required scopes and attaches the verified token to the context; raw API keys pass through

package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
)

// RejectFunc writes the response for a request whose delegated token failed
// verification.
type RejectFunc func(w http.ResponseWriter, r *http.Request, err error)

// MiddlewareOption configures DelegatedAuthMiddleware.
type MiddlewareOption func(*middlewareOptions)

type middlewareOptions struct {
	requiredScopes []string
}

// WithRequiredScopes makes every verified token carry all of scopes.
// Empty scope names are ignored.
func WithRequiredScopes(scopes ...string) MiddlewareOption {
	return func(o *middlewareOptions) {
		for _, s := range scopes {
			if s != "" {
				o.requiredScopes = append(o.requiredScopes, s)
			}
		}
	}
}

// DelegatedAuthMiddleware creates an HTTP middleware that verifies JWT-shaped
// bearer tokens and adds a DelegatedToken to the request context using the
// WithDelegatedToken/FromContext pattern.
//
// Requests with no bearer, or with a bearer that is not a JWT (a raw API key
// sent as Bearer), are passed through so that Extract classifies them as
// API-key credentials. A JWT that fails verification, or lacks a required
// scope, is handed to reject.
func DelegatedAuthMiddleware(verifier TokenVerifier, reject RejectFunc, logger *slog.Logger, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	var o middlewareOptions
	for _, opt := range opts {
		opt(&o)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get(HeaderAPIKey) != "" {
				next.ServeHTTP(w, r)
				return
			}

			token, errMsg := extractBearerToken(r.Header.Get("Authorization"))
			if errMsg != "" || !looksLikeJWT(token) {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := verifier.Verify(token)
			if err != nil {
				logger.Debug("delegated token rejected", "error", err, "path", r.URL.Path)
				reject(w, r, err)
				return
			}

			tok := &DelegatedToken{
				Token:     token,
				Subject:   claims.Subject,
				Scopes:    claims.Scopes,
				ExpiresAt: claims.ExpiresAt,
			}
			for _, scope := range o.requiredScopes {
				if !tok.HasScope(scope) {
					logger.Debug("delegated token lacks scope", "scope", scope, "subject", tok.Subject, "path", r.URL.Path)
					reject(w, r, fmt.Errorf("%w: %s", ErrInsufficientScope, scope))
					return
				}
			}

			next.ServeHTTP(w, r.WithContext(WithDelegatedToken(r.Context(), tok)))
		})
	}
}

// WWWAuthenticate builds the challenge header value pointing clients at the
// protected-resource metadata document.
func WWWAuthenticate(resourceMetadataURL string, err error) string {
	challenge := fmt.Sprintf(`Bearer resource_metadata=%q`, resourceMetadataURL)
	if err == nil {
		return challenge
	}
	code, desc := "invalid_token", "invalid access token"
	switch {
	case errors.Is(err, ErrExpiredToken):
		desc = "access token expired"
	case errors.Is(err, ErrInsufficientScope):
		code, desc = "insufficient_scope", "access token lacks a required scope"
	}
	return challenge + fmt.Sprintf(`, error=%q, error_description=%q`, code, desc)
}
