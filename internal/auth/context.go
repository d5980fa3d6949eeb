// ABOUTME: Request context carrier for verified delegated (OAuth) access tokens
// ABOUTME: Provides WithDelegatedToken/FromContext for propagating the token to handlers

package auth

import (
	"context"
	"time"
)

// DelegatedToken is an access token that the delegated-auth middleware has
// already verified.
type DelegatedToken struct {
	Token     string    // raw bearer value as presented
	Subject   string    // "sub" claim
	Scopes    []string  // granted scopes
	ExpiresAt time.Time // zero when the token carries no expiry
}

// HasScope reports whether the token was granted scope.
func (d *DelegatedToken) HasScope(scope string) bool {
	for _, s := range d.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// delegatedTokenKey is the key type for storing DelegatedToken in context.Context.
type delegatedTokenKey struct{}

// WithDelegatedToken returns a new context with the verified token attached.
func WithDelegatedToken(ctx context.Context, tok *DelegatedToken) context.Context {
	return context.WithValue(ctx, delegatedTokenKey{}, tok)
}

// FromContext retrieves the verified token, returning nil if not present.
func FromContext(ctx context.Context) *DelegatedToken {
	tok, ok := ctx.Value(delegatedTokenKey{}).(*DelegatedToken)
	if !ok {
		return nil
	}
	return tok
}
