// ABOUTME: Unit tests for delegated token context helpers
// ABOUTME: Tests WithDelegatedToken/FromContext round trips and HasScope

package auth

import (
	"context"
	"testing"
)

func TestFromContext_Missing(t *testing.T) {
	if got := FromContext(context.Background()); got != nil {
		t.Errorf("FromContext() = %+v, want nil", got)
	}
}

func TestWithDelegatedToken_RoundTrip(t *testing.T) {
	tok := &DelegatedToken{Token: "a.b.c", Subject: "user-1", Scopes: []string{"search"}}
	ctx := WithDelegatedToken(context.Background(), tok)

	got := FromContext(ctx)
	if got != tok {
		t.Fatalf("FromContext() = %+v, want %+v", got, tok)
	}
}

func TestDelegatedToken_HasScope(t *testing.T) {
	tok := &DelegatedToken{Scopes: []string{"search", "read"}}

	tests := []struct {
		scope string
		want  bool
	}{
		{"search", true},
		{"read", true},
		{"write", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := tok.HasScope(tt.scope); got != tt.want {
			t.Errorf("HasScope(%q) = %v, want %v", tt.scope, got, tt.want)
		}
	}
}
