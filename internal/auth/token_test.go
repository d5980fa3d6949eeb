// ABOUTME: Unit tests for JWT token verification and generation
// ABOUTME: Tests valid tokens, invalid tokens, expired tokens and issuer/audience checks

package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("token-verifier-test-secret-32by!")

func mustVerifier(t *testing.T, opts ...VerifierOption) *JWTVerifier {
	t.Helper()
	v, err := NewJWTVerifier(testSecret, opts...)
	if err != nil {
		t.Fatalf("NewJWTVerifier() error = %v", err)
	}
	return v
}

func TestNewJWTVerifier_ShortSecret(t *testing.T) {
	if _, err := NewJWTVerifier([]byte("too-short")); err == nil {
		t.Fatal("NewJWTVerifier() expected error for short secret")
	}
}

func TestJWTVerifier_ValidToken(t *testing.T) {
	verifier := mustVerifier(t)

	token, err := verifier.Generate("user-123", []string{"search", "read"}, time.Hour)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	claims, err := verifier.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if claims.Subject != "user-123" {
		t.Errorf("Subject = %q, want %q", claims.Subject, "user-123")
	}
	if len(claims.Scopes) != 2 || claims.Scopes[0] != "search" || claims.Scopes[1] != "read" {
		t.Errorf("Scopes = %v, want [search read]", claims.Scopes)
	}
	if claims.ExpiresAt.Before(time.Now()) {
		t.Errorf("ExpiresAt = %v, want future", claims.ExpiresAt)
	}
}

func TestJWTVerifier_InvalidToken(t *testing.T) {
	verifier := mustVerifier(t)

	tests := []struct {
		name  string
		token string
	}{
		{
			name:  "empty token",
			token: "",
		},
		{
			name:  "garbage token",
			token: "not-a-jwt-token",
		},
		{
			name:  "malformed JWT",
			token: "header.payload.signature",
		},
		{
			name: "wrong secret",
			token: func() string {
				other, _ := NewJWTVerifier([]byte("a-completely-different-secret-32b"))
				token, _ := other.Generate("user-123", nil, time.Hour)
				return token
			}(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := verifier.Verify(tt.token)
			if !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Verify() error = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestJWTVerifier_ExpiredToken(t *testing.T) {
	verifier := mustVerifier(t)

	token, err := verifier.Generate("user-123", nil, -time.Hour)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if _, err := verifier.Verify(token); !errors.Is(err, ErrExpiredToken) {
		t.Errorf("Verify() error = %v, want ErrExpiredToken", err)
	}
}

func TestJWTVerifier_MissingSubject(t *testing.T) {
	verifier := mustVerifier(t)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString(testSecret)
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}

	if _, err := verifier.Verify(signed); !errors.Is(err, ErrMissingClaim) {
		t.Errorf("Verify() error = %v, want ErrMissingClaim", err)
	}
}

func TestJWTVerifier_RejectsOtherAlgorithms(t *testing.T) {
	verifier := mustVerifier(t)

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{
		"sub": "user-123",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString(testSecret)
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}

	if _, err := verifier.Verify(signed); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Verify() error = %v, want ErrInvalidToken", err)
	}
}

func TestJWTVerifier_IssuerAndAudience(t *testing.T) {
	issuing := mustVerifier(t, WithIssuer("https://auth.example.com"), WithAudience("mcp"))
	token, err := issuing.Generate("user-123", nil, time.Hour)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if _, err := issuing.Verify(token); err != nil {
		t.Errorf("Verify() with matching issuer/audience error = %v", err)
	}

	wrongIssuer := mustVerifier(t, WithIssuer("https://other.example.com"))
	if _, err := wrongIssuer.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Verify() wrong issuer error = %v, want ErrInvalidToken", err)
	}

	wrongAudience := mustVerifier(t, WithAudience("billing"))
	if _, err := wrongAudience.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Verify() wrong audience error = %v, want ErrInvalidToken", err)
	}
}

func TestScopesFromClaims_ScpArray(t *testing.T) {
	got := scopesFromClaims(jwt.MapClaims{"scp": []any{"a", 7, "b"}})
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("scopesFromClaims() = %v, want [a b]", got)
	}
	if got := scopesFromClaims(jwt.MapClaims{}); got != nil {
		t.Errorf("scopesFromClaims(empty) = %v, want nil", got)
	}
}

func TestLooksLikeJWT(t *testing.T) {
	tests := map[string]bool{
		"a.b.c":                true,
		"sk-live-0123456789":   false,
		"a.b":                  false,
		".a.b":                 false,
		"a.b.":                 false,
		"a.b.c.d":              false,
		"eyJhbGc.eyJzdWIi.sig": true,
	}
	for token, want := range tests {
		if got := looksLikeJWT(token); got != want {
			t.Errorf("looksLikeJWT(%q) = %v, want %v", token, got, want)
		}
	}
}
