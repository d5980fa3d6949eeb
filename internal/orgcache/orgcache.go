// ABOUTME: Cache contract and key derivation for organization resolution results.
// ABOUTME: Keys embed a truncated token digest so raw credentials are never stored.

// Package orgcache caches which organization owns a collection for a given
// caller. Implementations are injected into the resolver through the Cache
// interface so the process-local Memory cache can be swapped for Redis.
package orgcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

const (
	// DefaultTTL is how long a resolved organization is trusted.
	DefaultTTL = 5 * time.Minute

	// DefaultMaxEntries bounds the in-memory cache.
	DefaultMaxEntries = 10_000

	// digestLength is the number of hex characters of the token digest kept in a key.
	digestLength = 16
)

// Cache stores organization ids keyed by Key.
type Cache interface {
	// Get returns the organization for key and whether a live entry existed.
	Get(ctx context.Context, key string) (orgID string, ok bool, err error)

	// Set stores orgID under key with the implementation's TTL.
	Set(ctx context.Context, key, orgID string) error

	// Sweep drops expired entries and returns how many were removed.
	Sweep(ctx context.Context) (int, error)

	Close() error
}

// Key derives the cache key for a (token, collection) pair: a truncated
// sha256 digest of the token followed by the collection id in clear.
func Key(token, collection string) string {
	return TokenDigest(token) + ":" + collection
}

// TokenDigest returns the truncated hex sha256 digest of a token. It is safe
// to log and persist.
func TokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])[:digestLength]
}
