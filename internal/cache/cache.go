// Package cache provides the client-side query cache.
//
// Cached REST responses are stored under hierarchical keys. The sync engine
// invalidates keys when change events arrive so that subsequent reads refetch
// from the API. The cache never refetches on its own.
package cache

import (
	"context"
	"strings"
	"time"
)

// Key identifies a cached query result as an ordered token sequence,
// e.g. {"applications"} or {"incident-logs", "42"}.
type Key []string

// NewKey builds a key from tokens.
func NewKey(tokens ...string) Key {
	return Key(tokens)
}

// String returns the canonical form of the key, tokens joined by '/'.
func (k Key) String() string {
	return strings.Join(k, "/")
}

// HasPrefix reports whether k is equal to or nested under prefix.
// Invalidating a collection key drops every record cached beneath it.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i, tok := range prefix {
		if k[i] != tok {
			return false
		}
	}
	return true
}

// Store is the interface for cache backends.
type Store interface {
	// Get returns the cached value for key, and whether it was present.
	Get(ctx context.Context, key Key) ([]byte, bool, error)

	// Set stores a value under key. A zero ttl means no expiry.
	Set(ctx context.Context, key Key, value []byte, ttl time.Duration) error

	// Invalidate drops the given keys and everything nested under them.
	Invalidate(ctx context.Context, keys ...Key) error

	// Close releases backend resources.
	Close() error
}

// Well-known collection keys.
var (
	KeyApplications = NewKey("applications")
	KeyIncidents    = NewKey("incidents")
	KeyIncidentLogs = NewKey("incident-logs")
	KeyMaintenance  = NewKey("maintenance")
)
