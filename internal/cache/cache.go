// Package cache holds the TTL response cache consulted by the API handlers
// after admission. Entries are addressed by a request fingerprint; an entry
// is never returned once its TTL has elapsed.
package cache

import (
	"context"
	"encoding/json"
)

// Store is the contract shared by the in-memory and Redis backends. Lookups
// and stores are safe under concurrent access to the same fingerprint; the
// policy is last write wins, with no request coalescing.
type Store interface {
	// Get returns the cached payload for fingerprint, or false on a miss.
	// An expired entry counts as a miss and is evicted.
	Get(ctx context.Context, fingerprint string) (json.RawMessage, bool)
	// Set inserts or overwrites the entry for fingerprint, stamping it with
	// the current time.
	Set(ctx context.Context, fingerprint string, payload json.RawMessage)
	// Delete removes the entry for fingerprint if present.
	Delete(ctx context.Context, fingerprint string)
}
