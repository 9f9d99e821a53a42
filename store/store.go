// Package store defines the versioned key/value capability the update engine
// is built on. It is the only layer that talks to the backing cache.
//
// A document lives under a data key and its version counter under a separate
// version key. CompareAndSwap is the single synchronization point: it writes
// both keys iff the version key still holds the expected version, and writes
// nothing otherwise. Implementations MUST use the backend's native
// conditional-write facility (e.g. Redis WATCH/MULTI/EXEC), never a lock held
// by the caller.
package store

import (
	"context"
	"time"
)

// Store is a byte store with TTLs, existence checks and an atomic dual-key
// compare-and-swap. Must be safe for concurrent use and byte-for-byte
// transparent: Get returns exactly the bytes previously passed to Set.
type Store interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	// An empty stored value is a hit.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set overwrites key unconditionally. ttl <= 0 means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Del removes key and reports whether it was present.
	Del(ctx context.Context, key string) (bool, error)

	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)

	// GetVersion returns the counter stored at versionKey.
	// Missing, unparsable or negative values read as 0.
	GetVersion(ctx context.Context, versionKey string) (int64, error)

	// CompareAndSwap writes value to dataKey and newVersion to versionKey iff
	// versionKey currently holds expected. A missing version key matches
	// expected == 0. Returns false with no writes on mismatch.
	// newVersion must equal expected+1 (see CheckCAS).
	CompareAndSwap(ctx context.Context, dataKey, versionKey string, expected int64, value []byte, newVersion int64) (bool, error)

	// Close releases resources.
	Close(ctx context.Context) error
}
