package port

import (
	"context"
	"time"
)

// KeyValueStore is the capability every backend provides: single-key reads
// and TTL'd writes. Misses map to repository.ErrNotFound; connectivity
// failures map to repository.ErrBackendUnavailable and are never conflated
// with a miss.
type KeyValueStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete is idempotent: removing an absent key is not an error.
	Delete(ctx context.Context, key string) error
}

// CASEntry carries a fetched value together with the backend's fencing token
// so a later conditional write can be checked against exactly this read.
type CASEntry struct {
	Key   string
	Value []byte
	// Token is backend-specific state identifying the observed version.
	Token any
}

// CompareAndSwapStore extends a plain key-value backend with the whole-value
// conditional-write primitives the CAS index strategy needs.
type CompareAndSwapStore interface {
	KeyValueStore

	// GetForCAS fetches the current value plus the fencing token required by
	// CompareAndSwap. Absent keys return repository.ErrNotFound.
	GetForCAS(ctx context.Context, key string) (*CASEntry, error)

	// Add stores the value only when the key does not exist yet. A lost
	// create race returns (false, nil), not an error.
	Add(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// CompareAndSwap writes value only if the key still holds what entry
	// observed. A mismatch returns (false, nil); the caller must re-read and
	// retry, never assume success. A hard backend rejection returns an error.
	CompareAndSwap(ctx context.Context, entry *CASEntry, value []byte, ttl time.Duration) (bool, error)
}

// ZMember represents a sorted-set member payload.
type ZMember struct {
	Member string
	Score  float64
}

// SortedSetStore extends a plain key-value backend with an ordered-set type
// whose operations execute atomically server-side, which is what lets the
// native index strategy skip read-modify-write entirely.
type SortedSetStore interface {
	KeyValueStore

	ZAdd(ctx context.Context, key string, members ...ZMember) error
	ZRangeWithScores(ctx context.Context, key string, start, stop int64) ([]ZMember, error)
	ZRemRangeByScore(ctx context.Context, key string, min, max float64) error
}

// Persister is an optional capability: ask the backend to durably persist
// its dataset (e.g. a redis background save). The revocation ledger requests
// it after every append so explicit revocations survive a backend restart.
type Persister interface {
	Persist(ctx context.Context) error
}
