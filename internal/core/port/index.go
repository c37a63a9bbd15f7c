package port

import (
	"context"

	"github.com/arklim/token-vault/internal/core/domain"
)

// TokenIndex maintains the per-principal secondary index over token ids.
// Implementations differ by backend capability: a CAS-reconciled list blob
// or a natively ordered set scored by expiry.
type TokenIndex interface {
	// Add registers an entry under the index key, surviving concurrent
	// writers without losing either update.
	Add(ctx context.Context, key string, entry domain.IndexEntry) error

	// ListLive prunes expired entries and returns the remainder in index
	// order. Entries referencing already-deleted tokens may still appear;
	// readers reconcile against the primary record.
	ListLive(ctx context.Context, key string) ([]domain.IndexEntry, error)
}

// RevocationLedger records tokens deleted before natural expiry, retaining
// each entry until its original expiry passes.
type RevocationLedger interface {
	Append(ctx context.Context, entry domain.RevocationEntry) error
	ListLive(ctx context.Context) ([]domain.RevocationEntry, error)
}
