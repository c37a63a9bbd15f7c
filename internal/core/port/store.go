package port

import (
	"context"

	"github.com/arklim/token-vault/internal/core/domain"
)

// TokenStore is the facade the surrounding authentication service consumes.
// It is the entire external contract of this module.
type TokenStore interface {
	// CreateToken persists the record with TTL derived from its expiry and
	// registers it under the owner's (and, when enabled, trustee's) index.
	// It returns the stored data with defaults applied.
	CreateToken(ctx context.Context, id string, token domain.Token) (domain.Token, error)

	// GetToken returns the record or repository.ErrNotFound for unknown,
	// expired, or empty ids.
	GetToken(ctx context.Context, id string) (domain.Token, error)

	// DeleteToken removes the record and appends exactly one revocation
	// ledger entry. It is not idempotent: a second delete of the same id
	// fails with repository.ErrNotFound.
	DeleteToken(ctx context.Context, id string) error

	// ListTokens enumerates the user's live token ids in index order,
	// applying the filter's optional exact-match criteria.
	ListTokens(ctx context.Context, filter domain.TokenFilter) ([]string, error)

	// ListRevokedTokens returns ledger entries whose original expiry has not
	// yet passed.
	ListRevokedTokens(ctx context.Context) ([]domain.RevocationEntry, error)
}
