package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/token-vault/internal/core/domain"
	"github.com/arklim/token-vault/internal/core/port"
	"github.com/arklim/token-vault/internal/infra/logger"
	"github.com/arklim/token-vault/internal/repository"
	"github.com/arklim/token-vault/internal/repository/codec"
)

const (
	defaultKeyPrefix = "tokenvault"
	// defaultTokenTTL applies when the provider supplies no expiry.
	defaultTokenTTL = 24 * time.Hour
)

// TokenStoreOptions carries the policy knobs the surrounding service
// configures.
type TokenStoreOptions struct {
	// KeyPrefix namespaces every key this store writes.
	KeyPrefix string
	// TrustEnabled additionally indexes trust-scoped tokens under the
	// trustee's id so a trustee's delegated tokens can be bulk-enumerated.
	TrustEnabled bool
	// DefaultTTL is the expiry window applied when a record arrives without one.
	DefaultTTL time.Duration
}

// TokenStore composes a key-value backend, an index strategy, and a
// revocation ledger into the facade the authentication service consumes. It
// is strategy-agnostic: which concrete index it drives is decided at wiring
// time by backend capability. The store holds no in-process lock across
// backend calls; concurrency control lives entirely in the index strategy.
type TokenStore struct {
	backend port.KeyValueStore
	index   port.TokenIndex
	ledger  port.RevocationLedger
	events  port.EventPublisher

	metrics *StoreMetrics
	logger  *zap.Logger

	keyPrefix    string
	trustEnabled bool
	defaultTTL   time.Duration

	now func() time.Time
}

// NewTokenStore wires the facade. events and metrics may be nil.
func NewTokenStore(
	backend port.KeyValueStore,
	index port.TokenIndex,
	ledger port.RevocationLedger,
	events port.EventPublisher,
	metrics *StoreMetrics,
	opts TokenStoreOptions,
	log *zap.Logger,
) *TokenStore {
	prefix := strings.TrimSpace(opts.KeyPrefix)
	if prefix == "" {
		prefix = defaultKeyPrefix
	}

	ttl := opts.DefaultTTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}

	if log == nil {
		log = zap.NewNop()
	}

	return &TokenStore{
		backend:      backend,
		index:        index,
		ledger:       ledger,
		events:       events,
		metrics:      metrics,
		logger:       log,
		keyPrefix:    prefix,
		trustEnabled: opts.TrustEnabled,
		defaultTTL:   ttl,
		now:          time.Now,
	}
}

// WithClock overrides the time source, typically for tests.
func (s *TokenStore) WithClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// LedgerKey returns the revocation ledger key for a key prefix, so wiring
// and the facade agree on the namespace.
func LedgerKey(prefix string) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return fmt.Sprintf("%s:token:revoked", prefix)
}

// CreateToken persists the record with TTL = expiry − now and registers it
// under the owner's index, plus the trustee's when trust indexing is
// enabled. The primary write happens before index registration and is not
// rolled back on index failure; an index entry is also written for records
// that arrive already expired, where the read path resolves them as absent.
func (s *TokenStore) CreateToken(ctx context.Context, id string, tok domain.Token) (stored domain.Token, err error) {
	defer func(start time.Time) { s.metrics.observe("create", start, err) }(time.Now())

	if strings.TrimSpace(id) == "" {
		return domain.Token{}, errors.New("token id is required")
	}

	tok.ID = id
	now := s.now()

	if tok.ExpiresAt.IsZero() {
		tok.ExpiresAt = now.Add(s.defaultTTL)
	}
	if tok.UserID == "" && tok.User != nil {
		tok.UserID = tok.User.ID
	}
	if tok.UserID == "" {
		return domain.Token{}, errors.New("token user id is required")
	}

	ttl := tok.ExpiresAt.Sub(now)
	if ttl > 0 {
		data, encErr := codec.EncodeToken(tok)
		if encErr != nil {
			return domain.Token{}, errors.Join(repository.ErrUnexpected, encErr)
		}
		if setErr := s.backend.Set(ctx, s.tokenKey(id), data, ttl); setErr != nil {
			return domain.Token{}, fmt.Errorf("create token: %w", setErr)
		}
	} else {
		// Already-expired garbage: every read observes it as absent, so the
		// primary write is skipped and only the index entry (pruned on next
		// read) is recorded.
		s.logger.Debug("token expired at creation, primary write skipped",
			zap.String("token_id", logger.MaskTokenID(id)))
	}

	entry := domain.IndexEntry{TokenID: id, ExpiresAt: tok.ExpiresAt}
	if idxErr := s.index.Add(ctx, s.userKey(tok.UserID), entry); idxErr != nil {
		return domain.Token{}, fmt.Errorf("create token: %w", idxErr)
	}

	if s.trustEnabled && tok.TrustID != "" {
		trustee, trustErr := tok.TrusteeUserID()
		if trustErr != nil {
			return domain.Token{}, fmt.Errorf("create token: %w", errors.Join(repository.ErrUnexpected, trustErr))
		}
		if idxErr := s.index.Add(ctx, s.userKey(trustee), entry); idxErr != nil {
			return domain.Token{}, fmt.Errorf("create token trustee index: %w", idxErr)
		}
	}

	s.logger.Info("token created",
		zap.String("token_id", logger.MaskTokenID(id)),
		zap.String("user_id", tok.UserID),
		zap.Time("expires", tok.ExpiresAt),
	)

	return tok, nil
}

// GetToken returns the record. Empty ids, unknown ids, and TTL-evicted
// records all fail with repository.ErrNotFound.
func (s *TokenStore) GetToken(ctx context.Context, id string) (tok domain.Token, err error) {
	defer func(start time.Time) { s.metrics.observe("get", start, err) }(time.Now())

	if strings.TrimSpace(id) == "" {
		return domain.Token{}, fmt.Errorf("get token: %w", repository.ErrNotFound)
	}

	data, getErr := s.backend.Get(ctx, s.tokenKey(id))
	if getErr != nil {
		return domain.Token{}, fmt.Errorf("get token: %w", getErr)
	}

	decoded, decErr := codec.DecodeToken(data)
	if decErr != nil {
		// Malformed primary data is never recovered silently; the primary
		// record is the source of truth.
		return domain.Token{}, fmt.Errorf("get token: %w", errors.Join(repository.ErrUnexpected, decErr))
	}
	return decoded, nil
}

// DeleteToken removes the record and appends exactly one revocation ledger
// entry scored by the token's original expiry. It is not idempotent: the
// second delete of an id fails with repository.ErrNotFound. The owner index
// is not rewritten; readers reconcile the stale entry against the missing
// primary record.
func (s *TokenStore) DeleteToken(ctx context.Context, id string) (err error) {
	defer func(start time.Time) { s.metrics.observe("delete", start, err) }(time.Now())

	tok, getErr := s.GetToken(ctx, id)
	if getErr != nil {
		return getErr
	}

	if delErr := s.backend.Delete(ctx, s.tokenKey(id)); delErr != nil {
		return fmt.Errorf("delete token: %w", delErr)
	}

	now := s.now()
	entry := domain.RevocationEntry{TokenID: tok.ID, ExpiresAt: tok.ExpiresAt, RevokedAt: now}
	if ledgerErr := s.ledger.Append(ctx, entry); ledgerErr != nil {
		return fmt.Errorf("delete token: %w", ledgerErr)
	}

	if s.events != nil {
		event := domain.TokenRevokedEvent{
			TokenID:   tok.ID,
			UserID:    tok.UserID,
			ExpiresAt: tok.ExpiresAt,
			RevokedAt: now,
		}
		if pubErr := s.events.PublishTokenRevoked(ctx, event); pubErr != nil {
			s.logger.Warn("token revocation event not published",
				zap.String("token_id", logger.MaskTokenID(id)),
				zap.Error(pubErr),
			)
		}
	}

	s.logger.Info("token revoked",
		zap.String("token_id", logger.MaskTokenID(id)),
		zap.String("user_id", tok.UserID),
		zap.Time("expires", tok.ExpiresAt),
	)

	return nil
}

// ListTokens prunes and enumerates the user's index, skipping entries whose
// primary record is gone, then applies the optional exact-match filters.
// Returned ids follow index order, which for the compare-and-swap strategy
// is not necessarily creation order after pruning rewrites.
func (s *TokenStore) ListTokens(ctx context.Context, filter domain.TokenFilter) (ids []string, err error) {
	defer func(start time.Time) { s.metrics.observe("list", start, err) }(time.Now())

	if strings.TrimSpace(filter.UserID) == "" {
		return nil, errors.New("user id is required")
	}

	entries, listErr := s.index.ListLive(ctx, s.userKey(filter.UserID))
	if listErr != nil {
		return nil, fmt.Errorf("list tokens: %w", listErr)
	}

	ids = make([]string, 0, len(entries))
	for _, entry := range entries {
		data, getErr := s.backend.Get(ctx, s.tokenKey(entry.TokenID))
		if getErr != nil {
			if errors.Is(getErr, repository.ErrNotFound) {
				// Stale index entry for a deleted or evicted token.
				continue
			}
			return nil, fmt.Errorf("list tokens: %w", getErr)
		}

		tok, decErr := codec.DecodeToken(data)
		if decErr != nil {
			return nil, fmt.Errorf("list tokens: %w", errors.Join(repository.ErrUnexpected, decErr))
		}

		if !filter.Matches(tok) {
			continue
		}
		ids = append(ids, entry.TokenID)
	}
	return ids, nil
}

// ListRevokedTokens returns ledger entries whose original expiry has not yet
// passed, pruning the rest first.
func (s *TokenStore) ListRevokedTokens(ctx context.Context) (entries []domain.RevocationEntry, err error) {
	defer func(start time.Time) { s.metrics.observe("list_revoked", start, err) }(time.Now())

	entries, err = s.ledger.ListLive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list revoked tokens: %w", err)
	}
	return entries, nil
}

func (s *TokenStore) tokenKey(id string) string {
	return fmt.Sprintf("%s:token:%s", s.keyPrefix, id)
}

func (s *TokenStore) userKey(userID string) string {
	return fmt.Sprintf("%s:user:%s", s.keyPrefix, userID)
}

var _ port.TokenStore = (*TokenStore)(nil)
