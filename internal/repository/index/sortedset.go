package index

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/token-vault/internal/core/domain"
	"github.com/arklim/token-vault/internal/core/port"
	"github.com/arklim/token-vault/internal/repository/codec"
)

// SortedSetIndex keeps a per-principal index as an ordered set whose members
// are token ids scored by expiry timestamp. Each mutation is one atomic
// server-side operation, so there is no read-modify-write window and no two
// concurrent writers can lose each other's entry.
type SortedSetIndex struct {
	store port.SortedSetStore
	now   func() time.Time
}

// NewSortedSetIndex constructs the native index strategy.
func NewSortedSetIndex(store port.SortedSetStore) *SortedSetIndex {
	return &SortedSetIndex{store: store, now: time.Now}
}

// WithClock overrides the time source, typically for tests.
func (i *SortedSetIndex) WithClock(now func() time.Time) {
	if now != nil {
		i.now = now
	}
}

// Add registers the entry with its expiry as score. O(log N) with N live
// entries for the principal.
func (i *SortedSetIndex) Add(ctx context.Context, key string, entry domain.IndexEntry) error {
	member := port.ZMember{Member: entry.TokenID, Score: float64(entry.ExpiresAt.Unix())}
	if err := i.store.ZAdd(ctx, key, member); err != nil {
		return fmt.Errorf("index %s add: %w", key, err)
	}
	return nil
}

// ListLive prunes entries whose score has passed and returns the remainder
// in score order. Pruning cost is paid by the reader, never the writer;
// O(log N + N) with N live entries for the principal.
func (i *SortedSetIndex) ListLive(ctx context.Context, key string) ([]domain.IndexEntry, error) {
	now := i.now()

	if err := i.store.ZRemRangeByScore(ctx, key, math.Inf(-1), float64(now.Unix())); err != nil {
		return nil, fmt.Errorf("index %s prune: %w", key, err)
	}

	members, err := i.store.ZRangeWithScores(ctx, key, 0, -1)
	if err != nil {
		return nil, fmt.Errorf("index %s range: %w", key, err)
	}

	entries := make([]domain.IndexEntry, 0, len(members))
	for _, m := range members {
		entries = append(entries, domain.IndexEntry{
			TokenID:   m.Member,
			ExpiresAt: time.Unix(int64(m.Score), 0).UTC(),
		})
	}
	return entries, nil
}

// SortedSetLedger keeps the revocation ledger as an ordered set of
// serialized entries scored by original expiry.
type SortedSetLedger struct {
	store  port.SortedSetStore
	key    string
	logger *zap.Logger
	now    func() time.Time
}

// NewSortedSetLedger constructs the native revocation ledger.
func NewSortedSetLedger(store port.SortedSetStore, key string, logger *zap.Logger) *SortedSetLedger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SortedSetLedger{store: store, key: key, logger: logger, now: time.Now}
}

// WithClock overrides the time source, typically for tests.
func (l *SortedSetLedger) WithClock(now func() time.Time) {
	if now != nil {
		l.now = now
	}
}

// Append records an explicit revocation, scored by the token's original
// expiry, and asks the backend to persist the dataset so the ledger survives
// a restart. A failed save request is logged, not returned.
func (l *SortedSetLedger) Append(ctx context.Context, entry domain.RevocationEntry) error {
	member, err := codec.EncodeRevocation(entry)
	if err != nil {
		return err
	}

	z := port.ZMember{Member: string(member), Score: float64(entry.ExpiresAt.Unix())}
	if err := l.store.ZAdd(ctx, l.key, z); err != nil {
		return fmt.Errorf("ledger append: %w", err)
	}

	if p, ok := l.store.(port.Persister); ok {
		if persistErr := p.Persist(ctx); persistErr != nil {
			l.logger.Warn("revocation ledger persistence request failed", zap.Error(persistErr))
		}
	}
	return nil
}

// ListLive prunes entries whose original expiry has passed and returns the
// remainder in score order. Undecodable members are skipped, not surfaced.
func (l *SortedSetLedger) ListLive(ctx context.Context) ([]domain.RevocationEntry, error) {
	now := l.now()

	if err := l.store.ZRemRangeByScore(ctx, l.key, math.Inf(-1), float64(now.Unix())); err != nil {
		return nil, fmt.Errorf("ledger prune: %w", err)
	}

	members, err := l.store.ZRangeWithScores(ctx, l.key, 0, -1)
	if err != nil {
		return nil, fmt.Errorf("ledger range: %w", err)
	}

	entries := make([]domain.RevocationEntry, 0, len(members))
	for _, m := range members {
		entry, ok := codec.DecodeRevocation([]byte(m.Member))
		if !ok {
			l.logger.Warn("undecodable revocation ledger member skipped", zap.String("key", l.key))
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

var (
	_ port.TokenIndex       = (*SortedSetIndex)(nil)
	_ port.RevocationLedger = (*SortedSetLedger)(nil)
)
