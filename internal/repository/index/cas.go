// Package index implements the two secondary-index strategies over the
// backend capability ports: a compare-and-swap-reconciled list blob for
// backends without an ordered-set type, and a natively ordered set scored by
// expiry for backends that have one.
package index

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/token-vault/internal/core/domain"
	"github.com/arklim/token-vault/internal/core/port"
	"github.com/arklim/token-vault/internal/repository"
	"github.com/arklim/token-vault/internal/repository/codec"
)

// DefaultCASRetries bounds the reread-and-retry cycles a single update may
// spend on contention before it fails instead of starving.
const DefaultCASRetries = 8

// CASOptions tunes the retry combinator.
type CASOptions struct {
	// MaxRetries caps reread-and-retry cycles per update; zero means
	// DefaultCASRetries.
	MaxRetries int
}

// CASIndex keeps a per-principal index as one serialized list value.
// Concurrent updates are reconciled optimistically: read the blob, prune
// expired entries, apply the mutation, and conditionally write against the
// previously fetched value. No locks are held between read and write; the
// backend's compare-and-swap is the only serialization point.
type CASIndex struct {
	store   port.CompareAndSwapStore
	retries int
	logger  *zap.Logger
	now     func() time.Time
}

// NewCASIndex constructs the compare-and-swap index strategy.
func NewCASIndex(store port.CompareAndSwapStore, opts CASOptions, logger *zap.Logger) *CASIndex {
	retries := opts.MaxRetries
	if retries <= 0 {
		retries = DefaultCASRetries
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &CASIndex{store: store, retries: retries, logger: logger, now: time.Now}
}

// WithClock overrides the time source, typically for tests.
func (i *CASIndex) WithClock(now func() time.Time) {
	if now != nil {
		i.now = now
	}
}

// Add registers the entry under the index key. An update either commits or
// the caller observes an error; two concurrent creators each retry until
// their own entry is durably present.
func (i *CASIndex) Add(ctx context.Context, key string, entry domain.IndexEntry) error {
	return i.update(ctx, key, func(live []domain.IndexEntry) []domain.IndexEntry {
		for idx := range live {
			if live[idx].TokenID == entry.TokenID {
				live[idx] = entry
				return live
			}
		}
		return append(live, entry)
	})
}

// ListLive returns unexpired entries in blob order. The read path filters
// without rewriting; expired entries are physically dropped by the next
// writer's prune.
func (i *CASIndex) ListLive(ctx context.Context, key string) ([]domain.IndexEntry, error) {
	data, err := i.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("index %s read: %w", key, err)
	}

	entries := codec.DecodeIndex(data)
	if len(data) > 0 && entries == nil {
		i.logger.Warn("corrupted index blob treated as empty", zap.String("key", key))
	}

	now := i.now()
	live := make([]domain.IndexEntry, 0, len(entries))
	for _, e := range entries {
		if !e.Expired(now) {
			live = append(live, e)
		}
	}
	return live, nil
}

// update is the bounded retry combinator shared by index mutations: fetch,
// tolerant-decode, lazily prune, mutate, conditionally write. A mismatch
// rereads and retries; a backend-level rejection surfaces immediately.
func (i *CASIndex) update(ctx context.Context, key string, mutate func([]domain.IndexEntry) []domain.IndexEntry) error {
	for attempt := 0; attempt < i.retries; attempt++ {
		cur, err := i.store.GetForCAS(ctx, key)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("index %s read: %w", key, err)
		}

		if cur == nil {
			encoded, encErr := codec.EncodeIndex(mutate(nil))
			if encErr != nil {
				return fmt.Errorf("index %s: %w", key, errors.Join(repository.ErrUnexpected, encErr))
			}
			stored, addErr := i.store.Add(ctx, key, encoded, 0)
			if addErr != nil {
				return fmt.Errorf("index %s create: %w", key, addErr)
			}
			if stored {
				return nil
			}
			// Lost the create race; reread and merge.
			continue
		}

		entries := codec.DecodeIndex(cur.Value)
		if len(cur.Value) > 0 && entries == nil {
			i.logger.Warn("corrupted index blob reset on write", zap.String("key", key))
		}

		now := i.now()
		live := make([]domain.IndexEntry, 0, len(entries)+1)
		for _, e := range entries {
			if !e.Expired(now) {
				live = append(live, e)
			}
		}

		encoded, encErr := codec.EncodeIndex(mutate(live))
		if encErr != nil {
			return fmt.Errorf("index %s: %w", key, errors.Join(repository.ErrUnexpected, encErr))
		}

		swapped, casErr := i.store.CompareAndSwap(ctx, cur, encoded, 0)
		if casErr != nil {
			return fmt.Errorf("index %s conditional write: %w", key, casErr)
		}
		if swapped {
			return nil
		}
	}

	return fmt.Errorf("index %s: contention unresolved after %d attempts: %w",
		key, i.retries, repository.ErrUnexpected)
}

// CASLedger keeps the revocation ledger as one serialized list value,
// reconciled by the same optimistic loop as the index.
type CASLedger struct {
	store   port.CompareAndSwapStore
	key     string
	retries int
	logger  *zap.Logger
	now     func() time.Time
}

// NewCASLedger constructs the compare-and-swap revocation ledger.
func NewCASLedger(store port.CompareAndSwapStore, key string, opts CASOptions, logger *zap.Logger) *CASLedger {
	retries := opts.MaxRetries
	if retries <= 0 {
		retries = DefaultCASRetries
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &CASLedger{store: store, key: key, retries: retries, logger: logger, now: time.Now}
}

// WithClock overrides the time source, typically for tests.
func (l *CASLedger) WithClock(now func() time.Time) {
	if now != nil {
		l.now = now
	}
}

// Append records an explicit revocation and asks the backend to persist the
// dataset. Losing the ledger would let a revoked-but-unexpired token look
// valid again, so persistence is requested on every append; a failed save
// request is logged, not returned.
func (l *CASLedger) Append(ctx context.Context, entry domain.RevocationEntry) error {
	err := l.updateLedger(ctx, func(live []domain.RevocationEntry) []domain.RevocationEntry {
		for idx := range live {
			if live[idx].TokenID == entry.TokenID {
				live[idx] = entry
				return live
			}
		}
		return append(live, entry)
	})
	if err != nil {
		return err
	}

	if p, ok := l.store.(port.Persister); ok {
		if persistErr := p.Persist(ctx); persistErr != nil {
			l.logger.Warn("revocation ledger persistence request failed", zap.Error(persistErr))
		}
	}
	return nil
}

// ListLive returns unexpired ledger entries in blob order.
func (l *CASLedger) ListLive(ctx context.Context) ([]domain.RevocationEntry, error) {
	data, err := l.store.Get(ctx, l.key)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("ledger read: %w", err)
	}

	entries := codec.DecodeRevocations(data)
	if len(data) > 0 && entries == nil {
		l.logger.Warn("corrupted revocation ledger treated as empty", zap.String("key", l.key))
	}

	now := l.now()
	live := make([]domain.RevocationEntry, 0, len(entries))
	for _, e := range entries {
		if !e.Expired(now) {
			live = append(live, e)
		}
	}
	return live, nil
}

func (l *CASLedger) updateLedger(ctx context.Context, mutate func([]domain.RevocationEntry) []domain.RevocationEntry) error {
	for attempt := 0; attempt < l.retries; attempt++ {
		cur, err := l.store.GetForCAS(ctx, l.key)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("ledger read: %w", err)
		}

		if cur == nil {
			encoded, encErr := codec.EncodeRevocations(mutate(nil))
			if encErr != nil {
				return errors.Join(repository.ErrUnexpected, encErr)
			}
			stored, addErr := l.store.Add(ctx, l.key, encoded, 0)
			if addErr != nil {
				return fmt.Errorf("ledger create: %w", addErr)
			}
			if stored {
				return nil
			}
			continue
		}

		entries := codec.DecodeRevocations(cur.Value)
		if len(cur.Value) > 0 && entries == nil {
			l.logger.Warn("corrupted revocation ledger reset on write", zap.String("key", l.key))
		}

		now := l.now()
		live := make([]domain.RevocationEntry, 0, len(entries)+1)
		for _, e := range entries {
			if !e.Expired(now) {
				live = append(live, e)
			}
		}

		encoded, encErr := codec.EncodeRevocations(mutate(live))
		if encErr != nil {
			return errors.Join(repository.ErrUnexpected, encErr)
		}

		swapped, casErr := l.store.CompareAndSwap(ctx, cur, encoded, 0)
		if casErr != nil {
			return fmt.Errorf("ledger conditional write: %w", casErr)
		}
		if swapped {
			return nil
		}
	}

	return fmt.Errorf("ledger: contention unresolved after %d attempts: %w",
		l.retries, repository.ErrUnexpected)
}

var (
	_ port.TokenIndex       = (*CASIndex)(nil)
	_ port.RevocationLedger = (*CASLedger)(nil)
)
