package memcache

import (
	"context"
	"errors"
	"fmt"
	"time"

	mc "github.com/bradfitz/gomemcache/memcache"

	"github.com/arklim/token-vault/internal/core/port"
	"github.com/arklim/token-vault/internal/repository"
)

// Backend adapts a memcached client to the key-value and compare-and-swap
// capability ports. Memcached has no ordered-set type, so the index over it
// is a single serialized list value reconciled by CAS retry.
//
// The client API is context-free; cancellation is honored before each call
// and network deadlines come from the client's own timeout.
type Backend struct {
	client *mc.Client
}

// NewBackend wires a memcached client into a backend adapter.
func NewBackend(client *mc.Client) *Backend {
	return &Backend{client: client}
}

// Get returns the raw value or repository.ErrNotFound on a miss, including
// keys the server already evicted by TTL.
func (b *Backend) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("memcache get: %w", errors.Join(repository.ErrBackendUnavailable, err))
	}

	item, err := b.client.Get(key)
	if err != nil {
		return nil, classify("memcache get", err)
	}
	return item.Value, nil
}

// Set stores the value unconditionally with the supplied TTL; a non-positive
// TTL stores without expiry.
func (b *Backend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("memcache set: %w", errors.Join(repository.ErrBackendUnavailable, err))
	}

	if err := b.client.Set(&mc.Item{Key: key, Value: value, Expiration: ttlSeconds(ttl)}); err != nil {
		return classify("memcache set", err)
	}
	return nil
}

// Delete removes the key; an absent key is not an error.
func (b *Backend) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("memcache delete: %w", errors.Join(repository.ErrBackendUnavailable, err))
	}

	if err := b.client.Delete(key); err != nil && !errors.Is(err, mc.ErrCacheMiss) {
		return classify("memcache delete", err)
	}
	return nil
}

// GetForCAS fetches the value together with the item handle carrying the
// server's CAS id for a later conditional write.
func (b *Backend) GetForCAS(ctx context.Context, key string) (*port.CASEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("memcache gets: %w", errors.Join(repository.ErrBackendUnavailable, err))
	}

	item, err := b.client.Get(key)
	if err != nil {
		return nil, classify("memcache gets", err)
	}
	return &port.CASEntry{Key: key, Value: item.Value, Token: item}, nil
}

// Add stores the value only when the key is absent. A lost create race is
// (false, nil) so the caller re-reads and retries.
func (b *Backend) Add(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("memcache add: %w", errors.Join(repository.ErrBackendUnavailable, err))
	}

	err := b.client.Add(&mc.Item{Key: key, Value: value, Expiration: ttlSeconds(ttl)})
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, mc.ErrNotStored):
		return false, nil
	default:
		return false, classify("memcache add", err)
	}
}

// CompareAndSwap writes value only if the key still holds what entry
// observed. A lost race — the value moved or vanished underneath — is
// (false, nil); the server refusing the conditional write is an error.
func (b *Backend) CompareAndSwap(ctx context.Context, entry *port.CASEntry, value []byte, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("memcache cas: %w", errors.Join(repository.ErrBackendUnavailable, err))
	}

	item, ok := entry.Token.(*mc.Item)
	if !ok || item == nil {
		return false, fmt.Errorf("memcache cas: foreign fencing token: %w", repository.ErrUnexpected)
	}

	item.Value = value
	item.Expiration = ttlSeconds(ttl)

	err := b.client.CompareAndSwap(item)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, mc.ErrCASConflict), errors.Is(err, mc.ErrNotStored), errors.Is(err, mc.ErrCacheMiss):
		return false, nil
	default:
		return false, classify("memcache cas", err)
	}
}

// classify translates client errors into the caller-visible taxonomy. Server
// refusals are unexpected; everything else on the wire is unavailability.
func classify(op string, err error) error {
	switch {
	case errors.Is(err, mc.ErrCacheMiss):
		return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	case errors.Is(err, mc.ErrServerError), errors.Is(err, mc.ErrMalformedKey):
		return fmt.Errorf("%s: %w", op, errors.Join(repository.ErrUnexpected, err))
	default:
		return fmt.Errorf("%s: %w", op, errors.Join(repository.ErrBackendUnavailable, err))
	}
}

// ttlSeconds converts a duration to the protocol's relative-seconds form,
// rounding sub-second TTLs up so a short-lived record still expires.
func ttlSeconds(ttl time.Duration) int32 {
	if ttl <= 0 {
		return 0
	}
	seconds := int64((ttl + time.Second - 1) / time.Second)
	return int32(seconds)
}

var _ port.CompareAndSwapStore = (*Backend)(nil)
