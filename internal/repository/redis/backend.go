package redis

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/arklim/token-vault/internal/core/port"
	"github.com/arklim/token-vault/internal/repository"
)

// Backend adapts a Redis client to the key-value and ordered-set capability
// ports. Redis is the native-index backend: index mutations ride ZADD and
// score-range pruning, so no compare-and-swap loop is needed.
type Backend struct {
	client *red.Client
}

// NewBackend wires a Redis client into a backend adapter.
func NewBackend(client *red.Client) *Backend {
	return &Backend{client: client}
}

// Get returns the raw value or repository.ErrNotFound on a miss, including
// keys the server already evicted by TTL.
func (b *Backend) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := b.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, red.Nil) {
			return nil, fmt.Errorf("redis get: %w", repository.ErrNotFound)
		}
		return nil, fmt.Errorf("redis get: %w", errors.Join(repository.ErrBackendUnavailable, err))
	}
	return data, nil
}

// Set stores the value with the supplied TTL; a non-positive TTL stores
// without expiry.
func (b *Backend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := b.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", errors.Join(repository.ErrBackendUnavailable, err))
	}
	return nil
}

// Delete removes the key; an absent key is not an error.
func (b *Backend) Delete(ctx context.Context, key string) error {
	if err := b.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", errors.Join(repository.ErrBackendUnavailable, err))
	}
	return nil
}

// ZAdd inserts or rescores members atomically server-side. O(log N) per member.
func (b *Backend) ZAdd(ctx context.Context, key string, members ...port.ZMember) error {
	zs := make([]red.Z, 0, len(members))
	for _, m := range members {
		zs = append(zs, red.Z{Score: m.Score, Member: m.Member})
	}
	if err := b.client.ZAdd(ctx, key, zs...).Err(); err != nil {
		return fmt.Errorf("redis zadd: %w", errors.Join(repository.ErrBackendUnavailable, err))
	}
	return nil
}

// ZRangeWithScores returns members ordered by score. O(log N + M) with M
// returned members.
func (b *Backend) ZRangeWithScores(ctx context.Context, key string, start, stop int64) ([]port.ZMember, error) {
	zs, err := b.client.ZRangeWithScores(ctx, key, start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("redis zrange: %w", errors.Join(repository.ErrBackendUnavailable, err))
	}

	members := make([]port.ZMember, 0, len(zs))
	for _, z := range zs {
		member, ok := z.Member.(string)
		if !ok {
			continue
		}
		members = append(members, port.ZMember{Member: member, Score: z.Score})
	}
	return members, nil
}

// ZRemRangeByScore prunes members inside the score window as one atomic
// server-side operation. O(log N + M) with M removed members.
func (b *Backend) ZRemRangeByScore(ctx context.Context, key string, min, max float64) error {
	if err := b.client.ZRemRangeByScore(ctx, key, formatScore(min), formatScore(max)).Err(); err != nil {
		return fmt.Errorf("redis zremrangebyscore: %w", errors.Join(repository.ErrBackendUnavailable, err))
	}
	return nil
}

// Persist asks the server for a background save so explicitly revoked tokens
// survive a restart.
func (b *Backend) Persist(ctx context.Context) error {
	if err := b.client.BgSave(ctx).Err(); err != nil {
		return fmt.Errorf("redis bgsave: %w", errors.Join(repository.ErrBackendUnavailable, err))
	}
	return nil
}

func formatScore(score float64) string {
	switch {
	case math.IsInf(score, -1):
		return "-inf"
	case math.IsInf(score, 1):
		return "+inf"
	default:
		return fmt.Sprintf("%f", score)
	}
}

var (
	_ port.SortedSetStore = (*Backend)(nil)
	_ port.Persister      = (*Backend)(nil)
)
