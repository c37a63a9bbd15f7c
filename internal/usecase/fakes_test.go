package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/arklim/token-vault/internal/core/domain"
	"github.com/arklim/token-vault/internal/core/port"
	"github.com/arklim/token-vault/internal/repository"
)

// fakeCASStore replicates a memcached-class backend: TTL'd values plus
// conditional writes keyed by a version counter, with a switch to simulate a
// server refusing conditional writes.
type fakeCASStore struct {
	mu     sync.Mutex
	data   map[string]*fakeItem
	casSeq uint64

	rejectCAS bool
	persists  int
}

type fakeItem struct {
	value     []byte
	cas       uint64
	expiresAt time.Time
}

func newFakeCASStore() *fakeCASStore {
	return &fakeCASStore{data: map[string]*fakeItem{}}
}

func (s *fakeCASStore) item(key string) *fakeItem {
	item, ok := s.data[key]
	if !ok {
		return nil
	}
	if !item.expiresAt.IsZero() && !item.expiresAt.After(time.Now()) {
		delete(s.data, key)
		return nil
	}
	return item
}

func (s *fakeCASStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.item(key)
	if item == nil {
		return nil, fmt.Errorf("fake get: %w", repository.ErrNotFound)
	}
	return append([]byte(nil), item.value...), nil
}

func (s *fakeCASStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.storeLocked(key, value, ttl)
	return nil
}

func (s *fakeCASStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)
	return nil
}

func (s *fakeCASStore) GetForCAS(_ context.Context, key string) (*port.CASEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.item(key)
	if item == nil {
		return nil, fmt.Errorf("fake gets: %w", repository.ErrNotFound)
	}
	return &port.CASEntry{
		Key:   key,
		Value: append([]byte(nil), item.value...),
		Token: item.cas,
	}, nil
}

func (s *fakeCASStore) Add(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rejectCAS {
		return false, fmt.Errorf("fake add: write rejected: %w", repository.ErrUnexpected)
	}
	if s.item(key) != nil {
		return false, nil
	}
	s.storeLocked(key, value, ttl)
	return true, nil
}

func (s *fakeCASStore) CompareAndSwap(_ context.Context, entry *port.CASEntry, value []byte, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rejectCAS {
		return false, fmt.Errorf("fake cas: write rejected: %w", repository.ErrUnexpected)
	}

	item := s.item(entry.Key)
	if item == nil {
		return false, nil
	}
	observed, ok := entry.Token.(uint64)
	if !ok || observed != item.cas {
		return false, nil
	}

	s.storeLocked(entry.Key, value, ttl)
	return true, nil
}

func (s *fakeCASStore) Persist(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.persists++
	return nil
}

func (s *fakeCASStore) storeLocked(key string, value []byte, ttl time.Duration) {
	s.casSeq++
	item := &fakeItem{value: append([]byte(nil), value...), cas: s.casSeq}
	if ttl > 0 {
		item.expiresAt = time.Now().Add(ttl)
	}
	s.data[key] = item
}

var (
	_ port.CompareAndSwapStore = (*fakeCASStore)(nil)
	_ port.Persister           = (*fakeCASStore)(nil)
)

// fakePublisher records revocation events instead of producing them.
type fakePublisher struct {
	mu     sync.Mutex
	events []domain.TokenRevokedEvent
	fail   error
}

func (p *fakePublisher) PublishTokenRevoked(_ context.Context, event domain.TokenRevokedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.fail != nil {
		return p.fail
	}
	p.events = append(p.events, event)
	return nil
}

func (p *fakePublisher) published() []domain.TokenRevokedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]domain.TokenRevokedEvent(nil), p.events...)
}

var _ port.EventPublisher = (*fakePublisher)(nil)
