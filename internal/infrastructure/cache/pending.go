package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sngm3741/cafe-club/api/internal/public/application"
	"github.com/sngm3741/cafe-club/api/internal/public/domain"
)

const pendingPrefix = "auth:pending:"

// RedisPendingSignInStore keeps redirect-flow state in Redis. Consume uses
// GETDEL so a state value can be redeemed exactly once.
type RedisPendingSignInStore struct {
	client *redis.Client
	prefix string
}

var (
	_ application.PendingSignInStore = (*RedisPendingSignInStore)(nil)
	_ application.PendingSignInStore = (*MemoryPendingSignInStore)(nil)
)

func NewRedisPendingSignInStore(client *redis.Client) *RedisPendingSignInStore {
	return &RedisPendingSignInStore{client: client, prefix: pendingPrefix}
}

func (s *RedisPendingSignInStore) Save(ctx context.Context, state string, provider domain.Provider, ttl time.Duration) error {
	ok, err := s.client.SetNX(ctx, s.prefix+state, string(provider), ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to save pending sign-in: %w", err)
	}
	if !ok {
		return fmt.Errorf("pending sign-in state %q already exists", state)
	}
	return nil
}

func (s *RedisPendingSignInStore) Consume(ctx context.Context, state string) (domain.Provider, error) {
	value, err := s.client.GetDel(ctx, s.prefix+state).Result()
	if errors.Is(err, redis.Nil) {
		return "", application.ErrPendingStateNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to consume pending sign-in: %w", err)
	}
	return domain.Provider(value), nil
}

type pendingEntry struct {
	provider domain.Provider
	expires  time.Time
}

// MemoryPendingSignInStore is a process-local PendingSignInStore.
type MemoryPendingSignInStore struct {
	mu      sync.Mutex
	entries map[string]pendingEntry
	now     func() time.Time
}

func NewMemoryPendingSignInStore(now func() time.Time) *MemoryPendingSignInStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryPendingSignInStore{entries: make(map[string]pendingEntry), now: now}
}

func (s *MemoryPendingSignInStore) Save(_ context.Context, state string, provider domain.Provider, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.entries[state]; ok && s.now().Before(existing.expires) {
		return fmt.Errorf("pending sign-in state %q already exists", state)
	}
	s.entries[state] = pendingEntry{provider: provider, expires: s.now().Add(ttl)}
	return nil
}

func (s *MemoryPendingSignInStore) Consume(_ context.Context, state string) (domain.Provider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[state]
	if !ok {
		return "", application.ErrPendingStateNotFound
	}
	delete(s.entries, state)
	if !s.now().Before(entry.expires) {
		return "", application.ErrPendingStateNotFound
	}
	return entry.provider, nil
}

// Sweep drops expired entries and returns how many were removed.
func (s *MemoryPendingSignInStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for state, entry := range s.entries {
		if !now.Before(entry.expires) {
			delete(s.entries, state)
			removed++
		}
	}
	return removed
}
