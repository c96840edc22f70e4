// Package prefs resolves per-user sync preferences. The only preference
// the sync layer consumes today is prefer-polling, which forces the
// battery-friendly polling source even when the live stream is available.
package prefs

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/go-redis/redis/v8"
)

// Store resolves sync preferences for a user.
type Store interface {
	// PreferPolling reports whether the user opted into polling-only sync.
	// A missing preference resolves to the deployment's default.
	PreferPolling(ctx context.Context, userID string) (bool, error)
}

// RedisStore reads preferences written by the profile service. A user
// with no stored preference gets the configured fallback.
type RedisStore struct {
	client   *redis.Client
	fallback bool
}

// NewRedisStore wraps an existing Redis client.
func NewRedisStore(client *redis.Client, fallback bool) *RedisStore {
	if client == nil {
		panic("prefs: redis client is required")
	}
	return &RedisStore{client: client, fallback: fallback}
}

func prefKey(userID string) string {
	return "prefs:" + userID + ":prefer_polling"
}

func (s *RedisStore) PreferPolling(ctx context.Context, userID string) (bool, error) {
	val, err := s.client.Get(ctx, prefKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return s.fallback, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read prefer-polling preference: %w", err)
	}

	prefer, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("malformed prefer-polling value %q: %w", val, err)
	}
	return prefer, nil
}

// MemoryStore is an in-process Store for tests and redis-less deployments.
type MemoryStore struct {
	mu    sync.RWMutex
	prefs map[string]bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{prefs: make(map[string]bool)}
}

func (s *MemoryStore) SetPreferPolling(userID string, prefer bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs[userID] = prefer
}

func (s *MemoryStore) PreferPolling(_ context.Context, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prefs[userID], nil
}
