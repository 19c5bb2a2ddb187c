package tokenstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

type memoryItem struct {
	value    []byte
	deadline time.Time // zero means no expiry
}

func (i memoryItem) expired(now time.Time) bool {
	return !i.deadline.IsZero() && !now.Before(i.deadline)
}

// MemoryStore keeps entries in process. It backs the service when no Redis
// URL is configured and is not shared between instances.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]memoryItem
	now   func() time.Time
	done  chan struct{}
	once  sync.Once
}

func NewMemoryStore(cleanupInterval time.Duration) *MemoryStore {
	s := &MemoryStore{
		items: make(map[string]memoryItem),
		now:   time.Now,
		done:  make(chan struct{}),
	}
	if cleanupInterval > 0 {
		go s.janitor(cleanupInterval)
	}
	return s
}

func (s *MemoryStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	item := memoryItem{value: data}
	if ttl > 0 {
		item.deadline = s.now().Add(ttl)
	}

	s.mu.Lock()
	s.items[key] = item
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, key string, dest any) (bool, error) {
	s.mu.RLock()
	item, ok := s.items[key]
	s.mu.RUnlock()

	if !ok || item.expired(s.now()) {
		return false, nil
	}
	if err := json.Unmarshal(item.value, dest); err != nil {
		return false, nil
	}
	return true, nil
}

func (s *MemoryStore) Expire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[key]
	if !ok || item.expired(s.now()) {
		delete(s.items, key)
		return false, nil
	}
	if ttl <= 0 {
		delete(s.items, key)
		return true, nil
	}
	item.deadline = s.now().Add(ttl)
	s.items[key] = item
	return true, nil
}

func (s *MemoryStore) Del(_ context.Context, keys ...string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	now := s.now()
	for _, key := range keys {
		if item, ok := s.items[key]; ok {
			if !item.expired(now) {
				n++
			}
			delete(s.items, key)
		}
	}
	return n, nil
}

// TTL returns the remaining lifetime of key, zero when absent or without expiry.
func (s *MemoryStore) TTL(key string) time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[key]
	if !ok || item.deadline.IsZero() {
		return 0
	}
	return item.deadline.Sub(s.now())
}

func (s *MemoryStore) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

func (s *MemoryStore) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.deleteExpired()
		case <-s.done:
			return
		}
	}
}

func (s *MemoryStore) deleteExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, item := range s.items {
		if item.expired(now) {
			delete(s.items, key)
		}
	}
}

// Ping always succeeds; it lets the memory store stand in for health checks.
func (s *MemoryStore) Ping(context.Context) error {
	return nil
}
