// Package handoff is the ephemeral, keyed store that carries a computed
// result from the scoring pipeline to the results view. It is best-effort by
// contract: a failed Put is logged by the caller and never blocks result
// display, and the results view re-fetches from upstream when a key is
// missing.
package handoff

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"
)

// ErrNotFound means no value is stored under the key (or it expired).
var ErrNotFound = errors.New("handoff: not found")

// Store is a keyed, TTL-bounded value store.
type Store interface {
	Put(ctx context.Context, key string, value any) error
	Get(ctx context.Context, key string, dst any) error
	Delete(ctx context.Context, key string) error
}

// MemoryStore is the in-process Store used when no Redis is configured and in
// tests. Entries expire lazily on read.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
}

type memoryEntry struct {
	data    []byte
	expires time.Time
}

// NewMemoryStore creates a MemoryStore with the given entry TTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
	}
}

func (s *MemoryStore) Put(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memoryEntry{data: data, expires: time.Now().Add(s.ttl)}
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, key string, dst any) error {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		return ErrNotFound
	}
	if time.Now().After(entry.expires) {
		s.mu.Lock()
		delete(s.entries, key)
		s.mu.Unlock()
		return ErrNotFound
	}
	return json.Unmarshal(entry.data, dst)
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}
