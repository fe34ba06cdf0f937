package admission

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a mutex-guarded in-process key store. It backs the static
// keys loaded from configuration and serves as the temporary-key store when
// no Firestore project is configured.
type MemoryStore struct {
	mu   sync.RWMutex
	keys map[string]APIKey
}

func NewMemoryStore(seed []APIKey) *MemoryStore {
	keys := make(map[string]APIKey, len(seed))
	for _, k := range seed {
		keys[k.Key] = k
	}
	return &MemoryStore{keys: keys}
}

func (s *MemoryStore) Lookup(_ context.Context, key string) (APIKey, error) {
	s.mu.RLock()
	record, ok := s.keys[key]
	s.mu.RUnlock()
	if !ok {
		return APIKey{}, ErrKeyNotFound
	}
	return record, nil
}

func (s *MemoryStore) Create(_ context.Context, key APIKey) error {
	s.mu.Lock()
	s.keys[key.Key] = key
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Revoke(_ context.Context, key string, now time.Time) (APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.keys[key]
	if !ok {
		return APIKey{}, ErrKeyNotFound
	}
	if record.RevokedAt == nil {
		revokedAt := now
		record.RevokedAt = &revokedAt
		s.keys[key] = record
	}
	return record, nil
}

func (s *MemoryStore) DeleteExpired(_ context.Context, now time.Time, limit int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for key, record := range s.keys {
		if record.IsExpired(now) {
			delete(s.keys, key)
			deleted++
			if limit > 0 && deleted >= limit {
				break
			}
		}
	}
	return deleted, nil
}

func (s *MemoryStore) CountActive(_ context.Context, now time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, record := range s.keys {
		if record.Status(now) == StatusActive {
			count++
		}
	}
	return count, nil
}
