package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

const defaultCapacity = 1024

type clock interface {
	Now() time.Time
}

type timeNowClock struct{}

func (timeNowClock) Now() time.Time {
	return time.Now().UTC()
}

type memoryEntry struct {
	payload    json.RawMessage
	insertedAt time.Time
}

// MemoryStore is a mutex-guarded TTL cache with a capacity ceiling. Expired
// entries are evicted lazily on lookup and by the periodic Sweep; when the
// cache is full the stalest insertion is evicted to make room.
type MemoryStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	capacity int
	entries  map[string]memoryEntry
	clock    clock
}

// MemoryConfig captures optional tunables for MemoryStore behaviour.
type MemoryConfig struct {
	Capacity int
	Clock    clock
}

func NewMemoryStore(ttl time.Duration, cfg MemoryConfig) *MemoryStore {
	capacity := cfg.Capacity
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	clk := cfg.Clock
	if clk == nil {
		clk = timeNowClock{}
	}
	return &MemoryStore{
		ttl:      ttl,
		capacity: capacity,
		entries:  make(map[string]memoryEntry),
		clock:    clk,
	}
}

func (s *MemoryStore) Get(_ context.Context, fingerprint string) (json.RawMessage, bool) {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[fingerprint]
	if !ok {
		return nil, false
	}
	if now.Sub(entry.insertedAt) > s.ttl {
		delete(s.entries, fingerprint)
		return nil, false
	}
	return entry.payload, true
}

func (s *MemoryStore) Set(_ context.Context, fingerprint string, payload json.RawMessage) {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[fingerprint]; !exists && len(s.entries) >= s.capacity {
		s.evictStalestLocked(now)
	}
	s.entries[fingerprint] = memoryEntry{payload: payload, insertedAt: now}
}

func (s *MemoryStore) Delete(_ context.Context, fingerprint string) {
	s.mu.Lock()
	delete(s.entries, fingerprint)
	s.mu.Unlock()
}

// Sweep evicts every expired entry and returns how many were removed.
func (s *MemoryStore) Sweep() int {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for fingerprint, entry := range s.entries {
		if now.Sub(entry.insertedAt) > s.ttl {
			delete(s.entries, fingerprint)
			removed++
		}
	}
	return removed
}

// Len reports the number of retained entries, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *MemoryStore) evictStalestLocked(now time.Time) {
	// Prefer dropping an expired entry; fall back to the oldest insertion.
	var (
		victim   string
		victimAt time.Time
	)
	for fingerprint, entry := range s.entries {
		if now.Sub(entry.insertedAt) > s.ttl {
			delete(s.entries, fingerprint)
			return
		}
		if victim == "" || entry.insertedAt.Before(victimAt) {
			victim = fingerprint
			victimAt = entry.insertedAt
		}
	}
	if victim != "" {
		delete(s.entries, victim)
	}
}
