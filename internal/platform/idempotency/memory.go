package idempotency

import (
	"context"
	"sync"
	"time"
)

type memoryRecord struct {
	appliedAt time.Time
	expiresAt time.Time
}

// MemoryStore is an in-process Store for tests and single-instance setups.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]memoryRecord
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]memoryRecord)}
}

// MarkApplied implements Store.
func (s *MemoryStore) MarkApplied(_ context.Context, key string, now time.Time, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if record, ok := s.records[key]; ok && record.expiresAt.After(now) {
		return false, nil
	}
	s.records[key] = memoryRecord{
		appliedAt: now,
		expiresAt: now.Add(ttl),
	}
	return true, nil
}

// Forget implements Store.
func (s *MemoryStore) Forget(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}

// CleanupExpired implements Store.
func (s *MemoryStore) CleanupExpired(_ context.Context, now time.Time, limit int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, record := range s.records {
		if limit > 0 && removed >= limit {
			break
		}
		if !record.expiresAt.After(now) {
			delete(s.records, key)
			removed++
		}
	}
	return removed, nil
}
