package repositories

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/BradenHooton/authguard/internal/models"
)

// MemoryLockoutStore keeps lockout records in process memory.
// Records are lost on restart and are not shared between instances.
type MemoryLockoutStore struct {
	mu      sync.Mutex
	records map[string]*models.LockoutRecord
}

// NewMemoryLockoutStore creates an empty in-memory store
func NewMemoryLockoutStore() *MemoryLockoutStore {
	return &MemoryLockoutStore{
		records: make(map[string]*models.LockoutRecord),
	}
}

// Get returns a copy of the record for key, or nil
func (s *MemoryLockoutStore) Get(ctx context.Context, key string) (*models.LockoutRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.records[key].Clone(), nil
}

// Update runs fn under the store lock
func (s *MemoryLockoutStore) Update(ctx context.Context, key string, fn models.LockoutUpdateFunc) (*models.LockoutRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := fn(s.records[key].Clone())
	if err != nil {
		return nil, err
	}

	if next == nil {
		delete(s.records, key)
		return nil, nil
	}

	next.Key = key
	s.records[key] = next.Clone()
	return next, nil
}

// Delete removes the record for key
func (s *MemoryLockoutStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, key)
	return nil
}

// DeletePrefix removes every record whose key starts with prefix
func (s *MemoryLockoutStore) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key := range s.records {
		if strings.HasPrefix(key, prefix) {
			delete(s.records, key)
			removed++
		}
	}
	return removed, nil
}

// DeleteExpired removes records whose retention ended before now
func (s *MemoryLockoutStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, record := range s.records {
		if record.IsExpiredAt(now) {
			delete(s.records, key)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored records
func (s *MemoryLockoutStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.records)
}

// HealthCheck always succeeds
func (s *MemoryLockoutStore) HealthCheck(ctx context.Context) error {
	return nil
}
