package journal

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store used in tests and when no store path is
// configured. Dedup semantics match SQLiteStore.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[memoryKey]*Entry
}

type memoryKey struct {
	sourceName string
	externalID string
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[memoryKey]*Entry),
	}
}

// Put stores an entry, deduplicating on (source name, external id)
func (s *MemoryStore) Put(_ context.Context, entry *Entry) (bool, error) {
	if entry == nil {
		return false, fmt.Errorf("entry cannot be nil")
	}
	if entry.SourceName == "" || entry.ExternalID == "" {
		return false, fmt.Errorf("entry must have source name and external id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := memoryKey{sourceName: entry.SourceName, externalID: entry.ExternalID}
	if _, exists := s.entries[key]; exists {
		return false, nil
	}

	copied := *entry
	s.entries[key] = &copied
	return true, nil
}

// Get returns the entry for the given (source name, external id)
func (s *MemoryStore) Get(_ context.Context, sourceName, externalID string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[memoryKey{sourceName: sourceName, externalID: externalID}]
	if !ok {
		return nil, ErrNotFound
	}

	copied := *entry
	return &copied, nil
}

// Count returns the total number of stored entries
func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

// Prune removes entries older than the cutoff
func (s *MemoryStore) Prune(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, entry := range s.entries {
		if entry.Timestamp.Before(cutoff) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed, nil
}

// Close is a no-op for the in-memory store
func (*MemoryStore) Close() error {
	return nil
}
