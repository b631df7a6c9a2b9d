package deadletter

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxSize bounds a MemoryStore created with a non-positive size.
const DefaultMaxSize = 10000

// MemoryStore keeps entries in memory.
// Suitable for testing and single-instance deployments.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []*Entry
	maxSize int
	closed  bool
}

// NewMemoryStore creates a store holding at most maxSize entries.
func NewMemoryStore(maxSize int) *MemoryStore {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &MemoryStore{maxSize: maxSize}
}

// Record implements Store. It returns ErrStoreFull at capacity.
func (s *MemoryStore) Record(_ context.Context, entry *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	if len(s.entries) >= s.maxSize {
		return ErrStoreFull
	}

	fillDefaults(entry)
	stored := *entry
	s.entries = append(s.entries, &stored)
	return nil
}

// List implements Store.
func (s *MemoryStore) List(_ context.Context, eventType string, limit int) ([]*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	var out []*Entry
	for _, e := range s.entries {
		if limit > 0 && len(out) >= limit {
			break
		}
		if eventType != "" && e.EventType != eventType {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	return out, nil
}

// Count implements Store.
func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, ErrStoreClosed
	}
	return len(s.entries), nil
}

// CountByType implements Store.
func (s *MemoryStore) CountByType(_ context.Context) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	counts := make(map[string]int)
	for _, e := range s.entries {
		counts[e.EventType]++
	}
	return counts, nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	for i, e := range s.entries {
		if e.ID == id {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.entries = nil
	return nil
}

func fillDefaults(entry *Entry) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.FailedAt.IsZero() {
		entry.FailedAt = time.Now()
	}
}
