// Package memory keeps snapshot buckets in process memory. It backs tests and
// ephemeral boards.
package memory

import (
	"bytes"
	"context"
	"sync"

	"boardcore/pkg/domain"
)

var _ domain.SnapshotStore = (*Store)(nil)

// Store is an in-memory domain.SnapshotStore.
type Store struct {
	mu      sync.RWMutex
	buckets map[string][]byte
	saves   int
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{buckets: make(map[string][]byte)}
}

// LoadBuckets returns copies of every stored bucket.
func (s *Store) LoadBuckets(_ context.Context) (map[string][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]byte, len(s.buckets))
	for name, payload := range s.buckets {
		out[name] = bytes.Clone(payload)
	}
	return out, nil
}

// SaveBuckets upserts the given buckets.
func (s *Store) SaveBuckets(_ context.Context, buckets map[string][]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, payload := range buckets {
		s.buckets[name] = bytes.Clone(payload)
	}
	s.saves++
	return nil
}

// Saves reports how many times SaveBuckets succeeded.
func (s *Store) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}

// Close is a no-op.
func (s *Store) Close() error { return nil }
