// Package memory implements storage.Store on a process-local map.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/xenking/pawstails-storefront/internal/storage"
)

var _ storage.Store = (*Store)(nil)

// Store keeps values in memory. Values are copied on the way in and out.
type Store struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// New returns an empty Store.
func New() *Store {
	return &Store{values: make(map[string][]byte)}
}

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.values[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return slices.Clone(v), nil
}

func (s *Store) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = slices.Clone(value)
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.values, key)
	return nil
}

func (s *Store) Ping(context.Context) error { return nil }
