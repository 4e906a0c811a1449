// Package memory provides an in-memory key-value store used for tests and
// ephemeral environments.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"agromix/pkg/domain"
)

var _ domain.KeyValueStore = (*Store)(nil)

// Store keeps values in a map guarded by a RWMutex.
type Store struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{data: make(map[string]string)}
}

// Get implements domain.KeyValueStore.
func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok, nil
}

// Set implements domain.KeyValueStore.
func (s *Store) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	s.data[key] = value
	s.mu.Unlock()
	return nil
}

// Remove implements domain.KeyValueStore.
func (s *Store) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()
	return nil
}

// Keys returns the stored keys with prefix in ascending order.
func (s *Store) Keys(prefix string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// ExportState returns a copy of every stored key and value.
func (s *Store) ExportState() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.data))
	for k, v := range s.data {
		out[k] = v
	}
	return out
}

// ImportState replaces the store contents with a copy of state.
func (s *Store) ImportState(state map[string]string) {
	next := make(map[string]string, len(state))
	for k, v := range state {
		next[k] = v
	}
	s.mu.Lock()
	s.data = next
	s.mu.Unlock()
}
