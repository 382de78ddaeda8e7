package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/viant/fluxgrid/service/dao"
)

// MemoryStore is a generic in-memory implementation of dao.Service.
// It keeps entities of type *T mapped by a comparable key K obtained from
// the keySelector. Records are copied on the way in and on the way out, so
// callers never share memory with the store.
type MemoryStore[K comparable, T any] struct {
	mu          sync.RWMutex
	records     map[K]*T
	keySelector func(*T) K
	clone       func(*T) *T
}

// NewMemoryStore creates a new MemoryStore.
func NewMemoryStore[K comparable, T any](keySelector func(*T) K, clone func(*T) *T) *MemoryStore[K, T] {
	return &MemoryStore[K, T]{
		records:     make(map[K]*T),
		keySelector: keySelector,
		clone:       clone,
	}
}

// Save stores or overwrites a record.
func (s *MemoryStore[K, T]) Save(_ context.Context, v *T) error {
	if v == nil {
		return dao.ErrNilEntity
	}
	key := s.keySelector(v)
	var zero K
	if key == zero {
		return dao.ErrInvalidID
	}
	v = s.clone(v)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = v
	return nil
}

// Load returns a copy of the record.
func (s *MemoryStore[K, T]) Load(_ context.Context, key K) (*T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.records[key]
	if !ok {
		return nil, fmt.Errorf("%v: %w", key, dao.ErrNotFound)
	}
	return s.clone(v), nil
}

// Delete removes a record.
func (s *MemoryStore[K, T]) Delete(_ context.Context, key K) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[key]; !ok {
		return fmt.Errorf("%v: %w", key, dao.ErrNotFound)
	}
	delete(s.records, key)
	return nil
}

// List returns copies of all stored records ordered by key. Parameter
// filtering is left to the embedding DAO.
func (s *MemoryStore[K, T]) List(_ context.Context, _ ...*dao.Parameter) ([]*T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*T, 0, len(s.records))
	for _, v := range s.records {
		out = append(out, s.clone(v))
	}
	sort.Slice(out, func(i, j int) bool {
		return fmt.Sprint(s.keySelector(out[i])) < fmt.Sprint(s.keySelector(out[j]))
	})
	return out, nil
}

// View runs fn on the stored record under the read lock. fn must not retain
// or modify the record.
func (s *MemoryStore[K, T]) View(key K, fn func(v *T) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.records[key]
	if !ok {
		return fmt.Errorf("%v: %w", key, dao.ErrNotFound)
	}
	return fn(v)
}

// Update runs fn on the stored record under the write lock.
func (s *MemoryStore[K, T]) Update(key K, fn func(v *T) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.records[key]
	if !ok {
		return fmt.Errorf("%v: %w", key, dao.ErrNotFound)
	}
	return fn(v)
}

// Mutate runs fn on every stored record under a single write lock.
func (s *MemoryStore[K, T]) Mutate(fn func(v *T)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.records {
		fn(v)
	}
}
