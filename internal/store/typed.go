package store

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// TypedStore is a generic, concurrency-safe, in-memory key-value store.
// Each TypedStore has its own RWMutex, giving per-cache locking granularity.
// It tracks when data was last modified for staleness detection.
type TypedStore[T any] struct {
	mu          sync.RWMutex
	items       map[string]T
	lastUpdated atomic.Int64 // UnixMilli timestamp of last mutation
}

// NewTypedStore creates a new, empty TypedStore.
func NewTypedStore[T any]() *TypedStore[T] {
	s := &TypedStore[T]{
		items: make(map[string]T),
	}
	s.touch()
	return s
}

func (s *TypedStore[T]) touch() {
	s.lastUpdated.Store(time.Now().UnixMilli())
}

// Set inserts or updates a value for the given key.
func (s *TypedStore[T]) Set(key string, value T) {
	s.mu.Lock()
	s.items[key] = value
	s.mu.Unlock()
	s.touch()
}

// Update applies fn to the current value of key under the write lock.
// fn receives the current value and whether it exists, and returns the new
// value plus whether to store it. Update reports whether a value was stored.
func (s *TypedStore[T]) Update(key string, fn func(cur T, ok bool) (T, bool)) bool {
	s.mu.Lock()
	cur, ok := s.items[key]
	next, store := fn(cur, ok)
	if store {
		s.items[key] = next
	}
	s.mu.Unlock()
	if store {
		s.touch()
	}
	return store
}

// Delete removes a key from the store. No-op if the key doesn't exist.
func (s *TypedStore[T]) Delete(key string) {
	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()
	s.touch()
}

// Retain removes every key for which keep returns false and returns the
// number of keys removed.
func (s *TypedStore[T]) Retain(keep func(key string) bool) int {
	s.mu.Lock()
	removed := 0
	for k := range s.items {
		if !keep(k) {
			delete(s.items, k)
			removed++
		}
	}
	s.mu.Unlock()
	if removed > 0 {
		s.touch()
	}
	return removed
}

// LastUpdated returns the UnixMilli timestamp of the last modification.
func (s *TypedStore[T]) LastUpdated() int64 {
	return s.lastUpdated.Load()
}

// Get retrieves a value by key. Returns the value and true if found,
// or the zero value and false if not.
func (s *TypedStore[T]) Get(key string) (T, bool) {
	s.mu.RLock()
	v, ok := s.items[key]
	s.mu.RUnlock()
	return v, ok
}

// Len returns the number of items in the store.
func (s *TypedStore[T]) Len() int {
	s.mu.RLock()
	n := len(s.items)
	s.mu.RUnlock()
	return n
}

// Keys returns all keys in sorted order.
func (s *TypedStore[T]) Keys() []string {
	s.mu.RLock()
	keys := make([]string, 0, len(s.items))
	for k := range s.items {
		keys = append(keys, k)
	}
	s.mu.RUnlock()
	slices.Sort(keys)
	return keys
}

// Snapshot returns a shallow copy of all items. Mutations to the returned
// map do not affect the store.
func (s *TypedStore[T]) Snapshot() map[string]T {
	s.mu.RLock()
	cp := make(map[string]T, len(s.items))
	for k, v := range s.items {
		cp[k] = v
	}
	s.mu.RUnlock()
	return cp
}

// Clear removes all items from the store.
func (s *TypedStore[T]) Clear() {
	s.mu.Lock()
	s.items = make(map[string]T)
	s.mu.Unlock()
	s.touch()
}
