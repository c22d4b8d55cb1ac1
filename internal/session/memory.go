package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps sessions in process memory. Nothing survives a restart.
// Expiry is lazy: an expired entry is dropped the next time it is read.
type MemoryStore[T any] struct {
	mu      sync.RWMutex
	entries map[string]Entry[T]
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryStore[T any](ttl time.Duration) *MemoryStore[T] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore[T]{
		entries: make(map[string]Entry[T]),
		ttl:     ttl,
		now:     time.Now,
	}
}

// WithClock replaces the time source. Intended for tests.
func (s *MemoryStore[T]) WithClock(now func() time.Time) *MemoryStore[T] {
	s.now = now
	return s
}

func (s *MemoryStore[T]) Get(_ context.Context, id string) (Entry[T], error) {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()

	if !ok {
		return Entry[T]{}, nil
	}
	if s.expired(e) {
		s.mu.Lock()
		// Re-check under the write lock; a concurrent Save may have refreshed it.
		if cur, ok := s.entries[id]; ok && s.expired(cur) {
			delete(s.entries, id)
		}
		s.mu.Unlock()
		return Entry[T]{}, nil
	}
	return e, nil
}

func (s *MemoryStore[T]) Save(_ context.Context, id string, e Entry[T]) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stored int64
	cur, ok := s.entries[id]
	if ok && !s.expired(cur) {
		stored = cur.Version
	}
	if e.Version != stored+1 {
		return ErrVersionConflict
	}

	now := s.now()
	if ok && stored > 0 {
		e.CreatedAt = cur.CreatedAt
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
	s.entries[id] = e
	return nil
}

func (s *MemoryStore[T]) Clear(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()
	return nil
}

// Len returns the number of entries held, expired ones included.
func (s *MemoryStore[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *MemoryStore[T]) expired(e Entry[T]) bool {
	return s.now().Sub(e.UpdatedAt) >= s.ttl
}
