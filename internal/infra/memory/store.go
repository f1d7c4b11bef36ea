package memory

import (
	"context"
	"reviewq/internal/domain"
	"reviewq/internal/ports"
	"slices"
	"sync"
)

var (
	_ ports.TaskStore   = (*Store[domain.Task])(nil)
	_ ports.ReviewStore = (*Store[domain.ReviewTask])(nil)
)

// Store keeps records in a map. Identifiers are never reused, even after Remove.
type Store[T any] struct {
	mu      sync.RWMutex
	next    uint64
	records map[uint64]T
}

func NewStore[T any]() *Store[T] {
	return &Store[T]{records: make(map[uint64]T)}
}

func (s *Store[T]) NextID(_ context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.next
	s.next++
	return id, nil
}

func (s *Store[T]) Insert(_ context.Context, id uint64, rec T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[id] = rec
	return nil
}

func (s *Store[T]) Get(_ context.Context, id uint64) (*T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *Store[T]) Update(_ context.Context, id uint64, rec T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return domain.ErrNotFound
	}
	s.records[id] = rec
	return nil
}

func (s *Store[T]) Remove(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.records, id)
	return nil
}

func (s *Store[T]) List(_ context.Context) ([]T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]uint64, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.records[id])
	}
	return out, nil
}
