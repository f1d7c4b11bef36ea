package memory

import (
	"context"
	"reviewq/internal/domain"
	"reviewq/internal/ports"
	"slices"
	"sync"
)

var _ ports.IDQueue = (*Queue)(nil)

// Queue is a slice-backed IDQueue. Removal scans by value.
type Queue struct {
	mu  sync.RWMutex
	ids []uint64
}

func NewQueue() *Queue {
	return &Queue{}
}

func (q *Queue) Push(_ context.Context, id uint64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if slices.Contains(q.ids, id) {
		return domain.ErrDuplicateEntry
	}
	q.ids = append(q.ids, id)
	return nil
}

func (q *Queue) Remove(_ context.Context, id uint64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	i := slices.Index(q.ids, id)
	if i < 0 {
		return domain.ErrNotFound
	}
	q.ids = slices.Delete(q.ids, i, i+1)
	return nil
}

func (q *Queue) Contains(_ context.Context, id uint64) (bool, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return slices.Contains(q.ids, id), nil
}

func (q *Queue) Snapshot(_ context.Context) ([]uint64, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	out := make([]uint64, len(q.ids))
	copy(out, q.ids)
	return out, nil
}

func (q *Queue) Len(_ context.Context) (uint64, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return uint64(len(q.ids)), nil
}
