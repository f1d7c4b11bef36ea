package ports

import (
	"context"
	"reviewq/internal/domain"
)

// Store owns records keyed by a monotonically increasing identifier.
type Store[T any] interface {
	// NextID reserves and returns an identifier that was never handed out before.
	NextID(ctx context.Context) (uint64, error)
	Insert(ctx context.Context, id uint64, rec T) error
	// Get returns nil, nil when id is absent.
	Get(ctx context.Context, id uint64) (*T, error)
	// Update fails with domain.ErrNotFound when id is absent.
	Update(ctx context.Context, id uint64, rec T) error
	Remove(ctx context.Context, id uint64) error
	// List returns every record ordered by id.
	List(ctx context.Context) ([]T, error)
}

type (
	TaskStore   = Store[domain.Task]
	ReviewStore = Store[domain.ReviewTask]
)
