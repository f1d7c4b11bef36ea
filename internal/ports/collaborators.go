package ports

import (
	"context"
	"io"
	"reviewq/internal/domain"
	"time"
)

type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Settler moves funds. It is called by the settlement worker, never inline with a transition.
type Settler interface {
	Settle(ctx context.Context, p domain.Payout) error
}

type EventPublisher interface {
	Publish(ctx context.Context, e domain.Event) error
}

// ObjectStorage stores uploaded task images and returns a URL for them.
type ObjectStorage interface {
	Save(ctx context.Context, name string, src io.Reader, size int64, contentType string) (string, error)
}
