package ports

import (
	"context"
	"reviewq/internal/domain"
	"time"
)

// IDQueue is an ordered, duplicate-free sequence of pending identifiers.
type IDQueue interface {
	// Push appends id at the tail; domain.ErrDuplicateEntry if present.
	Push(ctx context.Context, id uint64) error
	// Remove deletes id wherever it sits; domain.ErrNotFound if absent.
	Remove(ctx context.Context, id uint64) error
	Contains(ctx context.Context, id uint64) (bool, error)
	// Snapshot returns the ids front to back as an independent copy.
	Snapshot(ctx context.Context) ([]uint64, error)
	Len(ctx context.Context) (uint64, error)
}

// PayoutQueue is the settlement outbox.
type PayoutQueue interface {
	Enqueue(ctx context.Context, p domain.Payout) (string, error)
	EnqueueDelayed(ctx context.Context, p domain.Payout, runAt time.Time) (string, error)
	Claim(ctx context.Context, consumer string, block time.Duration) (*domain.Payout, string /*messageID*/, error)
	Ack(ctx context.Context, messageID string) error
	Fail(ctx context.Context, messageID string, p domain.Payout, err error) error
	ToDLQ(ctx context.Context, messageID string, p domain.Payout, reason string) error
	SaveState(ctx context.Context, p domain.Payout) error
	Get(ctx context.Context, id string) (*domain.Payout, error)
}

type Scheduler interface {
	// moves due payouts from the delayed set back into the outbox
	Run(ctx context.Context) error
}
