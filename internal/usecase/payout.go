package usecase

import (
	"context"
	"fmt"
	"reviewq/internal/domain"
	"reviewq/internal/ports"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Recipient selects who an accepted review pays.
type Recipient string

const (
	// RecipientAccount pays the configured payout account on every acceptance.
	RecipientAccount Recipient = "account"
	// RecipientWorker pays the principal that did the work.
	RecipientWorker Recipient = "worker"
)

func ParseRecipient(s string) (Recipient, error) {
	switch r := Recipient(s); r {
	case RecipientAccount, RecipientWorker:
		return r, nil
	case "":
		return RecipientAccount, nil
	default:
		return "", fmt.Errorf("%w: unknown payout recipient %q", domain.ErrInvalidArgument, s)
	}
}

// PayoutTrigger records a fixed-amount payout in the outbox. It never waits
// for settlement; the settlement worker drains the outbox.
type PayoutTrigger struct {
	Q           ports.PayoutQueue
	Amount      uint64
	Account     string
	Recipient   Recipient
	MaxAttempts int
	Clock       ports.Clock
}

var _ Payouts = PayoutTrigger{}

func (p PayoutTrigger) Trigger(ctx context.Context, task domain.Task, review domain.ReviewTask) (string, error) {
	account := p.Account
	if p.Recipient == RecipientWorker {
		if task.AssignedTo == nil {
			return "", fmt.Errorf("task %d has no worker to pay", task.ID)
		}
		account = string(*task.AssignedTo)
	}
	if account == "" {
		return "", fmt.Errorf("%w: payout account is not configured", domain.ErrInvalidArgument)
	}
	return p.Request(ctx, domain.Payout{
		ReviewID: review.ID,
		TaskID:   task.ID,
		Amount:   p.Amount,
		Account:  account,
	})
}

// Request enqueues payout, filling in defaults.
func (p PayoutTrigger) Request(ctx context.Context, payout domain.Payout) (string, error) {
	if payout.ID == "" {
		payout.ID = uuid.NewString()
	}
	if payout.MaxAttempts == 0 {
		payout.MaxAttempts = p.MaxAttempts
	}
	if payout.MaxAttempts == 0 {
		payout.MaxAttempts = 5
	}
	now := time.Now()
	if p.Clock != nil {
		now = p.Clock.Now()
	}
	payout.CreatedAt = now

	id, err := p.Q.Enqueue(ctx, payout)
	if err != nil {
		return "", fmt.Errorf("enqueue payout for review %d: %w", payout.ReviewID, err)
	}
	log.Ctx(ctx).Info().
		Str("payout_id", id).
		Uint64("review_id", payout.ReviewID).
		Uint64("amount", payout.Amount).
		Str("account", payout.Account).
		Msg("payout requested")
	return id, nil
}
