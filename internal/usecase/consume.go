package usecase

import (
	"context"
	"reviewq/internal/domain"
	"reviewq/internal/ports"
	"reviewq/pkg/backoff"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Consumer drains the payout outbox into the settlement collaborator.
type Consumer struct {
	Q            ports.PayoutQueue
	Settler      ports.Settler
	ConsumerName string
	BaseBackoff  time.Duration
	MaxBackoff   time.Duration
	Block        time.Duration
}

func (c Consumer) Run(ctx context.Context) error {
	block := c.Block
	if block <= 0 {
		block = 5 * time.Second
	}
	failures := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		p, id, err := c.Q.Claim(ctx, c.ConsumerName, block)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			failures++
			delay := backoff.ExponentialJitter(c.BaseBackoff, c.MaxBackoff, failures)
			log.Ctx(ctx).Error().Err(err).Int("failures", failures).Dur("retry_in", delay).Msg("failed to claim payout")
			if err := sleep(ctx, delay); err != nil {
				return err
			}
			continue
		}
		failures = 0
		if p == nil {
			continue
		}
		c.process(ctx, *p, id)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		d = time.Millisecond
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (c Consumer) process(ctx context.Context, p domain.Payout, id string) {
	logger := log.Ctx(ctx).With().Str("payout_id", p.ID).Uint64("review_id", p.ReviewID).Logger()

	p.Status = domain.PayoutRunning
	if err := c.Q.SaveState(ctx, p); err != nil {
		logger.Warn().Err(err).Msg("failed to mark payout running")
	}

	err := c.Settler.Settle(ctx, p)
	if err == nil {
		if err := c.Q.Ack(ctx, id); err != nil {
			logger.Error().Err(err).Msg("failed to ack settled payout")
		}
		p.Status = domain.PayoutSettled
		p.LastError = ""
		if err := c.Q.SaveState(ctx, p); err != nil {
			logger.Error().Err(err).Msg("failed to record settled payout")
		}
		logger.Info().Uint64("amount", p.Amount).Str("account", p.Account).Msg("payout settled")
		return
	}

	if p.Attempts+1 >= p.MaxAttempts {
		p.Attempts++
		logger.Error().Err(err).Int("attempts", p.Attempts).Msg("payout moved to dead letter queue")
		c.deadLetter(ctx, logger, id, p, err.Error())
		return
	}

	delay := backoff.ExponentialJitter(c.BaseBackoff, c.MaxBackoff, p.Attempts+1)
	p.NextRunAt = time.Now().Add(delay)
	if ferr := c.Q.Fail(ctx, id, p, err); ferr != nil {
		logger.Warn().Err(ferr).Msg("failed to record payout failure")
	}
	p.Attempts++
	p.LastError = err.Error()
	logger.Warn().Err(err).Int("attempts", p.Attempts).Dur("delay", delay).Msg("payout settlement failed, retrying")

	// the retry is re-offered from the delayed set; the delivery is only
	// acked once that retry is recorded
	if _, derr := c.Q.EnqueueDelayed(ctx, p, p.NextRunAt); derr != nil {
		logger.Error().Err(derr).Msg("failed to schedule payout retry")
		c.deadLetter(ctx, logger, id, p, "schedule retry: "+derr.Error())
		return
	}
	if err := c.Q.Ack(ctx, id); err != nil {
		logger.Error().Err(err).Msg("failed to ack retried payout")
	}
}

// deadLetter parks p. When even that fails the delivery stays unacked.
func (c Consumer) deadLetter(ctx context.Context, logger zerolog.Logger, id string, p domain.Payout, reason string) {
	if err := c.Q.ToDLQ(ctx, id, p, reason); err != nil {
		logger.Error().Err(err).Str("reason", reason).Msg("failed to dead-letter payout, delivery left pending")
	}
}
