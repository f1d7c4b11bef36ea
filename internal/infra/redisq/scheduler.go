package redisq

import (
	"context"
	"encoding/json"
	"reviewq/internal/domain"
	"reviewq/internal/ports"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

var _ ports.Scheduler = (*Scheduler)(nil)

// Scheduler moves payouts whose retry time has come back into the stream.
type Scheduler struct {
	C        *Client
	Interval time.Duration
}

func NewScheduler(c *Client, interval time.Duration) *Scheduler {
	return &Scheduler{C: c, Interval: interval}
}

func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	for {
		if _, err := s.MoveDue(ctx); err != nil {
			log.Ctx(ctx).Error().Err(err).Msg("failed to move due payouts")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// MoveDue re-offers up to 128 due payouts and reports how many were moved.
// Each id is claimed with ZREM first, so concurrent schedulers never offer
// the same payout twice.
func (s *Scheduler) MoveDue(ctx context.Context) (int, error) {
	ids, err := s.C.Rdb.ZRangeByScore(ctx, s.C.Cfg.ScheduledZSet, &redis.ZRangeBy{
		Min:    "-inf",
		Max:    fmtFloat(nowMs()),
		Offset: 0,
		Count:  128,
	}).Result()
	if err != nil {
		return 0, err
	}

	moved := 0
	for _, id := range ids {
		claimed, err := s.C.Rdb.ZRem(ctx, s.C.Cfg.ScheduledZSet, id).Result()
		if err != nil {
			return moved, err
		}
		if claimed == 0 {
			continue
		}
		p, err := s.C.Get(ctx, id)
		if err != nil {
			s.restore(ctx, id)
			return moved, err
		}
		if p == nil {
			continue
		}
		p.Status = domain.PayoutQueued
		if err := s.C.SaveState(ctx, *p); err != nil {
			s.restore(ctx, id)
			return moved, err
		}
		b, err := json.Marshal(p)
		if err != nil {
			return moved, err
		}
		if err := s.C.Rdb.XAdd(ctx, &redis.XAddArgs{
			Stream: s.C.Cfg.StreamKey,
			Values: map[string]interface{}{"payout": b}}).Err(); err != nil {
			s.restore(ctx, id)
			return moved, err
		}
		moved++
	}
	return moved, nil
}

// restore puts a claimed id back so the next tick retries it.
func (s *Scheduler) restore(ctx context.Context, id string) {
	if err := s.C.Rdb.ZAdd(ctx, s.C.Cfg.ScheduledZSet, redis.Z{Score: nowMs(), Member: id}).Err(); err != nil {
		log.Ctx(ctx).Error().Err(err).Str("payout_id", id).Msg("failed to restore delayed payout")
	}
}

func fmtFloat(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
