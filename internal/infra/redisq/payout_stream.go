package redisq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reviewq/internal/domain"
	"reviewq/internal/ports"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var _ ports.PayoutQueue = (*Client)(nil)

func (c *Client) Enqueue(ctx context.Context, p domain.Payout) (string, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.Status = domain.PayoutQueued
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	if err := c.SaveState(ctx, p); err != nil {
		return "", err
	}
	b, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	if err := c.Rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: c.Cfg.StreamKey,
		Values: map[string]interface{}{"payout": b},
	}).Err(); err != nil {
		return "", err
	}
	return p.ID, nil
}

func (c *Client) EnqueueDelayed(ctx context.Context, p domain.Payout, runAt time.Time) (string, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.Status = domain.PayoutDelayed
	p.NextRunAt = runAt
	if err := c.SaveState(ctx, p); err != nil {
		return "", err
	}
	score := float64(runAt.UnixMilli())
	if err := c.Rdb.ZAdd(ctx, c.Cfg.ScheduledZSet, redis.Z{Score: score,
		Member: p.ID}).Err(); err != nil {
		return "", err
	}
	return p.ID, nil
}

func (c *Client) Claim(ctx context.Context, consumer string, block time.Duration) (*domain.Payout, string, error) {
	res, err := c.Rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.Cfg.Group,
		Consumer: consumer,
		Streams:  []string{c.Cfg.StreamKey, ">"},
		Count:    1,
		Block:    block,
	}).Result()

	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, "", nil
		}
		return nil, "", err
	}

	if len(res) == 0 || len(res[0].Messages) == 0 {
		return nil, "", nil
	}

	msg := res[0].Messages[0]
	var p domain.Payout
	switch v := msg.Values["payout"].(type) {
	case string:
		err = json.Unmarshal([]byte(v), &p)
	case []byte:
		err = json.Unmarshal(v, &p)
	default:
		return nil, "", fmt.Errorf("unexpected payout type: %T", v)
	}
	if err != nil {
		return nil, "", fmt.Errorf("decode payout message %s: %w", msg.ID, err)
	}

	// the state hash carries the attempt count of retried payouts
	if cur, err := c.Get(ctx, p.ID); err == nil && cur != nil {
		p = *cur
	}
	return &p, msg.ID, nil
}

func (c *Client) Ack(ctx context.Context, streamID string) error {
	return c.Rdb.XAck(ctx, c.Cfg.StreamKey, c.Cfg.Group, streamID).Err()
}

func (c *Client) Fail(ctx context.Context, streamID string, p domain.Payout, err error) error {
	p.Attempts++
	if err != nil {
		p.LastError = err.Error()
	}
	return c.SaveState(ctx, p)
}

func (c *Client) ToDLQ(ctx context.Context, streamID string, p domain.Payout, reason string) error {
	p.Status = domain.PayoutFailed
	p.LastError = reason
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	if err := c.Rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: c.Cfg.DLQStreamKey,
		Values: map[string]interface{}{"payout": b, "reason": reason},
	}).Err(); err != nil {
		return err
	}

	_ = c.Rdb.XAck(ctx, c.Cfg.StreamKey, c.Cfg.Group, streamID).Err()
	return c.SaveState(ctx, p)
}

func (c *Client) payoutKey(id string) string { return c.key("payout", id) }

func (c *Client) SaveState(ctx context.Context, p domain.Payout) error {
	m := map[string]any{
		"status":       string(p.Status),
		"attempts":     p.Attempts,
		"max_attempts": p.MaxAttempts,
		"review_id":    strconv.FormatUint(p.ReviewID, 10),
		"task_id":      strconv.FormatUint(p.TaskID, 10),
		"amount":       strconv.FormatUint(p.Amount, 10),
		"account":      p.Account,
		"last_error":   p.LastError,
		"created_at":   p.CreatedAt.UnixMilli(),
		"next_run_at":  p.NextRunAt.UnixMilli(),
	}
	return c.Rdb.HSet(ctx, c.payoutKey(p.ID), m).Err()
}

func (c *Client) Get(ctx context.Context, id string) (*domain.Payout, error) {
	h, err := c.Rdb.HGetAll(ctx, c.payoutKey(id)).Result()
	if err != nil || len(h) == 0 {
		return nil, err
	}

	p := &domain.Payout{
		ID:        id,
		Account:   h["account"],
		Status:    domain.PayoutStatus(h["status"]),
		LastError: h["last_error"],
	}
	p.Attempts, _ = strconv.Atoi(h["attempts"])
	p.MaxAttempts, _ = strconv.Atoi(h["max_attempts"])
	p.ReviewID, _ = strconv.ParseUint(h["review_id"], 10, 64)
	p.TaskID, _ = strconv.ParseUint(h["task_id"], 10, 64)
	p.Amount, _ = strconv.ParseUint(h["amount"], 10, 64)
	if ms, err := strconv.ParseInt(h["created_at"], 10, 64); err == nil {
		p.CreatedAt = time.UnixMilli(ms)
	}
	if ms, err := strconv.ParseInt(h["next_run_at"], 10, 64); err == nil {
		p.NextRunAt = time.UnixMilli(ms)
	}
	return p, nil
}
