package redisq

import (
	"context"
	"fmt"
	"reviewq/internal/domain"
	"reviewq/internal/ports"
	"strconv"

	"github.com/redis/go-redis/v9"
)

var _ ports.IDQueue = (*Queue)(nil)

// Queue keeps order in a list and membership in a set next to it.
type Queue struct {
	c       *Client
	list    string
	members string
}

func NewQueue(c *Client, name string) *Queue {
	return &Queue{
		c:       c,
		list:    c.key("queue", name),
		members: c.key("queue", name, "members"),
	}
}

func (q *Queue) Push(ctx context.Context, id uint64) error {
	ok, err := q.Contains(ctx, id)
	if err != nil {
		return err
	}
	if ok {
		return domain.ErrDuplicateEntry
	}
	_, err = q.c.Rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.SAdd(ctx, q.members, id)
		p.RPush(ctx, q.list, id)
		return nil
	})
	return err
}

func (q *Queue) Remove(ctx context.Context, id uint64) error {
	var removed *redis.IntCmd
	_, err := q.c.Rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.SRem(ctx, q.members, id)
		removed = p.LRem(ctx, q.list, 1, id)
		return nil
	})
	if err != nil {
		return err
	}
	if removed.Val() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (q *Queue) Contains(ctx context.Context, id uint64) (bool, error) {
	return q.c.Rdb.SIsMember(ctx, q.members, id).Result()
}

func (q *Queue) Snapshot(ctx context.Context) ([]uint64, error) {
	vals, err := q.c.Rdb.LRange(ctx, q.list, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]uint64, 0, len(vals))
	for _, v := range vals {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad queue entry %q: %w", v, err)
		}
		out = append(out, id)
	}
	return out, nil
}

func (q *Queue) Len(ctx context.Context) (uint64, error) {
	n, err := q.c.Rdb.LLen(ctx, q.list).Result()
	if err != nil {
		return 0, err
	}
	return uint64(n), nil
}
