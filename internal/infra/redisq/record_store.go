package redisq

import (
	"context"
	"fmt"
	"reviewq/internal/domain"
	"reviewq/internal/ports"
	"strconv"

	"github.com/redis/go-redis/v9"
)

var (
	_ ports.TaskStore   = (*RecordStore[domain.Task])(nil)
	_ ports.ReviewStore = (*RecordStore[domain.ReviewTask])(nil)
)

// RecordStore keeps one hash per record under <prefix>:<kind>:<id>, a sorted
// set of live ids and an INCR counter for id allocation.
type RecordStore[T any] struct {
	c      *Client
	kind   string
	encode func(T) map[string]any
	decode func(id uint64, h map[string]string) (T, error)
}

func NewTaskStore(c *Client) *RecordStore[domain.Task] {
	return &RecordStore[domain.Task]{c: c, kind: "task", encode: encodeTask, decode: decodeTask}
}

func NewReviewStore(c *Client) *RecordStore[domain.ReviewTask] {
	return &RecordStore[domain.ReviewTask]{c: c, kind: "review", encode: encodeReview, decode: decodeReview}
}

func (s *RecordStore[T]) recordKey(id uint64) string {
	return s.c.key(s.kind, strconv.FormatUint(id, 10))
}

func (s *RecordStore[T]) NextID(ctx context.Context) (uint64, error) {
	n, err := s.c.Rdb.Incr(ctx, s.c.key(s.kind, "seq")).Result()
	if err != nil {
		return 0, err
	}
	return uint64(n - 1), nil
}

func (s *RecordStore[T]) Insert(ctx context.Context, id uint64, rec T) error {
	_, err := s.c.Rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, s.recordKey(id), s.encode(rec))
		p.ZAdd(ctx, s.c.key(s.kind, "ids"), redis.Z{Score: float64(id), Member: id})
		return nil
	})
	return err
}

func (s *RecordStore[T]) Get(ctx context.Context, id uint64) (*T, error) {
	h, err := s.c.Rdb.HGetAll(ctx, s.recordKey(id)).Result()
	if err != nil || len(h) == 0 {
		return nil, err
	}
	rec, err := s.decode(id, h)
	if err != nil {
		return nil, fmt.Errorf("decode %s %d: %w", s.kind, id, err)
	}
	return &rec, nil
}

func (s *RecordStore[T]) Update(ctx context.Context, id uint64, rec T) error {
	n, err := s.c.Rdb.Exists(ctx, s.recordKey(id)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return s.c.Rdb.HSet(ctx, s.recordKey(id), s.encode(rec)).Err()
}

func (s *RecordStore[T]) Remove(ctx context.Context, id uint64) error {
	var del *redis.IntCmd
	_, err := s.c.Rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		del = p.Del(ctx, s.recordKey(id))
		p.ZRem(ctx, s.c.key(s.kind, "ids"), id)
		return nil
	})
	if err != nil {
		return err
	}
	if del.Val() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *RecordStore[T]) List(ctx context.Context) ([]T, error) {
	members, err := s.c.Rdb.ZRange(ctx, s.c.key(s.kind, "ids"), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseUint(m, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad %s id %q: %w", s.kind, m, err)
		}
		rec, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			out = append(out, *rec)
		}
	}
	return out, nil
}
