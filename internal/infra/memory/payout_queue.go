package memory

import (
	"context"
	"errors"
	"fmt"
	"reviewq/internal/domain"
	"reviewq/internal/ports"
	"sync"
	"time"

	"github.com/google/uuid"
)

var _ ports.PayoutQueue = (*PayoutQueue)(nil)

var ErrQueueFull = errors.New("payout queue is full")

// PayoutQueue is an in-process outbox: a buffered channel of message ids plus
// the payout state table. Delayed payouts are re-offered by timers.
type PayoutQueue struct {
	mu           sync.Mutex
	messages     chan string
	inflight     map[string]string // message id -> payout id
	payouts      map[string]domain.Payout
	dlq          []domain.Payout
	timers       map[string]*time.Timer
	seq          uint64
	shuttingDown bool
}

func NewPayoutQueue(size int) *PayoutQueue {
	if size <= 0 {
		size = 100
	}
	return &PayoutQueue{
		messages: make(chan string, size),
		inflight: make(map[string]string),
		payouts:  make(map[string]domain.Payout),
		timers:   make(map[string]*time.Timer),
	}
}

func (q *PayoutQueue) Enqueue(_ context.Context, p domain.Payout) (string, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.Status = domain.PayoutQueued
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	return q.offerLocked(p)
}

func (q *PayoutQueue) offerLocked(p domain.Payout) (string, error) {
	if q.shuttingDown {
		return "", errors.New("payout queue is closed")
	}
	q.seq++
	msgID := fmt.Sprintf("%d-0", q.seq)
	select {
	case q.messages <- msgID:
	default:
		return "", ErrQueueFull
	}
	q.inflight[msgID] = p.ID
	q.payouts[p.ID] = p
	return p.ID, nil
}

func (q *PayoutQueue) EnqueueDelayed(_ context.Context, p domain.Payout, runAt time.Time) (string, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.Status = domain.PayoutDelayed
	p.NextRunAt = runAt

	q.mu.Lock()
	defer q.mu.Unlock()
	q.payouts[p.ID] = p
	id := p.ID
	q.timers[id] = time.AfterFunc(time.Until(runAt), func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		delete(q.timers, id)
		cur, ok := q.payouts[id]
		if !ok || cur.Status != domain.PayoutDelayed {
			return
		}
		cur.Status = domain.PayoutQueued
		if _, err := q.offerLocked(cur); err != nil {
			cur.Status = domain.PayoutFailed
			cur.LastError = err.Error()
			q.payouts[id] = cur
			q.dlq = append(q.dlq, cur)
		}
	})
	return id, nil
}

func (q *PayoutQueue) Claim(ctx context.Context, _ string, block time.Duration) (*domain.Payout, string, error) {
	timer := time.NewTimer(block)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, "", ctx.Err()
	case <-timer.C:
		return nil, "", nil
	case msgID := <-q.messages:
		q.mu.Lock()
		defer q.mu.Unlock()
		p, ok := q.payouts[q.inflight[msgID]]
		if !ok {
			return nil, "", fmt.Errorf("message %s has no payout", msgID)
		}
		return &p, msgID, nil
	}
}

func (q *PayoutQueue) Ack(_ context.Context, msgID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.inflight, msgID)
	return nil
}

func (q *PayoutQueue) Fail(_ context.Context, _ string, p domain.Payout, err error) error {
	p.Attempts++
	if err != nil {
		p.LastError = err.Error()
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.payouts[p.ID] = p
	return nil
}

func (q *PayoutQueue) ToDLQ(_ context.Context, msgID string, p domain.Payout, reason string) error {
	p.Status = domain.PayoutFailed
	p.LastError = reason
	q.mu.Lock()
	defer q.mu.Unlock()
	q.dlq = append(q.dlq, p)
	delete(q.inflight, msgID)
	q.payouts[p.ID] = p
	return nil
}

func (q *PayoutQueue) SaveState(_ context.Context, p domain.Payout) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.payouts[p.ID] = p
	return nil
}

func (q *PayoutQueue) Get(_ context.Context, id string) (*domain.Payout, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	p, ok := q.payouts[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// DeadLetters returns payouts that exhausted their attempts.
func (q *PayoutQueue) DeadLetters() []domain.Payout {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]domain.Payout, len(q.dlq))
	copy(out, q.dlq)
	return out
}

// Close stops pending retry timers and rejects further payouts.
func (q *PayoutQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.shuttingDown = true
	for id, t := range q.timers {
		t.Stop()
		delete(q.timers, id)
	}
}
