package usecase

import (
	"context"
	"fmt"
	"reviewq/internal/domain"
	"time"

	"github.com/rs/zerolog/log"
)

// ReleaseExpired returns claims older than the lease TTL to their queue:
// assigned but unsubmitted Tasks and assigned but undecided reviews.
// It is a no-op when no lease TTL is configured.
func (e *Engine) ReleaseExpired(ctx context.Context) (int, error) {
	if e.leaseTTL <= 0 {
		return 0, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	expired := func(at *time.Time) bool { return at != nil && !now.Before(at.Add(e.leaseTTL)) }
	released := 0

	tasks, err := e.tasks.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list tasks: %w", err)
	}
	for _, t := range tasks {
		if t.AssignedTo == nil || t.Completed || !expired(t.AssignedAt) {
			continue
		}
		holder := *t.AssignedTo
		t.AssignedTo = nil
		t.AssignedAt = nil
		if err := e.tasks.Update(ctx, t.ID, t); err != nil {
			return released, fmt.Errorf("update task %d: %w", t.ID, err)
		}
		if err := e.taskQueue.Push(ctx, t.ID); err != nil {
			return released, fmt.Errorf("requeue task %d: %w", t.ID, err)
		}
		released++
		log.Ctx(ctx).Warn().Uint64("task_id", t.ID).Str("principal", string(holder)).Msg("task lease expired")
		e.emit(ctx, domain.Event{Type: domain.EventTaskLeaseExpired, TaskID: t.ID, Principal: holder, At: now})
	}

	reviews, err := e.reviews.List(ctx)
	if err != nil {
		return released, fmt.Errorf("list reviews: %w", err)
	}
	for _, r := range reviews {
		if r.ReviewedBy == nil || r.Adjudicated() || !expired(r.ReviewedAt) {
			continue
		}
		holder := *r.ReviewedBy
		r.ReviewedBy = nil
		r.ReviewedAt = nil
		r.Status = domain.ReviewPending
		if err := e.reviews.Update(ctx, r.ID, r); err != nil {
			return released, fmt.Errorf("update review %d: %w", r.ID, err)
		}
		if err := e.reviewQueue.Push(ctx, r.ID); err != nil {
			return released, fmt.Errorf("requeue review %d: %w", r.ID, err)
		}
		released++
		id := r.ID
		log.Ctx(ctx).Warn().Uint64("review_id", id).Str("principal", string(holder)).Msg("review lease expired")
		e.emit(ctx, domain.Event{Type: domain.EventReviewLeaseExpired, TaskID: r.TaskID, ReviewID: &id, Principal: holder, At: now})
	}
	return released, nil
}

// Sweeper runs ReleaseExpired on a ticker.
type Sweeper struct {
	Engine   *Engine
	Interval time.Duration
}

func (s Sweeper) Run(ctx context.Context) error {
	interval := s.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if _, err := s.Engine.ReleaseExpired(ctx); err != nil {
			log.Ctx(ctx).Error().Err(err).Msg("lease sweep failed")
		}
	}
}
