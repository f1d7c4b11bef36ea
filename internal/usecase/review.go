package usecase

import (
	"context"
	"fmt"
	"reviewq/internal/domain"

	"github.com/rs/zerolog/log"
)

// Adjudication is the committed outcome of a review decision.
type Adjudication struct {
	Review domain.ReviewTask
	// PayoutID is set when an acceptance was handed to the payout outbox.
	PayoutID string
}

// AssignReviewTask claims a queued review for reviewer.
func (e *Engine) AssignReviewTask(ctx context.Context, reviewID uint64, reviewer domain.Principal) error {
	if reviewer == "" {
		return fmt.Errorf("%w: reviewer is required", domain.ErrInvalidArgument)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	queued, err := e.reviewQueue.Contains(ctx, reviewID)
	if err != nil {
		return err
	}
	if !queued {
		return fmt.Errorf("review %d: %w", reviewID, domain.ErrNotQueued)
	}
	r, err := e.reviews.Get(ctx, reviewID)
	if err != nil {
		return err
	}
	if r == nil {
		return fmt.Errorf("queued review %d has no record: %w", reviewID, errInconsistent)
	}
	if r.ReviewedBy != nil {
		return fmt.Errorf("review %d: %w", reviewID, domain.ErrAlreadyAssigned)
	}

	now := e.clock.Now()
	r.ReviewedBy = domain.PrincipalPtr(reviewer)
	r.ReviewedAt = domain.TimePtr(now)
	r.Status = domain.ReviewAssigned
	if err := e.reviews.Update(ctx, reviewID, *r); err != nil {
		return fmt.Errorf("update review %d: %w", reviewID, err)
	}
	if err := e.reviewQueue.Remove(ctx, reviewID); err != nil {
		return fmt.Errorf("dequeue review %d: %w", reviewID, err)
	}

	log.Ctx(ctx).Info().Uint64("review_id", reviewID).Str("principal", string(reviewer)).Msg("review assigned")
	e.emit(ctx, domain.Event{Type: domain.EventReviewAssigned, TaskID: r.TaskID, ReviewID: &reviewID, Principal: reviewer, At: now})
	return nil
}

// Adjudicate accepts or rejects the work under review. The decision is final
// once committed; the payout for an acceptance is requested afterwards and its
// failure does not undo the decision.
func (e *Engine) Adjudicate(ctx context.Context, caller domain.Principal, reviewID uint64, accept bool) (*Adjudication, error) {
	review, task, err := e.adjudicate(ctx, caller, reviewID, accept)
	if err != nil {
		return nil, err
	}

	res := &Adjudication{Review: review}
	if !accept || e.payouts == nil {
		return res, nil
	}

	payoutID, err := e.payouts.Trigger(ctx, task, review)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).
			Uint64("review_id", reviewID).
			Uint64("task_id", review.TaskID).
			Msg("failed to request payout for accepted review")
		return res, nil
	}
	res.PayoutID = payoutID
	return res, nil
}

func (e *Engine) adjudicate(ctx context.Context, caller domain.Principal, reviewID uint64, accept bool) (domain.ReviewTask, domain.Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, err := e.reviews.Get(ctx, reviewID)
	if err != nil {
		return domain.ReviewTask{}, domain.Task{}, err
	}
	if r == nil {
		return domain.ReviewTask{}, domain.Task{}, fmt.Errorf("review %d: %w", reviewID, domain.ErrInvalidReviewID)
	}
	if r.ReviewedBy == nil || *r.ReviewedBy != caller {
		return domain.ReviewTask{}, domain.Task{}, fmt.Errorf("review %d: %w", reviewID, domain.ErrNotReviewer)
	}
	if r.Adjudicated() {
		return domain.ReviewTask{}, domain.Task{}, fmt.Errorf("review %d: %w", reviewID, domain.ErrAlreadyAdjudicated)
	}
	t, err := e.tasks.Get(ctx, r.TaskID)
	if err != nil {
		return domain.ReviewTask{}, domain.Task{}, err
	}
	if t == nil || !t.Completed {
		return domain.ReviewTask{}, domain.Task{}, fmt.Errorf("review %d targets unsubmitted task %d: %w", reviewID, r.TaskID, errInconsistent)
	}

	now := e.clock.Now()
	r.AdjudicatedAt = domain.TimePtr(now)
	r.Accepted = accept
	t.ReviewedBy = domain.PrincipalPtr(caller)
	t.ReviewedAt = domain.TimePtr(now)

	evType := domain.EventReviewAccepted
	if accept {
		r.Status = domain.ReviewAccepted
	} else {
		r.Status = domain.ReviewRejected
		evType = domain.EventReviewRejected
	}
	if err := e.reviews.Update(ctx, reviewID, *r); err != nil {
		return domain.ReviewTask{}, domain.Task{}, fmt.Errorf("update review %d: %w", reviewID, err)
	}

	switch {
	case accept:
		if err := e.tasks.Update(ctx, t.ID, *t); err != nil {
			return domain.ReviewTask{}, domain.Task{}, fmt.Errorf("update task %d: %w", t.ID, err)
		}
	case e.policy == RejectStrict:
		if err := e.tasks.Remove(ctx, t.ID); err != nil {
			return domain.ReviewTask{}, domain.Task{}, fmt.Errorf("remove task %d: %w", t.ID, err)
		}
	default:
		t.AssignedTo = nil
		t.AssignedAt = nil
		t.Completed = false
		if err := e.tasks.Update(ctx, t.ID, *t); err != nil {
			return domain.ReviewTask{}, domain.Task{}, fmt.Errorf("update task %d: %w", t.ID, err)
		}
		if err := e.taskQueue.Push(ctx, t.ID); err != nil {
			return domain.ReviewTask{}, domain.Task{}, fmt.Errorf("requeue task %d: %w", t.ID, err)
		}
	}

	log.Ctx(ctx).Info().
		Uint64("review_id", reviewID).
		Uint64("task_id", t.ID).
		Str("principal", string(caller)).
		Bool("accepted", accept).
		Msg("review adjudicated")
	e.emit(ctx, domain.Event{Type: evType, TaskID: t.ID, ReviewID: &reviewID, Principal: caller, At: now})
	if !accept && e.policy == RejectStrict {
		e.emit(ctx, domain.Event{Type: domain.EventTaskDeleted, TaskID: t.ID, ReviewID: &reviewID, At: now})
	}
	return *r, *t, nil
}

func (e *Engine) GetReviewTask(ctx context.Context, reviewID uint64) (*domain.ReviewTask, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.reviews.Get(ctx, reviewID)
}

func (e *Engine) ReviewQueueSnapshot(ctx context.Context) ([]uint64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.reviewQueue.Snapshot(ctx)
}

func (e *Engine) ReviewQueueLen(ctx context.Context) (uint64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.reviewQueue.Len(ctx)
}
