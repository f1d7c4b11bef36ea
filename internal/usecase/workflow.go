package usecase

import (
	"context"
	"errors"
	"fmt"
	"reviewq/internal/domain"
	"reviewq/internal/ports"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// RejectPolicy decides what a rejected review does to its Task.
type RejectPolicy string

const (
	// RejectLenient clears the assignment and puts the same Task id back on the task-queue.
	RejectLenient RejectPolicy = "lenient"
	// RejectStrict deletes the Task record; the work must be republished.
	RejectStrict RejectPolicy = "strict"
)

func ParseRejectPolicy(s string) (RejectPolicy, error) {
	switch p := RejectPolicy(s); p {
	case RejectLenient, RejectStrict:
		return p, nil
	case "":
		return RejectLenient, nil
	default:
		return "", fmt.Errorf("%w: unknown reject policy %q", domain.ErrInvalidArgument, s)
	}
}

// Payouts is what the engine needs from the payout trigger.
type Payouts interface {
	Trigger(ctx context.Context, task domain.Task, review domain.ReviewTask) (string, error)
}

type EngineConfig struct {
	Tasks        ports.TaskStore
	Reviews      ports.ReviewStore
	TaskQueue    ports.IDQueue
	ReviewQueue  ports.IDQueue
	Clock        ports.Clock
	Payouts      Payouts
	Events       ports.EventPublisher
	RejectPolicy RejectPolicy
	// LeaseTTL > 0 lets ReleaseExpired return stale claims to their queue.
	LeaseTTL time.Duration
}

// Engine is the assignment/review state machine. Mutating operations are
// serialized by mu so that queue and record changes are observed together.
type Engine struct {
	mu sync.RWMutex

	tasks       ports.TaskStore
	reviews     ports.ReviewStore
	taskQueue   ports.IDQueue
	reviewQueue ports.IDQueue
	clock       ports.Clock
	payouts     Payouts
	events      ports.EventPublisher
	policy      RejectPolicy
	leaseTTL    time.Duration
}

func NewEngine(cfg EngineConfig) *Engine {
	if cfg.Clock == nil {
		cfg.Clock = ports.SystemClock{}
	}
	if cfg.RejectPolicy == "" {
		cfg.RejectPolicy = RejectLenient
	}
	return &Engine{
		tasks:       cfg.Tasks,
		reviews:     cfg.Reviews,
		taskQueue:   cfg.TaskQueue,
		reviewQueue: cfg.ReviewQueue,
		clock:       cfg.Clock,
		payouts:     cfg.Payouts,
		events:      cfg.Events,
		policy:      cfg.RejectPolicy,
		leaseTTL:    cfg.LeaseTTL,
	}
}

// Publish records a new open Task and appends it to the task-queue.
func (e *Engine) Publish(ctx context.Context, imageURL string) (uint64, error) {
	if imageURL == "" {
		return 0, fmt.Errorf("%w: image url is required", domain.ErrInvalidArgument)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	id, err := e.tasks.NextID(ctx)
	if err != nil {
		return 0, fmt.Errorf("allocate task id: %w", err)
	}
	if err := e.tasks.Insert(ctx, id, domain.Task{ID: id, ImageURL: imageURL}); err != nil {
		return 0, fmt.Errorf("insert task %d: %w", id, err)
	}
	if err := e.taskQueue.Push(ctx, id); err != nil {
		return 0, fmt.Errorf("queue task %d: %w", id, err)
	}

	log.Ctx(ctx).Info().Uint64("task_id", id).Msg("task published")
	e.emit(ctx, domain.Event{Type: domain.EventTaskPublished, TaskID: id})
	return id, nil
}

// AssignTask claims a queued Task for worker.
func (e *Engine) AssignTask(ctx context.Context, taskID uint64, worker domain.Principal) error {
	if worker == "" {
		return fmt.Errorf("%w: worker is required", domain.ErrInvalidArgument)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	queued, err := e.taskQueue.Contains(ctx, taskID)
	if err != nil {
		return err
	}
	if !queued {
		return fmt.Errorf("task %d: %w", taskID, domain.ErrNotQueued)
	}
	t, err := e.mustTask(ctx, taskID)
	if err != nil {
		return err
	}
	if t.AssignedTo != nil {
		return fmt.Errorf("task %d: %w", taskID, domain.ErrAlreadyAssigned)
	}

	now := e.clock.Now()
	t.AssignedTo = domain.PrincipalPtr(worker)
	t.AssignedAt = domain.TimePtr(now)
	if err := e.tasks.Update(ctx, taskID, *t); err != nil {
		return fmt.Errorf("update task %d: %w", taskID, err)
	}
	if err := e.taskQueue.Remove(ctx, taskID); err != nil {
		return fmt.Errorf("dequeue task %d: %w", taskID, err)
	}

	log.Ctx(ctx).Info().Uint64("task_id", taskID).Str("principal", string(worker)).Msg("task assigned")
	e.emit(ctx, domain.Event{Type: domain.EventTaskAssigned, TaskID: taskID, Principal: worker, At: now})
	return nil
}

// SubmitTask records the caller's result and opens a fresh review cycle.
// It returns the new review task id.
func (e *Engine) SubmitTask(ctx context.Context, caller domain.Principal, taskID uint64, description string) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.tasks.Get(ctx, taskID)
	if err != nil {
		return 0, err
	}
	if t == nil {
		return 0, fmt.Errorf("task %d: %w", taskID, domain.ErrInvalidTaskID)
	}
	if t.AssignedTo == nil || *t.AssignedTo != caller {
		return 0, fmt.Errorf("task %d: %w", taskID, domain.ErrNotAssignee)
	}
	if t.Completed {
		return 0, fmt.Errorf("task %d: %w", taskID, domain.ErrAlreadyCompleted)
	}

	reviewID, err := e.reviews.NextID(ctx)
	if err != nil {
		return 0, fmt.Errorf("allocate review id: %w", err)
	}

	t.Description = description
	t.Completed = true
	if err := e.tasks.Update(ctx, taskID, *t); err != nil {
		return 0, fmt.Errorf("update task %d: %w", taskID, err)
	}
	review := domain.ReviewTask{ID: reviewID, TaskID: taskID, Status: domain.ReviewPending}
	if err := e.reviews.Insert(ctx, reviewID, review); err != nil {
		return 0, fmt.Errorf("insert review %d: %w", reviewID, err)
	}
	if err := e.reviewQueue.Push(ctx, reviewID); err != nil {
		return 0, fmt.Errorf("queue review %d: %w", reviewID, err)
	}

	log.Ctx(ctx).Info().
		Uint64("task_id", taskID).
		Uint64("review_id", reviewID).
		Str("principal", string(caller)).
		Msg("task submitted")
	e.emit(ctx, domain.Event{Type: domain.EventTaskSubmitted, TaskID: taskID, ReviewID: &reviewID, Principal: caller})
	return reviewID, nil
}

func (e *Engine) GetTask(ctx context.Context, taskID uint64) (*domain.Task, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.tasks.Get(ctx, taskID)
}

func (e *Engine) TaskQueueSnapshot(ctx context.Context) ([]uint64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.taskQueue.Snapshot(ctx)
}

func (e *Engine) TaskQueueLen(ctx context.Context) (uint64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.taskQueue.Len(ctx)
}

// mustTask loads a Task that the queues claim exists. A miss is a consistency fault.
func (e *Engine) mustTask(ctx context.Context, taskID uint64) (*domain.Task, error) {
	t, err := e.tasks.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, fmt.Errorf("queued task %d has no record: %w", taskID, errInconsistent)
	}
	return t, nil
}

var errInconsistent = errors.New("internal consistency fault")

func (e *Engine) emit(ctx context.Context, ev domain.Event) {
	if e.events == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = e.clock.Now()
	}
	if err := e.events.Publish(ctx, ev); err != nil {
		log.Ctx(ctx).Error().Err(err).Str("event", string(ev.Type)).Msg("failed to publish workflow event")
	}
}
