package usecase

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"reviewq/internal/domain"
	"reviewq/internal/infra/memory"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingPayouts struct {
	mu    sync.Mutex
	calls []domain.ReviewTask
	err   error
}

func (p *recordingPayouts) Trigger(_ context.Context, _ domain.Task, r domain.ReviewTask) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, r)
	if p.err != nil {
		return "", p.err
	}
	return "payout-1", nil
}

func (p *recordingPayouts) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

type fixture struct {
	engine  *Engine
	clock   *fakeClock
	payouts *recordingPayouts
	events  *memory.Events
}

func newFixture(t *testing.T, policy RejectPolicy) *fixture {
	t.Helper()
	f := &fixture{clock: newFakeClock(), payouts: &recordingPayouts{}, events: memory.NewEvents(0)}
	f.engine = NewEngine(EngineConfig{
		Tasks:        memory.NewStore[domain.Task](),
		Reviews:      memory.NewStore[domain.ReviewTask](),
		TaskQueue:    memory.NewQueue(),
		ReviewQueue:  memory.NewQueue(),
		Clock:        f.clock,
		Payouts:      f.payouts,
		Events:       f.events,
		RejectPolicy: policy,
		LeaseTTL:     time.Hour,
	})
	return f
}

func (f *fixture) taskQueue(t *testing.T) []uint64 {
	t.Helper()
	ids, err := f.engine.TaskQueueSnapshot(context.Background())
	if err != nil {
		t.Fatalf("TaskQueueSnapshot: %v", err)
	}
	return ids
}

func (f *fixture) reviewQueue(t *testing.T) []uint64 {
	t.Helper()
	ids, err := f.engine.ReviewQueueSnapshot(context.Background())
	if err != nil {
		t.Fatalf("ReviewQueueSnapshot: %v", err)
	}
	return ids
}

// submitted publishes, assigns and submits one task, returning its ids.
func (f *fixture) submitted(t *testing.T, worker domain.Principal) (uint64, uint64) {
	t.Helper()
	ctx := context.Background()
	id, err := f.engine.Publish(ctx, "img")
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := f.engine.AssignTask(ctx, id, worker); err != nil {
		t.Fatalf("AssignTask: %v", err)
	}
	rid, err := f.engine.SubmitTask(ctx, worker, id, "done")
	if err != nil {
		t.Fatalf("SubmitTask: %v", err)
	}
	return id, rid
}

// ---------------------------------------------------------------------------
// Publish / assign / submit
// ---------------------------------------------------------------------------

func TestPublish_QueuesOpenTask(t *testing.T) {
	f := newFixture(t, RejectLenient)
	ctx := context.Background()

	id, err := f.engine.Publish(ctx, "img1")
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	task, _ := f.engine.GetTask(ctx, id)
	if task == nil || task.AssignedTo != nil || task.AssignedAt != nil || task.Completed {
		t.Fatalf("published task: got %+v", task)
	}
	if task.ImageURL != "img1" || task.State() != domain.TaskOpen {
		t.Fatalf("published task: got %+v", task)
	}
	if !slices.Contains(f.taskQueue(t), id) {
		t.Fatalf("task %d not queued", id)
	}

	id2, _ := f.engine.Publish(ctx, "img2")
	if id2 <= id {
		t.Fatalf("ids not increasing: %d then %d", id, id2)
	}
}

func TestPublish_RequiresImage(t *testing.T) {
	f := newFixture(t, RejectLenient)
	if _, err := f.engine.Publish(context.Background(), ""); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("got %v, want ErrInvalidArgument", err)
	}
	if len(f.taskQueue(t)) != 0 {
		t.Fatal("failed publish must not queue anything")
	}
}

func TestAssignTask_NotQueued(t *testing.T) {
	f := newFixture(t, RejectLenient)
	ctx := context.Background()
	id, _ := f.engine.Publish(ctx, "img")

	if err := f.engine.AssignTask(ctx, 99, "alice"); !errors.Is(err, domain.ErrNotQueued) {
		t.Fatalf("unknown id: got %v, want ErrNotQueued", err)
	}
	task, _ := f.engine.GetTask(ctx, id)
	if task.AssignedTo != nil {
		t.Fatal("failed assignment mutated an unrelated task")
	}
	if !slices.Equal(f.taskQueue(t), []uint64{id}) {
		t.Fatalf("queue changed: %v", f.taskQueue(t))
	}
}

func TestAssignTask_SecondAssignFails(t *testing.T) {
	f := newFixture(t, RejectLenient)
	ctx := context.Background()
	id, _ := f.engine.Publish(ctx, "img")

	if err := f.engine.AssignTask(ctx, id, "alice"); err != nil {
		t.Fatalf("AssignTask: %v", err)
	}
	if slices.Contains(f.taskQueue(t), id) {
		t.Fatal("assigned task still queued")
	}
	task, _ := f.engine.GetTask(ctx, id)
	if task.AssignedTo == nil || *task.AssignedTo != "alice" {
		t.Fatalf("assignee: got %+v", task.AssignedTo)
	}
	if task.AssignedAt == nil || !task.AssignedAt.Equal(f.clock.Now()) {
		t.Fatalf("assigned at: got %v", task.AssignedAt)
	}

	// the id has left the queue, so the queue check fires first
	err := f.engine.AssignTask(ctx, id, "bob")
	if !errors.Is(err, domain.ErrNotQueued) && !errors.Is(err, domain.ErrAlreadyAssigned) {
		t.Fatalf("second assign: got %v", err)
	}
	task, _ = f.engine.GetTask(ctx, id)
	if *task.AssignedTo != "alice" {
		t.Fatalf("second assign overwrote assignee: %q", *task.AssignedTo)
	}
}

func TestAssignTask_AlreadyAssignedWhileQueued(t *testing.T) {
	f := newFixture(t, RejectLenient)
	ctx := context.Background()
	id, _ := f.engine.Publish(ctx, "img")

	// a record that is assigned yet still queued is reported, not overwritten
	task, _ := f.engine.tasks.Get(ctx, id)
	task.AssignedTo = domain.PrincipalPtr("alice")
	task.AssignedAt = domain.TimePtr(f.clock.Now())
	_ = f.engine.tasks.Update(ctx, id, *task)

	if err := f.engine.AssignTask(ctx, id, "bob"); !errors.Is(err, domain.ErrAlreadyAssigned) {
		t.Fatalf("got %v, want ErrAlreadyAssigned", err)
	}
	if !slices.Contains(f.taskQueue(t), id) {
		t.Fatal("failed assignment removed the queue entry")
	}
}

func TestSubmitTask_Preconditions(t *testing.T) {
	f := newFixture(t, RejectLenient)
	ctx := context.Background()

	if _, err := f.engine.SubmitTask(ctx, "alice", 42, "x"); !errors.Is(err, domain.ErrInvalidTaskID) {
		t.Fatalf("missing task: got %v, want ErrInvalidTaskID", err)
	}

	id, _ := f.engine.Publish(ctx, "img")
	if _, err := f.engine.SubmitTask(ctx, "alice", id, "x"); !errors.Is(err, domain.ErrNotAssignee) {
		t.Fatalf("unassigned task: got %v, want ErrNotAssignee", err)
	}

	_ = f.engine.AssignTask(ctx, id, "alice")
	before, _ := f.engine.GetTask(ctx, id)
	if _, err := f.engine.SubmitTask(ctx, "mallory", id, "x"); !errors.Is(err, domain.ErrNotAssignee) {
		t.Fatalf("other principal: got %v, want ErrNotAssignee", err)
	}
	after, _ := f.engine.GetTask(ctx, id)
	if after.Description != before.Description || after.Completed != before.Completed {
		t.Fatalf("failed submit changed the task: %+v", after)
	}

	if _, err := f.engine.SubmitTask(ctx, "alice", id, "first"); err != nil {
		t.Fatalf("SubmitTask: %v", err)
	}
	if _, err := f.engine.SubmitTask(ctx, "alice", id, "second"); !errors.Is(err, domain.ErrAlreadyCompleted) {
		t.Fatalf("resubmit: got %v, want ErrAlreadyCompleted", err)
	}
	task, _ := f.engine.GetTask(ctx, id)
	if task.Description != "first" || !task.Completed {
		t.Fatalf("submitted task: got %+v", task)
	}
}

func TestSubmitTask_FreshReviewEachTime(t *testing.T) {
	f := newFixture(t, RejectLenient)
	ctx := context.Background()
	seen := map[uint64]bool{}

	for i := 0; i < 3; i++ {
		before, _ := f.engine.ReviewQueueLen(ctx)
		_, rid := f.submitted(t, "alice")
		after, _ := f.engine.ReviewQueueLen(ctx)
		if after != before+1 {
			t.Fatalf("review queue len: %d -> %d", before, after)
		}
		if seen[rid] {
			t.Fatalf("review id %d reused", rid)
		}
		seen[rid] = true

		r, _ := f.engine.GetReviewTask(ctx, rid)
		if r == nil || r.Status != domain.ReviewPending || r.ReviewedBy != nil {
			t.Fatalf("new review: got %+v", r)
		}
	}
}

// ---------------------------------------------------------------------------
// Scenarios
// ---------------------------------------------------------------------------

func TestScenario_RejectThenResubmit(t *testing.T) {
	f := newFixture(t, RejectLenient)
	ctx := context.Background()

	id, _ := f.engine.Publish(ctx, "img1")
	if id != 0 {
		t.Fatalf("first task id: got %d, want 0", id)
	}
	if err := f.engine.AssignTask(ctx, 0, "alice"); err != nil {
		t.Fatal(err)
	}
	rid, err := f.engine.SubmitTask(ctx, "alice", 0, "done")
	if err != nil || rid != 0 {
		t.Fatalf("SubmitTask: review %d, %v", rid, err)
	}
	if err := f.engine.AssignReviewTask(ctx, 0, "bob"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.engine.Adjudicate(ctx, "bob", 0, false); err != nil {
		t.Fatal(err)
	}

	if got := f.taskQueue(t); !slices.Equal(got, []uint64{0}) {
		t.Fatalf("task queue: got %v, want [0]", got)
	}
	if got := f.reviewQueue(t); len(got) != 0 {
		t.Fatalf("review queue: got %v, want []", got)
	}
	task, _ := f.engine.GetTask(ctx, 0)
	if task.AssignedTo != nil || task.AssignedAt != nil || task.Completed {
		t.Fatalf("recycled task: got %+v", task)
	}
	if task.ReviewedBy == nil || *task.ReviewedBy != "bob" {
		t.Fatalf("last reviewer: got %v", task.ReviewedBy)
	}
	if f.payouts.count() != 0 {
		t.Fatal("rejection must not pay")
	}

	if err := f.engine.AssignTask(ctx, 0, "carol"); err != nil {
		t.Fatal(err)
	}
	rid, err = f.engine.SubmitTask(ctx, "carol", 0, "done2")
	if err != nil {
		t.Fatal(err)
	}
	if rid != 1 {
		t.Fatalf("resubmission review id: got %d, want 1", rid)
	}
	if got := f.reviewQueue(t); !slices.Equal(got, []uint64{1}) {
		t.Fatalf("review queue: got %v, want [1]", got)
	}
	old, _ := f.engine.GetReviewTask(ctx, 0)
	if old.Status != domain.ReviewRejected || old.Accepted {
		t.Fatalf("old review rewritten: %+v", old)
	}
}

func TestScenario_AcceptPaysOnce(t *testing.T) {
	f := newFixture(t, RejectLenient)
	ctx := context.Background()
	id, rid := f.submitted(t, "alice")

	if err := f.engine.AssignReviewTask(ctx, rid, "bob"); err != nil {
		t.Fatal(err)
	}
	res, err := f.engine.Adjudicate(ctx, "bob", rid, true)
	if err != nil {
		t.Fatalf("Adjudicate: %v", err)
	}
	if !res.Review.Accepted || res.Review.Status != domain.ReviewAccepted || res.PayoutID != "payout-1" {
		t.Fatalf("adjudication: got %+v", res)
	}

	if _, err := f.engine.Adjudicate(ctx, "bob", rid, true); !errors.Is(err, domain.ErrAlreadyAdjudicated) {
		t.Fatalf("second adjudicate: got %v, want ErrAlreadyAdjudicated", err)
	}
	if _, err := f.engine.Adjudicate(ctx, "bob", rid, false); !errors.Is(err, domain.ErrAlreadyAdjudicated) {
		t.Fatalf("flip after accept: got %v, want ErrAlreadyAdjudicated", err)
	}
	if f.payouts.count() != 1 {
		t.Fatalf("payout calls: got %d, want 1", f.payouts.count())
	}

	task, _ := f.engine.GetTask(ctx, id)
	if !task.Completed || slices.Contains(f.taskQueue(t), id) {
		t.Fatalf("accepted task must stay completed and off the queue: %+v", task)
	}
}

func TestAdjudicate_UnassignedReview(t *testing.T) {
	f := newFixture(t, RejectLenient)
	ctx := context.Background()
	_, rid := f.submitted(t, "alice")

	if _, err := f.engine.Adjudicate(ctx, "bob", rid, true); !errors.Is(err, domain.ErrNotReviewer) {
		t.Fatalf("got %v, want ErrNotReviewer", err)
	}
	if f.payouts.count() != 0 {
		t.Fatal("settlement requested for unassigned review")
	}
	if !slices.Equal(f.reviewQueue(t), []uint64{rid}) {
		t.Fatal("failed adjudication changed the review queue")
	}
}

func TestAdjudicate_WrongReviewer(t *testing.T) {
	f := newFixture(t, RejectLenient)
	ctx := context.Background()
	_, rid := f.submitted(t, "alice")
	_ = f.engine.AssignReviewTask(ctx, rid, "bob")

	if _, err := f.engine.Adjudicate(ctx, "eve", rid, true); !errors.Is(err, domain.ErrNotReviewer) {
		t.Fatalf("got %v, want ErrNotReviewer", err)
	}
	if _, err := f.engine.Adjudicate(ctx, "bob", 77, true); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing review: got %v, want ErrNotFound", err)
	}
}

func TestAdjudicate_PayoutFailureKeepsDecision(t *testing.T) {
	f := newFixture(t, RejectLenient)
	f.payouts.err = errors.New("outbox down")
	ctx := context.Background()
	_, rid := f.submitted(t, "alice")
	_ = f.engine.AssignReviewTask(ctx, rid, "bob")

	res, err := f.engine.Adjudicate(ctx, "bob", rid, true)
	if err != nil {
		t.Fatalf("Adjudicate: %v", err)
	}
	if res.PayoutID != "" {
		t.Fatalf("payout id on failure: %q", res.PayoutID)
	}
	r, _ := f.engine.GetReviewTask(ctx, rid)
	if r.Status != domain.ReviewAccepted {
		t.Fatalf("decision rolled back: %+v", r)
	}
}

func TestAdjudicate_RejectRequeuesOnce(t *testing.T) {
	f := newFixture(t, RejectLenient)
	ctx := context.Background()
	other, _ := f.engine.Publish(ctx, "other")
	id, rid := f.submitted(t, "alice")
	_ = f.engine.AssignReviewTask(ctx, rid, "bob")
	_, _ = f.engine.Adjudicate(ctx, "bob", rid, false)

	got := f.taskQueue(t)
	if !slices.Equal(got, []uint64{other, id}) {
		t.Fatalf("task queue: got %v, want [%d %d]", got, other, id)
	}
}

func TestAdjudicate_StrictDeletesTask(t *testing.T) {
	f := newFixture(t, RejectStrict)
	ctx := context.Background()
	id, rid := f.submitted(t, "alice")
	_ = f.engine.AssignReviewTask(ctx, rid, "bob")

	if _, err := f.engine.Adjudicate(ctx, "bob", rid, false); err != nil {
		t.Fatalf("Adjudicate: %v", err)
	}
	if task, _ := f.engine.GetTask(ctx, id); task != nil {
		t.Fatalf("strict reject kept the task: %+v", task)
	}
	if len(f.taskQueue(t)) != 0 {
		t.Fatalf("strict reject queued a deleted task: %v", f.taskQueue(t))
	}
	r, _ := f.engine.GetReviewTask(ctx, rid)
	if r == nil || r.Status != domain.ReviewRejected {
		t.Fatalf("review after strict reject: %+v", r)
	}
	if _, err := f.engine.SubmitTask(ctx, "alice", id, "again"); !errors.Is(err, domain.ErrInvalidTaskID) {
		t.Fatalf("resubmit deleted task: got %v", err)
	}
	next, _ := f.engine.Publish(ctx, "img")
	if next == id {
		t.Fatal("deleted task id reused")
	}
}

func TestAssignReviewTask_Preconditions(t *testing.T) {
	f := newFixture(t, RejectLenient)
	ctx := context.Background()

	if err := f.engine.AssignReviewTask(ctx, 5, "bob"); !errors.Is(err, domain.ErrNotQueued) {
		t.Fatalf("unknown review: got %v, want ErrNotQueued", err)
	}
	_, rid := f.submitted(t, "alice")
	if err := f.engine.AssignReviewTask(ctx, rid, "bob"); err != nil {
		t.Fatal(err)
	}
	if len(f.reviewQueue(t)) != 0 {
		t.Fatal("assigned review still queued")
	}
	r, _ := f.engine.GetReviewTask(ctx, rid)
	if r.ReviewedBy == nil || *r.ReviewedBy != "bob" || r.ReviewedAt == nil || r.Status != domain.ReviewAssigned {
		t.Fatalf("assigned review: %+v", r)
	}
	if err := f.engine.AssignReviewTask(ctx, rid, "carol"); !errors.Is(err, domain.ErrNotQueued) {
		t.Fatalf("second assign: got %v, want ErrNotQueued", err)
	}
}

func TestEngine_EmitsEvents(t *testing.T) {
	f := newFixture(t, RejectLenient)
	ctx := context.Background()
	_, rid := f.submitted(t, "alice")
	_ = f.engine.AssignReviewTask(ctx, rid, "bob")
	_, _ = f.engine.Adjudicate(ctx, "bob", rid, true)

	var types []domain.EventType
	for _, e := range f.events.All() {
		types = append(types, e.Type)
	}
	want := []domain.EventType{
		domain.EventTaskPublished,
		domain.EventTaskAssigned,
		domain.EventTaskSubmitted,
		domain.EventReviewAssigned,
		domain.EventReviewAccepted,
	}
	if !slices.Equal(types, want) {
		t.Fatalf("events: got %v, want %v", types, want)
	}
}

// ---------------------------------------------------------------------------
// Concurrency
// ---------------------------------------------------------------------------

func TestAssignTask_ConcurrentClaimsHaveOneWinner(t *testing.T) {
	f := newFixture(t, RejectLenient)
	ctx := context.Background()
	id, _ := f.engine.Publish(ctx, "img")

	const workers = 16
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- f.engine.AssignTask(ctx, id, domain.Principal(fmt.Sprintf("w%d", i)))
		}(i)
	}
	wg.Wait()
	close(errs)

	wins := 0
	for err := range errs {
		if err == nil {
			wins++
		} else if !errors.Is(err, domain.ErrNotQueued) && !errors.Is(err, domain.ErrAlreadyAssigned) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("winners: got %d, want 1", wins)
	}
	if len(f.taskQueue(t)) != 0 {
		t.Fatal("claimed task still queued")
	}
}

func TestParseRejectPolicy(t *testing.T) {
	if p, err := ParseRejectPolicy(""); err != nil || p != RejectLenient {
		t.Fatalf("default: got %q, %v", p, err)
	}
	if p, err := ParseRejectPolicy("strict"); err != nil || p != RejectStrict {
		t.Fatalf("strict: got %q, %v", p, err)
	}
	if _, err := ParseRejectPolicy("lax"); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("unknown: got %v", err)
	}
}
