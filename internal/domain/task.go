package domain

import "time"

// Principal is an authenticated caller identity supplied by the platform.
type Principal string

type TaskState string

const (
	TaskOpen      TaskState = "open"
	TaskAssigned  TaskState = "assigned"
	TaskSubmitted TaskState = "submitted"
)

// Task is one unit of work. AssignedAt is set iff AssignedTo is set.
type Task struct {
	ID          uint64     `json:"id"`
	ImageURL    string     `json:"image_url"`
	Description string     `json:"description"`
	AssignedTo  *Principal `json:"assigned_to,omitempty"`
	AssignedAt  *time.Time `json:"assigned_at,omitempty"`
	ReviewedBy  *Principal `json:"reviewed_by,omitempty"`
	ReviewedAt  *time.Time `json:"reviewed_at,omitempty"`
	Completed   bool       `json:"completed"`
}

func (t Task) Key() uint64 { return t.ID }

func (t Task) State() TaskState {
	switch {
	case t.Completed:
		return TaskSubmitted
	case t.AssignedTo != nil:
		return TaskAssigned
	default:
		return TaskOpen
	}
}

type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "pending"
	ReviewAssigned ReviewStatus = "assigned"
	ReviewAccepted ReviewStatus = "accepted"
	ReviewRejected ReviewStatus = "rejected"
)

// ReviewTask is one review cycle for a submitted Task.
type ReviewTask struct {
	ID            uint64       `json:"id"`
	TaskID        uint64       `json:"task_id"`
	ReviewedBy    *Principal   `json:"reviewed_by,omitempty"`
	ReviewedAt    *time.Time   `json:"reviewed_at,omitempty"`
	Accepted      bool         `json:"accepted"`
	Status        ReviewStatus `json:"status"`
	AdjudicatedAt *time.Time   `json:"adjudicated_at,omitempty"`
}

func (r ReviewTask) Key() uint64 { return r.ID }

func (r ReviewTask) Adjudicated() bool {
	return r.Status == ReviewAccepted || r.Status == ReviewRejected
}

func ptr[T any](v T) *T { return &v }

// PrincipalPtr returns a pointer to a copy of p.
func PrincipalPtr(p Principal) *Principal { return ptr(p) }

// TimePtr returns a pointer to a copy of t.
func TimePtr(t time.Time) *time.Time { return ptr(t) }
