package domain

import "time"

type EventType string

const (
	EventTaskPublished      EventType = "task.published"
	EventTaskAssigned       EventType = "task.assigned"
	EventTaskSubmitted      EventType = "task.submitted"
	EventTaskDeleted        EventType = "task.deleted"
	EventTaskLeaseExpired   EventType = "task.lease_expired"
	EventReviewAssigned     EventType = "review.assigned"
	EventReviewAccepted     EventType = "review.accepted"
	EventReviewRejected     EventType = "review.rejected"
	EventReviewLeaseExpired EventType = "review.lease_expired"
)

// Event describes a committed workflow transition.
type Event struct {
	Type      EventType `json:"type"`
	TaskID    uint64    `json:"task_id"`
	ReviewID  *uint64   `json:"review_id,omitempty"`
	Principal Principal `json:"principal,omitempty"`
	At        time.Time `json:"at"`
}
