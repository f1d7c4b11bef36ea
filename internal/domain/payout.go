package domain

import "time"

type PayoutStatus string

const (
	PayoutQueued  PayoutStatus = "queued"
	PayoutRunning PayoutStatus = "running"
	PayoutSettled PayoutStatus = "settled"
	PayoutFailed  PayoutStatus = "failed"
	PayoutDelayed PayoutStatus = "delayed"
)

// Payout is a settlement request raised by an accepted review.
type Payout struct {
	ID          string       `json:"id"`
	ReviewID    uint64       `json:"review_id"`
	TaskID      uint64       `json:"task_id"`
	Amount      uint64       `json:"amount"`
	Account     string       `json:"account"`
	Attempts    int          `json:"attempts"`
	MaxAttempts int          `json:"max_attempts"`
	Status      PayoutStatus `json:"status"`
	LastError   string       `json:"last_error,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	NextRunAt   time.Time    `json:"next_run_at"`
}
