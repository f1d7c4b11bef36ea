package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrNotQueued          = errors.New("not in queue")
	ErrAlreadyAssigned    = errors.New("already assigned")
	ErrNotAssignee        = errors.New("caller is not the assignee")
	ErrNotReviewer        = errors.New("caller is not the assigned reviewer")
	ErrAlreadyCompleted   = errors.New("task already completed")
	ErrAlreadyAdjudicated = errors.New("review already adjudicated")
	ErrDuplicateEntry     = errors.New("duplicate queue entry")
	ErrInvalidArgument    = errors.New("invalid argument")

	ErrInvalidTaskID   = fmt.Errorf("invalid task id: %w", ErrNotFound)
	ErrInvalidReviewID = fmt.Errorf("invalid review task id: %w", ErrNotFound)
)
