package memory

import (
	"context"
	"reviewq/internal/domain"
	"reviewq/internal/ports"
	"sync"
)

var _ ports.EventPublisher = (*Events)(nil)

// Events keeps the most recent published events in order. Used when no broker
// is configured, and by tests.
type Events struct {
	mu     sync.Mutex
	limit  int
	events []domain.Event
}

// NewEvents keeps at most limit events; 0 keeps everything.
func NewEvents(limit int) *Events {
	return &Events{limit: limit}
}

func (e *Events) Publish(_ context.Context, ev domain.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
	if e.limit > 0 && len(e.events) > e.limit {
		e.events = e.events[len(e.events)-e.limit:]
	}
	return nil
}

func (e *Events) All() []domain.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.Event, len(e.events))
	copy(out, e.events)
	return out
}
