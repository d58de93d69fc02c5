package memory

import (
	"context"
	"sync"

	"contest-service/internal/domain"
)

const eventLogCapacity = 1000

// EventLog records published progression events when no broker is configured.
type EventLog struct {
	mu     sync.Mutex
	events []domain.ProgressEvent
}

func NewEventLog() *EventLog {
	return &EventLog{}
}

func (l *EventLog) Publish(_ context.Context, ev domain.ProgressEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
	if over := len(l.events) - eventLogCapacity; over > 0 {
		l.events = append([]domain.ProgressEvent(nil), l.events[over:]...)
	}
	return nil
}

// Events returns a copy of the recorded events, oldest first.
func (l *EventLog) Events() []domain.ProgressEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.ProgressEvent(nil), l.events...)
}

// Types lists the recorded event types in order.
func (l *EventLog) Types() []domain.ProgressEventType {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.ProgressEventType, 0, len(l.events))
	for _, ev := range l.events {
		out = append(out, ev.Type)
	}
	return out
}
