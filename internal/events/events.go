// Package events publishes habit activity to downstream consumers.
package events

import (
	"context"
	"sync"
	"time"
)

// Event types.
const (
	TypeCompletionRecorded = "completion.recorded"
	TypeCompletionCleared  = "completion.cleared"
	TypeHabitCreated       = "habit.created"
	TypeHabitDeleted       = "habit.deleted"
)

// Event describes a change on the server. HabitID is set for every type;
// DayKey only for completion events.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	UserID     string    `json:"userId"`
	HabitID    string    `json:"habitId"`
	DayKey     string    `json:"dayKey,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *Recorder) Close() error { return nil }

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}
