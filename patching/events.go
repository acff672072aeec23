package patching

import (
	"context"
	"time"

	"github.com/glimte/detour-go/internal/journal"
)

// EventType names a patch lifecycle transition
type EventType string

const (
	EventApplied  EventType = "patch.applied"
	EventRemoved  EventType = "patch.removed"
	EventReverted EventType = "patch.reverted"
	EventRejected EventType = "patch.rejected"
)

// LifecycleEvent describes one administrative outcome on an original
type LifecycleEvent struct {
	ID          string    `json:"id"`
	Type        EventType `json:"type"`
	Owner       string    `json:"owner"`
	Method      string    `json:"method"`
	Prefixes    int       `json:"prefixes"`
	Postfixes   int       `json:"postfixes"`
	Transpilers int       `json:"transpilers"`
	Finalizers  int       `json:"finalizers"`
	Error       string    `json:"error,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// EventSink receives lifecycle events after the administrative lock is released
type EventSink interface {
	Publish(ctx context.Context, event LifecycleEvent) error
}

// EventSinkFunc is a function adapter for EventSink
type EventSinkFunc func(ctx context.Context, event LifecycleEvent) error

// Publish implements EventSink
func (f EventSinkFunc) Publish(ctx context.Context, event LifecycleEvent) error {
	return f(ctx, event)
}

var actionEvents = map[journal.Action]EventType{
	journal.ActionApplied:  EventApplied,
	journal.ActionRemoved:  EventRemoved,
	journal.ActionReverted: EventReverted,
	journal.ActionRejected: EventRejected,
}

func eventFromEntry(e *journal.Entry) LifecycleEvent {
	return LifecycleEvent{
		ID:          e.ID,
		Type:        actionEvents[e.Action],
		Owner:       e.Owner,
		Method:      e.Method,
		Prefixes:    e.Prefixes,
		Postfixes:   e.Postfixes,
		Transpilers: e.Transpilers,
		Finalizers:  e.Finalizers,
		Error:       e.Error,
		Timestamp:   e.Timestamp,
	}
}
