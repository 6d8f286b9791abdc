// Package events provides the in-process event bus used to fan job progress
// out to streaming subscribers.
package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// EventType represents different event types
type EventType string

const (
	// JobProgress is emitted for every progress snapshot of a running job.
	JobProgress EventType = "JOB_PROGRESS"
	// JobCompleted is emitted once when a job reaches SUCCESS.
	JobCompleted EventType = "JOB_COMPLETED"
	// JobFailed is emitted once when a job reaches FAILED.
	JobFailed EventType = "JOB_FAILED"
	// WatchlistRefreshed is emitted after a watchlist refresh cycle commits.
	WatchlistRefreshed EventType = "WATCHLIST_REFRESHED"
)

// Event represents a system event
type Event struct {
	Type      EventType `json:"type"`
	Module    string    `json:"module"`
	Timestamp time.Time `json:"timestamp"`

	typedData EventData
}

// GetTypedData returns the typed payload attached to the event, or nil.
func (e *Event) GetTypedData() EventData {
	return e.typedData
}

// Handler is a subscriber callback. Handlers must not block: slow consumers
// buffer on their own channels and drop when full.
type Handler func(event *Event)

// Bus is a process-local publish/subscribe hub. Dispatch is synchronous
// under a read lock.
type Bus struct {
	handlers map[EventType][]Handler
	mu       sync.RWMutex
	log      zerolog.Logger
}

// NewBus creates a new event bus
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
		log:      log.With().Str("component", "events").Logger(),
	}
}

// Subscribe registers a handler for an event type.
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// Publish dispatches an event to all handlers registered for its type.
func (b *Bus) Publish(event *Event) {
	b.mu.RLock()
	handlers := b.handlers[event.Type]
	b.mu.RUnlock()

	for _, handler := range handlers {
		handler(event)
	}
}

// EmitTyped publishes an event carrying a typed payload.
func (b *Bus) EmitTyped(module string, data EventData) {
	event := &Event{
		Type:      data.EventType(),
		Module:    module,
		Timestamp: time.Now().UTC(),
		typedData: data,
	}

	b.log.Debug().
		Str("event_type", string(event.Type)).
		Str("module", module).
		Msg("Event emitted")

	b.Publish(event)
}
