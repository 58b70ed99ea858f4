package domain

import (
	"context"
	"encoding/json"
	"time"
)

// EventType identifies the kind of event being published.
type EventType string

const (
	EventConnectionState     EventType = "connection.state"
	EventConnectionError     EventType = "connection.error"
	EventConnectionCountdown EventType = "connection.countdown"
	EventHealthChecked       EventType = "connection.health_checked"
	EventClientSwapped       EventType = "connection.client_swapped"
)

// Event is the envelope published on the event bus.
type Event struct {
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// StatePayload accompanies EventConnectionState.
type StatePayload struct {
	Previous ConnectionState `json:"previous"`
	Current  ConnectionState `json:"current"`
}

// ErrorPayload accompanies EventConnectionError.
type ErrorPayload struct {
	ConnectionError
	Class string `json:"class"`
}

// CountdownPayload accompanies EventConnectionCountdown. Active is false
// once the countdown has been cleared.
type CountdownPayload struct {
	Seconds int  `json:"seconds"`
	Active  bool `json:"active"`
}

// HealthPayload accompanies EventHealthChecked.
type HealthPayload struct {
	At     time.Time     `json:"at"`
	OK     bool          `json:"ok"`
	Status GatewayStatus `json:"status,omitzero"`
}

// NewEvent marshals payload into an Event stamped with at.
func NewEvent(t EventType, at time.Time, payload any) Event {
	ev := Event{Type: t, Timestamp: at}
	if payload != nil {
		if raw, err := json.Marshal(payload); err == nil {
			ev.Payload = raw
		}
	}
	return ev
}

// EventHandler processes a published event.
type EventHandler func(ctx context.Context, event Event)

// EventBus provides a publish/subscribe mechanism for domain events.
type EventBus interface {
	// Publish sends an event to all matching subscribers.
	Publish(ctx context.Context, event Event)
	// Subscribe registers a handler for a specific event type.
	// Returns an unsubscribe function.
	Subscribe(eventType EventType, handler EventHandler) func()
	// SubscribeAll registers a handler that receives every event.
	// Returns an unsubscribe function.
	SubscribeAll(handler EventHandler) func()
	// Close drains in-flight handlers.
	Close()
}
