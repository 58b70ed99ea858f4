// Package timeline keeps a short operator-facing history of connection
// state changes and errors.
package timeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"opsconsole/internal/domain"
)

// DefaultMaxEntries caps the timeline when no size is configured.
const DefaultMaxEntries = 200

// Kind distinguishes timeline rows.
type Kind string

const (
	KindConnectionState Kind = "connection_state"
	KindConnectionError Kind = "connection_error"
)

// Entry is one timeline row.
type Entry struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
	Title     string    `json:"title"`
	Detail    string    `json:"detail,omitempty"`
}

// Store holds entries newest first.
type Store struct {
	mu      sync.RWMutex
	entries []Entry
	max     int
	entropy *ulid.MonotonicEntropy
	logger  *slog.Logger
}

// New creates a store holding at most maxEntries rows.
func New(maxEntries int, logger *slog.Logger) *Store {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		max:     maxEntries,
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
		logger:  logger,
	}
}

// Observe records connection state and error events from bus until the
// returned function is called.
func (s *Store) Observe(bus domain.EventBus) func() {
	unsubState := bus.Subscribe(domain.EventConnectionState, s.handleState)
	unsubErr := bus.Subscribe(domain.EventConnectionError, s.handleError)
	return func() {
		unsubState()
		unsubErr()
	}
}

// Handle records ev if it is a state or error event and reports whether a
// row was added. Subscribers that render the timeline call it from their
// own handler so the rows are in place before they redraw.
func (s *Store) Handle(_ context.Context, ev domain.Event) bool {
	switch ev.Type {
	case domain.EventConnectionState:
		return s.recordStateEvent(ev)
	case domain.EventConnectionError:
		return s.recordErrorEvent(ev)
	}
	return false
}

func (s *Store) handleState(_ context.Context, ev domain.Event) { s.recordStateEvent(ev) }

func (s *Store) handleError(_ context.Context, ev domain.Event) { s.recordErrorEvent(ev) }

func (s *Store) recordStateEvent(ev domain.Event) bool {
	var p domain.StatePayload
	if err := json.Unmarshal(ev.Payload, &p); err != nil {
		s.logger.Warn("timeline: bad state payload", "error", err)
		return false
	}
	s.RecordState(p.Current, ev.Timestamp)
	return true
}

func (s *Store) recordErrorEvent(ev domain.Event) bool {
	var p domain.ErrorPayload
	if err := json.Unmarshal(ev.Payload, &p); err != nil {
		s.logger.Warn("timeline: bad error payload", "error", err)
		return false
	}
	at := p.LastEmittedAt
	if at.IsZero() {
		at = ev.Timestamp
	}
	s.RecordError(p.Message, at)
	return true
}

// RecordState appends a row for a state change observed at at.
func (s *Store) RecordState(state domain.ConnectionState, at time.Time) {
	var title, detail string
	switch state.Phase {
	case domain.PhaseConnected:
		title = "Gateway connected"
	case domain.PhaseAuthFailed:
		title = "Gateway auth failed"
		detail = "Update your token in Settings, then reconnect."
	case domain.PhaseReconnecting:
		title = "Gateway reconnecting"
		if secs := int(state.NextRetryAt.Sub(at) / time.Second); secs > 0 {
			detail = fmt.Sprintf("Retrying in ~%ds", secs)
		} else {
			detail = "Retrying now"
		}
	default:
		title = "Gateway disconnected"
	}
	s.append(Entry{Kind: KindConnectionState, Timestamp: at, Title: title, Detail: detail})
}

// RecordError appends a row for an error message.
func (s *Store) RecordError(message string, at time.Time) {
	s.append(Entry{Kind: KindConnectionError, Timestamp: at, Title: "Connection error", Detail: message})
}

// Entries returns a copy of the rows, newest first.
func (s *Store) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Entry(nil), s.entries...)
}

// Len returns the number of rows.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Clear drops every row.
func (s *Store) Clear() {
	s.mu.Lock()
	s.entries = nil
	s.mu.Unlock()
}

func (s *Store) append(e Entry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = ulid.MustNew(ulid.Timestamp(e.Timestamp), s.entropy).String()
	s.entries = append([]Entry{e}, s.entries...)
	if len(s.entries) > s.max {
		s.entries = s.entries[:s.max]
	}
}
