// Package dashboard implements the interactive connection dashboard.
package dashboard

import (
	"time"

	"opsconsole/internal/domain"
	"opsconsole/internal/usecase/connection"
)

// EventBusMsg wraps a domain.Event from the EventBus subscription.
type EventBusMsg struct {
	Event domain.Event
}

// StatusResultMsg carries the result of a status fetch.
type StatusResultMsg struct {
	Status domain.GatewayStatus
	Err    error
}

// NodesResultMsg carries the result of a node.list fetch.
type NodesResultMsg struct {
	Nodes []domain.NodeSummary
	Err   error
	At    time.Time
}

// TestResultMsg carries the outcome of a manual connection test.
type TestResultMsg struct {
	Result connection.TestResult
}

// ProfileSwitchedMsg reports the outcome of switching the active profile.
type ProfileSwitchedMsg struct {
	Name    string
	BaseURL string
	Err     error
}

type nodeTickMsg struct{}

type clearNoticeMsg struct{ seq int }
