package domain

import (
	"fmt"
	"time"
)

// ConnectionPhase names the variant of a ConnectionState.
type ConnectionPhase string

const (
	PhaseConnected    ConnectionPhase = "connected"
	PhaseReconnecting ConnectionPhase = "reconnecting"
	PhaseDisconnected ConnectionPhase = "disconnected"
	PhaseAuthFailed   ConnectionPhase = "auth_failed"
)

// ConnectionState is the monitor's view of gateway reachability.
// NextRetryAt is only meaningful in PhaseReconnecting.
type ConnectionState struct {
	Phase       ConnectionPhase `json:"phase"`
	NextRetryAt time.Time       `json:"next_retry_at,omitzero"`
}

func Connected() ConnectionState    { return ConnectionState{Phase: PhaseConnected} }
func Disconnected() ConnectionState { return ConnectionState{Phase: PhaseDisconnected} }
func AuthFailed() ConnectionState   { return ConnectionState{Phase: PhaseAuthFailed} }

func Reconnecting(nextRetryAt time.Time) ConnectionState {
	return ConnectionState{Phase: PhaseReconnecting, NextRetryAt: nextRetryAt}
}

// Equal compares phase and, for reconnecting states, the retry time.
func (s ConnectionState) Equal(o ConnectionState) bool {
	if s.Phase != o.Phase {
		return false
	}
	return s.Phase != PhaseReconnecting || s.NextRetryAt.Equal(o.NextRetryAt)
}

// DisplayName is the short label shown in the console header.
func (s ConnectionState) DisplayName() string {
	switch s.Phase {
	case PhaseConnected:
		return "Connected"
	case PhaseReconnecting:
		return "Reconnecting"
	case PhaseAuthFailed:
		return "Auth failed"
	default:
		return "Disconnected"
	}
}

func (s ConnectionState) String() string {
	if s.Phase == PhaseReconnecting {
		return fmt.Sprintf("%s(next=%s)", s.Phase, s.NextRetryAt.Format(time.RFC3339))
	}
	return string(s.Phase)
}

// ConnectionError is the deduplicated last error shown in the banner.
type ConnectionError struct {
	Message       string    `json:"message"`
	FirstSeenAt   time.Time `json:"first_seen_at"`
	LastEmittedAt time.Time `json:"last_emitted_at"`
}

// BackoffObservation exposes the scheduler's bookkeeping for display.
type BackoffObservation struct {
	LastAttemptAt          time.Time     `json:"last_attempt_at,omitzero"`
	LastResult             string        `json:"last_result,omitempty"` // "success" or "failure: <reason>"
	NextScheduledRefreshAt time.Time     `json:"next_scheduled_refresh_at,omitzero"`
	CurrentBackoff         time.Duration `json:"current_backoff"`
	ConsecutiveFailures    int           `json:"consecutive_failures"`
}
