package connection

import (
	"context"
	"strings"
	"time"

	"opsconsole/internal/domain"
)

// ForceStateEnv names the environment variable that pins a simulated state
// for screenshots and UI work.
const ForceStateEnv = "OPSCONSOLE_FORCE_STATE"

const (
	forcedRetryDelay   = 12 * time.Second
	forcedErrorMessage = "Connection lost (simulated)"
)

// ForcedState is a simulated monitor state.
type ForcedState struct {
	State            domain.ConnectionState
	LastError        *domain.ConnectionError
	CountdownSeconds int // zero means no countdown
}

// ParseForcedState maps a ForceStateEnv value to a simulated state. Empty,
// falsy and unknown values report false.
func ParseForcedState(raw string, now time.Time) (ForcedState, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "connected":
		return ForcedState{State: domain.Connected()}, true
	case "disconnected":
		return ForcedState{State: domain.Disconnected()}, true
	case "authfailed", "auth_failed", "auth-failed":
		return ForcedState{State: domain.AuthFailed()}, true
	case "reconnecting":
		return ForcedState{
			State:            domain.Reconnecting(now.Add(forcedRetryDelay)),
			LastError:        &domain.ConnectionError{Message: forcedErrorMessage, FirstSeenAt: now, LastEmittedAt: now},
			CountdownSeconds: int(forcedRetryDelay / time.Second),
		}, true
	default:
		return ForcedState{}, false
	}
}

// ApplyForced overwrites the published state with f. The countdown is
// static; no ticker runs for a forced state.
func (m *Monitor) ApplyForced(f ForcedState) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopCountdownLocked(now)
	if f.CountdownSeconds > 0 {
		m.countdown = Countdown{Seconds: f.CountdownSeconds, Active: true}
	}
	if f.LastError != nil {
		e := *f.LastError
		m.lastError = &e
	} else {
		m.lastError = nil
	}

	events := m.setStateLocked(f.State, now)
	if f.LastError != nil {
		events = append(events, domain.NewEvent(domain.EventConnectionError, now, domain.ErrorPayload{ConnectionError: *f.LastError, Class: domain.ClassTransient.String()}))
	}
	if f.CountdownSeconds > 0 {
		events = append(events, domain.NewEvent(domain.EventConnectionCountdown, now, domain.CountdownPayload{Seconds: f.CountdownSeconds, Active: true}))
	}
	m.publishLocked(context.Background(), events)
	m.logger.Info("forced connection state applied", "state", f.State.String())
}
