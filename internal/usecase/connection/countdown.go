package connection

import (
	"context"
	"math"
	"time"

	"opsconsole/internal/domain"
)

// startCountdownLocked begins a new countdown run towards target. Every run
// gets a fresh token; a run whose token is no longer current writes nothing.
func (m *Monitor) startCountdownLocked(target, now time.Time) []domain.Event {
	if m.countdownCancel != nil {
		m.countdownCancel()
	}
	m.countdownToken++
	token := m.countdownToken

	secs := secondsUntil(target, now)
	m.countdown = Countdown{Seconds: secs, Active: true}

	ctx, cancel := context.WithCancel(context.Background())
	m.countdownCancel = cancel
	go m.runCountdown(ctx, token, target)

	return []domain.Event{domain.NewEvent(domain.EventConnectionCountdown, now, domain.CountdownPayload{Seconds: secs, Active: true})}
}

// stopCountdownLocked invalidates the current run and clears the value.
func (m *Monitor) stopCountdownLocked(now time.Time) []domain.Event {
	m.countdownToken++
	if m.countdownCancel != nil {
		m.countdownCancel()
		m.countdownCancel = nil
	}
	if !m.countdown.Active {
		return nil
	}
	m.countdown = Countdown{}
	return []domain.Event{domain.NewEvent(domain.EventConnectionCountdown, now, domain.CountdownPayload{})}
}

func (m *Monitor) runCountdown(ctx context.Context, token uint64, target time.Time) {
	t := time.NewTicker(m.cfg.CountdownTick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		remaining := secondsUntil(target, m.now())
		if !m.publishCountdown(token, remaining) || remaining <= 0 {
			return
		}
	}
}

// publishCountdown commits remaining if token is still the active run.
// Cancelling a run does not stop a tick already past its select, so the
// token check is what keeps stale values out.
func (m *Monitor) publishCountdown(token uint64, remaining int) bool {
	now := m.now()
	m.mu.Lock()
	if token != m.countdownToken {
		m.mu.Unlock()
		return false
	}
	m.countdown = Countdown{Seconds: remaining, Active: true}
	m.publishLocked(context.Background(), []domain.Event{
		domain.NewEvent(domain.EventConnectionCountdown, now, domain.CountdownPayload{Seconds: remaining, Active: true}),
	})
	m.mu.Unlock()
	return true
}

func secondsUntil(target, now time.Time) int {
	d := target.Sub(now)
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}
