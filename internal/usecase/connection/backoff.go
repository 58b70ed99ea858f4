package connection

import (
	"math"
	"math/rand/v2"
	"time"

	"opsconsole/internal/domain"
)

// Default backoff settings.
const (
	defaultBaseBackoff = 1 * time.Second
	defaultMaxBackoff  = 30 * time.Second
	defaultMinBackoff  = 500 * time.Millisecond
	defaultMaxExponent = 8
	defaultJitterLow   = 0.6
	defaultJitterHigh  = 1.4
)

// BackoffPolicy shapes the retry delay after consecutive failures.
type BackoffPolicy struct {
	Base        time.Duration
	Max         time.Duration
	Min         time.Duration // floor applied after jitter
	MaxExponent int
	JitterLow   float64
	JitterHigh  float64
}

// DefaultBackoffPolicy returns 1s base, 30s cap, 0.5s floor and jitter in [0.6, 1.4].
func DefaultBackoffPolicy() BackoffPolicy {
	return BackoffPolicy{
		Base:        defaultBaseBackoff,
		Max:         defaultMaxBackoff,
		Min:         defaultMinBackoff,
		MaxExponent: defaultMaxExponent,
		JitterLow:   defaultJitterLow,
		JitterHigh:  defaultJitterHigh,
	}
}

// withDefaults fills zero fields so a partially configured policy still works.
func (p BackoffPolicy) withDefaults() BackoffPolicy {
	d := DefaultBackoffPolicy()
	if p.Base <= 0 {
		p.Base = d.Base
	}
	if p.Max <= 0 {
		p.Max = d.Max
	}
	if p.Min <= 0 {
		p.Min = d.Min
	}
	if p.Min > p.Max {
		p.Min = p.Max
	}
	if p.MaxExponent <= 0 {
		p.MaxExponent = d.MaxExponent
	}
	if p.JitterLow <= 0 || p.JitterHigh < p.JitterLow {
		p.JitterLow, p.JitterHigh = d.JitterLow, d.JitterHigh
	}
	return p
}

// Delay returns the wait before the next attempt after failures consecutive
// failures, given a jitter multiplier. The multiplier is clamped to the
// policy's jitter range and the result to [Min, Max].
func (p BackoffPolicy) Delay(failures int, jitter float64) time.Duration {
	exp := min(max(failures, 1), p.MaxExponent)
	raw := min(float64(p.Max), float64(p.Base)*math.Pow(2, float64(exp-1)))
	jitter = min(max(jitter, p.JitterLow), p.JitterHigh)
	d := raw * jitter
	d = min(max(d, float64(p.Min)), float64(p.Max))
	return time.Duration(math.Round(d))
}

// Scheduler tracks consecutive failures and the refresh schedule. It is not
// safe for concurrent use; the Monitor serializes access under its lock.
type Scheduler struct {
	policy       BackoffPolicy
	pollInterval time.Duration
	now          func() time.Time
	jitter       func() float64

	failures int
	obs      domain.BackoffObservation
}

// NewScheduler creates a scheduler. now and jitter may be nil, in which case
// wall-clock time and a uniform draw from the policy's jitter range are used.
func NewScheduler(policy BackoffPolicy, pollInterval time.Duration, now func() time.Time, jitter func() float64) *Scheduler {
	policy = policy.withDefaults()
	if now == nil {
		now = time.Now
	}
	if jitter == nil {
		lo, hi := policy.JitterLow, policy.JitterHigh
		jitter = func() float64 { return lo + rand.Float64()*(hi-lo) }
	}
	return &Scheduler{
		policy:       policy,
		pollInterval: pollInterval,
		now:          now,
		jitter:       jitter,
	}
}

// SetPollInterval changes the interval used to schedule the refresh after a success.
func (s *Scheduler) SetPollInterval(d time.Duration) { s.pollInterval = d }

// Policy returns the effective backoff policy.
func (s *Scheduler) Policy() BackoffPolicy { return s.policy }

// RecordAttempt stamps the start of an attempt.
func (s *Scheduler) RecordAttempt() {
	s.obs.LastAttemptAt = s.now()
}

// RecordSuccess clears the failure streak and schedules the next poll.
func (s *Scheduler) RecordSuccess() {
	s.failures = 0
	s.obs.LastResult = "success"
	s.obs.CurrentBackoff = 0
	s.obs.NextScheduledRefreshAt = s.now().Add(s.pollInterval)
	s.obs.ConsecutiveFailures = 0
}

// RecordFailure extends the failure streak and returns the delay before the next attempt.
func (s *Scheduler) RecordFailure(reason string) time.Duration {
	s.failures++
	delay := s.policy.Delay(s.failures, s.jitter())
	s.obs.LastResult = "failure: " + reason
	s.obs.CurrentBackoff = delay
	s.obs.NextScheduledRefreshAt = s.now().Add(delay)
	s.obs.ConsecutiveFailures = s.failures
	return delay
}

// ResetForManualRetry keeps the scheduler in failing mode but schedules the
// next attempt immediately.
func (s *Scheduler) ResetForManualRetry() {
	s.failures = max(s.failures, 1)
	s.obs.CurrentBackoff = 0
	s.obs.NextScheduledRefreshAt = s.now()
	s.obs.ConsecutiveFailures = s.failures
}

// ConsecutiveFailures returns the current failure streak.
func (s *Scheduler) ConsecutiveFailures() int { return s.failures }

// Observation returns a copy of the scheduler's bookkeeping.
func (s *Scheduler) Observation() domain.BackoffObservation { return s.obs }
