package connection

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced clock shared by scheduler and monitor tests.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{t: time.Unix(1_700_000_000, 0)} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func fixedJitter(v float64) func() float64 { return func() float64 { return v } }

func TestBackoffDelayWithoutJitter(t *testing.T) {
	p := DefaultBackoffPolicy()
	for n := 1; n <= 20; n++ {
		exp := min(n, p.MaxExponent)
		want := time.Duration(math.Min(float64(p.Max), float64(p.Base)*math.Pow(2, float64(exp-1))))
		got := p.Delay(n, 1.0)
		assert.Equal(t, want, got, "failures=%d", n)
		assert.GreaterOrEqual(t, got, p.Min)
		assert.LessOrEqual(t, got, p.Max)
	}
}

func TestBackoffDelaySequence(t *testing.T) {
	p := DefaultBackoffPolicy()
	var got []time.Duration
	for n := 1; n <= 7; n++ {
		got = append(got, p.Delay(n, 1.0))
	}
	want := []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second, 30 * time.Second, 30 * time.Second}
	assert.Equal(t, want, got)
}

func TestBackoffDelayJitterBounds(t *testing.T) {
	p := DefaultBackoffPolicy()
	tests := []struct {
		name     string
		failures int
		jitter   float64
		want     time.Duration
	}{
		{"low jitter floored", 1, 0.1, 600 * time.Millisecond},
		{"low jitter", 1, 0.6, 600 * time.Millisecond},
		{"high jitter clamped", 1, 9, 1400 * time.Millisecond},
		{"cap after jitter", 6, 1.4, 30 * time.Second},
		{"zero failures treated as one", 0, 1.0, 1 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Delay(tt.failures, tt.jitter))
		})
	}
}

func TestBackoffDelayFloor(t *testing.T) {
	p := BackoffPolicy{Base: 100 * time.Millisecond, Max: 30 * time.Second, Min: 500 * time.Millisecond, MaxExponent: 8, JitterLow: 0.6, JitterHigh: 1.4}
	assert.Equal(t, 500*time.Millisecond, p.Delay(1, 0.6))
}

func TestSchedulerRecordSuccessResets(t *testing.T) {
	clock := newFakeClock()
	s := NewScheduler(DefaultBackoffPolicy(), 15*time.Second, clock.Now, fixedJitter(1.0))

	s.RecordAttempt()
	s.RecordFailure("boom")
	s.RecordFailure("boom")
	require.Equal(t, 2, s.ConsecutiveFailures())

	clock.Advance(3 * time.Second)
	s.RecordSuccess()

	obs := s.Observation()
	assert.Equal(t, 0, s.ConsecutiveFailures())
	assert.Equal(t, "success", obs.LastResult)
	assert.Equal(t, time.Duration(0), obs.CurrentBackoff)
	assert.Equal(t, clock.Now().Add(15*time.Second), obs.NextScheduledRefreshAt)
}

func TestSchedulerRecordFailure(t *testing.T) {
	clock := newFakeClock()
	s := NewScheduler(DefaultBackoffPolicy(), 15*time.Second, clock.Now, fixedJitter(1.0))

	s.RecordAttempt()
	assert.Equal(t, clock.Now(), s.Observation().LastAttemptAt)

	d1 := s.RecordFailure("refused")
	d2 := s.RecordFailure("refused")
	d3 := s.RecordFailure("refused")

	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, []time.Duration{d1, d2, d3})
	obs := s.Observation()
	assert.Equal(t, "failure: refused", obs.LastResult)
	assert.Equal(t, 4*time.Second, obs.CurrentBackoff)
	assert.Equal(t, clock.Now().Add(4*time.Second), obs.NextScheduledRefreshAt)
	assert.Equal(t, 3, obs.ConsecutiveFailures)
}

func TestSchedulerResetForManualRetry(t *testing.T) {
	clock := newFakeClock()
	s := NewScheduler(DefaultBackoffPolicy(), 15*time.Second, clock.Now, fixedJitter(1.0))

	s.ResetForManualRetry()
	assert.Equal(t, 1, s.ConsecutiveFailures())
	assert.Equal(t, clock.Now(), s.Observation().NextScheduledRefreshAt)
	assert.Equal(t, time.Duration(0), s.Observation().CurrentBackoff)

	s.RecordFailure("x")
	s.RecordFailure("x")
	s.ResetForManualRetry()
	assert.Equal(t, 3, s.ConsecutiveFailures(), "manual retry never lowers an existing streak")

	// The streak carries into the next computed delay.
	assert.Equal(t, 8*time.Second, s.RecordFailure("x"))
}

func TestSchedulerPollIntervalChange(t *testing.T) {
	clock := newFakeClock()
	s := NewScheduler(DefaultBackoffPolicy(), 15*time.Second, clock.Now, fixedJitter(1.0))

	s.SetPollInterval(120 * time.Second)
	s.RecordSuccess()
	assert.Equal(t, clock.Now().Add(120*time.Second), s.Observation().NextScheduledRefreshAt)
}

func TestSchedulerDefaultJitterInRange(t *testing.T) {
	s := NewScheduler(DefaultBackoffPolicy(), time.Second, nil, nil)
	for i := 0; i < 200; i++ {
		d := s.RecordFailure("x")
		assert.GreaterOrEqual(t, d, 500*time.Millisecond)
		assert.LessOrEqual(t, d, 30*time.Second)
	}
}

func TestBackoffPolicyWithDefaults(t *testing.T) {
	p := BackoffPolicy{}.withDefaults()
	assert.Equal(t, DefaultBackoffPolicy(), p)
}
