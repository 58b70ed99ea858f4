package connection

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"opsconsole/internal/domain"
)

// Default monitor tuning.
const (
	defaultPollInterval         = 15 * time.Second
	defaultInactivePollInterval = 120 * time.Second
	defaultErrorDedupeWindow    = 10 * time.Second
	defaultSleepQuantum         = 250 * time.Millisecond
	defaultCountdownTick        = time.Second
)

// Config tunes the monitor loop.
type Config struct {
	PollInterval         time.Duration
	InactivePollInterval time.Duration
	Backoff              BackoffPolicy
	ErrorDedupeWindow    time.Duration
	SleepQuantum         time.Duration
	CountdownTick        time.Duration
}

// DefaultConfig returns the production tuning.
func DefaultConfig() Config {
	return Config{
		PollInterval:         defaultPollInterval,
		InactivePollInterval: defaultInactivePollInterval,
		Backoff:              DefaultBackoffPolicy(),
		ErrorDedupeWindow:    defaultErrorDedupeWindow,
		SleepQuantum:         defaultSleepQuantum,
		CountdownTick:        defaultCountdownTick,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.InactivePollInterval <= 0 {
		c.InactivePollInterval = d.InactivePollInterval
	}
	if c.ErrorDedupeWindow <= 0 {
		c.ErrorDedupeWindow = d.ErrorDedupeWindow
	}
	if c.SleepQuantum <= 0 {
		c.SleepQuantum = d.SleepQuantum
	}
	if c.CountdownTick <= 0 {
		c.CountdownTick = d.CountdownTick
	}
	c.Backoff = c.Backoff.withDefaults()
	return c
}

// Countdown is the seconds-until-retry value shown while reconnecting.
type Countdown struct {
	Seconds int  `json:"seconds"`
	Active  bool `json:"active"`
}

// Snapshot is a consistent copy of everything the monitor publishes.
type Snapshot struct {
	State             domain.ConnectionState    `json:"state"`
	LastError         *domain.ConnectionError   `json:"last_error,omitempty"`
	Backoff           domain.BackoffObservation `json:"backoff"`
	Countdown         Countdown                 `json:"countdown"`
	LastHealthCheckAt time.Time                 `json:"last_health_check_at,omitzero"`
	Active            bool                      `json:"active"`
	Running           bool                      `json:"running"`
}

// Monitor owns the connection state machine. It is the only writer of
// state, last error and backoff bookkeeping; readers use Snapshot or
// subscribe to the event bus.
type Monitor struct {
	cfg    Config
	bus    domain.EventBus
	logger *slog.Logger
	now    func() time.Time

	statusCalls singleflight.Group
	nodeCalls   singleflight.Group

	mu                sync.RWMutex
	client            domain.GatewayClient
	generation        uint64
	state             domain.ConnectionState
	lastError         *domain.ConnectionError
	sched             *Scheduler
	countdown         Countdown
	countdownToken    uint64
	countdownCancel   context.CancelFunc
	lastHealthCheckAt time.Time
	active            bool
	refreshRequested  bool

	parent     context.Context
	loopCancel context.CancelFunc
	loopDone   chan struct{}

	// flights bounds every network call; Stop cancels it and starts a new one.
	flights     context.Context
	stopFlights context.CancelFunc
}

// NewMonitor creates a monitor around client. bus may be nil.
func NewMonitor(client domain.GatewayClient, bus domain.EventBus, cfg Config, logger *slog.Logger) *Monitor {
	return newMonitor(client, bus, cfg, logger, nil, nil)
}

func newMonitor(client domain.GatewayClient, bus domain.EventBus, cfg Config, logger *slog.Logger, now func() time.Time, jitter func() float64) *Monitor {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	flights, stopFlights := context.WithCancel(context.Background())
	return &Monitor{
		cfg:         cfg,
		bus:         bus,
		logger:      logger,
		now:         now,
		client:      client,
		state:       domain.Disconnected(),
		sched:       NewScheduler(cfg.Backoff, cfg.PollInterval, now, jitter),
		active:      true,
		flights:     flights,
		stopFlights: stopFlights,
	}
}

// Snapshot returns the current published state.
func (m *Monitor) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := Snapshot{
		State:             m.state,
		Backoff:           m.sched.Observation(),
		Countdown:         m.countdown,
		LastHealthCheckAt: m.lastHealthCheckAt,
		Active:            m.active,
		Running:           m.loopCancel != nil,
	}
	if m.lastError != nil {
		e := *m.lastError
		s.LastError = &e
	}
	return s
}

// State returns the current connection state.
func (m *Monitor) State() domain.ConnectionState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Client returns the client currently in use.
func (m *Monitor) Client() domain.GatewayClient {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.client
}

// FetchStatus calls the gateway status method. Concurrent callers share one
// network call. The outcome is recorded before the error is returned.
func (m *Monitor) FetchStatus(ctx context.Context) (domain.GatewayStatus, error) {
	return coalesce(ctx, m, &m.statusCalls, "status", true, func(ctx context.Context, c domain.GatewayClient) (domain.GatewayStatus, error) {
		return c.FetchStatus(ctx)
	})
}

// FetchNodes calls the gateway node list method with the same sharing and
// recording rules as FetchStatus.
func (m *Monitor) FetchNodes(ctx context.Context) ([]domain.NodeSummary, error) {
	return coalesce(ctx, m, &m.nodeCalls, "nodes", false, func(ctx context.Context, c domain.GatewayClient) ([]domain.NodeSummary, error) {
		return c.FetchNodes(ctx)
	})
}

// TestConnection runs one status check and returns its error.
func (m *Monitor) TestConnection(ctx context.Context) error {
	_, err := m.FetchStatus(ctx)
	return err
}

// coalesce joins or starts the flight for op under the current client
// generation. The flight runs detached from the first caller's cancellation
// so later joiners are not failed by it; each caller still stops waiting
// when its own ctx ends. Stop cancels every flight.
func coalesce[T any](ctx context.Context, m *Monitor, g *singleflight.Group, op string, health bool, call func(context.Context, domain.GatewayClient) (T, error)) (T, error) {
	var zero T

	m.mu.RLock()
	client, gen, flights := m.client, m.generation, m.flights
	m.mu.RUnlock()
	if client == nil {
		return zero, domain.NewDomainError("Monitor."+op, domain.ErrInvalidInput, "no gateway client")
	}

	ch := g.DoChan(fmt.Sprintf("%s/%d", op, gen), func() (any, error) {
		flightCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		defer cancel()
		defer context.AfterFunc(flights, cancel)()

		if health {
			m.mu.Lock()
			if gen == m.generation {
				m.sched.RecordAttempt()
			}
			m.mu.Unlock()
		}
		v, err := call(flightCtx, client)
		if err != nil {
			m.recordFailure(flightCtx, gen, health, err)
			return nil, err
		}
		m.recordSuccess(flightCtx, gen, health, v)
		return v, nil
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return zero, r.Err
		}
		return r.Val.(T), nil
	}
}

func (m *Monitor) recordSuccess(ctx context.Context, gen uint64, health bool, v any) {
	now := m.now()

	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		return
	}
	m.sched.RecordSuccess()
	m.lastError = nil
	var events []domain.Event
	if health {
		m.lastHealthCheckAt = now
		st, _ := v.(domain.GatewayStatus)
		events = append(events, domain.NewEvent(domain.EventHealthChecked, now, domain.HealthPayload{At: now, OK: true, Status: st}))
	}
	events = append(events, m.stopCountdownLocked(now)...)
	events = append(events, m.setStateLocked(domain.Connected(), now)...)
	m.publishLocked(ctx, events)
	m.mu.Unlock()
}

func (m *Monitor) recordFailure(ctx context.Context, gen uint64, health bool, err error) {
	now := m.now()
	class := domain.Classify(err)
	msg := domain.PresentError(err)

	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		return
	}
	delay := m.sched.RecordFailure(msg)

	var events []domain.Event
	if health {
		m.lastHealthCheckAt = now
		events = append(events, domain.NewEvent(domain.EventHealthChecked, now, domain.HealthPayload{At: now, OK: false}))
	}
	if e, emit := m.noteErrorLocked(msg, now); emit {
		events = append(events, domain.NewEvent(domain.EventConnectionError, now, domain.ErrorPayload{ConnectionError: e, Class: class.String()}))
	}

	var next domain.ConnectionState
	switch {
	case class == domain.ClassAuth:
		next = domain.AuthFailed()
	case class == domain.ClassInvalidConfig || m.loopCancel == nil:
		next = domain.Disconnected()
	default:
		next = domain.Reconnecting(now.Add(delay))
	}
	if next.Phase == domain.PhaseReconnecting {
		events = append(events, m.startCountdownLocked(next.NextRetryAt, now)...)
	} else {
		events = append(events, m.stopCountdownLocked(now)...)
	}
	events = append(events, m.setStateLocked(next, now)...)
	m.publishLocked(ctx, events)
	failures := m.sched.ConsecutiveFailures()
	m.mu.Unlock()

	m.logger.Warn("gateway call failed",
		"class", class.String(),
		"failures", failures,
		"delay", delay,
		"error", err,
	)
}

// noteErrorLocked folds msg into lastError. An identical message within the
// dedupe window only moves LastEmittedAt; the returned bool reports whether
// a new record was created.
func (m *Monitor) noteErrorLocked(msg string, now time.Time) (domain.ConnectionError, bool) {
	if e := m.lastError; e != nil && e.Message == msg && now.Sub(e.LastEmittedAt) < m.cfg.ErrorDedupeWindow {
		e.LastEmittedAt = now
		return *e, false
	}
	m.lastError = &domain.ConnectionError{Message: msg, FirstSeenAt: now, LastEmittedAt: now}
	return *m.lastError, true
}

func (m *Monitor) setStateLocked(next domain.ConnectionState, now time.Time) []domain.Event {
	prev := m.state
	if prev.Equal(next) {
		return nil
	}
	m.state = next
	return []domain.Event{domain.NewEvent(domain.EventConnectionState, now, domain.StatePayload{Previous: prev, Current: next})}
}

// publishLocked hands events to the bus while m.mu is held so subscribers
// see them in commit order. The bus only enqueues; handlers never run on
// this goroutine.
func (m *Monitor) publishLocked(ctx context.Context, events []domain.Event) {
	if m.bus == nil {
		return
	}
	for _, ev := range events {
		m.bus.Publish(ctx, ev)
	}
}

// Start launches the polling loop. It is a no-op when the loop is already
// running. The loop ends when ctx is done or Stop is called.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loopCancel != nil {
		return
	}
	m.parent = ctx
	m.startLoopLocked()
	m.logger.Info("connection monitor started")
}

// startLoopLocked replaces the running loop, if any. The new loop waits for
// the old one to exit so at most one loop body runs at a time.
func (m *Monitor) startLoopLocked() {
	if m.loopCancel != nil {
		m.loopCancel()
	}
	parent := m.parent
	if parent == nil {
		parent = context.Background()
	}
	prev := m.loopDone
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})
	m.loopCancel, m.loopDone = cancel, done

	go func() {
		defer close(done)
		if prev != nil {
			<-prev
		}
		m.run(ctx)
	}()
}

// Stop cancels the loop, the countdown and any call in flight, then waits
// for the loop to exit. Outcomes of cancelled calls are not recorded.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel, done := m.loopCancel, m.loopDone
	m.loopCancel = nil
	m.stopFlights()
	m.flights, m.stopFlights = context.WithCancel(context.Background())
	m.generation++
	m.publishLocked(context.Background(), m.stopCountdownLocked(m.now()))
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	m.logger.Info("connection monitor stopped")
}

// RetryNow schedules an immediate attempt and restarts the loop, cutting
// short any sleep in progress.
func (m *Monitor) RetryNow() {
	now := m.now()

	m.mu.Lock()
	m.sched.ResetForManualRetry()
	m.stopCountdownLocked(now)
	m.countdown = Countdown{Seconds: 0, Active: true}
	events := []domain.Event{domain.NewEvent(domain.EventConnectionCountdown, now, domain.CountdownPayload{Seconds: 0, Active: true})}
	events = append(events, m.setStateLocked(domain.Reconnecting(now), now)...)
	m.publishLocked(context.Background(), events)
	m.startLoopLocked()
	m.mu.Unlock()

	m.logger.Info("manual retry requested")
}

// UpdateClient swaps the gateway client and retries immediately. A call in
// flight on the old client may finish, but its outcome is discarded and
// new callers never join it.
func (m *Monitor) UpdateClient(client domain.GatewayClient) {
	now := m.now()

	m.mu.Lock()
	m.client = client
	m.generation++
	gen := m.generation
	m.publishLocked(context.Background(), []domain.Event{domain.NewEvent(domain.EventClientSwapped, now, nil)})
	m.mu.Unlock()

	m.logger.Info("gateway client swapped", "generation", gen)
	m.RetryNow()
}

// SetActive switches between the foreground and background poll interval.
// Going from inactive to active requests one immediate poll.
func (m *Monitor) SetActive(active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if active && !m.active {
		m.refreshRequested = true
	}
	m.active = active
	m.sched.SetPollInterval(m.pollIntervalLocked())
}

func (m *Monitor) pollIntervalLocked() time.Duration {
	if m.active {
		return m.cfg.PollInterval
	}
	return m.cfg.InactivePollInterval
}

func (m *Monitor) run(ctx context.Context) {
	for {
		m.mu.Lock()
		m.refreshRequested = false
		m.mu.Unlock()

		if _, err := m.FetchStatus(ctx); err != nil && ctx.Err() == nil {
			m.logger.Debug("status poll failed", "error", err)
		}
		if !m.waitForNextRefresh(ctx) {
			return
		}
	}
}

// waitForNextRefresh sleeps in quanta until the scheduler's next refresh
// time or until a refresh is requested. It always sleeps at least one
// quantum and reports false when ctx ends.
func (m *Monitor) waitForNextRefresh(ctx context.Context) bool {
	t := time.NewTicker(m.cfg.SleepQuantum)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return false
		case <-t.C:
		}
		m.mu.RLock()
		due := m.refreshRequested || !m.now().Before(m.sched.Observation().NextScheduledRefreshAt)
		m.mu.RUnlock()
		if due {
			return true
		}
	}
}
