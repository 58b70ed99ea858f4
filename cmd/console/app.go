package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"opsconsole/internal/adapter/gateway"
	"opsconsole/internal/domain"
	"opsconsole/internal/infra/config"
	"opsconsole/internal/infra/logger"
	"opsconsole/internal/infra/tracer"
	"opsconsole/internal/usecase/connection"
	"opsconsole/internal/usecase/eventbus"
)

// app holds what every command needs: config, logging, tracing and the bus.
type app struct {
	cfg      *config.Config
	cfgPath  string
	log      *slog.Logger
	bus      *eventbus.Bus
	scenario gateway.Scenario // empty unless --mock

	closeLog      func() error
	shutdownTrace func(context.Context) error
}

func newApp(ctx context.Context, opts *rootOptions) (*app, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.profile != "" {
		p, ok := cfg.Profile(opts.profile)
		if !ok {
			return nil, domain.NewDomainError("profile", domain.ErrInvalidInput,
				fmt.Sprintf("no profile named %q in %s", opts.profile, opts.configPath))
		}
		cfg.Gateway.ActiveProfile = p.Name
	}

	a := &app{cfg: cfg, cfgPath: opts.configPath}
	if opts.mock != "" {
		if a.scenario, err = gateway.ParseScenario(opts.mock); err != nil {
			return nil, err
		}
	}

	a.log, a.closeLog, err = logger.New(cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	a.shutdownTrace, err = tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		a.closeLog()
		return nil, fmt.Errorf("tracer: %w", err)
	}
	a.bus = eventbus.New(a.log)
	return a, nil
}

// Close flushes spans and closes the bus and the log output.
func (a *app) Close() {
	a.bus.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.shutdownTrace(ctx); err != nil {
		a.log.Warn("tracer shutdown", "error", err)
	}
	a.closeLog()
}

// clientFor builds a client for the named profile and returns it with the
// profile's normalized base URL. oneShot wraps the client in the circuit
// breaker when it is enabled; the monitor loop has its own backoff.
func (a *app) clientFor(name string, oneShot bool) (domain.GatewayClient, string, error) {
	if a.scenario != "" {
		return gateway.NewMockClient(a.scenario), "mock://" + string(a.scenario), nil
	}

	gw, err := a.cfg.GatewayFor(name)
	if err != nil {
		return nil, "", err
	}

	t := a.cfg.Gateway.Timeouts
	var client domain.GatewayClient = gateway.NewClient(gw,
		gateway.WithTimeouts(t.Connect, t.Request, t.Receive),
		gateway.WithClientIdentity(a.identity()),
		gateway.WithLogger(a.log),
	)

	cb := a.cfg.Gateway.CircuitBreaker
	if oneShot && cb.Enabled {
		client = gateway.NewBreakerClient(client, name, gateway.BreakerConfig{
			MaxFailures: cb.MaxFailures,
			Timeout:     cb.Timeout,
			Interval:    cb.Interval,
		}, a.log)
	}
	return client, gw.BaseURL, nil
}

func (a *app) identity() gateway.ClientIdentity {
	id := gateway.DefaultClientIdentity()
	if c := a.cfg.Gateway.Client; c.ID != "" {
		id.ID = c.ID
		if c.Version != "" {
			id.Version = c.Version
		}
	}
	return id
}

// newMonitor builds a monitor for client with the configured tuning.
func (a *app) newMonitor(client domain.GatewayClient) *connection.Monitor {
	m := a.cfg.Monitor
	cfg := connection.DefaultConfig()
	cfg.PollInterval = m.PollInterval
	cfg.InactivePollInterval = m.InactivePollInterval
	cfg.ErrorDedupeWindow = m.ErrorDedupeWindow
	cfg.Backoff.Base = m.BackoffBase
	cfg.Backoff.Max = m.BackoffMax
	return connection.NewMonitor(client, a.bus, cfg, a.log)
}

// applyForcedState pins a simulated state when OPSCONSOLE_FORCE_STATE is set.
func (a *app) applyForcedState(mon *connection.Monitor) bool {
	raw := os.Getenv(connection.ForceStateEnv)
	f, ok := connection.ParseForcedState(raw, time.Now())
	if !ok {
		return false
	}
	a.log.Info("using forced connection state", "state", f.State.String())
	mon.ApplyForced(f)
	return true
}
