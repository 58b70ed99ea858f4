package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"opsconsole/internal/adapter/tui/dashboard"
	"opsconsole/internal/adapter/tui/dashboard/tabs"
	"opsconsole/internal/adapter/tui/theme"
	"opsconsole/internal/domain"
	"opsconsole/internal/usecase/timeline"
)

func runDashboard(ctx context.Context, opts *rootOptions) error {
	a, err := newApp(ctx, opts)
	if err != nil {
		return err
	}
	defer a.Close()
	theme.InitSymbols()

	active := a.cfg.Gateway.ActiveProfile
	client, baseURL, err := a.clientFor(active, false)
	if err != nil {
		return err
	}
	mon := a.newMonitor(client)
	var start func()
	if !a.applyForcedState(mon) {
		start = func() { mon.Start(ctx) }
	}

	// Effective config for the Config tab, after env overrides and decryption.
	effective, err := yaml.Marshal(a.cfg)
	if err != nil {
		return fmt.Errorf("render config: %w", err)
	}

	var source string
	if _, err := os.Stat(a.cfgPath); err == nil {
		source = a.cfgPath
	}

	profiles := make([]string, 0, len(a.cfg.Gateway.Profiles))
	for _, p := range a.cfg.Gateway.Profiles {
		profiles = append(profiles, p.Name)
	}

	var limiter *rate.Limiter
	if c := a.cfg.Console; c.RetryEvery > 0 {
		limiter = rate.NewLimiter(rate.Every(c.RetryEvery), c.RetryBurst)
	}

	model := dashboard.NewDashboardModel(dashboard.DashboardDeps{
		Monitor:       mon,
		Bus:           a.bus,
		Timeline:      timeline.New(a.cfg.Console.TimelineSize, a.log),
		Profiles:      profiles,
		ActiveProfile: active,
		BaseURL:       baseURL,
		SwitchProfile: func(name string) (domain.GatewayClient, string, error) {
			return a.clientFor(name, false)
		},
		StartMonitor: start,
		Config:       tabs.MaskSecrets(string(effective)),
		ConfigPath:   source,
		RetryLimiter: limiter,
		NodeRefresh:  a.cfg.Monitor.PollInterval,
	})

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithReportFocus(), tea.WithContext(ctx))
	model.SetProgramSender(func(msg tea.Msg) { p.Send(msg) })

	_, err = p.Run()
	mon.Stop()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
