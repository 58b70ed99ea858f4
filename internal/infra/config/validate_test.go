package config

import (
	"errors"
	"strings"
	"testing"
	"time"

	"opsconsole/internal/domain"
)

func TestValidateDefaultsPass(t *testing.T) {
	if err := Validate(Defaults()); err != nil {
		t.Fatalf("Defaults should pass validation: %v", err)
	}
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Monitor.PollInterval = 0
	cfg.Logger.Level = "loud"
	cfg.Console.TimelineSize = 0

	err := Validate(cfg)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want *ValidationError", err)
	}
	if len(ve.Errors) != 3 {
		t.Errorf("got %d errors, want 3: %v", len(ve.Errors), ve.Errors)
	}
}

func TestValidateGatewayProfiles(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"no profiles", func(c *Config) { c.Gateway.Profiles = nil }, "gateway.profiles must not be empty"},
		{"unnamed", func(c *Config) { c.Gateway.Profiles[0].Name = " " }, "gateway.profiles[0].name is required"},
		{"duplicate", func(c *Config) {
			c.Gateway.Profiles = append(c.Gateway.Profiles, ProfileConfig{Name: "local", BaseURL: DefaultBaseURL})
		}, "duplicate profile name"},
		{"bad url", func(c *Config) { c.Gateway.Profiles[0].BaseURL = "" }, "Base URL is required."},
		{"missing active", func(c *Config) { c.Gateway.ActiveProfile = "prod" }, `gateway.active_profile "prod"`},
		{"timeouts", func(c *Config) { c.Gateway.Timeouts.Receive = 0 }, "gateway.timeouts"},
		{"client id", func(c *Config) { c.Gateway.Client.ID = "" }, "gateway.client.id must not be empty"},
		{"breaker", func(c *Config) {
			c.Gateway.CircuitBreaker.Enabled = true
			c.Gateway.CircuitBreaker.MaxFailures = 0
		}, "gateway.circuit_breaker.max_failures"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			assertContains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateMonitorIntervals(t *testing.T) {
	cfg := Defaults()
	cfg.Monitor.InactivePollInterval = 5 * time.Second
	cfg.Monitor.BackoffMax = 100 * time.Millisecond
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	assertContains(t, err.Error(), "monitor.inactive_poll_interval must be >= monitor.poll_interval")
	assertContains(t, err.Error(), "monitor.backoff_base must be > 0 and <= monitor.backoff_max")
}

func TestValidateTracerExporterOnlyWhenEnabled(t *testing.T) {
	cfg := Defaults()
	cfg.Tracer.Exporter = "jaeger"
	if err := Validate(cfg); err != nil {
		t.Errorf("disabled tracer should not be checked: %v", err)
	}
	cfg.Tracer.Enabled = true
	if err := Validate(cfg); err == nil {
		t.Error("expected error for unknown exporter")
	}
}

func TestNormalizeBaseURL(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		problem string
	}{
		{"http://127.0.0.1:18789", "http://127.0.0.1:18789", ""},
		{"  https://gw.example.com:443  ", "https://gw.example.com:443", ""},
		{"http://127.0.0.1", "http://127.0.0.1:18789", ""},
		{"ws://[::1]", "ws://[::1]:18789", ""},
		{"wss://gw.example.com/", "wss://gw.example.com:18789", ""},
		{"", "", problemRequired},
		{"   ", "", problemRequired},
		{"127.0.0.1:18789", "", problemInvalid},
		{"gateway.local", "", problemInvalid},
		{"ftp://127.0.0.1:18789", "", problemScheme},
		{"http://", "", problemHost},
		{"http://127.0.0.1:18789/ws", "", problemPath},
		{"http://127.0.0.1:18789?x=1", "", problemQuery},
		{"http://127.0.0.1:18789#frag", "", problemQuery},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := NormalizeBaseURL(tt.raw)
			if tt.problem == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if got != tt.want {
					t.Errorf("got %q, want %q", got, tt.want)
				}
				return
			}
			if !errors.Is(err, domain.ErrInvalidBaseURL) {
				t.Fatalf("err = %v, want ErrInvalidBaseURL", err)
			}
			if p := BaseURLProblem(err); p != tt.problem {
				t.Errorf("problem = %q, want %q", p, tt.problem)
			}
		})
	}
}

func assertContains(t *testing.T, s, substr string) {
	t.Helper()
	if !strings.Contains(s, substr) {
		t.Errorf("expected %q to contain %q", s, substr)
	}
}
