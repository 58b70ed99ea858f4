package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"opsconsole/internal/domain"
)

// DefaultGatewayPort is assumed when a base URL names no port.
const DefaultGatewayPort = 18789

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// Unwrap lets callers match ErrConfigLoad.
func (v *ValidationError) Unwrap() error { return domain.ErrConfigLoad }

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg for structural correctness. It returns a *ValidationError
// listing every problem found.
func Validate(cfg *Config) error {
	ve := &ValidationError{}
	validateGateway(cfg, ve)
	validateMonitor(cfg, ve)
	validateLogger(cfg, ve)
	validateTracer(cfg, ve)
	validateConsole(cfg, ve)
	if ve.HasErrors() {
		return ve
	}
	return nil
}

func validateGateway(cfg *Config, ve *ValidationError) {
	g := cfg.Gateway
	if len(g.Profiles) == 0 {
		ve.Add("gateway.profiles must not be empty")
	}
	seen := make(map[string]bool, len(g.Profiles))
	for i, p := range g.Profiles {
		name := strings.ToLower(strings.TrimSpace(p.Name))
		if name == "" {
			ve.Add("gateway.profiles[%d].name is required", i)
			continue
		}
		if seen[name] {
			ve.Add("gateway.profiles[%d]: duplicate profile name %q", i, p.Name)
		}
		seen[name] = true
		if _, err := NormalizeBaseURL(p.BaseURL); err != nil {
			ve.Add("gateway.profiles[%d] (%s): %s", i, p.Name, BaseURLProblem(err))
		}
	}
	if len(g.Profiles) > 0 {
		if _, ok := cfg.Profile(g.ActiveProfile); !ok {
			ve.Add("gateway.active_profile %q does not name a profile", g.ActiveProfile)
		}
	}

	if g.Timeouts.Connect <= 0 || g.Timeouts.Request <= 0 || g.Timeouts.Receive <= 0 {
		ve.Add("gateway.timeouts: connect, request and receive must all be > 0")
	}
	if strings.TrimSpace(g.Client.ID) == "" {
		ve.Add("gateway.client.id must not be empty")
	}
	if g.CircuitBreaker.Enabled && g.CircuitBreaker.MaxFailures == 0 {
		ve.Add("gateway.circuit_breaker.max_failures must be > 0 when enabled")
	}
}

func validateMonitor(cfg *Config, ve *ValidationError) {
	m := cfg.Monitor
	if m.PollInterval <= 0 {
		ve.Add("monitor.poll_interval must be > 0")
	}
	if m.InactivePollInterval < m.PollInterval {
		ve.Add("monitor.inactive_poll_interval must be >= monitor.poll_interval")
	}
	if m.BackoffBase <= 0 || m.BackoffMax < m.BackoffBase {
		ve.Add("monitor.backoff_base must be > 0 and <= monitor.backoff_max")
	}
	if m.ErrorDedupeWindow < 0 {
		ve.Add("monitor.error_dedupe_window must be >= 0")
	}
}

var validLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

func validateLogger(cfg *Config, ve *ValidationError) {
	if !validLevels[strings.ToLower(cfg.Logger.Level)] {
		ve.Add("logger.level %q must be one of debug, info, warn, error", cfg.Logger.Level)
	}
	switch cfg.Logger.Format {
	case "text", "json":
	default:
		ve.Add("logger.format %q must be text or json", cfg.Logger.Format)
	}
}

func validateTracer(cfg *Config, ve *ValidationError) {
	if !cfg.Tracer.Enabled {
		return
	}
	switch cfg.Tracer.Exporter {
	case "noop", "stdout":
	default:
		ve.Add("tracer.exporter %q must be noop or stdout", cfg.Tracer.Exporter)
	}
}

func validateConsole(cfg *Config, ve *ValidationError) {
	if cfg.Console.TimelineSize <= 0 {
		ve.Add("console.timeline_size must be > 0")
	}
	if cfg.Console.RetryEvery < 0 || cfg.Console.RetryBurst <= 0 {
		ve.Add("console.retry_every must be >= 0 and console.retry_burst > 0")
	}
}

// Base URL problems, phrased for an operator editing settings.
const (
	problemRequired = "Base URL is required."
	problemInvalid  = "Invalid URL. Include a scheme like " + DefaultBaseURL
	problemScheme   = "URL must start with http://, https://, ws:// or wss://"
	problemHost     = "URL must include a host (e.g. 127.0.0.1)"
	problemPath     = "Base URL should not include a path; use e.g. " + DefaultBaseURL
	problemQuery    = "Base URL should not include query/fragment parameters"
)

type baseURLError struct {
	raw     string
	problem string
}

func (e *baseURLError) Error() string {
	return fmt.Sprintf("%s: %q: %s", domain.ErrInvalidBaseURL, e.raw, e.problem)
}

func (e *baseURLError) Unwrap() error { return domain.ErrInvalidBaseURL }

// BaseURLProblem returns the operator-facing reason err was produced by
// NormalizeBaseURL, or err's text for anything else.
func BaseURLProblem(err error) string {
	if e, ok := err.(*baseURLError); ok {
		return e.problem
	}
	return err.Error()
}

// NormalizeBaseURL checks a gateway base URL and returns it trimmed, with
// DefaultGatewayPort filled in when no port is given. A trailing slash is
// allowed; any other path, a query or a fragment is not.
func NormalizeBaseURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", &baseURLError{raw: raw, problem: problemRequired}
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return "", &baseURLError{raw: raw, problem: problemInvalid}
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "ws", "wss":
	case "":
		return "", &baseURLError{raw: raw, problem: problemInvalid}
	default:
		return "", &baseURLError{raw: raw, problem: problemScheme}
	}
	if u.Hostname() == "" {
		return "", &baseURLError{raw: raw, problem: problemHost}
	}
	if u.Path != "" && u.Path != "/" {
		return "", &baseURLError{raw: raw, problem: problemPath}
	}
	if u.RawQuery != "" || u.Fragment != "" || u.ForceQuery {
		return "", &baseURLError{raw: raw, problem: problemQuery}
	}

	if u.Port() == "" {
		u.Host = net.JoinHostPort(u.Hostname(), strconv.Itoa(DefaultGatewayPort))
	}
	u.Path = ""
	return u.String(), nil
}
