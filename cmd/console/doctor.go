package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"opsconsole/internal/adapter/gateway"
	"opsconsole/internal/infra/config"
	"opsconsole/internal/usecase/connection"
)

// CheckStatus represents the result of a health check.
type CheckStatus string

const (
	StatusPass CheckStatus = "PASS"
	StatusWarn CheckStatus = "WARN"
	StatusFail CheckStatus = "FAIL"
	StatusSkip CheckStatus = "SKIP"
)

// CheckResult holds the outcome of a single health check.
type CheckResult struct {
	Name    string
	Status  CheckStatus
	Message string
	Fix     string // optional fix suggestion
}

// Check is a named health check function. cfg is nil when the config failed to load.
type Check struct {
	Name string
	Fn   func(ctx context.Context, cfg *config.Config) CheckResult
}

const doctorDialTimeout = 3 * time.Second

func newDoctorCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the config and the path to the Gateway",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}
}

// runDoctor executes all health checks and reports results.
func runDoctor(ctx context.Context, opts *rootOptions, w io.Writer) error {
	cfg, cfgErr := config.Load(opts.configPath)
	if cfgErr == nil && opts.profile != "" {
		cfg.Gateway.ActiveProfile = opts.profile
	}

	checks := []Check{
		{Name: "Config file", Fn: checkConfigFile(opts.configPath, cfgErr)},
		{Name: "Gateway profile", Fn: checkProfile},
		{Name: "Gateway token", Fn: checkToken},
		{Name: "Network", Fn: checkReachable},
		{Name: "Gateway RPC", Fn: checkRPC},
	}

	fmt.Fprintln(w, "opsconsole doctor")
	fmt.Fprintln(w, strings.Repeat("=", 50))
	fmt.Fprintln(w)

	var pass, warn, fail int
	for _, check := range checks {
		result := check.Fn(ctx, cfg)
		result.Name = check.Name

		fmt.Fprintf(w, "  %s %s: %s\n", statusIcon(result.Status), result.Name, result.Message)
		if result.Fix != "" {
			fmt.Fprintf(w, "      Fix: %s\n", result.Fix)
		}

		switch result.Status {
		case StatusPass:
			pass++
		case StatusWarn:
			warn++
		case StatusFail:
			fail++
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("-", 50))
	fmt.Fprintf(w, "Results: %d passed, %d warnings, %d failed\n", pass, warn, fail)

	if fail > 0 {
		return errReported
	}
	return nil
}

func statusIcon(s CheckStatus) string {
	switch s {
	case StatusPass:
		return "[PASS]"
	case StatusWarn:
		return "[WARN]"
	case StatusFail:
		return "[FAIL]"
	case StatusSkip:
		return "[SKIP]"
	default:
		return "[????]"
	}
}

func notLoaded() CheckResult {
	return CheckResult{Status: StatusSkip, Message: "config not loaded"}
}

// checkConfigFile returns a check that reports whether the config file exists and loads.
func checkConfigFile(cfgPath string, cfgErr error) func(context.Context, *config.Config) CheckResult {
	return func(context.Context, *config.Config) CheckResult {
		if cfgErr != nil {
			return CheckResult{
				Status:  StatusFail,
				Message: cfgErr.Error(),
				Fix:     "Fix " + cfgPath + "; tokens stored as enc: values need " + config.EnvConfigKey,
			}
		}
		if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
			return CheckResult{
				Status:  StatusWarn,
				Message: fmt.Sprintf("no config at %s, using defaults (%s)", cfgPath, config.DefaultBaseURL),
				Fix:     "Create " + cfgPath + " with a gateway.profiles entry",
			}
		}
		return CheckResult{Status: StatusPass, Message: "loaded " + cfgPath}
	}
}

func checkProfile(_ context.Context, cfg *config.Config) CheckResult {
	if cfg == nil {
		return notLoaded()
	}
	gw, err := cfg.ActiveGateway()
	if err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: config.BaseURLProblem(err),
			Fix:     "Check gateway.active_profile and the profile's base_url",
		}
	}
	return CheckResult{Status: StatusPass, Message: fmt.Sprintf("%s at %s", cfg.Gateway.ActiveProfile, gw.BaseURL)}
}

func checkToken(_ context.Context, cfg *config.Config) CheckResult {
	if cfg == nil {
		return notLoaded()
	}
	gw, err := cfg.ActiveGateway()
	if err != nil {
		return CheckResult{Status: StatusSkip, Message: "no usable profile"}
	}
	if gw.Token == "" {
		return CheckResult{
			Status:  StatusWarn,
			Message: "no token configured",
			Fix:     "Set the profile token or " + config.EnvPrefix + "GATEWAY_TOKEN if the Gateway requires auth",
		}
	}
	return CheckResult{Status: StatusPass, Message: "token configured"}
}

// checkReachable dials the Gateway's TCP port.
func checkReachable(ctx context.Context, cfg *config.Config) CheckResult {
	if cfg == nil {
		return notLoaded()
	}
	gw, err := cfg.ActiveGateway()
	if err != nil {
		return CheckResult{Status: StatusSkip, Message: "no usable profile"}
	}
	u, err := url.Parse(gw.BaseURL)
	if err != nil {
		return CheckResult{Status: StatusSkip, Message: "no usable profile"}
	}

	ctx, cancel := context.WithTimeout(ctx, doctorDialTimeout)
	defer cancel()
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", u.Host)
	if err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("cannot reach %s: %v", u.Host, err),
			Fix:     "Start the Gateway or check the host, port and firewall",
		}
	}
	conn.Close()
	return CheckResult{Status: StatusPass, Message: u.Host + " accepts connections"}
}

// checkRPC runs the same status call as the test command.
func checkRPC(ctx context.Context, cfg *config.Config) CheckResult {
	if cfg == nil {
		return notLoaded()
	}
	gw, err := cfg.ActiveGateway()
	if err != nil {
		return CheckResult{Status: StatusSkip, Message: "no usable profile"}
	}

	t := cfg.Gateway.Timeouts
	client := gateway.NewClient(gw, gateway.WithTimeouts(t.Connect, t.Request, t.Receive))
	_, err = client.FetchStatus(ctx)
	res := connection.PresentTestResult(err)
	switch res.Kind {
	case connection.TestSuccess:
		return CheckResult{Status: StatusPass, Message: res.Message}
	case connection.TestAuthFailed:
		return CheckResult{Status: StatusFail, Message: res.Message, Fix: "Update the profile token"}
	default:
		return CheckResult{Status: StatusFail, Message: res.Message}
	}
}
