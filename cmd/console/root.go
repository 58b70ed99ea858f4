package main

import (
	"os"

	"github.com/spf13/cobra"

	"opsconsole/internal/infra/config"
)

const defaultConfigPath = "opsconsole.yaml"

// rootOptions are the flags shared by every command.
type rootOptions struct {
	configPath string
	profile    string
	mock       string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "opsconsole",
		Short: "Operator console for an OpenClaw Gateway",
		Long: `opsconsole watches a Gateway's health, lists its paired nodes and
reconnects with backoff when the Gateway goes away.

Without a command it opens the interactive dashboard.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDashboard(cmd.Context(), opts)
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", configPathDefault(), "config file path")
	cmd.PersistentFlags().StringVarP(&opts.profile, "profile", "p", "", "gateway profile (default: active_profile from config)")
	cmd.PersistentFlags().StringVar(&opts.mock, "mock", "", "serve canned data instead of dialing: demo or gateway-down")

	cmd.AddCommand(
		newStatusCommand(opts),
		newNodesCommand(opts),
		newTestCommand(opts),
		newWatchCommand(opts),
		newDoctorCommand(opts),
		newServiceCommand(opts),
		newEncryptCommand(),
	)
	return cmd
}

func configPathDefault() string {
	if p := os.Getenv(config.EnvPrefix + "CONFIG"); p != "" {
		return p
	}
	return defaultConfigPath
}
