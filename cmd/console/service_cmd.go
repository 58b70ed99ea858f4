package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"opsconsole/cmd/console/service"
)

func newServiceCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Run 'watch' as a per-user background service",
	}

	var name string
	cmd.PersistentFlags().StringVar(&name, "name", service.DefaultName, "service name")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "install",
			Short: "Install and start the service",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				spec := service.DefaultSpec(opts.configPath)
				spec.Name = name
				spec.Profile = opts.profile
				if err := spec.Validate(); err != nil {
					return err
				}
				m := service.NewManager()
				if err := m.Install(spec); err != nil {
					return err
				}
				path, _ := m.UnitPath(name)
				fmt.Fprintf(cmd.OutOrStdout(), "Installed %s (%s)\n", name, path)
				return nil
			},
		},
		&cobra.Command{
			Use:   "uninstall",
			Short: "Stop and remove the service",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				if err := service.NewManager().Uninstall(name); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", name)
				return nil
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show whether the service is running",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				st, err := service.NewManager().Status(name)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				switch {
				case !st.Installed:
					fmt.Fprintf(out, "%s is not installed\n", name)
				case st.Running && st.PID > 0:
					fmt.Fprintf(out, "%s is running (PID %d)\n", name, st.PID)
				case st.Running:
					fmt.Fprintf(out, "%s is running\n", name)
				default:
					fmt.Fprintf(out, "%s is installed but not running\n", name)
				}
				return nil
			},
		},
	)
	return cmd
}
