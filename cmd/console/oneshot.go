package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"opsconsole/internal/adapter/tui/components"
	"opsconsole/internal/adapter/tui/theme"
	"opsconsole/internal/domain"
	"opsconsole/internal/usecase/connection"
)

// oneShot loads the app and a monitor for the active profile, runs fn and
// tears everything down.
func oneShot(ctx context.Context, opts *rootOptions, fn func(a *app, mon *connection.Monitor, baseURL string) error) error {
	a, err := newApp(ctx, opts)
	if err != nil {
		return err
	}
	defer a.Close()

	client, baseURL, err := a.clientFor(a.cfg.Gateway.ActiveProfile, true)
	if err != nil {
		return err
	}
	return fn(a, a.newMonitor(client), baseURL)
}

func newStatusCommand(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the Gateway's health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return oneShot(cmd.Context(), opts, func(a *app, mon *connection.Monitor, baseURL string) error {
				st, err := mon.FetchStatus(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), st)
				}
				writeStatus(cmd.OutOrStdout(), a.cfg.Gateway.ActiveProfile, baseURL, st)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the decoded status as JSON")
	return cmd
}

func newNodesCommand(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "nodes",
		Short: "List nodes paired with the Gateway",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return oneShot(cmd.Context(), opts, func(_ *app, mon *connection.Monitor, _ string) error {
				nodes, err := mon.FetchNodes(cmd.Context())
				if err != nil {
					return err
				}
				domain.SortNodes(nodes)
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), nodes)
				}
				writeNodes(cmd.OutOrStdout(), nodes, time.Now())
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the node list as JSON")
	return cmd
}

func newTestCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Test the connection to the Gateway",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return oneShot(cmd.Context(), opts, func(_ *app, mon *connection.Monitor, baseURL string) error {
				res := connection.PresentTestResult(mon.TestConnection(cmd.Context()))
				out := cmd.OutOrStdout()
				if res.OK() {
					fmt.Fprintf(out, "%s %s (%s)\n", theme.SymbolSuccess, res.Message, baseURL)
					return nil
				}
				fmt.Fprintf(out, "%s %s (%s)\n", theme.SymbolError, res.Message, baseURL)
				return errReported
			})
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeStatus(w io.Writer, profile, baseURL string, st domain.GatewayStatus) {
	health := theme.TextSuccess.Render("ok")
	if !st.OK {
		health = theme.TextError.Render("not ok")
	}
	uptime := "-"
	if st.Uptime > 0 {
		uptime = st.Uptime.String()
	}
	rows := [][2]string{
		{"Gateway", baseURL + " (" + profile + ")"},
		{"Health", health},
		{"Version", dash(st.Version)},
		{"Build", dash(st.Build)},
		{"Commit", dash(st.Commit)},
		{"Uptime", uptime},
	}
	for _, r := range rows {
		fmt.Fprintf(w, "%-8s %s\n", r[0], r[1])
	}
}

func writeNodes(w io.Writer, nodes []domain.NodeSummary, now time.Time) {
	if len(nodes) == 0 {
		fmt.Fprintln(w, "No nodes paired with this Gateway.")
		return
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(theme.ColorBorder)).
		Headers("NAME", "ID", "STATE", "LAST SEEN").
		StyleFunc(func(row, col int) lipgloss.Style {
			s := lipgloss.NewStyle().Padding(0, 1)
			if row == table.HeaderRow {
				return s.Bold(true)
			}
			if col == 2 && row >= 0 && row < len(nodes) {
				return s.Inherit(nodeStateStyle(nodes[row].State))
			}
			return s
		})
	for _, n := range nodes {
		t.Row(dash(n.Name), n.ID, string(n.State), components.RelativeTime(now, n.LastSeenAt))
	}
	fmt.Fprintln(w, t.Render())

	online := 0
	for _, n := range nodes {
		if n.State == domain.NodeOnline {
			online++
		}
	}
	fmt.Fprintf(w, "%d nodes, %d online\n", len(nodes), online)
}

func nodeStateStyle(s domain.NodeState) lipgloss.Style {
	switch s {
	case domain.NodeOnline:
		return theme.TextSuccess
	case domain.NodeOffline:
		return theme.TextError
	default:
		return theme.TextMuted
	}
}

func dash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
