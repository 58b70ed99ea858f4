// Package tabs provides individual tab models for the dashboard.
package tabs

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"opsconsole/internal/adapter/tui/theme"
	"opsconsole/internal/domain"
	"opsconsole/internal/usecase/connection"
)

// OverviewModel shows the connection state, the last gateway status and
// the retry bookkeeping.
type OverviewModel struct {
	Profile   string
	BaseURL   string
	Snapshot  connection.Snapshot
	Status    *domain.GatewayStatus
	TestNote  string
	StartedAt time.Time
	Spinner   spinner.Model
	now       func() time.Time
	width     int
	height    int
}

// NewOverview creates an overview tab.
func NewOverview(now func() time.Time) OverviewModel {
	if now == nil {
		now = time.Now
	}
	s := spinner.New()
	s.Spinner = spinner.MiniDot
	s.Style = theme.TextWarning
	return OverviewModel{StartedAt: now(), Spinner: s, now: now}
}

// SetSize sets dimensions.
func (m *OverviewModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// Busy reports whether the spinner should animate.
func (m OverviewModel) Busy() bool {
	return m.Snapshot.State.Phase == domain.PhaseReconnecting
}

// Update advances the spinner.
func (m OverviewModel) Update(msg tea.Msg) (OverviewModel, tea.Cmd) {
	if _, ok := msg.(spinner.TickMsg); ok {
		if !m.Busy() {
			return m, nil
		}
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View renders the overview tab.
func (m OverviewModel) View() string {
	snap := m.Snapshot
	now := m.now()

	var sb strings.Builder
	sb.WriteString(theme.Bold.Render("  Gateway") + "\n")

	state := theme.StateStyle(snap.State.Phase).Render(theme.StateSymbol(snap.State.Phase) + " " + snap.State.DisplayName())
	if m.Busy() {
		state = m.Spinner.View() + " " + state
	}
	rows := [][2]string{
		{"Profile", m.Profile},
		{"URL", m.BaseURL},
		{"State", state},
	}
	if snap.Countdown.Active {
		rows = append(rows, [2]string{"Next retry", fmt.Sprintf("in %ds", snap.Countdown.Seconds)})
	}
	if m.Status != nil {
		rows = append(rows, [2]string{"Version", orDash(m.Status.Version)})
		if m.Status.Uptime > 0 {
			rows = append(rows, [2]string{"Uptime", m.Status.Uptime.Round(time.Second).String()})
		}
		if !m.Status.OK {
			rows = append(rows, [2]string{"Health", theme.TextWarning.Render("gateway reports not ok")})
		}
	}
	rows = append(rows, [2]string{"Last check", sinceOrNever(now, snap.LastHealthCheckAt)})
	if m.TestNote != "" {
		rows = append(rows, [2]string{"Test", m.TestNote})
	}
	writeRows(&sb, rows)

	sb.WriteString("\n" + theme.Bold.Render("  Polling") + "\n")
	obs := snap.Backoff
	mode := "active"
	if !snap.Active {
		mode = "background"
	}
	if !snap.Running {
		mode += ", stopped"
	}
	stats := []struct{ label, value string }{
		{"Mode", mode},
		{"Failures", fmt.Sprintf("%d", obs.ConsecutiveFailures)},
		{"Backoff", obs.CurrentBackoff.String()},
		{"Next poll", untilOrDash(now, obs.NextScheduledRefreshAt)},
		{"Uptime", now.Sub(m.StartedAt).Round(time.Second).String()},
	}
	var parts []string
	for _, s := range stats {
		parts = append(parts, theme.TextMuted.Render(s.label)+": "+theme.StatValue.Render(s.value))
	}
	sep := "  " + lipgloss.NewStyle().Foreground(theme.ColorBorder).Render("|") + "  "
	sb.WriteString("  " + strings.Join(parts, sep) + "\n")
	if obs.LastResult != "" {
		sb.WriteString(theme.TextMuted.Render("  Last result: "+obs.LastResult) + "\n")
	}

	return sb.String()
}

func writeRows(sb *strings.Builder, rows [][2]string) {
	for _, r := range rows {
		sb.WriteString(fmt.Sprintf("  %s %s\n", theme.TextMuted.Render(fmt.Sprintf("%-11s", r[0])), r[1]))
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func sinceOrNever(now, t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return now.Sub(t).Round(time.Second).String() + " ago"
}

func untilOrDash(now, t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := t.Sub(now).Round(time.Second)
	if d <= 0 {
		return "now"
	}
	return "in " + d.String()
}
