package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"opsconsole/internal/adapter/tui/theme"
	"opsconsole/internal/domain"
)

// BannerModel shows the last connection error above the tab content. It is
// hidden while connected or when there is nothing to report.
type BannerModel struct {
	State     domain.ConnectionState
	Err       *domain.ConnectionError
	Hints     []string
	Countdown int  // seconds until the next retry
	Counting  bool // false once the countdown was cleared
	width     int
}

// SetWidth updates the available width.
func (m *BannerModel) SetWidth(w int) {
	m.width = w
}

// Visible reports whether View renders anything.
func (m BannerModel) Visible() bool {
	if m.State.Phase == domain.PhaseConnected {
		return false
	}
	return m.Err != nil || m.Counting || m.State.Phase == domain.PhaseAuthFailed
}

// Height is the number of lines View occupies.
func (m BannerModel) Height() int {
	if !m.Visible() {
		return 0
	}
	return lipgloss.Height(m.View())
}

// View renders the banner.
func (m BannerModel) View() string {
	if !m.Visible() {
		return ""
	}

	style := theme.BannerError
	if m.State.Phase == domain.PhaseReconnecting {
		style = theme.BannerWarning
	}

	var lines []string
	head := theme.StateStyle(m.State.Phase).Render(theme.StateSymbol(m.State.Phase) + " " + m.State.DisplayName())
	if m.Err != nil {
		head += "  " + m.Err.Message
	}
	lines = append(lines, head)

	if m.Err != nil && m.Err.LastEmittedAt.Sub(m.Err.FirstSeenAt) >= time.Second {
		lines = append(lines, theme.TextMuted.Render(fmt.Sprintf("since %s, last seen %s",
			m.Err.FirstSeenAt.Format("15:04:05"), m.Err.LastEmittedAt.Format("15:04:05"))))
	}

	switch {
	case m.State.Phase == domain.PhaseReconnecting && m.Counting && m.Countdown > 0:
		lines = append(lines, theme.TextWarning.Render(fmt.Sprintf("Retrying in %ds", m.Countdown)))
	case m.State.Phase == domain.PhaseReconnecting && m.Counting:
		lines = append(lines, theme.TextWarning.Render("Retrying now"+theme.SymbolEllipsis))
	}

	for _, h := range m.Hints {
		lines = append(lines, theme.Dim.Render(theme.SymbolBullet+" "+h))
	}

	w := m.width - 2
	if w < 20 {
		w = 20
	}
	return style.Width(w).Render(strings.Join(lines, "\n"))
}
