package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"opsconsole/internal/adapter/tui/theme"
	"opsconsole/internal/domain"
)

// KeyHint represents a single keybinding hint shown in the status bar.
type KeyHint struct {
	Key  string // e.g. "r"
	Desc string // e.g. "Retry"
}

// StatusBarModel renders the bottom line: key hints on the left, the
// active profile and connection state on the right.
type StatusBarModel struct {
	Hints   []KeyHint
	Profile string
	State   domain.ConnectionState
	Extra   string // transient notice, e.g. "Retry throttled"
	width   int
}

// NewStatusBar creates an empty status bar.
func NewStatusBar() StatusBarModel {
	return StatusBarModel{}
}

// SetWidth updates the available width.
func (m *StatusBarModel) SetWidth(w int) {
	m.width = w
}

// View renders the status bar as a single line.
func (m StatusBarModel) View() string {
	var hints []string
	for _, h := range m.Hints {
		hints = append(hints, theme.StatusKey.Render(h.Key)+": "+h.Desc)
	}
	left := strings.Join(hints, "  "+theme.Dim.Render("|")+"  ")

	var parts []string
	if m.Extra != "" {
		parts = append(parts, theme.TextInfo.Render(m.Extra))
	}
	if m.Profile != "" {
		parts = append(parts, theme.TextMuted.Render(m.Profile))
	}
	if m.State.Phase != "" {
		parts = append(parts, theme.StateStyle(m.State.Phase).Render(m.State.DisplayName()))
	}
	right := strings.Join(parts, " "+theme.SymbolBullet+" ")

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return theme.StatusBar.Width(m.width).Render(left + strings.Repeat(" ", gap) + right)
}
