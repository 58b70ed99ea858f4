package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"opsconsole/internal/adapter/tui/theme"
)

// KeyHelp is one row of the help overlay.
type KeyHelp struct {
	Keys string
	Desc string
}

// HelpSection groups key rows under a heading.
type HelpSection struct {
	Title string
	Keys  []KeyHelp
}

// HelpModel is a full-screen overlay listing key bindings.
type HelpModel struct {
	Viewport viewport.Model
	Visible  bool
	sections []HelpSection
	width    int
	height   int
}

// NewHelp creates a hidden help overlay for sections.
func NewHelp(sections []HelpSection) HelpModel {
	return HelpModel{sections: sections}
}

// Toggle shows or hides the overlay.
func (m *HelpModel) Toggle() {
	if m.Visible {
		m.Visible = false
		return
	}
	m.Visible = true
	w, h := m.width-4, m.height-4
	if m.width == 0 {
		w, h = 76, 20
	}
	m.Viewport = viewport.New(w, h)
	m.Viewport.SetContent(m.render())
}

// SetSize updates the overlay dimensions.
func (m *HelpModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	if m.Visible {
		m.Viewport.Width = w - 4
		m.Viewport.Height = h - 4
	}
}

// Update handles overlay keys: Esc, q and ? close it, j/k scroll.
func (m HelpModel) Update(msg tea.Msg) (HelpModel, tea.Cmd) {
	if !m.Visible {
		return m, nil
	}
	if k, ok := msg.(tea.KeyMsg); ok {
		switch k.String() {
		case "esc", "q", "?":
			m.Visible = false
			return m, nil
		case "j", "down":
			m.Viewport.LineDown(1)
			return m, nil
		case "k", "up":
			m.Viewport.LineUp(1)
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.Viewport, cmd = m.Viewport.Update(msg)
	return m, cmd
}

func (m HelpModel) render() string {
	keyW := 0
	for _, s := range m.sections {
		for _, k := range s.Keys {
			keyW = max(keyW, lipgloss.Width(k.Keys))
		}
	}
	var b strings.Builder
	for i, s := range m.sections {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(theme.TextInfo.Render(s.Title) + "\n")
		for _, k := range s.Keys {
			fmt.Fprintf(&b, "  %s  %s\n",
				theme.Bold.Render(k.Keys+strings.Repeat(" ", keyW-lipgloss.Width(k.Keys))),
				k.Desc)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// View renders the overlay, or nothing when hidden.
func (m HelpModel) View() string {
	if !m.Visible {
		return ""
	}
	title := theme.Bold.Render("  Keys")
	footer := theme.Dim.Render("  Esc/?: close  j/k: scroll")
	inner := lipgloss.JoinVertical(lipgloss.Left, title, m.Viewport.View(), footer)

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.ColorInfo).
		Padding(0, 1).
		Width(max(m.width-2, 20)).
		Height(max(m.height-2, 5)).
		Render(inner)
}
