package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"opsconsole/internal/adapter/tui/theme"
)

// FilterMode tracks the state of an inline filter.
type FilterMode int

const (
	FilterInactive FilterMode = iota
	FilterTyping              // input focused, keys go to the filter
	FilterApplied             // query fixed, keys go back to the view
)

// FilterModel is a one-line substring filter opened with "/".
type FilterModel struct {
	Mode  FilterMode
	Input textinput.Model
	query string
}

// NewFilter creates an inactive filter.
func NewFilter(placeholder string) FilterModel {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.Prompt = "/ "
	ti.Width = 30
	ti.PromptStyle = theme.TextInfo
	ti.PlaceholderStyle = theme.Dim
	return FilterModel{Input: ti}
}

// SetWidth updates the input width.
func (m *FilterModel) SetWidth(w int) {
	m.Input.Width = theme.Clamp(w-20, 10, 60)
}

// Activate focuses the input, keeping the current query for editing.
func (m *FilterModel) Activate() tea.Cmd {
	m.Mode = FilterTyping
	m.Input.SetValue(m.query)
	m.Input.CursorEnd()
	return m.Input.Focus()
}

// Clear closes the filter and drops the query.
func (m *FilterModel) Clear() {
	m.Mode = FilterInactive
	m.Input.Blur()
	m.Input.SetValue("")
	m.query = ""
}

// Typing reports whether key presses belong to the filter input.
func (m FilterModel) Typing() bool { return m.Mode == FilterTyping }

// Query is the lower-cased query in effect. While typing it follows the input.
func (m FilterModel) Query() string {
	if m.Mode == FilterTyping {
		return strings.ToLower(strings.TrimSpace(m.Input.Value()))
	}
	return m.query
}

// Match reports whether any of fields contains the query.
func (m FilterModel) Match(fields ...string) bool {
	q := m.Query()
	if q == "" {
		return true
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}

// Update handles input while the filter is open. Enter applies the query,
// Esc clears it.
func (m FilterModel) Update(msg tea.Msg) (FilterModel, tea.Cmd) {
	if m.Mode == FilterInactive {
		return m, nil
	}
	if k, ok := msg.(tea.KeyMsg); ok {
		switch k.Type {
		case tea.KeyEsc:
			m.Clear()
			return m, nil
		case tea.KeyEnter:
			if m.Mode == FilterTyping {
				m.query = strings.ToLower(strings.TrimSpace(m.Input.Value()))
				m.Input.Blur()
				m.Mode = FilterApplied
				if m.query == "" {
					m.Mode = FilterInactive
				}
			}
			return m, nil
		}
	}
	if m.Mode != FilterTyping {
		return m, nil
	}
	var cmd tea.Cmd
	m.Input, cmd = m.Input.Update(msg)
	return m, cmd
}

// View renders the filter line, or nothing when inactive.
func (m FilterModel) View() string {
	switch m.Mode {
	case FilterTyping:
		return "  " + m.Input.View()
	case FilterApplied:
		return "  " + theme.TextInfo.Render("/") + theme.Bold.Render(m.query) + "  " +
			theme.Dim.Render("/: edit  Esc: clear")
	default:
		return ""
	}
}
