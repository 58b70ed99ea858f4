package tabs

import (
	tea "github.com/charmbracelet/bubbletea"

	"opsconsole/internal/adapter/tui/components"
	"opsconsole/internal/adapter/tui/theme"
	"opsconsole/internal/usecase/timeline"
)

// TimelineModel shows the operator timeline with an errors-only toggle.
type TimelineModel struct {
	Stream components.TimelineViewModel
}

// NewTimeline creates a timeline tab.
func NewTimeline() TimelineModel {
	return TimelineModel{Stream: components.NewTimelineView()}
}

// SetSize sets dimensions. One line is reserved for the header.
func (m *TimelineModel) SetSize(w, h int) {
	m.Stream.SetSize(w, h-1)
}

// SetEntries replaces the rows, newest first.
func (m *TimelineModel) SetEntries(entries []timeline.Entry) {
	m.Stream.SetEntries(entries)
}

// Update handles the filter key and scrolling.
func (m TimelineModel) Update(msg tea.Msg) (TimelineModel, tea.Cmd) {
	if k, ok := msg.(tea.KeyMsg); ok && k.String() == "e" {
		m.Stream.ToggleErrorsOnly()
		return m, nil
	}
	var cmd tea.Cmd
	m.Stream, cmd = m.Stream.Update(msg)
	return m, cmd
}

// View renders the header and the rows.
func (m TimelineModel) View() string {
	filter := "all"
	if m.Stream.ErrorsOnly() {
		filter = "errors only"
	}
	header := theme.TextMuted.Render("  Showing " + filter + " " + theme.SymbolBullet + " e: toggle errors")
	return header + "\n" + m.Stream.View()
}
