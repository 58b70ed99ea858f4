package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"opsconsole/internal/adapter/tui/theme"
	"opsconsole/internal/usecase/timeline"
)

// TimelineViewModel displays timeline entries newest first in a scrollable
// viewport. It keeps the view pinned to the top unless the operator has
// scrolled away.
type TimelineViewModel struct {
	Viewport viewport.Model
	entries  []timeline.Entry
	errsOnly bool
	ready    bool
	atTop    bool
	width    int
	height   int
}

// NewTimelineView creates a timeline viewer.
func NewTimelineView() TimelineViewModel {
	return TimelineViewModel{atTop: true}
}

// SetSize sets the viewport dimensions.
func (m *TimelineViewModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	if !m.ready {
		m.Viewport = viewport.New(w, h)
		m.Viewport.MouseWheelEnabled = true
		m.Viewport.MouseWheelDelta = 3
		m.ready = true
	} else {
		m.Viewport.Width = w
		m.Viewport.Height = h
	}
	m.refreshContent()
}

// SetEntries replaces the displayed rows. entries must be newest first.
func (m *TimelineViewModel) SetEntries(entries []timeline.Entry) {
	m.entries = entries
	m.refreshContent()
	if m.atTop {
		m.Viewport.GotoTop()
	}
}

// ToggleErrorsOnly switches between all rows and error rows.
func (m *TimelineViewModel) ToggleErrorsOnly() {
	m.errsOnly = !m.errsOnly
	m.refreshContent()
}

// ErrorsOnly reports whether the error filter is on.
func (m TimelineViewModel) ErrorsOnly() bool { return m.errsOnly }

// Update handles viewport scrolling.
func (m TimelineViewModel) Update(msg tea.Msg) (TimelineViewModel, tea.Cmd) {
	if !m.ready {
		return m, nil
	}
	var cmd tea.Cmd
	m.Viewport, cmd = m.Viewport.Update(msg)
	m.atTop = m.Viewport.AtTop()
	return m, cmd
}

// VisibleCount returns the number of rows passing the current filter.
func (m TimelineViewModel) VisibleCount() int {
	if !m.errsOnly {
		return len(m.entries)
	}
	n := 0
	for _, e := range m.entries {
		if e.Kind == timeline.KindConnectionError {
			n++
		}
	}
	return n
}

// View renders the timeline.
func (m TimelineViewModel) View() string {
	if !m.ready {
		return ""
	}
	return m.Viewport.View()
}

func (m *TimelineViewModel) refreshContent() {
	if !m.ready {
		return
	}
	if m.VisibleCount() == 0 {
		m.Viewport.SetContent(theme.TextMuted.Render("  No connection activity yet"))
		return
	}

	var sb strings.Builder
	for _, e := range m.entries {
		if m.errsOnly && e.Kind != timeline.KindConnectionError {
			continue
		}
		title := fmt.Sprintf("%-22s", e.Title)
		switch {
		case e.Kind == timeline.KindConnectionError:
			title = theme.TextError.Render(title)
		case strings.HasSuffix(e.Title, "connected") && !strings.HasSuffix(e.Title, "disconnected"):
			title = theme.TextSuccess.Render(title)
		default:
			title = theme.TextWarning.Render(title)
		}
		sb.WriteString(fmt.Sprintf("  %s  %s  %s\n",
			theme.Dim.Render(e.Timestamp.Format("15:04:05")),
			title,
			theme.TextMuted.Render(e.Detail),
		))
	}
	m.Viewport.SetContent(sb.String())
}
