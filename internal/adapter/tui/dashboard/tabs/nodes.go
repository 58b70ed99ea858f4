package tabs

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"opsconsole/internal/adapter/tui/components"
	"opsconsole/internal/domain"
)

// NodesModel wraps the node table and its "/" filter.
type NodesModel struct {
	Table  components.NodeTableModel
	Filter components.FilterModel
}

// NewNodes creates a nodes tab.
func NewNodes() NodesModel {
	return NodesModel{
		Table:  components.NewNodeTable(),
		Filter: components.NewFilter("name or id"),
	}
}

// SetSize sets dimensions. One line is kept for the filter.
func (m *NodesModel) SetSize(w, h int) {
	m.Filter.SetWidth(w)
	m.Table.SetSize(w, h-1)
}

// SetResult applies the outcome of a node.list call. A failure keeps the
// previous rows on screen.
func (m *NodesModel) SetResult(nodes []domain.NodeSummary, err error, at time.Time) {
	if err != nil {
		m.Table.SetError(domain.PresentError(err))
		return
	}
	m.Table.SetNodes(nodes, at)
}

// Capturing reports whether keys are being typed into the filter.
func (m NodesModel) Capturing() bool { return m.Filter.Typing() }

// Update handles the filter and table navigation.
func (m NodesModel) Update(msg tea.Msg) (NodesModel, tea.Cmd) {
	k, isKey := msg.(tea.KeyMsg)
	if isKey && !m.Filter.Typing() && k.String() == "/" {
		return m, m.Filter.Activate()
	}
	if isKey && (m.Filter.Typing() || k.Type == tea.KeyEsc && m.Filter.Mode != components.FilterInactive) {
		var cmd tea.Cmd
		m.Filter, cmd = m.Filter.Update(msg)
		m.syncFilter()
		return m, cmd
	}
	var cmd tea.Cmd
	m.Table, cmd = m.Table.Update(msg)
	return m, cmd
}

func (m *NodesModel) syncFilter() {
	if m.Filter.Query() == "" {
		m.Table.SetFilter(nil)
		return
	}
	f := m.Filter
	m.Table.SetFilter(func(n domain.NodeSummary) bool { return f.Match(n.Name, n.ID) })
}

// View renders the tab.
func (m NodesModel) View() string {
	if line := m.Filter.View(); line != "" {
		return line + "\n" + m.Table.View()
	}
	return m.Table.View()
}
