package components

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"opsconsole/internal/adapter/tui/theme"
	"opsconsole/internal/domain"
)

// NodeTableModel lists gateway nodes, online first.
type NodeTableModel struct {
	Table     table.Model
	all       []domain.NodeSummary
	nodes     []domain.NodeSummary
	match     func(domain.NodeSummary) bool
	err       string
	fetchedAt time.Time
	now       func() time.Time
	ready     bool
	width     int
	height    int
}

// NewNodeTable creates an empty node table.
func NewNodeTable() NodeTableModel {
	return NodeTableModel{now: time.Now}
}

// SetSize sets the available dimensions.
func (m *NodeTableModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.ready = true
	m.rebuildTable()
}

// SetNodes replaces the rows. The slice is sorted in place.
func (m *NodeTableModel) SetNodes(nodes []domain.NodeSummary, at time.Time) {
	domain.SortNodes(nodes)
	m.all = nodes
	m.fetchedAt = at
	m.err = ""
	m.applyFilter()
}

// SetFilter restricts the rows to nodes for which match returns true.
// A nil match shows every node.
func (m *NodeTableModel) SetFilter(match func(domain.NodeSummary) bool) {
	m.match = match
	m.applyFilter()
}

func (m *NodeTableModel) applyFilter() {
	if m.match == nil {
		m.nodes = m.all
	} else {
		m.nodes = make([]domain.NodeSummary, 0, len(m.all))
		for _, n := range m.all {
			if m.match(n) {
				m.nodes = append(m.nodes, n)
			}
		}
	}
	m.rebuildTable()
}

// SetError keeps the last rows and shows msg above them.
func (m *NodeTableModel) SetError(msg string) {
	m.err = msg
}

// Nodes returns the displayed nodes in display order.
func (m NodeTableModel) Nodes() []domain.NodeSummary { return m.nodes }

// Total is the node count before filtering.
func (m NodeTableModel) Total() int { return len(m.all) }

// Online counts nodes reported as connected, ignoring the filter.
func (m NodeTableModel) Online() int {
	n := 0
	for _, node := range m.all {
		if node.State == domain.NodeOnline {
			n++
		}
	}
	return n
}

// Update handles table navigation.
func (m NodeTableModel) Update(msg tea.Msg) (NodeTableModel, tea.Cmd) {
	if !m.ready {
		return m, nil
	}
	var cmd tea.Cmd
	m.Table, cmd = m.Table.Update(msg)
	return m, cmd
}

// View renders the node table.
func (m NodeTableModel) View() string {
	if !m.ready {
		return ""
	}

	var header string
	switch {
	case m.err != "":
		header = theme.TextError.Render("  " + theme.SymbolError + " " + m.err)
	case m.fetchedAt.IsZero():
		header = theme.TextMuted.Render("  Loading nodes" + theme.SymbolEllipsis)
	default:
		count := fmt.Sprintf("%d nodes", len(m.all))
		if m.match != nil {
			count = fmt.Sprintf("%d of %d nodes", len(m.nodes), len(m.all))
		}
		header = theme.TextMuted.Render(fmt.Sprintf("  %s, %d online %s updated %s",
			count, m.Online(), theme.SymbolBullet, RelativeTime(m.now(), m.fetchedAt)))
	}
	if len(m.nodes) == 0 {
		switch {
		case m.fetchedAt.IsZero() || m.err != "":
			return header
		case len(m.all) > 0:
			return header + "\n" + theme.TextMuted.Render("  No nodes match the filter.")
		}
		return header + "\n" + theme.TextMuted.Render("  No nodes paired with this Gateway.")
	}

	tableView := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.ColorBorder).
		Render(m.Table.View())
	return header + "\n" + tableView
}

func (m *NodeTableModel) rebuildTable() {
	if !m.ready {
		return
	}

	stateW, seenW := 10, 14
	nameW := (m.width - stateW - seenW - 12) / 2
	if nameW < 12 {
		nameW = 12
	}
	columns := []table.Column{
		{Title: "Name", Width: nameW},
		{Title: "ID", Width: nameW},
		{Title: "State", Width: stateW},
		{Title: "Last seen", Width: seenW},
	}

	now := m.now()
	rows := make([]table.Row, 0, len(m.nodes))
	for _, n := range m.nodes {
		rows = append(rows, table.Row{
			truncate(n.Name, nameW),
			truncate(n.ID, nameW),
			string(n.State),
			RelativeTime(now, n.LastSeenAt),
		})
	}

	tableH := theme.Clamp(m.height-4, 3, 40)
	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(tableH),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(theme.ColorBorder).
		BorderBottom(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57"))
	t.SetStyles(s)

	m.Table = t
}

func truncate(s string, w int) string {
	r := []rune(s)
	if len(r) <= w {
		return s
	}
	return string(r[:w-1]) + theme.SymbolEllipsis
}

// RelativeTime renders t relative to now for table cells.
func RelativeTime(now, t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return t.Format("Jan 2 15:04")
	}
}
