package dashboard

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"opsconsole/internal/usecase/connection"
)

const callTimeout = 30 * time.Second

func fetchStatusCmd(m Monitor) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
		defer cancel()
		st, err := m.FetchStatus(ctx)
		return StatusResultMsg{Status: st, Err: err}
	}
}

func fetchNodesCmd(m Monitor, now func() time.Time) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
		defer cancel()
		nodes, err := m.FetchNodes(ctx)
		return NodesResultMsg{Nodes: nodes, Err: err, At: now()}
	}
}

func testConnectionCmd(m Monitor) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
		defer cancel()
		return TestResultMsg{Result: connection.PresentTestResult(m.TestConnection(ctx))}
	}
}

func switchProfileCmd(m Monitor, switcher ProfileSwitcher, name string) tea.Cmd {
	return func() tea.Msg {
		client, baseURL, err := switcher(name)
		if err != nil {
			return ProfileSwitchedMsg{Name: name, Err: err}
		}
		m.UpdateClient(client)
		return ProfileSwitchedMsg{Name: name, BaseURL: baseURL}
	}
}

func nodeTickCmd(every time.Duration) tea.Cmd {
	return tea.Tick(every, func(time.Time) tea.Msg { return nodeTickMsg{} })
}

func clearNoticeCmd(seq int) tea.Cmd {
	return tea.Tick(3*time.Second, func(time.Time) tea.Msg { return clearNoticeMsg{seq: seq} })
}
