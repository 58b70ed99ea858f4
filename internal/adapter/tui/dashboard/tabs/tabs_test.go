package tabs

import (
	"errors"
	"io"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"

	"opsconsole/internal/domain"
	"opsconsole/internal/usecase/connection"
	"opsconsole/internal/usecase/timeline"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestMaskSecrets(t *testing.T) {
	in := `gateway:
  profiles:
    - name: Local
      token: abc123
    - name: lab
      token: ""
      base_url: http://lab:18789
  token_hint: keep`
	out := MaskSecrets(in)

	assert.Contains(t, out, "      token: ****")
	assert.NotContains(t, out, "abc123")
	assert.Contains(t, out, `token: ""`)
	assert.Contains(t, out, "base_url: http://lab:18789")
	assert.Contains(t, out, "token_hint: keep")
}

func TestMaskSecretsListItem(t *testing.T) {
	assert.Equal(t, "  - token: ****", MaskSecrets("  - token: s3cret"))
}

func TestOverviewView(t *testing.T) {
	m := NewOverview(func() time.Time { return t0 })
	m.Profile = "Local"
	m.BaseURL = "http://127.0.0.1:18789"
	m.Snapshot = connection.Snapshot{
		State:             domain.Reconnecting(t0.Add(4 * time.Second)),
		Countdown:         connection.Countdown{Seconds: 4, Active: true},
		LastHealthCheckAt: t0.Add(-10 * time.Second),
		Active:            true,
		Running:           true,
		Backoff: domain.BackoffObservation{
			ConsecutiveFailures:    2,
			CurrentBackoff:         2 * time.Second,
			NextScheduledRefreshAt: t0.Add(2 * time.Second),
			LastResult:             "failure: " + domain.MsgConnectionLost,
		},
	}
	m.Status = &domain.GatewayStatus{OK: false, Version: "2026.2", Uptime: 90 * time.Second}

	out := m.View()
	for _, want := range []string{
		"Local", "http://127.0.0.1:18789", "Reconnecting", "in 4s",
		"2026.2", "1m30s", "gateway reports not ok", "10s ago",
		"Failures", "in 2s", domain.MsgConnectionLost,
	} {
		assert.Contains(t, out, want)
	}
	assert.True(t, m.Busy())
}

func TestOverviewNeverChecked(t *testing.T) {
	m := NewOverview(func() time.Time { return t0 })
	m.Snapshot = connection.Snapshot{State: domain.Disconnected()}
	out := m.View()
	assert.Contains(t, out, "never")
	assert.Contains(t, out, "background, stopped")
	assert.False(t, m.Busy())
}

func TestNodesKeepRowsOnError(t *testing.T) {
	m := NewNodes()
	m.SetSize(100, 20)
	m.SetResult([]domain.NodeSummary{{ID: "n1", Name: "alpha", State: domain.NodeOnline}}, nil, t0)
	m.SetResult(nil, io.EOF, t0.Add(time.Minute))

	assert.Len(t, m.Table.Nodes(), 1)
	assert.Contains(t, m.View(), domain.MsgConnectionLost)
}

func TestNodesErrorBeforeFirstLoad(t *testing.T) {
	m := NewNodes()
	m.SetSize(100, 20)
	m.SetResult(nil, errors.New("boom"), t0)
	assert.Contains(t, m.View(), "boom")
}

func TestTimelineToggle(t *testing.T) {
	m := NewTimeline()
	m.SetSize(80, 10)
	m.SetEntries([]timeline.Entry{
		{Kind: timeline.KindConnectionState, Timestamp: t0, Title: "Gateway connected"},
		{Kind: timeline.KindConnectionError, Timestamp: t0, Title: "Connection error", Detail: "x"},
	})
	assert.Contains(t, m.View(), "Showing all")

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("e")})
	assert.Contains(t, m.View(), "Showing errors only")
	assert.Equal(t, 1, m.Stream.VisibleCount())
}

func typeKeys(m NodesModel, s string) NodesModel {
	for _, r := range s {
		m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return m
}

func TestNodesFilter(t *testing.T) {
	m := NewNodes()
	m.SetSize(100, 20)
	m.SetResult([]domain.NodeSummary{
		{ID: "n1", Name: "alpha", State: domain.NodeOnline},
		{ID: "n2", Name: "bravo", State: domain.NodeOffline},
		{ID: "x-alp", Name: "charlie", State: domain.NodeOffline},
	}, nil, t0)

	m = typeKeys(m, "/")
	assert.True(t, m.Capturing())
	m = typeKeys(m, "ALP")
	assert.Len(t, m.Table.Nodes(), 2, "name and id both match")

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.False(t, m.Capturing())
	assert.Len(t, m.Table.Nodes(), 2)
	assert.Contains(t, m.View(), "2 of 3 nodes, 1 online")

	// New results stay filtered.
	m.SetResult([]domain.NodeSummary{{ID: "n1", Name: "alpha", State: domain.NodeOnline}, {ID: "n3", Name: "delta"}}, nil, t0)
	assert.Len(t, m.Table.Nodes(), 1)

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Len(t, m.Table.Nodes(), 2)
	assert.NotContains(t, m.View(), "of 2 nodes")
}

func TestNodesFilterNoMatch(t *testing.T) {
	m := NewNodes()
	m.SetSize(100, 20)
	m.SetResult([]domain.NodeSummary{{ID: "n1", Name: "alpha"}}, nil, t0)
	m = typeKeys(m, "/zzz")
	assert.Contains(t, m.View(), "No nodes match the filter.")
}

func TestConfigView(t *testing.T) {
	m := NewConfig()
	m.SetContent("gateway:\n  profiles:\n    - name: local\n      token: abc\n")
	m.SetSize(80, 10)
	out := m.View()
	assert.Contains(t, out, "built-in defaults")
	assert.Contains(t, out, "token: ****")
	assert.NotContains(t, out, "abc")

	m.Source = "/etc/opsconsole.yaml"
	assert.Contains(t, m.View(), "from /etc/opsconsole.yaml")
}
