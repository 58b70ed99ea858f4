package dashboard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"opsconsole/internal/domain"
	"opsconsole/internal/usecase/connection"
	"opsconsole/internal/usecase/timeline"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeMonitor struct {
	mu       sync.Mutex
	snap     connection.Snapshot
	retries  int
	active   []bool
	clients  []domain.GatewayClient
	nodes    []domain.NodeSummary
	nodesErr error
}

func (f *fakeMonitor) Snapshot() connection.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeMonitor) FetchStatus(context.Context) (domain.GatewayStatus, error) {
	return domain.GatewayStatus{OK: true, Version: "2026.2"}, nil
}

func (f *fakeMonitor) FetchNodes(context.Context) ([]domain.NodeSummary, error) {
	return f.nodes, f.nodesErr
}

func (f *fakeMonitor) TestConnection(context.Context) error { return nil }

func (f *fakeMonitor) RetryNow() {
	f.mu.Lock()
	f.retries++
	f.mu.Unlock()
}

func (f *fakeMonitor) SetActive(active bool) {
	f.mu.Lock()
	f.active = append(f.active, active)
	f.mu.Unlock()
}

func (f *fakeMonitor) UpdateClient(c domain.GatewayClient) {
	f.mu.Lock()
	f.clients = append(f.clients, c)
	f.mu.Unlock()
}

func (f *fakeMonitor) setSnapshot(s connection.Snapshot) {
	f.mu.Lock()
	f.snap = s
	f.mu.Unlock()
}

func newTestModel(t *testing.T, mon *fakeMonitor, mutate func(*DashboardDeps)) *DashboardModel {
	t.Helper()
	deps := DashboardDeps{
		Monitor:       mon,
		Timeline:      timeline.New(50, nil),
		Profiles:      []string{"Local"},
		ActiveProfile: "Local",
		BaseURL:       "http://127.0.0.1:18789",
		Now:           func() time.Time { return t0 },
	}
	if mutate != nil {
		mutate(&deps)
	}
	m := NewDashboardModel(deps)
	m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return m
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestRetryIsThrottled(t *testing.T) {
	mon := &fakeMonitor{snap: connection.Snapshot{State: domain.Disconnected()}}
	m := newTestModel(t, mon, func(d *DashboardDeps) {
		d.RetryLimiter = rate.NewLimiter(rate.Every(time.Hour), 1)
	})

	m.Update(key("r"))
	assert.Equal(t, 1, mon.retries)
	assert.Equal(t, "Retrying now", m.statusBar.Extra)

	m.Update(key("r"))
	assert.Equal(t, 1, mon.retries)
	assert.Equal(t, "Retry throttled", m.statusBar.Extra)
}

func TestRetryUnlimitedWithoutLimiter(t *testing.T) {
	mon := &fakeMonitor{snap: connection.Snapshot{State: domain.Disconnected()}}
	m := newTestModel(t, mon, nil)
	for range 3 {
		m.Update(key("r"))
	}
	assert.Equal(t, 3, mon.retries)
}

func TestNoticeClearsOnlyLatest(t *testing.T) {
	mon := &fakeMonitor{}
	m := newTestModel(t, mon, nil)
	m.Update(key("r"))
	m.Update(key("r"))

	m.Update(clearNoticeMsg{seq: 1})
	assert.NotEmpty(t, m.statusBar.Extra)
	m.Update(clearNoticeMsg{seq: m.noticeSeq})
	assert.Empty(t, m.statusBar.Extra)
}

func TestEventUpdatesBannerAndTimeline(t *testing.T) {
	mon := &fakeMonitor{snap: connection.Snapshot{State: domain.Connected()}}
	m := newTestModel(t, mon, nil)
	assert.False(t, m.banner.Visible())

	lastErr := &domain.ConnectionError{Message: domain.MsgCannotConnect, FirstSeenAt: t0, LastEmittedAt: t0}
	mon.setSnapshot(connection.Snapshot{
		State:     domain.Reconnecting(t0.Add(2 * time.Second)),
		LastError: lastErr,
		Countdown: connection.Countdown{Seconds: 2, Active: true},
	})

	stateEv := domain.NewEvent(domain.EventConnectionState, t0, domain.StatePayload{
		Previous: domain.Connected(),
		Current:  domain.Reconnecting(t0.Add(2 * time.Second)),
	})
	errEv := domain.NewEvent(domain.EventConnectionError, t0, domain.ErrorPayload{
		ConnectionError: *lastErr,
		Class:           domain.ClassTransient.String(),
	})
	m.deps.Timeline.Handle(context.Background(), stateEv)
	m.Update(EventBusMsg{Event: stateEv})
	m.deps.Timeline.Handle(context.Background(), errEv)
	m.Update(EventBusMsg{Event: errEv})

	assert.True(t, m.banner.Visible())
	assert.Equal(t, 2, m.banner.Countdown)
	assert.NotEmpty(t, m.banner.Hints)
	assert.Equal(t, domain.PhaseReconnecting, m.overview.Snapshot.State.Phase)
	assert.Equal(t, 2, m.unseen)
	assert.Equal(t, 2, m.timeline.Stream.VisibleCount())

	view := m.View()
	assert.Contains(t, view, domain.MsgCannotConnect)
	assert.Contains(t, view, "Retrying in 2s")

	m.Update(key("3"))
	assert.Equal(t, TabTimeline, m.activeTab)
	assert.Zero(t, m.unseen)
}

func TestReconnectFetchesNodes(t *testing.T) {
	mon := &fakeMonitor{snap: connection.Snapshot{State: domain.Connected()}}
	m := newTestModel(t, mon, nil)

	ev := domain.NewEvent(domain.EventConnectionState, t0, domain.StatePayload{
		Previous: domain.Disconnected(),
		Current:  domain.Connected(),
	})
	_, cmd := m.Update(EventBusMsg{Event: ev})
	require.NotNil(t, cmd)

	mon.nodes = []domain.NodeSummary{{ID: "n1", Name: "alpha", State: domain.NodeOnline}}
	msg := cmd()
	res, ok := msg.(NodesResultMsg)
	require.True(t, ok)
	assert.Equal(t, t0, res.At)
}

func TestHealthEventSetsStatus(t *testing.T) {
	mon := &fakeMonitor{snap: connection.Snapshot{State: domain.Connected()}}
	m := newTestModel(t, mon, nil)

	ev := domain.NewEvent(domain.EventHealthChecked, t0, domain.HealthPayload{
		At: t0, OK: true, Status: domain.GatewayStatus{OK: true, Version: "2026.3"},
	})
	m.Update(EventBusMsg{Event: ev})
	require.NotNil(t, m.overview.Status)
	assert.Equal(t, "2026.3", m.overview.Status.Version)

	m.Update(EventBusMsg{Event: domain.NewEvent(domain.EventClientSwapped, t0, nil)})
	assert.Nil(t, m.overview.Status)
}

func TestNodesResultFillsTable(t *testing.T) {
	mon := &fakeMonitor{snap: connection.Snapshot{State: domain.Connected()}}
	m := newTestModel(t, mon, nil)

	m.Update(NodesResultMsg{Nodes: []domain.NodeSummary{
		{ID: "n2", Name: "bravo", State: domain.NodeOffline},
		{ID: "n1", Name: "alpha", State: domain.NodeOnline},
	}, At: t0})
	m.Update(key("2"))

	assert.Len(t, m.nodes.Table.Nodes(), 2)
	assert.Equal(t, "n1", m.nodes.Table.Nodes()[0].ID)
	assert.Contains(t, m.View(), "2 nodes, 1 online")

	m.Update(NodesResultMsg{Err: errors.New("boom"), At: t0})
	assert.Len(t, m.nodes.Table.Nodes(), 2)
}

func TestFocusDrivesActivity(t *testing.T) {
	mon := &fakeMonitor{}
	m := newTestModel(t, mon, nil)

	m.Update(tea.BlurMsg{})
	m.Update(tea.FocusMsg{})
	assert.Equal(t, []bool{false, true}, mon.active)
}

func TestProfileSwitch(t *testing.T) {
	mon := &fakeMonitor{snap: connection.Snapshot{State: domain.Connected()}}
	var asked []string
	m := newTestModel(t, mon, func(d *DashboardDeps) {
		d.Profiles = []string{"Local", "lab"}
		d.SwitchProfile = func(name string) (domain.GatewayClient, string, error) {
			asked = append(asked, name)
			if name == "broken" {
				return nil, "", domain.ErrInvalidBaseURL
			}
			return nil, "http://lab:18789", nil
		}
	})

	_, cmd := m.Update(key("p"))
	require.NotNil(t, cmd)
	msg := cmd()
	sw, ok := msg.(ProfileSwitchedMsg)
	require.True(t, ok)
	assert.Equal(t, "lab", sw.Name)
	assert.Equal(t, []string{"lab"}, asked)
	assert.Len(t, mon.clients, 1)

	m.Update(sw)
	assert.Equal(t, "lab", m.profile)
	assert.Equal(t, "http://lab:18789", m.overview.BaseURL)
	assert.Equal(t, "lab", m.statusBar.Profile)

	m.Update(ProfileSwitchedMsg{Name: "broken", Err: domain.ErrInvalidBaseURL})
	assert.Equal(t, "lab", m.profile)
	assert.Contains(t, m.statusBar.Extra, "broken")
}

func TestProfileSwitchSingleProfile(t *testing.T) {
	m := newTestModel(t, &fakeMonitor{}, nil)
	_, cmd := m.Update(key("p"))
	require.NotNil(t, cmd)
	assert.Equal(t, "No other profiles configured", m.statusBar.Extra)
}

func TestTabKeys(t *testing.T) {
	m := newTestModel(t, &fakeMonitor{}, nil)
	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, TabNodes, m.activeTab)
	m.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	m.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	assert.Equal(t, TabConfig, m.activeTab)
	m.Update(key("1"))
	assert.Equal(t, TabOverview, m.activeTab)
}

func TestQuitUnsubscribes(t *testing.T) {
	m := newTestModel(t, &fakeMonitor{}, nil)
	called := false
	m.unsubscribe = func() { called = true }

	_, cmd := m.Update(key("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.True(t, called)
	assert.Nil(t, m.unsubscribe)
}

func TestViewBeforeResize(t *testing.T) {
	m := NewDashboardModel(DashboardDeps{Monitor: &fakeMonitor{}})
	assert.Contains(t, m.View(), "Initializing")
}

func TestHelpOverlay(t *testing.T) {
	mon := &fakeMonitor{}
	m := newTestModel(t, mon, nil)
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})

	m.Update(key("?"))
	require.True(t, m.help.Visible)
	assert.Contains(t, m.View(), "filter by name or id")

	// Keys go to the overlay while it is open.
	m.Update(key("r"))
	assert.Zero(t, mon.retries)

	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.False(t, m.help.Visible)
}

func TestNodeFilterCapturesKeys(t *testing.T) {
	mon := &fakeMonitor{}
	m := newTestModel(t, mon, nil)
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	m.Update(NodesResultMsg{Nodes: []domain.NodeSummary{
		{ID: "n1", Name: "queue-1", State: domain.NodeOnline},
		{ID: "n2", Name: "router", State: domain.NodeOffline},
	}, At: t0})
	m.Update(key("2"))

	m.Update(key("/"))
	m.Update(key("q"))
	m.Update(key("r"))
	assert.Zero(t, mon.retries)
	assert.Equal(t, "qr", m.nodes.Filter.Input.Value())
	assert.Empty(t, m.nodes.Table.Nodes())

	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Len(t, m.nodes.Table.Nodes(), 2)
}
