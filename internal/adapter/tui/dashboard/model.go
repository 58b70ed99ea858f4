package dashboard

import (
	"context"
	"encoding/json"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/time/rate"

	"opsconsole/internal/adapter/tui/components"
	"opsconsole/internal/adapter/tui/dashboard/tabs"
	"opsconsole/internal/adapter/tui/uxerror"
	"opsconsole/internal/domain"
	"opsconsole/internal/usecase/connection"
	"opsconsole/internal/usecase/timeline"
)

// Ensure *DashboardModel satisfies tea.Model.
var _ tea.Model = (*DashboardModel)(nil)

// Monitor is the part of *connection.Monitor the dashboard drives.
type Monitor interface {
	Snapshot() connection.Snapshot
	FetchStatus(ctx context.Context) (domain.GatewayStatus, error)
	FetchNodes(ctx context.Context) ([]domain.NodeSummary, error)
	TestConnection(ctx context.Context) error
	RetryNow()
	SetActive(active bool)
	UpdateClient(client domain.GatewayClient)
}

// ProfileSwitcher builds a client for the named profile and returns it with
// the profile's normalized base URL.
type ProfileSwitcher func(name string) (domain.GatewayClient, string, error)

// DashboardTab identifies which tab is active.
type DashboardTab int

const (
	TabOverview DashboardTab = iota
	TabNodes
	TabTimeline
	TabConfig
)

const defaultNodeRefresh = 15 * time.Second

var helpSections = []components.HelpSection{
	{Title: "Global", Keys: []components.KeyHelp{
		{Keys: "Tab / Shift+Tab", Desc: "next / previous tab"},
		{Keys: "1-4", Desc: "jump to tab"},
		{Keys: "r", Desc: "retry the Gateway connection now"},
		{Keys: "t", Desc: "test the connection"},
		{Keys: "n", Desc: "refresh nodes"},
		{Keys: "p", Desc: "switch to the next profile"},
		{Keys: "?", Desc: "toggle this help"},
		{Keys: "q / Ctrl+C", Desc: "quit"},
	}},
	{Title: "Nodes", Keys: []components.KeyHelp{
		{Keys: "/", Desc: "filter by name or id"},
		{Keys: "Enter", Desc: "apply the filter"},
		{Keys: "Esc", Desc: "clear the filter"},
	}},
	{Title: "Timeline", Keys: []components.KeyHelp{
		{Keys: "e", Desc: "errors only / all events"},
	}},
}

// DashboardDeps are dependencies for the dashboard.
type DashboardDeps struct {
	Monitor  Monitor
	Bus      domain.EventBus
	Timeline *timeline.Store

	Profiles      []string
	ActiveProfile string
	BaseURL       string
	SwitchProfile ProfileSwitcher
	StartMonitor  func() // called once the bus subscription is in place

	Config       string // effective config as YAML
	ConfigPath   string
	RetryLimiter *rate.Limiter // nil means unlimited
	NodeRefresh  time.Duration // node.list polling while connected
	Now          func() time.Time
}

// DashboardModel is the root Bubble Tea model of the console.
type DashboardModel struct {
	deps DashboardDeps

	activeTab DashboardTab
	tabBar    components.TabBarModel
	banner    components.BannerModel
	statusBar components.StatusBarModel

	overview tabs.OverviewModel
	nodes    tabs.NodesModel
	timeline tabs.TimelineModel
	config   tabs.ConfigModel
	help     components.HelpModel

	profile     string
	unseen      int
	noticeSeq   int
	width       int
	height      int
	programSend func(tea.Msg)
	unsubscribe func()
}

// NewDashboardModel creates the dashboard model.
func NewDashboardModel(deps DashboardDeps) *DashboardModel {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.NodeRefresh <= 0 {
		deps.NodeRefresh = defaultNodeRefresh
	}

	m := &DashboardModel{
		deps: deps,
		tabBar: components.NewTabBar([]components.Tab{
			{ID: "overview", Label: "Overview"},
			{ID: "nodes", Label: "Nodes"},
			{ID: "timeline", Label: "Timeline"},
			{ID: "config", Label: "Config"},
		}),
		statusBar: components.NewStatusBar(),
		overview:  tabs.NewOverview(deps.Now),
		nodes:     tabs.NewNodes(),
		timeline:  tabs.NewTimeline(),
		config:    tabs.NewConfig(),
		help:      components.NewHelp(helpSections),
		profile:   deps.ActiveProfile,
	}
	m.overview.Profile = deps.ActiveProfile
	m.overview.BaseURL = deps.BaseURL
	m.statusBar.Hints = []components.KeyHint{
		{Key: "Tab", Desc: "Switch"},
		{Key: "r", Desc: "Retry"},
		{Key: "t", Desc: "Test"},
		{Key: "n", Desc: "Nodes"},
		{Key: "p", Desc: "Profile"},
		{Key: "?", Desc: "Help"},
		{Key: "q", Desc: "Quit"},
	}
	m.config.Source = deps.ConfigPath
	if deps.Config != "" {
		m.config.SetContent(deps.Config)
	}
	m.syncSnapshot()
	return m
}

// SetProgramSender sets the function used to inject messages from the EventBus.
// Must be called before Run().
func (m *DashboardModel) SetProgramSender(send func(tea.Msg)) {
	m.programSend = send
}

// Init subscribes to the EventBus and loads status and nodes.
func (m *DashboardModel) Init() tea.Cmd {
	if m.deps.Bus != nil && m.programSend != nil {
		store := m.deps.Timeline
		send := m.programSend
		m.unsubscribe = m.deps.Bus.SubscribeAll(func(ctx context.Context, event domain.Event) {
			if store != nil {
				store.Handle(ctx, event)
			}
			send(EventBusMsg{Event: event})
		})
	}
	if m.deps.StartMonitor != nil {
		m.deps.StartMonitor()
	}
	return tea.Batch(
		fetchStatusCmd(m.deps.Monitor),
		fetchNodesCmd(m.deps.Monitor, m.deps.Now),
		nodeTickCmd(m.deps.NodeRefresh),
		m.overview.Spinner.Tick,
	)
}

// Update handles messages.
func (m *DashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		return m, nil

	case tea.FocusMsg:
		m.deps.Monitor.SetActive(true)
		m.syncSnapshot()
		return m, nil

	case tea.BlurMsg:
		m.deps.Monitor.SetActive(false)
		m.syncSnapshot()
		return m, nil

	case tea.KeyMsg:
		if model, cmd, handled := m.handleKey(msg); handled {
			return model, cmd
		}

	case EventBusMsg:
		return m, m.handleEvent(msg.Event)

	case StatusResultMsg:
		if msg.Err == nil {
			st := msg.Status
			m.overview.Status = &st
		}
		m.syncSnapshot()
		return m, nil

	case NodesResultMsg:
		m.nodes.SetResult(msg.Nodes, msg.Err, msg.At)
		m.syncSnapshot()
		return m, nil

	case TestResultMsg:
		note := msg.Result.Message
		if !msg.Result.OK() {
			note = string(msg.Result.Kind) + ": " + note
		}
		m.overview.TestNote = note
		return m, m.notice(msg.Result.Message)

	case ProfileSwitchedMsg:
		if msg.Err != nil {
			return m, m.notice("Profile " + msg.Name + ": " + uxerror.Humanize(msg.Err).Message)
		}
		m.profile = msg.Name
		m.overview.Profile = msg.Name
		m.overview.BaseURL = msg.BaseURL
		m.overview.Status = nil
		m.overview.TestNote = ""
		m.nodes.SetResult(nil, nil, time.Time{})
		m.layout()
		m.syncSnapshot()
		return m, tea.Batch(m.notice("Switched to "+msg.Name), fetchNodesCmd(m.deps.Monitor, m.deps.Now))

	case nodeTickMsg:
		cmds := []tea.Cmd{nodeTickCmd(m.deps.NodeRefresh)}
		if m.deps.Monitor.Snapshot().State.Phase == domain.PhaseConnected {
			cmds = append(cmds, fetchNodesCmd(m.deps.Monitor, m.deps.Now))
		}
		return m, tea.Batch(cmds...)

	case clearNoticeMsg:
		if msg.seq == m.noticeSeq {
			m.statusBar.Extra = ""
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.overview, cmd = m.overview.Update(msg)
		if cmd == nil {
			// idle: poll once a second so the spinner resumes on reconnect
			cmd = tea.Tick(time.Second, func(time.Time) tea.Msg { return m.overview.Spinner.Tick() })
		}
		return m, cmd
	}

	var cmd tea.Cmd
	switch m.activeTab {
	case TabNodes:
		m.nodes, cmd = m.nodes.Update(msg)
	case TabTimeline:
		m.timeline, cmd = m.timeline.Update(msg)
	case TabConfig:
		m.config, cmd = m.config.Update(msg)
	}
	return m, cmd
}

func (m *DashboardModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	if msg.Type == tea.KeyCtrlC {
		return m, m.quit(), true
	}
	if m.help.Visible {
		var cmd tea.Cmd
		m.help, cmd = m.help.Update(msg)
		return m, cmd, true
	}
	if m.activeTab == TabNodes && m.nodes.Capturing() {
		return m, nil, false
	}

	switch msg.Type {
	case tea.KeyTab:
		m.tabBar.Next()
		m.setTab(DashboardTab(m.tabBar.Active))
		return m, nil, true
	case tea.KeyShiftTab:
		m.tabBar.Prev()
		m.setTab(DashboardTab(m.tabBar.Active))
		return m, nil, true
	case tea.KeyRunes:
	default:
		return m, nil, false
	}

	switch string(msg.Runes) {
	case "1", "2", "3", "4":
		m.setTab(DashboardTab(msg.Runes[0] - '1'))
		return m, nil, true
	case "q":
		return m, m.quit(), true
	case "?":
		m.help.Toggle()
		return m, nil, true
	case "r":
		if m.deps.RetryLimiter != nil && !m.deps.RetryLimiter.Allow() {
			return m, m.notice("Retry throttled"), true
		}
		m.deps.Monitor.RetryNow()
		m.syncSnapshot()
		return m, m.notice("Retrying now"), true
	case "t":
		m.overview.TestNote = "Testing connection..."
		return m, testConnectionCmd(m.deps.Monitor), true
	case "n":
		return m, fetchNodesCmd(m.deps.Monitor, m.deps.Now), true
	case "p":
		next, ok := m.nextProfile()
		if !ok {
			return m, m.notice("No other profiles configured"), true
		}
		return m, switchProfileCmd(m.deps.Monitor, m.deps.SwitchProfile, next), true
	}
	return m, nil, false
}

func (m *DashboardModel) quit() tea.Cmd {
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
	return tea.Quit
}

func (m *DashboardModel) nextProfile() (string, bool) {
	if m.deps.SwitchProfile == nil || len(m.deps.Profiles) < 2 {
		return "", false
	}
	for i, p := range m.deps.Profiles {
		if p == m.profile {
			return m.deps.Profiles[(i+1)%len(m.deps.Profiles)], true
		}
	}
	return m.deps.Profiles[0], true
}

// View renders the dashboard.
func (m *DashboardModel) View() string {
	if m.width == 0 {
		return "  Initializing..."
	}
	if m.help.Visible {
		return m.help.View()
	}

	var content string
	switch m.activeTab {
	case TabOverview:
		content = m.overview.View()
	case TabNodes:
		content = m.nodes.View()
	case TabTimeline:
		content = m.timeline.View()
	case TabConfig:
		content = m.config.View()
	}

	parts := []string{m.tabBar.View()}
	if m.banner.Visible() {
		parts = append(parts, m.banner.View())
	}
	parts = append(parts, content, m.statusBar.View())
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m *DashboardModel) layout() {
	tabH := 1
	footerH := 1
	contentH := m.height - tabH - footerH - m.banner.Height()
	if contentH < 5 {
		contentH = 5
	}

	m.tabBar.SetWidth(m.width)
	m.banner.SetWidth(m.width)
	m.statusBar.SetWidth(m.width)
	m.overview.SetSize(m.width, contentH)
	m.nodes.SetSize(m.width, contentH)
	m.timeline.SetSize(m.width, contentH)
	m.config.SetSize(m.width, contentH)
	m.help.SetSize(m.width, m.height)
}

func (m *DashboardModel) setTab(tab DashboardTab) {
	m.activeTab = tab
	m.tabBar.SetActive(int(tab))
	if tab == TabTimeline {
		m.unseen = 0
		m.tabBar.SetBadge("timeline", 0)
	}
}

func (m *DashboardModel) handleEvent(event domain.Event) tea.Cmd {
	var cmd tea.Cmd
	switch event.Type {
	case domain.EventConnectionError:
		var p domain.ErrorPayload
		if err := json.Unmarshal(event.Payload, &p); err == nil {
			m.banner.Hints = uxerror.HintsForClass(p.Class)
		}
		m.bumpTimeline()
	case domain.EventConnectionState:
		var p domain.StatePayload
		if err := json.Unmarshal(event.Payload, &p); err == nil && p.Current.Phase == domain.PhaseConnected &&
			p.Previous.Phase != domain.PhaseConnected {
			cmd = fetchNodesCmd(m.deps.Monitor, m.deps.Now)
		}
		m.bumpTimeline()
	case domain.EventHealthChecked:
		var p domain.HealthPayload
		if err := json.Unmarshal(event.Payload, &p); err == nil && p.OK {
			st := p.Status
			m.overview.Status = &st
		}
	case domain.EventClientSwapped:
		m.overview.Status = nil
	}

	if m.deps.Timeline != nil {
		m.timeline.SetEntries(m.deps.Timeline.Entries())
	}
	before := m.banner.Height()
	m.syncSnapshot()
	if m.banner.Height() != before && m.width > 0 {
		m.layout()
	}
	return cmd
}

func (m *DashboardModel) bumpTimeline() {
	if m.activeTab == TabTimeline {
		return
	}
	m.unseen++
	m.tabBar.SetBadge("timeline", m.unseen)
}

// syncSnapshot copies the monitor's snapshot into the views.
func (m *DashboardModel) syncSnapshot() {
	snap := m.deps.Monitor.Snapshot()
	m.overview.Snapshot = snap
	m.statusBar.Profile = m.profile
	m.statusBar.State = snap.State
	m.banner.State = snap.State
	m.banner.Err = snap.LastError
	m.banner.Countdown = snap.Countdown.Seconds
	m.banner.Counting = snap.Countdown.Active
	if snap.LastError == nil {
		m.banner.Hints = nil
	}
}

func (m *DashboardModel) notice(text string) tea.Cmd {
	m.noticeSeq++
	m.statusBar.Extra = text
	return clearNoticeCmd(m.noticeSeq)
}
