// Package app implements the main Bubble Tea application with tab-based navigation.
package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/j-veylop/binwatch-tui/internal/services"
	"github.com/j-veylop/binwatch-tui/internal/services/aggregation"
	"github.com/j-veylop/binwatch-tui/internal/services/backend"
	"github.com/j-veylop/binwatch-tui/internal/ui/styles"
)

// TabID represents the identifier for a tab in the application.
type TabID int

const (
	// TabBins is the ID for the bins tab.
	TabBins TabID = iota
	// TabStats is the ID for the statistics tab.
	TabStats
	// TabSnapshots is the ID for the snapshots tab.
	TabSnapshots
	// TabInfo is the ID for the info tab.
	TabInfo
)

// String returns the string representation of the TabID.
func (t TabID) String() string {
	switch t {
	case TabBins:
		return "Bins"
	case TabStats:
		return "Stats"
	case TabSnapshots:
		return "Snapshots"
	case TabInfo:
		return "Info"
	default:
		return "Unknown"
	}
}

// Tab defines the interface that all tabs must implement.
type Tab interface {
	// Init initializes the tab and returns any initial commands.
	Init() tea.Cmd

	// Update handles messages and returns the updated tab and any commands.
	Update(msg tea.Msg) (Tab, tea.Cmd)

	// View renders the tab content.
	View() string

	// SetSize sets the available size for the tab.
	SetSize(width, height int)

	// ShortHelp returns key bindings for the short help view.
	ShortHelp() []key.Binding

	// FullHelp returns key bindings for the full help view.
	FullHelp() [][]key.Binding
}

// KeyMap defines the keybindings for the application.
type KeyMap struct {
	Tab1     key.Binding
	Tab2     key.Binding
	Tab3     key.Binding
	Tab4     key.Binding
	NextTab  key.Binding
	PrevTab  key.Binding
	Refresh  key.Binding
	Help     key.Binding
	Quit     key.Binding
	Up       key.Binding
	Down     key.Binding
	Enter    key.Binding
	Escape   key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Home     key.Binding
	End      key.Binding
}

// DefaultKeyMap returns the default keybindings.
func DefaultKeyMap() KeyMap {
	km := KeyMap{}
	km = setTabKeys(km)
	km = setActionKeys(km)
	km = setNavigationKeys(km)
	km = setListKeys(km)
	return km
}

func setTabKeys(k KeyMap) KeyMap {
	k.Tab1 = key.NewBinding(key.WithKeys("1"), key.WithHelp("1", "bins"))
	k.Tab2 = key.NewBinding(key.WithKeys("2"), key.WithHelp("2", "stats"))
	k.Tab3 = key.NewBinding(key.WithKeys("3"), key.WithHelp("3", "snapshots"))
	k.Tab4 = key.NewBinding(key.WithKeys("4"), key.WithHelp("4", "info"))
	k.NextTab = key.NewBinding(key.WithKeys("tab", "l", "right"), key.WithHelp("tab/→", "next tab"))
	k.PrevTab = key.NewBinding(key.WithKeys("shift+tab", "h", "left"), key.WithHelp("shift+tab/←", "prev tab"))
	return k
}

func setActionKeys(k KeyMap) KeyMap {
	k.Refresh = key.NewBinding(key.WithKeys("r", "ctrl+r"), key.WithHelp("r", "refresh"))
	k.Help = key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "toggle help"))
	k.Quit = key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit"))
	return k
}

func setNavigationKeys(k KeyMap) KeyMap {
	k.Up = key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up"))
	k.Down = key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down"))
	k.Enter = key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select"))
	k.Escape = key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel"))
	return k
}

func setListKeys(k KeyMap) KeyMap {
	k.PageUp = key.NewBinding(key.WithKeys("pgup", "ctrl+u"), key.WithHelp("pgup", "page up"))
	k.PageDown = key.NewBinding(key.WithKeys("pgdown", "ctrl+d"), key.WithHelp("pgdn", "page down"))
	k.Home = key.NewBinding(key.WithKeys("home", "g"), key.WithHelp("home", "go to top"))
	k.End = key.NewBinding(key.WithKeys("end", "G"), key.WithHelp("end", "go to bottom"))
	return k
}

// ShortHelp returns key bindings for the short help view.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.Refresh, k.Quit}
}

// FullHelp returns key bindings for the full help view.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Tab1, k.Tab2, k.Tab3, k.Tab4},
		{k.NextTab, k.PrevTab},
		{k.Up, k.Down, k.PageUp, k.PageDown},
		{k.Refresh, k.Help, k.Quit},
	}
}

// Styles defines the application styles.
type Styles struct {
	// Tab bar styles
	TabBar       lipgloss.Style
	ActiveTab    lipgloss.Style
	InactiveTab  lipgloss.Style
	TabSeparator lipgloss.Style

	// Notification styles
	NotificationSuccess lipgloss.Style
	NotificationError   lipgloss.Style
	NotificationWarning lipgloss.Style
	NotificationInfo    lipgloss.Style

	// Content styles
	Content lipgloss.Style
	Help    lipgloss.Style
	Spinner lipgloss.Style
	Toast   lipgloss.Style

	// Common styles
	Title     lipgloss.Style
	Subtle    lipgloss.Style
	Highlight lipgloss.Style
	Error     lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
}

// DefaultStyles returns the default application styles.
func DefaultStyles() Styles {
	subtle := lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#5C5C5C"}
	highlight := lipgloss.AdaptiveColor{Light: "#2E7D32", Dark: "#5FD787"}
	success := lipgloss.AdaptiveColor{Light: "#04B575", Dark: "#04B575"}
	warning := lipgloss.AdaptiveColor{Light: "#FF8C00", Dark: "#FF8C00"}
	errorColor := lipgloss.AdaptiveColor{Light: "#FF5F87", Dark: "#FF5F87"}
	info := lipgloss.AdaptiveColor{Light: "#0087D7", Dark: "#5FAFFF"}

	s := Styles{}
	s.TabBar = lipgloss.NewStyle().Padding(0, 1).BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).BorderForeground(subtle)
	s.ActiveTab = lipgloss.NewStyle().Bold(true).Foreground(highlight).Padding(0, 2)
	s.InactiveTab = lipgloss.NewStyle().Foreground(subtle).Padding(0, 2)
	s.TabSeparator = lipgloss.NewStyle().Foreground(subtle).SetString(" | ")

	s.NotificationSuccess = lipgloss.NewStyle().Foreground(success).Padding(0, 1)
	s.NotificationError = lipgloss.NewStyle().Foreground(errorColor).Bold(true).Padding(0, 1)
	s.NotificationWarning = lipgloss.NewStyle().Foreground(warning).Padding(0, 1)
	s.NotificationInfo = lipgloss.NewStyle().Foreground(info).Padding(0, 1)

	s.Content = lipgloss.NewStyle().Padding(1, 2)
	s.Help = lipgloss.NewStyle().Foreground(subtle).Padding(0, 1)
	s.Spinner = lipgloss.NewStyle().Foreground(highlight)
	s.Toast = styles.ToastStyle

	s.Title = lipgloss.NewStyle().Bold(true).Foreground(highlight)
	s.Subtle = lipgloss.NewStyle().Foreground(subtle)
	s.Highlight = lipgloss.NewStyle().Foreground(highlight)
	s.Error = lipgloss.NewStyle().Foreground(errorColor)
	s.Success = lipgloss.NewStyle().Foreground(success)
	s.Warning = lipgloss.NewStyle().Foreground(warning)

	return s
}

// Model is the main application model.
type Model struct {
	// Tab management
	activeTab TabID
	tabs      []Tab
	tabNames  []string

	// Shared state
	state    *State
	services *services.Manager
	commands *Commands
	keymap   KeyMap
	styles   Styles

	// Statistics requests
	engine   StatsEngine
	tracker  *aggregation.Tracker
	statsCtx context.Context

	// UI components
	spinner spinner.Model

	// Window dimensions
	width  int
	height int

	// UI state
	showHelp     bool
	ready        bool
	inputFocused bool

	// Service subscription
	eventChannel chan services.ServiceEvent
}

// NewModel initializes a new application model.
func NewModel(mgr *services.Manager) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(styles.Primary)

	m := &Model{
		activeTab: TabBins,
		tabNames:  []string{"Bins", "Stats", "Snapshots", "Info"},
		tabs:      make([]Tab, 4), // set by SetTabs
		state:     NewState(),
		services:  mgr,
		commands:  NewCommands(mgr),
		keymap:    DefaultKeyMap(),
		styles:    DefaultStyles(),
		tracker:   aggregation.NewTracker(),
		spinner:   s,
	}
	if mgr != nil {
		m.engine = mgr.Engine()
	}

	return m
}

// SetTabs sets the tabs for the model.
func (m *Model) SetTabs(tabs []Tab) {
	m.tabs = tabs
	if m.width > 0 && m.height > 0 {
		m.updateTabSizes()
	}
}

// SetEngine replaces the statistics engine.
func (m *Model) SetEngine(engine StatsEngine) {
	m.engine = engine
}

// GetState returns the application state.
func (m *Model) GetState() *State {
	return m.state
}

// GetServices returns the service manager.
func (m *Model) GetServices() *services.Manager {
	return m.services
}

// GetCommands returns the commands helper.
func (m *Model) GetCommands() *Commands {
	return m.commands
}

// GetKeyMap returns the key bindings.
func (m *Model) GetKeyMap() KeyMap {
	return m.keymap
}

// GetStyles returns the application styles.
func (m *Model) GetStyles() Styles {
	return m.styles
}

// GetActiveTab returns the currently active tab ID.
func (m *Model) GetActiveTab() TabID {
	return m.activeTab
}

// GetWidth returns the window width.
func (m *Model) GetWidth() int {
	return m.width
}

// GetHeight returns the window height.
func (m *Model) GetHeight() int {
	return m.height
}

// IsReady returns true if the model is ready (window size received).
func (m *Model) IsReady() bool {
	return m.ready
}

// Init initializes the model.
func (m *Model) Init() tea.Cmd {
	m.state.SetLoadingNotification("Loading...")

	cmds := []tea.Cmd{
		m.spinner.Tick,
		defaultTickCmd(),
	}

	if m.services != nil {
		cmds = append(cmds, subscribeToServicesCmd(m.services))
		cmds = append(cmds, loadInitialData(m.services))
	}

	for _, tab := range m.tabs {
		if tab != nil {
			cmds = append(cmds, tab.Init())
		}
	}

	return tea.Batch(cmds...)
}

// Update handles messages and updates the model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg, tea.KeyMsg, spinner.TickMsg:
		if cmd := m.handleTeaMsg(msg); cmd != nil {
			cmds = append(cmds, cmd)
		}

	default:
		if appCmds := m.handleAppMsg(msg); len(appCmds) > 0 {
			cmds = append(cmds, appCmds...)
		}
	}

	if cmd := m.updateActiveTab(msg); cmd != nil {
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) handleTeaMsg(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.handleWindowSize(msg)
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	case spinner.TickMsg:
		return m.handleSpinnerTick(msg)
	}
	return nil
}

func (m *Model) handleAppMsg(msg tea.Msg) []tea.Cmd {
	var cmds []tea.Cmd
	switch msg := msg.(type) {
	case TickMsg:
		cmds = append(cmds, m.handleTick())
	case SubscriptionEventMsg:
		cmds = append(cmds, m.handleSubscriptionEvent(msg)...)
	case ServiceEventMsg:
		cmds = append(cmds, m.handleServiceEventMsg(msg)...)
	case BinsLoadedMsg:
		cmds = append(cmds, m.handleBinsLoaded(msg)...)
	case SelectBinMsg:
		cmds = append(cmds, m.handleSelectBin(msg)...)
	case LoadHistoryMsg:
		cmds = append(cmds, m.loadHistory(msg.BinID))
	case HistoryLoadedMsg:
		cmds = append(cmds, m.handleHistoryLoaded(msg)...)
	case UpdateBinMsg:
		if m.services != nil {
			cmds = append(cmds, updateBinCmd(m.services, msg.BinID, msg.Patch))
		}
	case BinUpdatedMsg:
		cmds = append(cmds, m.handleBinUpdated(msg)...)
	case LoadSnapshotsMsg:
		cmds = append(cmds, m.loadSnapshots(msg.BinID, msg.Page))
	case SnapshotsLoadedMsg:
		cmds = append(cmds, m.handleSnapshotsLoaded(msg)...)
	case LoadSnapshotDetailMsg:
		if m.services != nil {
			cmds = append(cmds, loadSnapshotDetailCmd(m.services, msg.BinID, msg.SnapshotID))
		}
	case SetWindowMsg:
		m.state.SetWindow(msg.Window)
		cmds = append(cmds, m.requestStats())
	case RequestStatsMsg:
		cmds = append(cmds, m.requestStats())
	case MetricsReadyMsg:
		cmds = append(cmds, m.handleMetricsReady(msg)...)
	case NarrativeReadyMsg:
		cmds = append(cmds, m.handleNarrativeReady(msg)...)
	case AddNotificationMsg:
		cmds = append(cmds, m.handleAddNotification(msg)...)
	case RemoveNotificationMsg:
		m.state.RemoveNotification(msg.ID)
	case ClearNotificationsMsg:
		m.state.ClearAllNotifications()
	case ClearExpiredNotificationsMsg:
		m.state.ClearExpiredNotifications()
	case StartLoadingMsg:
		m.handleStartLoading(msg)
	case StopLoadingMsg:
		m.handleStopLoading(msg)
	case ErrorMsg:
		if text := errorText(msg.Error); text != "" {
			cmds = append(cmds, notifyErrorCmd(text))
		}
	case RefreshMsg:
		cmds = append(cmds, m.handleRefresh(msg)...)
	case TabSwitchMsg:
		cmds = append(cmds, m.switchTab(msg.Tab))
	case ToggleHelpMsg:
		m.showHelp = !m.showHelp
	case InputFocusMsg:
		m.inputFocused = msg.Focused
	}
	return cmds
}

func (m *Model) handleWindowSize(msg tea.WindowSizeMsg) {
	m.width = msg.Width
	m.height = msg.Height
	m.ready = true
	m.updateTabSizes()
}

func (m *Model) handleSpinnerTick(msg spinner.TickMsg) tea.Cmd {
	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)
	return cmd
}

func (m *Model) handleTick() tea.Cmd {
	m.state.ClearExpiredNotifications()
	return defaultTickCmd()
}

func (m *Model) handleSubscriptionEvent(msg SubscriptionEventMsg) []tea.Cmd {
	m.eventChannel = msg.Channel
	return []tea.Cmd{waitForServiceEventCmd(m.eventChannel)}
}

func (m *Model) handleServiceEventMsg(msg ServiceEventMsg) []tea.Cmd {
	var cmds []tea.Cmd
	if cmd := m.handleServiceEvent(msg.Event); cmd != nil {
		cmds = append(cmds, cmd)
	}
	if m.eventChannel != nil {
		cmds = append(cmds, waitForServiceEventCmd(m.eventChannel))
	}
	return cmds
}

func (m *Model) handleBinsLoaded(msg BinsLoadedMsg) []tea.Cmd {
	m.state.SetLoading("initial", false)
	m.state.SetLoading("bins", false)
	if !m.state.AnyLoading() {
		m.state.ClearLoadingNotification()
	}

	if msg.Error != nil {
		return []tea.Cmd{notifyErrorCmd(fmt.Sprintf("Failed to load bins: %v", msg.Error))}
	}

	before := m.state.GetSelectedBinID()
	m.state.SetSchool(msg.School)
	m.state.SetBins(msg.Bins)
	if before == 0 && m.services != nil {
		if saved := m.services.SelectedBinID(); saved != 0 {
			m.state.SelectBin(saved)
		}
	}

	after := m.state.GetSelectedBinID()
	if after == 0 || after == before {
		return nil
	}
	return m.selectionChanged(after)
}

func (m *Model) handleSelectBin(msg SelectBinMsg) []tea.Cmd {
	if msg.BinID == m.state.GetSelectedBinID() {
		return nil
	}
	if !m.state.SelectBin(msg.BinID) {
		return nil
	}

	cmds := m.selectionChanged(msg.BinID)
	if m.services != nil {
		cmds = append(cmds, selectBinCmd(m.services, msg.BinID))
	}
	return cmds
}

// selectionChanged reloads everything derived from the selected bin.
func (m *Model) selectionChanged(binID int64) []tea.Cmd {
	return []tea.Cmd{
		func() tea.Msg { return BinSelectedMsg{BinID: binID} },
		m.loadHistory(binID),
		m.loadSnapshots(binID, 0),
		m.requestStats(),
	}
}

func (m *Model) loadHistory(binID int64) tea.Cmd {
	if m.services == nil || binID == 0 {
		return nil
	}
	m.state.SetLoading("history", true)
	return loadHistoryCmd(m.services, binID)
}

func (m *Model) handleHistoryLoaded(msg HistoryLoadedMsg) []tea.Cmd {
	m.state.SetLoading("history", false)
	if msg.BinID != m.state.GetSelectedBinID() {
		return nil
	}

	m.state.SetHistory(HistoryState{
		BinID:   msg.BinID,
		History: msg.History,
		Local:   msg.Local,
		Err:     msg.Error,
	})
	if msg.Local {
		return []tea.Cmd{notifyWarningCmd("Backend unreachable, showing local history")}
	}
	return nil
}

func (m *Model) handleBinUpdated(msg BinUpdatedMsg) []tea.Cmd {
	if msg.Error != nil {
		return []tea.Cmd{notifyErrorCmd(fmt.Sprintf("Failed to update bin: %v", msg.Error))}
	}
	if msg.Bin != nil {
		m.state.ReplaceBin(*msg.Bin)
		return []tea.Cmd{notifySuccessCmd(fmt.Sprintf("Updated %s", msg.Bin.DisplayName()))}
	}
	return nil
}

func (m *Model) loadSnapshots(binID int64, page int) tea.Cmd {
	if m.services == nil || binID == 0 {
		return nil
	}
	m.state.SetLoading("snapshots", true)
	return loadSnapshotsCmd(m.services, binID, max(page, 0))
}

func (m *Model) handleSnapshotsLoaded(msg SnapshotsLoadedMsg) []tea.Cmd {
	m.state.SetLoading("snapshots", false)
	if msg.Page.BinID != m.state.GetSelectedBinID() {
		return nil
	}
	m.state.SetSnapshots(msg.Page)
	if msg.Page.Err != nil {
		return []tea.Cmd{notifyErrorCmd(fmt.Sprintf("Failed to load snapshots: %v", msg.Page.Err))}
	}
	return nil
}

// requestStats starts a statistics request for the selected bin and window.
// The previous request is cancelled and its results are discarded.
func (m *Model) requestStats() tea.Cmd {
	binID := m.state.GetSelectedBinID()
	if binID == 0 || m.engine == nil {
		return nil
	}

	ctx, req := m.tracker.Begin(context.Background(), binID, m.state.GetWindow())
	ctx = backend.WithRequestID(ctx, req.ID)
	m.statsCtx = ctx
	m.state.BeginStats(req)

	return tea.Batch(
		computeMetricsCmd(m.engine, ctx, req),
		statsUpdatedCmd(req.Generation),
	)
}

func (m *Model) handleMetricsReady(msg MetricsReadyMsg) []tea.Cmd {
	gen := msg.Request.Generation
	if !m.tracker.IsCurrent(gen) {
		return nil
	}

	if msg.Error != nil {
		m.state.SetStatsOutcome(aggregation.OutcomeForError(msg.Request, msg.Error))
		m.tracker.Finish(gen)
		return []tea.Cmd{statsUpdatedCmd(gen)}
	}

	if !m.state.SetStatsMetrics(gen, msg.Metrics) {
		return nil
	}
	return []tea.Cmd{
		summarizeCmd(m.engine, m.statsCtx, msg.Request, msg.Metrics),
		statsUpdatedCmd(gen),
	}
}

func (m *Model) handleNarrativeReady(msg NarrativeReadyMsg) []tea.Cmd {
	gen := msg.Outcome.Request.Generation
	if !m.tracker.IsCurrent(gen) {
		return nil
	}
	if !m.state.SetStatsOutcome(msg.Outcome) {
		return nil
	}
	m.tracker.Finish(gen)
	return []tea.Cmd{statsUpdatedCmd(gen)}
}

// statsStale reports whether the stored statistics belong to another bin or
// window than the current selection.
func (m *Model) statsStale() bool {
	st := m.state.GetStats()
	return st.Request.Generation == 0 ||
		st.Request.BinID != m.state.GetSelectedBinID() ||
		st.Request.Window != m.state.GetWindow()
}

func statsUpdatedCmd(generation uint64) tea.Cmd {
	return func() tea.Msg {
		return StatsUpdatedMsg{Generation: generation}
	}
}

func (m *Model) handleAddNotification(msg AddNotificationMsg) []tea.Cmd {
	var cmds []tea.Cmd
	id := m.state.AddNotification(msg.Type, msg.Message, msg.Duration)
	if msg.Duration > 0 {
		cmds = append(cmds, clearNotificationCmd(id, msg.Duration))
	}
	return cmds
}

func (m *Model) handleStartLoading(msg StartLoadingMsg) {
	m.state.SetLoading(msg.Resource, true)
	m.state.SetLoadingNotification("Refreshing...")
}

func (m *Model) handleStopLoading(msg StopLoadingMsg) {
	m.state.SetLoading(msg.Resource, false)
	if !m.state.AnyLoading() {
		m.state.ClearLoadingNotification()
	}
}

func (m *Model) handleRefresh(msg RefreshMsg) []tea.Cmd {
	var cmds []tea.Cmd
	binID := m.state.GetSelectedBinID()

	switch msg.Resource {
	case "all", "bins":
		if m.services == nil {
			return cmds
		}
		m.services.RefreshBins()
		m.state.SetLoading("bins", true)
		cmds = append(cmds, loadBinsCmd(m.services))
		if msg.Resource == "all" {
			cmds = append(cmds, m.loadHistory(binID), m.requestStats())
		}
	case "history":
		cmds = append(cmds, m.loadHistory(binID))
	case "snapshots":
		cmds = append(cmds, m.loadSnapshots(binID, m.state.GetSnapshots().Page))
	case "stats":
		cmds = append(cmds, m.requestStats())
	}
	return cmds
}

func (m *Model) switchTab(tab TabID) tea.Cmd {
	if int(tab) < 0 || int(tab) >= len(m.tabs) {
		return nil
	}
	m.activeTab = tab
	m.updateTabSizes()
	if tab == TabStats && m.statsStale() {
		return m.requestStats()
	}
	return nil
}

func (m *Model) updateActiveTab(msg tea.Msg) tea.Cmd {
	if int(m.activeTab) < len(m.tabs) && m.tabs[m.activeTab] != nil {
		var cmd tea.Cmd
		m.tabs[m.activeTab], cmd = m.tabs[m.activeTab].Update(msg)
		return cmd
	}
	return nil
}

func (m *Model) updateTabSizes() {
	contentHeight := m.height - 5
	contentHeight = max(0, contentHeight)

	for _, tab := range m.tabs {
		if tab != nil {
			tab.SetSize(m.width, contentHeight)
		}
	}
}

// handleKeyMsg handles keyboard input.
func (m *Model) handleKeyMsg(msg tea.KeyMsg) tea.Cmd {
	// A focused text input owns every key but ctrl+c.
	if m.inputFocused {
		if msg.String() == "ctrl+c" {
			return tea.Quit
		}
		return nil
	}

	switch {
	case key.Matches(msg, m.keymap.Quit):
		return tea.Quit

	case key.Matches(msg, m.keymap.Help):
		m.showHelp = !m.showHelp
		return nil

	case key.Matches(msg, m.keymap.Tab1):
		return m.switchTab(TabBins)

	case key.Matches(msg, m.keymap.Tab2):
		return m.switchTab(TabStats)

	case key.Matches(msg, m.keymap.Tab3):
		return m.switchTab(TabSnapshots)

	case key.Matches(msg, m.keymap.Tab4):
		return m.switchTab(TabInfo)

	case key.Matches(msg, m.keymap.NextTab):
		if !m.showHelp && len(m.tabs) > 0 {
			return m.switchTab(TabID((int(m.activeTab) + 1) % len(m.tabs)))
		}
		return nil

	case key.Matches(msg, m.keymap.PrevTab):
		if !m.showHelp && len(m.tabs) > 0 {
			return m.switchTab(TabID((int(m.activeTab) - 1 + len(m.tabs)) % len(m.tabs)))
		}
		return nil

	case key.Matches(msg, m.keymap.Refresh):
		if m.services != nil {
			return func() tea.Msg { return RefreshMsg{Resource: "all"} }
		}
		return nil

	case key.Matches(msg, m.keymap.Escape):
		if m.showHelp {
			m.showHelp = false
			return nil
		}
	}

	return nil
}

func (m *Model) handleServiceEvent(event services.ServiceEvent) tea.Cmd {
	switch e := event.(type) {
	case services.SessionChangedEvent:
		m.state.SetSchool(e.School)
		if m.services == nil {
			return nil
		}
		if e.School == nil {
			m.tracker.Stop()
			return tea.Batch(loadBinsCmd(m.services), notifyInfoCmd("Logged out"))
		}
		return tea.Batch(loadBinsCmd(m.services), notifyInfoCmd(fmt.Sprintf("Logged in as %s", e.School.Username)))

	case services.SyncStartedEvent:
		m.state.SetSyncing(true)

	case services.BinsUpdatedEvent:
		m.state.SetSyncing(false)
		if m.services == nil {
			return nil
		}
		cmds := []tea.Cmd{loadBinsCmd(m.services)}
		if e.NewSnapshots > 0 {
			binID := m.state.GetSelectedBinID()
			cmds = append(cmds,
				m.loadHistory(binID),
				m.loadSnapshots(binID, m.state.GetSnapshots().Page),
				m.requestStats(),
			)
		}
		return tea.Batch(cmds...)

	case services.BinFullEvent:
		return notifyWarningCmd(fmt.Sprintf("%s is full", e.Bin.DisplayName()))

	case services.ErrorEvent:
		m.state.SetSyncing(false)
		return notifyErrorCmd(fmt.Sprintf("[%s] %v", e.Service, e.Error))
	}

	return nil
}

// View renders the application UI.
func (m *Model) View() string {
	var b strings.Builder

	if m.width > 0 {
		b.WriteString(m.renderNavbar())
		b.WriteString("\n")
	}

	if !m.ready {
		b.WriteString(m.styles.Content.Render(fmt.Sprintf("%s Loading...", m.spinner.View())))
		return b.String()
	}

	if int(m.activeTab) < len(m.tabs) && m.tabs[m.activeTab] != nil {
		b.WriteString(m.tabs[m.activeTab].View())
	} else {
		b.WriteString(m.renderPlaceholder())
	}

	mainView := b.String()

	if m.showHelp {
		// Render help modal
		helpView := m.renderHelp()
		mainView = m.overlayCentered(mainView, helpView)
	}

	notifications := m.renderNotifications()

	if len(notifications) > 0 {
		return m.overlayToasts(mainView, notifications)
	}

	return mainView
}

func (m *Model) overlayCentered(mainView string, overlay string) string {
	mainLines := strings.Split(mainView, "\n")
	overlayLines := strings.Split(overlay, "\n")

	overlayHeight := len(overlayLines)
	overlayWidth := lipgloss.Width(overlay)

	// Calculate center position
	y := (m.height - overlayHeight) / 2
	x := (m.width - overlayWidth) / 2

	if y < 0 {
		y = 0
	}
	if x < 0 {
		x = 0
	}

	for i, overlayLine := range overlayLines {
		mainY := y + i
		if mainY >= len(mainLines) {
			break
		}

		mainLine := mainLines[mainY]

		// Truncate main line to the start of the overlay
		left := ansi.Truncate(mainLine, x, "")

		// Calculate how much to cut from the left for the right part
		// We want to skip 'x + overlayWidth' visual cells
		right := ansi.TruncateLeft(mainLine, x+overlayWidth, "")

		// If the line was shorter than the overlay start, pad it
		if lipgloss.Width(left) < x {
			left += strings.Repeat(" ", x-lipgloss.Width(left))
		}

		mainLines[mainY] = left + overlayLine + right
	}

	return strings.Join(mainLines, "\n")
}

func (m *Model) renderNavbar() string {
	var tabs []string

	for i, name := range m.tabNames {
		if TabID(i) == m.activeTab {
			tabs = append(tabs, m.styles.ActiveTab.Render(fmt.Sprintf("[%d] %s", i+1, name)))
		} else {
			tabs = append(tabs, m.styles.InactiveTab.Render(fmt.Sprintf(" %d  %s", i+1, name)))
		}
	}

	tabBar := lipgloss.JoinHorizontal(lipgloss.Top, tabs...)

	if status := m.renderStatus(); status != "" {
		gap := m.width - lipgloss.Width(tabBar) - lipgloss.Width(status) - 2
		if gap > 0 {
			tabBar += strings.Repeat(" ", gap) + status
		}
	}

	return m.styles.TabBar.Width(m.width).Render(tabBar)
}

func (m *Model) renderStatus() string {
	school := m.state.GetSchool()
	if school == nil {
		return m.styles.Subtle.Render("not logged in")
	}
	status := m.styles.Highlight.Render(school.Username)
	if m.state.IsSyncing() {
		status = m.spinner.View() + " " + status
	}
	return status
}

func (m *Model) renderNotifications() []string {
	notifications := m.state.GetNotifications()
	if len(notifications) == 0 {
		return nil
	}

	var toasts []string
	for _, n := range notifications {
		var style lipgloss.Style
		var prefix string

		switch n.Type {
		case NotificationSuccess:
			style = m.styles.NotificationSuccess
			prefix = "[OK]"
		case NotificationError:
			style = m.styles.NotificationError
			prefix = "[ERR]"
		case NotificationWarning:
			style = m.styles.NotificationWarning
			prefix = "[WARN]"
		case NotificationInfo:
			style = m.styles.NotificationInfo
			prefix = "[INFO]"
		case NotificationLoading:
			style = m.styles.NotificationInfo
			prefix = m.spinner.View()
		}

		content := style.Render(fmt.Sprintf("%s %s", prefix, n.Message))
		toast := m.styles.Toast.Render(content)
		toasts = append(toasts, toast)
	}

	return toasts
}

func (m *Model) overlayToasts(mainView string, toasts []string) string {
	if len(toasts) == 0 {
		return mainView
	}

	toastStack := lipgloss.JoinVertical(lipgloss.Right, toasts...)
	toastLines := strings.Split(toastStack, "\n")
	mainLines := strings.Split(mainView, "\n")

	toastWidth := lipgloss.Width(toastStack)
	startX := max(m.width-toastWidth-2, 0)

	startY := 2

	for i, toastLine := range toastLines {
		lineIdx := startY + i
		if lineIdx >= len(mainLines) {
			break
		}

		mainLine := mainLines[lineIdx]
		mainLineWidth := lipgloss.Width(mainLine)

		if mainLineWidth < startX {
			padding := strings.Repeat(" ", startX-mainLineWidth)
			mainLines[lineIdx] = mainLine + padding + toastLine
		} else {
			truncated := ansi.Truncate(mainLine, startX, "")
			mainLines[lineIdx] = truncated + toastLine
		}
	}

	return strings.Join(mainLines, "\n")
}

func (m *Model) renderHelp() string {
	var lines []string

	lines = append(lines, m.styles.Title.Render("Keyboard Shortcuts"))
	lines = append(lines, "")

	lines = append(lines, m.styles.Highlight.Render("Navigation"))
	lines = append(lines, "  1-4        Switch tabs")
	lines = append(lines, "  Tab        Next tab")
	lines = append(lines, "  Shift+Tab  Previous tab")
	lines = append(lines, "")

	lines = append(lines, m.styles.Highlight.Render("Actions"))
	lines = append(lines, "  r          Refresh data")
	lines = append(lines, "  ?          Toggle help")
	lines = append(lines, "  q/Ctrl+C   Quit")
	lines = append(lines, "")

	lines = append(lines, m.styles.Highlight.Render("Lists"))
	lines = append(lines, "  j/k, ↑/↓   Move up/down")
	lines = append(lines, "  Enter      Select item")
	lines = append(lines, "")

	if int(m.activeTab) < len(m.tabs) && m.tabs[m.activeTab] != nil {
		tabHelp := m.tabs[m.activeTab].ShortHelp()
		if len(tabHelp) > 0 {
			lines = append(lines, m.styles.Highlight.Render(fmt.Sprintf("%s Tab", m.tabNames[m.activeTab])))
			for _, binding := range tabHelp {
				lines = append(lines, fmt.Sprintf("  %-10s %s", binding.Help().Key, binding.Help().Desc))
			}
		}
	}

	lines = append(lines, "")
	lines = append(lines, m.styles.Subtle.Render("Press ? or Esc to close"))

	return styles.HelpPanelStyle.Render(strings.Join(lines, "\n"))
}

func (m *Model) renderPlaceholder() string {
	content := fmt.Sprintf(
		"Tab %d: %s\n\n%s",
		m.activeTab+1,
		m.tabNames[m.activeTab],
		m.styles.Subtle.Render("This tab is not yet implemented."),
	)
	return m.styles.Content.Render(content)
}
