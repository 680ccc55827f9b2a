// Package snapshots provides the snapshots tab: a paged, newest-first list of
// the selected bin's snapshots with a detail view.
package snapshots

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/binwatch-tui/internal/app"
	"github.com/j-veylop/binwatch-tui/internal/models"
)

// keyMap defines the key bindings specific to the snapshots tab.
type keyMap struct {
	Up       key.Binding
	Down     key.Binding
	NextPage key.Binding
	PrevPage key.Binding
	Open     key.Binding
	Close    key.Binding
}

// defaultKeyMap returns the default key bindings for the snapshots tab.
func defaultKeyMap() keyMap {
	return keyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		NextPage: key.NewBinding(
			key.WithKeys("n", "pgdown"),
			key.WithHelp("n", "older"),
		),
		PrevPage: key.NewBinding(
			key.WithKeys("p", "pgup"),
			key.WithHelp("p", "newer"),
		),
		Open: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "details"),
		),
		Close: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "close"),
		),
	}
}

// Model represents the snapshots tab state.
type Model struct {
	state         *app.State
	detail        *models.Snapshot
	detailErr     error
	keys          keyMap
	viewport      viewport.Model
	cursor        int
	width         int
	height        int
	loadingDetail bool
}

// New creates a new snapshots model.
func New(state *app.State) *Model {
	return &Model{
		state:    state,
		keys:     defaultKeyMap(),
		viewport: viewport.New(0, 0),
	}
}

// Init initializes the snapshots tab.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the snapshots tab.
func (m *Model) Update(msg tea.Msg) (app.Tab, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		cmds = append(cmds, m.handleKeyMsg(msg))

	case app.BinSelectedMsg:
		m.cursor = 0
		m.closeDetail()

	case app.SnapshotsLoadedMsg:
		m.clampCursor()

	case app.SnapshotDetailMsg:
		if !m.loadingDetail {
			break
		}
		m.loadingDetail = false
		if msg.Error != nil {
			m.detailErr = msg.Error
		} else if msg.Snapshot != nil {
			m.detail = msg.Snapshot
		}
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) handleKeyMsg(msg tea.KeyMsg) tea.Cmd {
	page := m.state.GetSnapshots()
	count := len(page.Snapshots)

	if m.detailOpen() {
		if key.Matches(msg, m.keys.Close) {
			m.closeDetail()
			return nil
		}
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return cmd
	}

	switch {
	case key.Matches(msg, m.keys.Down):
		if count > 0 {
			m.cursor = min(m.cursor+1, count-1)
		}
	case key.Matches(msg, m.keys.Up):
		m.cursor = max(m.cursor-1, 0)
	case key.Matches(msg, m.keys.NextPage):
		if page.Page+1 < page.PageCount(app.SnapshotPageSize) {
			return m.loadPage(page.BinID, page.Page+1)
		}
	case key.Matches(msg, m.keys.PrevPage):
		if page.Page > 0 {
			return m.loadPage(page.BinID, page.Page-1)
		}
	case key.Matches(msg, m.keys.Open):
		if m.cursor < count {
			snap := page.Snapshots[m.cursor]
			m.detail = &snap
			m.detailErr = nil
			m.loadingDetail = true
			return func() tea.Msg {
				return app.LoadSnapshotDetailMsg{BinID: snap.BinID, SnapshotID: snap.ID}
			}
		}
	}
	return nil
}

func (m *Model) loadPage(binID int64, page int) tea.Cmd {
	m.cursor = 0
	return func() tea.Msg {
		return app.LoadSnapshotsMsg{BinID: binID, Page: page}
	}
}

func (m *Model) clampCursor() {
	count := len(m.state.GetSnapshots().Snapshots)
	if m.cursor >= count {
		m.cursor = max(count-1, 0)
	}
}

func (m *Model) detailOpen() bool {
	return m.detail != nil || m.detailErr != nil
}

func (m *Model) closeDetail() {
	m.detail = nil
	m.detailErr = nil
	m.loadingDetail = false
}

// SetSize sets the available size for the snapshots tab.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height
}

// ShortHelp returns the key bindings for the short help view.
func (m *Model) ShortHelp() []key.Binding {
	if m.detailOpen() {
		return []key.Binding{m.keys.Close}
	}
	return []key.Binding{
		m.keys.Down,
		m.keys.Up,
		m.keys.NextPage,
		m.keys.PrevPage,
		m.keys.Open,
	}
}

// FullHelp returns the key bindings for the full help view.
func (m *Model) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{m.keys.Up, m.keys.Down},
		{m.keys.NextPage, m.keys.PrevPage},
		{m.keys.Open, m.keys.Close},
	}
}
