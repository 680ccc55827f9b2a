// Package stats provides the statistics tab: waste composition, per-snapshot
// averages and the narrative summary of the selected bin over a time window.
package stats

import (
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/binwatch-tui/internal/app"
	"github.com/j-veylop/binwatch-tui/internal/models"
	"github.com/j-veylop/binwatch-tui/internal/services/aggregation"
	"github.com/j-veylop/binwatch-tui/internal/ui/components"
)

// tickTimeout is how long an animation tick may be outstanding before it is
// presumed lost to another tab.
const tickTimeout = 250 * time.Millisecond

// keyMap defines the key bindings specific to the stats tab.
type keyMap struct {
	NextWindow key.Binding
	PrevWindow key.Binding
	Rerun      key.Binding
	Up         key.Binding
	Down       key.Binding
}

// defaultKeyMap returns the default key bindings for the stats tab.
func defaultKeyMap() keyMap {
	return keyMap{
		NextWindow: key.NewBinding(
			key.WithKeys("]"),
			key.WithHelp("]", "next window"),
		),
		PrevWindow: key.NewBinding(
			key.WithKeys("["),
			key.WithHelp("[", "prev window"),
		),
		Rerun: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "recompute"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "scroll up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "scroll down"),
		),
	}
}

// Model represents the stats tab state.
type Model struct {
	tickSent  time.Time
	lastSpin  time.Time
	state     *app.State
	spinner   components.LoadingSpinner
	bars      []components.ShareBar
	keys      keyMap
	viewport  viewport.Model
	seenGen   uint64
	seenPhase aggregation.State
	width     int
	height    int
	frame     int
}

// New creates a new stats model.
func New(state *app.State) *Model {
	bars := make([]components.ShareBar, len(models.WasteCategories))
	for i, c := range models.WasteCategories {
		bars[i] = components.NewShareBar(c.String())
	}

	return &Model{
		state:    state,
		spinner:  components.NewSummarySpinner(),
		bars:     bars,
		keys:     defaultKeyMap(),
		viewport: viewport.New(0, 0),
	}
}

// Init initializes the stats tab.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the stats tab.
func (m *Model) Update(msg tea.Msg) (app.Tab, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case components.AnimationTickMsg:
		m.tickSent = time.Time{}
		for i := range m.bars {
			m.bars[i], _ = m.bars[i].Update(msg)
		}

	case spinner.TickMsg:
		if m.busy() {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			m.lastSpin = time.Now()
			m.frame += 6
			cmds = append(cmds, cmd)
		}

	case tea.KeyMsg:
		cmds = append(cmds, m.handleKeyMsg(msg))
	}

	cmds = append(cmds, m.syncState()...)
	return m, tea.Batch(cmds...)
}

func (m *Model) handleKeyMsg(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.NextWindow):
		next := m.state.GetWindow().Next()
		return func() tea.Msg { return app.SetWindowMsg{Window: next} }

	case key.Matches(msg, m.keys.PrevWindow):
		prev := m.state.GetWindow().Prev()
		return func() tea.Msg { return app.SetWindowMsg{Window: prev} }

	case key.Matches(msg, m.keys.Rerun):
		return func() tea.Msg { return app.RequestStatsMsg{} }

	default:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return cmd
	}
}

// syncState points the share bars at the latest metrics and keeps one
// animation tick and one spinner tick in flight while they are needed.
func (m *Model) syncState() []tea.Cmd {
	var cmds []tea.Cmd
	st := m.state.GetStats()

	if st.Request.Generation != m.seenGen || st.Phase != m.seenPhase {
		m.seenGen = st.Request.Generation
		m.seenPhase = st.Phase

		for i, c := range models.WasteCategories {
			share := 0.0
			if st.Metrics != nil {
				share = st.Metrics.Breakdown.Share(c)
			}
			m.bars[i].SetPercent(share)
		}
	}

	if m.animating() && time.Since(m.tickSent) > tickTimeout {
		m.tickSent = time.Now()
		cmds = append(cmds, components.AnimationTick())
	}

	if m.busy() && time.Since(m.lastSpin) > tickTimeout {
		m.lastSpin = time.Now()
		cmds = append(cmds, m.spinner.Tick())
	}

	return cmds
}

func (m *Model) animating() bool {
	for i := range m.bars {
		if m.bars[i].Animating() {
			return true
		}
	}
	return false
}

// busy reports whether the current request has not reached a terminal state.
func (m *Model) busy() bool {
	st := m.state.GetStats()
	return st.Request.Generation != 0 && !st.Phase.Terminal()
}

// SetSize sets the available size for the stats tab.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height
}

// ShortHelp returns the key bindings for the short help view.
func (m *Model) ShortHelp() []key.Binding {
	return []key.Binding{
		m.keys.PrevWindow,
		m.keys.NextWindow,
		m.keys.Rerun,
	}
}

// FullHelp returns the key bindings for the full help view.
func (m *Model) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{m.keys.PrevWindow, m.keys.NextWindow, m.keys.Rerun},
		{m.keys.Up, m.keys.Down},
	}
}
