// Package bins provides the bins tab: the school's bins with their current
// food score, score trend and inline editing of name and address.
package bins

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/binwatch-tui/internal/app"
	"github.com/j-veylop/binwatch-tui/internal/models"
	"github.com/j-veylop/binwatch-tui/internal/ui/components"
)

// keyMap defines the key bindings specific to the bins tab.
type keyMap struct {
	NextBin  key.Binding
	PrevBin  key.Binding
	FirstBin key.Binding
	LastBin  key.Binding
	Rename   key.Binding
	EditIP   key.Binding
	Save     key.Binding
	Cancel   key.Binding
}

// defaultKeyMap returns the default key bindings for the bins tab.
func defaultKeyMap() keyMap {
	return keyMap{
		NextBin: key.NewBinding(
			key.WithKeys("n", "j", "down"),
			key.WithHelp("j/n", "next bin"),
		),
		PrevBin: key.NewBinding(
			key.WithKeys("p", "k", "up"),
			key.WithHelp("k/p", "prev bin"),
		),
		FirstBin: key.NewBinding(
			key.WithKeys("g", "home"),
			key.WithHelp("g", "first bin"),
		),
		LastBin: key.NewBinding(
			key.WithKeys("G", "end"),
			key.WithHelp("G", "last bin"),
		),
		Rename: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "rename"),
		),
		EditIP: key.NewBinding(
			key.WithKeys("i"),
			key.WithHelp("i", "edit address"),
		),
		Save: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "save"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "cancel"),
		),
	}
}

// editField is the bin field being edited, if any.
type editField int

const (
	editNone editField = iota
	editName
	editIP
)

// Model represents the bins tab state.
type Model struct {
	state    *app.State
	spinner  components.LoadingSpinner
	input    textinput.Model
	keys     keyMap
	viewport viewport.Model
	editing  editField
	editBin  int64
	width    int
	height   int
}

// New creates a new bins model.
func New(state *app.State) *Model {
	input := textinput.New()
	input.CharLimit = 64
	input.Prompt = "› "

	return &Model{
		state:    state,
		spinner:  components.NewSpinner("Loading bins..."),
		input:    input,
		keys:     defaultKeyMap(),
		viewport: viewport.New(0, 0),
	}
}

// Init initializes the model.
func (m *Model) Init() tea.Cmd {
	return m.spinner.Init()
}

// Update handles messages and updates the model.
func (m *Model) Update(msg tea.Msg) (app.Tab, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.editing != editNone {
			cmds = append(cmds, m.handleEditKey(msg))
		} else {
			cmds = append(cmds, m.handleKeyMsg(msg))
		}

	case app.BinSelectedMsg:
		if m.editing != editNone && msg.BinID != m.editBin {
			cmds = append(cmds, m.stopEditing())
		}

	case spinner.TickMsg:
		if m.state.IsInitialLoading() || m.state.IsLoading("history") {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}

	default:
		if m.editing != editNone {
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) handleKeyMsg(msg tea.KeyMsg) tea.Cmd {
	bins := m.state.GetBins()
	count := len(bins)
	idx := m.state.GetSelectedIndex()

	switch {
	case key.Matches(msg, m.keys.NextBin):
		if count > 0 {
			return selectBin(bins[(idx+1)%count].ID)
		}
	case key.Matches(msg, m.keys.PrevBin):
		if count > 0 {
			return selectBin(bins[(idx-1+count)%count].ID)
		}
	case key.Matches(msg, m.keys.FirstBin):
		if count > 0 {
			return selectBin(bins[0].ID)
		}
	case key.Matches(msg, m.keys.LastBin):
		if count > 0 {
			return selectBin(bins[count-1].ID)
		}
	case key.Matches(msg, m.keys.Rename):
		return m.startEditing(editName)
	case key.Matches(msg, m.keys.EditIP):
		return m.startEditing(editIP)
	default:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return cmd
	}
	return nil
}

func (m *Model) handleEditKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Cancel):
		return m.stopEditing()

	case key.Matches(msg, m.keys.Save):
		value := strings.TrimSpace(m.input.Value())
		if value == "" {
			return func() tea.Msg {
				return app.AddNotificationMsg{
					Type:     app.NotificationWarning,
					Message:  "Value cannot be empty",
					Duration: app.QuickNotificationDuration,
				}
			}
		}

		var patch models.BinPatch
		if m.editing == editName {
			patch.Name = &value
		} else {
			patch.IPAddress = &value
		}
		binID := m.editBin
		return tea.Batch(
			m.stopEditing(),
			func() tea.Msg { return app.UpdateBinMsg{BinID: binID, Patch: patch} },
		)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return cmd
}

func (m *Model) startEditing(field editField) tea.Cmd {
	bin := m.state.GetSelectedBin()
	if bin == nil {
		return nil
	}

	m.editing = field
	m.editBin = bin.ID
	if field == editName {
		m.input.Placeholder = "Bin name"
		m.input.SetValue(bin.Name)
	} else {
		m.input.Placeholder = "192.168.1.20"
		m.input.SetValue(bin.IPAddress)
	}
	m.input.CursorEnd()

	return tea.Batch(
		m.input.Focus(),
		textinput.Blink,
		func() tea.Msg { return app.InputFocusMsg{Focused: true} },
	)
}

func (m *Model) stopEditing() tea.Cmd {
	m.editing = editNone
	m.editBin = 0
	m.input.Blur()
	m.input.Reset()
	return func() tea.Msg { return app.InputFocusMsg{Focused: false} }
}

// IsEditing reports whether a text input is active.
func (m *Model) IsEditing() bool {
	return m.editing != editNone
}

func selectBin(id int64) tea.Cmd {
	return func() tea.Msg {
		return app.SelectBinMsg{BinID: id}
	}
}

// SetSize sets the available size for the bins tab.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height
	m.input.Width = max(width/3, 20)
}

// ShortHelp returns the key bindings for the short help view.
func (m *Model) ShortHelp() []key.Binding {
	if m.editing != editNone {
		return []key.Binding{m.keys.Save, m.keys.Cancel}
	}
	return []key.Binding{
		m.keys.NextBin,
		m.keys.PrevBin,
		m.keys.Rename,
		m.keys.EditIP,
	}
}

// FullHelp returns the key bindings for the full help view.
func (m *Model) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{m.keys.NextBin, m.keys.PrevBin},
		{m.keys.FirstBin, m.keys.LastBin},
		{m.keys.Rename, m.keys.EditIP, m.keys.Save, m.keys.Cancel},
	}
}
