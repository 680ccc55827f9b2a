package bins

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/binwatch-tui/internal/models"
	"github.com/j-veylop/binwatch-tui/internal/ui/components"
	"github.com/j-veylop/binwatch-tui/internal/ui/styles"
)

// View renders the bins tab.
func (m *Model) View() string {
	if m.state.IsInitialLoading() {
		return components.RenderSpinnerCentered(m.spinner, m.width, m.height)
	}

	school := m.state.GetSchool()
	if school == nil {
		return m.renderLoggedOut()
	}

	sections := []string{
		m.renderTitle(school),
		m.renderBinList(),
	}
	if bin := m.state.GetSelectedBin(); bin != nil {
		sections = append(sections, m.renderDetail(bin))
	}

	content := lipgloss.JoinVertical(lipgloss.Left, sections...)
	m.viewport.SetContent(content)

	return styles.DocStyle.
		Width(m.width).
		Height(m.height).
		Render(m.viewport.View())
}

func (m *Model) renderLoggedOut() string {
	content := lipgloss.JoinVertical(lipgloss.Left,
		styles.TitleStyle.Render("Bins"),
		"",
		styles.HelpStyle.Render("Not logged in."),
		styles.InfoTextStyle.Render("  ╰─▶ Run binwatch login <username> in another terminal"),
	)
	return styles.DocStyle.
		Width(m.width).
		Height(m.height).
		Render(content)
}

func (m *Model) renderTitle(school *models.School) string {
	title := styles.TitleStyle.Render("Bins · " + school.Username)

	subtitle := "Food waste monitor"
	if last := m.state.GetLastUpdated(); !last.IsZero() {
		subtitle = fmt.Sprintf("Last sync %s", last.Format("15:04:05"))
	}
	if m.state.IsSyncing() {
		subtitle = "Syncing..."
	}

	return lipgloss.JoinVertical(lipgloss.Left, title, styles.HelpStyle.Render(subtitle), "")
}

func (m *Model) cardWidth() int {
	return max(m.width-6, 40)
}

func (m *Model) renderBinList() string {
	bins := m.state.GetBins()
	selected := m.state.GetSelectedBinID()

	var rows []string
	titleIcon := lipgloss.NewStyle().Foreground(styles.Primary).Render("◈")
	rows = append(rows, fmt.Sprintf("%s %s", titleIcon, styles.CardTitleStyle.Render("Bins")), "")

	if len(bins) == 0 {
		emptyIcon := lipgloss.NewStyle().Foreground(styles.Subtle).Render("○")
		rows = append(rows,
			fmt.Sprintf("  %s %s", emptyIcon, styles.HelpStyle.Render("No bins registered")),
			"",
			styles.InfoTextStyle.Render("  ╰─▶ Add one with binwatch add-bin --name <name> --ip <address>"),
		)
		return styles.CardStyle.Width(m.cardWidth()).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
	}

	for i := range bins {
		rows = append(rows, m.renderBinRow(&bins[i], bins[i].ID == selected))
	}

	return styles.CardStyle.Width(m.cardWidth()).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m *Model) renderBinRow(bin *models.Bin, selected bool) string {
	prefix := "  "
	if selected {
		prefix = styles.FocusedStyle.Render("▸ ")
	}

	name := bin.DisplayName()
	if len(name) > 28 {
		name = name[:25] + "..."
	}
	nameStyle := lipgloss.NewStyle().Width(30)
	if selected {
		nameStyle = nameStyle.Bold(true)
	}

	score := float64(bin.CurrentScore)
	label := styles.FoodScoreStyle(score).Render(styles.FoodScoreLabel(bin.CurrentScore))

	return fmt.Sprintf("%s%s %s %s  %s",
		prefix,
		nameStyle.Render(name),
		components.RenderScoreGauge(score),
		lipgloss.NewStyle().Width(6).Render(label),
		styles.HelpStyle.Render(bin.IPAddress),
	)
}

func (m *Model) renderDetail(bin *models.Bin) string {
	var rows []string
	rows = append(rows, styles.CardTitleStyle.Render(bin.DisplayName()), "")

	rows = append(rows,
		m.renderRow("Address", bin.IPAddress),
		m.renderRow("Food score", fmt.Sprintf("%d (%s)", bin.CurrentScore, styles.FoodScoreLabel(bin.CurrentScore))),
	)
	if snap := bin.LatestSnapshot; snap != nil {
		rows = append(rows,
			m.renderRow("Last snapshot", snap.LocalTime().Format("Jan 2 15:04")),
			m.renderRow("Surface full", fmt.Sprintf("%.0f%%", snap.PercentHundredSurfaceArea)),
		)
		rows = append(rows, m.renderLatestMix(snap)...)
	} else {
		rows = append(rows, m.renderRow("Last snapshot", "none yet"))
	}

	if m.editing != editNone && m.editBin == bin.ID {
		label := "New name"
		if m.editing == editIP {
			label = "New address"
		}
		rows = append(rows, "", styles.FocusedStyle.Render(label), m.input.View())
	}

	rows = append(rows, "", m.renderTrend(bin.ID))

	return styles.CardStyle.Width(m.cardWidth()).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

// renderLatestMix shows what the latest snapshot's items are made of.
func (m *Model) renderLatestMix(snap *models.Snapshot) []string {
	total := snap.TotalItems()
	if total <= 0 {
		return nil
	}
	rows := []string{""}
	for _, c := range models.WasteCategories {
		rows = append(rows, components.SimpleShareBar(100*snap.Count(c)/total, fmt.Sprintf("%-10s", c.String()), m.cardWidth()-4))
	}
	return rows
}

func (m *Model) renderTrend(binID int64) string {
	title := styles.SubTitleStyle.Render("Score trend")

	if m.state.IsLoading("history") {
		return lipgloss.JoinVertical(lipgloss.Left, title, m.spinner.ViewWithLabel())
	}

	h, ok := m.state.GetHistory(binID)
	switch {
	case !ok:
		return lipgloss.JoinVertical(lipgloss.Left, title, styles.HelpStyle.Render("No history loaded"))
	case h.Err != nil:
		return lipgloss.JoinVertical(lipgloss.Left, title,
			styles.ErrorTextStyle.Render("Error: ")+h.Err.Error())
	}

	if h.Local {
		title += " " + styles.WarningTextStyle.Render("(local data)")
	}
	chart := components.RenderScoreTrend(components.HistoryPoints(h.History), max(m.cardWidth()-16, 20), 6)
	return lipgloss.JoinVertical(lipgloss.Left, title, chart)
}

func (m *Model) renderRow(label, value string) string {
	labelStyle := lipgloss.NewStyle().
		Width(16).
		Foreground(styles.TextMuted)

	if strings.TrimSpace(value) == "" {
		value = "-"
	}
	return labelStyle.Render(label+":") + " " + lipgloss.NewStyle().Foreground(styles.TextPrimary).Render(value)
}
