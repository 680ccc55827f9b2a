package stats

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/binwatch-tui/internal/app"
	"github.com/j-veylop/binwatch-tui/internal/models"
	"github.com/j-veylop/binwatch-tui/internal/services/aggregation"
	"github.com/j-veylop/binwatch-tui/internal/ui/components"
	"github.com/j-veylop/binwatch-tui/internal/ui/styles"
)

var windowShortNames = map[models.TimeWindow]string{
	models.Window1Day:    "1d",
	models.Window1Week:   "1w",
	models.Window2Weeks:  "2w",
	models.Window1Month:  "1mo",
	models.Window1Year:   "1y",
	models.WindowAllTime: "all",
}

// View renders the stats tab.
func (m *Model) View() string {
	if m.state.GetSchool() == nil {
		return m.renderMessage("Not logged in.")
	}
	bin := m.state.GetSelectedBin()
	if bin == nil {
		return m.renderMessage("Select a bin on the Bins tab to see its statistics.")
	}

	st := m.state.GetStats()
	sections := []string{m.renderHeader(bin)}

	switch {
	case st.Request.Generation == 0 || st.Request.BinID != bin.ID:
		sections = append(sections, styles.HelpStyle.Render("Press s to compute statistics."))
	case st.Phase == aggregation.StateFailed:
		sections = append(sections, m.renderFailed(st))
	case st.Phase == aggregation.StateEmptyWindow:
		sections = append(sections, m.renderEmptyWindow(st.Request.Window))
	case st.Metrics == nil:
		sections = append(sections, m.renderPlaceholder())
	default:
		sections = append(sections,
			m.renderComposition(st.Metrics),
			m.renderAverages(st.Metrics),
			m.renderNarrative(st),
		)
	}

	content := lipgloss.JoinVertical(lipgloss.Left, sections...)
	m.viewport.SetContent(content)

	return styles.DocStyle.
		Width(m.width).
		Height(m.height).
		Render(m.viewport.View())
}

// renderPlaceholder stands in for the composition card until metrics arrive.
func (m *Model) renderPlaceholder() string {
	rows := []string{m.spinnerLine("Computing statistics..."), ""}
	for range models.WasteCategories {
		rows = append(rows, components.LoadingBar(m.cardWidth()-4, m.frame))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (m *Model) cardWidth() int {
	return max(m.width-6, 40)
}

func (m *Model) renderMessage(text string) string {
	content := lipgloss.JoinVertical(lipgloss.Left,
		styles.TitleStyle.Render("Statistics"),
		"",
		styles.HelpStyle.Render(text),
	)
	return styles.DocStyle.
		Width(m.width).
		Height(m.height).
		Render(content)
}

func (m *Model) renderHeader(bin *models.Bin) string {
	title := styles.TitleStyle.Render("Statistics · " + bin.DisplayName())

	current := m.state.GetWindow()
	chips := make([]string, 0, len(models.TimeWindows))
	for _, w := range models.TimeWindows {
		name := windowShortNames[w]
		if w == current {
			chips = append(chips, lipgloss.NewStyle().Foreground(styles.Primary).Bold(true).Render(name))
		} else {
			chips = append(chips, styles.HelpStyle.Render(name))
		}
	}

	rangeStyle := lipgloss.NewStyle().
		Padding(0, 1).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(styles.Primary)
	selector := rangeStyle.Render("[ " + strings.Join(chips, "  ") + " ]")

	header := lipgloss.JoinHorizontal(lipgloss.Center, title, "  ", selector)
	subtitle := styles.HelpStyle.Render(current.Label())

	return lipgloss.JoinVertical(lipgloss.Left, header, subtitle, "")
}

func (m *Model) spinnerLine(label string) string {
	s := m.spinner
	s.SetLabel(label)
	return s.ViewWithLabel()
}

func (m *Model) renderFailed(st app.StatsState) string {
	msg := "unknown error"
	if st.Err != nil {
		msg = st.Err.Error()
	}
	rows := []string{
		styles.ErrorTextStyle.Render("Could not load snapshots"),
		"",
		styles.HelpStyle.Render(msg),
		"",
		styles.InfoTextStyle.Render("  ╰─▶ Press s to try again"),
	}
	return styles.CardStyle.Width(m.cardWidth()).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m *Model) renderEmptyWindow(w models.TimeWindow) string {
	emptyIcon := lipgloss.NewStyle().Foreground(styles.Subtle).Render("○")
	rows := []string{
		fmt.Sprintf("%s %s", emptyIcon, styles.CardTitleStyle.Render("No data for this period")),
		"",
		styles.HelpStyle.Render(fmt.Sprintf("The bin recorded no snapshots in the %s.", strings.ToLower(w.Label()))),
		"",
		styles.InfoTextStyle.Render("  ╰─▶ Press ] for a wider window"),
	}
	return styles.CardStyle.Width(m.cardWidth()).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m *Model) renderComposition(metrics *models.MetricsSummary) string {
	width := m.cardWidth()

	var rows []string
	titleIcon := lipgloss.NewStyle().Foreground(styles.Primary).Render("◈")
	rows = append(rows,
		fmt.Sprintf("%s %s %s", titleIcon, styles.CardTitleStyle.Render("Waste Composition"),
			styles.HelpStyle.Render(fmt.Sprintf("(%d snapshots)", metrics.SnapshotCount))),
		"",
	)

	if metrics.Breakdown.Total() == 0 {
		rows = append(rows, styles.HelpStyle.Render("  No waste items counted in this period"))
	}
	for i := range m.bars {
		rows = append(rows, m.bars[i].View(width-4))
	}

	return styles.CardStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m *Model) renderAverages(metrics *models.MetricsSummary) string {
	width := m.cardWidth()
	avg := metrics.Averages

	var rows []string
	rows = append(rows, styles.CardTitleStyle.Render("Average per Snapshot"), "")
	rows = append(rows, components.RenderAveragesChart(avg, width-4), "")

	scoreStyle := styles.FoodScoreStyle(avg.FoodScore)
	rows = append(rows,
		fmt.Sprintf("Food score   %s %s",
			components.RenderScoreGauge(avg.FoodScore),
			scoreStyle.Render(fmt.Sprintf("%.2f", avg.FoodScore))),
		fmt.Sprintf("Surface full %s", styles.InfoTextStyle.Render(fmt.Sprintf("%.1f%%", avg.PercentHundredSurfaceArea))),
	)

	return styles.CardStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m *Model) renderNarrative(st app.StatsState) string {
	width := m.cardWidth()

	if st.Phase == aggregation.StateSummarizing || st.Narrative == nil {
		return styles.CardStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left,
			styles.CardTitleStyle.Render("Summary"),
			"",
			m.spinner.ViewWithLabel(),
		))
	}

	tag := styles.ProvenanceGeneratedStyle.Render("✦ AI summary")
	if st.Narrative.IsFallback() {
		tag = styles.ProvenanceFallbackStyle.Render("◇ Local summary")
	}

	header := fmt.Sprintf("%s  %s", styles.CardTitleStyle.Render("Summary"), tag)
	return styles.NarrativeCardStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left,
		header,
		"",
		st.Narrative.Text,
	))
}
