package snapshots

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/binwatch-tui/internal/app"
	"github.com/j-veylop/binwatch-tui/internal/models"
	"github.com/j-veylop/binwatch-tui/internal/ui/components"
	"github.com/j-veylop/binwatch-tui/internal/ui/styles"
)

const timeLayout = "Mon Jan 2 15:04"

type column struct {
	title string
	width int
}

var columns = []column{
	{"Captured", 17},
	{"Score", 10},
	{"Trays", 6},
	{"Burgers", 8},
	{"Milk", 6},
	{"Veg", 5},
	{"Fruit", 6},
	{"Surface", 8},
}

// View renders the snapshots tab.
func (m *Model) View() string {
	bin := m.state.GetSelectedBin()
	if m.state.GetSchool() == nil || bin == nil {
		return m.renderMessage("Select a bin on the Bins tab to browse its snapshots.")
	}

	var content string
	if m.detailOpen() {
		content = m.renderDetail()
	} else {
		content = lipgloss.JoinVertical(lipgloss.Left,
			styles.TitleStyle.Render("Snapshots · "+bin.DisplayName()),
			"",
			m.renderTable(),
		)
	}

	m.viewport.SetContent(content)
	return styles.DocStyle.
		Width(m.width).
		Height(m.height).
		Render(m.viewport.View())
}

func (m *Model) renderMessage(text string) string {
	content := lipgloss.JoinVertical(lipgloss.Left,
		styles.TitleStyle.Render("Snapshots"),
		"",
		styles.HelpStyle.Render(text),
	)
	return styles.DocStyle.
		Width(m.width).
		Height(m.height).
		Render(content)
}

func (m *Model) renderTable() string {
	page := m.state.GetSnapshots()

	if m.state.IsLoading("snapshots") && len(page.Snapshots) == 0 {
		return styles.HelpStyle.Render("Loading snapshots...")
	}
	if page.Err != nil {
		return styles.ErrorTextStyle.Render("Error: ") + page.Err.Error()
	}
	if len(page.Snapshots) == 0 {
		return styles.HelpStyle.Render("No snapshots recorded yet.")
	}

	headers := make([]string, len(columns))
	for i, col := range columns {
		headers[i] = lipgloss.NewStyle().Width(col.width).Render(col.title)
	}
	rows := []string{styles.TableHeaderStyle.Render(strings.Join(headers, " "))}

	for i := range page.Snapshots {
		rows = append(rows, m.renderRow(&page.Snapshots[i], i == m.cursor))
	}

	rows = append(rows, "", m.renderScores(page.Snapshots), m.renderFooter(page))
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

// renderScores draws the page's food scores oldest first.
func (m *Model) renderScores(snaps []models.Snapshot) string {
	scores := make([]int, len(snaps))
	for i := range snaps {
		scores[len(snaps)-1-i] = snaps[i].FoodScore
	}
	return styles.HelpStyle.Render("Scores ") +
		components.RenderScoreSparkline(scores, len(scores)) + "  " +
		components.RenderLegend(components.ScoreLegend())
}

func (m *Model) renderRow(s *models.Snapshot, selected bool) string {
	score := fmt.Sprintf("%d %s", s.FoodScore, styles.FoodScoreLabel(s.FoodScore))
	if s.IsEmpty {
		score = "empty"
	}

	values := []string{
		s.LocalTime().Format(timeLayout),
		score,
		fmt.Sprint(s.FoodTrays),
		fmt.Sprint(s.UnfinishedBurgers),
		fmt.Sprint(s.MilkCartons),
		fmt.Sprint(s.VegetablePortions),
		fmt.Sprint(s.FruitPortions),
		fmt.Sprintf("%.0f%%", s.PercentHundredSurfaceArea),
	}

	cells := make([]string, len(values))
	for i, v := range values {
		style := lipgloss.NewStyle().Width(columns[i].width)
		if i == 1 && !selected {
			style = style.Inherit(styles.FoodScoreStyle(float64(s.FoodScore)))
		}
		cells[i] = style.Render(v)
	}

	line := strings.Join(cells, " ")
	if selected {
		return styles.TableSelectedStyle.Render(line)
	}
	return line
}

func (m *Model) renderFooter(page app.SnapshotPage) string {
	pages := page.PageCount(app.SnapshotPageSize)
	return styles.HelpStyle.Render(fmt.Sprintf("Page %d/%d · %d snapshots · newest first",
		page.Page+1, pages, page.Total))
}

func (m *Model) renderDetail() string {
	cardWidth := max(m.width-6, 40)

	if m.detail == nil {
		return styles.CardStyle.Width(cardWidth).Render(lipgloss.JoinVertical(lipgloss.Left,
			styles.ErrorTextStyle.Render("Could not load snapshot"),
			"",
			m.detailErr.Error(),
		))
	}
	s := m.detail

	var rows []string
	rows = append(rows,
		styles.CardTitleStyle.Render(fmt.Sprintf("Snapshot #%d", s.ID)),
		styles.HelpStyle.Render(s.LocalTime().Format("Monday, January 2 2006 15:04:05")),
		"",
		fmt.Sprintf("Food score   %s %s",
			components.RenderScoreGauge(float64(s.FoodScore)),
			styles.FoodScoreStyle(float64(s.FoodScore)).Render(styles.FoodScoreLabel(s.FoodScore))),
		fmt.Sprintf("Surface full %.0f%%", s.PercentHundredSurfaceArea),
		"",
	)

	counts := make([]float64, 0, len(models.WasteCategories))
	labels := make([]string, 0, len(models.WasteCategories))
	for _, c := range models.WasteCategories {
		counts = append(counts, s.Count(c))
		labels = append(labels, c.String())
	}
	rows = append(rows, components.RenderBarChart(counts, labels, cardWidth-4), "")

	switch {
	case m.loadingDetail:
		rows = append(rows, styles.HelpStyle.Render("Fetching image..."))
	case m.detailErr != nil:
		rows = append(rows, styles.WarningTextStyle.Render("Image unavailable: "+m.detailErr.Error()))
	case s.ImageData != "":
		rows = append(rows, styles.InfoTextStyle.Render(fmt.Sprintf("Image: %s", imageSize(s.ImageData))))
	default:
		rows = append(rows, styles.HelpStyle.Render("No image stored"))
	}

	rows = append(rows, "", styles.HelpStyle.Render("esc to close"))
	return styles.CardStyle.Width(cardWidth).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

// imageSize describes the decoded size of base64 image data.
func imageSize(data string) string {
	n := len(data) * 3 / 4
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
