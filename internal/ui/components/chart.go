// Package components provides reusable UI components for the TUI.
package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/j-veylop/binwatch-tui/internal/models"
	"github.com/j-veylop/binwatch-tui/internal/ui/styles"
)

// ScorePoint is one labelled food score on a trend line.
type ScorePoint struct {
	Score *int
	Label string
}

// HistoryPoints lays a bin history out oldest first, ending with the
// current score.
func HistoryPoints(h *models.BinHistory) []ScorePoint {
	if h == nil {
		return nil
	}
	current := h.CurrentScore
	hs := h.HistoricalScores
	return []ScorePoint{
		{Label: "1mo", Score: hs.MonthAgo},
		{Label: "7d", Score: hs.WeekAgo},
		{Label: "4d", Score: hs.FourDaysAgo},
		{Label: "2d", Score: hs.TwoDaysAgo},
		{Label: "1d", Score: hs.OneDayAgo},
		{Label: "now", Score: &current},
	}
}

// RenderScoreTrend plots the known points of a score history on the fixed
// 0 to 3 scale. Points without a score are skipped.
func RenderScoreTrend(points []ScorePoint, width, height int) string {
	var data []float64
	var labels []string
	for _, p := range points {
		if p.Score == nil {
			continue
		}
		data = append(data, float64(*p.Score))
		labels = append(labels, p.Label)
	}
	if len(data) < 2 {
		return styles.HelpStyle.Render("Not enough history for a trend")
	}

	if width < 20 {
		width = 20
	}
	if height < 3 {
		height = 3
	}

	return asciigraph.Plot(data,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.LowerBound(0),
		asciigraph.UpperBound(3),
		asciigraph.Precision(0),
		asciigraph.SeriesColors(asciigraph.Orange),
		asciigraph.Caption(strings.Join(labels, " → ")),
	)
}

// RenderBarChart creates a simple horizontal bar chart.
func RenderBarChart(values []float64, labels []string, width int) string {
	if len(values) == 0 {
		return ""
	}

	maxVal := 0.0
	for _, v := range values {
		if v > maxVal {
			maxVal = v
		}
	}
	if maxVal == 0 {
		maxVal = 1
	}

	maxLabelLen := 0
	for _, l := range labels {
		if len(l) > maxLabelLen {
			maxLabelLen = len(l)
		}
	}

	barWidth := width - maxLabelLen - 10 // Leave room for label and value
	if barWidth < 10 {
		barWidth = 10
	}

	lines := make([]string, 0, len(values))
	for i, v := range values {
		label := ""
		if i < len(labels) {
			label = labels[i]
		}

		barLen := int((v / maxVal) * float64(barWidth))
		if barLen < 0 {
			barLen = 0
		}

		lines = append(lines, fmt.Sprintf("%*s │%s %.2f", maxLabelLen, label, strings.Repeat("█", barLen), v))
	}

	return strings.Join(lines, "\n")
}

// RenderAveragesChart draws the per-category mean counts of a summary.
func RenderAveragesChart(a models.Averages, width int) string {
	values := make([]float64, 0, len(models.WasteCategories))
	labels := make([]string, 0, len(models.WasteCategories))
	for _, c := range models.WasteCategories {
		values = append(values, a.Mean(c))
		labels = append(labels, c.String())
	}
	return RenderBarChart(values, labels, width)
}

var sparkChars = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// RenderScoreSparkline draws food scores as a compact inline sparkline,
// each point colored by its level.
func RenderScoreSparkline(scores []int, width int) string {
	if len(scores) == 0 || width < 1 {
		return ""
	}

	step := float64(len(scores)) / float64(width)
	if step < 1 {
		step = 1
	}

	var result strings.Builder
	for i := 0; i < width && int(float64(i)*step) < len(scores); i++ {
		score := scores[int(float64(i)*step)]
		idx := score * (len(sparkChars) - 1) / 3
		if idx >= len(sparkChars) {
			idx = len(sparkChars) - 1
		}
		if idx < 0 {
			idx = 0
		}
		result.WriteString(styles.FoodScoreStyle(float64(score)).Render(string(sparkChars[idx])))
	}

	return result.String()
}

// RenderLegend creates a chart legend.
func RenderLegend(items []LegendItem) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		colorBox := lipgloss.NewStyle().Foreground(item.Color).Render("■")
		parts = append(parts, fmt.Sprintf("%s %s", colorBox, item.Label))
	}
	return strings.Join(parts, "  ")
}

// LegendItem represents a single legend entry.
type LegendItem struct {
	Label string
	Color lipgloss.Color
}

// ScoreLegend lists the food score levels.
func ScoreLegend() []LegendItem {
	return []LegendItem{
		{Label: "0 clean", Color: styles.ScoreClean},
		{Label: "1 light", Color: styles.ScoreLight},
		{Label: "2 heavy", Color: styles.ScoreHeavy},
		{Label: "3 full", Color: styles.ScoreFull},
	}
}
