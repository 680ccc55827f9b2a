package components

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/binwatch-tui/internal/logger"
	"github.com/j-veylop/binwatch-tui/internal/ui/styles"
)

const (
	shareFrom = "#51cf66"
	shareTo   = "#ff6b6b"
)

// AnimationTickMsg advances ShareBar animations.
type AnimationTickMsg time.Time

// AnimationTick schedules the next animation frame. Owners of several bars
// should keep a single tick in flight and feed it to every bar.
func AnimationTick() tea.Cmd {
	return tea.Tick(time.Millisecond*50, func(t time.Time) tea.Msg {
		return AnimationTickMsg(t)
	})
}

// ShareBar renders one waste category's share of the total, easing towards
// a new value when the metrics change.
type ShareBar struct {
	progress       progress.Model
	label          string
	targetPercent  float64
	currentPercent float64
	isAnimating    bool
}

// NewShareBar creates a share bar with the given label.
func NewShareBar(label string) ShareBar {
	p := progress.New(
		progress.WithScaledGradient(shareFrom, shareTo),
		progress.WithWidth(30),
		progress.WithoutPercentage(),
	)
	return ShareBar{progress: p, label: label}
}

// Label returns the category label.
func (b ShareBar) Label() string {
	return b.label
}

// Percent returns the value currently drawn.
func (b ShareBar) Percent() float64 {
	return b.currentPercent
}

// Animating reports whether the bar is still easing towards its target.
func (b ShareBar) Animating() bool {
	return b.isAnimating
}

// SetPercent starts easing towards percent.
func (b *ShareBar) SetPercent(percent float64) tea.Cmd {
	b.targetPercent = clampPercent(percent)
	if b.isAnimating || b.currentPercent == b.targetPercent {
		return nil
	}
	b.isAnimating = true
	return AnimationTick()
}

// Update handles animation ticks.
func (b ShareBar) Update(msg tea.Msg) (ShareBar, tea.Cmd) {
	if _, ok := msg.(AnimationTickMsg); !ok || !b.isAnimating {
		return b, nil
	}

	diff := b.targetPercent - b.currentPercent
	step := math.Max(math.Abs(diff)/10, 0.5)
	switch {
	case diff > 0:
		b.currentPercent = math.Min(b.currentPercent+step, b.targetPercent)
	case diff < 0:
		b.currentPercent = math.Max(b.currentPercent-step, b.targetPercent)
	}

	if b.currentPercent == b.targetPercent {
		b.isAnimating = false
		return b, nil
	}
	return b, AnimationTick()
}

// View renders the bar with its label and share.
func (b ShareBar) View(width int) string {
	barWidth := width - 30 // Reserve space for label and percentage
	if barWidth < 10 {
		barWidth = 10
	}
	b.progress.Width = barWidth

	labelStr := styles.ProgressLabelStyle.Width(20).Render(b.label)
	percentStr := styles.ShareStyle(b.currentPercent).
		Width(7).
		Align(lipgloss.Right).
		Render(fmt.Sprintf("%.1f%%", b.currentPercent))

	return lipgloss.JoinHorizontal(
		lipgloss.Center,
		labelStr,
		b.progress.ViewAs(b.currentPercent/100),
		" ",
		percentStr,
	)
}

func clampPercent(p float64) float64 {
	if math.IsNaN(p) || p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// RenderGradientBar renders just the bar part with gradient colors.
func RenderGradientBar(percent float64, width int) string {
	if width < 1 {
		return ""
	}

	filled := int(float64(width) * clampPercent(percent) / 100)

	var sb strings.Builder
	for i := 0; i < width; i++ {
		if i < filled {
			t := float64(i) / float64(max(1, width-1))
			color := interpolateColor(shareFrom, shareTo, t)
			sb.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render("█"))
		} else {
			sb.WriteString(lipgloss.NewStyle().Foreground(styles.Subtle).Render("░"))
		}
	}
	return sb.String()
}

// SimpleShareBar renders a static share bar for tables and narrow layouts.
func SimpleShareBar(percent float64, label string, width int) string {
	labelWidth := len(label) + 1
	percentWidth := 7
	barWidth := width - labelWidth - percentWidth - 4
	if barWidth < 5 {
		barWidth = 5
	}

	labelStr := lipgloss.NewStyle().Foreground(styles.TextSecondary).Render(label)
	percentStr := styles.ShareStyle(percent).
		Width(percentWidth).
		Align(lipgloss.Right).
		Render(fmt.Sprintf("%.1f%%", percent))

	return fmt.Sprintf("%s [%s] %s", labelStr, RenderGradientBar(percent, barWidth), percentStr)
}

// RenderScoreGauge draws a food score as four segments, one per level.
func RenderScoreGauge(score float64) string {
	level := int(math.Round(score))
	var sb strings.Builder
	for i := 0; i < 4; i++ {
		if i <= level && score >= 0 {
			sb.WriteString(styles.FoodScoreStyle(float64(i)).Render("■"))
		} else {
			sb.WriteString(lipgloss.NewStyle().Foreground(styles.Subtle).Render("□"))
		}
	}
	return sb.String()
}

// LoadingBar renders a shimmer placeholder while data is loading.
func LoadingBar(width, frame int) string {
	if width < 10 {
		width = 10
	}

	const cycle = 120
	t := float64(frame%cycle) / float64(cycle)
	p := t * 2
	if t >= 0.5 {
		p = (1 - t) * 2
	}
	eased := p * p * (3 - 2*p)
	shimmerPos := int(eased * float64(width))

	var sb strings.Builder
	for i := 0; i < width; i++ {
		dist := shimmerPos - i
		if dist < 0 {
			dist = -dist
		}
		switch {
		case dist < 3:
			sb.WriteString(lipgloss.NewStyle().Foreground(styles.Primary).Render("▓"))
		case dist < 5:
			sb.WriteString(lipgloss.NewStyle().Foreground(styles.TextSecondary).Render("▒"))
		default:
			sb.WriteString(lipgloss.NewStyle().Foreground(styles.BgLight).Render("░"))
		}
	}
	return sb.String()
}

func interpolateColor(fromHex, toHex string, t float64) string {
	from := hexToRGB(fromHex)
	to := hexToRGB(toHex)

	r := int(float64(from[0]) + t*(float64(to[0])-float64(from[0])))
	g := int(float64(from[1]) + t*(float64(to[1])-float64(from[1])))
	b := int(float64(from[2]) + t*(float64(to[2])-float64(from[2])))

	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}

func hexToRGB(hex string) [3]int {
	hex = strings.TrimPrefix(hex, "#")
	var r, g, b int
	if _, err := fmt.Sscanf(hex, "%02x%02x%02x", &r, &g, &b); err != nil {
		logger.Error("failed to parse hex color", "hex", hex, "error", err)
		return [3]int{0, 0, 0}
	}
	return [3]int{r, g, b}
}
