package info

import (
	"fmt"
	"runtime"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/sony/gobreaker/v2"

	"github.com/j-veylop/binwatch-tui/internal/services/summarizer"
	"github.com/j-veylop/binwatch-tui/internal/ui/styles"
	"github.com/j-veylop/binwatch-tui/internal/version"
)

// View renders the info tab.
func (m *Model) View() string {
	content := lipgloss.JoinVertical(lipgloss.Left,
		m.renderTitle(),
		m.renderConfigCard(),
		m.renderConnectionCard(),
		m.renderAboutCard(),
	)

	m.viewport.SetContent(content)

	return styles.DocStyle.
		Width(m.width).
		Height(m.height).
		Render(m.viewport.View())
}

func (m *Model) renderTitle() string {
	title := styles.TitleStyle.Render("Info")
	subtitle := styles.HelpStyle.Render("Configuration, backend and build information")

	return lipgloss.JoinVertical(lipgloss.Left, title, subtitle, "")
}

func (m *Model) cardWidth() int {
	return min(max(m.width-6, 50), 80)
}

func (m *Model) renderConfigCard() string {
	var rows []string
	rows = append(rows, styles.CardTitleStyle.Render("Configuration"), "")

	if m.config != nil {
		rows = append(rows,
			m.renderConfigRow("Database", m.config.DatabasePath),
			m.renderConfigRow("Session File", m.config.SessionPath),
			m.renderConfigRow("Log File", orNone(m.config.LogPath)),
			m.renderConfigRow("Summarizer", summarizer.Describe(m.config)),
			m.renderConfigRow("Snapshot Poll", m.config.SnapshotRefreshInterval.String()),
			m.renderConfigRow("Image Refresh", m.config.ImageRefreshInterval.String()),
			m.renderConfigRow("Summary Timeout", m.config.SummaryTimeout.String()),
		)
	} else {
		rows = append(rows, styles.HelpStyle.Render("Configuration not loaded"))
	}

	return styles.CardStyle.Width(m.cardWidth()).Render(
		lipgloss.JoinVertical(lipgloss.Left, rows...),
	)
}

func (m *Model) renderConnectionCard() string {
	var rows []string
	rows = append(rows, styles.CardTitleStyle.Render("Connection"), "")

	switch {
	case m.backend != nil:
		rows = append(rows,
			m.renderConfigRow("Backend", m.backend.BaseURL()),
			m.renderConfigRow("Circuit", renderBreaker(m.backend.BreakerState())),
		)
	case m.config != nil:
		rows = append(rows, m.renderConfigRow("Backend", m.config.APIURL))
	}

	if school := m.state.GetSchool(); school != nil {
		rows = append(rows, m.renderConfigRow("School", fmt.Sprintf("%s (#%d)", school.Username, school.ID)))
	} else {
		rows = append(rows, m.renderConfigRow("School", styles.WarningTextStyle.Render("not logged in")))
	}
	rows = append(rows, m.renderConfigRow("Bins", fmt.Sprint(m.state.GetBinCount())))
	rows = append(rows, m.renderConfigRow("Last Sync", m.renderLastSync()))

	return styles.CardStyle.Width(m.cardWidth()).Render(
		lipgloss.JoinVertical(lipgloss.Left, rows...),
	)
}

func (m *Model) renderLastSync() string {
	if m.state.IsSyncing() {
		return styles.InfoTextStyle.Render("syncing...")
	}
	if m.state.GetLastUpdated().IsZero() {
		return "never"
	}
	return m.state.TimeSinceUpdate().Truncate(time.Second).String() + " ago"
}

func renderBreaker(s gobreaker.State) string {
	switch s {
	case gobreaker.StateClosed:
		return styles.SuccessTextStyle.Render("healthy")
	case gobreaker.StateHalfOpen:
		return styles.WarningTextStyle.Render("recovering")
	default:
		return styles.ErrorTextStyle.Render("open (requests paused)")
	}
}

func (m *Model) renderConfigRow(label, value string) string {
	labelStyle := lipgloss.NewStyle().
		Width(18).
		Foreground(styles.TextMuted)

	valueStyle := lipgloss.NewStyle().
		Foreground(styles.TextPrimary)

	return labelStyle.Render(label+":") + " " + valueStyle.Render(value)
}

func (m *Model) renderAboutCard() string {
	var rows []string
	rows = append(rows, styles.CardTitleStyle.Render("About binwatch"), "")

	rows = append(rows,
		m.renderConfigRow("Version", version.GetVersion()),
		m.renderConfigRow("Build Date", version.GetDate()),
		m.renderConfigRow("Git Commit", version.GetCommit()),
		m.renderConfigRow("Go Version", runtime.Version()),
		m.renderConfigRow("Platform", fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH)),
	)

	return styles.CardStyle.Width(m.cardWidth()).Render(
		lipgloss.JoinVertical(lipgloss.Left, rows...),
	)
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
