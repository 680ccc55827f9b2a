package app

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/binwatch-tui/internal/models"
	"github.com/j-veylop/binwatch-tui/internal/services"
	"github.com/j-veylop/binwatch-tui/internal/services/aggregation"
)

const (
	// DefaultTickInterval is the default interval between ticks.
	DefaultTickInterval = 2 * time.Second

	// DefaultNotificationDuration is the default duration for notifications.
	DefaultNotificationDuration = 5 * time.Second

	// QuickNotificationDuration is for brief notifications.
	QuickNotificationDuration = 3 * time.Second

	// LongNotificationDuration is for important notifications.
	LongNotificationDuration = 10 * time.Second

	// SnapshotPageSize is the number of snapshots per page.
	SnapshotPageSize = 12

	loadTimeout = 15 * time.Second
)

// StatsEngine computes statistics for a request.
type StatsEngine interface {
	Metrics(ctx context.Context, req aggregation.Request) (models.MetricsSummary, error)
	Summarize(ctx context.Context, req aggregation.Request, metrics models.MetricsSummary) aggregation.Outcome
}

// tickCmd returns a command that sends a TickMsg after the specified interval.
func tickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return TickMsg{Time: t}
	})
}

// defaultTickCmd returns a command that sends a TickMsg after the default interval.
func defaultTickCmd() tea.Cmd {
	return tickCmd(DefaultTickInterval)
}

// loadInitialData returns a command that loads all initial data.
func loadInitialData(mgr *services.Manager) tea.Cmd {
	return loadBinsCmd(mgr)
}

// loadBinsCmd returns a command that loads the school and its bins.
func loadBinsCmd(mgr *services.Manager) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()

		school := mgr.CurrentSchool()
		bins, err := mgr.Bins(ctx)
		return BinsLoadedMsg{School: school, Bins: bins, Error: err}
	}
}

// selectBinCmd remembers the selected bin in the session.
func selectBinCmd(mgr *services.Manager, binID int64) tea.Cmd {
	return func() tea.Msg {
		if err := mgr.SelectBin(binID); err != nil {
			return ErrorMsg{Error: err, Context: "select bin"}
		}
		return nil
	}
}

// loadHistoryCmd returns a command that loads a bin's score history.
func loadHistoryCmd(mgr *services.Manager, binID int64) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()

		history, local, err := mgr.BinHistory(ctx, binID)
		return HistoryLoadedMsg{BinID: binID, History: history, Local: local, Error: err}
	}
}

// updateBinCmd returns a command that applies a bin patch.
func updateBinCmd(mgr *services.Manager, binID int64, patch models.BinPatch) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()

		bin, err := mgr.UpdateBin(ctx, binID, patch)
		return BinUpdatedMsg{BinID: binID, Bin: bin, Error: err}
	}
}

// loadSnapshotsCmd returns a command that loads one page of snapshots.
func loadSnapshotsCmd(mgr *services.Manager, binID int64, page int) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()

		snapshots, total, err := mgr.SnapshotPage(ctx, binID, page, SnapshotPageSize)
		return SnapshotsLoadedMsg{Page: SnapshotPage{
			BinID:     binID,
			Page:      page,
			Total:     total,
			Snapshots: snapshots,
			Err:       err,
		}}
	}
}

// loadSnapshotDetailCmd returns a command that fetches one snapshot with its
// image data.
func loadSnapshotDetailCmd(mgr *services.Manager, binID, snapshotID int64) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()

		snapshot, err := mgr.Snapshot(ctx, binID, snapshotID)
		return SnapshotDetailMsg{Snapshot: snapshot, Error: err}
	}
}

// computeMetricsCmd runs the filter and reduce steps of a request.
func computeMetricsCmd(engine StatsEngine, ctx context.Context, req aggregation.Request) tea.Cmd {
	return func() tea.Msg {
		metrics, err := engine.Metrics(ctx, req)
		return MetricsReadyMsg{Request: req, Metrics: metrics, Error: err}
	}
}

// summarizeCmd produces the narrative for reduced metrics.
func summarizeCmd(engine StatsEngine, ctx context.Context, req aggregation.Request, metrics models.MetricsSummary) tea.Cmd {
	return func() tea.Msg {
		return NarrativeReadyMsg{Outcome: engine.Summarize(ctx, req, metrics)}
	}
}

// subscribeToServicesCmd returns a command that subscribes to service events.
func subscribeToServicesCmd(mgr *services.Manager) tea.Cmd {
	ch, _ := mgr.Subscribe()
	return func() tea.Msg {
		return SubscriptionEventMsg{Channel: ch}
	}
}

// waitForServiceEventCmd returns a command that waits for the next service event.
func waitForServiceEventCmd(ch <-chan services.ServiceEvent) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-ch
		if !ok {
			return nil
		}
		return ServiceEventMsg{Event: event}
	}
}

// clearNotificationCmd returns a command that removes a notification after a delay.
func clearNotificationCmd(id string, delay time.Duration) tea.Cmd {
	return tea.Tick(delay, func(_ time.Time) tea.Msg {
		return RemoveNotificationMsg{ID: id}
	})
}

// notifySuccessCmd returns a command that adds a success notification.
func notifySuccessCmd(message string) tea.Cmd {
	return func() tea.Msg {
		return AddNotificationMsg{
			Type:     NotificationSuccess,
			Message:  message,
			Duration: DefaultNotificationDuration,
		}
	}
}

// notifyErrorCmd returns a command that adds an error notification.
func notifyErrorCmd(message string) tea.Cmd {
	return func() tea.Msg {
		return AddNotificationMsg{
			Type:     NotificationError,
			Message:  message,
			Duration: LongNotificationDuration,
		}
	}
}

// notifyWarningCmd returns a command that adds a warning notification.
func notifyWarningCmd(message string) tea.Cmd {
	return func() tea.Msg {
		return AddNotificationMsg{
			Type:     NotificationWarning,
			Message:  message,
			Duration: DefaultNotificationDuration,
		}
	}
}

// notifyInfoCmd returns a command that adds an info notification.
func notifyInfoCmd(message string) tea.Cmd {
	return func() tea.Msg {
		return AddNotificationMsg{
			Type:     NotificationInfo,
			Message:  message,
			Duration: QuickNotificationDuration,
		}
	}
}

// errorText describes an error for a toast. Cancellations are not errors.
func errorText(err error) string {
	if errors.Is(err, context.Canceled) {
		return ""
	}
	return err.Error()
}

// Commands provides a public interface to the command functions.
type Commands struct {
	manager *services.Manager
}

// NewCommands creates a new Commands instance.
func NewCommands(mgr *services.Manager) *Commands {
	return &Commands{manager: mgr}
}

// Tick returns a tick command with the specified interval.
func (c *Commands) Tick(interval time.Duration) tea.Cmd {
	return tickCmd(interval)
}

// DefaultTick returns a tick command with the default interval.
func (c *Commands) DefaultTick() tea.Cmd {
	return defaultTickCmd()
}

// LoadBins returns a command that loads the bin list.
func (c *Commands) LoadBins() tea.Cmd {
	if c.manager == nil {
		return nil
	}
	return loadBinsCmd(c.manager)
}

// NotifySuccess returns a command that adds a success notification.
func (c *Commands) NotifySuccess(message string) tea.Cmd {
	return notifySuccessCmd(message)
}

// NotifyError returns a command that adds an error notification.
func (c *Commands) NotifyError(message string) tea.Cmd {
	return notifyErrorCmd(message)
}

// NotifyWarning returns a command that adds a warning notification.
func (c *Commands) NotifyWarning(message string) tea.Cmd {
	return notifyWarningCmd(message)
}

// NotifyInfo returns a command that adds an info notification.
func (c *Commands) NotifyInfo(message string) tea.Cmd {
	return notifyInfoCmd(message)
}

// ClearNotification returns a command that removes a notification after a delay.
func (c *Commands) ClearNotification(id string, delay time.Duration) tea.Cmd {
	return clearNotificationCmd(id, delay)
}

// Quit returns a command that quits the application.
func (c *Commands) Quit() tea.Cmd {
	return tea.Quit
}

// Batch combines multiple commands into one.
func (c *Commands) Batch(cmds ...tea.Cmd) tea.Cmd {
	return tea.Batch(cmds...)
}
