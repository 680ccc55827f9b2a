package app

import (
	"time"

	"github.com/j-veylop/binwatch-tui/internal/models"
	"github.com/j-veylop/binwatch-tui/internal/services"
	"github.com/j-veylop/binwatch-tui/internal/services/aggregation"
)

// TickMsg is sent periodically to trigger state refresh.
type TickMsg struct {
	Time time.Time
}

// StartLoadingMsg signals that a resource is starting to load.
type StartLoadingMsg struct {
	Resource string
}

// StopLoadingMsg signals that a resource has finished loading.
type StopLoadingMsg struct {
	Resource string
}

// BinsLoadedMsg contains the logged-in school and its mirrored bins.
type BinsLoadedMsg struct {
	Error  error
	School *models.School
	Bins   []models.Bin
}

// SelectBinMsg requests selecting a bin across all tabs.
type SelectBinMsg struct {
	BinID int64
}

// BinSelectedMsg signals that the selected bin changed.
type BinSelectedMsg struct {
	BinID int64
}

// LoadHistoryMsg requests the score history of a bin.
type LoadHistoryMsg struct {
	BinID int64
}

// HistoryLoadedMsg contains a bin's score history.
type HistoryLoadedMsg struct {
	Error   error
	History *models.BinHistory
	BinID   int64
	Local   bool
}

// UpdateBinMsg requests changing a bin's name or address.
type UpdateBinMsg struct {
	Patch models.BinPatch
	BinID int64
}

// BinUpdatedMsg contains the result of a bin update.
type BinUpdatedMsg struct {
	Error error
	Bin   *models.Bin
	BinID int64
}

// LoadSnapshotsMsg requests one page of a bin's snapshots.
type LoadSnapshotsMsg struct {
	BinID int64
	Page  int
}

// SnapshotsLoadedMsg contains one page of snapshots.
type SnapshotsLoadedMsg struct {
	Page SnapshotPage
}

// LoadSnapshotDetailMsg requests one snapshot with its image data.
type LoadSnapshotDetailMsg struct {
	BinID      int64
	SnapshotID int64
}

// SnapshotDetailMsg contains one snapshot fetched with its image data.
type SnapshotDetailMsg struct {
	Error    error
	Snapshot *models.Snapshot
}

// SetWindowMsg requests a new statistics time window.
type SetWindowMsg struct {
	Window models.TimeWindow
}

// RequestStatsMsg requests statistics for the selected bin and window.
type RequestStatsMsg struct{}

// MetricsReadyMsg carries the reduced metrics of a request, or the error
// that ended it before a narrative was requested.
type MetricsReadyMsg struct {
	Error   error
	Metrics models.MetricsSummary
	Request aggregation.Request
}

// NarrativeReadyMsg carries the terminal outcome of a request.
type NarrativeReadyMsg struct {
	Outcome aggregation.Outcome
}

// StatsUpdatedMsg tells tabs that the statistics state changed.
type StatsUpdatedMsg struct {
	Generation uint64
}

// RefreshMsg requests a refresh of data.
type RefreshMsg struct {
	Resource string // "all", "bins", "history", "snapshots", "stats"
}

// AddNotificationMsg requests adding a new notification.
type AddNotificationMsg struct {
	Type     NotificationType
	Message  string
	Duration time.Duration
}

// RemoveNotificationMsg requests removal of a notification.
type RemoveNotificationMsg struct {
	ID string
}

// ClearNotificationsMsg requests clearing all notifications.
type ClearNotificationsMsg struct{}

// ServiceEventMsg wraps a service event from the service manager.
type ServiceEventMsg struct {
	Event services.ServiceEvent
}

// SubscriptionEventMsg is the callback wrapper for service subscription.
type SubscriptionEventMsg struct {
	Channel chan services.ServiceEvent
}

// ErrorMsg represents a general error.
type ErrorMsg struct {
	Error   error
	Context string
}

// TabSwitchMsg requests switching to a specific tab.
type TabSwitchMsg struct {
	Tab TabID
}

// ToggleHelpMsg toggles the help display.
type ToggleHelpMsg struct{}

// InputFocusMsg tells the model whether a tab is capturing text input, so
// global single-key bindings are suspended.
type InputFocusMsg struct {
	Focused bool
}

// ClearExpiredNotificationsMsg triggers clearing of expired notifications.
type ClearExpiredNotificationsMsg struct{}
