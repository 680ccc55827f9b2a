// Package app provides the main Bubble Tea application model and state management.
package app

import (
	"sync"
	"time"

	"github.com/j-veylop/binwatch-tui/internal/models"
	"github.com/j-veylop/binwatch-tui/internal/services/aggregation"
)

// NotificationType defines the type of notification.
type NotificationType int

const (
	// NotificationSuccess represents a success notification.
	NotificationSuccess NotificationType = iota
	// NotificationError represents an error notification.
	NotificationError
	// NotificationWarning represents a warning notification.
	NotificationWarning
	// NotificationInfo represents an informational notification.
	NotificationInfo
	// NotificationLoading represents a loading notification with spinner.
	NotificationLoading
)

const (
	// LoadingNotificationID is the fixed ID for loading notifications.
	LoadingNotificationID = "__loading__"
)

// String returns the string representation of a NotificationType.
func (n NotificationType) String() string {
	switch n {
	case NotificationSuccess:
		return "success"
	case NotificationError:
		return "error"
	case NotificationWarning:
		return "warning"
	case NotificationInfo:
		return "info"
	default:
		return "unknown"
	}
}

// Notification represents a user-facing notification message.
type Notification struct {
	ID        string
	Type      NotificationType
	Message   string
	CreatedAt time.Time
	Duration  time.Duration
}

// IsExpired returns true if the notification has expired.
func (n *Notification) IsExpired() bool {
	if n.Duration <= 0 {
		return false
	}
	return time.Since(n.CreatedAt) > n.Duration
}

// LoadingState tracks loading states for different resources.
type LoadingState struct {
	Initial   bool
	Bins      bool
	History   bool
	Snapshots bool
}

// HistoryState is the loaded score history of the selected bin.
type HistoryState struct {
	Err     error
	History *models.BinHistory
	BinID   int64
	Local   bool
}

// SnapshotPage is one loaded page of a bin's snapshots.
type SnapshotPage struct {
	Err       error
	Snapshots []models.Snapshot
	BinID     int64
	Page      int
	Total     int
}

// PageCount returns the number of pages for the page size.
func (p SnapshotPage) PageCount(pageSize int) int {
	if pageSize <= 0 || p.Total == 0 {
		return 1
	}
	return (p.Total + pageSize - 1) / pageSize
}

// StatsState is the presentation state of the latest statistics request.
// Only results of the current generation are ever stored.
type StatsState struct {
	Err       error
	Metrics   *models.MetricsSummary
	Narrative *models.NarrativeResult
	Request   aggregation.Request
	Phase     aggregation.State
}

// State is the shared application state read by every tab.
type State struct {
	mu sync.RWMutex

	School        *models.School
	Bins          []models.Bin
	SelectedBinID int64
	Window        models.TimeWindow

	History   HistoryState
	Snapshots SnapshotPage
	Stats     StatsState

	Loading LoadingState
	Syncing bool

	LastUpdated time.Time

	notifications   []Notification
	notificationSeq int
}

// NewState creates the initial application state.
func NewState() *State {
	return &State{
		Bins:          make([]models.Bin, 0),
		Window:        models.DefaultWindow,
		notifications: make([]Notification, 0),
		Loading: LoadingState{
			Initial: true,
		},
	}
}

// SetLoading sets the loading state for a specific resource.
func (s *State) SetLoading(resource string, loading bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch resource {
	case "initial":
		s.Loading.Initial = loading
	case "bins":
		s.Loading.Bins = loading
	case "history":
		s.Loading.History = loading
	case "snapshots":
		s.Loading.Snapshots = loading
	}
}

// AnyLoading returns true if any resource is currently loading.
func (s *State) AnyLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.Loading.Initial ||
		s.Loading.Bins ||
		s.Loading.History ||
		s.Loading.Snapshots
}

// IsInitialLoading returns true if initial data is still loading.
func (s *State) IsInitialLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Loading.Initial
}

// IsLoading reports whether one resource is loading.
func (s *State) IsLoading(resource string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch resource {
	case "initial":
		return s.Loading.Initial
	case "bins":
		return s.Loading.Bins
	case "history":
		return s.Loading.History
	case "snapshots":
		return s.Loading.Snapshots
	}
	return false
}

// GetLoadingResources returns a list of currently loading resources.
func (s *State) GetLoadingResources() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var resources []string
	if s.Loading.Initial {
		resources = append(resources, "initial")
	}
	if s.Loading.Bins {
		resources = append(resources, "bins")
	}
	if s.Loading.History {
		resources = append(resources, "history")
	}
	if s.Loading.Snapshots {
		resources = append(resources, "snapshots")
	}
	return resources
}

// SetSchool replaces the logged-in school. Switching schools drops all
// per-school data.
func (s *State) SetSchool(school *models.School) {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := (s.School == nil) != (school == nil) ||
		(s.School != nil && school != nil && s.School.ID != school.ID)
	s.School = school
	if changed {
		s.Bins = make([]models.Bin, 0)
		s.SelectedBinID = 0
		s.History = HistoryState{}
		s.Snapshots = SnapshotPage{}
		s.Stats = StatsState{}
	}
}

// GetSchool returns the logged-in school, or nil.
func (s *State) GetSchool() *models.School {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.School
}

// SetBins updates the bin list. The selection moves to the first bin when
// the selected bin is gone.
func (s *State) SetBins(bins []models.Bin) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Bins = bins
	s.LastUpdated = time.Now()

	for i := range bins {
		if bins[i].ID == s.SelectedBinID {
			return
		}
	}
	s.SelectedBinID = 0
	if len(bins) > 0 {
		s.SelectedBinID = bins[0].ID
	}
}

// GetBins returns a copy of the bin list.
func (s *State) GetBins() []models.Bin {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bins := make([]models.Bin, len(s.Bins))
	copy(bins, s.Bins)
	return bins
}

// GetBinCount returns the number of bins.
func (s *State) GetBinCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.Bins)
}

// SelectBin selects a bin by ID and reports whether it exists.
func (s *State) SelectBin(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.Bins {
		if s.Bins[i].ID == id {
			s.SelectedBinID = id
			return true
		}
	}
	return false
}

// GetSelectedBinID returns the selected bin ID, or zero.
func (s *State) GetSelectedBinID() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.SelectedBinID
}

// GetSelectedBin returns a copy of the selected bin, or nil.
func (s *State) GetSelectedBin() *models.Bin {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.Bins {
		if s.Bins[i].ID == s.SelectedBinID {
			bin := s.Bins[i]
			return &bin
		}
	}
	return nil
}

// GetSelectedIndex returns the position of the selected bin in the list.
func (s *State) GetSelectedIndex() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.Bins {
		if s.Bins[i].ID == s.SelectedBinID {
			return i
		}
	}
	return 0
}

// ReplaceBin swaps in an updated bin.
func (s *State) ReplaceBin(bin models.Bin) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.Bins {
		if s.Bins[i].ID == bin.ID {
			latest := s.Bins[i].LatestSnapshot
			s.Bins[i] = bin
			if bin.LatestSnapshot == nil {
				s.Bins[i].LatestSnapshot = latest
			}
			return
		}
	}
}

// SetWindow sets the statistics time window.
func (s *State) SetWindow(w models.TimeWindow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Window = w.Normalize()
}

// GetWindow returns the statistics time window.
func (s *State) GetWindow() models.TimeWindow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Window
}

// SetHistory stores a loaded bin history.
func (s *State) SetHistory(h HistoryState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.History = h
}

// GetHistory returns the history of binID, if loaded.
func (s *State) GetHistory(binID int64) (HistoryState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.History.BinID != binID || binID == 0 {
		return HistoryState{}, false
	}
	return s.History, true
}

// SetSnapshots stores a loaded snapshot page.
func (s *State) SetSnapshots(p SnapshotPage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Snapshots = p
}

// GetSnapshots returns the loaded snapshot page.
func (s *State) GetSnapshots() SnapshotPage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Snapshots
}

// BeginStats records a new statistics request, superseding the previous one.
func (s *State) BeginStats(req aggregation.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Stats = StatsState{Request: req, Phase: aggregation.StateFiltering}
}

// SetStatsMetrics stores reduced metrics while the narrative is pending.
// Metrics for any generation but the current one are discarded.
func (s *State) SetStatsMetrics(generation uint64, metrics models.MetricsSummary) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if generation != s.Stats.Request.Generation {
		return false
	}
	s.Stats.Metrics = &metrics
	s.Stats.Phase = aggregation.StateSummarizing
	return true
}

// SetStatsOutcome stores the terminal outcome of the current request.
func (s *State) SetStatsOutcome(outcome aggregation.Outcome) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if outcome.Request.Generation != s.Stats.Request.Generation {
		return false
	}

	s.Stats.Phase = outcome.State
	s.Stats.Err = outcome.Err
	metrics := outcome.Metrics()
	s.Stats.Metrics = &metrics
	s.Stats.Narrative = nil
	if outcome.State == aggregation.StateGenerated || outcome.State == aggregation.StateFallback {
		narrative := outcome.Narrative
		s.Stats.Narrative = &narrative
	}
	return true
}

// GetStats returns the statistics presentation state.
func (s *State) GetStats() StatsState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Stats
}

// SetSyncing records whether a sync pass is running.
func (s *State) SetSyncing(syncing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Syncing = syncing
	if !syncing {
		s.LastUpdated = time.Now()
	}
}

// IsSyncing reports whether a sync pass is running.
func (s *State) IsSyncing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Syncing
}

// AddNotification adds a new notification and returns its ID.
func (s *State) AddNotification(notifType NotificationType, message string, duration time.Duration) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.notificationSeq++
	id := time.Now().Format("20060102150405") + "-" + string(rune('A'+s.notificationSeq%26))

	notification := Notification{
		ID:        id,
		Type:      notifType,
		Message:   message,
		CreatedAt: time.Now(),
		Duration:  duration,
	}

	s.notifications = append(s.notifications, notification)

	// Keep only the last 10 notifications
	if len(s.notifications) > 10 {
		s.notifications = s.notifications[len(s.notifications)-10:]
	}

	return id
}

// RemoveNotification removes a notification by ID.
func (s *State) RemoveNotification(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, n := range s.notifications {
		if n.ID == id {
			s.notifications = append(s.notifications[:i], s.notifications[i+1:]...)
			return
		}
	}
}

// ClearExpiredNotifications removes all expired notifications.
func (s *State) ClearExpiredNotifications() {
	s.mu.Lock()
	defer s.mu.Unlock()

	active := make([]Notification, 0, len(s.notifications))
	for _, n := range s.notifications {
		if !n.IsExpired() {
			active = append(active, n)
		}
	}
	s.notifications = active
}

// GetNotifications returns a copy of all active notifications.
func (s *State) GetNotifications() []Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()

	active := make([]Notification, 0, len(s.notifications))
	for _, n := range s.notifications {
		if !n.IsExpired() {
			active = append(active, n)
		}
	}

	return active
}

// ClearAllNotifications removes all notifications.
func (s *State) ClearAllNotifications() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = make([]Notification, 0)
}

// SetLoadingNotification sets a loading notification message.
func (s *State) SetLoadingNotification(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, n := range s.notifications {
		if n.ID == LoadingNotificationID {
			s.notifications[i].Message = message
			return
		}
	}

	s.notifications = append(s.notifications, Notification{
		ID:        LoadingNotificationID,
		Type:      NotificationLoading,
		Message:   message,
		CreatedAt: time.Now(),
		Duration:  0,
	})
}

// ClearLoadingNotification removes the loading notification.
func (s *State) ClearLoadingNotification() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, n := range s.notifications {
		if n.ID == LoadingNotificationID {
			s.notifications = append(s.notifications[:i], s.notifications[i+1:]...)
			return
		}
	}
}

// GetLastUpdated returns the last time the state was updated.
func (s *State) GetLastUpdated() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.LastUpdated
}

// TimeSinceUpdate returns the duration since the last update.
func (s *State) TimeSinceUpdate() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.LastUpdated.IsZero() {
		return 0
	}
	return time.Since(s.LastUpdated)
}
