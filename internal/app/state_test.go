package app

import (
	"errors"
	"testing"
	"time"

	"github.com/j-veylop/binwatch-tui/internal/models"
	"github.com/j-veylop/binwatch-tui/internal/services/aggregation"
)

func TestNewState(t *testing.T) {
	s := NewState()
	if s == nil {
		t.Fatal("NewState returned nil")
	}
	if len(s.Bins) != 0 {
		t.Error("Bins should be empty")
	}
	if s.Loading.Initial != true {
		t.Error("Initial loading should be true")
	}
	if s.GetWindow() != models.DefaultWindow {
		t.Errorf("Window = %s, want %s", s.GetWindow(), models.DefaultWindow)
	}
}

func TestState_SetLoading(t *testing.T) {
	s := NewState()

	s.SetLoading("bins", true)
	if !s.Loading.Bins {
		t.Error("Bins loading should be true")
	}
	if !s.IsLoading("bins") {
		t.Error("IsLoading(bins) should be true")
	}

	s.SetLoading("bins", false)
	// Initial is still true
	if !s.AnyLoading() {
		t.Error("AnyLoading should be true (Initial is true)")
	}

	s.SetLoading("initial", false)
	if s.AnyLoading() {
		t.Error("AnyLoading should be false")
	}

	resources := s.GetLoadingResources()
	if len(resources) != 0 {
		t.Errorf("GetLoadingResources should be empty, got %v", resources)
	}

	s.SetLoading("snapshots", true)
	resources = s.GetLoadingResources()
	if len(resources) != 1 || resources[0] != "snapshots" {
		t.Errorf("GetLoadingResources should contain snapshots, got %v", resources)
	}
	if s.IsLoading("unknown") {
		t.Error("unknown resource should never be loading")
	}
}

func TestState_Bins(t *testing.T) {
	s := NewState()

	s.SetBins([]models.Bin{{ID: 1, Name: "Kitchen"}, {ID: 2, Name: "Hall"}})
	if s.GetBinCount() != 2 {
		t.Errorf("GetBinCount = %d, want 2", s.GetBinCount())
	}
	if s.GetSelectedBinID() != 1 {
		t.Errorf("selection = %d, want first bin", s.GetSelectedBinID())
	}

	if !s.SelectBin(2) {
		t.Fatal("SelectBin(2) should succeed")
	}
	if s.SelectBin(99) {
		t.Error("SelectBin(99) should fail")
	}
	if got := s.GetSelectedBin(); got == nil || got.Name != "Hall" {
		t.Errorf("GetSelectedBin = %+v, want Hall", got)
	}
	if s.GetSelectedIndex() != 1 {
		t.Errorf("GetSelectedIndex = %d, want 1", s.GetSelectedIndex())
	}

	// Selection survives a refresh that keeps the bin.
	s.SetBins([]models.Bin{{ID: 2}, {ID: 3}})
	if s.GetSelectedBinID() != 2 {
		t.Errorf("selection = %d, want 2", s.GetSelectedBinID())
	}

	// And falls back when the bin disappears.
	s.SetBins([]models.Bin{{ID: 3}})
	if s.GetSelectedBinID() != 3 {
		t.Errorf("selection = %d, want 3", s.GetSelectedBinID())
	}

	s.SetBins(nil)
	if s.GetSelectedBinID() != 0 || s.GetSelectedBin() != nil {
		t.Error("empty bin list should clear the selection")
	}
}

func TestState_ReplaceBin(t *testing.T) {
	s := NewState()
	latest := &models.Snapshot{ID: 7}
	s.SetBins([]models.Bin{{ID: 1, Name: "Old", LatestSnapshot: latest}})

	s.ReplaceBin(models.Bin{ID: 1, Name: "New"})

	got := s.GetSelectedBin()
	if got.Name != "New" {
		t.Errorf("Name = %q, want New", got.Name)
	}
	if got.LatestSnapshot != latest {
		t.Error("ReplaceBin should keep the latest snapshot")
	}
}

func TestState_SetSchool(t *testing.T) {
	s := NewState()
	s.SetSchool(&models.School{ID: 1, Username: "north"})
	s.SetBins([]models.Bin{{ID: 1}})
	s.SetHistory(HistoryState{BinID: 1})

	// Same school keeps data.
	s.SetSchool(&models.School{ID: 1, Username: "north"})
	if s.GetBinCount() != 1 {
		t.Error("same school should keep bins")
	}

	s.SetSchool(&models.School{ID: 2, Username: "south"})
	if s.GetBinCount() != 0 {
		t.Error("another school should drop bins")
	}
	if _, ok := s.GetHistory(1); ok {
		t.Error("another school should drop history")
	}

	s.SetSchool(nil)
	if s.GetSchool() != nil {
		t.Error("school should be nil after logout")
	}
}

func TestState_History(t *testing.T) {
	s := NewState()
	if _, ok := s.GetHistory(0); ok {
		t.Error("bin 0 never has history")
	}

	s.SetHistory(HistoryState{BinID: 4, Local: true})
	if _, ok := s.GetHistory(5); ok {
		t.Error("history of another bin should not be returned")
	}
	h, ok := s.GetHistory(4)
	if !ok || !h.Local {
		t.Errorf("GetHistory(4) = %+v, %v", h, ok)
	}
}

func TestSnapshotPage_PageCount(t *testing.T) {
	tests := []struct {
		total    int
		pageSize int
		want     int
	}{
		{0, 12, 1},
		{12, 12, 1},
		{13, 12, 2},
		{25, 12, 3},
		{5, 0, 1},
	}
	for _, tt := range tests {
		p := SnapshotPage{Total: tt.total}
		if got := p.PageCount(tt.pageSize); got != tt.want {
			t.Errorf("PageCount(total=%d, size=%d) = %d, want %d", tt.total, tt.pageSize, got, tt.want)
		}
	}
}

func TestState_StatsGenerations(t *testing.T) {
	s := NewState()
	first := aggregation.Request{BinID: 1, Window: models.Window1Week, Generation: 1}
	second := aggregation.Request{BinID: 1, Window: models.Window1Month, Generation: 2}

	s.BeginStats(first)
	s.BeginStats(second)
	if s.GetStats().Phase != aggregation.StateFiltering {
		t.Errorf("Phase = %s, want filtering", s.GetStats().Phase)
	}

	if s.SetStatsMetrics(1, models.MetricsSummary{SnapshotCount: 9}) {
		t.Error("metrics of a superseded generation should be discarded")
	}
	if s.GetStats().Metrics != nil {
		t.Error("stale metrics should not be stored")
	}

	if !s.SetStatsMetrics(2, models.MetricsSummary{SnapshotCount: 3}) {
		t.Fatal("current metrics should be stored")
	}
	if s.GetStats().Phase != aggregation.StateSummarizing {
		t.Errorf("Phase = %s, want summarizing", s.GetStats().Phase)
	}

	stale := aggregation.Outcome{Request: first, State: aggregation.StateGenerated}
	if s.SetStatsOutcome(stale) {
		t.Error("outcome of a superseded generation should be discarded")
	}

	outcome := aggregation.Outcome{
		Request: second,
		State:   aggregation.StateFallback,
		Narrative: models.NarrativeResult{
			Text:       "local text",
			Provenance: models.ProvenanceFallback,
			Metrics:    models.MetricsSummary{SnapshotCount: 3},
		},
	}
	if !s.SetStatsOutcome(outcome) {
		t.Fatal("current outcome should be stored")
	}
	st := s.GetStats()
	if st.Phase != aggregation.StateFallback {
		t.Errorf("Phase = %s, want fallback", st.Phase)
	}
	if st.Narrative == nil || st.Narrative.Text != "local text" {
		t.Errorf("Narrative = %+v", st.Narrative)
	}
}

func TestState_StatsEmptyWindowHasNoNarrative(t *testing.T) {
	s := NewState()
	req := aggregation.Request{BinID: 1, Window: models.Window1Day, Generation: 1}
	s.BeginStats(req)

	s.SetStatsOutcome(aggregation.OutcomeForError(req, aggregation.ErrEmptyWindow))

	st := s.GetStats()
	if st.Phase != aggregation.StateEmptyWindow {
		t.Errorf("Phase = %s, want empty_window", st.Phase)
	}
	if st.Narrative != nil {
		t.Error("empty window should not carry a narrative")
	}
	if !errors.Is(st.Err, aggregation.ErrEmptyWindow) {
		t.Errorf("Err = %v", st.Err)
	}
}

func TestState_Notifications(t *testing.T) {
	s := NewState()

	id := s.AddNotification(NotificationInfo, "test", time.Minute)
	if id == "" {
		t.Error("AddNotification returned empty ID")
	}

	notifs := s.GetNotifications()
	if len(notifs) != 1 {
		t.Errorf("GetNotifications len = %d, want 1", len(notifs))
	}
	if notifs[0].Message != "test" {
		t.Errorf("Notification message = %s, want test", notifs[0].Message)
	}

	s.RemoveNotification(id)
	if len(s.GetNotifications()) != 0 {
		t.Error("Notification should be removed")
	}
}

func TestState_ClearExpiredNotifications(t *testing.T) {
	s := NewState()

	// Expired
	s.notifications = append(s.notifications, Notification{
		ID:        "expired",
		CreatedAt: time.Now().Add(-2 * time.Minute),
		Duration:  time.Minute,
	})

	// Active
	s.notifications = append(s.notifications, Notification{
		ID:        "active",
		CreatedAt: time.Now(),
		Duration:  time.Minute,
	})

	s.ClearExpiredNotifications()

	notifs := s.GetNotifications()
	if len(notifs) != 1 {
		t.Fatalf("Expected 1 notification, got %d", len(notifs))
	}
	if notifs[0].ID != "active" {
		t.Errorf("Expected active notification, got %s", notifs[0].ID)
	}
}

func TestState_LoadingNotification(t *testing.T) {
	s := NewState()

	s.SetLoadingNotification("loading...")
	notifs := s.GetNotifications()
	if len(notifs) != 1 {
		t.Errorf("Expected 1 notification, got %d", len(notifs))
	}
	if notifs[0].ID != LoadingNotificationID {
		t.Errorf("Expected ID %s, got %s", LoadingNotificationID, notifs[0].ID)
	}

	s.SetLoadingNotification("still loading...")
	notifs = s.GetNotifications()
	if len(notifs) != 1 {
		t.Errorf("Expected 1 notification after update")
	}
	if notifs[0].Message != "still loading..." {
		t.Errorf("Expected message still loading..., got %s", notifs[0].Message)
	}

	s.ClearLoadingNotification()
	if len(s.GetNotifications()) != 0 {
		t.Error("Loading notification should be cleared")
	}
}

func TestState_Syncing(t *testing.T) {
	s := NewState()
	if s.TimeSinceUpdate() != 0 {
		t.Error("TimeSinceUpdate should be 0 before any update")
	}

	s.SetSyncing(true)
	if !s.IsSyncing() {
		t.Error("IsSyncing should be true")
	}

	s.SetSyncing(false)
	if s.IsSyncing() {
		t.Error("IsSyncing should be false")
	}
	if s.GetLastUpdated().IsZero() {
		t.Error("finishing a sync should stamp LastUpdated")
	}
}

func TestNotificationType_String(t *testing.T) {
	tests := []struct {
		t    NotificationType
		want string
	}{
		{NotificationSuccess, "success"},
		{NotificationError, "error"},
		{NotificationWarning, "warning"},
		{NotificationInfo, "info"},
		{NotificationType(999), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.t.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
