package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/j-veylop/binwatch-tui/internal/config"
	"github.com/j-veylop/binwatch-tui/internal/models"
	"github.com/j-veylop/binwatch-tui/internal/services/session"
	"github.com/j-veylop/binwatch-tui/internal/services/syncer"
)

func testConfig(t *testing.T, apiURL string) *config.Config {
	t.Helper()
	tmpDir := t.TempDir()
	return &config.Config{
		DatabasePath:            filepath.Join(tmpDir, "test.db"),
		SessionPath:             filepath.Join(tmpDir, "session.json"),
		APIURL:                  apiURL,
		Summarizer:              config.SummarizerOff,
		SnapshotRefreshInterval: time.Hour,
		SummaryTimeout:          time.Second,
		SyncConcurrency:         2,
	}
}

func newTestManager(t *testing.T, apiURL string) *Manager {
	t.Helper()
	mgr, err := NewManager(testConfig(t, apiURL))
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	mgr.notify = nil
	t.Cleanup(func() { _ = mgr.Close() })
	return mgr
}

// deadURL returns the address of a server that is already closed.
func deadURL(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	return srv.URL
}

func TestNewManager(t *testing.T) {
	mgr := newTestManager(t, deadURL(t))

	if mgr.Database() == nil {
		t.Error("Database should be initialized")
	}
	if mgr.Backend() == nil {
		t.Error("Backend should be initialized")
	}
	if mgr.Engine() == nil {
		t.Error("Engine should be initialized")
	}
	if mgr.CurrentSchool() != nil {
		t.Error("Expected no school without a session")
	}
}

func TestNewManager_BadSummarizer(t *testing.T) {
	cfg := testConfig(t, deadURL(t))
	cfg.Summarizer = "nope"

	if _, err := NewManager(cfg); err == nil {
		t.Error("Expected error for unknown summarizer")
	}
}

func TestManager_Subscription(t *testing.T) {
	mgr := newTestManager(t, deadURL(t))

	ch, cmd := mgr.Subscribe()
	if ch == nil {
		t.Error("Subscribe returned nil channel")
	}
	if cmd == nil {
		t.Error("Subscribe returned nil command")
	}

	mgr.Unsubscribe(ch)

	select {
	case _, ok := <-ch:
		if ok {
			// Drain anything delivered before the unsubscribe.
			for range ch {
			}
		}
	case <-time.After(time.Second):
		t.Error("Channel should be closed")
	}
}

func TestManager_Broadcast(t *testing.T) {
	mgr := newTestManager(t, deadURL(t))

	ch, _ := mgr.Subscribe()
	defer mgr.Unsubscribe(ch)

	event := BinFullEvent{Bin: models.Bin{ID: 4}}
	mgr.broadcast(event)

	deadline := time.After(time.Second)
	for {
		select {
		case e := <-ch:
			if got, ok := e.(BinFullEvent); ok && got.Bin.ID == 4 {
				return
			}
		case <-deadline:
			t.Fatal("Timeout waiting for broadcast")
		}
	}
}

func TestManager_HandleSyncEvent(t *testing.T) {
	mgr := newTestManager(t, deadURL(t))

	var notified []string
	mgr.notify = func(title, _ string) error {
		notified = append(notified, title)
		return nil
	}

	ch, _ := mgr.Subscribe()
	defer mgr.Unsubscribe(ch)

	mgr.handleSyncEvent(syncer.Event{Type: syncer.EventBinFull, Bin: &models.Bin{ID: 9, Name: "Lunch"}})
	mgr.handleSyncEvent(syncer.Event{Type: syncer.EventError, Error: errors.New("boom")})

	if len(notified) != 1 || notified[0] != "Bin full: Lunch" {
		t.Errorf("Unexpected notifications %v", notified)
	}

	var sawFull, sawError bool
	deadline := time.After(time.Second)
	for !sawFull || !sawError {
		select {
		case e := <-ch:
			switch ev := e.(type) {
			case BinFullEvent:
				sawFull = ev.Bin.ID == 9
			case ErrorEvent:
				sawError = ev.Service == "sync"
			}
		case <-deadline:
			t.Fatalf("Timeout: full=%v error=%v", sawFull, sawError)
		}
	}
}

func TestManager_SessionChange(t *testing.T) {
	mgr := newTestManager(t, deadURL(t))
	ch, _ := mgr.Subscribe()
	defer mgr.Unsubscribe(ch)

	school := &models.School{ID: 3, Username: "oak"}
	if err := session.Save(mgr.session.Path(), session.File{School: school}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	deadline := time.After(3 * time.Second)
	for {
		select {
		case e := <-ch:
			if ev, ok := e.(SessionChangedEvent); ok && ev.School != nil && ev.School.ID == 3 {
				if got := mgr.CurrentSchool(); got == nil || got.Username != "oak" {
					t.Errorf("Expected current school oak, got %+v", got)
				}
				return
			}
		case <-deadline:
			t.Fatal("Timeout waiting for session change")
		}
	}
}

func TestManager_UpdateBin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch || r.URL.Path != "/bins/1" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": 1, "name": "Renamed", "ip_address": "10.0.0.1", "current_score": 0,
		})
	}))
	defer srv.Close()

	mgr := newTestManager(t, srv.URL)
	ctx := context.Background()

	if err := mgr.database.UpsertSchool(ctx, models.School{ID: 1, Username: "oak"}); err != nil {
		t.Fatalf("UpsertSchool failed: %v", err)
	}
	if err := mgr.database.ReplaceBins(ctx, 1, []models.Bin{{ID: 1, Name: "Old", IPAddress: "10.0.0.1"}}); err != nil {
		t.Fatalf("ReplaceBins failed: %v", err)
	}

	name := "Renamed"
	bin, err := mgr.UpdateBin(ctx, 1, models.BinPatch{Name: &name})
	if err != nil {
		t.Fatalf("UpdateBin failed: %v", err)
	}
	if bin.Name != "Renamed" {
		t.Errorf("Expected backend result, got %q", bin.Name)
	}

	stored, err := mgr.database.GetBin(ctx, 1)
	if err != nil {
		t.Fatalf("GetBin failed: %v", err)
	}
	if stored.Name != "Renamed" {
		t.Errorf("Expected local mirror to be updated, got %q", stored.Name)
	}
}

func TestManager_BinHistory_LocalFallback(t *testing.T) {
	mgr := newTestManager(t, deadURL(t))
	ctx := context.Background()

	if err := mgr.database.UpsertSchool(ctx, models.School{ID: 1, Username: "oak"}); err != nil {
		t.Fatalf("UpsertSchool failed: %v", err)
	}
	if err := mgr.database.ReplaceBins(ctx, 1, []models.Bin{{ID: 1, Name: "Cafeteria", CurrentScore: 2}}); err != nil {
		t.Fatalf("ReplaceBins failed: %v", err)
	}
	now := time.Now().UTC()
	if _, err := mgr.database.UpsertSnapshots(ctx, []models.Snapshot{
		{ID: 1, BinID: 1, Timestamp: now.Add(-36 * time.Hour), FoodScore: 1},
	}); err != nil {
		t.Fatalf("UpsertSnapshots failed: %v", err)
	}

	history, local, err := mgr.BinHistory(ctx, 1)
	if err != nil {
		t.Fatalf("BinHistory failed: %v", err)
	}
	if !local {
		t.Error("Expected local fallback with the backend down")
	}
	if history.HistoricalScores.OneDayAgo == nil || *history.HistoricalScores.OneDayAgo != 1 {
		t.Errorf("Expected 1 day ago score 1, got %v", history.HistoricalScores.OneDayAgo)
	}
}

func TestManager_BinHistory_NotFoundIsNotMasked(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail":"Bin not found"}`))
	}))
	defer srv.Close()

	mgr := newTestManager(t, srv.URL)
	if _, _, err := mgr.BinHistory(context.Background(), 99); err == nil {
		t.Error("Expected a not found error")
	}
}

func TestManager_SnapshotPage(t *testing.T) {
	mgr := newTestManager(t, deadURL(t))
	ctx := context.Background()

	if err := mgr.database.UpsertSchool(ctx, models.School{ID: 1, Username: "oak"}); err != nil {
		t.Fatalf("UpsertSchool failed: %v", err)
	}
	if err := mgr.database.ReplaceBins(ctx, 1, []models.Bin{{ID: 1}}); err != nil {
		t.Fatalf("ReplaceBins failed: %v", err)
	}
	base := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	var snaps []models.Snapshot
	for i := range 5 {
		snaps = append(snaps, models.Snapshot{ID: int64(i + 1), BinID: 1, Timestamp: base.Add(time.Duration(i) * time.Minute)})
	}
	if _, err := mgr.database.UpsertSnapshots(ctx, snaps); err != nil {
		t.Fatalf("UpsertSnapshots failed: %v", err)
	}

	page, total, err := mgr.SnapshotPage(ctx, 1, 1, 2)
	if err != nil {
		t.Fatalf("SnapshotPage failed: %v", err)
	}
	if total != 5 {
		t.Errorf("Expected total 5, got %d", total)
	}
	if len(page) != 2 || page[0].ID != 3 || page[1].ID != 2 {
		t.Errorf("Unexpected page %+v", page)
	}
}

func TestManager_Bins_LoggedOut(t *testing.T) {
	mgr := newTestManager(t, deadURL(t))

	bins, err := mgr.Bins(context.Background())
	if err != nil || bins != nil {
		t.Errorf("Expected no bins while logged out, got %v, %v", bins, err)
	}
	school, bins := mgr.InitialState(context.Background())
	if school != nil || bins != nil {
		t.Error("Expected empty initial state")
	}
}

func TestWaitForEvent(t *testing.T) {
	ch := make(chan ServiceEvent, 1)
	ch <- SyncStartedEvent{}

	cmd := WaitForEvent(ch)
	msg := cmd()
	if msg == nil {
		t.Error("WaitForEvent cmd returned nil msg")
	}
}

func TestServiceEvent_Interface(t *testing.T) {
	var _ ServiceEvent = SessionChangedEvent{}
	var _ ServiceEvent = BinsUpdatedEvent{}
	var _ ServiceEvent = SyncStartedEvent{}
	var _ ServiceEvent = BinFullEvent{}
	var _ ServiceEvent = ErrorEvent{}
}

func TestManager_Close(t *testing.T) {
	mgr := &Manager{}
	if err := mgr.Close(); err != nil {
		t.Errorf("Close on an empty manager failed: %v", err)
	}

	full := newTestManager(t, deadURL(t))
	if err := full.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if err := full.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}
