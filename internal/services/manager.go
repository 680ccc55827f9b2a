// Package services provides service orchestration for the TUI.
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gen2brain/beeep"

	"github.com/j-veylop/binwatch-tui/internal/config"
	"github.com/j-veylop/binwatch-tui/internal/db"
	"github.com/j-veylop/binwatch-tui/internal/logger"
	"github.com/j-veylop/binwatch-tui/internal/models"
	"github.com/j-veylop/binwatch-tui/internal/services/aggregation"
	"github.com/j-veylop/binwatch-tui/internal/services/backend"
	"github.com/j-veylop/binwatch-tui/internal/services/session"
	"github.com/j-veylop/binwatch-tui/internal/services/summarizer"
	"github.com/j-veylop/binwatch-tui/internal/services/syncer"
)

type (
	// SessionChangedEvent is emitted when the logged-in school changes.
	SessionChangedEvent struct {
		School *models.School
	}

	// BinsUpdatedEvent is emitted after a sync pass stored fresh data.
	BinsUpdatedEvent struct {
		Bins         []models.Bin
		NewSnapshots int
	}

	// SyncStartedEvent is emitted when a sync pass begins.
	SyncStartedEvent struct{}

	// BinFullEvent is emitted when a bin's food score reaches the full level.
	BinFullEvent struct {
		Bin models.Bin
	}

	// ErrorEvent is emitted when an error occurs in any service.
	ErrorEvent struct {
		Service string
		Error   error
	}
)

// ServiceEvent is the interface implemented by all service events.
type ServiceEvent interface {
	isServiceEvent()
}

func (SessionChangedEvent) isServiceEvent() {}
func (BinsUpdatedEvent) isServiceEvent()    {}
func (SyncStartedEvent) isServiceEvent()    {}
func (BinFullEvent) isServiceEvent()        {}
func (ErrorEvent) isServiceEvent()          {}

// Manager orchestrates services and event routing.
type Manager struct {
	mu          sync.RWMutex
	database    *db.DB
	backend     *backend.Client
	session     *session.Service
	syncer      *syncer.Service
	engine      *aggregation.Engine
	notify      func(title, body string) error
	eventChan   chan ServiceEvent
	stopChan    chan struct{}
	subscribers []chan<- ServiceEvent
	closeOnce   sync.Once
}

// NewManager creates a new service manager and starts background sync.
func NewManager(cfg *config.Config) (*Manager, error) {
	m := &Manager{
		eventChan: make(chan ServiceEvent, 100),
		stopChan:  make(chan struct{}),
		notify: func(title, body string) error {
			return beeep.Notify(title, body, "")
		},
	}

	var err error
	m.database, err = db.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	m.session, err = session.New(cfg.SessionPath)
	if err != nil {
		_ = m.database.Close()
		return nil, err
	}

	m.backend = backend.NewClient(cfg.APIURL)

	summ, err := summarizer.New(cfg, m.backend)
	if err != nil {
		_ = m.session.Close()
		_ = m.database.Close()
		return nil, fmt.Errorf("failed to initialize summarizer: %w", err)
	}
	m.engine = aggregation.NewEngine(m.database, summ)

	m.syncer = syncer.New(m.backend, m.database, m.session, syncer.Config{
		PollInterval: cfg.SnapshotRefreshInterval,
		Concurrency:  cfg.SyncConcurrency,
	})

	go m.routeEvents()
	m.syncer.Start(context.Background())

	return m, nil
}

// routeEvents routes events from individual services to subscribers.
func (m *Manager) routeEvents() {
	for {
		select {
		case event := <-m.session.Events():
			m.handleSessionEvent(event)

		case event := <-m.syncer.Events():
			m.handleSyncEvent(event)

		case <-m.stopChan:
			return
		}
	}
}

func (m *Manager) handleSessionEvent(event session.Event) {
	switch event.Type {
	case session.EventLoaded, session.EventChanged, session.EventLoggedOut:
		m.syncer.ResetAlerts()
		if event.School != nil {
			m.syncer.Refresh()
		}
		m.broadcast(SessionChangedEvent{School: event.School})

	case session.EventError:
		m.broadcast(ErrorEvent{
			Service: "session",
			Error:   event.Error,
		})
	}
}

func (m *Manager) handleSyncEvent(event syncer.Event) {
	switch event.Type {
	case syncer.EventSyncStarted:
		m.broadcast(SyncStartedEvent{})

	case syncer.EventSyncCompleted:
		m.broadcast(BinsUpdatedEvent{
			Bins:         event.Bins,
			NewSnapshots: event.NewSnapshots,
		})

	case syncer.EventBinFull:
		if event.Bin != nil {
			m.notifyBinFull(*event.Bin)
			m.broadcast(BinFullEvent{Bin: *event.Bin})
		}

	case syncer.EventError:
		m.broadcast(ErrorEvent{
			Service: "sync",
			Error:   event.Error,
		})
	}
}

func (m *Manager) notifyBinFull(bin models.Bin) {
	if m.notify == nil {
		return
	}
	title := fmt.Sprintf("Bin full: %s", bin.DisplayName())
	body := "Food waste score reached 3. The bin needs emptying."
	if err := m.notify(title, body); err != nil {
		logger.Debug("desktop notification failed", "error", err)
	}
}

// broadcast sends an event to all subscribers.
func (m *Manager) broadcast(event ServiceEvent) {
	// Send to main event channel
	select {
	case m.eventChan <- event:
	default:
	}

	// Send to subscribers
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, sub := range m.subscribers {
		select {
		case sub <- event:
		default:
			// Subscriber channel full, skip
		}
	}
}

// Subscribe creates a channel for receiving service events.
// Returns a tea.Cmd that can be used in Bubble Tea's Init or Update.
func (m *Manager) Subscribe() (chan ServiceEvent, tea.Cmd) {
	ch := make(chan ServiceEvent, 50)

	m.mu.Lock()
	m.subscribers = append(m.subscribers, ch)
	m.mu.Unlock()

	return ch, waitForEvent(ch)
}

// waitForEvent returns a tea.Cmd that waits for the next event.
func waitForEvent(ch <-chan ServiceEvent) tea.Cmd {
	return func() tea.Msg {
		return <-ch
	}
}

// WaitForEvent returns a tea.Cmd for the next event on a channel.
func WaitForEvent(ch <-chan ServiceEvent) tea.Cmd {
	return waitForEvent(ch)
}

// Unsubscribe removes a subscriber channel.
func (m *Manager) Unsubscribe(ch chan ServiceEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, sub := range m.subscribers {
		if sub == ch {
			m.subscribers = append(m.subscribers[:i], m.subscribers[i+1:]...)
			close(ch)
			break
		}
	}
}

// CurrentSchool returns the logged-in school, or nil.
func (m *Manager) CurrentSchool() *models.School {
	if m.session == nil {
		return nil
	}
	return m.session.CurrentSchool()
}

// SelectedBinID returns the bin remembered for the session.
func (m *Manager) SelectedBinID() int64 {
	if m.session == nil {
		return 0
	}
	return m.session.SelectedBinID()
}

// SelectBin remembers the bin the user is looking at.
func (m *Manager) SelectBin(binID int64) error {
	return m.session.SelectBin(binID)
}

// Bins returns the mirrored bins of the logged-in school.
func (m *Manager) Bins(ctx context.Context) ([]models.Bin, error) {
	school := m.CurrentSchool()
	if school == nil {
		return nil, nil
	}
	return m.database.ListBins(ctx, school.ID)
}

// RefreshBins requests an immediate sync pass.
func (m *Manager) RefreshBins() {
	m.syncer.Refresh()
}

// UpdateBin changes a bin on the backend and mirrors the result locally.
func (m *Manager) UpdateBin(ctx context.Context, binID int64, patch models.BinPatch) (*models.Bin, error) {
	bin, err := m.backend.UpdateBin(ctx, binID, patch)
	if err != nil {
		return nil, err
	}
	if err := m.database.UpdateBin(ctx, binID, patch); err != nil && !errors.Is(err, db.ErrNotFound) {
		return nil, err
	}
	return bin, nil
}

// BinHistory returns a bin's historical scores. When the backend cannot be
// reached the scores are rebuilt from the local mirror and local is true.
func (m *Manager) BinHistory(ctx context.Context, binID int64) (history *models.BinHistory, local bool, err error) {
	history, err = m.backend.GetBinHistory(ctx, binID)
	if err == nil {
		return history, false, nil
	}
	if !errors.Is(err, backend.ErrUnavailable) {
		return nil, false, err
	}

	logger.Debug("backend unavailable, using local history", "bin_id", binID, "error", err)
	history, localErr := m.database.BinHistory(ctx, binID, time.Now())
	if localErr != nil {
		return nil, false, errors.Join(err, localErr)
	}
	return history, true, nil
}

// SnapshotPage returns one page of a bin's mirrored snapshots, newest first,
// together with the total number stored.
func (m *Manager) SnapshotPage(ctx context.Context, binID int64, page, pageSize int) ([]models.Snapshot, int, error) {
	if page < 0 {
		page = 0
	}
	total, err := m.database.CountSnapshots(ctx, binID)
	if err != nil {
		return nil, 0, err
	}
	snapshots, err := m.database.ListSnapshotsPage(ctx, binID, pageSize, page*pageSize)
	if err != nil {
		return nil, 0, err
	}
	return snapshots, total, nil
}

// Snapshot fetches one snapshot with its image data from the backend.
func (m *Manager) Snapshot(ctx context.Context, binID, snapshotID int64) (*models.Snapshot, error) {
	return m.backend.GetSnapshot(ctx, binID, snapshotID)
}

// LatestImageURL returns the URL of a bin's most recent camera image.
func (m *Manager) LatestImageURL(binID int64) string {
	return m.backend.LatestImageURL(binID)
}

// Engine returns the waste statistics engine.
func (m *Manager) Engine() *aggregation.Engine {
	return m.engine
}

// Backend returns the backend client.
func (m *Manager) Backend() *backend.Client {
	return m.backend
}

// Database returns the database instance for direct access.
func (m *Manager) Database() *db.DB {
	return m.database
}

// Close closes the manager and all its services.
func (m *Manager) Close() error {
	var errs []error

	m.closeOnce.Do(func() {
		if m.stopChan != nil {
			close(m.stopChan)
		}

		m.mu.Lock()
		for _, sub := range m.subscribers {
			close(sub)
		}
		m.subscribers = nil
		m.mu.Unlock()

		if m.syncer != nil {
			if err := m.syncer.Close(); err != nil {
				errs = append(errs, err)
			}
		}

		if m.session != nil {
			if err := m.session.Close(); err != nil {
				errs = append(errs, err)
			}
		}

		if m.database != nil {
			if err := m.database.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	})

	return errors.Join(errs...)
}

// InitialState returns the logged-in school and its mirrored bins for TUI
// initialization.
func (m *Manager) InitialState(ctx context.Context) (*models.School, []models.Bin) {
	school := m.CurrentSchool()
	bins, err := m.Bins(ctx)
	if err != nil {
		logger.Error("failed to load bins", "error", err)
	}
	return school, bins
}
