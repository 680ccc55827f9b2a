// Package syncer mirrors the logged-in school's bins and snapshots from the
// backend into the local database.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/j-veylop/binwatch-tui/internal/logger"
	"github.com/j-veylop/binwatch-tui/internal/models"
)

// FullScore is the food score at which a bin counts as full.
const FullScore = 3

// Remote is the backend side of a sync pass.
type Remote interface {
	ListBins(ctx context.Context, schoolID int64) ([]models.Bin, error)
	ListSnapshots(ctx context.Context, binID int64, limit int) ([]models.Snapshot, error)
}

// Store is the local mirror written by a sync pass.
type Store interface {
	UpsertSchool(ctx context.Context, school models.School) error
	ReplaceBins(ctx context.Context, schoolID int64, bins []models.Bin) error
	UpsertSnapshots(ctx context.Context, snapshots []models.Snapshot) (int, error)
}

// SchoolProvider returns the logged-in school, or nil when logged out.
type SchoolProvider interface {
	CurrentSchool() *models.School
}

// EventType defines the type of sync event.
type EventType int

const (
	// EventSyncStarted indicates that a pass began.
	EventSyncStarted EventType = iota
	// EventSyncCompleted indicates that a pass stored fresh data.
	EventSyncCompleted
	// EventBinFull indicates that a bin's score reached FullScore.
	EventBinFull
	// EventError indicates that a pass failed.
	EventError
)

// Event represents a sync service event.
type Event struct {
	Error        error
	Bin          *models.Bin
	Bins         []models.Bin
	SchoolID     int64
	NewSnapshots int
	Type         EventType
}

// Result summarizes one pass.
type Result struct {
	Bins         []models.Bin
	SchoolID     int64
	NewSnapshots int
}

// Config holds configuration for the sync service.
type Config struct {
	PollInterval  time.Duration
	Concurrency   int
	SnapshotLimit int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		PollInterval: 60 * time.Second,
		Concurrency:  4,
	}
}

// ErrNoSchool is returned by a pass while nobody is logged in.
var ErrNoSchool = errors.New("not logged in")

// Service polls the backend and mirrors it into the store.
type Service struct {
	remote      Remote
	store       Store
	schools     SchoolProvider
	lastScores  map[int64]int
	eventChan   chan Event
	stopChan    chan struct{}
	refreshChan chan struct{}
	cancel      context.CancelFunc
	config      Config
	mu          sync.Mutex
	passMu      sync.Mutex
	closeOnce   sync.Once
}

// New creates a sync service. Polling starts with Start.
func New(remote Remote, store Store, schools SchoolProvider, config Config) *Service {
	defaults := DefaultConfig()
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.Concurrency < 1 {
		config.Concurrency = defaults.Concurrency
	}

	return &Service{
		remote:      remote,
		store:       store,
		schools:     schools,
		lastScores:  make(map[int64]int),
		eventChan:   make(chan Event, 100),
		stopChan:    make(chan struct{}),
		refreshChan: make(chan struct{}, 1),
		config:      config,
	}
}

// Events returns the event channel.
func (s *Service) Events() <-chan Event {
	return s.eventChan
}

// Start runs the polling goroutine until Close.
func (s *Service) Start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	go s.poll(ctx)
}

// Refresh requests an immediate pass. Requests made while one is pending
// are merged.
func (s *Service) Refresh() {
	select {
	case s.refreshChan <- struct{}{}:
	default:
	}
}

// ResetAlerts forgets the scores seen so far, typically after the school
// changes.
func (s *Service) ResetAlerts() {
	s.mu.Lock()
	s.lastScores = make(map[int64]int)
	s.mu.Unlock()
}

// SyncOnce runs one pass: the bin list first, then every bin's snapshots
// with bounded concurrency.
func (s *Service) SyncOnce(ctx context.Context) (Result, error) {
	s.passMu.Lock()
	defer s.passMu.Unlock()

	school := s.schools.CurrentSchool()
	if school == nil {
		return Result{}, ErrNoSchool
	}

	s.sendEvent(Event{Type: EventSyncStarted, SchoolID: school.ID})

	bins, err := s.remote.ListBins(ctx, school.ID)
	if err != nil {
		return s.fail(school.ID, fmt.Errorf("failed to list bins: %w", err))
	}

	if err := s.store.UpsertSchool(ctx, *school); err != nil {
		return s.fail(school.ID, err)
	}
	if err := s.store.ReplaceBins(ctx, school.ID, bins); err != nil {
		return s.fail(school.ID, err)
	}

	counts := make([]int, len(bins))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.Concurrency)
	for i := range bins {
		binID := bins[i].ID
		g.Go(func() error {
			snapshots, err := s.remote.ListSnapshots(gctx, binID, s.config.SnapshotLimit)
			if err != nil {
				return fmt.Errorf("failed to list snapshots for bin %d: %w", binID, err)
			}
			n, err := s.store.UpsertSnapshots(gctx, snapshots)
			if err != nil {
				return err
			}
			counts[i] = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return s.fail(school.ID, err)
	}

	result := Result{SchoolID: school.ID, Bins: bins}
	for _, n := range counts {
		result.NewSnapshots += n
	}

	s.checkFullBins(bins)

	logger.Debug("sync pass finished",
		"school_id", school.ID, "bins", len(bins), "new_snapshots", result.NewSnapshots)

	s.sendEvent(Event{
		Type:         EventSyncCompleted,
		SchoolID:     school.ID,
		Bins:         bins,
		NewSnapshots: result.NewSnapshots,
	})
	return result, nil
}

func (s *Service) fail(schoolID int64, err error) (Result, error) {
	if !errors.Is(err, context.Canceled) {
		logger.Error("sync pass failed", "school_id", schoolID, "error", err)
		s.sendEvent(Event{Type: EventError, SchoolID: schoolID, Error: err})
	}
	return Result{}, err
}

// checkFullBins emits EventBinFull when a bin crosses into FullScore. The
// first score seen for a bin only sets the baseline.
func (s *Service) checkFullBins(bins []models.Bin) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range bins {
		bin := bins[i]
		prev, seen := s.lastScores[bin.ID]
		s.lastScores[bin.ID] = bin.CurrentScore

		if seen && prev < FullScore && bin.CurrentScore >= FullScore {
			s.sendEvent(Event{Type: EventBinFull, SchoolID: bin.SchoolID, Bin: &bin})
		}
	}
}

func (s *Service) poll(ctx context.Context) {
	s.runPass(ctx)

	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runPass(ctx)
		case <-s.refreshChan:
			s.runPass(ctx)
		case <-ctx.Done():
			return
		case <-s.stopChan:
			return
		}
	}
}

func (s *Service) runPass(ctx context.Context) {
	if _, err := s.SyncOnce(ctx); err != nil && errors.Is(err, ErrNoSchool) {
		logger.Debug("sync skipped, not logged in")
	}
}

// sendEvent sends an event to the event channel non-blocking.
func (s *Service) sendEvent(event Event) {
	select {
	case s.eventChan <- event:
	default:
		// Channel full, drop oldest
		select {
		case <-s.eventChan:
		default:
		}
		select {
		case s.eventChan <- event:
		default:
		}
	}
}

// Close stops polling.
func (s *Service) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.mu.Lock()
		if s.cancel != nil {
			s.cancel()
		}
		s.mu.Unlock()
	})
	return nil
}
