// Package session keeps the logged-in school in a JSON file and watches it so
// that a login or logout from the CLI is picked up by a running dashboard.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/j-veylop/binwatch-tui/internal/logger"
	"github.com/j-veylop/binwatch-tui/internal/models"
)

// File is the on-disk session format.
type File struct {
	School        *models.School `json:"school,omitempty"`
	SavedAt       time.Time      `json:"saved_at"`
	SelectedBinID int64          `json:"selected_bin_id,omitempty"`
}

// EventType defines the type of session event.
type EventType int

const (
	// EventLoaded is sent once after the initial load.
	EventLoaded EventType = iota
	// EventChanged is sent when another process logs in or switches bins.
	EventChanged
	// EventLoggedOut is sent when the session file disappears or is cleared.
	EventLoggedOut
	// EventError is sent when the file cannot be read or watched.
	EventError
)

// Event represents a session service event.
type Event struct {
	Error  error
	School *models.School
	Type   EventType
}

// Service manages the session file with change notifications.
type Service struct {
	watcher       *fsnotify.Watcher
	eventChan     chan Event
	stopChan      chan struct{}
	debounceTimer *time.Timer
	state         File
	filePath      string
	mu            sync.RWMutex
	closeOnce     sync.Once
}

// New loads the session at filePath, if any, and starts watching it. A
// missing file means nobody is logged in.
func New(filePath string) (*Service, error) {
	if filePath == "" {
		return nil, errors.New("session path is required")
	}

	s := &Service{
		filePath:  filePath,
		eventChan: make(chan Event, 16),
		stopChan:  make(chan struct{}),
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}

	if err := s.load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	if err := s.startWatcher(); err != nil {
		return nil, fmt.Errorf("failed to start file watcher: %w", err)
	}

	s.sendEvent(Event{Type: EventLoaded, School: s.CurrentSchool()})
	return s, nil
}

// Load reads the session file once without watching it.
func Load(filePath string) (File, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return File{}, err
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("invalid session file: %w", err)
	}
	return f, nil
}

// Save writes a session file atomically.
func Save(filePath string, f File) error {
	f.SavedAt = time.Now().UTC()
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0o750); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	tmp := filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	if err := os.Rename(tmp, filePath); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace session: %w", err)
	}
	return nil
}

// Remove deletes a session file. A missing file is not an error.
func Remove(filePath string) error {
	if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove session: %w", err)
	}
	return nil
}

// Events returns the event channel for subscribing to session changes.
func (s *Service) Events() <-chan Event {
	return s.eventChan
}

// Path returns the session file path.
func (s *Service) Path() string {
	return s.filePath
}

// CurrentSchool returns the logged-in school or nil.
func (s *Service) CurrentSchool() *models.School {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.School == nil {
		return nil
	}
	school := *s.state.School
	return &school
}

// SelectedBinID returns the bin last selected in the dashboard, or zero.
func (s *Service) SelectedBinID() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.SelectedBinID
}

// SetSchool logs a school in and persists the session.
func (s *Service) SetSchool(school models.School) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := File{School: &school}
	if s.state.School != nil && s.state.School.ID == school.ID {
		next.SelectedBinID = s.state.SelectedBinID
	}
	if err := Save(s.filePath, next); err != nil {
		return err
	}
	s.state = next
	return nil
}

// SelectBin remembers the selected bin across restarts.
func (s *Service) SelectBin(binID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.School == nil {
		return errors.New("not logged in")
	}
	next := s.state
	next.SelectedBinID = binID
	if err := Save(s.filePath, next); err != nil {
		return err
	}
	s.state = next
	return nil
}

// Clear logs out and removes the session file.
func (s *Service) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := Remove(s.filePath); err != nil {
		return err
	}
	s.state = File{}
	return nil
}

func (s *Service) load() error {
	f, err := Load(s.filePath)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.state = f
	s.mu.Unlock()
	return nil
}

func (s *Service) startWatcher() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	s.watcher = watcher

	// Watch the directory (to catch file creation/deletion)
	if err := watcher.Add(filepath.Dir(s.filePath)); err != nil {
		if closeErr := watcher.Close(); closeErr != nil {
			logger.Error("failed to close watcher", "error", closeErr)
		}
		return err
	}

	go s.watchLoop()
	return nil
}

// watchLoop handles file system events with debouncing.
func (s *Service) watchLoop() {
	const debounceInterval = 100 * time.Millisecond

	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(s.filePath) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}

			s.mu.Lock()
			if s.debounceTimer != nil {
				s.debounceTimer.Stop()
			}
			s.debounceTimer = time.AfterFunc(debounceInterval, s.handleFileChange)
			s.mu.Unlock()

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.sendEvent(Event{Type: EventError, Error: err})

		case <-s.stopChan:
			return
		}
	}
}

// handleFileChange reloads the session after an external change and reports
// only transitions that matter to the dashboard.
func (s *Service) handleFileChange() {
	before := s.CurrentSchool()

	f, err := Load(s.filePath)
	switch {
	case os.IsNotExist(err):
		f = File{}
	case err != nil:
		s.sendEvent(Event{Type: EventError, Error: err})
		return
	}

	s.mu.Lock()
	s.state = f
	s.mu.Unlock()

	after := s.CurrentSchool()
	switch {
	case after == nil && before != nil:
		logger.Info("session cleared")
		s.sendEvent(Event{Type: EventLoggedOut})
	case after != nil && (before == nil || *before != *after):
		logger.Info("session changed", "school_id", after.ID, "username", after.Username)
		s.sendEvent(Event{Type: EventChanged, School: after})
	}
}

// sendEvent sends an event to the event channel non-blocking.
func (s *Service) sendEvent(event Event) {
	select {
	case s.eventChan <- event:
	default:
		// Channel full, drop oldest event
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

// Close stops the file watcher and cleans up resources.
func (s *Service) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.stopChan)

		s.mu.Lock()
		if s.debounceTimer != nil {
			s.debounceTimer.Stop()
		}
		s.mu.Unlock()

		if s.watcher != nil {
			err = s.watcher.Close()
		}
	})
	return err
}
