package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/adrg/xdg"
)

const stateVersion = "1"

// ReminderState is the persistent state of the reminder daemon
type ReminderState struct {
	LastTick time.Time `json:"last_tick"`
	// Sent maps a reminder key to the instant the reminder fires, so keys for
	// past reminders can be pruned.
	Sent    map[string]time.Time `json:"sent"`
	Version string               `json:"version"`
}

// StateManager handles persistent reminder state
type StateManager interface {
	LastTick() time.Time
	SetLastTick(tick time.Time) error
	WasSent(key string) bool
	MarkSent(key string, at time.Time) error
	Prune(before time.Time) error
	Load() error
	Save() error
}

// XDGStateManager implements StateManager with a JSON file, by default under
// the XDG state directory
type XDGStateManager struct {
	state    ReminderState
	filePath string
	now      func() time.Time
	mutex    sync.RWMutex
}

// NewXDGStateManager creates a state manager for $XDG_STATE_HOME/calrepeat/state.json
func NewXDGStateManager() (*XDGStateManager, error) {
	stateFilePath, err := xdg.StateFile("calrepeat/state.json")
	if err != nil {
		return nil, fmt.Errorf("failed to get XDG state file path: %w", err)
	}
	return NewFileStateManager(stateFilePath), nil
}

// NewFileStateManager creates a state manager backed by path
func NewFileStateManager(path string) *XDGStateManager {
	return &XDGStateManager{
		state:    newReminderState(),
		filePath: path,
		now:      time.Now,
	}
}

func newReminderState() ReminderState {
	return ReminderState{
		Sent:    make(map[string]time.Time),
		Version: stateVersion,
	}
}

// SetNowFunc replaces the time source used when no previous tick exists
func (s *XDGStateManager) SetNowFunc(now func() time.Time) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.now = now
}

// LastTick returns the last recorded reminder tick
func (s *XDGStateManager) LastTick() time.Time {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.state.LastTick
}

// SetLastTick updates the last tick and saves to disk
func (s *XDGStateManager) SetLastTick(tick time.Time) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.state.LastTick = tick
	return s.saveLocked()
}

// WasSent reports whether the reminder identified by key was delivered
func (s *XDGStateManager) WasSent(key string) bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	_, sent := s.state.Sent[key]
	return sent
}

// MarkSent records a delivered reminder and saves to disk
func (s *XDGStateManager) MarkSent(key string, at time.Time) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.state.Sent[key] = at
	return s.saveLocked()
}

// Prune forgets delivered reminders that fired before the given instant
func (s *XDGStateManager) Prune(before time.Time) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	pruned := false
	for key, at := range s.state.Sent {
		if at.Before(before) {
			delete(s.state.Sent, key)
			pruned = true
		}
	}
	if !pruned {
		return nil
	}
	return s.saveLocked()
}

// Load reads the state from disk. A missing or corrupted file starts fresh
// from the current time.
func (s *XDGStateManager) Load() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	data, err := os.ReadFile(s.filePath)
	if os.IsNotExist(err) {
		s.state = newReminderState()
		s.state.LastTick = s.now()
		return s.saveLocked()
	}
	if err != nil {
		return fmt.Errorf("failed to read state file: %w", err)
	}

	var loaded ReminderState
	if err := json.Unmarshal(data, &loaded); err != nil {
		s.state = newReminderState()
		s.state.LastTick = s.now()
		return s.saveLocked()
	}

	if loaded.LastTick.IsZero() {
		loaded.LastTick = s.now()
	}
	if loaded.Sent == nil {
		loaded.Sent = make(map[string]time.Time)
	}
	loaded.Version = stateVersion

	s.state = loaded
	return nil
}

// Save writes the current state to disk
func (s *XDGStateManager) Save() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.saveLocked()
}

// saveLocked performs the actual save operation (must be called with lock held)
func (s *XDGStateManager) saveLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.filePath), 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	// Atomic write: write to temporary file first, then rename
	tempFile := s.filePath + ".tmp"

	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write temporary state file: %w", err)
	}

	if err := os.Rename(tempFile, s.filePath); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename state file: %w", err)
	}

	return nil
}

// StateFilePath returns the path to the state file
func (s *XDGStateManager) StateFilePath() string {
	return s.filePath
}
