// Package registry manages the meter and device registry file with file
// watching and change notifications. The registry is the declarative source
// of which meters exist; edits to the file are picked up live and seeded
// into the telemetry store.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/YGNTECHSTARTUP/ecoq-sub001/internal/db"
	"github.com/YGNTECHSTARTUP/ecoq-sub001/internal/logger"
	"github.com/YGNTECHSTARTUP/ecoq-sub001/internal/models"
)

// File represents the JSON structure of the registry file.
type File struct {
	Meters  []models.Meter  `json:"meters"`
	Devices []models.Device `json:"devices"`
	Version int             `json:"version,omitempty"`
}

// EventType defines the type of registry event.
type EventType int

const (
	EventLoaded EventType = iota
	EventChanged
	EventError
)

// Event represents a registry service event.
type Event struct {
	Type  EventType
	Error error
}

// Service manages the registry with file watching and change notifications.
type Service struct {
	mu      sync.RWMutex
	meters  []models.Meter
	devices []models.Device

	filePath      string
	db            *db.DB
	watcher       *fsnotify.Watcher
	eventChan     chan Event
	stopChan      chan struct{}
	debounceTimer *time.Timer
}

// defaultRegistryPath returns the default registry file path.
func defaultRegistryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "ecoq", "registry.json")
}

// New creates a registry service, loads the file, seeds the store and
// starts watching for edits.
func New(filePath string, database *db.DB) (*Service, error) {
	if filePath == "" {
		filePath = defaultRegistryPath()
	}

	s := &Service{
		filePath:  filePath,
		db:        database,
		eventChan: make(chan Event, 100),
		stopChan:  make(chan struct{}),
	}

	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create registry directory: %w", err)
	}

	if err := s.load(); err != nil {
		// A missing file starts as an empty registry.
		if os.IsNotExist(err) {
			if err := s.save(); err != nil {
				return nil, fmt.Errorf("failed to create registry file: %w", err)
			}
		} else {
			return nil, fmt.Errorf("failed to load registry: %w", err)
		}
	}

	if err := s.seed(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to seed registry into store: %w", err)
	}

	if err := s.startWatcher(); err != nil {
		return nil, fmt.Errorf("failed to start file watcher: %w", err)
	}

	s.sendEvent(Event{Type: EventLoaded})
	return s, nil
}

// Events returns the event channel for subscribing to registry changes.
func (s *Service) Events() <-chan Event {
	return s.eventChan
}

// Meters returns a copy of all registered meters.
func (s *Service) Meters() []models.Meter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	meters := make([]models.Meter, len(s.meters))
	copy(meters, s.meters)
	return meters
}

// Devices returns a copy of all registered devices.
func (s *Service) Devices() []models.Device {
	s.mu.RLock()
	defer s.mu.RUnlock()
	devices := make([]models.Device, len(s.devices))
	copy(devices, s.devices)
	return devices
}

// Meter returns the registered meter with the given ID, or nil.
func (s *Service) Meter(id string) *models.Meter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.meters {
		if s.meters[i].ID == id {
			m := s.meters[i]
			return &m
		}
	}
	return nil
}

// DevicesFor returns the registered devices attached to a meter.
func (s *Service) DevicesFor(meterID string) []models.Device {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var devices []models.Device
	for i := range s.devices {
		if s.devices[i].MeterID == meterID {
			devices = append(devices, s.devices[i])
		}
	}
	return devices
}

// Count returns the number of registered meters.
func (s *Service) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.meters)
}

func (s *Service) load() error {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return err
	}

	var file File
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse registry file: %w", err)
	}

	for i := range file.Meters {
		if file.Meters[i].ID == "" {
			return fmt.Errorf("registry meter %d has no ID", i)
		}
	}
	for i := range file.Devices {
		if file.Devices[i].ID == "" || file.Devices[i].MeterID == "" {
			return fmt.Errorf("registry device %d needs an ID and a meter", i)
		}
	}

	s.mu.Lock()
	s.meters = file.Meters
	s.devices = file.Devices
	s.mu.Unlock()
	return nil
}

func (s *Service) save() error {
	s.mu.RLock()
	file := File{Meters: s.meters, Devices: s.devices, Version: 1}
	s.mu.RUnlock()

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.filePath, data, 0600)
}

// seed upserts the registry entries into the store. Statistics already
// accumulated for a meter or device are preserved by the upsert.
func (s *Service) seed(ctx context.Context) error {
	s.mu.RLock()
	meters := make([]models.Meter, len(s.meters))
	copy(meters, s.meters)
	devices := make([]models.Device, len(s.devices))
	copy(devices, s.devices)
	s.mu.RUnlock()

	for i := range meters {
		if err := s.db.UpsertMeter(ctx, &meters[i]); err != nil {
			return err
		}
	}
	for i := range devices {
		if err := s.db.UpsertDevice(ctx, &devices[i]); err != nil {
			return err
		}
	}
	return nil
}

// startWatcher starts the file system watcher.
func (s *Service) startWatcher() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	s.watcher = watcher

	// Watch the directory (to catch file creation/deletion)
	dir := filepath.Dir(s.filePath)
	if err := watcher.Add(dir); err != nil {
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

			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				if s.debounceTimer != nil {
					s.debounceTimer.Stop()
				}
				s.debounceTimer = time.AfterFunc(debounceInterval, func() {
					s.handleFileChange()
				})
			}

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

func (s *Service) handleFileChange() {
	if err := s.load(); err != nil {
		logger.Error("failed to reload registry", "error", err)
		s.sendEvent(Event{Type: EventError, Error: err})
		return
	}
	if err := s.seed(context.Background()); err != nil {
		logger.Error("failed to reseed registry", "error", err)
		s.sendEvent(Event{Type: EventError, Error: err})
		return
	}

	logger.Info("registry reloaded", "meters", s.Count())
	s.sendEvent(Event{Type: EventChanged})
}

func (s *Service) sendEvent(event Event) {
	select {
	case s.eventChan <- event:
	default:
		// Drop events when no one is draining the channel.
	}
}

// Close stops the watcher and releases resources.
func (s *Service) Close() error {
	close(s.stopChan)
	if s.debounceTimer != nil {
		s.debounceTimer.Stop()
	}
	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}
