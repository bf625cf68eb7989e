package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"biolink-storefront-api/internal/models"
)

// EventQueue is the append-only domain event log with file persistence.
// Consumers poll by offset; long polling is supported through WaitForEvents.
type EventQueue struct {
	mu           sync.RWMutex
	events       []models.Event
	nextOffset   int64
	filePath     string
	maxEvents    int
	logger       *slog.Logger
	waiters      map[int64][]chan struct{}
	waitersMutex sync.Mutex
}

// EventQueueConfig holds configuration for the event queue
type EventQueueConfig struct {
	FilePath  string
	MaxEvents int
	Logger    *slog.Logger
}

// NewEventQueue creates a new event queue, loading persisted events if any
func NewEventQueue(config EventQueueConfig) (*EventQueue, error) {
	eq := &EventQueue{
		events:    make([]models.Event, 0),
		filePath:  config.FilePath,
		maxEvents: config.MaxEvents,
		logger:    config.Logger,
		waiters:   make(map[int64][]chan struct{}),
	}

	if err := os.MkdirAll(filepath.Dir(config.FilePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create events directory: %w", err)
	}

	if err := eq.loadFromFile(); err != nil {
		eq.logger.Warn("Failed to load events from file, starting fresh", "error", err)
		eq.nextOffset = 0
	}

	eq.logger.Info("Event queue initialized",
		"file_path", config.FilePath,
		"max_events", config.MaxEvents,
		"loaded_events", len(eq.events),
		"next_offset", eq.nextOffset)

	return eq, nil
}

// Publish appends a new domain event and notifies long-polling waiters
func (eq *EventQueue) Publish(eventType, entityID string, data map[string]any) {
	eq.mu.Lock()

	event := models.Event{
		Offset:    eq.nextOffset,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		EventType: eventType,
		EntityID:  entityID,
		Data:      data,
	}
	eq.nextOffset++
	eq.events = append(eq.events, event)

	// Rotate if necessary, keeping the most recent 75%
	if len(eq.events) > eq.maxEvents {
		keepCount := eq.maxEvents * 3 / 4
		removed := len(eq.events) - keepCount
		eq.events = eq.events[removed:]
		eq.logger.Info("Event queue rotated",
			"removed_events", removed,
			"remaining_events", len(eq.events))
	}

	eq.mu.Unlock()

	if err := eq.saveToFile(); err != nil {
		eq.logger.Error("Failed to save events to file", "error", err, "offset", event.Offset)
	}

	eq.notifyWaiters(event.Offset)

	eq.logger.Debug("Event published",
		"offset", event.Offset,
		"event_type", eventType,
		"entity_id", entityID)
}

// GetEvents retrieves events starting from the given offset
func (eq *EventQueue) GetEvents(fromOffset int64, limit int) ([]models.Event, int64, bool) {
	eq.mu.RLock()
	defer eq.mu.RUnlock()

	var result []models.Event
	hasMore := false

	startIdx := -1
	for i, event := range eq.events {
		if event.Offset >= fromOffset {
			startIdx = i
			break
		}
	}
	if startIdx == -1 {
		return result, eq.nextOffset, false
	}

	endIdx := startIdx + limit
	if endIdx > len(eq.events) {
		endIdx = len(eq.events)
	} else {
		hasMore = true
	}

	result = make([]models.Event, endIdx-startIdx)
	copy(result, eq.events[startIdx:endIdx])

	nextOffset := eq.nextOffset
	if len(result) > 0 {
		nextOffset = result[len(result)-1].Offset + 1
	}

	return result, nextOffset, hasMore
}

// WaitForEvents returns a channel closed when events at or after fromOffset
// become available, or when the timeout elapses.
func (eq *EventQueue) WaitForEvents(fromOffset int64, timeout time.Duration) <-chan struct{} {
	eq.waitersMutex.Lock()
	defer eq.waitersMutex.Unlock()

	notifyChan := make(chan struct{})

	eq.mu.RLock()
	hasEvents := eq.nextOffset > fromOffset && len(eq.events) > 0 &&
		eq.events[len(eq.events)-1].Offset >= fromOffset
	eq.mu.RUnlock()

	if hasEvents {
		close(notifyChan)
		return notifyChan
	}

	eq.waiters[fromOffset] = append(eq.waiters[fromOffset], notifyChan)

	go func() {
		time.Sleep(timeout)
		eq.waitersMutex.Lock()
		defer eq.waitersMutex.Unlock()
		select {
		case <-notifyChan:
		default:
			close(notifyChan)
		}
	}()

	return notifyChan
}

// CurrentOffset returns the next offset to be assigned
func (eq *EventQueue) CurrentOffset() int64 {
	eq.mu.RLock()
	defer eq.mu.RUnlock()
	return eq.nextOffset
}

// Close persists the queue a final time
func (eq *EventQueue) Close() error {
	eq.logger.Info("Shutting down event queue")
	return eq.saveToFile()
}

// notifyWaiters wakes waiters whose offset has been reached
func (eq *EventQueue) notifyWaiters(offset int64) {
	eq.waitersMutex.Lock()
	defer eq.waitersMutex.Unlock()

	for waitOffset, waiters := range eq.waiters {
		if waitOffset <= offset {
			for _, waiter := range waiters {
				select {
				case <-waiter:
				default:
					close(waiter)
				}
			}
			delete(eq.waiters, waitOffset)
		}
	}
}

// persistedEvents is the on-disk shape of the queue
type persistedEvents struct {
	Events     []models.Event `json:"events"`
	NextOffset int64          `json:"nextOffset"`
}

func (eq *EventQueue) loadFromFile() error {
	data, err := os.ReadFile(eq.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read events file: %w", err)
	}

	var fileData persistedEvents
	if err := json.Unmarshal(data, &fileData); err != nil {
		return fmt.Errorf("failed to unmarshal events: %w", err)
	}

	eq.events = fileData.Events
	eq.nextOffset = fileData.NextOffset

	return nil
}

func (eq *EventQueue) saveToFile() error {
	eq.mu.RLock()
	fileData := persistedEvents{
		Events:     eq.events,
		NextOffset: eq.nextOffset,
	}
	data, err := json.MarshalIndent(fileData, "", "  ")
	eq.mu.RUnlock()

	if err != nil {
		return fmt.Errorf("failed to marshal events: %w", err)
	}

	tempFile := eq.filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp events file: %w", err)
	}

	if err := os.Rename(tempFile, eq.filePath); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temp events file: %w", err)
	}

	return nil
}
