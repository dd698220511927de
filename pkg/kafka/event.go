package kafka

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event is the envelope of every message the seeder publishes. Data holds
// the payload for EventType.
type Event struct {
	EventID   string            `json:"event_id"`
	EventType string            `json:"event_type"`
	Version   int               `json:"version"`
	Timestamp time.Time         `json:"timestamp"`
	Source    string            `json:"source"`
	RunID     string            `json:"run_id,omitempty"`
	Stage     string            `json:"stage,omitempty"`
	DryRun    bool              `json:"dry_run"`
	Data      json.RawMessage   `json:"data"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// NewEvent creates an event with a generated ID and the current time.
func NewEvent(eventType, source string, data any) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Version:   1,
		Timestamp: time.Now().UTC(),
		Source:    source,
		Data:      dataBytes,
	}, nil
}

// WithRunID sets the seeding run the event belongs to.
func (e *Event) WithRunID(id string) *Event {
	e.RunID = id
	return e
}

// WithStage sets the seeding stage the event reports on.
func (e *Event) WithStage(stage string) *Event {
	e.Stage = stage
	return e
}

// WithDryRun marks events of runs that never touched the database.
func (e *Event) WithDryRun(dryRun bool) *Event {
	e.DryRun = dryRun
	return e
}

// WithMetadata adds a key-value pair to the event metadata.
func (e *Event) WithMetadata(key, value string) *Event {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// Key is the message key: the run ID, so one run's events stay ordered on
// a single partition, or the stage for events outside a run.
func (e *Event) Key() []byte {
	if e.RunID != "" {
		return []byte(e.RunID)
	}
	return []byte(e.Stage)
}

// Marshal serializes the event to JSON bytes.
func (e *Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}
