package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event type constants for harvest events.
const (
	EventTypeHarvestStarted   = "harvest.started"
	EventTypeHarvestCompleted = "harvest.completed"
	EventTypeHarvestCancelled = "harvest.cancelled"
)

// Event is a message describing a harvesting run, published to the event bus.
type Event struct {
	EventID      string    `json:"event_id"`
	EventVersion int       `json:"event_version"`
	EventType    string    `json:"event_type"`
	RunID        string    `json:"run_id"`
	Payload      []byte    `json:"payload"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewEvent creates a new event with the given parameters.
// The payload is JSON-serialized automatically.
func NewEvent(eventType, runID string, payload interface{}) (*Event, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &Event{
		EventID:      uuid.New().String(),
		EventVersion: 1,
		EventType:    eventType,
		RunID:        runID,
		Payload:      payloadBytes,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// HarvestStartedPayload is the payload for harvest.started events.
type HarvestStartedPayload struct {
	RunID string `json:"run_id"`
	Query Query  `json:"query"`
}

// HarvestCompletedPayload is the payload for harvest.completed and harvest.cancelled events.
type HarvestCompletedPayload struct {
	RunID            string              `json:"run_id"`
	Query            Query               `json:"query"`
	CanonicalRecords int                 `json:"canonical_records"`
	PerSourceCounts  map[SourceID]int    `json:"per_source_counts"`
	PerSourceErrors  map[SourceID]string `json:"per_source_errors,omitempty"`
	Cancelled        bool                `json:"cancelled"`
	Duration         time.Duration       `json:"duration_ns"`
}
