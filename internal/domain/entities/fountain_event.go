package entities

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// FountainEventType represents the type of fountain event
type FountainEventType string

const (
	FountainEventCreated       FountainEventType = "fountain_created"
	FountainEventUpdated       FountainEventType = "fountain_updated"
	FountainEventRatingUpdated FountainEventType = "rating_updated"
	FountainEventReportCreated FountainEventType = "report_created"
	FountainEventReportClosed  FountainEventType = "report_closed"
)

// FountainEvent is a change notification for one fountain
type FountainEvent struct {
	ID            string                 `json:"id"`
	FountainID    int64                  `json:"fountain_id"`
	EventType     FountainEventType      `json:"event_type"`
	Timestamp     time.Time              `json:"timestamp"`
	Latitude      float64                `json:"latitude"`
	Longitude     float64                `json:"longitude"`
	ChangedFields map[string]interface{} `json:"changed_fields,omitempty"`
}

// NewFountainEvent creates a new fountain event
func NewFountainEvent(f *Fountain, eventType FountainEventType, changedFields map[string]interface{}) *FountainEvent {
	return &FountainEvent{
		ID:            uuid.NewString(),
		FountainID:    f.ID,
		EventType:     eventType,
		Timestamp:     time.Now().UTC(),
		Latitude:      f.Latitude,
		Longitude:     f.Longitude,
		ChangedFields: changedFields,
	}
}

// FountainKey renders a fountain id for cache keys and channel names
func FountainKey(id int64) string {
	return strconv.FormatInt(id, 10)
}
