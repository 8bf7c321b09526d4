package domain

import "time"

// EventStatus represents the lifecycle status of an event.
type EventStatus string

const (
	EventStatusActive EventStatus = "ACTIVE"
	EventStatusStale  EventStatus = "STALE"
)

// Event is a scheduled occasion rydz are organized around.
type Event struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Location    string      `json:"location"`
	StartTime   time.Time   `json:"startTime"`
	EndTime     time.Time   `json:"endTime"`
	OrganizerID string      `json:"organizerId"`
	Status      EventStatus `json:"status"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// Validate checks required fields after decoding a stored event document.
func (e *Event) Validate() error {
	if e.ID == "" {
		return errMissing("event", "id")
	}
	if e.StartTime.IsZero() {
		return errMissing("event", "startTime")
	}
	return nil
}
