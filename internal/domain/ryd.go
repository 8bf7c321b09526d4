package domain

import "time"

// RydStatus represents the lifecycle status of an active ryd.
type RydStatus string

const (
	RydStatusPlanning           RydStatus = "PLANNING"
	RydStatusAwaitingPassengers RydStatus = "AWAITING_PASSENGERS"
	RydStatusPlanned            RydStatus = "RYD_PLANNED"
	RydStatusInProgressPickup   RydStatus = "IN_PROGRESS_PICKUP"
	RydStatusInProgressRoute    RydStatus = "IN_PROGRESS_ROUTE"
	RydStatusCompleted          RydStatus = "COMPLETED"
	RydStatusCancelledByDriver  RydStatus = "CANCELLED_BY_DRIVER"
	RydStatusCancelledBySystem  RydStatus = "CANCELLED_BY_SYSTEM"
)

// rydTransitions is the single source of truth for legal status edges.
// Cancellation edges are handled by CanCancelFrom rather than listed per row.
var rydTransitions = map[RydStatus][]RydStatus{
	RydStatusPlanning:           {RydStatusAwaitingPassengers, RydStatusPlanned},
	RydStatusAwaitingPassengers: {RydStatusPlanned},
	RydStatusPlanned:            {RydStatusInProgressPickup},
	RydStatusInProgressPickup:   {RydStatusInProgressRoute},
	RydStatusInProgressRoute:    {RydStatusCompleted},
	RydStatusCompleted:          {},
	RydStatusCancelledByDriver:  {},
	RydStatusCancelledBySystem:  {},
}

// CanTransitionTo reports whether next is a legal successor of s.
func (s RydStatus) CanTransitionTo(next RydStatus) bool {
	if s.IsTerminal() {
		return false
	}
	if next == RydStatusCancelledByDriver || next == RydStatusCancelledBySystem {
		return true
	}
	for _, allowed := range rydTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether s is a terminal status.
func (s RydStatus) IsTerminal() bool {
	switch s {
	case RydStatusCompleted, RydStatusCancelledByDriver, RydStatusCancelledBySystem:
		return true
	}
	return false
}

// AcceptsPassengers reports whether manifest entries may be added while in s.
func (s RydStatus) AcceptsPassengers() bool {
	return s == RydStatusPlanning || s == RydStatusAwaitingPassengers
}

// InProgress reports whether the ryd is being executed (pickup or en route).
func (s RydStatus) InProgress() bool {
	return s == RydStatusInProgressPickup || s == RydStatusInProgressRoute
}

// ValidRydStatus reports whether s is a known status.
func ValidRydStatus(s RydStatus) bool {
	_, ok := rydTransitions[s]
	return ok
}

// PassengerStatus represents the status of a single manifest entry.
type PassengerStatus string

const (
	PassengerStatusPendingDriver   PassengerStatus = "PENDING_DRIVER_APPROVAL"
	PassengerStatusPendingParent   PassengerStatus = "PENDING_PARENTAL_APPROVAL"
	PassengerStatusConfirmed       PassengerStatus = "CONFIRMED_BY_DRIVER"
	PassengerStatusRejected        PassengerStatus = "REJECTED_BY_DRIVER"
	PassengerStatusCancelledByUser PassengerStatus = "CANCELLED_BY_USER"
	PassengerStatusAwaitingPickup  PassengerStatus = "AWAITING_PICKUP"
	PassengerStatusOnBoard         PassengerStatus = "ON_BOARD"
	PassengerStatusDroppedOff      PassengerStatus = "DROPPED_OFF"
)

// ValidPickupStatus reports whether s is one of the pickup-execution statuses
// a driver may set while the ryd is in progress.
func ValidPickupStatus(s PassengerStatus) bool {
	switch s {
	case PassengerStatusAwaitingPickup, PassengerStatusOnBoard, PassengerStatusDroppedOff:
		return true
	}
	return false
}

// ManifestEntry is one passenger's seat on a ryd. RequestedBy differs from
// UserID when a parent requests on behalf of a managed student.
type ManifestEntry struct {
	UserID      string          `json:"userId"`
	RequestedBy string          `json:"requestedBy"`
	Status      PassengerStatus `json:"status"`
	RequestedAt time.Time       `json:"requestedAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// Occupies reports whether the entry counts against the ryd's seat capacity.
// Rejected and withdrawn entries free their seat.
func (m *ManifestEntry) Occupies() bool {
	return m.Status != PassengerStatusRejected && m.Status != PassengerStatusCancelledByUser
}

// Message is one chat entry on a ryd. The list is append-only.
type Message struct {
	ID       string    `json:"id"`
	SenderID string    `json:"senderId"`
	Text     string    `json:"text"`
	SentAt   time.Time `json:"sentAt"`
}

// ActiveRyd is the core mutable aggregate: one concrete, scheduled ride
// instance. It exclusively owns its manifest entries and messages.
type ActiveRyd struct {
	ID                    string          `json:"id"`
	DriverID              string          `json:"driverId"`
	EventID               string          `json:"eventId,omitempty"`
	Destination           string          `json:"destination,omitempty"`
	Status                RydStatus       `json:"status"`
	ProposedDepartureTime time.Time       `json:"proposedDepartureTime"`
	PlannedArrivalTime    time.Time       `json:"plannedArrivalTime"`
	SeatsTotal            int             `json:"seatsTotal"`
	PassengerManifest     []ManifestEntry `json:"passengerManifest"`
	Messages              []Message       `json:"messages,omitempty"`
	CancelReason          string          `json:"cancelReason,omitempty"`
	CreatedAt             time.Time       `json:"createdAt"`
	UpdatedAt             time.Time       `json:"updatedAt"`
}

// ManifestEntryFor returns the manifest entry for userID, or nil.
func (r *ActiveRyd) ManifestEntryFor(userID string) *ManifestEntry {
	for i := range r.PassengerManifest {
		if r.PassengerManifest[i].UserID == userID {
			return &r.PassengerManifest[i]
		}
	}
	return nil
}

// SeatsOccupied counts manifest entries that hold a seat.
func (r *ActiveRyd) SeatsOccupied() int {
	n := 0
	for i := range r.PassengerManifest {
		if r.PassengerManifest[i].Occupies() {
			n++
		}
	}
	return n
}

// IsParticipant reports whether userID is the driver or holds a seat.
func (r *ActiveRyd) IsParticipant(userID string) bool {
	if r.DriverID == userID {
		return true
	}
	entry := r.ManifestEntryFor(userID)
	return entry != nil && entry.Occupies()
}

// LatestMessage returns the most recent chat entry, or nil.
func (r *ActiveRyd) LatestMessage() *Message {
	if len(r.Messages) == 0 {
		return nil
	}
	return &r.Messages[len(r.Messages)-1]
}

// Validate checks the aggregate's invariants after decoding a stored
// document: known status, positive capacity, manifest within capacity, and
// unique passenger user IDs.
func (r *ActiveRyd) Validate() error {
	if r.ID == "" {
		return errMissing("ryd", "id")
	}
	if !ValidRydStatus(r.Status) {
		return errInvalid("ryd", "status", string(r.Status))
	}
	if r.SeatsTotal < 1 {
		return errInvalid("ryd", "seatsTotal", "< 1")
	}
	if !r.Status.IsTerminal() && r.SeatsOccupied() > r.SeatsTotal {
		return errInvalid("ryd", "passengerManifest", "exceeds seatsTotal")
	}
	seen := make(map[string]bool, len(r.PassengerManifest))
	for i := range r.PassengerManifest {
		id := r.PassengerManifest[i].UserID
		if seen[id] {
			return errInvalid("ryd", "passengerManifest", "duplicate userId "+id)
		}
		seen[id] = true
	}
	return nil
}
