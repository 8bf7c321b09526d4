package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"rydz/internal/domain"
	"rydz/internal/repository"
	"rydz/internal/store"
)

// Policy holds configurable state-machine behavior.
type Policy struct {
	// DriverOfferNeedsParentApproval controls whether a driver-initiated
	// seat offer to an unapproved student still routes through parental
	// approval. Defaults to true (the safe reading).
	DriverOfferNeedsParentApproval bool
}

// DefaultPolicy returns the default state-machine policy.
func DefaultPolicy() Policy {
	return Policy{DriverOfferNeedsParentApproval: true}
}

// RydService owns the authoritative status transitions of a ryd and its
// passenger manifest. Every mutation is one optimistic transaction: the
// aggregate is re-read and re-validated inside the transaction, never
// trusted from an earlier fetch.
type RydService struct {
	rydz     repository.RydRepository
	profiles repository.ProfileRepository
	events   repository.EventRepository
	notifier *NotificationService
	policy   Policy
}

// NewRydService creates a new RydService.
func NewRydService(
	rydz repository.RydRepository,
	profiles repository.ProfileRepository,
	events repository.EventRepository,
	notifier *NotificationService,
	policy Policy,
) *RydService {
	return &RydService{
		rydz:     rydz,
		profiles: profiles,
		events:   events,
		notifier: notifier,
		policy:   policy,
	}
}

// ProposeRydRequest contains the parameters for proposing a ryd.
type ProposeRydRequest struct {
	DriverID              string
	EventID               string // either EventID or Destination
	Destination           string
	ProposedDepartureTime time.Time
	PlannedArrivalTime    time.Time
	SeatsTotal            int
}

// ProposeRyd creates a new ryd in PLANNING owned by the calling driver.
func (s *RydService) ProposeRyd(ctx context.Context, req ProposeRydRequest) (*domain.ActiveRyd, error) {
	if req.DriverID == "" {
		return nil, E(KindValidation, "driver id is required")
	}
	if req.SeatsTotal < 1 {
		return nil, E(KindValidation, "seatsTotal must be at least 1, got %d", req.SeatsTotal)
	}
	if req.PlannedArrivalTime.Before(req.ProposedDepartureTime) {
		return nil, E(KindValidation, "planned arrival precedes proposed departure")
	}
	if req.EventID == "" && strings.TrimSpace(req.Destination) == "" {
		return nil, E(KindValidation, "either an event or a destination is required")
	}

	driver, err := s.profiles.GetByID(ctx, req.DriverID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, E(KindNotFound, "driver %s not found", req.DriverID)
		}
		return nil, wrap(err, "load driver profile")
	}
	if !driver.CanDrive {
		return nil, E(KindValidation, "user %s is not registered to drive", req.DriverID)
	}

	if req.EventID != "" {
		if _, err := s.events.GetByID(ctx, req.EventID); err != nil {
			if err == store.ErrNotFound {
				return nil, E(KindNotFound, "event %s not found", req.EventID)
			}
			return nil, wrap(err, "load event")
		}
	}

	now := time.Now().UTC()
	ryd := &domain.ActiveRyd{
		ID:                    uuid.New().String(),
		DriverID:              req.DriverID,
		EventID:               req.EventID,
		Destination:           req.Destination,
		Status:                domain.RydStatusPlanning,
		ProposedDepartureTime: req.ProposedDepartureTime,
		PlannedArrivalTime:    req.PlannedArrivalTime,
		SeatsTotal:            req.SeatsTotal,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	if err := s.rydz.Create(ctx, ryd); err != nil {
		return nil, wrap(err, "create ryd")
	}
	return ryd, nil
}

// RequestSeatRequest contains the parameters for requesting a seat.
// RequesterID may differ from PassengerID when a parent requests on behalf of
// a managed student, or when the driver offers a seat directly.
type RequestSeatRequest struct {
	RydID       string
	RequesterID string
	PassengerID string
}

// RequestSeat appends a manifest entry for the passenger. The entry starts in
// PENDING_DRIVER_APPROVAL, or PENDING_PARENTAL_APPROVAL when the passenger is
// a student whose parents have not pre-approved this driver.
func (s *RydService) RequestSeat(ctx context.Context, req RequestSeatRequest) (*domain.ActiveRyd, error) {
	if req.RydID == "" || req.RequesterID == "" || req.PassengerID == "" {
		return nil, E(KindValidation, "ryd id, requester id and passenger id are required")
	}

	passenger, err := s.profiles.GetByID(ctx, req.PassengerID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, E(KindNotFound, "passenger %s not found", req.PassengerID)
		}
		return nil, wrap(err, "load passenger profile")
	}

	var requester *domain.UserProfile
	if req.RequesterID == req.PassengerID {
		requester = passenger
	} else {
		requester, err = s.profiles.GetByID(ctx, req.RequesterID)
		if err != nil {
			if err == store.ErrNotFound {
				return nil, E(KindNotFound, "requester %s not found", req.RequesterID)
			}
			return nil, wrap(err, "load requester profile")
		}
	}

	var ryd *domain.ActiveRyd
	err = withRetry(ctx, func() error {
		ryd, err = s.rydz.Mutate(ctx, req.RydID, func(r *domain.ActiveRyd) error {
			if err := s.authorizeSeatRequest(r, requester, passenger); err != nil {
				return err
			}
			if !r.Status.AcceptsPassengers() {
				return E(KindInvalidState, "ryd %s is %s and no longer accepts passengers", r.ID, r.Status)
			}
			if r.ManifestEntryFor(req.PassengerID) != nil {
				return E(KindDuplicateEntry, "passenger %s already has a seat on ryd %s", req.PassengerID, r.ID)
			}
			if r.SeatsOccupied() >= r.SeatsTotal {
				return E(KindCapacityExceeded, "ryd %s has no free seats (%d total)", r.ID, r.SeatsTotal)
			}

			approved, err := s.driverPreApproved(ctx, r.DriverID, passenger)
			if err != nil {
				return err
			}

			now := time.Now().UTC()
			r.PassengerManifest = append(r.PassengerManifest, domain.ManifestEntry{
				UserID:      req.PassengerID,
				RequestedBy: req.RequesterID,
				Status:      s.initialSeatStatus(r.DriverID, req.RequesterID, passenger, approved),
				RequestedAt: now,
				UpdatedAt:   now,
			})
			// The first seat request takes the plan out of drafting.
			if r.Status == domain.RydStatusPlanning {
				r.Status = domain.RydStatusAwaitingPassengers
			}
			r.UpdatedAt = now
			return nil
		})
		return err
	})
	if err != nil {
		return nil, wrap(err, "request seat")
	}

	if s.notifier != nil {
		_ = s.notifier.NotifySeatRequested(ctx, ryd, req.PassengerID)
	}
	return ryd, nil
}

// authorizeSeatRequest checks the requester may put this passenger on this
// ryd: the passenger themself, a parent managing them, or the ryd's driver
// offering a seat.
func (s *RydService) authorizeSeatRequest(r *domain.ActiveRyd, requester, passenger *domain.UserProfile) error {
	switch {
	case requester.ID == passenger.ID:
		return nil
	case requester.ManagesStudent(passenger.ID):
		return nil
	case requester.ID == r.DriverID:
		return nil
	}
	return E(KindAuthorization, "user %s may not request a seat for %s", requester.ID, passenger.ID)
}

// driverPreApproved reports whether any of the passenger's parents has
// pre-approved the driver for them. Non-students never need approval.
func (s *RydService) driverPreApproved(ctx context.Context, driverID string, passenger *domain.UserProfile) (bool, error) {
	if passenger.Role != domain.RoleStudent {
		return true, nil
	}
	parents, err := s.profiles.GetMany(ctx, passenger.AssociatedParentIDs)
	if err != nil {
		return false, wrap(err, "load parent profiles")
	}
	for _, parent := range parents {
		if parent.DriverApprovedFor(driverID, passenger.ID) {
			return true, nil
		}
	}
	return false, nil
}

// initialSeatStatus picks the entry's starting status. A driver-initiated
// offer skips driver approval; whether it may also skip parental approval is
// policy.
func (s *RydService) initialSeatStatus(driverID, requesterID string, passenger *domain.UserProfile, preApproved bool) domain.PassengerStatus {
	needsParent := !preApproved
	if requesterID == driverID {
		if needsParent && s.policy.DriverOfferNeedsParentApproval {
			return domain.PassengerStatusPendingParent
		}
		return domain.PassengerStatusConfirmed
	}
	if needsParent {
		return domain.PassengerStatusPendingParent
	}
	return domain.PassengerStatusPendingDriver
}

// SeatDecision is a driver's response to a pending seat request.
type SeatDecision string

const (
	SeatApprove SeatDecision = "APPROVE"
	SeatReject  SeatDecision = "REJECT"
)

// RespondToSeatRequest lets the ryd's driver approve or reject a pending
// seat request.
func (s *RydService) RespondToSeatRequest(ctx context.Context, rydID, driverID, passengerID string, decision SeatDecision) (*domain.ActiveRyd, error) {
	if decision != SeatApprove && decision != SeatReject {
		return nil, E(KindValidation, "unknown seat decision %q", decision)
	}

	var ryd *domain.ActiveRyd
	err := withRetry(ctx, func() error {
		var err error
		ryd, err = s.rydz.Mutate(ctx, rydID, func(r *domain.ActiveRyd) error {
			if r.DriverID != driverID {
				return E(KindAuthorization, "user %s is not the driver of ryd %s", driverID, r.ID)
			}
			if !r.Status.AcceptsPassengers() {
				return E(KindInvalidState, "ryd %s is %s; seat requests can no longer be decided", r.ID, r.Status)
			}
			entry := r.ManifestEntryFor(passengerID)
			if entry == nil {
				return E(KindNotFound, "passenger %s has no seat request on ryd %s", passengerID, r.ID)
			}
			if entry.Status != domain.PassengerStatusPendingDriver {
				return E(KindInvalidState, "seat request for %s is %s, not pending driver approval", passengerID, entry.Status)
			}

			now := time.Now().UTC()
			if decision == SeatApprove {
				entry.Status = domain.PassengerStatusConfirmed
			} else {
				entry.Status = domain.PassengerStatusRejected
			}
			entry.UpdatedAt = now
			r.UpdatedAt = now
			return nil
		})
		return err
	})
	if err != nil {
		return nil, wrap(err, "respond to seat request")
	}

	if s.notifier != nil {
		_ = s.notifier.NotifySeatDecision(ctx, ryd, passengerID, decision == SeatApprove)
	}
	return ryd, nil
}

// RespondToParentalApproval lets a parent managing the student resolve a
// PENDING_PARENTAL_APPROVAL entry: approval forwards it to the driver's
// queue, refusal withdraws it.
func (s *RydService) RespondToParentalApproval(ctx context.Context, rydID, parentID, passengerID string, approve bool) (*domain.ActiveRyd, error) {
	parent, err := s.profiles.GetByID(ctx, parentID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, E(KindNotFound, "parent %s not found", parentID)
		}
		return nil, wrap(err, "load parent profile")
	}
	if !parent.ManagesStudent(passengerID) {
		return nil, E(KindAuthorization, "user %s does not manage student %s", parentID, passengerID)
	}

	var ryd *domain.ActiveRyd
	err = withRetry(ctx, func() error {
		var err error
		ryd, err = s.rydz.Mutate(ctx, rydID, func(r *domain.ActiveRyd) error {
			if !r.Status.AcceptsPassengers() {
				return E(KindInvalidState, "ryd %s is %s; parental approval can no longer be decided", r.ID, r.Status)
			}
			entry := r.ManifestEntryFor(passengerID)
			if entry == nil {
				return E(KindNotFound, "passenger %s has no seat request on ryd %s", passengerID, r.ID)
			}
			if entry.Status != domain.PassengerStatusPendingParent {
				return E(KindInvalidState, "seat request for %s is %s, not pending parental approval", passengerID, entry.Status)
			}

			now := time.Now().UTC()
			if approve {
				entry.Status = domain.PassengerStatusPendingDriver
			} else {
				entry.Status = domain.PassengerStatusCancelledByUser
			}
			entry.UpdatedAt = now
			r.UpdatedAt = now
			return nil
		})
		return err
	})
	if err != nil {
		return nil, wrap(err, "respond to parental approval")
	}
	return ryd, nil
}

// ConfirmRydPlan freezes the plan: only the driver may confirm, and only
// from PLANNING or AWAITING_PASSENGERS. The read-check-write runs inside a
// single transaction so a concurrent seat request can neither be dropped nor
// double-book a seat.
func (s *RydService) ConfirmRydPlan(ctx context.Context, rydID, driverID string) (*domain.ActiveRyd, error) {
	var ryd *domain.ActiveRyd
	err := withRetry(ctx, func() error {
		var err error
		ryd, err = s.rydz.Mutate(ctx, rydID, func(r *domain.ActiveRyd) error {
			if r.DriverID != driverID {
				return E(KindAuthorization, "user %s is not the driver of ryd %s", driverID, r.ID)
			}
			if !r.Status.AcceptsPassengers() {
				return E(KindInvalidState, "ryd %s cannot be confirmed from status %s", r.ID, r.Status)
			}
			r.Status = domain.RydStatusPlanned
			r.UpdatedAt = time.Now().UTC()
			return nil
		})
		return err
	})
	if err != nil {
		return nil, wrap(err, "confirm ryd plan")
	}

	if s.notifier != nil {
		_ = s.notifier.NotifyRydConfirmed(ctx, ryd)
	}
	return ryd, nil
}

// AdvanceRydProgress moves a confirmed ryd one step along
// IN_PROGRESS_PICKUP -> IN_PROGRESS_ROUTE -> COMPLETED. Any non-adjacent
// jump, regression, or cancellation target is rejected.
func (s *RydService) AdvanceRydProgress(ctx context.Context, rydID, driverID string, next domain.RydStatus) (*domain.ActiveRyd, error) {
	switch next {
	case domain.RydStatusInProgressPickup, domain.RydStatusInProgressRoute, domain.RydStatusCompleted:
	default:
		return nil, E(KindValidation, "%s is not a progress status", next)
	}

	var ryd *domain.ActiveRyd
	err := withRetry(ctx, func() error {
		var err error
		ryd, err = s.rydz.Mutate(ctx, rydID, func(r *domain.ActiveRyd) error {
			if r.DriverID != driverID {
				return E(KindAuthorization, "user %s is not the driver of ryd %s", driverID, r.ID)
			}
			if !progressEdge(r.Status, next) {
				return E(KindInvalidState, "ryd %s cannot advance from %s to %s", r.ID, r.Status, next)
			}
			r.Status = next
			r.UpdatedAt = time.Now().UTC()
			return nil
		})
		return err
	})
	if err != nil {
		return nil, wrap(err, "advance ryd progress")
	}
	return ryd, nil
}

// progressEdge reports whether next is the immediate forward neighbor of
// current, per the central transition table (cancellations excluded).
func progressEdge(current, next domain.RydStatus) bool {
	if next == domain.RydStatusCancelledByDriver || next == domain.RydStatusCancelledBySystem {
		return false
	}
	return current.CanTransitionTo(next)
}

// CancelRyd cancels a ryd on behalf of its driver from any non-terminal
// state. System cancellation is the sweeper's job, not callable here.
func (s *RydService) CancelRyd(ctx context.Context, rydID, actorID, reason string) (*domain.ActiveRyd, error) {
	var ryd *domain.ActiveRyd
	err := withRetry(ctx, func() error {
		var err error
		ryd, err = s.rydz.Mutate(ctx, rydID, func(r *domain.ActiveRyd) error {
			if r.DriverID != actorID {
				return E(KindAuthorization, "user %s is not the driver of ryd %s", actorID, r.ID)
			}
			if r.Status.IsTerminal() {
				return E(KindInvalidState, "ryd %s is already %s", r.ID, r.Status)
			}
			r.Status = domain.RydStatusCancelledByDriver
			r.CancelReason = reason
			r.UpdatedAt = time.Now().UTC()
			return nil
		})
		return err
	})
	if err != nil {
		return nil, wrap(err, "cancel ryd")
	}

	if s.notifier != nil {
		_ = s.notifier.NotifyRydCancelled(ctx, ryd, reason)
	}
	return ryd, nil
}

// UpdatePassengerProgress records a pickup-execution status for one
// passenger while the ryd is being driven.
func (s *RydService) UpdatePassengerProgress(ctx context.Context, rydID, driverID, passengerID string, status domain.PassengerStatus) (*domain.ActiveRyd, error) {
	if !domain.ValidPickupStatus(status) {
		return nil, E(KindValidation, "%s is not a pickup status", status)
	}

	var ryd *domain.ActiveRyd
	err := withRetry(ctx, func() error {
		var err error
		ryd, err = s.rydz.Mutate(ctx, rydID, func(r *domain.ActiveRyd) error {
			if r.DriverID != driverID {
				return E(KindAuthorization, "user %s is not the driver of ryd %s", driverID, r.ID)
			}
			if !r.Status.InProgress() {
				return E(KindInvalidState, "ryd %s is %s; passenger progress applies only in progress", r.ID, r.Status)
			}
			entry := r.ManifestEntryFor(passengerID)
			if entry == nil {
				return E(KindNotFound, "passenger %s is not on ryd %s", passengerID, r.ID)
			}
			if !entry.Occupies() || entry.Status == domain.PassengerStatusPendingDriver || entry.Status == domain.PassengerStatusPendingParent {
				return E(KindInvalidState, "passenger %s is %s and cannot be picked up", passengerID, entry.Status)
			}

			now := time.Now().UTC()
			entry.Status = status
			entry.UpdatedAt = now
			r.UpdatedAt = now
			return nil
		})
		return err
	})
	if err != nil {
		return nil, wrap(err, "update passenger progress")
	}

	if s.notifier != nil {
		_ = s.notifier.NotifyPassengerProgress(ctx, ryd, passengerID, status)
	}
	return ryd, nil
}

// PostMessage appends a chat message to the ryd. Only participants (driver
// or seat holders) may post.
func (s *RydService) PostMessage(ctx context.Context, rydID, senderID, text string) (*domain.ActiveRyd, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, E(KindValidation, "message text is empty")
	}

	var ryd *domain.ActiveRyd
	err := withRetry(ctx, func() error {
		var err error
		ryd, err = s.rydz.Mutate(ctx, rydID, func(r *domain.ActiveRyd) error {
			if !r.IsParticipant(senderID) {
				return E(KindAuthorization, "user %s is not a participant of ryd %s", senderID, r.ID)
			}
			now := time.Now().UTC()
			r.Messages = append(r.Messages, domain.Message{
				ID:       uuid.New().String(),
				SenderID: senderID,
				Text:     text,
				SentAt:   now,
			})
			r.UpdatedAt = now
			return nil
		})
		return err
	})
	if err != nil {
		return nil, wrap(err, "post message")
	}
	return ryd, nil
}

// GetRyd retrieves a ryd, restricted to its participants and the parents of
// seated students.
func (s *RydService) GetRyd(ctx context.Context, rydID, callerID string) (*domain.ActiveRyd, error) {
	ryd, err := s.rydz.GetByID(ctx, rydID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, E(KindNotFound, "ryd %s not found", rydID)
		}
		return nil, wrap(err, "load ryd")
	}
	if ryd.IsParticipant(callerID) {
		return ryd, nil
	}
	caller, err := s.profiles.GetByID(ctx, callerID)
	if err == nil {
		for _, studentID := range caller.ManagedStudentIDs {
			if entry := ryd.ManifestEntryFor(studentID); entry != nil && entry.Occupies() {
				return ryd, nil
			}
		}
	}
	return nil, E(KindAuthorization, "user %s may not view ryd %s", callerID, rydID)
}
