package service

import (
	"context"
	"log"
	"time"

	"rydz/internal/domain"
)

// NotificationType represents the type of notification.
type NotificationType string

const (
	NotificationSeatRequested     NotificationType = "SEAT_REQUESTED"
	NotificationSeatApproved      NotificationType = "SEAT_APPROVED"
	NotificationSeatRejected      NotificationType = "SEAT_REJECTED"
	NotificationRydConfirmed      NotificationType = "RYD_CONFIRMED"
	NotificationRydCancelled      NotificationType = "RYD_CANCELLED"
	NotificationPassengerProgress NotificationType = "PASSENGER_PROGRESS"
)

// Notification represents a notification to be dispatched.
type Notification struct {
	Type        NotificationType
	RecipientID string
	Title       string
	Message     string
	Data        map[string]any
	CreatedAt   time.Time
}

// NotificationService hands notifications to the delivery collaborator.
// Delivery itself (push, SMS, email) is external; this implementation logs.
type NotificationService struct{}

// NewNotificationService creates a new NotificationService.
func NewNotificationService() *NotificationService {
	return &NotificationService{}
}

// NotifySeatRequested tells the driver a seat was requested.
func (s *NotificationService) NotifySeatRequested(ctx context.Context, ryd *domain.ActiveRyd, passengerID string) error {
	s.send(Notification{
		Type:        NotificationSeatRequested,
		RecipientID: ryd.DriverID,
		Title:       "Seat requested",
		Message:     "A passenger requested a seat on your ryd.",
		Data:        map[string]any{"ryd_id": ryd.ID, "passenger_id": passengerID},
		CreatedAt:   time.Now(),
	})
	return nil
}

// NotifySeatDecision tells the passenger how the driver decided.
func (s *NotificationService) NotifySeatDecision(ctx context.Context, ryd *domain.ActiveRyd, passengerID string, approved bool) error {
	typ := NotificationSeatRejected
	msg := "Your seat request was declined."
	if approved {
		typ = NotificationSeatApproved
		msg = "Your seat request was approved."
	}
	s.send(Notification{
		Type:        typ,
		RecipientID: passengerID,
		Title:       "Seat request update",
		Message:     msg,
		Data:        map[string]any{"ryd_id": ryd.ID},
		CreatedAt:   time.Now(),
	})
	return nil
}

// NotifyRydConfirmed tells every seat holder the plan is locked in.
func (s *NotificationService) NotifyRydConfirmed(ctx context.Context, ryd *domain.ActiveRyd) error {
	for i := range ryd.PassengerManifest {
		entry := &ryd.PassengerManifest[i]
		if !entry.Occupies() {
			continue
		}
		s.send(Notification{
			Type:        NotificationRydConfirmed,
			RecipientID: entry.UserID,
			Title:       "Ryd confirmed",
			Message:     "Your ryd has been confirmed by the driver.",
			Data:        map[string]any{"ryd_id": ryd.ID},
			CreatedAt:   time.Now(),
		})
	}
	return nil
}

// NotifyRydCancelled tells every seat holder the ryd is off.
func (s *NotificationService) NotifyRydCancelled(ctx context.Context, ryd *domain.ActiveRyd, reason string) error {
	for i := range ryd.PassengerManifest {
		entry := &ryd.PassengerManifest[i]
		if !entry.Occupies() {
			continue
		}
		s.send(Notification{
			Type:        NotificationRydCancelled,
			RecipientID: entry.UserID,
			Title:       "Ryd cancelled",
			Message:     "Your ryd was cancelled.",
			Data:        map[string]any{"ryd_id": ryd.ID, "reason": reason},
			CreatedAt:   time.Now(),
		})
	}
	return nil
}

// NotifyPassengerProgress tells the passenger (and their requester, if
// different) about a pickup-status change.
func (s *NotificationService) NotifyPassengerProgress(ctx context.Context, ryd *domain.ActiveRyd, passengerID string, status domain.PassengerStatus) error {
	recipients := []string{passengerID}
	if entry := ryd.ManifestEntryFor(passengerID); entry != nil && entry.RequestedBy != passengerID {
		recipients = append(recipients, entry.RequestedBy)
	}
	for _, id := range recipients {
		s.send(Notification{
			Type:        NotificationPassengerProgress,
			RecipientID: id,
			Title:       "Ryd update",
			Message:     "Passenger status changed to " + string(status) + ".",
			Data:        map[string]any{"ryd_id": ryd.ID, "passenger_id": passengerID, "status": string(status)},
			CreatedAt:   time.Now(),
		})
	}
	return nil
}

// send dispatches one notification. Stub: logs instead of delivering.
func (s *NotificationService) send(n Notification) {
	log.Printf("[NOTIFICATION] type=%s recipient=%s message=%q", n.Type, n.RecipientID, n.Message)
}
