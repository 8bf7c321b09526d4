package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"rydz/internal/domain"
	"rydz/internal/repository"
	"rydz/internal/store"
)

// EventService manages the scheduled occasions rydz are organized around.
type EventService struct {
	events   repository.EventRepository
	profiles repository.ProfileRepository
}

// NewEventService creates a new EventService.
func NewEventService(events repository.EventRepository, profiles repository.ProfileRepository) *EventService {
	return &EventService{events: events, profiles: profiles}
}

// CreateEventRequest carries the fields needed to create an event.
type CreateEventRequest struct {
	OrganizerID string
	Name        string
	Location    string
	StartTime   time.Time
	EndTime     time.Time
}

// CreateEvent registers a new active event organized by the caller.
func (s *EventService) CreateEvent(ctx context.Context, req CreateEventRequest) (*domain.Event, error) {
	if req.Name == "" {
		return nil, E(KindValidation, "event name is required")
	}
	if req.StartTime.IsZero() {
		return nil, E(KindValidation, "event start time is required")
	}
	if !req.EndTime.IsZero() && req.EndTime.Before(req.StartTime) {
		return nil, E(KindValidation, "event end time precedes start time")
	}

	if _, err := s.profiles.GetByID(ctx, req.OrganizerID); err != nil {
		if err == store.ErrNotFound {
			return nil, E(KindNotFound, "organizer %s not found", req.OrganizerID)
		}
		return nil, wrap(err, "get organizer")
	}

	now := time.Now().UTC()
	event := &domain.Event{
		ID:          uuid.New().String(),
		Name:        req.Name,
		Location:    req.Location,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		OrganizerID: req.OrganizerID,
		Status:      domain.EventStatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := withRetry(ctx, func() error {
		return s.events.Create(ctx, event)
	})
	if err != nil {
		return nil, wrap(err, "create event")
	}
	return event, nil
}

// GetEvent returns an event by id.
func (s *EventService) GetEvent(ctx context.Context, id string) (*domain.Event, error) {
	event, err := s.events.GetByID(ctx, id)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, E(KindNotFound, "event %s not found", id)
		}
		return nil, wrap(err, "get event")
	}
	return event, nil
}

// ListEvents returns active events starting inside [from, to).
func (s *EventService) ListEvents(ctx context.Context, from, to time.Time) ([]*domain.Event, error) {
	if to.Before(from) {
		return nil, E(KindValidation, "window end precedes window start")
	}
	events, err := s.events.Between(ctx, from, to)
	if err != nil {
		return nil, wrap(err, "query events")
	}
	active := events[:0]
	for _, e := range events {
		if e.Status == domain.EventStatusActive {
			active = append(active, e)
		}
	}
	return active, nil
}
