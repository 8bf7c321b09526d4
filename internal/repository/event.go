package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"rydz/internal/domain"
	"rydz/internal/store"
)

// EventRepository defines the persistence operations for events.
type EventRepository interface {
	// Create persists a new event.
	Create(ctx context.Context, event *domain.Event) error

	// GetByID retrieves an event by ID.
	GetByID(ctx context.Context, id string) (*domain.Event, error)

	// Between retrieves events starting within [from, to), soonest first.
	Between(ctx context.Context, from, to time.Time) ([]*domain.Event, error)

	// ActiveStartingBefore retrieves still-active events whose start time
	// is before t. Stale events are excluded at the query so they cannot
	// crowd expired active ones out of the batch.
	ActiveStartingBefore(ctx context.Context, t time.Time, limit int) ([]*domain.Event, error)

	// Mutate runs fn against the freshly-read event inside one optimistic
	// transaction and persists the result.
	Mutate(ctx context.Context, id string, fn func(event *domain.Event) error) (*domain.Event, error)
}

// Events is the store-backed EventRepository.
type Events struct {
	store store.Store
}

// Ensure the contract is satisfied.
var _ EventRepository = (*Events)(nil)

// NewEvents creates an event repository over the given store.
func NewEvents(s store.Store) *Events {
	return &Events{store: s}
}

// Create persists a new event.
func (r *Events) Create(ctx context.Context, event *domain.Event) error {
	data, err := encodeEvent(event)
	if err != nil {
		return err
	}
	return r.store.BatchWrite(ctx, []store.Write{
		{Collection: CollectionEvents, ID: event.ID, Data: data},
	})
}

// GetByID retrieves an event by ID.
func (r *Events) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	doc, err := r.store.Get(ctx, CollectionEvents, id)
	if err != nil {
		return nil, err
	}
	return DecodeEvent(doc.Data)
}

// Between retrieves events starting within [from, to).
func (r *Events) Between(ctx context.Context, from, to time.Time) ([]*domain.Event, error) {
	return r.query(ctx, []store.Filter{
		{Field: "startTime", Op: store.OpGte, Value: encodeTime(from)},
		{Field: "startTime", Op: store.OpLt, Value: encodeTime(to)},
	}, &store.Order{Field: "startTime"}, 0)
}

// ActiveStartingBefore retrieves active events whose start time is before t.
func (r *Events) ActiveStartingBefore(ctx context.Context, t time.Time, limit int) ([]*domain.Event, error) {
	return r.query(ctx, []store.Filter{
		{Field: "startTime", Op: store.OpLt, Value: encodeTime(t)},
		{Field: "status", Op: store.OpEq, Value: string(domain.EventStatusActive)},
	}, &store.Order{Field: "startTime"}, limit)
}

// Mutate applies fn to the event under one optimistic transaction.
func (r *Events) Mutate(ctx context.Context, id string, fn func(event *domain.Event) error) (*domain.Event, error) {
	var result *domain.Event
	err := r.store.RunTransaction(ctx, func(tx store.Tx) error {
		doc, err := tx.Get(CollectionEvents, id)
		if err != nil {
			return err
		}
		event, err := DecodeEvent(doc.Data)
		if err != nil {
			return err
		}
		if err := fn(event); err != nil {
			return err
		}
		data, err := encodeEvent(event)
		if err != nil {
			return err
		}
		tx.Put(CollectionEvents, id, data)
		result = event
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *Events) query(ctx context.Context, filters []store.Filter, order *store.Order, limit int) ([]*domain.Event, error) {
	docs, err := r.store.Query(ctx, CollectionEvents, filters, order, limit)
	if err != nil {
		return nil, err
	}
	events := make([]*domain.Event, 0, len(docs))
	for _, doc := range docs {
		event, err := DecodeEvent(doc.Data)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, nil
}

func encodeEvent(e *domain.Event) ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	copy := *e
	copy.StartTime = indexTime(copy.StartTime)
	copy.EndTime = indexTime(copy.EndTime)
	return json.Marshal(&copy)
}

// DecodeEvent decodes and validates a stored event document.
func DecodeEvent(data []byte) (*domain.Event, error) {
	var e domain.Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return &e, nil
}
