package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"rydz/internal/domain"
	"rydz/internal/store"
)

// RydRepository defines the persistence operations for active rydz.
type RydRepository interface {
	// Create persists a new ryd.
	Create(ctx context.Context, ryd *domain.ActiveRyd) error

	// GetByID retrieves a ryd by ID.
	GetByID(ctx context.Context, id string) (*domain.ActiveRyd, error)

	// Mutate runs fn against the freshly-read ryd inside one optimistic
	// transaction and persists the mutated aggregate. fn may run more than
	// once; it must not touch state outside the ryd it is given.
	Mutate(ctx context.Context, id string, fn func(ryd *domain.ActiveRyd) error) (*domain.ActiveRyd, error)

	// ByDriver retrieves all rydz owned by the given driver.
	ByDriver(ctx context.Context, driverID string) ([]*domain.ActiveRyd, error)

	// ByPassenger retrieves all rydz whose manifest holds a seat for the
	// given user.
	ByPassenger(ctx context.Context, userID string) ([]*domain.ActiveRyd, error)

	// ExpiredBefore retrieves non-terminal rydz whose planned arrival is
	// before t. Terminal rydz are excluded at the query so an accumulating
	// backlog of finished documents cannot crowd them out of the batch.
	ExpiredBefore(ctx context.Context, t time.Time, limit int) ([]*domain.ActiveRyd, error)
}

// Rydz is the store-backed RydRepository.
type Rydz struct {
	store store.Store
}

// Ensure the contract is satisfied.
var _ RydRepository = (*Rydz)(nil)

// NewRydz creates a ryd repository over the given store.
func NewRydz(s store.Store) *Rydz {
	return &Rydz{store: s}
}

// rydDoc is the persisted shape of a ryd. PassengerIDs is a denormalized
// index of seat-holding user IDs so passenger membership is queryable;
// Terminal denormalizes the status so the sweep query can exclude finished
// rydz without enumerating statuses.
type rydDoc struct {
	domain.ActiveRyd
	PassengerIDs []string `json:"passengerIds"`
	Terminal     bool     `json:"terminal"`
}

// Create persists a new ryd.
func (r *Rydz) Create(ctx context.Context, ryd *domain.ActiveRyd) error {
	data, err := encodeRyd(ryd)
	if err != nil {
		return err
	}
	return r.store.BatchWrite(ctx, []store.Write{
		{Collection: CollectionRydz, ID: ryd.ID, Data: data},
	})
}

// GetByID retrieves a ryd by ID.
func (r *Rydz) GetByID(ctx context.Context, id string) (*domain.ActiveRyd, error) {
	doc, err := r.store.Get(ctx, CollectionRydz, id)
	if err != nil {
		return nil, err
	}
	return DecodeRyd(doc.Data)
}

// Mutate applies fn to the ryd under one optimistic transaction.
func (r *Rydz) Mutate(ctx context.Context, id string, fn func(ryd *domain.ActiveRyd) error) (*domain.ActiveRyd, error) {
	var result *domain.ActiveRyd
	err := r.store.RunTransaction(ctx, func(tx store.Tx) error {
		doc, err := tx.Get(CollectionRydz, id)
		if err != nil {
			return err
		}
		ryd, err := DecodeRyd(doc.Data)
		if err != nil {
			return err
		}
		if err := fn(ryd); err != nil {
			return err
		}
		data, err := encodeRyd(ryd)
		if err != nil {
			return err
		}
		tx.Put(CollectionRydz, id, data)
		result = ryd
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ByDriver retrieves all rydz owned by the given driver.
func (r *Rydz) ByDriver(ctx context.Context, driverID string) ([]*domain.ActiveRyd, error) {
	return r.query(ctx, []store.Filter{
		{Field: "driverId", Op: store.OpEq, Value: driverID},
	}, nil, 0)
}

// ByPassenger retrieves all rydz holding a seat for the given user.
func (r *Rydz) ByPassenger(ctx context.Context, userID string) ([]*domain.ActiveRyd, error) {
	return r.query(ctx, []store.Filter{
		{Field: "passengerIds", Op: store.OpContains, Value: userID},
	}, nil, 0)
}

// ExpiredBefore retrieves non-terminal rydz whose planned arrival is before t.
func (r *Rydz) ExpiredBefore(ctx context.Context, t time.Time, limit int) ([]*domain.ActiveRyd, error) {
	return r.query(ctx, []store.Filter{
		{Field: "plannedArrivalTime", Op: store.OpLt, Value: encodeTime(t)},
		{Field: "terminal", Op: store.OpEq, Value: "false"},
	}, &store.Order{Field: "plannedArrivalTime"}, limit)
}

func (r *Rydz) query(ctx context.Context, filters []store.Filter, order *store.Order, limit int) ([]*domain.ActiveRyd, error) {
	docs, err := r.store.Query(ctx, CollectionRydz, filters, order, limit)
	if err != nil {
		return nil, err
	}
	rydz := make([]*domain.ActiveRyd, 0, len(docs))
	for _, doc := range docs {
		ryd, err := DecodeRyd(doc.Data)
		if err != nil {
			return nil, err
		}
		rydz = append(rydz, ryd)
	}
	return rydz, nil
}

func encodeRyd(ryd *domain.ActiveRyd) ([]byte, error) {
	if err := ryd.Validate(); err != nil {
		return nil, err
	}
	doc := rydDoc{ActiveRyd: *ryd, Terminal: ryd.Status.IsTerminal()}
	for i := range ryd.PassengerManifest {
		if ryd.PassengerManifest[i].Occupies() {
			doc.PassengerIDs = append(doc.PassengerIDs, ryd.PassengerManifest[i].UserID)
		}
	}
	// Indexed time fields encode in UTC at whole-second precision so text
	// comparison stays chronological.
	doc.ProposedDepartureTime = indexTime(doc.ProposedDepartureTime)
	doc.PlannedArrivalTime = indexTime(doc.PlannedArrivalTime)
	return json.Marshal(doc)
}

// DecodeRyd decodes and validates a stored ryd document.
func DecodeRyd(data []byte) (*domain.ActiveRyd, error) {
	var doc rydDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode ryd: %w", err)
	}
	if err := doc.ActiveRyd.Validate(); err != nil {
		return nil, err
	}
	ryd := doc.ActiveRyd
	return &ryd, nil
}

func indexTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

func encodeTime(t time.Time) string {
	return indexTime(t).Format(time.RFC3339)
}
