package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"rydz/internal/domain"
	"rydz/internal/store"
)

// FamilyRepository defines the persistence operations for families. The core
// reads families for tier gating; membership churn happens elsewhere.
type FamilyRepository interface {
	// Create persists a new family.
	Create(ctx context.Context, family *domain.Family) error

	// GetByID retrieves a family by ID.
	GetByID(ctx context.Context, id string) (*domain.Family, error)
}

// Families is the store-backed FamilyRepository.
type Families struct {
	store store.Store
}

// Ensure the contract is satisfied.
var _ FamilyRepository = (*Families)(nil)

// NewFamilies creates a family repository over the given store.
func NewFamilies(s store.Store) *Families {
	return &Families{store: s}
}

// Create persists a new family.
func (r *Families) Create(ctx context.Context, family *domain.Family) error {
	data, err := encodeFamily(family)
	if err != nil {
		return err
	}
	return r.store.BatchWrite(ctx, []store.Write{
		{Collection: CollectionFamilies, ID: family.ID, Data: data},
	})
}

// GetByID retrieves a family by ID.
func (r *Families) GetByID(ctx context.Context, id string) (*domain.Family, error) {
	doc, err := r.store.Get(ctx, CollectionFamilies, id)
	if err != nil {
		return nil, err
	}
	return DecodeFamily(doc.Data)
}

func encodeFamily(f *domain.Family) ([]byte, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(f)
}

// DecodeFamily decodes and validates a stored family document.
func DecodeFamily(data []byte) (*domain.Family, error) {
	var f domain.Family
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode family: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}
