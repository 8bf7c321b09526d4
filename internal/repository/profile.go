package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"rydz/internal/domain"
	"rydz/internal/store"
)

// ProfileRepository defines the persistence operations for user profiles.
type ProfileRepository interface {
	// Create persists a new profile.
	Create(ctx context.Context, profile *domain.UserProfile) error

	// GetByID retrieves a profile by user ID.
	GetByID(ctx context.Context, id string) (*domain.UserProfile, error)

	// GetMany retrieves several profiles at once. Missing IDs are simply
	// absent from the result map, not an error.
	GetMany(ctx context.Context, ids []string) (map[string]*domain.UserProfile, error)

	// Update replaces an existing profile.
	Update(ctx context.Context, profile *domain.UserProfile) error

	// BatchPut writes all profiles atomically. Used where both sides of a
	// relationship must land together.
	BatchPut(ctx context.Context, profiles ...*domain.UserProfile) error
}

// Profiles is the store-backed ProfileRepository.
type Profiles struct {
	store store.Store
}

// Ensure the contract is satisfied.
var _ ProfileRepository = (*Profiles)(nil)

// NewProfiles creates a profile repository over the given store.
func NewProfiles(s store.Store) *Profiles {
	return &Profiles{store: s}
}

// Create persists a new profile.
func (r *Profiles) Create(ctx context.Context, profile *domain.UserProfile) error {
	data, err := encodeProfile(profile)
	if err != nil {
		return err
	}
	return r.store.BatchWrite(ctx, []store.Write{
		{Collection: CollectionProfiles, ID: profile.ID, Data: data},
	})
}

// GetByID retrieves a profile by user ID.
func (r *Profiles) GetByID(ctx context.Context, id string) (*domain.UserProfile, error) {
	doc, err := r.store.Get(ctx, CollectionProfiles, id)
	if err != nil {
		return nil, err
	}
	return DecodeProfile(doc.Data)
}

// GetMany retrieves several profiles at once.
func (r *Profiles) GetMany(ctx context.Context, ids []string) (map[string]*domain.UserProfile, error) {
	result := make(map[string]*domain.UserProfile, len(ids))
	for _, id := range ids {
		profile, err := r.GetByID(ctx, id)
		if err != nil {
			if err == store.ErrNotFound {
				continue
			}
			return nil, err
		}
		result[id] = profile
	}
	return result, nil
}

// Update replaces an existing profile.
func (r *Profiles) Update(ctx context.Context, profile *domain.UserProfile) error {
	return r.Create(ctx, profile)
}

// BatchPut writes all profiles atomically.
func (r *Profiles) BatchPut(ctx context.Context, profiles ...*domain.UserProfile) error {
	writes := make([]store.Write, 0, len(profiles))
	for _, p := range profiles {
		data, err := encodeProfile(p)
		if err != nil {
			return err
		}
		writes = append(writes, store.Write{Collection: CollectionProfiles, ID: p.ID, Data: data})
	}
	return r.store.BatchWrite(ctx, writes)
}

func encodeProfile(p *domain.UserProfile) ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(p)
}

// DecodeProfile decodes and validates a stored profile document.
func DecodeProfile(data []byte) (*domain.UserProfile, error) {
	var p domain.UserProfile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}
