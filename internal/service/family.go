package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"rydz/internal/domain"
	"rydz/internal/repository"
	"rydz/internal/store"
)

// FamilyService groups related accounts under one subscription.
type FamilyService struct {
	families repository.FamilyRepository
	profiles repository.ProfileRepository
}

// NewFamilyService creates a new FamilyService.
func NewFamilyService(families repository.FamilyRepository, profiles repository.ProfileRepository) *FamilyService {
	return &FamilyService{families: families, profiles: profiles}
}

// CreateFamily creates a family on the free tier with the creator as its
// first member, and records the membership on the creator's profile.
func (s *FamilyService) CreateFamily(ctx context.Context, creatorID, name string) (*domain.Family, error) {
	if name == "" {
		return nil, E(KindValidation, "family name is required")
	}

	creator, err := s.profiles.GetByID(ctx, creatorID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, E(KindNotFound, "profile %s not found", creatorID)
		}
		return nil, wrap(err, "get creator")
	}

	now := time.Now().UTC()
	family := &domain.Family{
		ID:               uuid.New().String(),
		Name:             name,
		MemberIDs:        []string{creatorID},
		CreatorID:        creatorID,
		SubscriptionTier: domain.TierFree,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	err = withRetry(ctx, func() error {
		return s.families.Create(ctx, family)
	})
	if err != nil {
		return nil, wrap(err, "create family")
	}

	creator.FamilyIDs = append(creator.FamilyIDs, family.ID)
	creator.UpdatedAt = now
	err = withRetry(ctx, func() error {
		return s.profiles.Update(ctx, creator)
	})
	if err != nil {
		return nil, wrap(err, "record family membership")
	}
	return family, nil
}

// GetFamily returns a family its members may see.
func (s *FamilyService) GetFamily(ctx context.Context, callerID, familyID string) (*domain.Family, error) {
	family, err := s.families.GetByID(ctx, familyID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, E(KindNotFound, "family %s not found", familyID)
		}
		return nil, wrap(err, "get family")
	}

	member := false
	for _, id := range family.MemberIDs {
		if id == callerID {
			member = true
			break
		}
	}
	if !member {
		return nil, E(KindAuthorization, "user %s is not a member of family %s", callerID, familyID)
	}
	return family, nil
}
