package service

import (
	"context"
	"time"

	"rydz/internal/domain"
	"rydz/internal/repository"
	"rydz/internal/store"
)

// ProfileCache invalidates cached display identities when a profile changes.
// A nil cache is fine.
type ProfileCache interface {
	InvalidateDisplayName(ctx context.Context, userID string)
}

// ProfileService manages user profile registration and lookup.
type ProfileService struct {
	profiles repository.ProfileRepository
	cache    ProfileCache
}

// NewProfileService creates a new ProfileService.
func NewProfileService(profiles repository.ProfileRepository, cache ProfileCache) *ProfileService {
	return &ProfileService{profiles: profiles, cache: cache}
}

// RegisterProfileRequest carries the fields needed to register a profile.
// UserID is the verified identity of the caller, never client-supplied.
type RegisterProfileRequest struct {
	UserID   string
	Email    string
	Name     string
	Role     domain.Role
	CanDrive bool
}

// RegisterProfile creates the profile for a newly verified identity.
func (s *ProfileService) RegisterProfile(ctx context.Context, req RegisterProfileRequest) (*domain.UserProfile, error) {
	if req.UserID == "" {
		return nil, E(KindValidation, "user id is required")
	}
	if req.Email == "" {
		return nil, E(KindValidation, "email is required")
	}
	if req.Name == "" {
		return nil, E(KindValidation, "name is required")
	}
	if !domain.ValidRole(req.Role) {
		return nil, E(KindValidation, "unknown role %q", req.Role)
	}

	if _, err := s.profiles.GetByID(ctx, req.UserID); err == nil {
		return nil, E(KindDuplicateEntry, "profile %s already exists", req.UserID)
	} else if err != store.ErrNotFound {
		return nil, wrap(err, "check existing profile")
	}

	now := time.Now().UTC()
	profile := &domain.UserProfile{
		ID:        req.UserID,
		Email:     req.Email,
		Name:      req.Name,
		Role:      req.Role,
		CanDrive:  req.CanDrive,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := withRetry(ctx, func() error {
		return s.profiles.Create(ctx, profile)
	})
	if err != nil {
		return nil, wrap(err, "create profile")
	}
	return profile, nil
}

// GetProfile returns a profile the caller is allowed to see: their own, a
// student they manage, or a parent who manages them.
func (s *ProfileService) GetProfile(ctx context.Context, callerID, userID string) (*domain.UserProfile, error) {
	profile, err := s.profiles.GetByID(ctx, userID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, E(KindNotFound, "profile %s not found", userID)
		}
		return nil, wrap(err, "get profile")
	}

	if callerID != userID && !profile.HasParent(callerID) && !profile.ManagesStudent(callerID) {
		return nil, E(KindAuthorization, "user %s may not view profile %s", callerID, userID)
	}
	return profile, nil
}

// UpdateProfileRequest carries the caller-editable profile fields. Nil
// pointers leave the field unchanged.
type UpdateProfileRequest struct {
	Name           *string
	CanDrive       *bool
	SavedLocations []domain.SavedLocation
}

// UpdateProfile applies the caller's edits to their own profile and drops the
// cached display identity.
func (s *ProfileService) UpdateProfile(ctx context.Context, callerID string, req UpdateProfileRequest) (*domain.UserProfile, error) {
	profile, err := s.profiles.GetByID(ctx, callerID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, E(KindNotFound, "profile %s not found", callerID)
		}
		return nil, wrap(err, "get profile")
	}

	if req.Name != nil {
		if *req.Name == "" {
			return nil, E(KindValidation, "name cannot be empty")
		}
		profile.Name = *req.Name
	}
	if req.CanDrive != nil {
		profile.CanDrive = *req.CanDrive
	}
	if req.SavedLocations != nil {
		profile.SavedLocations = req.SavedLocations
	}
	profile.UpdatedAt = time.Now().UTC()

	err = withRetry(ctx, func() error {
		return s.profiles.Update(ctx, profile)
	})
	if err != nil {
		return nil, wrap(err, "update profile")
	}

	if s.cache != nil {
		s.cache.InvalidateDisplayName(ctx, callerID)
	}
	return profile, nil
}
