package service

import (
	"context"
	"time"

	"rydz/internal/domain"
	"rydz/internal/repository"
	"rydz/internal/store"
)

// AssociationService manages the parent-student and approved-driver
// relationships the state machine's authorization checks rely on. Both sides
// of a link are written in one atomic batch: a half-applied link is an
// invariant violation.
type AssociationService struct {
	profiles repository.ProfileRepository
}

// NewAssociationService creates a new AssociationService.
func NewAssociationService(profiles repository.ProfileRepository) *AssociationService {
	return &AssociationService{profiles: profiles}
}

// LinkParentAndStudent links a parent to a student bidirectionally and
// auto-approves the parent as a driver for that student.
func (s *AssociationService) LinkParentAndStudent(ctx context.Context, parentID, studentID string) error {
	if parentID == "" || studentID == "" {
		return E(KindValidation, "parent id and student id are required")
	}
	if parentID == studentID {
		return E(KindValidation, "cannot link a user to themself")
	}

	parent, student, err := s.loadPair(ctx, parentID, studentID)
	if err != nil {
		return err
	}
	if parent.Role != domain.RoleParent {
		return E(KindRoleMismatch, "user %s has role %s, expected %s", parentID, parent.Role, domain.RoleParent)
	}
	if student.Role != domain.RoleStudent {
		return E(KindRoleMismatch, "user %s has role %s, expected %s", studentID, student.Role, domain.RoleStudent)
	}
	if parent.ManagesStudent(studentID) || student.HasParent(parentID) {
		return E(KindAlreadyLinked, "parent %s and student %s are already linked", parentID, studentID)
	}

	now := time.Now().UTC()
	parent.ManagedStudentIDs = append(parent.ManagedStudentIDs, studentID)
	if parent.ApprovedDrivers == nil {
		parent.ApprovedDrivers = make(map[string][]string)
	}
	if !parent.DriverApprovedFor(parentID, studentID) {
		parent.ApprovedDrivers[parentID] = append(parent.ApprovedDrivers[parentID], studentID)
	}
	parent.UpdatedAt = now

	student.AssociatedParentIDs = append(student.AssociatedParentIDs, parentID)
	student.UpdatedAt = now

	return s.batchPut(ctx, parent, student)
}

// ApproveDriver records a parent's standing approval for a driver to drive
// one of their managed students, so that driver's rydz skip per-ride
// parental approval.
func (s *AssociationService) ApproveDriver(ctx context.Context, parentID, driverID, studentID string) error {
	parent, driver, err := s.loadPair(ctx, parentID, driverID)
	if err != nil {
		return err
	}
	if parent.Role != domain.RoleParent {
		return E(KindRoleMismatch, "user %s has role %s, expected %s", parentID, parent.Role, domain.RoleParent)
	}
	if !parent.ManagesStudent(studentID) {
		return E(KindAuthorization, "user %s does not manage student %s", parentID, studentID)
	}
	if !driver.CanDrive {
		return E(KindValidation, "user %s is not registered to drive", driverID)
	}
	if parent.DriverApprovedFor(driverID, studentID) {
		return E(KindAlreadyLinked, "driver %s is already approved for student %s", driverID, studentID)
	}

	if parent.ApprovedDrivers == nil {
		parent.ApprovedDrivers = make(map[string][]string)
	}
	parent.ApprovedDrivers[driverID] = append(parent.ApprovedDrivers[driverID], studentID)
	parent.UpdatedAt = time.Now().UTC()

	return s.batchPut(ctx, parent)
}

// RevokeDriver withdraws a standing driver approval. Revoking an approval
// that does not exist is not an error; the end state is the same.
func (s *AssociationService) RevokeDriver(ctx context.Context, parentID, driverID, studentID string) error {
	parent, err := s.profiles.GetByID(ctx, parentID)
	if err != nil {
		if err == store.ErrNotFound {
			return E(KindNotFound, "user %s not found", parentID)
		}
		return wrap(err, "load parent profile")
	}
	if !parent.ManagesStudent(studentID) {
		return E(KindAuthorization, "user %s does not manage student %s", parentID, studentID)
	}

	students := parent.ApprovedDrivers[driverID]
	kept := students[:0]
	for _, id := range students {
		if id != studentID {
			kept = append(kept, id)
		}
	}
	if len(kept) == len(students) {
		return nil
	}
	if len(kept) == 0 {
		delete(parent.ApprovedDrivers, driverID)
	} else {
		parent.ApprovedDrivers[driverID] = kept
	}
	parent.UpdatedAt = time.Now().UTC()

	return s.batchPut(ctx, parent)
}

func (s *AssociationService) loadPair(ctx context.Context, firstID, secondID string) (*domain.UserProfile, *domain.UserProfile, error) {
	first, err := s.profiles.GetByID(ctx, firstID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, nil, E(KindNotFound, "user %s not found", firstID)
		}
		return nil, nil, wrap(err, "load profile")
	}
	second, err := s.profiles.GetByID(ctx, secondID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, nil, E(KindNotFound, "user %s not found", secondID)
		}
		return nil, nil, wrap(err, "load profile")
	}
	return first, second, nil
}

func (s *AssociationService) batchPut(ctx context.Context, profiles ...*domain.UserProfile) error {
	err := withRetry(ctx, func() error {
		return s.profiles.BatchPut(ctx, profiles...)
	})
	return wrap(err, "write profiles")
}
