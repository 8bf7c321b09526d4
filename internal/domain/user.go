package domain

import "time"

// Role represents the role of a user in the system.
type Role string

const (
	RoleStudent Role = "STUDENT"
	RoleParent  Role = "PARENT"
	RoleDriver  Role = "DRIVER"
	RoleAdmin   Role = "ADMIN"
)

// ValidRole reports whether r is a known role.
func ValidRole(r Role) bool {
	switch r {
	case RoleStudent, RoleParent, RoleDriver, RoleAdmin:
		return true
	}
	return false
}

// SavedLocation is a named location a user has saved for reuse.
type SavedLocation struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// UserProfile represents a user account.
//
// ManagedStudentIDs is set for parents, AssociatedParentIDs for students.
// ApprovedDrivers maps a driver's user ID to the set of managed students that
// driver is pre-approved to drive. Profiles are never hard-deleted; Active is
// flipped instead.
type UserProfile struct {
	ID                  string              `json:"id"`
	Email               string              `json:"email"`
	Name                string              `json:"name"`
	Role                Role                `json:"role"`
	CanDrive            bool                `json:"canDrive"`
	ManagedStudentIDs   []string            `json:"managedStudentIds,omitempty"`
	AssociatedParentIDs []string            `json:"associatedParentIds,omitempty"`
	ApprovedDrivers     map[string][]string `json:"approvedDrivers,omitempty"`
	SavedLocations      []SavedLocation     `json:"savedLocations,omitempty"`
	FamilyIDs           []string            `json:"familyIds,omitempty"`
	Active              bool                `json:"active"`
	CreatedAt           time.Time           `json:"createdAt"`
	UpdatedAt           time.Time           `json:"updatedAt"`
}

// ManagesStudent reports whether the profile manages the given student.
func (p *UserProfile) ManagesStudent(studentID string) bool {
	return containsString(p.ManagedStudentIDs, studentID)
}

// HasParent reports whether the profile lists the given parent.
func (p *UserProfile) HasParent(parentID string) bool {
	return containsString(p.AssociatedParentIDs, parentID)
}

// DriverApprovedFor reports whether driverID is pre-approved to drive the
// given student.
func (p *UserProfile) DriverApprovedFor(driverID, studentID string) bool {
	return containsString(p.ApprovedDrivers[driverID], studentID)
}

// Validate checks required fields after decoding a stored profile document.
func (p *UserProfile) Validate() error {
	if p.ID == "" {
		return errMissing("user profile", "id")
	}
	if !ValidRole(p.Role) {
		return errInvalid("user profile", "role", string(p.Role))
	}
	return nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
