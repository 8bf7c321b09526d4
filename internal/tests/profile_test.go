package tests

import (
	"context"
	"testing"
	"time"

	"rydz/internal/domain"
	"rydz/internal/service"
)

func TestRegisterProfile_DuplicateFails(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	profiles := service.NewProfileService(e.profiles, e.cache)

	req := service.RegisterProfileRequest{
		UserID: "user-1",
		Email:  "user-1@example.com",
		Name:   "First Last",
		Role:   domain.RoleParent,
	}
	if _, err := profiles.RegisterProfile(context.Background(), req); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, err := profiles.RegisterProfile(context.Background(), req)
	wantKind(t, err, service.KindDuplicateEntry)
}

func TestRegisterProfile_UnknownRoleFails(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	profiles := service.NewProfileService(e.profiles, e.cache)

	_, err := profiles.RegisterProfile(context.Background(), service.RegisterProfileRequest{
		UserID: "user-1",
		Email:  "user-1@example.com",
		Name:   "First Last",
		Role:   "WIZARD",
	})
	wantKind(t, err, service.KindValidation)
}

func TestGetProfile_VisibilityFollowsLinks(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	profiles := service.NewProfileService(e.profiles, e.cache)
	e.seedParent(t, "parent-1")
	e.seedStudent(t, "kid-1")
	e.seedParent(t, "stranger-1")
	e.link(t, "parent-1", "kid-1")

	if _, err := profiles.GetProfile(context.Background(), "kid-1", "kid-1"); err != nil {
		t.Errorf("self lookup: %v", err)
	}
	if _, err := profiles.GetProfile(context.Background(), "parent-1", "kid-1"); err != nil {
		t.Errorf("parent lookup of managed student: %v", err)
	}
	if _, err := profiles.GetProfile(context.Background(), "kid-1", "parent-1"); err != nil {
		t.Errorf("student lookup of own parent: %v", err)
	}
	_, err := profiles.GetProfile(context.Background(), "stranger-1", "kid-1")
	wantKind(t, err, service.KindAuthorization)
}

func TestUpdateProfile_InvalidatesDisplayCache(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	profiles := service.NewProfileService(e.profiles, e.cache)
	e.seedParent(t, "parent-1")
	e.cache.SetDisplayName(context.Background(), "parent-1", "Old Name")

	name := "New Name"
	updated, err := profiles.UpdateProfile(context.Background(), "parent-1", service.UpdateProfileRequest{Name: &name})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "New Name" {
		t.Errorf("expected updated name, got %q", updated.Name)
	}
	if _, ok := e.cache.GetDisplayName(context.Background(), "parent-1"); ok {
		t.Error("stale display name should have been invalidated")
	}
}

func TestCreateEvent_Validation(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	events := service.NewEventService(e.events, e.profiles)
	e.seedParent(t, "parent-1")

	start := time.Now().UTC().Add(48 * time.Hour)

	_, err := events.CreateEvent(context.Background(), service.CreateEventRequest{
		OrganizerID: "parent-1",
		Name:        "",
		StartTime:   start,
	})
	wantKind(t, err, service.KindValidation)

	_, err = events.CreateEvent(context.Background(), service.CreateEventRequest{
		OrganizerID: "parent-1",
		Name:        "Tournament",
		StartTime:   start,
		EndTime:     start.Add(-time.Hour),
	})
	wantKind(t, err, service.KindValidation)

	_, err = events.CreateEvent(context.Background(), service.CreateEventRequest{
		OrganizerID: "ghost-1",
		Name:        "Tournament",
		StartTime:   start,
	})
	wantKind(t, err, service.KindNotFound)

	event, err := events.CreateEvent(context.Background(), service.CreateEventRequest{
		OrganizerID: "parent-1",
		Name:        "Tournament",
		Location:    "City Arena",
		StartTime:   start,
		EndTime:     start.Add(2 * time.Hour),
	})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	if event.Status != domain.EventStatusActive {
		t.Errorf("expected ACTIVE, got %s", event.Status)
	}
}

func TestFamily_MembersOnlyVisibility(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	families := service.NewFamilyService(e.families, e.profiles)
	e.seedParent(t, "parent-1")
	e.seedParent(t, "outsider-1")

	family, err := families.CreateFamily(context.Background(), "parent-1", "The Parents")
	if err != nil {
		t.Fatalf("create family: %v", err)
	}

	if _, err := families.GetFamily(context.Background(), "parent-1", family.ID); err != nil {
		t.Errorf("member lookup: %v", err)
	}
	_, err = families.GetFamily(context.Background(), "outsider-1", family.ID)
	wantKind(t, err, service.KindAuthorization)

	// Membership is recorded back on the creator's profile.
	creator, err := e.profiles.GetByID(context.Background(), "parent-1")
	if err != nil {
		t.Fatalf("reload creator: %v", err)
	}
	found := false
	for _, id := range creator.FamilyIDs {
		if id == family.ID {
			found = true
		}
	}
	if !found {
		t.Error("creator profile should list the new family")
	}
}
