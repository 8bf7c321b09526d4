// Package tests exercises the coordination services end to end over the
// in-memory store, so the optimistic transactions and their retries are real.
package tests

import (
	"context"
	"sync"
	"testing"
	"time"

	"rydz/internal/domain"
	"rydz/internal/repository"
	"rydz/internal/service"
	"rydz/internal/store/memory"
)

// env bundles the real services wired over one in-memory store.
type env struct {
	store        *memory.Store
	profiles     *repository.Profiles
	rydz         *repository.Rydz
	events       *repository.Events
	families     *repository.Families
	cache        *fakeCache
	rydService   *service.RydService
	aggregator   *service.AggregatorService
	associations *service.AssociationService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	return newEnvWithPolicy(t, service.DefaultPolicy())
}

func newEnvWithPolicy(t *testing.T, policy service.Policy) *env {
	t.Helper()

	s := memory.New()
	e := &env{
		store:    s,
		profiles: repository.NewProfiles(s),
		rydz:     repository.NewRydz(s),
		events:   repository.NewEvents(s),
		families: repository.NewFamilies(s),
		cache:    newFakeCache(),
	}
	e.rydService = service.NewRydService(e.rydz, e.profiles, e.events, service.NewNotificationService(), policy)
	e.aggregator = service.NewAggregatorService(e.rydz, e.profiles, e.events, e.cache)
	e.associations = service.NewAssociationService(e.profiles)
	return e
}

func (e *env) seedProfile(t *testing.T, id string, role domain.Role, canDrive bool) *domain.UserProfile {
	t.Helper()
	now := time.Now().UTC()
	profile := &domain.UserProfile{
		ID:        id,
		Email:     id + "@example.com",
		Name:      "User " + id,
		Role:      role,
		CanDrive:  canDrive,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.profiles.Create(context.Background(), profile); err != nil {
		t.Fatalf("seed profile %s: %v", id, err)
	}
	return profile
}

func (e *env) seedDriver(t *testing.T, id string) *domain.UserProfile {
	return e.seedProfile(t, id, domain.RoleDriver, true)
}

func (e *env) seedParent(t *testing.T, id string) *domain.UserProfile {
	return e.seedProfile(t, id, domain.RoleParent, false)
}

func (e *env) seedStudent(t *testing.T, id string) *domain.UserProfile {
	return e.seedProfile(t, id, domain.RoleStudent, false)
}

// link wires a parent-student pair through the real association service.
func (e *env) link(t *testing.T, parentID, studentID string) {
	t.Helper()
	if err := e.associations.LinkParentAndStudent(context.Background(), parentID, studentID); err != nil {
		t.Fatalf("link %s-%s: %v", parentID, studentID, err)
	}
}

// proposeRyd creates a destination ryd departing in one hour.
func (e *env) proposeRyd(t *testing.T, driverID string, seats int) *domain.ActiveRyd {
	t.Helper()
	return e.proposeRydAt(t, driverID, seats, time.Now().UTC().Add(time.Hour))
}

func (e *env) proposeRydAt(t *testing.T, driverID string, seats int, departure time.Time) *domain.ActiveRyd {
	t.Helper()
	ryd, err := e.rydService.ProposeRyd(context.Background(), service.ProposeRydRequest{
		DriverID:              driverID,
		Destination:           "Practice Field",
		ProposedDepartureTime: departure,
		PlannedArrivalTime:    departure.Add(30 * time.Minute),
		SeatsTotal:            seats,
	})
	if err != nil {
		t.Fatalf("propose ryd: %v", err)
	}
	return ryd
}

// requestSeat is the self-request shorthand.
func (e *env) requestSeat(t *testing.T, rydID, passengerID string) *domain.ActiveRyd {
	t.Helper()
	ryd, err := e.rydService.RequestSeat(context.Background(), service.RequestSeatRequest{
		RydID:       rydID,
		RequesterID: passengerID,
		PassengerID: passengerID,
	})
	if err != nil {
		t.Fatalf("request seat %s: %v", passengerID, err)
	}
	return ryd
}

// wantKind fails the test unless err carries the expected kind.
func wantKind(t *testing.T, err error, kind service.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	if got := service.KindOf(err); got != kind {
		t.Fatalf("expected %s error, got %s: %v", kind, got, err)
	}
}

// fakeCache is a thread-safe in-memory DisplayCache with hit counters.
type fakeCache struct {
	mu    sync.Mutex
	names map[string]string

	Hits   int
	Misses int
}

func newFakeCache() *fakeCache {
	return &fakeCache{names: make(map[string]string)}
}

func (c *fakeCache) GetDisplayName(_ context.Context, userID string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	name, ok := c.names[userID]
	if ok {
		c.Hits++
	} else {
		c.Misses++
	}
	return name, ok
}

func (c *fakeCache) SetDisplayName(_ context.Context, userID, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.names[userID] = name
}

func (c *fakeCache) InvalidateDisplayName(_ context.Context, userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.names, userID)
}

// fakeLease is a SweepLease recording acquisitions; it can be told to deny.
type fakeLease struct {
	mu       sync.Mutex
	held     bool
	Deny     bool
	Acquired int
	Released int
}

func (l *fakeLease) AcquireSweepLease(_ context.Context, _ time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Deny || l.held {
		return false, nil
	}
	l.held = true
	l.Acquired++
	return true, nil
}

func (l *fakeLease) ReleaseSweepLease(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.held = false
	l.Released++
	return nil
}
