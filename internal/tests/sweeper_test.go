package tests

import (
	"context"
	"fmt"
	"testing"
	"time"

	"rydz/internal/domain"
	"rydz/internal/service"
)

func TestSweep_CancelsExpiredRydz(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	e.seedDriver(t, "driver-1")

	past := time.Now().UTC().Add(-2 * time.Hour)
	expired := e.proposeRydAt(t, "driver-1", 3, past)
	upcoming := e.proposeRyd(t, "driver-1", 3)

	lease := &fakeLease{}
	sweeper := service.NewSweeper(e.rydz, e.events, lease, time.Minute)
	sweeper.Sweep(context.Background())

	swept, err := e.rydz.GetByID(context.Background(), expired.ID)
	if err != nil {
		t.Fatalf("reload expired ryd: %v", err)
	}
	if swept.Status != domain.RydStatusCancelledBySystem {
		t.Errorf("expected CANCELLED_BY_SYSTEM, got %s", swept.Status)
	}
	if swept.CancelReason == "" {
		t.Error("expected a cancel reason to be recorded")
	}

	untouched, err := e.rydz.GetByID(context.Background(), upcoming.ID)
	if err != nil {
		t.Fatalf("reload upcoming ryd: %v", err)
	}
	if untouched.Status != domain.RydStatusPlanning {
		t.Errorf("upcoming ryd must be untouched, got %s", untouched.Status)
	}

	if lease.Acquired != 1 || lease.Released != 1 {
		t.Errorf("expected one acquire/release cycle, got %d/%d", lease.Acquired, lease.Released)
	}
}

func TestSweep_MarksExpiredEventsStale(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	now := time.Now().UTC()
	event := &domain.Event{
		ID:        "event-1",
		Name:      "Last Week's Match",
		StartTime: now.Add(-7 * 24 * time.Hour),
		Status:    domain.EventStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.events.Create(context.Background(), event); err != nil {
		t.Fatalf("seed event: %v", err)
	}

	sweeper := service.NewSweeper(e.rydz, e.events, &fakeLease{}, time.Minute)
	sweeper.Sweep(context.Background())

	swept, err := e.events.GetByID(context.Background(), "event-1")
	if err != nil {
		t.Fatalf("reload event: %v", err)
	}
	if swept.Status != domain.EventStatusStale {
		t.Errorf("expected STALE, got %s", swept.Status)
	}
}

func TestSweep_SecondRunChangesNothing(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	e.seedDriver(t, "driver-1")
	expired := e.proposeRydAt(t, "driver-1", 3, time.Now().UTC().Add(-2*time.Hour))

	sweeper := service.NewSweeper(e.rydz, e.events, &fakeLease{}, time.Minute)
	sweeper.Sweep(context.Background())

	first, err := e.rydz.GetByID(context.Background(), expired.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}

	sweeper.Sweep(context.Background())

	second, err := e.rydz.GetByID(context.Background(), expired.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if second.Status != first.Status || !second.UpdatedAt.Equal(first.UpdatedAt) {
		t.Errorf("second sweep mutated an already-terminal ryd: %+v vs %+v", first, second)
	}
}

func TestSweep_StaleEventBacklogDoesNotStarveActive(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	now := time.Now().UTC()

	for i := 0; i < 100; i++ {
		start := now.Add(-30 * 24 * time.Hour).Add(time.Duration(i) * time.Second)
		stale := &domain.Event{
			ID:        fmt.Sprintf("old-event-%03d", i),
			Name:      "Long Gone",
			StartTime: start,
			Status:    domain.EventStatusStale,
			CreatedAt: start,
			UpdatedAt: start,
		}
		if err := e.events.Create(context.Background(), stale); err != nil {
			t.Fatalf("seed stale event %d: %v", i, err)
		}
	}

	victim := &domain.Event{
		ID:        "event-1",
		Name:      "Yesterday's Match",
		StartTime: now.Add(-24 * time.Hour),
		Status:    domain.EventStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.events.Create(context.Background(), victim); err != nil {
		t.Fatalf("seed event: %v", err)
	}

	sweeper := service.NewSweeper(e.rydz, e.events, &fakeLease{}, time.Minute)
	sweeper.Sweep(context.Background())

	swept, err := e.events.GetByID(context.Background(), "event-1")
	if err != nil {
		t.Fatalf("reload event: %v", err)
	}
	if swept.Status != domain.EventStatusStale {
		t.Errorf("expired event behind a stale backlog must still be swept, got %s", swept.Status)
	}
}

func TestSweep_TerminalBacklogDoesNotStarveExpired(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	e.seedDriver(t, "driver-1")

	now := time.Now().UTC()

	// A full batch worth of already-finished rydz, every one arriving
	// earlier than the expired ryd that still needs sweeping. These must
	// not occupy the batch the sweeper pages through.
	for i := 0; i < 100; i++ {
		arrival := now.Add(-3 * time.Hour).Add(time.Duration(i) * time.Second)
		done := &domain.ActiveRyd{
			ID:                    fmt.Sprintf("done-%03d", i),
			DriverID:              "driver-1",
			Destination:           "Practice Field",
			Status:                domain.RydStatusCancelledByDriver,
			ProposedDepartureTime: arrival.Add(-30 * time.Minute),
			PlannedArrivalTime:    arrival,
			SeatsTotal:            3,
			CreatedAt:             arrival,
			UpdatedAt:             arrival,
		}
		if err := e.rydz.Create(context.Background(), done); err != nil {
			t.Fatalf("seed finished ryd %d: %v", i, err)
		}
	}

	victim := e.proposeRydAt(t, "driver-1", 3, now.Add(-2*time.Hour))

	sweeper := service.NewSweeper(e.rydz, e.events, &fakeLease{}, time.Minute)
	sweeper.Sweep(context.Background())

	swept, err := e.rydz.GetByID(context.Background(), victim.ID)
	if err != nil {
		t.Fatalf("reload victim: %v", err)
	}
	if swept.Status != domain.RydStatusCancelledBySystem {
		t.Errorf("expired ryd behind a terminal backlog must still be swept, got %s", swept.Status)
	}
}

func TestSweep_DeniedLeaseSkipsWork(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	e.seedDriver(t, "driver-1")
	expired := e.proposeRydAt(t, "driver-1", 3, time.Now().UTC().Add(-2*time.Hour))

	lease := &fakeLease{Deny: true}
	sweeper := service.NewSweeper(e.rydz, e.events, lease, time.Minute)
	sweeper.Sweep(context.Background())

	untouched, err := e.rydz.GetByID(context.Background(), expired.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if untouched.Status.IsTerminal() {
		t.Error("a denied lease must skip sweeping")
	}
	if lease.Released != 0 {
		t.Errorf("nothing to release without the lease, got %d releases", lease.Released)
	}
}
