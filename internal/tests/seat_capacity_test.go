package tests

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"rydz/internal/service"
)

func TestSeatCapacity_FourthRequestRejectedWithoutMutation(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	e.seedDriver(t, "driver-1")
	for i := 1; i <= 4; i++ {
		e.seedParent(t, fmt.Sprintf("parent-%d", i))
	}
	ryd := e.proposeRyd(t, "driver-1", 3)

	for i := 1; i <= 3; i++ {
		e.requestSeat(t, ryd.ID, fmt.Sprintf("parent-%d", i))
	}

	_, err := e.rydService.RequestSeat(context.Background(), service.RequestSeatRequest{
		RydID:       ryd.ID,
		RequesterID: "parent-4",
		PassengerID: "parent-4",
	})
	wantKind(t, err, service.KindCapacityExceeded)

	// The failed request must leave no trace on the manifest.
	after, err := e.rydService.GetRyd(context.Background(), ryd.ID, "driver-1")
	if err != nil {
		t.Fatalf("reload ryd: %v", err)
	}
	if after.SeatsOccupied() != 3 {
		t.Errorf("expected 3 occupied seats, got %d", after.SeatsOccupied())
	}
	if after.ManifestEntryFor("parent-4") != nil {
		t.Error("rejected request must not appear on the manifest")
	}
	if len(after.PassengerManifest) != 3 {
		t.Errorf("expected 3 manifest entries, got %d", len(after.PassengerManifest))
	}
}

func TestSeatCapacity_RejectedEntryFreesSeat(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	e.seedDriver(t, "driver-1")
	e.seedParent(t, "parent-1")
	e.seedParent(t, "parent-2")
	ryd := e.proposeRyd(t, "driver-1", 1)
	e.requestSeat(t, ryd.ID, "parent-1")

	// Full.
	_, err := e.rydService.RequestSeat(context.Background(), service.RequestSeatRequest{
		RydID:       ryd.ID,
		RequesterID: "parent-2",
		PassengerID: "parent-2",
	})
	wantKind(t, err, service.KindCapacityExceeded)

	// Rejecting the pending request frees the seat for someone else.
	if _, err := e.rydService.RespondToSeatRequest(context.Background(), ryd.ID, "driver-1", "parent-1", service.SeatReject); err != nil {
		t.Fatalf("reject: %v", err)
	}
	updated := e.requestSeat(t, ryd.ID, "parent-2")
	if updated.SeatsOccupied() != 1 {
		t.Errorf("expected 1 occupied seat, got %d", updated.SeatsOccupied())
	}
}

func TestSeatCapacity_ConcurrentRequestsNeverOverbook(t *testing.T) {
	t.Parallel()

	const (
		seats      = 3
		contenders = 6
	)

	e := newEnv(t)
	e.seedDriver(t, "driver-1")
	for i := 0; i < contenders; i++ {
		e.seedParent(t, fmt.Sprintf("parent-%d", i))
	}
	ryd := e.proposeRyd(t, "driver-1", seats)

	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		capacity  atomic.Int32
	)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(passengerID string) {
			defer wg.Done()
			_, err := e.rydService.RequestSeat(context.Background(), service.RequestSeatRequest{
				RydID:       ryd.ID,
				RequesterID: passengerID,
				PassengerID: passengerID,
			})
			switch {
			case err == nil:
				successes.Add(1)
			case service.KindOf(err) == service.KindCapacityExceeded:
				capacity.Add(1)
			default:
				t.Errorf("unexpected error for %s: %v", passengerID, err)
			}
		}(fmt.Sprintf("parent-%d", i))
	}
	wg.Wait()

	if got := successes.Load(); got != seats {
		t.Errorf("expected exactly %d granted seats, got %d", seats, got)
	}
	if got := capacity.Load(); got != contenders-seats {
		t.Errorf("expected %d capacity rejections, got %d", contenders-seats, got)
	}

	after, err := e.rydService.GetRyd(context.Background(), ryd.ID, "driver-1")
	if err != nil {
		t.Fatalf("reload ryd: %v", err)
	}
	if after.SeatsOccupied() > seats {
		t.Errorf("manifest overbooked: %d occupied of %d seats", after.SeatsOccupied(), seats)
	}
	if len(after.PassengerManifest) != seats {
		t.Errorf("expected %d manifest entries, got %d", seats, len(after.PassengerManifest))
	}
}
