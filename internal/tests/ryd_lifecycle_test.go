package tests

import (
	"context"
	"testing"
	"time"

	"rydz/internal/domain"
	"rydz/internal/service"
)

func TestProposeRyd_Validation(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	e.seedDriver(t, "driver-1")
	e.seedProfile(t, "walker-1", domain.RoleParent, false)

	departure := time.Now().UTC().Add(time.Hour)

	testCases := []struct {
		name string
		req  service.ProposeRydRequest
		kind service.Kind
	}{
		{
			name: "zero seats",
			req: service.ProposeRydRequest{
				DriverID:              "driver-1",
				Destination:           "School",
				ProposedDepartureTime: departure,
				PlannedArrivalTime:    departure.Add(time.Hour),
				SeatsTotal:            0,
			},
			kind: service.KindValidation,
		},
		{
			name: "arrival before departure",
			req: service.ProposeRydRequest{
				DriverID:              "driver-1",
				Destination:           "School",
				ProposedDepartureTime: departure,
				PlannedArrivalTime:    departure.Add(-time.Minute),
				SeatsTotal:            2,
			},
			kind: service.KindValidation,
		},
		{
			name: "neither event nor destination",
			req: service.ProposeRydRequest{
				DriverID:              "driver-1",
				ProposedDepartureTime: departure,
				PlannedArrivalTime:    departure.Add(time.Hour),
				SeatsTotal:            2,
			},
			kind: service.KindValidation,
		},
		{
			name: "proposer cannot drive",
			req: service.ProposeRydRequest{
				DriverID:              "walker-1",
				Destination:           "School",
				ProposedDepartureTime: departure,
				PlannedArrivalTime:    departure.Add(time.Hour),
				SeatsTotal:            2,
			},
			kind: service.KindValidation,
		},
		{
			name: "unknown event",
			req: service.ProposeRydRequest{
				DriverID:              "driver-1",
				EventID:               "no-such-event",
				ProposedDepartureTime: departure,
				PlannedArrivalTime:    departure.Add(time.Hour),
				SeatsTotal:            2,
			},
			kind: service.KindNotFound,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.rydService.ProposeRyd(context.Background(), tc.req)
			wantKind(t, err, tc.kind)
		})
	}
}

func TestProposeRyd_StartsInPlanning(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	e.seedDriver(t, "driver-1")

	ryd := e.proposeRyd(t, "driver-1", 3)
	if ryd.Status != domain.RydStatusPlanning {
		t.Errorf("expected PLANNING, got %s", ryd.Status)
	}
	if ryd.ID == "" {
		t.Error("expected ryd ID to be set")
	}
}

func TestRequestSeat_FirstRequestLeavesDrafting(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	e.seedDriver(t, "driver-1")
	e.seedParent(t, "parent-1")
	ryd := e.proposeRyd(t, "driver-1", 3)

	updated := e.requestSeat(t, ryd.ID, "parent-1")
	if updated.Status != domain.RydStatusAwaitingPassengers {
		t.Errorf("expected AWAITING_PASSENGERS, got %s", updated.Status)
	}
	entry := updated.ManifestEntryFor("parent-1")
	if entry == nil {
		t.Fatal("expected manifest entry for parent-1")
	}
	if entry.Status != domain.PassengerStatusPendingDriver {
		t.Errorf("adult self-request should pend driver approval, got %s", entry.Status)
	}
}

func TestRequestSeat_Authorization(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	e.seedDriver(t, "driver-1")
	e.seedParent(t, "parent-1")
	e.seedStudent(t, "kid-1")
	e.seedProfile(t, "stranger-1", domain.RoleParent, false)
	e.link(t, "parent-1", "kid-1")
	ryd := e.proposeRyd(t, "driver-1", 3)

	// A stranger may not put someone else's child on a ryd.
	_, err := e.rydService.RequestSeat(context.Background(), service.RequestSeatRequest{
		RydID:       ryd.ID,
		RequesterID: "stranger-1",
		PassengerID: "kid-1",
	})
	wantKind(t, err, service.KindAuthorization)

	// The managing parent may.
	updated, err := e.rydService.RequestSeat(context.Background(), service.RequestSeatRequest{
		RydID:       ryd.ID,
		RequesterID: "parent-1",
		PassengerID: "kid-1",
	})
	if err != nil {
		t.Fatalf("parent request: %v", err)
	}
	entry := updated.ManifestEntryFor("kid-1")
	if entry == nil || entry.RequestedBy != "parent-1" {
		t.Fatalf("expected entry requested by parent-1, got %+v", entry)
	}
}

func TestRequestSeat_StudentWithoutApprovedDriver_PendsParent(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	e.seedDriver(t, "driver-1")
	e.seedParent(t, "parent-1")
	e.seedStudent(t, "kid-1")
	e.link(t, "parent-1", "kid-1")
	ryd := e.proposeRyd(t, "driver-1", 3)

	updated := e.requestSeat(t, ryd.ID, "kid-1")
	entry := updated.ManifestEntryFor("kid-1")
	if entry.Status != domain.PassengerStatusPendingParent {
		t.Errorf("expected PENDING_PARENTAL_APPROVAL, got %s", entry.Status)
	}
}

func TestRequestSeat_PreApprovedDriver_SkipsParentalStep(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	e.seedDriver(t, "driver-1")
	e.seedParent(t, "parent-1")
	e.seedStudent(t, "kid-1")
	e.link(t, "parent-1", "kid-1")
	if err := e.associations.ApproveDriver(context.Background(), "parent-1", "driver-1", "kid-1"); err != nil {
		t.Fatalf("approve driver: %v", err)
	}
	ryd := e.proposeRyd(t, "driver-1", 3)

	updated := e.requestSeat(t, ryd.ID, "kid-1")
	entry := updated.ManifestEntryFor("kid-1")
	if entry.Status != domain.PassengerStatusPendingDriver {
		t.Errorf("expected PENDING_DRIVER_APPROVAL, got %s", entry.Status)
	}
}

func TestRequestSeat_DriverOffer_PolicyControlsParentalStep(t *testing.T) {
	t.Parallel()

	t.Run("default policy routes through parent", func(t *testing.T) {
		e := newEnv(t)
		e.seedDriver(t, "driver-1")
		e.seedParent(t, "parent-1")
		e.seedStudent(t, "kid-1")
		e.link(t, "parent-1", "kid-1")
		ryd := e.proposeRyd(t, "driver-1", 3)

		updated, err := e.rydService.RequestSeat(context.Background(), service.RequestSeatRequest{
			RydID:       ryd.ID,
			RequesterID: "driver-1",
			PassengerID: "kid-1",
		})
		if err != nil {
			t.Fatalf("driver offer: %v", err)
		}
		if got := updated.ManifestEntryFor("kid-1").Status; got != domain.PassengerStatusPendingParent {
			t.Errorf("expected PENDING_PARENTAL_APPROVAL, got %s", got)
		}
	})

	t.Run("relaxed policy confirms immediately", func(t *testing.T) {
		e := newEnvWithPolicy(t, service.Policy{DriverOfferNeedsParentApproval: false})
		e.seedDriver(t, "driver-1")
		e.seedParent(t, "parent-1")
		e.seedStudent(t, "kid-1")
		e.link(t, "parent-1", "kid-1")
		ryd := e.proposeRyd(t, "driver-1", 3)

		updated, err := e.rydService.RequestSeat(context.Background(), service.RequestSeatRequest{
			RydID:       ryd.ID,
			RequesterID: "driver-1",
			PassengerID: "kid-1",
		})
		if err != nil {
			t.Fatalf("driver offer: %v", err)
		}
		if got := updated.ManifestEntryFor("kid-1").Status; got != domain.PassengerStatusConfirmed {
			t.Errorf("expected CONFIRMED_BY_DRIVER, got %s", got)
		}
	})
}

func TestRequestSeat_Duplicate_Fails(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	e.seedDriver(t, "driver-1")
	e.seedParent(t, "parent-1")
	ryd := e.proposeRyd(t, "driver-1", 3)
	e.requestSeat(t, ryd.ID, "parent-1")

	_, err := e.rydService.RequestSeat(context.Background(), service.RequestSeatRequest{
		RydID:       ryd.ID,
		RequesterID: "parent-1",
		PassengerID: "parent-1",
	})
	wantKind(t, err, service.KindDuplicateEntry)
}

func TestParentalApproval_Flow(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	e.seedDriver(t, "driver-1")
	e.seedParent(t, "parent-1")
	e.seedStudent(t, "kid-1")
	e.link(t, "parent-1", "kid-1")
	ryd := e.proposeRyd(t, "driver-1", 3)
	e.requestSeat(t, ryd.ID, "kid-1")

	// Someone who does not manage the student cannot decide.
	e.seedParent(t, "parent-2")
	_, err := e.rydService.RespondToParentalApproval(context.Background(), ryd.ID, "parent-2", "kid-1", true)
	wantKind(t, err, service.KindAuthorization)

	// Approval forwards the request to the driver's queue.
	updated, err := e.rydService.RespondToParentalApproval(context.Background(), ryd.ID, "parent-1", "kid-1", true)
	if err != nil {
		t.Fatalf("parental approval: %v", err)
	}
	if got := updated.ManifestEntryFor("kid-1").Status; got != domain.PassengerStatusPendingDriver {
		t.Errorf("expected PENDING_DRIVER_APPROVAL, got %s", got)
	}

	// The driver then confirms the seat.
	updated, err = e.rydService.RespondToSeatRequest(context.Background(), ryd.ID, "driver-1", "kid-1", service.SeatApprove)
	if err != nil {
		t.Fatalf("driver approval: %v", err)
	}
	if got := updated.ManifestEntryFor("kid-1").Status; got != domain.PassengerStatusConfirmed {
		t.Errorf("expected CONFIRMED_BY_DRIVER, got %s", got)
	}
}

func TestParentalRefusal_WithdrawsSeat(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	e.seedDriver(t, "driver-1")
	e.seedParent(t, "parent-1")
	e.seedStudent(t, "kid-1")
	e.link(t, "parent-1", "kid-1")
	ryd := e.proposeRyd(t, "driver-1", 1)
	e.requestSeat(t, ryd.ID, "kid-1")

	updated, err := e.rydService.RespondToParentalApproval(context.Background(), ryd.ID, "parent-1", "kid-1", false)
	if err != nil {
		t.Fatalf("parental refusal: %v", err)
	}
	if got := updated.ManifestEntryFor("kid-1").Status; got != domain.PassengerStatusCancelledByUser {
		t.Errorf("expected CANCELLED_BY_USER, got %s", got)
	}
	if updated.SeatsOccupied() != 0 {
		t.Errorf("withdrawn entry must free its seat, occupied=%d", updated.SeatsOccupied())
	}
}

func TestRespondToSeatRequest_DriverOnly(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	e.seedDriver(t, "driver-1")
	e.seedParent(t, "parent-1")
	ryd := e.proposeRyd(t, "driver-1", 3)
	e.requestSeat(t, ryd.ID, "parent-1")

	_, err := e.rydService.RespondToSeatRequest(context.Background(), ryd.ID, "parent-1", "parent-1", service.SeatApprove)
	wantKind(t, err, service.KindAuthorization)
}

func TestConfirmRydPlan_SecondCallIsInvalidState(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	e.seedDriver(t, "driver-1")
	ryd := e.proposeRyd(t, "driver-1", 3)

	confirmed, err := e.rydService.ConfirmRydPlan(context.Background(), ryd.ID, "driver-1")
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if confirmed.Status != domain.RydStatusPlanned {
		t.Fatalf("expected RYD_PLANNED, got %s", confirmed.Status)
	}

	_, err = e.rydService.ConfirmRydPlan(context.Background(), ryd.ID, "driver-1")
	wantKind(t, err, service.KindInvalidState)
}

func TestAdvanceRydProgress_MonotonicOnly(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	e.seedDriver(t, "driver-1")
	ryd := e.proposeRyd(t, "driver-1", 3)
	if _, err := e.rydService.ConfirmRydPlan(context.Background(), ryd.ID, "driver-1"); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	// Skipping a step is rejected.
	_, err := e.rydService.AdvanceRydProgress(context.Background(), ryd.ID, "driver-1", domain.RydStatusInProgressRoute)
	wantKind(t, err, service.KindInvalidState)

	steps := []domain.RydStatus{
		domain.RydStatusInProgressPickup,
		domain.RydStatusInProgressRoute,
		domain.RydStatusCompleted,
	}
	for _, next := range steps {
		updated, err := e.rydService.AdvanceRydProgress(context.Background(), ryd.ID, "driver-1", next)
		if err != nil {
			t.Fatalf("advance to %s: %v", next, err)
		}
		if updated.Status != next {
			t.Fatalf("expected %s, got %s", next, updated.Status)
		}
	}

	// Regression from the terminal state is rejected.
	_, err = e.rydService.AdvanceRydProgress(context.Background(), ryd.ID, "driver-1", domain.RydStatusInProgressPickup)
	wantKind(t, err, service.KindInvalidState)
}

func TestCancelRyd_ThenRespond_Fails(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	e.seedDriver(t, "driver-1")
	e.seedParent(t, "parent-1")
	ryd := e.proposeRyd(t, "driver-1", 3)
	e.requestSeat(t, ryd.ID, "parent-1")

	cancelled, err := e.rydService.CancelRyd(context.Background(), ryd.ID, "driver-1", "van broke down")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != domain.RydStatusCancelledByDriver {
		t.Fatalf("expected CANCELLED_BY_DRIVER, got %s", cancelled.Status)
	}
	if cancelled.CancelReason != "van broke down" {
		t.Errorf("expected cancel reason to be recorded, got %q", cancelled.CancelReason)
	}

	// Outstanding seat requests can no longer be decided.
	_, err = e.rydService.RespondToSeatRequest(context.Background(), ryd.ID, "driver-1", "parent-1", service.SeatApprove)
	wantKind(t, err, service.KindInvalidState)

	// Cancelling twice is also invalid.
	_, err = e.rydService.CancelRyd(context.Background(), ryd.ID, "driver-1", "")
	wantKind(t, err, service.KindInvalidState)
}

func TestUpdatePassengerProgress_OnlyWhileDriving(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	e.seedDriver(t, "driver-1")
	e.seedParent(t, "parent-1")
	ryd := e.proposeRyd(t, "driver-1", 3)
	e.requestSeat(t, ryd.ID, "parent-1")
	if _, err := e.rydService.RespondToSeatRequest(context.Background(), ryd.ID, "driver-1", "parent-1", service.SeatApprove); err != nil {
		t.Fatalf("approve: %v", err)
	}

	// Not yet in progress.
	_, err := e.rydService.UpdatePassengerProgress(context.Background(), ryd.ID, "driver-1", "parent-1", domain.PassengerStatusOnBoard)
	wantKind(t, err, service.KindInvalidState)

	if _, err := e.rydService.ConfirmRydPlan(context.Background(), ryd.ID, "driver-1"); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if _, err := e.rydService.AdvanceRydProgress(context.Background(), ryd.ID, "driver-1", domain.RydStatusInProgressPickup); err != nil {
		t.Fatalf("advance: %v", err)
	}

	// A lifecycle status is not a pickup status.
	_, err = e.rydService.UpdatePassengerProgress(context.Background(), ryd.ID, "driver-1", "parent-1", domain.PassengerStatusConfirmed)
	wantKind(t, err, service.KindValidation)

	updated, err := e.rydService.UpdatePassengerProgress(context.Background(), ryd.ID, "driver-1", "parent-1", domain.PassengerStatusOnBoard)
	if err != nil {
		t.Fatalf("update progress: %v", err)
	}
	if got := updated.ManifestEntryFor("parent-1").Status; got != domain.PassengerStatusOnBoard {
		t.Errorf("expected ON_BOARD, got %s", got)
	}
}

func TestPostMessage_ParticipantsOnly(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	e.seedDriver(t, "driver-1")
	e.seedParent(t, "parent-1")
	e.seedParent(t, "outsider-1")
	ryd := e.proposeRyd(t, "driver-1", 3)
	e.requestSeat(t, ryd.ID, "parent-1")

	_, err := e.rydService.PostMessage(context.Background(), ryd.ID, "outsider-1", "hello?")
	wantKind(t, err, service.KindAuthorization)

	updated, err := e.rydService.PostMessage(context.Background(), ryd.ID, "parent-1", "running late")
	if err != nil {
		t.Fatalf("post message: %v", err)
	}
	last := updated.LatestMessage()
	if last == nil || last.Text != "running late" || last.SenderID != "parent-1" {
		t.Fatalf("expected latest message from parent-1, got %+v", last)
	}
}

func TestGetRyd_Visibility(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	e.seedDriver(t, "driver-1")
	e.seedParent(t, "parent-1")
	e.seedStudent(t, "kid-1")
	e.seedParent(t, "outsider-1")
	e.link(t, "parent-1", "kid-1")
	ryd := e.proposeRyd(t, "driver-1", 3)
	e.requestSeat(t, ryd.ID, "kid-1")

	if _, err := e.rydService.GetRyd(context.Background(), ryd.ID, "driver-1"); err != nil {
		t.Errorf("driver should see the ryd: %v", err)
	}
	if _, err := e.rydService.GetRyd(context.Background(), ryd.ID, "kid-1"); err != nil {
		t.Errorf("seated student should see the ryd: %v", err)
	}
	if _, err := e.rydService.GetRyd(context.Background(), ryd.ID, "parent-1"); err != nil {
		t.Errorf("parent of seated student should see the ryd: %v", err)
	}
	_, err := e.rydService.GetRyd(context.Background(), ryd.ID, "outsider-1")
	wantKind(t, err, service.KindAuthorization)
}
