package domain

import (
	"errors"
	"testing"
	"time"
)

func newBooking(status BookingStatus) *Booking {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	return &Booking{
		ID:               "B1",
		ConfirmationCode: "CONF-1",
		SiteZone:         Zone{ID: "Z1", Name: "Site", Center: Coordinates{0, 0}, RadiusMeters: 200, Kind: ZoneSite},
		GeofenceEnabled:  true,
		Status:           status,
		Timestamps:       Timestamps{Confirmed: &now},
		StatusHistory:    []StatusHistoryEntry{{Status: StatusConfirmed, Timestamp: now}},
	}
}

func TestBookingStatus_CanTransitionTo(t *testing.T) {
	cases := []struct {
		from, to BookingStatus
		want     bool
	}{
		{StatusConfirmed, StatusCheckedIn, true},
		{StatusCheckedIn, StatusAtDock, true},
		{StatusAtDock, StatusLoading, true},
		{StatusLoading, StatusCompleted, true},
		{StatusLoading, StatusCancelled, true},
		{StatusConfirmed, StatusAtDock, false},
		{StatusConfirmed, StatusCompleted, false},
		{StatusCompleted, StatusCancelled, false},
		{StatusCancelled, StatusCheckedIn, false},
		{StatusAtDock, StatusCheckedIn, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.want {
			t.Errorf("%s -> %s: got %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestBooking_HappyPath(t *testing.T) {
	b := newBooking(StatusConfirmed)
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	if _, err := b.MarkCheckedIn(at, CheckInRecord{WithinGeofence: true}); err != nil {
		t.Fatalf("check in: %v", err)
	}
	if _, err := b.MarkAtDock(at.Add(time.Minute)); err != nil {
		t.Fatalf("at dock: %v", err)
	}
	if _, err := b.MarkLoading(at.Add(2 * time.Minute)); err != nil {
		t.Fatalf("loading: %v", err)
	}
	if _, err := b.MarkCompleted(at.Add(3*time.Minute), "J. Driver", "all good"); err != nil {
		t.Fatalf("complete: %v", err)
	}

	if b.Status != StatusCompleted {
		t.Errorf("expected completed, got %s", b.Status)
	}
	if len(b.StatusHistory) != 5 {
		t.Errorf("expected 5 history entries, got %d", len(b.StatusHistory))
	}
	if b.Timestamps.CheckedIn == nil || !b.Timestamps.CheckedIn.Equal(at) {
		t.Errorf("unexpected checked-in timestamp: %v", b.Timestamps.CheckedIn)
	}
	if b.Signature != "J. Driver" || b.CompletionNotes != "all good" {
		t.Errorf("unexpected completion fields: %q %q", b.Signature, b.CompletionNotes)
	}
}

func TestBooking_SkipRejected(t *testing.T) {
	b := newBooking(StatusConfirmed)
	_, err := b.MarkAtDock(time.Now())
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if b.Status != StatusConfirmed || b.Timestamps.AtDock != nil || len(b.StatusHistory) != 1 {
		t.Error("expected booking to be unchanged after rejection")
	}
}

func TestBooking_CompleteRequiresSignature(t *testing.T) {
	b := newBooking(StatusLoading)
	for _, sig := range []string{"", "   "} {
		if _, err := b.MarkCompleted(time.Now(), sig, ""); !errors.Is(err, ErrMissingGuard) {
			t.Errorf("signature %q: expected ErrMissingGuard, got %v", sig, err)
		}
	}
	if b.Status != StatusLoading || b.Timestamps.Completed != nil {
		t.Error("expected booking to stay in loading")
	}
}

func TestBooking_CompleteFromWrongStateIsInvalidTransition(t *testing.T) {
	b := newBooking(StatusAtDock)
	if _, err := b.MarkCompleted(time.Now(), "", ""); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition before the signature guard, got %v", err)
	}
}

func TestBooking_TerminalStatesRejectEverything(t *testing.T) {
	for _, status := range []BookingStatus{StatusCompleted, StatusCancelled} {
		b := newBooking(status)
		if _, err := b.MarkCancelled(time.Now(), "again"); !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("%s: cancel expected ErrInvalidTransition, got %v", status, err)
		}
		if _, err := b.MarkCheckedIn(time.Now(), CheckInRecord{}); !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("%s: check-in expected ErrInvalidTransition, got %v", status, err)
		}
		if !status.Terminal() {
			t.Errorf("%s should be terminal", status)
		}
	}
}

func TestBooking_CancelFromAnyNonTerminal(t *testing.T) {
	for _, status := range []BookingStatus{StatusConfirmed, StatusCheckedIn, StatusAtDock, StatusLoading} {
		b := newBooking(status)
		if _, err := b.MarkCancelled(time.Now(), "no show"); err != nil {
			t.Errorf("%s: unexpected error %v", status, err)
		}
		if b.CancelReason != "no show" || b.Timestamps.Cancelled == nil {
			t.Errorf("%s: cancel fields not recorded", status)
		}
	}
}

func TestBooking_CloneIsDeep(t *testing.T) {
	b := newBooking(StatusConfirmed)
	c := b.Clone()
	if _, err := c.MarkCheckedIn(time.Now(), CheckInRecord{Override: true, OverrideReason: "gps down"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Status != StatusConfirmed || b.CheckIn != nil || len(b.StatusHistory) != 1 || b.Timestamps.CheckedIn != nil {
		t.Error("mutating the clone must not touch the original")
	}
}

func TestBooking_MarkArrivedOnce(t *testing.T) {
	b := newBooking(StatusConfirmed)
	first := time.Date(2026, 3, 1, 8, 55, 0, 0, time.UTC)
	if !b.MarkArrived(first) {
		t.Fatal("expected first arrival to be recorded")
	}
	if b.MarkArrived(first.Add(time.Minute)) {
		t.Error("expected later arrival to be ignored")
	}
	if !b.Timestamps.ArrivedAt.Equal(first) {
		t.Errorf("unexpected ArrivedAt %v", b.Timestamps.ArrivedAt)
	}
}

func TestBooking_Zones(t *testing.T) {
	b := newBooking(StatusConfirmed)
	if got := b.Zones(); len(got) != 1 || got[0].ID != "Z1" {
		t.Errorf("unexpected zones: %+v", got)
	}
	b.DockZone = &Zone{ID: "D4", Center: Coordinates{0, 0.001}, RadiusMeters: 30, Kind: ZoneDock}
	if got := b.Zones(); len(got) != 2 || got[1].ID != "D4" || b.DockZoneID() != "D4" {
		t.Errorf("unexpected zones with dock: %+v", got)
	}
}
