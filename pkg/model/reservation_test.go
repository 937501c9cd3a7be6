package model

import (
	"testing"
	"time"
)

func TestOverlaps(t *testing.T) {
	base := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	reservation := &Reservation{
		StartTime: base,
		EndTime:   base.Add(2 * time.Hour),
		Status:    ReservationStatusConfirmed,
	}

	cases := []struct {
		name  string
		start time.Time
		end   time.Time
		want  bool
	}{
		{"identical interval", base, base.Add(2 * time.Hour), true},
		{"contained interval", base.Add(30 * time.Minute), base.Add(time.Hour), true},
		{"overlapping head", base.Add(-time.Hour), base.Add(time.Hour), true},
		{"overlapping tail", base.Add(time.Hour), base.Add(3 * time.Hour), true},
		{"surrounding interval", base.Add(-time.Hour), base.Add(3 * time.Hour), true},
		{"ends exactly at start", base.Add(-2 * time.Hour), base, false},
		{"starts exactly at end", base.Add(2 * time.Hour), base.Add(3 * time.Hour), false},
		{"fully before", base.Add(-3 * time.Hour), base.Add(-time.Hour), false},
		{"fully after", base.Add(3 * time.Hour), base.Add(4 * time.Hour), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := reservation.Overlaps(tc.start, tc.end); got != tc.want {
				t.Errorf("Overlaps(%v, %v) = %v, want %v", tc.start, tc.end, got, tc.want)
			}
		})
	}
}

func TestReservationStatusPredicates(t *testing.T) {
	cases := []struct {
		status       string
		wantActive   bool
		wantTerminal bool
	}{
		{ReservationStatusPending, true, false},
		{ReservationStatusConfirmed, true, false},
		{ReservationStatusCancelled, false, true},
		{ReservationStatusFinished, true, true},
	}

	for _, tc := range cases {
		t.Run(tc.status, func(t *testing.T) {
			r := &Reservation{Status: tc.status}
			if got := r.Active(); got != tc.wantActive {
				t.Errorf("Active() = %v, want %v", got, tc.wantActive)
			}
			if got := r.Terminal(); got != tc.wantTerminal {
				t.Errorf("Terminal() = %v, want %v", got, tc.wantTerminal)
			}
		})
	}
}

func TestSpotTransitionAllowed(t *testing.T) {
	allowed := [][2]string{
		{SpotStatusFree, SpotStatusReserved},
		{SpotStatusReserved, SpotStatusFree},
		{SpotStatusReserved, SpotStatusOccupied},
		{SpotStatusOccupied, SpotStatusFree},
	}
	denied := [][2]string{
		{SpotStatusFree, SpotStatusOccupied},
		{SpotStatusOccupied, SpotStatusReserved},
		{SpotStatusFree, SpotStatusFree},
		{SpotStatusReserved, SpotStatusReserved},
		{"", SpotStatusFree},
		{SpotStatusFree, "parked"},
	}

	for _, pair := range allowed {
		if !SpotTransitionAllowed(pair[0], pair[1]) {
			t.Errorf("expected %s -> %s to be allowed", pair[0], pair[1])
		}
	}
	for _, pair := range denied {
		if SpotTransitionAllowed(pair[0], pair[1]) {
			t.Errorf("expected %s -> %s to be denied", pair[0], pair[1])
		}
	}
}

func TestPaymentTransitionAllowed(t *testing.T) {
	allowed := [][2]string{
		{PaymentStatusPending, PaymentStatusCompleted},
		{PaymentStatusPending, PaymentStatusFailed},
		{PaymentStatusCompleted, PaymentStatusRefunded},
	}
	denied := [][2]string{
		{PaymentStatusFailed, PaymentStatusRefunded},
		{PaymentStatusRefunded, PaymentStatusCompleted},
		{PaymentStatusCompleted, PaymentStatusPending},
		{PaymentStatusPending, PaymentStatusRefunded},
		{PaymentStatusFailed, PaymentStatusCompleted},
	}

	for _, pair := range allowed {
		if !PaymentTransitionAllowed(pair[0], pair[1]) {
			t.Errorf("expected %s -> %s to be allowed", pair[0], pair[1])
		}
	}
	for _, pair := range denied {
		if PaymentTransitionAllowed(pair[0], pair[1]) {
			t.Errorf("expected %s -> %s to be denied", pair[0], pair[1])
		}
	}
}
