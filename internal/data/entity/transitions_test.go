package entity

import "testing"

func TestValidBookingTransition(t *testing.T) {
	cases := []struct {
		action string
		from   BookingStatus
		valid  bool
	}{
		{"accept", BookingStatusPending, true},
		{"accept", BookingStatusConfirmed, false},
		{"accept", BookingStatusCancelled, false},
		{"start", BookingStatusConfirmed, true},
		{"start", BookingStatusPending, false},
		{"start", BookingStatusInProgress, false},
		{"complete", BookingStatusInProgress, true},
		{"complete", BookingStatusConfirmed, false},
		{"cancel", BookingStatusPending, true},
		{"cancel", BookingStatusConfirmed, true},
		{"cancel", BookingStatusCompleted, false},
		{"cancel", BookingStatusCancelled, false},
		{"update", BookingStatusPending, true},
		{"update", BookingStatusCompleted, false},
		{"quote", BookingStatusConfirmed, true},
		{"quote", BookingStatusPending, false},
		{"release", BookingStatusConfirmed, true},
		{"release", BookingStatusInProgress, false},
		{"unknown", BookingStatusPending, false},
	}

	for _, tt := range cases {
		if got := ValidBookingTransition(tt.action, tt.from); got != tt.valid {
			t.Fatalf("ValidBookingTransition(%q, %q)=%v, want %v", tt.action, tt.from, got, tt.valid)
		}
	}
}

func TestValidPaymentTransition(t *testing.T) {
	cases := []struct {
		action string
		from   PaymentStatus
		valid  bool
	}{
		{"mark_paid", PaymentStatusPending, true},
		{"mark_paid", PaymentStatusProcessing, true},
		{"mark_paid", PaymentStatusFailed, false},
		{"mark_failed", PaymentStatusPending, true},
		{"mark_failed", PaymentStatusPaid, false},
		{"cancel", PaymentStatusPending, true},
		{"cancel", PaymentStatusPaid, false},
		{"refund", PaymentStatusPaid, true},
		{"refund", PaymentStatusPending, false},
		{"refund", PaymentStatusRefunded, false},
		{"unknown", PaymentStatusPending, false},
	}

	for _, tt := range cases {
		if got := ValidPaymentTransition(tt.action, tt.from); got != tt.valid {
			t.Fatalf("ValidPaymentTransition(%q, %q)=%v, want %v", tt.action, tt.from, got, tt.valid)
		}
	}
}

func TestBookingPrice(t *testing.T) {
	budget := 100.0
	quote := 120.0

	b := Booking{}
	if _, ok := b.Price(); ok {
		t.Fatal("expected no price when neither budget nor quote is set")
	}

	b.Budget = &budget
	if price, ok := b.Price(); !ok || price != 100.0 {
		t.Fatalf("got (%v, %v), want budget 100.0", price, ok)
	}

	b.ProviderQuote = &quote
	if price, ok := b.Price(); !ok || price != 120.0 {
		t.Fatalf("got (%v, %v), want quote 120.0 to win over budget", price, ok)
	}
}
