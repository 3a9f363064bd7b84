package entity

import (
	"time"

	"github.com/google/uuid"
)

type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusPaid       PaymentStatus = "paid"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusCancelled  PaymentStatus = "cancelled"
	PaymentStatusRefunded   PaymentStatus = "refunded"
)

// Payment is the single payment record for a booking. BookingID carries a
// unique index so concurrent creation cannot produce two rows; QRToken is
// unique across all payments. PaidAt is set exactly once, on the first
// transition to paid.
type Payment struct {
	Base
	BookingID       uuid.UUID     `db:"booking_id"`
	Amount          float64       `db:"amount"`
	Currency        string        `db:"currency"`
	Status          PaymentStatus `db:"status"`
	QRToken         string        `db:"qr_token"`
	SessionID       *string       `db:"session_id"`
	PaymentIntentID *string       `db:"payment_intent_id"`
	PaymentMethod   *string       `db:"payment_method"`
	Metadata        []byte        `db:"metadata"`
	PaidAt          *time.Time    `db:"paid_at"`
}

var paymentTransitions = map[string][]PaymentStatus{
	"mark_paid":   {PaymentStatusPending, PaymentStatusProcessing},
	"mark_failed": {PaymentStatusPending, PaymentStatusProcessing},
	"cancel":      {PaymentStatusPending, PaymentStatusProcessing},
	"refund":      {PaymentStatusPaid},
}

// ValidPaymentTransition reports whether action may fire from the given
// status. Note mark_paid on an already-paid record is not a valid
// transition here; the usecase treats that case as an idempotent no-op
// rather than an error.
func ValidPaymentTransition(action string, from PaymentStatus) bool {
	allowed, ok := paymentTransitions[action]
	if !ok {
		return false
	}
	for _, status := range allowed {
		if status == from {
			return true
		}
	}
	return false
}

// IsPaid reports whether money has been captured.
func (p *Payment) IsPaid() bool {
	return p.Status == PaymentStatusPaid
}
