package entity

import (
	"time"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	BookingStatusPending    BookingStatus = "pending"
	BookingStatusConfirmed  BookingStatus = "confirmed"
	BookingStatusInProgress BookingStatus = "in_progress"
	BookingStatusCompleted  BookingStatus = "completed"
	BookingStatusCancelled  BookingStatus = "cancelled"
)

type ServiceType string

const (
	ServiceTypeCleaning   ServiceType = "cleaning"
	ServiceTypePlumbing   ServiceType = "plumbing"
	ServiceTypeElectrical ServiceType = "electrical"
	ServiceTypeGardening  ServiceType = "gardening"
	ServiceTypeOther      ServiceType = "other"
)

// Booking is a customer's service request. AddressEnc and PhoneEnc hold
// sealed envelope ciphertext and are never stored or logged in plaintext.
// ProviderID stays nil until a provider wins the acceptance race.
type Booking struct {
	Base
	UserID           uuid.UUID     `db:"user_id"`
	ProviderID       *uuid.UUID    `db:"provider_id"`
	ServiceType      ServiceType   `db:"service_type"`
	Budget           *float64      `db:"budget"`
	ProviderQuote    *float64      `db:"provider_quote"`
	AddressEnc       string        `db:"address_enc"`
	PhoneEnc         string        `db:"phone_enc"`
	City             string        `db:"city"`
	State            *string       `db:"state"`
	Country          string        `db:"country"`
	StartTime        time.Time     `db:"start_time"`
	DurationHours    int           `db:"duration_hours"`
	Status           BookingStatus `db:"status"`
	ConfirmationCode string        `db:"confirmation_code"`
	Notes            *string       `db:"notes"`
}

// bookingTransitions maps each lifecycle action to the statuses it may
// fire from. Terminal states (completed, cancelled) appear on no
// right-hand side.
var bookingTransitions = map[string][]BookingStatus{
	"accept":   {BookingStatusPending},
	"start":    {BookingStatusConfirmed},
	"complete": {BookingStatusInProgress},
	"cancel":   {BookingStatusPending, BookingStatusConfirmed},
	"update":   {BookingStatusPending, BookingStatusConfirmed, BookingStatusInProgress},
	"quote":    {BookingStatusConfirmed, BookingStatusInProgress},
	"release":  {BookingStatusConfirmed},
}

// ValidBookingTransition reports whether action may fire from the given
// status. Unknown actions are never valid.
func ValidBookingTransition(action string, from BookingStatus) bool {
	allowed, ok := bookingTransitions[action]
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

// IsTerminal reports whether the booking reached a final state.
func (b *Booking) IsTerminal() bool {
	return b.Status == BookingStatusCompleted || b.Status == BookingStatusCancelled
}

// IsOwnedBy reports whether userID is the requesting customer.
func (b *Booking) IsOwnedBy(userID uuid.UUID) bool {
	return b.UserID == userID
}

// IsAssignedTo reports whether providerID is the accepted provider.
func (b *Booking) IsAssignedTo(providerID uuid.UUID) bool {
	return b.ProviderID != nil && *b.ProviderID == providerID
}

// Price returns the amount a checkout session should charge: the
// provider's counter-quote when present, otherwise the customer budget.
func (b *Booking) Price() (float64, bool) {
	if b.ProviderQuote != nil && *b.ProviderQuote > 0 {
		return *b.ProviderQuote, true
	}
	if b.Budget != nil && *b.Budget > 0 {
		return *b.Budget, true
	}
	return 0, false
}

// ValidServiceType reports whether s is one of the service categories.
func ValidServiceType(s ServiceType) bool {
	switch s {
	case ServiceTypeCleaning, ServiceTypePlumbing, ServiceTypeElectrical,
		ServiceTypeGardening, ServiceTypeOther:
		return true
	}
	return false
}
