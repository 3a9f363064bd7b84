package response

import (
	"time"

	"github.com/mochiquin/safehome/internal/data/entity"
)

// BookingResponse lists booking state without PII; address and phone
// stay sealed and are only exposed on the owner's detail view.
type BookingResponse struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	ProviderID    *string    `json:"provider_id,omitempty"`
	ServiceType   string     `json:"service_type"`
	Budget        *float64   `json:"budget,omitempty"`
	ProviderQuote *float64   `json:"provider_quote,omitempty"`
	City          string     `json:"city"`
	State         *string    `json:"state,omitempty"`
	Country       string     `json:"country"`
	StartTime     time.Time  `json:"start_time"`
	DurationHours int        `json:"duration_hours"`
	Status        string     `json:"status"`
	Notes         *string    `json:"notes,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// BookingDetailResponse adds decrypted contact fields and the
// confirmation code for the owner's view.
type BookingDetailResponse struct {
	BookingResponse
	Address          string `json:"address"`
	Phone            string `json:"phone"`
	ConfirmationCode string `json:"confirmation_code"`
}

func BookingToResponse(booking *entity.Booking) BookingResponse {
	resp := BookingResponse{
		ID:            booking.ID.String(),
		UserID:        booking.UserID.String(),
		ServiceType:   string(booking.ServiceType),
		Budget:        booking.Budget,
		ProviderQuote: booking.ProviderQuote,
		City:          booking.City,
		State:         booking.State,
		Country:       booking.Country,
		StartTime:     booking.StartTime,
		DurationHours: booking.DurationHours,
		Status:        string(booking.Status),
		Notes:         booking.Notes,
		CreatedAt:     booking.CreatedAt,
		UpdatedAt:     booking.UpdatedAt,
	}
	if booking.ProviderID != nil {
		providerID := booking.ProviderID.String()
		resp.ProviderID = &providerID
	}
	return resp
}
