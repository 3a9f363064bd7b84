package request

import "time"

type CreateBookingRequest struct {
	ServiceType   string    `json:"service_type" validate:"required,oneof=cleaning plumbing electrical gardening other"`
	Budget        *float64  `json:"budget" validate:"omitempty,gt=0"`
	Address       string    `json:"address" validate:"required,max=500"`
	Phone         string    `json:"phone" validate:"required,max=50"`
	City          string    `json:"city" validate:"required,max=100"`
	State         *string   `json:"state" validate:"omitempty,max=100"`
	Country       string    `json:"country" validate:"omitempty,max=100"`
	StartTime     time.Time `json:"start_time" validate:"required"`
	DurationHours int       `json:"duration_hours" validate:"required,min=1"`
	Notes         *string   `json:"notes" validate:"omitempty,max=1000"`
}

// UpdateBookingRequest carries only the fields the owner may edit; nil
// means leave unchanged. Address and phone are re-sealed on write.
type UpdateBookingRequest struct {
	Address       *string    `json:"address" validate:"omitempty,max=500"`
	Phone         *string    `json:"phone" validate:"omitempty,max=50"`
	City          *string    `json:"city" validate:"omitempty,max=100"`
	State         *string    `json:"state" validate:"omitempty,max=100"`
	Country       *string    `json:"country" validate:"omitempty,max=100"`
	StartTime     *time.Time `json:"start_time"`
	DurationHours *int       `json:"duration_hours" validate:"omitempty,min=1"`
	Notes         *string    `json:"notes" validate:"omitempty,max=1000"`
}

type ProviderQuoteRequest struct {
	Amount float64 `json:"amount" validate:"required,gt=0"`
}

type StartJobRequest struct {
	ConfirmationCode string `json:"confirmation_code" validate:"required,len=4"`
}
