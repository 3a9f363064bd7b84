package request

type CreateCheckoutRequest struct {
	BookingID string `json:"booking_id" validate:"required,uuid"`
}
