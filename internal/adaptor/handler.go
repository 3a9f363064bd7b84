package adaptor

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/mochiquin/safehome/internal/usecase"
	"github.com/mochiquin/safehome/pkg/apperr"
	"github.com/mochiquin/safehome/pkg/utils"
)

type Handler struct {
	Booking *BookingHandler
	Payment *PaymentHandler
	Covid   *CovidHandler
}

func NewHandler(service *usecase.Service, log *zap.Logger) *Handler {
	return &Handler{
		Booking: NewBookingHandler(service.Booking, log),
		Payment: NewPaymentHandler(service.Payment, log),
		Covid:   NewCovidHandler(service.Covid, log),
	}
}

// handleServiceError maps the usecase error taxonomy onto HTTP status
// codes. Unrecognized errors are logged and reported as 500 without
// leaking their text.
func handleServiceError(w http.ResponseWriter, log *zap.Logger, err error, op string) {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		utils.ResponseBadRequest(w, err.Error(), nil)
	case errors.Is(err, apperr.ErrMalformedPayload):
		utils.ResponseBadRequest(w, "Malformed payload", nil)
	case errors.Is(err, apperr.ErrInvalidSignature):
		utils.ResponseBadRequest(w, "Invalid signature", nil)
	case errors.Is(err, apperr.ErrPricingUnavailable):
		utils.ResponseBadRequest(w, "No budget or quote available for this booking", nil)
	case errors.Is(err, apperr.ErrNotFound):
		utils.ResponseNotFound(w, "Resource not found")
	case errors.Is(err, apperr.ErrForbidden):
		utils.ResponseForbidden(w, "Access denied")
	case errors.Is(err, apperr.ErrConflict):
		utils.ResponseConflict(w, "Request conflicts with current state")
	case errors.Is(err, apperr.ErrGatewayUnavailable):
		utils.ResponseBadGateway(w, "Payment gateway unavailable, try again later")
	default:
		log.Error("Unhandled service error", zap.String("op", op), zap.Error(err))
		utils.ResponseInternalError(w, "Internal server error")
	}
}
