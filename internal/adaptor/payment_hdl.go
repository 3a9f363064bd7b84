package adaptor

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mochiquin/safehome/internal/dto/request"
	"github.com/mochiquin/safehome/internal/usecase"
	"github.com/mochiquin/safehome/pkg/utils"
)

// maxWebhookBody bounds webhook payload reads; real gateway events are
// a few KB.
const maxWebhookBody = 1 << 20

type PaymentHandler struct {
	service usecase.PaymentService
	log     *zap.Logger
}

func NewPaymentHandler(service usecase.PaymentService, log *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		service: service,
		log:     log.With(zap.String("handler", "payment")),
	}
}

// GetPayment handles GET /api/bookings/{id}/payment (protected)
func (h *PaymentHandler) GetPayment(w http.ResponseWriter, r *http.Request) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return
	}

	payment, err := h.service.GetPayment(r.Context(), userID.String(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, h.log, err, "get payment")
		return
	}

	utils.ResponseSuccess(w, "success", payment)
}

// CreateCheckout handles POST /api/payments/checkout (protected)
func (h *PaymentHandler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return
	}

	var req request.CreateCheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	checkout, err := h.service.CreateCheckoutSession(r.Context(), userID.String(), &req)
	if err != nil {
		handleServiceError(w, h.log, err, "create checkout")
		return
	}

	utils.ResponseCreated(w, "success", checkout)
}

// HandleWebhook handles POST /api/payments/webhook (public, signature
// verified). The raw body is what the signature covers, so it must not
// be decoded before verification.
func (h *PaymentHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		utils.ResponseBadRequest(w, "Unreadable payload", nil)
		return
	}

	if err := h.service.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature")); err != nil {
		handleServiceError(w, h.log, err, "handle webhook")
		return
	}

	utils.ResponseSuccess(w, "received", nil)
}

// VerifySession handles GET /api/payments/verify?session_id= (protected)
func (h *PaymentHandler) VerifySession(w http.ResponseWriter, r *http.Request) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return
	}

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		utils.ResponseBadRequest(w, "session_id is required", nil)
		return
	}

	result, err := h.service.VerifySession(r.Context(), userID.String(), sessionID)
	if err != nil {
		handleServiceError(w, h.log, err, "verify session")
		return
	}

	utils.ResponseSuccess(w, "success", result)
}

// GetQRData handles GET /api/bookings/{id}/qr (protected)
func (h *PaymentHandler) GetQRData(w http.ResponseWriter, r *http.Request) {
	callerID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return
	}

	qr, err := h.service.GetQRData(r.Context(), callerID.String(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, h.log, err, "get qr data")
		return
	}

	utils.ResponseSuccess(w, "success", qr)
}

// RefundPayment handles POST /api/bookings/{id}/refund (protected)
func (h *PaymentHandler) RefundPayment(w http.ResponseWriter, r *http.Request) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return
	}

	payment, err := h.service.RefundPayment(r.Context(), userID.String(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, h.log, err, "refund payment")
		return
	}

	utils.ResponseSuccess(w, "success", payment)
}
