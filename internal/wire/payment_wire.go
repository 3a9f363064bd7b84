package wire

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mochiquin/safehome/internal/adaptor"
	"github.com/mochiquin/safehome/pkg/middleware"
	"github.com/mochiquin/safehome/pkg/utils"
)

func wirePayment(
	r chi.Router,
	paymentHandler *adaptor.PaymentHandler,
	config *utils.Config,
	log *zap.Logger,
) {
	// ==================== PROTECTED ROUTES ====================
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthBearer(config.JWT.Secret, log))

		// POST /api/payments/checkout - Create a gateway checkout session
		r.Post("/api/payments/checkout", paymentHandler.CreateCheckout)

		// GET /api/payments/verify?session_id= - Polling fallback verification
		r.Get("/api/payments/verify", paymentHandler.VerifySession)

		// GET /api/bookings/{id}/payment - Booking's payment (lazy-created)
		r.Get("/api/bookings/{id}/payment", paymentHandler.GetPayment)

		// GET /api/bookings/{id}/qr - QR payload for on-site confirmation
		r.Get("/api/bookings/{id}/qr", paymentHandler.GetQRData)

		// POST /api/bookings/{id}/refund - Refund after a paid cancellation
		r.Post("/api/bookings/{id}/refund", paymentHandler.RefundPayment)
	})

	// ==================== PUBLIC ROUTES ====================
	// POST /api/payments/webhook - Gateway deliveries; authenticated by
	// signature, never by bearer token.
	r.Post("/api/payments/webhook", paymentHandler.HandleWebhook)
}
