package wire

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mochiquin/safehome/internal/adaptor"
	"github.com/mochiquin/safehome/pkg/middleware"
	"github.com/mochiquin/safehome/pkg/utils"
)

func wireBooking(
	r chi.Router,
	bookingHandler *adaptor.BookingHandler,
	config *utils.Config,
	log *zap.Logger,
) {
	// ==================== CUSTOMER ROUTES ====================
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthBearer(config.JWT.Secret, log))

		// POST /api/bookings - Create a service booking
		r.Post("/api/bookings", bookingHandler.CreateBooking)

		// GET /api/bookings - Caller's booking history (no PII)
		r.Get("/api/bookings", bookingHandler.GetUserBookings)

		// GET /api/bookings/stats - Caller's per-status counts
		r.Get("/api/bookings/stats", bookingHandler.GetStats)

		// GET /api/bookings/{id} - Detail view with decrypted contact fields
		r.Get("/api/bookings/{id}", bookingHandler.GetBooking)

		// PUT /api/bookings/{id} - Owner edits (PII re-sealed)
		r.Put("/api/bookings/{id}", bookingHandler.UpdateBooking)

		// POST /api/bookings/{id}/cancel - Owner cancel
		r.Post("/api/bookings/{id}/cancel", bookingHandler.CancelBooking)

		// POST /api/bookings/{id}/release - Return a confirmed booking to the pool
		r.Post("/api/bookings/{id}/release", bookingHandler.ReleaseBooking)
	})

	// ==================== PROVIDER ROUTES ====================
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthBearer(config.JWT.Secret, log))
		r.Use(middleware.RequireRole(utils.RoleProvider, log))

		// GET /api/bookings/available - Open pool: pending and unassigned
		r.Get("/api/bookings/available", bookingHandler.GetAvailableTasks)

		// GET /api/bookings/received - Caller's accepted jobs
		r.Get("/api/bookings/received", bookingHandler.GetReceivedOrders)

		// POST /api/bookings/{id}/accept - Claim a pending booking (409 on lost race)
		r.Post("/api/bookings/{id}/accept", bookingHandler.AcceptBooking)

		// POST /api/bookings/{id}/quote - Counter-quote on an accepted job
		r.Post("/api/bookings/{id}/quote", bookingHandler.QuoteBooking)

		// POST /api/bookings/{id}/start - Begin work (confirmation code required)
		r.Post("/api/bookings/{id}/start", bookingHandler.StartJob)

		// POST /api/bookings/{id}/complete - Finish work
		r.Post("/api/bookings/{id}/complete", bookingHandler.CompleteJob)
	})
}
