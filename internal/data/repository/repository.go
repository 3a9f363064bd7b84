package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/mochiquin/safehome/pkg/database"
)

// Repository groups all data access for wiring.
type Repository struct {
	Booking BookingRepository
	Payment PaymentRepository
}

func NewRepository(db database.PgxIface, log *zap.Logger) *Repository {
	return &Repository{
		Booking: NewBookingRepository(db, log),
		Payment: NewPaymentRepository(db, log),
	}
}

// isUniqueViolation reports whether err is a Postgres unique-constraint
// violation, which the payment layer uses as a concurrency signal.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
