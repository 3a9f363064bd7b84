package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/mochiquin/safehome/internal/data/entity"
	"github.com/mochiquin/safehome/pkg/apperr"
	"github.com/mochiquin/safehome/pkg/database"
)

type BookingStats struct {
	Total      int64 `json:"total"`
	Pending    int64 `json:"pending"`
	Confirmed  int64 `json:"confirmed"`
	InProgress int64 `json:"in_progress"`
	Completed  int64 `json:"completed"`
	Cancelled  int64 `json:"cancelled"`
}

type BookingRepository interface {
	Create(ctx context.Context, booking *entity.Booking) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Booking, error)
	FindByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entity.Booking, error)
	CountByUserID(ctx context.Context, userID uuid.UUID) (int64, error)
	FindAvailable(ctx context.Context, limit, offset int) ([]*entity.Booking, error)
	FindByProviderID(ctx context.Context, providerID uuid.UUID, limit, offset int) ([]*entity.Booking, error)
	Update(ctx context.Context, booking *entity.Booking) error

	// ClaimForProvider resolves the acceptance race: a single conditional
	// update that assigns the provider only while the booking is still
	// pending and unassigned. Losing attempts get apperr.ErrConflict.
	ClaimForProvider(ctx context.Context, bookingID, providerID uuid.UUID) (*entity.Booking, error)

	// UpdateStatusIf applies a guarded transition in one statement;
	// apperr.ErrConflict when the booking is no longer in `from`.
	UpdateStatusIf(ctx context.Context, bookingID uuid.UUID, from, to entity.BookingStatus) (*entity.Booking, error)

	// ReleaseProvider reverts a confirmed booking to pending and clears
	// the provider, for providers that become unavailable after accepting.
	ReleaseProvider(ctx context.Context, bookingID uuid.UUID) (*entity.Booking, error)

	SetProviderQuote(ctx context.Context, bookingID uuid.UUID, quote float64) error
	StatsByUserID(ctx context.Context, userID uuid.UUID) (*BookingStats, error)
}

type bookingRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewBookingRepository(db database.PgxIface, log *zap.Logger) BookingRepository {
	return &bookingRepository{
		db:  db,
		log: log.With(zap.String("repository", "booking")),
	}
}

const bookingColumns = `id, user_id, provider_id, service_type, budget, provider_quote,
	address_enc, phone_enc, city, state, country, start_time, duration_hours,
	status, confirmation_code, notes, created_at, updated_at`

func scanBooking(row pgx.Row) (*entity.Booking, error) {
	var booking entity.Booking
	err := row.Scan(
		&booking.ID,
		&booking.UserID,
		&booking.ProviderID,
		&booking.ServiceType,
		&booking.Budget,
		&booking.ProviderQuote,
		&booking.AddressEnc,
		&booking.PhoneEnc,
		&booking.City,
		&booking.State,
		&booking.Country,
		&booking.StartTime,
		&booking.DurationHours,
		&booking.Status,
		&booking.ConfirmationCode,
		&booking.Notes,
		&booking.CreatedAt,
		&booking.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func (r *bookingRepository) Create(ctx context.Context, booking *entity.Booking) error {
	query := `
		INSERT INTO bookings (` + bookingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`

	_, err := r.db.Exec(ctx, query,
		booking.ID,
		booking.UserID,
		booking.ProviderID,
		booking.ServiceType,
		booking.Budget,
		booking.ProviderQuote,
		booking.AddressEnc,
		booking.PhoneEnc,
		booking.City,
		booking.State,
		booking.Country,
		booking.StartTime,
		booking.DurationHours,
		booking.Status,
		booking.ConfirmationCode,
		booking.Notes,
		booking.CreatedAt,
		booking.UpdatedAt,
	)

	if err != nil {
		r.log.Error("Failed to create booking",
			zap.Error(err),
			zap.String("user_id", booking.UserID.String()),
		)
		return fmt.Errorf("create booking: %w", err)
	}

	return nil
}

func (r *bookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	booking, err := scanBooking(r.db.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find booking by ID",
			zap.Error(err),
			zap.String("booking_id", id.String()),
		)
		return nil, fmt.Errorf("find booking by ID %s: %w", id.String(), err)
	}

	return booking, nil
}

func (r *bookingRepository) FindByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entity.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	return r.queryBookings(ctx, query, userID, limit, offset)
}

func (r *bookingRepository) CountByUserID(ctx context.Context, userID uuid.UUID) (int64, error) {
	query := `SELECT COUNT(*) FROM bookings WHERE user_id = $1`

	var count int64
	if err := r.db.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		r.log.Error("Failed to count bookings by user ID",
			zap.Error(err),
			zap.String("user_id", userID.String()),
		)
		return 0, fmt.Errorf("count bookings by user ID %s: %w", userID.String(), err)
	}

	return count, nil
}

func (r *bookingRepository) FindAvailable(ctx context.Context, limit, offset int) ([]*entity.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE status = 'pending' AND provider_id IS NULL
		ORDER BY start_time
		LIMIT $1 OFFSET $2
	`

	return r.queryBookings(ctx, query, limit, offset)
}

func (r *bookingRepository) FindByProviderID(ctx context.Context, providerID uuid.UUID, limit, offset int) ([]*entity.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE provider_id = $1
		ORDER BY start_time
		LIMIT $2 OFFSET $3
	`

	return r.queryBookings(ctx, query, providerID, limit, offset)
}

func (r *bookingRepository) queryBookings(ctx context.Context, query string, args ...any) ([]*entity.Booking, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.log.Error("Failed to query bookings", zap.Error(err))
		return nil, fmt.Errorf("query bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*entity.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			r.log.Error("Failed to scan booking row", zap.Error(err))
			return nil, fmt.Errorf("scan booking row: %w", err)
		}
		bookings = append(bookings, booking)
	}

	return bookings, rows.Err()
}

func (r *bookingRepository) Update(ctx context.Context, booking *entity.Booking) error {
	query := `
		UPDATE bookings
		SET service_type = $2, budget = $3, provider_quote = $4, address_enc = $5,
		    phone_enc = $6, city = $7, state = $8, country = $9, start_time = $10,
		    duration_hours = $11, notes = $12, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.Exec(ctx, query,
		booking.ID,
		booking.ServiceType,
		booking.Budget,
		booking.ProviderQuote,
		booking.AddressEnc,
		booking.PhoneEnc,
		booking.City,
		booking.State,
		booking.Country,
		booking.StartTime,
		booking.DurationHours,
		booking.Notes,
	)

	if err != nil {
		r.log.Error("Failed to update booking",
			zap.Error(err),
			zap.String("booking_id", booking.ID.String()),
		)
		return fmt.Errorf("update booking %s: %w", booking.ID.String(), err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("booking %s: %w", booking.ID.String(), apperr.ErrNotFound)
	}

	return nil
}

// ClaimForProvider is the accept race resolver. The precondition check
// and the write happen in one statement; a read-then-write sequence
// would reintroduce the race.
func (r *bookingRepository) ClaimForProvider(ctx context.Context, bookingID, providerID uuid.UUID) (*entity.Booking, error) {
	query := `
		UPDATE bookings
		SET provider_id = $2, status = 'confirmed', updated_at = NOW()
		WHERE id = $1 AND status = 'pending' AND provider_id IS NULL
		RETURNING ` + bookingColumns

	booking, err := scanBooking(r.db.QueryRow(ctx, query, bookingID, providerID))
	if err == pgx.ErrNoRows {
		return nil, r.conflictOrNotFound(ctx, bookingID, "claim")
	}
	if err != nil {
		r.log.Error("Failed to claim booking",
			zap.Error(err),
			zap.String("booking_id", bookingID.String()),
			zap.String("provider_id", providerID.String()),
		)
		return nil, fmt.Errorf("claim booking %s: %w", bookingID.String(), err)
	}

	return booking, nil
}

func (r *bookingRepository) UpdateStatusIf(ctx context.Context, bookingID uuid.UUID, from, to entity.BookingStatus) (*entity.Booking, error) {
	query := `
		UPDATE bookings
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING ` + bookingColumns

	booking, err := scanBooking(r.db.QueryRow(ctx, query, bookingID, from, to))
	if err == pgx.ErrNoRows {
		return nil, r.conflictOrNotFound(ctx, bookingID, "transition")
	}
	if err != nil {
		r.log.Error("Failed to update booking status",
			zap.Error(err),
			zap.String("booking_id", bookingID.String()),
			zap.String("to", string(to)),
		)
		return nil, fmt.Errorf("update booking %s status to %s: %w", bookingID.String(), string(to), err)
	}

	return booking, nil
}

func (r *bookingRepository) ReleaseProvider(ctx context.Context, bookingID uuid.UUID) (*entity.Booking, error) {
	query := `
		UPDATE bookings
		SET provider_id = NULL, status = 'pending', updated_at = NOW()
		WHERE id = $1 AND status = 'confirmed' AND provider_id IS NOT NULL
		RETURNING ` + bookingColumns

	booking, err := scanBooking(r.db.QueryRow(ctx, query, bookingID))
	if err == pgx.ErrNoRows {
		return nil, r.conflictOrNotFound(ctx, bookingID, "release")
	}
	if err != nil {
		r.log.Error("Failed to release booking provider",
			zap.Error(err),
			zap.String("booking_id", bookingID.String()),
		)
		return nil, fmt.Errorf("release booking %s: %w", bookingID.String(), err)
	}

	return booking, nil
}

func (r *bookingRepository) SetProviderQuote(ctx context.Context, bookingID uuid.UUID, quote float64) error {
	query := `UPDATE bookings SET provider_quote = $2, updated_at = NOW() WHERE id = $1`

	result, err := r.db.Exec(ctx, query, bookingID, quote)
	if err != nil {
		r.log.Error("Failed to set provider quote",
			zap.Error(err),
			zap.String("booking_id", bookingID.String()),
		)
		return fmt.Errorf("set provider quote on booking %s: %w", bookingID.String(), err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("booking %s: %w", bookingID.String(), apperr.ErrNotFound)
	}

	return nil
}

func (r *bookingRepository) StatsByUserID(ctx context.Context, userID uuid.UUID) (*BookingStats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'confirmed'),
			COUNT(*) FILTER (WHERE status = 'in_progress'),
			COUNT(*) FILTER (WHERE status = 'completed'),
			COUNT(*) FILTER (WHERE status = 'cancelled')
		FROM bookings
		WHERE user_id = $1
	`

	var stats BookingStats
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&stats.Total,
		&stats.Pending,
		&stats.Confirmed,
		&stats.InProgress,
		&stats.Completed,
		&stats.Cancelled,
	)
	if err != nil {
		r.log.Error("Failed to load booking stats",
			zap.Error(err),
			zap.String("user_id", userID.String()),
		)
		return nil, fmt.Errorf("booking stats for user %s: %w", userID.String(), err)
	}

	return &stats, nil
}

// conflictOrNotFound distinguishes a lost precondition from a missing
// row after a zero-row conditional update. The follow-up read only
// affects which error is reported, not which write won.
func (r *bookingRepository) conflictOrNotFound(ctx context.Context, bookingID uuid.UUID, op string) error {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM bookings WHERE id = $1)`, bookingID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("%s booking %s: %w", op, bookingID.String(), err)
	}
	if !exists {
		return fmt.Errorf("%s booking %s: %w", op, bookingID.String(), apperr.ErrNotFound)
	}
	return fmt.Errorf("%s booking %s: %w", op, bookingID.String(), apperr.ErrConflict)
}
