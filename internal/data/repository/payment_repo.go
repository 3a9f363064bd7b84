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

type PaymentRepository interface {
	// CreateIfAbsent inserts the payment unless one already exists for
	// the booking (unique index on booking_id). Returns the winning row
	// and whether this call created it. A qr_token collision surfaces as
	// ErrTokenTaken so the caller can retry with a fresh token.
	CreateIfAbsent(ctx context.Context, payment *entity.Payment) (*entity.Payment, bool, error)

	FindByID(ctx context.Context, id uuid.UUID) (*entity.Payment, error)
	FindByBookingID(ctx context.Context, bookingID uuid.UUID) (*entity.Payment, error)
	FindBySessionID(ctx context.Context, sessionID string) (*entity.Payment, error)

	// SetCheckout stores the gateway session id and the (re)computed
	// amount before the checkout URL is handed to the caller.
	SetCheckout(ctx context.Context, paymentID uuid.UUID, sessionID string, amount float64, currency string) error

	// MarkPaidIf transitions to paid only from pending/processing, in one
	// statement, setting paid_at exactly once.
	MarkPaidIf(ctx context.Context, paymentID uuid.UUID, intentID, method *string) (*entity.Payment, error)

	// UpdateStatusIf applies a guarded transition; apperr.ErrConflict
	// when the current status is not in `from`.
	UpdateStatusIf(ctx context.Context, paymentID uuid.UUID, to entity.PaymentStatus, from ...entity.PaymentStatus) (*entity.Payment, error)
}

// ErrTokenTaken signals a qr_token unique-index collision on insert.
var ErrTokenTaken = fmt.Errorf("qr token already in use")

type paymentRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewPaymentRepository(db database.PgxIface, log *zap.Logger) PaymentRepository {
	return &paymentRepository{
		db:  db,
		log: log.With(zap.String("repository", "payment")),
	}
}

const paymentColumns = `id, booking_id, amount, currency, status, qr_token,
	session_id, payment_intent_id, payment_method, metadata, paid_at,
	created_at, updated_at`

func scanPayment(row pgx.Row) (*entity.Payment, error) {
	var payment entity.Payment
	err := row.Scan(
		&payment.ID,
		&payment.BookingID,
		&payment.Amount,
		&payment.Currency,
		&payment.Status,
		&payment.QRToken,
		&payment.SessionID,
		&payment.PaymentIntentID,
		&payment.PaymentMethod,
		&payment.Metadata,
		&payment.PaidAt,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *paymentRepository) CreateIfAbsent(ctx context.Context, payment *entity.Payment) (*entity.Payment, bool, error) {
	query := `
		INSERT INTO payments (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (booking_id) DO NOTHING
		RETURNING ` + paymentColumns

	row := r.db.QueryRow(ctx, query,
		payment.ID,
		payment.BookingID,
		payment.Amount,
		payment.Currency,
		payment.Status,
		payment.QRToken,
		payment.SessionID,
		payment.PaymentIntentID,
		payment.PaymentMethod,
		payment.Metadata,
		payment.PaidAt,
		payment.CreatedAt,
		payment.UpdatedAt,
	)

	created, err := scanPayment(row)
	if err == nil {
		return created, true, nil
	}
	if err != pgx.ErrNoRows {
		if isUniqueViolation(err) {
			// booking_id conflicts are absorbed by DO NOTHING, so this
			// can only be the qr_token index.
			return nil, false, ErrTokenTaken
		}
		r.log.Error("Failed to create payment",
			zap.Error(err),
			zap.String("booking_id", payment.BookingID.String()),
		)
		return nil, false, fmt.Errorf("create payment for booking %s: %w", payment.BookingID.String(), err)
	}

	// Another caller won the insert; return their row.
	existing, err := r.FindByBookingID(ctx, payment.BookingID)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, fmt.Errorf("payment for booking %s: %w", payment.BookingID.String(), apperr.ErrNotFound)
	}

	return existing, false, nil
}

func (r *paymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`

	payment, err := scanPayment(r.db.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find payment by ID",
			zap.Error(err),
			zap.String("payment_id", id.String()),
		)
		return nil, fmt.Errorf("find payment by ID %s: %w", id.String(), err)
	}

	return payment, nil
}

func (r *paymentRepository) FindByBookingID(ctx context.Context, bookingID uuid.UUID) (*entity.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE booking_id = $1`

	payment, err := scanPayment(r.db.QueryRow(ctx, query, bookingID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find payment by booking ID",
			zap.Error(err),
			zap.String("booking_id", bookingID.String()),
		)
		return nil, fmt.Errorf("find payment by booking ID %s: %w", bookingID.String(), err)
	}

	return payment, nil
}

func (r *paymentRepository) FindBySessionID(ctx context.Context, sessionID string) (*entity.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE session_id = $1`

	payment, err := scanPayment(r.db.QueryRow(ctx, query, sessionID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find payment by session ID",
			zap.Error(err),
			zap.String("session_id", sessionID),
		)
		return nil, fmt.Errorf("find payment by session ID %s: %w", sessionID, err)
	}

	return payment, nil
}

func (r *paymentRepository) SetCheckout(ctx context.Context, paymentID uuid.UUID, sessionID string, amount float64, currency string) error {
	query := `
		UPDATE payments
		SET session_id = $2, amount = $3, currency = $4, updated_at = NOW()
		WHERE id = $1 AND status IN ('pending', 'processing')
	`

	result, err := r.db.Exec(ctx, query, paymentID, sessionID, amount, currency)
	if err != nil {
		r.log.Error("Failed to store checkout session",
			zap.Error(err),
			zap.String("payment_id", paymentID.String()),
			zap.String("session_id", sessionID),
		)
		return fmt.Errorf("store checkout session on payment %s: %w", paymentID.String(), err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("payment %s not open for checkout: %w", paymentID.String(), apperr.ErrConflict)
	}

	return nil
}

func (r *paymentRepository) MarkPaidIf(ctx context.Context, paymentID uuid.UUID, intentID, method *string) (*entity.Payment, error) {
	query := `
		UPDATE payments
		SET status = 'paid',
		    paid_at = NOW(),
		    payment_intent_id = COALESCE($2, payment_intent_id),
		    payment_method = COALESCE($3, payment_method),
		    updated_at = NOW()
		WHERE id = $1 AND status IN ('pending', 'processing')
		RETURNING ` + paymentColumns

	payment, err := scanPayment(r.db.QueryRow(ctx, query, paymentID, intentID, method))
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("mark payment %s paid: %w", paymentID.String(), apperr.ErrConflict)
	}
	if err != nil {
		r.log.Error("Failed to mark payment paid",
			zap.Error(err),
			zap.String("payment_id", paymentID.String()),
		)
		return nil, fmt.Errorf("mark payment %s paid: %w", paymentID.String(), err)
	}

	return payment, nil
}

func (r *paymentRepository) UpdateStatusIf(ctx context.Context, paymentID uuid.UUID, to entity.PaymentStatus, from ...entity.PaymentStatus) (*entity.Payment, error) {
	query := `
		UPDATE payments
		SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = ANY($3)
		RETURNING ` + paymentColumns

	fromStrs := make([]string, len(from))
	for i, s := range from {
		fromStrs[i] = string(s)
	}

	payment, err := scanPayment(r.db.QueryRow(ctx, query, paymentID, to, fromStrs))
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("update payment %s status to %s: %w", paymentID.String(), string(to), apperr.ErrConflict)
	}
	if err != nil {
		r.log.Error("Failed to update payment status",
			zap.Error(err),
			zap.String("payment_id", paymentID.String()),
			zap.String("status", string(to)),
		)
		return nil, fmt.Errorf("update payment %s status to %s: %w", paymentID.String(), string(to), err)
	}

	return payment, nil
}
