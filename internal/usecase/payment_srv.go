package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mochiquin/safehome/internal/data/entity"
	"github.com/mochiquin/safehome/internal/data/repository"
	"github.com/mochiquin/safehome/internal/dto/request"
	"github.com/mochiquin/safehome/internal/dto/response"
	"github.com/mochiquin/safehome/internal/gateway"
	"github.com/mochiquin/safehome/pkg/apperr"
	"github.com/mochiquin/safehome/pkg/utils"
)

const defaultCurrency = "usd"

// qrRetryLimit bounds how many fresh tokens we try when an insert loses
// the global qr_token uniqueness race. Collisions on a 256-bit token are
// effectively unreachable, so one retry already covers it.
const qrRetryLimit = 3

type PaymentService interface {
	// GetPayment returns the booking's payment, creating it lazily on
	// first access. Owner only.
	GetPayment(ctx context.Context, userID, bookingID string) (*response.PaymentResponse, error)

	// CreateCheckoutSession opens a gateway checkout for the booking's
	// current price. The session id is persisted before the URL is
	// returned so reconciliation can always correlate.
	CreateCheckoutSession(ctx context.Context, userID string, req *request.CreateCheckoutRequest) (*response.CheckoutResponse, error)

	// HandleWebhook is the push half of reconciliation: verify, then
	// apply. Safe to call any number of times per event.
	HandleWebhook(ctx context.Context, payload []byte, sigHeader string) error

	// VerifySession is the pull half: re-read the session from the
	// gateway and converge local state to it.
	VerifySession(ctx context.Context, userID, sessionID string) (*response.VerifySessionResponse, error)

	GetQRData(ctx context.Context, callerID, bookingID string) (*response.QRDataResponse, error)
	RefundPayment(ctx context.Context, userID, bookingID string) (*response.PaymentResponse, error)
}

type paymentService struct {
	repo     *repository.Repository
	gw       gateway.Client
	verifier *gateway.WebhookVerifier
	config   *utils.Config
	log      *zap.Logger
}

func NewPaymentService(
	repo *repository.Repository,
	gw gateway.Client,
	verifier *gateway.WebhookVerifier,
	config *utils.Config,
	log *zap.Logger,
) PaymentService {
	return &paymentService{
		repo:     repo,
		gw:       gw,
		verifier: verifier,
		config:   config,
		log:      log.With(zap.String("service", "payment")),
	}
}

func (s *paymentService) GetPayment(ctx context.Context, userID, bookingID string) (*response.PaymentResponse, error) {
	userUUID, booking, err := s.loadBooking(ctx, userID, bookingID)
	if err != nil {
		return nil, err
	}
	if !booking.IsOwnedBy(userUUID) {
		return nil, fmt.Errorf("booking %s: %w", bookingID, apperr.ErrNotFound)
	}

	payment, err := s.ensurePayment(ctx, booking)
	if err != nil {
		return nil, err
	}

	resp := response.PaymentToResponse(payment)
	return &resp, nil
}

func (s *paymentService) CreateCheckoutSession(ctx context.Context, userID string, req *request.CreateCheckoutRequest) (*response.CheckoutResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return nil, fmt.Errorf("%w: %s", apperr.ErrValidation, utils.FormatValidationErrors(errs))
	}

	userUUID, booking, err := s.loadBooking(ctx, userID, req.BookingID)
	if err != nil {
		return nil, err
	}
	if !booking.IsOwnedBy(userUUID) {
		return nil, fmt.Errorf("booking %s: %w", req.BookingID, apperr.ErrNotFound)
	}
	if booking.Status == entity.BookingStatusCancelled {
		return nil, fmt.Errorf("booking %s is cancelled: %w", req.BookingID, apperr.ErrConflict)
	}

	payment, err := s.ensurePayment(ctx, booking)
	if err != nil {
		return nil, err
	}
	if payment.IsPaid() {
		return nil, fmt.Errorf("booking %s is already paid: %w", req.BookingID, apperr.ErrConflict)
	}

	// The price is recomputed here, not read from the payment row, so a
	// provider quote set after payment creation is what gets charged.
	price, ok := booking.Price()
	if !ok {
		return nil, fmt.Errorf("booking %s has no budget or quote: %w", req.BookingID, apperr.ErrPricingUnavailable)
	}

	frontend := s.config.App.FrontendURL
	session, err := s.gw.CreateCheckoutSession(ctx, gateway.CheckoutParams{
		AmountCents: int64(math.Round(price * 100)),
		Currency:    defaultCurrency,
		Description: fmt.Sprintf("%s service, %d hour(s)", booking.ServiceType, booking.DurationHours),
		BookingID:   booking.ID.String(),
		UserID:      userID,
		SuccessURL:  frontend + "/payment/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:   frontend + "/payment/cancel",
	})
	if err != nil {
		return nil, err
	}

	// Persist the session before the URL leaves the process, otherwise a
	// crash here would leave a session the webhook cannot correlate.
	if err := s.repo.Payment.SetCheckout(ctx, payment.ID, session.ID, price, defaultCurrency); err != nil {
		return nil, err
	}

	s.log.Info("Checkout session created",
		zap.String("booking_id", req.BookingID),
		zap.String("session_id", session.ID),
		zap.Float64("amount", price),
	)

	return &response.CheckoutResponse{
		CheckoutURL: session.URL,
		SessionID:   session.ID,
	}, nil
}

func (s *paymentService) HandleWebhook(ctx context.Context, payload []byte, sigHeader string) error {
	event, err := s.verifier.VerifyAndParse(payload, sigHeader)
	if err != nil {
		return err
	}

	switch event.Type {
	case gateway.EventCheckoutCompleted:
		return s.applyCheckoutCompleted(ctx, event)
	case gateway.EventPaymentFailed:
		return s.applyPaymentFailed(ctx, event)
	default:
		s.log.Debug("Ignoring webhook event",
			zap.String("event_id", event.ID),
			zap.String("event_type", event.Type),
		)
		return nil
	}
}

func (s *paymentService) applyCheckoutCompleted(ctx context.Context, event *gateway.Event) error {
	if !event.Session.Paid() {
		s.log.Info("Checkout completed but unpaid, ignoring",
			zap.String("event_id", event.ID),
			zap.String("session_id", event.Session.ID),
		)
		return nil
	}

	payment, err := s.findEventPayment(ctx, &event.Session)
	if err != nil {
		return err
	}
	if payment == nil {
		// Ack deliveries we cannot correlate so the gateway stops
		// retrying; the polling path remains available.
		s.log.Warn("Webhook for unknown payment, acknowledging",
			zap.String("event_id", event.ID),
			zap.String("session_id", event.Session.ID),
		)
		return nil
	}

	return s.markPaid(ctx, payment, &event.Session)
}

func (s *paymentService) applyPaymentFailed(ctx context.Context, event *gateway.Event) error {
	payment, err := s.findEventPayment(ctx, &event.Session)
	if err != nil {
		return err
	}
	if payment == nil {
		s.log.Warn("Failure webhook for unknown payment, acknowledging",
			zap.String("event_id", event.ID),
		)
		return nil
	}

	_, err = s.repo.Payment.UpdateStatusIf(ctx, payment.ID, entity.PaymentStatusFailed,
		entity.PaymentStatusPending, entity.PaymentStatusProcessing)
	if errors.Is(err, apperr.ErrConflict) {
		// Already settled one way or the other; the failure event is
		// stale and carries no new information.
		s.log.Info("Failure event arrived after settlement, ignoring",
			zap.String("payment_id", payment.ID.String()),
		)
		return nil
	}
	if err != nil {
		return err
	}

	s.log.Info("Payment marked failed",
		zap.String("payment_id", payment.ID.String()),
		zap.String("event_id", event.ID),
	)
	return nil
}

// findEventPayment correlates a webhook object to a local payment,
// preferring the booking_id metadata and falling back to the session id.
func (s *paymentService) findEventPayment(ctx context.Context, session *gateway.Session) (*entity.Payment, error) {
	if raw, ok := session.Metadata["booking_id"]; ok {
		bookingUUID, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("bad booking_id metadata: %w", apperr.ErrMalformedPayload)
		}
		return s.repo.Payment.FindByBookingID(ctx, bookingUUID)
	}
	if session.ID != "" {
		return s.repo.Payment.FindBySessionID(ctx, session.ID)
	}
	return nil, nil
}

func (s *paymentService) VerifySession(ctx context.Context, userID, sessionID string) (*response.VerifySessionResponse, error) {
	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid user ID %s", apperr.ErrValidation, userID)
	}

	payment, err := s.repo.Payment.FindBySessionID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, fmt.Errorf("session %s: %w", sessionID, apperr.ErrNotFound)
	}

	booking, err := s.repo.Booking.FindByID(ctx, payment.BookingID)
	if err != nil {
		return nil, err
	}
	if booking == nil || !booking.IsOwnedBy(userUUID) {
		return nil, fmt.Errorf("session %s: %w", sessionID, apperr.ErrForbidden)
	}

	session, err := s.gw.RetrieveSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if session.Paid() {
		if err := s.markPaid(ctx, payment, session); err != nil {
			return nil, err
		}
	}

	return &response.VerifySessionResponse{
		SessionID:     sessionID,
		PaymentStatus: session.PaymentStatus,
		Amount:        payment.Amount,
		Currency:      payment.Currency,
	}, nil
}

func (s *paymentService) GetQRData(ctx context.Context, callerID, bookingID string) (*response.QRDataResponse, error) {
	callerUUID, booking, err := s.loadBooking(ctx, callerID, bookingID)
	if err != nil {
		return nil, err
	}
	if !booking.IsOwnedBy(callerUUID) && !booking.IsAssignedTo(callerUUID) {
		return nil, fmt.Errorf("booking %s: %w", bookingID, apperr.ErrNotFound)
	}

	payment, err := s.ensurePayment(ctx, booking)
	if err != nil {
		return nil, err
	}

	return &response.QRDataResponse{
		QRToken:  payment.QRToken,
		Status:   string(payment.Status),
		Amount:   payment.Amount,
		Currency: payment.Currency,
	}, nil
}

func (s *paymentService) RefundPayment(ctx context.Context, userID, bookingID string) (*response.PaymentResponse, error) {
	userUUID, booking, err := s.loadBooking(ctx, userID, bookingID)
	if err != nil {
		return nil, err
	}
	if !booking.IsOwnedBy(userUUID) {
		return nil, fmt.Errorf("booking %s: %w", bookingID, apperr.ErrNotFound)
	}
	if booking.Status != entity.BookingStatusCancelled {
		return nil, fmt.Errorf("booking %s is %s, refund requires a cancelled booking: %w",
			bookingID, booking.Status, apperr.ErrConflict)
	}

	payment, err := s.repo.Payment.FindByBookingID(ctx, booking.ID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, fmt.Errorf("payment for booking %s: %w", bookingID, apperr.ErrNotFound)
	}
	if !entity.ValidPaymentTransition("refund", payment.Status) {
		return nil, fmt.Errorf("payment %s is %s: %w", payment.ID.String(), payment.Status, apperr.ErrConflict)
	}

	updated, err := s.repo.Payment.UpdateStatusIf(ctx, payment.ID, entity.PaymentStatusRefunded, entity.PaymentStatusPaid)
	if err != nil {
		return nil, err
	}

	s.log.Info("Payment refunded",
		zap.String("payment_id", payment.ID.String()),
		zap.String("booking_id", bookingID),
	)

	resp := response.PaymentToResponse(updated)
	return &resp, nil
}

// ensurePayment returns the booking's payment, creating it when absent.
// The unique index on booking_id makes concurrent first access safe:
// both callers end up holding the same row. A qr_token collision gets a
// fresh token and another attempt.
func (s *paymentService) ensurePayment(ctx context.Context, booking *entity.Booking) (*entity.Payment, error) {
	existing, err := s.repo.Payment.FindByBookingID(ctx, booking.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	// An unpriced booking gets no payment row; a $0 payment would hand
	// out a QR token for a charge that does not exist.
	amount, ok := booking.Price()
	if !ok {
		return nil, fmt.Errorf("booking %s has no budget or quote: %w", booking.ID.String(), apperr.ErrPricingUnavailable)
	}

	for attempt := 0; attempt < qrRetryLimit; attempt++ {
		token, err := utils.GenerateQRToken()
		if err != nil {
			return nil, err
		}

		now := time.Now()
		payment, created, err := s.repo.Payment.CreateIfAbsent(ctx, &entity.Payment{
			Base: entity.Base{
				ID:        uuid.New(),
				CreatedAt: now,
				UpdatedAt: now,
			},
			BookingID: booking.ID,
			Amount:    amount,
			Currency:  defaultCurrency,
			Status:    entity.PaymentStatusPending,
			QRToken:   token,
		})
		if errors.Is(err, repository.ErrTokenTaken) {
			s.log.Warn("QR token collision, retrying",
				zap.String("booking_id", booking.ID.String()),
				zap.Int("attempt", attempt+1),
			)
			continue
		}
		if err != nil {
			return nil, err
		}

		if created {
			s.log.Info("Payment created",
				zap.String("payment_id", payment.ID.String()),
				zap.String("booking_id", booking.ID.String()),
			)
		}
		return payment, nil
	}

	return nil, fmt.Errorf("create payment for booking %s: %w", booking.ID.String(), repository.ErrTokenTaken)
}

// markPaid settles the payment exactly once, recording the gateway's
// intent reference and payment method. A lost conditional update is
// re-read: if someone else already settled it, this delivery is a
// duplicate and succeeds as a no-op with paid_at untouched.
func (s *paymentService) markPaid(ctx context.Context, payment *entity.Payment, session *gateway.Session) error {
	var intentID, method *string
	if session.PaymentIntent != "" {
		intentID = &session.PaymentIntent
	}
	if len(session.PaymentMethodTypes) > 0 {
		method = &session.PaymentMethodTypes[0]
	}

	updated, err := s.repo.Payment.MarkPaidIf(ctx, payment.ID, intentID, method)
	if errors.Is(err, apperr.ErrConflict) {
		current, ferr := s.repo.Payment.FindByID(ctx, payment.ID)
		if ferr != nil {
			return ferr
		}
		if current != nil && current.IsPaid() {
			s.log.Info("Duplicate settlement, payment already paid",
				zap.String("payment_id", payment.ID.String()),
			)
			return nil
		}
		return fmt.Errorf("payment %s cannot be settled from %s: %w",
			payment.ID.String(), currentStatus(current), apperr.ErrConflict)
	}
	if err != nil {
		return err
	}

	s.log.Info("Payment marked paid",
		zap.String("payment_id", updated.ID.String()),
		zap.String("booking_id", updated.BookingID.String()),
	)
	return nil
}

func currentStatus(payment *entity.Payment) entity.PaymentStatus {
	if payment == nil {
		return "unknown"
	}
	return payment.Status
}

// loadBooking parses both IDs and fetches the booking; a missing row is
// apperr.ErrNotFound.
func (s *paymentService) loadBooking(ctx context.Context, callerID, bookingID string) (uuid.UUID, *entity.Booking, error) {
	callerUUID, err := uuid.Parse(callerID)
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("%w: invalid caller ID %s", apperr.ErrValidation, callerID)
	}
	bookingUUID, err := uuid.Parse(bookingID)
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("%w: invalid booking ID %s", apperr.ErrValidation, bookingID)
	}

	booking, err := s.repo.Booking.FindByID(ctx, bookingUUID)
	if err != nil {
		return uuid.Nil, nil, err
	}
	if booking == nil {
		return uuid.Nil, nil, fmt.Errorf("booking %s: %w", bookingID, apperr.ErrNotFound)
	}

	return callerUUID, booking, nil
}
