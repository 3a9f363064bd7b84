package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mochiquin/safehome/internal/data/entity"
	"github.com/mochiquin/safehome/internal/data/repository"
	"github.com/mochiquin/safehome/internal/gateway"
	"github.com/mochiquin/safehome/pkg/apperr"
	"github.com/mochiquin/safehome/pkg/crypto"
	"github.com/mochiquin/safehome/pkg/utils"
)

// fakeBookingRepo mirrors the storage-level atomicity contract: every
// conditional update checks and writes under one lock acquisition, the
// way a single UPDATE statement does.
type fakeBookingRepo struct {
	mu       sync.Mutex
	bookings map[uuid.UUID]*entity.Booking
}

func newFakeBookingRepo() *fakeBookingRepo {
	return &fakeBookingRepo{bookings: make(map[uuid.UUID]*entity.Booking)}
}

func (r *fakeBookingRepo) Create(_ context.Context, booking *entity.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *booking
	r.bookings[booking.ID] = &cp
	return nil
}

func (r *fakeBookingRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	booking, ok := r.bookings[id]
	if !ok {
		return nil, nil
	}
	cp := *booking
	return &cp, nil
}

func (r *fakeBookingRepo) FindByUserID(_ context.Context, userID uuid.UUID, limit, offset int) ([]*entity.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Booking
	for _, b := range r.bookings {
		if b.UserID == userID {
			cp := *b
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeBookingRepo) CountByUserID(_ context.Context, userID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, b := range r.bookings {
		if b.UserID == userID {
			count++
		}
	}
	return count, nil
}

func (r *fakeBookingRepo) FindAvailable(_ context.Context, limit, offset int) ([]*entity.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Booking
	for _, b := range r.bookings {
		if b.Status == entity.BookingStatusPending && b.ProviderID == nil {
			cp := *b
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeBookingRepo) FindByProviderID(_ context.Context, providerID uuid.UUID, limit, offset int) ([]*entity.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Booking
	for _, b := range r.bookings {
		if b.ProviderID != nil && *b.ProviderID == providerID {
			cp := *b
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeBookingRepo) Update(_ context.Context, booking *entity.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.bookings[booking.ID]
	if !ok {
		return fmt.Errorf("booking %s: %w", booking.ID.String(), apperr.ErrNotFound)
	}
	cp := *booking
	cp.Status = existing.Status
	cp.ProviderID = existing.ProviderID
	r.bookings[booking.ID] = &cp
	return nil
}

func (r *fakeBookingRepo) ClaimForProvider(_ context.Context, bookingID, providerID uuid.UUID) (*entity.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	booking, ok := r.bookings[bookingID]
	if !ok {
		return nil, fmt.Errorf("claim booking %s: %w", bookingID.String(), apperr.ErrNotFound)
	}
	if booking.Status != entity.BookingStatusPending || booking.ProviderID != nil {
		return nil, fmt.Errorf("claim booking %s: %w", bookingID.String(), apperr.ErrConflict)
	}
	pid := providerID
	booking.ProviderID = &pid
	booking.Status = entity.BookingStatusConfirmed
	cp := *booking
	return &cp, nil
}

func (r *fakeBookingRepo) UpdateStatusIf(_ context.Context, bookingID uuid.UUID, from, to entity.BookingStatus) (*entity.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	booking, ok := r.bookings[bookingID]
	if !ok {
		return nil, fmt.Errorf("transition booking %s: %w", bookingID.String(), apperr.ErrNotFound)
	}
	if booking.Status != from {
		return nil, fmt.Errorf("transition booking %s: %w", bookingID.String(), apperr.ErrConflict)
	}
	booking.Status = to
	cp := *booking
	return &cp, nil
}

func (r *fakeBookingRepo) ReleaseProvider(_ context.Context, bookingID uuid.UUID) (*entity.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	booking, ok := r.bookings[bookingID]
	if !ok {
		return nil, fmt.Errorf("release booking %s: %w", bookingID.String(), apperr.ErrNotFound)
	}
	if booking.Status != entity.BookingStatusConfirmed || booking.ProviderID == nil {
		return nil, fmt.Errorf("release booking %s: %w", bookingID.String(), apperr.ErrConflict)
	}
	booking.ProviderID = nil
	booking.Status = entity.BookingStatusPending
	cp := *booking
	return &cp, nil
}

func (r *fakeBookingRepo) SetProviderQuote(_ context.Context, bookingID uuid.UUID, quote float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	booking, ok := r.bookings[bookingID]
	if !ok {
		return fmt.Errorf("booking %s: %w", bookingID.String(), apperr.ErrNotFound)
	}
	q := quote
	booking.ProviderQuote = &q
	return nil
}

func (r *fakeBookingRepo) StatsByUserID(_ context.Context, userID uuid.UUID) (*repository.BookingStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := &repository.BookingStats{}
	for _, b := range r.bookings {
		if b.UserID != userID {
			continue
		}
		stats.Total++
		switch b.Status {
		case entity.BookingStatusPending:
			stats.Pending++
		case entity.BookingStatusConfirmed:
			stats.Confirmed++
		case entity.BookingStatusInProgress:
			stats.InProgress++
		case entity.BookingStatusCompleted:
			stats.Completed++
		case entity.BookingStatusCancelled:
			stats.Cancelled++
		}
	}
	return stats, nil
}

// fakePaymentRepo enforces the two unique indexes that make payment
// creation race-safe: one row per booking, globally unique qr tokens.
type fakePaymentRepo struct {
	mu        sync.Mutex
	byID      map[uuid.UUID]*entity.Payment
	byBooking map[uuid.UUID]uuid.UUID
	tokens    map[string]bool
}

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{
		byID:      make(map[uuid.UUID]*entity.Payment),
		byBooking: make(map[uuid.UUID]uuid.UUID),
		tokens:    make(map[string]bool),
	}
}

func (r *fakePaymentRepo) CreateIfAbsent(_ context.Context, payment *entity.Payment) (*entity.Payment, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existingID, ok := r.byBooking[payment.BookingID]; ok {
		cp := *r.byID[existingID]
		return &cp, false, nil
	}
	if r.tokens[payment.QRToken] {
		return nil, false, repository.ErrTokenTaken
	}
	cp := *payment
	r.byID[payment.ID] = &cp
	r.byBooking[payment.BookingID] = payment.ID
	r.tokens[payment.QRToken] = true
	out := cp
	return &out, true, nil
}

func (r *fakePaymentRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	payment, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *payment
	return &cp, nil
}

func (r *fakePaymentRepo) FindByBookingID(_ context.Context, bookingID uuid.UUID) (*entity.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byBooking[bookingID]
	if !ok {
		return nil, nil
	}
	cp := *r.byID[id]
	return &cp, nil
}

func (r *fakePaymentRepo) FindBySessionID(_ context.Context, sessionID string) (*entity.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, payment := range r.byID {
		if payment.SessionID != nil && *payment.SessionID == sessionID {
			cp := *payment
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakePaymentRepo) SetCheckout(_ context.Context, paymentID uuid.UUID, sessionID string, amount float64, currency string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	payment, ok := r.byID[paymentID]
	if !ok {
		return fmt.Errorf("payment %s: %w", paymentID.String(), apperr.ErrNotFound)
	}
	if payment.Status != entity.PaymentStatusPending && payment.Status != entity.PaymentStatusProcessing {
		return fmt.Errorf("payment %s not open for checkout: %w", paymentID.String(), apperr.ErrConflict)
	}
	sid := sessionID
	payment.SessionID = &sid
	payment.Amount = amount
	payment.Currency = currency
	return nil
}

func (r *fakePaymentRepo) MarkPaidIf(_ context.Context, paymentID uuid.UUID, intentID, method *string) (*entity.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	payment, ok := r.byID[paymentID]
	if !ok {
		return nil, fmt.Errorf("mark payment %s paid: %w", paymentID.String(), apperr.ErrConflict)
	}
	if payment.Status != entity.PaymentStatusPending && payment.Status != entity.PaymentStatusProcessing {
		return nil, fmt.Errorf("mark payment %s paid: %w", paymentID.String(), apperr.ErrConflict)
	}
	payment.Status = entity.PaymentStatusPaid
	now := time.Now()
	payment.PaidAt = &now
	if intentID != nil {
		payment.PaymentIntentID = intentID
	}
	if method != nil {
		payment.PaymentMethod = method
	}
	cp := *payment
	return &cp, nil
}

func (r *fakePaymentRepo) UpdateStatusIf(_ context.Context, paymentID uuid.UUID, to entity.PaymentStatus, from ...entity.PaymentStatus) (*entity.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	payment, ok := r.byID[paymentID]
	if !ok {
		return nil, fmt.Errorf("update payment %s status: %w", paymentID.String(), apperr.ErrConflict)
	}
	allowed := false
	for _, s := range from {
		if payment.Status == s {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, fmt.Errorf("update payment %s status to %s: %w", paymentID.String(), string(to), apperr.ErrConflict)
	}
	payment.Status = to
	cp := *payment
	return &cp, nil
}

// fakeGateway scripts checkout and retrieve responses and records what
// the service asked for.
type fakeGateway struct {
	mu             sync.Mutex
	createCalls    []gateway.CheckoutParams
	createErr      error
	sessions       map[string]*gateway.Session
	retrieveErr    error
	sessionCounter int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{sessions: make(map[string]*gateway.Session)}
}

func (g *fakeGateway) CreateCheckoutSession(_ context.Context, params gateway.CheckoutParams) (*gateway.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.createCalls = append(g.createCalls, params)
	g.sessionCounter++
	session := &gateway.Session{
		ID:                 fmt.Sprintf("cs_test_%d", g.sessionCounter),
		URL:                fmt.Sprintf("https://checkout.test/pay/%d", g.sessionCounter),
		PaymentStatus:      "unpaid",
		PaymentMethodTypes: []string{"card"},
		AmountTotal:        params.AmountCents,
		Currency:           params.Currency,
		Metadata: map[string]string{
			"booking_id": params.BookingID,
			"user_id":    params.UserID,
		},
	}
	g.sessions[session.ID] = session
	return session, nil
}

func (g *fakeGateway) RetrieveSession(_ context.Context, sessionID string) (*gateway.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.retrieveErr != nil {
		return nil, g.retrieveErr
	}
	session, ok := g.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("gateway rejected request (404): no such session")
	}
	cp := *session
	return &cp, nil
}

func (g *fakeGateway) settle(sessionID, intentID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if session, ok := g.sessions[sessionID]; ok {
		session.PaymentStatus = "paid"
		session.PaymentIntent = intentID
	}
}

type testEnv struct {
	repo     *repository.Repository
	bookings *fakeBookingRepo
	payments *fakePaymentRepo
	gw       *fakeGateway
	envelope *crypto.Envelope
	booking  BookingService
	payment  PaymentService
}

const testWebhookSecret = "whsec_test"

func newTestEnv(t testingT) *testEnv {
	envelope, err := crypto.NewEnvelope(crypto.Config{
		Secret:     "test-master-secret",
		Salt:       "test-deployment-salt",
		Iterations: 100000,
	})
	if err != nil {
		t.Fatalf("new envelope: %v", err)
	}

	bookings := newFakeBookingRepo()
	payments := newFakePaymentRepo()
	gw := newFakeGateway()
	repo := &repository.Repository{Booking: bookings, Payment: payments}
	config := &utils.Config{
		App:    utils.AppConfig{FrontendURL: "http://localhost:3000"},
		Stripe: utils.StripeConfig{WebhookSecret: testWebhookSecret},
	}
	logger := zap.NewNop()

	return &testEnv{
		repo:     repo,
		bookings: bookings,
		payments: payments,
		gw:       gw,
		envelope: envelope,
		booking:  NewBookingService(repo, envelope, logger),
		payment:  NewPaymentService(repo, gw, gateway.NewWebhookVerifier(testWebhookSecret), config, logger),
	}
}

// testingT is the subset of *testing.T the helpers need.
type testingT interface {
	Fatalf(format string, args ...any)
}
