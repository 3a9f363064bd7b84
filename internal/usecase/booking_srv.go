package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mochiquin/safehome/internal/data/entity"
	"github.com/mochiquin/safehome/internal/data/repository"
	"github.com/mochiquin/safehome/internal/dto/request"
	"github.com/mochiquin/safehome/internal/dto/response"
	"github.com/mochiquin/safehome/pkg/apperr"
	"github.com/mochiquin/safehome/pkg/crypto"
	"github.com/mochiquin/safehome/pkg/utils"
)

// startTimeTolerance absorbs clock skew between clients and the server;
// a start time further in the past than this is rejected.
const startTimeTolerance = 5 * time.Minute

const defaultCountry = "US"

type BookingService interface {
	// Customer operations
	CreateBooking(ctx context.Context, userID string, req *request.CreateBookingRequest) (*response.BookingDetailResponse, error)
	GetUserBookings(ctx context.Context, userID string, req *request.PaginatedRequest) (*response.PaginatedResponse[response.BookingResponse], error)
	GetBooking(ctx context.Context, callerID, bookingID string) (*response.BookingDetailResponse, error)
	UpdateBooking(ctx context.Context, userID, bookingID string, req *request.UpdateBookingRequest) (*response.BookingDetailResponse, error)
	CancelBooking(ctx context.Context, userID, bookingID string) (*response.BookingResponse, error)
	GetStats(ctx context.Context, userID string) (*repository.BookingStats, error)

	// Provider operations
	GetAvailableTasks(ctx context.Context, req *request.PaginatedRequest) ([]response.BookingResponse, error)
	GetReceivedOrders(ctx context.Context, providerID string, req *request.PaginatedRequest) ([]response.BookingResponse, error)
	AcceptBooking(ctx context.Context, providerID, bookingID string) (*response.BookingResponse, error)
	QuoteBooking(ctx context.Context, providerID, bookingID string, req *request.ProviderQuoteRequest) (*response.BookingResponse, error)
	StartJob(ctx context.Context, providerID, bookingID string, req *request.StartJobRequest) (*response.BookingResponse, error)
	CompleteJob(ctx context.Context, providerID, bookingID string) (*response.BookingResponse, error)
	ReleaseBooking(ctx context.Context, callerID, bookingID string) (*response.BookingResponse, error)
}

type bookingService struct {
	repo     *repository.Repository
	envelope *crypto.Envelope
	log      *zap.Logger
}

func NewBookingService(repo *repository.Repository, envelope *crypto.Envelope, log *zap.Logger) BookingService {
	return &bookingService{
		repo:     repo,
		envelope: envelope,
		log:      log.With(zap.String("service", "booking")),
	}
}

func (s *bookingService) CreateBooking(ctx context.Context, userID string, req *request.CreateBookingRequest) (*response.BookingDetailResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		s.log.Warn("Create booking validation failed", zap.Any("errors", errs))
		return nil, fmt.Errorf("%w: %s", apperr.ErrValidation, utils.FormatValidationErrors(errs))
	}

	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid user ID %s", apperr.ErrValidation, userID)
	}

	if req.StartTime.Before(time.Now().Add(-startTimeTolerance)) {
		return nil, fmt.Errorf("%w: start time is in the past", apperr.ErrValidation)
	}

	addressEnc, err := s.envelope.Seal(req.Address)
	if err != nil {
		return nil, fmt.Errorf("seal address: %w", err)
	}
	phoneEnc, err := s.envelope.Seal(req.Phone)
	if err != nil {
		return nil, fmt.Errorf("seal phone: %w", err)
	}

	code, err := utils.GenerateConfirmationCode()
	if err != nil {
		return nil, err
	}

	country := req.Country
	if country == "" {
		country = defaultCountry
	}

	now := time.Now()
	booking := &entity.Booking{
		Base: entity.Base{
			ID:        uuid.New(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		UserID:           userUUID,
		ServiceType:      entity.ServiceType(req.ServiceType),
		Budget:           req.Budget,
		AddressEnc:       addressEnc,
		PhoneEnc:         phoneEnc,
		City:             req.City,
		State:            req.State,
		Country:          country,
		StartTime:        req.StartTime,
		DurationHours:    req.DurationHours,
		Status:           entity.BookingStatusPending,
		ConfirmationCode: code,
		Notes:            req.Notes,
	}

	if err := s.repo.Booking.Create(ctx, booking); err != nil {
		return nil, err
	}

	s.log.Info("Booking created",
		zap.String("booking_id", booking.ID.String()),
		zap.String("user_id", userID),
		zap.String("service_type", req.ServiceType),
		zap.String("city", req.City),
	)

	return s.detailResponse(booking, req.Address, req.Phone), nil
}

func (s *bookingService) GetUserBookings(ctx context.Context, userID string, req *request.PaginatedRequest) (*response.PaginatedResponse[response.BookingResponse], error) {
	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid user ID %s", apperr.ErrValidation, userID)
	}

	bookings, err := s.repo.Booking.FindByUserID(ctx, userUUID, req.Limit(), req.Offset())
	if err != nil {
		return nil, fmt.Errorf("get user bookings: %w", err)
	}

	total, err := s.repo.Booking.CountByUserID(ctx, userUUID)
	if err != nil {
		return nil, fmt.Errorf("count user bookings: %w", err)
	}

	items := make([]response.BookingResponse, len(bookings))
	for i, booking := range bookings {
		items[i] = response.BookingToResponse(booking)
	}

	return response.NewPaginatedResponse(items, req.Page, req.PerPage, total), nil
}

func (s *bookingService) GetBooking(ctx context.Context, callerID, bookingID string) (*response.BookingDetailResponse, error) {
	callerUUID, booking, err := s.loadBooking(ctx, callerID, bookingID)
	if err != nil {
		return nil, err
	}

	// Only the owner and the assigned provider see the detail view;
	// everyone else gets not-found so existence does not leak.
	if !booking.IsOwnedBy(callerUUID) && !booking.IsAssignedTo(callerUUID) {
		return nil, fmt.Errorf("booking %s: %w", bookingID, apperr.ErrNotFound)
	}

	address, err := s.envelope.Open(booking.AddressEnc)
	if err != nil {
		s.log.Error("Failed to decrypt booking address",
			zap.Error(err),
			zap.String("booking_id", bookingID),
		)
		return nil, err
	}
	phone, err := s.envelope.Open(booking.PhoneEnc)
	if err != nil {
		s.log.Error("Failed to decrypt booking phone",
			zap.Error(err),
			zap.String("booking_id", bookingID),
		)
		return nil, err
	}

	return s.detailResponse(booking, address, phone), nil
}

func (s *bookingService) UpdateBooking(ctx context.Context, userID, bookingID string, req *request.UpdateBookingRequest) (*response.BookingDetailResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return nil, fmt.Errorf("%w: %s", apperr.ErrValidation, utils.FormatValidationErrors(errs))
	}

	userUUID, booking, err := s.loadBooking(ctx, userID, bookingID)
	if err != nil {
		return nil, err
	}
	if !booking.IsOwnedBy(userUUID) {
		return nil, fmt.Errorf("booking %s: %w", bookingID, apperr.ErrNotFound)
	}

	if !entity.ValidBookingTransition("update", booking.Status) {
		return nil, fmt.Errorf("booking %s is %s: %w", bookingID, booking.Status, apperr.ErrConflict)
	}

	if req.Address != nil {
		sealed, err := s.envelope.Seal(*req.Address)
		if err != nil {
			return nil, fmt.Errorf("seal address: %w", err)
		}
		booking.AddressEnc = sealed
	}
	if req.Phone != nil {
		sealed, err := s.envelope.Seal(*req.Phone)
		if err != nil {
			return nil, fmt.Errorf("seal phone: %w", err)
		}
		booking.PhoneEnc = sealed
	}
	if req.City != nil {
		booking.City = *req.City
	}
	if req.State != nil {
		booking.State = req.State
	}
	if req.Country != nil {
		booking.Country = *req.Country
	}
	if req.StartTime != nil {
		if req.StartTime.Before(time.Now().Add(-startTimeTolerance)) {
			return nil, fmt.Errorf("%w: start time is in the past", apperr.ErrValidation)
		}
		booking.StartTime = *req.StartTime
	}
	if req.DurationHours != nil {
		booking.DurationHours = *req.DurationHours
	}
	if req.Notes != nil {
		booking.Notes = req.Notes
	}

	if err := s.repo.Booking.Update(ctx, booking); err != nil {
		return nil, err
	}

	s.log.Info("Booking updated", zap.String("booking_id", bookingID))

	address, err := s.envelope.Open(booking.AddressEnc)
	if err != nil {
		return nil, err
	}
	phone, err := s.envelope.Open(booking.PhoneEnc)
	if err != nil {
		return nil, err
	}

	return s.detailResponse(booking, address, phone), nil
}

func (s *bookingService) CancelBooking(ctx context.Context, userID, bookingID string) (*response.BookingResponse, error) {
	userUUID, booking, err := s.loadBooking(ctx, userID, bookingID)
	if err != nil {
		return nil, err
	}
	if !booking.IsOwnedBy(userUUID) {
		return nil, fmt.Errorf("booking %s: %w", bookingID, apperr.ErrNotFound)
	}

	if !entity.ValidBookingTransition("cancel", booking.Status) {
		return nil, fmt.Errorf("booking %s is %s: %w", bookingID, booking.Status, apperr.ErrConflict)
	}

	// The conditional update re-checks the observed status, so a
	// concurrent transition turns this into a clean conflict instead of
	// a lost update.
	updated, err := s.repo.Booking.UpdateStatusIf(ctx, booking.ID, booking.Status, entity.BookingStatusCancelled)
	if err != nil {
		return nil, err
	}

	s.log.Info("Booking cancelled",
		zap.String("booking_id", bookingID),
		zap.String("user_id", userID),
	)

	resp := response.BookingToResponse(updated)
	return &resp, nil
}

func (s *bookingService) GetStats(ctx context.Context, userID string) (*repository.BookingStats, error) {
	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid user ID %s", apperr.ErrValidation, userID)
	}

	return s.repo.Booking.StatsByUserID(ctx, userUUID)
}

func (s *bookingService) GetAvailableTasks(ctx context.Context, req *request.PaginatedRequest) ([]response.BookingResponse, error) {
	bookings, err := s.repo.Booking.FindAvailable(ctx, req.Limit(), req.Offset())
	if err != nil {
		return nil, fmt.Errorf("get available tasks: %w", err)
	}

	items := make([]response.BookingResponse, len(bookings))
	for i, booking := range bookings {
		items[i] = response.BookingToResponse(booking)
	}

	return items, nil
}

func (s *bookingService) GetReceivedOrders(ctx context.Context, providerID string, req *request.PaginatedRequest) ([]response.BookingResponse, error) {
	providerUUID, err := uuid.Parse(providerID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid provider ID %s", apperr.ErrValidation, providerID)
	}

	bookings, err := s.repo.Booking.FindByProviderID(ctx, providerUUID, req.Limit(), req.Offset())
	if err != nil {
		return nil, fmt.Errorf("get received orders: %w", err)
	}

	items := make([]response.BookingResponse, len(bookings))
	for i, booking := range bookings {
		items[i] = response.BookingToResponse(booking)
	}

	return items, nil
}

// AcceptBooking resolves the multi-provider race through a single
// conditional update in storage; exactly one concurrent caller wins.
func (s *bookingService) AcceptBooking(ctx context.Context, providerID, bookingID string) (*response.BookingResponse, error) {
	providerUUID, err := uuid.Parse(providerID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid provider ID %s", apperr.ErrValidation, providerID)
	}
	bookingUUID, err := uuid.Parse(bookingID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid booking ID %s", apperr.ErrValidation, bookingID)
	}

	booking, err := s.repo.Booking.ClaimForProvider(ctx, bookingUUID, providerUUID)
	if err != nil {
		return nil, err
	}

	s.log.Info("Booking accepted",
		zap.String("booking_id", bookingID),
		zap.String("provider_id", providerID),
	)

	resp := response.BookingToResponse(booking)
	return &resp, nil
}

func (s *bookingService) QuoteBooking(ctx context.Context, providerID, bookingID string, req *request.ProviderQuoteRequest) (*response.BookingResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return nil, fmt.Errorf("%w: %s", apperr.ErrValidation, utils.FormatValidationErrors(errs))
	}

	providerUUID, booking, err := s.loadBooking(ctx, providerID, bookingID)
	if err != nil {
		return nil, err
	}
	if !booking.IsAssignedTo(providerUUID) {
		return nil, fmt.Errorf("booking %s is not assigned to caller: %w", bookingID, apperr.ErrConflict)
	}
	if !entity.ValidBookingTransition("quote", booking.Status) {
		return nil, fmt.Errorf("booking %s is %s: %w", bookingID, booking.Status, apperr.ErrConflict)
	}

	if err := s.repo.Booking.SetProviderQuote(ctx, booking.ID, req.Amount); err != nil {
		return nil, err
	}
	booking.ProviderQuote = &req.Amount

	s.log.Info("Provider quote set",
		zap.String("booking_id", bookingID),
		zap.String("provider_id", providerID),
		zap.Float64("amount", req.Amount),
	)

	resp := response.BookingToResponse(booking)
	return &resp, nil
}

// StartJob moves a confirmed booking to in_progress. The provider must
// present the customer's 4-digit confirmation code, read out in person,
// before work begins.
func (s *bookingService) StartJob(ctx context.Context, providerID, bookingID string, req *request.StartJobRequest) (*response.BookingResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return nil, fmt.Errorf("%w: %s", apperr.ErrValidation, utils.FormatValidationErrors(errs))
	}

	providerUUID, booking, err := s.loadBooking(ctx, providerID, bookingID)
	if err != nil {
		return nil, err
	}
	if !booking.IsAssignedTo(providerUUID) {
		return nil, fmt.Errorf("booking %s is not assigned to caller: %w", bookingID, apperr.ErrConflict)
	}
	if !entity.ValidBookingTransition("start", booking.Status) {
		return nil, fmt.Errorf("booking %s is %s: %w", bookingID, booking.Status, apperr.ErrConflict)
	}
	if req.ConfirmationCode != booking.ConfirmationCode {
		s.log.Warn("Confirmation code mismatch",
			zap.String("booking_id", bookingID),
			zap.String("provider_id", providerID),
		)
		return nil, fmt.Errorf("confirmation code mismatch: %w", apperr.ErrForbidden)
	}

	updated, err := s.repo.Booking.UpdateStatusIf(ctx, booking.ID, entity.BookingStatusConfirmed, entity.BookingStatusInProgress)
	if err != nil {
		return nil, err
	}

	s.log.Info("Job started",
		zap.String("booking_id", bookingID),
		zap.String("provider_id", providerID),
	)

	resp := response.BookingToResponse(updated)
	return &resp, nil
}

func (s *bookingService) CompleteJob(ctx context.Context, providerID, bookingID string) (*response.BookingResponse, error) {
	providerUUID, booking, err := s.loadBooking(ctx, providerID, bookingID)
	if err != nil {
		return nil, err
	}
	if !booking.IsAssignedTo(providerUUID) {
		return nil, fmt.Errorf("booking %s is not assigned to caller: %w", bookingID, apperr.ErrConflict)
	}
	if !entity.ValidBookingTransition("complete", booking.Status) {
		return nil, fmt.Errorf("booking %s is %s: %w", bookingID, booking.Status, apperr.ErrConflict)
	}

	updated, err := s.repo.Booking.UpdateStatusIf(ctx, booking.ID, entity.BookingStatusInProgress, entity.BookingStatusCompleted)
	if err != nil {
		return nil, err
	}

	s.log.Info("Job completed",
		zap.String("booking_id", bookingID),
		zap.String("provider_id", providerID),
	)

	resp := response.BookingToResponse(updated)
	return &resp, nil
}

// ReleaseBooking reverts a confirmed booking to the open pool when its
// provider becomes unavailable after accepting. Allowed for the owner
// and the assigned provider.
func (s *bookingService) ReleaseBooking(ctx context.Context, callerID, bookingID string) (*response.BookingResponse, error) {
	callerUUID, booking, err := s.loadBooking(ctx, callerID, bookingID)
	if err != nil {
		return nil, err
	}
	if !booking.IsOwnedBy(callerUUID) && !booking.IsAssignedTo(callerUUID) {
		return nil, fmt.Errorf("booking %s: %w", bookingID, apperr.ErrNotFound)
	}
	if !entity.ValidBookingTransition("release", booking.Status) {
		return nil, fmt.Errorf("booking %s is %s: %w", bookingID, booking.Status, apperr.ErrConflict)
	}

	updated, err := s.repo.Booking.ReleaseProvider(ctx, booking.ID)
	if err != nil {
		return nil, err
	}

	s.log.Info("Booking released back to pending",
		zap.String("booking_id", bookingID),
		zap.String("caller_id", callerID),
	)

	resp := response.BookingToResponse(updated)
	return &resp, nil
}

// loadBooking parses both IDs and fetches the booking; a missing row is
// apperr.ErrNotFound.
func (s *bookingService) loadBooking(ctx context.Context, callerID, bookingID string) (uuid.UUID, *entity.Booking, error) {
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

func (s *bookingService) detailResponse(booking *entity.Booking, address, phone string) *response.BookingDetailResponse {
	return &response.BookingDetailResponse{
		BookingResponse:  response.BookingToResponse(booking),
		Address:          address,
		Phone:            phone,
		ConfirmationCode: booking.ConfirmationCode,
	}
}
