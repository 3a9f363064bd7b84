package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mochiquin/safehome/internal/data/entity"
	"github.com/mochiquin/safehome/internal/dto/request"
	"github.com/mochiquin/safehome/internal/dto/response"
	"github.com/mochiquin/safehome/pkg/apperr"
)

func createBookingReq() *request.CreateBookingRequest {
	budget := 100.0
	return &request.CreateBookingRequest{
		ServiceType:   "cleaning",
		Budget:        &budget,
		Address:       "42 Wallaby Way",
		Phone:         "+61 400 000 000",
		City:          "Sydney",
		Country:       "AU",
		StartTime:     time.Now().Add(24 * time.Hour),
		DurationHours: 2,
	}
}

func mustCreateBooking(t *testing.T, env *testEnv, userID string) *response.BookingDetailResponse {
	t.Helper()
	detail, err := env.booking.CreateBooking(context.Background(), userID, createBookingReq())
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}
	return detail
}

func mustAccept(t *testing.T, env *testEnv, providerID, bookingID string) {
	t.Helper()
	if _, err := env.booking.AcceptBooking(context.Background(), providerID, bookingID); err != nil {
		t.Fatalf("accept booking: %v", err)
	}
}

func TestCreateBookingSealsPII(t *testing.T) {
	env := newTestEnv(t)
	userID := uuid.NewString()

	detail := mustCreateBooking(t, env, userID)

	if detail.Address != "42 Wallaby Way" {
		t.Fatalf("detail address = %q, want plaintext back", detail.Address)
	}
	if detail.Status != string(entity.BookingStatusPending) {
		t.Fatalf("status = %q, want pending", detail.Status)
	}
	if len(detail.ConfirmationCode) != 4 {
		t.Fatalf("confirmation code %q, want 4 digits", detail.ConfirmationCode)
	}

	stored, err := env.bookings.FindByID(context.Background(), uuid.MustParse(detail.ID))
	if err != nil || stored == nil {
		t.Fatalf("stored booking missing: %v", err)
	}
	if stored.AddressEnc == "42 Wallaby Way" || stored.PhoneEnc == "+61 400 000 000" {
		t.Fatal("stored booking holds plaintext PII")
	}
	plain, err := env.envelope.Open(stored.AddressEnc)
	if err != nil {
		t.Fatalf("open stored address: %v", err)
	}
	if plain != "42 Wallaby Way" {
		t.Fatalf("decrypted address = %q", plain)
	}
}

func TestCreateBookingRejectsPastStart(t *testing.T) {
	env := newTestEnv(t)
	req := createBookingReq()
	req.StartTime = time.Now().Add(-time.Hour)

	_, err := env.booking.CreateBooking(context.Background(), uuid.NewString(), req)
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestGetBookingHidesExistenceFromStrangers(t *testing.T) {
	env := newTestEnv(t)
	owner := uuid.NewString()
	detail := mustCreateBooking(t, env, owner)

	if _, err := env.booking.GetBooking(context.Background(), owner, detail.ID); err != nil {
		t.Fatalf("owner read: %v", err)
	}

	_, err := env.booking.GetBooking(context.Background(), uuid.NewString(), detail.ID)
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("stranger read err = %v, want not found", err)
	}
	if errors.Is(err, apperr.ErrForbidden) {
		t.Fatal("stranger read must not signal forbidden")
	}
}

// Concurrent providers racing to accept the same booking: exactly one
// wins, everyone else gets a conflict, and the stored row names the
// winner.
func TestAcceptBookingRace(t *testing.T) {
	env := newTestEnv(t)
	detail := mustCreateBooking(t, env, uuid.NewString())

	const providers = 8
	var wg sync.WaitGroup
	winners := make(chan string, providers)
	var conflicts int64
	var mu sync.Mutex

	for i := 0; i < providers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			providerID := uuid.NewString()
			_, err := env.booking.AcceptBooking(context.Background(), providerID, detail.ID)
			switch {
			case err == nil:
				winners <- providerID
			case errors.Is(err, apperr.ErrConflict):
				mu.Lock()
				conflicts++
				mu.Unlock()
			default:
				t.Errorf("unexpected accept error: %v", err)
			}
		}()
	}
	wg.Wait()
	close(winners)

	var winnerIDs []string
	for id := range winners {
		winnerIDs = append(winnerIDs, id)
	}
	if len(winnerIDs) != 1 {
		t.Fatalf("winners = %d, want exactly 1", len(winnerIDs))
	}
	if conflicts != providers-1 {
		t.Fatalf("conflicts = %d, want %d", conflicts, providers-1)
	}

	stored, _ := env.bookings.FindByID(context.Background(), uuid.MustParse(detail.ID))
	if stored.Status != entity.BookingStatusConfirmed {
		t.Fatalf("status = %s, want confirmed", stored.Status)
	}
	if stored.ProviderID == nil || stored.ProviderID.String() != winnerIDs[0] {
		t.Fatal("stored provider is not the race winner")
	}
}

func TestAcceptCancelledBooking(t *testing.T) {
	env := newTestEnv(t)
	owner := uuid.NewString()
	detail := mustCreateBooking(t, env, owner)

	if _, err := env.booking.CancelBooking(context.Background(), owner, detail.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	_, err := env.booking.AcceptBooking(context.Background(), uuid.NewString(), detail.ID)
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("accept cancelled err = %v, want conflict", err)
	}
}

func TestStartJobGuards(t *testing.T) {
	env := newTestEnv(t)
	owner := uuid.NewString()
	provider := uuid.NewString()
	detail := mustCreateBooking(t, env, owner)
	ctx := context.Background()

	// Starting while still pending must fail before any code check.
	_, err := env.booking.StartJob(ctx, provider, detail.ID, &request.StartJobRequest{ConfirmationCode: detail.ConfirmationCode})
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("start pending err = %v, want conflict", err)
	}

	mustAccept(t, env, provider, detail.ID)

	_, err = env.booking.StartJob(ctx, provider, detail.ID, &request.StartJobRequest{ConfirmationCode: "0000"})
	if detail.ConfirmationCode == "0000" {
		t.Skip("generated code collided with the deliberately wrong one")
	}
	if !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("wrong code err = %v, want forbidden", err)
	}

	resp, err := env.booking.StartJob(ctx, provider, detail.ID, &request.StartJobRequest{ConfirmationCode: detail.ConfirmationCode})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if resp.Status != string(entity.BookingStatusInProgress) {
		t.Fatalf("status = %s, want in_progress", resp.Status)
	}

	// Another provider cannot drive the job even with the right code.
	_, err = env.booking.CompleteJob(ctx, uuid.NewString(), detail.ID)
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("foreign complete err = %v, want conflict", err)
	}
}

func TestLifecycleHappyPath(t *testing.T) {
	env := newTestEnv(t)
	owner := uuid.NewString()
	provider := uuid.NewString()
	detail := mustCreateBooking(t, env, owner)
	ctx := context.Background()

	mustAccept(t, env, provider, detail.ID)

	if _, err := env.booking.StartJob(ctx, provider, detail.ID, &request.StartJobRequest{ConfirmationCode: detail.ConfirmationCode}); err != nil {
		t.Fatalf("start: %v", err)
	}

	resp, err := env.booking.CompleteJob(ctx, provider, detail.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if resp.Status != string(entity.BookingStatusCompleted) {
		t.Fatalf("status = %s, want completed", resp.Status)
	}

	// Completed is terminal: no cancel, no restart.
	if _, err := env.booking.CancelBooking(ctx, owner, detail.ID); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("cancel completed err = %v, want conflict", err)
	}
	if _, err := env.booking.CompleteJob(ctx, provider, detail.ID); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("re-complete err = %v, want conflict", err)
	}
}

func TestReleaseBooking(t *testing.T) {
	env := newTestEnv(t)
	owner := uuid.NewString()
	provider := uuid.NewString()
	detail := mustCreateBooking(t, env, owner)
	ctx := context.Background()

	// Nothing to release while pending.
	if _, err := env.booking.ReleaseBooking(ctx, owner, detail.ID); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("release pending err = %v, want conflict", err)
	}

	mustAccept(t, env, provider, detail.ID)

	resp, err := env.booking.ReleaseBooking(ctx, provider, detail.ID)
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if resp.Status != string(entity.BookingStatusPending) {
		t.Fatalf("status = %s, want pending", resp.Status)
	}

	stored, _ := env.bookings.FindByID(ctx, uuid.MustParse(detail.ID))
	if stored.ProviderID != nil {
		t.Fatal("provider not cleared on release")
	}

	// The pool reopens: a different provider can claim it now.
	mustAccept(t, env, uuid.NewString(), detail.ID)
}

func TestQuoteRequiresAssignment(t *testing.T) {
	env := newTestEnv(t)
	owner := uuid.NewString()
	provider := uuid.NewString()
	detail := mustCreateBooking(t, env, owner)
	ctx := context.Background()

	_, err := env.booking.QuoteBooking(ctx, provider, detail.ID, &request.ProviderQuoteRequest{Amount: 120})
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("quote unassigned err = %v, want conflict", err)
	}

	mustAccept(t, env, provider, detail.ID)

	resp, err := env.booking.QuoteBooking(ctx, provider, detail.ID, &request.ProviderQuoteRequest{Amount: 120})
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if resp.ProviderQuote == nil || *resp.ProviderQuote != 120 {
		t.Fatalf("quote = %v, want 120", resp.ProviderQuote)
	}
}

func TestUpdateBookingReseals(t *testing.T) {
	env := newTestEnv(t)
	owner := uuid.NewString()
	detail := mustCreateBooking(t, env, owner)
	ctx := context.Background()

	newAddr := "7 George Street"
	updated, err := env.booking.UpdateBooking(ctx, owner, detail.ID, &request.UpdateBookingRequest{Address: &newAddr})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Address != newAddr {
		t.Fatalf("address = %q, want %q", updated.Address, newAddr)
	}
	if updated.Phone != "+61 400 000 000" {
		t.Fatalf("phone changed unexpectedly: %q", updated.Phone)
	}

	stored, _ := env.bookings.FindByID(ctx, uuid.MustParse(detail.ID))
	if stored.AddressEnc == newAddr {
		t.Fatal("updated address stored in plaintext")
	}
}

func TestStats(t *testing.T) {
	env := newTestEnv(t)
	owner := uuid.NewString()
	ctx := context.Background()

	first := mustCreateBooking(t, env, owner)
	mustCreateBooking(t, env, owner)
	if _, err := env.booking.CancelBooking(ctx, owner, first.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	stats, err := env.booking.GetStats(ctx, owner)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 2 || stats.Pending != 1 || stats.Cancelled != 1 {
		t.Fatalf("stats = %+v", stats)
	}
}
