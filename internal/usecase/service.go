package usecase

import (
	"go.uber.org/zap"

	"github.com/mochiquin/safehome/internal/data/repository"
	"github.com/mochiquin/safehome/internal/gateway"
	"github.com/mochiquin/safehome/pkg/crypto"
	"github.com/mochiquin/safehome/pkg/utils"
)

// Service groups all usecases for wiring.
type Service struct {
	Booking BookingService
	Payment PaymentService
	Covid   CovidService
}

func NewService(
	repo *repository.Repository,
	config *utils.Config,
	envelope *crypto.Envelope,
	gw gateway.Client,
	verifier *gateway.WebhookVerifier,
	logger *zap.Logger,
) *Service {
	return &Service{
		Booking: NewBookingService(repo, envelope, logger),
		Payment: NewPaymentService(repo, gw, verifier, config, logger),
		Covid:   NewCovidService(logger),
	}
}
