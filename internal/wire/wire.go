package wire

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mochiquin/safehome/internal/adaptor"
	"github.com/mochiquin/safehome/internal/data/repository"
	"github.com/mochiquin/safehome/internal/gateway"
	"github.com/mochiquin/safehome/internal/usecase"
	"github.com/mochiquin/safehome/pkg/crypto"
	"github.com/mochiquin/safehome/pkg/middleware"
	"github.com/mochiquin/safehome/pkg/utils"
)

// App holds the wired router.
type App struct {
	Router *chi.Mux
}

// Wiring builds the full dependency graph: gateway client, webhook
// verifier, services, handlers and routes.
func Wiring(repo *repository.Repository, config *utils.Config, envelope *crypto.Envelope, logger *zap.Logger) *App {
	gw := gateway.NewStripeClient(config.Stripe, logger)
	verifier := gateway.NewWebhookVerifier(config.Stripe.WebhookSecret)

	service := usecase.NewService(repo, config, envelope, gw, verifier, logger)
	handler := adaptor.NewHandler(service, logger)

	return &App{
		Router: setupRouter(handler, config, logger),
	}
}

func setupRouter(handler *adaptor.Handler, config *utils.Config, logger *zap.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recover(logger))
	r.Use(middleware.CORS())

	wireBooking(r, handler.Booking, config, logger)
	wirePayment(r, handler.Payment, config, logger)
	wireCovid(r, handler.Covid)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return r
}
