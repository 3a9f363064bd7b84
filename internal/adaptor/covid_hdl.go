package adaptor

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/mochiquin/safehome/internal/usecase"
	"github.com/mochiquin/safehome/pkg/utils"
)

type CovidHandler struct {
	service usecase.CovidService
	log     *zap.Logger
}

func NewCovidHandler(service usecase.CovidService, log *zap.Logger) *CovidHandler {
	return &CovidHandler{
		service: service,
		log:     log.With(zap.String("handler", "covid")),
	}
}

// GetRestrictions handles GET /api/covid/restrictions (public)
func (h *CovidHandler) GetRestrictions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	result, err := h.service.GetRestrictionLevel(r.Context(),
		query.Get("country"), query.Get("state"), query.Get("city"))
	if err != nil {
		handleServiceError(w, h.log, err, "get restrictions")
		return
	}

	utils.ResponseSuccess(w, "success", result)
}
