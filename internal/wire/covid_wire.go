package wire

import (
	"github.com/go-chi/chi/v5"

	"github.com/mochiquin/safehome/internal/adaptor"
)

func wireCovid(r chi.Router, covidHandler *adaptor.CovidHandler) {
	// GET /api/covid/restrictions - Public advisory lookup
	r.Get("/api/covid/restrictions", covidHandler.GetRestrictions)
}
