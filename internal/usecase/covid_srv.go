package usecase

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mochiquin/safehome/internal/dto/response"
	"github.com/mochiquin/safehome/pkg/apperr"
)

// Restriction levels surfaced to the booking flow.
const (
	RestrictionHigh    = "high"
	RestrictionMedium  = "medium"
	RestrictionLow     = "low"
	RestrictionUnknown = "unknown"
)

type CovidService interface {
	// GetRestrictionLevel resolves country/state/city to a restriction
	// level. State and city are optional; unknown locations return
	// "unknown" rather than an error.
	GetRestrictionLevel(ctx context.Context, country, state, city string) (*response.CovidRestrictionResponse, error)
}

type covidService struct {
	// country -> state -> lowercased city -> level
	data map[string]map[string]map[string]string
	log  *zap.Logger
}

func NewCovidService(log *zap.Logger) CovidService {
	return &covidService{
		data: restrictionData(),
		log:  log.With(zap.String("service", "covid")),
	}
}

func (s *covidService) GetRestrictionLevel(ctx context.Context, country, state, city string) (*response.CovidRestrictionResponse, error) {
	if country == "" {
		return nil, fmt.Errorf("%w: country is required", apperr.ErrValidation)
	}

	countryKey := strings.ToUpper(strings.TrimSpace(country))
	stateKey := strings.ToUpper(strings.TrimSpace(state))
	cityKey := normalizeCity(city)

	level := s.lookup(countryKey, stateKey, cityKey)

	return &response.CovidRestrictionResponse{
		Country: countryKey,
		State:   state,
		City:    city,
		Level:   level,
	}, nil
}

func (s *covidService) lookup(country, state, city string) string {
	countryData, ok := s.data[country]
	if !ok {
		return RestrictionUnknown
	}

	// City without a state: search every state for it.
	if city != "" && state == "" {
		for _, stateData := range countryData {
			if level, ok := stateData[city]; ok {
				return level
			}
		}
		return RestrictionUnknown
	}

	if state == "" {
		return RestrictionUnknown
	}

	stateData, ok := countryData[state]
	if !ok {
		return RestrictionUnknown
	}

	// State without a city: the state's most common level stands in as
	// its default.
	if city == "" {
		return dominantLevel(stateData)
	}

	if level, ok := stateData[city]; ok {
		return level
	}
	return RestrictionUnknown
}

// normalizeCity lowercases and strips the trailing slashes some clients
// append to path-derived city names.
func normalizeCity(city string) string {
	city = strings.TrimSpace(city)
	city = strings.TrimRight(city, "/ ")
	return strings.ToLower(strings.TrimSpace(city))
}

func dominantLevel(cities map[string]string) string {
	if len(cities) == 0 {
		return RestrictionUnknown
	}

	counts := make(map[string]int)
	for _, level := range cities {
		counts[level]++
	}

	best, bestCount := RestrictionUnknown, 0
	for level, count := range counts {
		if count > bestCount {
			best, bestCount = level, count
		}
	}
	return best
}

// restrictionData is the advisory dataset; keys are upper-case country
// and state codes with lower-case city names.
func restrictionData() map[string]map[string]map[string]string {
	return map[string]map[string]map[string]string{
		"AU": {
			"SA":  {"adelaide": RestrictionLow, "mount gambier": RestrictionMedium, "port augusta": RestrictionLow, "whyalla": RestrictionMedium},
			"NSW": {"sydney": RestrictionHigh, "newcastle": RestrictionMedium, "wollongong": RestrictionMedium, "central coast": RestrictionLow},
			"VIC": {"melbourne": RestrictionHigh, "parkville": RestrictionHigh, "geelong": RestrictionMedium, "ballarat": RestrictionLow, "bendigo": RestrictionLow},
			"QLD": {"brisbane": RestrictionMedium, "gold coast": RestrictionMedium, "cairns": RestrictionLow, "townsville": RestrictionLow},
			"WA":  {"perth": RestrictionLow, "fremantle": RestrictionLow, "bunbury": RestrictionLow, "geraldton": RestrictionLow},
			"TAS": {"hobart": RestrictionLow, "launceston": RestrictionLow, "devonport": RestrictionLow, "burnie": RestrictionLow},
			"NT":  {"darwin": RestrictionMedium, "alice springs": RestrictionLow, "katherine": RestrictionLow, "tennant creek": RestrictionLow},
			"ACT": {"canberra": RestrictionMedium, "queanbeyan": RestrictionMedium},
		},
		"US": {
			"CA": {"los angeles": RestrictionHigh, "san francisco": RestrictionHigh, "san diego": RestrictionMedium, "sacramento": RestrictionMedium, "san jose": RestrictionMedium},
			"NY": {"new york": RestrictionHigh, "buffalo": RestrictionMedium, "rochester": RestrictionMedium, "yonkers": RestrictionMedium, "syracuse": RestrictionLow},
			"TX": {"houston": RestrictionMedium, "dallas": RestrictionMedium, "austin": RestrictionMedium, "san antonio": RestrictionMedium, "fort worth": RestrictionLow},
			"FL": {"miami": RestrictionHigh, "orlando": RestrictionMedium, "tampa": RestrictionMedium, "jacksonville": RestrictionMedium, "st. petersburg": RestrictionMedium},
			"IL": {"chicago": RestrictionMedium, "aurora": RestrictionLow, "naperville": RestrictionLow, "joliet": RestrictionLow, "rockford": RestrictionLow},
		},
		"CA": {
			"ON": {"toronto": RestrictionMedium, "ottawa": RestrictionMedium, "hamilton": RestrictionLow, "london": RestrictionLow, "kitchener": RestrictionLow},
			"BC": {"vancouver": RestrictionMedium, "victoria": RestrictionMedium, "surrey": RestrictionLow, "burnaby": RestrictionLow, "richmond": RestrictionLow},
			"QC": {"montreal": RestrictionHigh, "quebec city": RestrictionMedium, "laval": RestrictionMedium, "gatineau": RestrictionLow, "longueuil": RestrictionLow},
			"AB": {"calgary": RestrictionMedium, "edmonton": RestrictionMedium, "red deer": RestrictionLow, "lethbridge": RestrictionLow, "medicine hat": RestrictionLow},
			"MB": {"winnipeg": RestrictionLow, "brandon": RestrictionLow, "steinbach": RestrictionLow, "portage la prairie": RestrictionLow},
		},
		"GB": {
			"ENG": {"london": RestrictionHigh, "manchester": RestrictionMedium, "birmingham": RestrictionMedium, "leeds": RestrictionMedium, "liverpool": RestrictionMedium, "newcastle": RestrictionLow, "sheffield": RestrictionMedium, "bristol": RestrictionMedium, "leicester": RestrictionMedium, "coventry": RestrictionLow},
			"SCT": {"edinburgh": RestrictionMedium, "glasgow": RestrictionMedium, "aberdeen": RestrictionLow, "dundee": RestrictionLow, "inverness": RestrictionLow},
			"WLS": {"cardiff": RestrictionMedium, "swansea": RestrictionMedium, "newport": RestrictionLow, "wrexham": RestrictionLow, "bangor": RestrictionLow},
			"NIR": {"belfast": RestrictionMedium, "derry": RestrictionLow, "lisburn": RestrictionLow, "newtownabbey": RestrictionLow},
		},
	}
}
