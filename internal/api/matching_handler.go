package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/quickserve/dispatch-api/internal/api/shared"
	"github.com/quickserve/dispatch-api/internal/domain"
	"github.com/quickserve/dispatch-api/internal/platform/logger"
	"github.com/quickserve/dispatch-api/internal/service"
)

// MatchingHandler serves candidate search.
type MatchingHandler struct {
	matching service.MatchingService
	logger   *slog.Logger
}

// NewMatchingHandler creates a new MatchingHandler.
func NewMatchingHandler(matching service.MatchingService, logger *slog.Logger) *MatchingHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for MatchingHandler")
	}
	return &MatchingHandler{
		matching: matching,
		logger:   logger.With(slog.String("component", "matching_handler")),
	}
}

// FindCandidates handles GET /api/matching/candidates?service_type=&lat=&lng=&limit=.
func (h *MatchingHandler) FindCandidates(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	id, ok := identityFromRequest(w, r, log)
	if !ok {
		return
	}

	q, err := candidateQuery(r)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	candidates, err := h.matching.FindCandidates(r.Context(), id, q)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to find providers")
		return
	}

	log.Debug("candidates found",
		slog.String("service_type", q.ServiceType),
		slog.Int("count", len(candidates)))
	shared.RespondWithJSON(w, r, http.StatusOK, candidates)
}

func candidateQuery(r *http.Request) (service.Query, error) {
	q := service.Query{ServiceType: strings.TrimSpace(r.URL.Query().Get("service_type"))}
	if q.ServiceType == "" {
		return q, domain.NewValidationError("service_type", "is required", nil)
	}

	var err error
	if q.Limit, err = queryInt(r, "limit"); err != nil {
		return q, err
	}

	lat, err := queryFloat(r, "lat")
	if err != nil {
		return q, err
	}
	lng, err := queryFloat(r, "lng")
	if err != nil {
		return q, err
	}
	if (lat == nil) != (lng == nil) {
		return q, domain.NewValidationError("lat", "lat and lng must be given together", nil)
	}
	if lat != nil {
		loc := domain.Location{Latitude: *lat, Longitude: *lng}
		if err := loc.Validate(); err != nil {
			return q, err
		}
		q.Near = &loc
	}
	return q, nil
}

// ProviderProfile handles GET /api/providers/{id}.
func (h *MatchingHandler) ProviderProfile(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	id, ok := identityFromRequest(w, r, log)
	if !ok {
		return
	}

	providerID, err := pathID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	profile, err := h.matching.ProviderProfile(r.Context(), id, providerID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get provider")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, profile)
}
