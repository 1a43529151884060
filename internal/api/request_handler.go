package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/quickserve/dispatch-api/internal/api/shared"
	"github.com/quickserve/dispatch-api/internal/domain"
	"github.com/quickserve/dispatch-api/internal/platform/logger"
	"github.com/quickserve/dispatch-api/internal/service"
)

// RequestHandler serves the customer side of the request lifecycle.
type RequestHandler struct {
	requests service.RequestService
	logger   *slog.Logger
}

// NewRequestHandler creates a new RequestHandler.
func NewRequestHandler(requests service.RequestService, logger *slog.Logger) *RequestHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for RequestHandler")
	}
	return &RequestHandler{
		requests: requests,
		logger:   logger.With(slog.String("component", "request_handler")),
	}
}

// CreateRequest handles POST /api/requests.
func (h *RequestHandler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	id, ok := identityFromRequest(w, r, log)
	if !ok {
		return
	}

	var req CreateRequestRequest
	if !decodeAndValidate(w, r, &req, log) {
		return
	}
	in, err := req.toInput()
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	created, err := h.requests.CreateRequest(r.Context(), id, in)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create request")
		return
	}

	log.Debug("request created", slog.Int64("request_id", created.ID), slog.Int64("user_id", id.UserID))
	shared.RespondWithJSON(w, r, http.StatusCreated, created)
}

// ListMyRequests handles GET /api/requests/my.
func (h *RequestHandler) ListMyRequests(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	id, ok := identityFromRequest(w, r, log)
	if !ok {
		return
	}

	limit, offset, err := page(r)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	list, err := h.requests.ListMyRequests(r.Context(), id, limit, offset)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list requests")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, list)
}

// GetRequest handles GET /api/requests/{id}.
func (h *RequestHandler) GetRequest(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	id, ok := identityFromRequest(w, r, log)
	if !ok {
		return
	}

	requestID, err := pathID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	req, err := h.requests.GetRequest(r.Context(), id, requestID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get request")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, req)
}

// AssignProvider handles POST /api/requests/{id}/assign.
func (h *RequestHandler) AssignProvider(w http.ResponseWriter, r *http.Request) {
	h.withProvider(w, r, "Failed to assign provider", h.requests.AssignProvider)
}

// OfferToProvider handles POST /api/requests/{id}/offer.
func (h *RequestHandler) OfferToProvider(w http.ResponseWriter, r *http.Request) {
	h.withProvider(w, r, "Failed to offer request", h.requests.OfferToProvider)
}

func (h *RequestHandler) withProvider(
	w http.ResponseWriter,
	r *http.Request,
	fallback string,
	op func(ctx context.Context, id domain.Identity, requestID, providerID int64) (*domain.Request, error),
) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	id, ok := identityFromRequest(w, r, log)
	if !ok {
		return
	}

	requestID, err := pathID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	var req ProviderRequest
	if !decodeAndValidate(w, r, &req, log) {
		return
	}

	updated, err := op(r.Context(), id, requestID, req.ProviderID)
	if err != nil {
		HandleAPIError(w, r, err, fallback)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, updated)
}

// CancelRequest handles POST /api/requests/{id}/cancel.
func (h *RequestHandler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	id, ok := identityFromRequest(w, r, log)
	if !ok {
		return
	}

	requestID, err := pathID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	updated, err := h.requests.CancelRequest(r.Context(), id, requestID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to cancel request")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, updated)
}

// AnalyzeImage handles POST /api/requests/analyze-image. The body is a
// multipart form with the photo in the image field.
func (h *RequestHandler) AnalyzeImage(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	id, ok := identityFromRequest(w, r, log)
	if !ok {
		return
	}

	if err := parseUpload(w, r); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	img, err := formDocument(r, "image")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	if img == nil {
		HandleAPIError(w, r, domain.NewValidationError("image", "is required", nil), "")
		return
	}
	if img.ContentType == "" || img.ContentType == "application/octet-stream" {
		img.ContentType = http.DetectContentType(img.Data)
	}

	suggestion, err := h.requests.SuggestFromImage(r.Context(), id, *img)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to analyze image")
		return
	}

	log.Debug("image analyzed", slog.String("suggested_service", suggestion.ServiceType))
	shared.RespondWithJSON(w, r, http.StatusOK, suggestion)
}
