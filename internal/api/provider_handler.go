package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/quickserve/dispatch-api/internal/api/shared"
	"github.com/quickserve/dispatch-api/internal/domain"
	"github.com/quickserve/dispatch-api/internal/platform/logger"
	"github.com/quickserve/dispatch-api/internal/service"
)

// maxUploadBytes caps a multipart body.
const maxUploadBytes = 10 << 20

// ProviderHandler serves the provider's own profile, presence, verification
// and jobs.
type ProviderHandler struct {
	presence service.PresenceService
	requests service.RequestService
	logger   *slog.Logger
}

// NewProviderHandler creates a new ProviderHandler.
func NewProviderHandler(
	presence service.PresenceService,
	requests service.RequestService,
	logger *slog.Logger,
) *ProviderHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for ProviderHandler")
	}
	return &ProviderHandler{
		presence: presence,
		requests: requests,
		logger:   logger.With(slog.String("component", "provider_handler")),
	}
}

// GetProfile handles GET /api/provider/me.
func (h *ProviderHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	id, ok := identityFromRequest(w, r, log)
	if !ok {
		return
	}

	p, err := h.presence.GetProfile(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get profile")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, p)
}

// UpdateProfile handles PUT /api/provider/me.
func (h *ProviderHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	id, ok := identityFromRequest(w, r, log)
	if !ok {
		return
	}

	var req ProfileRequest
	if !decodeAndValidate(w, r, &req, log) {
		return
	}

	p, err := h.presence.UpdateProfile(r.Context(), id, req.toUpdate())
	if err != nil {
		HandleAPIError(w, r, err, "Failed to update profile")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, p)
}

// SetAvailability handles PUT /api/provider/me/availability.
func (h *ProviderHandler) SetAvailability(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	id, ok := identityFromRequest(w, r, log)
	if !ok {
		return
	}

	var req AvailabilityRequest
	if !decodeAndValidate(w, r, &req, log) {
		return
	}

	p, err := h.presence.SetOnline(r.Context(), id, *req.IsOnline, req.schedule())
	if err != nil {
		HandleAPIError(w, r, err, "Failed to update availability")
		return
	}

	log.Debug("availability updated", slog.Int64("provider_id", p.ID), slog.Bool("is_online", p.IsOnline))
	shared.RespondWithJSON(w, r, http.StatusOK, p)
}

// UpdateLocation handles POST /api/provider/location.
func (h *ProviderHandler) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	id, ok := identityFromRequest(w, r, log)
	if !ok {
		return
	}

	var req LocationRequest
	if !decodeAndValidate(w, r, &req, log) {
		return
	}

	p, err := h.presence.UpdateLocation(r.Context(), id, domain.Location{
		Latitude:  *req.Latitude,
		Longitude: *req.Longitude,
	})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to update location")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, p)
}

// KYCStatus handles GET /api/provider/kyc.
func (h *ProviderHandler) KYCStatus(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	id, ok := identityFromRequest(w, r, log)
	if !ok {
		return
	}

	view, err := h.presence.KYCStatus(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get KYC status")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, view)
}

// SubmitKYC handles POST /api/provider/kyc. It accepts either a JSON body
// referencing stored documents or a multipart form carrying the files
// id_proof, address_proof and profile_photo.
func (h *ProviderHandler) SubmitKYC(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	id, ok := identityFromRequest(w, r, log)
	if !ok {
		return
	}

	var sub service.KYCSubmission
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		var err error
		if sub, err = readKYCForm(w, r); err != nil {
			HandleAPIError(w, r, err, "")
			return
		}
	} else {
		var req KYCRequest
		if !decodeAndValidate(w, r, &req, log) {
			return
		}
		sub = service.KYCSubmission{
			IDNumber:        req.IDNumber,
			AddressLine:     req.AddressLine,
			IDProofURL:      req.IDProofURL,
			AddressProofURL: req.AddressProofURL,
			ProfilePhotoURL: req.ProfilePhotoURL,
		}
	}

	kyc, err := h.presence.SubmitKYC(r.Context(), id, sub)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to submit KYC")
		return
	}

	log.Info("kyc submitted", slog.Int64("provider_id", kyc.ProviderID))
	shared.RespondWithJSON(w, r, http.StatusOK, kyc)
}

// parseUpload reads a multipart body into memory. Bodies over
// maxUploadBytes are rejected rather than spooled to disk. The caller
// removes the parsed form.
func parseUpload(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return domain.NewValidationError("", "upload exceeds 10MB", err)
		}
		return domain.NewValidationError("", "invalid multipart form", err)
	}
	return nil
}

func readKYCForm(w http.ResponseWriter, r *http.Request) (service.KYCSubmission, error) {
	if err := parseUpload(w, r); err != nil {
		return service.KYCSubmission{}, err
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	sub := service.KYCSubmission{
		IDNumber:    strings.TrimSpace(r.FormValue("id_number")),
		AddressLine: strings.TrimSpace(r.FormValue("address_line")),
	}
	var err error
	if sub.IDProof, err = formDocument(r, "id_proof"); err != nil {
		return sub, err
	}
	if sub.AddressProof, err = formDocument(r, "address_proof"); err != nil {
		return sub, err
	}
	if sub.ProfilePhoto, err = formDocument(r, "profile_photo"); err != nil {
		return sub, err
	}
	return sub, nil
}

// formDocument reads an optional file field. A missing field is nil.
func formDocument(r *http.Request, field string) (*service.Document, error) {
	f, header, err := r.FormFile(field)
	if err == http.ErrMissingFile {
		return nil, nil
	}
	if err != nil {
		return nil, domain.NewValidationError(field, "could not be read", err)
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, domain.NewValidationError(field, "could not be read", err)
	}
	if len(data) == 0 {
		return nil, domain.NewValidationError(field, "is empty", nil)
	}
	return &service.Document{
		Name:        fmt.Sprintf("%s-%s", field, header.Filename),
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

// IncomingOffers handles GET /api/provider/incoming.
func (h *ProviderHandler) IncomingOffers(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, "Failed to list incoming requests", func(ctx context.Context, id domain.Identity) (any, error) {
		return h.requests.IncomingOffers(ctx, id)
	})
}

// CurrentJob handles GET /api/provider/current-job. The body is null when
// the provider has no active job.
func (h *ProviderHandler) CurrentJob(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, "Failed to get current job", func(ctx context.Context, id domain.Identity) (any, error) {
		return h.requests.CurrentJob(ctx, id)
	})
}

// History handles GET /api/provider/history.
func (h *ProviderHandler) History(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	h.list(w, r, "Failed to get history", func(ctx context.Context, id domain.Identity) (any, error) {
		return h.requests.History(ctx, id, limit)
	})
}

func (h *ProviderHandler) list(
	w http.ResponseWriter,
	r *http.Request,
	fallback string,
	fetch func(ctx context.Context, id domain.Identity) (any, error),
) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	id, ok := identityFromRequest(w, r, log)
	if !ok {
		return
	}

	out, err := fetch(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, fallback)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, out)
}

// AcceptRequest handles POST /api/provider/requests/{id}/accept.
func (h *ProviderHandler) AcceptRequest(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, "Failed to accept request", h.requests.AcceptRequest)
}

// DeclineRequest handles POST /api/provider/requests/{id}/decline.
func (h *ProviderHandler) DeclineRequest(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, "Failed to decline request", h.requests.DeclineRequest)
}

// AdvanceStatus handles POST /api/provider/requests/{id}/status. Unknown
// status names are rejected here, before the lifecycle sees them.
func (h *ProviderHandler) AdvanceStatus(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	if _, ok := identityFromRequest(w, r, log); !ok {
		return
	}

	var req StatusRequest
	if !decodeAndValidate(w, r, &req, log) {
		return
	}
	to, err := domain.ParseStatus(req.Status)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	h.act(w, r, "Failed to update status", func(ctx context.Context, id domain.Identity, requestID int64) (*domain.Request, error) {
		return h.requests.AdvanceStatus(ctx, id, requestID, to)
	})
}

func (h *ProviderHandler) act(
	w http.ResponseWriter,
	r *http.Request,
	fallback string,
	op func(ctx context.Context, id domain.Identity, requestID int64) (*domain.Request, error),
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

	updated, err := op(r.Context(), id, requestID)
	if err != nil {
		HandleAPIError(w, r, err, fallback)
		return
	}

	log.Debug("request updated",
		slog.Int64("request_id", updated.ID),
		slog.String("status", string(updated.Status)))
	shared.RespondWithJSON(w, r, http.StatusOK, updated)
}
