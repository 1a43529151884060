package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/quickserve/dispatch-api/internal/api/shared"
	"github.com/quickserve/dispatch-api/internal/domain"
	"github.com/quickserve/dispatch-api/internal/platform/logger"
	"github.com/quickserve/dispatch-api/internal/service"
	"github.com/quickserve/dispatch-api/internal/store"
)

// AdminHandler serves KYC review and the admin listings.
type AdminHandler struct {
	admin    service.AdminService
	presence service.PresenceService
	logger   *slog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(admin service.AdminService, presence service.PresenceService, logger *slog.Logger) *AdminHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for AdminHandler")
	}
	return &AdminHandler{
		admin:    admin,
		presence: presence,
		logger:   logger.With(slog.String("component", "admin_handler")),
	}
}

// KYCQueue handles GET /api/admin/kyc?status=&limit=.
func (h *AdminHandler) KYCQueue(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	id, ok := identityFromRequest(w, r, log)
	if !ok {
		return
	}

	var status *domain.KYCStatus
	if raw := queryString(r, "status"); raw != nil {
		s, err := domain.ParseKYCStatus(*raw)
		if err != nil {
			HandleAPIError(w, r, err, "")
			return
		}
		status = &s
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	queue, err := h.admin.KYCQueue(r.Context(), id, status, limit)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list KYC submissions")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, queue)
}

// KYCDetail handles GET /api/admin/kyc/{provider_id}.
func (h *AdminHandler) KYCDetail(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	id, ok := identityFromRequest(w, r, log)
	if !ok {
		return
	}

	providerID, err := pathID(r, "provider_id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	detail, err := h.admin.KYCDetail(r.Context(), id, providerID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get KYC submission")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, detail)
}

// ApproveKYC handles POST /api/admin/kyc/{provider_id}/approve.
func (h *AdminHandler) ApproveKYC(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, domain.KYCApprove, "")
}

// RejectKYC handles POST /api/admin/kyc/{provider_id}/reject.
func (h *AdminHandler) RejectKYC(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	var req RejectKYCRequest
	if !decodeAndValidate(w, r, &req, log) {
		return
	}
	h.review(w, r, domain.KYCReject, req.Reason)
}

func (h *AdminHandler) review(w http.ResponseWriter, r *http.Request, decision domain.KYCDecision, reason string) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	id, ok := identityFromRequest(w, r, log)
	if !ok {
		return
	}

	providerID, err := pathID(r, "provider_id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	kyc, err := h.presence.ReviewKYC(r.Context(), id, providerID, decision, reason)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to review KYC")
		return
	}

	log.Info("kyc reviewed",
		slog.Int64("provider_id", providerID),
		slog.String("decision", string(decision)),
		slog.Int64("admin_id", id.UserID))
	shared.RespondWithJSON(w, r, http.StatusOK, kyc)
}

// ListProviders handles GET /api/admin/providers?service_type=&kyc_status=&online=.
func (h *AdminHandler) ListProviders(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	id, ok := identityFromRequest(w, r, log)
	if !ok {
		return
	}

	f, err := providerFilter(r)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	providers, err := h.admin.ListProviders(r.Context(), id, f)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list providers")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, providers)
}

// ListCustomers handles GET /api/admin/customers?search=&limit=&offset=.
func (h *AdminHandler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	id, ok := identityFromRequest(w, r, log)
	if !ok {
		return
	}

	f := store.CustomerFilter{Search: strings.TrimSpace(r.URL.Query().Get("search"))}
	var err error
	if f.Limit, f.Offset, err = page(r); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	customers, err := h.admin.ListCustomers(r.Context(), id, f)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list customers")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, customers)
}

func providerFilter(r *http.Request) (store.ProviderFilter, error) {
	var f store.ProviderFilter
	var err error
	if f.Limit, f.Offset, err = page(r); err != nil {
		return f, err
	}
	f.ServiceType = queryString(r, "service_type")
	if raw := queryString(r, "kyc_status"); raw != nil {
		s, err := domain.ParseKYCStatus(*raw)
		if err != nil {
			return f, err
		}
		f.KYCStatus = &s
	}
	if f.Online, err = queryBool(r, "online"); err != nil {
		return f, err
	}
	return f, nil
}

// ListRequests handles GET /api/admin/requests?status=.
func (h *AdminHandler) ListRequests(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	id, ok := identityFromRequest(w, r, log)
	if !ok {
		return
	}

	var f store.RequestFilter
	var err error
	if f.Limit, f.Offset, err = page(r); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	if raw := queryString(r, "status"); raw != nil {
		s, err := domain.ParseStatus(*raw)
		if err != nil {
			HandleAPIError(w, r, err, "")
			return
		}
		f.Status = &s
	}

	requests, err := h.admin.ListRequests(r.Context(), id, f)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list requests")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, requests)
}
