package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Handlers groups the handlers mounted under /api.
type Handlers struct {
	Requests  *RequestHandler
	Providers *ProviderHandler
	Matching  *MatchingHandler
	Admin     *AdminHandler
}

// Mount registers every /api route on r behind authenticate. Role checks
// happen in the services, so routes are grouped by audience only.
func (h Handlers) Mount(r chi.Router, authenticate func(http.Handler) http.Handler) {
	r.Route("/api", func(r chi.Router) {
		r.Use(authenticate)

		r.Route("/requests", func(r chi.Router) {
			r.Post("/", h.Requests.CreateRequest)
			r.Get("/my", h.Requests.ListMyRequests)
			r.Post("/analyze-image", h.Requests.AnalyzeImage)
			r.Get("/{id}", h.Requests.GetRequest)
			r.Post("/{id}/assign", h.Requests.AssignProvider)
			r.Post("/{id}/offer", h.Requests.OfferToProvider)
			r.Post("/{id}/cancel", h.Requests.CancelRequest)
		})

		r.Get("/matching/candidates", h.Matching.FindCandidates)
		r.Get("/providers/{id}", h.Matching.ProviderProfile)

		r.Route("/provider", func(r chi.Router) {
			r.Get("/me", h.Providers.GetProfile)
			r.Put("/me", h.Providers.UpdateProfile)
			r.Put("/me/availability", h.Providers.SetAvailability)
			r.Post("/location", h.Providers.UpdateLocation)
			r.Get("/kyc", h.Providers.KYCStatus)
			r.Post("/kyc", h.Providers.SubmitKYC)
			r.Get("/incoming", h.Providers.IncomingOffers)
			r.Get("/current-job", h.Providers.CurrentJob)
			r.Get("/history", h.Providers.History)
			r.Post("/requests/{id}/accept", h.Providers.AcceptRequest)
			r.Post("/requests/{id}/decline", h.Providers.DeclineRequest)
			r.Post("/requests/{id}/status", h.Providers.AdvanceStatus)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Get("/kyc", h.Admin.KYCQueue)
			r.Get("/kyc/{provider_id}", h.Admin.KYCDetail)
			r.Post("/kyc/{provider_id}/approve", h.Admin.ApproveKYC)
			r.Post("/kyc/{provider_id}/reject", h.Admin.RejectKYC)
			r.Get("/providers", h.Admin.ListProviders)
			r.Get("/requests", h.Admin.ListRequests)
			r.Get("/customers", h.Admin.ListCustomers)
		})
	})
}
