package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/quickserve/dispatch-api/internal/api"
	apiMiddleware "github.com/quickserve/dispatch-api/internal/api/middleware"
)

// setupRouter builds the HTTP router: shared middleware, the health check
// and every authenticated /api route.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.NewTraceMiddleware(app.logger))

	authMiddleware := apiMiddleware.NewAuthMiddleware(app.jwtService)

	handlers := api.Handlers{
		Requests:  api.NewRequestHandler(app.services.requests, app.logger),
		Providers: api.NewProviderHandler(app.services.presence, app.services.requests, app.logger),
		Matching:  api.NewMatchingHandler(app.services.matching, app.logger),
		Admin:     api.NewAdminHandler(app.services.admin, app.services.presence, app.logger),
	}
	handlers.Mount(r, authMiddleware.Authenticate)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("failed to write health check response", "error", err)
		}
	})

	return r
}
