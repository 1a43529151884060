package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/quickserve/dispatch-api/internal/api"
	"github.com/quickserve/dispatch-api/internal/api/middleware"
	"github.com/quickserve/dispatch-api/internal/api/shared"
	"github.com/quickserve/dispatch-api/internal/config"
	"github.com/quickserve/dispatch-api/internal/domain"
	"github.com/quickserve/dispatch-api/internal/mocks"
	"github.com/quickserve/dispatch-api/internal/platform/logger"
	"github.com/quickserve/dispatch-api/internal/platform/memory"
	"github.com/quickserve/dispatch-api/internal/service"
	"github.com/quickserve/dispatch-api/internal/service/auth"
	"github.com/stretchr/testify/require"
)

type apiFixture struct {
	store    *memory.Store
	docs     *mocks.MockDocumentStorage
	analyzer *mocks.MockImageAnalyzer
	router   http.Handler
}

// tokenFor encodes an identity as "<role>:<user id>", which the fixture's
// JWT mock accepts.
func tokenFor(id domain.Identity) string {
	return fmt.Sprintf("%s:%d", id.Role, id.UserID)
}

func parseTestToken(_ context.Context, token string) (*auth.Claims, error) {
	role, rawID, ok := strings.Cut(token, ":")
	if !ok {
		return nil, auth.ErrInvalidToken
	}
	userID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return nil, auth.ErrInvalidToken
	}
	return &auth.Claims{UserID: userID, Role: domain.Role(role)}, nil
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	log, _ := logger.NewTestLogger(t)
	f := &apiFixture{
		store:    memory.NewStore(),
		docs:     &mocks.MockDocumentStorage{},
		analyzer: &mocks.MockImageAnalyzer{},
	}
	deps := service.Deps{
		Store:     f.store,
		Matching:  config.DefaultMatchingConfig(),
		Geocoder:  &mocks.MockGeocoder{},
		Documents: f.docs,
		Analyzer:  f.analyzer,
		Logger:    log,
	}

	requests, err := service.NewRequestService(deps)
	require.NoError(t, err)
	presence, err := service.NewPresenceService(deps)
	require.NoError(t, err)
	matching, err := service.NewMatchingService(deps)
	require.NoError(t, err)
	admin, err := service.NewAdminService(deps)
	require.NoError(t, err)

	handlers := api.Handlers{
		Requests:  api.NewRequestHandler(requests, log),
		Providers: api.NewProviderHandler(presence, requests, log),
		Matching:  api.NewMatchingHandler(matching, log),
		Admin:     api.NewAdminHandler(admin, presence, log),
	}
	authn := middleware.NewAuthMiddleware(&mocks.MockJWTService{ValidateTokenFn: parseTestToken})

	r := chi.NewRouter()
	r.Use(middleware.NewTraceMiddleware(log))
	handlers.Mount(r, authn.Authenticate)
	f.router = r
	return f
}

func (f *apiFixture) customer() domain.Identity {
	u, _ := f.store.AddCustomer("Asha Customer")
	return domain.Identity{UserID: u.ID, Role: domain.RoleCustomer}
}

func (f *apiFixture) adminUser() domain.Identity {
	u := f.store.AddUser("Ops Admin", "ops@example.com", domain.RoleAdmin)
	return domain.Identity{UserID: u.ID, Role: domain.RoleAdmin}
}

func (f *apiFixture) provider(name string, p domain.Provider) (domain.Identity, *domain.Provider) {
	u, stored := f.store.AddProvider(name, p)
	return domain.Identity{UserID: u.ID, Role: domain.RoleProvider}, stored
}

func (f *apiFixture) onlinePlumber(name string) (domain.Identity, *domain.Provider) {
	return f.provider(name, domain.Provider{
		ServiceType: "Plumber",
		BasePrice:   300,
		KYCStatus:   domain.KYCApproved,
		IsOnline:    true,
	})
}

// do sends a JSON request as caller; a zero caller sends no token.
func (f *apiFixture) do(t *testing.T, method, path string, caller domain.Identity, body any) *httptest.ResponseRecorder {
	t.Helper()

	var rdr io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rdr = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rdr = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	if caller.UserID != 0 {
		req.Header.Set("Authorization", "Bearer "+tokenFor(caller))
	}
	return f.serve(req)
}

func (f *apiFixture) serve(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func (f *apiFixture) createRequest(t *testing.T, customer domain.Identity) domain.Request {
	t.Helper()
	rr := f.do(t, http.MethodPost, "/api/requests", customer, map[string]any{
		"title":        "Leaking tap",
		"service_type": "plumber",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return decode[domain.Request](t, rr)
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func errorMessage(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[shared.ErrorResponse](t, rr).Error
}
