package api_test

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/quickserve/dispatch-api/internal/domain"
	"github.com/quickserve/dispatch-api/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetAvailability(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t)

	unverified, _ := f.provider("Mohan", domain.Provider{ServiceType: "Plumber", BasePrice: 250})
	approved, _ := f.provider("Ravi", domain.Provider{
		ServiceType: "Plumber",
		BasePrice:   300,
		KYCStatus:   domain.KYCApproved,
	})

	rr := f.do(t, http.MethodPut, "/api/provider/me/availability", unverified, map[string]any{"is_online": true})
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "Provider KYC is not approved", errorMessage(t, rr))

	rr = f.do(t, http.MethodPut, "/api/provider/me/availability", approved, map[string]any{
		"is_online":    true,
		"working_days": []string{"saturday", "Mon"},
		"start_time":   "08:00",
		"end_time":     "18:30",
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	p := decode[domain.Provider](t, rr)
	assert.True(t, p.IsOnline)
	assert.Equal(t, []string{"Mon", "Sat"}, p.WorkingDays)
	assert.Equal(t, "08:00", p.StartTime)
	assert.Equal(t, "18:30", p.EndTime)

	rr = f.do(t, http.MethodPut, "/api/provider/me/availability", approved, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Invalid is_online: required field", errorMessage(t, rr))

	rr = f.do(t, http.MethodPut, "/api/provider/me/availability", approved, map[string]any{
		"is_online":  false,
		"start_time": "19:00",
		"end_time":   "07:00",
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestProfileRoutes(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t)

	provider, _ := f.provider("Ravi", domain.Provider{ServiceType: "Plumber", BasePrice: 300})

	rr := f.do(t, http.MethodGet, "/api/provider/me", provider, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Ravi", decode[domain.Provider](t, rr).Name)

	rr = f.do(t, http.MethodPut, "/api/provider/me", provider, map[string]any{
		"bio":        "Fixes taps",
		"base_price": 350,
		"city":       "Pune",
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	p := decode[domain.Provider](t, rr)
	assert.Equal(t, "Fixes taps", p.Bio)
	assert.Equal(t, 350.0, p.BasePrice)
	assert.Equal(t, "Pune", p.City)
	assert.Equal(t, "Plumber", p.ServiceType)

	customer := f.customer()
	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodGet, "/api/provider/me", customer, nil).Code)
}

func TestUpdateLocation(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t)

	provider, _ := f.onlinePlumber("Ravi")

	rr := f.do(t, http.MethodPost, "/api/provider/location", provider, map[string]any{
		"latitude":  18.52,
		"longitude": 73.85,
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	p := decode[domain.Provider](t, rr)
	require.NotNil(t, p.LastLatitude)
	assert.InDelta(t, 18.52, *p.LastLatitude, 1e-9)

	rr = f.do(t, http.MethodPost, "/api/provider/location", provider, map[string]any{
		"latitude":  95,
		"longitude": 73.85,
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Invalid latitude: too large", errorMessage(t, rr))
}

func TestSubmitKYCJSON(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t)

	provider, _ := f.provider("Mohan", domain.Provider{ServiceType: "Plumber", BasePrice: 250})

	rr := f.do(t, http.MethodPost, "/api/provider/kyc", provider, map[string]any{
		"id_number":    "ABCD1234",
		"id_proof_url": "https://files.example.com/id.png",
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	kyc := decode[domain.ProviderKYC](t, rr)
	assert.Equal(t, domain.KYCPending, kyc.Status)
	assert.Equal(t, "https://files.example.com/id.png", kyc.IDProofURL)

	rr = f.do(t, http.MethodGet, "/api/provider/kyc", provider, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	view := decode[service.KYCView](t, rr)
	assert.Equal(t, domain.KYCPending, view.Status)
	require.NotNil(t, view.Submission)

	rr = f.do(t, http.MethodPost, "/api/provider/kyc", provider, map[string]any{"id_number": "ABCD1234"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Invalid id_proof: is required", errorMessage(t, rr))
}

func TestSubmitKYCMultipart(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t)

	provider, _ := f.provider("Mohan", domain.Provider{ServiceType: "Plumber", BasePrice: 250})

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("id_number", "ABCD1234"))
	require.NoError(t, mw.WriteField("address_line", "12 MG Road"))
	part, err := mw.CreateFormFile("id_proof", "id.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("png-bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/provider/kyc", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+tokenFor(provider))
	rr := f.serve(req)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	kyc := decode[domain.ProviderKYC](t, rr)
	assert.Equal(t, "https://files.test/id_proof-id.png", kyc.IDProofURL)
	assert.Equal(t, "12 MG Road", kyc.AddressLine)
	assert.Equal(t, 1, f.docs.UploadCount())
}

func TestSubmitKYCMultipartTooLarge(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t)

	provider, _ := f.provider("Mohan", domain.Provider{ServiceType: "Plumber", BasePrice: 250})

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("id_number", "ABCD1234"))
	part, err := mw.CreateFormFile("id_proof", "id.png")
	require.NoError(t, err)
	_, err = part.Write(bytes.Repeat([]byte("x"), 11<<20))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/provider/kyc", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+tokenFor(provider))
	rr := f.serve(req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, errorMessage(t, rr), "Invalid request")
	assert.Zero(t, f.docs.UploadCount())
}

func TestSubmitKYCUploadFailure(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t)
	f.docs.Err = fmt.Errorf("bucket unavailable")

	provider, _ := f.provider("Mohan", domain.Provider{ServiceType: "Plumber", BasePrice: 250})

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("id_number", "ABCD1234"))
	part, err := mw.CreateFormFile("id_proof", "id.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("png-bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/provider/kyc", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+tokenFor(provider))
	rr := f.serve(req)

	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.NotContains(t, rr.Body.String(), "bucket")
}

func TestProviderJobRoutes(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t)

	owner := f.customer()
	provider, plumber := f.onlinePlumber("Ravi")
	created := f.createRequest(t, owner)

	rr := f.do(t, http.MethodGet, "/api/provider/current-job", provider, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "null", strings.TrimSpace(rr.Body.String()))

	rr = f.do(t, http.MethodPost, fmt.Sprintf("/api/requests/%d/offer", created.ID), owner,
		map[string]any{"provider_id": plumber.ID})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = f.do(t, http.MethodGet, "/api/provider/incoming", provider, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	incoming := decode[[]domain.Request](t, rr)
	require.Len(t, incoming, 1)
	assert.Equal(t, created.ID, incoming[0].ID)

	acceptPath := fmt.Sprintf("/api/provider/requests/%d/accept", created.ID)
	rr = f.do(t, http.MethodPost, acceptPath, provider, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, domain.StatusAssigned, decode[domain.Request](t, rr).Status)

	rr = f.do(t, http.MethodGet, "/api/provider/current-job", provider, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, created.ID, decode[domain.Request](t, rr).ID)

	statusPath := fmt.Sprintf("/api/provider/requests/%d/status", created.ID)

	rr = f.do(t, http.MethodPost, statusPath, provider, map[string]any{"status": "teleported"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = f.do(t, http.MethodPost, statusPath, provider, map[string]any{"status": "pending"})
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "Cannot move request from assigned to pending", errorMessage(t, rr))

	for _, st := range []string{"en_route", "arrived", "payment", "completed"} {
		rr = f.do(t, http.MethodPost, statusPath, provider, map[string]any{"status": st})
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		assert.Equal(t, domain.Status(st), decode[domain.Request](t, rr).Status)
	}

	rr = f.do(t, http.MethodGet, "/api/provider/history", provider, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	history := decode[[]domain.Request](t, rr)
	require.Len(t, history, 1)
	assert.Equal(t, domain.StatusCompleted, history[0].Status)

	assert.Equal(t, http.StatusBadRequest,
		f.do(t, http.MethodGet, "/api/provider/history?limit=0x", provider, nil).Code)
}

func TestDeclineRequest(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t)

	owner := f.customer()
	provider, plumber := f.onlinePlumber("Ravi")
	other, _ := f.onlinePlumber("Suresh")
	created := f.createRequest(t, owner)

	rr := f.do(t, http.MethodPost, fmt.Sprintf("/api/requests/%d/offer", created.ID), owner,
		map[string]any{"provider_id": plumber.ID})
	require.Equal(t, http.StatusOK, rr.Code)

	path := fmt.Sprintf("/api/provider/requests/%d/decline", created.ID)
	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodPost, path, other, nil).Code)

	rr = f.do(t, http.MethodPost, path, provider, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, domain.StatusCancelled, decode[domain.Request](t, rr).Status)
}
