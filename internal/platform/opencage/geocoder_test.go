package opencage_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/quickserve/dispatch-api/internal/config"
	"github.com/quickserve/dispatch-api/internal/domain"
	"github.com/quickserve/dispatch-api/internal/platform/opencage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGeocoder(t *testing.T, h http.HandlerFunc) *opencage.Geocoder {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	g, err := opencage.NewGeocoder(config.GeocodingConfig{
		APIKey:         "test-key",
		BaseURL:        srv.URL,
		TimeoutSeconds: 2,
	}, nil)
	require.NoError(t, err)
	return g
}

func TestNewGeocoderRequiresKey(t *testing.T) {
	_, err := opencage.NewGeocoder(config.GeocodingConfig{}, nil)
	assert.Error(t, err)
}

func TestReverseGeocode(t *testing.T) {
	t.Run("city from components", func(t *testing.T) {
		g := newGeocoder(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "12.9716,77.5946", r.URL.Query().Get("q"))
			assert.Equal(t, "test-key", r.URL.Query().Get("key"))
			assert.Equal(t, "1", r.URL.Query().Get("limit"))
			_, _ = w.Write([]byte(`{"results":[{"formatted":"MG Road, Bengaluru","components":{"city":"Bengaluru","state":"Karnataka","country":"India"}}]}`))
		})

		addr, err := g.ReverseGeocode(context.Background(), domain.Location{Latitude: 12.9716, Longitude: 77.5946})
		require.NoError(t, err)
		require.NotNil(t, addr)
		assert.Equal(t, "Bengaluru", addr.City)
		assert.Equal(t, "Karnataka", addr.State)
		assert.Equal(t, "India", addr.Country)
		assert.Equal(t, "MG Road, Bengaluru", addr.Formatted)
	})

	t.Run("town when no city", func(t *testing.T) {
		g := newGeocoder(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"results":[{"components":{"town":"Hosur"}}]}`))
		})

		addr, err := g.ReverseGeocode(context.Background(), domain.Location{Latitude: 12.7, Longitude: 77.8})
		require.NoError(t, err)
		assert.Equal(t, "Hosur", addr.City)
	})

	t.Run("no results", func(t *testing.T) {
		g := newGeocoder(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"results":[]}`))
		})

		addr, err := g.ReverseGeocode(context.Background(), domain.Location{})
		require.NoError(t, err)
		assert.Nil(t, addr)
	})

	t.Run("error status", func(t *testing.T) {
		g := newGeocoder(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusPaymentRequired)
		})

		_, err := g.ReverseGeocode(context.Background(), domain.Location{})
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrUpstream))
	})

	t.Run("malformed body", func(t *testing.T) {
		g := newGeocoder(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`not json`))
		})

		_, err := g.ReverseGeocode(context.Background(), domain.Location{})
		assert.True(t, errors.Is(err, domain.ErrUpstream))
	})
}
