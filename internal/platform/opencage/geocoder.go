package opencage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/quickserve/dispatch-api/internal/config"
	"github.com/quickserve/dispatch-api/internal/domain"
	"github.com/quickserve/dispatch-api/internal/platform/logger"
	"github.com/quickserve/dispatch-api/internal/service"
)

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 1 << 20

// Geocoder resolves positions through the OpenCage API.
type Geocoder struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *slog.Logger
}

var _ service.Geocoder = (*Geocoder)(nil)

// NewGeocoder creates a Geocoder from cfg. A zero timeout falls back to
// config.DefaultGeocodingTimeoutSeconds.
func NewGeocoder(cfg config.GeocodingConfig, log *slog.Logger) (*Geocoder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("geocoding api key is required")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = config.DefaultGeocodingBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid geocoding base url: %w", err)
	}
	timeout := cfg.TimeoutSeconds
	if timeout <= 0 {
		timeout = config.DefaultGeocodingTimeoutSeconds
	}
	if log == nil {
		log = slog.Default()
	}
	return &Geocoder{
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: time.Duration(timeout) * time.Second},
		logger:  log.With(slog.String("component", "opencage_geocoder")),
	}, nil
}

type response struct {
	Results []struct {
		Formatted  string `json:"formatted"`
		Components struct {
			City    string `json:"city"`
			Town    string `json:"town"`
			Village string `json:"village"`
			State   string `json:"state"`
			Country string `json:"country"`
		} `json:"components"`
	} `json:"results"`
}

// ReverseGeocode implements service.Geocoder. It returns nil and no error
// when OpenCage has no result for loc.
func (g *Geocoder) ReverseGeocode(ctx context.Context, loc domain.Location) (*service.Address, error) {
	log := logger.FromContextOrDefault(ctx, g.logger)

	q := url.Values{}
	q.Set("q", strconv.FormatFloat(loc.Latitude, 'f', -1, 64)+","+strconv.FormatFloat(loc.Longitude, 'f', -1, 64))
	q.Set("key", g.apiKey)
	q.Set("limit", "1")
	q.Set("no_annotations", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building geocoding request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		// The error text carries the URL and with it the API key.
		log.Warn("geocoding request failed")
		return nil, fmt.Errorf("%w: geocoding request failed", domain.ErrUpstream)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		log.Warn("geocoding request rejected", slog.Int("status", resp.StatusCode))
		return nil, fmt.Errorf("%w: geocoding returned status %d", domain.ErrUpstream, resp.StatusCode)
	}

	var body response
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decoding geocoding response: %v", domain.ErrUpstream, err)
	}
	if len(body.Results) == 0 {
		return nil, nil
	}

	r := body.Results[0]
	city := r.Components.City
	if city == "" {
		city = r.Components.Town
	}
	if city == "" {
		city = r.Components.Village
	}
	return &service.Address{
		Formatted: r.Formatted,
		City:      city,
		State:     r.Components.State,
		Country:   r.Components.Country,
	}, nil
}
