package mocks

import (
	"context"
	"sync"

	"github.com/quickserve/dispatch-api/internal/domain"
	"github.com/quickserve/dispatch-api/internal/service"
)

// MockGeocoder implements service.Geocoder for testing
type MockGeocoder struct {
	// ReverseGeocodeFn allows test cases to mock the lookup
	ReverseGeocodeFn func(ctx context.Context, loc domain.Location) (*service.Address, error)

	// Default response values
	Address *service.Address
	Err     error

	// Call tracking for verification
	Calls struct {
		mu        sync.Mutex
		Count     int
		Locations []domain.Location
	}
}

var _ service.Geocoder = (*MockGeocoder)(nil)

// ReverseGeocode implements the service.Geocoder interface
func (m *MockGeocoder) ReverseGeocode(ctx context.Context, loc domain.Location) (*service.Address, error) {
	m.Calls.mu.Lock()
	m.Calls.Count++
	m.Calls.Locations = append(m.Calls.Locations, loc)
	m.Calls.mu.Unlock()

	if m.ReverseGeocodeFn != nil {
		return m.ReverseGeocodeFn(ctx, loc)
	}
	return m.Address, m.Err
}

// CallCount returns the number of lookups made.
func (m *MockGeocoder) CallCount() int {
	m.Calls.mu.Lock()
	defer m.Calls.mu.Unlock()
	return m.Calls.Count
}
