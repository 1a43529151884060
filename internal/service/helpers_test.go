package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/quickserve/dispatch-api/internal/config"
	"github.com/quickserve/dispatch-api/internal/domain"
	"github.com/quickserve/dispatch-api/internal/events"
	"github.com/quickserve/dispatch-api/internal/mocks"
	"github.com/quickserve/dispatch-api/internal/platform/logger"
	"github.com/quickserve/dispatch-api/internal/platform/memory"
	"github.com/quickserve/dispatch-api/internal/service"
	"github.com/quickserve/dispatch-api/internal/store"
	"github.com/stretchr/testify/require"
)

// clock is a settable time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	store    *memory.Store
	recorder *events.Recorder
	geocoder *mocks.MockGeocoder
	docs     *mocks.MockDocumentStorage
	analyzer *mocks.MockImageAnalyzer
	clock    *clock

	requests service.RequestService
	presence service.PresenceService
	matching service.MatchingService
	admin    service.AdminService
}

func newFixture(t *testing.T, configure ...func(*service.Deps)) *fixture {
	t.Helper()

	f := &fixture{
		store:    memory.NewStore(),
		recorder: &events.Recorder{},
		geocoder: &mocks.MockGeocoder{},
		docs:     &mocks.MockDocumentStorage{},
		analyzer: &mocks.MockImageAnalyzer{},
		clock:    &clock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)},
	}

	log, _ := logger.NewTestLogger(t)
	emitter := events.NewInMemoryEventEmitter(log)
	emitter.RegisterHandler(f.recorder)

	deps := service.Deps{
		Store:     f.store,
		Matching:  config.DefaultMatchingConfig(),
		Events:    emitter,
		Geocoder:  f.geocoder,
		Documents: f.docs,
		Analyzer:  f.analyzer,
		Logger:    log,
		Now:       f.clock.Now,
	}
	for _, fn := range configure {
		fn(&deps)
	}

	var err error
	f.requests, err = service.NewRequestService(deps)
	require.NoError(t, err)
	f.presence, err = service.NewPresenceService(deps)
	require.NoError(t, err)
	f.matching, err = service.NewMatchingService(deps)
	require.NoError(t, err)
	f.admin, err = service.NewAdminService(deps)
	require.NoError(t, err)
	return f
}

func (f *fixture) customer(name string) domain.Identity {
	u, _ := f.store.AddCustomer(name)
	return domain.Identity{UserID: u.ID, Role: domain.RoleCustomer}
}

func (f *fixture) adminUser() domain.Identity {
	u := f.store.AddUser("Ops Admin", "ops@example.com", domain.RoleAdmin)
	return domain.Identity{UserID: u.ID, Role: domain.RoleAdmin}
}

// provider seeds a provider; p supplies service type, price, KYC state and
// presence.
func (f *fixture) provider(name string, p domain.Provider) (domain.Identity, *domain.Provider) {
	u, stored := f.store.AddProvider(name, p)
	return domain.Identity{UserID: u.ID, Role: domain.RoleProvider}, stored
}

// onlineProvider seeds an approved, online provider.
func (f *fixture) onlineProvider(name, serviceType string, basePrice float64) (domain.Identity, *domain.Provider) {
	return f.provider(name, domain.Provider{
		ServiceType: serviceType,
		BasePrice:   basePrice,
		KYCStatus:   domain.KYCApproved,
		IsOnline:    true,
	})
}

func (f *fixture) createRequest(t *testing.T, customer domain.Identity, serviceType string) *domain.Request {
	t.Helper()
	r, err := f.requests.CreateRequest(context.Background(), customer, service.CreateRequestInput{
		Title:       "Fix it",
		ServiceType: serviceType,
	})
	require.NoError(t, err)
	return r
}

func (f *fixture) loadRequest(t *testing.T, id int64) *domain.Request {
	t.Helper()
	r, err := f.store.Repositories().Requests.GetByID(context.Background(), id)
	require.NoError(t, err)
	return r
}

func (f *fixture) loadProvider(t *testing.T, id int64) *domain.Provider {
	t.Helper()
	p, err := f.store.Repositories().Providers.GetByID(context.Background(), id)
	require.NoError(t, err)
	return p
}

// assertPresenceInvariant checks that no provider is online without
// approved KYC.
func (f *fixture) assertPresenceInvariant(t *testing.T) {
	t.Helper()
	all, err := f.store.Repositories().Providers.List(context.Background(), store.ProviderFilter{})
	require.NoError(t, err)
	for _, p := range all {
		if p.IsOnline {
			require.Equal(t, domain.KYCApproved, p.KYCStatus, "provider %d online without approval", p.ID)
		}
	}
}

// assertOneActivePerProvider checks that no provider holds more than one
// active request.
func (f *fixture) assertOneActivePerProvider(t *testing.T) {
	t.Helper()
	all, err := f.store.Repositories().Providers.List(context.Background(), store.ProviderFilter{})
	require.NoError(t, err)
	for _, p := range all {
		n, err := f.store.Repositories().Requests.CountActiveForProvider(context.Background(), p.ID)
		require.NoError(t, err)
		require.LessOrEqual(t, n, 1, "provider %d has %d active requests", p.ID, n)
	}
}

func floatPtr(v float64) *float64 { return &v }
func strPtr(v string) *string     { return &v }
