package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/quickserve/dispatch-api/internal/config"
	"github.com/quickserve/dispatch-api/internal/domain"
	"github.com/quickserve/dispatch-api/internal/events"
	"github.com/quickserve/dispatch-api/internal/platform/logger"
	"github.com/quickserve/dispatch-api/internal/store"
)

// Deps are the collaborators shared by the dispatch services.
type Deps struct {
	// Store is required.
	Store store.TxRunner

	// Matching holds the business settings, loaded once at startup.
	Matching config.MatchingConfig

	// Events receives lifecycle events. Optional.
	Events events.EventEmitter

	// Geocoder enriches requests and providers with addresses. Optional.
	Geocoder Geocoder

	// Documents stores KYC uploads. Required only for submissions that
	// carry file contents.
	Documents DocumentStorage

	// Analyzer suggests a service from a photo. Optional.
	Analyzer ImageAnalyzer

	Logger *slog.Logger

	// Now defaults to time.Now.
	Now func() time.Time
}

// engine holds what every service needs.
type engine struct {
	store     store.TxRunner
	matching  config.MatchingConfig
	catalogue *Catalogue
	events    events.EventEmitter
	geocoder  Geocoder
	documents DocumentStorage
	analyzer  ImageAnalyzer
	now       func() time.Time
	logger    *slog.Logger
}

func newEngine(d Deps, component string) (*engine, error) {
	if d.Store == nil {
		return nil, domain.NewValidationError("store", "cannot be nil", domain.ErrValidation)
	}
	l := d.Logger
	if l == nil {
		l = slog.Default()
	}
	now := d.Now
	if now == nil {
		now = time.Now
	}
	return &engine{
		store:     d.Store,
		matching:  d.Matching,
		catalogue: NewCatalogue(d.Matching),
		events:    d.Events,
		geocoder:  d.Geocoder,
		documents: d.Documents,
		analyzer:  d.Analyzer,
		now:       func() time.Time { return now().UTC() },
		logger:    l.With(slog.String("component", component)),
	}, nil
}

func (e *engine) log(ctx context.Context) *slog.Logger {
	return logger.FromContextOrDefault(ctx, e.logger)
}

// emit publishes a committed change. Handler failures are logged only.
func (e *engine) emit(ctx context.Context, eventType string, payload any) {
	if e.events == nil {
		return
	}
	event, err := events.NewEvent(eventType, payload)
	if err != nil {
		e.log(ctx).Error("failed to build event",
			slog.String("event_type", eventType), slog.String("error", err.Error()))
		return
	}
	if err := e.events.EmitEvent(ctx, event); err != nil {
		e.log(ctx).Warn("event handler failed",
			slog.String("event_type", eventType), slog.String("error", err.Error()))
	}
}

func (e *engine) emitStatusChange(ctx context.Context, r *domain.Request, from domain.Status, actor domain.Role) {
	e.emit(ctx, events.TypeRequestStatusChanged, events.RequestStatusChanged{
		RequestID:  r.ID,
		ProviderID: r.ProviderID,
		From:       from,
		To:         r.Status,
		Actor:      actor,
	})
}

// reverseGeocode is best effort: it returns nil on any failure.
func (e *engine) reverseGeocode(ctx context.Context, loc domain.Location) *Address {
	if e.geocoder == nil {
		return nil
	}
	addr, err := e.geocoder.ReverseGeocode(ctx, loc)
	if err != nil {
		e.log(ctx).Warn("reverse geocoding failed, continuing without address",
			slog.Float64("latitude", loc.Latitude),
			slog.Float64("longitude", loc.Longitude),
			slog.String("error", err.Error()))
		return nil
	}
	return addr
}

// customerFor resolves the customer profile of id.
func customerFor(ctx context.Context, repos store.Repositories, id domain.Identity) (*domain.Customer, error) {
	if err := authorize(id, roleOnly(domain.RoleCustomer), nil); err != nil {
		return nil, err
	}
	return repos.Users.GetCustomerByUserID(ctx, id.UserID)
}

// providerFor resolves the provider profile of id, locking it when lock is
// set.
func providerFor(ctx context.Context, repos store.Repositories, id domain.Identity, lock bool) (*domain.Provider, error) {
	if err := authorize(id, roleOnly(domain.RoleProvider), nil); err != nil {
		return nil, err
	}
	if lock {
		return repos.Providers.LockByUserID(ctx, id.UserID)
	}
	return repos.Providers.GetByUserID(ctx, id.UserID)
}

// Paging limits for list operations.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	incomingLimit   = 10
)

// pageSize applies the default to zero and rejects values outside 1..100.
func pageSize(limit int) (int, error) {
	switch {
	case limit == 0:
		return DefaultPageSize, nil
	case limit < 1 || limit > MaxPageSize:
		return 0, domain.NewValidationError("limit", "must be between 1 and 100", nil)
	}
	return limit, nil
}
