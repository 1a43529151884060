package store

import (
	"context"

	"github.com/quickserve/dispatch-api/internal/domain"
)

// ProviderFilter narrows an admin provider listing. Nil fields do not filter.
type ProviderFilter struct {
	ServiceType *string
	KYCStatus   *domain.KYCStatus
	Online      *bool
	Limit       int
	Offset      int
}

// ProviderStore persists provider profiles and presence.
type ProviderStore interface {
	GetByID(ctx context.Context, id int64) (*domain.Provider, error)
	GetByUserID(ctx context.Context, userID int64) (*domain.Provider, error)

	// LockByID and LockByUserID read the provider and hold a row lock until
	// the surrounding transaction ends.
	LockByID(ctx context.Context, id int64) (*domain.Provider, error)
	LockByUserID(ctx context.Context, userID int64) (*domain.Provider, error)

	// Update writes every mutable field of p. It returns ErrProviderNotFound
	// when no row has p.ID.
	Update(ctx context.Context, p *domain.Provider) error

	// ListEligible returns approved, online providers of serviceType that
	// have no active request, at most limit of them. When near is given the
	// nearest providers come first and those without a position last;
	// otherwise they are ordered by id.
	ListEligible(ctx context.Context, serviceType string, near *domain.Location, limit int) ([]*domain.Provider, error)

	// List returns providers matching f ordered by id.
	List(ctx context.Context, f ProviderFilter) ([]*domain.Provider, error)
}
