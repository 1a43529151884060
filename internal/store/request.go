package store

import (
	"context"
	"time"

	"github.com/quickserve/dispatch-api/internal/domain"
)

// RequestFilter narrows an admin request listing.
type RequestFilter struct {
	Status *domain.Status
	Limit  int
	Offset int
}

// RequestStore persists service requests.
type RequestStore interface {
	// Create inserts r and sets its ID.
	Create(ctx context.Context, r *domain.Request) error

	GetByID(ctx context.Context, id int64) (*domain.Request, error)

	// LockByID reads the request and holds a row lock until the surrounding
	// transaction ends.
	LockByID(ctx context.Context, id int64) (*domain.Request, error)

	// Update writes provider, budget, status and updated_at of r. Putting a
	// second active request on one provider fails with domain.ErrProviderBusy.
	Update(ctx context.Context, r *domain.Request) error

	// CountActiveForProvider counts requests in the active set assigned to
	// providerID.
	CountActiveForProvider(ctx context.Context, providerID int64) (int, error)

	// ListByCustomer returns a customer's requests, newest first.
	ListByCustomer(ctx context.Context, customerID int64, limit, offset int) ([]*domain.Request, error)

	// ListForProvider returns requests naming providerID whose status is in
	// statuses, newest first.
	ListForProvider(ctx context.Context, providerID int64, statuses []domain.Status, limit int) ([]*domain.Request, error)

	// ListStalePending returns pending requests created before cutoff, oldest
	// first.
	ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Request, error)

	// List returns requests matching f, newest first.
	List(ctx context.Context, f RequestFilter) ([]*domain.Request, error)
}
