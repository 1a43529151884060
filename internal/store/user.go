package store

import (
	"context"

	"github.com/quickserve/dispatch-api/internal/domain"
)

// CustomerFilter narrows an admin customer listing. Search matches name or
// email, case-insensitively.
type CustomerFilter struct {
	Search string
	Limit  int
	Offset int
}

// UserStore reads accounts and customer profiles. Account creation belongs
// to the identity provider.
type UserStore interface {
	// GetUser returns the user with id or ErrUserNotFound.
	GetUser(ctx context.Context, id int64) (*domain.User, error)

	// GetCustomerByUserID returns the customer profile of a user or
	// ErrCustomerNotFound.
	GetCustomerByUserID(ctx context.Context, userID int64) (*domain.Customer, error)

	// ListCustomers returns one page of customers in id order and the
	// number of customers matching f.
	ListCustomers(ctx context.Context, f CustomerFilter) ([]*domain.CustomerAccount, int, error)
}
