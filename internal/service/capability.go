package service

import (
	"fmt"

	"github.com/quickserve/dispatch-api/internal/domain"
)

// Capability is what an identity must hold to act on a request: a role and,
// optionally, a relation to the request.
type Capability struct {
	Role domain.Role
	Owns func(r *domain.Request) bool
}

// authorize is the single permission check run before any transition. Both
// a role mismatch and an ownership mismatch are ErrForbidden. A nil request
// checks the role only.
func authorize(id domain.Identity, c Capability, r *domain.Request) error {
	if id.Role != c.Role {
		return fmt.Errorf("%w: requires role %s", domain.ErrForbidden, c.Role)
	}
	if r != nil && c.Owns != nil && !c.Owns(r) {
		return fmt.Errorf("%w: request %d does not belong to the caller", domain.ErrForbidden, r.ID)
	}
	return nil
}

// ownerCustomer lets a customer act on its own requests.
func ownerCustomer(customerID int64) Capability {
	return Capability{
		Role: domain.RoleCustomer,
		Owns: func(r *domain.Request) bool { return r.CustomerID == customerID },
	}
}

// targetedProvider lets a provider act on requests that name it, whether
// offered or assigned.
func targetedProvider(providerID int64) Capability {
	return Capability{
		Role: domain.RoleProvider,
		Owns: func(r *domain.Request) bool { return r.IsTargetedAt(providerID) },
	}
}

func roleOnly(role domain.Role) Capability {
	return Capability{Role: role}
}
