package service

import (
	"context"

	"github.com/quickserve/dispatch-api/internal/domain"
	"github.com/quickserve/dispatch-api/internal/store"
)

// KYCDetail is one provider's verification record with the provider it
// belongs to.
type KYCDetail struct {
	Provider   *domain.Provider    `json:"provider"`
	Submission *domain.ProviderKYC `json:"submission"`
}

// AdminService holds the read-only views used by operators.
type AdminService interface {
	// KYCQueue lists submissions, oldest first. A nil status lists all.
	KYCQueue(ctx context.Context, id domain.Identity, status *domain.KYCStatus, limit int) ([]*domain.ProviderKYC, error)

	// KYCDetail returns one provider's submission.
	KYCDetail(ctx context.Context, id domain.Identity, providerID int64) (*KYCDetail, error)

	// ListProviders lists providers matching the filter.
	ListProviders(ctx context.Context, id domain.Identity, f store.ProviderFilter) ([]*domain.Provider, error)

	// ListRequests lists requests matching the filter, newest first.
	ListRequests(ctx context.Context, id domain.Identity, f store.RequestFilter) ([]*domain.Request, error)

	// ListCustomers lists customer accounts whose name or email contains
	// the filter's search term.
	ListCustomers(ctx context.Context, id domain.Identity, f store.CustomerFilter) (*CustomerPage, error)
}

// CustomerPage is one page of a customer listing.
type CustomerPage struct {
	Total int                       `json:"total"`
	Items []*domain.CustomerAccount `json:"items"`
}

type adminService struct {
	*engine
}

// NewAdminService creates an AdminService.
func NewAdminService(d Deps) (AdminService, error) {
	e, err := newEngine(d, "admin_service")
	if err != nil {
		return nil, err
	}
	return &adminService{engine: e}, nil
}

func (s *adminService) KYCQueue(ctx context.Context, id domain.Identity, status *domain.KYCStatus, limit int) ([]*domain.ProviderKYC, error) {
	const op = "list kyc queue"

	if err := authorize(id, roleOnly(domain.RoleAdmin), nil); err != nil {
		return nil, NewServiceError(op, "not allowed", err)
	}
	limit, err := pageSize(limit)
	if err != nil {
		return nil, NewServiceError(op, "invalid paging", err)
	}
	out, err := s.store.Repositories().KYC.ListByStatus(ctx, status, limit)
	if err != nil {
		return nil, NewServiceError(op, "could not list submissions", err)
	}
	return out, nil
}

func (s *adminService) KYCDetail(ctx context.Context, id domain.Identity, providerID int64) (*KYCDetail, error) {
	const op = "get kyc detail"

	if err := authorize(id, roleOnly(domain.RoleAdmin), nil); err != nil {
		return nil, NewServiceError(op, "not allowed", err)
	}
	repos := s.store.Repositories()
	p, err := repos.Providers.GetByID(ctx, providerID)
	if err != nil {
		return nil, NewServiceError(op, "could not load provider", err)
	}
	k, err := repos.KYC.GetByProviderID(ctx, providerID)
	if err != nil {
		return nil, NewServiceError(op, "could not load submission", err)
	}
	return &KYCDetail{Provider: p, Submission: k}, nil
}

func (s *adminService) ListProviders(ctx context.Context, id domain.Identity, f store.ProviderFilter) ([]*domain.Provider, error) {
	const op = "list providers"

	if err := authorize(id, roleOnly(domain.RoleAdmin), nil); err != nil {
		return nil, NewServiceError(op, "not allowed", err)
	}
	limit, err := pageSize(f.Limit)
	if err != nil {
		return nil, NewServiceError(op, "invalid paging", err)
	}
	f.Limit = limit
	if f.Offset < 0 {
		f.Offset = 0
	}
	out, err := s.store.Repositories().Providers.List(ctx, f)
	if err != nil {
		return nil, NewServiceError(op, "could not list providers", err)
	}
	return out, nil
}

func (s *adminService) ListRequests(ctx context.Context, id domain.Identity, f store.RequestFilter) ([]*domain.Request, error) {
	const op = "list requests"

	if err := authorize(id, roleOnly(domain.RoleAdmin), nil); err != nil {
		return nil, NewServiceError(op, "not allowed", err)
	}
	limit, err := pageSize(f.Limit)
	if err != nil {
		return nil, NewServiceError(op, "invalid paging", err)
	}
	f.Limit = limit
	if f.Offset < 0 {
		f.Offset = 0
	}
	out, err := s.store.Repositories().Requests.List(ctx, f)
	if err != nil {
		return nil, NewServiceError(op, "could not list requests", err)
	}
	return out, nil
}

func (s *adminService) ListCustomers(ctx context.Context, id domain.Identity, f store.CustomerFilter) (*CustomerPage, error) {
	const op = "list customers"

	if err := authorize(id, roleOnly(domain.RoleAdmin), nil); err != nil {
		return nil, NewServiceError(op, "not allowed", err)
	}
	limit, err := pageSize(f.Limit)
	if err != nil {
		return nil, NewServiceError(op, "invalid paging", err)
	}
	f.Limit = limit
	if f.Offset < 0 {
		f.Offset = 0
	}
	items, total, err := s.store.Repositories().Users.ListCustomers(ctx, f)
	if err != nil {
		return nil, NewServiceError(op, "could not list customers", err)
	}
	return &CustomerPage{Total: total, Items: items}, nil
}
