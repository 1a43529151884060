package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/quickserve/dispatch-api/internal/domain"
)

// estimateSpread is added to a provider's base price for the upper bound of
// its estimate.
const estimateSpread = 500.0

// Query selects candidates for a job.
type Query struct {
	ServiceType string
	Near        *domain.Location
	Limit       int
}

// Candidate is an eligible provider as shown to a customer.
type Candidate struct {
	ProviderID    int64    `json:"provider_id"`
	Name          string   `json:"name"`
	ServiceType   string   `json:"service_type"`
	City          string   `json:"city,omitempty"`
	DistanceKm    *float64 `json:"distance_km"`
	EstMin        float64  `json:"est_min"`
	EstMax        float64  `json:"est_max"`
	Rating        *float64 `json:"rating"`
	JobsCompleted int      `json:"jobs_completed"`
}

// MatchingService finds providers for a job.
type MatchingService interface {
	// FindCandidates returns the eligible providers of the query's service
	// type, nearest first when positions are known. Busy, offline and
	// unapproved providers are never returned.
	FindCandidates(ctx context.Context, id domain.Identity, q Query) ([]Candidate, error)

	// ProviderProfile returns what a customer may see of one provider.
	ProviderProfile(ctx context.Context, id domain.Identity, providerID int64) (*ProviderProfile, error)
}

// ProviderProfile is the public view of a provider.
type ProviderProfile struct {
	ID            int64    `json:"id"`
	Name          string   `json:"name"`
	ServiceType   string   `json:"service_type"`
	City          string   `json:"city,omitempty"`
	BasePrice     float64  `json:"base_price"`
	Rating        *float64 `json:"rating"`
	JobsCompleted int      `json:"jobs_completed"`
	IsOnline      bool     `json:"is_online"`
}

type matchingService struct {
	*engine
}

// NewMatchingService creates a MatchingService.
func NewMatchingService(d Deps) (MatchingService, error) {
	e, err := newEngine(d, "matching_service")
	if err != nil {
		return nil, err
	}
	return &matchingService{engine: e}, nil
}

// customerFacing allows customers and admins.
func customerFacing(id domain.Identity) error {
	if id.Role != domain.RoleCustomer && id.Role != domain.RoleAdmin {
		return fmt.Errorf("%w: requires role customer or admin", domain.ErrForbidden)
	}
	return nil
}

func (s *matchingService) FindCandidates(ctx context.Context, id domain.Identity, q Query) ([]Candidate, error) {
	const op = "find candidates"

	if err := customerFacing(id); err != nil {
		return nil, NewServiceError(op, "not allowed", err)
	}
	serviceType, err := s.catalogue.Canonical(q.ServiceType)
	if err != nil {
		return nil, NewServiceError(op, "invalid service type", err)
	}
	if q.Near != nil {
		if err := q.Near.Validate(); err != nil {
			return nil, NewServiceError(op, "invalid location", err)
		}
	}
	limit := q.Limit
	if limit == 0 {
		limit = s.matching.CandidateLimit
	}
	if limit, err = pageSize(limit); err != nil {
		return nil, NewServiceError(op, "invalid limit", err)
	}

	providers, err := s.store.Repositories().Providers.ListEligible(ctx, serviceType, q.Near, limit)
	if err != nil {
		return nil, NewServiceError(op, "could not list providers", err)
	}

	out := make([]Candidate, 0, len(providers))
	for _, p := range providers {
		c := Candidate{
			ProviderID:    p.ID,
			Name:          p.Name,
			ServiceType:   p.ServiceType,
			City:          p.City,
			EstMin:        p.BasePrice,
			EstMax:        p.BasePrice + estimateSpread,
			Rating:        p.Rating,
			JobsCompleted: p.JobsCompleted,
		}
		if loc := p.Location(); loc != nil && q.Near != nil {
			d := domain.DistanceKm(*q.Near, *loc)
			c.DistanceKm = &d
		}
		out = append(out, c)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].DistanceKm, out[j].DistanceKm
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		}
		return *a < *b
	})
	return out, nil
}

func (s *matchingService) ProviderProfile(ctx context.Context, id domain.Identity, providerID int64) (*ProviderProfile, error) {
	const op = "get provider profile"

	if err := customerFacing(id); err != nil {
		return nil, NewServiceError(op, "not allowed", err)
	}
	p, err := s.store.Repositories().Providers.GetByID(ctx, providerID)
	if err != nil {
		return nil, NewServiceError(op, "could not load provider", err)
	}
	return &ProviderProfile{
		ID:            p.ID,
		Name:          p.Name,
		ServiceType:   p.ServiceType,
		City:          p.City,
		BasePrice:     p.BasePrice,
		Rating:        p.Rating,
		JobsCompleted: p.JobsCompleted,
		IsOnline:      p.IsOnline,
	}, nil
}
