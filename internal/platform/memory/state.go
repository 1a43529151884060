package memory

import (
	"maps"

	"github.com/quickserve/dispatch-api/internal/domain"
)

type state struct {
	users     map[int64]*domain.User
	customers map[int64]*domain.Customer
	providers map[int64]*domain.Provider
	requests  map[int64]*domain.Request
	kyc       map[int64]*domain.ProviderKYC // by provider id
	lastID    int64
}

func newState() *state {
	return &state{
		users:     map[int64]*domain.User{},
		customers: map[int64]*domain.Customer{},
		providers: map[int64]*domain.Provider{},
		requests:  map[int64]*domain.Request{},
		kyc:       map[int64]*domain.ProviderKYC{},
	}
}

func (s *state) nextID() int64 {
	s.lastID++
	return s.lastID
}

// clone copies the maps. Stored values are never mutated in place, so
// sharing them between the copy and the original is safe.
func (s *state) clone() *state {
	return &state{
		users:     maps.Clone(s.users),
		customers: maps.Clone(s.customers),
		providers: maps.Clone(s.providers),
		requests:  maps.Clone(s.requests),
		kyc:       maps.Clone(s.kyc),
		lastID:    s.lastID,
	}
}

func ptr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func copyUser(u *domain.User) *domain.User {
	c := *u
	return &c
}

func copyProvider(p *domain.Provider) *domain.Provider {
	c := *p
	c.WorkingDays = append([]string{}, p.WorkingDays...)
	c.LastLatitude = ptr(p.LastLatitude)
	c.LastLongitude = ptr(p.LastLongitude)
	c.LastSeenAt = ptr(p.LastSeenAt)
	c.Rating = ptr(p.Rating)
	return &c
}

func copyRequest(r *domain.Request) *domain.Request {
	c := *r
	c.ProviderID = ptr(r.ProviderID)
	c.Budget = ptr(r.Budget)
	c.CustomerLat = ptr(r.CustomerLat)
	c.CustomerLng = ptr(r.CustomerLng)
	return &c
}

func copyKYC(k *domain.ProviderKYC) *domain.ProviderKYC {
	c := *k
	c.ReviewedAt = ptr(k.ReviewedAt)
	return &c
}
