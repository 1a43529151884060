package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/quickserve/dispatch-api/internal/domain"
	"github.com/quickserve/dispatch-api/internal/store"
)

type userStore struct{ base }

var _ store.UserStore = (*userStore)(nil)

func (s *userStore) GetUser(_ context.Context, id int64) (*domain.User, error) {
	var out *domain.User
	err := s.with(func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return store.ErrUserNotFound
		}
		out = copyUser(u)
		return nil
	})
	return out, err
}

func (s *userStore) GetCustomerByUserID(_ context.Context, userID int64) (*domain.Customer, error) {
	var out *domain.Customer
	err := s.with(func(st *state) error {
		for _, c := range st.customers {
			if c.UserID == userID {
				out = &domain.Customer{ID: c.ID, UserID: c.UserID}
				return nil
			}
		}
		return store.ErrCustomerNotFound
	})
	return out, err
}

func (s *userStore) ListCustomers(_ context.Context, f store.CustomerFilter) ([]*domain.CustomerAccount, int, error) {
	out := []*domain.CustomerAccount{}
	err := s.with(func(st *state) error {
		term := strings.ToLower(strings.TrimSpace(f.Search))
		for _, c := range st.customers {
			u, ok := st.users[c.UserID]
			if !ok {
				continue
			}
			if term != "" &&
				!strings.Contains(strings.ToLower(u.FullName), term) &&
				!strings.Contains(strings.ToLower(u.Email), term) {
				continue
			}
			out = append(out, &domain.CustomerAccount{
				CustomerID: c.ID,
				UserID:     u.ID,
				Name:       u.FullName,
				Email:      u.Email,
				CreatedAt:  u.CreatedAt,
			})
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CustomerID < out[j].CustomerID })
	return truncate(out, f.Limit, f.Offset), len(out), nil
}

type providerStore struct{ base }

var _ store.ProviderStore = (*providerStore)(nil)

func (s *providerStore) find(match func(*domain.Provider) bool) (*domain.Provider, error) {
	var out *domain.Provider
	err := s.with(func(st *state) error {
		for _, p := range st.providers {
			if match(p) {
				out = copyProvider(p)
				return nil
			}
		}
		return store.ErrProviderNotFound
	})
	return out, err
}

func (s *providerStore) GetByID(_ context.Context, id int64) (*domain.Provider, error) {
	return s.find(func(p *domain.Provider) bool { return p.ID == id })
}

func (s *providerStore) GetByUserID(_ context.Context, userID int64) (*domain.Provider, error) {
	return s.find(func(p *domain.Provider) bool { return p.UserID == userID })
}

// LockByID reads like GetByID; the transaction mutex already serialises
// writers.
func (s *providerStore) LockByID(ctx context.Context, id int64) (*domain.Provider, error) {
	return s.GetByID(ctx, id)
}

func (s *providerStore) LockByUserID(ctx context.Context, userID int64) (*domain.Provider, error) {
	return s.GetByUserID(ctx, userID)
}

func (s *providerStore) Update(_ context.Context, p *domain.Provider) error {
	return s.with(func(st *state) error {
		cur, ok := st.providers[p.ID]
		if !ok {
			return store.ErrProviderNotFound
		}
		if p.IsOnline && p.KYCStatus != domain.KYCApproved {
			return fmt.Errorf("%w: online provider must have approved kyc", store.ErrInvalidEntity)
		}
		next := copyProvider(p)
		next.UserID, next.Name = cur.UserID, cur.Name
		next.Rating, next.JobsCompleted = ptr(cur.Rating), cur.JobsCompleted
		st.providers[p.ID] = next
		return nil
	})
}

func (s *providerStore) ListEligible(_ context.Context, serviceType string, near *domain.Location, limit int) ([]*domain.Provider, error) {
	out := []*domain.Provider{}
	err := s.with(func(st *state) error {
		for _, p := range sortedProviders(st) {
			if !strings.EqualFold(p.ServiceType, serviceType) {
				continue
			}
			if domain.IsEligible(p, countActive(st, p.ID)) {
				out = append(out, copyProvider(p))
			}
		}
		return nil
	})
	if near != nil {
		sortByDistance(out, *near)
	}
	return truncate(out, limit, 0), err
}

// sortByDistance orders providers nearest to near first, keeping id order
// among equals and putting providers without a position last.
func sortByDistance(providers []*domain.Provider, near domain.Location) {
	dist := func(p *domain.Provider) (float64, bool) {
		loc := p.Location()
		if loc == nil {
			return 0, false
		}
		return domain.DistanceKm(near, *loc), true
	}
	sort.SliceStable(providers, func(i, j int) bool {
		a, okA := dist(providers[i])
		b, okB := dist(providers[j])
		switch {
		case !okA:
			return false
		case !okB:
			return true
		}
		return a < b
	})
}

func (s *providerStore) List(_ context.Context, f store.ProviderFilter) ([]*domain.Provider, error) {
	out := []*domain.Provider{}
	err := s.with(func(st *state) error {
		for _, p := range sortedProviders(st) {
			if f.ServiceType != nil && !strings.EqualFold(p.ServiceType, *f.ServiceType) {
				continue
			}
			if f.KYCStatus != nil && p.KYCStatus != *f.KYCStatus {
				continue
			}
			if f.Online != nil && p.IsOnline != *f.Online {
				continue
			}
			out = append(out, copyProvider(p))
		}
		return nil
	})
	return truncate(out, f.Limit, f.Offset), err
}

func sortedProviders(st *state) []*domain.Provider {
	out := make([]*domain.Provider, 0, len(st.providers))
	for _, p := range st.providers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func countActive(st *state, providerID int64) int {
	n := 0
	for _, r := range st.requests {
		if r.IsTargetedAt(providerID) && r.Status.IsActive() {
			n++
		}
	}
	return n
}

type requestStore struct{ base }

var _ store.RequestStore = (*requestStore)(nil)

func (s *requestStore) Create(_ context.Context, r *domain.Request) error {
	return s.with(func(st *state) error {
		if _, ok := findCustomer(st, r.CustomerID); !ok {
			return fmt.Errorf("%w: unknown customer %d", store.ErrInvalidEntity, r.CustomerID)
		}
		r.ID = st.nextID()
		st.requests[r.ID] = copyRequest(r)
		return nil
	})
}

func findCustomer(st *state, id int64) (*domain.Customer, bool) {
	c, ok := st.customers[id]
	return c, ok
}

func (s *requestStore) GetByID(_ context.Context, id int64) (*domain.Request, error) {
	var out *domain.Request
	err := s.with(func(st *state) error {
		r, ok := st.requests[id]
		if !ok {
			return store.ErrRequestNotFound
		}
		out = copyRequest(r)
		return nil
	})
	return out, err
}

func (s *requestStore) LockByID(ctx context.Context, id int64) (*domain.Request, error) {
	return s.GetByID(ctx, id)
}

// Update enforces the one-active-request-per-provider constraint the way the
// database's partial unique index does.
func (s *requestStore) Update(_ context.Context, r *domain.Request) error {
	return s.with(func(st *state) error {
		cur, ok := st.requests[r.ID]
		if !ok {
			return store.ErrRequestNotFound
		}
		if r.ProviderID != nil && r.Status.IsActive() {
			for _, other := range st.requests {
				if other.ID != r.ID && other.IsTargetedAt(*r.ProviderID) && other.Status.IsActive() {
					return fmt.Errorf("%w: provider %d", domain.ErrProviderBusy, *r.ProviderID)
				}
			}
		}
		next := copyRequest(cur)
		next.ProviderID = ptr(r.ProviderID)
		next.Budget = ptr(r.Budget)
		next.Status = r.Status
		next.UpdatedAt = r.UpdatedAt
		st.requests[r.ID] = next
		return nil
	})
}

func (s *requestStore) CountActiveForProvider(_ context.Context, providerID int64) (int, error) {
	var n int
	err := s.with(func(st *state) error {
		n = countActive(st, providerID)
		return nil
	})
	return n, err
}

func (s *requestStore) collect(match func(*domain.Request) bool, oldestFirst bool) []*domain.Request {
	out := []*domain.Request{}
	_ = s.with(func(st *state) error {
		for _, r := range st.requests {
			if match(r) {
				out = append(out, copyRequest(r))
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt) != oldestFirst
		}
		return (a.ID > b.ID) != oldestFirst
	})
	return out
}

func (s *requestStore) ListByCustomer(_ context.Context, customerID int64, limit, offset int) ([]*domain.Request, error) {
	out := s.collect(func(r *domain.Request) bool { return r.CustomerID == customerID }, false)
	return truncate(out, limit, offset), nil
}

func (s *requestStore) ListForProvider(_ context.Context, providerID int64, statuses []domain.Status, limit int) ([]*domain.Request, error) {
	out := s.collect(func(r *domain.Request) bool {
		return r.IsTargetedAt(providerID) && slices.Contains(statuses, r.Status)
	}, false)
	return truncate(out, limit, 0), nil
}

func (s *requestStore) ListStalePending(_ context.Context, cutoff time.Time, limit int) ([]*domain.Request, error) {
	out := s.collect(func(r *domain.Request) bool {
		return r.Status == domain.StatusPending && r.CreatedAt.Before(cutoff)
	}, true)
	return truncate(out, limit, 0), nil
}

func (s *requestStore) List(_ context.Context, f store.RequestFilter) ([]*domain.Request, error) {
	out := s.collect(func(r *domain.Request) bool {
		return f.Status == nil || r.Status == *f.Status
	}, false)
	return truncate(out, f.Limit, f.Offset), nil
}

type kycStore struct{ base }

var _ store.KYCStore = (*kycStore)(nil)

func (s *kycStore) GetByProviderID(_ context.Context, providerID int64) (*domain.ProviderKYC, error) {
	var out *domain.ProviderKYC
	err := s.with(func(st *state) error {
		k, ok := st.kyc[providerID]
		if !ok {
			return store.ErrKYCNotFound
		}
		out = copyKYC(k)
		return nil
	})
	return out, err
}

func (s *kycStore) Upsert(_ context.Context, k *domain.ProviderKYC) error {
	return s.with(func(st *state) error {
		if _, ok := st.providers[k.ProviderID]; !ok {
			return fmt.Errorf("%w: unknown provider %d", store.ErrInvalidEntity, k.ProviderID)
		}
		if cur, ok := st.kyc[k.ProviderID]; ok {
			k.ID = cur.ID
		} else {
			k.ID = st.nextID()
		}
		st.kyc[k.ProviderID] = copyKYC(k)
		return nil
	})
}

func (s *kycStore) Update(_ context.Context, k *domain.ProviderKYC) error {
	return s.with(func(st *state) error {
		cur, ok := st.kyc[k.ProviderID]
		if !ok {
			return store.ErrKYCNotFound
		}
		next := copyKYC(cur)
		next.Status = k.Status
		next.RejectionReason = k.RejectionReason
		next.ReviewedAt = ptr(k.ReviewedAt)
		st.kyc[k.ProviderID] = next
		return nil
	})
}

func (s *kycStore) ListByStatus(_ context.Context, status *domain.KYCStatus, limit int) ([]*domain.ProviderKYC, error) {
	out := []*domain.ProviderKYC{}
	err := s.with(func(st *state) error {
		for _, k := range st.kyc {
			if status == nil || k.Status == *status {
				out = append(out, copyKYC(k))
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].SubmittedAt.Before(out[j].SubmittedAt)
		}
		return out[i].ID < out[j].ID
	})
	return truncate(out, limit, 0), err
}

// truncate applies offset and limit. A limit of zero or less means no limit.
func truncate[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return items[:0]
		}
		items = items[offset:]
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
