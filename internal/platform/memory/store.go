package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/quickserve/dispatch-api/internal/domain"
	"github.com/quickserve/dispatch-api/internal/store"
)

// Store implements store.TxRunner in memory.
type Store struct {
	mu sync.Mutex
	st *state
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{st: newState()}
}

var _ store.TxRunner = (*Store)(nil)

// Repositories implements store.TxRunner. Each call on the returned stores
// takes the Store lock for its own duration.
func (s *Store) Repositories() store.Repositories {
	return s.repos(false)
}

// RunInTx implements store.TxRunner. Transactions run one at a time; when
// fn fails or panics every change it made is discarded.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, repos store.Repositories) error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	defer func() {
		if p := recover(); p != nil {
			s.st = snapshot
			panic(p)
		}
		if err != nil {
			s.st = snapshot
		}
	}()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx, s.repos(true))
}

func (s *Store) repos(inTx bool) store.Repositories {
	b := base{s: s, inTx: inTx}
	return store.Repositories{
		Users:     &userStore{b},
		Providers: &providerStore{b},
		Requests:  &requestStore{b},
		KYC:       &kycStore{b},
	}
}

// base gives every store access to the state, locking when it is not
// already inside a transaction.
type base struct {
	s    *Store
	inTx bool
}

func (b base) with(fn func(st *state) error) error {
	if !b.inTx {
		b.s.mu.Lock()
		defer b.s.mu.Unlock()
	}
	return fn(b.s.st)
}

// AddUser stores a new account and returns it with its ID set.
func (s *Store) AddUser(fullName, email string, role domain.Role) *domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := &domain.User{
		ID:        s.st.nextID(),
		FullName:  fullName,
		Email:     email,
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}
	s.st.users[u.ID] = u
	return copyUser(u)
}

// AddCustomer creates a customer user with profile.
func (s *Store) AddCustomer(fullName string) (*domain.User, *domain.Customer) {
	u := s.AddUser(fullName, emailFor(fullName, domain.RoleCustomer), domain.RoleCustomer)

	s.mu.Lock()
	defer s.mu.Unlock()
	c := &domain.Customer{ID: s.st.nextID(), UserID: u.ID}
	s.st.customers[c.ID] = c
	return u, &domain.Customer{ID: c.ID, UserID: c.UserID}
}

// AddProvider creates a provider user and stores p as its profile. Empty
// KYC status and working hours get their defaults.
func (s *Store) AddProvider(fullName string, p domain.Provider) (*domain.User, *domain.Provider) {
	u := s.AddUser(fullName, emailFor(fullName, domain.RoleProvider), domain.RoleProvider)

	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = s.st.nextID()
	p.UserID = u.ID
	p.Name = fullName
	if p.KYCStatus == "" {
		p.KYCStatus = domain.KYCNotSubmitted
	}
	if p.StartTime == "" {
		p.StartTime = domain.DefaultStartTime
	}
	if p.EndTime == "" {
		p.EndTime = domain.DefaultEndTime
	}
	stored := copyProvider(&p)
	s.st.providers[p.ID] = stored
	return u, copyProvider(stored)
}

func emailFor(name string, role domain.Role) string {
	return strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "+" + string(role) + "@example.com"
}
