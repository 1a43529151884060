package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/quickserve/dispatch-api/internal/domain"
	"github.com/quickserve/dispatch-api/internal/events"
	"github.com/quickserve/dispatch-api/internal/store"
)

// CreateRequestInput is what a customer supplies for a new request.
type CreateRequestInput struct {
	Title       string
	ServiceType string
	Budget      *float64
	Address     string
	Description string
	ImageURL    string
	Location    *domain.Location
}

// RequestService runs the request lifecycle.
type RequestService interface {
	// CreateRequest opens a pending request owned by the calling customer.
	CreateRequest(ctx context.Context, id domain.Identity, in CreateRequestInput) (*domain.Request, error)

	// AssignProvider moves the caller's pending request to assigned with
	// providerID as assignee. It fails with ErrProviderBusy when the
	// provider already holds an active request.
	AssignProvider(ctx context.Context, id domain.Identity, requestID, providerID int64) (*domain.Request, error)

	// OfferToProvider targets the caller's pending request at providerID
	// without assigning it. The provider then accepts or declines.
	OfferToProvider(ctx context.Context, id domain.Identity, requestID, providerID int64) (*domain.Request, error)

	// AcceptRequest lets the targeted provider take a pending request.
	AcceptRequest(ctx context.Context, id domain.Identity, requestID int64) (*domain.Request, error)

	// DeclineRequest lets the targeted provider turn down a pending request,
	// which cancels it.
	DeclineRequest(ctx context.Context, id domain.Identity, requestID int64) (*domain.Request, error)

	// CancelRequest cancels the caller's request while it is pending.
	CancelRequest(ctx context.Context, id domain.Identity, requestID int64) (*domain.Request, error)

	// AdvanceStatus moves an active request forward on behalf of its
	// assigned provider.
	AdvanceStatus(ctx context.Context, id domain.Identity, requestID int64, to domain.Status) (*domain.Request, error)

	// GetRequest returns a request to its owner, its provider or an admin.
	GetRequest(ctx context.Context, id domain.Identity, requestID int64) (*domain.Request, error)

	// ListMyRequests returns the caller's requests, newest first.
	ListMyRequests(ctx context.Context, id domain.Identity, limit, offset int) ([]*domain.Request, error)

	// IncomingOffers returns pending requests targeting the calling
	// provider. It is empty while the provider is busy.
	IncomingOffers(ctx context.Context, id domain.Identity) ([]*domain.Request, error)

	// CurrentJob returns the calling provider's active request, or nil.
	CurrentJob(ctx context.Context, id domain.Identity) (*domain.Request, error)

	// History returns the calling provider's finished requests.
	History(ctx context.Context, id domain.Identity, limit int) ([]*domain.Request, error)

	// SuggestFromImage drafts a request from a photo of the problem. The
	// suggested service type is always in the catalogue.
	SuggestFromImage(ctx context.Context, id domain.Identity, img Document) (*Suggestion, error)

	// ExpireStalePending cancels pending requests created more than maxAge
	// ago, at most batch of them, and reports how many it cancelled.
	ExpireStalePending(ctx context.Context, maxAge time.Duration, batch int) (int, error)
}

type requestService struct {
	*engine
}

// NewRequestService creates a RequestService.
func NewRequestService(d Deps) (RequestService, error) {
	e, err := newEngine(d, "request_service")
	if err != nil {
		return nil, err
	}
	return &requestService{engine: e}, nil
}

func (s *requestService) CreateRequest(ctx context.Context, id domain.Identity, in CreateRequestInput) (*domain.Request, error) {
	const op = "create request"

	if err := authorize(id, roleOnly(domain.RoleCustomer), nil); err != nil {
		return nil, NewServiceError(op, "not allowed", err)
	}
	serviceType, err := s.catalogue.Canonical(in.ServiceType)
	if err != nil {
		return nil, NewServiceError(op, "invalid service type", err)
	}
	if in.Location != nil {
		if err := in.Location.Validate(); err != nil {
			return nil, NewServiceError(op, "invalid location", err)
		}
		if in.Address == "" {
			if addr := s.reverseGeocode(ctx, *in.Location); addr != nil {
				in.Address = addr.Formatted
			}
		}
	}

	var created *domain.Request
	err = s.store.RunInTx(ctx, func(ctx context.Context, repos store.Repositories) error {
		customer, err := customerFor(ctx, repos, id)
		if err != nil {
			return err
		}
		r, err := domain.NewRequest(customer.ID, domain.NewRequestParams{
			Title:       in.Title,
			ServiceType: serviceType,
			Budget:      in.Budget,
			Address:     in.Address,
			Description: in.Description,
			ImageURL:    in.ImageURL,
			Location:    in.Location,
		}, s.now())
		if err != nil {
			return err
		}
		if err := repos.Requests.Create(ctx, r); err != nil {
			return err
		}
		created = r
		return nil
	})
	if err != nil {
		return nil, NewServiceError(op, "could not create request", err)
	}

	s.log(ctx).Info("request created",
		slog.Int64("request_id", created.ID),
		slog.String("service_type", created.ServiceType))
	s.emit(ctx, events.TypeRequestCreated, events.RequestCreated{
		RequestID:   created.ID,
		CustomerID:  created.CustomerID,
		ServiceType: created.ServiceType,
	})
	return created, nil
}

// takeRequest assigns r to p inside a transaction that holds both rows.
// It re-counts p's active requests so the check and the write are atomic.
func (s *requestService) takeRequest(ctx context.Context, repos store.Repositories, r *domain.Request, p *domain.Provider, actor domain.Role) error {
	if err := domain.CheckTransition(r.Status, domain.StatusAssigned, actor); err != nil {
		return err
	}
	active, err := repos.Requests.CountActiveForProvider(ctx, p.ID)
	if err != nil {
		return err
	}
	if err := domain.CheckAssignable(p, active); err != nil {
		return err
	}
	providerID := p.ID
	r.ProviderID = &providerID
	if s.matching.AssignBudgetFromBasePrice {
		budget := p.BasePrice
		r.Budget = &budget
	}
	if err := r.TransitionTo(domain.StatusAssigned, actor, s.now()); err != nil {
		return err
	}
	return repos.Requests.Update(ctx, r)
}

func (s *requestService) AssignProvider(ctx context.Context, id domain.Identity, requestID, providerID int64) (*domain.Request, error) {
	const op = "assign provider"

	var result *domain.Request
	err := s.store.RunInTx(ctx, func(ctx context.Context, repos store.Repositories) error {
		customer, err := customerFor(ctx, repos, id)
		if err != nil {
			return err
		}
		// Providers are always locked before requests.
		p, err := repos.Providers.LockByID(ctx, providerID)
		if err != nil {
			return err
		}
		r, err := repos.Requests.LockByID(ctx, requestID)
		if err != nil {
			return err
		}
		if err := authorize(id, ownerCustomer(customer.ID), r); err != nil {
			return err
		}
		if err := s.takeRequest(ctx, repos, r, p, domain.RoleCustomer); err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		s.logConflict(ctx, op, requestID, err)
		return nil, NewServiceError(op, "could not assign provider", err)
	}

	s.log(ctx).Info("provider assigned",
		slog.Int64("request_id", result.ID),
		slog.Int64("provider_id", providerID))
	s.emitStatusChange(ctx, result, domain.StatusPending, domain.RoleCustomer)
	return result, nil
}

func (s *requestService) OfferToProvider(ctx context.Context, id domain.Identity, requestID, providerID int64) (*domain.Request, error) {
	const op = "offer request"

	var result *domain.Request
	err := s.store.RunInTx(ctx, func(ctx context.Context, repos store.Repositories) error {
		customer, err := customerFor(ctx, repos, id)
		if err != nil {
			return err
		}
		p, err := repos.Providers.GetByID(ctx, providerID)
		if err != nil {
			return err
		}
		r, err := repos.Requests.LockByID(ctx, requestID)
		if err != nil {
			return err
		}
		if err := authorize(id, ownerCustomer(customer.ID), r); err != nil {
			return err
		}
		if r.Status != domain.StatusPending {
			return fmt.Errorf("%w: only pending requests can be offered, request is %s",
				domain.ErrInvalidTransition, r.Status)
		}
		active, err := repos.Requests.CountActiveForProvider(ctx, p.ID)
		if err != nil {
			return err
		}
		if err := domain.CheckAssignable(p, active); err != nil {
			return err
		}
		pid := p.ID
		r.ProviderID = &pid
		r.UpdatedAt = s.now()
		if err := repos.Requests.Update(ctx, r); err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, NewServiceError(op, "could not offer request", err)
	}

	s.emit(ctx, events.TypeRequestOffered, events.RequestOffered{RequestID: result.ID, ProviderID: providerID})
	return result, nil
}

func (s *requestService) AcceptRequest(ctx context.Context, id domain.Identity, requestID int64) (*domain.Request, error) {
	const op = "accept request"

	var result *domain.Request
	err := s.store.RunInTx(ctx, func(ctx context.Context, repos store.Repositories) error {
		p, err := providerFor(ctx, repos, id, true)
		if err != nil {
			return err
		}
		r, err := repos.Requests.LockByID(ctx, requestID)
		if err != nil {
			return err
		}
		if err := authorize(id, targetedProvider(p.ID), r); err != nil {
			return err
		}
		if err := s.takeRequest(ctx, repos, r, p, domain.RoleProvider); err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		s.logConflict(ctx, op, requestID, err)
		return nil, NewServiceError(op, "could not accept request", err)
	}

	s.emitStatusChange(ctx, result, domain.StatusPending, domain.RoleProvider)
	return result, nil
}

// transition runs a plain status change on a locked request after the
// capability check.
func (s *requestService) transition(
	ctx context.Context,
	op string,
	requestID int64,
	actor domain.Role,
	to func(r *domain.Request) (domain.Status, error),
	capability func(ctx context.Context, repos store.Repositories) (Capability, error),
) (*domain.Request, domain.Status, error) {
	var (
		result *domain.Request
		from   domain.Status
	)
	err := s.store.RunInTx(ctx, func(ctx context.Context, repos store.Repositories) error {
		c, err := capability(ctx, repos)
		if err != nil {
			return err
		}
		r, err := repos.Requests.LockByID(ctx, requestID)
		if err != nil {
			return err
		}
		if c.Owns != nil && !c.Owns(r) {
			return fmt.Errorf("%w: request %d does not belong to the caller", domain.ErrForbidden, r.ID)
		}
		target, err := to(r)
		if err != nil {
			return err
		}
		from = r.Status
		if err := r.TransitionTo(target, actor, s.now()); err != nil {
			return err
		}
		if err := repos.Requests.Update(ctx, r); err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		s.logConflict(ctx, op, requestID, err)
		return nil, "", err
	}
	s.log(ctx).Info("request status changed",
		slog.Int64("request_id", result.ID),
		slog.String("from", string(from)),
		slog.String("to", string(result.Status)),
		slog.String("actor", string(actor)))
	s.emitStatusChange(ctx, result, from, actor)
	return result, from, nil
}

func fixed(st domain.Status) func(*domain.Request) (domain.Status, error) {
	return func(*domain.Request) (domain.Status, error) { return st, nil }
}

func (s *requestService) providerCapability(id domain.Identity) func(context.Context, store.Repositories) (Capability, error) {
	return func(ctx context.Context, repos store.Repositories) (Capability, error) {
		p, err := providerFor(ctx, repos, id, false)
		if err != nil {
			return Capability{}, err
		}
		return targetedProvider(p.ID), nil
	}
}

func (s *requestService) DeclineRequest(ctx context.Context, id domain.Identity, requestID int64) (*domain.Request, error) {
	r, _, err := s.transition(ctx, "decline request", requestID, domain.RoleProvider,
		fixed(domain.StatusCancelled), s.providerCapability(id))
	if err != nil {
		return nil, NewServiceError("decline request", "could not decline request", err)
	}
	return r, nil
}

func (s *requestService) CancelRequest(ctx context.Context, id domain.Identity, requestID int64) (*domain.Request, error) {
	r, _, err := s.transition(ctx, "cancel request", requestID, domain.RoleCustomer,
		fixed(domain.StatusCancelled),
		func(ctx context.Context, repos store.Repositories) (Capability, error) {
			customer, err := customerFor(ctx, repos, id)
			if err != nil {
				return Capability{}, err
			}
			return ownerCustomer(customer.ID), nil
		})
	if err != nil {
		return nil, NewServiceError("cancel request", "could not cancel request", err)
	}
	return r, nil
}

func (s *requestService) AdvanceStatus(ctx context.Context, id domain.Identity, requestID int64, to domain.Status) (*domain.Request, error) {
	const op = "advance status"

	if _, err := domain.ParseStatus(string(to)); err != nil {
		return nil, NewServiceError(op, "invalid status", err)
	}
	r, _, err := s.transition(ctx, op, requestID, domain.RoleProvider,
		func(r *domain.Request) (domain.Status, error) {
			// Accept and decline have their own operations; this one only
			// moves jobs that are already underway.
			if !r.Status.IsActive() {
				return "", &domain.TransitionError{From: r.Status, To: to, Actor: domain.RoleProvider}
			}
			return to, nil
		},
		s.providerCapability(id))
	if err != nil {
		return nil, NewServiceError(op, "could not change status", err)
	}
	return r, nil
}

func (s *requestService) GetRequest(ctx context.Context, id domain.Identity, requestID int64) (*domain.Request, error) {
	const op = "get request"

	repos := s.store.Repositories()
	r, err := repos.Requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, NewServiceError(op, "could not load request", err)
	}

	var c Capability
	switch id.Role {
	case domain.RoleAdmin:
		return r, nil
	case domain.RoleCustomer:
		customer, err := customerFor(ctx, repos, id)
		if err != nil {
			return nil, NewServiceError(op, "could not resolve customer", err)
		}
		c = ownerCustomer(customer.ID)
	case domain.RoleProvider:
		p, err := providerFor(ctx, repos, id, false)
		if err != nil {
			return nil, NewServiceError(op, "could not resolve provider", err)
		}
		c = targetedProvider(p.ID)
	default:
		return nil, NewServiceError(op, "not allowed", domain.ErrForbidden)
	}
	if err := authorize(id, c, r); err != nil {
		return nil, NewServiceError(op, "not allowed", err)
	}
	return r, nil
}

func (s *requestService) ListMyRequests(ctx context.Context, id domain.Identity, limit, offset int) ([]*domain.Request, error) {
	const op = "list requests"

	limit, err := pageSize(limit)
	if err != nil {
		return nil, NewServiceError(op, "invalid paging", err)
	}
	if offset < 0 {
		return nil, NewServiceError(op, "invalid paging",
			domain.NewValidationError("offset", "cannot be negative", nil))
	}
	repos := s.store.Repositories()
	customer, err := customerFor(ctx, repos, id)
	if err != nil {
		return nil, NewServiceError(op, "could not resolve customer", err)
	}
	out, err := repos.Requests.ListByCustomer(ctx, customer.ID, limit, offset)
	if err != nil {
		return nil, NewServiceError(op, "could not list requests", err)
	}
	return out, nil
}

func (s *requestService) IncomingOffers(ctx context.Context, id domain.Identity) ([]*domain.Request, error) {
	const op = "list incoming offers"

	repos := s.store.Repositories()
	p, err := providerFor(ctx, repos, id, false)
	if err != nil {
		return nil, NewServiceError(op, "could not resolve provider", err)
	}
	active, err := repos.Requests.CountActiveForProvider(ctx, p.ID)
	if err != nil {
		return nil, NewServiceError(op, "could not count active jobs", err)
	}
	if active > 0 {
		return []*domain.Request{}, nil
	}
	out, err := repos.Requests.ListForProvider(ctx, p.ID, []domain.Status{domain.StatusPending}, incomingLimit)
	if err != nil {
		return nil, NewServiceError(op, "could not list offers", err)
	}
	return out, nil
}

func (s *requestService) CurrentJob(ctx context.Context, id domain.Identity) (*domain.Request, error) {
	const op = "get current job"

	repos := s.store.Repositories()
	p, err := providerFor(ctx, repos, id, false)
	if err != nil {
		return nil, NewServiceError(op, "could not resolve provider", err)
	}
	out, err := repos.Requests.ListForProvider(ctx, p.ID, domain.ActiveStatuses, 1)
	if err != nil {
		return nil, NewServiceError(op, "could not load current job", err)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (s *requestService) History(ctx context.Context, id domain.Identity, limit int) ([]*domain.Request, error) {
	const op = "list job history"

	limit, err := pageSize(limit)
	if err != nil {
		return nil, NewServiceError(op, "invalid paging", err)
	}
	repos := s.store.Repositories()
	p, err := providerFor(ctx, repos, id, false)
	if err != nil {
		return nil, NewServiceError(op, "could not resolve provider", err)
	}
	out, err := repos.Requests.ListForProvider(ctx, p.ID,
		[]domain.Status{domain.StatusCompleted, domain.StatusCancelled}, limit)
	if err != nil {
		return nil, NewServiceError(op, "could not list history", err)
	}
	return out, nil
}

func (s *requestService) ExpireStalePending(ctx context.Context, maxAge time.Duration, batch int) (int, error) {
	const op = "expire stale requests"

	if maxAge <= 0 {
		return 0, nil
	}
	if batch <= 0 {
		batch = MaxPageSize
	}
	cutoff := s.now().Add(-maxAge)
	stale, err := s.store.Repositories().Requests.ListStalePending(ctx, cutoff, batch)
	if err != nil {
		return 0, NewServiceError(op, "could not list stale requests", err)
	}

	expired := 0
	for _, candidate := range stale {
		if err := ctx.Err(); err != nil {
			return expired, err
		}
		_, _, err := s.transition(ctx, op, candidate.ID, domain.RoleSystem,
			func(r *domain.Request) (domain.Status, error) {
				// Re-check under the lock; the request may have moved on.
				if r.Status != domain.StatusPending || !r.CreatedAt.Before(cutoff) {
					return "", errSkip
				}
				return domain.StatusCancelled, nil
			},
			func(context.Context, store.Repositories) (Capability, error) {
				return roleOnly(domain.RoleSystem), nil
			})
		switch {
		case err == nil:
			expired++
		case errors.Is(err, errSkip):
		default:
			s.log(ctx).Warn("failed to expire request",
				slog.Int64("request_id", candidate.ID), slog.String("error", err.Error()))
		}
	}
	if expired > 0 {
		s.log(ctx).Info("expired stale pending requests", slog.Int("count", expired))
	}
	return expired, nil
}

var errSkip = errors.New("skip")

// logConflict records lost races and refused transitions at debug level so
// they can be correlated with the caller's trace.
func (s *requestService) logConflict(ctx context.Context, op string, requestID int64, err error) {
	switch {
	case errors.Is(err, domain.ErrProviderBusy),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrProviderUnavailable),
		errors.Is(err, domain.ErrKYCNotApproved):
		s.log(ctx).Debug("request change refused",
			slog.String("operation", op),
			slog.Int64("request_id", requestID),
			slog.String("reason", err.Error()))
	}
}
