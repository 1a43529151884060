package domain

import (
	"strconv"
	"strings"
	"time"
)

// Status is the lifecycle state of a service request.
type Status string

// Request statuses. The forward sequence is
// pending → assigned → en_route → arrived → payment → completed, with
// cancelled reachable from pending only.
const (
	StatusPending   Status = "pending"
	StatusAssigned  Status = "assigned"
	StatusEnRoute   Status = "en_route"
	StatusArrived   Status = "arrived"
	StatusPayment   Status = "payment"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// ActiveStatuses is the set during which the assigned provider is busy.
var ActiveStatuses = []Status{StatusAssigned, StatusEnRoute, StatusArrived, StatusPayment}

// forwardRank orders the statuses a provider may advance through.
var forwardRank = map[Status]int{
	StatusAssigned:  1,
	StatusEnRoute:   2,
	StatusArrived:   3,
	StatusPayment:   4,
	StatusCompleted: 5,
}

// ParseStatus converts a wire value into a Status, rejecting anything that is
// not a known status.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusPending, StatusAssigned, StatusEnRoute, StatusArrived,
		StatusPayment, StatusCompleted, StatusCancelled:
		return st, nil
	default:
		return "", NewValidationError("status", "unknown status "+strconv.Quote(s), nil)
	}
}

// IsActive reports whether s is in the active set.
func (s Status) IsActive() bool {
	switch s {
	case StatusAssigned, StatusEnRoute, StatusArrived, StatusPayment:
		return true
	}
	return false
}

// IsTerminal reports whether no transition leaves s.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CheckTransition validates a status change by actor against the lifecycle
// table. Ownership is not checked here; the engine does that before calling.
func CheckTransition(from, to Status, actor Role) error {
	if allowedTransition(from, to, actor) {
		return nil
	}
	return &TransitionError{From: from, To: to, Actor: actor}
}

func allowedTransition(from, to Status, actor Role) bool {
	if from.IsTerminal() {
		return false
	}

	switch actor {
	case RoleCustomer:
		return from == StatusPending && (to == StatusAssigned || to == StatusCancelled)
	case RoleProvider:
		if from == StatusPending {
			return to == StatusAssigned || to == StatusCancelled
		}
		if !from.IsActive() {
			return false
		}
		toRank, ok := forwardRank[to]
		return ok && toRank > forwardRank[from]
	case RoleSystem:
		return from == StatusPending && to == StatusCancelled
	}
	return false
}

// Request is one job a customer needs done.
type Request struct {
	ID          int64     `json:"id"`
	CustomerID  int64     `json:"customer_id"`
	ProviderID  *int64    `json:"provider_id"`
	Title       string    `json:"title"`
	ServiceType string    `json:"service_type"`
	Budget      *float64  `json:"budget"`
	Address     string    `json:"address,omitempty"`
	Description string    `json:"description,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	CustomerLat *float64  `json:"customer_lat"`
	CustomerLng *float64  `json:"customer_lng"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewRequestParams holds the customer-supplied fields of a new request.
type NewRequestParams struct {
	Title       string
	ServiceType string
	Budget      *float64
	Address     string
	Description string
	ImageURL    string
	Location    *Location
}

// NewRequest creates a pending request owned by customerID.
func NewRequest(customerID int64, p NewRequestParams, now time.Time) (*Request, error) {
	r := &Request{
		CustomerID:  customerID,
		Title:       strings.TrimSpace(p.Title),
		ServiceType: strings.TrimSpace(p.ServiceType),
		Budget:      p.Budget,
		Address:     strings.TrimSpace(p.Address),
		Description: p.Description,
		ImageURL:    p.ImageURL,
		Status:      StatusPending,
		CreatedAt:   now.UTC(),
		UpdatedAt:   now.UTC(),
	}
	if p.Location != nil {
		if err := p.Location.Validate(); err != nil {
			return nil, err
		}
		lat, lng := p.Location.Latitude, p.Location.Longitude
		r.CustomerLat, r.CustomerLng = &lat, &lng
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Validate checks the request's fields.
func (r *Request) Validate() error {
	if r.CustomerID <= 0 {
		return NewValidationError("customer_id", "must be positive", nil)
	}
	if r.Title == "" {
		return NewValidationError("title", "is required", nil)
	}
	if r.ServiceType == "" {
		return NewValidationError("service_type", "is required", nil)
	}
	if r.Budget != nil && *r.Budget < 0 {
		return NewValidationError("budget", "cannot be negative", nil)
	}
	if (r.CustomerLat == nil) != (r.CustomerLng == nil) {
		return NewValidationError("customer_lat", "latitude and longitude must be given together", nil)
	}
	if _, err := ParseStatus(string(r.Status)); err != nil {
		return err
	}
	return nil
}

// Location returns the customer position if it is known.
func (r *Request) Location() *Location {
	return LocationFrom(r.CustomerLat, r.CustomerLng)
}

// IsTargetedAt reports whether the request names providerID.
func (r *Request) IsTargetedAt(providerID int64) bool {
	return r.ProviderID != nil && *r.ProviderID == providerID
}

// TransitionTo moves the request to status to on behalf of actor.
// On error the request is left unchanged.
func (r *Request) TransitionTo(to Status, actor Role, now time.Time) error {
	if err := CheckTransition(r.Status, to, actor); err != nil {
		return err
	}
	r.Status = to
	r.UpdatedAt = now.UTC()
	return nil
}
