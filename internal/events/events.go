package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/quickserve/dispatch-api/internal/domain"
)

// Event types.
const (
	TypeRequestCreated          = "request.created"
	TypeRequestStatusChanged    = "request.status_changed"
	TypeRequestOffered          = "request.offered"
	TypeProviderPresenceChanged = "provider.presence_changed"
	TypeProviderKYCSubmitted    = "provider.kyc_submitted"
	TypeProviderKYCReviewed     = "provider.kyc_reviewed"
)

// Event is one committed change.
type Event struct {
	ID        uuid.UUID       `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// UnmarshalPayload decodes the event payload into v.
func (e *Event) UnmarshalPayload(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// NewEvent creates an Event of eventType with payload serialised as JSON.
func NewEvent(eventType string, payload any) (*Event, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Event{
		ID:        uuid.New(),
		Type:      eventType,
		Payload:   payloadBytes,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// RequestCreated is the payload of TypeRequestCreated.
type RequestCreated struct {
	RequestID   int64  `json:"request_id"`
	CustomerID  int64  `json:"customer_id"`
	ServiceType string `json:"service_type"`
}

// RequestStatusChanged is the payload of TypeRequestStatusChanged.
type RequestStatusChanged struct {
	RequestID  int64         `json:"request_id"`
	ProviderID *int64        `json:"provider_id,omitempty"`
	From       domain.Status `json:"from"`
	To         domain.Status `json:"to"`
	Actor      domain.Role   `json:"actor"`
}

// RequestOffered is the payload of TypeRequestOffered.
type RequestOffered struct {
	RequestID  int64 `json:"request_id"`
	ProviderID int64 `json:"provider_id"`
}

// ProviderPresenceChanged is the payload of TypeProviderPresenceChanged.
type ProviderPresenceChanged struct {
	ProviderID int64 `json:"provider_id"`
	IsOnline   bool  `json:"is_online"`
}

// ProviderKYC is the payload of the KYC event types.
type ProviderKYC struct {
	ProviderID int64            `json:"provider_id"`
	Status     domain.KYCStatus `json:"status"`
	Reason     string           `json:"reason,omitempty"`
}

// EventHandler processes events.
type EventHandler interface {
	HandleEvent(ctx context.Context, event *Event) error
}

// EventEmitter publishes events to handlers.
type EventEmitter interface {
	EmitEvent(ctx context.Context, event *Event) error
}
