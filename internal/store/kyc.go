package store

import (
	"context"

	"github.com/quickserve/dispatch-api/internal/domain"
)

// KYCStore persists the single KYC record each provider may have.
type KYCStore interface {
	// GetByProviderID returns the record or ErrKYCNotFound.
	GetByProviderID(ctx context.Context, providerID int64) (*domain.ProviderKYC, error)

	// Upsert inserts k or replaces the provider's existing record, and sets
	// k.ID.
	Upsert(ctx context.Context, k *domain.ProviderKYC) error

	// Update writes the review fields of an existing record.
	Update(ctx context.Context, k *domain.ProviderKYC) error

	// ListByStatus returns records with status, oldest submission first. A
	// nil status lists every record.
	ListByStatus(ctx context.Context, status *domain.KYCStatus, limit int) ([]*domain.ProviderKYC, error)
}
