package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/quickserve/dispatch-api/internal/domain"
	"github.com/quickserve/dispatch-api/internal/platform/logger"
	"github.com/quickserve/dispatch-api/internal/store"
)

const kycSelect = `
	SELECT id, provider_id, id_number, address_line, id_proof_url, address_proof_url,
		profile_photo_url, status, rejection_reason, submitted_at, reviewed_at
	FROM provider_kyc
`

// PostgresKYCStore implements store.KYCStore.
type PostgresKYCStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresKYCStore creates a KYC store on db. If logger is nil, the
// default logger is used.
func NewPostgresKYCStore(db store.DBTX, logger *slog.Logger) *PostgresKYCStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresKYCStore{
		db:     db,
		logger: logger.With(slog.String("component", "kyc_store")),
	}
}

var _ store.KYCStore = (*PostgresKYCStore)(nil)

func scanKYC(row rowScanner) (*domain.ProviderKYC, error) {
	var (
		k        domain.ProviderKYC
		status   string
		reviewed sql.NullTime
	)
	err := row.Scan(
		&k.ID, &k.ProviderID, &k.IDNumber, &k.AddressLine, &k.IDProofURL, &k.AddressProofURL,
		&k.ProfilePhotoURL, &status, &k.RejectionReason, &k.SubmittedAt, &reviewed,
	)
	if err != nil {
		return nil, err
	}
	k.Status = domain.KYCStatus(status)
	k.SubmittedAt = k.SubmittedAt.UTC()
	k.ReviewedAt = timePtr(reviewed)
	return &k, nil
}

// GetByProviderID implements store.KYCStore.
func (s *PostgresKYCStore) GetByProviderID(ctx context.Context, providerID int64) (*domain.ProviderKYC, error) {
	k, err := scanKYC(s.db.QueryRowContext(ctx, kycSelect+"WHERE provider_id = $1", providerID))
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Debug("kyc lookup failed",
			slog.Int64("provider_id", providerID), slog.String("error", err.Error()))
		return nil, mapNotFound(err, store.ErrKYCNotFound)
	}
	return k, nil
}

// Upsert implements store.KYCStore.
func (s *PostgresKYCStore) Upsert(ctx context.Context, k *domain.ProviderKYC) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO provider_kyc (provider_id, id_number, address_line, id_proof_url,
			address_proof_url, profile_photo_url, status, rejection_reason, submitted_at, reviewed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (provider_id) DO UPDATE SET
			id_number = EXCLUDED.id_number,
			address_line = EXCLUDED.address_line,
			id_proof_url = EXCLUDED.id_proof_url,
			address_proof_url = EXCLUDED.address_proof_url,
			profile_photo_url = EXCLUDED.profile_photo_url,
			status = EXCLUDED.status,
			rejection_reason = EXCLUDED.rejection_reason,
			submitted_at = EXCLUDED.submitted_at,
			reviewed_at = EXCLUDED.reviewed_at
		RETURNING id
	`,
		k.ProviderID, k.IDNumber, k.AddressLine, k.IDProofURL,
		k.AddressProofURL, k.ProfilePhotoURL, string(k.Status), k.RejectionReason,
		k.SubmittedAt, nullTime(k.ReviewedAt),
	).Scan(&k.ID)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to upsert kyc record",
			slog.Int64("provider_id", k.ProviderID), slog.String("error", err.Error()))
		return MapError(err)
	}
	return nil
}

// Update implements store.KYCStore.
func (s *PostgresKYCStore) Update(ctx context.Context, k *domain.ProviderKYC) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE provider_kyc
		SET status = $1, rejection_reason = $2, reviewed_at = $3
		WHERE provider_id = $4
	`, string(k.Status), k.RejectionReason, nullTime(k.ReviewedAt), k.ProviderID)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to update kyc record",
			slog.Int64("provider_id", k.ProviderID), slog.String("error", err.Error()))
		return MapError(err)
	}
	return CheckRowsAffected(result, store.ErrKYCNotFound)
}

// ListByStatus implements store.KYCStore.
func (s *PostgresKYCStore) ListByStatus(ctx context.Context, status *domain.KYCStatus, limit int) ([]*domain.ProviderKYC, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var (
		rows *sql.Rows
		err  error
	)
	if status != nil {
		rows, err = s.db.QueryContext(ctx, kycSelect+`
			WHERE status = $1
			ORDER BY submitted_at ASC, id ASC
			LIMIT $2
		`, string(*status), limit)
	} else {
		rows, err = s.db.QueryContext(ctx, kycSelect+`
			ORDER BY submitted_at ASC, id ASC
			LIMIT $1
		`, limit)
	}
	if err != nil {
		log.Error("failed to list kyc records", slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	records := []*domain.ProviderKYC{}
	for rows.Next() {
		k, err := scanKYC(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan kyc row: %w", err)
		}
		records = append(records, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating kyc rows: %w", err)
	}
	return records, nil
}
