package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/quickserve/dispatch-api/internal/domain"
	"github.com/quickserve/dispatch-api/internal/platform/logger"
	"github.com/quickserve/dispatch-api/internal/store"
)

const providerSelect = `
	SELECT p.id, p.user_id, u.full_name, p.service_type, p.base_price, p.is_online,
		p.kyc_status, p.bio, p.experience_years, p.city, p.address_line,
		p.working_days, p.start_time, p.end_time, p.last_latitude, p.last_longitude,
		p.last_seen_at, p.rating, p.jobs_completed
	FROM providers p
	JOIN users u ON u.id = p.user_id
`

// activeStatusList is the active set as an SQL literal list.
const activeStatusList = `('assigned', 'en_route', 'arrived', 'payment')`

// PostgresProviderStore implements store.ProviderStore.
type PostgresProviderStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresProviderStore creates a provider store on db. If logger is nil,
// the default logger is used.
func NewPostgresProviderStore(db store.DBTX, logger *slog.Logger) *PostgresProviderStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresProviderStore{
		db:     db,
		logger: logger.With(slog.String("component", "provider_store")),
	}
}

var _ store.ProviderStore = (*PostgresProviderStore)(nil)

func scanProvider(row rowScanner) (*domain.Provider, error) {
	var (
		p         domain.Provider
		days      string
		lat, lng  sql.NullFloat64
		lastSeen  sql.NullTime
		rating    sql.NullFloat64
		kycStatus string
	)
	err := row.Scan(
		&p.ID, &p.UserID, &p.Name, &p.ServiceType, &p.BasePrice, &p.IsOnline,
		&kycStatus, &p.Bio, &p.ExperienceYears, &p.City, &p.AddressLine,
		&days, &p.StartTime, &p.EndTime, &lat, &lng,
		&lastSeen, &rating, &p.JobsCompleted,
	)
	if err != nil {
		return nil, err
	}
	p.KYCStatus = domain.KYCStatus(kycStatus)
	p.WorkingDays = splitDays(days)
	p.LastLatitude, p.LastLongitude = floatPtr(lat), floatPtr(lng)
	p.LastSeenAt = timePtr(lastSeen)
	p.Rating = floatPtr(rating)
	return &p, nil
}

func (s *PostgresProviderStore) getOne(ctx context.Context, where string, arg int64) (*domain.Provider, error) {
	p, err := scanProvider(s.db.QueryRowContext(ctx, providerSelect+where, arg))
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Debug("provider lookup failed",
			slog.Int64("key", arg), slog.String("error", err.Error()))
		return nil, mapNotFound(err, store.ErrProviderNotFound)
	}
	return p, nil
}

// GetByID implements store.ProviderStore.
func (s *PostgresProviderStore) GetByID(ctx context.Context, id int64) (*domain.Provider, error) {
	return s.getOne(ctx, "WHERE p.id = $1", id)
}

// GetByUserID implements store.ProviderStore.
func (s *PostgresProviderStore) GetByUserID(ctx context.Context, userID int64) (*domain.Provider, error) {
	return s.getOne(ctx, "WHERE p.user_id = $1", userID)
}

// LockByID implements store.ProviderStore.
func (s *PostgresProviderStore) LockByID(ctx context.Context, id int64) (*domain.Provider, error) {
	return s.getOne(ctx, "WHERE p.id = $1 FOR UPDATE OF p", id)
}

// LockByUserID implements store.ProviderStore.
func (s *PostgresProviderStore) LockByUserID(ctx context.Context, userID int64) (*domain.Provider, error) {
	return s.getOne(ctx, "WHERE p.user_id = $1 FOR UPDATE OF p", userID)
}

// Update implements store.ProviderStore.
func (s *PostgresProviderStore) Update(ctx context.Context, p *domain.Provider) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx, `
		UPDATE providers
		SET service_type = $1, base_price = $2, is_online = $3, kyc_status = $4,
			bio = $5, experience_years = $6, city = $7, address_line = $8,
			working_days = $9, start_time = $10, end_time = $11,
			last_latitude = $12, last_longitude = $13, last_seen_at = $14
		WHERE id = $15
	`,
		p.ServiceType, p.BasePrice, p.IsOnline, string(p.KYCStatus),
		p.Bio, p.ExperienceYears, p.City, p.AddressLine,
		joinDays(p.WorkingDays), p.StartTime, p.EndTime,
		nullFloat(p.LastLatitude), nullFloat(p.LastLongitude), nullTime(p.LastSeenAt),
		p.ID,
	)
	if err != nil {
		log.Error("failed to update provider",
			slog.Int64("provider_id", p.ID), slog.String("error", err.Error()))
		return MapError(err)
	}
	return CheckRowsAffected(result, store.ErrProviderNotFound)
}

// ListEligible implements store.ProviderStore.
func (s *PostgresProviderStore) ListEligible(ctx context.Context, serviceType string, near *domain.Location, limit int) ([]*domain.Provider, error) {
	query := providerSelect + `
		WHERE p.is_online AND p.kyc_status = 'approved'
			AND lower(p.service_type) = lower($1)
			AND NOT EXISTS (
				SELECT 1 FROM requests r
				WHERE r.provider_id = p.id AND r.status IN ` + activeStatusList + `
			)
	`
	if near == nil {
		query += "ORDER BY p.id\nLIMIT $2"
		return s.query(ctx, "list eligible providers", query, serviceType, limit)
	}
	query += "ORDER BY " + distanceKmExpr + " NULLS LAST, p.id\nLIMIT $4"
	return s.query(ctx, "list eligible providers", query, serviceType, near.Latitude, near.Longitude, limit)
}

// distanceKmExpr is the haversine distance in km between the provider's last
// position and ($2, $3). It is NULL when the position is unknown.
const distanceKmExpr = `(6371 * 2 * asin(sqrt(
	power(sin(radians(p.last_latitude - $2) / 2), 2) +
	cos(radians($2)) * cos(radians(p.last_latitude)) *
	power(sin(radians(p.last_longitude - $3) / 2), 2))))`

// List implements store.ProviderStore.
func (s *PostgresProviderStore) List(ctx context.Context, f store.ProviderFilter) ([]*domain.Provider, error) {
	var (
		conds []string
		args  []any
	)
	if f.ServiceType != nil {
		args = append(args, *f.ServiceType)
		conds = append(conds, fmt.Sprintf("lower(p.service_type) = lower($%d)", len(args)))
	}
	if f.KYCStatus != nil {
		args = append(args, string(*f.KYCStatus))
		conds = append(conds, fmt.Sprintf("p.kyc_status = $%d", len(args)))
	}
	if f.Online != nil {
		args = append(args, *f.Online)
		conds = append(conds, fmt.Sprintf("p.is_online = $%d", len(args)))
	}

	query := providerSelect
	if len(conds) > 0 {
		query += "WHERE " + strings.Join(conds, " AND ") + "\n"
	}
	query += "ORDER BY p.id"
	if f.Limit > 0 {
		args = append(args, f.Limit, f.Offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}
	return s.query(ctx, "list providers", query, args...)
}

func (s *PostgresProviderStore) query(ctx context.Context, op, query string, args ...any) ([]*domain.Provider, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to "+op, slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	providers := []*domain.Provider{}
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			log.Error("failed to scan provider row", slog.String("error", err.Error()))
			return nil, fmt.Errorf("failed to scan provider row: %w", err)
		}
		providers = append(providers, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating provider rows: %w", err)
	}
	return providers, nil
}
