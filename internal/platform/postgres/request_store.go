package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/quickserve/dispatch-api/internal/domain"
	"github.com/quickserve/dispatch-api/internal/platform/logger"
	"github.com/quickserve/dispatch-api/internal/store"
)

const requestSelect = `
	SELECT id, customer_id, provider_id, title, service_type, budget, address,
		description, image_url, customer_lat, customer_lng, status, created_at, updated_at
	FROM requests
`

// PostgresRequestStore implements store.RequestStore.
type PostgresRequestStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresRequestStore creates a request store on db. If logger is nil,
// the default logger is used.
func NewPostgresRequestStore(db store.DBTX, logger *slog.Logger) *PostgresRequestStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresRequestStore{
		db:     db,
		logger: logger.With(slog.String("component", "request_store")),
	}
}

var _ store.RequestStore = (*PostgresRequestStore)(nil)

func scanRequest(row rowScanner) (*domain.Request, error) {
	var (
		r          domain.Request
		providerID sql.NullInt64
		budget     sql.NullFloat64
		lat, lng   sql.NullFloat64
		status     string
	)
	err := row.Scan(
		&r.ID, &r.CustomerID, &providerID, &r.Title, &r.ServiceType, &budget, &r.Address,
		&r.Description, &r.ImageURL, &lat, &lng, &status, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.ProviderID = int64Ptr(providerID)
	r.Budget = floatPtr(budget)
	r.CustomerLat, r.CustomerLng = floatPtr(lat), floatPtr(lng)
	r.Status = domain.Status(status)
	r.CreatedAt, r.UpdatedAt = r.CreatedAt.UTC(), r.UpdatedAt.UTC()
	return &r, nil
}

// Create implements store.RequestStore.
func (s *PostgresRequestStore) Create(ctx context.Context, r *domain.Request) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO requests (customer_id, provider_id, title, service_type, budget, address,
			description, image_url, customer_lat, customer_lng, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id
	`,
		r.CustomerID, nullInt64(r.ProviderID), r.Title, r.ServiceType, nullFloat(r.Budget), r.Address,
		r.Description, r.ImageURL, nullFloat(r.CustomerLat), nullFloat(r.CustomerLng), string(r.Status),
		r.CreatedAt, r.UpdatedAt,
	).Scan(&r.ID)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to insert request",
			slog.Int64("customer_id", r.CustomerID), slog.String("error", err.Error()))
		return MapError(err)
	}
	return nil
}

func (s *PostgresRequestStore) getOne(ctx context.Context, query string, id int64) (*domain.Request, error) {
	r, err := scanRequest(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Debug("request lookup failed",
			slog.Int64("request_id", id), slog.String("error", err.Error()))
		return nil, mapNotFound(err, store.ErrRequestNotFound)
	}
	return r, nil
}

// GetByID implements store.RequestStore.
func (s *PostgresRequestStore) GetByID(ctx context.Context, id int64) (*domain.Request, error) {
	return s.getOne(ctx, requestSelect+"WHERE id = $1", id)
}

// LockByID implements store.RequestStore.
func (s *PostgresRequestStore) LockByID(ctx context.Context, id int64) (*domain.Request, error) {
	return s.getOne(ctx, requestSelect+"WHERE id = $1 FOR UPDATE", id)
}

// Update implements store.RequestStore.
func (s *PostgresRequestStore) Update(ctx context.Context, r *domain.Request) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE requests
		SET provider_id = $1, budget = $2, status = $3, updated_at = $4
		WHERE id = $5
	`, nullInt64(r.ProviderID), nullFloat(r.Budget), string(r.Status), r.UpdatedAt, r.ID)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Warn("failed to update request",
			slog.Int64("request_id", r.ID),
			slog.String("status", string(r.Status)),
			slog.String("error", err.Error()))
		return MapError(err)
	}
	return CheckRowsAffected(result, store.ErrRequestNotFound)
}

// CountActiveForProvider implements store.RequestStore.
func (s *PostgresRequestStore) CountActiveForProvider(ctx context.Context, providerID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM requests
		WHERE provider_id = $1 AND status IN `+activeStatusList,
		providerID,
	).Scan(&n)
	if err != nil {
		return 0, MapError(err)
	}
	return n, nil
}

// ListByCustomer implements store.RequestStore.
func (s *PostgresRequestStore) ListByCustomer(ctx context.Context, customerID int64, limit, offset int) ([]*domain.Request, error) {
	return s.query(ctx, "list customer requests", requestSelect+`
		WHERE customer_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, customerID, limit, offset)
}

// ListForProvider implements store.RequestStore.
func (s *PostgresRequestStore) ListForProvider(ctx context.Context, providerID int64, statuses []domain.Status, limit int) ([]*domain.Request, error) {
	if len(statuses) == 0 {
		return []*domain.Request{}, nil
	}
	args := []any{providerID}
	for _, st := range statuses {
		args = append(args, string(st))
	}
	args = append(args, limit)
	query := requestSelect + fmt.Sprintf(`
		WHERE provider_id = $1 AND status IN (%s)
		ORDER BY created_at DESC, id DESC
		LIMIT $%d
	`, placeholders(2, len(statuses)), len(args))
	return s.query(ctx, "list provider requests", query, args...)
}

// ListStalePending implements store.RequestStore.
func (s *PostgresRequestStore) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Request, error) {
	return s.query(ctx, "list stale pending requests", requestSelect+`
		WHERE status = 'pending' AND created_at < $1
		ORDER BY created_at ASC, id ASC
		LIMIT $2
	`, cutoff, limit)
}

// List implements store.RequestStore.
func (s *PostgresRequestStore) List(ctx context.Context, f store.RequestFilter) ([]*domain.Request, error) {
	var args []any
	query := requestSelect
	if f.Status != nil {
		args = append(args, string(*f.Status))
		query += "WHERE status = $1\n"
	}
	query += "ORDER BY created_at DESC, id DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit, f.Offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}
	return s.query(ctx, "list requests", query, args...)
}

func (s *PostgresRequestStore) query(ctx context.Context, op, query string, args ...any) ([]*domain.Request, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to "+op, slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	requests := []*domain.Request{}
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			log.Error("failed to scan request row", slog.String("error", err.Error()))
			return nil, fmt.Errorf("failed to scan request row: %w", err)
		}
		requests = append(requests, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating request rows: %w", err)
	}
	return requests, nil
}
