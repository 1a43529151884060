package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/quickserve/dispatch-api/internal/domain"
	"github.com/quickserve/dispatch-api/internal/platform/logger"
	"github.com/quickserve/dispatch-api/internal/store"
)

// PostgresUserStore implements store.UserStore.
type PostgresUserStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresUserStore creates a user store on db, which may be a pool or a
// transaction. If logger is nil, the default logger is used.
func NewPostgresUserStore(db store.DBTX, logger *slog.Logger) *PostgresUserStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresUserStore{
		db:     db,
		logger: logger.With(slog.String("component", "user_store")),
	}
}

var _ store.UserStore = (*PostgresUserStore)(nil)

// GetUser implements store.UserStore.
func (s *PostgresUserStore) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	var u domain.User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, full_name, email, role, created_at
		FROM users
		WHERE id = $1
	`, id).Scan(&u.ID, &u.FullName, &u.Email, &u.Role, &u.CreatedAt)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Debug("user lookup failed",
			slog.Int64("user_id", id), slog.String("error", err.Error()))
		return nil, mapNotFound(err, store.ErrUserNotFound)
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return &u, nil
}

// GetCustomerByUserID implements store.UserStore.
func (s *PostgresUserStore) GetCustomerByUserID(ctx context.Context, userID int64) (*domain.Customer, error) {
	var c domain.Customer
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id
		FROM customers
		WHERE user_id = $1
	`, userID).Scan(&c.ID, &c.UserID)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Debug("customer lookup failed",
			slog.Int64("user_id", userID), slog.String("error", err.Error()))
		return nil, mapNotFound(err, store.ErrCustomerNotFound)
	}
	return &c, nil
}

// likeEscaper makes a search term match literally inside ILIKE.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ListCustomers implements store.UserStore.
func (s *PostgresUserStore) ListCustomers(ctx context.Context, f store.CustomerFilter) ([]*domain.CustomerAccount, int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var (
		where string
		args  []any
	)
	if term := strings.TrimSpace(f.Search); term != "" {
		args = append(args, "%"+likeEscaper.Replace(term)+"%")
		where = "WHERE u.full_name ILIKE $1 OR u.email ILIKE $1\n"
	}

	var total int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM customers c
		JOIN users u ON u.id = c.user_id
		`+where, args...).Scan(&total)
	if err != nil {
		log.Error("failed to count customers", slog.String("error", err.Error()))
		return nil, 0, MapError(err)
	}

	query := `
		SELECT c.id, c.user_id, u.full_name, u.email, u.created_at
		FROM customers c
		JOIN users u ON u.id = c.user_id
		` + where + "ORDER BY c.id"
	if f.Limit > 0 {
		args = append(args, f.Limit, f.Offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to list customers", slog.String("error", err.Error()))
		return nil, 0, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	out := []*domain.CustomerAccount{}
	for rows.Next() {
		var a domain.CustomerAccount
		if err := rows.Scan(&a.CustomerID, &a.UserID, &a.Name, &a.Email, &a.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan customer row: %w", err)
		}
		a.CreatedAt = a.CreatedAt.UTC()
		out = append(out, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating customer rows: %w", err)
	}
	return out, total, nil
}
