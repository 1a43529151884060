package postgres

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/quickserve/dispatch-api/internal/store"
)

// Store implements store.TxRunner on a PostgreSQL connection pool.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStore creates a Store on db. If logger is nil, the default logger is
// used.
func NewStore(db *sql.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

var _ store.TxRunner = (*Store)(nil)

// NewRepositories builds every store on db.
func NewRepositories(db store.DBTX, logger *slog.Logger) store.Repositories {
	return store.Repositories{
		Users:     NewPostgresUserStore(db, logger),
		Providers: NewPostgresProviderStore(db, logger),
		Requests:  NewPostgresRequestStore(db, logger),
		KYC:       NewPostgresKYCStore(db, logger),
	}
}

// Repositories implements store.TxRunner.
func (s *Store) Repositories() store.Repositories {
	return NewRepositories(s.db, s.logger)
}

// RunInTx implements store.TxRunner.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, repos store.Repositories) error) error {
	return store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		return fn(ctx, NewRepositories(tx, s.logger))
	})
}
