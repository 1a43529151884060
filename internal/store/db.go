package store

import (
	"context"
	"database/sql"
)

// DBTX is implemented by both *sql.DB and *sql.Tx, so a store can be built on
// either a pooled connection or a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Repositories groups the stores an engine operation works with. Within
// TxRunner.RunInTx every field is bound to the same transaction.
type Repositories struct {
	Users     UserStore
	Providers ProviderStore
	Requests  RequestStore
	KYC       KYCStore
}

// TxRunner runs engine operations against a store.
type TxRunner interface {
	// Repositories returns stores that are not bound to a transaction.
	// Use them for plain reads only.
	Repositories() Repositories

	// RunInTx calls fn with transaction-bound repositories. The transaction
	// commits when fn returns nil and rolls back otherwise, so a failed
	// operation leaves nothing behind.
	RunInTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}
