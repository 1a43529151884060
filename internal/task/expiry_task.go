package task

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/quickserve/dispatch-api/internal/platform/logger"
)

// DefaultExpiryBatchSize is the largest number of requests one run cancels
const DefaultExpiryBatchSize = 100

// RequestExpirer cancels stale pending requests.
type RequestExpirer interface {
	ExpireStalePending(ctx context.Context, maxAge time.Duration, batch int) (int, error)
}

// ExpiryTask cancels pending requests nobody accepted within MaxAge.
type ExpiryTask struct {
	id       uuid.UUID
	expirer  RequestExpirer
	maxAge   time.Duration
	batch    int
	fallback *slog.Logger
}

var _ Task = (*ExpiryTask)(nil)

// NewExpiryTask creates an ExpiryTask. A batch of zero uses
// DefaultExpiryBatchSize.
func NewExpiryTask(expirer RequestExpirer, maxAge time.Duration, batch int, log *slog.Logger) (*ExpiryTask, error) {
	if expirer == nil {
		return nil, fmt.Errorf("request expirer cannot be nil")
	}
	if maxAge <= 0 {
		return nil, fmt.Errorf("expiry age must be positive, got %s", maxAge)
	}
	if batch <= 0 {
		batch = DefaultExpiryBatchSize
	}
	if log == nil {
		log = slog.Default()
	}
	return &ExpiryTask{
		id:       uuid.New(),
		expirer:  expirer,
		maxAge:   maxAge,
		batch:    batch,
		fallback: log,
	}, nil
}

// ID implements Task
func (t *ExpiryTask) ID() uuid.UUID { return t.id }

// Type implements Task
func (t *ExpiryTask) Type() string { return TaskTypeRequestExpiry }

// Execute cancels up to one batch of stale requests. Progress is logged
// even when the run stops early.
func (t *ExpiryTask) Execute(ctx context.Context) error {
	n, err := t.expirer.ExpireStalePending(ctx, t.maxAge, t.batch)
	if n > 0 {
		logger.FromContextOrDefault(ctx, t.fallback).Info("cancelled stale pending requests",
			"count", n,
			"max_age", t.maxAge.String())
	}
	if err != nil {
		return fmt.Errorf("expiring stale requests: %w", err)
	}
	return nil
}
