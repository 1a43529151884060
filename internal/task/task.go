package task

import (
	"context"

	"github.com/google/uuid"
)

// Task type constants
const (
	// TaskTypeRequestExpiry cancels pending requests older than the
	// configured expiry
	TaskTypeRequestExpiry = "request_expiry"
)

// Task represents a unit of background work that runs repeatedly
type Task interface {
	// ID returns the task's unique identifier
	ID() uuid.UUID

	// Type returns the task type identifier
	Type() string

	// Execute runs one round of the task
	Execute(ctx context.Context) error
}
