package shared

import (
	"context"
	"testing"

	"github.com/quickserve/dispatch-api/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestSetAndGetTraceID(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetTraceID(ctx))

	withTrace := SetTraceID(ctx)
	traceID := GetTraceID(withTrace)
	assert.Len(t, traceID, 32, "trace ID is 32 hex characters")
	assert.Empty(t, GetTraceID(ctx), "original context is unchanged")

	assert.NotEqual(t, traceID, GetTraceID(SetTraceID(ctx)))
}

func TestGetTraceIDWithInvalidContext(t *testing.T) {
	ctx := context.WithValue(context.Background(), TraceIDKey, 123)
	assert.Empty(t, GetTraceID(ctx))
}

func TestIdentityFromContext(t *testing.T) {
	_, ok := IdentityFromContext(context.Background())
	assert.False(t, ok)

	want := domain.Identity{UserID: 7, Role: domain.RoleProvider}
	got, ok := IdentityFromContext(WithIdentity(context.Background(), want))
	assert.True(t, ok)
	assert.Equal(t, want, got)

	_, ok = IdentityFromContext(WithIdentity(context.Background(), domain.Identity{Role: domain.RoleAdmin}))
	assert.False(t, ok, "zero user id is not an identity")
}
