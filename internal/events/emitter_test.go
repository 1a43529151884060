package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/quickserve/dispatch-api/internal/domain"
	"github.com/quickserve/dispatch-api/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingHandler struct {
	calls int
}

func (h *failingHandler) HandleEvent(context.Context, *Event) error {
	h.calls++
	return errors.New("handler error")
}

func TestInMemoryEventEmitter(t *testing.T) {
	discard := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("no handlers", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(discard)
		event, err := NewEvent(TypeRequestCreated, RequestCreated{RequestID: 1})
		require.NoError(t, err)
		assert.NoError(t, emitter.EmitEvent(context.Background(), event))
	})

	t.Run("every handler sees the event", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(discard)
		first, second := &Recorder{}, &Recorder{}
		emitter.RegisterHandler(first)
		emitter.RegisterHandler(second)

		event, err := NewEvent(TypeRequestStatusChanged, RequestStatusChanged{
			RequestID: 4, From: domain.StatusPending, To: domain.StatusAssigned, Actor: domain.RoleCustomer,
		})
		require.NoError(t, err)
		require.NoError(t, emitter.EmitEvent(context.Background(), event))

		assert.Equal(t, []string{TypeRequestStatusChanged}, first.Types())
		assert.Same(t, event, second.Events()[0])

		var payload RequestStatusChanged
		require.NoError(t, event.UnmarshalPayload(&payload))
		assert.Equal(t, domain.StatusAssigned, payload.To)
	})

	t.Run("failing handler does not stop the others", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(discard)
		bad, good := &failingHandler{}, &Recorder{}
		emitter.RegisterHandler(bad)
		emitter.RegisterHandler(good)

		event, err := NewEvent(TypeProviderKYCReviewed, ProviderKYC{ProviderID: 2, Status: domain.KYCApproved})
		require.NoError(t, err)

		err = emitter.EmitEvent(context.Background(), event)
		assert.EqualError(t, err, "handler error")
		assert.Equal(t, 1, bad.calls)
		assert.Len(t, good.Events(), 1)
	})
}

func TestLogHandler(t *testing.T) {
	l, buf := logger.NewTestLogger(t)
	h := NewLogHandler(l)

	event, err := NewEvent(TypeProviderPresenceChanged, ProviderPresenceChanged{ProviderID: 3, IsOnline: true})
	require.NoError(t, err)
	require.NoError(t, h.HandleEvent(context.Background(), event))

	logger.AssertLogContains(t, buf, TypeProviderPresenceChanged)
	logger.AssertLogContains(t, buf, `\"is_online\":true`)
}
