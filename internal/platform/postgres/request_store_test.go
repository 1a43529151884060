package postgres

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/quickserve/dispatch-api/internal/domain"
	"github.com/quickserve/dispatch-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var requestColumns = []string{
	"id", "customer_id", "provider_id", "title", "service_type", "budget", "address",
	"description", "image_url", "customer_lat", "customer_lng", "status", "created_at", "updated_at",
}

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func TestRequestStoreCreate(t *testing.T) {
	t.Parallel()
	db, mock := newMock(t)
	s := NewPostgresRequestStore(db, nil)

	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	budget := 450.0
	r := &domain.Request{
		CustomerID:  3,
		Title:       "Fix tap",
		ServiceType: "Plumber",
		Budget:      &budget,
		Status:      domain.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO requests")).
		WithArgs(int64(3), sqlmock.AnyArg(), "Fix tap", "Plumber", sqlmock.AnyArg(), "",
			"", "", sqlmock.AnyArg(), sqlmock.AnyArg(), "pending", now, now).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))

	require.NoError(t, s.Create(context.Background(), r))
	assert.Equal(t, int64(42), r.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestStoreGetByID(t *testing.T) {
	t.Parallel()

	t.Run("scans nullable columns", func(t *testing.T) {
		db, mock := newMock(t)
		s := NewPostgresRequestStore(db, nil)
		now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

		mock.ExpectQuery(regexp.QuoteMeta("FROM requests")).
			WithArgs(int64(7)).
			WillReturnRows(sqlmock.NewRows(requestColumns).AddRow(
				int64(7), int64(3), int64(11), "Fix tap", "Plumber", 500.0, "12 MG Road",
				"", "", 19.07, 72.87, "assigned", now, now,
			))

		r, err := s.GetByID(context.Background(), 7)
		require.NoError(t, err)
		require.NotNil(t, r.ProviderID)
		assert.Equal(t, int64(11), *r.ProviderID)
		require.NotNil(t, r.Budget)
		assert.Equal(t, 500.0, *r.Budget)
		assert.Equal(t, domain.StatusAssigned, r.Status)
		require.NotNil(t, r.Location())
		assert.Equal(t, 19.07, r.Location().Latitude)
	})

	t.Run("nulls stay nil", func(t *testing.T) {
		db, mock := newMock(t)
		s := NewPostgresRequestStore(db, nil)
		now := time.Now().UTC()

		mock.ExpectQuery(regexp.QuoteMeta("FROM requests")).
			WithArgs(int64(8)).
			WillReturnRows(sqlmock.NewRows(requestColumns).AddRow(
				int64(8), int64(3), nil, "Paint wall", "Painter", nil, "",
				"", "", nil, nil, "pending", now, now,
			))

		r, err := s.GetByID(context.Background(), 8)
		require.NoError(t, err)
		assert.Nil(t, r.ProviderID)
		assert.Nil(t, r.Budget)
		assert.Nil(t, r.Location())
	})

	t.Run("missing row", func(t *testing.T) {
		db, mock := newMock(t)
		s := NewPostgresRequestStore(db, nil)

		mock.ExpectQuery(regexp.QuoteMeta("FROM requests")).
			WithArgs(int64(9)).
			WillReturnError(sql.ErrNoRows)

		_, err := s.GetByID(context.Background(), 9)
		assert.ErrorIs(t, err, store.ErrRequestNotFound)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestRequestStoreLockByIDLocksRow(t *testing.T) {
	t.Parallel()
	db, mock := newMock(t)
	s := NewPostgresRequestStore(db, nil)

	mock.ExpectQuery(`WHERE id = \$1 FOR UPDATE`).
		WithArgs(int64(5)).
		WillReturnError(sql.ErrNoRows)

	_, err := s.LockByID(context.Background(), 5)
	assert.ErrorIs(t, err, store.ErrRequestNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestStoreUpdate(t *testing.T) {
	t.Parallel()

	pid := int64(11)
	r := &domain.Request{ID: 7, ProviderID: &pid, Status: domain.StatusAssigned, UpdatedAt: time.Now().UTC()}

	t.Run("success", func(t *testing.T) {
		db, mock := newMock(t)
		s := NewPostgresRequestStore(db, nil)
		mock.ExpectExec(regexp.QuoteMeta("UPDATE requests")).
			WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "assigned", r.UpdatedAt, int64(7)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, s.Update(context.Background(), r))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("second active job maps to busy", func(t *testing.T) {
		db, mock := newMock(t)
		s := NewPostgresRequestStore(db, nil)
		mock.ExpectExec(regexp.QuoteMeta("UPDATE requests")).
			WillReturnError(&pgconn.PgError{Code: uniqueViolationCode, ConstraintName: providerActiveJobIndex})

		err := s.Update(context.Background(), r)
		assert.ErrorIs(t, err, domain.ErrProviderBusy)
	})

	t.Run("missing row", func(t *testing.T) {
		db, mock := newMock(t)
		s := NewPostgresRequestStore(db, nil)
		mock.ExpectExec(regexp.QuoteMeta("UPDATE requests")).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := s.Update(context.Background(), r)
		assert.ErrorIs(t, err, store.ErrRequestNotFound)
	})
}

func TestRequestStoreCountActiveForProvider(t *testing.T) {
	t.Parallel()
	db, mock := newMock(t)
	s := NewPostgresRequestStore(db, nil)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM requests")).
		WithArgs(int64(11)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	n, err := s.CountActiveForProvider(context.Background(), 11)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRequestStoreListForProvider(t *testing.T) {
	t.Parallel()

	t.Run("expands statuses into placeholders", func(t *testing.T) {
		db, mock := newMock(t)
		s := NewPostgresRequestStore(db, nil)

		mock.ExpectQuery(regexp.QuoteMeta("status IN ($2, $3)")).
			WithArgs(int64(11), "completed", "cancelled", 20).
			WillReturnRows(sqlmock.NewRows(requestColumns))

		got, err := s.ListForProvider(context.Background(), 11,
			[]domain.Status{domain.StatusCompleted, domain.StatusCancelled}, 20)
		require.NoError(t, err)
		assert.Empty(t, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no statuses means no query", func(t *testing.T) {
		db, mock := newMock(t)
		s := NewPostgresRequestStore(db, nil)

		got, err := s.ListForProvider(context.Background(), 11, nil, 20)
		require.NoError(t, err)
		assert.Empty(t, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRequestStoreList(t *testing.T) {
	t.Parallel()
	db, mock := newMock(t)
	s := NewPostgresRequestStore(db, nil)
	now := time.Now().UTC()

	status := domain.StatusPending
	mock.ExpectQuery(regexp.QuoteMeta("WHERE status = $1")).
		WithArgs("pending", 10, 0).
		WillReturnRows(sqlmock.NewRows(requestColumns).
			AddRow(int64(2), int64(3), nil, "b", "Plumber", nil, "", "", "", nil, nil, "pending", now, now).
			AddRow(int64(1), int64(3), nil, "a", "Plumber", nil, "", "", "", nil, nil, "pending", now, now))

	got, err := s.List(context.Background(), store.RequestFilter{Status: &status, Limit: 10})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(2), got[0].ID)
}
