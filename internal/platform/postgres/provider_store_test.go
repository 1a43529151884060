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

var providerColumns = []string{
	"id", "user_id", "full_name", "service_type", "base_price", "is_online",
	"kyc_status", "bio", "experience_years", "city", "address_line",
	"working_days", "start_time", "end_time", "last_latitude", "last_longitude",
	"last_seen_at", "rating", "jobs_completed",
}

func providerRow(rows *sqlmock.Rows, id int64, online bool, lat any) *sqlmock.Rows {
	return rows.AddRow(
		id, id+100, "Ravi", "Plumber", 400.0, online,
		"approved", "", 5, "Mumbai", "",
		"mon,tue", "09:00", "20:00", lat, lat,
		nil, nil, 12,
	)
}

func TestProviderStoreGetByUserID(t *testing.T) {
	t.Parallel()
	db, mock := newMock(t)
	s := NewPostgresProviderStore(db, nil)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE p.user_id = $1")).
		WithArgs(int64(104)).
		WillReturnRows(providerRow(sqlmock.NewRows(providerColumns), 4, true, 19.1))

	p, err := s.GetByUserID(context.Background(), 104)
	require.NoError(t, err)
	assert.Equal(t, int64(4), p.ID)
	assert.Equal(t, "Ravi", p.Name)
	assert.Equal(t, domain.KYCApproved, p.KYCStatus)
	assert.Equal(t, []string{"mon", "tue"}, p.WorkingDays)
	require.NotNil(t, p.Location())
	assert.Nil(t, p.Rating)
	assert.Nil(t, p.LastSeenAt)
	assert.Equal(t, 12, p.JobsCompleted)
}

func TestProviderStoreLockByIDLocksProviderRow(t *testing.T) {
	t.Parallel()
	db, mock := newMock(t)
	s := NewPostgresProviderStore(db, nil)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE p.id = $1 FOR UPDATE OF p")).
		WithArgs(int64(4)).
		WillReturnError(sql.ErrNoRows)

	_, err := s.LockByID(context.Background(), 4)
	assert.ErrorIs(t, err, store.ErrProviderNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProviderStoreUpdate(t *testing.T) {
	t.Parallel()

	seen := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	lat, lng := 19.07, 72.87
	p := &domain.Provider{
		ID: 4, UserID: 104, ServiceType: "Plumber", BasePrice: 400, IsOnline: true,
		KYCStatus: domain.KYCApproved, WorkingDays: []string{"mon", "sat"},
		StartTime: "09:00", EndTime: "18:00",
		LastLatitude: &lat, LastLongitude: &lng, LastSeenAt: &seen,
	}

	t.Run("writes every mutable column", func(t *testing.T) {
		db, mock := newMock(t)
		s := NewPostgresProviderStore(db, nil)
		mock.ExpectExec(regexp.QuoteMeta("UPDATE providers")).
			WithArgs("Plumber", 400.0, true, "approved", "", 0, "", "",
				"mon,sat", "09:00", "18:00", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), int64(4)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, s.Update(context.Background(), p))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("check constraint", func(t *testing.T) {
		db, mock := newMock(t)
		s := NewPostgresProviderStore(db, nil)
		mock.ExpectExec(regexp.QuoteMeta("UPDATE providers")).
			WillReturnError(&pgconn.PgError{Code: checkViolationCode, ConstraintName: "providers_online_requires_kyc"})

		assert.ErrorIs(t, s.Update(context.Background(), p), store.ErrInvalidEntity)
	})

	t.Run("missing row", func(t *testing.T) {
		db, mock := newMock(t)
		s := NewPostgresProviderStore(db, nil)
		mock.ExpectExec(regexp.QuoteMeta("UPDATE providers")).
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, s.Update(context.Background(), p), store.ErrProviderNotFound)
	})
}

func TestProviderStoreListEligible(t *testing.T) {
	t.Parallel()
	db, mock := newMock(t)
	s := NewPostgresProviderStore(db, nil)

	mock.ExpectQuery(`p.is_online AND p.kyc_status = 'approved'(.|\n)*NOT EXISTS`).
		WithArgs("Plumber", 20).
		WillReturnRows(providerRow(providerRow(sqlmock.NewRows(providerColumns), 4, true, nil), 5, true, 19.2))

	got, err := s.ListEligible(context.Background(), "Plumber", nil, 20)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Nil(t, got[0].Location())
	assert.NotNil(t, got[1].Location())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProviderStoreListEligibleNearest(t *testing.T) {
	t.Parallel()
	db, mock := newMock(t)
	s := NewPostgresProviderStore(db, nil)

	mock.ExpectQuery(`ORDER BY \(6371 \* 2 \* asin(.|\n)*NULLS LAST, p.id\s+LIMIT \$4`).
		WithArgs("Plumber", 12.97, 77.59, 5).
		WillReturnRows(providerRow(sqlmock.NewRows(providerColumns), 5, true, 19.2))

	got, err := s.ListEligible(context.Background(), "Plumber", &domain.Location{Latitude: 12.97, Longitude: 77.59}, 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProviderStoreListFilters(t *testing.T) {
	t.Parallel()
	db, mock := newMock(t)
	s := NewPostgresProviderStore(db, nil)

	kyc := domain.KYCPending
	online := false
	mock.ExpectQuery(regexp.QuoteMeta("WHERE p.kyc_status = $1 AND p.is_online = $2")).
		WithArgs("pending", false, 50, 0).
		WillReturnRows(sqlmock.NewRows(providerColumns))

	got, err := s.List(context.Background(), store.ProviderFilter{KYCStatus: &kyc, Online: &online, Limit: 50})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}
