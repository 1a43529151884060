package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/quickserve/dispatch-api/internal/config"
	"github.com/quickserve/dispatch-api/internal/domain"
	"github.com/quickserve/dispatch-api/internal/events"
	"github.com/quickserve/dispatch-api/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSubmission() service.KYCSubmission {
	return service.KYCSubmission{
		IDNumber:    "ABCD1234",
		AddressLine: "4 Station Road",
		IDProof:     &service.Document{Name: "id.png", ContentType: "image/png", Data: []byte("png")},
	}
}

func TestSetOnline(t *testing.T) {
	t.Parallel()

	t.Run("approved provider goes online and offline", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		id, p := f.provider("Ravi", domain.Provider{ServiceType: "Plumber", KYCStatus: domain.KYCApproved})

		got, err := f.presence.SetOnline(context.Background(), id, true, nil)
		require.NoError(t, err)
		assert.True(t, got.IsOnline)
		assert.True(t, f.loadProvider(t, p.ID).IsOnline)

		got, err = f.presence.SetOnline(context.Background(), id, false, nil)
		require.NoError(t, err)
		assert.False(t, got.IsOnline)
		assert.Equal(t,
			[]string{events.TypeProviderPresenceChanged, events.TypeProviderPresenceChanged},
			f.recorder.Types())
	})

	for _, status := range []domain.KYCStatus{domain.KYCNotSubmitted, domain.KYCPending, domain.KYCRejected} {
		t.Run("refused while "+string(status), func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			id, p := f.provider("Ravi", domain.Provider{ServiceType: "Plumber", KYCStatus: status})

			_, err := f.presence.SetOnline(context.Background(), id, true, nil)
			assert.ErrorIs(t, err, domain.ErrKYCNotApproved)
			assert.False(t, f.loadProvider(t, p.ID).IsOnline)
			assert.Empty(t, f.recorder.Types())
		})
	}

	t.Run("unapproved provider may go offline", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		id, _ := f.provider("Ravi", domain.Provider{ServiceType: "Plumber", KYCStatus: domain.KYCPending})
		_, err := f.presence.SetOnline(context.Background(), id, false, nil)
		require.NoError(t, err)
	})

	t.Run("stores a normalised schedule", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		id, p := f.provider("Ravi", domain.Provider{ServiceType: "Plumber", KYCStatus: domain.KYCApproved})

		_, err := f.presence.SetOnline(context.Background(), id, true, &service.Schedule{
			WorkingDays: []string{"friday", "MON", "Wed", "mon"},
			StartTime:   "8:30",
			EndTime:     "18:00",
		})
		require.NoError(t, err)

		stored := f.loadProvider(t, p.ID)
		assert.Equal(t, []string{"Mon", "Wed", "Fri"}, stored.WorkingDays)
		assert.Equal(t, "08:30", stored.StartTime)
		assert.Equal(t, "18:00", stored.EndTime)
	})

	scheduleErrors := []struct {
		name  string
		sched service.Schedule
	}{
		{"unknown day", service.Schedule{WorkingDays: []string{"Funday"}, StartTime: "09:00", EndTime: "17:00"}},
		{"bad start", service.Schedule{StartTime: "nine", EndTime: "17:00"}},
		{"end before start", service.Schedule{StartTime: "18:00", EndTime: "09:00"}},
	}
	for _, tt := range scheduleErrors {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			id, _ := f.provider("Ravi", domain.Provider{ServiceType: "Plumber", KYCStatus: domain.KYCApproved})
			sched := tt.sched
			_, err := f.presence.SetOnline(context.Background(), id, true, &sched)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}

	t.Run("customers have no presence", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		_, err := f.presence.SetOnline(context.Background(), f.customer("Asha"), true, nil)
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})
}

func TestSubmitKYC(t *testing.T) {
	t.Parallel()

	t.Run("uploads documents and takes provider offline", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		id, p := f.onlineProvider("Ravi", "Plumber", 300)

		sub := validSubmission()
		sub.ProfilePhotoURL = "https://cdn.test/photo.jpg"
		k, err := f.presence.SubmitKYC(context.Background(), id, sub)
		require.NoError(t, err)
		assert.Equal(t, domain.KYCPending, k.Status)
		assert.Equal(t, "https://files.test/id.png", k.IDProofURL)
		assert.Equal(t, "https://cdn.test/photo.jpg", k.ProfilePhotoURL)
		assert.Equal(t, 1, f.docs.UploadCount())

		stored := f.loadProvider(t, p.ID)
		assert.Equal(t, domain.KYCPending, stored.KYCStatus)
		assert.False(t, stored.IsOnline)
		f.assertPresenceInvariant(t)
		assert.Equal(t,
			[]string{events.TypeProviderKYCSubmitted, events.TypeProviderPresenceChanged},
			f.recorder.Types())
	})

	t.Run("no upload without a provider profile", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		u := f.store.AddUser("Ghost", "ghost@example.com", domain.RoleProvider)
		id := domain.Identity{UserID: u.ID, Role: domain.RoleProvider}

		_, err := f.presence.SubmitKYC(context.Background(), id, validSubmission())
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.Zero(t, f.docs.UploadCount())
	})

	t.Run("resubmission clears the rejection reason", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		admin := f.adminUser()
		id, p := f.provider("Ravi", domain.Provider{ServiceType: "Plumber"})

		_, err := f.presence.SubmitKYC(context.Background(), id, validSubmission())
		require.NoError(t, err)
		_, err = f.presence.ReviewKYC(context.Background(), admin, p.ID, domain.KYCReject, "blurry photo")
		require.NoError(t, err)

		view, err := f.presence.KYCStatus(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, domain.KYCRejected, view.Status)
		assert.Equal(t, "blurry photo", view.RejectionReason)

		first := view.Submission.ID
		k, err := f.presence.SubmitKYC(context.Background(), id, validSubmission())
		require.NoError(t, err)
		assert.Equal(t, first, k.ID, "one record per provider")
		assert.Empty(t, k.RejectionReason)
		assert.Nil(t, k.ReviewedAt)
	})

	t.Run("upload failure is an upstream error", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.docs.Err = errors.New("bucket unavailable")
		id, p := f.onlineProvider("Ravi", "Plumber", 300)

		_, err := f.presence.SubmitKYC(context.Background(), id, validSubmission())
		assert.ErrorIs(t, err, domain.ErrUpstream)

		stored := f.loadProvider(t, p.ID)
		assert.Equal(t, domain.KYCApproved, stored.KYCStatus)
		assert.True(t, stored.IsOnline)
	})

	t.Run("missing storage is an upstream error", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, func(d *service.Deps) { d.Documents = nil })
		id, _ := f.provider("Ravi", domain.Provider{ServiceType: "Plumber"})

		_, err := f.presence.SubmitKYC(context.Background(), id, validSubmission())
		assert.ErrorIs(t, err, domain.ErrUpstream)
	})

	t.Run("required fields", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		id, _ := f.provider("Ravi", domain.Provider{ServiceType: "Plumber"})

		_, err := f.presence.SubmitKYC(context.Background(), id, service.KYCSubmission{IDProofURL: "https://x"})
		assert.ErrorIs(t, err, domain.ErrValidation)
		_, err = f.presence.SubmitKYC(context.Background(), id, service.KYCSubmission{IDNumber: "A1"})
		assert.ErrorIs(t, err, domain.ErrValidation)
		assert.Zero(t, f.docs.UploadCount())
	})
}

func TestReviewKYC(t *testing.T) {
	t.Parallel()

	t.Run("approve twice equals approve once", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		admin := f.adminUser()
		id, p := f.provider("Ravi", domain.Provider{ServiceType: "Plumber"})
		_, err := f.presence.SubmitKYC(context.Background(), id, validSubmission())
		require.NoError(t, err)

		first, err := f.presence.ReviewKYC(context.Background(), admin, p.ID, domain.KYCApprove, "")
		require.NoError(t, err)
		afterFirst := f.loadProvider(t, p.ID)
		eventsAfterFirst := len(f.recorder.Types())

		f.clock.Advance(time.Hour)
		second, err := f.presence.ReviewKYC(context.Background(), admin, p.ID, domain.KYCApprove, "")
		require.NoError(t, err)
		afterSecond := f.loadProvider(t, p.ID)

		assert.Equal(t, first.Status, second.Status)
		assert.Equal(t, first.RejectionReason, second.RejectionReason)
		require.NotNil(t, second.ReviewedAt)
		assert.True(t, first.ReviewedAt.Equal(*second.ReviewedAt), "review time must not move")
		assert.Equal(t, afterFirst, afterSecond)
		assert.Len(t, f.recorder.Types(), eventsAfterFirst, "no event for a repeated approval")
		assert.Equal(t, domain.KYCApproved, afterSecond.KYCStatus)
		assert.False(t, afterSecond.IsOnline, "approval does not bring the provider online")
	})

	t.Run("reject requires a reason", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		id, p := f.provider("Ravi", domain.Provider{ServiceType: "Plumber"})
		_, err := f.presence.SubmitKYC(context.Background(), id, validSubmission())
		require.NoError(t, err)

		_, err = f.presence.ReviewKYC(context.Background(), f.adminUser(), p.ID, domain.KYCReject, "  ")
		assert.ErrorIs(t, err, domain.ErrValidation)
		assert.Equal(t, domain.KYCPending, f.loadProvider(t, p.ID).KYCStatus)
	})

	t.Run("reject takes an online provider offline", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		admin := f.adminUser()
		id, p := f.provider("Ravi", domain.Provider{ServiceType: "Plumber"})
		_, err := f.presence.SubmitKYC(context.Background(), id, validSubmission())
		require.NoError(t, err)
		_, err = f.presence.ReviewKYC(context.Background(), admin, p.ID, domain.KYCApprove, "")
		require.NoError(t, err)
		_, err = f.presence.SetOnline(context.Background(), id, true, nil)
		require.NoError(t, err)

		k, err := f.presence.ReviewKYC(context.Background(), admin, p.ID, domain.KYCReject, "document expired")
		require.NoError(t, err)
		assert.Equal(t, "document expired", k.RejectionReason)

		stored := f.loadProvider(t, p.ID)
		assert.Equal(t, domain.KYCRejected, stored.KYCStatus)
		assert.False(t, stored.IsOnline)
		f.assertPresenceInvariant(t)
	})

	t.Run("only admins review", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		id, p := f.provider("Ravi", domain.Provider{ServiceType: "Plumber"})
		_, err := f.presence.SubmitKYC(context.Background(), id, validSubmission())
		require.NoError(t, err)

		_, err = f.presence.ReviewKYC(context.Background(), id, p.ID, domain.KYCApprove, "")
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})

	t.Run("no submission", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		_, p := f.provider("Ravi", domain.Provider{ServiceType: "Plumber"})

		_, err := f.presence.ReviewKYC(context.Background(), f.adminUser(), p.ID, domain.KYCApprove, "")
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.Equal(t, domain.KYCNotSubmitted, f.loadProvider(t, p.ID).KYCStatus)
	})

	t.Run("unknown decision", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		_, p := f.provider("Ravi", domain.Provider{ServiceType: "Plumber"})
		_, err := f.presence.ReviewKYC(context.Background(), f.adminUser(), p.ID, domain.KYCDecision("maybe"), "")
		assert.ErrorIs(t, err, domain.ErrValidation)
	})
}

func TestUpdateLocation(t *testing.T) {
	t.Parallel()

	t.Run("stores position and fills missing city", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.geocoder.Address = &service.Address{City: "Pune"}
		id, p := f.provider("Ravi", domain.Provider{ServiceType: "Plumber"})

		got, err := f.presence.UpdateLocation(context.Background(), id, domain.Location{Latitude: 18.5, Longitude: 73.8})
		require.NoError(t, err)
		assert.Equal(t, "Pune", got.City)
		require.NotNil(t, got.LastSeenAt)
		assert.Equal(t, f.clock.Now(), *got.LastSeenAt)

		stored := f.loadProvider(t, p.ID)
		require.NotNil(t, stored.Location())
		assert.Equal(t, 18.5, stored.Location().Latitude)
		assert.Equal(t, "Pune", stored.City)
	})

	t.Run("existing city is not geocoded", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		id, _ := f.provider("Ravi", domain.Provider{ServiceType: "Plumber", City: "Mumbai"})

		got, err := f.presence.UpdateLocation(context.Background(), id, domain.Location{Latitude: 18.5, Longitude: 73.8})
		require.NoError(t, err)
		assert.Equal(t, "Mumbai", got.City)
		assert.Zero(t, f.geocoder.CallCount())
	})

	t.Run("geocoder failure keeps the position", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.geocoder.Err = errors.New("quota exceeded")
		id, p := f.provider("Ravi", domain.Provider{ServiceType: "Plumber"})

		_, err := f.presence.UpdateLocation(context.Background(), id, domain.Location{Latitude: 18.5, Longitude: 73.8})
		require.NoError(t, err)
		assert.NotNil(t, f.loadProvider(t, p.ID).Location())
	})

	t.Run("offline unapproved providers may report", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		id, p := f.provider("Ravi", domain.Provider{ServiceType: "Plumber", KYCStatus: domain.KYCPending})

		_, err := f.presence.UpdateLocation(context.Background(), id, domain.Location{Latitude: 1, Longitude: 1})
		require.NoError(t, err)
		assert.False(t, f.loadProvider(t, p.ID).IsOnline)
	})

	t.Run("invalid coordinates", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		id, _ := f.provider("Ravi", domain.Provider{ServiceType: "Plumber"})
		_, err := f.presence.UpdateLocation(context.Background(), id, domain.Location{Latitude: 0, Longitude: 200})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})
}

func TestProfile(t *testing.T) {
	t.Parallel()

	f := newFixture(t, func(d *service.Deps) {
		d.Matching = config.DefaultMatchingConfig()
		d.Matching.MinBasePrice = 100
	})
	id, p := f.provider("Ravi", domain.Provider{ServiceType: "Plumber", BasePrice: 150})

	got, err := f.presence.GetProfile(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Ravi", got.Name)

	years := 6
	updated, err := f.presence.UpdateProfile(context.Background(), id, service.ProfileUpdate{
		Bio:             strPtr("  Twenty years with pipes "),
		ServiceType:     strPtr("electrician"),
		BasePrice:       floatPtr(250),
		ExperienceYears: &years,
	})
	require.NoError(t, err)
	assert.Equal(t, "Twenty years with pipes", updated.Bio)
	assert.Equal(t, "Electrician", updated.ServiceType)
	assert.Equal(t, 250.0, updated.BasePrice)
	assert.Equal(t, 6, updated.ExperienceYears)
	assert.Equal(t, "Ravi", f.loadProvider(t, p.ID).Name)

	_, err = f.presence.UpdateProfile(context.Background(), id, service.ProfileUpdate{BasePrice: floatPtr(50)})
	assert.ErrorIs(t, err, domain.ErrValidation)

	negative := -1
	_, err = f.presence.UpdateProfile(context.Background(), id, service.ProfileUpdate{ExperienceYears: &negative})
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, 6, f.loadProvider(t, p.ID).ExperienceYears)

	_, err = f.presence.UpdateProfile(context.Background(), id, service.ProfileUpdate{ServiceType: strPtr("Astrologer")})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.presence.GetProfile(context.Background(), f.customer("Asha"))
	assert.ErrorIs(t, err, domain.ErrForbidden)
}
