package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/quickserve/dispatch-api/internal/domain"
	"github.com/quickserve/dispatch-api/internal/events"
	"github.com/quickserve/dispatch-api/internal/store"
)

// Schedule is a provider's weekly availability.
type Schedule struct {
	WorkingDays []string
	StartTime   string
	EndTime     string
}

var weekdays = []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// parseWeekday accepts short or full English day names in any case and
// returns the short form.
func parseWeekday(s string) (string, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		full := strings.ToLower(d.String())
		if s == full || s == full[:3] {
			return d.String()[:3], true
		}
	}
	return "", false
}

// normalize validates the schedule and returns it with canonical day names
// in week order.
func (s Schedule) normalize() (Schedule, error) {
	seen := make(map[string]bool, len(s.WorkingDays))
	for _, d := range s.WorkingDays {
		day, ok := parseWeekday(d)
		if !ok {
			return Schedule{}, domain.NewValidationError("working_days", "unknown day "+strings.TrimSpace(d), nil)
		}
		seen[day] = true
	}
	out := Schedule{WorkingDays: []string{}}
	for _, w := range weekdays {
		if seen[w] {
			out.WorkingDays = append(out.WorkingDays, w)
		}
	}

	start, err := time.Parse("15:04", strings.TrimSpace(s.StartTime))
	if err != nil {
		return Schedule{}, domain.NewValidationError("start_time", "must be HH:MM", err)
	}
	end, err := time.Parse("15:04", strings.TrimSpace(s.EndTime))
	if err != nil {
		return Schedule{}, domain.NewValidationError("end_time", "must be HH:MM", err)
	}
	if !start.Before(end) {
		return Schedule{}, domain.NewValidationError("end_time", "must be after start_time", nil)
	}
	out.StartTime, out.EndTime = start.Format("15:04"), end.Format("15:04")
	return out, nil
}

// KYCSubmission is a provider's verification upload. Each document may be
// given as file contents, which are uploaded, or as an already stored URL.
type KYCSubmission struct {
	IDNumber    string
	AddressLine string

	IDProof      *Document
	AddressProof *Document
	ProfilePhoto *Document

	IDProofURL      string
	AddressProofURL string
	ProfilePhotoURL string
}

// KYCView is a provider's verification state together with its latest
// submission, if any.
type KYCView struct {
	Status          domain.KYCStatus    `json:"status"`
	RejectionReason string              `json:"rejection_reason,omitempty"`
	Submission      *domain.ProviderKYC `json:"submission"`
}

// ProfileUpdate lists the profile fields a provider may change. Nil fields
// are left alone.
type ProfileUpdate struct {
	Bio             *string
	ServiceType     *string
	BasePrice       *float64
	ExperienceYears *int
	City            *string
	AddressLine     *string
}

// PresenceService manages provider presence, verification and profile.
type PresenceService interface {
	// SetOnline changes the caller's online flag and, when sched is given,
	// its availability schedule. Going online requires approved KYC.
	SetOnline(ctx context.Context, id domain.Identity, desired bool, sched *Schedule) (*domain.Provider, error)

	// SubmitKYC stores a new submission, moves the provider to pending
	// review and takes it offline.
	SubmitKYC(ctx context.Context, id domain.Identity, sub KYCSubmission) (*domain.ProviderKYC, error)

	// ReviewKYC applies an admin decision. Rejecting requires a reason and
	// takes the provider offline.
	ReviewKYC(ctx context.Context, id domain.Identity, providerID int64, decision domain.KYCDecision, reason string) (*domain.ProviderKYC, error)

	// UpdateLocation records the caller's position.
	UpdateLocation(ctx context.Context, id domain.Identity, loc domain.Location) (*domain.Provider, error)

	// KYCStatus returns the caller's verification state.
	KYCStatus(ctx context.Context, id domain.Identity) (*KYCView, error)

	// GetProfile returns the caller's provider profile.
	GetProfile(ctx context.Context, id domain.Identity) (*domain.Provider, error)

	// UpdateProfile changes the caller's profile fields.
	UpdateProfile(ctx context.Context, id domain.Identity, upd ProfileUpdate) (*domain.Provider, error)
}

type presenceService struct {
	*engine
}

// NewPresenceService creates a PresenceService.
func NewPresenceService(d Deps) (PresenceService, error) {
	e, err := newEngine(d, "presence_service")
	if err != nil {
		return nil, err
	}
	return &presenceService{engine: e}, nil
}

// updateProvider runs fn on the caller's locked provider row and saves it.
func (s *presenceService) updateProvider(ctx context.Context, id domain.Identity, fn func(p *domain.Provider) error) (*domain.Provider, error) {
	var out *domain.Provider
	err := s.store.RunInTx(ctx, func(ctx context.Context, repos store.Repositories) error {
		p, err := providerFor(ctx, repos, id, true)
		if err != nil {
			return err
		}
		if err := fn(p); err != nil {
			return err
		}
		if err := repos.Providers.Update(ctx, p); err != nil {
			return err
		}
		out = p
		return nil
	})
	return out, err
}

func (s *presenceService) SetOnline(ctx context.Context, id domain.Identity, desired bool, sched *Schedule) (*domain.Provider, error) {
	const op = "set availability"

	var normalized *Schedule
	if sched != nil {
		n, err := sched.normalize()
		if err != nil {
			return nil, NewServiceError(op, "invalid schedule", err)
		}
		normalized = &n
	}

	var was bool
	p, err := s.updateProvider(ctx, id, func(p *domain.Provider) error {
		was = p.IsOnline
		if err := p.SetOnline(desired); err != nil {
			return err
		}
		if normalized != nil {
			p.WorkingDays = normalized.WorkingDays
			p.StartTime, p.EndTime = normalized.StartTime, normalized.EndTime
		}
		return nil
	})
	if err != nil {
		return nil, NewServiceError(op, "could not change availability", err)
	}

	if was != p.IsOnline {
		s.log(ctx).Info("provider presence changed",
			slog.Int64("provider_id", p.ID), slog.Bool("is_online", p.IsOnline))
		s.emit(ctx, events.TypeProviderPresenceChanged, events.ProviderPresenceChanged{
			ProviderID: p.ID,
			IsOnline:   p.IsOnline,
		})
	}
	return p, nil
}

// upload stores doc when contents were supplied, otherwise keeps url.
func (s *presenceService) upload(ctx context.Context, doc *Document, url string) (string, error) {
	if doc == nil {
		return strings.TrimSpace(url), nil
	}
	if s.documents == nil {
		return "", fmt.Errorf("%w: no document storage configured", domain.ErrUpstream)
	}
	stored, err := s.documents.Upload(ctx, *doc)
	if err != nil {
		s.log(ctx).Error("document upload failed",
			slog.String("document", doc.Name), slog.String("error", err.Error()))
		return "", fmt.Errorf("%w: uploading %s: %w", domain.ErrUpstream, doc.Name, err)
	}
	return stored, nil
}

func (s *presenceService) SubmitKYC(ctx context.Context, id domain.Identity, sub KYCSubmission) (*domain.ProviderKYC, error) {
	const op = "submit kyc"

	if err := authorize(id, roleOnly(domain.RoleProvider), nil); err != nil {
		return nil, NewServiceError(op, "not allowed", err)
	}
	if strings.TrimSpace(sub.IDNumber) == "" {
		return nil, NewServiceError(op, "invalid submission",
			domain.NewValidationError("id_number", "is required", nil))
	}
	if sub.IDProof == nil && strings.TrimSpace(sub.IDProofURL) == "" {
		return nil, NewServiceError(op, "invalid submission",
			domain.NewValidationError("id_proof", "is required", nil))
	}

	// Nothing is uploaded for a caller without a provider profile.
	if _, err := providerFor(ctx, s.store.Repositories(), id, false); err != nil {
		return nil, NewServiceError(op, "could not resolve provider", err)
	}

	// Uploads happen before the transaction so no row is locked while an
	// external call is in flight.
	idProof, err := s.upload(ctx, sub.IDProof, sub.IDProofURL)
	if err != nil {
		return nil, NewServiceError(op, "could not store id proof", err)
	}
	addressProof, err := s.upload(ctx, sub.AddressProof, sub.AddressProofURL)
	if err != nil {
		return nil, NewServiceError(op, "could not store address proof", err)
	}
	photo, err := s.upload(ctx, sub.ProfilePhoto, sub.ProfilePhotoURL)
	if err != nil {
		return nil, NewServiceError(op, "could not store profile photo", err)
	}

	var (
		record  *domain.ProviderKYC
		wasLive bool
	)
	err = s.store.RunInTx(ctx, func(ctx context.Context, repos store.Repositories) error {
		p, err := providerFor(ctx, repos, id, true)
		if err != nil {
			return err
		}
		k := &domain.ProviderKYC{
			ProviderID:      p.ID,
			IDNumber:        strings.TrimSpace(sub.IDNumber),
			AddressLine:     strings.TrimSpace(sub.AddressLine),
			IDProofURL:      idProof,
			AddressProofURL: addressProof,
			ProfilePhotoURL: photo,
		}
		k.Resubmit(s.now())
		if err := k.Validate(); err != nil {
			return err
		}
		if err := repos.KYC.Upsert(ctx, k); err != nil {
			return err
		}
		wasLive = p.IsOnline
		p.MarkKYCSubmitted()
		if err := repos.Providers.Update(ctx, p); err != nil {
			return err
		}
		record = k
		return nil
	})
	if err != nil {
		return nil, NewServiceError(op, "could not save submission", err)
	}

	s.log(ctx).Info("kyc submitted", slog.Int64("provider_id", record.ProviderID))
	s.emit(ctx, events.TypeProviderKYCSubmitted, events.ProviderKYC{
		ProviderID: record.ProviderID,
		Status:     record.Status,
	})
	if wasLive {
		s.emit(ctx, events.TypeProviderPresenceChanged, events.ProviderPresenceChanged{
			ProviderID: record.ProviderID,
		})
	}
	return record, nil
}

func (s *presenceService) ReviewKYC(ctx context.Context, id domain.Identity, providerID int64, decision domain.KYCDecision, reason string) (*domain.ProviderKYC, error) {
	const op = "review kyc"

	if err := authorize(id, roleOnly(domain.RoleAdmin), nil); err != nil {
		return nil, NewServiceError(op, "not allowed", err)
	}
	if _, err := domain.ParseKYCDecision(string(decision)); err != nil {
		return nil, NewServiceError(op, "invalid decision", err)
	}

	var (
		record  *domain.ProviderKYC
		wasLive bool
		changed bool
	)
	err := s.store.RunInTx(ctx, func(ctx context.Context, repos store.Repositories) error {
		p, err := repos.Providers.LockByID(ctx, providerID)
		if err != nil {
			return err
		}
		k, err := repos.KYC.GetByProviderID(ctx, providerID)
		if err != nil {
			return err
		}
		record = k
		if changed, err = k.Review(decision, reason, s.now()); err != nil {
			return err
		}
		wasLive = p.IsOnline
		wasStatus := p.KYCStatus
		p.ApplyKYCDecision(decision)
		if !changed && p.KYCStatus == wasStatus && p.IsOnline == wasLive {
			return nil
		}
		changed = true
		if err := repos.KYC.Update(ctx, k); err != nil {
			return err
		}
		return repos.Providers.Update(ctx, p)
	})
	if err != nil {
		return nil, NewServiceError(op, "could not review submission", err)
	}
	if !changed {
		return record, nil
	}

	s.log(ctx).Info("kyc reviewed",
		slog.Int64("provider_id", providerID),
		slog.String("decision", string(decision)),
		slog.Int64("admin_user_id", id.UserID))
	s.emit(ctx, events.TypeProviderKYCReviewed, events.ProviderKYC{
		ProviderID: providerID,
		Status:     record.Status,
		Reason:     record.RejectionReason,
	})
	if wasLive && decision == domain.KYCReject {
		s.emit(ctx, events.TypeProviderPresenceChanged, events.ProviderPresenceChanged{
			ProviderID: providerID,
		})
	}
	return record, nil
}

func (s *presenceService) UpdateLocation(ctx context.Context, id domain.Identity, loc domain.Location) (*domain.Provider, error) {
	const op = "update location"

	if err := loc.Validate(); err != nil {
		return nil, NewServiceError(op, "invalid location", err)
	}

	p, err := s.updateProvider(ctx, id, func(p *domain.Provider) error {
		return p.MoveTo(loc, s.now())
	})
	if err != nil {
		return nil, NewServiceError(op, "could not record location", err)
	}
	if p.City != "" {
		return p, nil
	}

	addr := s.reverseGeocode(ctx, loc)
	if addr == nil || addr.City == "" {
		return p, nil
	}
	enriched, err := s.updateProvider(ctx, id, func(p *domain.Provider) error {
		if p.City == "" {
			p.City = addr.City
		}
		return nil
	})
	if err != nil {
		// The position is already stored; the city is only a convenience.
		s.log(ctx).Warn("failed to store geocoded city",
			slog.Int64("provider_id", p.ID), slog.String("error", err.Error()))
		return p, nil
	}
	return enriched, nil
}

func (s *presenceService) KYCStatus(ctx context.Context, id domain.Identity) (*KYCView, error) {
	const op = "get kyc status"

	repos := s.store.Repositories()
	p, err := providerFor(ctx, repos, id, false)
	if err != nil {
		return nil, NewServiceError(op, "could not resolve provider", err)
	}
	view := &KYCView{Status: p.KYCStatus}
	k, err := repos.KYC.GetByProviderID(ctx, p.ID)
	switch {
	case err == nil:
		view.Submission = k
		view.RejectionReason = k.RejectionReason
	case errors.Is(err, domain.ErrNotFound):
	default:
		return nil, NewServiceError(op, "could not load submission", err)
	}
	return view, nil
}

func (s *presenceService) GetProfile(ctx context.Context, id domain.Identity) (*domain.Provider, error) {
	p, err := providerFor(ctx, s.store.Repositories(), id, false)
	if err != nil {
		return nil, NewServiceError("get profile", "could not load profile", err)
	}
	return p, nil
}

func (s *presenceService) UpdateProfile(ctx context.Context, id domain.Identity, upd ProfileUpdate) (*domain.Provider, error) {
	const op = "update profile"

	var serviceType string
	if upd.ServiceType != nil {
		canon, err := s.catalogue.Canonical(*upd.ServiceType)
		if err != nil {
			return nil, NewServiceError(op, "invalid service type", err)
		}
		serviceType = canon
	}
	if upd.BasePrice != nil && *upd.BasePrice < s.matching.MinBasePrice {
		return nil, NewServiceError(op, "invalid base price",
			domain.NewValidationError("base_price",
				fmt.Sprintf("must be at least %.2f", s.matching.MinBasePrice), nil))
	}

	p, err := s.updateProvider(ctx, id, func(p *domain.Provider) error {
		if upd.Bio != nil {
			p.Bio = strings.TrimSpace(*upd.Bio)
		}
		if upd.ServiceType != nil {
			p.ServiceType = serviceType
		}
		if upd.BasePrice != nil {
			p.BasePrice = *upd.BasePrice
		}
		if upd.ExperienceYears != nil {
			p.ExperienceYears = *upd.ExperienceYears
		}
		if upd.City != nil {
			p.City = strings.TrimSpace(*upd.City)
		}
		if upd.AddressLine != nil {
			p.AddressLine = strings.TrimSpace(*upd.AddressLine)
		}
		return p.Validate()
	})
	if err != nil {
		return nil, NewServiceError(op, "could not update profile", err)
	}
	return p, nil
}
