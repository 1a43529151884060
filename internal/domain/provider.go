package domain

import (
	"strings"
	"time"
)

// KYCStatus is a provider's verification state.
type KYCStatus string

// KYC states. A provider starts at not_submitted; each submission moves it to
// pending and a review moves it to approved or rejected.
const (
	KYCNotSubmitted KYCStatus = "not_submitted"
	KYCPending      KYCStatus = "pending"
	KYCApproved     KYCStatus = "approved"
	KYCRejected     KYCStatus = "rejected"
)

// ParseKYCStatus converts a wire value into a KYCStatus.
func ParseKYCStatus(s string) (KYCStatus, error) {
	switch k := KYCStatus(strings.ToLower(strings.TrimSpace(s))); k {
	case KYCNotSubmitted, KYCPending, KYCApproved, KYCRejected:
		return k, nil
	default:
		return "", NewValidationError("kyc_status", "unknown kyc status", nil)
	}
}

// Default working hours applied when a provider has not set any.
const (
	DefaultStartTime = "09:00"
	DefaultEndTime   = "20:00"
)

// Provider is the provider profile of a user together with its presence.
type Provider struct {
	ID              int64      `json:"id"`
	UserID          int64      `json:"user_id"`
	Name            string     `json:"name"`
	ServiceType     string     `json:"service_type"`
	BasePrice       float64    `json:"base_price"`
	IsOnline        bool       `json:"is_online"`
	KYCStatus       KYCStatus  `json:"kyc_status"`
	Bio             string     `json:"bio,omitempty"`
	ExperienceYears int        `json:"experience_years"`
	City            string     `json:"city,omitempty"`
	AddressLine     string     `json:"address_line,omitempty"`
	WorkingDays     []string   `json:"working_days"`
	StartTime       string     `json:"start_time"`
	EndTime         string     `json:"end_time"`
	LastLatitude    *float64   `json:"last_latitude"`
	LastLongitude   *float64   `json:"last_longitude"`
	LastSeenAt      *time.Time `json:"last_seen_at"`
	Rating          *float64   `json:"rating"`
	JobsCompleted   int        `json:"jobs_completed"`
}

// Validate checks the presence invariant and basic field ranges.
func (p *Provider) Validate() error {
	if p.UserID <= 0 {
		return NewValidationError("user_id", "must be positive", nil)
	}
	if p.BasePrice < 0 {
		return NewValidationError("base_price", "cannot be negative", nil)
	}
	if p.ExperienceYears < 0 {
		return NewValidationError("experience_years", "cannot be negative", nil)
	}
	if _, err := ParseKYCStatus(string(p.KYCStatus)); err != nil {
		return err
	}
	if p.IsOnline && p.KYCStatus != KYCApproved {
		return ErrKYCNotApproved
	}
	return nil
}

// SetOnline flips the online flag. Going online requires approved KYC.
func (p *Provider) SetOnline(desired bool) error {
	if desired && p.KYCStatus != KYCApproved {
		return ErrKYCNotApproved
	}
	p.IsOnline = desired
	return nil
}

// MarkKYCSubmitted records a new KYC submission: the provider goes back to
// pending review and is taken offline until approved again.
func (p *Provider) MarkKYCSubmitted() {
	p.KYCStatus = KYCPending
	p.IsOnline = false
}

// ApplyKYCDecision records a review outcome. A rejection also takes the
// provider offline so the presence invariant keeps holding; approval leaves
// the online flag alone.
func (p *Provider) ApplyKYCDecision(d KYCDecision) {
	switch d {
	case KYCApprove:
		p.KYCStatus = KYCApproved
	case KYCReject:
		p.KYCStatus = KYCRejected
		p.IsOnline = false
	}
}

// MoveTo records the provider's last known position.
func (p *Provider) MoveTo(loc Location, now time.Time) error {
	if err := loc.Validate(); err != nil {
		return err
	}
	lat, lng := loc.Latitude, loc.Longitude
	seen := now.UTC()
	p.LastLatitude, p.LastLongitude, p.LastSeenAt = &lat, &lng, &seen
	return nil
}

// Location returns the last known position, if any.
func (p *Provider) Location() *Location {
	return LocationFrom(p.LastLatitude, p.LastLongitude)
}

// IsEligible reports whether p may receive new work given the number of
// active-set requests currently assigned to it.
func IsEligible(p *Provider, activeJobs int) bool {
	return p.KYCStatus == KYCApproved && p.IsOnline && activeJobs == 0
}

// CheckAssignable explains why p cannot take a new job, or returns nil.
func CheckAssignable(p *Provider, activeJobs int) error {
	switch {
	case p.KYCStatus != KYCApproved:
		return ErrKYCNotApproved
	case !p.IsOnline:
		return ErrProviderUnavailable
	case activeJobs > 0:
		return ErrProviderBusy
	}
	return nil
}
