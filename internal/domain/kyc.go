package domain

import (
	"strings"
	"time"
)

// KYCDecision is an admin's review outcome.
type KYCDecision string

// Review outcomes.
const (
	KYCApprove KYCDecision = "approve"
	KYCReject  KYCDecision = "reject"
)

// ParseKYCDecision converts a wire value into a KYCDecision.
func ParseKYCDecision(s string) (KYCDecision, error) {
	switch d := KYCDecision(strings.ToLower(strings.TrimSpace(s))); d {
	case KYCApprove, KYCReject:
		return d, nil
	default:
		return "", NewValidationError("decision", "must be approve or reject", nil)
	}
}

// ProviderKYC is the single verification record of a provider. Each
// submission replaces the previous one.
type ProviderKYC struct {
	ID              int64      `json:"id"`
	ProviderID      int64      `json:"provider_id"`
	IDNumber        string     `json:"id_number"`
	AddressLine     string     `json:"address_line,omitempty"`
	IDProofURL      string     `json:"id_proof_url"`
	AddressProofURL string     `json:"address_proof_url,omitempty"`
	ProfilePhotoURL string     `json:"profile_photo_url,omitempty"`
	Status          KYCStatus  `json:"status"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
	SubmittedAt     time.Time  `json:"submitted_at"`
	ReviewedAt      *time.Time `json:"reviewed_at"`
}

// Validate checks the required fields of a submission.
func (k *ProviderKYC) Validate() error {
	if k.ProviderID <= 0 {
		return NewValidationError("provider_id", "must be positive", nil)
	}
	if strings.TrimSpace(k.IDNumber) == "" {
		return NewValidationError("id_number", "is required", nil)
	}
	if strings.TrimSpace(k.IDProofURL) == "" {
		return NewValidationError("id_proof", "is required", nil)
	}
	return nil
}

// Resubmit resets the record to pending review.
func (k *ProviderKYC) Resubmit(now time.Time) {
	k.Status = KYCPending
	k.RejectionReason = ""
	k.SubmittedAt = now.UTC()
	k.ReviewedAt = nil
}

// Review applies decision and reports whether the record changed. Rejecting
// requires a reason; approving clears any earlier one. Repeating the decision
// already on record (with the same reason, for a rejection) changes nothing,
// including the review timestamp.
func (k *ProviderKYC) Review(decision KYCDecision, reason string, now time.Time) (bool, error) {
	reason = strings.TrimSpace(reason)
	switch decision {
	case KYCApprove:
		if k.Status == KYCApproved && k.RejectionReason == "" {
			return false, nil
		}
		k.Status = KYCApproved
		k.RejectionReason = ""
	case KYCReject:
		if reason == "" {
			return false, NewValidationError("reason", "is required when rejecting", nil)
		}
		if k.Status == KYCRejected && k.RejectionReason == reason {
			return false, nil
		}
		k.Status = KYCRejected
		k.RejectionReason = reason
	default:
		return false, NewValidationError("decision", "must be approve or reject", nil)
	}
	reviewed := now.UTC()
	k.ReviewedAt = &reviewed
	return true, nil
}
