package domain

import (
	"errors"
	"fmt"
)

// Error kinds reported by the dispatch engine. Callers classify errors with
// errors.Is against these sentinels; the concrete error usually carries more
// detail (see ValidationError and TransitionError).
var (
	// ErrNotFound is returned when a referenced user, provider, request or
	// KYC record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrForbidden is returned when the actor's role or ownership does not
	// authorize the operation.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidTransition is returned when a requested status change is not
	// part of the request lifecycle.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrKYCNotApproved is returned when a provider tries to go online, or is
	// picked for work, without approved KYC.
	ErrKYCNotApproved = errors.New("kyc not approved")

	// ErrProviderBusy is returned when an assignment loses against the
	// one-active-job-per-provider constraint.
	ErrProviderBusy = errors.New("provider already has an active job")

	// ErrProviderUnavailable is returned when the target provider is approved
	// but offline at the moment work would be assigned.
	ErrProviderUnavailable = errors.New("provider is not available for work")

	// ErrValidation is returned for malformed input.
	ErrValidation = errors.New("validation failed")

	// ErrUpstream is returned when an external collaborator call that an
	// operation cannot do without (for example a document upload) fails.
	ErrUpstream = errors.New("upstream collaborator failed")
)

// ValidationError describes a single invalid input field.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", ErrValidation, e.Message)
	}
	return fmt.Sprintf("%s: %s %s", ErrValidation, e.Field, e.Message)
}

// Unwrap exposes both ErrValidation and the optional underlying cause.
func (e *ValidationError) Unwrap() []error {
	if e.Err == nil || errors.Is(e.Err, ErrValidation) {
		return []error{ErrValidation}
	}
	return []error{ErrValidation, e.Err}
}

// NewValidationError creates a ValidationError for field. err may be nil.
func NewValidationError(field, message string, err error) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Err:     err,
	}
}

// TransitionError records a rejected lifecycle transition.
type TransitionError struct {
	From  Status
	To    Status
	Actor Role
}

// Error implements the error interface.
func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s cannot move request from %q to %q",
		ErrInvalidTransition, e.Actor, e.From, e.To)
}

// Unwrap returns ErrInvalidTransition.
func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}
