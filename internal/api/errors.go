package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/quickserve/dispatch-api/internal/api/shared"
	"github.com/quickserve/dispatch-api/internal/domain"
	"github.com/quickserve/dispatch-api/internal/service/auth"
	"github.com/quickserve/dispatch-api/internal/store"
)

// MapErrorToStatusCode maps engine and store errors to HTTP status codes so
// error types never leak to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, auth.ErrInvalidClaims):
		return http.StatusUnauthorized

	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden

	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrKYCNotApproved),
		errors.Is(err, domain.ErrProviderBusy),
		errors.Is(err, domain.ErrProviderUnavailable),
		errors.Is(err, store.ErrDuplicate):
		return http.StatusConflict

	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, store.ErrInvalidEntity):
		return http.StatusBadRequest

	case errors.Is(err, domain.ErrUpstream):
		return http.StatusBadGateway

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a client-facing message for err. Only
// validation and transition errors contribute their own detail, since both
// are built from request input.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	var validationErr *domain.ValidationError
	var transitionErr *domain.TransitionError

	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		return "Token expired"
	case MapErrorToStatusCode(err) == http.StatusUnauthorized:
		return "Invalid token"

	case errors.Is(err, domain.ErrForbidden):
		return "You are not allowed to perform this action"

	case errors.Is(err, store.ErrRequestNotFound):
		return "Request not found"
	case errors.Is(err, store.ErrProviderNotFound):
		return "Provider not found"
	case errors.Is(err, store.ErrKYCNotFound):
		return "KYC submission not found"
	case errors.Is(err, store.ErrUserNotFound), errors.Is(err, store.ErrCustomerNotFound):
		return "User not found"
	case errors.Is(err, domain.ErrNotFound):
		return "Not found"

	case errors.As(err, &transitionErr):
		return fmt.Sprintf("Cannot move request from %s to %s", transitionErr.From, transitionErr.To)
	case errors.Is(err, domain.ErrInvalidTransition):
		return "Invalid status transition"
	case errors.Is(err, domain.ErrKYCNotApproved):
		return "Provider KYC is not approved"
	case errors.Is(err, domain.ErrProviderBusy):
		return "Provider already has an active job"
	case errors.Is(err, domain.ErrProviderUnavailable):
		return "Provider is not available"
	case errors.Is(err, store.ErrDuplicate):
		return "Already exists"

	case errors.As(err, &validationErr):
		if validationErr.Field == "" {
			return "Invalid request: " + validationErr.Message
		}
		return fmt.Sprintf("Invalid %s: %s", validationErr.Field, validationErr.Message)
	case errors.Is(err, domain.ErrValidation), errors.Is(err, store.ErrInvalidEntity):
		return "Validation error"

	case errors.Is(err, domain.ErrUpstream):
		return "An upstream service is unavailable"

	default:
		return "An unexpected error occurred"
	}
}

// HandleAPIError writes the mapped status and safe message for err. A
// non-empty fallback replaces the generic message of unclassified errors.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status := MapErrorToStatusCode(err)
	message := GetSafeErrorMessage(err)
	if status == http.StatusInternalServerError && fallback != "" {
		message = fallback
	}
	shared.RespondWithErrorAndLog(w, r, status, message, err)
}

// SanitizeValidationError turns struct validation failures into a message
// naming the first offending field.
func SanitizeValidationError(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return "Validation error"
	}
	fe := fieldErrs[0]
	return fmt.Sprintf("Invalid %s: %s", strings.ToLower(fe.Field()), getValidationTagMessage(fe.Tag()))
}

func getValidationTagMessage(tag string) string {
	switch tag {
	case "required", "required_with":
		return "required field"
	case "min", "gt", "gte":
		return "too small"
	case "max", "lt", "lte":
		return "too large"
	case "oneof":
		return "invalid value"
	case "url":
		return "must be a URL"
	default:
		return "validation failed"
	}
}
