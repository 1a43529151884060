package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/quickserve/dispatch-api/internal/domain"
)

// Drafting defaults for image suggestions.
const (
	FallbackServiceType = "Appliance Repair"
	SuggestedTitle      = "Service request"
)

// Suggestion is a request draft inferred from a photo.
type Suggestion struct {
	ServiceType string `json:"suggested_service"`
	Title       string `json:"suggested_title"`
	Description string `json:"suggested_description"`
}

func (s *requestService) SuggestFromImage(ctx context.Context, id domain.Identity, img Document) (*Suggestion, error) {
	const op = "suggest from image"

	if err := authorize(id, roleOnly(domain.RoleCustomer), nil); err != nil {
		return nil, NewServiceError(op, "not allowed", err)
	}
	if len(img.Data) == 0 {
		return nil, NewServiceError(op, "invalid image", domain.NewValidationError("image", "is required", nil))
	}
	if !strings.HasPrefix(img.ContentType, "image/") {
		return nil, NewServiceError(op, "invalid image", domain.NewValidationError("image", "must be an image", nil))
	}
	if s.analyzer == nil {
		return nil, NewServiceError(op, "image analysis unavailable",
			fmt.Errorf("%w: no image analyzer configured", domain.ErrUpstream))
	}

	got, err := s.analyzer.AnalyzeImage(ctx, img, s.catalogue.Types())
	if err != nil {
		s.log(ctx).Error("image analysis failed", slog.String("error", err.Error()))
		if !errors.Is(err, domain.ErrUpstream) {
			err = fmt.Errorf("%w: %w", domain.ErrUpstream, err)
		}
		return nil, NewServiceError(op, "image analysis failed", err)
	}

	out := &Suggestion{ServiceType: s.suggestedService(ctx, got), Title: SuggestedTitle}
	if got != nil {
		out.Description = strings.TrimSpace(got.Description)
	}
	return out, nil
}

// suggestedService maps the analyzer's answer onto the catalogue, falling
// back to FallbackServiceType. It is empty only when the catalogue holds
// neither.
func (s *requestService) suggestedService(ctx context.Context, got *ImageSuggestion) string {
	if got != nil && strings.TrimSpace(got.Service) != "" {
		if canon, err := s.catalogue.Canonical(got.Service); err == nil {
			return canon
		}
		s.log(ctx).Info("suggested service not in catalogue", slog.String("service", got.Service))
	}
	if canon, err := s.catalogue.Canonical(FallbackServiceType); err == nil {
		return canon
	}
	return ""
}
