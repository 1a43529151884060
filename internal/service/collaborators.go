package service

import (
	"context"

	"github.com/quickserve/dispatch-api/internal/domain"
)

// Address is what a reverse geocoding lookup knows about a position.
type Address struct {
	Formatted string
	City      string
	State     string
	Country   string
}

// Geocoder resolves positions to addresses. Lookups are best effort: the
// engine logs failures and carries on without the enrichment.
type Geocoder interface {
	// ReverseGeocode returns nil and no error when nothing is known.
	ReverseGeocode(ctx context.Context, loc domain.Location) (*Address, error)
}

// Document is a file supplied with a KYC submission.
type Document struct {
	Name        string
	ContentType string
	Data        []byte
}

// DocumentStorage stores uploaded files and returns where they can be
// fetched. The engine keeps only that URL.
type DocumentStorage interface {
	Upload(ctx context.Context, doc Document) (string, error)
}

// ImageSuggestion is what image analysis infers about a job. Service is
// free text; the engine maps it onto the catalogue.
type ImageSuggestion struct {
	Service     string
	Description string
}

// ImageAnalyzer infers the service a photo of a problem calls for.
type ImageAnalyzer interface {
	// AnalyzeImage picks one of services for img. It may return a name
	// outside services.
	AnalyzeImage(ctx context.Context, img Document, services []string) (*ImageSuggestion, error)
}
