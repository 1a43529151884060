package api

import (
	"github.com/quickserve/dispatch-api/internal/domain"
	"github.com/quickserve/dispatch-api/internal/service"
)

// CreateRequestRequest is the payload of POST /api/requests.
type CreateRequestRequest struct {
	Title       string   `json:"title"        validate:"required,max=200"`
	ServiceType string   `json:"service_type" validate:"required,max=100"`
	Budget      *float64 `json:"budget"       validate:"omitempty,gte=0"`
	Address     string   `json:"address"      validate:"max=500"`
	Description string   `json:"description"  validate:"max=2000"`
	ImageURL    string   `json:"image_url"    validate:"omitempty,url"`
	Latitude    *float64 `json:"latitude"     validate:"omitempty,gte=-90,lte=90"`
	Longitude   *float64 `json:"longitude"    validate:"omitempty,gte=-180,lte=180"`
}

func (req CreateRequestRequest) toInput() (service.CreateRequestInput, error) {
	if (req.Latitude == nil) != (req.Longitude == nil) {
		return service.CreateRequestInput{}, domain.NewValidationError("location",
			"latitude and longitude must be given together", nil)
	}
	in := service.CreateRequestInput{
		Title:       req.Title,
		ServiceType: req.ServiceType,
		Budget:      req.Budget,
		Address:     req.Address,
		Description: req.Description,
		ImageURL:    req.ImageURL,
	}
	if req.Latitude != nil && req.Longitude != nil {
		in.Location = &domain.Location{Latitude: *req.Latitude, Longitude: *req.Longitude}
	}
	return in, nil
}

// ProviderRequest names the provider for assign and offer.
type ProviderRequest struct {
	ProviderID int64 `json:"provider_id" validate:"required,gt=0"`
}

// StatusRequest is the payload of POST /api/provider/requests/{id}/status.
type StatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// AvailabilityRequest is the payload of PUT /api/provider/me/availability.
// The schedule is replaced only when at least one of its fields is given.
type AvailabilityRequest struct {
	IsOnline    *bool    `json:"is_online"    validate:"required"`
	WorkingDays []string `json:"working_days" validate:"omitempty,max=7"`
	StartTime   string   `json:"start_time"`
	EndTime     string   `json:"end_time"`
}

func (req AvailabilityRequest) schedule() *service.Schedule {
	if req.WorkingDays == nil && req.StartTime == "" && req.EndTime == "" {
		return nil
	}
	return &service.Schedule{
		WorkingDays: req.WorkingDays,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
	}
}

// LocationRequest is the payload of POST /api/provider/location.
type LocationRequest struct {
	Latitude  *float64 `json:"latitude"  validate:"required,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude" validate:"required,gte=-180,lte=180"`
}

// KYCRequest is the JSON form of a KYC submission, with documents that are
// already stored elsewhere. Multipart submissions carry the files instead.
type KYCRequest struct {
	IDNumber        string `json:"id_number"         validate:"required,max=64"`
	AddressLine     string `json:"address_line"      validate:"max=500"`
	IDProofURL      string `json:"id_proof_url"      validate:"omitempty,url"`
	AddressProofURL string `json:"address_proof_url" validate:"omitempty,url"`
	ProfilePhotoURL string `json:"profile_photo_url" validate:"omitempty,url"`
}

// ProfileRequest is the payload of PUT /api/provider/me. Omitted fields are
// left unchanged.
type ProfileRequest struct {
	Bio             *string  `json:"bio"              validate:"omitempty,max=2000"`
	ServiceType     *string  `json:"service_type"     validate:"omitempty,min=1,max=100"`
	BasePrice       *float64 `json:"base_price"`
	ExperienceYears *int     `json:"experience_years" validate:"omitempty,gte=0,lte=80"`
	City            *string  `json:"city"             validate:"omitempty,max=100"`
	AddressLine     *string  `json:"address_line"     validate:"omitempty,max=500"`
}

func (req ProfileRequest) toUpdate() service.ProfileUpdate {
	return service.ProfileUpdate{
		Bio:             req.Bio,
		ServiceType:     req.ServiceType,
		BasePrice:       req.BasePrice,
		ExperienceYears: req.ExperienceYears,
		City:            req.City,
		AddressLine:     req.AddressLine,
	}
}

// RejectKYCRequest is the payload of POST /api/admin/kyc/{provider_id}/reject.
type RejectKYCRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}
