package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/joshua-takyi/staylink/internal/apperrors"
	"github.com/joshua-takyi/staylink/internal/helpers"
	"github.com/joshua-takyi/staylink/internal/models"
	"github.com/joshua-takyi/staylink/internal/store"
)

type AvailabilityRequest struct {
	PropertyID   uuid.UUID `json:"property_id" validate:"required"`
	CheckInDate  string    `json:"check_in_date" validate:"required,datetime=2006-01-02"`
	CheckOutDate string    `json:"check_out_date" validate:"required,datetime=2006-01-02"`
	CheckInTime  string    `json:"check_in_time,omitempty"`
	CheckOutTime string    `json:"check_out_time,omitempty"`
}

type AvailabilityService struct {
	properties models.PropertyRepo
	bookings   models.BookingRepo
	sessions   *store.Registry
	logger     *slog.Logger
	now        func() time.Time
}

func NewAvailabilityService(properties models.PropertyRepo, bookings models.BookingRepo, sessions *store.Registry, logger *slog.Logger) *AvailabilityService {
	return &AvailabilityService{
		properties: properties,
		bookings:   bookings,
		sessions:   sessions,
		logger:     logger,
		now:        time.Now,
	}
}

// propertyLocation resolves the property's IANA zone; an unknown zone falls back to UTC.
func (as *AvailabilityService) propertyLocation(ctx context.Context, propertyID uuid.UUID, accessToken string) (*time.Location, string, error) {
	tz, err := as.properties.GetPropertyTimezone(ctx, propertyID, accessToken)
	if err != nil {
		as.logger.Error("property timezone lookup failed", "property_id", propertyID, "error", err)
		return nil, "", apperrors.PropertyLookup(propertyID.String(), err)
	}
	if tz == "" {
		return time.UTC, "UTC", nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		as.logger.Warn("unknown property timezone, using UTC", "property_id", propertyID, "timezone", tz)
		return time.UTC, tz, nil
	}
	return loc, tz, nil
}

// CheckAvailability asks the backend whether the stay overlaps any reservation
// or block. p may be nil for anonymous browsing; the result is then not cached.
func (as *AvailabilityService) CheckAvailability(ctx context.Context, p *helpers.Principal, req AvailabilityRequest) (*models.AvailabilityResult, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	token := ""
	if p != nil {
		token = p.AccessToken
	}

	loc, tz, err := as.propertyLocation(ctx, req.PropertyID, token)
	if err != nil {
		return nil, err
	}

	checkIn, checkOut, err := models.ParseStay(req.CheckInDate, req.CheckOutDate, req.CheckInTime, req.CheckOutTime, loc)
	if err != nil {
		return nil, apperrors.Validation(err.Error(), nil)
	}
	if !checkOut.After(checkIn) {
		return nil, apperrors.Validation("check-out must be after check-in", map[string]any{
			"check_in":  checkIn.Format(time.RFC3339),
			"check_out": checkOut.Format(time.RFC3339),
		})
	}

	result, err := as.bookings.CheckPropertyAvailability(ctx, req.PropertyID, checkIn.Format(time.RFC3339), checkOut.Format(time.RFC3339), token)
	if err != nil {
		as.logger.Error("availability check failed", "property_id", req.PropertyID, "error", err)
		return nil, apperrors.AvailabilityCheck(err)
	}

	if result.PropertyTimezone == "" {
		result.PropertyTimezone = tz
	}
	result.CheckedAt = as.now()

	if p != nil {
		as.sessions.Get(p.UserID).LastAvailability.Set(*result)
	}
	return result, nil
}
