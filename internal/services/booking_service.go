package services

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/joshua-takyi/staylink/internal/apperrors"
	"github.com/joshua-takyi/staylink/internal/events"
	"github.com/joshua-takyi/staylink/internal/helpers"
	"github.com/joshua-takyi/staylink/internal/models"
	"github.com/joshua-takyi/staylink/internal/store"
)

const guestBookingsKey = "guest"

type BookingService struct {
	bookings     models.BookingRepo
	properties   models.PropertyRepo
	availability *AvailabilityService
	sessions     *store.Registry
	publisher    events.Publisher
	logger       *slog.Logger
}

func NewBookingService(
	bookings models.BookingRepo,
	properties models.PropertyRepo,
	availability *AvailabilityService,
	sessions *store.Registry,
	publisher events.Publisher,
	logger *slog.Logger,
) *BookingService {
	return &BookingService{
		bookings:     bookings,
		properties:   properties,
		availability: availability,
		sessions:     sessions,
		publisher:    publisher,
		logger:       logger,
	}
}

// Nights counts started days, so a 25 hour stay is two nights.
func Nights(checkIn, checkOut time.Time) int {
	n := int(math.Ceil(checkOut.Sub(checkIn).Hours() / 24))
	if n < 1 {
		return 1
	}
	return n
}

// StayTotal is price_per_night*nights + cleaning_fee + service_fee in the property's currency.
func StayTotal(p *models.Property, nights int) float64 {
	total := p.PricePerNight*float64(nights) + p.CleaningFee + p.ServiceFee
	return helpers.RoundCurrency(total, p.Currency)
}

func (bs *BookingService) CreateBooking(ctx context.Context, p *helpers.Principal, form models.BookingForm) (*models.Booking, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, err
	}
	if err := validate(form); err != nil {
		return nil, err
	}

	// never trust an availability result from an earlier step
	result, err := bs.availability.CheckAvailability(ctx, p, AvailabilityRequest{
		PropertyID:   form.PropertyID,
		CheckInDate:  form.CheckInDate,
		CheckOutDate: form.CheckOutDate,
		CheckInTime:  form.CheckInTime,
		CheckOutTime: form.CheckOutTime,
	})
	if err != nil {
		return nil, err
	}
	if !result.IsAvailable {
		return nil, apperrors.AvailabilityConflict(result.ConflictReason).WithDetails(map[string]any{
			"conflicts":               result.Conflicts,
			"total_conflicting_dates": result.TotalConflictingDates,
		})
	}

	property, err := bs.properties.GetPropertyPricing(ctx, form.PropertyID, p.AccessToken)
	if err != nil {
		bs.logger.Error("failed to load property pricing", "property_id", form.PropertyID, "error", err)
		return nil, apperrors.PropertyLookup(form.PropertyID.String(), err)
	}
	if property.MaxGuests > 0 && form.GuestCount > property.MaxGuests {
		return nil, apperrors.Validation("too many guests for this property", map[string]any{
			"max_guests": property.MaxGuests,
		})
	}

	checkIn, checkOut, err := models.ParseStay(form.CheckInDate, form.CheckOutDate, form.CheckInTime, form.CheckOutTime, time.UTC)
	if err != nil {
		return nil, apperrors.Validation(err.Error(), nil)
	}

	booking := &models.Booking{
		PropertyID:      form.PropertyID,
		GuestID:         p.UserID,
		HostID:          property.HostID,
		CheckInDate:     form.CheckInDate,
		CheckOutDate:    form.CheckOutDate,
		CheckInTime:     form.CheckInTime,
		CheckOutTime:    form.CheckOutTime,
		GuestCount:      form.GuestCount,
		TotalAmount:     StayTotal(property, Nights(checkIn, checkOut)),
		Currency:        property.Currency,
		Status:          models.BookingPending,
		SpecialRequests: form.SpecialRequests,
	}
	if err := booking.Validate(); err != nil {
		return nil, apperrors.Validation(err.Error(), nil)
	}

	created, err := bs.bookings.InsertBooking(ctx, booking, p.AccessToken)
	if err != nil {
		if errors.Is(err, models.ErrBookingUnavailable) {
			// another booking took the dates between the check and the insert
			return nil, apperrors.AvailabilityConflict("")
		}
		bs.logger.Error("failed to insert booking", "property_id", form.PropertyID, "user_id", p.UserID, "error", err)
		return nil, apperrors.RemoteOperation("create booking", err)
	}

	bs.sessions.Get(p.UserID).Bookings.Append(*created)
	publish(bs.publisher, bs.logger, events.New(events.BookingCreated, created.ID.String(), p.UserID, created))

	return created, nil
}

// ListBookings serves the guest's bookings from the session cache while it is fresh.
func (bs *BookingService) ListBookings(ctx context.Context, p *helpers.Principal, offset, limit int) ([]models.Booking, int, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, 0, err
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}
	page := offset/limit + 1

	cache := bs.sessions.Get(p.UserID).Bookings
	if !cache.ShouldFetch(guestBookingsKey, page) {
		return cache.Items(), cache.Total(), nil
	}

	cache.SetLoading(true)
	rows, total, err := bs.bookings.ListBookingsForGuest(ctx, p.UserID, offset, limit, p.AccessToken)
	if err != nil {
		cache.SetError(err)
		bs.logger.Error("failed to list bookings", "user_id", p.UserID, "error", err)
		return nil, 0, apperrors.RemoteOperation("list bookings", err)
	}
	cache.Set(rows, total)
	cache.MarkFetched(guestBookingsKey, page)
	return cache.Items(), total, nil
}

// RefreshBookings drops the cached list and reloads the first page.
func (bs *BookingService) RefreshBookings(ctx context.Context, p *helpers.Principal) ([]models.Booking, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, err
	}
	bs.sessions.Get(p.UserID).Bookings.Invalidate()
	rows, _, err := bs.ListBookings(ctx, p, 0, DefaultPageSize)
	return rows, err
}

// GetBooking loads one booking the caller is a party to.
func (bs *BookingService) GetBooking(ctx context.Context, p *helpers.Principal, id uuid.UUID) (*models.Booking, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, err
	}
	booking, err := bs.bookings.GetBooking(ctx, id, p.AccessToken)
	if err != nil {
		return nil, apperrors.RemoteOperation("get booking", err)
	}
	if booking == nil {
		return nil, apperrors.NotFound("booking")
	}
	if booking.GuestID != p.UserID && booking.HostID != p.UserID && !p.IsAdmin() {
		return nil, apperrors.Forbidden("you do not have access to this booking")
	}
	cache := bs.sessions.Get(p.UserID).Bookings
	if _, cached := cache.Find(booking.GetID()); cached {
		cache.Upsert(*booking)
	}
	return booking, nil
}
