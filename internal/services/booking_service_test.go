package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/joshua-takyi/staylink/internal/apperrors"
	"github.com/joshua-takyi/staylink/internal/events"
	"github.com/joshua-takyi/staylink/internal/models"
	"github.com/joshua-takyi/staylink/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bookingFixture struct {
	bookings   *fakeBookingRepo
	properties *fakePropertyRepo
	sessions   *store.Registry
	publisher  *recordingPublisher
	svc        *BookingService
}

func newBookingFixture() *bookingFixture {
	f := &bookingFixture{
		bookings: newFakeBookingRepo(),
		properties: &fakePropertyRepo{
			property: &models.Property{
				HostID:        uuid.New(),
				PricePerNight: 100,
				CleaningFee:   20,
				ServiceFee:    15,
				Currency:      "USD",
				MaxGuests:     4,
			},
		},
		sessions:  store.NewRegistry(time.Minute),
		publisher: &recordingPublisher{},
	}
	availability := NewAvailabilityService(f.properties, f.bookings, f.sessions, testLogger())
	f.svc = NewBookingService(f.bookings, f.properties, availability, f.sessions, f.publisher, testLogger())
	return f
}

func threeNightForm() models.BookingForm {
	return models.BookingForm{
		PropertyID:   uuid.New(),
		CheckInDate:  "2025-03-01",
		CheckOutDate: "2025-03-04",
		GuestCount:   2,
	}
}

func TestStayTotal(t *testing.T) {
	p := &models.Property{PricePerNight: 100, CleaningFee: 20, ServiceFee: 15, Currency: "USD"}
	assert.Equal(t, 335.0, StayTotal(p, 3))

	xof := &models.Property{PricePerNight: 10000.4, Currency: "XOF"}
	assert.Equal(t, 10000.0, StayTotal(xof, 1))
}

func TestNights(t *testing.T) {
	in := time.Date(2025, 3, 1, 14, 0, 0, 0, time.UTC)
	assert.Equal(t, 3, Nights(in, in.Add(72*time.Hour)))
	assert.Equal(t, 2, Nights(in, in.Add(25*time.Hour)))
	assert.Equal(t, 1, Nights(in, in.Add(3*time.Hour)))
}

func TestCreateBooking(t *testing.T) {
	f := newBookingFixture()
	guest := newPrincipal(models.RoleGuest)

	booking, err := f.svc.CreateBooking(context.Background(), guest, threeNightForm())
	require.NoError(t, err)

	assert.Equal(t, 335.0, booking.TotalAmount)
	assert.Equal(t, models.BookingPending, booking.Status)
	assert.Equal(t, guest.UserID, booking.GuestID)
	assert.Equal(t, f.properties.property.HostID, booking.HostID)

	cached, ok := f.sessions.Get(guest.UserID).Bookings.Find(booking.GetID())
	require.True(t, ok)
	assert.Equal(t, booking.ID, cached.ID)
	assert.Equal(t, []string{events.BookingCreated}, f.publisher.types())

	last, ok := f.sessions.Get(guest.UserID).LastAvailability.Get()
	require.True(t, ok)
	assert.True(t, last.IsAvailable)
	assert.Equal(t, "UTC", last.PropertyTimezone)
}

func TestCreateBookingRequiresSignIn(t *testing.T) {
	f := newBookingFixture()

	_, err := f.svc.CreateBooking(context.Background(), nil, threeNightForm())
	assert.True(t, errors.Is(err, apperrors.ErrAuthenticationRequired))
	assert.Zero(t, f.bookings.inserts)
}

func TestCreateBookingConflictSkipsInsert(t *testing.T) {
	f := newBookingFixture()
	f.bookings.availability = &models.AvailabilityResult{
		IsAvailable:           false,
		ConflictReason:        "Dates overlap an existing reservation",
		TotalConflictingDates: 2,
	}

	_, err := f.svc.CreateBooking(context.Background(), newPrincipal(models.RoleGuest), threeNightForm())
	require.Error(t, err)

	appErr := apperrors.As(err)
	assert.Equal(t, apperrors.CodeAvailabilityConflict, appErr.Code)
	assert.Equal(t, 2, appErr.Details["total_conflicting_dates"])
	assert.Zero(t, f.bookings.inserts)
	assert.Empty(t, f.publisher.types())
}

func TestCreateBookingLostRaceIsConflict(t *testing.T) {
	f := newBookingFixture()
	f.bookings.insertErr = fmt.Errorf("insert: %w", models.ErrBookingUnavailable)

	_, err := f.svc.CreateBooking(context.Background(), newPrincipal(models.RoleGuest), threeNightForm())
	assert.True(t, errors.Is(err, apperrors.ErrAvailabilityConflict))
	assert.Equal(t, 1, f.bookings.inserts)
}

func TestCreateBookingRemoteFailureKeepsMessage(t *testing.T) {
	f := newBookingFixture()
	f.bookings.insertErr = errors.New("new row violates row-level security policy")

	_, err := f.svc.CreateBooking(context.Background(), newPrincipal(models.RoleGuest), threeNightForm())
	appErr := apperrors.As(err)
	assert.Equal(t, apperrors.CodeRemoteOperation, appErr.Code)
	assert.Equal(t, "new row violates row-level security policy", appErr.Message)
}

func TestCreateBookingTooManyGuests(t *testing.T) {
	f := newBookingFixture()
	form := threeNightForm()
	form.GuestCount = 9

	_, err := f.svc.CreateBooking(context.Background(), newPrincipal(models.RoleGuest), form)
	assert.True(t, errors.Is(err, apperrors.ErrValidation))
	assert.Zero(t, f.bookings.inserts)
}

func TestCheckAvailabilityTimezoneLookupFails(t *testing.T) {
	f := newBookingFixture()
	f.properties.timezoneErr = errors.New("connection refused")

	_, err := f.svc.availability.CheckAvailability(context.Background(), nil, AvailabilityRequest{
		PropertyID:   uuid.New(),
		CheckInDate:  "2025-03-01",
		CheckOutDate: "2025-03-02",
	})
	assert.True(t, errors.Is(err, apperrors.ErrPropertyLookup))
}

func TestCheckAvailabilityRejectsReversedStay(t *testing.T) {
	f := newBookingFixture()

	_, err := f.svc.availability.CheckAvailability(context.Background(), nil, AvailabilityRequest{
		PropertyID:   uuid.New(),
		CheckInDate:  "2025-03-04",
		CheckOutDate: "2025-03-01",
	})
	assert.True(t, errors.Is(err, apperrors.ErrValidation))
}

func TestCheckAvailabilityRemoteFailure(t *testing.T) {
	f := newBookingFixture()
	f.bookings.availErr = errors.New("function check_property_availability_new does not exist")

	_, err := f.svc.availability.CheckAvailability(context.Background(), nil, AvailabilityRequest{
		PropertyID:   uuid.New(),
		CheckInDate:  "2025-03-01",
		CheckOutDate: "2025-03-02",
	})
	assert.True(t, errors.Is(err, apperrors.ErrAvailabilityCheck))
}

func TestListBookingsServesCache(t *testing.T) {
	f := newBookingFixture()
	guest := newPrincipal(models.RoleGuest)
	f.bookings.put(models.Booking{ID: uuid.New(), GuestID: guest.UserID, Status: models.BookingConfirmed})

	rows, total, err := f.svc.ListBookings(context.Background(), guest, 0, 20)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, 1, total)

	_, _, err = f.svc.ListBookings(context.Background(), guest, 0, 20)
	require.NoError(t, err)
	assert.Equal(t, 1, f.bookings.listCount())

	_, err = f.svc.RefreshBookings(context.Background(), guest)
	require.NoError(t, err)
	assert.Equal(t, 2, f.bookings.listCount())
}

func TestGetBookingAccess(t *testing.T) {
	f := newBookingFixture()
	guest := newPrincipal(models.RoleGuest)
	b := models.Booking{ID: uuid.New(), GuestID: guest.UserID, HostID: uuid.New(), Status: models.BookingPending}
	f.bookings.put(b)

	got, err := f.svc.GetBooking(context.Background(), guest, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)

	_, err = f.svc.GetBooking(context.Background(), newPrincipal(models.RoleGuest), b.ID)
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))

	_, err = f.svc.GetBooking(context.Background(), newPrincipal(models.RoleAdmin), b.ID)
	assert.NoError(t, err)

	_, err = f.svc.GetBooking(context.Background(), guest, uuid.New())
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}
