package models

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/supabase-community/postgrest-go"
)

type BookingRepo interface {
	CheckPropertyAvailability(ctx context.Context, propertyID uuid.UUID, checkIn, checkOut string, accessToken string) (*AvailabilityResult, error)
	InsertBooking(ctx context.Context, booking *Booking, accessToken string) (*Booking, error)
	GetBooking(ctx context.Context, id uuid.UUID, accessToken string) (*Booking, error)
	ListBookingsForGuest(ctx context.Context, guestID uuid.UUID, offset, limit int, accessToken string) ([]Booking, int, error)
	UpdateBookingStatus(ctx context.Context, id uuid.UUID, status BookingStatus, fields map[string]interface{}, accessToken string) (*Booking, error)
}

// ErrBookingUnavailable marks an insert rejected by the overlap constraint.
var ErrBookingUnavailable = fmt.Errorf("booking dates are no longer available")

func (su *SupabaseRepo) CheckPropertyAvailability(ctx context.Context, propertyID uuid.UUID, checkIn, checkOut string, accessToken string) (*AvailabilityResult, error) {
	client, err := su.clientFor(accessToken)
	if err != nil {
		return nil, err
	}

	params := map[string]interface{}{
		"property_id":        propertyID.String(),
		"check_in_datetime":  checkIn,
		"check_out_datetime": checkOut,
	}

	var raw json.RawMessage
	if err := decodeRPC(RPCCheckAvailability, client.Rpc(RPCCheckAvailability, "", params), &raw); err != nil {
		return nil, err
	}

	// set-returning functions come back as arrays, scalar ones as objects
	result := &AvailabilityResult{}
	if strings.HasPrefix(strings.TrimSpace(string(raw)), "[") {
		var rows []AvailabilityResult
		if err := json.Unmarshal(raw, &rows); err != nil {
			return nil, fmt.Errorf("failed to unmarshal availability rows: %v", err)
		}
		if len(rows) == 0 {
			return nil, fmt.Errorf("availability check returned no rows")
		}
		result = &rows[0]
	} else if err := json.Unmarshal(raw, result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal availability result: %v", err)
	}

	result.PropertyID = propertyID
	if result.Conflicts == nil {
		result.Conflicts = []AvailabilityConflict{}
	}
	return result, nil
}

func (su *SupabaseRepo) InsertBooking(ctx context.Context, booking *Booking, accessToken string) (*Booking, error) {
	client, err := su.clientFor(accessToken)
	if err != nil {
		return nil, err
	}

	row := map[string]interface{}{
		"property_id":    booking.PropertyID,
		"guest_id":       booking.GuestID,
		"host_id":        booking.HostID,
		"check_in_date":  booking.CheckInDate,
		"check_out_date": booking.CheckOutDate,
		"guest_count":    booking.GuestCount,
		"total_amount":   booking.TotalAmount,
		"currency":       booking.Currency,
		"status":         booking.Status,
	}
	if booking.CheckInTime != "" {
		row["check_in_time"] = booking.CheckInTime
	}
	if booking.CheckOutTime != "" {
		row["check_out_time"] = booking.CheckOutTime
	}
	if booking.SpecialRequests != "" {
		row["special_requests"] = booking.SpecialRequests
	}

	data, _, err := client.From(BookingsTable).
		Insert(row, false, "", "representation", "").
		Execute()
	if err != nil {
		msg := err.Error()
		// 23P01 is the exclusion-constraint violation raised by the overlap guard
		if strings.Contains(msg, "23P01") || strings.Contains(msg, "exclusion constraint") || strings.Contains(strings.ToLower(msg), "not available") {
			return nil, fmt.Errorf("%w: %s", ErrBookingUnavailable, msg)
		}
		return nil, fmt.Errorf("failed to insert booking: %v", err)
	}

	var created []Booking
	if err := json.Unmarshal(data, &created); err != nil {
		return nil, fmt.Errorf("failed to unmarshal created booking: %v", err)
	}
	if len(created) == 0 {
		return nil, fmt.Errorf("no booking returned after insert")
	}
	return &created[0], nil
}

func (su *SupabaseRepo) GetBooking(ctx context.Context, id uuid.UUID, accessToken string) (*Booking, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("invalid booking ID")
	}
	client, err := su.clientFor(accessToken)
	if err != nil {
		return nil, err
	}

	data, _, err := client.From(BookingsTable).
		Select("*", "", false).
		Eq("id", id.String()).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %v", err)
	}

	var rows []Booking
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to unmarshal booking: %v", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (su *SupabaseRepo) ListBookingsForGuest(ctx context.Context, guestID uuid.UUID, offset, limit int, accessToken string) ([]Booking, int, error) {
	client, err := su.clientFor(accessToken)
	if err != nil {
		return nil, 0, err
	}

	data, count, err := client.From(BookingsTable).
		Select("*", "exact", false).
		Eq("guest_id", guestID.String()).
		Order("created_at", &postgrest.OrderOpts{Ascending: false}).
		Range(offset, offset+limit-1, "").
		Execute()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list bookings: %v", err)
	}

	var rows []Booking
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, 0, fmt.Errorf("failed to unmarshal bookings: %v", err)
	}
	return rows, int(count), nil
}

func (su *SupabaseRepo) UpdateBookingStatus(ctx context.Context, id uuid.UUID, status BookingStatus, fields map[string]interface{}, accessToken string) (*Booking, error) {
	client, err := su.clientFor(accessToken)
	if err != nil {
		return nil, err
	}

	update := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now().UTC(),
	}
	for k, v := range fields {
		update[k] = v
	}

	data, count, err := client.From(BookingsTable).
		Update(update, "representation", "exact").
		Eq("id", id.String()).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to update booking: %v", err)
	}
	if count == 0 {
		return nil, fmt.Errorf("no booking found to update")
	}

	var rows []Booking
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to unmarshal updated booking: %v", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no booking data returned after update")
	}
	return &rows[0], nil
}
