package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	BookingPending                 BookingStatus = "pending"
	BookingAcceptedAwaitingPayment BookingStatus = "accepted-and-waiting-for-payment"
	BookingConfirmed               BookingStatus = "confirmed"
	BookingPaymentFailed           BookingStatus = "payment-failed"
	BookingCancelled               BookingStatus = "cancelled"
	BookingCompleted               BookingStatus = "completed"
	BookingRejected                BookingStatus = "rejected"
)

const (
	DateLayout        = "2006-01-02"
	TimeLayout        = "15:04"
	timeLayoutSeconds = "15:04:05"
)

var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingPending:                 {BookingAcceptedAwaitingPayment, BookingConfirmed, BookingCancelled, BookingRejected},
	BookingAcceptedAwaitingPayment: {BookingConfirmed, BookingPaymentFailed, BookingCancelled, BookingRejected},
	BookingPaymentFailed:           {BookingAcceptedAwaitingPayment, BookingConfirmed, BookingCancelled},
	BookingConfirmed:               {BookingCompleted, BookingCancelled},
	BookingCancelled:               {},
	BookingCompleted:               {},
	BookingRejected:                {},
}

func (s BookingStatus) IsValid() bool {
	_, ok := bookingTransitions[s]
	return ok
}

// CanTransitionTo reports whether the move is allowed outside of an admin override.
func (s BookingStatus) CanTransitionTo(target BookingStatus) bool {
	for _, t := range bookingTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

func (s BookingStatus) IsTerminal() bool {
	allowed, ok := bookingTransitions[s]
	return !ok || len(allowed) == 0
}

// AwaitingPayment is true for the statuses from which a guest may start a checkout.
func (s BookingStatus) AwaitingPayment() bool {
	return s == BookingAcceptedAwaitingPayment || s == BookingPaymentFailed
}

type Booking struct {
	ID                 uuid.UUID     `json:"id"`
	PropertyID         uuid.UUID     `json:"property_id"`
	GuestID            uuid.UUID     `json:"guest_id"`
	HostID             uuid.UUID     `json:"host_id"`
	CheckInDate        string        `json:"check_in_date"`
	CheckOutDate       string        `json:"check_out_date"`
	CheckInTime        string        `json:"check_in_time,omitempty"`
	CheckOutTime       string        `json:"check_out_time,omitempty"`
	GuestCount         int           `json:"guest_count"`
	TotalAmount        float64       `json:"total_amount"`
	Currency           string        `json:"currency"`
	Status             BookingStatus `json:"status"`
	SpecialRequests    string        `json:"special_requests,omitempty"`
	CancellationReason string        `json:"cancellation_reason,omitempty"`
	RejectReason       string        `json:"reject_reason,omitempty"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

func (b Booking) GetID() string {
	return b.ID.String()
}

func (b Booking) Validate() error {
	in, out, err := ParseStay(b.CheckInDate, b.CheckOutDate, b.CheckInTime, b.CheckOutTime, time.UTC)
	if err != nil {
		return err
	}
	if !out.After(in) {
		return fmt.Errorf("check-out must be after check-in")
	}
	if b.TotalAmount < 0 {
		return fmt.Errorf("total_amount cannot be negative")
	}
	if !b.Status.IsValid() {
		return fmt.Errorf("unknown booking status %q", b.Status)
	}
	return nil
}

// BookingForm is what a guest submits from the booking steps.
type BookingForm struct {
	PropertyID      uuid.UUID `json:"property_id" validate:"required"`
	CheckInDate     string    `json:"check_in_date" validate:"required,datetime=2006-01-02"`
	CheckOutDate    string    `json:"check_out_date" validate:"required,datetime=2006-01-02"`
	CheckInTime     string    `json:"check_in_time,omitempty"`
	CheckOutTime    string    `json:"check_out_time,omitempty"`
	GuestCount      int       `json:"guest_count" validate:"required,min=1,max=50"`
	SpecialRequests string    `json:"special_requests,omitempty" validate:"max=1000"`
}

type AvailabilityConflict struct {
	BookingID    string `json:"booking_id,omitempty"`
	CheckInDate  string `json:"check_in_date,omitempty"`
	CheckOutDate string `json:"check_out_date,omitempty"`
	Source       string `json:"source,omitempty"`
}

// AvailabilityResult mirrors check_property_availability_new.
type AvailabilityResult struct {
	IsAvailable           bool                   `json:"is_available"`
	ConflictReason        string                 `json:"conflict_reason,omitempty"`
	Conflicts             []AvailabilityConflict `json:"conflicts"`
	PropertyTimezone      string                 `json:"property_timezone"`
	TotalConflictingDates int                    `json:"total_conflicting_dates"`
	PropertyID            uuid.UUID              `json:"property_id"`
	CheckedAt             time.Time              `json:"checked_at"`
}

func parseClock(v string) (int, int, int, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, 0, 0, nil
	}
	layout := TimeLayout
	if strings.Count(v, ":") == 2 {
		layout = timeLayoutSeconds
	}
	t, err := time.Parse(layout, v)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid time %q, expected HH:MM", v)
	}
	return t.Hour(), t.Minute(), t.Second(), nil
}

// ParseStay resolves calendar dates and optional clock times into instants in loc.
// Missing times mean midnight.
func ParseStay(checkInDate, checkOutDate, checkInTime, checkOutTime string, loc *time.Location) (time.Time, time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	inDay, err := time.ParseInLocation(DateLayout, strings.TrimSpace(checkInDate), loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid check-in date %q", checkInDate)
	}
	outDay, err := time.ParseInLocation(DateLayout, strings.TrimSpace(checkOutDate), loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid check-out date %q", checkOutDate)
	}

	h, m, s, err := parseClock(checkInTime)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	in := time.Date(inDay.Year(), inDay.Month(), inDay.Day(), h, m, s, 0, loc)

	h, m, s, err = parseClock(checkOutTime)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	out := time.Date(outDay.Year(), outDay.Month(), outDay.Day(), h, m, s, 0, loc)

	return in, out, nil
}
