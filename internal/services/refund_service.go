package services

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joshua-takyi/staylink/internal/apperrors"
	"github.com/joshua-takyi/staylink/internal/events"
	"github.com/joshua-takyi/staylink/internal/helpers"
	"github.com/joshua-takyi/staylink/internal/models"
	"github.com/joshua-takyi/staylink/internal/store"
)

type CancellationReason string

const (
	ReasonChangeOfPlans      CancellationReason = "change_of_plans"
	ReasonFoundAlternative   CancellationReason = "found_alternative"
	ReasonTravelRestrictions CancellationReason = "travel_restrictions"
	ReasonEmergency          CancellationReason = "emergency"
	ReasonHostRequest        CancellationReason = "host_request"
	ReasonOther              CancellationReason = "other"
)

var cancellationReasons = map[CancellationReason]bool{
	ReasonChangeOfPlans:      true,
	ReasonFoundAlternative:   true,
	ReasonTravelRestrictions: true,
	ReasonEmergency:          true,
	ReasonHostRequest:        true,
	ReasonOther:              true,
}

type CancellationRequest struct {
	ReasonCode CancellationReason `json:"reason_code,omitempty"`
	Reason     string             `json:"reason,omitempty" validate:"max=500"`
}

// text is what gets stored in cancellation_reason.
func (r CancellationRequest) text() (string, error) {
	reason := strings.TrimSpace(r.Reason)
	if r.ReasonCode == "" {
		if reason == "" {
			return "", apperrors.Validation("a cancellation reason is required", nil)
		}
		return reason, nil
	}
	if !cancellationReasons[r.ReasonCode] {
		return "", apperrors.Validation("unknown cancellation reason", map[string]any{"reason_code": r.ReasonCode})
	}
	if r.ReasonCode == ReasonOther {
		if reason == "" {
			return "", apperrors.Validation("please describe the reason for cancelling", nil)
		}
		return reason, nil
	}
	if reason != "" {
		return string(r.ReasonCode) + ": " + reason, nil
	}
	return string(r.ReasonCode), nil
}

type RefundService struct {
	refunds   models.RefundRepo
	bookings  models.BookingRepo
	payments  models.PaymentRepo
	sessions  *store.Registry
	publisher events.Publisher
	logger    *slog.Logger
	bands     []models.RefundBand
	now       func() time.Time
}

func NewRefundService(refunds models.RefundRepo, bookings models.BookingRepo, payments models.PaymentRepo, sessions *store.Registry, publisher events.Publisher, logger *slog.Logger) *RefundService {
	return &RefundService{
		refunds:   refunds,
		bookings:  bookings,
		payments:  payments,
		sessions:  sessions,
		publisher: publisher,
		logger:    logger,
		bands:     models.DisplayRefundPolicy,
		now:       time.Now,
	}
}

func (rs *RefundService) loadOwnBooking(ctx context.Context, p *helpers.Principal, bookingID uuid.UUID) (*models.Booking, error) {
	booking, err := rs.bookings.GetBooking(ctx, bookingID, p.AccessToken)
	if err != nil {
		return nil, apperrors.RemoteOperation("get booking", err)
	}
	if booking == nil {
		return nil, apperrors.NotFound("booking")
	}
	if booking.GuestID != p.UserID && !p.IsAdmin() {
		return nil, apperrors.Forbidden("only the guest can cancel this booking")
	}
	return booking, nil
}

// CalculateRefund always asks the server. When the quote is unavailable the
// display policy gives an estimate flagged as such.
func (rs *RefundService) CalculateRefund(ctx context.Context, p *helpers.Principal, bookingID uuid.UUID, cancellationDate time.Time) (*models.RefundCalculation, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, err
	}
	if cancellationDate.IsZero() {
		cancellationDate = rs.now()
	}

	calc, err := rs.refunds.CalculateRefundAmount(ctx, bookingID, cancellationDate, p.AccessToken)
	if err == nil {
		calc.Clamp()
		return calc, nil
	}

	quoteErr := apperrors.RefundQuoteUnavailable(err)
	rs.logger.Warn("refund quote unavailable, using display policy",
		"code", quoteErr.Code,
		"booking_id", bookingID,
		"error", err,
	)

	booking, lookupErr := rs.loadOwnBooking(ctx, p, bookingID)
	if lookupErr != nil {
		if appErr := apperrors.As(lookupErr); appErr.Code == apperrors.CodeForbidden || appErr.Code == apperrors.CodeNotFound {
			return nil, appErr
		}
		return nil, quoteErr
	}

	checkIn, _, parseErr := models.ParseStay(booking.CheckInDate, booking.CheckOutDate, booking.CheckInTime, booking.CheckOutTime, time.UTC)
	if parseErr != nil {
		checkIn = time.Time{}
	}

	estimate := models.EstimateRefund(rs.bands, booking.TotalAmount, rs.paidFee(ctx, p, booking), booking.CreatedAt, cancellationDate, checkIn)
	return &estimate, nil
}

// paidFee is the processing fee of the booking's completed payment, zero when none is known.
func (rs *RefundService) paidFee(ctx context.Context, p *helpers.Principal, booking *models.Booking) float64 {
	if record, ok := rs.sessions.Get(booking.GuestID).Payments.FindFunc(func(r models.PaymentRecord) bool {
		return r.BookingID == booking.ID && r.PaymentStatus == models.PaymentCompleted
	}); ok {
		return record.ProcessingFee
	}
	if rs.payments == nil {
		return 0
	}

	record, err := rs.payments.GetCompletedPaymentForBooking(ctx, booking.ID, p.AccessToken)
	if err != nil {
		rs.logger.Warn("failed to load payment for refund estimate", "booking_id", booking.ID, "error", err)
		return 0
	}
	if record == nil {
		return 0
	}
	return record.ProcessingFee
}

// CancelBooking writes the cancellation; the server releases the dates and settles the refund.
func (rs *RefundService) CancelBooking(ctx context.Context, p *helpers.Principal, bookingID uuid.UUID, req CancellationRequest) (*models.Booking, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, err
	}
	if err := validate(req); err != nil {
		return nil, err
	}
	reason, err := req.text()
	if err != nil {
		return nil, err
	}

	booking, err := rs.loadOwnBooking(ctx, p, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status.IsTerminal() {
		return nil, apperrors.Conflict("booking is already " + string(booking.Status))
	}

	updated, err := rs.bookings.UpdateBookingStatus(ctx, bookingID, models.BookingCancelled, map[string]interface{}{
		"cancellation_reason": reason,
		"cancelled_at":        rs.now().UTC(),
	}, p.AccessToken)
	if err != nil {
		rs.logger.Error("failed to cancel booking", "booking_id", bookingID, "user_id", p.UserID, "error", err)
		return nil, apperrors.RemoteOperation("cancel booking", err)
	}

	sess := rs.sessions.Get(booking.GuestID)
	sess.Bookings.Upsert(*updated)
	sess.Payments.Invalidate()
	sess.Wallet.Invalidate()

	publish(rs.publisher, rs.logger, events.New(events.BookingCancelled, bookingID.String(), p.UserID, map[string]any{
		"booking_id": bookingID,
		"reason":     reason,
	}))
	return updated, nil
}
