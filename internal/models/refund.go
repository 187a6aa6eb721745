package models

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

type RefundCalculation struct {
	TotalPaid          float64 `json:"total_paid"`
	ProcessingFee      float64 `json:"processing_fee"`
	NetRefund          float64 `json:"net_refund"`
	RefundPercentage   float64 `json:"refund_percentage"`
	PolicyApplied      string  `json:"policy_applied"`
	HoursBeforeCheckin float64 `json:"hours_before_checkin"`
	HoursSinceBooking  float64 `json:"hours_since_booking,omitempty"`
	// Estimate is set when the figures come from the display table rather than the server.
	Estimate bool `json:"estimate"`
}

// Clamp enforces 0 <= net_refund <= total_paid.
func (r *RefundCalculation) Clamp() {
	if r.NetRefund < 0 {
		r.NetRefund = 0
	}
	if r.NetRefund > r.TotalPaid {
		r.NetRefund = r.TotalPaid
	}
}

// RefundBand grants Percentage when cancelling within MaxHours of booking creation.
type RefundBand struct {
	MaxHours   float64
	Percentage float64
	Label      string
}

// DisplayRefundPolicy is a display estimate only. The refund actually applied is always
// the one the server computes when the cancellation is written.
var DisplayRefundPolicy = []RefundBand{
	{MaxHours: 24, Percentage: 100, Label: "free_cancellation_24h"},
	{MaxHours: 168, Percentage: 50, Label: "partial_refund_168h"},
	{MaxHours: 336, Percentage: 0, Label: "no_refund_336h"},
}

const policyBeyondBands = "no_refund"

// EstimateRefund applies bands to the hours elapsed between bookedAt and cancelAt.
func EstimateRefund(bands []RefundBand, totalPaid, processingFee float64, bookedAt, cancelAt, checkIn time.Time) RefundCalculation {
	hoursSince := cancelAt.Sub(bookedAt).Hours()
	if hoursSince < 0 {
		hoursSince = 0
	}

	calc := RefundCalculation{
		TotalPaid:         totalPaid,
		ProcessingFee:     processingFee,
		PolicyApplied:     policyBeyondBands,
		HoursSinceBooking: math.Round(hoursSince*100) / 100,
		Estimate:          true,
	}
	if !checkIn.IsZero() {
		calc.HoursBeforeCheckin = math.Round(checkIn.Sub(cancelAt).Hours()*100) / 100
	}

	for _, band := range bands {
		if hoursSince <= band.MaxHours {
			calc.RefundPercentage = band.Percentage
			calc.PolicyApplied = band.Label
			break
		}
	}

	if calc.RefundPercentage > 0 {
		calc.NetRefund = totalPaid*calc.RefundPercentage/100 - processingFee
	}
	calc.NetRefund = math.Round(calc.NetRefund*100) / 100
	calc.Clamp()
	return calc
}

type RefundRepo interface {
	CalculateRefundAmount(ctx context.Context, bookingID uuid.UUID, cancellationDate time.Time, accessToken string) (*RefundCalculation, error)
}

func (su *SupabaseRepo) CalculateRefundAmount(ctx context.Context, bookingID uuid.UUID, cancellationDate time.Time, accessToken string) (*RefundCalculation, error) {
	client, err := su.clientFor(accessToken)
	if err != nil {
		return nil, err
	}

	params := map[string]interface{}{
		"booking_id":        bookingID.String(),
		"cancellation_date": cancellationDate.UTC().Format(time.RFC3339),
	}

	var rows []RefundCalculation
	if err := decodeRPC(RPCCalculateRefund, client.Rpc(RPCCalculateRefund, "", params), &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("refund calculation returned no rows for booking %s", bookingID)
	}
	return &rows[0], nil
}
