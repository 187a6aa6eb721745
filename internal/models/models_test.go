package models

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBookingStatusTransitions(t *testing.T) {
	assert.True(t, BookingPending.CanTransitionTo(BookingAcceptedAwaitingPayment))
	assert.True(t, BookingAcceptedAwaitingPayment.CanTransitionTo(BookingPaymentFailed))
	assert.True(t, BookingPaymentFailed.CanTransitionTo(BookingConfirmed))
	assert.False(t, BookingConfirmed.CanTransitionTo(BookingPending))
	assert.False(t, BookingCancelled.CanTransitionTo(BookingConfirmed))

	for _, s := range []BookingStatus{BookingCancelled, BookingCompleted, BookingRejected} {
		assert.True(t, s.IsTerminal(), s)
	}
	assert.False(t, BookingPending.IsTerminal())
	assert.False(t, BookingStatus("unknown").IsValid())

	assert.True(t, BookingAcceptedAwaitingPayment.AwaitingPayment())
	assert.True(t, BookingPaymentFailed.AwaitingPayment())
	assert.False(t, BookingPending.AwaitingPayment())
}

func TestParseStay(t *testing.T) {
	loc := time.FixedZone("WAT", 3600)

	in, out, err := ParseStay("2025-03-01", "2025-03-04", "", "11:30", loc)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-01T00:00:00+01:00", in.Format(time.RFC3339))
	assert.Equal(t, "2025-03-04T11:30:00+01:00", out.Format(time.RFC3339))

	_, _, err = ParseStay("2025-03-01", "2025-03-04", "25:00", "", loc)
	assert.Error(t, err)

	_, _, err = ParseStay("03/01/2025", "2025-03-04", "", "", nil)
	assert.Error(t, err)

	in, _, err = ParseStay("2025-03-01", "2025-03-02", "14:00:30", "", nil)
	require.NoError(t, err)
	assert.Equal(t, 30, in.Second())
}

func TestBookingValidate(t *testing.T) {
	b := Booking{CheckInDate: "2025-03-01", CheckOutDate: "2025-03-03", TotalAmount: 100, Status: BookingPending}
	assert.NoError(t, b.Validate())

	same := b
	same.CheckOutDate = "2025-03-01"
	assert.Error(t, same.Validate())

	slot := b
	slot.CheckOutDate = "2025-03-01"
	slot.CheckInTime = "09:00"
	slot.CheckOutTime = "12:00"
	assert.NoError(t, slot.Validate(), "a same-day slot only needs end after start")

	neg := b
	neg.TotalAmount = -1
	assert.Error(t, neg.Validate())
}

func TestEstimateRefundBands(t *testing.T) {
	booked := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	checkIn := booked.Add(30 * 24 * time.Hour)

	tests := []struct {
		name    string
		hours   float64
		policy  string
		percent float64
		net     float64
	}{
		{"within a day", 10, "free_cancellation_24h", 100, 475},
		{"partial at 100h", 100, "partial_refund_168h", 50, 225},
		{"no refund band", 200, "no_refund_336h", 0, 0},
		{"beyond bands", 400, "no_refund", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cancelAt := booked.Add(time.Duration(tt.hours * float64(time.Hour)))
			calc := EstimateRefund(DisplayRefundPolicy, 500, 25, booked, cancelAt, checkIn)
			assert.Equal(t, tt.policy, calc.PolicyApplied)
			assert.Equal(t, tt.percent, calc.RefundPercentage)
			assert.Equal(t, tt.net, calc.NetRefund)
			assert.True(t, calc.Estimate)
			assert.LessOrEqual(t, calc.NetRefund, calc.TotalPaid)
		})
	}
}

func TestEstimateRefundNeverNegative(t *testing.T) {
	booked := time.Now()
	calc := EstimateRefund(DisplayRefundPolicy, 20, 25, booked, booked.Add(time.Hour), time.Time{})
	assert.Equal(t, 0.0, calc.NetRefund)
	assert.Zero(t, calc.HoursBeforeCheckin)
}

func TestRefundClamp(t *testing.T) {
	r := RefundCalculation{TotalPaid: 500, NetRefund: 900}
	r.Clamp()
	assert.Equal(t, 500.0, r.NetRefund)

	r.NetRefund = -3
	r.Clamp()
	assert.Equal(t, 0.0, r.NetRefund)
}

func TestPaymentRecordComputeNet(t *testing.T) {
	p := PaymentRecord{Amount: 500, ProcessingFee: 15, PlatformFee: 35}
	p.ComputeNet()
	assert.Equal(t, 450.0, p.NetAmount)
	assert.True(t, PaymentFailed.IsTerminal())
	assert.False(t, PaymentProcessing.IsTerminal())
}

func TestPayoutActions(t *testing.T) {
	target, ok := PayoutActionApprove.TargetStatus()
	require.True(t, ok)
	assert.Equal(t, PayoutApproved, target)
	assert.True(t, PayoutPending.CanTransitionTo(target))
	assert.False(t, PayoutRejected.CanTransitionTo(PayoutCompleted))

	_, ok = PayoutAction("refund").TargetStatus()
	assert.False(t, ok)
}

func TestDecodeRPC(t *testing.T) {
	var rows []RefundCalculation
	err := decodeRPC(RPCCalculateRefund, `[{"total_paid":500,"net_refund":225,"policy_applied":"partial_refund_168h"}]`, &rows)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 225.0, rows[0].NetRefund)

	err = decodeRPC(RPCCalculateRefund, `{"code":"P0001","message":"Booking not found","details":null,"hint":null}`, &rows)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Booking not found")

	assert.Error(t, decodeRPC(RPCCalculateRefund, "  ", &rows))

	var stats PropertyStatistics
	require.NoError(t, decodeRPC(RPCAdminPropertyStats, `{"total":3,"active":2}`, &stats))
	assert.Equal(t, 2, stats.Active)
}

func TestFunctionError(t *testing.T) {
	assert.NoError(t, functionError(FnRequestPayout, `{"payout_request":{}}`))
	assert.NoError(t, functionError(FnRequestPayout, `not json`))
	err := functionError(FnRequestPayout, `{"error":"Insufficient balance"}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Insufficient balance")
}

func TestMemoryCallbackLedger(t *testing.T) {
	ledger := NewMemoryCallbackLedger()
	ctx := context.Background()

	first, err := ledger.RecordCallback(ctx, &PaymentCallback{PaymentIntentID: "pi_1", TransactionID: "tx_1", Outcome: "succeeded"})
	require.NoError(t, err)
	assert.True(t, first)

	again, err := ledger.RecordCallback(ctx, &PaymentCallback{PaymentIntentID: "pi_1", TransactionID: "tx_1", Outcome: "failed"})
	require.NoError(t, err)
	assert.False(t, again)

	cb, err := ledger.GetCallback(ctx, "pi_1", "tx_1")
	require.NoError(t, err)
	require.NotNil(t, cb)
	assert.Equal(t, "succeeded", cb.Outcome)

	missing, err := ledger.GetCallback(ctx, "pi_1", "tx_2")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMemoryDisputeRepo(t *testing.T) {
	repo := NewMemoryDisputeRepo()
	ctx := context.Background()

	d, err := repo.CreateDispute(ctx, &Dispute{BookingID: uuid.New(), OpenedBy: uuid.New(), Reason: "the host never showed up"})
	require.NoError(t, err)
	assert.Equal(t, DisputeOpen, d.Status)
	assert.False(t, d.ID.IsZero())

	_, err = repo.CreateDispute(ctx, &Dispute{BookingID: uuid.New(), OpenedBy: uuid.New(), Reason: "charged twice for one stay"})
	require.NoError(t, err)

	admin := uuid.New()
	resolved, err := repo.ResolveDispute(ctx, d.ID, DisputeResolved, "refunded", admin)
	require.NoError(t, err)
	require.NotNil(t, resolved)
	assert.Equal(t, admin, *resolved.ResolvedBy)

	again, err := repo.ResolveDispute(ctx, d.ID, DisputeRejected, "", admin)
	require.NoError(t, err)
	assert.Nil(t, again, "a closed dispute cannot be resolved twice")

	open, err := repo.ListDisputes(ctx, DisputeOpen, 10)
	require.NoError(t, err)
	assert.Len(t, open, 1)

	stats, err := repo.GetDisputeStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Open)
	assert.Equal(t, int64(1), stats.Resolved)
	assert.Equal(t, int64(2), stats.Total)
}
