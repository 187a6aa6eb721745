package models

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/supabase-community/postgrest-go"
)

type PaymentStatus string

const (
	PaymentPending       PaymentStatus = "pending"
	PaymentProcessing    PaymentStatus = "processing"
	PaymentCompleted     PaymentStatus = "completed"
	PaymentFailed        PaymentStatus = "failed"
	PaymentRefunded      PaymentStatus = "refunded"
	PaymentPartialRefund PaymentStatus = "partial_refund"

	ProviderFedaPay = "fedapay"
)

func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentCompleted || s == PaymentFailed || s == PaymentRefunded || s == PaymentPartialRefund
}

type PaymentRecord struct {
	ID              uuid.UUID     `json:"id"`
	BookingID       uuid.UUID     `json:"booking_id"`
	UserID          uuid.UUID     `json:"user_id"`
	PaymentMethod   string        `json:"payment_method"`
	PaymentProvider string        `json:"payment_provider"`
	PaymentIntentID string        `json:"payment_intent_id"`
	TransactionID   string        `json:"transaction_id,omitempty"`
	Amount          float64       `json:"amount"`
	Currency        string        `json:"currency"`
	PaymentStatus   PaymentStatus `json:"payment_status"`
	ProcessingFee   float64       `json:"processing_fee"`
	PlatformFee     float64       `json:"platform_fee"`
	NetAmount       float64       `json:"net_amount"`
	PayoutStatus    string        `json:"payout_status,omitempty"`
	FailureReason   string        `json:"failure_reason,omitempty"`
	InitiatedAt     *time.Time    `json:"initiated_at,omitempty"`
	CompletedAt     *time.Time    `json:"completed_at,omitempty"`
	RefundedAt      *time.Time    `json:"refunded_at,omitempty"`
}

func (p PaymentRecord) GetID() string {
	return p.ID.String()
}

// ComputeNet applies net = amount - processing_fee - platform_fee.
func (p *PaymentRecord) ComputeNet() {
	p.NetAmount = p.Amount - p.ProcessingFee - p.PlatformFee
}

// PaymentUpdate carries the fields written when the provider reports a result.
type PaymentUpdate struct {
	Status        PaymentStatus
	TransactionID string
	FailureReason string
	NetAmount     *float64
	CompletedAt   *time.Time
}

type PaymentRepo interface {
	InsertPaymentRecord(ctx context.Context, record *PaymentRecord, accessToken string) (*PaymentRecord, error)
	UpdatePaymentRecordByIntent(ctx context.Context, intentID string, update PaymentUpdate, accessToken string) (*PaymentRecord, error)
	ListPaymentRecords(ctx context.Context, userID uuid.UUID, offset, limit int, accessToken string) ([]PaymentRecord, int, error)
	GetCompletedPaymentForBooking(ctx context.Context, bookingID uuid.UUID, accessToken string) (*PaymentRecord, error)
}

func (su *SupabaseRepo) InsertPaymentRecord(ctx context.Context, record *PaymentRecord, accessToken string) (*PaymentRecord, error) {
	client, err := su.clientFor(accessToken)
	if err != nil {
		return nil, err
	}

	row := map[string]interface{}{
		"booking_id":        record.BookingID,
		"user_id":           record.UserID,
		"payment_method":    record.PaymentMethod,
		"payment_provider":  record.PaymentProvider,
		"payment_intent_id": record.PaymentIntentID,
		"amount":            record.Amount,
		"currency":          record.Currency,
		"payment_status":    record.PaymentStatus,
		"processing_fee":    record.ProcessingFee,
		"platform_fee":      record.PlatformFee,
		"net_amount":        record.NetAmount,
		"initiated_at":      record.InitiatedAt,
	}

	data, _, err := client.From(PaymentRecordsTable).
		Insert(row, false, "", "representation", "").
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to insert payment record: %v", err)
	}

	var rows []PaymentRecord
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payment record: %v", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no payment record returned after insert")
	}
	return &rows[0], nil
}

func (su *SupabaseRepo) UpdatePaymentRecordByIntent(ctx context.Context, intentID string, update PaymentUpdate, accessToken string) (*PaymentRecord, error) {
	client, err := su.clientFor(accessToken)
	if err != nil {
		return nil, err
	}

	fields := map[string]interface{}{
		"payment_status": update.Status,
	}
	if update.TransactionID != "" {
		fields["transaction_id"] = update.TransactionID
	}
	if update.FailureReason != "" {
		fields["failure_reason"] = update.FailureReason
	}
	if update.NetAmount != nil {
		fields["net_amount"] = *update.NetAmount
	}
	if update.CompletedAt != nil {
		fields["completed_at"] = update.CompletedAt
	}

	// only rows still in flight are touched, a terminal record is never rewritten
	data, _, err := client.From(PaymentRecordsTable).
		Update(fields, "representation", "exact").
		Eq("payment_intent_id", intentID).
		In("payment_status", []string{string(PaymentPending), string(PaymentProcessing)}).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to update payment record %s: %v", intentID, err)
	}

	var rows []PaymentRecord
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payment record: %v", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (su *SupabaseRepo) ListPaymentRecords(ctx context.Context, userID uuid.UUID, offset, limit int, accessToken string) ([]PaymentRecord, int, error) {
	client, err := su.clientFor(accessToken)
	if err != nil {
		return nil, 0, err
	}

	data, count, err := client.From(PaymentRecordsTable).
		Select("*", "exact", false).
		Eq("user_id", userID.String()).
		Order("initiated_at", &postgrest.OrderOpts{Ascending: false}).
		Range(offset, offset+limit-1, "").
		Execute()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list payment records: %v", err)
	}

	var rows []PaymentRecord
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, 0, fmt.Errorf("failed to unmarshal payment records: %v", err)
	}
	return rows, int(count), nil
}

// GetCompletedPaymentForBooking returns the booking's settled payment, or nil when it has none.
func (su *SupabaseRepo) GetCompletedPaymentForBooking(ctx context.Context, bookingID uuid.UUID, accessToken string) (*PaymentRecord, error) {
	client, err := su.clientFor(accessToken)
	if err != nil {
		return nil, err
	}

	data, _, err := client.From(PaymentRecordsTable).
		Select("*", "", false).
		Eq("booking_id", bookingID.String()).
		Eq("payment_status", string(PaymentCompleted)).
		Order("completed_at", &postgrest.OrderOpts{Ascending: false}).
		Limit(1, "").
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get payment for booking %s: %v", bookingID, err)
	}

	var rows []PaymentRecord
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payment record: %v", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}
