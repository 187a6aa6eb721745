package models

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/supabase-community/postgrest-go"
)

type PayoutStatus string

const (
	PayoutPending   PayoutStatus = "pending"
	PayoutApproved  PayoutStatus = "approved"
	PayoutRejected  PayoutStatus = "rejected"
	PayoutCompleted PayoutStatus = "completed"
)

var payoutTransitions = map[PayoutStatus][]PayoutStatus{
	PayoutPending:  {PayoutApproved, PayoutRejected},
	PayoutApproved: {PayoutCompleted},
}

func (s PayoutStatus) CanTransitionTo(target PayoutStatus) bool {
	for _, t := range payoutTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// PayoutAction is what an admin sends to approvePayout.
type PayoutAction string

const (
	PayoutActionApprove  PayoutAction = "approve"
	PayoutActionReject   PayoutAction = "reject"
	PayoutActionComplete PayoutAction = "complete"
)

func (a PayoutAction) TargetStatus() (PayoutStatus, bool) {
	switch a {
	case PayoutActionApprove:
		return PayoutApproved, true
	case PayoutActionReject:
		return PayoutRejected, true
	case PayoutActionComplete:
		return PayoutCompleted, true
	}
	return "", false
}

type PayoutRequest struct {
	ID          uuid.UUID    `json:"id"`
	UserID      uuid.UUID    `json:"user_id"`
	Amount      float64      `json:"amount"`
	Currency    string       `json:"currency"`
	Status      PayoutStatus `json:"status"`
	RequestedAt time.Time    `json:"requested_at"`
	ProcessedAt *time.Time   `json:"processed_at,omitempty"`
	AdminID     *uuid.UUID   `json:"admin_id,omitempty"`
	Note        string       `json:"note,omitempty"`
}

func (p PayoutRequest) GetID() string {
	return p.ID.String()
}

// WalletMetrics is recomputed server-side; the service only reads it.
type WalletMetrics struct {
	TotalBalance        float64    `json:"totalBalance"`
	PendingAmount       float64    `json:"pendingAmount"`
	PendingCount        int        `json:"pendingCount"`
	FailedAmount        float64    `json:"failedAmount"`
	FailedCount         int        `json:"failedCount"`
	SuccessfulAmount    float64    `json:"successfulAmount"`
	SuccessfulCount     int        `json:"successfulCount"`
	PayoutBalance       float64    `json:"payoutBalance"`
	LastPayoutDate      *time.Time `json:"lastPayoutDate,omitempty"`
	NextPayoutAllowedAt *time.Time `json:"nextPayoutAllowedAt,omitempty"`
}

type PayoutRepo interface {
	RequestPayout(ctx context.Context, amount float64, accessToken string) (*PayoutRequest, error)
	ApprovePayout(ctx context.Context, payoutRequestID uuid.UUID, action PayoutAction, note string, accessToken string) (*PayoutRequest, error)
	ListPayoutRequests(ctx context.Context, userID *uuid.UUID, status PayoutStatus, offset, limit int, accessToken string) ([]PayoutRequest, int, error)
	GetWalletMetrics(ctx context.Context, userID uuid.UUID, accessToken string) (*WalletMetrics, error)
}

// invokeFunction calls a payout edge function and decodes the payout_request it returns.
func (su *SupabaseRepo) invokeFunction(ctx context.Context, name string, payload map[string]interface{}, accessToken string) (*PayoutRequest, error) {
	raw, err := su.invokeEdgeFunction(ctx, name, payload, accessToken)
	if err != nil {
		return nil, err
	}

	var body struct {
		PayoutRequest *PayoutRequest `json:"payout_request"`
		Data          *PayoutRequest `json:"data"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s response: %v", name, err)
	}
	if body.PayoutRequest != nil {
		return body.PayoutRequest, nil
	}
	if body.Data != nil {
		return body.Data, nil
	}
	return nil, fmt.Errorf("%s returned no payout request", name)
}

func (su *SupabaseRepo) RequestPayout(ctx context.Context, amount float64, accessToken string) (*PayoutRequest, error) {
	return su.invokeFunction(ctx, FnRequestPayout, map[string]interface{}{"amount": amount}, accessToken)
}

func (su *SupabaseRepo) ApprovePayout(ctx context.Context, payoutRequestID uuid.UUID, action PayoutAction, note string, accessToken string) (*PayoutRequest, error) {
	return su.invokeFunction(ctx, FnApprovePayout, map[string]interface{}{
		"payoutRequestId": payoutRequestID.String(),
		"action":          action,
		"note":            note,
	}, accessToken)
}

func (su *SupabaseRepo) ListPayoutRequests(ctx context.Context, userID *uuid.UUID, status PayoutStatus, offset, limit int, accessToken string) ([]PayoutRequest, int, error) {
	client, err := su.clientFor(accessToken)
	if err != nil {
		return nil, 0, err
	}

	query := client.From(PayoutRequestsTable).Select("*", "exact", false)
	if userID != nil {
		query = query.Eq("user_id", userID.String())
	}
	if status != "" {
		query = query.Eq("status", string(status))
	}

	data, count, err := query.
		Order("requested_at", &postgrest.OrderOpts{Ascending: false}).
		Range(offset, offset+limit-1, "").
		Execute()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list payout requests: %v", err)
	}

	var rows []PayoutRequest
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, 0, fmt.Errorf("failed to unmarshal payout requests: %v", err)
	}
	return rows, int(count), nil
}

func (su *SupabaseRepo) GetWalletMetrics(ctx context.Context, userID uuid.UUID, accessToken string) (*WalletMetrics, error) {
	client, err := su.clientFor(accessToken)
	if err != nil {
		return nil, err
	}

	var metrics WalletMetrics
	if err := decodeRPC(RPCWalletMetrics, client.Rpc(RPCWalletMetrics, "", map[string]interface{}{"p_user_id": userID.String()}), &metrics); err != nil {
		return nil, err
	}
	return &metrics, nil
}
