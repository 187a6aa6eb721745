package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/joshua-takyi/staylink/internal/apperrors"
	"github.com/joshua-takyi/staylink/internal/events"
	"github.com/joshua-takyi/staylink/internal/helpers"
	"github.com/joshua-takyi/staylink/internal/models"
	"github.com/joshua-takyi/staylink/internal/store"
)

const (
	hostPayoutsKey  = "host"
	adminPayoutsKey = "admin"
)

type PayoutRequestForm struct {
	Amount float64 `json:"amount" validate:"required,gt=0"`
}

type PayoutDecision struct {
	Action models.PayoutAction `json:"action" validate:"required,oneof=approve reject complete"`
	Note   string              `json:"note,omitempty" validate:"max=500"`
}

type PayoutService struct {
	payouts   models.PayoutRepo
	sessions  *store.Registry
	publisher events.Publisher
	logger    *slog.Logger
}

func NewPayoutService(payouts models.PayoutRepo, sessions *store.Registry, publisher events.Publisher, logger *slog.Logger) *PayoutService {
	return &PayoutService{
		payouts:   payouts,
		sessions:  sessions,
		publisher: publisher,
		logger:    logger,
	}
}

func (ps *PayoutService) RequestPayout(ctx context.Context, p *helpers.Principal, form PayoutRequestForm) (*models.PayoutRequest, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, err
	}
	if !p.IsHost() && !p.IsAdmin() {
		return nil, apperrors.Forbidden("only hosts can request payouts")
	}
	if err := validate(form); err != nil {
		return nil, err
	}

	sess := ps.sessions.Get(p.UserID)
	if metrics, ok := sess.Wallet.Get(); ok && form.Amount > metrics.PayoutBalance {
		return nil, apperrors.Validation("amount exceeds the available payout balance", map[string]any{
			"payout_balance": metrics.PayoutBalance,
		})
	}

	req, err := ps.payouts.RequestPayout(ctx, form.Amount, p.AccessToken)
	if err != nil {
		ps.logger.Error("payout request failed", "user_id", p.UserID, "amount", form.Amount, "error", err)
		return nil, apperrors.RemoteOperation("request payout", err)
	}

	sess.Payouts.Upsert(*req)
	sess.Wallet.Invalidate()
	publish(ps.publisher, ps.logger, events.New(events.PayoutRequested, req.ID.String(), p.UserID, req))
	return req, nil
}

// ApprovePayout applies an admin decision. The transition is checked locally
// when the request is already cached; the edge function enforces it regardless.
func (ps *PayoutService) ApprovePayout(ctx context.Context, p *helpers.Principal, id uuid.UUID, decision PayoutDecision) (*models.PayoutRequest, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, err
	}
	if !p.IsAdmin() {
		return nil, apperrors.Forbidden("admin access required")
	}
	if err := validate(decision); err != nil {
		return nil, err
	}
	target, ok := decision.Action.TargetStatus()
	if !ok {
		return nil, apperrors.Validation("unknown payout action", map[string]any{"action": decision.Action})
	}

	adminSess := ps.sessions.Get(p.UserID)
	if cached, found := adminSess.Payouts.Find(id.String()); found && !cached.Status.CanTransitionTo(target) {
		return nil, apperrors.Conflict(fmt.Sprintf("payout is %s and cannot become %s", cached.Status, target))
	}

	req, err := ps.payouts.ApprovePayout(ctx, id, decision.Action, decision.Note, p.AccessToken)
	if err != nil {
		ps.logger.Error("payout decision failed", "payout_id", id, "action", decision.Action, "error", err)
		return nil, apperrors.RemoteOperation("approve payout", err)
	}

	adminSess.Payouts.Upsert(*req)
	if host, ok := ps.sessions.Peek(req.UserID); ok {
		host.Payouts.Upsert(*req)
		host.Wallet.Invalidate()
	}
	publish(ps.publisher, ps.logger, events.New(events.PayoutDecided, req.ID.String(), req.UserID, req))
	return req, nil
}

func (ps *PayoutService) GetWalletMetrics(ctx context.Context, p *helpers.Principal) (*models.WalletMetrics, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, err
	}

	sess := ps.sessions.Get(p.UserID)
	if metrics, ok := sess.Wallet.Get(); ok {
		return &metrics, nil
	}

	metrics, err := ps.payouts.GetWalletMetrics(ctx, p.UserID, p.AccessToken)
	if err != nil {
		ps.logger.Error("wallet metrics failed", "user_id", p.UserID, "error", err)
		return nil, apperrors.RemoteOperation("get wallet metrics", err)
	}
	sess.Wallet.Set(*metrics)
	return metrics, nil
}

// ListPayoutRequests lists the caller's own requests; admins see every host's.
func (ps *PayoutService) ListPayoutRequests(ctx context.Context, p *helpers.Principal, status models.PayoutStatus, offset, limit int) ([]models.PayoutRequest, int, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, 0, err
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}
	page := offset/limit + 1

	var owner *uuid.UUID
	key := adminPayoutsKey
	if !p.IsAdmin() {
		id := p.UserID
		owner = &id
		key = hostPayoutsKey
	}
	key += ":" + string(status)

	cache := ps.sessions.Get(p.UserID).Payouts
	if !cache.ShouldFetch(key, page) {
		return cache.Items(), cache.Total(), nil
	}

	cache.SetLoading(true)
	rows, total, err := ps.payouts.ListPayoutRequests(ctx, owner, status, offset, limit, p.AccessToken)
	if err != nil {
		cache.SetError(err)
		return nil, 0, apperrors.RemoteOperation("list payout requests", err)
	}
	cache.Set(rows, total)
	cache.MarkFetched(key, page)
	return cache.Items(), total, nil
}
