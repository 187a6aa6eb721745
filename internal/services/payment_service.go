package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/joshua-takyi/staylink/internal/apperrors"
	"github.com/joshua-takyi/staylink/internal/events"
	"github.com/joshua-takyi/staylink/internal/helpers"
	"github.com/joshua-takyi/staylink/internal/lock"
	"github.com/joshua-takyi/staylink/internal/models"
	"github.com/joshua-takyi/staylink/internal/payment"
	"github.com/joshua-takyi/staylink/internal/store"
	"golang.org/x/sync/singleflight"
)

// PaymentPhase is where one booking's checkout attempt stands.
type PaymentPhase string

const (
	PhaseIdle      PaymentPhase = "idle"
	PhaseCreating  PaymentPhase = "creating"
	PhaseReady     PaymentPhase = "ready"
	PhaseInvoking  PaymentPhase = "invoking"
	PhaseCompleted PaymentPhase = "completed"
	PhaseFailed    PaymentPhase = "failed"

	paymentMethodCheckout = "checkout"
	guestPaymentsKey      = "guest"
)

type IntentRequest struct {
	BookingID     uuid.UUID `json:"booking_id" validate:"required"`
	Description   string    `json:"description,omitempty" validate:"max=255"`
	CustomerEmail string    `json:"customer_email,omitempty" validate:"omitempty,email"`
}

type IntentResult struct {
	BookingID       uuid.UUID    `json:"booking_id"`
	PaymentIntentID string       `json:"payment_intent_id"`
	PublicKey       string       `json:"public_key"`
	Amount          float64      `json:"amount"`
	Currency        string       `json:"currency"`
	Description     string       `json:"description"`
	CustomerEmail   string       `json:"customer_email,omitempty"`
	Fees            payment.Fees `json:"fees"`
}

type Attempt struct {
	BookingID uuid.UUID               `json:"booking_id"`
	UserID    uuid.UUID               `json:"user_id"`
	Phase     PaymentPhase            `json:"phase"`
	Intent    *IntentResult           `json:"intent,omitempty"`
	Outcome   *payment.Classification `json:"outcome,omitempty"`
	Error     *apperrors.AppError     `json:"error,omitempty"`
	UpdatedAt time.Time               `json:"updated_at"`
}

func (a *Attempt) snapshot() *Attempt {
	cp := *a
	if a.Intent != nil {
		intent := *a.Intent
		cp.Intent = &intent
	}
	if a.Outcome != nil {
		outcome := *a.Outcome
		cp.Outcome = &outcome
	}
	return &cp
}

// PaymentOutcome is what a processed completion produced.
type PaymentOutcome struct {
	payment.Classification
	BookingID       uuid.UUID             `json:"booking_id,omitempty"`
	PaymentIntentID string                `json:"payment_intent_id"`
	TransactionID   string                `json:"transaction_id,omitempty"`
	Record          *models.PaymentRecord `json:"record,omitempty"`
	Duplicate       bool                  `json:"duplicate"`
	Error           *apperrors.AppError   `json:"error,omitempty"`
}

type PaymentConfig struct {
	PublicKey       string
	CheckoutTimeout time.Duration
	LockTTL         time.Duration
	// settled and idle attempts older than this are forgotten
	AttemptRetention time.Duration
}

type PaymentService struct {
	payments   models.PaymentRepo
	bookings   models.BookingRepo
	bookingSvc *BookingService
	intents    payment.IntentCreator
	widget     payment.Widget
	ledger     models.CallbackLedger
	locker     lock.Locker
	sessions   *store.Registry
	publisher  events.Publisher
	logger     *slog.Logger
	cfg        PaymentConfig
	now        func() time.Time

	group singleflight.Group
	wg    sync.WaitGroup

	mu        sync.Mutex
	attempts  map[uuid.UUID]*Attempt
	byIntent  map[string]uuid.UUID
	processed map[string]time.Time
	lastPrune time.Time
}

func NewPaymentService(
	payments models.PaymentRepo,
	bookings models.BookingRepo,
	bookingSvc *BookingService,
	intents payment.IntentCreator,
	widget payment.Widget,
	ledger models.CallbackLedger,
	locker lock.Locker,
	sessions *store.Registry,
	publisher events.Publisher,
	logger *slog.Logger,
	cfg PaymentConfig,
) *PaymentService {
	if cfg.CheckoutTimeout <= 0 {
		cfg.CheckoutTimeout = 15 * time.Minute
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Second
	}
	if cfg.AttemptRetention <= 0 {
		cfg.AttemptRetention = 24 * time.Hour
	}
	return &PaymentService{
		payments:   payments,
		bookings:   bookings,
		bookingSvc: bookingSvc,
		intents:    intents,
		widget:     widget,
		ledger:     ledger,
		locker:     locker,
		sessions:   sessions,
		publisher:  publisher,
		logger:     logger,
		cfg:        cfg,
		now:        time.Now,
		attempts:   make(map[uuid.UUID]*Attempt),
		byIntent:   make(map[string]uuid.UUID),
		processed:  make(map[string]time.Time),
	}
}

const pruneInterval = time.Minute

// pruneLocked drops attempts that have sat idle or settled past the retention
// window, with their intent index and dedup keys. Caller holds ps.mu.
func (ps *PaymentService) pruneLocked(now time.Time) {
	if now.Sub(ps.lastPrune) < pruneInterval {
		return
	}
	ps.lastPrune = now
	cutoff := now.Add(-ps.cfg.AttemptRetention)

	for id, a := range ps.attempts {
		switch a.Phase {
		case PhaseCreating, PhaseReady, PhaseInvoking:
			continue
		}
		if a.UpdatedAt.After(cutoff) {
			continue
		}
		if a.Intent != nil && ps.byIntent[a.Intent.PaymentIntentID] == id {
			delete(ps.byIntent, a.Intent.PaymentIntentID)
		}
		delete(ps.attempts, id)
	}
	for key, at := range ps.processed {
		if at.Before(cutoff) {
			delete(ps.processed, key)
		}
	}
}

// attemptLocked returns the booking's attempt, creating an idle one. Caller holds ps.mu.
func (ps *PaymentService) attemptLocked(bookingID, userID uuid.UUID) *Attempt {
	ps.pruneLocked(ps.now())
	a, ok := ps.attempts[bookingID]
	if !ok || (a.UserID != userID && a.Phase == PhaseIdle) {
		a = &Attempt{BookingID: bookingID, UserID: userID, Phase: PhaseIdle, UpdatedAt: ps.now()}
		ps.attempts[bookingID] = a
	}
	return a
}

func (ps *PaymentService) setPhase(bookingID uuid.UUID, phase PaymentPhase, appErr *apperrors.AppError) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if a, ok := ps.attempts[bookingID]; ok {
		a.Phase = phase
		a.Error = appErr
		a.UpdatedAt = ps.now()
	}
}

// CreatePaymentIntent prepares a provider-side intent for the booking. Concurrent
// calls for the same booking share one remote request.
func (ps *PaymentService) CreatePaymentIntent(ctx context.Context, p *helpers.Principal, req IntentRequest) (*IntentResult, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, err
	}
	if err := validate(req); err != nil {
		return nil, err
	}

	key := p.UserID.String() + ":" + req.BookingID.String()
	v, err, _ := ps.group.Do(key, func() (interface{}, error) {
		return ps.createIntent(ctx, p, req)
	})
	if err != nil {
		return nil, err
	}
	intent := *v.(*IntentResult)
	return &intent, nil
}

func (ps *PaymentService) createIntent(ctx context.Context, p *helpers.Principal, req IntentRequest) (*IntentResult, error) {
	ps.mu.Lock()
	a := ps.attemptLocked(req.BookingID, p.UserID)
	if a.UserID != p.UserID {
		ps.mu.Unlock()
		return nil, apperrors.Conflict("another payment for this booking is in progress")
	}
	switch a.Phase {
	case PhaseReady:
		intent := *a.Intent
		ps.mu.Unlock()
		return &intent, nil
	case PhaseCreating, PhaseInvoking:
		ps.mu.Unlock()
		return nil, apperrors.Conflict("a payment for this booking is already in progress")
	case PhaseCompleted:
		ps.mu.Unlock()
		return nil, apperrors.Conflict("this booking has already been paid")
	case PhaseFailed:
		ps.mu.Unlock()
		return nil, apperrors.Conflict("the previous payment attempt failed, reset it before retrying")
	}
	a.Phase = PhaseCreating
	a.Error = nil
	a.UpdatedAt = ps.now()
	ps.mu.Unlock()

	release, ok, err := ps.locker.Acquire(ctx, "payment-intent:"+req.BookingID.String(), ps.cfg.LockTTL)
	if err != nil {
		ps.logger.Warn("payment lock unavailable, continuing with local guard", "booking_id", req.BookingID, "error", err)
	} else if !ok {
		ps.setPhase(req.BookingID, PhaseIdle, nil)
		return nil, apperrors.Conflict("a payment for this booking is already being prepared")
	}
	defer release()

	intent, err := ps.prepareIntent(ctx, p, req)
	if err != nil {
		appErr := apperrors.As(err)
		ps.setPhase(req.BookingID, PhaseIdle, appErr)
		return nil, appErr
	}

	ps.mu.Lock()
	a.Phase = PhaseReady
	a.Intent = intent
	a.UpdatedAt = ps.now()
	ps.byIntent[intent.PaymentIntentID] = req.BookingID
	ps.mu.Unlock()

	return intent, nil
}

func (ps *PaymentService) prepareIntent(ctx context.Context, p *helpers.Principal, req IntentRequest) (*IntentResult, error) {
	booking, err := ps.bookings.GetBooking(ctx, req.BookingID, p.AccessToken)
	if err != nil {
		return nil, apperrors.RemoteOperation("load booking", err)
	}
	if booking == nil {
		return nil, apperrors.NotFound("booking")
	}
	if booking.GuestID != p.UserID {
		return nil, apperrors.Forbidden("only the guest can pay for this booking")
	}
	if !booking.Status.AwaitingPayment() {
		return nil, apperrors.Conflict(fmt.Sprintf("booking is %s and cannot be paid", booking.Status))
	}

	description := req.Description
	if description == "" {
		description = fmt.Sprintf("Booking %s", booking.ID)
	}
	email := req.CustomerEmail
	if email == "" {
		email = p.Email
	}

	resp, err := ps.intents.CreateIntent(ctx, p.AccessToken, payment.IntentRequest{
		BookingID:     booking.ID,
		Amount:        booking.TotalAmount,
		Currency:      booking.Currency,
		Description:   description,
		UserID:        p.UserID,
		CustomerEmail: email,
	})
	if err != nil {
		ps.logger.Error("payment intent creation failed", "booking_id", booking.ID, "user_id", p.UserID, "error", err)
		return nil, apperrors.RemoteOperation("create payment intent", err)
	}

	intent := &IntentResult{
		BookingID:       booking.ID,
		PaymentIntentID: resp.PaymentIntentID,
		PublicKey:       resp.PublicKey,
		Amount:          resp.Amount,
		Currency:        resp.Currency,
		Description:     description,
		CustomerEmail:   email,
		Fees:            resp.Fees,
	}
	if intent.PublicKey == "" {
		intent.PublicKey = ps.cfg.PublicKey
	}
	if intent.Amount == 0 {
		intent.Amount = booking.TotalAmount
	}
	if intent.Currency == "" {
		intent.Currency = booking.Currency
	}

	now := ps.now()
	record := &models.PaymentRecord{
		ID:              uuid.New(),
		BookingID:       booking.ID,
		UserID:          p.UserID,
		PaymentMethod:   paymentMethodCheckout,
		PaymentProvider: models.ProviderFedaPay,
		PaymentIntentID: intent.PaymentIntentID,
		Amount:          intent.Amount,
		Currency:        intent.Currency,
		PaymentStatus:   models.PaymentPending,
		ProcessingFee:   intent.Fees.ProcessingFee,
		PlatformFee:     intent.Fees.PlatformFee,
		InitiatedAt:     &now,
	}
	record.ComputeNet()

	saved, err := ps.payments.InsertPaymentRecord(ctx, record, p.AccessToken)
	if err != nil {
		// the intent exists at the provider, keep a local stub so the completion can still be matched
		ps.logger.Warn("failed to persist payment record", "payment_intent_id", intent.PaymentIntentID, "error", err)
		saved = record
	}
	ps.sessions.Get(p.UserID).Payments.Append(*saved)

	publish(ps.publisher, ps.logger, events.New(events.PaymentIntentCreated, intent.PaymentIntentID, p.UserID, intent))
	return intent, nil
}

// Checkout opens the checkout widget for a ready intent. The widget runs in the
// background and its completion is fed to HandlePaymentComplete.
func (ps *PaymentService) Checkout(ctx context.Context, p *helpers.Principal, bookingID uuid.UUID) (*payment.IntentParams, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, err
	}

	ps.mu.Lock()
	a, ok := ps.attempts[bookingID]
	if !ok || a.UserID != p.UserID || a.Intent == nil {
		ps.mu.Unlock()
		return nil, apperrors.NotFound("payment intent")
	}
	if a.Phase != PhaseReady {
		ps.mu.Unlock()
		return nil, apperrors.Conflict(fmt.Sprintf("payment is %s, not ready for checkout", a.Phase))
	}
	a.Phase = PhaseInvoking
	a.Error = nil
	a.UpdatedAt = ps.now()
	params := payment.IntentParams{
		BookingID:       bookingID,
		UserID:          p.UserID,
		PaymentIntentID: a.Intent.PaymentIntentID,
		PublicKey:       a.Intent.PublicKey,
		Amount:          a.Intent.Amount,
		Currency:        a.Intent.Currency,
		Description:     a.Intent.Description,
		CustomerEmail:   a.Intent.CustomerEmail,
	}
	ps.mu.Unlock()

	caller := *p
	ps.wg.Add(1)
	go ps.runCheckout(caller, params)

	return &params, nil
}

func (ps *PaymentService) runCheckout(p helpers.Principal, params payment.IntentParams) {
	defer ps.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), ps.cfg.CheckoutTimeout)
	res, err := ps.widget.Open(ctx, params)
	cancel()
	if err != nil {
		ps.logger.Error("checkout widget failed", "payment_intent_id", params.PaymentIntentID, "error", err)
		ps.mu.Lock()
		if a, ok := ps.attempts[params.BookingID]; ok && a.Phase == PhaseInvoking {
			a.Phase = PhaseReady
			a.Error = apperrors.PaymentFailed("checkout_unavailable")
			a.UpdatedAt = ps.now()
		}
		ps.mu.Unlock()
		return
	}
	if res.Delivered {
		// the callback request that delivered it is processing the completion
		return
	}

	if _, err := ps.HandlePaymentComplete(context.Background(), &p, res.Response); err != nil {
		ps.logger.Error("failed to handle checkout completion", "payment_intent_id", params.PaymentIntentID, "error", err)
	}

	// the widget is gone, so nothing is still invoking
	ps.mu.Lock()
	if a, ok := ps.attempts[params.BookingID]; ok && a.Phase == PhaseInvoking {
		a.Phase = PhaseReady
		a.UpdatedAt = ps.now()
	}
	ps.mu.Unlock()
}

func outcomeError(c payment.Classification) *apperrors.AppError {
	switch c.Outcome {
	case payment.OutcomeDismissed:
		return apperrors.PaymentCancelledByUser(payment.DialogDismissed)
	case payment.OutcomeCancelled:
		return apperrors.PaymentCancelledByUser(c.Detail)
	case payment.OutcomeDeclined:
		return apperrors.PaymentDeclined(c.Detail)
	case payment.OutcomeFailed:
		return apperrors.PaymentFailed(c.Detail)
	}
	return nil
}

// HandlePaymentComplete reconciles a widget completion with the payment record
// and booking list. Replays of the same intent/transaction pair are no-ops.
func (ps *PaymentService) HandlePaymentComplete(ctx context.Context, p *helpers.Principal, resp payment.CompletionResponse) (*PaymentOutcome, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, err
	}
	if resp.PaymentIntentID == "" {
		return nil, apperrors.Validation("payment_intent_id is required", nil)
	}

	intentID := resp.PaymentIntentID
	txID := resp.TransactionID()
	class := payment.Classify(resp)

	ps.mu.Lock()
	var a *Attempt
	if bookingID, known := ps.byIntent[intentID]; known {
		a = ps.attempts[bookingID]
	}
	if a != nil && a.UserID != p.UserID && !p.IsAdmin() {
		ps.mu.Unlock()
		return nil, apperrors.Forbidden("this payment belongs to another user")
	}
	ps.mu.Unlock()

	// release a checkout still waiting on this intent; the work happens here.
	// A processing result leaves the widget open until the final status or the timeout.
	if class.Outcome != payment.OutcomeProcessing {
		if d, ok := ps.widget.(payment.Deliverer); ok {
			d.Deliver(resp)
		}
	}

	owner := p.UserID
	outcome := &PaymentOutcome{
		Classification:  class,
		PaymentIntentID: intentID,
		TransactionID:   txID,
		Error:           outcomeError(class),
	}
	if a != nil {
		owner = a.UserID
		outcome.BookingID = a.BookingID
	}

	switch class.Outcome {
	case payment.OutcomeDismissed:
		// the intent is still usable, so the attempt goes back to ready
		ps.mu.Lock()
		if a != nil && a.Phase == PhaseInvoking {
			a.Phase = PhaseReady
			a.Outcome = &class
			a.Error = outcome.Error
			a.UpdatedAt = ps.now()
		}
		ps.mu.Unlock()
		return outcome, nil
	case payment.OutcomeProcessing:
		ps.mu.Lock()
		if a != nil && a.Phase == PhaseInvoking {
			a.Outcome = &class
			a.UpdatedAt = ps.now()
		}
		ps.mu.Unlock()
		_, err := ps.payments.UpdatePaymentRecordByIntent(ctx, intentID, models.PaymentUpdate{
			Status:        models.PaymentProcessing,
			TransactionID: txID,
		}, p.AccessToken)
		if err != nil {
			ps.logger.Warn("failed to mark payment processing", "payment_intent_id", intentID, "error", err)
		}
		return outcome, nil
	}

	dedupKey := intentID + "|" + txID
	ps.mu.Lock()
	if _, seen := ps.processed[dedupKey]; seen {
		ps.mu.Unlock()
		outcome.Duplicate = true
		return outcome, nil
	}
	ps.processed[dedupKey] = ps.now()
	ps.mu.Unlock()

	prior, err := ps.ledger.GetCallback(ctx, intentID, txID)
	if err != nil {
		ps.logger.Warn("callback ledger lookup failed", "payment_intent_id", intentID, "error", err)
	}
	if prior != nil {
		outcome.Classification = payment.Classification{Outcome: payment.Outcome(prior.Outcome), Detail: prior.Detail}
		outcome.Error = outcomeError(outcome.Classification)
		outcome.Duplicate = true
		return outcome, nil
	}

	sess := ps.sessions.Get(owner)
	now := ps.now()
	update := models.PaymentUpdate{TransactionID: txID}
	if class.Outcome == payment.OutcomeSucceeded {
		update.Status = models.PaymentCompleted
		update.CompletedAt = &now
		if cached, ok := sess.FindPaymentByIntent(intentID); ok {
			cached.ComputeNet()
			net := cached.NetAmount
			update.NetAmount = &net
		}
	} else {
		update.Status = models.PaymentFailed
		update.FailureReason = class.Detail
		if update.FailureReason == "" {
			update.FailureReason = string(class.Outcome)
		}
	}

	record, err := ps.payments.UpdatePaymentRecordByIntent(ctx, intentID, update, p.AccessToken)
	if err != nil {
		ps.mu.Lock()
		delete(ps.processed, dedupKey)
		ps.mu.Unlock()
		ps.logger.Error("failed to update payment record", "payment_intent_id", intentID, "error", err)
		return nil, apperrors.RemoteOperation("update payment record", err)
	}

	bookingID := ""
	if a != nil {
		bookingID = a.BookingID.String()
	}
	if _, err := ps.ledger.RecordCallback(ctx, &models.PaymentCallback{
		PaymentIntentID: intentID,
		TransactionID:   txID,
		BookingID:       bookingID,
		Status:          string(update.Status),
		Outcome:         string(class.Outcome),
		Detail:          class.Detail,
	}); err != nil {
		ps.logger.Warn("failed to record payment callback", "payment_intent_id", intentID, "error", err)
	}

	ps.mu.Lock()
	if a != nil {
		if class.Outcome == payment.OutcomeSucceeded {
			a.Phase = PhaseCompleted
		} else {
			a.Phase = PhaseFailed
		}
		a.Outcome = &class
		a.Error = outcome.Error
		a.UpdatedAt = now
	}
	ps.mu.Unlock()

	if record == nil {
		// no row matched; a stub kept after a failed insert still settles locally
		stub, ok := sess.FindPaymentByIntent(intentID)
		if !ok || stub.PaymentStatus.IsTerminal() {
			outcome.Duplicate = true
			return outcome, nil
		}
		applyPaymentUpdate(&stub, update)
		record = &stub
	}
	outcome.Record = record
	sess.Payments.Upsert(*record)
	sess.Wallet.Invalidate()

	if owner == p.UserID {
		if _, err := ps.bookingSvc.RefreshBookings(ctx, p); err != nil {
			ps.logger.Warn("booking refresh after payment failed", "user_id", owner, "error", err)
		}
	} else {
		sess.Bookings.Invalidate()
	}

	eventType := events.PaymentFailed
	if class.Outcome == payment.OutcomeSucceeded {
		eventType = events.PaymentCompleted
		ps.closeWidget(intentID)
	}
	publish(ps.publisher, ps.logger, events.New(eventType, intentID, owner, outcome))

	return outcome, nil
}

func applyPaymentUpdate(r *models.PaymentRecord, u models.PaymentUpdate) {
	r.PaymentStatus = u.Status
	if u.TransactionID != "" {
		r.TransactionID = u.TransactionID
	}
	if u.CompletedAt != nil {
		r.CompletedAt = u.CompletedAt
	}
	if u.NetAmount != nil {
		r.NetAmount = *u.NetAmount
	}
	if u.FailureReason != "" {
		r.FailureReason = u.FailureReason
	}
}

// closeWidget asks the browser to dismiss the modal without waiting for it.
func (ps *PaymentService) closeWidget(intentID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := ps.widget.Close(ctx, intentID); err != nil {
			ps.logger.Debug("could not close checkout widget", "payment_intent_id", intentID, "error", err)
		}
	}()
}

// ResetPayment clears intent and error state so a new attempt starts clean.
func (ps *PaymentService) ResetPayment(ctx context.Context, p *helpers.Principal, bookingID uuid.UUID) (*Attempt, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, err
	}

	ps.mu.Lock()
	defer ps.mu.Unlock()

	a, ok := ps.attempts[bookingID]
	if !ok {
		return &Attempt{BookingID: bookingID, UserID: p.UserID, Phase: PhaseIdle, UpdatedAt: ps.now()}, nil
	}
	if a.UserID != p.UserID && !p.IsAdmin() {
		return nil, apperrors.Forbidden("this payment belongs to another user")
	}
	if a.Phase == PhaseCreating || a.Phase == PhaseInvoking {
		return nil, apperrors.Conflict("cannot reset while a checkout is in progress")
	}

	if a.Intent != nil {
		delete(ps.byIntent, a.Intent.PaymentIntentID)
	}
	a.Phase = PhaseIdle
	a.Intent = nil
	a.Outcome = nil
	a.Error = nil
	a.UpdatedAt = ps.now()
	return a.snapshot(), nil
}

func (ps *PaymentService) State(p *helpers.Principal, bookingID uuid.UUID) (*Attempt, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, err
	}

	ps.mu.Lock()
	defer ps.mu.Unlock()

	a, ok := ps.attempts[bookingID]
	if !ok || (a.UserID != p.UserID && a.Phase == PhaseIdle) {
		return &Attempt{BookingID: bookingID, UserID: p.UserID, Phase: PhaseIdle}, nil
	}
	if a.UserID != p.UserID && !p.IsAdmin() {
		return nil, apperrors.Forbidden("this payment belongs to another user")
	}
	return a.snapshot(), nil
}

func (ps *PaymentService) ListPayments(ctx context.Context, p *helpers.Principal, offset, limit int) ([]models.PaymentRecord, int, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, 0, err
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}
	page := offset/limit + 1

	cache := ps.sessions.Get(p.UserID).Payments
	if !cache.ShouldFetch(guestPaymentsKey, page) {
		return cache.Items(), cache.Total(), nil
	}

	cache.SetLoading(true)
	rows, total, err := ps.payments.ListPaymentRecords(ctx, p.UserID, offset, limit, p.AccessToken)
	if err != nil {
		cache.SetError(err)
		return nil, 0, apperrors.RemoteOperation("list payments", err)
	}
	cache.Set(rows, total)
	cache.MarkFetched(guestPaymentsKey, page)
	return cache.Items(), total, nil
}

// Drain waits for background checkouts to finish or ctx to end.
func (ps *PaymentService) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		ps.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
