package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	MessageWidgetOpen  = "payment.widget.open"
	MessageWidgetClose = "payment.widget.close"
)

var ErrNoConnection = errors.New("no live connection to open the checkout on")

type widgetMessage struct {
	Type   string        `json:"type"`
	Params *IntentParams `json:"params,omitempty"`
	Intent string        `json:"payment_intent_id,omitempty"`
}

type pendingCheckout struct {
	params IntentParams
	done   chan CompletionResponse
}

// FedaPayWidget opens the FedaPay checkout in the user's browser over the live
// session feed and waits for the completion the browser posts back.
type FedaPayWidget struct {
	notifier Notifier
	logger   *slog.Logger

	mu      sync.Mutex
	pending map[string]*pendingCheckout
	// intents opened recently, kept so Close can still reach the user after completion
	owners map[string]owner
}

type owner struct {
	params   IntentParams
	openedAt time.Time
}

const ownerRetention = time.Hour

func NewFedaPayWidget(notifier Notifier, logger *slog.Logger) *FedaPayWidget {
	return &FedaPayWidget{
		notifier: notifier,
		logger:   logger,
		pending:  make(map[string]*pendingCheckout),
		owners:   make(map[string]owner),
	}
}

func (w *FedaPayWidget) Open(ctx context.Context, params IntentParams) (Result, error) {
	if params.PaymentIntentID == "" {
		return Result{}, fmt.Errorf("payment intent id is required")
	}

	p := &pendingCheckout{params: params, done: make(chan CompletionResponse, 1)}
	w.mu.Lock()
	if _, busy := w.pending[params.PaymentIntentID]; busy {
		w.mu.Unlock()
		return Result{}, fmt.Errorf("checkout for %s is already open", params.PaymentIntentID)
	}
	w.pending[params.PaymentIntentID] = p
	now := time.Now()
	for id, o := range w.owners {
		if now.Sub(o.openedAt) > ownerRetention {
			delete(w.owners, id)
		}
	}
	w.owners[params.PaymentIntentID] = owner{params: params, openedAt: now}
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		delete(w.pending, params.PaymentIntentID)
		w.mu.Unlock()
	}()

	if n := w.notifier.SendToUser(params.UserID, widgetMessage{Type: MessageWidgetOpen, Params: &params}); n == 0 {
		w.logger.Warn("no live connection for checkout",
			"user_id", params.UserID,
			"payment_intent_id", params.PaymentIntentID,
		)
		return Result{}, ErrNoConnection
	}

	select {
	case resp := <-p.done:
		return Result{Response: resp, Delivered: true}, nil
	case <-ctx.Done():
		// an abandoned checkout is reported the way the widget reports a dismissal
		return Result{Response: CompletionResponse{
			Reason:          DialogDismissed,
			PaymentIntentID: params.PaymentIntentID,
		}}, nil
	}
}

// Deliver hands a posted completion to the waiting Open call, if there is one.
func (w *FedaPayWidget) Deliver(resp CompletionResponse) bool {
	w.mu.Lock()
	p, ok := w.pending[resp.PaymentIntentID]
	w.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case p.done <- resp:
		return true
	default:
		return false
	}
}

func (w *FedaPayWidget) Close(ctx context.Context, intentID string) error {
	w.mu.Lock()
	o, ok := w.owners[intentID]
	delete(w.owners, intentID)
	w.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown checkout %s", intentID)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if n := w.notifier.SendToUser(o.params.UserID, widgetMessage{Type: MessageWidgetClose, Intent: intentID}); n == 0 {
		return ErrNoConnection
	}
	return nil
}

func (w *FedaPayWidget) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}
