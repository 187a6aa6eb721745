package payment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DialogDismissed is the reason the checkout widget reports when the buyer closes it.
const DialogDismissed = "DIALOG DISMISSED"

// IntentParams is everything the browser needs to render the checkout widget.
type IntentParams struct {
	BookingID       uuid.UUID `json:"booking_id"`
	UserID          uuid.UUID `json:"user_id"`
	PaymentIntentID string    `json:"payment_intent_id"`
	PublicKey       string    `json:"public_key"`
	Amount          float64   `json:"amount"`
	Currency        string    `json:"currency"`
	Description     string    `json:"description"`
	CustomerEmail   string    `json:"customer_email,omitempty"`
}

type Transaction struct {
	ID            string     `json:"id"`
	Status        string     `json:"status"`
	Amount        float64    `json:"amount"`
	Fees          float64    `json:"fees"`
	LastErrorCode string     `json:"last_error_code,omitempty"`
	ApprovedAt    *time.Time `json:"approved_at,omitempty"`
}

// CompletionResponse is the payload of the widget's completion callback.
type CompletionResponse struct {
	Reason          string       `json:"reason,omitempty"`
	PaymentIntentID string       `json:"payment_intent_id"`
	Transaction     *Transaction `json:"transaction,omitempty"`
}

func (r CompletionResponse) TransactionID() string {
	if r.Transaction == nil {
		return ""
	}
	return r.Transaction.ID
}

// Result is what Open hands back. Delivered is true when the completion came in
// through the callback endpoint, whose handler already processes it.
type Result struct {
	Response  CompletionResponse
	Delivered bool
}

// Widget drives one checkout. Open blocks until the buyer finishes, dismisses
// the widget or ctx ends; Close is a best-effort request to dismiss the modal.
type Widget interface {
	Open(ctx context.Context, params IntentParams) (Result, error)
	Close(ctx context.Context, intentID string) error
}

// Deliverer is implemented by widgets whose completion arrives out of band.
type Deliverer interface {
	Deliver(resp CompletionResponse) bool
}

// Notifier pushes a message to every live connection of a user.
type Notifier interface {
	SendToUser(userID uuid.UUID, payload interface{}) int
}
