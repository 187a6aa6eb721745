package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

const (
	BookingCreated       = "booking.created"
	BookingCancelled     = "booking.cancelled"
	PaymentIntentCreated = "payment.intent_created"
	PaymentCompleted     = "payment.completed"
	PaymentFailed        = "payment.failed"
	PayoutRequested      = "payout.requested"
	PayoutDecided        = "payout.decided"
	DisputeOpened        = "dispute.opened"
	DisputeResolved      = "dispute.resolved"
)

// Event is a domain fact published after the backend accepted a change.
type Event struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	Key        string      `json:"key"`
	UserID     string      `json:"user_id,omitempty"`
	OccurredAt time.Time   `json:"occurred_at"`
	Payload    interface{} `json:"payload"`
}

func New(eventType, key string, userID uuid.UUID, payload interface{}) Event {
	e := Event{
		ID:         uuid.New().String(),
		Type:       eventType,
		Key:        key,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
	if userID != uuid.Nil {
		e.UserID = userID.String()
	}
	return e
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NoopPublisher only logs; used when no broker is configured.
type NoopPublisher struct {
	logger *slog.Logger
}

func NewNoopPublisher(logger *slog.Logger) *NoopPublisher {
	return &NoopPublisher{logger: logger}
}

func (p *NoopPublisher) Publish(ctx context.Context, event Event) error {
	p.logger.Debug("event",
		"event_id", event.ID,
		"event_type", event.Type,
		"key", event.Key,
	)
	return nil
}

func (p *NoopPublisher) Close() error {
	return nil
}
