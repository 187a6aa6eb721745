package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewKafkaPublisherValidation(t *testing.T) {
	_, err := NewKafkaPublisher(KafkaConfig{Topic: "staylink.events"}, discard())
	assert.Error(t, err)

	_, err = NewKafkaPublisher(KafkaConfig{Brokers: []string{"localhost:9092"}}, discard())
	assert.Error(t, err)

	p, err := NewKafkaPublisher(KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "staylink.events"}, discard())
	require.NoError(t, err)
	require.NoError(t, p.Close())
}

func TestPublishBuildsKeyedMessage(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{writer: w, logger: discard()}

	user := uuid.New()
	booking := uuid.New().String()
	ev := New(BookingCreated, booking, user, map[string]any{"total_amount": 335})
	require.NoError(t, p.Publish(context.Background(), ev))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, booking, string(msg.Key))

	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, BookingCreated, headers[HeaderEventType])
	assert.Equal(t, ev.ID, headers[HeaderEventID])
	assert.Equal(t, user.String(), headers[HeaderUserID])

	var decoded Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, BookingCreated, decoded.Type)
}

func TestPublishErrors(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{writer: w, logger: discard()}

	assert.ErrorIs(t, p.Publish(context.Background(), New(BookingCreated, "", uuid.Nil, nil)), ErrEmptyKey)

	w.err = errors.New("broker down")
	assert.Error(t, p.Publish(context.Background(), New(BookingCreated, "k", uuid.Nil, nil)))

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
	assert.ErrorIs(t, p.Publish(context.Background(), New(BookingCreated, "k", uuid.Nil, nil)), ErrPublisherClosed)
}

func TestNoopPublisher(t *testing.T) {
	p := NewNoopPublisher(discard())
	assert.NoError(t, p.Publish(context.Background(), New(PaymentCompleted, "pi_1", uuid.New(), nil)))
	assert.NoError(t, p.Close())
}
