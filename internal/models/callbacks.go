package models

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	PaymentCallbacksColName = "payment_callbacks"
	callbackRetention       = 90 * 24 * time.Hour
)

// PaymentCallback is one processed checkout completion, kept so replays are recognised.
type PaymentCallback struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PaymentIntentID string             `bson:"payment_intent_id" json:"payment_intent_id"`
	TransactionID   string             `bson:"transaction_id" json:"transaction_id"`
	BookingID       string             `bson:"booking_id,omitempty" json:"booking_id,omitempty"`
	Status          string             `bson:"status" json:"status"`
	Outcome         string             `bson:"outcome" json:"outcome"`
	Detail          string             `bson:"detail,omitempty" json:"detail,omitempty"`
	ReceivedAt      time.Time          `bson:"received_at" json:"received_at"`
	ExpiresAt       time.Time          `bson:"expires_at" json:"expires_at"`
}

type CallbackLedger interface {
	// RecordCallback stores cb and reports false when the same intent/transaction pair was already recorded.
	RecordCallback(ctx context.Context, cb *PaymentCallback) (bool, error)
	GetCallback(ctx context.Context, intentID, transactionID string) (*PaymentCallback, error)
}

// EnsureIndexes creates the ledger's TTL and uniqueness indexes
func (mdb *MongodbRepo) EnsureIndexes(ctx context.Context) error {
	col, err := mdb.GetCollection(ctx, PaymentCallbacksColName)
	if err != nil {
		return fmt.Errorf("error getting collection: %v", err)
	}

	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().
				SetExpireAfterSeconds(0).
				SetName("expires_at_ttl"),
		},
		{
			Keys: bson.D{
				{Key: "payment_intent_id", Value: 1},
				{Key: "transaction_id", Value: 1},
			},
			Options: options.Index().
				SetUnique(true).
				SetName("intent_transaction_unique"),
		},
		{
			Keys:    bson.D{{Key: "booking_id", Value: 1}, {Key: "received_at", Value: -1}},
			Options: options.Index().SetName("booking_received_at_idx"),
		},
	}

	if _, err := col.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("error creating indexes: %v", err)
	}

	disputes, err := mdb.GetCollection(ctx, DisputesColName)
	if err != nil {
		return fmt.Errorf("error getting collection: %v", err)
	}
	_, err = disputes.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("status_created_at_idx"),
		},
		{
			Keys:    bson.D{{Key: "booking_id", Value: 1}},
			Options: options.Index().SetName("booking_id_idx"),
		},
	})
	if err != nil {
		return fmt.Errorf("error creating dispute indexes: %v", err)
	}
	return nil
}

func (mdb *MongodbRepo) RecordCallback(ctx context.Context, cb *PaymentCallback) (bool, error) {
	col, err := mdb.GetCollection(ctx, PaymentCallbacksColName)
	if err != nil {
		return false, fmt.Errorf("error getting collection: %v", err)
	}

	now := time.Now()
	cb.ReceivedAt = now
	cb.ExpiresAt = now.Add(callbackRetention)
	if cb.ID.IsZero() {
		cb.ID = primitive.NewObjectID()
	}

	if _, err := col.InsertOne(ctx, cb); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("error inserting payment callback: %v", err)
	}
	return true, nil
}

func (mdb *MongodbRepo) GetCallback(ctx context.Context, intentID, transactionID string) (*PaymentCallback, error) {
	col, err := mdb.GetCollection(ctx, PaymentCallbacksColName)
	if err != nil {
		return nil, fmt.Errorf("error getting collection: %v", err)
	}

	var cb PaymentCallback
	err = col.FindOne(ctx, bson.M{
		"payment_intent_id": intentID,
		"transaction_id":    transactionID,
	}).Decode(&cb)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("error finding payment callback: %v", err)
	}
	return &cb, nil
}

// MemoryCallbackLedger is used when no MongoDB is configured; it does not survive restarts.
type MemoryCallbackLedger struct {
	mu      sync.Mutex
	entries map[string]PaymentCallback
}

func NewMemoryCallbackLedger() *MemoryCallbackLedger {
	return &MemoryCallbackLedger{entries: make(map[string]PaymentCallback)}
}

func (m *MemoryCallbackLedger) RecordCallback(ctx context.Context, cb *PaymentCallback) (bool, error) {
	key := cb.PaymentIntentID + "|" + cb.TransactionID
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[key]; ok {
		return false, nil
	}
	cb.ReceivedAt = time.Now()
	m.entries[key] = *cb
	return true, nil
}

func (m *MemoryCallbackLedger) GetCallback(ctx context.Context, intentID, transactionID string) (*PaymentCallback, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cb, ok := m.entries[intentID+"|"+transactionID]
	if !ok {
		return nil, nil
	}
	return &cb, nil
}
