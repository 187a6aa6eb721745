package models

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const DisputesColName = "disputes"

type DisputeStatus string

const (
	DisputeOpen     DisputeStatus = "open"
	DisputeResolved DisputeStatus = "resolved"
	DisputeRejected DisputeStatus = "rejected"
)

type Dispute struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	BookingID  uuid.UUID          `bson:"booking_id" json:"booking_id" validate:"required"`
	OpenedBy   uuid.UUID          `bson:"opened_by" json:"opened_by" validate:"required"`
	Reason     string             `bson:"reason" json:"reason" validate:"required,min=10,max=2000"`
	Status     DisputeStatus      `bson:"status" json:"status"`
	Resolution string             `bson:"resolution,omitempty" json:"resolution,omitempty"`
	ResolvedBy *uuid.UUID         `bson:"resolved_by,omitempty" json:"resolved_by,omitempty"`
	CreatedAt  time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt  time.Time          `bson:"updated_at" json:"updated_at"`
}

type DisputeStats struct {
	Open     int64 `json:"open"`
	Resolved int64 `json:"resolved"`
	Rejected int64 `json:"rejected"`
	Total    int64 `json:"total"`
}

type DisputeRepo interface {
	CreateDispute(ctx context.Context, d *Dispute) (*Dispute, error)
	ListDisputes(ctx context.Context, status DisputeStatus, limit int) ([]*Dispute, error)
	ResolveDispute(ctx context.Context, id primitive.ObjectID, status DisputeStatus, resolution string, adminID uuid.UUID) (*Dispute, error)
	GetDisputeStats(ctx context.Context) (*DisputeStats, error)
}

func (d *Dispute) BeforeCreate() {
	if d.ID.IsZero() {
		d.ID = primitive.NewObjectID()
	}
	now := time.Now()
	d.CreatedAt = now
	d.UpdatedAt = now
	d.Status = DisputeOpen
}

func (mdb *MongodbRepo) CreateDispute(ctx context.Context, d *Dispute) (*Dispute, error) {
	col, err := mdb.GetCollection(ctx, DisputesColName)
	if err != nil {
		return nil, fmt.Errorf("error getting collection: %v", err)
	}
	d.BeforeCreate()
	if _, err := col.InsertOne(ctx, d); err != nil {
		return nil, fmt.Errorf("failed to insert dispute: %w", err)
	}
	return d, nil
}

func (mdb *MongodbRepo) ListDisputes(ctx context.Context, status DisputeStatus, limit int) ([]*Dispute, error) {
	col, err := mdb.GetCollection(ctx, DisputesColName)
	if err != nil {
		return nil, fmt.Errorf("error getting collection: %v", err)
	}

	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := col.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("error finding disputes: %v", err)
	}
	defer cursor.Close(ctx)

	var disputes []*Dispute
	if err := cursor.All(ctx, &disputes); err != nil {
		return nil, fmt.Errorf("error decoding disputes: %v", err)
	}
	return disputes, nil
}

func (mdb *MongodbRepo) ResolveDispute(ctx context.Context, id primitive.ObjectID, status DisputeStatus, resolution string, adminID uuid.UUID) (*Dispute, error) {
	col, err := mdb.GetCollection(ctx, DisputesColName)
	if err != nil {
		return nil, fmt.Errorf("error getting collection: %v", err)
	}

	update := bson.M{
		"$set": bson.M{
			"status":      status,
			"resolution":  resolution,
			"resolved_by": adminID,
			"updated_at":  time.Now(),
		},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var d Dispute
	err = col.FindOneAndUpdate(ctx, bson.M{"_id": id, "status": DisputeOpen}, update, opts).Decode(&d)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("error resolving dispute: %v", err)
	}
	return &d, nil
}

func (mdb *MongodbRepo) GetDisputeStats(ctx context.Context) (*DisputeStats, error) {
	col, err := mdb.GetCollection(ctx, DisputesColName)
	if err != nil {
		return nil, fmt.Errorf("error getting collection: %v", err)
	}

	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":   "$status",
			"count": bson.M{"$sum": 1},
		}}},
	}
	cursor, err := col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("error aggregating disputes: %v", err)
	}
	defer cursor.Close(ctx)

	var groups []struct {
		Status DisputeStatus `bson:"_id"`
		Count  int64         `bson:"count"`
	}
	if err := cursor.All(ctx, &groups); err != nil {
		return nil, fmt.Errorf("error decoding dispute stats: %v", err)
	}

	stats := &DisputeStats{}
	for _, g := range groups {
		switch g.Status {
		case DisputeOpen:
			stats.Open = g.Count
		case DisputeResolved:
			stats.Resolved = g.Count
		case DisputeRejected:
			stats.Rejected = g.Count
		}
		stats.Total += g.Count
	}
	return stats, nil
}

// MemoryDisputeRepo keeps disputes in process when MongoDB is not configured.
type MemoryDisputeRepo struct {
	mu       sync.Mutex
	disputes map[primitive.ObjectID]Dispute
}

func NewMemoryDisputeRepo() *MemoryDisputeRepo {
	return &MemoryDisputeRepo{disputes: make(map[primitive.ObjectID]Dispute)}
}

func (m *MemoryDisputeRepo) CreateDispute(ctx context.Context, d *Dispute) (*Dispute, error) {
	d.BeforeCreate()
	m.mu.Lock()
	m.disputes[d.ID] = *d
	m.mu.Unlock()
	return d, nil
}

func (m *MemoryDisputeRepo) ListDisputes(ctx context.Context, status DisputeStatus, limit int) ([]*Dispute, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Dispute, 0, len(m.disputes))
	for _, d := range m.disputes {
		if status != "" && d.Status != status {
			continue
		}
		d := d
		out = append(out, &d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryDisputeRepo) ResolveDispute(ctx context.Context, id primitive.ObjectID, status DisputeStatus, resolution string, adminID uuid.UUID) (*Dispute, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.disputes[id]
	if !ok || d.Status != DisputeOpen {
		return nil, nil
	}
	d.Status = status
	d.Resolution = resolution
	d.ResolvedBy = &adminID
	d.UpdatedAt = time.Now()
	m.disputes[id] = d
	return &d, nil
}

func (m *MemoryDisputeRepo) GetDisputeStats(ctx context.Context) (*DisputeStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &DisputeStats{}
	for _, d := range m.disputes {
		switch d.Status {
		case DisputeOpen:
			stats.Open++
		case DisputeResolved:
			stats.Resolved++
		case DisputeRejected:
			stats.Rejected++
		}
		stats.Total++
	}
	return stats, nil
}
