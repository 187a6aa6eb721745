package models

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type PropertyStatus string

const (
	PropertyPending  PropertyStatus = "pending"
	PropertyActive   PropertyStatus = "active"
	PropertyInactive PropertyStatus = "inactive"
	PropertyRejected PropertyStatus = "rejected"
)

// Property holds the listing fields the booking flow reads; everything else stays in the backend.
type Property struct {
	ID            uuid.UUID      `json:"id"`
	HostID        uuid.UUID      `json:"host_id"`
	Title         string         `json:"title,omitempty"`
	Timezone      string         `json:"timezone,omitempty"`
	PricePerNight float64        `json:"price_per_night"`
	CleaningFee   float64        `json:"cleaning_fee"`
	ServiceFee    float64        `json:"service_fee"`
	Currency      string         `json:"currency"`
	MaxGuests     int            `json:"max_guests,omitempty"`
	Status        PropertyStatus `json:"status,omitempty"`
	CreatedAt     time.Time      `json:"created_at,omitempty"`
}

// PropertyStatistics mirrors get_admin_property_statistics.
type PropertyStatistics struct {
	Total    int `json:"total"`
	Pending  int `json:"pending"`
	Active   int `json:"active"`
	Inactive int `json:"inactive"`
	Rejected int `json:"rejected"`
}

type PropertyRepo interface {
	GetPropertyTimezone(ctx context.Context, propertyID uuid.UUID, accessToken string) (string, error)
	GetPropertyPricing(ctx context.Context, propertyID uuid.UUID, accessToken string) (*Property, error)
}

type AdminRepo interface {
	GetAdminPropertyStatistics(ctx context.Context, accessToken string) (*PropertyStatistics, error)
	ListPropertiesByStatus(ctx context.Context, status PropertyStatus, offset, limit int, accessToken string) ([]*Property, error)
}

func (su *SupabaseRepo) getProperty(ctx context.Context, propertyID uuid.UUID, columns, accessToken string) (*Property, error) {
	if propertyID == uuid.Nil {
		return nil, fmt.Errorf("invalid property ID")
	}

	client, err := su.clientFor(accessToken)
	if err != nil {
		return nil, err
	}

	raw, _, err := client.From(PropertiesTable).
		Select(columns, "", false).
		Eq("id", propertyID.String()).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get property: %v", err)
	}

	var rows []Property
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("failed to unmarshal property rows: %v", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("property %s not found", propertyID)
	}
	return &rows[0], nil
}

func (su *SupabaseRepo) GetPropertyTimezone(ctx context.Context, propertyID uuid.UUID, accessToken string) (string, error) {
	p, err := su.getProperty(ctx, propertyID, "id,timezone", accessToken)
	if err != nil {
		return "", err
	}
	return p.Timezone, nil
}

func (su *SupabaseRepo) GetPropertyPricing(ctx context.Context, propertyID uuid.UUID, accessToken string) (*Property, error) {
	return su.getProperty(ctx, propertyID, "id,host_id,price_per_night,cleaning_fee,service_fee,currency,max_guests,status", accessToken)
}

func (su *SupabaseRepo) GetAdminPropertyStatistics(ctx context.Context, accessToken string) (*PropertyStatistics, error) {
	client, err := su.clientFor(accessToken)
	if err != nil {
		return nil, err
	}

	// the function returns a single-row set
	var rows []PropertyStatistics
	if err := decodeRPC(RPCAdminPropertyStats, client.Rpc(RPCAdminPropertyStats, "", map[string]interface{}{}), &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return &PropertyStatistics{}, nil
	}
	return &rows[0], nil
}

func (su *SupabaseRepo) ListPropertiesByStatus(ctx context.Context, status PropertyStatus, offset, limit int, accessToken string) ([]*Property, error) {
	client, err := su.clientFor(accessToken)
	if err != nil {
		return nil, err
	}

	params := map[string]interface{}{
		"p_status": status,
		"p_offset": offset,
		"p_limit":  limit,
	}

	var properties []*Property
	if err := decodeRPC(RPCListPropertiesByStatus, client.Rpc(RPCListPropertiesByStatus, "", params), &properties); err != nil {
		return nil, err
	}
	return properties, nil
}
