package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	ProfileTable        = "profiles"
	PropertiesTable     = "properties"
	BookingsTable       = "bookings"
	PaymentRecordsTable = "payment_records"
	PayoutRequestsTable = "payout_requests"
	DBName              = "staylink"

	RPCCheckAvailability      = "check_property_availability_new"
	RPCCalculateRefund        = "calculate_refund_amount"
	RPCListPropertiesByStatus = "list_properties_by_status"
	RPCAdminPropertyStats     = "get_admin_property_statistics"
	RPCWalletMetrics          = "get_wallet_metrics"

	FnRequestPayout = "requestPayout"
	FnApprovePayout = "approvePayout"
)

// postgrestError is the body PostgREST sends back when an RPC fails.
type postgrestError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

// decodeRPC unmarshals an RPC body, turning empty or error-shaped bodies into errors.
// The supabase client returns RPC results as a bare string with no status.
func decodeRPC(name, raw string, out any) error {
	body := strings.TrimSpace(raw)
	if body == "" {
		return fmt.Errorf("rpc %s returned an empty response", name)
	}

	if strings.HasPrefix(body, "{") {
		var pgErr postgrestError
		if err := json.Unmarshal([]byte(body), &pgErr); err == nil && pgErr.Message != "" && pgErr.Code != "" {
			return fmt.Errorf("rpc %s failed: %s (code=%s)", name, pgErr.Message, pgErr.Code)
		}
	}

	if err := json.Unmarshal([]byte(body), out); err != nil {
		return fmt.Errorf("failed to unmarshal %s response: %v", name, err)
	}
	return nil
}

// functionError extracts the message an edge function reports in its JSON body.
func functionError(name, raw string) error {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(raw), &body); err != nil {
		return nil
	}
	if body.Error != "" {
		return fmt.Errorf("%s: %s", name, body.Error)
	}
	return nil
}
