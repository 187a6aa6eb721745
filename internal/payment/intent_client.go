package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

type IntentRequest struct {
	BookingID     uuid.UUID `json:"booking_id"`
	Amount        float64   `json:"amount"`
	Currency      string    `json:"currency"`
	Description   string    `json:"description"`
	UserID        uuid.UUID `json:"user_id"`
	CustomerEmail string    `json:"customer_email,omitempty"`
}

type Fees struct {
	ProcessingFee float64 `json:"processing_fee"`
	PlatformFee   float64 `json:"platform_fee"`
}

type IntentResponse struct {
	PaymentIntentID string  `json:"payment_intent_id"`
	PublicKey       string  `json:"public_key"`
	Amount          float64 `json:"amount"`
	Currency        string  `json:"currency"`
	Fees            Fees    `json:"fees"`
}

// RemoteError carries the message the intent endpoint returned, unchanged.
type RemoteError struct {
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	return e.Message
}

// IntentCreator creates provider-side payment intents.
type IntentCreator interface {
	CreateIntent(ctx context.Context, accessToken string, req IntentRequest) (*IntentResponse, error)
}

type IntentClient struct {
	endpoint   string
	httpClient *http.Client
}

func NewIntentClient(endpoint string, timeout time.Duration) *IntentClient {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &IntentClient{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (ic *IntentClient) CreateIntent(ctx context.Context, accessToken string, req IntentRequest) (*IntentResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode intent request: %v", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, ic.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build intent request: %v", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+accessToken)

	res, err := ic.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("payment intent request failed: %v", err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read intent response: %v", err)
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, &RemoteError{StatusCode: res.StatusCode, Message: remoteMessage(res.StatusCode, raw)}
	}

	// the endpoint wraps its payload in {"data": ...} on some deployments
	var envelope struct {
		Data *IntentResponse `json:"data"`
	}
	var intent IntentResponse
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Data != nil {
		intent = *envelope.Data
	} else if err := json.Unmarshal(raw, &intent); err != nil {
		return nil, fmt.Errorf("failed to decode intent response: %v", err)
	}

	if intent.PaymentIntentID == "" {
		return nil, fmt.Errorf("intent response has no payment_intent_id")
	}
	return &intent, nil
}

func remoteMessage(status int, raw []byte) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Error != "" {
			return body.Error
		}
		if body.Message != "" {
			return body.Message
		}
	}
	if text := strings.TrimSpace(string(raw)); text != "" {
		return text
	}
	return fmt.Sprintf("payment intent request failed with status %d", status)
}
