package models

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// invokeEdgeFunction POSTs payload to <project>/functions/v1/<name> with the caller's
// token, so the function runs as that user. The anon key is sent as apikey.
func (su *SupabaseRepo) invokeEdgeFunction(ctx context.Context, name string, payload any, accessToken string) ([]byte, error) {
	if su.url == "" {
		return nil, fmt.Errorf("%s: supabase url is not configured", name)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %v", name, err)
	}

	endpoint := strings.TrimRight(su.url, "/") + "/functions/v1/" + name
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request: %v", name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", su.key)
	token := accessToken
	if token == "" {
		token = su.key
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := su.functions.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s failed: %v", name, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %v", name, err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		var body struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		_ = json.Unmarshal(raw, &body)
		if body.Error == "" {
			body.Error = body.Message
		}
		if body.Error != "" {
			return nil, fmt.Errorf("%s: %s (status %d)", name, body.Error, resp.StatusCode)
		}
		return nil, fmt.Errorf("%s returned status %d", name, resp.StatusCode)
	}
	if fnErr := functionError(name, string(raw)); fnErr != nil {
		return nil, fnErr
	}
	return raw, nil
}
